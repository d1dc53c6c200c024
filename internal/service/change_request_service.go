package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/mehrbod2002/masjidmap/internal/apperrors"
	"github.com/mehrbod2002/masjidmap/internal/models"
	"github.com/mehrbod2002/masjidmap/internal/repository"
	"github.com/sirupsen/logrus"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type ChangeRequestService interface {
	Submit(ctx context.Context, request *models.ChangeRequest) (*models.ChangeRequest, error)
	Resolve(ctx context.Context, reviewer *models.Caller, requestID string, decision models.Decision, response string) (*models.ChangeRequest, error)
	Withdraw(ctx context.Context, caller *models.Caller, requestID string) (*models.ChangeRequest, error)
	// List returns requests newest first. Anyone may list their own requests;
	// listing other accounts' requests is reserved for the main admin.
	List(ctx context.Context, caller *models.Caller, filter models.RequestFilter) ([]*models.ChangeRequest, error)
	Views(ctx context.Context, requests []*models.ChangeRequest) ([]*RequestView, error)
}

// RequestView is a change request with its referenced records summarized.
type RequestView struct {
	*models.ChangeRequest
	RequestedBy *models.AccountSummary `json:"requestedBy"`
	ProcessedBy *models.AccountSummary `json:"processedBy,omitempty"`
	Place       *models.PlaceSummary   `json:"masjidId,omitempty"`
}

type changeRequestService struct {
	requestRepo  repository.ChangeRequestRepository
	accountRepo  repository.AccountRepository
	placeRepo    repository.PlaceRepository
	placeService PlaceService
	tx           repository.Transactor
	rt           Runtime
}

func NewChangeRequestService(
	requestRepo repository.ChangeRequestRepository,
	accountRepo repository.AccountRepository,
	placeRepo repository.PlaceRepository,
	tx repository.Transactor,
	rt Runtime,
) ChangeRequestService {
	rt = rt.withDefaults()
	return &changeRequestService{
		requestRepo:  requestRepo,
		accountRepo:  accountRepo,
		placeRepo:    placeRepo,
		placeService: NewPlaceService(placeRepo, rt),
		tx:           tx,
		rt:           rt,
	}
}

func (s *changeRequestService) Submit(ctx context.Context, request *models.ChangeRequest) (*models.ChangeRequest, error) {
	if request == nil {
		return nil, apperrors.Validation("request is required")
	}
	stored := request.Clone()
	stored.ProcessedBy, stored.ProcessedAt, stored.AdminResponse = nil, nil, ""
	if err := checkShape(stored); err != nil {
		return nil, err
	}

	ctx, cancel := s.rt.bounded(ctx)
	defer cancel()

	if stored.Type.NeedsTarget() {
		place, err := s.placeRepo.GetPlaceByID(ctx, *stored.PlaceID)
		if err != nil {
			return nil, expired(err, "load target place")
		}
		if place == nil {
			return nil, apperrors.NotFound("place %s not found", stored.PlaceID.Hex())
		}
	}

	if err := s.requestRepo.SaveChangeRequest(ctx, stored); err != nil {
		return nil, expired(err, "insert change request")
	}

	s.rt.Logger.WithFields(logrus.Fields{
		"request_id": stored.ID.Hex(),
		"type":       stored.Type,
	}).Info("change request submitted")
	s.rt.audit(ctx, stored.RequestedBy, "SubmitChangeRequest", "Change request submitted", map[string]interface{}{
		"request_id": stored.ID.Hex(),
		"type":       string(stored.Type),
	})
	s.rt.Events.Publish(&models.RequestEvent{Type: models.EventRequestSubmitted, Request: stored.Clone(), At: time.Now().UTC()})
	return stored, nil
}

// checkShape canonicalizes the request type and enforces the field set it requires.
func checkShape(r *models.ChangeRequest) error {
	t, ok := models.ParseChangeRequestType(string(r.Type))
	if !ok {
		return apperrors.Validation("unknown request type %q", r.Type).WithField("type", "invalid")
	}
	r.Type = t
	if r.RequestedBy.IsZero() {
		return apperrors.Validation("requester is required").WithField("requestedBy", "required")
	}
	verr := apperrors.Validation("invalid %s request", r.Type)
	switch {
	case r.Type.NeedsTarget() && (r.PlaceID == nil || r.PlaceID.IsZero()):
		verr.WithField("masjidId", "required")
	case !r.Type.NeedsTarget() && r.PlaceID != nil:
		verr.WithField("masjidId", "not allowed")
	}
	switch {
	case r.Type.NeedsPayload() && r.PlaceData == nil:
		verr.WithField("masjidData", "required")
	case !r.Type.NeedsPayload() && r.PlaceData != nil:
		verr.WithField("masjidData", "not allowed")
	}
	if r.Type.NeedsReason() && strings.TrimSpace(r.Reason) == "" {
		verr.WithField("reason", "required")
	}
	if len(verr.Fields) > 0 {
		return verr
	}
	if r.Type.NeedsPayload() {
		return r.PlaceData.Validate()
	}
	return nil
}

func (s *changeRequestService) Resolve(ctx context.Context, reviewer *models.Caller, requestID string, decision models.Decision, response string) (*models.ChangeRequest, error) {
	if err := requireCaller(reviewer); err != nil {
		return nil, err
	}
	if reviewer.Role != models.RoleMainAdmin {
		return nil, apperrors.Permission("only the main admin can resolve requests")
	}
	if _, ok := models.ParseDecision(string(decision)); !ok {
		return nil, apperrors.Validation("decision must be approved or rejected").WithField("status", "oneof approved rejected")
	}
	objID, err := parseID(requestID, "request")
	if err != nil {
		return nil, err
	}

	ctx, cancel := s.rt.bounded(ctx)
	defer cancel()

	var resolved *models.ChangeRequest
	var requestType models.ChangeRequestType
	err = s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		request, err := s.requestRepo.GetChangeRequestByID(ctx, objID)
		if err != nil {
			return err
		}
		if request == nil {
			return apperrors.NotFound("request %s not found", requestID)
		}
		requestType = request.Type
		if !request.IsPending() {
			return apperrors.InvalidState("request is already %s", request.Status)
		}
		if decision == models.DecisionApproved {
			if err := s.apply(ctx, request); err != nil {
				return err
			}
		}

		res := models.Resolution{
			Status:        decision.Status(),
			ProcessedBy:   reviewer.AccountID,
			AdminResponse: strings.TrimSpace(response),
			ProcessedAt:   time.Now().UTC(),
		}
		if err := s.requestRepo.ResolveChangeRequest(ctx, objID, res); err != nil {
			if errors.Is(err, repository.ErrNoMatch) {
				return apperrors.InvalidState("request is no longer pending")
			}
			return err
		}
		request.Status = res.Status
		request.ProcessedBy = &res.ProcessedBy
		request.AdminResponse = res.AdminResponse
		request.ProcessedAt = &res.ProcessedAt
		resolved = request
		return nil
	})
	if err != nil {
		if apperrors.Is(err, apperrors.KindApplyConflict) {
			s.rt.Metrics.ApplyConflicts.WithLabelValues(string(requestType)).Inc()
		}
		return nil, expired(err, "resolve request")
	}

	s.rt.Metrics.Resolved.WithLabelValues(string(resolved.Type), string(decision)).Inc()
	s.rt.Logger.WithFields(logrus.Fields{
		"request_id": requestID,
		"type":       resolved.Type,
		"decision":   decision,
	}).Info("change request resolved")
	s.rt.audit(ctx, reviewer.AccountID, "ResolveChangeRequest", "Change request "+string(resolved.Status), map[string]interface{}{
		"request_id":   requestID,
		"type":         string(resolved.Type),
		"requested_by": resolved.RequestedBy.Hex(),
	})
	s.rt.Events.Publish(&models.RequestEvent{Type: models.EventRequestResolved, Request: resolved.Clone(), At: time.Now().UTC()})
	return resolved, nil
}

// apply replays an approved request against current data. Anything that no
// longer fits is an apply conflict; transient failures pass through.
func (s *changeRequestService) apply(ctx context.Context, request *models.ChangeRequest) error {
	var err error
	switch request.Type {
	case models.RequestAddPlace:
		_, err = s.placeService.CreatePlace(ctx, request.PlaceData)
	case models.RequestEditPlace:
		_, err = s.placeService.UpdatePlace(ctx, *request.PlaceID, request.PlaceData)
	case models.RequestDeletePlace:
		_, err = s.placeService.DeletePlace(ctx, *request.PlaceID)
	case models.RequestAdminAccess:
		err = s.promote(ctx, request.RequestedBy)
	default:
		err = apperrors.Validation("unknown request type %q", request.Type)
	}
	if err == nil {
		return nil
	}
	switch apperrors.KindOf(err) {
	case apperrors.KindValidation, apperrors.KindNotFound, apperrors.KindInvalidState:
		return apperrors.Wrap(apperrors.KindApplyConflict, err, "cannot apply %s request", request.Type)
	}
	return err
}

func (s *changeRequestService) promote(ctx context.Context, accountID primitive.ObjectID) error {
	account, err := s.accountRepo.GetAccountByID(ctx, accountID)
	if err != nil {
		return err
	}
	if account == nil {
		return apperrors.NotFound("requester %s no longer exists", accountID.Hex())
	}
	if account.Role != models.RoleUser {
		return apperrors.InvalidState("requester is already %s", account.Role)
	}
	if err := s.accountRepo.UpdateRole(ctx, accountID, models.RoleUser, models.RoleAdmin); err != nil {
		if errors.Is(err, repository.ErrNoMatch) {
			return apperrors.InvalidState("requester role changed concurrently")
		}
		return err
	}
	return nil
}

func (s *changeRequestService) Withdraw(ctx context.Context, caller *models.Caller, requestID string) (*models.ChangeRequest, error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}
	objID, err := parseID(requestID, "request")
	if err != nil {
		return nil, err
	}

	ctx, cancel := s.rt.bounded(ctx)
	defer cancel()

	var withdrawn *models.ChangeRequest
	err = s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		request, err := s.requestRepo.GetChangeRequestByID(ctx, objID)
		if err != nil {
			return err
		}
		if request == nil {
			return apperrors.NotFound("request %s not found", requestID)
		}
		if request.RequestedBy != caller.AccountID {
			return apperrors.Permission("only the requester can withdraw a request")
		}
		if !request.IsPending() {
			return apperrors.InvalidState("request is already %s", request.Status)
		}
		if err := s.requestRepo.DeletePendingChangeRequest(ctx, objID, caller.AccountID); err != nil {
			if errors.Is(err, repository.ErrNoMatch) {
				return apperrors.InvalidState("request is no longer pending")
			}
			return err
		}
		request.Status = models.StatusWithdrawn
		withdrawn = request
		return nil
	})
	if err != nil {
		return nil, expired(err, "withdraw request")
	}

	s.rt.audit(ctx, caller.AccountID, "WithdrawChangeRequest", "Change request withdrawn", map[string]interface{}{
		"request_id": requestID,
		"type":       string(withdrawn.Type),
	})
	s.rt.Events.Publish(&models.RequestEvent{Type: models.EventRequestWithdrawn, Request: withdrawn.Clone(), At: time.Now().UTC()})
	return withdrawn, nil
}

func (s *changeRequestService) List(ctx context.Context, caller *models.Caller, filter models.RequestFilter) ([]*models.ChangeRequest, error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}
	ownOnly := filter.RequestedBy != nil && *filter.RequestedBy == caller.AccountID
	if !ownOnly && caller.Role != models.RoleMainAdmin {
		return nil, apperrors.Permission("only the main admin can list other accounts' requests")
	}
	if filter.Status == "" {
		filter.Status = models.StatusAll
	}
	if _, ok := models.ParseStatusFilter(string(filter.Status)); !ok {
		return nil, apperrors.Validation("unknown status %q", filter.Status).WithField("status", "oneof pending approved rejected all")
	}

	ctx, cancel := s.rt.bounded(ctx)
	defer cancel()

	requests, err := s.requestRepo.ListChangeRequests(ctx, filter)
	return requests, expired(err, "list requests")
}

func (s *changeRequestService) Views(ctx context.Context, requests []*models.ChangeRequest) ([]*RequestView, error) {
	ctx, cancel := s.rt.bounded(ctx)
	defer cancel()

	accounts := map[primitive.ObjectID]*models.Account{}
	places := map[primitive.ObjectID]*models.Place{}
	account := func(id primitive.ObjectID) (*models.Account, error) {
		if a, ok := accounts[id]; ok {
			return a, nil
		}
		a, err := s.accountRepo.GetAccountByID(ctx, id)
		if err != nil {
			return nil, err
		}
		accounts[id] = a
		return a, nil
	}
	place := func(id primitive.ObjectID) (*models.Place, error) {
		if p, ok := places[id]; ok {
			return p, nil
		}
		p, err := s.placeRepo.GetPlaceByID(ctx, id)
		if err != nil {
			return nil, err
		}
		places[id] = p
		return p, nil
	}

	views := make([]*RequestView, 0, len(requests))
	for _, r := range requests {
		view := &RequestView{ChangeRequest: r, RequestedBy: &models.AccountSummary{ID: r.RequestedBy}}
		requester, err := account(r.RequestedBy)
		if err != nil {
			return nil, expired(err, "load requester")
		}
		if requester != nil {
			view.RequestedBy = requester.Summary()
		}
		if r.ProcessedBy != nil {
			view.ProcessedBy = &models.AccountSummary{ID: *r.ProcessedBy}
			reviewer, err := account(*r.ProcessedBy)
			if err != nil {
				return nil, expired(err, "load reviewer")
			}
			if reviewer != nil {
				view.ProcessedBy.Name = reviewer.Name
			}
		}
		if r.PlaceID != nil {
			view.Place = &models.PlaceSummary{ID: *r.PlaceID}
			target, err := place(*r.PlaceID)
			if err != nil {
				return nil, expired(err, "load place")
			}
			if target != nil {
				view.Place = target.Summary()
			}
		}
		views = append(views, view)
	}
	return views, nil
}
