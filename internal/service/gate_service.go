package service

import (
	"context"

	"github.com/mehrbod2002/masjidmap/internal/apperrors"
	"github.com/mehrbod2002/masjidmap/internal/models"
	"github.com/sirupsen/logrus"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Operation string

const (
	OpCreate  Operation = "create"
	OpUpdate  Operation = "update"
	OpDelete  Operation = "delete"
	OpElevate Operation = "request-elevation"
)

// OperationFor maps a change request type onto the mutation it proposes.
func OperationFor(t models.ChangeRequestType) (Operation, bool) {
	switch t {
	case models.RequestAddPlace:
		return OpCreate, true
	case models.RequestEditPlace:
		return OpUpdate, true
	case models.RequestDeletePlace:
		return OpDelete, true
	case models.RequestAdminAccess:
		return OpElevate, true
	}
	return "", false
}

type Outcome string

const (
	OutcomeApply Outcome = "applied"
	OutcomeQueue Outcome = "queued"
	OutcomeDeny  Outcome = "denied"
)

type Decision struct {
	Outcome Outcome
	QueueAs models.ChangeRequestType
	Reason  string
}

// decisions is the complete role policy. Every mutation entry point consults it;
// a missing entry is a denial.
var decisions = map[models.Role]map[Operation]Decision{
	models.RoleMainAdmin: {
		OpCreate:  {Outcome: OutcomeApply},
		OpUpdate:  {Outcome: OutcomeApply},
		OpDelete:  {Outcome: OutcomeApply},
		OpElevate: {Outcome: OutcomeDeny, Reason: "the main admin has no higher role to request"},
	},
	models.RoleAdmin: {
		OpCreate:  {Outcome: OutcomeQueue, QueueAs: models.RequestAddPlace},
		OpUpdate:  {Outcome: OutcomeQueue, QueueAs: models.RequestEditPlace},
		OpDelete:  {Outcome: OutcomeDeny, Reason: "only the main admin can delete places"},
		OpElevate: {Outcome: OutcomeDeny, Reason: "account is already an admin"},
	},
	models.RoleUser: {
		OpCreate:  {Outcome: OutcomeQueue, QueueAs: models.RequestAddPlace},
		OpUpdate:  {Outcome: OutcomeQueue, QueueAs: models.RequestEditPlace},
		OpDelete:  {Outcome: OutcomeQueue, QueueAs: models.RequestDeletePlace},
		OpElevate: {Outcome: OutcomeQueue, QueueAs: models.RequestAdminAccess},
	},
}

// Decide looks up the policy entry for role and op.
func Decide(role models.Role, op Operation) Decision {
	if d, ok := decisions[role][op]; ok {
		return d
	}
	return Decision{Outcome: OutcomeDeny, Reason: "operation not permitted"}
}

type Mutation struct {
	Operation Operation
	PlaceID   *primitive.ObjectID
	Payload   *models.PlaceInput
	Reason    string
}

// MutationResult holds either the applied place (nil after a delete) or the queued request.
type MutationResult struct {
	Applied bool
	Place   *models.Place
	Request *models.ChangeRequest
}

type GateService interface {
	AttemptMutation(ctx context.Context, caller *models.Caller, m Mutation) (*MutationResult, error)
}

type gateService struct {
	places   PlaceService
	requests ChangeRequestService
	rt       Runtime
}

func NewGateService(places PlaceService, requests ChangeRequestService, rt Runtime) GateService {
	return &gateService{places: places, requests: requests, rt: rt.withDefaults()}
}

func (s *gateService) AttemptMutation(ctx context.Context, caller *models.Caller, m Mutation) (*MutationResult, error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}
	d := Decide(caller.Role, m.Operation)
	s.rt.Metrics.GateDecisions.WithLabelValues(string(caller.Role), string(m.Operation), string(d.Outcome)).Inc()
	s.rt.Logger.WithFields(logrus.Fields{
		"account_id": caller.AccountID.Hex(),
		"role":       caller.Role,
		"operation":  m.Operation,
		"outcome":    d.Outcome,
	}).Debug("gate decision")

	switch d.Outcome {
	case OutcomeApply:
		return s.apply(ctx, caller, m)
	case OutcomeQueue:
		request, err := s.requests.Submit(ctx, &models.ChangeRequest{
			Type:        d.QueueAs,
			RequestedBy: caller.AccountID,
			PlaceID:     m.PlaceID,
			PlaceData:   m.Payload,
			Reason:      m.Reason,
		})
		if err != nil {
			return nil, err
		}
		return &MutationResult{Request: request}, nil
	default:
		return nil, apperrors.Permission("%s", d.Reason)
	}
}

func (s *gateService) apply(ctx context.Context, caller *models.Caller, m Mutation) (*MutationResult, error) {
	if m.Operation != OpCreate && (m.PlaceID == nil || m.PlaceID.IsZero()) {
		return nil, apperrors.Validation("place id is required").WithField("masjidId", "required")
	}

	ctx, cancel := s.rt.bounded(ctx)
	defer cancel()

	var (
		place  *models.Place
		err    error
		action string
	)
	switch m.Operation {
	case OpCreate:
		action = "CreatePlace"
		place, err = s.places.CreatePlace(ctx, m.Payload)
	case OpUpdate:
		action = "UpdatePlace"
		place, err = s.places.UpdatePlace(ctx, *m.PlaceID, m.Payload)
	case OpDelete:
		action = "DeletePlace"
		place, err = s.places.DeletePlace(ctx, *m.PlaceID)
	default:
		return nil, apperrors.Validation("operation %q cannot be applied to a place", m.Operation)
	}
	if err != nil {
		return nil, expired(err, "apply "+string(m.Operation))
	}

	s.rt.audit(ctx, caller.AccountID, action, "Place "+string(m.Operation)+"d directly", map[string]interface{}{
		"place_id": place.ID.Hex(),
		"name":     place.Name,
	})
	if m.Operation == OpDelete {
		return &MutationResult{Applied: true}, nil
	}
	return &MutationResult{Applied: true, Place: place}, nil
}
