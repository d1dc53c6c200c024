package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mehrbod2002/masjidmap/internal/api/respond"
	"github.com/mehrbod2002/masjidmap/internal/apperrors"
	"github.com/mehrbod2002/masjidmap/internal/middleware"
	"github.com/mehrbod2002/masjidmap/internal/models"
	"github.com/mehrbod2002/masjidmap/internal/service"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type RequestHandler struct {
	requestService service.ChangeRequestService
	gateService    service.GateService
}

func NewRequestHandler(requestService service.ChangeRequestService, gateService service.GateService) *RequestHandler {
	return &RequestHandler{requestService: requestService, gateService: gateService}
}

type SubmitRequest struct {
	Type       string             `json:"type"`
	MasjidID   string             `json:"masjidId,omitempty"`
	MasjidData *models.PlaceInput `json:"masjidData,omitempty"`
	Reason     string             `json:"reason,omitempty"`
}

type ProcessRequest struct {
	Status        string `json:"status"`
	AdminResponse string `json:"adminResponse"`
}

// @Summary Submit a change request
// @Description Routed through the same role policy as direct place mutations
// @Tags Requests
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body SubmitRequest true "Proposal"
// @Success 202 {object} respond.Envelope{data=MutationResponse}
// @Failure 400 {object} respond.Envelope "Invalid proposal"
// @Failure 403 {object} respond.Envelope "Not permitted"
// @Router /requests [post]
func (h *RequestHandler) SubmitRequest(c *gin.Context) {
	var req SubmitRequest
	if !bindJSON(c, &req, false) {
		return
	}
	requestType, ok := models.ParseChangeRequestType(req.Type)
	if !ok {
		respond.Error(c, apperrors.Validation("unknown request type %q", req.Type).WithField("type", "oneof add_place edit_place delete_place admin_access"))
		return
	}
	op, _ := service.OperationFor(requestType)

	m := service.Mutation{Operation: op, Payload: req.MasjidData, Reason: req.Reason}
	if req.MasjidID != "" {
		id, err := primitive.ObjectIDFromHex(req.MasjidID)
		if err != nil {
			respond.Error(c, apperrors.Validation("invalid masjidId").WithField("masjidId", "malformed"))
			return
		}
		m.PlaceID = &id
	}
	if m.Payload != nil {
		m.Payload.Normalize()
	}

	result, err := h.gateService.AttemptMutation(c.Request.Context(), middleware.CallerFrom(c), m)
	if err != nil {
		respond.Error(c, err)
		return
	}
	appliedStatus := http.StatusOK
	if op == service.OpCreate {
		appliedStatus = http.StatusCreated
	}
	writeMutation(c, h.requestService, appliedStatus, result)
}

// @Summary List change requests
// @Tags Requests
// @Produce json
// @Security BearerAuth
// @Param status query string false "pending, approved, rejected or all"
// @Success 200 {object} respond.Envelope{data=[]service.RequestView}
// @Failure 403 {object} respond.Envelope "Main admin only"
// @Router /requests [get]
func (h *RequestHandler) GetRequests(c *gin.Context) {
	h.list(c, models.RequestFilter{Status: models.RequestStatus(c.Query("status"))})
}

// @Summary List the caller's change requests
// @Tags Requests
// @Produce json
// @Security BearerAuth
// @Success 200 {object} respond.Envelope{data=[]service.RequestView}
// @Router /requests/my-requests [get]
func (h *RequestHandler) GetMyRequests(c *gin.Context) {
	caller := middleware.CallerFrom(c)
	h.list(c, models.RequestFilter{Status: models.RequestStatus(c.Query("status")), RequestedBy: &caller.AccountID})
}

func (h *RequestHandler) list(c *gin.Context, filter models.RequestFilter) {
	if filter.Status != "" {
		status, ok := models.ParseStatusFilter(string(filter.Status))
		if !ok {
			respond.Error(c, apperrors.Validation("unknown status %q", filter.Status).WithField("status", "oneof pending approved rejected all"))
			return
		}
		filter.Status = status
	}
	requests, err := h.requestService.List(c.Request.Context(), middleware.CallerFrom(c), filter)
	if err != nil {
		respond.Error(c, err)
		return
	}
	views, err := h.requestService.Views(c.Request.Context(), requests)
	if err != nil {
		respond.Error(c, err)
		return
	}
	respond.OK(c, http.StatusOK, views)
}

// @Summary Resolve a change request
// @Description Main admin approves (applying the change) or rejects a pending request
// @Tags Requests
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Request ID"
// @Param request body ProcessRequest true "Decision"
// @Success 200 {object} respond.Envelope{data=service.RequestView}
// @Failure 409 {object} respond.Envelope "Already resolved or cannot be applied"
// @Router /requests/{id}/process [put]
func (h *RequestHandler) ProcessRequest(c *gin.Context) {
	var req ProcessRequest
	if !bindJSON(c, &req, false) {
		return
	}
	decision, ok := models.ParseDecision(req.Status)
	if !ok {
		respond.Error(c, apperrors.Validation("status must be approved or rejected").WithField("status", "oneof approved rejected"))
		return
	}
	request, err := h.requestService.Resolve(c.Request.Context(), middleware.CallerFrom(c), c.Param("id"), decision, req.AdminResponse)
	if err != nil {
		respond.Error(c, err)
		return
	}
	h.one(c, request)
}

// @Summary Withdraw a change request
// @Description The requester removes their own pending request
// @Tags Requests
// @Produce json
// @Security BearerAuth
// @Param id path string true "Request ID"
// @Success 200 {object} respond.Envelope{data=models.ChangeRequest}
// @Failure 403 {object} respond.Envelope "Not the requester"
// @Failure 409 {object} respond.Envelope "Already resolved"
// @Router /requests/{id} [delete]
func (h *RequestHandler) WithdrawRequest(c *gin.Context) {
	request, err := h.requestService.Withdraw(c.Request.Context(), middleware.CallerFrom(c), c.Param("id"))
	if err != nil {
		respond.Error(c, err)
		return
	}
	respond.OK(c, http.StatusOK, request)
}

func (h *RequestHandler) one(c *gin.Context, request *models.ChangeRequest) {
	views, err := h.requestService.Views(c.Request.Context(), []*models.ChangeRequest{request})
	if err != nil || len(views) == 0 {
		respond.OK(c, http.StatusOK, request)
		return
	}
	respond.OK(c, http.StatusOK, views[0])
}
