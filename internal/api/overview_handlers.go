package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mehrbod2002/masjidmap/internal/api/respond"
	"github.com/mehrbod2002/masjidmap/internal/middleware"
	"github.com/mehrbod2002/masjidmap/internal/models"
	"github.com/mehrbod2002/masjidmap/internal/service"
)

type OverviewHandler struct {
	accountService service.AccountService
	placeService   service.PlaceService
	requestService service.ChangeRequestService
}

func NewOverviewHandler(
	accountService service.AccountService,
	placeService service.PlaceService,
	requestService service.ChangeRequestService,
) *OverviewHandler {
	return &OverviewHandler{
		accountService: accountService,
		placeService:   placeService,
		requestService: requestService,
	}
}

type OverviewResponse struct {
	Places        int                              `json:"places"`
	Accounts      map[models.Role]int              `json:"accounts"`
	Requests      map[models.RequestStatus]int     `json:"requests"`
	PendingByType map[models.ChangeRequestType]int `json:"pendingByType"`
}

// @Summary Admin overview
// @Description Counts of places, accounts by role and requests by status
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} respond.Envelope{data=OverviewResponse}
// @Failure 403 {object} respond.Envelope "Main admin only"
// @Router /admin/overview [get]
func (h *OverviewHandler) GetOverview(c *gin.Context) {
	ctx := c.Request.Context()
	caller := middleware.CallerFrom(c)

	places, err := h.placeService.GetAllPlaces(ctx)
	if err != nil {
		respond.Error(c, err)
		return
	}
	accounts, err := h.accountService.GetAllAccounts(ctx, caller)
	if err != nil {
		respond.Error(c, err)
		return
	}
	requests, err := h.requestService.List(ctx, caller, models.RequestFilter{Status: models.StatusAll})
	if err != nil {
		respond.Error(c, err)
		return
	}

	response := OverviewResponse{
		Places: len(places),
		Accounts: map[models.Role]int{
			models.RoleUser: 0, models.RoleAdmin: 0, models.RoleMainAdmin: 0,
		},
		Requests: map[models.RequestStatus]int{
			models.StatusPending: 0, models.StatusApproved: 0, models.StatusRejected: 0,
		},
		PendingByType: map[models.ChangeRequestType]int{},
	}
	for _, a := range accounts {
		response.Accounts[a.Role]++
	}
	for _, r := range requests {
		response.Requests[r.Status]++
		if r.IsPending() {
			response.PendingByType[r.Type]++
		}
	}
	respond.OK(c, http.StatusOK, response)
}
