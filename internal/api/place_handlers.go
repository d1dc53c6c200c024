package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mehrbod2002/masjidmap/internal/api/respond"
	"github.com/mehrbod2002/masjidmap/internal/apperrors"
	"github.com/mehrbod2002/masjidmap/internal/geo"
	"github.com/mehrbod2002/masjidmap/internal/middleware"
	"github.com/mehrbod2002/masjidmap/internal/models"
	"github.com/mehrbod2002/masjidmap/internal/service"
)

type PlaceHandler struct {
	placeService     service.PlaceService
	proximityService service.ProximityService
	gateService      service.GateService
	requestService   service.ChangeRequestService
	defaultRadius    float64
	maxRadius        float64
}

func NewPlaceHandler(
	placeService service.PlaceService,
	proximityService service.ProximityService,
	gateService service.GateService,
	requestService service.ChangeRequestService,
	defaultRadius, maxRadius float64,
) *PlaceHandler {
	return &PlaceHandler{
		placeService:     placeService,
		proximityService: proximityService,
		gateService:      gateService,
		requestService:   requestService,
		defaultRadius:    defaultRadius,
		maxRadius:        maxRadius,
	}
}

// PlaceMutationRequest is the body of direct create and update calls.
type PlaceMutationRequest struct {
	models.PlaceInput
	Reason string `json:"reason,omitempty"`
}

type DeletePlaceRequest struct {
	Reason string `json:"reason"`
}

// MutationResponse reports whether the change took effect or was queued for review.
type MutationResponse struct {
	Applied bool                 `json:"applied"`
	Place   *models.Place        `json:"masjid,omitempty"`
	Request *service.RequestView `json:"request,omitempty"`
}

// @Summary List places
// @Description Lists every place, or the places within radius meters of near=lat,lon
// @Tags Places
// @Produce json
// @Param near query string false "lat,lon"
// @Param radius query number false "Radius in meters"
// @Success 200 {object} respond.Envelope{data=[]models.Place}
// @Router /masjids [get]
func (h *PlaceHandler) GetAllPlaces(c *gin.Context) {
	if near := c.Query("near"); near != "" {
		center, err := parseNear(near)
		if err != nil {
			respond.Error(c, err)
			return
		}
		h.nearby(c, center, "radius")
		return
	}
	places, err := h.placeService.GetAllPlaces(c.Request.Context())
	if err != nil {
		respond.Error(c, err)
		return
	}
	if places == nil {
		places = []*models.Place{}
	}
	respond.OK(c, http.StatusOK, places)
}

// @Summary Places near a point
// @Tags Places
// @Produce json
// @Param longitude query number true "Longitude"
// @Param latitude query number true "Latitude"
// @Param maxDistance query number false "Radius in meters"
// @Success 200 {object} respond.Envelope{data=[]models.Place}
// @Failure 400 {object} respond.Envelope "Invalid coordinates"
// @Router /masjids/nearby [get]
func (h *PlaceHandler) GetNearbyPlaces(c *gin.Context) {
	lon, okLon, err := queryFloat(c, "longitude")
	if err != nil {
		respond.Error(c, err)
		return
	}
	lat, okLat, err := queryFloat(c, "latitude")
	if err != nil {
		respond.Error(c, err)
		return
	}
	if !okLon || !okLat {
		respond.Error(c, apperrors.Validation("latitude and longitude are required"))
		return
	}
	h.nearby(c, geo.Point{Latitude: lat, Longitude: lon}, "maxDistance")
}

func (h *PlaceHandler) nearby(c *gin.Context, center geo.Point, radiusParam string) {
	radius, ok, err := queryFloat(c, radiusParam)
	if err != nil {
		respond.Error(c, err)
		return
	}
	if !ok {
		radius = h.defaultRadius
	}
	if radius > h.maxRadius {
		respond.Error(c, apperrors.Validation("%s must not exceed %.0f meters", radiusParam, h.maxRadius).WithField(radiusParam, "too large"))
		return
	}

	seq, err := h.proximityService.FindNear(c.Request.Context(), center, radius)
	if err != nil {
		respond.Error(c, err)
		return
	}
	places, err := service.CollectNear(seq)
	if err != nil {
		respond.Error(c, err)
		return
	}
	respond.OK(c, http.StatusOK, places)
}

func parseNear(raw string) (geo.Point, error) {
	parts := strings.Split(raw, ",")
	if len(parts) != 2 {
		return geo.Point{}, apperrors.Validation("near must be lat,lon").WithField("near", "format")
	}
	lat, err1 := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	lon, err2 := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err1 != nil || err2 != nil {
		return geo.Point{}, apperrors.Validation("near must be lat,lon").WithField("near", "format")
	}
	return geo.Point{Latitude: lat, Longitude: lon}, nil
}

// @Summary Get a place
// @Tags Places
// @Produce json
// @Param id path string true "Place ID"
// @Success 200 {object} respond.Envelope{data=models.Place}
// @Failure 404 {object} respond.Envelope "Place not found"
// @Router /masjids/{id} [get]
func (h *PlaceHandler) GetPlace(c *gin.Context) {
	place, err := h.placeService.GetPlace(c.Request.Context(), c.Param("id"))
	if err != nil {
		respond.Error(c, err)
		return
	}
	respond.OK(c, http.StatusOK, place)
}

// @Summary Create a place
// @Description Applied directly for the main admin, queued as an add_place request otherwise
// @Tags Places
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body PlaceMutationRequest true "Place"
// @Success 201 {object} respond.Envelope{data=MutationResponse}
// @Success 202 {object} respond.Envelope{data=MutationResponse}
// @Router /masjids [post]
func (h *PlaceHandler) CreatePlace(c *gin.Context) {
	var req PlaceMutationRequest
	if !bindJSON(c, &req, false) {
		return
	}
	req.Normalize()
	h.mutate(c, http.StatusCreated, service.Mutation{
		Operation: service.OpCreate,
		Payload:   &req.PlaceInput,
		Reason:    req.Reason,
	})
}

// @Summary Update a place
// @Description Replaces every field of the place; queued as an edit_place request unless the caller is the main admin
// @Tags Places
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Place ID"
// @Param request body PlaceMutationRequest true "Place"
// @Success 200 {object} respond.Envelope{data=MutationResponse}
// @Success 202 {object} respond.Envelope{data=MutationResponse}
// @Router /masjids/{id} [put]
func (h *PlaceHandler) UpdatePlace(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req PlaceMutationRequest
	if !bindJSON(c, &req, false) {
		return
	}
	req.Normalize()
	h.mutate(c, http.StatusOK, service.Mutation{
		Operation: service.OpUpdate,
		PlaceID:   &id,
		Payload:   &req.PlaceInput,
		Reason:    req.Reason,
	})
}

// @Summary Delete a place
// @Description Main admin deletes directly; users queue a delete_place request with a reason; admins are refused
// @Tags Places
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Place ID"
// @Param request body DeletePlaceRequest false "Reason"
// @Success 200 {object} respond.Envelope{data=MutationResponse}
// @Success 202 {object} respond.Envelope{data=MutationResponse}
// @Failure 403 {object} respond.Envelope "Not permitted"
// @Router /masjids/{id} [delete]
func (h *PlaceHandler) DeletePlace(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req DeletePlaceRequest
	if !bindJSON(c, &req, true) {
		return
	}
	h.mutate(c, http.StatusOK, service.Mutation{
		Operation: service.OpDelete,
		PlaceID:   &id,
		Reason:    req.Reason,
	})
}

func (h *PlaceHandler) mutate(c *gin.Context, appliedStatus int, m service.Mutation) {
	result, err := h.gateService.AttemptMutation(c.Request.Context(), middleware.CallerFrom(c), m)
	if err != nil {
		respond.Error(c, err)
		return
	}
	writeMutation(c, h.requestService, appliedStatus, result)
}

// writeMutation answers appliedStatus with the place when the change took effect
// and 202 with the request view when it was queued.
func writeMutation(c *gin.Context, requests service.ChangeRequestService, appliedStatus int, result *service.MutationResult) {
	if result.Applied {
		respond.OK(c, appliedStatus, MutationResponse{Applied: true, Place: result.Place})
		return
	}
	views, err := requests.Views(c.Request.Context(), []*models.ChangeRequest{result.Request})
	if err != nil || len(views) == 0 {
		// the request is stored; fall back to the bare record
		views = []*service.RequestView{{ChangeRequest: result.Request}}
	}
	respond.OK(c, http.StatusAccepted, MutationResponse{Applied: false, Request: views[0]})
}
