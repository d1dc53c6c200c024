package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mehrbod2002/masjidmap/internal/api/respond"
	"github.com/mehrbod2002/masjidmap/internal/models"
	"github.com/mehrbod2002/masjidmap/internal/service"
)

const (
	defaultLogPage  = 1
	defaultLogLimit = 50
)

type LogHandler struct {
	logService service.LogService
}

func NewLogHandler(logService service.LogService) *LogHandler {
	return &LogHandler{logService: logService}
}

// @Summary Get all logs
// @Description Retrieves the audit trail, newest first (main admin only)
// @Tags Logs
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page" default(1)
// @Param limit query int false "Page size" default(50)
// @Success 200 {object} respond.Envelope{data=[]models.LogEntry}
// @Router /admin/logs [get]
func (h *LogHandler) GetAllLogs(c *gin.Context) {
	page, limit, ok := pageParams(c)
	if !ok {
		return
	}
	logs, err := h.logService.GetAllLogs(c.Request.Context(), page, limit)
	if err != nil {
		respond.Error(c, err)
		return
	}
	respond.OK(c, http.StatusOK, nonNilLogs(logs))
}

// @Summary Get logs by account
// @Tags Logs
// @Produce json
// @Security BearerAuth
// @Param user_id path string true "Account ID"
// @Success 200 {object} respond.Envelope{data=[]models.LogEntry}
// @Failure 400 {object} respond.Envelope "Invalid account ID"
// @Router /admin/logs/user/{user_id} [get]
func (h *LogHandler) GetLogsByUser(c *gin.Context) {
	page, limit, ok := pageParams(c)
	if !ok {
		return
	}
	logs, err := h.logService.GetLogsByActor(c.Request.Context(), c.Param("user_id"), page, limit)
	if err != nil {
		respond.Error(c, err)
		return
	}
	respond.OK(c, http.StatusOK, nonNilLogs(logs))
}

func pageParams(c *gin.Context) (int, int, bool) {
	page, err := queryInt(c, "page", defaultLogPage)
	if err != nil {
		respond.Error(c, err)
		return 0, 0, false
	}
	limit, err := queryInt(c, "limit", defaultLogLimit)
	if err != nil {
		respond.Error(c, err)
		return 0, 0, false
	}
	return page, limit, true
}

func nonNilLogs(logs []*models.LogEntry) []*models.LogEntry {
	if logs == nil {
		return []*models.LogEntry{}
	}
	return logs
}
