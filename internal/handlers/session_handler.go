package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hireflow/assessment-service/internal/models"
	"github.com/hireflow/assessment-service/internal/repositories"
	"github.com/hireflow/assessment-service/internal/services"
	"github.com/hireflow/assessment-service/internal/utils"
	"github.com/hireflow/assessment-service/internal/validator"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// SessionHandler serves the HR-facing session endpoints: listing,
// inspection, time extension and spreadsheet export. The candidate
// surface lives in TakerHandler.
type SessionHandler struct {
	BaseHandler
	sessionService services.SessionService
	exportService  services.ExportService
	validator      *validator.Validator
}

func NewSessionHandler(sessionService services.SessionService, exportService services.ExportService, validator *validator.Validator, logger utils.Logger) *SessionHandler {
	return &SessionHandler{
		BaseHandler:    NewBaseHandler(logger),
		sessionService: sessionService,
		exportService:  exportService,
		validator:      validator,
	}
}

func (h *SessionHandler) GetSession(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}
	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	session, err := h.sessionService.GetByID(c.Request.Context(), id, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, session)
}

func (h *SessionHandler) ListSessions(c *gin.Context) {
	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	filters := parseSessionFilters(c)
	sessions, err := h.sessionService.List(c.Request.Context(), filters, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, sessions)
}

func (h *SessionHandler) GetSessionStats(c *gin.Context) {
	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	filters := parseSessionFilters(c)
	stats, err := h.sessionService.GetStats(c.Request.Context(), filters, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}

func (h *SessionHandler) ExtendTime(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	h.LogRequest(c, "Extending session time", "session_id", id)

	var req services.ExtendTimeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	session, err := h.sessionService.ExtendTime(c.Request.Context(), id, &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, session)
}

func (h *SessionHandler) ExportSessions(c *gin.Context) {
	h.LogRequest(c, "Exporting sessions to spreadsheet")

	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	filters := parseSessionFilters(c)
	data, filename, err := h.exportService.ExportSessions(c.Request.Context(), filters, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, xlsxContentType, data)
}

func (h *SessionHandler) ExportTemplateResults(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	h.LogRequest(c, "Exporting template results", "template_id", id)

	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	data, filename, err := h.exportService.ExportTemplateResults(c.Request.Context(), id, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, xlsxContentType, data)
}

func parseSessionFilters(c *gin.Context) repositories.SessionFilters {
	filters := repositories.SessionFilters{
		Limit:     parseIntQuery(c, "limit", 20),
		Offset:    parseIntQuery(c, "offset", 0),
		SortBy:    c.Query("sort_by"),
		SortOrder: c.Query("sort_order"),
	}
	if status := c.Query("status"); status != "" {
		ss := models.SessionStatus(status)
		filters.Status = &ss
	}
	if v := parseUintQuery(c, "template_id"); v != nil {
		filters.TemplateID = v
	}
	if v := parseUintQuery(c, "job_id"); v != nil {
		filters.JobID = v
	}
	if v := parseUintQuery(c, "candidate_id"); v != nil {
		filters.CandidateID = v
	}
	if from := c.Query("date_from"); from != "" {
		if t, err := time.Parse(time.RFC3339, from); err == nil {
			filters.DateFrom = &t
		}
	}
	if to := c.Query("date_to"); to != "" {
		if t, err := time.Parse(time.RFC3339, to); err == nil {
			filters.DateTo = &t
		}
	}
	return filters
}

func parseUintQuery(c *gin.Context, param string) *uint {
	v := parseIntQuery(c, param, 0)
	if v <= 0 {
		return nil
	}
	u := uint(v)
	return &u
}
