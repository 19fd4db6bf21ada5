package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hireflow/assessment-service/internal/services"
	"github.com/hireflow/assessment-service/internal/utils"
	"github.com/hireflow/assessment-service/internal/validator"
)

// TakerHandler serves the candidate-facing, token-addressed surface.
// There is no authentication here: the opaque session token in the URL
// is the only credential.
type TakerHandler struct {
	BaseHandler
	sessionService services.SessionService
	validator      *validator.Validator
}

func NewTakerHandler(sessionService services.SessionService, validator *validator.Validator, logger utils.Logger) *TakerHandler {
	return &TakerHandler{
		BaseHandler:    NewBaseHandler(logger),
		sessionService: sessionService,
		validator:      validator,
	}
}

// GetSession returns the current taker view of the session.
func (h *TakerHandler) GetSession(c *gin.Context) {
	token := c.Param("token")

	view, err := h.sessionService.GetByToken(c.Request.Context(), token)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, view)
}

// AcceptAgreement records consent for sessions whose job requires it.
func (h *TakerHandler) AcceptAgreement(c *gin.Context) {
	token := c.Param("token")
	h.LogRequest(c, "Accepting agreement")

	view, err := h.sessionService.AcceptAgreement(c.Request.Context(), token)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, view)
}

// StartSession begins or resumes the assessment.
func (h *TakerHandler) StartSession(c *gin.Context) {
	token := c.Param("token")
	h.LogRequest(c, "Starting session")

	view, err := h.sessionService.Start(c.Request.Context(), token)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, view)
}

// SubmitAnswer records one Likert response.
func (h *TakerHandler) SubmitAnswer(c *gin.Context) {
	token := c.Param("token")

	var req services.SubmitAnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	if err := h.sessionService.SubmitAnswer(c.Request.Context(), token, &req); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusNoContent, nil)
}

// CompleteSession finishes the assessment manually.
func (h *TakerHandler) CompleteSession(c *gin.Context) {
	token := c.Param("token")
	h.LogRequest(c, "Completing session")

	view, err := h.sessionService.Complete(c.Request.Context(), token)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, view)
}

// GetTimeRemaining reports the server-side countdown.
func (h *TakerHandler) GetTimeRemaining(c *gin.Context) {
	token := c.Param("token")

	resp, err := h.sessionService.GetTimeRemaining(c.Request.Context(), token)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
