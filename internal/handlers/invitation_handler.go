package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hireflow/assessment-service/internal/services"
	"github.com/hireflow/assessment-service/internal/utils"
	"github.com/hireflow/assessment-service/internal/validator"
)

type InvitationHandler struct {
	BaseHandler
	invitationService services.InvitationService
	validator         *validator.Validator
}

func NewInvitationHandler(invitationService services.InvitationService, validator *validator.Validator, logger utils.Logger) *InvitationHandler {
	return &InvitationHandler{
		BaseHandler:       NewBaseHandler(logger),
		invitationService: invitationService,
		validator:         validator,
	}
}

func (h *InvitationHandler) InviteCandidate(c *gin.Context) {
	h.LogRequest(c, "Inviting candidate to assessment")

	var req services.InviteCandidateRequest
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

	invitation, err := h.invitationService.Invite(c.Request.Context(), &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, invitation)
}

func (h *InvitationHandler) BulkInvite(c *gin.Context) {
	h.LogRequest(c, "Bulk inviting candidates")

	var req services.BulkInviteRequest
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

	result, err := h.invitationService.BulkInvite(c.Request.Context(), &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	status := http.StatusCreated
	if len(result.Failed) > 0 {
		status = http.StatusMultiStatus
	}
	c.JSON(status, result)
}

func (h *InvitationHandler) RevokeInvitation(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	h.LogRequest(c, "Revoking invitation", "session_id", id)

	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	if err := h.invitationService.Revoke(c.Request.Context(), id, userID); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusNoContent, nil)
}
