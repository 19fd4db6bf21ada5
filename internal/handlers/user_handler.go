package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hireflow/assessment-service/internal/repositories"
	"github.com/hireflow/assessment-service/internal/utils"
)

// UserHandler exposes the Casdoor-backed user directory so the HR UI
// can pick inviters and assignees.
type UserHandler struct {
	BaseHandler
	userRepo repositories.UserRepository
}

func NewUserHandler(userRepo repositories.UserRepository, logger utils.Logger) *UserHandler {
	return &UserHandler{
		BaseHandler: NewBaseHandler(logger),
		userRepo:    userRepo,
	}
}

func (h *UserHandler) ListUsers(c *gin.Context) {
	h.LogRequest(c, "Listing users")

	limit := parseIntQuery(c, "limit", 20)
	if limit > 100 {
		limit = 100
	}
	offset := parseIntQuery(c, "offset", 0)

	users, err := h.userRepo.List(c.Request.Context(), limit, offset)
	if err != nil {
		h.logger.Error("Failed to list users", "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Message: "Failed to list users",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"users":  users,
		"limit":  limit,
		"offset": offset,
	})
}

func (h *UserHandler) SearchUsers(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Search query parameter 'q' is required",
		})
		return
	}

	h.LogRequest(c, "Searching users", "query", query)

	limit := parseIntQuery(c, "limit", 20)
	if limit > 100 {
		limit = 100
	}

	users, err := h.userRepo.Search(c.Request.Context(), query, limit)
	if err != nil {
		h.logger.Error("Failed to search users", "error", err, "query", query)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Message: "Failed to search users",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"users": users})
}

func (h *UserHandler) GetUser(c *gin.Context) {
	userID := c.Param("id")
	if userID == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "User ID is required",
		})
		return
	}

	h.LogRequest(c, "Getting user", "user_id", userID)

	user, err := h.userRepo.GetByID(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Message: "User not found",
		})
		return
	}

	c.JSON(http.StatusOK, user)
}
