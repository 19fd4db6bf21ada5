package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/hireflow/assessment-service/internal/config"
	"github.com/hireflow/assessment-service/internal/models"
	"github.com/hireflow/assessment-service/internal/repositories"
	"github.com/hireflow/assessment-service/internal/services"
	"github.com/hireflow/assessment-service/internal/utils"
	"github.com/hireflow/assessment-service/internal/validator"
)

type HandlerManager struct {
	templateHandler   *TemplateHandler
	invitationHandler *InvitationHandler
	sessionHandler    *SessionHandler
	takerHandler      *TakerHandler
	userHandler       *UserHandler
	authMiddleware    *CasdoorAuthMiddleware
}

func NewHandlerManager(
	serviceManager services.ServiceManager,
	validator *validator.Validator,
	logger utils.Logger,
	casdoorConfig config.CasdoorConfig,
	userRepo repositories.UserRepository,
) *HandlerManager {
	authMiddleware := NewCasdoorAuthMiddleware(casdoorConfig, userRepo)

	return &HandlerManager{
		templateHandler:   NewTemplateHandler(serviceManager.Template(), validator, logger),
		invitationHandler: NewInvitationHandler(serviceManager.Invitation(), validator, logger),
		sessionHandler:    NewSessionHandler(serviceManager.Session(), serviceManager.Export(), validator, logger),
		takerHandler:      NewTakerHandler(serviceManager.Session(), validator, logger),
		userHandler:       NewUserHandler(userRepo, logger),
		authMiddleware:    authMiddleware,
	}
}

// SetupRoutes sets up all API routes
func (hm *HandlerManager) SetupRoutes(router *gin.Engine) {
	// Candidate surface. Addressed purely by invitation token, no auth.
	take := router.Group("/api/v1/take/:token")
	{
		take.GET("", hm.takerHandler.GetSession)
		take.POST("/agreement", hm.takerHandler.AcceptAgreement)
		take.POST("/start", hm.takerHandler.StartSession)
		take.POST("/answers", hm.takerHandler.SubmitAnswer)
		take.POST("/complete", hm.takerHandler.CompleteSession)
		take.GET("/time-remaining", hm.takerHandler.GetTimeRemaining)
	}

	// HR surface with authentication
	v1 := router.Group("/api/v1")
	v1.Use(hm.authMiddleware.AuthMiddleware())
	{
		// Template routes
		templates := v1.Group("/templates")
		{
			// Create/modify templates - Recruiters, HR Managers and Admins
			templates.POST("", hm.authMiddleware.RequireRoleMiddleware(models.RoleRecruiter, models.RoleHRManager), hm.templateHandler.CreateTemplate)
			templates.PUT("/:id", hm.authMiddleware.RequireRoleMiddleware(models.RoleRecruiter, models.RoleHRManager), hm.templateHandler.UpdateTemplate)
			templates.DELETE("/:id", hm.authMiddleware.RequireRoleMiddleware(models.RoleRecruiter, models.RoleHRManager), hm.templateHandler.DeleteTemplate)
			templates.PUT("/:id/questions", hm.authMiddleware.RequireRoleMiddleware(models.RoleRecruiter, models.RoleHRManager), hm.templateHandler.ReplaceQuestions)

			// View templates - all authenticated users
			templates.GET("", hm.templateHandler.ListTemplates)
			templates.GET("/:id", hm.templateHandler.GetTemplate)
			templates.GET("/:id/details", hm.templateHandler.GetTemplateWithQuestions)

			// Stats and exports
			templates.GET("/:id/stats", hm.authMiddleware.RequireRoleMiddleware(models.RoleRecruiter, models.RoleHRManager), hm.templateHandler.GetTemplateStats)
			templates.GET("/:id/export", hm.authMiddleware.RequireRoleMiddleware(models.RoleRecruiter, models.RoleHRManager), hm.sessionHandler.ExportTemplateResults)
		}

		// Invitation routes - Recruiters, HR Managers and Admins
		invitations := v1.Group("/invitations")
		invitations.Use(hm.authMiddleware.RequireRoleMiddleware(models.RoleRecruiter, models.RoleHRManager))
		{
			invitations.POST("", hm.invitationHandler.InviteCandidate)
			invitations.POST("/bulk", hm.invitationHandler.BulkInvite)
			invitations.DELETE("/:id", hm.invitationHandler.RevokeInvitation)
		}

		// Session routes (HR view of candidate sessions)
		sessions := v1.Group("/sessions")
		{
			sessions.GET("", hm.sessionHandler.ListSessions)
			sessions.GET("/stats", hm.sessionHandler.GetSessionStats)
			sessions.GET("/export", hm.authMiddleware.RequireRoleMiddleware(models.RoleRecruiter, models.RoleHRManager), hm.sessionHandler.ExportSessions)
			sessions.GET("/:id", hm.sessionHandler.GetSession)
			sessions.POST("/:id/extend", hm.authMiddleware.RequireRoleMiddleware(models.RoleHRManager), hm.sessionHandler.ExtendTime)
		}

		// User routes (directory lookups for the HR UI)
		users := v1.Group("/users")
		{
			users.GET("", hm.userHandler.ListUsers)
			users.GET("/search", hm.userHandler.SearchUsers)
			users.GET("/:id", hm.userHandler.GetUser)
		}
	}

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "healthy",
			"service": "assessment-service",
		})
	})
}
