package services

import (
	"context"
	"time"

	"github.com/hireflow/assessment-service/internal/models"
	"github.com/hireflow/assessment-service/internal/repositories"
	"github.com/hireflow/assessment-service/internal/validator"
)

// ===== REQUEST ALIASES =====
// Request DTOs live in the validator package next to their rules.

type (
	CreateTemplateRequest  = validator.TemplateCreateRequest
	UpdateTemplateRequest  = validator.TemplateUpdateRequest
	TemplateQuestionInput  = validator.TemplateQuestionRequest
	InviteCandidateRequest = validator.InviteCandidateRequest
	BulkInviteRequest      = validator.BulkInviteRequest
	SubmitAnswerRequest    = validator.SubmitAnswerRequest
	ExtendTimeRequest      = validator.ExtendTimeRequest
)

// ===== RESPONSE DTOS =====

type TemplateResponse struct {
	ID            uint                  `json:"id"`
	Title         string                `json:"title"`
	Description   string                `json:"description,omitempty"`
	Status        models.TemplateStatus `json:"status"`
	ScaleType     int                   `json:"scale_type"`
	TimeLimit     *int                  `json:"time_limit,omitempty"`
	QuestionCount int                   `json:"question_count"`
	SessionCount  int                   `json:"session_count"`
	CreatedBy     string                `json:"created_by"`
	CreatedAt     time.Time             `json:"created_at"`
	UpdatedAt     time.Time             `json:"updated_at"`
}

type TemplateDetailResponse struct {
	TemplateResponse
	ScaleLabels map[string]string  `json:"scale_labels,omitempty"`
	Questions   []QuestionResponse `json:"questions"`
}

type QuestionResponse struct {
	ID       uint   `json:"id"`
	Stem     string `json:"stem"`
	Position int    `json:"position"`
}

type TemplateListResponse struct {
	Templates []TemplateResponse `json:"templates"`
	Total     int64              `json:"total"`
	Limit     int                `json:"limit"`
	Offset    int                `json:"offset"`
}

type InvitationResponse struct {
	SessionID   uint      `json:"session_id"`
	Token       string    `json:"token"`
	TemplateID  uint      `json:"template_id"`
	CandidateID uint      `json:"candidate_id"`
	JobID       uint      `json:"job_id"`
	ExpiresAt   time.Time `json:"expires_at"`
}

type BulkInviteResponse struct {
	Invitations []InvitationResponse `json:"invitations"`
	Failed      []BulkInviteFailure  `json:"failed,omitempty"`
}

type BulkInviteFailure struct {
	Email  string `json:"email"`
	Reason string `json:"reason"`
}

// SessionView is what the candidate-facing surface returns. It never
// exposes reverse-scoring flags or other candidates' data.
type SessionView struct {
	Token           string               `json:"token"`
	Status          models.SessionStatus `json:"status"`
	EndReason       *string              `json:"end_reason,omitempty"`
	TemplateTitle   string               `json:"template_title"`
	JobTitle        string               `json:"job_title,omitempty"`
	CandidateName   string               `json:"candidate_name"`
	ScaleType       int                  `json:"scale_type"`
	ScaleLabels     map[string]string    `json:"scale_labels,omitempty"`
	TimeLimit       *int                 `json:"time_limit,omitempty"`
	TimeRemaining   *int                 `json:"time_remaining,omitempty"`
	RequiresConsent bool                 `json:"requires_consent"`
	ConsentURL      *string              `json:"consent_url,omitempty"`
	ConsentAccepted bool                 `json:"consent_accepted"`
	StartedAt       *time.Time           `json:"started_at,omitempty"`
	Questions       []QuestionResponse   `json:"questions,omitempty"`
	Answers         map[uint]int         `json:"answers,omitempty"`
}

type SessionResponse struct {
	ID            uint                 `json:"id"`
	Token         string               `json:"token"`
	Status        models.SessionStatus `json:"status"`
	EndReason     *string              `json:"end_reason,omitempty"`
	TemplateID    uint                 `json:"template_id"`
	CandidateID   uint                 `json:"candidate_id"`
	JobID         uint                 `json:"job_id"`
	InvitedBy     string               `json:"invited_by"`
	StartedAt     *time.Time           `json:"started_at,omitempty"`
	CompletedAt   *time.Time           `json:"completed_at,omitempty"`
	ExpiresAt     time.Time            `json:"expires_at"`
	TimeLimit     *int                 `json:"time_limit,omitempty"`
	AnsweredCount int                  `json:"answered_count"`
	CreatedAt     time.Time            `json:"created_at"`
}

type SessionDetailResponse struct {
	SessionResponse
	CandidateName  string           `json:"candidate_name"`
	CandidateEmail string           `json:"candidate_email"`
	JobTitle       string           `json:"job_title"`
	TemplateTitle  string           `json:"template_title"`
	Answers        []AnswerResponse `json:"answers"`
}

type AnswerResponse struct {
	QuestionID     uint      `json:"question_id"`
	Score          int       `json:"score"`
	ScoredValue    int       `json:"scored_value"`
	LastModifiedAt time.Time `json:"last_modified_at"`
}

type SessionListResponse struct {
	Sessions []SessionResponse `json:"sessions"`
	Total    int64             `json:"total"`
	Limit    int               `json:"limit"`
	Offset   int               `json:"offset"`
}

type TimeRemainingResponse struct {
	TimeRemaining *int   `json:"time_remaining,omitempty"`
	Status        string `json:"status"`
}

// ===== SERVICE INTERFACES =====

// TemplateService manages Likert assessment templates and their questions.
type TemplateService interface {
	Create(ctx context.Context, req *CreateTemplateRequest, creatorID string) (*TemplateDetailResponse, error)
	GetByID(ctx context.Context, id uint, userID string) (*TemplateResponse, error)
	GetByIDWithQuestions(ctx context.Context, id uint, userID string) (*TemplateDetailResponse, error)
	Update(ctx context.Context, id uint, req *UpdateTemplateRequest, userID string) (*TemplateResponse, error)
	Delete(ctx context.Context, id uint, userID string) error
	List(ctx context.Context, filters repositories.TemplateFilters, userID string) (*TemplateListResponse, error)
	ReplaceQuestions(ctx context.Context, id uint, questions []TemplateQuestionInput, userID string) (*TemplateDetailResponse, error)
	GetStats(ctx context.Context, id uint, userID string) (*repositories.TemplateStats, error)
}

// InvitationService creates and revokes token-addressed session invitations.
type InvitationService interface {
	Invite(ctx context.Context, req *InviteCandidateRequest, inviterID string) (*InvitationResponse, error)
	BulkInvite(ctx context.Context, req *BulkInviteRequest, inviterID string) (*BulkInviteResponse, error)
	Revoke(ctx context.Context, sessionID uint, userID string) error
}

// SessionService drives the candidate-facing session lifecycle and the
// HR-facing session management operations.
type SessionService interface {
	// Candidate surface (token-addressed, no auth)
	GetByToken(ctx context.Context, token string) (*SessionView, error)
	AcceptAgreement(ctx context.Context, token string) (*SessionView, error)
	Start(ctx context.Context, token string) (*SessionView, error)
	SubmitAnswer(ctx context.Context, token string, req *SubmitAnswerRequest) error
	Complete(ctx context.Context, token string) (*SessionView, error)
	GetTimeRemaining(ctx context.Context, token string) (*TimeRemainingResponse, error)

	// HR surface
	GetByID(ctx context.Context, id uint, userID string) (*SessionDetailResponse, error)
	List(ctx context.Context, filters repositories.SessionFilters, userID string) (*SessionListResponse, error)
	GetStats(ctx context.Context, filters repositories.SessionFilters, userID string) (*repositories.SessionStats, error)
	ExtendTime(ctx context.Context, id uint, req *ExtendTimeRequest, userID string) (*SessionResponse, error)

	// Background maintenance
	HandleTimeout(ctx context.Context, sessionID uint) error
	SweepExpired(ctx context.Context) (int64, error)
}

// ExportService renders session results as spreadsheets.
type ExportService interface {
	ExportSessions(ctx context.Context, filters repositories.SessionFilters, userID string) ([]byte, string, error)
	ExportTemplateResults(ctx context.Context, templateID uint, userID string) ([]byte, string, error)
}

// ServiceManager wires services together and owns their lifecycle.
type ServiceManager interface {
	Template() TemplateService
	Invitation() InvitationService
	Session() SessionService
	Export() ExportService

	Initialize(ctx context.Context) error
	HealthCheck(ctx context.Context) error
	Shutdown(ctx context.Context) error
}
