package repositories

import (
	"time"

	"github.com/hireflow/assessment-service/internal/models"
)

// ===== SHARED FILTER STRUCTS =====

type TemplateFilters struct {
	Status    *models.TemplateStatus `json:"status"`
	CreatedBy *string                `json:"created_by"`
	DateFrom  *time.Time             `json:"date_from"`
	DateTo    *time.Time             `json:"date_to"`
	Limit     int                    `json:"limit"`
	Offset    int                    `json:"offset"`
	SortBy    string                 `json:"sort_by"`    // "created_at", "title"
	SortOrder string                 `json:"sort_order"` // "asc", "desc"
}

type SessionFilters struct {
	Status      *models.SessionStatus `json:"status"`
	TemplateID  *uint                 `json:"template_id"`
	JobID       *uint                 `json:"job_id"`
	CandidateID *uint                 `json:"candidate_id"`
	InvitedBy   *string               `json:"invited_by"`
	DateFrom    *time.Time            `json:"date_from"`
	DateTo      *time.Time            `json:"date_to"`
	Limit       int                   `json:"limit"`
	Offset      int                   `json:"offset"`
	SortBy      string                `json:"sort_by"`
	SortOrder   string                `json:"sort_order"`
}

// ===== SHARED STATISTICS STRUCTS =====

type TemplateStats struct {
	TotalSessions     int     `json:"total_sessions"`
	CompletedSessions int     `json:"completed_sessions"`
	ExpiredSessions   int     `json:"expired_sessions"`
	CompletionRate    float64 `json:"completion_rate"`
	AverageDuration   int     `json:"average_duration"` // seconds, completed sessions only
	QuestionCount     int     `json:"question_count"`
}

type SessionStats struct {
	TotalSessions   int                          `json:"total_sessions"`
	StatusBreakdown map[models.SessionStatus]int `json:"status_breakdown"`
	TimedOut        int                          `json:"timed_out"`
	AverageDuration int                          `json:"average_duration"` // seconds
}
