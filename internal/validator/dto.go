package validator

import "time"

// ===== TEMPLATE REQUESTS =====

type TemplateCreateRequest struct {
	Title       string                    `json:"title" validate:"required,template_title"`
	Description string                    `json:"description" validate:"omitempty,max=2000"`
	ScaleType   int                       `json:"scale_type" validate:"required,scale_type"`
	ScaleLabels map[string]string         `json:"scale_labels,omitempty"`
	TimeLimit   *int                      `json:"time_limit,omitempty" validate:"omitempty,session_time_limit"`
	Questions   []TemplateQuestionRequest `json:"questions" validate:"omitempty,dive"`
}

type TemplateUpdateRequest struct {
	Title       *string           `json:"title,omitempty" validate:"omitempty,template_title"`
	Description *string           `json:"description,omitempty" validate:"omitempty,max=2000"`
	ScaleLabels map[string]string `json:"scale_labels,omitempty"`
	TimeLimit   *int              `json:"time_limit,omitempty" validate:"omitempty,session_time_limit"`
	Status      *string           `json:"status,omitempty" validate:"omitempty,oneof=Draft Active Archived"`
}

type TemplateQuestionRequest struct {
	Stem          string `json:"stem" validate:"required,question_stem"`
	ReverseScored bool   `json:"reverse_scored"`
}

// ===== INVITATION REQUESTS =====

type InviteCandidateRequest struct {
	TemplateID    uint       `json:"template_id" validate:"required"`
	JobID         uint       `json:"job_id" validate:"required"`
	CandidateID   *uint      `json:"candidate_id,omitempty"`
	FullName      string     `json:"full_name" validate:"required_without=CandidateID,omitempty,min=2,max=200"`
	Email         string     `json:"email" validate:"required_without=CandidateID,omitempty,email"`
	Phone         string     `json:"phone,omitempty" validate:"omitempty,max=32"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty" validate:"omitempty,future_date"`
	ExpiresInDays *int       `json:"expires_in_days,omitempty" validate:"omitempty,min=1,max=90"`
}

type BulkInviteRequest struct {
	TemplateID uint                   `json:"template_id" validate:"required"`
	JobID      uint                   `json:"job_id" validate:"required"`
	Candidates []InviteCandidateEntry `json:"candidates" validate:"required,min=1,max=500,dive"`
	ExpiresAt  *time.Time             `json:"expires_at,omitempty" validate:"omitempty,future_date"`
}

type InviteCandidateEntry struct {
	FullName string `json:"full_name" validate:"required,min=2,max=200"`
	Email    string `json:"email" validate:"required,email"`
	Phone    string `json:"phone,omitempty" validate:"omitempty,max=32"`
}

// ===== TAKER REQUESTS =====

type SubmitAnswerRequest struct {
	QuestionID uint `json:"question_id" validate:"required"`
	Score      int  `json:"score" validate:"required,min=1"`
}

// ===== HR SESSION REQUESTS =====

type ExtendTimeRequest struct {
	AdditionalSeconds int    `json:"additional_seconds" validate:"required,min=30,max=7200"`
	Reason            string `json:"reason,omitempty" validate:"omitempty,max=500"`
}
