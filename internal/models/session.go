package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type SessionStatus string

const (
	SessionPending    SessionStatus = "pending"
	SessionInProgress SessionStatus = "in_progress"
	SessionCompleted  SessionStatus = "completed"
	SessionExpired    SessionStatus = "expired"
)

const (
	SessionEndReasonManual  = "manual"
	SessionEndReasonTimeout = "time_out"
	SessionEndReasonExpired = "expired"
	SessionEndReasonRevoked = "revoked"
)

// AssessmentSession is one candidate's exclusive, token-addressed test instance.
// The token is the sole credential for all taker operations; there is no login.
//
// Lifecycle: created by an invitation (pending) -> started once (in_progress,
// StartedAt set) -> answered incrementally -> completed exactly once (manual or
// timeout) -> immutable. ExpiresAt bounds the whole lifecycle regardless of the
// per-session countdown.
type AssessmentSession struct {
	ID          uint          `json:"id" gorm:"primaryKey"`
	Token       string        `json:"token" gorm:"uniqueIndex;not null;size:64"`
	TemplateID  uint          `json:"template_id" gorm:"not null;index"`
	CandidateID uint          `json:"candidate_id" gorm:"not null;index"`
	JobID       uint          `json:"job_id" gorm:"not null;index"`
	Status      SessionStatus `json:"status" gorm:"default:pending;index"`

	// Timing
	StartedAt   *time.Time `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at"`
	ExpiresAt   time.Time  `json:"expires_at" gorm:"not null;index"`

	// TimeLimit in seconds, snapshotted from the template at invitation time so a
	// later template edit cannot change the budget of sessions already sent out.
	TimeLimit *int `json:"time_limit"`

	EndReason *string `json:"end_reason" gorm:"type:text"`

	// Consent
	AgreementAcceptedAt *time.Time `json:"agreement_accepted_at"`

	// Metadata
	InvitedBy   string         `json:"invited_by" gorm:"not null;index;size:255"`
	IPAddress   *string        `json:"ip_address" gorm:"size:45"`
	UserAgent   *string        `json:"user_agent" gorm:"type:text"`
	SessionData datatypes.JSON `json:"session_data" gorm:"type:jsonb"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	// Relations
	Template  AssessmentTemplate `json:"template" gorm:"foreignKey:TemplateID"`
	Candidate Candidate          `json:"candidate" gorm:"foreignKey:CandidateID"`
	Job       Job                `json:"job" gorm:"foreignKey:JobID"`
	Answers   []SessionAnswer    `json:"answers" gorm:"foreignKey:SessionID"`
}

// SessionAnswer holds the current value for one (session, question) pair.
// A later submission overwrites the earlier one; only the latest value counts.
type SessionAnswer struct {
	ID         uint `json:"id" gorm:"primaryKey"`
	SessionID  uint `json:"session_id" gorm:"not null;index;uniqueIndex:idx_session_question"`
	QuestionID uint `json:"question_id" gorm:"not null;index;uniqueIndex:idx_session_question"`

	// Score is the raw value the taker picked, in [1, template scale type].
	Score int `json:"score" gorm:"not null"`

	// ScoredValue is the reverse-coded value for reverse-scored items, equal to
	// Score otherwise.
	ScoredValue int `json:"scored_value" gorm:"not null"`

	FirstAnsweredAt time.Time `json:"first_answered_at"`
	LastModifiedAt  time.Time `json:"last_modified_at"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Session  AssessmentSession `json:"-" gorm:"foreignKey:SessionID"`
	Question TemplateQuestion  `json:"-" gorm:"foreignKey:QuestionID"`
}

func (AssessmentSession) TableName() string {
	return "assessment_sessions"
}

func (SessionAnswer) TableName() string {
	return "session_answers"
}

// IsTerminal reports whether the session can no longer be interacted with.
func (s *AssessmentSession) IsTerminal() bool {
	return s.Status == SessionCompleted || s.Status == SessionExpired
}

// PastExpiry reports whether the absolute expiry has passed at the given instant.
func (s *AssessmentSession) PastExpiry(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// Deadline returns the instant the countdown runs out, derived from
// StartedAt + TimeLimit. The bool is false for untimed or not-yet-started
// sessions. Remaining time is always recomputed from this wall-clock deadline,
// never accumulated from ticks.
func (s *AssessmentSession) Deadline() (time.Time, bool) {
	if s.StartedAt == nil || s.TimeLimit == nil {
		return time.Time{}, false
	}
	return s.StartedAt.Add(time.Duration(*s.TimeLimit) * time.Second), true
}

// TimeRemaining returns whole seconds left on the countdown at the given
// instant, clamped at zero. Untimed sessions report 0, false.
func (s *AssessmentSession) TimeRemaining(now time.Time) (int, bool) {
	deadline, ok := s.Deadline()
	if !ok {
		return 0, false
	}
	remaining := int(deadline.Sub(now).Seconds())
	if remaining < 0 {
		remaining = 0
	}
	return remaining, true
}
