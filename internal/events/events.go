package events

import (
	"time"

	"github.com/google/uuid"
)

// Event types published to the assessment-sessions topic.
const (
	EventSessionInvited   = "session.invited"
	EventSessionStarted   = "session.started"
	EventSessionCompleted = "session.completed"
	EventSessionTimedOut  = "session.timed_out"
	EventSessionExpired   = "session.expired"
	EventSessionRevoked   = "session.revoked"
)

const eventSource = "assessment-service"

// Event is the envelope every published message uses.
type Event struct {
	ID        string      `json:"id"`
	Type      string      `json:"type"`
	Source    string      `json:"source"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

func NewEvent(eventType string, data interface{}) Event {
	return Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Source:    eventSource,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}

// SessionInvitedEvent is emitted when an HR user issues an invitation.
type SessionInvitedEvent struct {
	SessionID   uint      `json:"session_id"`
	Token       string    `json:"token"`
	TemplateID  uint      `json:"template_id"`
	CandidateID uint      `json:"candidate_id"`
	JobID       uint      `json:"job_id"`
	InvitedBy   string    `json:"invited_by"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// SessionStartedEvent is emitted the first time a candidate starts a session.
type SessionStartedEvent struct {
	SessionID   uint      `json:"session_id"`
	TemplateID  uint      `json:"template_id"`
	CandidateID uint      `json:"candidate_id"`
	JobID       uint      `json:"job_id"`
	StartedAt   time.Time `json:"started_at"`
	TimeLimit   *int      `json:"time_limit,omitempty"`
}

// SessionCompletedEvent covers both manual and timed-out completion;
// EndReason distinguishes them.
type SessionCompletedEvent struct {
	SessionID       uint      `json:"session_id"`
	TemplateID      uint      `json:"template_id"`
	CandidateID     uint      `json:"candidate_id"`
	JobID           uint      `json:"job_id"`
	EndReason       string    `json:"end_reason"`
	AnsweredCount   int       `json:"answered_count"`
	QuestionCount   int       `json:"question_count"`
	CompletedAt     time.Time `json:"completed_at"`
	DurationSeconds int       `json:"duration_seconds"`
}

// SessionExpiredEvent is emitted when the expiry sweeper marks a
// never-finished session as expired.
type SessionExpiredEvent struct {
	SessionID   uint      `json:"session_id"`
	TemplateID  uint      `json:"template_id"`
	CandidateID uint      `json:"candidate_id"`
	ExpiredAt   time.Time `json:"expired_at"`
}
