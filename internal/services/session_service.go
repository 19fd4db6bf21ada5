package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hireflow/assessment-service/internal/events"
	"github.com/hireflow/assessment-service/internal/models"
	"github.com/hireflow/assessment-service/internal/repositories"
	"github.com/hireflow/assessment-service/internal/validator"
	"gorm.io/gorm"
)

type sessionService struct {
	repo           repositories.Repository
	db             *gorm.DB
	logger         *slog.Logger
	validator      *validator.Validator
	eventPublisher events.EventPublisher
}

func NewSessionService(repo repositories.Repository, db *gorm.DB, logger *slog.Logger, validator *validator.Validator, eventPublisher events.EventPublisher) SessionService {
	return &sessionService{
		repo:           repo,
		db:             db,
		logger:         logger,
		validator:      validator,
		eventPublisher: eventPublisher,
	}
}

// ===== CANDIDATE SURFACE =====

func (s *sessionService) GetByToken(ctx context.Context, token string) (*SessionView, error) {
	session, err := s.loadSessionByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	return s.buildSessionView(session), nil
}

func (s *sessionService) AcceptAgreement(ctx context.Context, token string) (*SessionView, error) {
	session, err := s.loadSessionByToken(ctx, token)
	if err != nil {
		return nil, err
	}

	if session.IsTerminal() {
		return nil, ErrSessionAlreadyCompleted
	}

	if session.AgreementAcceptedAt == nil {
		session.AgreementAcceptedAt = timePtr(time.Now())
		if err := s.repo.Session().Update(ctx, s.db, session); err != nil {
			return nil, fmt.Errorf("failed to record agreement: %w", err)
		}
	}

	return s.buildSessionView(session), nil
}

// Start begins the session, snapshotting the time limit at the moment of
// start. Calling it again on a running session is a resume: the deadline
// is recomputed from the original start, never refreshed.
func (s *sessionService) Start(ctx context.Context, token string) (*SessionView, error) {
	session, err := s.loadSessionByToken(ctx, token)
	if err != nil {
		return nil, err
	}

	switch session.Status {
	case models.SessionCompleted:
		return nil, ErrSessionAlreadyCompleted
	case models.SessionExpired:
		return nil, ErrSessionExpired
	case models.SessionInProgress:
		// Resume path. loadSessionByToken already timed the session out
		// if the deadline passed, so the remaining window is positive.
		s.logger.Info("Resuming session", "session_id", session.ID)
		return s.buildSessionView(session), nil
	}

	if len(session.Template.Questions) == 0 {
		return nil, ErrNoQuestions
	}

	now := time.Now()
	session.Status = models.SessionInProgress
	session.StartedAt = &now
	if session.TimeLimit == nil {
		session.TimeLimit = session.Template.TimeLimit
	}

	if err := s.repo.Session().Update(ctx, s.db, session); err != nil {
		return nil, fmt.Errorf("failed to start session: %w", err)
	}

	s.logger.Info("Session started",
		"session_id", session.ID,
		"template_id", session.TemplateID,
		"candidate_id", session.CandidateID)

	s.publishEvent(ctx, events.NewEvent(events.EventSessionStarted, events.SessionStartedEvent{
		SessionID:   session.ID,
		TemplateID:  session.TemplateID,
		CandidateID: session.CandidateID,
		JobID:       session.JobID,
		StartedAt:   now,
		TimeLimit:   session.TimeLimit,
	}))

	return s.buildSessionView(session), nil
}

// SubmitAnswer records one Likert response. The scale-range and
// template-membership checks run before anything is written; a failed
// check leaves the stored answers untouched. Re-answering a question
// overwrites the previous value (last write wins).
func (s *sessionService) SubmitAnswer(ctx context.Context, token string, req *SubmitAnswerRequest) error {
	if err := s.validator.Validate(req); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	session, err := s.loadSessionByToken(ctx, token)
	if err != nil {
		return err
	}

	if session.Status != models.SessionInProgress {
		if session.Status == models.SessionCompleted {
			return ErrSessionAlreadyCompleted
		}
		return ErrSessionNotActive
	}

	if !session.Template.ValidScore(req.Score) {
		return ErrScoreOutOfRange
	}
	question := session.Template.QuestionByID(req.QuestionID)
	if question == nil {
		return ErrQuestionNotInTemplate
	}

	now := time.Now()
	answer := &models.SessionAnswer{
		SessionID:       session.ID,
		QuestionID:      req.QuestionID,
		Score:           req.Score,
		ScoredValue:     scoredValue(session.Template.ScaleType, req.Score, question.ReverseScored),
		FirstAnsweredAt: now,
		LastModifiedAt:  now,
	}

	if err := s.repo.Answer().Upsert(ctx, s.db, answer); err != nil {
		return fmt.Errorf("failed to save answer: %w", err)
	}

	s.logger.Info("Answer recorded",
		"session_id", session.ID,
		"question_id", req.QuestionID)

	return nil
}

// Complete finishes the session manually. It requires every question to
// be answered and is idempotent: completing a completed session returns
// the existing result.
func (s *sessionService) Complete(ctx context.Context, token string) (*SessionView, error) {
	session, err := s.loadSessionByToken(ctx, token)
	if err != nil {
		return nil, err
	}

	if session.Status == models.SessionCompleted {
		return s.buildSessionView(session), nil
	}
	if session.Status != models.SessionInProgress {
		return nil, ErrSessionNotActive
	}

	answered, err := s.repo.Answer().CountBySession(ctx, s.db, session.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to count answers: %w", err)
	}
	questionCount := len(session.Template.Questions)
	if answered < int64(questionCount) {
		return nil, ErrIncompleteAnswers
	}

	completedAt := time.Now()
	if err := s.finishSession(ctx, session, models.SessionEndReasonManual, completedAt); err != nil {
		return nil, err
	}

	s.logger.Info("Session completed",
		"session_id", session.ID,
		"answered", answered)

	return s.buildSessionView(session), nil
}

// GetTimeRemaining answers the countdown poll. It reads the bare session
// record through the token cache; the countdown only displays time, the
// terminal transitions settle on the next full load or submit.
func (s *sessionService) GetTimeRemaining(ctx context.Context, token string) (*TimeRemainingResponse, error) {
	session, err := s.repo.Session().GetByToken(ctx, s.db, token)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	resp := &TimeRemainingResponse{Status: string(session.Status)}
	if remaining, ok := session.TimeRemaining(time.Now()); ok && session.Status == models.SessionInProgress {
		resp.TimeRemaining = &remaining
	}
	return resp, nil
}

// ===== HR SURFACE =====

func (s *sessionService) GetByID(ctx context.Context, id uint, userID string) (*SessionDetailResponse, error) {
	session, err := s.repo.Session().GetByID(ctx, s.db, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	if err := s.checkSessionAccess(ctx, session, userID, "read"); err != nil {
		return nil, err
	}

	detailed, err := s.repo.Session().GetByTokenWithDetails(ctx, s.db, session.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to load session details: %w", err)
	}
	return s.buildSessionDetail(detailed), nil
}

func (s *sessionService) List(ctx context.Context, filters repositories.SessionFilters, userID string) (*SessionListResponse, error) {
	filters, err := s.scopeFiltersToUser(ctx, filters, userID)
	if err != nil {
		return nil, err
	}

	sessions, total, err := s.repo.Session().List(ctx, s.db, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	resp := &SessionListResponse{
		Sessions: make([]SessionResponse, 0, len(sessions)),
		Total:    total,
		Limit:    filters.Limit,
		Offset:   filters.Offset,
	}
	for _, session := range sessions {
		resp.Sessions = append(resp.Sessions, *s.buildSessionResponse(session))
	}
	return resp, nil
}

func (s *sessionService) GetStats(ctx context.Context, filters repositories.SessionFilters, userID string) (*repositories.SessionStats, error) {
	filters, err := s.scopeFiltersToUser(ctx, filters, userID)
	if err != nil {
		return nil, err
	}
	stats, err := s.repo.Session().GetStats(ctx, s.db, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to get session stats: %w", err)
	}
	return stats, nil
}

// ExtendTime grants additional working time to a running session and
// pushes the invitation expiry out far enough to cover it.
func (s *sessionService) ExtendTime(ctx context.Context, id uint, req *ExtendTimeRequest, userID string) (*SessionResponse, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	session, err := s.repo.Session().GetByID(ctx, s.db, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	if err := s.checkSessionAccess(ctx, session, userID, "extend_time"); err != nil {
		return nil, err
	}
	if session.Status != models.SessionInProgress {
		return nil, ErrSessionNotActive
	}
	if session.TimeLimit == nil {
		return nil, ErrTemplateHasNoTime
	}

	newLimit := *session.TimeLimit + req.AdditionalSeconds
	session.TimeLimit = &newLimit
	if deadline, ok := session.Deadline(); ok && deadline.After(session.ExpiresAt) {
		session.ExpiresAt = deadline
	}

	if err := s.repo.Session().Update(ctx, s.db, session); err != nil {
		return nil, fmt.Errorf("failed to extend session time: %w", err)
	}

	s.logger.Info("Session time extended",
		"session_id", id,
		"additional_seconds", req.AdditionalSeconds,
		"extended_by", userID,
		"reason", req.Reason)

	return s.buildSessionResponse(session), nil
}

// ===== BACKGROUND MAINTENANCE =====

// HandleTimeout completes a running session whose working time elapsed.
// It is a no-op on sessions that already reached a terminal state, so the
// race between manual completion and the timeout path resolves to exactly
// one completion.
func (s *sessionService) HandleTimeout(ctx context.Context, sessionID uint) error {
	return s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		session, err := txRepo.Session().GetByID(ctx, nil, sessionID)
		if err != nil {
			if repositories.IsNotFoundError(err) {
				return ErrSessionNotFound
			}
			return fmt.Errorf("failed to get session: %w", err)
		}

		if session.IsTerminal() {
			s.logger.Info("Timeout already handled", "session_id", sessionID, "status", session.Status)
			return nil
		}
		if session.Status != models.SessionInProgress {
			return ErrSessionNotStarted
		}

		completedAt := time.Now()
		if deadline, ok := session.Deadline(); ok && deadline.Before(completedAt) {
			completedAt = deadline
		}

		session.Status = models.SessionCompleted
		session.EndReason = strPtr(models.SessionEndReasonTimeout)
		session.CompletedAt = &completedAt
		if err := txRepo.Session().Update(ctx, nil, session); err != nil {
			return fmt.Errorf("failed to mark session timed out: %w", err)
		}

		s.logger.Info("Session timed out", "session_id", sessionID)

		answered, _ := txRepo.Answer().CountBySession(ctx, nil, sessionID)
		s.publishEvent(ctx, events.NewEvent(events.EventSessionTimedOut, events.SessionCompletedEvent{
			SessionID:       session.ID,
			TemplateID:      session.TemplateID,
			CandidateID:     session.CandidateID,
			JobID:           session.JobID,
			EndReason:       models.SessionEndReasonTimeout,
			AnsweredCount:   int(answered),
			CompletedAt:     completedAt,
			DurationSeconds: durationSeconds(session.StartedAt, completedAt),
		}))
		return nil
	})
}

// SweepExpired marks invitations that passed their absolute expiry
// without finishing and emits one expiry event per swept session, the
// same signal the lazy per-token path sends. It runs periodically from
// main.
func (s *sessionService) SweepExpired(ctx context.Context) (int64, error) {
	now := time.Now()
	swept, err := s.repo.Session().MarkExpired(ctx, s.db, now)
	if err != nil {
		return 0, fmt.Errorf("failed to sweep expired sessions: %w", err)
	}
	for _, session := range swept {
		s.publishEvent(ctx, events.NewEvent(events.EventSessionExpired, events.SessionExpiredEvent{
			SessionID:   session.ID,
			TemplateID:  session.TemplateID,
			CandidateID: session.CandidateID,
			ExpiredAt:   now,
		}))
	}
	if len(swept) > 0 {
		s.logger.Info("Expired sessions swept", "count", len(swept))
	}
	return int64(len(swept)), nil
}
