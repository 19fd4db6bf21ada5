package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hireflow/assessment-service/internal/events"
	"github.com/hireflow/assessment-service/internal/models"
	"github.com/hireflow/assessment-service/internal/repositories"
)

// ===== LOADING =====

// loadSessionByToken fetches the session with its template, candidate, job
// and answers, then applies the lazy terminal transitions: a pending
// session past its invitation expiry becomes expired, a running session
// past its deadline is timed out. The caller always sees settled state.
func (s *sessionService) loadSessionByToken(ctx context.Context, token string) (*models.AssessmentSession, error) {
	session, err := s.repo.Session().GetByTokenWithDetails(ctx, s.db, token)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	now := time.Now()

	if session.Status == models.SessionPending && session.PastExpiry(now) {
		session.Status = models.SessionExpired
		session.EndReason = strPtr(models.SessionEndReasonExpired)
		if err := s.repo.Session().Update(ctx, s.db, session); err != nil {
			return nil, fmt.Errorf("failed to expire session: %w", err)
		}
		s.publishEvent(ctx, events.NewEvent(events.EventSessionExpired, events.SessionExpiredEvent{
			SessionID:   session.ID,
			TemplateID:  session.TemplateID,
			CandidateID: session.CandidateID,
			ExpiredAt:   now,
		}))
		return session, nil
	}

	if session.Status == models.SessionInProgress {
		remaining, limited := session.TimeRemaining(now)
		if (limited && remaining <= 0) || session.PastExpiry(now) {
			if err := s.HandleTimeout(ctx, session.ID); err != nil {
				return nil, err
			}
			return s.repo.Session().GetByTokenWithDetails(ctx, s.db, token)
		}
	}

	return session, nil
}

// ===== COMPLETION =====

func (s *sessionService) finishSession(ctx context.Context, session *models.AssessmentSession, endReason string, completedAt time.Time) error {
	var answered int64
	err := s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		// Re-read inside the transaction so a concurrent timeout and
		// manual completion settle on exactly one terminal write.
		current, err := txRepo.Session().GetByID(ctx, nil, session.ID)
		if err != nil {
			return fmt.Errorf("failed to re-read session: %w", err)
		}
		if current.IsTerminal() {
			session.Status = current.Status
			session.EndReason = current.EndReason
			session.CompletedAt = current.CompletedAt
			return nil
		}

		current.Status = models.SessionCompleted
		current.EndReason = &endReason
		current.CompletedAt = &completedAt
		if err := txRepo.Session().Update(ctx, nil, current); err != nil {
			return fmt.Errorf("failed to complete session: %w", err)
		}

		session.Status = current.Status
		session.EndReason = current.EndReason
		session.CompletedAt = current.CompletedAt

		answered, err = txRepo.Answer().CountBySession(ctx, nil, session.ID)
		return err
	})
	if err != nil {
		return err
	}

	s.publishEvent(ctx, events.NewEvent(events.EventSessionCompleted, events.SessionCompletedEvent{
		SessionID:       session.ID,
		TemplateID:      session.TemplateID,
		CandidateID:     session.CandidateID,
		JobID:           session.JobID,
		EndReason:       endReason,
		AnsweredCount:   int(answered),
		QuestionCount:   len(session.Template.Questions),
		CompletedAt:     completedAt,
		DurationSeconds: durationSeconds(session.StartedAt, completedAt),
	}))
	return nil
}

// ===== EVENTS =====

// publishEvent is fire-and-forget: event delivery never fails a request.
func (s *sessionService) publishEvent(ctx context.Context, event events.Event) {
	if s.eventPublisher == nil {
		return
	}
	if err := s.eventPublisher.Publish(ctx, event); err != nil {
		s.logger.Error("Failed to publish event",
			"event_type", event.Type,
			"event_id", event.ID,
			"error", err)
	}
}

// ===== ACCESS CONTROL =====

func (s *sessionService) checkSessionAccess(ctx context.Context, session *models.AssessmentSession, userID, action string) error {
	user, err := s.repo.User().GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to resolve user: %w", err)
	}
	if user.Role == models.RoleAdmin || user.Role == models.RoleHRManager {
		return nil
	}
	if session.InvitedBy != userID {
		return NewPermissionError(userID, session.ID, "session", action, "not the inviting recruiter")
	}
	return nil
}

// scopeFiltersToUser restricts list queries to a recruiter's own
// invitations; managers and admins see everything.
func (s *sessionService) scopeFiltersToUser(ctx context.Context, filters repositories.SessionFilters, userID string) (repositories.SessionFilters, error) {
	user, err := s.repo.User().GetByID(ctx, userID)
	if err != nil {
		return filters, fmt.Errorf("failed to resolve user: %w", err)
	}
	if user.Role == models.RoleRecruiter {
		filters.InvitedBy = &userID
	}
	return filters, nil
}

// ===== RESPONSE BUILDING =====

func (s *sessionService) buildSessionView(session *models.AssessmentSession) *SessionView {
	view := &SessionView{
		Token:           session.Token,
		Status:          session.Status,
		EndReason:       session.EndReason,
		TemplateTitle:   session.Template.Title,
		JobTitle:        session.Job.Title,
		CandidateName:   session.Candidate.FullName,
		ScaleType:       session.Template.ScaleType,
		ScaleLabels:     decodeScaleLabels(session.Template.ScaleLabels),
		TimeLimit:       session.TimeLimit,
		RequiresConsent: session.Job.RequiresConsent(),
		ConsentURL:      session.Job.ConsentDocumentURL,
		ConsentAccepted: session.AgreementAcceptedAt != nil,
		StartedAt:       session.StartedAt,
	}

	if session.Status == models.SessionInProgress {
		if remaining, ok := session.TimeRemaining(time.Now()); ok {
			view.TimeRemaining = &remaining
		}
		view.Questions = buildQuestionResponses(session.Template.Questions)
		view.Answers = make(map[uint]int, len(session.Answers))
		for _, answer := range session.Answers {
			view.Answers[answer.QuestionID] = answer.Score
		}
	}

	return view
}

func (s *sessionService) buildSessionResponse(session *models.AssessmentSession) *SessionResponse {
	return &SessionResponse{
		ID:            session.ID,
		Token:         session.Token,
		Status:        session.Status,
		EndReason:     session.EndReason,
		TemplateID:    session.TemplateID,
		CandidateID:   session.CandidateID,
		JobID:         session.JobID,
		InvitedBy:     session.InvitedBy,
		StartedAt:     session.StartedAt,
		CompletedAt:   session.CompletedAt,
		ExpiresAt:     session.ExpiresAt,
		TimeLimit:     session.TimeLimit,
		AnsweredCount: len(session.Answers),
		CreatedAt:     session.CreatedAt,
	}
}

func (s *sessionService) buildSessionDetail(session *models.AssessmentSession) *SessionDetailResponse {
	detail := &SessionDetailResponse{
		SessionResponse: *s.buildSessionResponse(session),
		CandidateName:   session.Candidate.FullName,
		CandidateEmail:  session.Candidate.Email,
		JobTitle:        session.Job.Title,
		TemplateTitle:   session.Template.Title,
		Answers:         make([]AnswerResponse, 0, len(session.Answers)),
	}
	for _, answer := range session.Answers {
		detail.Answers = append(detail.Answers, AnswerResponse{
			QuestionID:     answer.QuestionID,
			Score:          answer.Score,
			ScoredValue:    answer.ScoredValue,
			LastModifiedAt: answer.LastModifiedAt,
		})
	}
	return detail
}

func buildQuestionResponses(questions []models.TemplateQuestion) []QuestionResponse {
	out := make([]QuestionResponse, 0, len(questions))
	for _, q := range questions {
		out = append(out, QuestionResponse{
			ID:       q.ID,
			Stem:     q.Stem,
			Position: q.Position,
		})
	}
	return out
}

func decodeScaleLabels(raw []byte) map[string]string {
	if len(raw) == 0 {
		return nil
	}
	labels := make(map[string]string)
	if err := json.Unmarshal(raw, &labels); err != nil {
		return nil
	}
	return labels
}

// ===== SMALL HELPERS =====

// scoredValue flips reverse-keyed items around the scale midpoint.
func scoredValue(scaleType, score int, reverseScored bool) int {
	if reverseScored {
		return scaleType + 1 - score
	}
	return score
}

func durationSeconds(startedAt *time.Time, completedAt time.Time) int {
	if startedAt == nil {
		return 0
	}
	return int(completedAt.Sub(*startedAt).Seconds())
}

func strPtr(s string) *string { return &s }

func timePtr(t time.Time) *time.Time { return &t }
