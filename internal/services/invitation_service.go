package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hireflow/assessment-service/internal/events"
	"github.com/hireflow/assessment-service/internal/models"
	"github.com/hireflow/assessment-service/internal/repositories"
	"github.com/hireflow/assessment-service/internal/validator"
	"gorm.io/gorm"
)

// defaultInvitationTTL bounds invitations that specify no expiry.
const defaultInvitationTTL = 7 * 24 * time.Hour

type invitationService struct {
	repo           repositories.Repository
	db             *gorm.DB
	logger         *slog.Logger
	validator      *validator.Validator
	eventPublisher events.EventPublisher
}

func NewInvitationService(repo repositories.Repository, db *gorm.DB, logger *slog.Logger, validator *validator.Validator, eventPublisher events.EventPublisher) InvitationService {
	return &invitationService{
		repo:           repo,
		db:             db,
		logger:         logger,
		validator:      validator,
		eventPublisher: eventPublisher,
	}
}

func (s *invitationService) Invite(ctx context.Context, req *InviteCandidateRequest, inviterID string) (*InvitationResponse, error) {
	s.logger.Info("Inviting candidate",
		"template_id", req.TemplateID,
		"job_id", req.JobID,
		"inviter_id", inviterID)

	if err := s.validator.Validate(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	template, job, err := s.loadInvitationTargets(ctx, req.TemplateID, req.JobID)
	if err != nil {
		return nil, err
	}

	var session *models.AssessmentSession
	err = s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		candidate, err := s.resolveCandidate(ctx, txRepo, req)
		if err != nil {
			return err
		}
		session = s.newSession(template, job, candidate.ID, inviterID, s.resolveExpiry(req.ExpiresAt, req.ExpiresInDays))
		return txRepo.Session().Create(ctx, nil, session)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create invitation: %w", err)
	}

	s.publishInvited(ctx, session)
	s.logger.Info("Invitation created",
		"session_id", session.ID,
		"candidate_id", session.CandidateID)

	return buildInvitationResponse(session), nil
}

func (s *invitationService) BulkInvite(ctx context.Context, req *BulkInviteRequest, inviterID string) (*BulkInviteResponse, error) {
	s.logger.Info("Bulk inviting candidates",
		"template_id", req.TemplateID,
		"job_id", req.JobID,
		"count", len(req.Candidates))

	if err := s.validator.Validate(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	template, job, err := s.loadInvitationTargets(ctx, req.TemplateID, req.JobID)
	if err != nil {
		return nil, err
	}

	expiresAt := s.resolveExpiry(req.ExpiresAt, nil)
	resp := &BulkInviteResponse{}

	err = s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		sessions := make([]*models.AssessmentSession, 0, len(req.Candidates))
		for _, entry := range req.Candidates {
			candidate, err := s.findOrCreateCandidate(ctx, txRepo, entry.FullName, entry.Email, entry.Phone)
			if err != nil {
				resp.Failed = append(resp.Failed, BulkInviteFailure{
					Email:  entry.Email,
					Reason: err.Error(),
				})
				continue
			}
			sessions = append(sessions, s.newSession(template, job, candidate.ID, inviterID, expiresAt))
		}
		if err := txRepo.Session().CreateBatch(ctx, nil, sessions); err != nil {
			return err
		}
		for _, session := range sessions {
			resp.Invitations = append(resp.Invitations, *buildInvitationResponse(session))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create bulk invitations: %w", err)
	}

	for i := range resp.Invitations {
		s.publishInvitedResponse(ctx, &resp.Invitations[i], inviterID)
	}

	s.logger.Info("Bulk invitations created",
		"created", len(resp.Invitations),
		"failed", len(resp.Failed))

	return resp, nil
}

// Revoke withdraws an invitation that has not finished. The session moves
// to expired with a revoked end reason so its token stops working.
func (s *invitationService) Revoke(ctx context.Context, sessionID uint, userID string) error {
	session, err := s.repo.Session().GetByID(ctx, s.db, sessionID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrSessionNotFound
		}
		return fmt.Errorf("failed to get session: %w", err)
	}

	user, err := s.repo.User().GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to resolve user: %w", err)
	}
	if user.Role == models.RoleRecruiter && session.InvitedBy != userID {
		return NewPermissionError(userID, sessionID, "session", "revoke", "not the inviting recruiter")
	}

	if session.IsTerminal() {
		return ErrSessionAlreadyCompleted
	}

	session.Status = models.SessionExpired
	session.EndReason = strPtr(models.SessionEndReasonRevoked)
	if err := s.repo.Session().Update(ctx, s.db, session); err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}

	if s.eventPublisher != nil {
		event := events.NewEvent(events.EventSessionRevoked, events.SessionExpiredEvent{
			SessionID:   session.ID,
			TemplateID:  session.TemplateID,
			CandidateID: session.CandidateID,
			ExpiredAt:   time.Now(),
		})
		if err := s.eventPublisher.Publish(ctx, event); err != nil {
			s.logger.Error("Failed to publish revocation event",
				"session_id", sessionID,
				"error", err)
		}
	}

	s.logger.Info("Invitation revoked", "session_id", sessionID, "revoked_by", userID)
	return nil
}

// ===== HELPERS =====

func (s *invitationService) loadInvitationTargets(ctx context.Context, templateID, jobID uint) (*models.AssessmentTemplate, *models.Job, error) {
	template, err := s.repo.Template().GetByIDWithQuestions(ctx, s.db, templateID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, nil, ErrTemplateNotFound
		}
		return nil, nil, fmt.Errorf("failed to get template: %w", err)
	}
	if template.Status != models.TemplateActive {
		return nil, nil, ErrTemplateNotActive
	}
	if len(template.Questions) == 0 {
		return nil, nil, ErrNoQuestions
	}

	job, err := s.repo.Job().GetByID(ctx, s.db, jobID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, nil, ErrJobNotFound
		}
		return nil, nil, fmt.Errorf("failed to get job: %w", err)
	}

	return template, job, nil
}

func (s *invitationService) resolveCandidate(ctx context.Context, txRepo repositories.Repository, req *InviteCandidateRequest) (*models.Candidate, error) {
	if req.CandidateID != nil {
		candidate, err := txRepo.Candidate().GetByID(ctx, nil, *req.CandidateID)
		if err != nil {
			if repositories.IsNotFoundError(err) {
				return nil, ErrCandidateNotFound
			}
			return nil, fmt.Errorf("failed to get candidate: %w", err)
		}
		return candidate, nil
	}
	return s.findOrCreateCandidate(ctx, txRepo, req.FullName, req.Email, req.Phone)
}

func (s *invitationService) findOrCreateCandidate(ctx context.Context, txRepo repositories.Repository, fullName, email, phone string) (*models.Candidate, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	candidate, err := txRepo.Candidate().GetByEmail(ctx, nil, email)
	if err == nil {
		return candidate, nil
	}
	if !repositories.IsNotFoundError(err) {
		return nil, fmt.Errorf("failed to look up candidate: %w", err)
	}

	candidate = &models.Candidate{
		FullName: fullName,
		Email:    email,
	}
	if phone != "" {
		candidate.Phone = &phone
	}
	if err := txRepo.Candidate().Create(ctx, nil, candidate); err != nil {
		return nil, fmt.Errorf("failed to create candidate: %w", err)
	}
	return candidate, nil
}

func (s *invitationService) resolveExpiry(expiresAt *time.Time, expiresInDays *int) time.Time {
	if expiresAt != nil {
		return *expiresAt
	}
	if expiresInDays != nil {
		return time.Now().Add(time.Duration(*expiresInDays) * 24 * time.Hour)
	}
	return time.Now().Add(defaultInvitationTTL)
}

func (s *invitationService) newSession(template *models.AssessmentTemplate, job *models.Job, candidateID uint, inviterID string, expiresAt time.Time) *models.AssessmentSession {
	return &models.AssessmentSession{
		Token:       uuid.New().String(),
		TemplateID:  template.ID,
		CandidateID: candidateID,
		JobID:       job.ID,
		Status:      models.SessionPending,
		ExpiresAt:   expiresAt,
		TimeLimit:   template.TimeLimit,
		InvitedBy:   inviterID,
	}
}

func (s *invitationService) publishInvited(ctx context.Context, session *models.AssessmentSession) {
	if s.eventPublisher == nil {
		return
	}
	event := events.NewEvent(events.EventSessionInvited, events.SessionInvitedEvent{
		SessionID:   session.ID,
		Token:       session.Token,
		TemplateID:  session.TemplateID,
		CandidateID: session.CandidateID,
		JobID:       session.JobID,
		InvitedBy:   session.InvitedBy,
		ExpiresAt:   session.ExpiresAt,
	})
	if err := s.eventPublisher.Publish(ctx, event); err != nil {
		s.logger.Error("Failed to publish invitation event",
			"session_id", session.ID,
			"error", err)
	}
}

func (s *invitationService) publishInvitedResponse(ctx context.Context, inv *InvitationResponse, inviterID string) {
	if s.eventPublisher == nil {
		return
	}
	event := events.NewEvent(events.EventSessionInvited, events.SessionInvitedEvent{
		SessionID:   inv.SessionID,
		Token:       inv.Token,
		TemplateID:  inv.TemplateID,
		CandidateID: inv.CandidateID,
		JobID:       inv.JobID,
		InvitedBy:   inviterID,
		ExpiresAt:   inv.ExpiresAt,
	})
	if err := s.eventPublisher.Publish(ctx, event); err != nil {
		s.logger.Error("Failed to publish invitation event",
			"session_id", inv.SessionID,
			"error", err)
	}
}

func buildInvitationResponse(session *models.AssessmentSession) *InvitationResponse {
	return &InvitationResponse{
		SessionID:   session.ID,
		Token:       session.Token,
		TemplateID:  session.TemplateID,
		CandidateID: session.CandidateID,
		JobID:       session.JobID,
		ExpiresAt:   session.ExpiresAt,
	}
}
