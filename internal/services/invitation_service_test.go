package services

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/hireflow/assessment-service/internal/events"
	"github.com/hireflow/assessment-service/internal/models"
	"github.com/hireflow/assessment-service/internal/validator"
)

func newTestInvitationService(repo *mockRepository) (*invitationService, *events.MockEventPublisher) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	publisher := events.NewMockEventPublisher(logger)
	svc := &invitationService{
		repo:           repo,
		logger:         logger,
		validator:      validator.New(),
		eventPublisher: publisher,
	}
	return svc, publisher
}

func seedInvitationTargets(repo *mockRepository) (templateID, jobID uint) {
	template := &models.AssessmentTemplate{
		Title:     "Team Fit Inventory",
		Status:    models.TemplateActive,
		ScaleType: 5,
		TimeLimit: intPtr(600),
		CreatedBy: "recruiter-1",
		Questions: []models.TemplateQuestion{
			{ID: 501, Stem: "I adapt quickly to change", Position: 1},
		},
	}
	job := &models.Job{Title: "Platform Engineer", CreatedBy: "recruiter-1"}

	repo.mu.Lock()
	template.ID = repo.allocID()
	repo.templates[template.ID] = template
	job.ID = repo.allocID()
	repo.jobs[job.ID] = job
	repo.mu.Unlock()
	return template.ID, job.ID
}

func TestInvitationService_Invite(t *testing.T) {
	repo := newMockRepository()
	svc, publisher := newTestInvitationService(repo)
	templateID, jobID := seedInvitationTargets(repo)

	invitation, err := svc.Invite(context.Background(), &InviteCandidateRequest{
		TemplateID: templateID,
		JobID:      jobID,
		FullName:   "Maya Okafor",
		Email:      "Maya.Okafor@example.com",
	}, "recruiter-1")
	if err != nil {
		t.Fatalf("Invite: %v", err)
	}

	if invitation.Token == "" {
		t.Error("invitation has empty token")
	}
	if time.Until(invitation.ExpiresAt) < 6*24*time.Hour {
		t.Errorf("default expiry too short: %v", invitation.ExpiresAt)
	}

	// The candidate email is normalized to lowercase.
	candidate, err := repo.Candidate().GetByEmail(context.Background(), nil, "maya.okafor@example.com")
	if err != nil {
		t.Fatalf("candidate not created: %v", err)
	}
	if candidate.FullName != "Maya Okafor" {
		t.Errorf("unexpected candidate: %+v", candidate)
	}

	published := publisher.GetPublishedEvents()
	if len(published) != 1 || published[0].Type != events.EventSessionInvited {
		t.Errorf("expected one session.invited event, got %+v", published)
	}

	// The session snapshots the template's time limit.
	session, _ := repo.Session().GetByID(context.Background(), nil, invitation.SessionID)
	if session.TimeLimit == nil || *session.TimeLimit != 600 {
		t.Errorf("time limit not snapshotted: %v", session.TimeLimit)
	}
}

func TestInvitationService_Invite_ReusesExistingCandidate(t *testing.T) {
	repo := newMockRepository()
	svc, _ := newTestInvitationService(repo)
	templateID, jobID := seedInvitationTargets(repo)
	ctx := context.Background()

	first, err := svc.Invite(ctx, &InviteCandidateRequest{
		TemplateID: templateID,
		JobID:      jobID,
		FullName:   "Sam Chen",
		Email:      "sam@example.com",
	}, "recruiter-1")
	if err != nil {
		t.Fatalf("first invite: %v", err)
	}

	second, err := svc.Invite(ctx, &InviteCandidateRequest{
		TemplateID: templateID,
		JobID:      jobID,
		FullName:   "Sam Chen",
		Email:      "SAM@example.com",
	}, "recruiter-1")
	if err != nil {
		t.Fatalf("second invite: %v", err)
	}

	if first.CandidateID != second.CandidateID {
		t.Errorf("same email produced two candidates: %d vs %d", first.CandidateID, second.CandidateID)
	}
	if first.Token == second.Token {
		t.Error("two invitations share a token")
	}
}

func TestInvitationService_Invite_RequiresActiveTemplate(t *testing.T) {
	repo := newMockRepository()
	svc, _ := newTestInvitationService(repo)
	templateID, jobID := seedInvitationTargets(repo)

	repo.mu.Lock()
	repo.templates[templateID].Status = models.TemplateDraft
	repo.mu.Unlock()

	_, err := svc.Invite(context.Background(), &InviteCandidateRequest{
		TemplateID: templateID,
		JobID:      jobID,
		FullName:   "Maya Okafor",
		Email:      "maya@example.com",
	}, "recruiter-1")
	if err != ErrTemplateNotActive {
		t.Fatalf("expected ErrTemplateNotActive, got %v", err)
	}
}

func TestInvitationService_Invite_RequiresQuestions(t *testing.T) {
	repo := newMockRepository()
	svc, _ := newTestInvitationService(repo)
	templateID, jobID := seedInvitationTargets(repo)

	repo.mu.Lock()
	repo.templates[templateID].Questions = nil
	repo.mu.Unlock()

	_, err := svc.Invite(context.Background(), &InviteCandidateRequest{
		TemplateID: templateID,
		JobID:      jobID,
		FullName:   "Maya Okafor",
		Email:      "maya@example.com",
	}, "recruiter-1")
	if err != ErrNoQuestions {
		t.Fatalf("expected ErrNoQuestions, got %v", err)
	}
}

func TestInvitationService_BulkInvite_CollectsFailures(t *testing.T) {
	repo := newMockRepository()
	svc, publisher := newTestInvitationService(repo)
	templateID, jobID := seedInvitationTargets(repo)

	resp, err := svc.BulkInvite(context.Background(), &BulkInviteRequest{
		TemplateID: templateID,
		JobID:      jobID,
		Candidates: []validator.InviteCandidateEntry{
			{FullName: "Ana Silva", Email: "ana@example.com"},
			{FullName: "Luis Ortega", Email: "luis@example.com"},
		},
	}, "recruiter-1")
	if err != nil {
		t.Fatalf("BulkInvite: %v", err)
	}

	if len(resp.Invitations) != 2 {
		t.Fatalf("expected 2 invitations, got %d", len(resp.Invitations))
	}
	if len(resp.Failed) != 0 {
		t.Errorf("unexpected failures: %+v", resp.Failed)
	}
	if got := len(publisher.GetPublishedEvents()); got != 2 {
		t.Errorf("expected 2 invited events, got %d", got)
	}
}

func TestInvitationService_Revoke(t *testing.T) {
	repo := newMockRepository()
	svc, _ := newTestInvitationService(repo)
	session := seedSession(repo, models.SessionPending, intPtr(600))
	seedUser(repo, "recruiter-1", models.RoleRecruiter)
	ctx := context.Background()

	if err := svc.Revoke(ctx, session.ID, "recruiter-1"); err != nil {
		t.Fatalf("Revoke: %v", err)
	}

	stored, _ := repo.Session().GetByID(ctx, nil, session.ID)
	if stored.Status != models.SessionExpired {
		t.Errorf("expected expired, got %s", stored.Status)
	}
	if stored.EndReason == nil || *stored.EndReason != models.SessionEndReasonRevoked {
		t.Errorf("expected revoked end reason, got %v", stored.EndReason)
	}

	// A terminal session cannot be revoked again.
	if err := svc.Revoke(ctx, session.ID, "recruiter-1"); err != ErrSessionAlreadyCompleted {
		t.Errorf("expected ErrSessionAlreadyCompleted, got %v", err)
	}
}

func TestInvitationService_Revoke_OnlyInviterOrManager(t *testing.T) {
	repo := newMockRepository()
	svc, _ := newTestInvitationService(repo)
	session := seedSession(repo, models.SessionPending, intPtr(600))
	seedUser(repo, "other-recruiter", models.RoleRecruiter)
	seedUser(repo, "hr-1", models.RoleHRManager)
	ctx := context.Background()

	err := svc.Revoke(ctx, session.ID, "other-recruiter")
	var permissionError *PermissionError
	if !errors.As(err, &permissionError) {
		t.Fatalf("expected PermissionError, got %v", err)
	}

	if err := svc.Revoke(ctx, session.ID, "hr-1"); err != nil {
		t.Errorf("hr_manager revoke failed: %v", err)
	}
}
