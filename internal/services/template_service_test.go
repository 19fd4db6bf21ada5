package services

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/hireflow/assessment-service/internal/models"
	"github.com/hireflow/assessment-service/internal/validator"
)

func newTestTemplateService(repo *mockRepository) *templateService {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	return &templateService{
		repo:      repo,
		logger:    logger,
		validator: validator.New(),
	}
}

func seedUser(repo *mockRepository, id string, role models.UserRole) {
	repo.mu.Lock()
	repo.users[id] = &models.User{ID: id, FullName: "Test User", Email: id + "@example.com", Role: role}
	repo.mu.Unlock()
}

func TestTemplateService_Create(t *testing.T) {
	repo := newMockRepository()
	svc := newTestTemplateService(repo)

	detail, err := svc.Create(context.Background(), &CreateTemplateRequest{
		Title:     "Big Five Screening",
		ScaleType: 5,
		ScaleLabels: map[string]string{
			"1": "Strongly disagree",
			"5": "Strongly agree",
		},
		TimeLimit: intPtr(900),
		Questions: []validator.TemplateQuestionRequest{
			{Stem: "I am the life of the party"},
			{Stem: "I worry about things", ReverseScored: true},
		},
	}, "recruiter-1")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if detail.Status != models.TemplateDraft {
		t.Errorf("new templates must start as drafts, got %s", detail.Status)
	}
	if len(detail.Questions) != 2 {
		t.Fatalf("expected 2 questions, got %d", len(detail.Questions))
	}
	if detail.Questions[0].Position != 1 || detail.Questions[1].Position != 2 {
		t.Errorf("questions not positioned in order: %+v", detail.Questions)
	}
	if detail.ScaleLabels["5"] != "Strongly agree" {
		t.Errorf("scale labels lost in round trip: %v", detail.ScaleLabels)
	}
}

func TestTemplateService_Create_RejectsBadScale(t *testing.T) {
	repo := newMockRepository()
	svc := newTestTemplateService(repo)

	_, err := svc.Create(context.Background(), &CreateTemplateRequest{
		Title:     "Broken Scale",
		ScaleType: 11,
	}, "recruiter-1")
	if err == nil {
		t.Fatal("expected validation error for scale type 11")
	}

	var validationErrors ValidationErrors
	if !errors.As(err, &validationErrors) {
		t.Fatalf("expected ValidationErrors, got %T: %v", err, err)
	}
}

func TestTemplateService_Update_OwnershipEnforced(t *testing.T) {
	repo := newMockRepository()
	svc := newTestTemplateService(repo)
	seedSession(repo, models.SessionPending, intPtr(600))
	seedUser(repo, "other-recruiter", models.RoleRecruiter)
	ctx := context.Background()

	title := "Renamed"
	_, err := svc.Update(ctx, 1, &UpdateTemplateRequest{Title: &title}, "other-recruiter")

	var permissionError *PermissionError
	if !errors.As(err, &permissionError) {
		t.Fatalf("expected PermissionError, got %v", err)
	}

	// HR managers can update anyone's template.
	seedUser(repo, "hr-1", models.RoleHRManager)
	updated, err := svc.Update(ctx, 1, &UpdateTemplateRequest{Title: &title}, "hr-1")
	if err != nil {
		t.Fatalf("Update as hr_manager: %v", err)
	}
	if updated.Title != "Renamed" {
		t.Errorf("title not updated: %s", updated.Title)
	}
}

func TestTemplateService_Delete_BlockedWhenInUse(t *testing.T) {
	repo := newMockRepository()
	svc := newTestTemplateService(repo)
	seedSession(repo, models.SessionPending, intPtr(600))

	err := svc.Delete(context.Background(), 1, "recruiter-1")
	if err != ErrTemplateInUse {
		t.Fatalf("expected ErrTemplateInUse, got %v", err)
	}
}

func TestTemplateService_ReplaceQuestions_BlockedWhenSessionsExist(t *testing.T) {
	repo := newMockRepository()
	svc := newTestTemplateService(repo)
	seedSession(repo, models.SessionPending, intPtr(600))

	_, err := svc.ReplaceQuestions(context.Background(), 1, []TemplateQuestionInput{
		{Stem: "A completely different question"},
	}, "recruiter-1")

	var businessRuleError *BusinessRuleError
	if !errors.As(err, &businessRuleError) {
		t.Fatalf("expected BusinessRuleError, got %v", err)
	}
}

func TestTemplateService_ReplaceQuestions(t *testing.T) {
	repo := newMockRepository()
	svc := newTestTemplateService(repo)
	ctx := context.Background()

	detail, err := svc.Create(ctx, &CreateTemplateRequest{
		Title:     "Draft Inventory",
		ScaleType: 7,
		Questions: []validator.TemplateQuestionRequest{{Stem: "Original question stem"}},
	}, "recruiter-1")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	replaced, err := svc.ReplaceQuestions(ctx, detail.ID, []TemplateQuestionInput{
		{Stem: "First replacement question"},
		{Stem: "Second replacement question", ReverseScored: true},
	}, "recruiter-1")
	if err != nil {
		t.Fatalf("ReplaceQuestions: %v", err)
	}
	if len(replaced.Questions) != 2 {
		t.Fatalf("expected 2 questions after replace, got %d", len(replaced.Questions))
	}
	if replaced.Questions[1].Position != 2 {
		t.Errorf("replacement questions not repositioned: %+v", replaced.Questions)
	}
}

func TestTemplateService_GetStats(t *testing.T) {
	repo := newMockRepository()
	svc := newTestTemplateService(repo)
	session := seedSession(repo, models.SessionCompleted, intPtr(600))

	stats, err := svc.GetStats(context.Background(), session.TemplateID, "recruiter-1")
	if err != nil {
		t.Fatalf("GetStats: %v", err)
	}
	if stats.TotalSessions != 1 || stats.CompletedSessions != 1 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}
