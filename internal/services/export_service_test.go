package services

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/hireflow/assessment-service/internal/models"
	"github.com/hireflow/assessment-service/internal/repositories"
	"github.com/xuri/excelize/v2"
)

func newTestExportService(repo *mockRepository) *exportService {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	return &exportService{repo: repo, logger: logger}
}

func TestExportService_ExportSessions(t *testing.T) {
	repo := newMockRepository()
	svc := newTestExportService(repo)
	seedSession(repo, models.SessionCompleted, intPtr(600))
	seedUser(repo, "hr-1", models.RoleHRManager)

	data, filename, err := svc.ExportSessions(context.Background(), repositories.SessionFilters{}, "hr-1")
	if err != nil {
		t.Fatalf("ExportSessions: %v", err)
	}
	if !strings.HasPrefix(filename, "sessions_") || !strings.HasSuffix(filename, ".xlsx") {
		t.Errorf("unexpected filename: %s", filename)
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("exported bytes are not a workbook: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows("Sessions")
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected header plus one row, got %d rows", len(rows))
	}
	if rows[0][0] != "Session ID" {
		t.Errorf("unexpected header row: %v", rows[0])
	}
	if rows[1][1] != "Dana Reyes" {
		t.Errorf("candidate name missing from export: %v", rows[1])
	}
}

func TestExportService_ExportSessions_RecruiterScoped(t *testing.T) {
	repo := newMockRepository()
	svc := newTestExportService(repo)
	seedSession(repo, models.SessionCompleted, intPtr(600))
	seedUser(repo, "other-recruiter", models.RoleRecruiter)

	// The only seeded session was invited by recruiter-1, so another
	// recruiter exports an empty sheet.
	data, _, err := svc.ExportSessions(context.Background(), repositories.SessionFilters{}, "other-recruiter")
	if err != nil {
		t.Fatalf("ExportSessions: %v", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer f.Close()

	rows, _ := f.GetRows("Sessions")
	if len(rows) != 1 {
		t.Errorf("expected header only, got %d rows", len(rows))
	}
}

func TestExportService_ExportTemplateResults(t *testing.T) {
	repo := newMockRepository()
	svc := newTestExportService(repo)
	session := seedSession(repo, models.SessionCompleted, intPtr(600))
	seedUser(repo, "hr-1", models.RoleHRManager)
	ctx := context.Background()

	now := time.Now()
	repo.mu.Lock()
	repo.sessions[session.ID].CompletedAt = &now
	repo.mu.Unlock()

	// Answer two of the three questions; question 102 is reverse-keyed.
	repo.Answer().Upsert(ctx, nil, &models.SessionAnswer{
		SessionID: session.ID, QuestionID: 101, Score: 4, ScoredValue: 4, LastModifiedAt: now,
	})
	repo.Answer().Upsert(ctx, nil, &models.SessionAnswer{
		SessionID: session.ID, QuestionID: 102, Score: 1, ScoredValue: 5, LastModifiedAt: now,
	})

	data, filename, err := svc.ExportTemplateResults(ctx, session.TemplateID, "hr-1")
	if err != nil {
		t.Fatalf("ExportTemplateResults: %v", err)
	}
	if !strings.Contains(filename, "results") {
		t.Errorf("unexpected filename: %s", filename)
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows("Results")
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected header plus one row, got %d rows", len(rows))
	}

	header := rows[0]
	if header[4] != "Q1" || header[5] != "Q2" || header[6] != "Q3" {
		t.Errorf("question columns missing: %v", header)
	}

	row := rows[1]
	if row[4] != "4" {
		t.Errorf("expected Q1 scored value 4, got %q", row[4])
	}
	// Reverse-keyed item is exported already inverted.
	if row[5] != "5" {
		t.Errorf("expected Q2 scored value 5, got %q", row[5])
	}
	// Unanswered question stays blank; GetRows trims trailing empties.
	if len(row) > 6 && row[6] != "" {
		t.Errorf("expected blank Q3 cell, got %q", row[6])
	}
}

func TestExportService_ExportTemplateResults_OwnershipEnforced(t *testing.T) {
	repo := newMockRepository()
	svc := newTestExportService(repo)
	session := seedSession(repo, models.SessionCompleted, intPtr(600))
	seedUser(repo, "other-recruiter", models.RoleRecruiter)

	_, _, err := svc.ExportTemplateResults(context.Background(), session.TemplateID, "other-recruiter")
	if err == nil {
		t.Fatal("expected permission error for foreign template export")
	}
}
