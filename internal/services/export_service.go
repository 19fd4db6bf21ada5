package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hireflow/assessment-service/internal/models"
	"github.com/hireflow/assessment-service/internal/repositories"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

type exportService struct {
	repo   repositories.Repository
	db     *gorm.DB
	logger *slog.Logger
}

func NewExportService(repo repositories.Repository, db *gorm.DB, logger *slog.Logger) ExportService {
	return &exportService{
		repo:   repo,
		db:     db,
		logger: logger,
	}
}

// ExportSessions writes one row per session matching the filters.
func (s *exportService) ExportSessions(ctx context.Context, filters repositories.SessionFilters, userID string) ([]byte, string, error) {
	user, err := s.repo.User().GetByID(ctx, userID)
	if err != nil {
		return nil, "", fmt.Errorf("failed to resolve user: %w", err)
	}
	if user.Role == models.RoleRecruiter {
		filters.InvitedBy = &userID
	}

	filters.Limit = 10000
	filters.Offset = 0
	sessions, _, err := s.repo.Session().List(ctx, s.db, filters)
	if err != nil {
		return nil, "", fmt.Errorf("failed to list sessions: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Sessions"
	f.SetSheetName("Sheet1", sheet)

	headers := []string{"Session ID", "Candidate", "Email", "Job", "Status", "End Reason",
		"Invited By", "Started At", "Completed At", "Expires At", "Answered"}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, header)
	}

	for row, session := range sessions {
		values := []interface{}{
			session.ID,
			session.Candidate.FullName,
			session.Candidate.Email,
			session.Job.Title,
			string(session.Status),
			derefStr(session.EndReason),
			session.InvitedBy,
			formatTime(session.StartedAt),
			formatTime(session.CompletedAt),
			session.ExpiresAt.Format(time.RFC3339),
			len(session.Answers),
		}
		for col, value := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			f.SetCellValue(sheet, cell, value)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, "", fmt.Errorf("failed to render spreadsheet: %w", err)
	}

	filename := fmt.Sprintf("sessions_%s.xlsx", time.Now().Format("20060102_150405"))
	s.logger.Info("Sessions exported", "count", len(sessions), "exported_by", userID)
	return buf.Bytes(), filename, nil
}

// ExportTemplateResults writes a question-by-question matrix of scored
// values for every completed session of one template. Reverse-keyed
// items are exported already inverted; unanswered cells stay blank.
func (s *exportService) ExportTemplateResults(ctx context.Context, templateID uint, userID string) ([]byte, string, error) {
	template, err := s.repo.Template().GetByIDWithQuestions(ctx, s.db, templateID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, "", ErrTemplateNotFound
		}
		return nil, "", fmt.Errorf("failed to get template: %w", err)
	}

	user, err := s.repo.User().GetByID(ctx, userID)
	if err != nil {
		return nil, "", fmt.Errorf("failed to resolve user: %w", err)
	}
	if user.Role == models.RoleRecruiter && template.CreatedBy != userID {
		return nil, "", NewPermissionError(userID, templateID, "template", "export", "not the template owner")
	}

	completed := models.SessionCompleted
	filters := repositories.SessionFilters{
		TemplateID: &templateID,
		Status:     &completed,
		Limit:      10000,
	}
	sessions, _, err := s.repo.Session().List(ctx, s.db, filters)
	if err != nil {
		return nil, "", fmt.Errorf("failed to list sessions: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Results"
	f.SetSheetName("Sheet1", sheet)

	headers := []string{"Candidate", "Email", "End Reason", "Completed At"}
	for _, question := range template.Questions {
		headers = append(headers, fmt.Sprintf("Q%d", question.Position))
	}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, header)
	}

	for row, session := range sessions {
		answers := make(map[uint]int, len(session.Answers))
		for _, answer := range session.Answers {
			answers[answer.QuestionID] = answer.ScoredValue
		}

		base := []interface{}{
			session.Candidate.FullName,
			session.Candidate.Email,
			derefStr(session.EndReason),
			formatTime(session.CompletedAt),
		}
		for col, value := range base {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			f.SetCellValue(sheet, cell, value)
		}
		for i, question := range template.Questions {
			if scored, ok := answers[question.ID]; ok {
				cell, _ := excelize.CoordinatesToCellName(len(base)+i+1, row+2)
				f.SetCellValue(sheet, cell, scored)
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, "", fmt.Errorf("failed to render spreadsheet: %w", err)
	}

	filename := fmt.Sprintf("template_%d_results_%s.xlsx", templateID, time.Now().Format("20060102_150405"))
	s.logger.Info("Template results exported",
		"template_id", templateID,
		"sessions", len(sessions),
		"exported_by", userID)
	return buf.Bytes(), filename, nil
}

func derefStr(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339)
}
