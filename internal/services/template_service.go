package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hireflow/assessment-service/internal/models"
	"github.com/hireflow/assessment-service/internal/repositories"
	"github.com/hireflow/assessment-service/internal/validator"
	"gorm.io/gorm"
)

type templateService struct {
	repo      repositories.Repository
	db        *gorm.DB
	logger    *slog.Logger
	validator *validator.Validator
}

func NewTemplateService(repo repositories.Repository, db *gorm.DB, logger *slog.Logger, validator *validator.Validator) TemplateService {
	return &templateService{
		repo:      repo,
		db:        db,
		logger:    logger,
		validator: validator,
	}
}

func (s *templateService) Create(ctx context.Context, req *CreateTemplateRequest, creatorID string) (*TemplateDetailResponse, error) {
	s.logger.Info("Creating assessment template",
		"title", req.Title,
		"creator_id", creatorID)

	if err := s.validator.Validate(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	template := &models.AssessmentTemplate{
		Title:     req.Title,
		Status:    models.TemplateDraft,
		ScaleType: req.ScaleType,
		TimeLimit: req.TimeLimit,
		CreatedBy: creatorID,
	}
	if req.Description != "" {
		template.Description = &req.Description
	}
	if len(req.ScaleLabels) > 0 {
		labels, err := json.Marshal(req.ScaleLabels)
		if err != nil {
			return nil, fmt.Errorf("failed to encode scale labels: %w", err)
		}
		template.ScaleLabels = labels
	}
	for i, q := range req.Questions {
		template.Questions = append(template.Questions, models.TemplateQuestion{
			Stem:          q.Stem,
			Position:      i + 1,
			ReverseScored: q.ReverseScored,
		})
	}

	if err := s.repo.Template().Create(ctx, s.db, template); err != nil {
		return nil, fmt.Errorf("failed to create template: %w", err)
	}

	s.logger.Info("Assessment template created",
		"template_id", template.ID,
		"question_count", len(template.Questions))

	return s.buildTemplateDetail(template), nil
}

func (s *templateService) GetByID(ctx context.Context, id uint, userID string) (*TemplateResponse, error) {
	template, err := s.repo.Template().GetByID(ctx, s.db, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrTemplateNotFound
		}
		return nil, fmt.Errorf("failed to get template: %w", err)
	}
	return s.buildTemplateResponse(template), nil
}

func (s *templateService) GetByIDWithQuestions(ctx context.Context, id uint, userID string) (*TemplateDetailResponse, error) {
	template, err := s.repo.Template().GetByIDWithQuestions(ctx, s.db, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrTemplateNotFound
		}
		return nil, fmt.Errorf("failed to get template with questions: %w", err)
	}
	return s.buildTemplateDetail(template), nil
}

func (s *templateService) Update(ctx context.Context, id uint, req *UpdateTemplateRequest, userID string) (*TemplateResponse, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	template, err := s.repo.Template().GetByID(ctx, s.db, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrTemplateNotFound
		}
		return nil, fmt.Errorf("failed to get template: %w", err)
	}

	if err := s.checkTemplateOwnership(ctx, template, userID, "update"); err != nil {
		return nil, err
	}

	if req.Title != nil {
		template.Title = *req.Title
	}
	if req.Description != nil {
		template.Description = req.Description
	}
	if req.TimeLimit != nil {
		template.TimeLimit = req.TimeLimit
	}
	if len(req.ScaleLabels) > 0 {
		labels, err := json.Marshal(req.ScaleLabels)
		if err != nil {
			return nil, fmt.Errorf("failed to encode scale labels: %w", err)
		}
		template.ScaleLabels = labels
	}
	if req.Status != nil {
		template.Status = models.TemplateStatus(*req.Status)
	}

	if err := s.repo.Template().Update(ctx, s.db, template); err != nil {
		return nil, fmt.Errorf("failed to update template: %w", err)
	}

	s.logger.Info("Assessment template updated", "template_id", id, "updated_by", userID)
	return s.buildTemplateResponse(template), nil
}

func (s *templateService) Delete(ctx context.Context, id uint, userID string) error {
	template, err := s.repo.Template().GetByID(ctx, s.db, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrTemplateNotFound
		}
		return fmt.Errorf("failed to get template: %w", err)
	}

	if err := s.checkTemplateOwnership(ctx, template, userID, "delete"); err != nil {
		return err
	}

	stats, err := s.repo.Template().GetStats(ctx, s.db, id)
	if err != nil {
		return fmt.Errorf("failed to check template usage: %w", err)
	}
	if stats.TotalSessions > 0 {
		return ErrTemplateInUse
	}

	if err := s.repo.Template().Delete(ctx, s.db, id); err != nil {
		return fmt.Errorf("failed to delete template: %w", err)
	}

	s.logger.Info("Assessment template deleted", "template_id", id, "deleted_by", userID)
	return nil
}

func (s *templateService) List(ctx context.Context, filters repositories.TemplateFilters, userID string) (*TemplateListResponse, error) {
	templates, total, err := s.repo.Template().List(ctx, s.db, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}

	resp := &TemplateListResponse{
		Templates: make([]TemplateResponse, 0, len(templates)),
		Total:     total,
		Limit:     filters.Limit,
		Offset:    filters.Offset,
	}
	for _, template := range templates {
		resp.Templates = append(resp.Templates, *s.buildTemplateResponse(template))
	}
	return resp, nil
}

// ReplaceQuestions swaps the full question set. Existing answers keep
// referencing old question IDs, so a template that already has sessions
// cannot be restructured.
func (s *templateService) ReplaceQuestions(ctx context.Context, id uint, questions []TemplateQuestionInput, userID string) (*TemplateDetailResponse, error) {
	for _, q := range questions {
		if err := s.validator.Validate(&q); err != nil {
			return nil, fmt.Errorf("validation failed: %w", err)
		}
	}

	template, err := s.repo.Template().GetByID(ctx, s.db, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrTemplateNotFound
		}
		return nil, fmt.Errorf("failed to get template: %w", err)
	}

	if err := s.checkTemplateOwnership(ctx, template, userID, "replace_questions"); err != nil {
		return nil, err
	}

	stats, err := s.repo.Template().GetStats(ctx, s.db, id)
	if err != nil {
		return nil, fmt.Errorf("failed to check template usage: %w", err)
	}
	if stats.TotalSessions > 0 {
		return nil, NewBusinessRuleError("replace_questions", "template already has sessions")
	}

	newQuestions := make([]*models.TemplateQuestion, 0, len(questions))
	for _, q := range questions {
		newQuestions = append(newQuestions, &models.TemplateQuestion{
			TemplateID:    id,
			Stem:          q.Stem,
			ReverseScored: q.ReverseScored,
		})
	}

	if err := s.repo.Template().ReplaceQuestions(ctx, s.db, id, newQuestions); err != nil {
		return nil, fmt.Errorf("failed to replace questions: %w", err)
	}

	s.logger.Info("Template questions replaced",
		"template_id", id,
		"question_count", len(questions))

	return s.GetByIDWithQuestions(ctx, id, userID)
}

func (s *templateService) GetStats(ctx context.Context, id uint, userID string) (*repositories.TemplateStats, error) {
	if _, err := s.GetByID(ctx, id, userID); err != nil {
		return nil, err
	}
	stats, err := s.repo.Template().GetStats(ctx, s.db, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get template stats: %w", err)
	}
	return stats, nil
}

// ===== HELPERS =====

func (s *templateService) checkTemplateOwnership(ctx context.Context, template *models.AssessmentTemplate, userID, action string) error {
	if template.CreatedBy == userID {
		return nil
	}
	user, err := s.repo.User().GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to resolve user: %w", err)
	}
	if user.Role == models.RoleAdmin || user.Role == models.RoleHRManager {
		return nil
	}
	return NewPermissionError(userID, template.ID, "template", action, "not the template owner")
}

func (s *templateService) buildTemplateResponse(template *models.AssessmentTemplate) *TemplateResponse {
	resp := &TemplateResponse{
		ID:            template.ID,
		Title:         template.Title,
		Status:        template.Status,
		ScaleType:     template.ScaleType,
		TimeLimit:     template.TimeLimit,
		QuestionCount: template.QuestionCount,
		SessionCount:  template.SessionCount,
		CreatedBy:     template.CreatedBy,
		CreatedAt:     template.CreatedAt,
		UpdatedAt:     template.UpdatedAt,
	}
	if template.Description != nil {
		resp.Description = *template.Description
	}
	return resp
}

func (s *templateService) buildTemplateDetail(template *models.AssessmentTemplate) *TemplateDetailResponse {
	detail := &TemplateDetailResponse{
		TemplateResponse: *s.buildTemplateResponse(template),
		ScaleLabels:      decodeScaleLabels(template.ScaleLabels),
		Questions:        buildQuestionResponses(template.Questions),
	}
	if detail.QuestionCount == 0 {
		detail.QuestionCount = len(template.Questions)
	}
	return detail
}
