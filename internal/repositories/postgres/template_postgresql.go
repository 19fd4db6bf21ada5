package postgres

import (
	"context"
	"fmt"

	"github.com/hireflow/assessment-service/internal/cache"
	"github.com/hireflow/assessment-service/internal/models"
	"github.com/hireflow/assessment-service/internal/repositories"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type TemplatePostgreSQL struct {
	db           *gorm.DB
	helpers      *SharedHelpers
	cacheManager *cache.CacheManager
}

func NewTemplatePostgreSQL(db *gorm.DB, redisClient *redis.Client) repositories.TemplateRepository {
	return &TemplatePostgreSQL{
		db:           db,
		helpers:      NewSharedHelpers(db),
		cacheManager: cache.NewCacheManager(redisClient),
	}
}

func (t *TemplatePostgreSQL) Create(ctx context.Context, tx *gorm.DB, template *models.AssessmentTemplate) error {
	db := t.getDB(tx)
	return db.WithContext(ctx).Create(template).Error
}

func (t *TemplatePostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.AssessmentTemplate, error) {
	db := t.getDB(tx)
	cacheKey := fmt.Sprintf("id:%d", id)
	var template models.AssessmentTemplate

	err := t.cacheManager.Template.CacheOrExecute(ctx, cacheKey, &template, cache.TemplateCacheConfig.TTL, func() (interface{}, error) {
		var dbTemplate models.AssessmentTemplate
		if err := db.WithContext(ctx).First(&dbTemplate, id).Error; err != nil {
			return nil, err
		}
		return &dbTemplate, nil
	})

	return &template, err
}

func (t *TemplatePostgreSQL) GetByIDWithQuestions(ctx context.Context, tx *gorm.DB, id uint) (*models.AssessmentTemplate, error) {
	db := t.getDB(tx)
	var template models.AssessmentTemplate
	if err := db.WithContext(ctx).
		Preload("Questions", func(db *gorm.DB) *gorm.DB {
			return db.Order("template_questions.position ASC")
		}).
		First(&template, id).Error; err != nil {
		return nil, err
	}
	return &template, nil
}

func (t *TemplatePostgreSQL) Update(ctx context.Context, tx *gorm.DB, template *models.AssessmentTemplate) error {
	db := t.getDB(tx)
	if err := db.WithContext(ctx).Save(template).Error; err != nil {
		return err
	}
	cache.InvalidateTemplateCache(ctx, t.cacheManager, template.ID, template.CreatedBy)
	return nil
}

func (t *TemplatePostgreSQL) Delete(ctx context.Context, tx *gorm.DB, id uint) error {
	db := t.getDB(tx)
	if err := db.WithContext(ctx).Delete(&models.AssessmentTemplate{}, id).Error; err != nil {
		return err
	}
	cache.SafeDelete(ctx, t.cacheManager.Template, fmt.Sprintf("id:%d", id), fmt.Sprintf("details:%d", id))
	return nil
}

func (t *TemplatePostgreSQL) List(ctx context.Context, tx *gorm.DB, filters repositories.TemplateFilters) ([]*models.AssessmentTemplate, int64, error) {
	db := t.getDB(tx)
	var templates []*models.AssessmentTemplate
	var total int64

	query := db.WithContext(ctx).Model(&models.AssessmentTemplate{})
	query = t.helpers.ApplyTemplateFilters(query, filters)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = t.helpers.ApplyPaginationAndSort(query, filters.Limit, filters.Offset, filters.SortBy, filters.SortOrder, templateSortable)

	if err := query.Find(&templates).Error; err != nil {
		return nil, 0, err
	}

	return templates, total, nil
}

func (t *TemplatePostgreSQL) Search(ctx context.Context, tx *gorm.DB, searchQuery string, filters repositories.TemplateFilters) ([]*models.AssessmentTemplate, int64, error) {
	db := t.getDB(tx)
	var templates []*models.AssessmentTemplate
	var total int64

	query := db.WithContext(ctx).Model(&models.AssessmentTemplate{}).
		Where("title ILIKE ? OR description ILIKE ?", "%"+searchQuery+"%", "%"+searchQuery+"%")
	query = t.helpers.ApplyTemplateFilters(query, filters)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = t.helpers.ApplyPaginationAndSort(query, filters.Limit, filters.Offset, filters.SortBy, filters.SortOrder, templateSortable)

	if err := query.Find(&templates).Error; err != nil {
		return nil, 0, err
	}

	return templates, total, nil
}

func (t *TemplatePostgreSQL) ReplaceQuestions(ctx context.Context, tx *gorm.DB, templateID uint, questions []*models.TemplateQuestion) error {
	db := t.getDB(tx)

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("template_id = ?", templateID).Delete(&models.TemplateQuestion{}).Error; err != nil {
			return fmt.Errorf("failed to delete existing questions: %w", err)
		}
		if len(questions) == 0 {
			return nil
		}
		for i, q := range questions {
			q.TemplateID = templateID
			q.Position = i + 1
		}
		if err := tx.Create(&questions).Error; err != nil {
			return fmt.Errorf("failed to create questions: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	cache.SafeDelete(ctx, t.cacheManager.Template, fmt.Sprintf("id:%d", templateID), fmt.Sprintf("details:%d", templateID))
	return nil
}

func (t *TemplatePostgreSQL) GetStats(ctx context.Context, tx *gorm.DB, templateID uint) (*repositories.TemplateStats, error) {
	db := t.getDB(tx)
	stats := &repositories.TemplateStats{}

	var questionCount int64
	if err := db.WithContext(ctx).Model(&models.TemplateQuestion{}).
		Where("template_id = ?", templateID).
		Count(&questionCount).Error; err != nil {
		return nil, err
	}
	stats.QuestionCount = int(questionCount)

	type row struct {
		Status models.SessionStatus
		Count  int
	}
	var rows []row
	if err := db.WithContext(ctx).Model(&models.AssessmentSession{}).
		Select("status, count(*) as count").
		Where("template_id = ?", templateID).
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, r := range rows {
		stats.TotalSessions += r.Count
		switch r.Status {
		case models.SessionCompleted:
			stats.CompletedSessions = r.Count
		case models.SessionExpired:
			stats.ExpiredSessions = r.Count
		}
	}
	if stats.TotalSessions > 0 {
		stats.CompletionRate = float64(stats.CompletedSessions) / float64(stats.TotalSessions) * 100
	}

	var avgDuration *float64
	if err := db.WithContext(ctx).Model(&models.AssessmentSession{}).
		Select("AVG(EXTRACT(EPOCH FROM completed_at - started_at))").
		Where("template_id = ? AND status = ? AND started_at IS NOT NULL AND completed_at IS NOT NULL",
			templateID, models.SessionCompleted).
		Scan(&avgDuration).Error; err != nil {
		return nil, err
	}
	if avgDuration != nil {
		stats.AverageDuration = int(*avgDuration)
	}

	return stats, nil
}

var templateSortable = map[string]bool{
	"created_at": true,
	"updated_at": true,
	"title":      true,
	"status":     true,
}

// getDB returns the transaction DB if provided, otherwise returns the default DB
func (t *TemplatePostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return t.db
}
