package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/hireflow/assessment-service/internal/cache"
	"github.com/hireflow/assessment-service/internal/models"
	"github.com/hireflow/assessment-service/internal/repositories"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SessionPostgreSQL struct {
	db           *gorm.DB
	helpers      *SharedHelpers
	cacheManager *cache.CacheManager
}

func NewSessionPostgreSQL(db *gorm.DB, redisClient *redis.Client) repositories.SessionRepository {
	return &SessionPostgreSQL{
		db:           db,
		helpers:      NewSharedHelpers(db),
		cacheManager: cache.NewCacheManager(redisClient),
	}
}

func (s *SessionPostgreSQL) Create(ctx context.Context, tx *gorm.DB, session *models.AssessmentSession) error {
	db := s.getDB(tx)
	return db.WithContext(ctx).Create(session).Error
}

func (s *SessionPostgreSQL) CreateBatch(ctx context.Context, tx *gorm.DB, sessions []*models.AssessmentSession) error {
	if len(sessions) == 0 {
		return nil
	}
	db := s.getDB(tx)
	return db.WithContext(ctx).CreateInBatches(sessions, 100).Error
}

func (s *SessionPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.AssessmentSession, error) {
	db := s.getDB(tx)
	var session models.AssessmentSession
	if err := db.WithContext(ctx).First(&session, id).Error; err != nil {
		return nil, err
	}
	return &session, nil
}

func (s *SessionPostgreSQL) GetByToken(ctx context.Context, tx *gorm.DB, token string) (*models.AssessmentSession, error) {
	db := s.getDB(tx)
	// Token lookups happen on every taker interaction, cache the bare record
	cacheKey := fmt.Sprintf("token:%s", token)
	var session models.AssessmentSession

	err := s.cacheManager.Fast.CacheOrExecute(ctx, cacheKey, &session, cache.FastCacheConfig.TTL, func() (interface{}, error) {
		var dbSession models.AssessmentSession
		if err := db.WithContext(ctx).Where("token = ?", token).First(&dbSession).Error; err != nil {
			return nil, err
		}
		return &dbSession, nil
	})

	return &session, err
}

func (s *SessionPostgreSQL) GetByTokenWithDetails(ctx context.Context, tx *gorm.DB, token string) (*models.AssessmentSession, error) {
	db := s.getDB(tx)
	var session models.AssessmentSession
	if err := db.WithContext(ctx).
		Preload("Template.Questions", func(db *gorm.DB) *gorm.DB {
			return db.Order("template_questions.position ASC")
		}).
		Preload("Candidate").
		Preload("Job").
		Preload("Answers").
		Where("token = ?", token).
		First(&session).Error; err != nil {
		return nil, err
	}
	return &session, nil
}

func (s *SessionPostgreSQL) Update(ctx context.Context, tx *gorm.DB, session *models.AssessmentSession) error {
	db := s.getDB(tx)
	if err := db.WithContext(ctx).Save(session).Error; err != nil {
		return err
	}
	cache.InvalidateSessionCache(ctx, s.cacheManager, session.ID, session.Token)
	return nil
}

func (s *SessionPostgreSQL) List(ctx context.Context, tx *gorm.DB, filters repositories.SessionFilters) ([]*models.AssessmentSession, int64, error) {
	db := s.getDB(tx)
	var sessions []*models.AssessmentSession
	var total int64

	query := db.WithContext(ctx).Model(&models.AssessmentSession{})
	query = s.helpers.ApplySessionFilters(query, filters)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = s.helpers.ApplyPaginationAndSort(query, filters.Limit, filters.Offset, filters.SortBy, filters.SortOrder, sessionSortable)

	if err := query.Preload("Candidate").Preload("Job").Preload("Answers").Find(&sessions).Error; err != nil {
		return nil, 0, err
	}

	return sessions, total, nil
}

func (s *SessionPostgreSQL) MarkExpired(ctx context.Context, tx *gorm.DB, now time.Time) ([]*models.AssessmentSession, error) {
	db := s.getDB(tx)
	var overdue []*models.AssessmentSession

	// Select-then-update in one transaction so the returned rows are
	// exactly the rows flipped.
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.
			Where("expires_at < ? AND status IN ?", now,
				[]models.SessionStatus{models.SessionPending, models.SessionInProgress}).
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Find(&overdue).Error; err != nil {
			return err
		}
		if len(overdue) == 0 {
			return nil
		}

		reason := models.SessionEndReasonExpired
		ids := make([]uint, 0, len(overdue))
		for _, session := range overdue {
			ids = append(ids, session.ID)
			session.Status = models.SessionExpired
			session.EndReason = &reason
		}
		return tx.Model(&models.AssessmentSession{}).
			Where("id IN ?", ids).
			Updates(map[string]interface{}{
				"status":     models.SessionExpired,
				"end_reason": models.SessionEndReasonExpired,
				"updated_at": now,
			}).Error
	})
	if err != nil {
		return nil, err
	}

	// Token-keyed cache entries for swept sessions go stale, drop the lot
	if len(overdue) > 0 {
		cache.SafeInvalidatePattern(ctx, s.cacheManager.Fast, "token:*")
		cache.SafeInvalidatePattern(ctx, s.cacheManager.Session, "token:*")
	}

	return overdue, nil
}

func (s *SessionPostgreSQL) GetStats(ctx context.Context, tx *gorm.DB, filters repositories.SessionFilters) (*repositories.SessionStats, error) {
	db := s.getDB(tx)
	stats := &repositories.SessionStats{
		StatusBreakdown: make(map[models.SessionStatus]int),
	}

	type row struct {
		Status models.SessionStatus
		Count  int
	}
	var rows []row
	query := s.helpers.ApplySessionFilters(db.WithContext(ctx).Model(&models.AssessmentSession{}), filters)
	if err := query.
		Select("status, count(*) as count").
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, r := range rows {
		stats.StatusBreakdown[r.Status] = r.Count
		stats.TotalSessions += r.Count
	}

	var timedOut int64
	query = s.helpers.ApplySessionFilters(db.WithContext(ctx).Model(&models.AssessmentSession{}), filters)
	if err := query.
		Where("end_reason = ?", models.SessionEndReasonTimeout).
		Count(&timedOut).Error; err != nil {
		return nil, err
	}
	stats.TimedOut = int(timedOut)

	var avgDuration *float64
	query = s.helpers.ApplySessionFilters(db.WithContext(ctx).Model(&models.AssessmentSession{}), filters)
	if err := query.
		Select("AVG(EXTRACT(EPOCH FROM completed_at - started_at))").
		Where("started_at IS NOT NULL AND completed_at IS NOT NULL").
		Scan(&avgDuration).Error; err != nil {
		return nil, err
	}
	if avgDuration != nil {
		stats.AverageDuration = int(*avgDuration)
	}

	return stats, nil
}

var sessionSortable = map[string]bool{
	"created_at":   true,
	"updated_at":   true,
	"started_at":   true,
	"completed_at": true,
	"expires_at":   true,
	"status":       true,
}

// getDB returns the transaction DB if provided, otherwise returns the default DB
func (s *SessionPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return s.db
}
