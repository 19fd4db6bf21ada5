package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/hireflow/assessment-service/internal/models"
	"gorm.io/gorm"
)

// Repository aggregates all repository interfaces
type Repository interface {
	// Template domain
	Template() TemplateRepository

	// Session domain
	Session() SessionRepository
	Answer() AnswerRepository

	// Recruitment domain
	Candidate() CandidateRepository
	Job() JobRepository

	// User domain (read-only, backed by Casdoor)
	User() UserRepository

	// Transaction support
	WithTransaction(ctx context.Context, fn func(Repository) error) error

	// Health check
	Ping(ctx context.Context) error

	// Close connections
	Close() error
}

// RepositoryManager interface for managing repository lifecycle
type RepositoryManager interface {
	Initialize() error
	GetRepository() Repository
	HealthCheck(ctx context.Context) error
	Shutdown(ctx context.Context) error
}

type TemplateRepository interface {
	Create(ctx context.Context, tx *gorm.DB, template *models.AssessmentTemplate) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.AssessmentTemplate, error)
	GetByIDWithQuestions(ctx context.Context, tx *gorm.DB, id uint) (*models.AssessmentTemplate, error)
	Update(ctx context.Context, tx *gorm.DB, template *models.AssessmentTemplate) error
	Delete(ctx context.Context, tx *gorm.DB, id uint) error

	List(ctx context.Context, tx *gorm.DB, filters TemplateFilters) ([]*models.AssessmentTemplate, int64, error)
	Search(ctx context.Context, tx *gorm.DB, query string, filters TemplateFilters) ([]*models.AssessmentTemplate, int64, error)

	// ReplaceQuestions swaps the full ordered question list in one statement set.
	ReplaceQuestions(ctx context.Context, tx *gorm.DB, templateID uint, questions []*models.TemplateQuestion) error

	GetStats(ctx context.Context, tx *gorm.DB, templateID uint) (*TemplateStats, error)
}

type SessionRepository interface {
	Create(ctx context.Context, tx *gorm.DB, session *models.AssessmentSession) error
	CreateBatch(ctx context.Context, tx *gorm.DB, sessions []*models.AssessmentSession) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.AssessmentSession, error)
	GetByToken(ctx context.Context, tx *gorm.DB, token string) (*models.AssessmentSession, error)
	GetByTokenWithDetails(ctx context.Context, tx *gorm.DB, token string) (*models.AssessmentSession, error)
	Update(ctx context.Context, tx *gorm.DB, session *models.AssessmentSession) error

	List(ctx context.Context, tx *gorm.DB, filters SessionFilters) ([]*models.AssessmentSession, int64, error)

	// MarkExpired flips every overdue non-terminal session to expired and
	// returns the swept rows so the caller can emit per-session signals.
	// Used by the background sweeper.
	MarkExpired(ctx context.Context, tx *gorm.DB, now time.Time) ([]*models.AssessmentSession, error)

	GetStats(ctx context.Context, tx *gorm.DB, filters SessionFilters) (*SessionStats, error)
}

type AnswerRepository interface {
	// Upsert writes the current value for (session, question); an existing row
	// is overwritten so only the latest submission counts.
	Upsert(ctx context.Context, tx *gorm.DB, answer *models.SessionAnswer) error
	GetBySessionAndQuestion(ctx context.Context, tx *gorm.DB, sessionID, questionID uint) (*models.SessionAnswer, error)
	CountBySession(ctx context.Context, tx *gorm.DB, sessionID uint) (int64, error)
}

// Candidates and jobs are owned by the surrounding ATS; this service only
// reads them to resolve an invitation and creates candidates on first
// invite.
type CandidateRepository interface {
	Create(ctx context.Context, tx *gorm.DB, candidate *models.Candidate) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Candidate, error)
	GetByEmail(ctx context.Context, tx *gorm.DB, email string) (*models.Candidate, error)
}

type JobRepository interface {
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Job, error)
}

type UserRepository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	List(ctx context.Context, limit, offset int) ([]*models.User, error)
	Search(ctx context.Context, query string, limit int) ([]*models.User, error)
}

// IsNotFoundError reports whether err is a record-not-found from the storage layer
func IsNotFoundError(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
