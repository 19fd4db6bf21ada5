package postgres

import (
	"context"

	"github.com/hireflow/assessment-service/internal/models"
	"github.com/hireflow/assessment-service/internal/repositories"
	"gorm.io/gorm"
)

// Jobs are written by the surrounding ATS; this service only reads them
// when resolving an invitation's consent requirements.
type JobPostgreSQL struct {
	db *gorm.DB
}

func NewJobPostgreSQL(db *gorm.DB) repositories.JobRepository {
	return &JobPostgreSQL{db: db}
}

func (j *JobPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Job, error) {
	db := j.getDB(tx)
	var job models.Job
	if err := db.WithContext(ctx).First(&job, id).Error; err != nil {
		return nil, err
	}
	return &job, nil
}

func (j *JobPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return j.db
}
