package postgres

import (
	"context"

	"github.com/hireflow/assessment-service/internal/models"
	"github.com/hireflow/assessment-service/internal/repositories"
	"gorm.io/gorm"
)

type CandidatePostgreSQL struct {
	db *gorm.DB
}

func NewCandidatePostgreSQL(db *gorm.DB) repositories.CandidateRepository {
	return &CandidatePostgreSQL{db: db}
}

func (c *CandidatePostgreSQL) Create(ctx context.Context, tx *gorm.DB, candidate *models.Candidate) error {
	db := c.getDB(tx)
	return db.WithContext(ctx).Create(candidate).Error
}

func (c *CandidatePostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Candidate, error) {
	db := c.getDB(tx)
	var candidate models.Candidate
	if err := db.WithContext(ctx).First(&candidate, id).Error; err != nil {
		return nil, err
	}
	return &candidate, nil
}

func (c *CandidatePostgreSQL) GetByEmail(ctx context.Context, tx *gorm.DB, email string) (*models.Candidate, error) {
	db := c.getDB(tx)
	var candidate models.Candidate
	if err := db.WithContext(ctx).Where("email = ?", email).First(&candidate).Error; err != nil {
		return nil, err
	}
	return &candidate, nil
}

func (c *CandidatePostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return c.db
}
