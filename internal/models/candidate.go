package models

import (
	"time"

	"gorm.io/gorm"
)

// Candidate is the person taking an assessment. Candidates never log in; they
// only ever reach the service through a session token.
type Candidate struct {
	ID       uint    `json:"id" gorm:"primaryKey"`
	FullName string  `json:"full_name" gorm:"not null;size:200" validate:"required,min=1,max=200"`
	Email    string  `json:"email" gorm:"not null;index;size:255" validate:"required,email,max=255"`
	Phone    *string `json:"phone" gorm:"size:50" validate:"omitempty,max=50"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	// Relations
	Sessions []AssessmentSession `json:"sessions,omitempty" gorm:"foreignKey:CandidateID"`
}

func (Candidate) TableName() string {
	return "candidates"
}
