package models

import (
	"time"

	"gorm.io/gorm"
)

type JobStatus string

const (
	JobOpen   JobStatus = "Open"
	JobClosed JobStatus = "Closed"
)

// Job is the opening an assessment invitation is attached to. When a consent
// document is configured, takers must accept it before the test starts.
type Job struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	Title       string    `json:"title" gorm:"not null;size:200;index" validate:"required,min=1,max=200"`
	Description *string   `json:"description" gorm:"type:text" validate:"omitempty,max=5000"`
	Status      JobStatus `json:"status" gorm:"default:Open;index"`

	// ConsentDocumentURL, when set, inserts the agreement step into the taker flow.
	ConsentDocumentURL *string `json:"consent_document_url" gorm:"size:500" validate:"omitempty,url,max=500"`

	CreatedBy string         `json:"created_by" gorm:"not null;index;size:255"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	// Relations
	Sessions []AssessmentSession `json:"sessions,omitempty" gorm:"foreignKey:JobID"`
	Creator  User                `json:"creator" gorm:"foreignKey:CreatedBy"`
}

func (Job) TableName() string {
	return "jobs"
}

// RequiresConsent reports whether takers must accept a consent document.
func (j *Job) RequiresConsent() bool {
	return j.ConsentDocumentURL != nil && *j.ConsentDocumentURL != ""
}
