package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type TemplateStatus string

const (
	TemplateDraft    TemplateStatus = "Draft"
	TemplateActive   TemplateStatus = "Active"
	TemplateArchived TemplateStatus = "Archived"
)

// AssessmentTemplate is the ordered set of Likert questions, the scale type and
// an optional per-session time limit governing every session created from it.
type AssessmentTemplate struct {
	ID          uint           `json:"id" gorm:"primaryKey"`
	Title       string         `json:"title" gorm:"not null;size:200;index" validate:"required,min=1,max=200"`
	Description *string        `json:"description" gorm:"type:text" validate:"omitempty,max=2000"`
	Status      TemplateStatus `json:"status" gorm:"default:Draft;index" validate:"omitempty,oneof=Draft Active Archived"`

	// ScaleType is the number of discrete response points per question (e.g. 5 or 7).
	// Template-defined, never hardcoded in scoring or validation paths.
	ScaleType int `json:"scale_type" gorm:"not null;default:5" validate:"required,min=2,max=10"`

	// ScaleLabels optionally maps scale points to display labels, e.g. {"1": "Strongly disagree"}.
	ScaleLabels datatypes.JSON `json:"scale_labels" gorm:"type:jsonb"`

	// TimeLimit in seconds. Nil means sessions from this template are untimed.
	TimeLimit *int `json:"time_limit" validate:"omitempty,min=30,max=14400"`

	// Metadata
	CreatedBy string         `json:"created_by" gorm:"not null;index;size:255"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	Version int `json:"version" gorm:"default:1"`

	// Relations
	Questions []TemplateQuestion  `json:"questions" gorm:"foreignKey:TemplateID"`
	Sessions  []AssessmentSession `json:"sessions,omitempty" gorm:"foreignKey:TemplateID"`
	Creator   User                `json:"creator" gorm:"foreignKey:CreatedBy"`

	// Computed fields (not stored)
	QuestionCount int `json:"question_count" gorm:"-"`
	SessionCount  int `json:"session_count" gorm:"-"`
}

// TemplateQuestion is a single Likert item. Position defines the order takers see.
type TemplateQuestion struct {
	ID         uint   `json:"id" gorm:"primaryKey"`
	TemplateID uint   `json:"template_id" gorm:"not null;index"`
	Stem       string `json:"stem" gorm:"not null;type:text" validate:"required,min=1,max=2000"`
	Position   int    `json:"position" gorm:"not null;index"`

	// ReverseScored items are stored as submitted and inverted at export/scoring
	// time: scored = scaleType + 1 - raw.
	ReverseScored bool `json:"reverse_scored" gorm:"not null;default:false"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Template AssessmentTemplate `json:"-" gorm:"foreignKey:TemplateID"`
}

func (AssessmentTemplate) TableName() string {
	return "assessment_templates"
}

func (TemplateQuestion) TableName() string {
	return "template_questions"
}

// QuestionByID returns the template question with the given id, or nil when the
// question does not belong to this template.
func (t *AssessmentTemplate) QuestionByID(questionID uint) *TemplateQuestion {
	for i := range t.Questions {
		if t.Questions[i].ID == questionID {
			return &t.Questions[i]
		}
	}
	return nil
}

// ValidScore reports whether score is within the template's scale range [1, ScaleType].
func (t *AssessmentTemplate) ValidScore(score int) bool {
	return score >= 1 && score <= t.ScaleType
}
