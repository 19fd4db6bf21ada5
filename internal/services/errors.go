package services

import (
	"errors"
	"fmt"

	"github.com/hireflow/assessment-service/internal/validator"
)

// ===== SENTINEL ERRORS =====

var (
	// Template errors
	ErrTemplateNotFound  = errors.New("assessment template not found")
	ErrTemplateNotActive = errors.New("assessment template is not active")
	ErrTemplateHasNoTime = errors.New("session has no time limit to extend")
	ErrTemplateInUse     = errors.New("assessment template has sessions and cannot be deleted")
	ErrNoQuestions       = errors.New("assessment template has no questions")

	// Session errors
	ErrSessionNotFound         = errors.New("session not found")
	ErrSessionExpired          = errors.New("session invitation has expired")
	ErrSessionAlreadyCompleted = errors.New("session is already completed")
	ErrSessionNotActive        = errors.New("session is not in progress")
	ErrSessionNotStarted       = errors.New("session has not been started")
	ErrSessionRevoked          = errors.New("session invitation was revoked")

	// Answer errors
	ErrScoreOutOfRange       = errors.New("score is outside the template scale range")
	ErrQuestionNotInTemplate = errors.New("question does not belong to the session template")
	ErrIncompleteAnswers     = errors.New("all questions must be answered before completing")

	// Candidate / job errors
	ErrCandidateNotFound = errors.New("candidate not found")
	ErrJobNotFound       = errors.New("job not found")

	// Generic
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
)

// ValidationErrors is re-exported so handlers can match it with errors.As
// without importing the validator package.
type ValidationErrors = validator.ValidationErrors

// ===== STRUCTURED ERRORS =====

// PermissionError carries who tried what on which resource.
type PermissionError struct {
	UserID       string
	ResourceID   interface{}
	ResourceType string
	Action       string
	Reason       string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("user %s cannot %s %s %v: %s",
		e.UserID, e.Action, e.ResourceType, e.ResourceID, e.Reason)
}

func NewPermissionError(userID string, resourceID interface{}, resourceType, action, reason string) *PermissionError {
	return &PermissionError{
		UserID:       userID,
		ResourceID:   resourceID,
		ResourceType: resourceType,
		Action:       action,
		Reason:       reason,
	}
}

// BusinessRuleError marks a domain rule violation that maps to 422.
type BusinessRuleError struct {
	Rule    string
	Message string
}

func (e *BusinessRuleError) Error() string {
	return fmt.Sprintf("business rule %s violated: %s", e.Rule, e.Message)
}

func NewBusinessRuleError(rule, message string) *BusinessRuleError {
	return &BusinessRuleError{Rule: rule, Message: message}
}
