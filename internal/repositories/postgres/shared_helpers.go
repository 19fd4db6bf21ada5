package postgres

import (
	"fmt"

	"github.com/hireflow/assessment-service/internal/repositories"
	"gorm.io/gorm"
)

// SharedHelpers contains common query-building operations
type SharedHelpers struct {
	db *gorm.DB
}

func NewSharedHelpers(db *gorm.DB) *SharedHelpers {
	return &SharedHelpers{db: db}
}

// ApplyTemplateFilters applies common template filters to a query
func (h *SharedHelpers) ApplyTemplateFilters(query *gorm.DB, filters repositories.TemplateFilters) *gorm.DB {
	if filters.Status != nil {
		query = query.Where("status = ?", *filters.Status)
	}
	if filters.CreatedBy != nil {
		query = query.Where("created_by = ?", *filters.CreatedBy)
	}
	if filters.DateFrom != nil {
		query = query.Where("created_at >= ?", *filters.DateFrom)
	}
	if filters.DateTo != nil {
		query = query.Where("created_at <= ?", *filters.DateTo)
	}
	return query
}

// ApplySessionFilters applies common session filters to a query
func (h *SharedHelpers) ApplySessionFilters(query *gorm.DB, filters repositories.SessionFilters) *gorm.DB {
	if filters.Status != nil {
		query = query.Where("status = ?", *filters.Status)
	}
	if filters.TemplateID != nil {
		query = query.Where("template_id = ?", *filters.TemplateID)
	}
	if filters.JobID != nil {
		query = query.Where("job_id = ?", *filters.JobID)
	}
	if filters.CandidateID != nil {
		query = query.Where("candidate_id = ?", *filters.CandidateID)
	}
	if filters.InvitedBy != nil {
		query = query.Where("invited_by = ?", *filters.InvitedBy)
	}
	if filters.DateFrom != nil {
		query = query.Where("created_at >= ?", *filters.DateFrom)
	}
	if filters.DateTo != nil {
		query = query.Where("created_at <= ?", *filters.DateTo)
	}
	return query
}

// ApplyPaginationAndSort applies limit/offset and ordering with a whitelist of
// sortable columns so filter input can never reach the ORDER BY clause raw.
func (h *SharedHelpers) ApplyPaginationAndSort(query *gorm.DB, limit, offset int, sortBy, sortOrder string, sortable map[string]bool) *gorm.DB {
	if sortBy == "" || !sortable[sortBy] {
		sortBy = "created_at"
	}
	if sortOrder != "asc" {
		sortOrder = "desc"
	}
	query = query.Order(fmt.Sprintf("%s %s", sortBy, sortOrder))

	if limit <= 0 || limit > 100 {
		limit = 20
	}
	query = query.Limit(limit)

	if offset > 0 {
		query = query.Offset(offset)
	}
	return query
}
