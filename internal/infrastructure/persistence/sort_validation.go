package persistence

import (
	"strings"

	"gorm.io/gorm"

	"github.com/streamcart/backend/internal/domain/shared"
)

// ValidateSortOrder validates and normalizes the sort order to ASC or DESC.
// Returns "DESC" as the default if the input is invalid or empty.
func ValidateSortOrder(orderDir string) string {
	normalized := strings.ToUpper(strings.TrimSpace(orderDir))
	if normalized == "ASC" {
		return "ASC"
	}
	return "DESC"
}

// ValidateSortField validates the sort field against a whitelist of allowed fields.
// Returns the defaultField if the input is invalid, empty, or not in the whitelist.
func ValidateSortField(sortField string, allowedFields map[string]bool, defaultField string) string {
	trimmed := strings.TrimSpace(sortField)
	if trimmed == "" {
		return defaultField
	}
	if allowedFields[trimmed] {
		return trimmed
	}
	return defaultField
}

// CommonSortFields contains fields common to most entities
var CommonSortFields = map[string]bool{
	"id":         true,
	"created_at": true,
	"updated_at": true,
}

// AccountSortFields contains allowed sort fields for ledger accounts
var AccountSortFields = map[string]bool{
	"id":         true,
	"created_at": true,
	"updated_at": true,
	"code":       true,
	"name":       true,
	"type":       true,
}

// TransactionSortFields contains allowed sort fields for ledger transactions
var TransactionSortFields = map[string]bool{
	"id":         true,
	"created_at": true,
	"posted_at":  true,
}

// ExternalTransactionSortFields contains allowed sort fields for the external feed
var ExternalTransactionSortFields = map[string]bool{
	"id":          true,
	"created_at":  true,
	"occurred_at": true,
	"source":      true,
}

// DiscrepancySortFields contains allowed sort fields for discrepancies
var DiscrepancySortFields = map[string]bool{
	"id":         true,
	"created_at": true,
	"updated_at": true,
	"severity":   true,
	"status":     true,
}

// PayoutSortFields contains allowed sort fields for payouts
var PayoutSortFields = map[string]bool{
	"id":           true,
	"created_at":   true,
	"updated_at":   true,
	"period_start": true,
	"status":       true,
	"net_cents":    true,
}

// DisputeSortFields contains allowed sort fields for disputes
var DisputeSortFields = map[string]bool{
	"id":                true,
	"created_at":        true,
	"updated_at":        true,
	"evidence_deadline": true,
	"status":            true,
	"amount_cents":      true,
}

// IncidentSortFields contains allowed sort fields for incidents
var IncidentSortFields = map[string]bool{
	"id":         true,
	"created_at": true,
	"severity":   true,
	"kind":       true,
}

// applySort applies validated ordering from a filter to the query.
func applySort(query *gorm.DB, filter shared.Filter, allowedFields map[string]bool) *gorm.DB {
	field := ValidateSortField(filter.OrderBy, allowedFields, "created_at")
	dir := ValidateSortOrder(filter.OrderDir)
	return query.Order(field + " " + dir)
}

// applyPagination applies page-based offsets from a filter to the query.
func applyPagination(query *gorm.DB, filter shared.Filter) *gorm.DB {
	if filter.Page > 0 && filter.PageSize > 0 {
		query = query.Offset(filter.Offset()).Limit(filter.PageSize)
	}
	return query
}
