package persistence

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateSortOrder(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"valid asc lowercase", "asc", "ASC"},
		{"valid asc uppercase", "ASC", "ASC"},
		{"valid desc lowercase", "desc", "DESC"},
		{"valid desc uppercase", "DESC", "DESC"},
		{"asc with whitespace", "  asc  ", "ASC"},
		{"empty string", "", "DESC"},
		{"invalid value", "random", "DESC"},
		{"sql injection attempt", "ASC; DROP TABLE payouts", "DESC"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ValidateSortOrder(tt.input))
		})
	}
}

func TestValidateSortField(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		allowed  map[string]bool
		expected string
	}{
		{"allowed field", "status", PayoutSortFields, "status"},
		{"field with whitespace", "  net_cents  ", PayoutSortFields, "net_cents"},
		{"disallowed field", "destination_ref", PayoutSortFields, "created_at"},
		{"empty field", "", PayoutSortFields, "created_at"},
		{"sql injection attempt", "created_at; DROP TABLE payouts", PayoutSortFields, "created_at"},
		{"common field", "updated_at", CommonSortFields, "updated_at"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ValidateSortField(tt.input, tt.allowed, "created_at"))
		})
	}
}

func TestDomainSortFields(t *testing.T) {
	// Deadline-driven queues sort on their deadline columns.
	assert.True(t, DisputeSortFields["evidence_deadline"])
	assert.True(t, ExternalTransactionSortFields["occurred_at"])
	assert.True(t, TransactionSortFields["posted_at"])

	// Free-text columns must never be sortable.
	assert.False(t, DisputeSortFields["provider_status"])
	assert.False(t, AccountSortFields["currency"])
}
