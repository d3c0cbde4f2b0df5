// Package feed parses settlement files delivered by banks and payment
// processors into external transaction rows for reconciliation.
package feed

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/streamcart/backend/internal/domain/shared/valueobject"
)

// Column names expected in a settlement file header
const (
	ColumnExternalID  = "external_id"
	ColumnAmountCents = "amount_cents"
	ColumnCurrency    = "currency"
	ColumnOccurredAt  = "occurred_at"
	ColumnReference   = "reference"
)

var requiredColumns = []string{ColumnExternalID, ColumnAmountCents, ColumnCurrency, ColumnOccurredAt}

// occurredAtLayouts are the accepted timestamp formats, tried in order.
// Processors disagree on this; date-only rows settle at midnight UTC.
var occurredAtLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// SettlementRow is one accepted row from a settlement file
type SettlementRow struct {
	Line        int
	ExternalID  string
	AmountCents int64
	Currency    valueobject.Currency
	OccurredAt  time.Time
	Reference   string
	Raw         string
}

// ParseResult summarizes one settlement file parse
type ParseResult struct {
	Rows       []SettlementRow
	Errors     []RowError
	TotalRows  int
	ErrorCount int
}

// SettlementParser parses CSV settlement files
type SettlementParser struct {
	maxRows   int
	maxErrors int
}

// ParserOption is a functional option for SettlementParser configuration
type ParserOption func(*SettlementParser)

// WithMaxRows caps how many data rows a single file may carry
func WithMaxRows(n int) ParserOption {
	return func(p *SettlementParser) {
		p.maxRows = n
	}
}

// WithMaxErrors caps how many row errors are retained
func WithMaxErrors(n int) ParserOption {
	return func(p *SettlementParser) {
		p.maxErrors = n
	}
}

// NewSettlementParser creates a settlement file parser
func NewSettlementParser(opts ...ParserOption) *SettlementParser {
	p := &SettlementParser{
		maxRows:   50000,
		maxErrors: 100,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse reads a settlement file and returns the accepted rows alongside
// per-row rejections. A file-level problem (bad encoding, missing header)
// fails the whole parse; a bad row only fails that row.
func (p *SettlementParser) Parse(r io.Reader) (*ParseResult, error) {
	br := bufio.NewReader(r)

	if err := stripBOM(br); err != nil {
		return nil, err
	}
	if err := validateUTF8(br); err != nil {
		return nil, err
	}

	cr := csv.NewReader(br)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	header, err := p.readHeader(cr)
	if err != nil {
		return nil, err
	}

	result := &ParseResult{}
	errs := newErrorCollection(p.maxErrors)
	seen := make(map[string]int)

	line := 1
	for {
		record, readErr := cr.Read()
		if readErr == io.EOF {
			break
		}
		line++
		if readErr != nil {
			errs.add(RowError{Line: line, Message: fmt.Sprintf("malformed row: %v", readErr)})
			continue
		}
		if isEmptyRecord(record) {
			continue
		}

		result.TotalRows++
		if result.TotalRows > p.maxRows {
			return nil, fmt.Errorf("settlement file exceeds %d rows", p.maxRows)
		}

		row, ok := p.parseRow(line, header, record, seen, errs)
		if ok {
			result.Rows = append(result.Rows, row)
		}
	}

	if result.TotalRows == 0 {
		return nil, ErrNoRows
	}

	result.Errors = errs.errors
	result.ErrorCount = errs.total
	return result, nil
}

// readHeader reads the header row and maps required columns to indexes
func (p *SettlementParser) readHeader(cr *csv.Reader) (map[string]int, error) {
	record, err := cr.Read()
	if err == io.EOF {
		return nil, ErrMissingHeader
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	header := make(map[string]int, len(record))
	for i, name := range record {
		header[strings.ToLower(strings.TrimSpace(name))] = i
	}

	var missing []string
	for _, col := range requiredColumns {
		if _, ok := header[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("settlement file missing columns: %s", strings.Join(missing, ", "))
	}

	return header, nil
}

// parseRow validates one record against the settlement schema
func (p *SettlementParser) parseRow(line int, header map[string]int, record []string, seen map[string]int, errs *errorCollection) (SettlementRow, bool) {
	get := func(col string) string {
		idx, ok := header[col]
		if !ok || idx >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[idx])
	}

	ok := true

	externalID := get(ColumnExternalID)
	if externalID == "" {
		errs.addField(line, ColumnExternalID, "external_id is required", "")
		ok = false
	} else if firstLine, dup := seen[externalID]; dup {
		errs.addField(line, ColumnExternalID,
			fmt.Sprintf("duplicate of line %d", firstLine), externalID)
		ok = false
	} else {
		seen[externalID] = line
	}

	var amountCents int64
	amountRaw := get(ColumnAmountCents)
	if amountRaw == "" {
		errs.addField(line, ColumnAmountCents, "amount_cents is required", "")
		ok = false
	} else {
		parsed, err := strconv.ParseInt(amountRaw, 10, 64)
		if err != nil {
			errs.addField(line, ColumnAmountCents, "expected integer minor units", amountRaw)
			ok = false
		} else {
			amountCents = parsed
		}
	}

	currencyRaw := strings.ToUpper(get(ColumnCurrency))
	if len(currencyRaw) != 3 {
		errs.addField(line, ColumnCurrency, "expected ISO 4217 code", currencyRaw)
		ok = false
	}

	var occurredAt time.Time
	occurredRaw := get(ColumnOccurredAt)
	if occurredRaw == "" {
		errs.addField(line, ColumnOccurredAt, "occurred_at is required", "")
		ok = false
	} else {
		parsed, err := parseOccurredAt(occurredRaw)
		if err != nil {
			errs.addField(line, ColumnOccurredAt, "unrecognized timestamp format", occurredRaw)
			ok = false
		} else {
			occurredAt = parsed
		}
	}

	if !ok {
		return SettlementRow{}, false
	}

	return SettlementRow{
		Line:        line,
		ExternalID:  externalID,
		AmountCents: amountCents,
		Currency:    valueobject.Currency(currencyRaw),
		OccurredAt:  occurredAt,
		Reference:   get(ColumnReference),
		Raw:         strings.Join(record, ","),
	}, true
}

// parseOccurredAt tries the accepted timestamp layouts in order
func parseOccurredAt(s string) (time.Time, error) {
	for _, layout := range occurredAtLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// stripBOM discards a UTF-8 byte order mark if present
func stripBOM(br *bufio.Reader) error {
	head, err := br.Peek(3)
	if err != nil && err != io.EOF {
		return fmt.Errorf("failed to read file: %w", err)
	}
	if len(head) >= 3 && head[0] == 0xEF && head[1] == 0xBB && head[2] == 0xBF {
		_, _ = br.Discard(3)
	}
	return nil
}

// validateUTF8 rejects files in legacy encodings up front instead of
// producing garbled external IDs downstream
func validateUTF8(br *bufio.Reader) error {
	const checkSize = 4096
	head, err := br.Peek(checkSize)
	if err != nil && err != io.EOF {
		return fmt.Errorf("failed to read file for encoding validation: %w", err)
	}
	if len(head) == 0 {
		return ErrEmptyFile
	}
	if !utf8.Valid(head) && len(head) < checkSize {
		return ErrInvalidEncoding
	}
	if len(head) == checkSize {
		// The window may end mid-rune; trim up to 3 trailing bytes
		trimmed := head
		for i := 0; i < 4 && len(trimmed) > 0; i++ {
			if utf8.Valid(trimmed) {
				return nil
			}
			trimmed = trimmed[:len(trimmed)-1]
		}
		return ErrInvalidEncoding
	}
	return nil
}

func isEmptyRecord(record []string) bool {
	for _, f := range record {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
