package feed

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyFile is returned when the settlement file has no content
	ErrEmptyFile = errors.New("settlement file is empty")

	// ErrInvalidEncoding is returned when the file is not valid UTF-8
	ErrInvalidEncoding = errors.New("settlement file is not valid UTF-8")

	// ErrMissingHeader is returned when the file has no header row
	ErrMissingHeader = errors.New("settlement file missing header row")

	// ErrNoRows is returned when the file has a header but no data rows
	ErrNoRows = errors.New("settlement file contains no data rows")
)

// RowError describes a rejected settlement row
type RowError struct {
	Line    int    `json:"line"`
	Column  string `json:"column,omitempty"`
	Message string `json:"message"`
	Value   string `json:"value,omitempty"`
}

// Error implements the error interface
func (e RowError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("line %d, column '%s': %s", e.Line, e.Column, e.Message)
	}
	return fmt.Sprintf("line %d: %s", e.Line, e.Message)
}

// errorCollection caps how many row errors a parse run retains. Feeds can
// be large; keeping every error for a systematically broken file would
// just bloat the response.
type errorCollection struct {
	errors    []RowError
	maxErrors int
	total     int
}

func newErrorCollection(maxErrors int) *errorCollection {
	if maxErrors <= 0 {
		maxErrors = 100
	}
	return &errorCollection{
		errors:    make([]RowError, 0, maxErrors),
		maxErrors: maxErrors,
	}
}

func (ec *errorCollection) add(err RowError) {
	ec.total++
	if len(ec.errors) < ec.maxErrors {
		ec.errors = append(ec.errors, err)
	}
}

func (ec *errorCollection) addField(line int, column, message, value string) {
	ec.add(RowError{Line: line, Column: column, Message: message, Value: value})
}
