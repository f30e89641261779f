package services

import (
	"errors"
	"fmt"
)

var (
	ErrNoRecords        = errors.New("no records found")
	ErrInvalidChartType = errors.New("invalid chart type")
	ErrUnknownView      = errors.New("unknown view")
)

// LoadError reports an unreadable or malformed data source. Line is zero
// when the failure is not tied to a data row.
type LoadError struct {
	Source string
	Line   int
	Err    error
}

func (e *LoadError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("load %s: line %d: %v", e.Source, e.Line, e.Err)
	}
	return fmt.Sprintf("load %s: %v", e.Source, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// DateParseError reports an order date that no day-first layout accepts.
type DateParseError struct {
	Source string
	Line   int
	Value  string
	Err    error
}

func (e *DateParseError) Error() string {
	return fmt.Sprintf("load %s: line %d: unparseable order date %q", e.Source, e.Line, e.Value)
}

func (e *DateParseError) Unwrap() error {
	return e.Err
}

// EmptySelectionError reports a selection value the record set does not
// contain. Callers should render it as "no data for this selection".
type EmptySelectionError struct {
	Field string
	Value string
}

func (e *EmptySelectionError) Error() string {
	return fmt.Sprintf("no data for %s %q", e.Field, e.Value)
}
