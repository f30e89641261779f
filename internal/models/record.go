package models

import (
	"fmt"
	"time"
)

const DateLayout = "2006-01-02"

// Record is one order line of the sales data set.
type Record struct {
	OrderDate   time.Time
	YearMonth   string
	Category    string
	SubCategory string
	Region      string
	State       string
	Segment     string
	Sales       float64
}

// PeriodKey is the month key used to group records, e.g. "2024-01".
func PeriodKey(year int, month time.Month) string {
	return fmt.Sprintf("%04d-%02d", year, int(month))
}

// Day truncates t to a UTC calendar day.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

type ChartType string

const (
	ChartBar ChartType = "bar"
	ChartPie ChartType = "pie"
)

func (c ChartType) Valid() bool {
	return c == ChartBar || c == ChartPie
}

// Selection is the current set of user-chosen dashboard inputs.
type Selection struct {
	Category  string
	Region    string
	ChartType ChartType
	Start     time.Time
	End       time.Time
}

// InRange reports whether day lies within the inclusive selection range.
func (s Selection) InRange(day time.Time) bool {
	return !day.Before(Day(s.Start)) && !day.After(Day(s.End))
}
