package models

import (
	"fmt"
	"time"
)

type ViewID string

const (
	ViewMonthlyTrend ViewID = "monthly_trend"
	ViewSubCategory  ViewID = "subcategory"
	ViewScatter      ViewID = "scatter"
	ViewStateSales   ViewID = "state_sales"
)

// Shape tells the rendering layer how to draw a view.
type Shape string

const (
	ShapeLine    Shape = "line"
	ShapeBar     Shape = "bar"
	ShapePie     Shape = "pie"
	ShapeScatter Shape = "scatter"
)

type GroupSum struct {
	Key   string  `json:"key"`
	Sales float64 `json:"sales"`
}

type ScatterPoint struct {
	SubCategory string  `json:"sub_category"`
	Sales       float64 `json:"sales"`
	Segment     string  `json:"segment"`
}

// View is a chart-ready aggregate. Grouped views fill Groups, the scatter
// view fills Points.
type View struct {
	ID     ViewID         `json:"id"`
	Title  string         `json:"title"`
	Shape  Shape          `json:"shape"`
	Groups []GroupSum     `json:"groups,omitempty"`
	Points []ScatterPoint `json:"points,omitempty"`
}

// Len returns the number of rows in the view.
func (v View) Len() int {
	if v.Shape == ShapeScatter {
		return len(v.Points)
	}
	return len(v.Groups)
}

type Options struct {
	Categories []string    `json:"categories"`
	Regions    []string    `json:"regions"`
	ChartTypes []ChartType `json:"chart_types"`
	MinDate    string      `json:"min_date"`
	MaxDate    string      `json:"max_date"`
	Default    Signals     `json:"default"`
}

// Signals is the wire form of a Selection, shared by query parameters and
// datastar signals.
type Signals struct {
	Category  string `json:"category" validate:"required"`
	Region    string `json:"region" validate:"required"`
	ChartType string `json:"chartType" validate:"required,oneof=bar pie"`
	StartDate string `json:"startDate" validate:"required,datetime=2006-01-02"`
	EndDate   string `json:"endDate" validate:"required,datetime=2006-01-02"`
}

// Selection parses the wire dates. Signals are expected to be validated.
func (s Signals) Selection() (Selection, error) {
	start, err := time.Parse(DateLayout, s.StartDate)
	if err != nil {
		return Selection{}, fmt.Errorf("parse start date: %w", err)
	}
	end, err := time.Parse(DateLayout, s.EndDate)
	if err != nil {
		return Selection{}, fmt.Errorf("parse end date: %w", err)
	}
	return Selection{
		Category:  s.Category,
		Region:    s.Region,
		ChartType: ChartType(s.ChartType),
		Start:     start,
		End:       end,
	}, nil
}

func NewSignals(sel Selection) Signals {
	return Signals{
		Category:  sel.Category,
		Region:    sel.Region,
		ChartType: string(sel.ChartType),
		StartDate: sel.Start.Format(DateLayout),
		EndDate:   sel.End.Format(DateLayout),
	}
}
