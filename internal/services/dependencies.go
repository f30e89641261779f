package services

import (
	"slices"

	"sales-dashboard/internal/models"
)

// Input names one dashboard selection field.
type Input string

const (
	InputCategory  Input = "category"
	InputRegion    Input = "region"
	InputChartType Input = "chart_type"
	InputStartDate Input = "start_date"
	InputEndDate   Input = "end_date"
)

var Inputs = []Input{InputCategory, InputRegion, InputChartType, InputStartDate, InputEndDate}

// Views lists every view in render order.
var Views = []models.ViewID{
	models.ViewMonthlyTrend,
	models.ViewSubCategory,
	models.ViewScatter,
	models.ViewStateSales,
}

// A view is recomputed when, and only when, one of its inputs changes.
var dependencies = map[models.ViewID][]Input{
	models.ViewMonthlyTrend: {InputCategory, InputRegion, InputStartDate, InputEndDate},
	models.ViewSubCategory:  {InputChartType, InputCategory, InputRegion},
	models.ViewScatter:      {InputCategory, InputRegion},
	models.ViewStateSales:   {InputRegion, InputStartDate, InputEndDate},
}

// Dependencies returns the declared inputs of a view, nil for unknown views.
func Dependencies(view models.ViewID) []Input {
	return slices.Clone(dependencies[view])
}

func DependsOn(view models.ViewID, input Input) bool {
	return slices.Contains(dependencies[view], input)
}

// Affected returns, in render order, the views that depend on any of the
// changed inputs. With no changed inputs every view is affected, which is the
// initial render.
func Affected(changed ...Input) []models.ViewID {
	if len(changed) == 0 {
		return slices.Clone(Views)
	}

	var views []models.ViewID
	for _, view := range Views {
		for _, input := range changed {
			if DependsOn(view, input) {
				views = append(views, view)
				break
			}
		}
	}
	return views
}

// ParseInput maps a wire name to an Input. "date_range" expands to both
// range ends.
func ParseInput(name string) ([]Input, bool) {
	switch name {
	case "date_range":
		return []Input{InputStartDate, InputEndDate}, true
	case "chartType":
		return []Input{InputChartType}, true
	case "startDate":
		return []Input{InputStartDate}, true
	case "endDate":
		return []Input{InputEndDate}, true
	}
	input := Input(name)
	if slices.Contains(Inputs, input) {
		return []Input{input}, true
	}
	return nil, false
}
