package services

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"sales-dashboard/internal/models"
)

// Aggregator turns a Selection into the four dashboard views. It keeps no
// state between calls: every view is a fresh scan of the record store.
type Aggregator struct {
	store  *RecordStore
	logger *slog.Logger
}

// Result is one view of a recompute batch. Err is local to the view.
type Result struct {
	ID   models.ViewID
	View models.View
	Err  error
}

func NewAggregator(store *RecordStore) *Aggregator {
	return &Aggregator{
		store:  store,
		logger: slog.Default(),
	}
}

func (a *Aggregator) Store() *RecordStore {
	return a.store
}

// MonthlyTrend sums sales per year-month for the selected category and
// region within the date range, ascending by month.
func (a *Aggregator) MonthlyTrend(sel models.Selection) (models.View, error) {
	if err := a.checkCategory(sel); err != nil {
		return models.View{}, err
	}
	if err := a.checkRegion(sel); err != nil {
		return models.View{}, err
	}

	records := a.store.Filter(func(r models.Record) bool {
		return r.Category == sel.Category && r.Region == sel.Region && sel.InRange(r.OrderDate)
	})
	groups := sumBy(records, func(r models.Record) string { return r.YearMonth })
	slices.SortFunc(groups, func(x, y models.GroupSum) int { return strings.Compare(x.Key, y.Key) })

	return models.View{
		ID:     models.ViewMonthlyTrend,
		Title:  fmt.Sprintf("Monthly Sales - %s", sel.Category),
		Shape:  models.ShapeLine,
		Groups: groups,
	}, nil
}

// SubCategoryBreakdown sums sales per sub-category for the selected category
// and region. The chart type only picks the shape and title.
func (a *Aggregator) SubCategoryBreakdown(sel models.Selection) (models.View, error) {
	if !sel.ChartType.Valid() {
		return models.View{}, fmt.Errorf("%w: %q", ErrInvalidChartType, sel.ChartType)
	}
	if err := a.checkCategory(sel); err != nil {
		return models.View{}, err
	}
	if err := a.checkRegion(sel); err != nil {
		return models.View{}, err
	}

	records := a.store.Filter(func(r models.Record) bool {
		return r.Category == sel.Category && r.Region == sel.Region
	})
	groups := sumBy(records, func(r models.Record) string { return r.SubCategory })
	slices.SortFunc(groups, func(x, y models.GroupSum) int { return strings.Compare(x.Key, y.Key) })

	view := models.View{
		ID:     models.ViewSubCategory,
		Title:  fmt.Sprintf("Sub-Category Sales - %s", sel.Category),
		Shape:  models.ShapeBar,
		Groups: groups,
	}
	if sel.ChartType == models.ChartPie {
		view.Title = fmt.Sprintf("Sub-Category Distribution - %s", sel.Category)
		view.Shape = models.ShapePie
	}
	return view, nil
}

// Scatter returns one (sub-category, sales, segment) point per matching
// record, in load order.
func (a *Aggregator) Scatter(sel models.Selection) (models.View, error) {
	if err := a.checkCategory(sel); err != nil {
		return models.View{}, err
	}
	if err := a.checkRegion(sel); err != nil {
		return models.View{}, err
	}

	var points []models.ScatterPoint
	records := a.store.Filter(func(r models.Record) bool {
		return r.Category == sel.Category && r.Region == sel.Region
	})
	for r := range records {
		points = append(points, models.ScatterPoint{
			SubCategory: r.SubCategory,
			Sales:       r.Sales,
			Segment:     r.Segment,
		})
	}

	return models.View{
		ID:     models.ViewScatter,
		Title:  fmt.Sprintf("Sales Scatter - %s / %s", sel.Category, sel.Region),
		Shape:  models.ShapeScatter,
		Points: points,
	}, nil
}

// StateSales sums sales per state for the selected region within the date
// range, in first-seen state order.
func (a *Aggregator) StateSales(sel models.Selection) (models.View, error) {
	if err := a.checkRegion(sel); err != nil {
		return models.View{}, err
	}

	records := a.store.Filter(func(r models.Record) bool {
		return r.Region == sel.Region && sel.InRange(r.OrderDate)
	})

	return models.View{
		ID:     models.ViewStateSales,
		Title:  fmt.Sprintf("Sales by State - %s", sel.Region),
		Shape:  models.ShapeBar,
		Groups: sumBy(records, func(r models.Record) string { return r.State }),
	}, nil
}

// Compute dispatches to the view's computation.
func (a *Aggregator) Compute(id models.ViewID, sel models.Selection) (models.View, error) {
	switch id {
	case models.ViewMonthlyTrend:
		return a.MonthlyTrend(sel)
	case models.ViewSubCategory:
		return a.SubCategoryBreakdown(sel)
	case models.ViewScatter:
		return a.Scatter(sel)
	case models.ViewStateSales:
		return a.StateSales(sel)
	default:
		return models.View{}, fmt.Errorf("%w: %q", ErrUnknownView, id)
	}
}

// Recompute computes, concurrently, the views affected by the changed inputs
// (all views when none changed). Results follow render order and a failing
// view never prevents the others from completing.
func (a *Aggregator) Recompute(ctx context.Context, sel models.Selection, changed ...Input) []Result {
	start := time.Now()
	ids := Affected(changed...)
	results := make([]Result, len(ids))

	var g errgroup.Group
	g.SetLimit(len(Views))

	for i, id := range ids {
		g.Go(func() error {
			results[i].ID = id
			if err := ctx.Err(); err != nil {
				results[i].Err = err
				return nil
			}
			results[i].View, results[i].Err = a.Compute(id, sel)
			return nil
		})
	}
	_ = g.Wait()

	a.logger.Debug("views recomputed",
		"changed", changed,
		"views", ids,
		"duration", time.Since(start),
	)

	return results
}

func (a *Aggregator) checkCategory(sel models.Selection) error {
	if !a.store.HasCategory(sel.Category) {
		return &EmptySelectionError{Field: string(InputCategory), Value: sel.Category}
	}
	return nil
}

func (a *Aggregator) checkRegion(sel models.Selection) error {
	if !a.store.HasRegion(sel.Region) {
		return &EmptySelectionError{Field: string(InputRegion), Value: sel.Region}
	}
	return nil
}

// sumBy groups records by key in first-seen order and sums their sales.
// Keys without records never appear.
func sumBy(records iter.Seq[models.Record], key func(models.Record) string) []models.GroupSum {
	sums := make(map[string]decimal.Decimal)
	var order []string

	for r := range records {
		k := key(r)
		sum, ok := sums[k]
		if !ok {
			order = append(order, k)
		}
		sums[k] = sum.Add(decimal.NewFromFloat(r.Sales))
	}

	groups := make([]models.GroupSum, 0, len(order))
	for _, k := range order {
		groups = append(groups, models.GroupSum{Key: k, Sales: sums[k].InexactFloat64()})
	}
	return groups
}
