package services

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"sales-dashboard/internal/models"
)

const (
	batchSize  = 10000
	maxWorkers = 10
)

const (
	colOrderDate   = "Order Date"
	colCategory    = "Category"
	colSubCategory = "Sub-Category"
	colRegion      = "Region"
	colState       = "State"
	colSegment     = "Segment"
	colSales       = "Sales"
)

var requiredColumns = []string{
	colOrderDate, colCategory, colSubCategory, colRegion, colState, colSegment, colSales,
}

// Day-first layouts tried in order. ISO dates are unambiguous and accepted too.
var orderDateLayouts = []string{
	"2/1/2006",
	"2-1-2006",
	"2.1.2006",
	models.DateLayout,
}

// Predicate selects records in RecordStore.Filter.
type Predicate func(models.Record) bool

// RecordStore holds the immutable record set. It is built once and only read
// afterwards, so it needs no locking.
type RecordStore struct {
	records     []models.Record
	categories  []string
	regions     []string
	states      []string
	categorySet map[string]struct{}
	regionSet   map[string]struct{}
	minDate     time.Time
	maxDate     time.Time

	source       string
	loadedAt     time.Time
	loadDuration time.Duration
}

type columnIndex struct {
	orderDate, category, subCategory, region, state, segment, sales int
}

type rawRow struct {
	line   int
	fields []string
}

// NewRecordStore builds a store from in-memory records, normalising dates to
// calendar days and computing the year-month key.
func NewRecordStore(records []models.Record) *RecordStore {
	s := &RecordStore{
		records:     make([]models.Record, len(records)),
		categorySet: make(map[string]struct{}),
		regionSet:   make(map[string]struct{}),
		loadedAt:    time.Now(),
	}
	stateSet := make(map[string]struct{})

	for i, r := range records {
		r.OrderDate = models.Day(r.OrderDate)
		r.YearMonth = models.PeriodKey(r.OrderDate.Year(), r.OrderDate.Month())
		s.records[i] = r

		if _, ok := s.categorySet[r.Category]; !ok {
			s.categorySet[r.Category] = struct{}{}
			s.categories = append(s.categories, r.Category)
		}
		if _, ok := s.regionSet[r.Region]; !ok {
			s.regionSet[r.Region] = struct{}{}
			s.regions = append(s.regions, r.Region)
		}
		if _, ok := stateSet[r.State]; !ok {
			stateSet[r.State] = struct{}{}
			s.states = append(s.states, r.State)
		}

		if i == 0 || r.OrderDate.Before(s.minDate) {
			s.minDate = r.OrderDate
		}
		if i == 0 || r.OrderDate.After(s.maxDate) {
			s.maxDate = r.OrderDate
		}
	}

	return s
}

func LoadFile(ctx context.Context, filename string) (*RecordStore, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, &LoadError{Source: filename, Err: err}
	}
	defer file.Close()

	return Load(ctx, filename, file)
}

// Load parses a CSV source with a header row into a RecordStore. Missing
// columns and malformed rows fail with *LoadError, unparseable order dates
// with *DateParseError.
func Load(ctx context.Context, source string, r io.Reader) (*RecordStore, error) {
	start := time.Now()
	logger := slog.Default()
	logger.Info("processing CSV source", "source", source)

	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			err = errors.New("empty file")
		}
		return nil, &LoadError{Source: source, Err: fmt.Errorf("read header: %w", err)}
	}

	cols, err := mapColumns(header)
	if err != nil {
		return nil, &LoadError{Source: source, Err: err}
	}

	var records []models.Record
	batch := make([]rawRow, 0, batchSize)

	flush := func() error {
		parsed, err := parseBatch(ctx, source, batch, cols)
		if err != nil {
			return err
		}
		records = append(records, parsed...)
		batch = batch[:0]
		return nil
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil, &LoadError{Source: source, Err: err}
		}

		fields, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &LoadError{Source: source, Err: err}
		}

		line, _ := reader.FieldPos(0)
		batch = append(batch, rawRow{line: line, fields: fields})

		if len(batch) >= batchSize {
			if err := flush(); err != nil {
				return nil, err
			}
		}
	}

	if len(batch) > 0 {
		if err := flush(); err != nil {
			return nil, err
		}
	}

	if len(records) == 0 {
		return nil, &LoadError{Source: source, Err: ErrNoRecords}
	}

	store := NewRecordStore(records)
	store.source = source
	store.loadDuration = time.Since(start)

	logger.Info("csv processing complete",
		"source", source,
		"records", len(records),
		"categories", len(store.categories),
		"regions", len(store.regions),
		"duration", store.loadDuration,
	)

	return store, nil
}

func mapColumns(header []string) (columnIndex, error) {
	positions := make(map[string]int, len(header))
	for i, h := range header {
		name := strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if _, seen := positions[name]; !seen {
			positions[name] = i
		}
	}

	var missing []string
	for _, col := range requiredColumns {
		if _, ok := positions[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return columnIndex{}, fmt.Errorf("missing required columns: %s", strings.Join(missing, ", "))
	}

	return columnIndex{
		orderDate:   positions[colOrderDate],
		category:    positions[colCategory],
		subCategory: positions[colSubCategory],
		region:      positions[colRegion],
		state:       positions[colState],
		segment:     positions[colSegment],
		sales:       positions[colSales],
	}, nil
}

// parseBatch parses rows on up to maxWorkers goroutines, each owning a
// contiguous chunk, so output order matches input order and the reported
// error is always the earliest one in the batch.
func parseBatch(ctx context.Context, source string, batch []rawRow, cols columnIndex) ([]models.Record, error) {
	out := make([]models.Record, len(batch))
	chunk := (len(batch) + maxWorkers - 1) / maxWorkers
	errs := make([]error, maxWorkers)

	var g errgroup.Group
	g.SetLimit(maxWorkers)

	for w := 0; w*chunk < len(batch); w++ {
		lo, hi := w*chunk, min((w+1)*chunk, len(batch))
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			for i := lo; i < hi; i++ {
				rec, err := parseRow(source, batch[i], cols)
				if err != nil {
					errs[w] = err
					return nil
				}
				out[i] = rec
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, &LoadError{Source: source, Err: err}
	}
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func parseRow(source string, row rawRow, cols columnIndex) (models.Record, error) {
	f := row.fields

	rawDate := strings.TrimSpace(f[cols.orderDate])
	orderDate, err := parseOrderDate(rawDate)
	if err != nil {
		return models.Record{}, &DateParseError{Source: source, Line: row.line, Value: rawDate, Err: err}
	}

	sales, err := strconv.ParseFloat(strings.TrimSpace(f[cols.sales]), 64)
	if err != nil {
		return models.Record{}, &LoadError{Source: source, Line: row.line, Err: fmt.Errorf("parse sales: %w", err)}
	}
	if math.IsNaN(sales) || math.IsInf(sales, 0) {
		return models.Record{}, &LoadError{Source: source, Line: row.line, Err: fmt.Errorf("parse sales: non-finite value %q", f[cols.sales])}
	}

	return models.Record{
		OrderDate:   orderDate,
		YearMonth:   models.PeriodKey(orderDate.Year(), orderDate.Month()),
		Category:    strings.TrimSpace(f[cols.category]),
		SubCategory: strings.TrimSpace(f[cols.subCategory]),
		Region:      strings.TrimSpace(f[cols.region]),
		State:       strings.TrimSpace(f[cols.state]),
		Segment:     strings.TrimSpace(f[cols.segment]),
		Sales:       sales,
	}, nil
}

func parseOrderDate(value string) (time.Time, error) {
	var firstErr error
	for _, layout := range orderDateLayouts {
		t, err := time.Parse(layout, value)
		if err == nil {
			return t, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return time.Time{}, firstErr
}

// Categories returns the distinct categories in first-seen order.
func (s *RecordStore) Categories() []string {
	return append([]string(nil), s.categories...)
}

// Regions returns the distinct regions in first-seen order.
func (s *RecordStore) Regions() []string {
	return append([]string(nil), s.regions...)
}

func (s *RecordStore) HasCategory(category string) bool {
	_, ok := s.categorySet[category]
	return ok
}

func (s *RecordStore) HasRegion(region string) bool {
	_, ok := s.regionSet[region]
	return ok
}

func (s *RecordStore) MinDate() time.Time {
	return s.minDate
}

func (s *RecordStore) MaxDate() time.Time {
	return s.maxDate
}

func (s *RecordStore) Len() int {
	return len(s.records)
}

// Filter lazily yields the records matching pred, in load order. A nil
// predicate matches every record.
func (s *RecordStore) Filter(pred Predicate) iter.Seq[models.Record] {
	return func(yield func(models.Record) bool) {
		for _, r := range s.records {
			if pred != nil && !pred(r) {
				continue
			}
			if !yield(r) {
				return
			}
		}
	}
}

// DefaultSelection mirrors the dashboard's initial widget values: first
// category, first region, bar chart, full date range.
func (s *RecordStore) DefaultSelection() models.Selection {
	sel := models.Selection{
		ChartType: models.ChartBar,
		Start:     s.minDate,
		End:       s.maxDate,
	}
	if len(s.categories) > 0 {
		sel.Category = s.categories[0]
	}
	if len(s.regions) > 0 {
		sel.Region = s.regions[0]
	}
	return sel
}

// Options lists the values the dashboard controls offer.
func (s *RecordStore) Options() models.Options {
	return models.Options{
		Categories: s.Categories(),
		Regions:    s.Regions(),
		ChartTypes: []models.ChartType{models.ChartBar, models.ChartPie},
		MinDate:    s.minDate.Format(models.DateLayout),
		MaxDate:    s.maxDate.Format(models.DateLayout),
		Default:    models.NewSignals(s.DefaultSelection()),
	}
}

// Utility method for monitoring
func (s *RecordStore) Stats() map[string]any {
	return map[string]any{
		"source":        s.source,
		"record_count":  len(s.records),
		"categories":    len(s.categories),
		"regions":       len(s.regions),
		"states":        len(s.states),
		"min_date":      s.minDate.Format(models.DateLayout),
		"max_date":      s.maxDate.Format(models.DateLayout),
		"last_loaded":   s.loadedAt,
		"load_duration": s.loadDuration.String(),
	}
}
