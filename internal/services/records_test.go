package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"sales-dashboard/internal/models"
)

const superstoreHeader = "Row ID,Order ID,Order Date,Ship Date,Ship Mode,Customer ID,Customer Name,Segment,Country,City,State,Postal Code,Region,Product ID,Category,Sub-Category,Product Name,Sales"

func createTempCSV(t *testing.T, content string) string {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "test*.csv")
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	if _, err := f.WriteString(content); err != nil {
		t.Fatal(err)
	}
	return f.Name()
}

func superstoreRow(id int, date, segment, state, region, category, subCategory, product, sales string) string {
	return fmt.Sprintf("%d,CA-%d,%s,%s,Standard Class,CG-1,Claire Gute,%s,United States,Henderson,%s,42420,%s,FUR-1,%s,%s,%s,%s",
		id, id, date, date, segment, state, region, category, subCategory, product, sales)
}

func newTestStore() *RecordStore {
	return NewRecordStore([]models.Record{
		{OrderDate: time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC), Category: "Furniture", SubCategory: "Chairs", Region: "East", State: "NY", Segment: "Consumer", Sales: 100},
		{OrderDate: time.Date(2024, 1, 20, 0, 0, 0, 0, time.UTC), Category: "Furniture", SubCategory: "Chairs", Region: "East", State: "NY", Segment: "Consumer", Sales: 50},
		{OrderDate: time.Date(2024, 2, 10, 0, 0, 0, 0, time.UTC), Category: "Furniture", SubCategory: "Tables", Region: "East", State: "NY", Segment: "Consumer", Sales: 30},
	})
}

func TestLoadFile_ValidData(t *testing.T) {
	csv := strings.Join([]string{
		superstoreHeader,
		superstoreRow(1, "08/11/2017", "Consumer", "Kentucky", "South", "Furniture", "Bookcases", "Bush Somerset Collection Bookcase", "261.96"),
		superstoreRow(2, "12/06/2017", "Corporate", "California", "West", "Office Supplies", "Labels", `"Self-Adhesive Address Labels, 100/Pack"`, "14.62"),
		superstoreRow(3, "11/10/2016", "Consumer", "Florida", "South", "Furniture", "Tables", "Bretford CR4500 Series Slim Rectangular Table", "957.5775"),
	}, "\n")

	f := createTempCSV(t, csv)

	store, err := LoadFile(context.Background(), f)
	if err != nil {
		t.Fatalf("LoadFile() with valid data should not error, got: %v", err)
	}

	if store.Len() != 3 {
		t.Errorf("Len() = %d, want 3", store.Len())
	}

	if diff := cmp.Diff([]string{"Furniture", "Office Supplies"}, store.Categories()); diff != "" {
		t.Errorf("Categories() mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"South", "West"}, store.Regions()); diff != "" {
		t.Errorf("Regions() mismatch (-want +got):\n%s", diff)
	}

	wantMin := time.Date(2016, 10, 11, 0, 0, 0, 0, time.UTC)
	wantMax := time.Date(2017, 11, 8, 0, 0, 0, 0, time.UTC)
	if !store.MinDate().Equal(wantMin) {
		t.Errorf("MinDate() = %v, want %v", store.MinDate(), wantMin)
	}
	if !store.MaxDate().Equal(wantMax) {
		t.Errorf("MaxDate() = %v, want %v", store.MaxDate(), wantMax)
	}

	var got []models.Record
	for r := range store.Filter(nil) {
		got = append(got, r)
	}
	if got[1].SubCategory != "Labels" || got[1].State != "California" || got[1].Segment != "Corporate" {
		t.Errorf("unexpected second record: %+v", got[1])
	}
	if got[2].Sales != 957.5775 {
		t.Errorf("Sales = %v, want 957.5775", got[2].Sales)
	}
}

func TestLoad_DayFirstDates(t *testing.T) {
	tests := []struct {
		raw  string
		want time.Time
	}{
		{"02/03/2024", time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)},
		{"2/3/2024", time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)},
		{"25-12-2023", time.Date(2023, 12, 25, 0, 0, 0, 0, time.UTC)},
		{"31.01.2022", time.Date(2022, 1, 31, 0, 0, 0, 0, time.UTC)},
		{"2024-03-02", time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			csv := superstoreHeader + "\n" + superstoreRow(1, tt.raw, "Consumer", "Texas", "Central", "Technology", "Phones", "Phone", "10")
			store, err := Load(context.Background(), "dates.csv", strings.NewReader(csv))
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if !store.MinDate().Equal(tt.want) {
				t.Errorf("order date = %v, want %v", store.MinDate(), tt.want)
			}
		})
	}
}

func TestLoad_InvalidData(t *testing.T) {
	validRow := superstoreRow(1, "08/11/2017", "Consumer", "Kentucky", "South", "Furniture", "Bookcases", "Bookcase", "261.96")

	tests := []struct {
		name      string
		csv       string
		wantDate  bool
		wantNoRec bool
		wantLine  int
	}{
		{
			name: "empty file",
			csv:  "",
		},
		{
			name:      "header only",
			csv:       superstoreHeader,
			wantNoRec: true,
		},
		{
			name: "missing required column",
			csv:  "Order Date,Category,Sub-Category,Region,State,Sales\n08/11/2017,Furniture,Chairs,South,Kentucky,10",
		},
		{
			name:     "invalid date format",
			csv:      superstoreHeader + "\n" + superstoreRow(1, "invalid-date", "Consumer", "Kentucky", "South", "Furniture", "Bookcases", "Bookcase", "261.96"),
			wantDate: true,
		},
		{
			name:     "month first date",
			csv:      superstoreHeader + "\n" + validRow + "\n" + superstoreRow(2, "12/31/2017", "Consumer", "Kentucky", "South", "Furniture", "Bookcases", "Bookcase", "1"),
			wantDate: true,
		},
		{
			name: "invalid sales",
			csv:  superstoreHeader + "\n" + superstoreRow(1, "08/11/2017", "Consumer", "Kentucky", "South", "Furniture", "Bookcases", "Bookcase", "n/a"),
		},
		{
			name:     "NaN sales",
			csv:      superstoreHeader + "\n" + validRow + "\n" + superstoreRow(2, "08/11/2017", "Consumer", "Kentucky", "South", "Furniture", "Bookcases", "Bookcase", "NaN"),
			wantLine: 3,
		},
		{
			name:     "Inf sales",
			csv:      superstoreHeader + "\n" + superstoreRow(1, "08/11/2017", "Consumer", "Kentucky", "South", "Furniture", "Bookcases", "Bookcase", "Inf"),
			wantLine: 2,
		},
		{
			name:     "negative Inf sales",
			csv:      superstoreHeader + "\n" + superstoreRow(1, "08/11/2017", "Consumer", "Kentucky", "South", "Furniture", "Bookcases", "Bookcase", "-Inf"),
			wantLine: 2,
		},
		{
			name: "wrong field count",
			csv:  superstoreHeader + "\n" + validRow + "\n1,2,3",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(context.Background(), "test.csv", strings.NewReader(tt.csv))
			if err == nil {
				t.Fatal("Load() should error")
			}

			var dateErr *DateParseError
			var loadErr *LoadError
			switch {
			case tt.wantDate:
				if !errors.As(err, &dateErr) {
					t.Errorf("Load() error = %v, want *DateParseError", err)
				}
			default:
				if !errors.As(err, &loadErr) {
					t.Errorf("Load() error = %v, want *LoadError", err)
				}
				if errors.As(err, &dateErr) {
					t.Errorf("Load() error = %v, should not be a *DateParseError", err)
				}
			}

			if tt.wantLine > 0 && (loadErr == nil || loadErr.Line != tt.wantLine) {
				t.Errorf("Load() error = %v, want line %d", err, tt.wantLine)
			}

			if tt.wantNoRec && !errors.Is(err, ErrNoRecords) {
				t.Errorf("Load() error = %v, want ErrNoRecords", err)
			}
		})
	}
}

func TestLoad_MissingColumnsNamed(t *testing.T) {
	_, err := Load(context.Background(), "test.csv", strings.NewReader("Order Date,Category,Region\n01/01/2024,Furniture,East"))
	if err == nil {
		t.Fatal("Load() should error")
	}
	for _, col := range []string{"Sub-Category", "State", "Segment", "Sales"} {
		if !strings.Contains(err.Error(), col) {
			t.Errorf("error %q should name missing column %q", err, col)
		}
	}
}

func TestLoadFile_Unreadable(t *testing.T) {
	_, err := LoadFile(context.Background(), "does-not-exist.csv")

	var loadErr *LoadError
	if !errors.As(err, &loadErr) {
		t.Fatalf("LoadFile() error = %v, want *LoadError", err)
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("LoadFile() error should wrap os.ErrNotExist, got %v", err)
	}
}

func TestLoad_MultipleBatchesKeepOrder(t *testing.T) {
	const rows = 2*batchSize + 37

	var b strings.Builder
	b.WriteString(superstoreHeader)
	for i := 0; i < rows; i++ {
		b.WriteString("\n")
		b.WriteString(superstoreRow(i, "01/01/2020", "Consumer", fmt.Sprintf("S%d", i), "East", "Furniture", "Chairs", "Chair", fmt.Sprintf("%d", i)))
	}

	store, err := Load(context.Background(), "big.csv", strings.NewReader(b.String()))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if store.Len() != rows {
		t.Fatalf("Len() = %d, want %d", store.Len(), rows)
	}

	i := 0
	for r := range store.Filter(nil) {
		if r.Sales != float64(i) {
			t.Fatalf("record %d has sales %v, order not preserved", i, r.Sales)
		}
		i++
	}
}

func TestLoad_ReportsEarliestBadDate(t *testing.T) {
	var b strings.Builder
	b.WriteString(superstoreHeader)
	for i := 0; i < batchSize/2; i++ {
		date := "01/01/2020"
		if i == 4321 || i == 9 {
			date = "not-a-date"
		}
		b.WriteString("\n")
		b.WriteString(superstoreRow(i, date, "Consumer", "NY", "East", "Furniture", "Chairs", "Chair", "1"))
	}

	_, err := Load(context.Background(), "big.csv", strings.NewReader(b.String()))

	var dateErr *DateParseError
	if !errors.As(err, &dateErr) {
		t.Fatalf("Load() error = %v, want *DateParseError", err)
	}
	// header is line 1, row i is line i+2
	if dateErr.Line != 11 {
		t.Errorf("DateParseError.Line = %d, want 11", dateErr.Line)
	}
	if dateErr.Value != "not-a-date" {
		t.Errorf("DateParseError.Value = %q", dateErr.Value)
	}
}

func TestLoad_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	csv := superstoreHeader + "\n" + superstoreRow(1, "08/11/2017", "Consumer", "Kentucky", "South", "Furniture", "Bookcases", "Bookcase", "261.96")
	_, err := Load(ctx, "test.csv", strings.NewReader(csv))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Load() error = %v, want context.Canceled", err)
	}
}

func TestRecordStore_YearMonthInvariant(t *testing.T) {
	store := NewRecordStore([]models.Record{
		{OrderDate: time.Date(2023, 12, 31, 23, 59, 0, 0, time.UTC), Category: "A", Region: "R"},
		{OrderDate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), Category: "A", Region: "R"},
		{OrderDate: time.Date(2024, 10, 15, 0, 0, 0, 0, time.UTC), Category: "A", Region: "R"},
	})

	want := []string{"2023-12", "2024-01", "2024-10"}
	i := 0
	for r := range store.Filter(nil) {
		if r.YearMonth != models.PeriodKey(r.OrderDate.Year(), r.OrderDate.Month()) {
			t.Errorf("YearMonth %q does not match order date %v", r.YearMonth, r.OrderDate)
		}
		if r.YearMonth != want[i] {
			t.Errorf("YearMonth = %q, want %q", r.YearMonth, want[i])
		}
		if r.OrderDate.Hour() != 0 || r.OrderDate.Minute() != 0 {
			t.Errorf("OrderDate %v should be truncated to the day", r.OrderDate)
		}
		i++
	}
}

func TestRecordStore_Filter(t *testing.T) {
	store := newTestStore()

	count := 0
	for r := range store.Filter(func(r models.Record) bool { return r.SubCategory == "Chairs" }) {
		if r.SubCategory != "Chairs" {
			t.Errorf("Filter() yielded non-matching record %+v", r)
		}
		count++
	}
	if count != 2 {
		t.Errorf("Filter() yielded %d records, want 2", count)
	}

	// Lazy: stopping early must not panic or keep scanning.
	seen := 0
	for range store.Filter(nil) {
		seen++
		break
	}
	if seen != 1 {
		t.Errorf("early break yielded %d records, want 1", seen)
	}
}

func TestRecordStore_CategoriesAreCopies(t *testing.T) {
	store := newTestStore()

	cats := store.Categories()
	cats[0] = "Mutated"

	if store.Categories()[0] != "Furniture" {
		t.Error("Categories() should return a copy")
	}
	if !store.HasCategory("Furniture") || store.HasCategory("Gadgets") {
		t.Error("HasCategory() mismatch")
	}
	if !store.HasRegion("East") || store.HasRegion("West") {
		t.Error("HasRegion() mismatch")
	}
}

func TestRecordStore_DefaultSelection(t *testing.T) {
	sel := newTestStore().DefaultSelection()

	want := models.Selection{
		Category:  "Furniture",
		Region:    "East",
		ChartType: models.ChartBar,
		Start:     time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC),
		End:       time.Date(2024, 2, 10, 0, 0, 0, 0, time.UTC),
	}
	if diff := cmp.Diff(want, sel); diff != "" {
		t.Errorf("DefaultSelection() mismatch (-want +got):\n%s", diff)
	}
}

func TestRecordStore_Options(t *testing.T) {
	opts := newTestStore().Options()

	want := models.Options{
		Categories: []string{"Furniture"},
		Regions:    []string{"East"},
		ChartTypes: []models.ChartType{models.ChartBar, models.ChartPie},
		MinDate:    "2024-01-05",
		MaxDate:    "2024-02-10",
		Default: models.Signals{
			Category:  "Furniture",
			Region:    "East",
			ChartType: "bar",
			StartDate: "2024-01-05",
			EndDate:   "2024-02-10",
		},
	}
	if diff := cmp.Diff(want, opts); diff != "" {
		t.Errorf("Options() mismatch (-want +got):\n%s", diff)
	}
}

func TestRecordStore_ConcurrentAccess(t *testing.T) {
	store := newTestStore()

	done := make(chan bool, 10)
	for i := 0; i < 10; i++ {
		go func() {
			defer func() { done <- true }()

			for range store.Filter(func(r models.Record) bool { return r.Region == "East" }) {
			}
			_ = store.Categories()
			_ = store.Regions()
			_ = store.Stats()
		}()
	}

	for i := 0; i < 10; i++ {
		<-done
	}
}

func TestRecordStore_Stats(t *testing.T) {
	stats := newTestStore().Stats()

	if stats["record_count"] != 3 {
		t.Errorf("record_count = %v, want 3", stats["record_count"])
	}
	if stats["states"] != 1 {
		t.Errorf("states = %v, want 1", stats["states"])
	}
	if stats["min_date"] != "2024-01-05" || stats["max_date"] != "2024-02-10" {
		t.Errorf("date bounds = %v..%v", stats["min_date"], stats["max_date"])
	}
}

func BenchmarkRecordStore_Filter(b *testing.B) {
	records := make([]models.Record, 10000)
	for i := range records {
		records[i] = models.Record{
			OrderDate: time.Date(2020, time.Month(i%12+1), 1, 0, 0, 0, 0, time.UTC),
			Category:  "Category" + string(rune('A'+i%3)),
			Region:    "Region" + string(rune('A'+i%4)),
			Sales:     float64(i),
		}
	}
	store := NewRecordStore(records)

	b.ResetTimer()
	for b.Loop() {
		for range store.Filter(func(r models.Record) bool { return r.Region == "RegionA" }) {
		}
	}
}
