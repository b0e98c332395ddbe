package warehouse

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dwbuild/internal/config"
	"dwbuild/internal/table"
	"dwbuild/internal/testutil"
	"dwbuild/pkg/errors"
)

var fixedNow = time.Date(2024, 6, 15, 9, 0, 0, 0, time.UTC)

func testConfig(rel, sheet, out string) *config.Config {
	cfg := config.Default()
	cfg.Sources.Relational.Dir = rel
	cfg.Sources.Spreadsheet.Dir = sheet
	cfg.Output.Dir = out
	return cfg
}

type recordingLoader struct {
	tables []*table.Table
	err    error
}

func (l *recordingLoader) LoadTables(ctx context.Context, tables []*table.Table) error {
	l.tables = tables
	return l.err
}

func TestBuildPublishesStarSchema(t *testing.T) {
	h := testutil.NewTestHelper(t)
	dir, cleanup := h.TempDir()
	defer cleanup()

	rel, sheet := h.CreateSourceTree(dir)
	out := filepath.Join(dir, "warehouse")

	report, err := NewBuilder(testConfig(rel, sheet, out), testutil.NewTestLogger(t)).
		WithClock(func() time.Time { return fixedNow }).
		Build(context.Background())
	require.NoError(t, err)

	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, 0, report.MissingInputs())
	assert.Len(t, report.Published, 4)
	assert.False(t, report.Loaded)

	header, rows := h.ReadCSV(filepath.Join(out, "dim_customers.csv"))
	assert.Equal(t, []string{"customer_key", "customerid", "companyname", "company_norm", "region", "city", "country", "phone", "fax", "source"}, header)
	assert.Equal(t, [][]string{
		{"1", "1", "Acme Co", "acme co", "", "Berlin", "Germany", "030-0074321", "", "relational"},
		{"2", "2", "Börgen Handel", "borgen handel", "BC", "Vancouver", "Canada", "", "", "relational"},
		{"3", "X10", "Company  B", "company b", "MA", "Boston", "USA", "", "", "spreadsheet"},
	}, rows)

	_, rows = h.ReadCSV(filepath.Join(out, "dim_employees.csv"))
	assert.Equal(t, [][]string{
		{"1", "1", "Nancy", "Freehafer", "Sales Representative", "nancy freehafer", "Seattle", "WA", "USA", "spreadsheet"},
		{"2", "5", "Steven", "Buchanan", "Sales Manager", "steven buchanan", "London", "", "UK", "relational"},
	}, rows)

	_, rows = h.ReadCSV(filepath.Join(out, "dim_temps.csv"))
	require.Len(t, rows, 5)
	assert.Equal(t, []string{"2024-02-27", "20240227", "2024", "2", "27", "Tuesday"}, rows[0])
	assert.Equal(t, []string{"2024-03-02", "20240302", "2024", "3", "2", "Saturday"}, rows[4])

	_, rows = h.ReadCSV(filepath.Join(out, "fact_orders.csv"))
	assert.Equal(t, [][]string{
		{"1", "10248", "relational", "2024-02-27", "20240227", "2024-03-01", "20240301", "1", "2", "1", "32.38", "acme co", "steven buchanan"},
		{"2", "10249", "relational", "2024-02-28", "20240228", "", "", "2", "2", "0", "11.61", "borgen handel", "steven buchanan"},
		{"3", "30", "spreadsheet", "2024-02-29", "20240229", "", "", "", "1", "0", "200", "nobody ltd", "nancy freehafer"},
		{"4", "31", "spreadsheet", "2024-03-02", "20240302", "2024-03-04", "", "1", "2", "1", "5", "acme co", "steven buchanan"},
	}, rows)

	assert.Equal(t, DimensionSummary{Rows: 3, Duplicates: 1, AttributeConflicts: 1}, report.Customers)
	assert.Equal(t, DimensionSummary{Rows: 2, Duplicates: 1}, report.Employees)
	assert.Equal(t, TierCounts{ByNorm: 3, Unresolved: 1}, report.Resolution.Customers)
	assert.Equal(t, TierCounts{ByNorm: 4}, report.Resolution.Employees)
	assert.Equal(t, 1, report.Resolution.DatesOutsideCalendar)
	assert.Equal(t, 4, report.Facts)
	assert.NoError(t, report.RequireFacts())

	entries, err := os.ReadDir(out)
	require.NoError(t, err)
	assert.Len(t, entries, 4, "staging directory must be removed")
}

func TestBuildIsDeterministic(t *testing.T) {
	h := testutil.NewTestHelper(t)
	dir, cleanup := h.TempDir()
	defer cleanup()
	rel, sheet := h.CreateSourceTree(dir)

	read := func(out string) map[string]string {
		_, err := NewBuilder(testConfig(rel, sheet, out), nil).
			WithClock(func() time.Time { return fixedNow }).
			Build(context.Background())
		require.NoError(t, err)

		files := map[string]string{}
		for _, name := range []string{"dim_customers.csv", "dim_employees.csv", "dim_temps.csv", "fact_orders.csv"} {
			data, err := os.ReadFile(filepath.Join(out, name))
			require.NoError(t, err)
			files[name] = string(data)
		}
		return files
	}

	assert.Equal(t, read(filepath.Join(dir, "a")), read(filepath.Join(dir, "b")))
}

func TestBuildWithMissingSpreadsheetSource(t *testing.T) {
	h := testutil.NewTestHelper(t)
	dir, cleanup := h.TempDir()
	defer cleanup()

	rel, _ := h.CreateSourceTree(dir)
	out := filepath.Join(dir, "warehouse")

	report, err := NewBuilder(testConfig(rel, filepath.Join(dir, "absent"), out), nil).
		WithClock(func() time.Time { return fixedNow }).
		Build(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, report.MissingInputs())
	assert.Equal(t, 2, report.Customers.Rows)
	assert.Equal(t, 2, report.Facts)
	assert.Equal(t, TierCounts{ByNorm: 2}, report.Resolution.Customers)
}

func TestBuildWithNoOrdersUsesFallbackCalendar(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "warehouse")

	report, err := NewBuilder(testConfig(filepath.Join(dir, "x"), filepath.Join(dir, "y"), out), nil).
		WithClock(func() time.Time { return fixedNow }).
		Build(context.Background())
	require.NoError(t, err)

	assert.True(t, report.CalendarFallback)
	assert.Equal(t, 366, report.CalendarDays)
	assert.Equal(t, 0, report.Facts)
	assert.Equal(t, errors.ErrCodeEmptyFactSet, errors.GetErrorCode(report.RequireFacts()))

	h := testutil.NewTestHelper(t)
	header, rows := h.ReadCSV(filepath.Join(out, "fact_orders.csv"))
	assert.Len(t, header, 13)
	assert.Empty(t, rows)
}

func TestBuildAbortsOnCorruptExtract(t *testing.T) {
	h := testutil.NewTestHelper(t)
	dir, cleanup := h.TempDir()
	defer cleanup()

	rel, sheet := h.CreateSourceTree(dir)
	out := filepath.Join(dir, "warehouse")

	cfg := testConfig(rel, sheet, out)
	_, err := NewBuilder(cfg, nil).WithClock(func() time.Time { return fixedNow }).Build(context.Background())
	require.NoError(t, err)
	before, err := os.ReadFile(filepath.Join(out, "fact_orders.csv"))
	require.NoError(t, err)

	h.WriteFile(sheet, "orders_excel.csv", "Order ID,Customer\n\"31,acme co\n")

	_, err = NewBuilder(cfg, nil).Build(context.Background())
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeCorruptSource, errors.GetErrorCode(err))

	after, err := os.ReadFile(filepath.Join(out, "fact_orders.csv"))
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestBuildRunsLoader(t *testing.T) {
	h := testutil.NewTestHelper(t)
	dir, cleanup := h.TempDir()
	defer cleanup()
	rel, sheet := h.CreateSourceTree(dir)

	loader := &recordingLoader{}
	report, err := NewBuilder(testConfig(rel, sheet, filepath.Join(dir, "out")), nil).
		WithLoader(loader).
		Build(context.Background())
	require.NoError(t, err)
	assert.True(t, report.Loaded)

	require.Len(t, loader.tables, 4)
	assert.Equal(t, TableFacts, loader.tables[3].Name)
	assert.Equal(t, 4, loader.tables[3].Len())

	loader.err = errors.New(errors.ErrCodeWarehouseLoad, "insert failed")
	report, err = NewBuilder(testConfig(rel, sheet, filepath.Join(dir, "out")), nil).
		WithLoader(loader).
		Build(context.Background())
	require.Error(t, err)
	require.NotNil(t, report)
	assert.False(t, report.Loaded)
	assert.Len(t, report.Published, 4)
}

func TestBuildCancelledBeforePublish(t *testing.T) {
	h := testutil.NewTestHelper(t)
	dir, cleanup := h.TempDir()
	defer cleanup()

	rel, sheet := h.CreateSourceTree(dir)
	out := filepath.Join(dir, "warehouse")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := NewBuilder(testConfig(rel, sheet, out), nil).Build(ctx)
	require.Error(t, err)
	assert.Nil(t, report)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NoDirExists(t, out)
}
