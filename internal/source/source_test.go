package source

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"dwbuild/internal/table"
	"dwbuild/internal/testutil"
	"dwbuild/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func extract(header []string, rows ...[]string) *table.Table {
	t := table.New("extract", table.Strings(header...)...)
	for _, r := range rows {
		if err := t.Append(r...); err != nil {
			panic(err)
		}
	}
	return t
}

func TestResolverFirstCandidateWins(t *testing.T) {
	m := Mapping{
		{FieldCompany, []string{"Company", "CompanyName"}},
		{FieldFax, []string{"Fax Number", "Fax"}},
		{FieldPhone, []string{"Business Phone"}},
	}
	r := NewResolver(m, []string{" companyname ", "COMPANY", "fax"})
	row := []string{"long", " short ", "555"}

	assert.Equal(t, "short", r.Get(row, FieldCompany))
	assert.Equal(t, "555", r.Get(row, FieldFax))
	assert.False(t, r.Has(FieldPhone))
	assert.Equal(t, "", r.Get(row, FieldPhone))
	assert.Equal(t, "", r.Get(row, "unknown"))
}

func TestCustomersRelational(t *testing.T) {
	got := NewAdapter(Relational).Customers(extract(
		[]string{"CustomerID", "CompanyName", "City", "Country"},
		[]string{"ALFKI", "Alfreds Futterkiste", "Berlin", "Germany"},
	))

	require.Len(t, got, 1)
	assert.Equal(t, CustomerRecord{
		SourceID:    "ALFKI",
		CompanyName: "Alfreds Futterkiste",
		CompanyNorm: "alfreds futterkiste",
		City:        "Berlin",
		Country:     "Germany",
		Provenance:  Relational,
	}, got[0])
}

func TestCustomersSpreadsheetAlternateNames(t *testing.T) {
	got := NewAdapter(Spreadsheet).Customers(extract(
		[]string{"ID", "CompanyName", "State", "Country", "Phone", "Fax"},
		[]string{"7", "Société Générale", "IDF", "France", "01", "02"},
	))

	require.Len(t, got, 1)
	c := got[0]
	assert.Equal(t, "7", c.SourceID)
	assert.Equal(t, "societe generale", c.CompanyNorm)
	assert.Equal(t, "IDF", c.Region)
	assert.Equal(t, "France", c.Country)
	assert.Equal(t, "01", c.Phone)
	assert.Equal(t, "02", c.Fax)
	assert.Equal(t, Spreadsheet, c.Provenance)
}

func TestEmployeesBuildNameKey(t *testing.T) {
	got := NewAdapter(Spreadsheet).Employees(extract(
		[]string{"ID", "First Name", "Last Name", "Job Title", "Country/Region"},
		[]string{"3", " Anne-Marie ", "Dodsworth", "Sales Rep", "UK"},
		[]string{"4", "", "", "", ""},
	))

	require.Len(t, got, 2)
	assert.Equal(t, "anne marie dodsworth", got[0].EmpNorm)
	assert.Equal(t, "Anne-Marie", got[0].FirstName)
	assert.Equal(t, "Sales Rep", got[0].Title)
	assert.Equal(t, "UK", got[0].Country)
	assert.Equal(t, "", got[1].EmpNorm)
}

func TestOrdersRelational(t *testing.T) {
	got, stats := NewAdapter(Relational).Orders(extract(
		[]string{"OrderID", "CustomerID", "EmployeeID", "OrderDate", "ShippedDate", "Freight"},
		[]string{"10248", "VINET", "5", "1996-07-04 00:00:00.000", "", "32.38"},
		[]string{"10249", "TOMSP", "6", "not a date", "1996-07-10", "n/a"},
	))

	require.Len(t, got, 2)
	o := got[0]
	assert.Equal(t, "10248", o.OrderID)
	assert.Equal(t, "VINET", o.CustomerID)
	assert.Equal(t, "5", o.EmployeeID)
	assert.Empty(t, o.CustomerNorm)
	require.NotNil(t, o.OrderDate)
	assert.Equal(t, time.Date(1996, 7, 4, 0, 0, 0, 0, time.UTC), *o.OrderDate)
	assert.Nil(t, o.ShippedDate)
	assert.False(t, o.Delivered())
	assert.InDelta(t, 32.38, o.Freight, 1e-9)

	assert.Nil(t, got[1].OrderDate)
	assert.True(t, got[1].Delivered())
	assert.Zero(t, got[1].Freight)

	assert.Equal(t, OrderStats{Rows: 2, UnparsableDates: 1, UnparsableAmount: 1}, stats)
}

func TestOrdersSpreadsheet(t *testing.T) {
	got, stats := NewAdapter(Spreadsheet).Orders(extract(
		[]string{"Order ID", "Employee", "Customer", "Order Date", "Shipped Date", "Shipping Fee"},
		[]string{"30", "Nancy Freehafer", "Company  AA", "1/15/2006", "1/22/2006 3:04:05 PM", "$1,200.50"},
	))

	require.Len(t, got, 1)
	o := got[0]
	assert.Equal(t, "Company  AA", o.CustomerRef)
	assert.Equal(t, "company aa", o.CustomerNorm)
	assert.Equal(t, "nancy freehafer", o.EmployeeNorm)
	assert.Empty(t, o.CustomerID)
	assert.Equal(t, time.Date(2006, 1, 22, 0, 0, 0, 0, time.UTC), *o.ShippedDate)
	assert.InDelta(t, 1200.50, o.Freight, 1e-9)
	assert.Equal(t, OrderStats{Rows: 1}, stats)
}

func TestAdaptersHandleEmptyExtracts(t *testing.T) {
	for _, p := range []Provenance{Relational, Spreadsheet} {
		a := NewAdapter(p)
		assert.NotNil(t, a.Customers(nil))
		assert.Empty(t, a.Customers(table.New("customers")))
		assert.NotNil(t, a.Employees(nil))

		orders, stats := a.Orders(nil)
		assert.NotNil(t, orders)
		assert.Empty(t, orders)
		assert.Zero(t, stats.Rows)
	}
}

func TestParseDate(t *testing.T) {
	day := func(y int, m time.Month, d int) time.Time {
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	}
	tests := []struct {
		in   string
		want *time.Time
		ok   bool
	}{
		{"2024-02-29", ptr(day(2024, 2, 29)), true},
		{"2024-02-29T23:30:00+05:00", ptr(day(2024, 2, 29)), true},
		{"2024-02-29 08:00:00.123", ptr(day(2024, 2, 29)), true},
		{"02/29/2024", ptr(day(2024, 2, 29)), true},
		{"2/29/2024 11:59:59 PM", ptr(day(2024, 2, 29)), true},
		{"2024/02/29", ptr(day(2024, 2, 29)), true},
		{"", nil, true},
		{"   ", nil, true},
		{"2023-02-29", nil, false},
		{"yesterday", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseDate(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func ptr(t time.Time) *time.Time { return &t }

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in     string
		want   float64
		wantOK bool
	}{
		{"32.38", 32.38, true},
		{"$200.00", 200, true},
		{" € 5 ", 5, true},
		{"1,234.50", 1234.5, true},
		{"$12,345,678", 12345678, true},
		{"-1,000", -1000, true},
		{"", 0, true},
		{"12,50", 0, false},
		{"1,2,3", 0, false},
		{"1,23.4", 0, false},
		{"NaN", 0, false},
		{"Inf", 0, false},
		{"-infinity", 0, false},
		{"1e400", 0, false},
		{"n/a", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseAmount(tt.in)
			assert.Equal(t, tt.wantOK, ok)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestOrdersDecimalCommaFreightIsUnparsable(t *testing.T) {
	got, stats := NewAdapter(Spreadsheet).Orders(extract(
		[]string{"Order ID", "Employee", "Customer", "Order Date", "Shipped Date", "Shipping Fee"},
		[]string{"40", "Nancy Freehafer", "Acme", "3/1/2024", "", "12,50"},
	))

	require.Len(t, got, 1)
	assert.Zero(t, got[0].Freight)
	assert.Equal(t, 1, stats.UnparsableAmount)
}

func TestLoadDiscoversFilesIgnoringCase(t *testing.T) {
	h := testutil.NewTestHelper(t)
	dir, cleanup := h.TempDir()
	defer cleanup()

	h.WriteCSV(dir, "CUSTOMERS.CSV", []string{"CustomerID", "CompanyName"}, []string{"1", "Acme Co"})
	h.WriteCSV(dir, "orders.csv", []string{"OrderID"}, []string{"10248"})

	loaded, err := Load(Relational, Location{Dir: dir})
	require.NoError(t, err)

	assert.Equal(t, 1, loaded.Table(Customers).Len())
	assert.Equal(t, filepath.Join(dir, "CUSTOMERS.CSV"), loaded.Extracts[Customers].Path)
	assert.Equal(t, 1, loaded.Table(Orders).Len())
	assert.Equal(t, 0, loaded.Table(Employees).Len())

	require.Len(t, loaded.Missing, 1)
	assert.Equal(t, errors.ErrCodeMissingSource, loaded.Missing[0].Code)
	assert.Equal(t, "employees", loaded.Missing[0].Context["entity"])
}

func TestLoadSpreadsheetCandidates(t *testing.T) {
	h := testutil.NewTestHelper(t)
	dir, cleanup := h.TempDir()
	defer cleanup()

	rel, sheet := h.CreateSourceTree(dir)

	loaded, err := Load(Spreadsheet, Location{Dir: sheet})
	require.NoError(t, err)
	assert.Empty(t, loaded.Missing)
	assert.Equal(t, 2, loaded.Table(Orders).Len())

	loaded, err = Load(Relational, Location{Dir: rel})
	require.NoError(t, err)
	assert.Empty(t, loaded.Missing)
	assert.Equal(t, 2, loaded.Table(Customers).Len())
}

func TestLoadExplicitFiles(t *testing.T) {
	h := testutil.NewTestHelper(t)
	dir, cleanup := h.TempDir()
	defer cleanup()

	h.WriteCSV(dir, "export/clients 2024.csv", []string{"ID", "Company"}, []string{"1", "Acme"})
	abs := h.WriteCSV(dir, "staff.csv", []string{"ID", "First Name"}, []string{"1", "Nancy"})

	loaded, err := Load(Spreadsheet, Location{
		Dir: dir,
		Files: map[Entity]string{
			Customers: "export/clients 2024.csv",
			Employees: abs,
			Orders:    "missing.csv",
		},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, loaded.Table(Customers).Len())
	assert.Equal(t, 1, loaded.Table(Employees).Len())
	require.Len(t, loaded.Missing, 1)
	assert.Equal(t, filepath.Join(dir, "missing.csv"), loaded.Missing[0].Context["path"])
}

func TestLoadMissingDirectory(t *testing.T) {
	loaded, err := Load(Relational, Location{Dir: filepath.Join(t.TempDir(), "nope")})
	require.NoError(t, err)
	assert.Len(t, loaded.Missing, 3)
	for _, e := range Entities {
		assert.NotNil(t, loaded.Table(e))
	}
}

func TestLoadCorruptExtractIsFatal(t *testing.T) {
	h := testutil.NewTestHelper(t)
	dir, cleanup := h.TempDir()
	defer cleanup()

	h.WriteFile(dir, "Orders.csv", "OrderID,Freight\n\"10248,1.0\n")

	_, err := Load(Relational, Location{Dir: dir})
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeCorruptSource, errors.GetErrorCode(err))
	assert.False(t, errors.IsRecoverable(err))
}

func TestLoadEmptyFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Customers.csv"), nil, 0o644))

	loaded, err := Load(Relational, Location{Dir: dir})
	require.NoError(t, err)
	assert.Equal(t, 0, loaded.Table(Customers).Len())
	assert.Empty(t, NewAdapter(Relational).Customers(loaded.Table(Customers)))
}
