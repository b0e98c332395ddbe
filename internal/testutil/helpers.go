package testutil

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"dwbuild/internal/common"
	"dwbuild/internal/observability"
)

// TestHelper provides common test utilities
type TestHelper struct {
	t *testing.T
}

// NewTestHelper creates a new test helper
func NewTestHelper(t *testing.T) *TestHelper {
	return &TestHelper{t: t}
}

// TempDir creates a temporary directory and returns cleanup function
func (h *TestHelper) TempDir() (string, func()) {
	dir, err := os.MkdirTemp("", "dwbuild-test-*")
	if err != nil {
		h.t.Fatalf("Failed to create temp dir: %v", err)
	}

	cleanup := func() {
		if err := os.RemoveAll(dir); err != nil {
			h.t.Errorf("Failed to clean up temp dir: %v", err)
		}
	}

	return dir, cleanup
}

// WriteFile writes content to a file in the given directory
func (h *TestHelper) WriteFile(dir, filename, content string) string {
	path := filepath.Join(dir, filename)

	if err := os.MkdirAll(filepath.Dir(path), common.DirPermissionNormal); err != nil {
		h.t.Fatalf("Failed to create directories: %v", err)
	}

	if err := os.WriteFile(path, []byte(content), common.FilePermissionNormal); err != nil {
		h.t.Fatalf("Failed to write file %s: %v", path, err)
	}

	return path
}

// WriteCSV writes a header and rows as a CSV extract
func (h *TestHelper) WriteCSV(dir, filename string, header []string, rows ...[]string) string {
	var b strings.Builder
	w := csv.NewWriter(&b)
	if err := w.Write(header); err != nil {
		h.t.Fatalf("Failed to encode header: %v", err)
	}
	if err := w.WriteAll(rows); err != nil {
		h.t.Fatalf("Failed to encode rows: %v", err)
	}
	return h.WriteFile(dir, filename, b.String())
}

// ReadCSV reads a published table back as header plus rows
func (h *TestHelper) ReadCSV(path string) ([]string, [][]string) {
	f, err := os.Open(path) // #nosec G304 - test fixture path
	if err != nil {
		h.t.Fatalf("Failed to open %s: %v", path, err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		h.t.Fatalf("Failed to parse %s: %v", path, err)
	}
	if len(records) == 0 {
		h.t.Fatalf("File %s has no header", path)
	}
	return records[0], records[1:]
}

// CreateSourceTree writes a small two-source extract set under dir and
// returns the relational and spreadsheet directories.
//
// "Acme Co" exists in both sources and must collapse into one customer.
// Spreadsheet order 30 references "Nobody Ltd", which has no customer row.
func (h *TestHelper) CreateSourceTree(dir string) (relationalDir, spreadsheetDir string) {
	relationalDir = filepath.Join(dir, "sql_sources")
	spreadsheetDir = filepath.Join(dir, "excel_sources")

	h.WriteCSV(relationalDir, "Customers.csv",
		[]string{"CustomerID", "CompanyName", "Region", "City", "Country", "Phone", "Fax"},
		[]string{"1", "Acme Co", "", "Berlin", "Germany", "030-0074321", ""},
		[]string{"2", "Börgen Handel", "BC", "Vancouver", "Canada", "", ""},
	)
	h.WriteCSV(relationalDir, "Employees.csv",
		[]string{"EmployeeID", "LastName", "FirstName", "Title", "City", "Region", "Country"},
		[]string{"5", "Buchanan", "Steven", "Sales Manager", "London", "", "UK"},
	)
	h.WriteCSV(relationalDir, "Orders.csv",
		[]string{"OrderID", "CustomerID", "EmployeeID", "OrderDate", "ShippedDate", "Freight"},
		[]string{"10248", "1", "5", "2024-02-27", "2024-03-01", "32.38"},
		[]string{"10249", "2", "5", "2024-02-28 00:00:00", "", "11.61"},
	)

	h.WriteCSV(spreadsheetDir, "customers_excel.csv",
		[]string{"ID", "Company", "Last Name", "First Name", "Business Phone", "Fax Number", "City", "State/Province", "Country/Region"},
		[]string{"X9", "ACME CO", "Bedecs", "Anna", "(123)555-0100", "", "Seattle", "WA", "USA"},
		[]string{"X10", "Company  B", "Gratacos", "Antonio", "", "", "Boston", "MA", "USA"},
	)
	h.WriteCSV(spreadsheetDir, "employees_excel.csv",
		[]string{"ID", "Company", "Last Name", "First Name", "Job Title", "City", "State/Province", "Country/Region"},
		[]string{"1", "Northwind Traders", "Freehafer", "Nancy", "Sales Representative", "Seattle", "WA", "USA"},
		[]string{"2", "Northwind Traders", "Buchanan", "Steven", "Sales Manager", "London", "", "UK"},
	)
	h.WriteCSV(spreadsheetDir, "orders_excel.csv",
		[]string{"Order ID", "Employee", "Customer", "Order Date", "Shipped Date", "Shipping Fee"},
		[]string{"30", "Nancy Freehafer", "Nobody Ltd", "2/29/2024", "", "$200.00"},
		[]string{"31", "Steven  Buchanan", "acme co", "3/2/2024 10:15:00 AM", "3/4/2024", "5"},
	)

	return relationalDir, spreadsheetDir
}

// CaptureOutput captures stdout and stderr during function execution
func (h *TestHelper) CaptureOutput(f func()) (stdout, stderr string) {
	oldStdout := os.Stdout
	rOut, wOut, _ := os.Pipe()
	os.Stdout = wOut

	oldStderr := os.Stderr
	rErr, wErr, _ := os.Pipe()
	os.Stderr = wErr

	f()

	wOut.Close()
	os.Stdout = oldStdout
	outBytes, _ := io.ReadAll(rOut)
	stdout = string(outBytes)

	wErr.Close()
	os.Stderr = oldStderr
	errBytes, _ := io.ReadAll(rErr)
	stderr = string(errBytes)

	return stdout, stderr
}

// MockEnv temporarily sets environment variables
func (h *TestHelper) MockEnv(key, value string) func() {
	oldValue, exists := os.LookupEnv(key)

	if err := os.Setenv(key, value); err != nil {
		h.t.Fatalf("Failed to set env var %s: %v", key, err)
	}

	return func() {
		if exists {
			os.Setenv(key, oldValue)
		} else {
			os.Unsetenv(key)
		}
	}
}

// testWriter sends log lines to testing.T
type testWriter struct {
	t *testing.T
}

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(strings.TrimRight(string(p), "\n"))
	return len(p), nil
}

// NewTestLogger returns a debug-level logger whose output shows up in go test -v
func NewTestLogger(t *testing.T) *observability.Logger {
	return observability.NewLogger(observability.LoggerConfig{
		Level:   observability.DebugLevel,
		Output:  testWriter{t: t},
		Service: "dwbuild-test",
	})
}
