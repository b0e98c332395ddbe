package warehouse

import (
	"strconv"
	"time"

	"dwbuild/internal/table"
)

// Table names of the published star schema
const (
	TableCustomers = "dim_customers"
	TableEmployees = "dim_employees"
	TableDates     = "dim_temps"
	TableFacts     = "fact_orders"
)

const dateLayout = "2006-01-02"

var (
	customerColumns = []table.Column{
		{Name: "customer_key", Kind: table.KindInt},
		{Name: "customerid", Kind: table.KindString},
		{Name: "companyname", Kind: table.KindString},
		{Name: "company_norm", Kind: table.KindString},
		{Name: "region", Kind: table.KindString},
		{Name: "city", Kind: table.KindString},
		{Name: "country", Kind: table.KindString},
		{Name: "phone", Kind: table.KindString},
		{Name: "fax", Kind: table.KindString},
		{Name: "source", Kind: table.KindString},
	}

	employeeColumns = []table.Column{
		{Name: "employee_key", Kind: table.KindInt},
		{Name: "employeeid", Kind: table.KindString},
		{Name: "firstname", Kind: table.KindString},
		{Name: "lastname", Kind: table.KindString},
		{Name: "title", Kind: table.KindString},
		{Name: "emp_norm", Kind: table.KindString},
		{Name: "city", Kind: table.KindString},
		{Name: "region", Kind: table.KindString},
		{Name: "country", Kind: table.KindString},
		{Name: "source", Kind: table.KindString},
	}

	dateColumns = []table.Column{
		{Name: "date", Kind: table.KindDate},
		{Name: "date_key", Kind: table.KindInt},
		{Name: "year", Kind: table.KindInt},
		{Name: "month", Kind: table.KindInt},
		{Name: "day", Kind: table.KindInt},
		{Name: "weekday", Kind: table.KindString},
	}

	factColumns = []table.Column{
		{Name: "fact_key", Kind: table.KindInt},
		{Name: "orderid", Kind: table.KindString},
		{Name: "source", Kind: table.KindString},
		{Name: "orderdate", Kind: table.KindDate, Nullable: true},
		{Name: "orderdate_key", Kind: table.KindInt, Nullable: true},
		{Name: "shippeddate", Kind: table.KindDate, Nullable: true},
		{Name: "shippeddate_key", Kind: table.KindInt, Nullable: true},
		{Name: "customer_key", Kind: table.KindInt, Nullable: true},
		{Name: "employee_key", Kind: table.KindInt, Nullable: true},
		{Name: "delivered", Kind: table.KindInt},
		{Name: "freight", Kind: table.KindFloat},
		{Name: "company_norm", Kind: table.KindString},
		{Name: "employee_norm", Kind: table.KindString},
	}
)

// CustomersTable renders the customer dimension
func CustomersTable(d *CustomerDimension) *table.Table {
	t := table.New(TableCustomers, customerColumns...)
	for i, c := range rowsOf(d) {
		t.Rows = append(t.Rows, []string{
			strconv.Itoa(i + 1), c.SourceID, c.CompanyName, c.CompanyNorm,
			c.Region, c.City, c.Country, c.Phone, c.Fax, string(c.Provenance),
		})
	}
	return t
}

// EmployeesTable renders the employee dimension
func EmployeesTable(d *EmployeeDimension) *table.Table {
	t := table.New(TableEmployees, employeeColumns...)
	for i, e := range rowsOf(d) {
		t.Rows = append(t.Rows, []string{
			strconv.Itoa(i + 1), e.SourceID, e.FirstName, e.LastName, e.Title,
			e.EmpNorm, e.City, e.Region, e.Country, string(e.Provenance),
		})
	}
	return t
}

// DatesTable renders the calendar
func DatesTable(c *Calendar) *table.Table {
	t := table.New(TableDates, dateColumns...)
	if c == nil {
		return t
	}
	for _, d := range c.Days {
		t.Rows = append(t.Rows, []string{
			d.Date.Format(dateLayout),
			strconv.Itoa(d.Key),
			strconv.Itoa(d.Year),
			strconv.Itoa(d.Month),
			strconv.Itoa(d.Day),
			d.Weekday,
		})
	}
	return t
}

// FactsTable renders the order facts. Nulls become empty cells.
func FactsTable(facts []Fact) *table.Table {
	t := table.New(TableFacts, factColumns...)
	for _, f := range facts {
		delivered := "0"
		if f.Delivered {
			delivered = "1"
		}
		t.Rows = append(t.Rows, []string{
			strconv.Itoa(f.Key),
			f.OrderID,
			string(f.Source),
			formatDate(f.OrderDate),
			formatInt(f.OrderDateKey),
			formatDate(f.ShippedDate),
			formatInt(f.ShippedDateKey),
			formatInt(f.CustomerKey),
			formatInt(f.EmployeeKey),
			delivered,
			strconv.FormatFloat(f.Freight, 'f', -1, 64),
			f.CompanyNorm,
			f.EmployeeNorm,
		})
	}
	return t
}

func rowsOf[R any](d *Dimension[R]) []R {
	if d == nil {
		return nil
	}
	return d.Rows
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(dateLayout)
}

func formatInt(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}
