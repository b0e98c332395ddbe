// Package source adapts raw relational and spreadsheet extracts into the
// common intermediate records used to build the warehouse.
package source

import (
	"strings"
)

// Provenance tags which input a record came from
type Provenance string

const (
	Relational  Provenance = "relational"
	Spreadsheet Provenance = "spreadsheet"
)

// Rank orders provenances for deduplication: lower wins.
func (p Provenance) Rank() int {
	if p == Relational {
		return 0
	}
	return 1
}

// Entity names one of the three extract kinds
type Entity string

const (
	Customers Entity = "customers"
	Employees Entity = "employees"
	Orders    Entity = "orders"
)

// Entities lists every extract kind in load order
var Entities = []Entity{Customers, Employees, Orders}

// Field maps a canonical field to the source column names that may carry it,
// most preferred first.
type Field struct {
	Name       string
	Candidates []string
}

// Mapping is the ordered set of fields for one entity of one source
type Mapping []Field

// Canonical field names
const (
	FieldID          = "id"
	FieldCompany     = "companyname"
	FieldRegion      = "region"
	FieldCity        = "city"
	FieldCountry     = "country"
	FieldPhone       = "phone"
	FieldFax         = "fax"
	FieldFirstName   = "firstname"
	FieldLastName    = "lastname"
	FieldTitle       = "title"
	FieldCustomer    = "customer"
	FieldEmployee    = "employee"
	FieldOrderDate   = "orderdate"
	FieldShippedDate = "shippeddate"
	FieldFreight     = "freight"
)

var mappings = map[Provenance]map[Entity]Mapping{
	Relational: {
		Customers: {
			{FieldID, []string{"CustomerID"}},
			{FieldCompany, []string{"CompanyName", "Company"}},
			{FieldRegion, []string{"Region"}},
			{FieldCity, []string{"City"}},
			{FieldCountry, []string{"Country"}},
			{FieldPhone, []string{"Phone"}},
			{FieldFax, []string{"Fax"}},
		},
		Employees: {
			{FieldID, []string{"EmployeeID"}},
			{FieldFirstName, []string{"FirstName"}},
			{FieldLastName, []string{"LastName"}},
			{FieldTitle, []string{"Title"}},
			{FieldCity, []string{"City"}},
			{FieldRegion, []string{"Region"}},
			{FieldCountry, []string{"Country"}},
		},
		Orders: {
			{FieldID, []string{"OrderID"}},
			{FieldCustomer, []string{"CustomerID"}},
			{FieldEmployee, []string{"EmployeeID"}},
			{FieldOrderDate, []string{"OrderDate"}},
			{FieldShippedDate, []string{"ShippedDate"}},
			{FieldFreight, []string{"Freight"}},
		},
	},
	Spreadsheet: {
		Customers: {
			{FieldID, []string{"ID"}},
			{FieldCompany, []string{"Company", "CompanyName"}},
			{FieldRegion, []string{"State/Province", "State", "Region"}},
			{FieldCity, []string{"City"}},
			{FieldCountry, []string{"Country/Region", "Country"}},
			{FieldPhone, []string{"Business Phone", "Phone"}},
			{FieldFax, []string{"Fax Number", "Fax"}},
		},
		Employees: {
			{FieldID, []string{"ID"}},
			{FieldFirstName, []string{"First Name", "FirstName"}},
			{FieldLastName, []string{"Last Name", "LastName"}},
			{FieldTitle, []string{"Job Title", "Title"}},
			{FieldCity, []string{"City"}},
			{FieldRegion, []string{"State/Province", "Region"}},
			{FieldCountry, []string{"Country/Region", "Country"}},
		},
		Orders: {
			{FieldID, []string{"Order ID", "OrderID"}},
			{FieldCustomer, []string{"Customer", "Company"}},
			{FieldEmployee, []string{"Employee", "EmployeeName"}},
			{FieldOrderDate, []string{"Order Date", "OrderDate"}},
			{FieldShippedDate, []string{"Shipped Date", "ShippedDate"}},
			{FieldFreight, []string{"Shipping Fee", "Freight"}},
		},
	},
}

// MappingFor returns the fixed column mapping of an entity in a source
func MappingFor(p Provenance, e Entity) Mapping {
	return mappings[p][e]
}

// Resolver is a Mapping bound to one extract header. Lookups by field name
// are then plain index reads.
type Resolver struct {
	index map[string]int
}

// NewResolver binds m to header. Header names match candidates ignoring case
// and surrounding whitespace; the first candidate present wins.
func NewResolver(m Mapping, header []string) *Resolver {
	positions := make(map[string]int, len(header))
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(h))
		if _, dup := positions[key]; !dup {
			positions[key] = i
		}
	}

	r := &Resolver{index: make(map[string]int, len(m))}
	for _, f := range m {
		r.index[f.Name] = -1
		for _, c := range f.Candidates {
			if pos, ok := positions[strings.ToLower(c)]; ok {
				r.index[f.Name] = pos
				break
			}
		}
	}
	return r
}

// Has reports whether the extract carries field
func (r *Resolver) Has(field string) bool {
	pos, ok := r.index[field]
	return ok && pos >= 0
}

// Get returns the trimmed value of field in row, or "" when the column is absent.
func (r *Resolver) Get(row []string, field string) string {
	pos, ok := r.index[field]
	if !ok || pos < 0 || pos >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[pos])
}
