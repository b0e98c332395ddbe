package source

import (
	"dwbuild/internal/normalize"
	"dwbuild/internal/table"
)

// Adapter maps the extracts of one source into intermediate records. A nil
// or column-less table yields an empty, non-nil slice.
type Adapter interface {
	Provenance() Provenance
	Customers(t *table.Table) []CustomerRecord
	Employees(t *table.Table) []EmployeeRecord
	Orders(t *table.Table) ([]OrderRecord, OrderStats)
}

// NewAdapter returns the adapter for a source
func NewAdapter(p Provenance) Adapter {
	if p == Relational {
		return &relationalAdapter{base{provenance: Relational}}
	}
	return &spreadsheetAdapter{base{provenance: Spreadsheet}}
}

// base holds what both sources map identically once columns are resolved.
type base struct {
	provenance Provenance
}

func (b base) Provenance() Provenance {
	return b.provenance
}

func (b base) resolver(e Entity, t *table.Table) *Resolver {
	return NewResolver(MappingFor(b.provenance, e), t.Header())
}

func (b base) Customers(t *table.Table) []CustomerRecord {
	out := make([]CustomerRecord, 0, t.Len())
	if t.Len() == 0 {
		return out
	}
	r := b.resolver(Customers, t)
	for _, row := range t.Rows {
		company := r.Get(row, FieldCompany)
		out = append(out, CustomerRecord{
			SourceID:    r.Get(row, FieldID),
			CompanyName: company,
			CompanyNorm: normalize.Text(company),
			Region:      r.Get(row, FieldRegion),
			City:        r.Get(row, FieldCity),
			Country:     r.Get(row, FieldCountry),
			Phone:       r.Get(row, FieldPhone),
			Fax:         r.Get(row, FieldFax),
			Provenance:  b.provenance,
		})
	}
	return out
}

func (b base) Employees(t *table.Table) []EmployeeRecord {
	out := make([]EmployeeRecord, 0, t.Len())
	if t.Len() == 0 {
		return out
	}
	r := b.resolver(Employees, t)
	for _, row := range t.Rows {
		first, last := r.Get(row, FieldFirstName), r.Get(row, FieldLastName)
		out = append(out, EmployeeRecord{
			SourceID:   r.Get(row, FieldID),
			FirstName:  first,
			LastName:   last,
			EmpNorm:    normalize.FullName(first, last),
			Title:      r.Get(row, FieldTitle),
			City:       r.Get(row, FieldCity),
			Region:     r.Get(row, FieldRegion),
			Country:    r.Get(row, FieldCountry),
			Provenance: b.provenance,
		})
	}
	return out
}

// orders maps the columns shared by both sources and lets fill set the
// customer and employee references.
func (b base) orders(t *table.Table, fill func(r *Resolver, row []string, o *OrderRecord)) ([]OrderRecord, OrderStats) {
	out := make([]OrderRecord, 0, t.Len())
	var stats OrderStats
	if t.Len() == 0 {
		return out, stats
	}
	r := b.resolver(Orders, t)
	for _, row := range t.Rows {
		o := OrderRecord{
			OrderID:    r.Get(row, FieldID),
			Provenance: b.provenance,
		}
		var ok bool
		if o.OrderDate, ok = ParseDate(r.Get(row, FieldOrderDate)); !ok {
			stats.UnparsableDates++
		}
		if o.ShippedDate, ok = ParseDate(r.Get(row, FieldShippedDate)); !ok {
			stats.UnparsableDates++
		}
		if o.Freight, ok = ParseAmount(r.Get(row, FieldFreight)); !ok {
			stats.UnparsableAmount++
		}
		fill(r, row, &o)
		out = append(out, o)
	}
	stats.Rows = len(out)
	return out, stats
}

type relationalAdapter struct {
	base
}

func (a *relationalAdapter) Orders(t *table.Table) ([]OrderRecord, OrderStats) {
	return a.orders(t, func(r *Resolver, row []string, o *OrderRecord) {
		o.CustomerID = r.Get(row, FieldCustomer)
		o.EmployeeID = r.Get(row, FieldEmployee)
	})
}

type spreadsheetAdapter struct {
	base
}

func (a *spreadsheetAdapter) Orders(t *table.Table) ([]OrderRecord, OrderStats) {
	return a.orders(t, func(r *Resolver, row []string, o *OrderRecord) {
		o.CustomerRef = r.Get(row, FieldCustomer)
		o.EmployeeRef = r.Get(row, FieldEmployee)
		o.CustomerNorm = normalize.Text(o.CustomerRef)
		o.EmployeeNorm = normalize.Text(o.EmployeeRef)
	})
}
