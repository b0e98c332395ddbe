// Package warehouse turns adapted source records into the star schema:
// customer and employee dimensions, the calendar, and the order facts.
package warehouse

import (
	"cmp"
	"slices"

	"dwbuild/internal/normalize"
	"dwbuild/internal/source"
)

// identity tells the dimension builder how to read a record type.
type identity[R any] struct {
	norm       func(R) string
	id         func(R) string
	provenance func(R) source.Provenance
	attributes func(R) []string
}

// Conflict records a dropped duplicate whose descriptive attributes differ
// from the row kept for the same normalized key.
type Conflict struct {
	Norm       string
	KeptID     string
	DroppedID  string
	Provenance source.Provenance
}

// Dimension is a deduplicated set of records. Rows[i] has surrogate key i+1.
type Dimension[R any] struct {
	Rows       []R
	Duplicates int
	Conflicts  []Conflict

	byNorm         map[string]int
	byRelationalID map[string]int
}

// Len returns the number of dimension rows
func (d *Dimension[R]) Len() int {
	if d == nil {
		return 0
	}
	return len(d.Rows)
}

// KeyByNorm returns the surrogate key of a normalized key. Empty keys never match.
func (d *Dimension[R]) KeyByNorm(norm string) (int, bool) {
	if d == nil || norm == "" {
		return 0, false
	}
	key, ok := d.byNorm[norm]
	return key, ok
}

// KeyByRelationalID returns the surrogate key of the relational row carrying
// a source-native id. Spreadsheet ids live in a different namespace and are
// never matched.
func (d *Dimension[R]) KeyByRelationalID(id string) (int, bool) {
	if d == nil || id == "" {
		return 0, false
	}
	key, ok := d.byRelationalID[id]
	return key, ok
}

type candidate[R any] struct {
	rec  R
	norm string
	rank int
}

// buildDimension unions relational then spreadsheet rows, stably sorts them by
// (normalized key, source rank) and keeps the first row of every non-empty
// key. Rows with an empty key are all kept.
func buildDimension[R any](ident identity[R], relational, spreadsheet []R) *Dimension[R] {
	all := make([]candidate[R], 0, len(relational)+len(spreadsheet))
	for _, batch := range [][]R{relational, spreadsheet} {
		for _, r := range batch {
			all = append(all, candidate[R]{rec: r, norm: ident.norm(r), rank: ident.provenance(r).Rank()})
		}
	}

	slices.SortStableFunc(all, func(a, b candidate[R]) int {
		if c := cmp.Compare(a.norm, b.norm); c != 0 {
			return c
		}
		return cmp.Compare(a.rank, b.rank)
	})

	d := &Dimension[R]{
		Rows:           make([]R, 0, len(all)),
		byNorm:         make(map[string]int, len(all)),
		byRelationalID: make(map[string]int),
	}

	for _, c := range all {
		if c.norm != "" {
			if key, seen := d.byNorm[c.norm]; seen {
				d.Duplicates++
				kept := d.Rows[key-1]
				if attributesConflict(ident.attributes(kept), ident.attributes(c.rec)) {
					d.Conflicts = append(d.Conflicts, Conflict{
						Norm:       c.norm,
						KeptID:     ident.id(kept),
						DroppedID:  ident.id(c.rec),
						Provenance: ident.provenance(c.rec),
					})
				}
				continue
			}
		}

		d.Rows = append(d.Rows, c.rec)
		key := len(d.Rows)
		if c.norm != "" {
			d.byNorm[c.norm] = key
		}
		if ident.provenance(c.rec) == source.Relational {
			if id := ident.id(c.rec); id != "" {
				if _, taken := d.byRelationalID[id]; !taken {
					d.byRelationalID[id] = key
				}
			}
		}
	}

	return d
}

// attributesConflict is true when the dropped row states a value the kept row
// contradicts. Blank cells on either side are not a contradiction.
func attributesConflict(kept, dropped []string) bool {
	for i := range kept {
		a, b := normalize.Text(kept[i]), normalize.Text(dropped[i])
		if a != "" && b != "" && a != b {
			return true
		}
	}
	return false
}

var customerIdentity = identity[source.CustomerRecord]{
	norm:       func(c source.CustomerRecord) string { return c.CompanyNorm },
	id:         func(c source.CustomerRecord) string { return c.SourceID },
	provenance: func(c source.CustomerRecord) source.Provenance { return c.Provenance },
	attributes: func(c source.CustomerRecord) []string {
		return []string{c.Region, c.City, c.Country, c.Phone, c.Fax}
	},
}

var employeeIdentity = identity[source.EmployeeRecord]{
	norm:       func(e source.EmployeeRecord) string { return e.EmpNorm },
	id:         func(e source.EmployeeRecord) string { return e.SourceID },
	provenance: func(e source.EmployeeRecord) source.Provenance { return e.Provenance },
	attributes: func(e source.EmployeeRecord) []string {
		return []string{e.Title, e.City, e.Region, e.Country}
	},
}

// CustomerDimension is the deduplicated customer dimension
type CustomerDimension = Dimension[source.CustomerRecord]

// EmployeeDimension is the deduplicated employee dimension
type EmployeeDimension = Dimension[source.EmployeeRecord]

// BuildCustomers deduplicates customers by normalized company name, keeping
// the relational row when both sources know the company.
func BuildCustomers(relational, spreadsheet []source.CustomerRecord) *CustomerDimension {
	return buildDimension(customerIdentity, relational, spreadsheet)
}

// BuildEmployees deduplicates employees by normalized full name.
func BuildEmployees(relational, spreadsheet []source.EmployeeRecord) *EmployeeDimension {
	return buildDimension(employeeIdentity, relational, spreadsheet)
}
