package warehouse

import (
	"time"

	"dwbuild/internal/source"
)

// Tier says how a fact's dimension key was found
type Tier int

const (
	Unresolved Tier = iota
	ByNorm
	BySourceID
)

func (t Tier) String() string {
	switch t {
	case ByNorm:
		return "normalized-key"
	case BySourceID:
		return "source-id"
	default:
		return "unresolved"
	}
}

// Fact is one row of the order fact table. Nil pointers are nulls.
type Fact struct {
	Key            int
	OrderID        string
	Source         source.Provenance
	OrderDate      *time.Time
	OrderDateKey   *int
	ShippedDate    *time.Time
	ShippedDateKey *int
	CustomerKey    *int
	EmployeeKey    *int
	CustomerTier   Tier
	EmployeeTier   Tier
	Delivered      bool
	Freight        float64
	CompanyNorm    string
	EmployeeNorm   string
}

// TierCounts tallies resolutions for one dimension
type TierCounts struct {
	ByNorm     int `json:"by_norm"`
	BySourceID int `json:"by_source_id"`
	Unresolved int `json:"unresolved"`
}

func (c *TierCounts) add(t Tier) {
	switch t {
	case ByNorm:
		c.ByNorm++
	case BySourceID:
		c.BySourceID++
	default:
		c.Unresolved++
	}
}

// FactStats summarizes a resolution pass
type FactStats struct {
	Customers TierCounts `json:"customers"`
	Employees TierCounts `json:"employees"`
	// DatesOutsideCalendar counts present order or ship dates with no calendar row.
	DatesOutsideCalendar int `json:"dates_outside_calendar"`
	Delivered            int `json:"delivered"`
}

// FactInput is everything the resolver reads
type FactInput struct {
	RelationalOrders  []source.OrderRecord
	SpreadsheetOrders []source.OrderRecord

	// Relational customer and employee records give relational orders their
	// normalized keys through the ids they carry.
	RelationalCustomers []source.CustomerRecord
	RelationalEmployees []source.EmployeeRecord

	Customers *CustomerDimension
	Employees *EmployeeDimension
	Calendar  *Calendar
}

// ResolveFacts unions relational then spreadsheet orders, keeping extract
// order, and resolves each against the dimensions. No order is dropped: a
// reference that cannot be resolved becomes a null key.
func ResolveFacts(in FactInput) ([]Fact, FactStats) {
	var stats FactStats

	relational := withRelationalKeys(in.RelationalOrders, in.RelationalCustomers, in.RelationalEmployees)
	facts := make([]Fact, 0, len(relational)+len(in.SpreadsheetOrders))

	for _, batch := range [][]source.OrderRecord{relational, in.SpreadsheetOrders} {
		for _, o := range batch {
			f := Fact{
				Key:          len(facts) + 1,
				OrderID:      o.OrderID,
				Source:       o.Provenance,
				OrderDate:    o.OrderDate,
				ShippedDate:  o.ShippedDate,
				Delivered:    o.Delivered(),
				Freight:      o.Freight,
				CompanyNorm:  o.CustomerNorm,
				EmployeeNorm: o.EmployeeNorm,
			}

			f.CustomerKey, f.CustomerTier = resolve(in.Customers, o.CustomerNorm, o.CustomerID)
			f.EmployeeKey, f.EmployeeTier = resolve(in.Employees, o.EmployeeNorm, o.EmployeeID)
			stats.Customers.add(f.CustomerTier)
			stats.Employees.add(f.EmployeeTier)

			f.OrderDateKey = dateKey(in.Calendar, o.OrderDate, &stats)
			f.ShippedDateKey = dateKey(in.Calendar, o.ShippedDate, &stats)

			if f.Delivered {
				stats.Delivered++
			}
			facts = append(facts, f)
		}
	}

	return facts, stats
}

// resolve tries the normalized key first, then the source-native id.
func resolve[R any](d *Dimension[R], norm, id string) (*int, Tier) {
	if key, ok := d.KeyByNorm(norm); ok {
		return &key, ByNorm
	}
	if key, ok := d.KeyByRelationalID(id); ok {
		return &key, BySourceID
	}
	return nil, Unresolved
}

func dateKey(c *Calendar, t *time.Time, stats *FactStats) *int {
	if t == nil {
		return nil
	}
	key, ok := c.KeyFor(t)
	if !ok {
		stats.DatesOutsideCalendar++
		return nil
	}
	return &key
}

// withRelationalKeys copies orders with CustomerNorm and EmployeeNorm looked
// up from the relational extracts by id. Unknown ids leave the key empty.
func withRelationalKeys(orders []source.OrderRecord, customers []source.CustomerRecord, employees []source.EmployeeRecord) []source.OrderRecord {
	companyByID := make(map[string]string, len(customers))
	for _, c := range customers {
		if _, seen := companyByID[c.SourceID]; !seen && c.SourceID != "" {
			companyByID[c.SourceID] = c.CompanyNorm
		}
	}
	nameByID := make(map[string]string, len(employees))
	for _, e := range employees {
		if _, seen := nameByID[e.SourceID]; !seen && e.SourceID != "" {
			nameByID[e.SourceID] = e.EmpNorm
		}
	}

	out := make([]source.OrderRecord, len(orders))
	for i, o := range orders {
		o.CustomerNorm = companyByID[o.CustomerID]
		o.EmployeeNorm = nameByID[o.EmployeeID]
		out[i] = o
	}
	return out
}
