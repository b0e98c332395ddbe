package source

import "time"

// CustomerRecord is one customer row in the common intermediate schema
type CustomerRecord struct {
	SourceID    string
	CompanyName string
	CompanyNorm string
	Region      string
	City        string
	Country     string
	Phone       string
	Fax         string
	Provenance  Provenance
}

// EmployeeRecord is one employee row in the common intermediate schema
type EmployeeRecord struct {
	SourceID   string
	FirstName  string
	LastName   string
	EmpNorm    string
	Title      string
	City       string
	Region     string
	Country    string
	Provenance Provenance
}

// OrderRecord is one order row in the common intermediate schema.
//
// Relational orders carry source-native CustomerID and EmployeeID; their
// normalized keys are filled in later from the relational dimensions'
// extracts. Spreadsheet orders carry name references and their normalized
// forms instead.
type OrderRecord struct {
	OrderID      string
	CustomerID   string
	EmployeeID   string
	CustomerRef  string
	EmployeeRef  string
	CustomerNorm string
	EmployeeNorm string
	OrderDate    *time.Time
	ShippedDate  *time.Time
	Freight      float64
	Provenance   Provenance
}

// Delivered reports whether the order has a ship date
func (o OrderRecord) Delivered() bool {
	return o.ShippedDate != nil
}

// OrderStats counts cells an adapter could not parse
type OrderStats struct {
	Rows             int
	UnparsableDates  int
	UnparsableAmount int
}

// Add accumulates other into s
func (s *OrderStats) Add(other OrderStats) {
	s.Rows += other.Rows
	s.UnparsableDates += other.UnparsableDates
	s.UnparsableAmount += other.UnparsableAmount
}
