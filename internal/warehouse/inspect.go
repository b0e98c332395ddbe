package warehouse

import (
	"os"

	"dwbuild/internal/common"
	"dwbuild/internal/config"
	"dwbuild/internal/table"
	"dwbuild/pkg/errors"
)

// TableSummary describes one published table found on disk
type TableSummary struct {
	Name    string `json:"name"`
	Path    string `json:"path"`
	Present bool   `json:"present"`
	Rows    int    `json:"rows"`
}

// Inspection is a read-only look at a published warehouse
type Inspection struct {
	Tables []TableSummary `json:"tables"`

	Facts            int `json:"facts"`
	Delivered        int `json:"delivered"`
	NullCustomerKeys int `json:"null_customer_keys"`
	NullEmployeeKeys int `json:"null_employee_keys"`
	NullOrderDateKey int `json:"null_orderdate_keys"`
}

// Inspect reads the published tables named in out. Absent tables are
// reported, not treated as errors.
func Inspect(out config.OutputConfig) (*Inspection, error) {
	ins := &Inspection{}

	files := []struct{ name, file string }{
		{TableCustomers, out.Customers},
		{TableEmployees, out.Employees},
		{TableDates, out.Dates},
		{TableFacts, out.Facts},
	}

	for _, f := range files {
		path, err := common.JoinPath(out.Dir, f.file)
		if err != nil {
			return nil, errors.ConfigError(err.Error(), "output")
		}
		summary := TableSummary{Name: f.name, Path: path}

		if _, err := os.Stat(path); err != nil {
			ins.Tables = append(ins.Tables, summary)
			continue
		}

		res, err := table.ReadFile(path)
		if err != nil {
			return nil, errors.CorruptSourceError(path, err)
		}
		summary.Present = true
		summary.Rows = res.Table.Len()
		ins.Tables = append(ins.Tables, summary)

		if f.name == TableFacts {
			ins.countFacts(res.Table)
		}
	}

	return ins, nil
}

func (i *Inspection) countFacts(t *table.Table) {
	i.Facts = t.Len()
	count := func(column string, match func(string) bool) int {
		values, ok := t.Values(column)
		if !ok {
			return 0
		}
		n := 0
		for _, v := range values {
			if match(v) {
				n++
			}
		}
		return n
	}
	empty := func(v string) bool { return v == "" }

	i.NullCustomerKeys = count("customer_key", empty)
	i.NullEmployeeKeys = count("employee_key", empty)
	i.NullOrderDateKey = count("orderdate_key", empty)
	i.Delivered = count("delivered", func(v string) bool { return v == "1" })
}

// RequireFacts fails when the published fact table is absent or empty
func (i *Inspection) RequireFacts() error {
	if i == nil || i.Facts == 0 {
		return errors.EmptyFactSetError()
	}
	return nil
}
