package warehouse

import (
	"context"
	"time"

	"github.com/google/uuid"

	"dwbuild/internal/config"
	"dwbuild/internal/observability"
	"dwbuild/internal/source"
	"dwbuild/internal/table"
	"dwbuild/pkg/errors"
)

// TableLoader receives the published tables, e.g. a SQL warehouse.
type TableLoader interface {
	LoadTables(ctx context.Context, tables []*table.Table) error
}

// SourceRecords is one source after adaptation
type SourceRecords struct {
	Customers  []source.CustomerRecord
	Employees  []source.EmployeeRecord
	Orders     []source.OrderRecord
	OrderStats source.OrderStats
}

// Adapt maps loaded extracts through the source's adapter
func Adapt(l *source.Loaded) SourceRecords {
	a := source.NewAdapter(l.Provenance)
	orders, stats := a.Orders(l.Table(source.Orders))
	return SourceRecords{
		Customers:  a.Customers(l.Table(source.Customers)),
		Employees:  a.Employees(l.Table(source.Employees)),
		Orders:     orders,
		OrderStats: stats,
	}
}

// Warehouse is a fully built star schema held in memory
type Warehouse struct {
	Customers *CustomerDimension
	Employees *EmployeeDimension
	Calendar  *Calendar
	Facts     []Fact
	Stats     FactStats
}

// Assemble builds every table from adapted records. It reads nothing but its
// arguments; now only matters when no order has a date.
func Assemble(relational, spreadsheet SourceRecords, now time.Time) *Warehouse {
	w := &Warehouse{
		Customers: BuildCustomers(relational.Customers, spreadsheet.Customers),
		Employees: BuildEmployees(relational.Employees, spreadsheet.Employees),
		Calendar:  BuildCalendar(now, relational.Orders, spreadsheet.Orders),
	}

	w.Facts, w.Stats = ResolveFacts(FactInput{
		RelationalOrders:    relational.Orders,
		SpreadsheetOrders:   spreadsheet.Orders,
		RelationalCustomers: relational.Customers,
		RelationalEmployees: relational.Employees,
		Customers:           w.Customers,
		Employees:           w.Employees,
		Calendar:            w.Calendar,
	})
	return w
}

// Outputs renders the four tables under the configured file names
func (w *Warehouse) Outputs(names config.OutputConfig) []Output {
	return []Output{
		{Table: CustomersTable(w.Customers), File: names.Customers},
		{Table: EmployeesTable(w.Employees), File: names.Employees},
		{Table: DatesTable(w.Calendar), File: names.Dates},
		{Table: FactsTable(w.Facts), File: names.Facts},
	}
}

// Builder runs a complete build: load, adapt, assemble, publish and
// optionally load into a SQL warehouse.
type Builder struct {
	cfg    *config.Config
	logger *observability.Logger
	now    func() time.Time
	loader TableLoader
}

// NewBuilder creates a builder for cfg
func NewBuilder(cfg *config.Config, logger *observability.Logger) *Builder {
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	return &Builder{cfg: cfg, logger: logger, now: time.Now}
}

// WithClock replaces time.Now
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// WithLoader sets the SQL warehouse loader run after publishing
func (b *Builder) WithLoader(l TableLoader) *Builder {
	b.loader = l
	return b
}

func location(sc config.SourceConfig) source.Location {
	files := map[source.Entity]string{}
	for e, f := range map[source.Entity]string{
		source.Customers: sc.Customers,
		source.Employees: sc.Employees,
		source.Orders:    sc.Orders,
	} {
		if f != "" {
			files[e] = f
		}
	}
	return source.Location{Dir: sc.Dir, Files: files}
}

// Build runs the pipeline. The report is returned whenever tables were
// published, even if the warehouse load afterwards failed.
func (b *Builder) Build(ctx context.Context) (*Report, error) {
	report := &Report{
		RunID:     uuid.NewString(),
		StartedAt: b.now(),
	}
	log := b.logger.WithField("run_id", report.RunID)
	log.InfoWithFields("Build started", map[string]interface{}{
		"relational_dir":  b.cfg.Sources.Relational.Dir,
		"spreadsheet_dir": b.cfg.Sources.Spreadsheet.Dir,
		"output_dir":      b.cfg.Output.Dir,
	})

	var adapted [2]SourceRecords
	for i, sc := range []struct {
		provenance source.Provenance
		cfg        config.SourceConfig
	}{
		{source.Relational, b.cfg.Sources.Relational},
		{source.Spreadsheet, b.cfg.Sources.Spreadsheet},
	} {
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "Build cancelled")
		}

		loaded, err := source.Load(sc.provenance, location(sc.cfg))
		if err != nil {
			log.ErrorWithFields("Extract unreadable", map[string]interface{}{
				"source": string(sc.provenance),
				"error":  err.Error(),
			})
			return nil, err
		}
		report.Inputs = append(report.Inputs, b.summarize(log, loaded)...)
		adapted[i] = Adapt(loaded)
	}

	w := Assemble(adapted[0], adapted[1], b.now())
	b.fill(log, report, w, adapted)
	b.logOutcome(log, report)

	outputs := w.Outputs(b.cfg.Output)
	published, err := NewPublisher(b.cfg.Output.Dir, log).Publish(ctx, outputs)
	if err != nil {
		log.ErrorWithFields("Publish failed", map[string]interface{}{"error": err.Error()})
		return nil, err
	}
	report.Published = published

	if b.loader != nil {
		tables := make([]*table.Table, len(outputs))
		for i, o := range outputs {
			tables[i] = o.Table
		}
		if err := b.loader.LoadTables(ctx, tables); err != nil {
			report.FinishedAt = b.now()
			log.ErrorWithFields("Warehouse load failed", map[string]interface{}{"error": err.Error()})
			return report, err
		}
		report.Loaded = true
	}

	report.FinishedAt = b.now()
	log.InfoWithFields("Build finished", map[string]interface{}{
		"facts":       report.Facts,
		"duration_ms": report.Duration().Milliseconds(),
	})
	return report, nil
}

func (b *Builder) summarize(log *observability.Logger, loaded *source.Loaded) []InputSummary {
	for _, missing := range loaded.Missing {
		log.WarnWithFields(missing.Message, missing.Context)
	}

	out := make([]InputSummary, 0, len(source.Entities))
	for _, e := range source.Entities {
		ex := loaded.Extracts[e]
		s := InputSummary{
			Source:  string(loaded.Provenance),
			Entity:  string(e),
			Path:    ex.Path,
			Rows:    ex.Table.Len(),
			Missing: ex.Path == "",
			Repairs: len(ex.Repairs),
		}
		s.Encoding = ex.Encoding
		for _, r := range ex.Repairs {
			log.WarnWithFields("Extract row repaired", map[string]interface{}{
				"path":    ex.Path,
				"row":     r.Row,
				"problem": r.Message,
			})
		}
		if !s.Missing {
			log.DebugWithFields("Extract loaded", map[string]interface{}{
				"source":   s.Source,
				"entity":   s.Entity,
				"path":     s.Path,
				"encoding": s.Encoding,
				"rows":     s.Rows,
			})
		}
		out = append(out, s)
	}
	return out
}

func (b *Builder) fill(log *observability.Logger, report *Report, w *Warehouse, adapted [2]SourceRecords) {
	report.Customers = DimensionSummary{
		Rows:               w.Customers.Len(),
		Duplicates:         w.Customers.Duplicates,
		AttributeConflicts: len(w.Customers.Conflicts),
	}
	report.Employees = DimensionSummary{
		Rows:               w.Employees.Len(),
		Duplicates:         w.Employees.Duplicates,
		AttributeConflicts: len(w.Employees.Conflicts),
	}
	report.CalendarStart = w.Calendar.Start()
	report.CalendarEnd = w.Calendar.End()
	report.CalendarDays = w.Calendar.Len()
	report.CalendarFallback = w.Calendar.Fallback
	report.Facts = len(w.Facts)
	report.Resolution = w.Stats

	var stats source.OrderStats
	for _, a := range adapted {
		stats.Add(a.OrderStats)
	}
	report.UnparsableDates = stats.UnparsableDates
	report.UnparsableAmounts = stats.UnparsableAmount

	for _, c := range w.Customers.Conflicts {
		log.DebugWithFields("Customer attributes differ across sources", map[string]interface{}{
			"company_norm": c.Norm,
			"kept_id":      c.KeptID,
			"dropped_id":   c.DroppedID,
		})
	}
	for _, c := range w.Employees.Conflicts {
		log.DebugWithFields("Employee attributes differ across sources", map[string]interface{}{
			"emp_norm":   c.Norm,
			"kept_id":    c.KeptID,
			"dropped_id": c.DroppedID,
		})
	}
}

func (b *Builder) logOutcome(log *observability.Logger, r *Report) {
	if r.UnparsableDates > 0 {
		log.WarnWithFields("Unparsable dates stored as null", map[string]interface{}{
			"code":  string(errors.ErrCodeUnparsableDate),
			"count": r.UnparsableDates,
		})
	}
	if unresolved := r.Resolution.Customers.Unresolved + r.Resolution.Employees.Unresolved; unresolved > 0 {
		log.WarnWithFields("Unresolved references stored as null keys", map[string]interface{}{
			"code":      string(errors.ErrCodeUnresolvedReference),
			"customers": r.Resolution.Customers.Unresolved,
			"employees": r.Resolution.Employees.Unresolved,
		})
	}
	if r.AttributeConflicts() > 0 {
		log.WarnWithFields("Deduplicated rows disagreed on attributes; kept the preferred source", map[string]interface{}{
			"customers": r.Customers.AttributeConflicts,
			"employees": r.Employees.AttributeConflicts,
		})
	}
	if r.CalendarFallback {
		log.Warnf("No order dates found; calendar covers %s to %s",
			r.CalendarStart.Format(dateLayout), r.CalendarEnd.Format(dateLayout))
	}
	if r.Facts == 0 {
		log.Warn("Fact table is empty")
	}
	log.InfoWithFields("Warehouse assembled", map[string]interface{}{
		"customers": r.Customers.Rows,
		"employees": r.Employees.Rows,
		"days":      r.CalendarDays,
		"facts":     r.Facts,
	})
}
