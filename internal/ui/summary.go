package ui

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"
	"github.com/olekukonko/tablewriter"

	"dwbuild/internal/warehouse"
)

const maxPathWidth = 48

// RenderReport prints the outcome of a build as a set of tables.
func RenderReport(w io.Writer, r *warehouse.Report) {
	fmt.Fprintf(w, "Run %s finished in %s\n\n", r.RunID, r.Duration().Round(time.Millisecond))

	inputs := newTable(w, "Source", "Entity", "Rows", "Encoding", "Path")
	for _, in := range r.Inputs {
		rows := strconv.Itoa(in.Rows)
		if in.Missing {
			rows = status(color.FgYellow, "missing")
		} else if in.Repairs > 0 {
			rows = fmt.Sprintf("%d (%d repaired)", in.Rows, in.Repairs)
		}
		inputs.Append([]string{in.Source, in.Entity, rows, in.Encoding, shorten(in.Path)})
	}
	inputs.Render()
	fmt.Fprintln(w)

	dims := newTable(w, "Dimension", "Rows", "Duplicates", "Conflicts")
	dims.Append(dimensionRow(warehouse.TableCustomers, r.Customers))
	dims.Append(dimensionRow(warehouse.TableEmployees, r.Employees))
	dims.Render()
	fmt.Fprintln(w)

	calendar := fmt.Sprintf("%s .. %s (%d days)",
		r.CalendarStart.Format("2006-01-02"), r.CalendarEnd.Format("2006-01-02"), r.CalendarDays)
	if r.CalendarFallback {
		calendar += " " + status(color.FgYellow, "fallback window")
	}
	fmt.Fprintf(w, "Calendar: %s\n\n", calendar)

	res := newTable(w, "Reference", "By name", "By source id", "Unresolved")
	res.Append(tierRow("customer", r.Resolution.Customers))
	res.Append(tierRow("employee", r.Resolution.Employees))
	res.Render()
	fmt.Fprintln(w)

	fmt.Fprintf(w, "Facts: %d (%d delivered)\n", r.Facts, r.Resolution.Delivered)
	if n := r.UnparsableDates; n > 0 {
		fmt.Fprintf(w, "Unparsable dates: %s\n", status(color.FgYellow, strconv.Itoa(n)))
	}
	if n := r.UnparsableAmounts; n > 0 {
		fmt.Fprintf(w, "Unparsable freight: %s\n", status(color.FgYellow, strconv.Itoa(n)))
	}
	if n := r.Resolution.DatesOutsideCalendar; n > 0 {
		fmt.Fprintf(w, "Dates outside calendar: %s\n", status(color.FgYellow, strconv.Itoa(n)))
	}

	if len(r.Published) > 0 {
		fmt.Fprintln(w)
		pub := newTable(w, "Table", "Rows", "Path")
		for _, p := range r.Published {
			pub.Append([]string{p.Table, strconv.Itoa(p.Rows), shorten(p.Path)})
		}
		pub.Render()
	}
	if r.Loaded {
		fmt.Fprintf(w, "\n%s\n", status(color.FgGreen, "Loaded into SQL warehouse"))
	}
}

// RenderInspection prints what an existing warehouse directory holds.
func RenderInspection(w io.Writer, ins *warehouse.Inspection) {
	tables := newTable(w, "Table", "Present", "Rows", "Path")
	for _, t := range ins.Tables {
		present := status(color.FgGreen, "yes")
		rows := strconv.Itoa(t.Rows)
		if !t.Present {
			present = status(color.FgRed, "no")
			rows = "-"
		}
		tables.Append([]string{t.Name, present, rows, shorten(t.Path)})
	}
	tables.Render()

	fmt.Fprintf(w, "\nFacts: %d (%d delivered)\n", ins.Facts, ins.Delivered)
	fmt.Fprintf(w, "Null customer keys: %d\n", ins.NullCustomerKeys)
	fmt.Fprintf(w, "Null employee keys: %d\n", ins.NullEmployeeKeys)
	fmt.Fprintf(w, "Null order date keys: %d\n", ins.NullOrderDateKey)
}

func newTable(w io.Writer, header ...string) *tablewriter.Table {
	t := tablewriter.NewWriter(w)
	t.SetHeader(header)
	t.SetBorder(false)
	t.SetAutoWrapText(false)
	t.SetAutoFormatHeaders(false)
	t.SetAlignment(tablewriter.ALIGN_LEFT)
	return t
}

func dimensionRow(name string, d warehouse.DimensionSummary) []string {
	conflicts := strconv.Itoa(d.AttributeConflicts)
	if d.AttributeConflicts > 0 {
		conflicts = status(color.FgYellow, conflicts)
	}
	return []string{name, strconv.Itoa(d.Rows), strconv.Itoa(d.Duplicates), conflicts}
}

func tierRow(name string, c warehouse.TierCounts) []string {
	unresolved := strconv.Itoa(c.Unresolved)
	if c.Unresolved > 0 {
		unresolved = status(color.FgYellow, unresolved)
	}
	return []string{name, strconv.Itoa(c.ByNorm), strconv.Itoa(c.BySourceID), unresolved}
}

func status(attr color.Attribute, text string) string {
	if !supportsColor {
		return text
	}
	return color.New(attr).Sprint(text)
}

// shorten keeps the tail of long paths, measured in display cells.
func shorten(path string) string {
	if runewidth.StringWidth(path) <= maxPathWidth {
		return path
	}
	runes := []rune(path)
	for i := range runes {
		tail := string(runes[i:])
		if runewidth.StringWidth(tail) <= maxPathWidth-3 {
			return "..." + tail
		}
	}
	return runewidth.Truncate(path, maxPathWidth, "...")
}
