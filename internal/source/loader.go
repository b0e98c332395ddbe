package source

import (
	"os"
	"path/filepath"
	"strings"

	"dwbuild/internal/table"
	"dwbuild/pkg/errors"
)

// Location tells the loader where one source's extracts live. Files overrides
// discovery for an entity; relative overrides are taken from Dir.
type Location struct {
	Dir   string
	Files map[Entity]string
}

// Extract is one loaded raw file
type Extract struct {
	Entity   Entity
	Path     string
	Encoding string
	Table    *table.Table
	Repairs  []table.Warning
}

// Loaded holds every extract of one source. Missing extracts are present as
// empty tables and listed in Missing.
type Loaded struct {
	Provenance Provenance
	Extracts   map[Entity]*Extract
	Missing    []*errors.AppError
}

// Table returns the extract table for e; never nil.
func (l *Loaded) Table(e Entity) *table.Table {
	if ex, ok := l.Extracts[e]; ok && ex.Table != nil {
		return ex.Table
	}
	return table.New(string(e))
}

// candidateFiles are matched case-insensitively against the directory listing.
var candidateFiles = map[Provenance]map[Entity][]string{
	Relational: {
		Customers: {"Customers.csv"},
		Employees: {"Employees.csv"},
		Orders:    {"Orders.csv"},
	},
	Spreadsheet: {
		Customers: {"customers.csv", "customers_excel.csv"},
		Employees: {"employees.csv", "employees_excel.csv"},
		Orders:    {"orders.csv", "orders_excel.csv"},
	},
}

// Load reads the three extracts of a source. An absent directory or file is a
// MissingSource warning; a file that exists but cannot be parsed is fatal.
func Load(p Provenance, loc Location) (*Loaded, error) {
	loaded := &Loaded{
		Provenance: p,
		Extracts:   make(map[Entity]*Extract, len(Entities)),
	}

	listing := listDir(loc.Dir)

	for _, e := range Entities {
		path := resolvePath(loc, e, listing, candidateFiles[p][e])
		if path == "" || !isFile(path) {
			where := path
			if where == "" {
				where = loc.Dir
			}
			loaded.Missing = append(loaded.Missing, errors.MissingSourceError(string(p), string(e), where))
			loaded.Extracts[e] = &Extract{Entity: e, Table: table.New(string(e))}
			continue
		}

		res, err := table.ReadFile(path)
		if err != nil {
			return nil, errors.CorruptSourceError(path, err).
				WithContext("source", string(p)).
				WithContext("entity", string(e))
		}
		res.Table.Name = string(e)
		loaded.Extracts[e] = &Extract{
			Entity:   e,
			Path:     path,
			Encoding: res.Encoding,
			Table:    res.Table,
			Repairs:  res.Warnings,
		}
	}

	return loaded, nil
}

// listDir maps lower-cased file names to their real names. A missing or
// unreadable directory lists nothing.
func listDir(dir string) map[string]string {
	files := make(map[string]string)
	if dir == "" {
		return files
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return files
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		key := strings.ToLower(entry.Name())
		if _, seen := files[key]; !seen {
			files[key] = entry.Name()
		}
	}
	return files
}

func resolvePath(loc Location, e Entity, listing map[string]string, candidates []string) string {
	if override := loc.Files[e]; override != "" {
		if filepath.IsAbs(override) || loc.Dir == "" {
			return filepath.Clean(override)
		}
		return filepath.Join(loc.Dir, override)
	}
	for _, c := range candidates {
		if name, ok := listing[strings.ToLower(c)]; ok {
			return filepath.Join(loc.Dir, name)
		}
	}
	return ""
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
