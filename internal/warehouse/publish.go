package warehouse

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"dwbuild/internal/common"
	"dwbuild/internal/observability"
	"dwbuild/internal/table"
	"dwbuild/pkg/errors"
)

// Output pairs a table with the file name it is published under
type Output struct {
	Table *table.Table
	File  string
}

// Published describes a table that reached its final path
type Published struct {
	Table string `json:"table"`
	Path  string `json:"path"`
	Rows  int    `json:"rows"`
}

// Publisher writes tables into an output directory. Every table is first
// written to a staging directory inside it; nothing is renamed into place
// until all of them were written, so a failed run leaves the previous
// tables untouched.
type Publisher struct {
	dir    string
	logger *observability.Logger
}

// NewPublisher creates a publisher for dir
func NewPublisher(dir string, logger *observability.Logger) *Publisher {
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	return &Publisher{dir: dir, logger: logger}
}

// Publish stages and then renames every output
func (p *Publisher) Publish(ctx context.Context, outputs []Output) ([]Published, error) {
	if err := common.EnsureDir(p.dir); err != nil {
		return nil, errors.PublishError(p.dir, err)
	}

	targets := make([]string, len(outputs))
	for i, out := range outputs {
		target, err := common.JoinPath(p.dir, out.File)
		if err != nil {
			return nil, errors.PublishError(out.Table.Name, err).WithContext("file", out.File)
		}
		targets[i] = target
	}

	staging, err := os.MkdirTemp(p.dir, ".staging-")
	if err != nil {
		return nil, errors.PublishError(p.dir, err)
	}
	defer os.RemoveAll(staging)

	staged := make([]string, len(outputs))
	for i, out := range outputs {
		if err := ctx.Err(); err != nil {
			return nil, errors.PublishError(out.Table.Name, err)
		}
		staged[i] = filepath.Join(staging, fmt.Sprintf("%02d-%s", i, filepath.Base(targets[i])))
		if err := writeTable(staged[i], out.Table); err != nil {
			return nil, errors.PublishError(out.Table.Name, err).WithContext("path", staged[i])
		}
	}

	published := make([]Published, 0, len(outputs))
	for i, out := range outputs {
		if err := common.EnsureDir(filepath.Dir(targets[i])); err != nil {
			return published, errors.PublishError(out.Table.Name, err)
		}
		if err := os.Rename(staged[i], targets[i]); err != nil {
			return published, errors.PublishError(out.Table.Name, err).WithContext("path", targets[i])
		}
		published = append(published, Published{
			Table: out.Table.Name,
			Path:  targets[i],
			Rows:  out.Table.Len(),
		})
		p.logger.DebugWithFields("Table published", map[string]interface{}{
			"table": out.Table.Name,
			"path":  targets[i],
			"rows":  out.Table.Len(),
		})
	}

	return published, nil
}

func writeTable(path string, t *table.Table) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, common.FilePermissionNormal) // #nosec G304 - staging path
	if err != nil {
		return err
	}
	if err := table.Write(f, t); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
