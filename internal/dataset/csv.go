// Package dataset appends normalized records to the durable CSV table and,
// optionally, mirrors them into Postgres.
package dataset

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/ravexina/NCBI-fasta-extractor/internal/models"
)

// Sink receives each normalized record exactly once.
type Sink interface {
	Append(ctx context.Context, rec models.NormalizedRecord) error
}

// CSVTable is the append-only dataset file.
type CSVTable struct {
	path string
}

// NewCSVTable creates a table backed by path.
func NewCSVTable(path string) *CSVTable {
	return &CSVTable{path: path}
}

// Path returns the file location.
func (t *CSVTable) Path() string {
	return t.path
}

// EnsureHeader creates the file with the header row when it does not exist
// or is empty. It reports whether the header was written.
func (t *CSVTable) EnsureHeader() (bool, error) {
	info, err := os.Stat(t.path)

	switch {
	case err == nil && info.Size() > 0:
		return false, nil
	case err != nil && !errors.Is(err, fs.ErrNotExist):
		return false, fmt.Errorf("failed to stat dataset: %w", err)
	}

	if dir := filepath.Dir(t.path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return false, fmt.Errorf("failed to create dataset directory: %w", err)
		}
	}

	if err := t.writeRow(os.O_CREATE|os.O_WRONLY|os.O_APPEND, models.Columns); err != nil {
		return false, err
	}

	return true, nil
}

// Append writes one row. The file is opened in append mode, the row is
// flushed and synced, and the file is closed again.
func (t *CSVTable) Append(_ context.Context, rec models.NormalizedRecord) error {
	return t.writeRow(os.O_WRONLY|os.O_APPEND, rec.Row())
}

func (t *CSVTable) writeRow(flag int, row []string) (retErr error) {
	f, err := os.OpenFile(t.path, flag, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open dataset: %w", err)
	}

	defer func() {
		if err := f.Close(); err != nil && retErr == nil {
			retErr = fmt.Errorf("failed to close dataset: %w", err)
		}
	}()

	w := csv.NewWriter(f)
	if err := w.Write(row); err != nil {
		return fmt.Errorf("failed to write row: %w", err)
	}

	w.Flush()

	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to flush row: %w", err)
	}

	if err := f.Sync(); err != nil {
		return fmt.Errorf("failed to sync dataset: %w", err)
	}

	return nil
}
