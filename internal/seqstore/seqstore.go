// Package seqstore persists downloaded FASTA payloads, either in a local
// directory or in an S3-compatible bucket.
package seqstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ravexina/NCBI-fasta-extractor/internal/config"
	"github.com/ravexina/NCBI-fasta-extractor/internal/models"
)

// Extension is appended to every stored sequence name.
const Extension = ".fasta"

var (
	ErrUnknownDriver = errors.New("unknown sequence store driver")
	ErrEmptyName     = errors.New("sequence name is empty")
	ErrEmptyPayload  = errors.New("sequence payload is empty")
)

// Store saves one named payload.
type Store interface {
	Put(ctx context.Context, name string, payload []byte) error
}

// FileName derives "<key> <country> <year>.fasta" from a normalized record.
// Path separators are replaced so the name never escapes the store root.
func FileName(rec models.NormalizedRecord) string {
	name := fmt.Sprintf("%s %s %s%s", rec.Key, rec.Country, rec.Year, Extension)

	return strings.NewReplacer("/", "_", `\`, "_").Replace(name)
}

// Open builds the store selected by cfg.Driver.
func Open(ctx context.Context, cfg config.SequencesConfig) (Store, error) {
	switch cfg.Driver {
	case "", config.SequenceDriverFS:
		return NewDirStore(cfg.Dir), nil
	case config.SequenceDriverS3:
		return NewS3Store(ctx, cfg.S3)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
	}
}

// DirStore writes payloads as files in one directory.
type DirStore struct {
	dir string
}

// NewDirStore returns a store rooted at dir. The directory is created on the
// first Put.
func NewDirStore(dir string) *DirStore {
	return &DirStore{dir: dir}
}

// Dir returns the root directory.
func (s *DirStore) Dir() string {
	return s.dir
}

// Put writes payload to dir/name through a temporary file and a rename, so a
// reader never sees a partial sequence.
func (s *DirStore) Put(_ context.Context, name string, payload []byte) (retErr error) {
	if err := checkPut(name, payload); err != nil {
		return err
	}

	if err := os.MkdirAll(s.dir, 0o750); err != nil {
		return fmt.Errorf("failed to create sequence directory: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, ".seq-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}

	defer func() {
		if retErr != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err := tmp.Write(payload); err != nil {
		_ = tmp.Close()

		return fmt.Errorf("failed to write %s: %w", name, err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", name, err)
	}

	if err := os.Rename(tmp.Name(), filepath.Join(s.dir, name)); err != nil {
		return fmt.Errorf("failed to move %s into place: %w", name, err)
	}

	return nil
}

func checkPut(name string, payload []byte) error {
	if strings.TrimSpace(name) == "" {
		return ErrEmptyName
	}

	if len(payload) == 0 {
		return fmt.Errorf("%w: %s", ErrEmptyPayload, name)
	}

	return nil
}
