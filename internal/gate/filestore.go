package gate

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ravexina/NCBI-fasta-extractor/pkg/metadata"
)

// FormatVersion is the identifier file format written by FileStore.
const FormatVersion = "1"

// FileStore keeps the set in a signed text file with one identifier per line.
type FileStore struct {
	path string
	now  func() time.Time
}

// NewFileStore creates a store backed by path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path, now: time.Now}
}

// Path returns the file location.
func (s *FileStore) Path() string {
	return s.path
}

// Load reads the file. A missing file is an empty set; anything unparsable
// wraps ErrCorrupt.
func (s *FileStore) Load(_ context.Context) (Set, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return NewSet(), nil
	}

	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCorrupt, s.path, err)
	}

	set, err := Decode(string(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCorrupt, s.path, err)
	}

	return set, nil
}

// Save writes the set to a temp file next to the target, syncs it and renames
// it over the target.
func (s *FileStore) Save(_ context.Context, set Set) (retErr error) {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}

	defer func() {
		if retErr != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err := tmp.WriteString(Encode(set, s.now())); err != nil {
		return fmt.Errorf("failed to write identifier set: %w", err)
	}

	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("failed to sync identifier set: %w", err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close identifier set: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("failed to replace identifier set: %w", err)
	}

	return nil
}

// Close is a no-op.
func (s *FileStore) Close() error {
	return nil
}

// Encode renders set in the signed text format, identifiers ascending.
func Encode(set Set, now time.Time) string {
	var b strings.Builder
	for _, id := range set.Sorted() {
		b.WriteString(strconv.FormatInt(id, 10))
		b.WriteByte('\n')
	}

	return metadata.Sign(b.String(), FormatVersion, len(set), now)
}

// Decode parses the signed text format.
func Decode(content string) (Set, error) {
	meta, body, err := metadata.Verify(content)
	if err != nil {
		return nil, err
	}

	if meta.Version != FormatVersion {
		return nil, fmt.Errorf("unsupported format version %q", meta.Version)
	}

	set := NewSet()

	lines := strings.Split(body, "\n")
	if n := len(lines); n > 0 && lines[n-1] == "" {
		lines = lines[:n-1]
	}

	for i, line := range lines {
		id, err := strconv.ParseInt(line, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid identifier %q", i+1, line)
		}

		set.Add(id)
	}

	if meta.Count != len(set) {
		return nil, fmt.Errorf("header count %d does not match %d identifiers", meta.Count, len(set))
	}

	return set, nil
}
