package gate

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/ravexina/NCBI-fasta-extractor/internal/config"
	"github.com/ravexina/NCBI-fasta-extractor/internal/logger"
)

// Gate errors.
var (
	ErrCorrupt       = errors.New("identifier store is corrupt or unreadable")
	ErrNotLoaded     = errors.New("identifier set has not been loaded")
	ErrUnknownDriver = errors.New("unknown identifier store driver")
)

// Store persists an identifier set.
type Store interface {
	// Load returns the stored set, or an empty set when nothing was saved yet.
	Load(ctx context.Context) (Set, error)
	// Save replaces the stored set with s.
	Save(ctx context.Context, s Set) error
	io.Closer
}

// Gate is the in-memory view of the processed identifiers. Membership checks
// and marks never touch the store; only Load and Save do.
type Gate struct {
	store  Store
	known  Set
	logger *logger.Logger
}

// New creates a gate over store.
func New(store Store, l *logger.Logger) *Gate {
	return &Gate{store: store, logger: l}
}

// Open builds the store selected in cfg and wraps it in a gate.
func Open(cfg config.IDsConfig, l *logger.Logger) (*Gate, error) {
	var (
		store Store
		err   error
	)

	switch cfg.Driver {
	case config.IDsDriverFile, "":
		store = NewFileStore(cfg.Path)
	case config.IDsDriverSQLite:
		store, err = OpenSQLiteStore(cfg.Path)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
	}

	return New(store, l), nil
}

// Load reads the persisted set and makes it the current state.
func (g *Gate) Load(ctx context.Context) (Set, error) {
	s, err := g.store.Load(ctx)
	if err != nil {
		return nil, err
	}

	g.known = s
	g.logger.Info("Loaded known identifiers", "count", len(s))

	return s.Clone(), nil
}

// Contains reports whether id was already processed.
func (g *Gate) Contains(id int64) bool {
	return g.known.Has(id)
}

// MarkProcessed records id in memory. It is persisted by the next Save.
func (g *Gate) MarkProcessed(id int64) {
	if g.known == nil {
		g.known = NewSet()
	}

	g.known.Add(id)
}

// Overlap counts how many ids are already known.
func (g *Gate) Overlap(ids []int64) int {
	n := 0
	seen := NewSet()

	for _, id := range ids {
		if seen.Has(id) {
			continue
		}

		seen.Add(id)

		if g.known.Has(id) {
			n++
		}
	}

	return n
}

// Snapshot returns a copy of the current in-memory set.
func (g *Gate) Snapshot() Set {
	return g.known.Clone()
}

// Len returns the number of known identifiers.
func (g *Gate) Len() int {
	return len(g.known)
}

// Save persists the full current set. It is safe to call more than once.
func (g *Gate) Save(ctx context.Context) error {
	if g.known == nil {
		return ErrNotLoaded
	}

	if err := g.store.Save(ctx, g.known); err != nil {
		return fmt.Errorf("failed to save identifier set: %w", err)
	}

	g.logger.Info("Saved known identifiers", "count", len(g.known))

	return nil
}

// Close releases the underlying store.
func (g *Gate) Close() error {
	return g.store.Close()
}
