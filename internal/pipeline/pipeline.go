// Package pipeline runs one harvesting pass: search, confirm, then fetch,
// normalize and store every identifier not seen before.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ravexina/NCBI-fasta-extractor/internal/logger"
	"github.com/ravexina/NCBI-fasta-extractor/internal/metrics"
	"github.com/ravexina/NCBI-fasta-extractor/internal/models"
	"github.com/ravexina/NCBI-fasta-extractor/internal/seqstore"
)

var (
	// ErrNoResults is returned when the search matched nothing.
	ErrNoResults = errors.New("query returned no results")
	// ErrSearch is returned when the search call failed.
	ErrSearch = errors.New("search failed")
	// ErrStorage is returned when the dataset or identifier set could not be written.
	ErrStorage = errors.New("storage failure")
	// ErrInterrupted is returned when the context was cancelled mid-run.
	ErrInterrupted = errors.New("run interrupted")
)

// Searcher runs the search call.
type Searcher interface {
	Search(ctx context.Context, term string, maxResults int) (models.SearchResult, error)
}

// RecordFetcher returns a record or false when it is not available right now.
type RecordFetcher interface {
	Fetch(ctx context.Context, id int64) (*models.RawRecord, bool)
}

// SequenceFetcher returns a FASTA payload or false.
type SequenceFetcher interface {
	Fetch(ctx context.Context, id int64) ([]byte, bool)
}

// Normalizer resolves the dataset fields of a record.
type Normalizer interface {
	Normalize(rec *models.RawRecord) (models.NormalizedRecord, error)
}

// Gate is the set of already processed identifiers. It must be loaded.
type Gate interface {
	Contains(id int64) bool
	MarkProcessed(id int64)
	Overlap(ids []int64) int
	Len() int
	Save(ctx context.Context) error
}

// Dataset receives each new record.
type Dataset interface {
	Append(ctx context.Context, rec models.NormalizedRecord) error
}

// SequenceStore saves downloaded payloads.
type SequenceStore interface {
	Put(ctx context.Context, name string, payload []byte) error
}

// Confirmer asks the operator whether to start fetching.
type Confirmer interface {
	Confirm(ctx context.Context, count, overlap int) (bool, error)
}

// Metrics receives per-identifier outcomes.
type Metrics interface {
	RecordOutcome(outcome string)
	SequenceOutcome(outcome string)
	SetKnown(n int)
}

// Deps wires a pipeline. Logger and Metrics are optional.
type Deps struct {
	Searcher   Searcher
	Records    RecordFetcher
	Sequences  SequenceFetcher
	Normalizer Normalizer
	Gate       Gate
	Dataset    Dataset
	Store      SequenceStore
	Confirmer  Confirmer
	Metrics    Metrics
	Logger     *logger.Logger
}

// Settings holds the run parameters.
type Settings struct {
	Database     string
	MaxResults   int
	FailurePause time.Duration
}

// Pipeline is a single-threaded ingestion run.
type Pipeline struct {
	Deps
	settings Settings
	sleep    func(ctx context.Context, d time.Duration) error
}

// New creates a pipeline.
func New(deps Deps, settings Settings) *Pipeline {
	if deps.Logger == nil {
		deps.Logger = logger.Discard()
	}

	if deps.Metrics == nil {
		deps.Metrics = (*metrics.Recorder)(nil)
	}

	return &Pipeline{Deps: deps, settings: settings, sleep: sleepContext}
}

// Run executes one pass for term. The returned report is never nil.
//
// Once fetching has started the identifier set is saved on every exit path,
// including cancellation of ctx and dataset failures.
func (p *Pipeline) Run(ctx context.Context, term string) (report *Report, err error) {
	start := time.Now()
	report = &Report{State: StateQuerying}

	defer func() { report.Duration = time.Since(start) }()

	p.Logger.Info("Searching", "term", term, "db", p.settings.Database)

	res, err := p.Searcher.Search(ctx, term, p.settings.MaxResults)
	if err != nil {
		if ctx.Err() != nil {
			report.State = StateInterrupted

			return report, fmt.Errorf("%w: %w", ErrInterrupted, err)
		}

		return report, fmt.Errorf("%w: %w", ErrSearch, err)
	}

	report.Query = models.NewRunQuery(term, p.settings.Database, p.settings.MaxResults, res)
	report.State = StateConfirming

	if res.Count == 0 {
		report.State = StateNoResults

		return report, ErrNoResults
	}

	report.Known = p.Gate.Overlap(report.Query.IDs)

	ok, err := p.Confirmer.Confirm(ctx, res.Count, report.Known)
	if err != nil {
		if ctx.Err() != nil {
			report.State = StateInterrupted

			return report, fmt.Errorf("%w: %w", ErrInterrupted, err)
		}

		return report, fmt.Errorf("failed to confirm: %w", err)
	}

	if !ok {
		report.State = StateDeclined
		p.Logger.Info("Declined by operator")

		return report, nil
	}

	report.State = StateRunning
	runErr := p.process(ctx, report)

	report.State = StateFinalizing

	// The save must survive the cancellation that may have ended the loop.
	if saveErr := p.Gate.Save(context.WithoutCancel(ctx)); saveErr != nil {
		runErr = errors.Join(runErr, fmt.Errorf("%w: %w", ErrStorage, saveErr))
	}

	p.Metrics.SetKnown(p.Gate.Len())

	if errors.Is(runErr, ErrInterrupted) {
		report.State = StateInterrupted
	} else {
		report.State = StateDone
	}

	return report, runErr
}

func (p *Pipeline) process(ctx context.Context, report *Report) error {
	ids := report.Query.IDs
	stats := &report.Stats

	for i, id := range ids {
		if err := ctx.Err(); err != nil {
			return interrupted(i, len(ids), err)
		}

		stats.Visited++

		if p.Gate.Contains(id) {
			stats.Skipped++
			p.Metrics.RecordOutcome(metrics.OutcomeSkipped)
			p.Logger.Debug("Already known, skipping", "id", id)

			continue
		}

		p.Logger.Info("Fetching", "id", id, "position", i+1, "total", len(ids))

		raw, ok := p.Records.Fetch(ctx, id)
		if !ok {
			if err := ctx.Err(); err != nil {
				return interrupted(i, len(ids), err)
			}

			stats.Unavailable++
			p.Metrics.RecordOutcome(metrics.OutcomeUnavailable)
			p.Logger.Warn("Record not available, will retry on a later run", "id", id)

			if err := p.sleep(ctx, p.settings.FailurePause); err != nil {
				return interrupted(i+1, len(ids), err)
			}

			continue
		}

		rec, err := p.Normalizer.Normalize(raw)
		if err != nil {
			stats.Invalid++
			p.Metrics.RecordOutcome(metrics.OutcomeInvalid)
			p.Logger.Warn("Record rejected", "id", id, "error", err)

			continue
		}

		if err := p.Dataset.Append(ctx, rec); err != nil {
			return fmt.Errorf("%w: failed to append %s: %w", ErrStorage, rec.Key, err)
		}

		stats.Appended++
		p.Metrics.RecordOutcome(metrics.OutcomeAppended)

		p.storeSequence(ctx, id, rec, stats)

		p.Gate.MarkProcessed(id)
	}

	return nil
}

// storeSequence is best effort: failures are counted and logged only.
func (p *Pipeline) storeSequence(ctx context.Context, id int64, rec models.NormalizedRecord, stats *Stats) {
	payload, ok := p.Sequences.Fetch(ctx, id)
	if !ok {
		stats.SequencesFailed++
		p.Metrics.SequenceOutcome(metrics.OutcomeFailed)

		return
	}

	name := seqstore.FileName(rec)
	if err := p.Store.Put(ctx, name, payload); err != nil {
		stats.SequencesFailed++
		p.Metrics.SequenceOutcome(metrics.OutcomeFailed)
		p.Logger.Warn("Failed to save sequence", "id", id, "name", name, "error", err)

		return
	}

	stats.SequencesSaved++
	p.Metrics.SequenceOutcome(metrics.OutcomeSaved)
	p.Logger.Info("Saved sequence", "id", id, "key", rec.Key, "name", name)
}

func interrupted(done, total int, cause error) error {
	return fmt.Errorf("%w after %d of %d identifiers: %w", ErrInterrupted, done, total, cause)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
