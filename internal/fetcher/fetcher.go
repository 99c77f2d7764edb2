// Package fetcher wraps the remote record and sequence calls with hard
// deadlines and turns every failure into a "not available" answer.
package fetcher

import (
	"context"
	"fmt"
	"time"

	"github.com/ravexina/NCBI-fasta-extractor/internal/fasta"
	"github.com/ravexina/NCBI-fasta-extractor/internal/logger"
	"github.com/ravexina/NCBI-fasta-extractor/internal/models"
	"github.com/ravexina/NCBI-fasta-extractor/pkg/utils"
)

// RecordSource retrieves one structured record.
type RecordSource interface {
	FetchRecord(ctx context.Context, id int64) (*models.RawRecord, error)
}

// SequenceSource retrieves one raw sequence payload.
type SequenceSource interface {
	DownloadSequence(ctx context.Context, id int64) ([]byte, error)
}

// Observer receives the outcome of every attempt.
type Observer interface {
	ObserveFetch(kind string, success bool, duration time.Duration)
}

type common struct {
	attempts *AttemptLog
	logger   *logger.Logger
	observer Observer
	timeout  time.Duration
}

// Option configures a fetcher.
type Option func(*common)

// WithAttemptLog shares an attempt log between fetchers.
func WithAttemptLog(l *AttemptLog) Option {
	return func(c *common) {
		c.attempts = l
	}
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(c *common) {
		c.logger = l
	}
}

// WithObserver reports attempts to o, typically the metrics recorder.
func WithObserver(o Observer) Option {
	return func(c *common) {
		c.observer = o
	}
}

func newCommon(timeout time.Duration, opts []Option) common {
	c := common{
		attempts: NewAttemptLog(),
		logger:   logger.Discard(),
		timeout:  timeout,
	}

	for _, opt := range opts {
		opt(&c)
	}

	return c
}

func (c *common) record(kind string, id int64, err error, d time.Duration) {
	c.attempts.Record(kind, id, err, d)

	if c.observer != nil {
		c.observer.ObserveFetch(kind, err == nil, d)
	}

	if err != nil {
		msg := utils.NewStringHelper().TruncateString(err.Error(), maxErrorLen)
		c.logger.Warn("Fetch failed, skipping", "kind", kind, "id", id, "duration", d, "error", msg)
	}
}

// RecordFetcher fetches records under a hard wall-clock deadline.
type RecordFetcher struct {
	src RecordSource
	common
}

// NewRecordFetcher creates a record fetcher with the given deadline.
func NewRecordFetcher(src RecordSource, timeout time.Duration, opts ...Option) *RecordFetcher {
	return &RecordFetcher{src: src, common: newCommon(timeout, opts)}
}

// Attempts returns the attempt log.
func (f *RecordFetcher) Attempts() *AttemptLog {
	return f.attempts
}

// Fetch returns the record for id, or false when it is not available right
// now: transport or protocol failure, bad status, or deadline exceeded.
// It never retries.
func (f *RecordFetcher) Fetch(ctx context.Context, id int64) (*models.RawRecord, bool) {
	start := time.Now()

	rec, err := withDeadline(ctx, f.timeout, func(ctx context.Context) (*models.RawRecord, error) {
		return f.src.FetchRecord(ctx, id)
	})
	if err == nil && rec == nil {
		err = fmt.Errorf("record %d: empty response", id)
	}

	f.record(KindRecord, id, err, time.Since(start))

	if err != nil {
		return nil, false
	}

	return rec, true
}

// SequenceFetcher downloads FASTA payloads under a (shorter) deadline.
type SequenceFetcher struct {
	src SequenceSource
	common
}

// NewSequenceFetcher creates a sequence fetcher with the given deadline.
func NewSequenceFetcher(src SequenceSource, timeout time.Duration, opts ...Option) *SequenceFetcher {
	return &SequenceFetcher{src: src, common: newCommon(timeout, opts)}
}

// Fetch returns the FASTA payload for id, or false. A payload that is not
// FASTA counts as a failed download.
func (f *SequenceFetcher) Fetch(ctx context.Context, id int64) ([]byte, bool) {
	start := time.Now()

	payload, err := withDeadline(ctx, f.timeout, func(ctx context.Context) ([]byte, error) {
		return f.src.DownloadSequence(ctx, id)
	})
	if err == nil {
		if verr := fasta.Validate(payload); verr != nil {
			err = fmt.Errorf("sequence %d: %w", id, verr)
		}
	}

	f.record(KindSequence, id, err, time.Since(start))

	if err != nil {
		return nil, false
	}

	return payload, true
}

// withDeadline runs call in its own goroutine so the deadline holds even if
// call ignores its context. The deadline is released on every return path.
func withDeadline[T any](ctx context.Context, timeout time.Duration, call func(context.Context) (T, error)) (T, error) {
	if timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	type result struct {
		val T
		err error
	}

	done := make(chan result, 1)

	go func() {
		v, err := call(ctx)
		done <- result{val: v, err: err}
	}()

	select {
	case r := <-done:
		return r.val, r.err
	case <-ctx.Done():
		var zero T

		return zero, ctx.Err()
	}
}
