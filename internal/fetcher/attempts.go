package fetcher

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/ravexina/NCBI-fasta-extractor/internal/formatter"
	"github.com/ravexina/NCBI-fasta-extractor/internal/logger"
	"github.com/ravexina/NCBI-fasta-extractor/pkg/utils"
)

// Attempt kinds.
const (
	KindRecord   = "record"
	KindSequence = "sequence"
)

const maxErrorLen = 120

// AttemptResult records the result of one remote call.
type AttemptResult struct {
	Timestamp time.Time
	Kind      string
	Error     string
	ID        int64
	Duration  time.Duration
	Success   bool
	TimedOut  bool
}

// AttemptLog keeps every attempt made during a run.
type AttemptLog struct {
	now     func() time.Time
	results []AttemptResult
	mu      sync.Mutex
}

// NewAttemptLog creates an empty log.
func NewAttemptLog() *AttemptLog {
	return &AttemptLog{now: time.Now}
}

// Record appends one attempt.
func (l *AttemptLog) Record(kind string, id int64, err error, duration time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	errMsg := ""
	if err != nil {
		errMsg = err.Error()
	}

	l.results = append(l.results, AttemptResult{
		Timestamp: l.now(),
		Kind:      kind,
		ID:        id,
		Error:     errMsg,
		Duration:  duration,
		Success:   err == nil,
		TimedOut:  errors.Is(err, context.DeadlineExceeded),
	})
}

// Results returns a copy of all attempts in order.
func (l *AttemptLog) Results() []AttemptResult {
	l.mu.Lock()
	defer l.mu.Unlock()

	return append([]AttemptResult(nil), l.results...)
}

// Stats returns statistics for one kind of attempt.
func (l *AttemptLog) Stats(kind string) AttemptStats {
	l.mu.Lock()
	defer l.mu.Unlock()

	stats := AttemptStats{Kind: kind}

	for _, r := range l.results {
		if r.Kind != kind {
			continue
		}

		stats.Total++
		stats.TotalDuration += r.Duration

		switch {
		case r.Success:
			stats.Successful++
		case r.TimedOut:
			stats.Failed++
			stats.TimedOut++
		default:
			stats.Failed++
		}
	}

	return stats
}

// AttemptStats contains statistics about fetch attempts.
type AttemptStats struct {
	Kind          string
	Total         int
	Successful    int
	Failed        int
	TimedOut      int
	TotalDuration time.Duration
}

// String returns a string representation of attempt stats.
func (s AttemptStats) String() string {
	return fmt.Sprintf(
		"%s attempts: %d total, %d success, %d failed (%d timed out) in %.2fs",
		s.Kind,
		s.Total,
		s.Successful,
		s.Failed,
		s.TimedOut,
		s.TotalDuration.Seconds(),
	)
}

// FailureTable renders the failed attempts as an aligned table.
func (l *AttemptLog) FailureTable() *formatter.Table {
	t := formatter.NewTable("Kind", "ID", "Duration", "Error")
	trunc := utils.NewStringHelper()

	for _, r := range l.Results() {
		if r.Success {
			continue
		}

		t.AddRow(
			r.Kind,
			strconv.FormatInt(r.ID, 10),
			fmt.Sprintf("%.2fs", r.Duration.Seconds()),
			trunc.TruncateString(trunc.NormalizeWhitespace(r.Error), maxErrorLen),
		)
	}

	return t
}

// LogSummary logs a summary of fetch attempts using the provided logger.
func (l *AttemptLog) LogSummary(lg *logger.Logger) {
	lg.Info("Fetch attempt summary")
	lg.Info(l.Stats(KindRecord).String())
	lg.Info(l.Stats(KindSequence).String())

	for _, r := range l.Results() {
		if r.Success {
			continue
		}

		lg.Debug("Failed attempt", "kind", r.Kind, "id", r.ID, "duration", r.Duration, "error", r.Error)
	}
}
