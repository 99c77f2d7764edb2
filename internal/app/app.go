// Package app wires configuration, stores and remote clients into a
// ready-to-run ingestion pipeline.
package app

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/ravexina/NCBI-fasta-extractor/internal/config"
	"github.com/ravexina/NCBI-fasta-extractor/internal/console"
	"github.com/ravexina/NCBI-fasta-extractor/internal/dataset"
	"github.com/ravexina/NCBI-fasta-extractor/internal/entrez"
	"github.com/ravexina/NCBI-fasta-extractor/internal/fetcher"
	"github.com/ravexina/NCBI-fasta-extractor/internal/gate"
	"github.com/ravexina/NCBI-fasta-extractor/internal/logger"
	"github.com/ravexina/NCBI-fasta-extractor/internal/metrics"
	"github.com/ravexina/NCBI-fasta-extractor/internal/normalizer"
	"github.com/ravexina/NCBI-fasta-extractor/internal/pipeline"
	"github.com/ravexina/NCBI-fasta-extractor/internal/seqstore"
)

// Options carries the process-level collaborators.
type Options struct {
	Stdin      io.Reader
	Stdout     io.Writer
	AssumeYes  bool
	Logger     *logger.Logger
	Metrics    *metrics.Recorder
	HTTPClient *http.Client
}

// App owns every resource of one run.
type App struct {
	logger   *logger.Logger
	out      io.Writer
	gate     *gate.Gate
	mirror   *dataset.PostgresMirror
	attempts *fetcher.AttemptLog
	pipeline *pipeline.Pipeline
}

// New opens the stores and builds the pipeline. The identifier set is
// loaded here, so a corrupt store fails before anything is fetched.
func New(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	l := opts.Logger
	if l == nil {
		l = logger.Discard()
	}

	out := opts.Stdout
	if out == nil {
		out = io.Discard
	}

	g, err := gate.Open(cfg.Storage.IDs, l)
	if err != nil {
		return nil, fmt.Errorf("failed to open identifier store: %w", err)
	}

	a := &App{logger: l, out: out, gate: g}

	if _, err := g.Load(ctx); err != nil {
		_ = a.Close()

		return nil, err
	}

	table := dataset.NewCSVTable(cfg.Storage.DatasetPath)

	created, err := table.EnsureHeader()
	if err != nil {
		_ = a.Close()

		return nil, err
	}

	if created {
		l.Info("Created dataset file", "path", table.Path())
	}

	var sink dataset.Sink = table

	if cfg.Storage.Postgres.DSN != "" {
		mirror, err := dataset.OpenPostgresMirror(ctx, cfg.Storage.Postgres)
		if err != nil {
			l.Warn("Postgres mirror disabled", "error", err)
		} else {
			a.mirror = mirror
			sink = dataset.NewMirrored(table, mirror, l)
		}
	}

	store, err := seqstore.Open(ctx, cfg.Storage.Sequences)
	if err != nil {
		_ = a.Close()

		return nil, fmt.Errorf("failed to open sequence store: %w", err)
	}

	clientOpts := []entrez.Option{entrez.WithLogger(l)}
	if opts.HTTPClient != nil {
		clientOpts = append(clientOpts, entrez.WithHTTPClient(opts.HTTPClient))
	}

	client := entrez.NewClient(cfg.Entrez, cfg.Fetch.SearchRetry, clientOpts...)

	a.attempts = fetcher.NewAttemptLog()
	fetchOpts := []fetcher.Option{
		fetcher.WithAttemptLog(a.attempts),
		fetcher.WithLogger(l),
		fetcher.WithObserver(opts.Metrics),
	}

	in := opts.Stdin
	if in == nil {
		in = strings.NewReader("")
	}

	prompt := console.NewPrompt(in, out)
	if opts.AssumeYes {
		prompt.AssumeYes()
	}

	opts.Metrics.SetKnown(g.Len())

	a.pipeline = pipeline.New(pipeline.Deps{
		Searcher:   client,
		Records:    fetcher.NewRecordFetcher(client, cfg.Fetch.FetchTimeout(), fetchOpts...),
		Sequences:  fetcher.NewSequenceFetcher(client, cfg.Fetch.SequenceTimeout(), fetchOpts...),
		Normalizer: normalizer.NewProcessor(),
		Gate:       g,
		Dataset:    sink,
		Store:      store,
		Confirmer:  prompt,
		Metrics:    opts.Metrics,
		Logger:     l,
	}, pipeline.Settings{
		Database:     cfg.Entrez.Database,
		MaxResults:   cfg.Entrez.MaxResults,
		FailurePause: cfg.Fetch.FailurePause(),
	})

	return a, nil
}

// Run executes one pass for term.
func (a *App) Run(ctx context.Context, term string) (*pipeline.Report, error) {
	return a.pipeline.Run(ctx, term)
}

// Attempts returns the shared fetch attempt log.
func (a *App) Attempts() *fetcher.AttemptLog {
	return a.attempts
}

// PrintSummary writes the run summary and, when there were failures, the
// failed attempts table.
func (a *App) PrintSummary(report *pipeline.Report) {
	fmt.Fprintln(a.out)

	if _, err := report.Table().WriteTo(a.out); err != nil {
		a.logger.Warn("Failed to print summary", "error", err)
	}

	a.attempts.LogSummary(a.logger)

	failures := a.attempts.FailureTable()
	if failures.Len() == 0 {
		return
	}

	fmt.Fprintf(a.out, "\n%d failed fetch attempt(s):\n", failures.Len())

	if _, err := failures.WriteTo(a.out); err != nil {
		a.logger.Warn("Failed to print attempt table", "error", err)
	}
}

// Close releases the stores.
func (a *App) Close() error {
	if a.mirror != nil {
		a.mirror.Close()
	}

	if a.gate == nil {
		return nil
	}

	return a.gate.Close()
}
