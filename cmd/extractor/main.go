// Package main provides the extractor command: search NCBI, confirm, then
// harvest every record not seen by a previous run.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ravexina/NCBI-fasta-extractor/internal/app"
	"github.com/ravexina/NCBI-fasta-extractor/internal/config"
	"github.com/ravexina/NCBI-fasta-extractor/internal/logger"
	"github.com/ravexina/NCBI-fasta-extractor/internal/metrics"
	"github.com/ravexina/NCBI-fasta-extractor/internal/pipeline"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGHUP, syscall.SIGTERM, syscall.SIGQUIT)

	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)

	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("extractor", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintln(stderr, "Usage: extractor [flags] <search term>")
		fs.PrintDefaults()
	}

	configPath := fs.String("config", "", "Path to YAML config (default: extractor.yaml when present)")
	db := fs.String("db", "", "Entrez database (overrides config)")
	maxResults := fs.Int("max", 0, "Maximum number of search results (overrides config)")
	assumeYes := fs.Bool("yes", false, "Fetch without asking for confirmation")
	logLevel := fs.String("log-level", "", "Log level: debug, info, warn, error (overrides config)")
	metricsAddr := fs.String("metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :9090")
	showVersion := fs.Bool("version", false, "Print version and exit")
	initConfig := fs.String("init-config", "", "Write the default configuration to this path and exit")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}

		return 1
	}

	if *showVersion {
		fmt.Fprintln(stdout, "extractor", version)

		return 0
	}

	if *initConfig != "" {
		if err := config.Default().SaveConfig(*initConfig); err != nil {
			fmt.Fprintf(stderr, "Error writing config: %v\n", err)

			return 1
		}

		fmt.Fprintln(stdout, "Wrote default configuration to", *initConfig)

		return 0
	}

	term := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if term == "" {
		fmt.Fprintln(stderr, "Define your query!")
		fs.Usage()

		return 1
	}

	cfg, source, err := config.LoadOrDefault(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error loading config: %v\n", err)

		return 1
	}

	cfg.ApplyEnv(os.Getenv)
	applyFlags(cfg, *db, *maxResults, *logLevel, *metricsAddr)

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(stderr, "Invalid configuration: %v\n", err)

		return 1
	}

	log := logger.New(logger.Options{Writer: stderr, Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	if source != "" {
		log.Info("Loaded config", "path", source)
	}

	log.Debug("Configuration", "config", cfg.String())

	rec := metrics.New()

	if cfg.Metrics.Addr != "" {
		metricsCtx, cancel := context.WithCancel(ctx)
		defer cancel()

		go func() {
			if err := rec.Serve(metricsCtx, cfg.Metrics.Addr); err != nil {
				log.Warn("Metrics server stopped", "error", err)
			}
		}()

		log.Info("Serving metrics", "addr", cfg.Metrics.Addr)
	}

	fmt.Fprintln(stdout, "Searching for", term)

	a, err := app.New(ctx, cfg, app.Options{
		Stdin:     stdin,
		Stdout:    stdout,
		AssumeYes: *assumeYes,
		Logger:    log,
		Metrics:   rec,
	})
	if err != nil {
		log.Error("Startup failed", "error", err)

		return 1
	}

	defer func() {
		if err := a.Close(); err != nil {
			log.Warn("Failed to close stores", "error", err)
		}
	}()

	report, err := a.Run(ctx, term)

	switch {
	case errors.Is(err, pipeline.ErrNoResults):
		fmt.Fprintln(stdout, "Your query returned no results. Quitting.")

		return 1
	case report.State == pipeline.StateDeclined:
		fmt.Fprintln(stdout, "Okay... Goodbye!")

		return 0
	}

	if report.State >= pipeline.StateRunning {
		a.PrintSummary(report)
	}

	if errors.Is(err, pipeline.ErrInterrupted) {
		fmt.Fprintln(stdout, "\nQuitting...")
	}

	if err != nil {
		log.Error("Run failed", "error", err)

		return 1
	}

	return 0
}

func applyFlags(cfg *config.Config, db string, maxResults int, logLevel, metricsAddr string) {
	if db != "" {
		cfg.Entrez.Database = db
	}

	if maxResults > 0 {
		cfg.Entrez.MaxResults = maxResults
	}

	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	if metricsAddr != "" {
		cfg.Metrics.Addr = metricsAddr
	}
}
