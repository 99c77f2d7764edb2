// Package main provides the idset tool for inspecting, importing and
// migrating the processed identifier set.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/ravexina/NCBI-fasta-extractor/internal/config"
	"github.com/ravexina/NCBI-fasta-extractor/internal/gate"
	"github.com/ravexina/NCBI-fasta-extractor/internal/logger"
)

var errMissingCopyPath = errors.New("a destination path is required")

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("idset", flag.ContinueOnError)
	fs.SetOutput(stderr)

	configPath := fs.String("config", "", "Path to YAML config (default: extractor.yaml when present)")
	driver := fs.String("driver", "", "Store driver: file or sqlite (overrides config)")
	path := fs.String("path", "", "Store path (overrides config)")
	list := fs.Bool("list", false, "Print every identifier, ascending")
	importPath := fs.String("import", "", "Merge a plain list of identifiers (one per line) into the set")
	copyDriver := fs.String("copy-driver", "", "Copy the set into a store with this driver")
	copyPath := fs.String("copy-path", "", "Copy the set into a store at this path")

	if err := fs.Parse(args); err != nil {
		return 1
	}

	cfg, _, err := config.LoadOrDefault(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error loading config: %v\n", err)

		return 1
	}

	src := cfg.Storage.IDs
	if *driver != "" {
		src.Driver = *driver
	}

	if *path != "" {
		src.Path = *path
	}

	log := logger.New(logger.Options{Writer: stderr, Level: "warn"})

	g, err := gate.Open(src, log)
	if err != nil {
		fmt.Fprintf(stderr, "Error opening store: %v\n", err)

		return 1
	}

	defer func() { _ = g.Close() }()

	set, err := g.Load(ctx)
	if err != nil {
		fmt.Fprintf(stderr, "Error loading identifier set: %v\n", err)

		return 1
	}

	fmt.Fprintf(stdout, "Store: %s %s\n", orDefault(src.Driver, config.IDsDriverFile), src.Path)
	fmt.Fprintf(stdout, "Identifiers: %d\n", len(set))

	if ids := set.Sorted(); len(ids) > 0 {
		fmt.Fprintf(stdout, "Range: %d .. %d\n", ids[0], ids[len(ids)-1])
	}

	if *importPath != "" {
		added, err := importList(ctx, g, *importPath)
		if err != nil {
			fmt.Fprintf(stderr, "Import failed: %v\n", err)

			return 1
		}

		fmt.Fprintf(stdout, "Imported %d new identifier(s), %d total\n", added, g.Len())
	}

	if *copyDriver != "" || *copyPath != "" {
		dst := config.IDsConfig{Driver: orDefault(*copyDriver, src.Driver), Path: *copyPath}
		if err := copyTo(ctx, g, dst, log); err != nil {
			fmt.Fprintf(stderr, "Copy failed: %v\n", err)

			return 1
		}

		fmt.Fprintf(stdout, "Copied %d identifier(s) to %s %s\n", g.Len(), dst.Driver, dst.Path)
	}

	if *list {
		for _, id := range g.Snapshot().Sorted() {
			fmt.Fprintln(stdout, id)
		}
	}

	return 0
}

func importList(ctx context.Context, g *gate.Gate, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open list: %w", err)
	}

	defer func() { _ = f.Close() }()

	incoming, err := gate.ReadList(f)
	if err != nil {
		return 0, err
	}

	added := 0

	for _, id := range incoming.Sorted() {
		if !g.Contains(id) {
			g.MarkProcessed(id)
			added++
		}
	}

	if added == 0 {
		return 0, nil
	}

	return added, g.Save(ctx)
}

func copyTo(ctx context.Context, src *gate.Gate, dst config.IDsConfig, log *logger.Logger) error {
	if dst.Path == "" {
		return errMissingCopyPath
	}

	target, err := gate.Open(dst, log)
	if err != nil {
		return err
	}

	defer func() { _ = target.Close() }()

	// Loading first refuses to overwrite a destination that is corrupt.
	if _, err := target.Load(ctx); err != nil {
		return err
	}

	for _, id := range src.Snapshot().Sorted() {
		target.MarkProcessed(id)
	}

	return target.Save(ctx)
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}

	return v
}
