package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ravexina/NCBI-fasta-extractor/internal/gate"
)

func TestRun_ImportListAndCopy(t *testing.T) {
	dir := t.TempDir()
	idsPath := filepath.Join(dir, "ids")
	listPath := filepath.Join(dir, "list.txt")

	if err := os.WriteFile(idsPath, []byte(gate.Encode(gate.NewSet(5), time.Now())), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(listPath, []byte("# legacy export\n5\n9\n3\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	var stdout, stderr bytes.Buffer

	code := run(context.Background(), []string{
		"-path", idsPath,
		"-import", listPath,
		"-copy-driver", "sqlite",
		"-copy-path", filepath.Join(dir, "ids.db"),
		"-list",
	}, &stdout, &stderr)
	if code != 0 {
		t.Fatalf("exit code %d: %s", code, stderr.String())
	}

	out := stdout.String()
	for _, want := range []string{"Identifiers: 1", "Imported 2 new identifier(s), 3 total", "Copied 3 identifier(s) to sqlite", "3\n5\n9\n"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	store, err := gate.OpenSQLiteStore(filepath.Join(dir, "ids.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = store.Close() }()

	copied, err := store.Load(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if len(copied) != 3 || !copied.Has(9) {
		t.Errorf("copied set %v", copied.Sorted())
	}
}

func TestRun_CorruptStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ids")
	if err := os.WriteFile(path, []byte("garbage"), 0o644); err != nil {
		t.Fatal(err)
	}

	var stdout, stderr bytes.Buffer

	if code := run(context.Background(), []string{"-path", path}, &stdout, &stderr); code != 1 {
		t.Fatalf("exit code %d, expected 1", code)
	}

	if !strings.Contains(stderr.String(), "Error loading identifier set") {
		t.Errorf("unexpected stderr %q", stderr.String())
	}
}
