package seqstore

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/ravexina/NCBI-fasta-extractor/internal/config"
	"github.com/ravexina/NCBI-fasta-extractor/internal/models"
)

const samplePayload = ">MK123.1 Hepatitis B virus isolate Hyd-1\nACGTACGT\n"

func TestFileName(t *testing.T) {
	tests := []struct {
		name     string
		rec      models.NormalizedRecord
		expected string
	}{
		{
			name:     "plain",
			rec:      models.NormalizedRecord{Key: "MK123.1", Country: "India", Year: "2019"},
			expected: "MK123.1 India 2019.fasta",
		},
		{
			name:     "unknown fields",
			rec:      models.NormalizedRecord{Key: "AB1.2", Country: models.Unknown, Year: "2001"},
			expected: "AB1.2 unknown 2001.fasta",
		},
		{
			name:     "separators replaced",
			rec:      models.NormalizedRecord{Key: "X.1", Country: "Congo/Zaire", Year: "1999"},
			expected: "X.1 Congo_Zaire 1999.fasta",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FileName(tt.rec); got != tt.expected {
				t.Errorf("FileName() = %q, expected %q", got, tt.expected)
			}
		})
	}
}

func TestDirStore_Put(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "fasta")
	store := NewDirStore(dir)

	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Fatal("directory should not exist before the first Put")
	}

	name := "MK123.1 India 2019.fasta"
	if err := store.Put(context.Background(), name, []byte(samplePayload)); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		t.Fatalf("read stored file: %v", err)
	}

	if string(got) != samplePayload {
		t.Errorf("stored %q", got)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}

	if len(entries) != 1 {
		t.Errorf("temp files left behind: %v", entries)
	}
}

func TestDirStore_Overwrite(t *testing.T) {
	store := NewDirStore(t.TempDir())
	ctx := context.Background()

	if err := store.Put(ctx, "a.fasta", []byte(">a\nAA\n")); err != nil {
		t.Fatal(err)
	}

	if err := store.Put(ctx, "a.fasta", []byte(">a\nCC\n")); err != nil {
		t.Fatal(err)
	}

	got, _ := os.ReadFile(filepath.Join(store.Dir(), "a.fasta"))
	if string(got) != ">a\nCC\n" {
		t.Errorf("expected second payload, got %q", got)
	}
}

func TestDirStore_RejectsEmpty(t *testing.T) {
	store := NewDirStore(t.TempDir())

	if err := store.Put(context.Background(), "a.fasta", nil); !errors.Is(err, ErrEmptyPayload) {
		t.Errorf("expected ErrEmptyPayload, got %v", err)
	}

	if err := store.Put(context.Background(), "  ", []byte("x")); !errors.Is(err, ErrEmptyName) {
		t.Errorf("expected ErrEmptyName, got %v", err)
	}
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()

	store, err := Open(context.Background(), config.SequencesConfig{Driver: config.SequenceDriverFS, Dir: dir})
	if err != nil {
		t.Fatal(err)
	}

	if ds, ok := store.(*DirStore); !ok || ds.Dir() != dir {
		t.Errorf("expected DirStore at %s, got %#v", dir, store)
	}

	if _, err := Open(context.Background(), config.SequencesConfig{Driver: "ftp"}); !errors.Is(err, ErrUnknownDriver) {
		t.Errorf("expected ErrUnknownDriver, got %v", err)
	}

	if _, err := Open(context.Background(), config.SequencesConfig{Driver: config.SequenceDriverS3}); !errors.Is(err, ErrMissingBucket) {
		t.Errorf("expected ErrMissingBucket, got %v", err)
	}
}

// mockS3 is a minimal fake S3 endpoint that only understands PutObject.
type mockS3 struct {
	mu      sync.Mutex
	objects map[string]mockObject
	status  int
}

type mockObject struct {
	body        []byte
	contentType string
}

func (m *mockS3) RoundTrip(req *http.Request) (*http.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.status != 0 {
		return &http.Response{
			StatusCode: m.status,
			Body:       io.NopCloser(strings.NewReader("<Error><Code>AccessDenied</Code><Message>denied</Message></Error>")),
			Header:     http.Header{"Content-Type": {"application/xml"}},
			Request:    req,
		}, nil
	}

	if req.Method != http.MethodPut {
		return &http.Response{StatusCode: http.StatusNotImplemented, Body: io.NopCloser(bytes.NewReader(nil)), Header: http.Header{}, Request: req}, nil
	}

	body, _ := io.ReadAll(req.Body)
	if dec, ok := decodeChunked(body); ok {
		body = dec
	}

	// Path-style: /<bucket>/<key>
	key, _ := strings.CutPrefix(req.URL.Path, "/mock-bucket/")
	m.objects[key] = mockObject{body: body, contentType: req.Header.Get("Content-Type")}

	return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(bytes.NewReader(nil)), Header: http.Header{"ETag": {`"etag"`}}, Request: req}, nil
}

// decodeChunked strips aws-chunked framing: <hex>[;ext]\r\n<data>\r\n ... 0\r\n[trailers].
func decodeChunked(b []byte) ([]byte, bool) {
	r := bufio.NewReader(bytes.NewReader(b))

	var out bytes.Buffer

	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return nil, false
		}

		sizeHex, _, _ := strings.Cut(strings.TrimRight(line, "\r\n"), ";")

		size, err := strconv.ParseInt(sizeHex, 16, 64)
		if err != nil {
			return nil, false
		}

		if size == 0 {
			return out.Bytes(), true
		}

		if _, err := io.CopyN(&out, r, size); err != nil {
			return nil, false
		}

		if _, err := r.Discard(2); err != nil {
			return nil, false
		}
	}
}

func newMockS3Store(t *testing.T, prefix string) (*S3Store, *mockS3) {
	t.Helper()

	rt := &mockS3{objects: make(map[string]mockObject)}

	store, err := NewS3Store(context.Background(), config.S3Config{
		Bucket:          "mock-bucket",
		Region:          "us-east-1",
		Endpoint:        "https://mock.s3.local",
		Prefix:          prefix,
		PathStyle:       true,
		AccessKeyID:     "AKIA",
		SecretAccessKey: "SECRET",
	}, func(o *s3.Options) {
		o.HTTPClient = &http.Client{Transport: rt}
		o.RetryMaxAttempts = 1
	})
	if err != nil {
		t.Fatalf("NewS3Store failed: %v", err)
	}

	return store, rt
}

func TestS3Store_Put(t *testing.T) {
	store, rt := newMockS3Store(t, "fasta/")

	name := "MK123.1 India 2019.fasta"
	if err := store.Put(context.Background(), name, []byte(samplePayload)); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	obj, ok := rt.objects["fasta/"+name]
	if !ok {
		t.Fatalf("object not stored, have %v", rt.objects)
	}

	if string(obj.body) != samplePayload {
		t.Errorf("stored body %q", obj.body)
	}

	if obj.contentType != ContentType {
		t.Errorf("content type = %q", obj.contentType)
	}
}

func TestS3Store_PutError(t *testing.T) {
	store, rt := newMockS3Store(t, "")
	rt.status = http.StatusForbidden

	err := store.Put(context.Background(), "a.fasta", []byte(samplePayload))
	if err == nil || !strings.Contains(err.Error(), "failed to upload a.fasta") {
		t.Fatalf("expected upload error, got %v", err)
	}
}
