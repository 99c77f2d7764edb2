package entrez

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ravexina/NCBI-fasta-extractor/internal/config"
)

const gbsetXML = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE GBSet PUBLIC "-//NCBI//NCBI GBSeq/EN" "https://www.ncbi.nlm.nih.gov/dtd/NCBI_GBSeq.dtd">
<GBSet>
  <GBSeq>
    <GBSeq_locus>MK123456</GBSeq_locus>
    <GBSeq_update-date>12-MAR-2019</GBSeq_update-date>
    <GBSeq_definition>Hepatitis B virus isolate Hyd-1 complete genome</GBSeq_definition>
    <GBSeq_accession-version>MK123456.1</GBSeq_accession-version>
    <GBSeq_organism>Hepatitis B virus</GBSeq_organism>
    <GBSeq_feature-table>
      <GBFeature>
        <GBFeature_key>source</GBFeature_key>
        <GBFeature_location>1..2</GBFeature_location>
        <GBFeature_quals>
          <GBQualifier>
            <GBQualifier_name>isolate</GBQualifier_name>
            <GBQualifier_value>Hyd-1</GBQualifier_value>
          </GBQualifier>
          <GBQualifier>
            <GBQualifier_name>country</GBQualifier_name>
            <GBQualifier_value>India: Hyderabad</GBQualifier_value>
          </GBQualifier>
          <GBQualifier>
            <GBQualifier_name>strain</GBQualifier_name>
            <GBQualifier_value>S-9</GBQualifier_value>
          </GBQualifier>
        </GBFeature_quals>
      </GBFeature>
      <GBFeature>
        <GBFeature_key>gene</GBFeature_key>
        <GBFeature_location>1..2</GBFeature_location>
      </GBFeature>
    </GBSeq_feature-table>
  </GBSeq>
</GBSet>`

func testConfig(baseURL string) (config.EntrezConfig, config.RetryPolicy) {
	cfg := config.Default()
	cfg.Entrez.BaseURL = baseURL
	cfg.Entrez.ViewerURL = baseURL + "/sviewer/viewer.cgi"
	cfg.Entrez.Email = "lab@example.org"
	cfg.Entrez.APIKey = "k123"

	retry := cfg.Fetch.SearchRetry
	retry.MaxAttempts = 3

	return cfg.Entrez, retry
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg, retry := testConfig(srv.URL)
	c := NewClient(cfg, retry, WithHTTPClient(srv.Client()))
	c.sleep = func(ctx context.Context, _ time.Duration) error { return ctx.Err() }

	return c
}

func TestClient_Search(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/esearch.fcgi" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}

		q := r.URL.Query()
		if q.Get("term") != "hepatitis b[orgn]" || q.Get("db") != "nucleotide" || q.Get("retmax") != "50" {
			t.Errorf("unexpected query %v", q)
		}

		if q.Get("retmode") != "json" || q.Get("email") != "lab@example.org" || q.Get("api_key") != "k123" {
			t.Errorf("missing fixed or identity params: %v", q)
		}

		if r.Header.Get("User-Agent") == "" {
			t.Error("User-Agent header not set")
		}

		fmt.Fprint(w, `{"header":{},"esearchresult":{"count":"1234","retmax":"3","idlist":["42","43","1000000001"]}}`)
	})

	res, err := c.Search(context.Background(), "hepatitis b[orgn]", 50)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}

	if res.Count != 1234 {
		t.Errorf("Count = %d, want 1234", res.Count)
	}

	if len(res.IDs) != 3 || res.IDs[0] != 42 || res.IDs[2] != 1000000001 {
		t.Errorf("IDs = %v", res.IDs)
	}
}

func TestClient_Search_RetriesRetryableStatus(t *testing.T) {
	var calls atomic.Int32

	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)

			return
		}

		fmt.Fprint(w, `{"esearchresult":{"count":"0","idlist":[]}}`)
	})

	res, err := c.Search(context.Background(), "x", 10)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}

	if calls.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", calls.Load())
	}

	if res.Count != 0 || len(res.IDs) != 0 {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestClient_Search_DoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32

	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	})

	_, err := c.Search(context.Background(), "x", 10)
	if !errors.Is(err, ErrSearchFailed) || !errors.Is(err, ErrUnexpectedStatusCode) {
		t.Fatalf("expected wrapped ErrSearchFailed and ErrUnexpectedStatusCode, got %v", err)
	}

	if calls.Load() != 1 {
		t.Errorf("expected a single attempt, got %d", calls.Load())
	}
}

func TestClient_Search_ExhaustsRetries(t *testing.T) {
	var calls atomic.Int32

	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	if _, err := c.Search(context.Background(), "x", 10); !errors.Is(err, ErrSearchFailed) {
		t.Fatalf("expected ErrSearchFailed, got %v", err)
	}

	if calls.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", calls.Load())
	}
}

func TestClient_Search_Malformed(t *testing.T) {
	tests := []struct {
		name string
		body string
		want error
	}{
		{"not json", `<html>`, ErrMalformedResponse},
		{"bad count", `{"esearchresult":{"count":"many","idlist":[]}}`, ErrMalformedResponse},
		{"bad id", `{"esearchresult":{"count":"1","idlist":["NC_1"]}}`, ErrMalformedResponse},
		{"service error", `{"esearchresult":{"ERROR":"Invalid db name"}}`, ErrSearchFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				fmt.Fprint(w, tt.body)
			})

			if _, err := c.Search(context.Background(), "x", 10); !errors.Is(err, tt.want) {
				t.Errorf("Search() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestClient_FetchRecord(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if r.URL.Path != "/efetch.fcgi" || q.Get("id") != "42" {
			t.Errorf("unexpected request %s", r.URL)
		}

		if q.Get("rettype") != "gb" || q.Get("retmode") != "xml" || q.Get("seq_start") != "1" || q.Get("seq_stop") != "2" {
			t.Errorf("missing trimmed-range params: %v", q)
		}

		fmt.Fprint(w, gbsetXML)
	})

	rec, err := c.FetchRecord(context.Background(), 42)
	if err != nil {
		t.Fatalf("FetchRecord failed: %v", err)
	}

	if rec.AccessionVersion != "MK123456.1" || rec.Organism != "Hepatitis B virus" || rec.UpdateDate != "12-MAR-2019" {
		t.Errorf("unexpected record header: %+v", rec)
	}

	if len(rec.FeatureTable) != 2 {
		t.Fatalf("expected 2 features, got %d", len(rec.FeatureTable))
	}

	quals := rec.FeatureTable[0].Qualifiers
	if len(quals) != 3 || quals[0].Name != "isolate" || quals[2].Value != "S-9" {
		t.Errorf("qualifier order not preserved: %+v", quals)
	}
}

func TestClient_FetchRecord_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"server error", http.StatusInternalServerError, "", ErrUnexpectedStatusCode},
		{"error document", http.StatusOK, `<eFetchResult><ERROR>UID=1: cannot get document summary</ERROR></eFetchResult>`, ErrMalformedResponse},
		{"empty set", http.StatusOK, `<GBSet></GBSet>`, ErrEmptyRecordSet},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			})

			if _, err := c.FetchRecord(context.Background(), 1); !errors.Is(err, tt.want) {
				t.Errorf("FetchRecord() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestClient_FetchRecord_ContextDeadline(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if _, err := c.FetchRecord(ctx, 1); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
}

func TestClient_DownloadSequence(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if r.URL.Path != "/sviewer/viewer.cgi" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}

		want := map[string]string{
			"tool": "portal", "save": "file", "log$": "seqview", "db": "nuccore",
			"report": "fasta", "id": "42", "conwithfeat": "on", "hide-cdd": "on",
		}
		for k, v := range want {
			if q.Get(k) != v {
				t.Errorf("param %s = %q, want %q", k, q.Get(k), v)
			}
		}

		fmt.Fprint(w, ">MK123456.1 Hepatitis B virus\nACGT\n")
	})

	body, err := c.DownloadSequence(context.Background(), 42)
	if err != nil {
		t.Fatalf("DownloadSequence failed: %v", err)
	}

	if string(body) != ">MK123456.1 Hepatitis B virus\nACGT\n" {
		t.Errorf("unexpected body %q", body)
	}
}

func TestIsRetryableStatus(t *testing.T) {
	for _, code := range []int{408, 429, 503, 504} {
		if !isRetryableStatus(code) {
			t.Errorf("%d should be retryable", code)
		}
	}

	for _, code := range []int{400, 404, 500} {
		if isRetryableStatus(code) {
			t.Errorf("%d should not be retryable", code)
		}
	}
}
