// Package entrez talks to the NCBI E-utilities and the sequence viewer.
package entrez

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ravexina/NCBI-fasta-extractor/internal/config"
	"github.com/ravexina/NCBI-fasta-extractor/internal/logger"
	"github.com/ravexina/NCBI-fasta-extractor/internal/models"
	"github.com/ravexina/NCBI-fasta-extractor/pkg/utils"
)

// Client errors.
var (
	ErrUnexpectedStatusCode = errors.New("unexpected status code")
	ErrMalformedResponse    = errors.New("malformed response")
	ErrEmptyRecordSet       = errors.New("record set is empty")
	ErrSearchFailed         = errors.New("search failed")
)

// Response size caps.
const (
	maxSearchBytes   = 64 << 20
	maxRecordBytes   = 16 << 20
	maxSequenceBytes = 512 << 20
)

// Client issues esearch, efetch and sequence viewer requests.
type Client struct {
	http      *http.Client
	cfg       config.EntrezConfig
	retry     config.RetryPolicy
	headers   http.Header
	logger    *logger.Logger
	sleep     func(ctx context.Context, d time.Duration) error
	viewerURL string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithLogger sets the logger used for retry messages.
func WithLogger(l *logger.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// NewClient creates a client for the services described by cfg. Search
// requests are retried according to retry; the others are single-shot and
// bounded by the caller's context.
func NewClient(cfg config.EntrezConfig, retry config.RetryPolicy, opts ...Option) *Client {
	c := &Client{
		http:      &http.Client{},
		cfg:       cfg,
		retry:     retry,
		headers:   utils.NewHTTPHelper().BuildHeaders(nil),
		logger:    logger.Discard(),
		sleep:     sleepContext,
		viewerURL: cfg.ViewerURL,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

type searchResponse struct {
	Result struct {
		Count  string   `json:"count"`
		IDList []string `json:"idlist"`
		Error  string   `json:"ERROR"`
	} `json:"esearchresult"`
}

// Search runs esearch for term and returns the hit count and identifiers.
func (c *Client) Search(ctx context.Context, term string, maxResults int) (models.SearchResult, error) {
	params := c.identity()
	params.Set("db", c.cfg.Database)
	params.Set("term", term)
	params.Set("retmax", strconv.Itoa(maxResults))
	params.Set("retmode", "json")

	endpoint := c.endpoint("esearch.fcgi", params)

	var lastErr error

	for attempt := 1; attempt <= c.retry.MaxAttempts; attempt++ {
		body, status, err := c.searchAttempt(ctx, endpoint)
		if err == nil {
			return decodeSearch(body)
		}

		lastErr = fmt.Errorf("request failed (attempt %d/%d): %w", attempt, c.retry.MaxAttempts, err)

		if ctx.Err() != nil {
			return models.SearchResult{}, fmt.Errorf("%w: %w", ErrSearchFailed, ctx.Err())
		}

		if status != 0 && !isRetryableStatus(status) {
			break
		}

		if attempt < c.retry.MaxAttempts {
			delay := c.retry.GetRetryDelay(attempt + 1)
			c.logger.Warn("Search attempt failed, retrying", "attempt", attempt, "delay", delay, "error", err)

			if err := c.sleep(ctx, delay); err != nil {
				return models.SearchResult{}, fmt.Errorf("%w: %w", ErrSearchFailed, err)
			}
		}
	}

	return models.SearchResult{}, fmt.Errorf("%w: %w", ErrSearchFailed, lastErr)
}

func (c *Client) searchAttempt(ctx context.Context, endpoint string) ([]byte, int, error) {
	if t := c.retry.GetTimeout(); t > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, t)
		defer cancel()
	}

	return c.get(ctx, endpoint, maxSearchBytes)
}

func decodeSearch(body []byte) (models.SearchResult, error) {
	var resp searchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return models.SearchResult{}, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}

	if resp.Result.Error != "" {
		return models.SearchResult{}, fmt.Errorf("%w: %s", ErrSearchFailed, resp.Result.Error)
	}

	count, err := strconv.Atoi(strings.TrimSpace(resp.Result.Count))
	if err != nil {
		return models.SearchResult{}, fmt.Errorf("%w: count %q", ErrMalformedResponse, resp.Result.Count)
	}

	ids := make([]int64, 0, len(resp.Result.IDList))

	for _, raw := range resp.Result.IDList {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return models.SearchResult{}, fmt.Errorf("%w: id %q", ErrMalformedResponse, raw)
		}

		ids = append(ids, id)
	}

	return models.SearchResult{Count: count, IDs: ids}, nil
}

// FetchRecord runs efetch for one identifier and decodes the first GBSeq.
// Only the first two bases are requested; the sequence itself comes from
// DownloadSequence.
func (c *Client) FetchRecord(ctx context.Context, id int64) (*models.RawRecord, error) {
	params := c.identity()
	params.Set("db", c.cfg.Database)
	params.Set("id", strconv.FormatInt(id, 10))
	params.Set("rettype", "gb")
	params.Set("retmode", "xml")
	params.Set("seq_start", "1")
	params.Set("seq_stop", "2")

	body, _, err := c.get(ctx, c.endpoint("efetch.fcgi", params), maxRecordBytes)
	if err != nil {
		return nil, err
	}

	var set models.RecordSet
	if err := xml.Unmarshal(body, &set); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}

	if len(set.Records) == 0 {
		return nil, ErrEmptyRecordSet
	}

	return &set.Records[0], nil
}

// DownloadSequence fetches the FASTA report for one identifier from the
// sequence viewer.
func (c *Client) DownloadSequence(ctx context.Context, id int64) ([]byte, error) {
	params := url.Values{}
	params.Set("tool", "portal")
	params.Set("save", "file")
	params.Set("log$", "seqview")
	params.Set("db", "nuccore")
	params.Set("report", "fasta")
	params.Set("id", strconv.FormatInt(id, 10))
	params.Set("conwithfeat", "on")
	params.Set("hide-cdd", "on")

	body, _, err := c.get(ctx, c.viewerURL+"?"+params.Encode(), maxSequenceBytes)

	return body, err
}

func (c *Client) get(ctx context.Context, endpoint string, limit int64) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header = c.headers.Clone()

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, err
	}

	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

		return nil, resp.StatusCode, fmt.Errorf("%w: %d", ErrUnexpectedStatusCode, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, limit))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to read response body: %w", err)
	}

	return body, resp.StatusCode, nil
}

func (c *Client) endpoint(name string, params url.Values) string {
	return strings.TrimRight(c.cfg.BaseURL, "/") + "/" + name + "?" + params.Encode()
}

// identity returns the parameters NCBI uses to identify callers.
func (c *Client) identity() url.Values {
	params := url.Values{}
	if c.cfg.Tool != "" {
		params.Set("tool", c.cfg.Tool)
	}

	if c.cfg.Email != "" {
		params.Set("email", c.cfg.Email)
	}

	if c.cfg.APIKey != "" {
		params.Set("api_key", c.cfg.APIKey)
	}

	return params
}

// isRetryableStatus checks if HTTP status should be retried.
func isRetryableStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusServiceUnavailable, // 503
		http.StatusGatewayTimeout,  // 504
		http.StatusTooManyRequests, // 429
		http.StatusRequestTimeout:  // 408
		return true
	default:
		return false
	}
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
