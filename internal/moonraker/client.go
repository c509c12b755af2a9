package moonraker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/muurk/fleethelm/internal/version"
)

const (
	// DefaultTimeout bounds any request whose context carries no deadline.
	DefaultTimeout = 10 * time.Second

	// maxBodySize caps how much of a response is read. History pages of a
	// few hundred jobs stay well below this.
	maxBodySize = 8 << 20
)

// Client talks to one Moonraker instance.
//
// Every method takes a context; callers set the per-call deadline
// (identification, status queries and history reads use different ones).
// Nothing is retried.
type Client struct {
	// BaseURL is the API root (e.g., "http://192.168.1.40:7125")
	BaseURL string

	// HTTPClient is the underlying HTTP client
	HTTPClient *http.Client
}

// NewClientWithURL creates a client with a full base URL.
func NewClientWithURL(baseURL string) *Client {
	return &Client{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: DefaultTimeout},
	}
}

// get performs a GET and returns the body of a 2xx response.
func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return nil, &DeviceError{Type: ErrTypeNetwork, Message: "failed to create request", Address: c.BaseURL, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, ClassifyNetworkError(err, c.BaseURL)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodySize))
		return nil, NewHTTPError(resp.StatusCode, c.BaseURL)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, ClassifyNetworkError(err, c.BaseURL)
	}
	return body, nil
}

// getObject fetches path and decodes it as a JSON object.
func (c *Client) getObject(ctx context.Context, path string) (map[string]json.RawMessage, error) {
	body, err := c.get(ctx, path)
	if err != nil {
		return nil, err
	}

	var raw any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, NewParseError("invalid JSON from "+path, c.BaseURL, err)
	}
	if _, ok := raw.(map[string]any); !ok {
		return nil, NewShapeError(path+" did not return a JSON object", c.BaseURL)
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(body, &obj); err != nil {
		return nil, NewParseError("invalid JSON from "+path, c.BaseURL, err)
	}
	return obj, nil
}

// Identify confirms the endpoint speaks Moonraker: GET /printer/info must
// return a JSON object with a "result" member.
func (c *Client) Identify(ctx context.Context) error {
	obj, err := c.getObject(ctx, "/printer/info")
	if err != nil {
		return err
	}
	if _, ok := obj["result"]; !ok {
		return NewShapeError("/printer/info has no result", c.BaseURL)
	}
	return nil
}

// PrinterInfo returns the self-description of the printer host.
func (c *Client) PrinterInfo(ctx context.Context) (*PrinterInfo, error) {
	obj, err := c.getObject(ctx, "/printer/info")
	if err != nil {
		return nil, err
	}

	var info PrinterInfo
	if err := decodeMember(obj, "result", &info); err != nil {
		return nil, NewShapeError("/printer/info: "+err.Error(), c.BaseURL)
	}
	if info.Hostname == "" {
		return nil, NewShapeError("/printer/info has no hostname", c.BaseURL)
	}
	return &info, nil
}

// QueryObjects runs /printer/objects/query with the given raw query string
// (e.g. "extruder=target,temperature") and returns result.status.
func (c *Client) QueryObjects(ctx context.Context, query string) (ObjectStatus, error) {
	path := "/printer/objects/query?" + query
	obj, err := c.getObject(ctx, path)
	if err != nil {
		return nil, err
	}

	var result struct {
		Status ObjectStatus `json:"status"`
	}
	if err := decodeMember(obj, "result", &result); err != nil {
		return nil, NewShapeError(path+": "+err.Error(), c.BaseURL)
	}
	if result.Status == nil {
		return nil, NewShapeError(path+" has no result.status", c.BaseURL)
	}
	return result.Status, nil
}

// HistoryTotals returns the lifetime job totals. Both the bare
// {"job_totals": ...} document and the {"result": {...}} envelope are accepted.
func (c *Client) HistoryTotals(ctx context.Context) (*JobTotals, error) {
	obj, err := c.getObject(ctx, "/server/history/totals")
	if err != nil {
		return nil, err
	}

	body, ok := unwrap(obj, "job_totals")
	if !ok {
		return nil, NewShapeError("/server/history/totals has no job_totals", c.BaseURL)
	}

	var totals JobTotals
	if err := decodeMember(body, "job_totals", &totals); err != nil {
		return nil, NewShapeError("/server/history/totals: "+err.Error(), c.BaseURL)
	}
	return &totals, nil
}

// HistoryPage returns up to limit jobs starting at offset start, ordered
// "desc" (newest first) or "asc". Entries that do not decode as a job are
// skipped; a page is only an error when the document itself is unusable.
func (c *Client) HistoryPage(ctx context.Context, limit, start int, order string) ([]Job, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("start", strconv.Itoa(start))
	q.Set("order", order)
	path := "/server/history/list?" + q.Encode()

	obj, err := c.getObject(ctx, path)
	if err != nil {
		return nil, err
	}

	body, ok := unwrap(obj, "jobs")
	if !ok {
		return nil, NewShapeError("/server/history/list has no jobs", c.BaseURL)
	}

	var entries []json.RawMessage
	if err := decodeMember(body, "jobs", &entries); err != nil {
		return nil, NewShapeError("/server/history/list: "+err.Error(), c.BaseURL)
	}

	jobs := make([]Job, 0, len(entries))
	for _, e := range entries {
		if len(bytes.TrimSpace(e)) == 0 || e[0] != '{' {
			continue
		}
		var job Job
		if err := json.Unmarshal(e, &job); err != nil {
			continue
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// unwrap returns obj if it carries key directly, or obj["result"] if the
// envelope carries it.
func unwrap(obj map[string]json.RawMessage, key string) (map[string]json.RawMessage, bool) {
	if _, ok := obj[key]; ok {
		return obj, true
	}
	res, ok := obj["result"]
	if !ok {
		return nil, false
	}
	var inner map[string]json.RawMessage
	if err := json.Unmarshal(res, &inner); err != nil {
		return nil, false
	}
	if _, ok := inner[key]; !ok {
		return nil, false
	}
	return inner, true
}

func decodeMember(obj map[string]json.RawMessage, key string, out any) error {
	raw, ok := obj[key]
	if !ok {
		return fmt.Errorf("missing %q", key)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decoding %q: %w", key, err)
	}
	return nil
}
