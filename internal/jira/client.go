// Package jira is a small Jira Cloud REST v3 client covering what triage
// needs: issues, comments, JQL search and attachment downloads.
package jira

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned for 404 responses.
	ErrNotFound = errors.New("jira: not found")
	// ErrUnauthorized is returned for 401 and 403 responses.
	ErrUnauthorized = errors.New("jira: authentication failed, check email and API token")
	// ErrMissingCredentials is returned by NewClient when the site or
	// credentials are not configured.
	ErrMissingCredentials = errors.New("jira: missing credentials")
)

// APIError is any other non-2xx response.
type APIError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("jira: HTTP %s", e.Status)
	}
	return fmt.Sprintf("jira: HTTP %s: %s", e.Status, e.Body)
}

const (
	// DefaultTimeout bounds API calls.
	DefaultTimeout = 30 * time.Second
	// DefaultDownloadTimeout bounds a single attachment download.
	DefaultDownloadTimeout = 5 * time.Minute

	maxErrorBody = 512
)

// Config holds connection settings.
type Config struct {
	SiteURL         string
	CloudID         string
	Email           string
	APIToken        string
	Timeout         time.Duration
	DownloadTimeout time.Duration
	HTTPClient      *http.Client
	Logger          *slog.Logger
}

// Client talks to one Jira Cloud site.
type Client struct {
	baseURL         string
	email           string
	token           string
	timeout         time.Duration
	downloadTimeout time.Duration
	http            *http.Client
	logger          *slog.Logger
}

// NewClient validates cfg and returns a client.
func NewClient(cfg Config) (*Client, error) {
	base := BaseURL(cfg.SiteURL, cfg.CloudID)
	var missing []string
	if base == "" {
		missing = append(missing, "site_url or cloud_id")
	}
	if cfg.Email == "" {
		missing = append(missing, "email")
	}
	if cfg.APIToken == "" {
		missing = append(missing, "api_token")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingCredentials, strings.Join(missing, ", "))
	}

	c := &Client{
		baseURL:         base,
		email:           cfg.Email,
		token:           cfg.APIToken,
		timeout:         cfg.Timeout,
		downloadTimeout: cfg.DownloadTimeout,
		http:            cfg.HTTPClient,
		logger:          cfg.Logger,
	}
	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}
	if c.downloadTimeout <= 0 {
		c.downloadTimeout = DefaultDownloadTimeout
	}
	if c.http == nil {
		c.http = &http.Client{}
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c, nil
}

// BaseURL resolves the site root. An explicit site URL wins; a bare cloud
// name becomes https://<name>.atlassian.net and a dotted one is used as a host.
func BaseURL(siteURL, cloudID string) string {
	site := strings.TrimSpace(siteURL)
	if site == "" {
		cloud := strings.TrimSpace(cloudID)
		switch {
		case cloud == "":
			return ""
		case strings.Contains(cloud, "."):
			site = cloud
		default:
			site = cloud + ".atlassian.net"
		}
	}
	if !strings.HasPrefix(site, "http://") && !strings.HasPrefix(site, "https://") {
		site = "https://" + site
	}
	return strings.TrimRight(site, "/")
}

// BaseURL returns the resolved site root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) newRequest(ctx context.Context, method, path string, body interface{}) (*http.Request, error) {
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshaling request: %w", err)
		}
		r = bytes.NewReader(data)
	}
	target := path
	if !strings.HasPrefix(path, "http://") && !strings.HasPrefix(path, "https://") {
		target = c.baseURL + path
	}
	req, err := http.NewRequestWithContext(ctx, method, target, r)
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(c.email, c.token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// doJSON performs the request and decodes a JSON response into out.
func (c *Client) doJSON(ctx context.Context, method, path string, body, out interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("jira request %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	c.logger.Debug("jira request", "method", method, "path", path, "status", resp.StatusCode, "duration", time.Since(start))

	if err := checkStatus(resp); err != nil {
		return err
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s response: %w", path, err)
	}
	return nil
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	switch resp.StatusCode {
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrUnauthorized
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &APIError{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Body:       strings.TrimSpace(string(data)),
	}
}

// GetIssue fetches one issue with rendered fields expanded.
func (c *Client) GetIssue(ctx context.Context, key string) (*Issue, error) {
	path := "/rest/api/3/issue/" + url.PathEscape(key) + "?expand=renderedFields"
	var raw rawIssue
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &raw); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("issue %s: %w", key, err)
		}
		return nil, err
	}
	issue := raw.toIssue()
	return &issue, nil
}

// GetComments returns the issue's comments oldest first.
func (c *Client) GetComments(ctx context.Context, key string) ([]Comment, error) {
	path := "/rest/api/3/issue/" + url.PathEscape(key) + "/comment?orderBy=created"
	var raw struct {
		Comments []rawComment `json:"comments"`
	}
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &raw); err != nil {
		return nil, fmt.Errorf("comments for %s: %w", key, err)
	}
	out := make([]Comment, 0, len(raw.Comments))
	for _, rc := range raw.Comments {
		out = append(out, rc.toComment())
	}
	return out, nil
}

// searchFields are the fields requested for list views.
var searchFields = []string{"summary", "status", "priority", "created"}

// Search runs a JQL query and returns at most limit issues.
func (c *Client) Search(ctx context.Context, jql string, limit int) ([]IssueRef, error) {
	if limit <= 0 {
		limit = 10
	}
	body := map[string]interface{}{
		"jql":        jql,
		"maxResults": limit,
		"fields":     searchFields,
	}
	var raw struct {
		Issues []rawIssue `json:"issues"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/rest/api/3/search/jql", body, &raw); err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	out := make([]IssueRef, 0, len(raw.Issues))
	for _, ri := range raw.Issues {
		out = append(out, ri.toRef())
	}
	return out, nil
}

// Download streams an attachment's content into w. onProgress, when non-nil,
// receives the running byte count after every chunk.
func (c *Client) Download(ctx context.Context, contentURL string, w io.Writer, onProgress func(done int64)) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, c.downloadTimeout)
	defer cancel()

	req, err := c.newRequest(ctx, http.MethodGet, contentURL, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Accept", "*/*")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("downloading %s: %w", contentURL, err)
	}
	defer resp.Body.Close()
	if err := checkStatus(resp); err != nil {
		return 0, err
	}

	cw := &countingWriter{w: w, onProgress: onProgress}
	n, err := io.Copy(cw, resp.Body)
	if err != nil {
		return n, fmt.Errorf("downloading %s: %w", contentURL, err)
	}
	return n, nil
}

type countingWriter struct {
	w          io.Writer
	n          int64
	onProgress func(int64)
}

func (cw *countingWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.n += int64(n)
	if cw.onProgress != nil {
		cw.onProgress(cw.n)
	}
	return n, err
}
