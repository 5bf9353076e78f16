// Package api talks to the autose backend: task submission, status, lint and
// the streamed task history.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	charmlog "github.com/charmbracelet/log"
	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"

	"github.com/richhaase/autose/internal/logger"
)

// DefaultBaseURL is used when no API URL is configured.
const DefaultBaseURL = "http://localhost:8000"

// maxErrorBody bounds how much of a failed response is kept for diagnosis.
const maxErrorBody = 1 << 20

// Options configures a Client.
type Options struct {
	BaseURL string
	APIKey  string
	// RequestTimeout bounds JSON requests. History streams are never timed
	// out; they end when the server closes them or the context is cancelled.
	RequestTimeout time.Duration
	// Transport replaces the default HTTP transport. Used by tests.
	Transport http.RoundTripper
	// Logger receives resty's own warnings. Defaults to a discarding logger.
	Logger *charmlog.Logger
}

// Client issues requests against one backend.
type Client struct {
	http           *resty.Client
	baseURL        string
	requestTimeout time.Duration
}

// NewClient validates opts and builds a Client.
func NewClient(opts Options) (*Client, error) {
	baseURL, err := validateBaseURL(opts.BaseURL)
	if err != nil {
		return nil, err
	}

	hc := resty.New().
		SetBaseURL(baseURL).
		SetHeader("Authorization", opts.APIKey).
		SetHeader("User-Agent", "autose")
	if opts.Transport != nil {
		hc.SetTransport(opts.Transport)
	}
	log := opts.Logger
	if log == nil {
		log = logger.FromContext(context.Background())
	}
	hc.SetLogger(log)

	return &Client{
		http:           hc,
		baseURL:        baseURL,
		requestTimeout: opts.RequestTimeout,
	}, nil
}

// BaseURL returns the normalized backend URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

func validateBaseURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		raw = DefaultBaseURL
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", InvalidParameters("invalid API URL: %v", err)
	}
	if !u.IsAbs() || u.Host == "" {
		return "", InvalidParameters("API URL must be absolute with a host, got: %s", raw)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", InvalidParameters("API URL scheme must be http or https, got: %s", u.Scheme)
	}
	return strings.TrimRight(u.String(), "/"), nil
}

// newRequest prepares a request carrying a fresh request id for log
// correlation.
func (c *Client) newRequest(ctx context.Context) (*resty.Request, string) {
	id := uuid.NewString()
	return c.http.R().SetContext(ctx).SetHeader("X-Request-ID", id), id
}

// doJSON sends body (if any) as JSON and decodes a successful response into
// result (if any). It returns the raw response body.
func (c *Client) doJSON(ctx context.Context, method, path string, body, result any) ([]byte, error) {
	if c.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.requestTimeout)
		defer cancel()
	}
	log := logger.FromContext(ctx)

	req, reqID := c.newRequest(ctx)
	req.SetHeader("Accept", "application/json")
	if body != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(body)
	}

	log.Debug("API request", "method", method, "path", path, "request_id", reqID)
	resp, err := req.Execute(method, path)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, HTTPError(0, "", err)
	}

	raw := resp.Body()
	log.Debug("API response", "method", method, "path", path, "status", resp.StatusCode(), "bytes", len(raw))
	if !resp.IsSuccess() {
		if len(raw) > maxErrorBody {
			raw = raw[:maxErrorBody]
		}
		return nil, HTTPError(resp.StatusCode(), strings.TrimSpace(string(raw)), nil)
	}

	if result != nil {
		if err := json.Unmarshal(raw, result); err != nil {
			return nil, HTTPError(resp.StatusCode(), string(raw), fmt.Errorf("malformed response: %w", err))
		}
	}
	return raw, nil
}
