package papi

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	csrfCookieName  = "isicsrf"
	csrfHeader      = "X-CSRF-Token"
	requestIDHeader = "X-Request-Id"
)

// requestOptions collects per-call settings for a dispatched request.
type requestOptions struct {
	body    any
	hasBody bool
	query   map[string]string
	headers http.Header
}

// RequestOption configures a single verb call.
type RequestOption func(*requestOptions)

// WithBody attaches a JSON-encodable payload to the request. Only PUT,
// POST, and DELETE carry a body; GET and HEAD ignore it.
func WithBody(body any) RequestOption {
	return func(o *requestOptions) {
		o.body = body
		o.hasBody = true
	}
}

// WithQuery attaches query parameters to the request URL.
func WithQuery(args map[string]string) RequestOption {
	return func(o *requestOptions) {
		o.query = args
	}
}

// WithHeader adds a header to this request only.
func WithHeader(key, value string) RequestOption {
	return func(o *requestOptions) {
		if o.headers == nil {
			o.headers = make(http.Header)
		}
		o.headers.Add(key, value)
	}
}

// Get issues a GET against a path under the configured service tree.
func (c *Client) Get(ctx context.Context, uri string, opts ...RequestOption) (*Response, error) {
	return c.request(ctx, http.MethodGet, uri, opts...)
}

// Head issues a HEAD against a path under the configured service tree.
func (c *Client) Head(ctx context.Context, uri string, opts ...RequestOption) (*Response, error) {
	return c.request(ctx, http.MethodHead, uri, opts...)
}

// Put issues a PUT against a path under the configured service tree.
func (c *Client) Put(ctx context.Context, uri string, opts ...RequestOption) (*Response, error) {
	return c.request(ctx, http.MethodPut, uri, opts...)
}

// Post issues a POST against a path under the configured service tree.
func (c *Client) Post(ctx context.Context, uri string, opts ...RequestOption) (*Response, error) {
	return c.request(ctx, http.MethodPost, uri, opts...)
}

// Delete issues a DELETE against a path under the configured service tree.
func (c *Client) Delete(ctx context.Context, uri string, opts ...RequestOption) (*Response, error) {
	return c.request(ctx, http.MethodDelete, uri, opts...)
}

// request is the shared dispatch path for all verbs. It auto-connects an
// unconnected client, composes the full URL from the base URL, service
// prefix, and caller path, and maps the outcome into a Response or one of
// the three error types. No retries: each call is exactly one exchange
// (plus the implicit connect when needed).
func (c *Client) request(ctx context.Context, method, uri string, opts ...RequestOption) (*Response, error) {
	var ro requestOptions
	for _, opt := range opts {
		opt(&ro)
	}

	if strings.Contains(uri, "://") {
		return nil, &ProtocolError{Op: "build request", Err: fmt.Errorf("uri %q must be a path, not a full URL", uri)}
	}
	if !strings.HasPrefix(uri, "/") {
		uri = "/" + uri
	}

	var body []byte
	if ro.hasBody && method != http.MethodGet && method != http.MethodHead {
		data, err := json.Marshal(ro.body)
		if err != nil {
			return nil, &ProtocolError{Op: "encode request body", Err: err}
		}
		body = data
	}

	c.mu.Lock()
	if !c.connected {
		if _, err := c.connectLocked(ctx); err != nil {
			c.mu.Unlock()
			return nil, err
		}
	}
	csrf := c.csrfToken
	c.mu.Unlock()

	fullURL := c.baseURL + "/" + string(c.config.Service) + uri
	if len(ro.query) > 0 {
		q := url.Values{}
		for k, v := range ro.query {
			q.Set(k, v)
		}
		fullURL += "?" + q.Encode()
	}

	resp, err := c.send(ctx, method, fullURL, body, csrf, ro.headers)
	if err != nil {
		// The server dropping the session shows up as a 401; record the
		// drift so the next call re-authenticates.
		if apiErr, ok := err.(*APIError); ok && apiErr.Status == http.StatusUnauthorized {
			c.mu.Lock()
			c.connected = false
			c.mu.Unlock()
		}
		return nil, err
	}
	return resp, nil
}

// roundTrip issues a request against an absolute URL with no extra
// headers. Session lifecycle calls go through here.
func (c *Client) roundTrip(ctx context.Context, method, fullURL string, body []byte, csrf string) (*Response, error) {
	return c.send(ctx, method, fullURL, body, csrf, nil)
}

// send performs one HTTP exchange and classifies the outcome: transport
// failure into ConnectionError, non-success status into APIError,
// anything else unexpected into ProtocolError.
func (c *Client) send(ctx context.Context, method, fullURL string, body []byte, csrf string, extra http.Header) (*Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, fullURL, reader)
	if err != nil {
		return nil, &ProtocolError{Op: "build request", Err: err}
	}

	req.Header.Set("User-Agent", c.userAgent)
	requestID := uuid.New().String()
	req.Header.Set(requestIDHeader, requestID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if csrf != "" {
		req.Header.Set("Origin", c.baseURL)
		req.Header.Set(csrfHeader, csrf)
	}
	for k, values := range extra {
		for _, v := range values {
			req.Header.Add(k, v)
		}
	}

	start := time.Now()
	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &ConnectionError{URL: fullURL, Err: err}
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, &ProtocolError{Op: "read response body", Err: err}
	}

	c.logger.Debug().
		Str("request_id", requestID).
		Str("method", method).
		Str("url", fullURL).
		Int("status", httpResp.StatusCode).
		Str("duration", fmt.Sprintf("%dms", time.Since(start).Milliseconds())).
		Msg("papi request")

	if httpResp.StatusCode >= http.StatusBadRequest {
		return nil, newAPIError(httpResp.StatusCode, raw, fullURL)
	}
	return newResponse(httpResp, raw, fullURL), nil
}
