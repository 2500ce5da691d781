// Package papi provides a session-authenticated client for the OneFS
// Platform API. A Client authenticates against a single cluster node,
// holds the resulting session cookie and CSRF token, and issues typed
// HTTP verbs against the platform or namespace resource tree. Every call
// returns either a Response envelope or one of three error types:
// ConnectionError, APIError, or ProtocolError.
//
// Session authentication is node-local, so clients should target a node
// address directly rather than a SmartConnect name.
package papi

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sync"

	"github.com/rs/zerolog"
)

// sessionPath is the PAPI session resource, shared by session creation,
// introspection, and termination.
const sessionPath = "/session/1/session"

// Client is a session-scoped client for one cluster node. It owns the
// session cookie and CSRF token exclusively; neither is exposed to
// callers. State transitions (connect, disconnect, auto-connect) are
// serialized by an internal mutex, so a Client is safe for concurrent use.
type Client struct {
	config     Config
	baseURL    string
	userAgent  string
	logger     zerolog.Logger
	httpClient *http.Client

	mu        sync.Mutex
	connected bool
	services  []string
	csrfToken string
}

// New creates a Client for the given node and credentials. Defaults: port
// 8080, timeout 15s, platform service, TLS certificate verification off.
// No network I/O is performed until Connect or the first verb call.
func New(host, username, password string, opts ...Option) (*Client, error) {
	cfg := &Config{
		Host:     host,
		Username: username,
		Password: password,
	}
	return NewFromConfig(cfg, opts...)
}

// NewFromConfig creates a Client from an assembled Config. Options are
// applied on top of the config before validation.
func NewFromConfig(cfg *Config, opts ...Option) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	c := &Client{
		config:    *cfg,
		userAgent: defaultUserAgent,
		logger:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if err := c.config.Validate(); err != nil {
		return nil, err
	}

	c.baseURL = fmt.Sprintf("https://%s:%d", c.config.Host, c.config.Port)

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}
	c.httpClient = &http.Client{
		Jar:     jar,
		Timeout: c.config.Timeout,
	}
	if !c.config.Secure {
		c.httpClient.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: true,
			},
		}
	}
	return c, nil
}

// Connected reports whether the client believes it holds a valid session.
// The server may have expired the session independently; Status reconciles.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Services returns the service names the server authorized this session
// for. Empty until a successful Connect.
func (c *Client) Services() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.services))
	copy(out, c.services)
	return out
}

// BaseURL returns the derived node base URL (scheme, host, and port).
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Connect authenticates against the node's session endpoint. On success
// the session cookie is retained in the client's jar, the CSRF token is
// captured for replay on later requests, and the authorized service list
// is recorded. On failure the client stays unconnected with no other side
// effect and is safe to retry.
func (c *Client) Connect(ctx context.Context) (*Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connectLocked(ctx)
}

// connectLocked is Connect without the lock; callers hold c.mu.
func (c *Client) connectLocked(ctx context.Context) (*Response, error) {
	body, err := json.Marshal(authRequest{
		Username: c.config.Username,
		Password: c.config.Password,
		Services: []string{string(c.config.Service)},
	})
	if err != nil {
		return nil, &ProtocolError{Op: "encode session request", Err: err}
	}

	resp, err := c.roundTrip(ctx, http.MethodPost, c.baseURL+sessionPath, body, "")
	if err != nil {
		return nil, err
	}

	// The CSRF token arrives as a cookie on the session response and must
	// be echoed back as a header on every authenticated request.
	c.csrfToken = c.cookieValue(csrfCookieName)
	c.services = nil
	for _, s := range resp.Get("services").Array() {
		c.services = append(c.services, s.String())
	}
	c.connected = true
	c.logger.Debug().Str("url", c.baseURL).Strs("services", c.services).Msg("session established")
	return resp, nil
}

// Status fetches the server's view of the session. It is callable whether
// or not the client believes itself connected, so callers can reconcile
// server-side expiry. An HTTP failure marks the client unconnected; the
// caller decides whether to Connect again.
func (c *Client) Status(ctx context.Context) (*Response, error) {
	c.mu.Lock()
	csrf := c.csrfToken
	c.mu.Unlock()

	resp, err := c.roundTrip(ctx, http.MethodGet, c.baseURL+sessionPath, nil, csrf)
	if err != nil {
		if _, ok := err.(*APIError); ok {
			c.mu.Lock()
			c.connected = false
			c.mu.Unlock()
		}
		return nil, err
	}
	return resp, nil
}

// Disconnect invalidates the session server-side with a best-effort
// DELETE and resets local state. It never fails the caller: a failed
// termination call is logged and the local state is reset regardless.
func (c *Client) Disconnect(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connected {
		if _, err := c.roundTrip(ctx, http.MethodDelete, c.baseURL+sessionPath, nil, c.csrfToken); err != nil {
			c.logger.Debug().Err(err).Msg("session termination failed; resetting local state anyway")
		}
	}

	c.connected = false
	c.services = nil
	c.csrfToken = ""
	if jar, err := cookiejar.New(nil); err == nil {
		c.httpClient.Jar = jar
	}
}

// cookieValue returns the named cookie currently held for the node, or ""
// if the jar has no such cookie.
func (c *Client) cookieValue(name string) string {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return ""
	}
	for _, cookie := range c.httpClient.Jar.Cookies(u) {
		if cookie.Name == name {
			return cookie.Value
		}
	}
	return ""
}
