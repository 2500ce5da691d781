package papi

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// Service selects which of the two PAPI resource trees a client is scoped
// to. Platform addresses cluster management resources, Namespace addresses
// filesystem objects.
type Service string

const (
	ServicePlatform  Service = "platform"
	ServiceNamespace Service = "namespace"
)

const (
	// DefaultPort is the PAPI port OneFS listens on.
	DefaultPort = 8080
	// DefaultTimeout bounds each request when no timeout is configured.
	DefaultTimeout = 15 * time.Second

	defaultUserAgent = "OneFS PlatformAPI Client for Go"
)

// Config holds the connection parameters for a single cluster node. All
// fields except credentials have workable defaults. Secure controls TLS
// certificate verification: clusters ship self-signed certificates, so
// verification is off unless explicitly enabled.
type Config struct {
	Host     string        `validate:"required"`
	Username string        `validate:"required"`
	Password string        `validate:"required"`
	Port     int           `validate:"gte=1,lte=65535"`
	Service  Service       `validate:"-"`
	Timeout  time.Duration `validate:"gte=0"`
	Secure   bool          `validate:"-"`
}

var configValidator = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the configuration and applies defaults for zero-valued
// optional fields.
func (c *Config) Validate() error {
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.Service == "" {
		c.Service = ServicePlatform
	}
	if c.Service != ServicePlatform && c.Service != ServiceNamespace {
		return fmt.Errorf("invalid service %q: must be %q or %q", c.Service, ServicePlatform, ServiceNamespace)
	}
	if err := configValidator.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Option configures a Client at construction time.
type Option func(*Client)

// WithPort overrides the default PAPI port.
func WithPort(port int) Option {
	return func(c *Client) {
		c.config.Port = port
	}
}

// WithTimeout bounds each request, including the implicit connect issued
// before a verb call on an unconnected client.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.config.Timeout = timeout
	}
}

// WithService scopes the client to the platform or namespace tree.
func WithService(service Service) Option {
	return func(c *Client) {
		c.config.Service = service
	}
}

// WithSecure enables TLS certificate verification.
func WithSecure(secure bool) Option {
	return func(c *Client) {
		c.config.Secure = secure
	}
}

// WithLogger installs a logger for per-request debug lines. The default
// logger discards everything.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithUserAgent overrides the User-Agent header sent on every request.
func WithUserAgent(agent string) Option {
	return func(c *Client) {
		c.userAgent = agent
	}
}
