package papi

import "context"

// authRequest is the body of the session-creation call. Services names the
// resource trees the session should be authorized for.
type authRequest struct {
	Username string   `json:"username"`
	Password string   `json:"password"`
	Services []string `json:"services"`
}

// SessionInfo is the payload served by the session resource on creation
// and introspection. Timeouts are seconds remaining; a negative inactive
// timeout means the session has no inactivity bound.
type SessionInfo struct {
	Username        string   `json:"username"`
	Services        []string `json:"services"`
	TimeoutAbsolute int      `json:"timeout_absolute"`
	TimeoutInactive int      `json:"timeout_inactive"`
}

// WithSession runs fn with a connected Client and guarantees exactly one
// Disconnect on every exit path, including a panic inside fn (the panic
// propagates after cleanup). Errors from fn are returned unchanged.
func WithSession(ctx context.Context, cfg *Config, fn func(*Client) error, opts ...Option) error {
	client, err := NewFromConfig(cfg, opts...)
	if err != nil {
		return err
	}
	defer client.Disconnect(context.WithoutCancel(ctx))

	if _, err := client.Connect(ctx); err != nil {
		return err
	}
	return fn(client)
}
