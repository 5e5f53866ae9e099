package athena

import (
	"log/slog"

	"golang.org/x/time/rate"
)

// Defaults for client options.
const (
	DefaultMaxResultRows  = 1000
	DefaultRequestsPerSec = 5
	DefaultBurst          = 5
)

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithWorkGroup runs every statement in the named Athena workgroup.
func WithWorkGroup(name string) Option {
	return func(c *Client) { c.workGroup = name }
}

// WithDatabase sets the database (and optionally the data catalog) statements
// run against.
func WithDatabase(catalog, database string) Option {
	return func(c *Client) {
		c.dataCatalog = catalog
		c.database = database
	}
}

// WithMaxResultRows caps the number of rows GetResults returns.
func WithMaxResultRows(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxResultRows = n
		}
	}
}

// WithRateLimit paces Athena API calls. A non-positive rps disables pacing.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithRequestToken overrides the generator for StartQueryExecution client
// request tokens.
func WithRequestToken(fn func() string) Option {
	return func(c *Client) {
		if fn != nil {
			c.requestToken = fn
		}
	}
}
