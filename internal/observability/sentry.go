package observability

import (
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/ledgerline/propops/internal/conf"
)

// Reporter forwards unexpected failures to Sentry. The zero value and a nil
// *Reporter are disabled and drop everything.
type Reporter struct {
	enabled bool
}

// InitSentry configures the global Sentry client. An empty DSN returns a
// disabled reporter without touching the SDK.
func InitSentry(cfg conf.SentryConfig, release string) (*Reporter, error) {
	if cfg.DSN == "" {
		return &Reporter{}, nil
	}
	err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Environment:      cfg.Environment,
		Release:          release,
		AttachStacktrace: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to init sentry: %w", err)
	}
	return &Reporter{enabled: true}, nil
}

// Enabled reports whether events are sent.
func (r *Reporter) Enabled() bool { return r != nil && r.enabled }

// CaptureError reports err with the given tags.
func (r *Reporter) CaptureError(err error, tags map[string]string) {
	if !r.Enabled() || err == nil {
		return
	}
	sentry.WithScope(func(scope *sentry.Scope) {
		for k, v := range tags {
			scope.SetTag(k, v)
		}
		sentry.CaptureException(err)
	})
}

// Flush waits up to timeout for buffered events to be sent.
func (r *Reporter) Flush(timeout time.Duration) {
	if !r.Enabled() {
		return
	}
	sentry.Flush(timeout)
}
