package observability

import (
	"fmt"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
)

type SentryOptions struct {
	DSN              string
	Environment      string
	Release          string
	TracesSampleRate float64
}

// InitSentry configures the global sentry client. It is a no-op without a DSN.
func InitSentry(opts SentryOptions) (bool, error) {
	if strings.TrimSpace(opts.DSN) == "" {
		return false, nil
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              opts.DSN,
		Environment:      opts.Environment,
		Release:          opts.Release,
		EnableTracing:    true,
		TracesSampleRate: opts.TracesSampleRate,
		EnableLogs:       true,
	})
	if err != nil {
		return false, fmt.Errorf("failed to initialize sentry: %w", err)
	}
	return true, nil
}

func FlushSentry() {
	sentry.Flush(2 * time.Second)
}
