package controlplane

import (
	"context"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// leveledZerolog adapts zerolog to retryablehttp. Errors are logged as
// warnings because the client retries them.
type leveledZerolog struct {
	inner zerolog.Logger
}

func fields(e *zerolog.Event, keysAndValues []interface{}) *zerolog.Event {
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		if k, ok := keysAndValues[i].(string); ok {
			e = e.Interface(k, keysAndValues[i+1])
		}
	}
	return e
}

func (l leveledZerolog) Error(msg string, keysAndValues ...interface{}) {
	fields(l.inner.Warn(), keysAndValues).Msg(msg)
}

func (l leveledZerolog) Warn(msg string, keysAndValues ...interface{}) {
	fields(l.inner.Warn(), keysAndValues).Msg(msg)
}

func (l leveledZerolog) Info(msg string, keysAndValues ...interface{}) {
	fields(l.inner.Debug(), keysAndValues).Msg(msg)
}

func (l leveledZerolog) Debug(msg string, keysAndValues ...interface{}) {
	fields(l.inner.Debug(), keysAndValues).Msg(msg)
}

// Option configures the retrying HTTP client
type Option func(*retryablehttp.Client)

// WithMaxRetries sets the maximum number of retries
func WithMaxRetries(maxRetries int) Option {
	return func(client *retryablehttp.Client) {
		client.RetryMax = maxRetries
	}
}

// WithRetryWait sets the backoff bounds between retries
func WithRetryWait(waitMin, waitMax time.Duration) Option {
	return func(client *retryablehttp.Client) {
		client.RetryWaitMin = waitMin
		client.RetryWaitMax = waitMax
	}
}

// NewHTTPClient returns a stdlib client with retryablehttp underneath. It
// retries connection errors and 5xx responses, but not 429.
func NewHTTPClient(timeout time.Duration, options ...Option) *http.Client {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = 3
	retryClient.RetryWaitMin = 500 * time.Millisecond
	retryClient.RetryWaitMax = 5 * time.Second
	retryClient.Logger = retryablehttp.LeveledLogger(leveledZerolog{inner: log.With().Str("subsystem", "controlplane_http").Logger()})
	retryClient.CheckRetry = retryPolicy

	for _, option := range options {
		option(retryClient)
	}

	client := retryClient.StandardClient()
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	client.Timeout = timeout
	return client
}

func retryPolicy(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if err == nil && resp.StatusCode == http.StatusTooManyRequests {
		return false, nil
	}
	return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
}
