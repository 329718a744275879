// Package channel holds the delivery adapters used by the dispatcher: HTTP
// provider clients for push, email and SMS, plus log-only fallbacks for
// environments without a provider.
package channel

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// ErrProviderRejected is returned when a provider answers with a non-2xx status
var ErrProviderRejected = errors.New("provider rejected request")

// ProviderOptions configures an HTTP provider client
type ProviderOptions struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	RetryCount int
	RetryWait  time.Duration
}

func newHTTPClient(opts ProviderOptions) *resty.Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.RetryWait <= 0 {
		opts.RetryWait = 200 * time.Millisecond
	}

	client := resty.New().
		SetBaseURL(opts.BaseURL).
		SetTimeout(opts.Timeout).
		SetRetryCount(opts.RetryCount).
		SetRetryWaitTime(opts.RetryWait).
		SetRetryMaxWaitTime(4*opts.RetryWait).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err == nil && r.StatusCode() >= 500
		}).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	if opts.APIKey != "" {
		client.SetAuthToken(opts.APIKey)
	}
	return client
}

// DeliveryError is a failed provider call together with the number of HTTP
// attempts spent on it, retries included
type DeliveryError struct {
	attempts int
	err      error
}

func (e *DeliveryError) Error() string { return e.err.Error() }

func (e *DeliveryError) Unwrap() error { return e.err }

// Attempts returns how many times the provider was called
func (e *DeliveryError) Attempts() int { return e.attempts }

func checkResponse(provider string, resp *resty.Response, err error) error {
	if err != nil {
		return &DeliveryError{
			attempts: attempts(resp),
			err:      fmt.Errorf("failed to call %s provider: %w", provider, err),
		}
	}
	if resp.IsError() {
		return &DeliveryError{
			attempts: attempts(resp),
			err:      fmt.Errorf("%w: %s returned %d: %s", ErrProviderRejected, provider, resp.StatusCode(), resp.String()),
		}
	}
	return nil
}

func attempts(resp *resty.Response) int {
	if resp == nil || resp.Request == nil || resp.Request.Attempt < 1 {
		return 1
	}
	return resp.Request.Attempt
}
