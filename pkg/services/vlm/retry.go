package vlm

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	openai "github.com/meguminnnnnnnnn/go-openai"
	olla "github.com/ollama/ollama/api"
	"github.com/sirupsen/logrus"
)

// Retrying wraps a Caller with rate limiting and exponential backoff.
// Every attempt, including the first, takes a limiter slot.
type Retrying struct {
	next       Caller
	limiter    *Limiter
	maxRetries int
	initial    time.Duration
	log        logrus.FieldLogger
}

// NewRetrying wraps next. initial is the first backoff interval.
func NewRetrying(next Caller, limiter *Limiter, maxRetries int, initial time.Duration, log logrus.FieldLogger) *Retrying {
	if maxRetries < 0 {
		maxRetries = 0
	}
	if log == nil {
		discard := logrus.New()
		discard.SetOutput(io.Discard)
		log = discard
	}
	return &Retrying{next: next, limiter: limiter, maxRetries: maxRetries, initial: initial, log: log}
}

func (r *Retrying) Name() string {
	return r.next.Name()
}

func (r *Retrying) Describe(ctx context.Context, img Image, prompt string) (string, error) {
	var out string
	op := func() error {
		if err := r.limiter.Acquire(ctx); err != nil {
			return backoff.Permanent(err)
		}
		text, err := r.next.Describe(ctx, img, prompt)
		if err != nil {
			if !Retryable(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		out = text
		return nil
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = r.initial
	eb.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(r.maxRetries)), ctx)

	notify := func(err error, wait time.Duration) {
		r.log.WithFields(logrus.Fields{
			"provider": r.next.Name(),
			"wait":     wait.String(),
		}).WithError(err).Warn("model request failed, retrying")
	}
	if err := backoff.RetryNotify(op, policy, notify); err != nil {
		return "", err
	}
	return out, nil
}

// Retryable reports whether a failed model request is worth repeating.
// Context errors and client-side HTTP errors other than 429 are not.
func Retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if code, ok := statusCode(err); ok {
		return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
	}
	return true
}

func statusCode(err error) (int, bool) {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode, true
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode, true
	}
	var ollamaErr olla.StatusError
	if errors.As(err, &ollamaErr) {
		return ollamaErr.StatusCode, true
	}
	return 0, false
}
