package allocation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// ErrAlreadyAllocated is returned when the remote system reports the question
// was already allocated by a concurrent actor. Callers treat this as a benign
// race, not a failure.
var ErrAlreadyAllocated = errors.New("question already allocated")

// StatusError is a non-2xx response from the allocation service.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("allocation service returned status %d: %s", e.StatusCode, e.Body)
}

// Config holds settings for the allocation client. The bearer token is issued
// out of band with a short, days-scale lifetime.
type Config struct {
	BaseURL    string
	Token      string
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration
}

// DefaultConfig returns default allocation client settings.
func DefaultConfig() Config {
	return Config{
		Timeout:    10 * time.Second,
		MaxRetries: 3,
		RetryDelay: 200 * time.Millisecond,
	}
}

// Client marks questions as allocated via the credentialed remote endpoint.
type Client struct {
	cfg    Config
	client *http.Client
	clock  clockwork.Clock
}

// NewClient creates an allocation client.
func NewClient(cfg Config) *Client {
	return &Client{
		cfg: cfg,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		clock: clockwork.NewRealClock(),
	}
}

// Allocate issues PUT /allocate/{questionID}. Transport errors and 5xx
// responses are retried with a linear backoff; a 409 conflict maps to
// ErrAlreadyAllocated and is never retried.
func (c *Client) Allocate(ctx context.Context, questionID string) error {
	var lastErr error

	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := c.cfg.RetryDelay * time.Duration(attempt)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-c.clock.After(delay):
			}
		}

		err := c.put(ctx, questionID)
		if err == nil {
			if attempt > 0 {
				log.Info().
					Int("attempt", attempt+1).
					Str("question_id", questionID).
					Msg("allocation succeeded after retry")
			}
			return nil
		}
		if !retryable(err) {
			return err
		}

		lastErr = err
		log.Error().
			Err(err).
			Int("attempt", attempt+1).
			Str("question_id", questionID).
			Msg("allocation attempt failed, retrying")
	}

	return fmt.Errorf("allocation failed after %d attempts: %w", c.cfg.MaxRetries+1, lastErr)
}

func (c *Client) put(ctx context.Context, questionID string) error {
	endpoint := c.cfg.BaseURL + "/allocate/" + url.PathEscape(questionID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.Token)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach allocation service: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusConflict:
		return ErrAlreadyAllocated
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}
}

// retryable reports whether an allocation attempt is worth repeating.
// Conflicts and other 4xx responses are terminal; 5xx and transport errors
// are not.
func retryable(err error) bool {
	if errors.Is(err, ErrAlreadyAllocated) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode >= 500
	}
	return true
}
