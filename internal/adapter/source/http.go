package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/couchcryptid/storm-data-shared/retry"
)

const (
	maxAttempts = 4
	maxBackoff  = 5 * time.Second
)

type httpStatusError struct {
	Code int
	Body string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("status %d: %s", e.Code, e.Body)
}

// HTTPSource downloads the dataset from a URL.
type HTTPSource struct {
	url     string
	client  *http.Client
	backoff time.Duration
	logger  *slog.Logger
}

// NewHTTPSource creates a source that GETs url with the given per-request timeout.
func NewHTTPSource(url string, timeout time.Duration, logger *slog.Logger) *HTTPSource {
	return &HTTPSource{
		url:     url,
		client:  &http.Client{Timeout: timeout},
		backoff: 200 * time.Millisecond,
		logger:  logger,
	}
}

// String identifies the source in logs.
func (s *HTTPSource) String() string { return s.url }

// Fetch returns the response body. Network errors, 429 and 5xx responses are
// retried with exponential backoff.
func (s *HTTPSource) Fetch(ctx context.Context) (string, error) {
	body, err := s.doWithRetry(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: fetch %s: %w", ErrUnreadable, s.url, err)
	}
	return body, nil
}

func (s *HTTPSource) doWithRetry(ctx context.Context) (string, error) {
	backoff := s.backoff
	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		body, err := s.get(ctx)
		if err == nil {
			return body, nil
		}
		lastErr = err

		if !retryable(err) || attempt == maxAttempts {
			return "", lastErr
		}
		s.logger.Warn("source fetch failed, retrying", "url", s.url, "attempt", attempt, "error", err)

		if !retry.SleepWithContext(ctx, backoff) {
			return "", ctx.Err()
		}
		backoff = retry.NextBackoff(backoff, maxBackoff)
	}
	return "", lastErr
}

func (s *HTTPSource) get(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "text/csv, text/plain, */*")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", &httpStatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	return string(b), nil
}

func retryable(err error) bool {
	var he *httpStatusError
	if errors.As(err, &he) {
		switch he.Code {
		case http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway,
			http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return true
		}
		return false
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
