package reddit

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strconv"
	"sync/atomic"
	"syscall"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/flipcheck/flipcheck/pkg/config"
	"github.com/flipcheck/flipcheck/pkg/logging"
	"github.com/flipcheck/flipcheck/pkg/telemetry"
)

// HTTPClient performs GET requests for JSON documents with bounded exponential-backoff retry
type HTTPClient struct {
	client      *http.Client
	userAgent   string
	timeout     time.Duration
	maxAttempts int
	baseDelay   time.Duration
	logger      *zap.Logger
	verbose     atomic.Bool
	requests    *telemetry.Counter
}

// NewHTTPClient creates a retrying JSON client from the Reddit configuration
func NewHTTPClient(cfg *config.RedditConfig, logger *zap.Logger) *HTTPClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	attempts := cfg.MaxAttempts
	if attempts <= 0 {
		attempts = 3
	}

	c := &HTTPClient{
		client:      &http.Client{},
		userAgent:   cfg.UserAgent,
		timeout:     timeout,
		maxAttempts: attempts,
		baseDelay:   cfg.RetryBaseDelay,
		logger:      logger,
		requests:    telemetry.NewCounter("reddit.requests", "Upstream HTTP attempts by outcome"),
	}
	c.verbose.Store(cfg.Verbose)
	return c
}

// SetVerbose toggles per-attempt logging at info level
func (c *HTTPClient) SetVerbose(v bool) {
	c.verbose.Store(v)
}

// FetchJSON fetches url and decodes the JSON body into v. Failures are *FetchError.
func (c *HTTPClient) FetchJSON(ctx context.Context, url string, v interface{}) error {
	ctx, span := telemetry.StartSpan(ctx, "reddit.fetch_json")
	defer span.End()
	span.SetAttributes(attribute.String("http.url", url))

	verbose := c.verbose.Load() || logging.IsVerbose(ctx)

	var lastErr *FetchError
	for attempt := 0; attempt < c.maxAttempts; attempt++ {
		if attempt > 0 {
			delay := c.baseDelay * time.Duration(1<<(attempt-1))
			logging.Detail(c.logger, verbose, "Retrying upstream request",
				zap.String("url", url),
				zap.Int("attempt", attempt+1),
				zap.Duration("delay", delay),
				zap.Error(lastErr))
			if err := sleep(ctx, delay); err != nil {
				lastErr = &FetchError{URL: url, Kind: ErrFetch, Err: err}
				break
			}
		}

		logging.Detail(c.logger, verbose, "Fetching", zap.String("url", url), zap.Int("attempt", attempt+1))

		err := c.do(ctx, url, v)
		if err == nil {
			c.requests.Add(ctx, 1, "outcome", "ok")
			return nil
		}
		c.requests.Add(ctx, 1, "outcome", outcome(err))
		lastErr = err

		// The caller gave up; nothing left to retry for
		if ctx.Err() != nil || !retryable(err) {
			break
		}
	}

	span.RecordError(lastErr)
	span.SetStatus(codes.Error, lastErr.Error())
	return lastErr
}

func (c *HTTPClient) do(ctx context.Context, url string, v interface{}) *FetchError {
	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return &FetchError{URL: url, Kind: ErrFetch, Err: err}
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return transportError(ctx, url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Drain so the connection can be reused
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return StatusError(url, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		if reqCtx.Err() != nil && ctx.Err() == nil {
			return &FetchError{URL: url, Kind: ErrTimeout, Err: err}
		}
		return &FetchError{URL: url, Kind: ErrFetch, Err: err}
	}
	return nil
}

// transportError classifies a failure that happened before a response arrived.
// An aborted connection counts as a timeout.
func transportError(ctx context.Context, url string, err error) *FetchError {
	if ctx.Err() != nil {
		return &FetchError{URL: url, Kind: ErrFetch, Err: ctx.Err()}
	}

	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, syscall.ECONNABORTED) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &FetchError{URL: url, Kind: ErrTimeout, Err: err}
	}
	return &FetchError{URL: url, Kind: ErrFetch, Err: err}
}

func retryable(err *FetchError) bool {
	switch err.StatusCode {
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	case 0:
	default:
		return false
	}

	if errors.Is(err, ErrTimeout) {
		return true
	}
	if err.Err == nil {
		return false
	}

	var dnsErr *net.DNSError
	return errors.As(err.Err, &dnsErr) ||
		errors.Is(err.Err, syscall.ECONNRESET) ||
		errors.Is(err.Err, syscall.ECONNABORTED) ||
		errors.Is(err.Err, io.ErrUnexpectedEOF) ||
		errors.Is(err.Err, io.EOF)
}

func outcome(err *FetchError) string {
	if err.StatusCode != 0 {
		return strconv.Itoa(err.StatusCode)
	}
	if errors.Is(err, ErrTimeout) {
		return "timeout"
	}
	return "error"
}

// sleep waits for d or until ctx is cancelled
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
