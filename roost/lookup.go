package roost

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/lmittmann/tint"
	"golang.org/x/time/rate"
)

// lookupResponseLimit caps how much of a lookup response body is read.
const lookupResponseLimit = 4 << 20

// ErrLookupRateLimited indicates the local limiter (or the remote API)
// refused the request. The command layer tells the user to retry shortly.
var ErrLookupRateLimited = errors.New("lookup rate limit exceeded")

// errLookupNoResult indicates the remote API answered 404 for the query.
// Clients translate this into a domain ErrNotFound.
var errLookupNoResult = errors.New("no result")

// lookupClient is the shared base for the external information API clients:
// a rate-limited, retrying JSON GET. Each client owns its own limiter so
// one saturated API doesn't starve the others.
type lookupClient struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	maxRetries int
	timeout    time.Duration
	logger     *slog.Logger
}

func newLookupClient(
	httpClient *http.Client,
	perMinute int,
	maxRetries int,
	timeout time.Duration,
	logger *slog.Logger,
) lookupClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if maxRetries < 1 {
		maxRetries = 1
	}
	if timeout <= 0 {
		timeout = DefaultLookupTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return lookupClient{
		httpClient: httpClient,
		limiter: rate.NewLimiter(
			rate.Every(time.Minute/time.Duration(perMinute)),
			perMinute,
		),
		maxRetries: maxRetries,
		timeout:    timeout,
		logger:     logger,
	}
}

// getJSON performs a GET with query params, decoding the JSON response
// into out. Each attempt is bounded by the client timeout. Transport errors
// and 5xx responses are retried with a short backoff; 429 aborts immediately
// as rate-limited, 404 as errLookupNoResult.
func (c lookupClient) getJSON(
	ctx context.Context,
	endpoint string,
	params url.Values,
	out any,
) error {
	if !c.limiter.Allow() {
		return ErrLookupRateLimited
	}
	target := endpoint
	if len(params) > 0 {
		target = fmt.Sprintf("%s?%s", endpoint, params.Encode())
	}

	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * 500 * time.Millisecond):
			}
		}
		attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
		req, err := http.NewRequestWithContext(
			attemptCtx,
			http.MethodGet,
			target,
			nil,
		)
		if err != nil {
			cancel()
			return err
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			cancel()
			lastErr = err
			c.logger.Warn(
				"lookup request failed",
				"url", endpoint,
				"attempt", attempt+1,
				tint.Err(err),
			)
			continue
		}
		body, readErr := io.ReadAll(io.LimitReader(resp.Body, lookupResponseLimit))
		_ = resp.Body.Close()
		cancel()

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			return fmt.Errorf("%w: %s", ErrLookupRateLimited, endpoint)
		case resp.StatusCode == http.StatusNotFound:
			return fmt.Errorf("%w: %s", errLookupNoResult, endpoint)
		case resp.StatusCode >= 500:
			lastErr = fmt.Errorf("%s: status %d", endpoint, resp.StatusCode)
			continue
		case resp.StatusCode != http.StatusOK:
			return fmt.Errorf("%s: status %d", endpoint, resp.StatusCode)
		}
		if readErr != nil {
			lastErr = readErr
			continue
		}
		return json.Unmarshal(body, out)
	}
	return fmt.Errorf("lookup failed after %d attempts: %w", c.maxRetries, lastErr)
}
