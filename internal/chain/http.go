package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/OKaluzny/devicewallet/internal/errs"
	"github.com/OKaluzny/devicewallet/internal/metrics"
	"github.com/pkg/errors"
	"github.com/sony/gobreaker"
	"go.uber.org/ratelimit"
	"go.uber.org/zap"
)

var (
	// MaxNumOfFailingRequests is how many requests the breaker sees before
	// it may trip.
	MaxNumOfFailingRequests = 10
	// FailingRatio is the failure ratio that trips the breaker.
	FailingRatio = 0.6
)

var errServer = errors.New("server error")

// httpClient performs single round trips against one coin's backend.
// Transport errors and 5xx count against the circuit breaker; any other
// status is returned to the caller to interpret.
type httpClient struct {
	coin    string
	base    string
	http    *http.Client
	cb      *gobreaker.CircuitBreaker
	limiter ratelimit.Limiter
	metrics *metrics.Metrics
	logger  *zap.Logger
}

type response struct {
	status int
	body   []byte
}

func newHTTPClient(coin string, cfg Config, logger *zap.Logger) *httpClient {
	limiter := ratelimit.NewUnlimited()
	if cfg.RateLimit > 0 {
		limiter = ratelimit.New(cfg.RateLimit)
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}
	base := cfg.BaseURL
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return &httpClient{
		coin:    coin,
		base:    base,
		http:    hc,
		cb:      newCircuitBreaker(coin, logger),
		limiter: limiter,
		metrics: cfg.Metrics,
		logger:  logger,
	}
}

func newCircuitBreaker(coin string, logger *zap.Logger) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name: coin,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return int(counts.Requests) > MaxNumOfFailingRequests && ratio >= FailingRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("backend circuit breaker state changed",
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
}

func (c *httpClient) get(ctx context.Context, op, path string) (*response, error) {
	return c.do(ctx, op, http.MethodGet, path, nil)
}

func (c *httpClient) postJSON(ctx context.Context, op, path string, payload any) (*response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, "encode request")
	}
	return c.do(ctx, op, http.MethodPost, path, body)
}

func (c *httpClient) do(ctx context.Context, op, method, path string, body []byte) (*response, error) {
	url := c.base + path
	started := time.Now()
	// Take cannot be interrupted; a context cancelled while waiting stops
	// the request before it is sent.
	c.limiter.Take()
	if err := ctx.Err(); err != nil {
		c.metrics.ObserveBackend(c.coin, op, "error", started)
		return nil, &errs.BackendError{Op: op, URL: url, Err: err}
	}

	out, err := c.cb.Execute(func() (interface{}, error) {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, url, reader)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		rs, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer rs.Body.Close()

		data, err := io.ReadAll(rs.Body)
		if err != nil {
			return nil, errors.Wrap(err, "read response body")
		}
		resp := &response{status: rs.StatusCode, body: data}
		if rs.StatusCode >= http.StatusInternalServerError {
			return resp, errServer
		}
		return resp, nil
	})

	resp, _ := out.(*response)
	switch {
	case err == nil:
	case errors.Is(err, errServer):
		err = nil
	default:
		c.metrics.ObserveBackend(c.coin, op, "error", started)
		c.logger.Warn("backend request failed", zap.String("op", op), zap.String("url", url), zap.Error(err))
		return nil, &errs.BackendError{Op: op, URL: url, Err: err}
	}

	c.metrics.ObserveBackend(c.coin, op, outcomeOf(resp.status), started)
	c.logger.Debug("backend request",
		zap.String("op", op),
		zap.String("method", method),
		zap.String("url", url),
		zap.Int("status", resp.status),
		zap.Duration("took", time.Since(started)),
	)
	return resp, nil
}

func outcomeOf(status int) string {
	switch {
	case status == http.StatusNotFound:
		return "not_found"
	case status >= 200 && status < 300:
		return "ok"
	default:
		return "error"
	}
}

// ok returns a BackendError unless resp is a 2xx.
func (c *httpClient) ok(op, path string, resp *response) error {
	if resp.status >= 200 && resp.status < 300 {
		return nil
	}
	return &errs.BackendError{Op: op, URL: c.base + path, StatusCode: resp.status, Body: string(resp.body)}
}

// decode unmarshals a 2xx body into v.
func (c *httpClient) decode(op, path string, resp *response, v any) error {
	if err := c.ok(op, path, resp); err != nil {
		return err
	}
	if err := json.Unmarshal(resp.body, v); err != nil {
		return &errs.BackendError{
			Op: op, URL: c.base + path, StatusCode: resp.status,
			Body: string(resp.body), Err: errors.Wrap(err, "malformed response"),
		}
	}
	return nil
}

// notFound reports whether an account query found nothing.
func notFound(resp *response) bool {
	if resp.status == http.StatusNotFound {
		return true
	}
	b := bytes.TrimSpace(resp.body)
	return resp.status < 300 && (len(b) == 0 || string(b) == "null" || string(b) == "{}")
}
