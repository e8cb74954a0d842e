package httputil

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/wonny/krxvalue/pkg/config"
	"github.com/wonny/krxvalue/pkg/logger"
)

// DefaultUserAgent mimics a desktop browser; KRX and Naver reject bot agents
const DefaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

const (
	defaultTimeout = 30 * time.Second
	firstBackoff   = time.Second
	maxBackoff     = 10 * time.Second
)

// Client paces, retries and logs every outbound request to the market data sites.
// ⭐ SSOT: 모든 HTTP 요청은 이 클라이언트를 통해서만 수행
type Client struct {
	http    *http.Client
	limiter *rate.Limiter // nil = unpaced
	logger  *logger.Logger

	retries int
	backoff time.Duration
}

// New builds the shared client from the gateway section of the config
func New(cfg *config.Config, log *logger.Logger) *Client {
	gw := cfg.Gateway

	timeout := gw.RequestTimeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	c := &Client{
		http:    &http.Client{Timeout: timeout},
		logger:  log.Component("httputil"),
		retries: max(gw.MaxRetries, 0),
		backoff: firstBackoff,
	}
	if gw.RatePerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(gw.RatePerSecond), max(gw.Burst, 1))
	}
	return c
}

// DisableRetry makes every request single-shot (tests, probes)
func (c *Client) DisableRetry() *Client {
	c.retries = 0
	return c
}

// Get issues a GET with browser-like headers
func (c *Client) Get(ctx context.Context, target string, headers map[string]string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("build GET %s: %w", target, err)
	}
	setHeaders(req, headers)
	return c.Do(req)
}

// PostForm issues a form-encoded POST; the body is replayed on retry
func (c *Client) PostForm(ctx context.Context, target string, form url.Values, headers map[string]string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build POST %s: %w", target, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded; charset=UTF-8")
	setHeaders(req, headers)
	return c.Do(req)
}

// Do sends req, retrying network errors, 5xx and 429 up to the configured count.
// Each attempt takes a limiter token. The last response is returned as-is so
// callers still see the final status code.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	start := time.Now()
	log := c.logger.WithFields(map[string]interface{}{
		"method": req.Method,
		"url":    req.URL.Redacted(),
	})

	wait := c.backoff
	for attempt := 0; ; attempt++ {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, fmt.Errorf("rate limit: %w", err)
			}
		}
		if attempt > 0 && req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, fmt.Errorf("rewind request body: %w", err)
			}
			req.Body = body
		}

		resp, err := c.http.Do(req)
		if (err == nil && !retryable(resp.StatusCode)) || attempt >= c.retries {
			fields := map[string]interface{}{"attempts": attempt + 1, "duration": time.Since(start)}
			if err != nil {
				log.WithFields(fields).WithError(err).Warn("HTTP request failed")
				return nil, err
			}
			fields["status_code"] = resp.StatusCode
			log.WithFields(fields).Debug("HTTP request completed")
			return resp, nil
		}

		delay := wait
		if resp != nil {
			if ra := retryAfter(resp.Header.Get("Retry-After")); ra > 0 {
				delay = min(ra, maxBackoff)
			}
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
		}
		log.WithFields(map[string]interface{}{"attempt": attempt + 1, "delay": delay}).Warn("Retrying HTTP request")

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		wait = min(wait*2, maxBackoff)
	}
}

// retryable reports whether a status is worth another attempt
func retryable(status int) bool {
	return status >= http.StatusInternalServerError || status == http.StatusTooManyRequests
}

// retryAfter reads a delta-seconds Retry-After header; HTTP dates are ignored
func retryAfter(v string) time.Duration {
	secs, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

func setHeaders(req *http.Request, headers map[string]string) {
	req.Header.Set("User-Agent", DefaultUserAgent)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
}
