package hipchat

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	apierrors "hcexport/pkg/errors"
	"hcexport/pkg/logger"
	"hcexport/pkg/ratelimit"
)

// Client issues authenticated GET requests against the HipChat v2 API.
// Every request, including attachment downloads, funnels through the shared
// rate limiter; the client knows nothing about pagination semantics.
type Client struct {
	httpClient    *http.Client
	limiter       ratelimit.Limiter
	maxAttempts   int
	retryCooldown time.Duration
	log           logger.Logger
}

// NewClient creates a Client. The limiter is passed by handle, never a
// package-level singleton, so tests can inject a fake clock.
func NewClient(timeout time.Duration, limiter ratelimit.Limiter, maxAttempts int, retryCooldown time.Duration, log logger.Logger) *Client {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Client{
		httpClient:    &http.Client{Timeout: timeout},
		limiter:       limiter,
		maxAttempts:   maxAttempts,
		retryCooldown: retryCooldown,
		log:           log,
	}
}

// do performs a rate-limited GET. A 429 penalizes the limiter and reissues
// the identical request once the cooldown ends, up to maxAttempts total.
func (c *Client) do(rawURL, token string) (*http.Response, error) {
	for attempt := 1; ; attempt++ {
		c.limiter.Acquire()

		req, err := http.NewRequest(http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, &apierrors.Error{
				Type:    apierrors.ErrorTypeUnknown,
				Message: fmt.Sprintf("failed to create request: %v", err),
			}
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}

		start := time.Now()
		resp, err := c.httpClient.Do(req)
		if err != nil {
			c.log.ErrorWithFields("HTTP request failed", map[string]interface{}{
				"url":      rawURL,
				"error":    err.Error(),
				"duration": time.Since(start),
			})
			return nil, &apierrors.Error{
				Type:    apierrors.ErrorTypeNetwork,
				Message: fmt.Sprintf("network error: %v", err),
			}
		}

		remaining := resp.Header.Get("X-RateLimit-Remaining")
		if remaining == "" {
			remaining = "unlimited"
		}
		c.log.DebugWithFields("HTTP request completed", map[string]interface{}{
			"url":       rawURL,
			"status":    resp.StatusCode,
			"api_limit": remaining,
			"duration":  time.Since(start),
		})

		if resp.StatusCode == http.StatusTooManyRequests {
			resp.Body.Close()
			if attempt >= c.maxAttempts {
				return nil, &apierrors.Error{
					Type:    apierrors.ErrorTypeRateLimit,
					Message: fmt.Sprintf("quota exceeded, giving up after %d attempts", attempt),
					Code:    http.StatusTooManyRequests,
				}
			}
			c.limiter.Penalize(c.retryCooldown)
			continue
		}

		return resp, nil
	}
}

// Stream performs a GET and returns the response body for chunked reads.
// The caller owns closing the reader.
func (c *Client) Stream(rawURL, token string) (io.ReadCloser, error) {
	resp, err := c.do(rawURL, token)
	if err != nil {
		return nil, err
	}
	if err := checkResponseStatus(resp); err != nil {
		resp.Body.Close()
		return nil, err
	}
	return resp.Body, nil
}

// Get performs a GET and returns the full response body.
func (c *Client) Get(rawURL, token string) ([]byte, error) {
	body, err := c.Stream(rawURL, token)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, &apierrors.Error{
			Type:    apierrors.ErrorTypeNetwork,
			Message: fmt.Sprintf("failed to read response body: %v", err),
		}
	}
	return data, nil
}

// GetJSON performs a GET and decodes the JSON response into target,
// returning the raw body alongside for callers that persist it.
func (c *Client) GetJSON(rawURL, token string, target interface{}) ([]byte, error) {
	data, err := c.Get(rawURL, token)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, target); err != nil {
		preview := string(data)
		if len(preview) > 200 {
			preview = preview[:200] + "..."
		}
		c.log.ErrorWithFields("failed to parse JSON response", map[string]interface{}{
			"url":          rawURL,
			"error":        err.Error(),
			"body_preview": preview,
		})
		return nil, &apierrors.Error{
			Type:    apierrors.ErrorTypeParsing,
			Message: fmt.Sprintf("failed to parse JSON: %v", err),
		}
	}
	return data, nil
}

// checkResponseStatus maps a non-2xx response to a typed error. 429 never
// reaches this point; it is consumed by the retry loop in do.
func checkResponseStatus(resp *http.Response) error {
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return &apierrors.Error{
			Type:    apierrors.ErrorTypeAuth,
			Message: "authentication failed; check your token",
			Code:    resp.StatusCode,
		}
	case resp.StatusCode == http.StatusNotFound:
		return &apierrors.Error{
			Type:    apierrors.ErrorTypeNotFound,
			Message: "resource not found",
			Code:    resp.StatusCode,
		}
	case resp.StatusCode >= 500:
		return &apierrors.Error{
			Type:    apierrors.ErrorTypeServerError,
			Message: "server error",
			Code:    resp.StatusCode,
		}
	default:
		return &apierrors.Error{
			Type:    apierrors.ErrorTypeUnknown,
			Message: fmt.Sprintf("unexpected status code: %d", resp.StatusCode),
			Code:    resp.StatusCode,
		}
	}
}
