package hipchat

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apierrors "hcexport/pkg/errors"
	"hcexport/pkg/logger"
)

// fakeLimiter records limiter traffic without waiting.
type fakeLimiter struct {
	mu        sync.Mutex
	acquires  int
	penalties []time.Duration
}

func (f *fakeLimiter) Acquire() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acquires++
}

func (f *fakeLimiter) Penalize(cooldown time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.penalties = append(f.penalties, cooldown)
}

func newTestClient(limiter *fakeLimiter) *Client {
	return NewClient(5*time.Second, limiter, 5, 30*time.Second, logger.NewTestLogger())
}

func TestGetSendsBearerToken(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	client := newTestClient(&fakeLimiter{})
	_, err := client.Get(server.URL, "abc123")

	require.NoError(t, err)
	assert.Equal(t, "Bearer abc123", gotAuth)
}

func TestGetOmitsAuthorizationWithoutToken(t *testing.T) {
	var sawHeader bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, sawHeader = r.Header["Authorization"]
		w.Write([]byte("data"))
	}))
	defer server.Close()

	client := newTestClient(&fakeLimiter{})
	_, err := client.Get(server.URL, "")

	require.NoError(t, err)
	assert.False(t, sawHeader, "unauthenticated requests must not carry an Authorization header")
}

func TestRetryAfterThrottle(t *testing.T) {
	var requests []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests = append(requests, r.URL.String()+"|"+r.Header.Get("Authorization"))
		if len(requests) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	limiter := &fakeLimiter{}
	client := newTestClient(limiter)
	data, err := client.Get(server.URL+"/v2/user", "abc123")

	require.NoError(t, err)
	assert.Equal(t, "ok", string(data))

	// Exactly one penalty, and the retried request is identical
	require.Len(t, limiter.penalties, 1)
	assert.Equal(t, 30*time.Second, limiter.penalties[0])
	require.Len(t, requests, 2)
	assert.Equal(t, requests[0], requests[1])

	// Both attempts pass through the limiter gate
	assert.Equal(t, 2, limiter.acquires)
}

func TestGiveUpAfterMaxAttempts(t *testing.T) {
	var count int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		count++
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	limiter := &fakeLimiter{}
	client := NewClient(5*time.Second, limiter, 3, time.Second, logger.NewTestLogger())
	_, err := client.Get(server.URL, "abc123")

	require.Error(t, err)
	assert.True(t, apierrors.IsRateLimit(err))
	assert.Equal(t, 3, count)
	// The final attempt fails outright instead of scheduling another cooldown
	assert.Len(t, limiter.penalties, 2)
}

func TestStatusCodeMapping(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		wantType apierrors.ErrorType
	}{
		{"unauthorized", http.StatusUnauthorized, apierrors.ErrorTypeAuth},
		{"forbidden", http.StatusForbidden, apierrors.ErrorTypeAuth},
		{"not found", http.StatusNotFound, apierrors.ErrorTypeNotFound},
		{"server error", http.StatusInternalServerError, apierrors.ErrorTypeServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			client := newTestClient(&fakeLimiter{})
			_, err := client.Get(server.URL, "abc123")

			require.Error(t, err)
			var apiErr *apierrors.Error
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tt.wantType, apiErr.Type)
			assert.Equal(t, tt.status, apiErr.Code)
		})
	}
}

func TestGetJSONReturnsRawBody(t *testing.T) {
	body := `{"items": [], "startIndex": 0}`
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(body))
	}))
	defer server.Close()

	client := newTestClient(&fakeLimiter{})
	var target map[string]interface{}
	raw, err := client.GetJSON(server.URL, "abc123", &target)

	require.NoError(t, err)
	assert.Equal(t, body, string(raw))
	assert.Contains(t, target, "items")
}

func TestGetJSONParseError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>not json</html>"))
	}))
	defer server.Close()

	client := newTestClient(&fakeLimiter{})
	var target map[string]interface{}
	_, err := client.GetJSON(server.URL, "abc123", &target)

	require.Error(t, err)
	var apiErr *apierrors.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, apierrors.ErrorTypeParsing, apiErr.Type)
}
