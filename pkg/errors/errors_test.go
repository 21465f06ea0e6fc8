package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
)

func TestErrorFormatting(t *testing.T) {
	err := &Error{Type: ErrorTypeAuth, Message: "authentication failed", Code: 401}
	want := "auth error (code 401): authentication failed"
	if err.Error() != want {
		t.Errorf("Expected %q, got %q", want, err.Error())
	}

	err = &Error{Type: ErrorTypeParsing, Message: "bad payload"}
	want = "parsing error: bad payload"
	if err.Error() != want {
		t.Errorf("Expected %q, got %q", want, err.Error())
	}
}

func TestIsUsage(t *testing.T) {
	err := Usage("user %q does not exist", "bob")
	if !IsUsage(err) {
		t.Error("Expected a usage error")
	}
	if IsUsage(&Error{Type: ErrorTypeNetwork, Message: "down"}) {
		t.Error("Expected a network error to not be usage")
	}
	if IsUsage(nil) {
		t.Error("Expected nil to not be usage")
	}
}

func TestIsUsageTraversesWrapping(t *testing.T) {
	inner := Usage("bad token")
	wrapped := fmt.Errorf("export failed: %w", inner)
	if !IsUsage(wrapped) {
		t.Error("Expected IsUsage to see through fmt.Errorf wrapping")
	}

	joined := fmt.Errorf("2 users failed: %w", stderrors.Join(
		stderrors.New("network down"),
		inner,
	))
	if !IsUsage(joined) {
		t.Error("Expected IsUsage to see through joined errors")
	}
}

func TestIsRateLimit(t *testing.T) {
	err := &Error{Type: ErrorTypeRateLimit, Message: "quota exceeded", Code: 429}
	if !IsRateLimit(err) {
		t.Error("Expected a rate limit error")
	}
	if IsRateLimit(Usage("nope")) {
		t.Error("Expected a usage error to not be rate limit")
	}
}

func TestRetryability(t *testing.T) {
	if !IsRetryable(ErrorTypeRateLimit) {
		t.Error("Expected throttling to be retryable")
	}
	for _, et := range []ErrorType{ErrorTypeNetwork, ErrorTypeAuth, ErrorTypeServerError, ErrorTypeUsage} {
		if IsRetryable(et) {
			t.Errorf("Expected %s to not be retryable", et)
		}
	}
	if !IsRetryableStatusCode(429) {
		t.Error("Expected 429 to be retryable")
	}
	if IsRetryableStatusCode(500) || IsRetryableStatusCode(503) {
		t.Error("Expected only 429 to be retryable")
	}
}
