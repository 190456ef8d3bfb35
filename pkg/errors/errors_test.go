package errors

import (
	"errors"
	"testing"
)

func TestNew(t *testing.T) {
	err := New(ErrCodeNotFound, "release not found")
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if err.Code != ErrCodeNotFound {
		t.Errorf("expected code %s, got %s", ErrCodeNotFound, err.Code)
	}
	if err.Message != "release not found" {
		t.Errorf("expected message 'release not found', got %s", err.Message)
	}
	if err.Cause != nil {
		t.Errorf("expected nil cause, got %v", err.Cause)
	}
}

func TestWrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(ErrCodeFetchFailed, "failed to fetch releases", cause)

	if err.Code != ErrCodeFetchFailed {
		t.Errorf("expected code %s, got %s", ErrCodeFetchFailed, err.Code)
	}
	if !errors.Is(err, cause) {
		t.Errorf("expected cause to be wrapped")
	}
}

func TestWrapWithContext(t *testing.T) {
	cause := errors.New("malformed markup")
	ctx := map[string]any{
		"tag": "v20250403",
	}

	err := WrapWithContext(ErrCodeParseFailed, "release body parse failed", cause, ctx)

	if err.Code != ErrCodeParseFailed {
		t.Errorf("expected code %s, got %s", ErrCodeParseFailed, err.Code)
	}
	if err.Context == nil {
		t.Fatal("expected context to be set")
	}
	if err.Context["tag"] != "v20250403" {
		t.Errorf("expected tag to be v20250403")
	}
}

func TestError(t *testing.T) {
	tests := []struct {
		name     string
		err      *StructuredError
		expected string
	}{
		{
			name:     "error without cause",
			err:      New(ErrCodeUnknownAMIType, "unknown AMI type: AL1_x86_64"),
			expected: "[UNKNOWN_AMI_TYPE] unknown AMI type: AL1_x86_64",
		},
		{
			name:     "error with cause",
			err:      Wrap(ErrCodeFetchFailed, "failed", errors.New("root cause")),
			expected: "[FETCH_FAILED] failed: root cause",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.err.Error()
			if got != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestIsCode(t *testing.T) {
	inner := New(ErrCodeParseFailed, "bad body")
	wrapped := Wrap(ErrCodeInternal, "resolver failed", inner)

	if !IsCode(inner, ErrCodeParseFailed) {
		t.Errorf("expected ErrCodeParseFailed")
	}
	// Outermost code wins
	if !IsCode(wrapped, ErrCodeInternal) {
		t.Errorf("expected ErrCodeInternal from outer wrap")
	}
	if IsCode(errors.New("plain"), ErrCodeParseFailed) {
		t.Errorf("plain error should carry no code")
	}
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := Wrap(ErrCodeInternal, "wrapped", cause)

	if !errors.Is(err, cause) {
		t.Errorf("errors.Is should work with Unwrap")
	}
}
