package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestAppError_ErrorFormat(t *testing.T) {
	plain := New(Transport, "backend unreachable")
	if got := plain.Error(); got != "[TRANSPORT] backend unreachable" {
		t.Fatalf("Error() = %q", got)
	}

	wrapped := Wrap(Persistence, "save queue", errors.New("disk full"))
	if got := wrapped.Error(); got != "[PERSISTENCE] save queue: disk full" {
		t.Fatalf("Error() = %q", got)
	}
	if got := Newf(InvalidInput, "status %q", "bogus").Error(); got != `[INVALID_INPUT] status "bogus"` {
		t.Fatalf("Newf Error() = %q", got)
	}
}

func TestIs_WalksWrappedChain(t *testing.T) {
	inner := New(Unauthorized, "token expired")
	outer := fmt.Errorf("update work order: %w", Wrap(Transport, "request failed", inner))

	if !Is(outer, Transport) {
		t.Fatalf("Is(outer, Transport) = false, want true")
	}
	if !Is(outer, Unauthorized) {
		t.Fatalf("Is(outer, Unauthorized) = false, want true")
	}
	if Is(outer, Decode) {
		t.Fatalf("Is(outer, Decode) = true, want false")
	}
	if Is(errors.New("plain"), Transport) {
		t.Fatalf("plain error reported as Transport")
	}
	if Is(nil, Transport) {
		t.Fatalf("nil reported as Transport")
	}
}

func TestCodeOfAndRecoverable(t *testing.T) {
	cases := []struct {
		name        string
		err         error
		code        Code
		recoverable bool
	}{
		{"transport", New(Transport, "x"), Transport, true},
		{"persistence", fmt.Errorf("load: %w", New(Persistence, "x")), Persistence, true},
		{"decode", New(Decode, "x"), Decode, true},
		{"unauthorized", New(Unauthorized, "x"), Unauthorized, false},
		{"invalid", New(InvalidInput, "x"), InvalidInput, false},
		{"plain", errors.New("x"), "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := CodeOf(tc.err); got != tc.code {
				t.Fatalf("CodeOf = %q, want %q", got, tc.code)
			}
			if got := IsRecoverable(tc.err); got != tc.recoverable {
				t.Fatalf("IsRecoverable = %v, want %v", got, tc.recoverable)
			}
		})
	}
}

func TestUnwrapExposesCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(Transport, "request failed", cause)
	if !errors.Is(err, cause) {
		t.Fatalf("errors.Is(err, cause) = false, want true")
	}
	if !IsUnauthorized(New(Unauthorized, "expired")) {
		t.Fatalf("IsUnauthorized = false, want true")
	}
}
