package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"
)

func TestHTTPStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "nil", err: nil, want: http.StatusOK},
		{name: "invalid", err: E(KindInvalidInput, "bad"), want: http.StatusBadRequest},
		{name: "unauthorized", err: E(KindUnauthorized, "who"), want: http.StatusUnauthorized},
		{name: "forbidden", err: E(KindForbidden, "no"), want: http.StatusForbidden},
		{name: "not found", err: E(KindNotFound, "gone"), want: http.StatusNotFound},
		{name: "conflict", err: E(KindConflict, "dup"), want: http.StatusConflict},
		{name: "rate limited", err: E(KindRateLimited, "slow"), want: http.StatusTooManyRequests},
		{name: "unavailable", err: E(KindUnavailable, "down"), want: http.StatusServiceUnavailable},
		{name: "wrapped typed", err: fmt.Errorf("handler: %w", E(KindNotFound, "gone")), want: http.StatusNotFound},
		{name: "plain", err: stderrors.New("boom"), want: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := HTTPStatus(tt.err); got != tt.want {
				t.Fatalf("HTTPStatus() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestWrapKeepsCause(t *testing.T) {
	t.Parallel()

	cause := stderrors.New("listing not found")
	err := Wrap(KindNotFound, cause)
	if !stderrors.Is(err, cause) {
		t.Fatal("expected wrapped cause to match errors.Is")
	}
	if err.Error() != "listing not found" {
		t.Fatalf("message = %q, want cause message", err.Error())
	}
	if Wrap(KindNotFound, nil) != nil {
		t.Fatal("expected nil cause to stay nil")
	}
}

func TestPublicMessageHidesUnknownErrors(t *testing.T) {
	t.Parallel()

	if got := PublicMessage(stderrors.New("sql: connection refused")); got != "Internal Server Error" {
		t.Fatalf("public message = %q", got)
	}
	if got := PublicMessage(E(KindInvalidInput, "title is required")); got != "title is required" {
		t.Fatalf("public message = %q", got)
	}
}
