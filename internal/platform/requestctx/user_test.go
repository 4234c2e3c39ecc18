package requestctx

import (
	"context"
	"testing"
)

func TestPrincipalRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := WithPrincipal(context.Background(), Principal{UserID: "user-42", SessionID: "sess-1"})
	got, ok := PrincipalFromContext(ctx)
	if !ok {
		t.Fatal("expected principal")
	}
	if got.UserID != "user-42" || got.SessionID != "sess-1" {
		t.Fatalf("principal = %+v", got)
	}
	if UserIDFromContext(ctx) != "user-42" {
		t.Fatalf("UserIDFromContext = %q", UserIDFromContext(ctx))
	}
}

func TestPrincipalMissing(t *testing.T) {
	t.Parallel()

	if _, ok := PrincipalFromContext(context.Background()); ok {
		t.Fatal("expected no principal")
	}
	if got := UserIDFromContext(nil); got != "" {
		t.Fatalf("nil context user = %q", got)
	}
	if _, ok := PrincipalFromContext(WithPrincipal(context.Background(), Principal{})); ok {
		t.Fatal("empty principal should not count as authenticated")
	}
}

func TestWithPrincipalNilContext(t *testing.T) {
	t.Parallel()

	ctx := WithPrincipal(nil, Principal{UserID: "user-99"})
	if got := UserIDFromContext(ctx); got != "user-99" {
		t.Fatalf("UserIDFromContext = %q, want %q", got, "user-99")
	}
}
