package auth

import (
	"context"
	"testing"
)

func TestPrincipalContextRoundTrip(t *testing.T) {
	if _, ok := PrincipalFromContext(context.Background()); ok {
		t.Fatal("expected no principal in empty context")
	}
	ctx := ContextWithPrincipal(context.Background(), Principal{ID: 5, Email: "e@x.io"})
	p, ok := PrincipalFromContext(ctx)
	if !ok || p.ID != 5 {
		t.Fatalf("unexpected principal %+v ok=%v", p, ok)
	}

	ctx = ContextWithCredential(ctx, "sid")
	if c, ok := CredentialFromContext(ctx); !ok || c != "sid" {
		t.Fatalf("unexpected credential %q ok=%v", c, ok)
	}
}
