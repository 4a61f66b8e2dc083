package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestTokensRoundTrip(t *testing.T) {
	tokens := NewTokens("secret", time.Hour)

	signed, err := tokens.Generate(42, 3)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	claims, err := tokens.Validate(signed)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if claims.UserID != 42 || claims.RoleID != 3 {
		t.Errorf("claims = %+v, want user 42 role 3", claims)
	}
}

func TestTokensRejectInvalid(t *testing.T) {
	tokens := NewTokens("secret", time.Hour)
	forged, _ := NewTokens("other", time.Hour).Generate(1, 1)
	expired, _ := NewTokens("secret", time.Nanosecond).Generate(1, 1)
	time.Sleep(time.Millisecond)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{UserID: 1})
	unsigned, _ := none.SignedString(jwt.UnsafeAllowNoneSignatureType)

	tests := []struct {
		name  string
		token string
	}{
		{"garbage", "not-a-token"},
		{"wrong secret", forged},
		{"expired", expired},
		{"unsigned", unsigned},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tokens.Validate(tt.token); !errors.Is(err, ErrInvalidToken) {
				t.Errorf("Validate() error = %v, want ErrInvalidToken", err)
			}
		})
	}
}

func TestPrincipalContext(t *testing.T) {
	if p := FromContext(context.Background()); p != nil {
		t.Errorf("FromContext(empty) = %+v, want nil", p)
	}
	var nobody *Principal
	if nobody.Can("anything") {
		t.Error("nil principal has a permission")
	}

	p := &Principal{UserID: 7, Permissions: map[string]bool{"bookings-manage": true}}
	ctx := WithPrincipal(context.Background(), p)

	got := FromContext(ctx)
	if got != p {
		t.Fatalf("FromContext() = %+v, want %+v", got, p)
	}
	if !got.Can("bookings-manage") || got.Can("properties-manage") {
		t.Errorf("unexpected permissions: %+v", got.Permissions)
	}
}
