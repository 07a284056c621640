package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/vouchernet-backend/pkg/config"
	"github.com/angelmondragon/vouchernet-backend/pkg/enums"
)

func testConfig(minutes int) config.JWTConfig {
	return config.JWTConfig{Secret: "secret", Issuer: "vouchernet", ExpirationMinutes: minutes}
}

func TestMintAndParseRoundTripsIdentity(t *testing.T) {
	cfg := testConfig(30)
	now := time.Now().UTC()
	nodeID := uuid.New()

	token, err := MintAccessToken(cfg, now, Identity{NodeID: nodeID, Role: enums.RoleLink})
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	claims, err := ParseAccessToken(cfg, token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	got := claims.Identity()
	if got.NodeID != nodeID || got.Role != enums.RoleLink || got.TokenID == "" {
		t.Fatalf("unexpected identity %+v", got)
	}
	if claims.Subject != nodeID.String() {
		t.Fatalf("subject should mirror node id, got %s", claims.Subject)
	}
	if d := claims.ExpiresAt.Sub(now.Add(30 * time.Minute)); d > time.Second || d < -time.Second {
		t.Fatalf("unexpected expiry %v", claims.ExpiresAt)
	}
}

func TestParseRejectsTamperedAndForeignTokens(t *testing.T) {
	cfg := testConfig(10)
	token, err := MintAccessToken(cfg, time.Now(), Identity{NodeID: uuid.New(), Role: enums.RoleCabang})
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if _, err := ParseAccessToken(cfg, token+"x"); err == nil {
		t.Fatal("expected signature failure")
	}
	other := cfg
	other.Issuer = "someone-else"
	if _, err := ParseAccessToken(other, token); !errors.Is(err, jwt.ErrTokenInvalidIssuer) {
		t.Fatalf("expected issuer mismatch, got %v", err)
	}
}

func TestParseHonoursLeeway(t *testing.T) {
	cfg := testConfig(1)
	token, err := MintAccessToken(cfg, time.Now().Add(-70*time.Second), Identity{NodeID: uuid.New(), Role: enums.RoleOwner})
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if _, err := ParseAccessToken(cfg, token); !errors.Is(err, jwt.ErrTokenExpired) {
		t.Fatalf("expected expiry without leeway, got %v", err)
	}
	cfg.Leeway = time.Minute
	if _, err := ParseAccessToken(cfg, token); err != nil {
		t.Fatalf("leeway should absorb ten seconds of skew: %v", err)
	}
}

func TestMintRejectsIncompleteIdentity(t *testing.T) {
	cfg := testConfig(5)
	if _, err := MintAccessToken(cfg, time.Now(), Identity{NodeID: uuid.New(), Role: "Manager"}); !errors.Is(err, ErrUnknownRole) {
		t.Fatalf("expected unknown role, got %v", err)
	}
	if _, err := MintAccessToken(cfg, time.Now(), Identity{Role: enums.RoleLink}); !errors.Is(err, ErrMissingNode) {
		t.Fatalf("expected missing node, got %v", err)
	}
	if _, err := MintAccessToken(config.JWTConfig{}, time.Now(), Identity{NodeID: uuid.New(), Role: enums.RoleLink}); !errors.Is(err, ErrMissingSecret) {
		t.Fatalf("expected missing secret, got %v", err)
	}
}
