package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/vouchernet-backend/pkg/config"
)

var (
	ErrMissingSecret = errors.New("jwt secret is not configured")
	ErrMissingNode   = errors.New("token identity has no node id")
	ErrUnknownRole   = errors.New("token identity has an unknown role")
)

var signingMethod = jwt.SigningMethodHS256

// MintAccessToken signs a token for id. Production tokens come from the
// identity service; the seed command and tests mint their own.
func MintAccessToken(cfg config.JWTConfig, now time.Time, id Identity) (string, error) {
	if cfg.Secret == "" {
		return "", ErrMissingSecret
	}
	if cfg.ExpirationMinutes <= 0 {
		return "", fmt.Errorf("jwt expiration must be positive, got %d minutes", cfg.ExpirationMinutes)
	}
	if err := id.validate(); err != nil {
		return "", err
	}
	jti := strings.TrimSpace(id.TokenID)
	if jti == "" {
		jti = uuid.NewString()
	}

	claims := AccessTokenClaims{
		NodeID: id.NodeID,
		Role:   id.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Issuer:    cfg.Issuer,
			Subject:   id.NodeID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(cfg.ExpirationMinutes) * time.Minute)),
		},
	}
	signed, err := jwt.NewWithClaims(signingMethod, claims).SignedString([]byte(cfg.Secret))
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return signed, nil
}

// ParseAccessToken verifies signature, issuer and expiry (with cfg.Leeway of
// clock skew) and returns the claims.
func ParseAccessToken(cfg config.JWTConfig, raw string) (*AccessTokenClaims, error) {
	if cfg.Secret == "" {
		return nil, ErrMissingSecret
	}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{signingMethod.Alg()}),
		jwt.WithIssuer(cfg.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(cfg.Leeway),
	)
	claims := &AccessTokenClaims{}
	if _, err := parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return []byte(cfg.Secret), nil
	}); err != nil {
		return nil, err
	}
	if claims.Subject != "" && claims.Subject != claims.NodeID.String() {
		return nil, fmt.Errorf("token subject %q does not match node id", claims.Subject)
	}
	if err := claims.Identity().validate(); err != nil {
		return nil, err
	}
	return claims, nil
}
