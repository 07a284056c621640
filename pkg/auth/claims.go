package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/vouchernet-backend/pkg/enums"
)

// Identity is what a caller proves with a token: the hierarchy node it acts
// as and that node's role.
type Identity struct {
	NodeID uuid.UUID
	Role   enums.Role
	// TokenID becomes the jti; minted when blank.
	TokenID string
}

// AccessTokenClaims is the JWT body. The subject mirrors NodeID.
type AccessTokenClaims struct {
	NodeID uuid.UUID  `json:"node_id"`
	Role   enums.Role `json:"role"`
	jwt.RegisteredClaims
}

func (c *AccessTokenClaims) Identity() Identity {
	return Identity{NodeID: c.NodeID, Role: c.Role, TokenID: c.ID}
}

func (id Identity) validate() error {
	if id.NodeID == uuid.Nil {
		return ErrMissingNode
	}
	if !id.Role.IsValid() {
		return ErrUnknownRole
	}
	return nil
}
