package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/fundi-app/fundi-backend/pkg/enums"
)

// AccessTokenClaims is the typed JWT minted by the identity service. The
// engine only parses and trusts it; issuing lives outside this repository.
type AccessTokenClaims struct {
	UserID uuid.UUID       `json:"user_id"`
	Role   enums.ActorRole `json:"role"`
	jwt.RegisteredClaims
}
