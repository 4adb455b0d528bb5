package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/fundi-app/fundi-backend/pkg/config"
	"github.com/fundi-app/fundi-backend/pkg/enums"
)

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{Secret: "test-secret", Issuer: "fundi-identity"}
}

func signToken(t *testing.T, cfg config.JWTConfig, claims AccessTokenClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(cfg.Secret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return signed
}

func TestParseAccessToken(t *testing.T) {
	cfg := testJWTConfig()
	userID := uuid.New()
	raw := signToken(t, cfg, AccessTokenClaims{
		UserID: userID,
		Role:   enums.ActorRoleProvider,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    cfg.Issuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})

	claims, err := ParseAccessToken(cfg, raw)
	if err != nil {
		t.Fatalf("ParseAccessToken returned unexpected error: %v", err)
	}
	if claims.UserID != userID {
		t.Fatalf("unexpected user id %s", claims.UserID)
	}
	if claims.Role != enums.ActorRoleProvider {
		t.Fatalf("unexpected role %s", claims.Role)
	}
}

func TestParseAccessTokenRejectsWrongSecret(t *testing.T) {
	cfg := testJWTConfig()
	raw := signToken(t, config.JWTConfig{Secret: "other-secret", Issuer: cfg.Issuer}, AccessTokenClaims{
		UserID: uuid.New(),
		Role:   enums.ActorRoleClient,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    cfg.Issuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})

	if _, err := ParseAccessToken(cfg, raw); err == nil {
		t.Fatal("expected token signed with wrong secret to fail")
	}
}

func TestParseAccessTokenRejectsWrongIssuer(t *testing.T) {
	cfg := testJWTConfig()
	raw := signToken(t, cfg, AccessTokenClaims{
		UserID: uuid.New(),
		Role:   enums.ActorRoleClient,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "someone-else",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})

	if _, err := ParseAccessToken(cfg, raw); err == nil {
		t.Fatal("expected token with wrong issuer to fail")
	}
}

func TestParseAccessTokenRejectsExpired(t *testing.T) {
	cfg := testJWTConfig()
	raw := signToken(t, cfg, AccessTokenClaims{
		UserID: uuid.New(),
		Role:   enums.ActorRoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    cfg.Issuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	})

	if _, err := ParseAccessToken(cfg, raw); err == nil {
		t.Fatal("expected expired token to fail")
	}
}

func TestParseAccessTokenRejectsUnknownRole(t *testing.T) {
	cfg := testJWTConfig()
	raw := signToken(t, cfg, AccessTokenClaims{
		UserID: uuid.New(),
		Role:   enums.ActorRole("superuser"),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    cfg.Issuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})

	if _, err := ParseAccessToken(cfg, raw); err == nil {
		t.Fatal("expected unknown role to fail")
	}
}
