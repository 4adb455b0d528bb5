package controllers

import (
	"context"

	"github.com/google/uuid"

	"github.com/fundi-app/fundi-backend/api/middleware"
	"github.com/fundi-app/fundi-backend/pkg/enums"
	pkgerrors "github.com/fundi-app/fundi-backend/pkg/errors"
)

// actorFromContext resolves the authenticated caller seeded by the auth
// middleware.
func actorFromContext(ctx context.Context) (uuid.UUID, enums.ActorRole, error) {
	raw := middleware.UserIDFromContext(ctx)
	if raw == "" {
		return uuid.Nil, "", pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	userID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, "", pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid user id")
	}
	role := enums.ActorRole(middleware.RoleFromContext(ctx))
	if !role.IsValid() {
		return uuid.Nil, "", pkgerrors.New(pkgerrors.CodeUnauthorized, "actor role missing")
	}
	return userID, role, nil
}
