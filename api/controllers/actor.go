package controllers

import (
	"context"

	"github.com/google/uuid"

	"github.com/wavecrate/wavecrate-backend/api/middleware"
	"github.com/wavecrate/wavecrate-backend/internal/catalog"
	"github.com/wavecrate/wavecrate-backend/pkg/enums"
	pkgerrors "github.com/wavecrate/wavecrate-backend/pkg/errors"
)

// requireUserID extracts the authenticated user's id from the request context.
func requireUserID(ctx context.Context) (uuid.UUID, error) {
	raw := middleware.UserIDFromContext(ctx)
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}

	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid user id")
	}

	return id, nil
}

func catalogActor(ctx context.Context) (catalog.Actor, error) {
	userID, err := requireUserID(ctx)
	if err != nil {
		return catalog.Actor{}, err
	}

	role := enums.UserRole(middleware.RoleFromContext(ctx))
	if !role.IsValid() {
		role = enums.UserRoleStandard
	}

	return catalog.Actor{UserID: userID, Role: role}, nil
}
