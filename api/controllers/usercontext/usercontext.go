package usercontext

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/rafaelcosta/muralize-backend/api/middleware"
	pkgerrors "github.com/rafaelcosta/muralize-backend/pkg/errors"
)

// ResolveUserID extracts the authenticated user id from the request context.
func ResolveUserID(r *http.Request) (uuid.UUID, error) {
	userID := middleware.UserIDFromContext(r.Context())
	if userID == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	id, err := uuid.Parse(userID)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid user id")
	}
	return id, nil
}
