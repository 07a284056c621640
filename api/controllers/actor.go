package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/vouchernet-backend/api/middleware"
	"github.com/angelmondragon/vouchernet-backend/api/responses"
	"github.com/angelmondragon/vouchernet-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/vouchernet-backend/pkg/errors"
	"github.com/angelmondragon/vouchernet-backend/pkg/logger"
)

// requireActor writes 401 and returns ok=false when the request carries no identity.
func requireActor(w http.ResponseWriter, r *http.Request, logg *logger.Logger) (uuid.UUID, enums.Role, bool) {
	id, role, ok := middleware.Actor(r.Context())
	if !ok {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing"))
		return uuid.Nil, "", false
	}
	return id, role, true
}

func serviceUnavailable(w http.ResponseWriter, r *http.Request, logg *logger.Logger, name string) {
	responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeDependency, name+" unavailable"))
}
