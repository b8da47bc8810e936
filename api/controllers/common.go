package controllers

import (
	"net/http"

	"github.com/angelmondragon/learnhub-backend/api/middleware"
	"github.com/angelmondragon/learnhub-backend/api/responses"
	"github.com/angelmondragon/learnhub-backend/pkg/auth"
	pkgerrors "github.com/angelmondragon/learnhub-backend/pkg/errors"
	"github.com/angelmondragon/learnhub-backend/pkg/logger"
)

// requireActor writes 401 and returns false when the route runs without an authenticated caller.
func requireActor(w http.ResponseWriter, r *http.Request, logg *logger.Logger) (auth.Actor, bool) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required"))
		return auth.Actor{}, false
	}
	return actor, true
}

func serviceUnavailable(w http.ResponseWriter, r *http.Request, logg *logger.Logger, name string) {
	responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, name+" service unavailable"))
}
