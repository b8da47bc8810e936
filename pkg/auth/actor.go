package auth

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/learnhub-backend/pkg/enums"
)

// Actor is the authenticated caller as seen by the services.
type Actor struct {
	UserID uuid.UUID
	Role   enums.Role
}

func (a Actor) IsAdmin() bool {
	return a.Role == enums.RoleAdmin
}

// CanAccessLearner reports whether the actor may act on the learner's records.
func (a Actor) CanAccessLearner(learnerID uuid.UUID) bool {
	return a.IsAdmin() || (a.UserID != uuid.Nil && a.UserID == learnerID)
}

// ActorFromClaims converts parsed token claims into an Actor.
func ActorFromClaims(claims *AccessTokenClaims) Actor {
	if claims == nil {
		return Actor{}
	}
	return Actor{UserID: claims.UserID, Role: claims.Role}
}
