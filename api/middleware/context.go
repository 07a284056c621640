package middleware

import (
	"context"

	"github.com/google/uuid"

	"github.com/angelmondragon/vouchernet-backend/pkg/enums"
)

type actorKey struct{}

type actor struct {
	nodeID uuid.UUID
	role   enums.Role
}

// WithActor attaches the caller's hierarchy node and role, as Auth does after
// verifying a token.
func WithActor(ctx context.Context, nodeID uuid.UUID, role enums.Role) context.Context {
	return context.WithValue(ctx, actorKey{}, actor{nodeID: nodeID, role: role})
}

// Actor returns the authenticated caller. ok is false for anonymous requests
// and for identities with an unknown role.
func Actor(ctx context.Context) (uuid.UUID, enums.Role, bool) {
	a, found := ctx.Value(actorKey{}).(actor)
	if !found || a.nodeID == uuid.Nil || !a.role.IsValid() {
		return uuid.Nil, "", false
	}
	return a.nodeID, a.role, true
}

// subjectOf keys per-caller state: the node id when authenticated, "" otherwise.
func subjectOf(ctx context.Context) string {
	if id, _, ok := Actor(ctx); ok {
		return id.String()
	}
	return ""
}
