package middleware

import (
	"context"

	"github.com/google/uuid"
)

type (
	actorKey     struct{}
	requestIDKey struct{}
)

// actor is what AdminAuth learned about the caller.
type actor struct {
	userID string
	role   string
}

func actorFrom(ctx context.Context) actor {
	if ctx == nil {
		return actor{}
	}
	a, _ := ctx.Value(actorKey{}).(actor)
	return a
}

func UserIDFromContext(ctx context.Context) string { return actorFrom(ctx).userID }

func RoleFromContext(ctx context.Context) string { return actorFrom(ctx).role }

// ActorFromContext returns the caller as the performed_by value services
// record, or nil when the request is anonymous.
func ActorFromContext(ctx context.Context) *uuid.UUID {
	id, err := uuid.Parse(actorFrom(ctx).userID)
	if err != nil || id == uuid.Nil {
		return nil
	}
	return &id
}

// WithActor seeds the caller the way AdminAuth does.
func WithActor(ctx context.Context, userID, role string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, actorKey{}, actor{userID: userID, role: role})
}

// RequestIDFromContext returns the id RequestID assigned, if any.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
