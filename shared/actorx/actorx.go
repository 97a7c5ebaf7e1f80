package actorx

import (
	"context"
	"strings"
)

type contextKey struct{}

// Actor identifies who issued a command.
type Actor struct {
	ID     string
	Source string
	Roles  []string
}

// SystemID is the actor used for commands raised by the service itself
// (scheduler, inbound consumer).
const SystemID = "system"

func WithActor(ctx context.Context, actor Actor) context.Context {
	actor.ID = strings.TrimSpace(actor.ID)
	return context.WithValue(ctx, contextKey{}, actor)
}

func FromContext(ctx context.Context) (Actor, bool) {
	if v := ctx.Value(contextKey{}); v != nil {
		if a, ok := v.(Actor); ok {
			return a, true
		}
	}
	return Actor{}, false
}

// IDFromContext returns the actor id, or SystemID when none is attached.
func IDFromContext(ctx context.Context) string {
	if a, ok := FromContext(ctx); ok && a.ID != "" {
		return a.ID
	}
	return SystemID
}

func WithSystem(ctx context.Context, source string) context.Context {
	return WithActor(ctx, Actor{ID: SystemID, Source: source})
}
