package shared

import (
	"context"
	"net/http"
	"strings"
)

// IdentityHeader carries the display name of the acting user. It is supplied
// by the caller and only feeds audit records, never authorization decisions.
const IdentityHeader = "X-User-Name"

// DefaultActor is recorded when no identity header is present.
const DefaultActor = "system"

type actorContextKey struct{}

// ContextWithActor stores the actor name in context.
func ContextWithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext extracts the actor name, falling back to DefaultActor.
func ActorFromContext(ctx context.Context) string {
	actor, _ := ctx.Value(actorContextKey{}).(string)
	if actor == "" {
		return DefaultActor
	}
	return actor
}

// IdentityMiddleware resolves the acting user from the identity header.
func IdentityMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor := strings.TrimSpace(r.Header.Get(IdentityHeader))
		if actor == "" {
			actor = DefaultActor
		}
		next.ServeHTTP(w, r.WithContext(ContextWithActor(r.Context(), actor)))
	})
}
