package shared

import "context"

type contextKey string

const (
	scopeContextKey contextKey = "odyssey.scope"
	actorContextKey contextKey = "odyssey.actor"
)

// ContextWithScope stores the request scope.
func ContextWithScope(ctx context.Context, scope Scope) context.Context {
	return context.WithValue(ctx, scopeContextKey, scope)
}

// ScopeFromContext returns the scope stored by ContextWithScope. It fails
// with ErrScopeRequired when none is present.
func ScopeFromContext(ctx context.Context) (Scope, error) {
	scope, ok := ctx.Value(scopeContextKey).(Scope)
	if !ok {
		return Scope{}, ErrScopeRequired
	}
	if err := scope.Validate(); err != nil {
		return Scope{}, err
	}
	return scope, nil
}

// ContextWithActor stores the acting user id.
func ContextWithActor(ctx context.Context, actorID int64) context.Context {
	return context.WithValue(ctx, actorContextKey, actorID)
}

// ActorFromContext returns the acting user id, or zero for system calls.
func ActorFromContext(ctx context.Context) int64 {
	id, _ := ctx.Value(actorContextKey).(int64)
	return id
}
