package shared

import "context"

type actorContextKey struct{}

// ContextWithActor stores the acting user id in context. The id is an opaque
// reference supplied by the outer layer; it is never an authorization decision.
func ContextWithActor(ctx context.Context, actorID int64) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actorID)
}

// ActorFromContext extracts the acting user id, or 0 when absent.
func ActorFromContext(ctx context.Context) int64 {
	id, _ := ctx.Value(actorContextKey{}).(int64)
	return id
}
