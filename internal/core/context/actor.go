// Package context provides request-scoped values extraction.
package context

import (
	"context"
)

// Actor identifies who initiated a stock mutation. Ledger entries record
// the actor for the audit trail; authentication itself is handled outside
// the core.
type Actor struct {
	ID   string
	Name string
}

type actorContextKey struct{}

// WithActor adds Actor to context.
func WithActor(ctx context.Context, actor *Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// GetActor returns Actor from context.
func GetActor(ctx context.Context) *Actor {
	if v, ok := ctx.Value(actorContextKey{}).(*Actor); ok {
		return v
	}
	return nil
}

// GetActorID returns actor ID from context or "system" when absent
// (scheduled write-offs and reorder runs have no interactive user).
func GetActorID(ctx context.Context) string {
	if a := GetActor(ctx); a != nil {
		return a.ID
	}
	return "system"
}
