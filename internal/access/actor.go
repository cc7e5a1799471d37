package access

import (
	"context"

	"github.com/Kyz7/vanilla/internal/models"
)

// Actor is the authenticated caller of a request.
type Actor interface {
	GetID() uint
	GetTenantID() uint
	HasRole(name string) bool
	HasPermission(action, model string) bool
}

var _ Actor = (*models.User)(nil)

type actorKey struct{}

func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, a)
}

// ActorFrom returns the request actor, or nil for anonymous calls.
func ActorFrom(ctx context.Context) Actor {
	if ctx == nil {
		return nil
	}
	a, _ := ctx.Value(actorKey{}).(Actor)
	return a
}
