package authorization

import (
	"context"
	"errors"

	"go.uber.org/fx"
)

// Service decides whether a castle operator may act on an object.
type Service interface {
	Authorize(ctx context.Context, actor Actor, object string, action string) error
}

// Actor is the caller as seen by the policy engine.
type Actor struct {
	UserID string
	Role   string
}

var (
	ErrInvalidActor  = errors.New("invalid_actor")
	ErrInvalidObject = errors.New("invalid_object")
	ErrInvalidAction = errors.New("invalid_action")
	ErrForbidden     = errors.New("forbidden")
)

var Module = fx.Module("authorization",
	fx.Provide(NewEnforcer),
	fx.Provide(NewService),
)
