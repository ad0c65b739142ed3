package graphcodec

import (
	"context"
	"fmt"
	"reflect"
)

// Action is a unit of work that can be captured and invoked later against a
// target. Isolated actions are registered bean types: their fields are the
// captured state and the bean type selects the code that runs.
type Action[T any] interface {
	Execute(ctx context.Context, target T) error
}

// IsolatedAction is an action frozen into a handle. Every Instantiate yields
// an independent copy of the captured state.
type IsolatedAction[T any] struct {
	s *Serializer
	h *Handle
}

// Isolate captures action with s. The action's dynamic type must be handled
// by a bean registry bound into the serializer's table.
func Isolate[T any](ctx context.Context, s *Serializer, action Action[T]) (*IsolatedAction[T], error) {
	if isNil(action) {
		return nil, fmt.Errorf("%w: nil action", ErrUnsupportedBean)
	}
	if !s.bindings.isBean(reflect.TypeOf(action)) {
		return nil, fmt.Errorf("%w: action %T is not a registered bean", ErrUnsupportedBean, action)
	}
	h, err := s.SerializeContext(ctx, action)
	if err != nil {
		return nil, err
	}
	return &IsolatedAction[T]{s: s, h: h}, nil
}

// RestoreAction wraps a previously produced handle, for example one loaded
// from a store in another process.
func RestoreAction[T any](s *Serializer, h *Handle) (*IsolatedAction[T], error) {
	if h == nil {
		return nil, fmt.Errorf("%w: nil handle", ErrSessionState)
	}
	if want := s.bindings.Fingerprint(); h.Fingerprint() != want {
		return nil, fmt.Errorf("%w: handle %s, table %s", ErrFingerprintMismatch, h.Fingerprint(), want)
	}
	return &IsolatedAction[T]{s: s, h: h}, nil
}

// Handle returns the captured form of the action.
func (a *IsolatedAction[T]) Handle() *Handle { return a.h }

// Instantiate decodes a fresh action from the handle.
func (a *IsolatedAction[T]) Instantiate(ctx context.Context) (Action[T], error) {
	v, err := a.s.DeserializeContext(ctx, a.h)
	if err != nil {
		return nil, err
	}
	action, ok := v.(Action[T])
	if !ok {
		return nil, fmt.Errorf("%w: %T does not implement the action interface", ErrTypeMismatch, v)
	}
	return action, nil
}

// Run instantiates a fresh action and executes it against target.
func (a *IsolatedAction[T]) Run(ctx context.Context, target T) error {
	action, err := a.Instantiate(ctx)
	if err != nil {
		return err
	}
	return action.Execute(ctx, target)
}
