package model

import "context"

type cancelCheckKey struct{}

// CancelCheck reports whether the task behind the current execution has been
// cancelled.
type CancelCheck func(ctx context.Context) bool

// WithCancelCheck attaches a cancellation probe to ctx. Cancellation is
// cooperative: adapters call CheckCancelled before externally visible
// mutations instead of being interrupted.
func WithCancelCheck(ctx context.Context, check CancelCheck) context.Context {
	return context.WithValue(ctx, cancelCheckKey{}, check)
}

// CheckCancelled returns ErrTaskCancelled if the probe attached to ctx
// reports a cancellation. Without a probe it returns nil.
func CheckCancelled(ctx context.Context) error {
	check, ok := ctx.Value(cancelCheckKey{}).(CancelCheck)
	if !ok || check == nil {
		return nil
	}
	if check(ctx) {
		return ErrTaskCancelled
	}
	return nil
}
