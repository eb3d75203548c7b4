package coscope

import "context"

// Producer is a callback-terminated call with its arguments already
// bound. It must pass the produced value to yield, and may destroy the
// value once yield returns. The context carries the producer's task,
// so a producer may call Task.IO to run blocking work off-loop.
type Producer[T any] func(ctx context.Context, yield func(T)) error

// Func adapts a callback API that cannot fail.
func Func[T any](fn func(yield func(T))) Producer[T] {
	return func(_ context.Context, yield func(T)) error {
		fn(yield)
		return nil
	}
}

// Call adapts a callback API whose only parameter is the callback.
func Call[T any](fn func(func(T)) error) Producer[T] {
	return func(_ context.Context, yield func(T)) error {
		return fn(yield)
	}
}

// Bind adapts fn(a, cb).
func Bind[A, T any](fn func(A, func(T)) error, a A) Producer[T] {
	return func(_ context.Context, yield func(T)) error {
		return fn(a, yield)
	}
}

// Bind2 adapts fn(a, b, cb).
func Bind2[A, B, T any](fn func(A, B, func(T)) error, a A, b B) Producer[T] {
	return func(_ context.Context, yield func(T)) error {
		return fn(a, b, yield)
	}
}

// Bind3 adapts fn(a, b, c, cb).
func Bind3[A, B, C, T any](fn func(A, B, C, func(T)) error, a A, b B, c C) Producer[T] {
	return func(_ context.Context, yield func(T)) error {
		return fn(a, b, c, yield)
	}
}
