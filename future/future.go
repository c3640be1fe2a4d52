// Package future provides a minimal channel-backed future type used to
// compose the storage engine's asynchronous operations without blocking
// callers on I/O.
package future

import "context"

// Future is the result of an operation that may still be in flight. It is
// completed exactly once, by the complete function returned from New.
type Future[T any] struct {
	done   chan struct{}
	result T
	err    error
}

// New returns a fresh, incomplete Future along with the function that
// completes it. The complete function must be called exactly once.
func New[T any]() (*Future[T], func(T, error)) {
	f := &Future[T]{done: make(chan struct{})}
	var completed bool
	complete := func(v T, err error) {
		if completed {
			return
		}
		completed = true
		f.result = v
		f.err = err
		close(f.done)
	}
	return f, complete
}

// Completed returns a Future that is already resolved with v, err.
func Completed[T any](v T, err error) *Future[T] {
	f, complete := New[T]()
	complete(v, err)
	return f
}

// Await blocks the calling goroutine until the future resolves or ctx is
// done, whichever happens first.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.result, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Done exposes the completion channel for callers that want to select on
// it directly.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Then attaches a continuation that runs once the future resolves. If the
// future is already resolved, fn runs synchronously on the calling
// goroutine; otherwise it runs on a dedicated goroutine when the result
// becomes available. fn must not block.
func (f *Future[T]) Then(fn func(T, error)) {
	select {
	case <-f.done:
		fn(f.result, f.err)
		return
	default:
	}
	go func() {
		<-f.done
		fn(f.result, f.err)
	}()
}

// Go runs fn on a new goroutine and returns a Future for its result. This
// is the usual way a public operation turns blocking adapter work into a
// Future without blocking its own caller.
func Go[T any](fn func() (T, error)) *Future[T] {
	f, complete := New[T]()
	go func() {
		v, err := fn()
		complete(v, err)
	}()
	return f
}

// Map transforms a resolved value while preserving errors, without
// blocking the calling goroutine.
func Map[T, U any](f *Future[T], fn func(T) (U, error)) *Future[U] {
	out, complete := New[U]()
	f.Then(func(v T, err error) {
		if err != nil {
			var zero U
			complete(zero, err)
			return
		}
		u, mapErr := fn(v)
		complete(u, mapErr)
	})
	return out
}

// FlatMap chains a dependent asynchronous operation onto a resolved value.
func FlatMap[T, U any](f *Future[T], fn func(T) *Future[U]) *Future[U] {
	out, complete := New[U]()
	f.Then(func(v T, err error) {
		if err != nil {
			var zero U
			complete(zero, err)
			return
		}
		fn(v).Then(func(u U, err2 error) {
			complete(u, err2)
		})
	})
	return out
}
