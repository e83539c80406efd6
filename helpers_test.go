package rxkit_test

import (
	"sync"

	"github.com/gokit/rxkit"
)

// recorder is a subscriber recording every signal it receives, it requests
// initial on subscribe unless initial is zero.
type recorder[T any] struct {
	initial int64

	ml        sync.Mutex
	sub       rxkit.Subscription
	items     []T
	err       error
	completed int
	failed    int
}

func newRecorder[T any](initial int64) *recorder[T] {
	return &recorder[T]{initial: initial}
}

func (r *recorder[T]) OnSubscribe(s rxkit.Subscription) {
	r.ml.Lock()
	r.sub = s
	r.ml.Unlock()

	if r.initial > 0 {
		s.Request(r.initial)
	}
}

func (r *recorder[T]) OnNext(v T) {
	r.ml.Lock()
	r.items = append(r.items, v)
	r.ml.Unlock()
}

func (r *recorder[T]) OnError(err error) {
	r.ml.Lock()
	r.err = err
	r.failed++
	r.ml.Unlock()
}

func (r *recorder[T]) OnComplete() {
	r.ml.Lock()
	r.completed++
	r.ml.Unlock()
}

func (r *recorder[T]) request(n int64) {
	r.ml.Lock()
	sub := r.sub
	r.ml.Unlock()
	sub.Request(n)
}

func (r *recorder[T]) cancel() {
	r.ml.Lock()
	sub := r.sub
	r.ml.Unlock()
	sub.Cancel()
}

func (r *recorder[T]) values() []T {
	r.ml.Lock()
	defer r.ml.Unlock()
	return append([]T(nil), r.items...)
}

func (r *recorder[T]) result() (completed int, failed int, err error) {
	r.ml.Lock()
	defer r.ml.Unlock()
	return r.completed, r.failed, r.err
}

func (r *recorder[T]) isTerminated() bool {
	r.ml.Lock()
	defer r.ml.Unlock()
	return r.completed+r.failed > 0
}

// reasons records the reasons handed to a DoFinally hook.
type reasons struct {
	ml   sync.Mutex
	seen []rxkit.Reason
}

func (r *reasons) record(reason rxkit.Reason) {
	r.ml.Lock()
	r.seen = append(r.seen, reason)
	r.ml.Unlock()
}

func (r *reasons) all() []rxkit.Reason {
	r.ml.Lock()
	defer r.ml.Unlock()
	return append([]rxkit.Reason(nil), r.seen...)
}

func collect[T any](s rxkit.Stream[T]) ([]T, error) {
	return rxkit.CollectList(s).Block()
}
