package rxkit

//***********************************
//  Hooks
//***********************************

// Hooks holds side-effect functions called by Tap for each signal of a run,
// nil hooks are skipped. Hooks are called before the signal is passed on.
type Hooks[T any] struct {
	OnSubscribe func()
	OnNext      func(T)
	OnError     func(error)
	OnComplete  func()
	OnRequest   func(int64)
	OnCancel    func()
}

// Tap returns a stream calling hooks for every signal passing through it.
func (s Stream[T]) Tap(hooks Hooks[T]) Stream[T] {
	return newStream[T](TapStage, s.stages, func(rc *runContext, actual Subscriber[T]) {
		s.subscribe(rc, &tapSubscriber[T]{actual: actual, hooks: hooks})
	})
}

// DoOnNext returns a stream calling fn with every item before passing it on.
func (s Stream[T]) DoOnNext(fn func(T)) Stream[T] {
	return s.Tap(Hooks[T]{OnNext: fn})
}

type tapSubscriber[T any] struct {
	link
	actual Subscriber[T]
	hooks  Hooks[T]
}

func (t *tapSubscriber[T]) OnSubscribe(s Subscription) {
	t.upstream = s
	if t.hooks.OnSubscribe != nil {
		t.hooks.OnSubscribe()
	}
	t.actual.OnSubscribe(t)
}

func (t *tapSubscriber[T]) OnNext(v T) {
	if t.done.IsTrue() {
		return
	}
	if t.hooks.OnNext != nil {
		t.hooks.OnNext(v)
	}
	t.actual.OnNext(v)
}

func (t *tapSubscriber[T]) OnError(err error) {
	if !t.done.TurnOn() {
		return
	}
	if t.hooks.OnError != nil {
		t.hooks.OnError(err)
	}
	t.actual.OnError(err)
}

func (t *tapSubscriber[T]) OnComplete() {
	if !t.done.TurnOn() {
		return
	}
	if t.hooks.OnComplete != nil {
		t.hooks.OnComplete()
	}
	t.actual.OnComplete()
}

func (t *tapSubscriber[T]) Request(n int64) {
	if t.hooks.OnRequest != nil {
		t.hooks.OnRequest(n)
	}
	t.upstream.Request(n)
}

func (t *tapSubscriber[T]) Cancel() {
	if t.hooks.OnCancel != nil && !t.done.IsTrue() {
		t.hooks.OnCancel()
	}
	t.link.Cancel()
}

//***********************************
//  Log
//***********************************

// Log returns a stream writing every signal passing through it to the
// default Logs at INFO level.
func (s Stream[T]) Log() Stream[T] {
	return s.logWith("rxkit", nil)
}

// LogWith is like Log but writes under category to logs. A nil logs uses the
// default Logs.
func (s Stream[T]) LogWith(category string, logs Logs) Stream[T] {
	return s.logWith(category, logs)
}

func (s Stream[T]) logWith(category string, logs Logs) Stream[T] {
	return newStream[T](LogStage, s.stages, func(rc *runContext, actual Subscriber[T]) {
		target := logs
		if target == nil {
			target = rc.logs
		}

		signal := func(name string) *LogEvent {
			return LogMsg(name).
				String("category", category).
				String("subscription", rc.ID())
		}

		s.subscribe(rc, &tapSubscriber[T]{actual: actual, hooks: Hooks[T]{
			OnSubscribe: func() {
				signal("onSubscribe").Write(INFO, target)
			},
			OnNext: func(v T) {
				signal("onNext").ObjectJSON("value", v).Write(INFO, target)
			},
			OnError: func(err error) {
				signal("onError").Err("error", err).Write(ERROR, target)
			},
			OnComplete: func() {
				signal("onComplete").Write(INFO, target)
			},
			OnRequest: func(n int64) {
				if n == Unbounded {
					signal("request").String("amount", "unbounded").Write(INFO, target)
					return
				}
				signal("request").Int64("amount", n).Write(INFO, target)
			},
			OnCancel: func() {
				signal("cancel").Write(INFO, target)
			},
		}})
	})
}
