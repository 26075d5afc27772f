package query

import "sync"

// loop runs callbacks one at a time, in the order they were enqueued.
type loop struct {
	mu      sync.Mutex
	cond    *sync.Cond
	queue   []func()
	running bool
	stopped bool
	done    chan struct{}
	onPanic func(recovered any)
}

func newLoop(onPanic func(recovered any)) *loop {
	l := &loop{
		done:    make(chan struct{}),
		onPanic: onPanic,
	}
	l.cond = sync.NewCond(&l.mu)

	go l.run()

	return l
}

func (l *loop) enqueue(fn func()) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.stopped {
		return
	}

	l.queue = append(l.queue, fn)
	l.cond.Broadcast()
}

func (l *loop) run() {
	defer close(l.done)

	for {
		l.mu.Lock()
		for len(l.queue) == 0 && !l.stopped {
			l.cond.Wait()
		}

		if len(l.queue) == 0 {
			l.mu.Unlock()

			return
		}

		fn := l.queue[0]
		l.queue[0] = nil
		l.queue = l.queue[1:]
		l.running = true
		l.mu.Unlock()

		l.call(fn)

		l.mu.Lock()
		l.running = false
		l.cond.Broadcast()
		l.mu.Unlock()
	}
}

func (l *loop) call(fn func()) {
	defer func() {
		if r := recover(); r != nil && l.onPanic != nil {
			l.onPanic(r)
		}
	}()

	fn()
}

// flush blocks until every callback enqueued so far, and every callback
// those enqueue in turn, has run. It must not be called from a callback.
func (l *loop) flush() {
	l.mu.Lock()
	defer l.mu.Unlock()

	for len(l.queue) > 0 || l.running {
		l.cond.Wait()
	}
}

// stop drains the queue and waits for the loop goroutine to exit.
func (l *loop) stop() {
	l.mu.Lock()
	l.stopped = true
	l.cond.Broadcast()
	l.mu.Unlock()

	<-l.done
}
