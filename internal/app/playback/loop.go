package playback

import "sync"

// loop runs posted functions one at a time, in order, on a single goroutine.
// The queue is unbounded so posting never blocks, including from inside the loop.
type loop struct {
	mu     sync.Mutex
	queue  []func()
	closed bool

	signal chan struct{}
	done   chan struct{}
}

func newLoop() *loop {
	l := &loop{
		signal: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	go l.run()
	return l
}

// post enqueues fn. It returns false once the loop is stopped.
func (l *loop) post(fn func()) bool {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return false
	}
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	l.wake()
	return true
}

// stop rejects further posts. Already queued functions still run.
func (l *loop) stop() {
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()

	l.wake()
	<-l.done
}

func (l *loop) wake() {
	select {
	case l.signal <- struct{}{}:
	default:
	}
}

func (l *loop) run() {
	defer close(l.done)

	for range l.signal {
		for {
			fn, ok, closed := l.next()
			if !ok {
				if closed {
					return
				}
				break
			}
			fn()
		}
	}
}

func (l *loop) next() (func(), bool, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.queue) == 0 {
		return nil, false, l.closed
	}
	fn := l.queue[0]
	l.queue[0] = nil
	l.queue = l.queue[1:]
	return fn, true, l.closed
}
