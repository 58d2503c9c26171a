package game

import (
	"sync"

	"github.com/park285/cheese-reversi/internal/dispatch"
	"github.com/park285/cheese-reversi/internal/engine"
	"github.com/park285/cheese-reversi/internal/reversi"
)

type EventKind string

const (
	EventState        EventKind = "state"
	EventAnalysis     EventKind = "analysis"
	EventPassNotice   EventKind = "pass"
	EventGameOver     EventKind = "game_over"
	EventEngineFailed EventKind = "engine_failed"
)

type Event struct {
	Kind     EventKind
	State    dispatch.State
	Progress engine.Progress
	Side     reversi.Side
	Result   reversi.Result
	Err      error
}

// droppable reports whether a later event of the same kind supersedes ev.
func (k EventKind) droppable() bool {
	return k == EventState || k == EventAnalysis
}

// Subscribe returns an event stream and a function that ends it. A
// subscriber that falls behind sees only the latest state and analysis
// events; pass, game over and engine failure events are always delivered.
func (s *Session) Subscribe() (<-chan Event, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		ch := make(chan Event)
		close(ch)
		return ch, func() {}
	}
	id := s.nextSub
	s.nextSub++
	sub := newSubscriber()
	s.subs[id] = sub
	return sub.out, func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
		sub.stop()
	}
}

func (s *Session) publish(ev Event) {
	for _, sub := range s.subs {
		sub.push(ev)
	}
}

type subscriber struct {
	out  chan Event
	wake chan struct{}
	done chan struct{}

	mu       sync.Mutex
	queue    []Event
	draining bool
	stopOnce sync.Once
}

func newSubscriber() *subscriber {
	sub := &subscriber{
		out:  make(chan Event),
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	go sub.pump()
	return sub
}

// push never blocks. A droppable event replaces the queued one of the same
// kind that follows the last must-deliver event.
func (sub *subscriber) push(ev Event) {
	sub.mu.Lock()
	if ev.Kind.droppable() {
		for i := len(sub.queue) - 1; i >= 0 && sub.queue[i].Kind.droppable(); i-- {
			if sub.queue[i].Kind == ev.Kind {
				sub.queue = append(sub.queue[:i], sub.queue[i+1:]...)
				break
			}
		}
		if len(sub.queue) >= subscriberCapacity {
			sub.mu.Unlock()
			return
		}
	}
	sub.queue = append(sub.queue, ev)
	sub.mu.Unlock()
	sub.signal()
}

func (sub *subscriber) signal() {
	select {
	case sub.wake <- struct{}{}:
	default:
	}
}

// finish closes the stream once everything queued has been read.
func (sub *subscriber) finish() {
	sub.mu.Lock()
	sub.draining = true
	sub.mu.Unlock()
	sub.signal()
}

// stop ends the stream immediately, discarding anything queued.
func (sub *subscriber) stop() {
	sub.stopOnce.Do(func() { close(sub.done) })
}

func (sub *subscriber) pump() {
	defer close(sub.out)
	for {
		select {
		case <-sub.wake:
		case <-sub.done:
			return
		}
		for {
			sub.mu.Lock()
			if len(sub.queue) == 0 {
				draining := sub.draining
				sub.mu.Unlock()
				if draining {
					return
				}
				break
			}
			ev := sub.queue[0]
			sub.queue[0] = Event{}
			sub.queue = sub.queue[1:]
			sub.mu.Unlock()
			select {
			case sub.out <- ev:
			case <-sub.done:
				return
			}
		}
	}
}
