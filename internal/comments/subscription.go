package comments

import (
	"sync"
	"sync/atomic"
)

type delivery struct {
	records []Record
	err     error
}

// Subscription is a per-listener mailbox. Stores push snapshots from any
// goroutine; Run delivers them in push order. An error ends the
// subscription after it has been delivered.
type Subscription struct {
	onSnapshot func([]Record)
	onError    func(error)

	mu     sync.Mutex
	queue  []delivery
	wake   chan struct{}
	done   chan struct{}
	closed atomic.Bool
	once   sync.Once
}

func NewSubscription(onSnapshot func([]Record), onError func(error)) *Subscription {
	return &Subscription{
		onSnapshot: onSnapshot,
		onError:    onError,
		wake:       make(chan struct{}, 1),
		done:       make(chan struct{}),
	}
}

// Push queues a copy of records.
func (s *Subscription) Push(records []Record) {
	s.enqueue(delivery{records: cloneRecords(records)})
}

// Fail queues a terminal error.
func (s *Subscription) Fail(err error) {
	s.enqueue(delivery{err: err})
}

func (s *Subscription) enqueue(d delivery) {
	if s.closed.Load() {
		return
	}
	s.mu.Lock()
	s.queue = append(s.queue, d)
	s.mu.Unlock()
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Close stops delivery. Safe to call more than once and from a callback.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.done)
	})
}

func (s *Subscription) Closed() bool {
	return s.closed.Load()
}

// Run delivers queued events until Close.
func (s *Subscription) Run() {
	for {
		select {
		case <-s.done:
			return
		case <-s.wake:
		}
		for {
			s.mu.Lock()
			if len(s.queue) == 0 {
				s.mu.Unlock()
				break
			}
			next := s.queue[0]
			s.queue = s.queue[1:]
			s.mu.Unlock()

			if s.closed.Load() {
				return
			}
			if next.err != nil {
				if s.onError != nil {
					s.onError(next.err)
				}
				s.Close()
				return
			}
			if s.onSnapshot != nil {
				s.onSnapshot(next.records)
			}
		}
	}
}
