package session

import "sync"

// Notifier fans session events out to subscribers. Publish never blocks the
// session: each subscriber owns an ordered queue drained by its own
// goroutine, so a slow consumer delays only itself. Events published before
// a subscriber attaches are not replayed.
type Notifier struct {
	mu     sync.Mutex
	subs   map[int]*subscriber
	next   int
	closed bool
}

// Subscription is one attached subscriber. Events arrive on C in publish
// order; C is closed after Cancel or when the session closes.
type Subscription struct {
	C      <-chan Event
	cancel func()
}

// Cancel detaches the subscription. Safe to call more than once.
func (s *Subscription) Cancel() {
	s.cancel()
}

func newNotifier() *Notifier {
	return &Notifier{subs: make(map[int]*subscriber)}
}

// Subscribe attaches a new subscriber.
func (n *Notifier) Subscribe() *Subscription {
	sub := &subscriber{
		ch:   make(chan Event),
		quit: make(chan struct{}),
	}
	sub.cond = sync.NewCond(&sub.mu)

	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		close(sub.ch)
		return &Subscription{C: sub.ch, cancel: func() {}}
	}
	id := n.next
	n.next++
	n.subs[id] = sub
	n.mu.Unlock()

	go sub.run()

	return &Subscription{
		C: sub.ch,
		cancel: func() {
			n.mu.Lock()
			delete(n.subs, id)
			n.mu.Unlock()
			sub.stop()
		},
	}
}

// Publish queues ev for every current subscriber and returns immediately.
// The event is guaranteed queued, in order, before Publish returns.
func (n *Notifier) Publish(ev Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, sub := range n.subs {
		sub.enqueue(ev)
	}
}

// Close detaches every subscriber and closes their channels once queued
// events are drained or abandoned.
func (n *Notifier) Close() {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return
	}
	n.closed = true
	subs := n.subs
	n.subs = make(map[int]*subscriber)
	n.mu.Unlock()

	for _, sub := range subs {
		sub.stop()
	}
}

type subscriber struct {
	mu      sync.Mutex
	cond    *sync.Cond
	queue   []Event
	stopped bool

	ch   chan Event
	quit chan struct{}
	once sync.Once
}

func (s *subscriber) enqueue(ev Event) {
	s.mu.Lock()
	if !s.stopped {
		s.queue = append(s.queue, ev)
		s.cond.Signal()
	}
	s.mu.Unlock()
}

func (s *subscriber) stop() {
	s.once.Do(func() {
		s.mu.Lock()
		s.stopped = true
		s.cond.Signal()
		s.mu.Unlock()
		close(s.quit)
	})
}

func (s *subscriber) run() {
	for {
		s.mu.Lock()
		for len(s.queue) == 0 && !s.stopped {
			s.cond.Wait()
		}
		if len(s.queue) == 0 && s.stopped {
			s.mu.Unlock()
			close(s.ch)
			return
		}
		ev := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()

		select {
		case s.ch <- ev:
		case <-s.quit:
			close(s.ch)
			return
		}
	}
}
