package localstore

import (
	"sync"

	"taskmaster/internal/model"
)

// hub fans committed snapshots out to observers. Each subscriber owns an
// unbounded ordered queue drained by its own goroutine, so a slow observer
// never blocks a commit and never misses or reorders a state.
type hub struct {
	mu   sync.Mutex
	subs map[string][]*subscriber
}

func newHub() *hub {
	return &hub{subs: make(map[string][]*subscriber)}
}

type subscriber struct {
	out  chan []model.Task
	done chan struct{}

	mu      sync.Mutex
	cond    *sync.Cond
	pending [][]model.Task
	closed  bool
}

func newSubscriber() *subscriber {
	s := &subscriber{
		out:  make(chan []model.Task),
		done: make(chan struct{}),
	}
	s.cond = sync.NewCond(&s.mu)
	go s.pump()
	return s
}

// push enqueues one committed snapshot.
func (s *subscriber) push(snapshot []model.Task) {
	s.mu.Lock()
	if !s.closed {
		s.pending = append(s.pending, snapshot)
		s.cond.Signal()
	}
	s.mu.Unlock()
}

func (s *subscriber) close() {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.done)
		s.cond.Signal()
	}
	s.mu.Unlock()
}

// pump drains the queue into the delivery channel in order. A closed
// subscriber drops whatever is still pending: the observer is gone.
func (s *subscriber) pump() {
	for {
		s.mu.Lock()
		for len(s.pending) == 0 && !s.closed {
			s.cond.Wait()
		}
		if s.closed {
			s.pending = nil
			s.mu.Unlock()
			close(s.out)
			return
		}
		next := s.pending[0]
		s.pending = s.pending[1:]
		s.mu.Unlock()

		select {
		case s.out <- next:
		case <-s.done:
			close(s.out)
			return
		}
	}
}

func (h *hub) subscribe(ownerID string) *subscriber {
	sub := newSubscriber()
	h.mu.Lock()
	h.subs[ownerID] = append(h.subs[ownerID], sub)
	h.mu.Unlock()
	return sub
}

func (h *hub) unsubscribe(ownerID string, sub *subscriber) {
	h.mu.Lock()
	list := h.subs[ownerID]
	for i, other := range list {
		if other == sub {
			h.subs[ownerID] = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(h.subs[ownerID]) == 0 {
		delete(h.subs, ownerID)
	}
	h.mu.Unlock()
	sub.close()
}

func (h *hub) hasSubscribers(ownerID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[ownerID]) > 0
}

func (h *hub) publish(ownerID string, snapshot []model.Task) {
	h.mu.Lock()
	list := append([]*subscriber(nil), h.subs[ownerID]...)
	h.mu.Unlock()
	for _, sub := range list {
		sub.push(snapshot)
	}
}

func (h *hub) closeAll() {
	h.mu.Lock()
	all := h.subs
	h.subs = make(map[string][]*subscriber)
	h.mu.Unlock()
	for _, list := range all {
		for _, sub := range list {
			sub.close()
		}
	}
}
