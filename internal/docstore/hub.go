package docstore

import (
	"context"
	"sync"
)

// Loader reads the current ordered contents of a collection.
type Loader func(ctx context.Context, collection string, q Query) ([]Document, error)

// Hub fans change notifications out to subscriptions. Each subscription runs
// its own goroutine, so snapshots for one subscription are delivered in order
// and never concurrently. Notifications that arrive while a load is running
// are coalesced into one follow-up load.
type Hub struct {
	mu     sync.Mutex
	subs   map[string]map[*subscription]struct{}
	closed bool
	wg     sync.WaitGroup
}

type subscription struct {
	hub        *Hub
	collection string
	query      Query
	load       Loader
	onSnapshot SnapshotFunc
	onError    ErrorFunc
	notify     chan struct{}
	ctx        context.Context
	cancel     context.CancelFunc
	once       sync.Once
}

func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[*subscription]struct{})}
}

// Subscribe starts a subscription; the first snapshot is loaded right away.
func (h *Hub) Subscribe(ctx context.Context, collection string, q Query, load Loader, onSnapshot SnapshotFunc, onError ErrorFunc) (Unsubscribe, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, ErrClosed
	}

	// the subscription outlives the caller's request but keeps its values
	subCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s := &subscription{
		hub:        h,
		collection: collection,
		query:      q,
		load:       load,
		onSnapshot: onSnapshot,
		onError:    onError,
		notify:     make(chan struct{}, 1),
		ctx:        subCtx,
		cancel:     cancel,
	}
	s.notify <- struct{}{}

	if h.subs[collection] == nil {
		h.subs[collection] = make(map[*subscription]struct{})
	}
	h.subs[collection][s] = struct{}{}

	h.wg.Add(1)
	go s.run()

	return s.stop, nil
}

// Notify schedules a reload for every subscription on collection.
func (h *Hub) Notify(collection string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for s := range h.subs[collection] {
		select {
		case s.notify <- struct{}{}:
		default:
		}
	}
}

// Active returns the number of live subscriptions.
func (h *Hub) Active() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, set := range h.subs {
		n += len(set)
	}
	return n
}

// Close stops every subscription and waits for their goroutines.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	var all []*subscription
	for _, set := range h.subs {
		for s := range set {
			all = append(all, s)
		}
	}
	h.subs = make(map[string]map[*subscription]struct{})
	h.mu.Unlock()

	for _, s := range all {
		s.cancel()
	}
	h.wg.Wait()
}

func (h *Hub) remove(s *subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.subs[s.collection]; ok {
		delete(set, s)
		if len(set) == 0 {
			delete(h.subs, s.collection)
		}
	}
}

func (s *subscription) stop() {
	s.once.Do(func() {
		s.cancel()
		s.hub.remove(s)
	})
}

func (s *subscription) run() {
	defer s.hub.wg.Done()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-s.notify:
		}

		docs, err := s.load(s.ctx, s.collection, s.query)
		if s.ctx.Err() != nil {
			return
		}
		if err != nil {
			s.stop()
			if s.onError != nil {
				s.onError(err)
			}
			return
		}
		s.onSnapshot(docs)
	}
}
