// Package memory is an in-process docstore backend. It is the default
// backend for local runs and the fake used by tests.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"sitepay/internal/docstore"
)

type Store struct {
	mu          sync.RWMutex
	collections map[string]map[string]docstore.Fields
	failures    map[string]error
	hub         *docstore.Hub
	now         func() time.Time
	newID       func() string
	closed      bool
}

var _ docstore.Store = (*Store)(nil)

type Option func(*Store)

// WithClock overrides the server clock used for ServerTimestamp.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithIDs overrides document id generation.
func WithIDs(newID func() string) Option {
	return func(s *Store) { s.newID = newID }
}

func New(opts ...Option) *Store {
	s := &Store{
		collections: make(map[string]map[string]docstore.Fields),
		failures:    make(map[string]error),
		hub:         docstore.NewHub(),
		now:         func() time.Time { return time.Now().UTC() },
		newID:       func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Subscribe(ctx context.Context, collection string, q docstore.Query, onSnapshot docstore.SnapshotFunc, onError docstore.ErrorFunc) (docstore.Unsubscribe, error) {
	if err := docstore.Authorize(ctx); err != nil {
		return nil, err
	}
	return s.hub.Subscribe(ctx, collection, q, s.load, onSnapshot, onError)
}

func (s *Store) load(_ context.Context, collection string, q docstore.Query) ([]docstore.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.failures[collection]; err != nil {
		return nil, err
	}
	docs := make([]docstore.Document, 0, len(s.collections[collection]))
	for id, f := range s.collections[collection] {
		docs = append(docs, docstore.Document{ID: id, Fields: docstore.Merge(f, nil)})
	}
	docstore.SortDocuments(docs, q)
	return docs, nil
}

func (s *Store) Insert(ctx context.Context, collection string, fields docstore.Fields) (string, error) {
	if err := docstore.Authorize(ctx); err != nil {
		return "", err
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return "", docstore.ErrClosed
	}
	id := s.newID()
	if s.collections[collection] == nil {
		s.collections[collection] = make(map[string]docstore.Fields)
	}
	s.collections[collection][id] = docstore.ResolveTimestamps(fields, s.now())
	s.mu.Unlock()

	s.hub.Notify(collection)
	return id, nil
}

func (s *Store) Update(ctx context.Context, collection, id string, fields docstore.Fields) error {
	if err := docstore.Authorize(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return docstore.ErrClosed
	}
	existing, ok := s.collections[collection][id]
	if !ok {
		s.mu.Unlock()
		return docstore.ErrNotFound
	}
	s.collections[collection][id] = docstore.Merge(existing, docstore.ResolveTimestamps(fields, s.now()))
	s.mu.Unlock()

	s.hub.Notify(collection)
	return nil
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	if err := docstore.Authorize(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return docstore.ErrClosed
	}
	if _, ok := s.collections[collection][id]; !ok {
		s.mu.Unlock()
		return docstore.ErrNotFound
	}
	delete(s.collections[collection], id)
	s.mu.Unlock()

	s.hub.Notify(collection)
	return nil
}

// Get returns a copy of one document, for tests and seeding checks.
func (s *Store) Get(collection, id string) (docstore.Document, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.collections[collection][id]
	if !ok {
		return docstore.Document{}, false
	}
	return docstore.Document{ID: id, Fields: docstore.Merge(f, nil)}, true
}

// Count returns the number of documents in collection.
func (s *Store) Count(collection string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.collections[collection])
}

// FailCollection makes every subscription on collection fail with err, as a
// lost connection or revoked permission would. Pass nil to heal.
func (s *Store) FailCollection(collection string, err error) {
	s.mu.Lock()
	if err == nil {
		delete(s.failures, collection)
	} else {
		s.failures[collection] = err
	}
	s.mu.Unlock()
	s.hub.Notify(collection)
}

// ActiveSubscriptions reports live subscriptions.
func (s *Store) ActiveSubscriptions() int {
	return s.hub.Active()
}

func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()
	s.hub.Close()
	return nil
}
