// Package sqlite is a docstore backend on a local SQLite file. Changes made
// by other processes sharing the file arrive through Refresh, which the AMQP
// change feed calls.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"sitepay/internal/docstore"
	"sitepay/internal/log"
)

// Publisher announces committed writes to other processes.
type Publisher interface {
	PublishChange(ctx context.Context, collection, documentID, op string) error
}

type Store struct {
	db        *sql.DB
	hub       *docstore.Hub
	logger    *log.Logger
	now       func() time.Time
	newID     func() string
	publisher Publisher

	mu     sync.Mutex
	closed bool
}

var _ docstore.Store = (*Store)(nil)

type Option func(*Store)

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func WithIDs(newID func() string) Option {
	return func(s *Store) { s.newID = newID }
}

func WithLogger(l *log.Logger) Option {
	return func(s *Store) { s.logger = l.WithComponent(log.ComponentStore) }
}

// WithPublisher sets the change publisher. Publish failures are logged and
// do not fail the write.
func WithPublisher(p Publisher) Option {
	return func(s *Store) { s.publisher = p }
}

// Open opens or creates the database at dbPath and applies migrations.
func Open(dbPath string, opts ...Option) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}
	if err := RunMigrations(dbPath); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// one writer; avoids SQLITE_BUSY between the read-merge-write of Update
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &Store{
		db:     db,
		hub:    docstore.NewHub(),
		logger: log.Discard(),
		now:    func() time.Time { return time.Now().UTC() },
		newID:  func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// SetPublisher attaches a publisher after construction, once the change
// feed is connected.
func (s *Store) SetPublisher(p Publisher) {
	s.mu.Lock()
	s.publisher = p
	s.mu.Unlock()
}

func (s *Store) Subscribe(ctx context.Context, collection string, q docstore.Query, onSnapshot docstore.SnapshotFunc, onError docstore.ErrorFunc) (docstore.Unsubscribe, error) {
	if err := docstore.Authorize(ctx); err != nil {
		return nil, err
	}
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	return s.hub.Subscribe(ctx, collection, q, s.load, onSnapshot, onError)
}

func (s *Store) load(ctx context.Context, collection string, q docstore.Query) ([]docstore.Document, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, data FROM documents WHERE collection = ?`, collection)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", collection, err)
	}
	defer rows.Close()

	var docs []docstore.Document
	for rows.Next() {
		var id string
		var data []byte
		if err := rows.Scan(&id, &data); err != nil {
			return nil, fmt.Errorf("scan %s: %w", collection, err)
		}
		fields, err := decodeFields(data)
		if err != nil {
			return nil, fmt.Errorf("%s/%s: %w", collection, id, err)
		}
		docs = append(docs, docstore.Document{ID: id, Fields: fields})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", collection, err)
	}
	if docs == nil {
		docs = []docstore.Document{}
	}
	docstore.SortDocuments(docs, q)
	return docs, nil
}

func (s *Store) Insert(ctx context.Context, collection string, fields docstore.Fields) (string, error) {
	if err := docstore.Authorize(ctx); err != nil {
		return "", err
	}
	if err := s.checkOpen(); err != nil {
		return "", err
	}
	data, err := encodeFields(docstore.ResolveTimestamps(fields, s.now()))
	if err != nil {
		return "", err
	}
	id := s.newID()
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (collection, id, data) VALUES (?, ?, ?)`,
		collection, id, string(data)); err != nil {
		return "", fmt.Errorf("insert %s: %w", collection, err)
	}
	s.changed(ctx, collection, id, "insert")
	return id, nil
}

func (s *Store) Update(ctx context.Context, collection, id string, fields docstore.Fields) error {
	if err := docstore.Authorize(ctx); err != nil {
		return err
	}
	if err := s.checkOpen(); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update: %w", err)
	}
	defer tx.Rollback()

	var data []byte
	err = tx.QueryRowContext(ctx,
		`SELECT data FROM documents WHERE collection = ? AND id = ?`, collection, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return docstore.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("read %s/%s: %w", collection, id, err)
	}
	existing, err := decodeFields(data)
	if err != nil {
		return err
	}
	merged, err := encodeFields(docstore.Merge(existing, docstore.ResolveTimestamps(fields, s.now())))
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE documents SET data = ?, updated_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now') WHERE collection = ? AND id = ?`,
		string(merged), collection, id); err != nil {
		return fmt.Errorf("update %s/%s: %w", collection, id, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit update: %w", err)
	}
	s.changed(ctx, collection, id, "update")
	return nil
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	if err := docstore.Authorize(ctx); err != nil {
		return err
	}
	if err := s.checkOpen(); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE collection = ? AND id = ?`, collection, id)
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, id, err)
	}
	if n == 0 {
		return docstore.ErrNotFound
	}
	s.changed(ctx, collection, id, "delete")
	return nil
}

// Refresh reloads subscriptions on collection after a change made elsewhere.
func (s *Store) Refresh(collection string) {
	s.hub.Notify(collection)
}

func (s *Store) ActiveSubscriptions() int {
	return s.hub.Active()
}

func (s *Store) changed(ctx context.Context, collection, id, op string) {
	s.hub.Notify(collection)

	s.mu.Lock()
	p := s.publisher
	s.mu.Unlock()
	if p == nil {
		return
	}
	if err := p.PublishChange(ctx, collection, id, op); err != nil {
		s.logger.WarnContext(ctx, "Failed to publish change",
			log.NewFields().WithDocument(collection, id).WithOperation(log.OpPublish).WithError(err).ToSlice()...)
	}
}

func (s *Store) checkOpen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return docstore.ErrClosed
	}
	return nil
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
	return s.db.Close()
}

// Count returns the number of documents in collection.
func (s *Store) Count(ctx context.Context, collection string) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents WHERE collection = ?`, collection).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", collection, err)
	}
	return n, nil
}
