package memory

import (
	"context"
	"fmt"
	"sync"

	"sitepay/internal/sheets"
)

var _ sheets.LedgerWriter = (*Store)(nil)

// Store keeps the last written ledger in memory.
type Store struct {
	mu     sync.Mutex
	rows   []sheets.LedgerRow
	writes int
	err    error
}

func New() *Store {
	return &Store{}
}

// WriteLedger replaces the stored rows and returns a synthetic range reference.
func (s *Store) WriteLedger(ctx context.Context, rows []sheets.LedgerRow) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	s.rows = append([]sheets.LedgerRow(nil), rows...)
	s.writes++
	return fmt.Sprintf("mem:%d:%d", s.writes, len(rows)+1), nil
}

// Rows returns the rows of the last successful write.
func (s *Store) Rows() []sheets.LedgerRow {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sheets.LedgerRow(nil), s.rows...)
}

// Writes counts successful writes.
func (s *Store) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

// Fail makes every following write return err. A nil err heals the store.
func (s *Store) Fail(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}
