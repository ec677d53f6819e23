package memory

import (
	"context"
	"errors"
	"testing"

	"sitepay/internal/sheets"
)

func TestWriteLedgerReplacesRows(t *testing.T) {
	s := New()
	ctx := context.Background()

	ref, err := s.WriteLedger(ctx, []sheets.LedgerRow{{Item: "a"}, {Item: "b"}})
	if err != nil || ref != "mem:1:3" {
		t.Fatalf("unexpected write: ref=%q err=%v", ref, err)
	}
	if _, err := s.WriteLedger(ctx, []sheets.LedgerRow{{Item: "c"}}); err != nil {
		t.Fatalf("second write: %v", err)
	}

	rows := s.Rows()
	if len(rows) != 1 || rows[0].Item != "c" {
		t.Fatalf("rows = %+v", rows)
	}
	if s.Writes() != 2 {
		t.Fatalf("writes = %d", s.Writes())
	}
}

func TestFailAndHeal(t *testing.T) {
	s := New()
	boom := errors.New("quota")
	s.Fail(boom)
	if _, err := s.WriteLedger(context.Background(), nil); !errors.Is(err, boom) {
		t.Fatalf("expected injected error, got %v", err)
	}
	s.Fail(nil)
	if _, err := s.WriteLedger(context.Background(), nil); err != nil {
		t.Fatalf("healed store: %v", err)
	}
}

func TestCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := New().WriteLedger(ctx, nil); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
