package editor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"sitepay/internal/core"
	"sitepay/internal/state"
)

type fakeSaver struct {
	mu      sync.Mutex
	saved   []core.Payment
	deleted []string
	err     error
	block   chan struct{}
	entered chan struct{}
}

func (f *fakeSaver) SavePayment(ctx context.Context, p core.Payment) (string, error) {
	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.saved = append(f.saved, p)
	if p.ID == "" {
		return "new-id", nil
	}
	return p.ID, nil
}

func (f *fakeSaver) DeletePayment(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.deleted = append(f.deleted, id)
	return nil
}

func existingPayment() core.Payment {
	return core.Payment{
		ID: "p1", ProjectID: "proj", ProjectName: "Tower A",
		VendorID: "ven", VendorName: "Acme",
		Item: "Wiring", Amount: 1500000, ExpectedDate: "2024-06-30",
		Status: core.StatusIssue,
	}
}

func TestOpenCreateDefaults(t *testing.T) {
	e := New(&fakeSaver{}, nil)
	if e.State() != Closed {
		t.Fatalf("new editor should be closed")
	}
	if err := e.Open(nil); err != nil {
		t.Fatalf("open: %v", err)
	}
	d := e.Draft()
	if e.State() != OpenCreate || d.IsEdit() || d.Status != core.StatusDraft || d.AmountRaw != "" || d.ProjectID != "" {
		t.Fatalf("unexpected create draft %+v state %v", d, e.State())
	}
}

func TestOpenEditCopiesFields(t *testing.T) {
	e := New(&fakeSaver{}, nil)
	p := existingPayment()
	_ = e.Open(&p)
	d := e.Draft()
	if e.State() != OpenEdit || d.ID != "p1" || d.AmountRaw != "1500000" || d.VendorName != "Acme" || d.Status != core.StatusIssue {
		t.Fatalf("unexpected edit draft %+v", d)
	}
}

func TestOpenEditKeepsUnknownStatus(t *testing.T) {
	saver := &fakeSaver{}
	e := New(saver, nil)
	p := existingPayment()
	p.Status = "lost"
	_ = e.Open(&p)

	if d := e.Draft(); d.Status != "lost" {
		t.Fatalf("unknown status rewritten to %q", d.Status)
	}
	if _, err := e.Submit(context.Background()); !errors.Is(err, core.ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}
	if e.State() != OpenEdit || len(saver.saved) != 0 {
		t.Fatal("unknown status must not be saved")
	}

	if err := e.SetStatus(core.StatusPaid); err != nil {
		t.Fatalf("set status: %v", err)
	}
	if _, err := e.Submit(context.Background()); err != nil {
		t.Fatalf("submit after choosing a status: %v", err)
	}
	if got := saver.saved[0].Status; got != core.StatusPaid {
		t.Fatalf("saved status %q", got)
	}
}

func TestSelectSetsIDAndNameTogether(t *testing.T) {
	e := New(&fakeSaver{}, nil)
	_ = e.Open(nil)

	_ = e.SelectProject(core.Project{ID: "proj", Name: "Tower A"})
	_ = e.SelectVendor(core.Vendor{ID: "ven", Name: "Acme"})
	d := e.Draft()
	if d.ProjectID != "proj" || d.ProjectName != "Tower A" || d.VendorID != "ven" || d.VendorName != "Acme" {
		t.Fatalf("selection not applied: %+v", d)
	}

	_ = e.SelectProject(core.Project{Name: "ignored"})
	d = e.Draft()
	if d.ProjectID != "" || d.ProjectName != "" {
		t.Fatalf("empty selection should clear both: %+v", d)
	}
}

func TestSubmitCreateClosesOnSuccess(t *testing.T) {
	saver := &fakeSaver{}
	e := New(saver, nil)
	_ = e.Open(nil)
	_ = e.SetItem(" Wiring ")
	if err := e.SetAmount("15,000"); err != nil {
		t.Fatalf("set amount: %v", err)
	}
	_ = e.SetExpectedDate("2024-06-30")

	id, err := e.Submit(context.Background())
	if err != nil || id != "new-id" {
		t.Fatalf("submit: id=%q err=%v", id, err)
	}
	if e.State() != Closed || e.Draft() != (Draft{}) {
		t.Fatalf("editor should be closed and cleared")
	}
	got := saver.saved[0]
	if got.Item != "Wiring" || got.Amount != 15000 || got.Status != core.StatusDraft || got.ID != "" {
		t.Fatalf("unexpected saved payment %+v", got)
	}
}

func TestEditOnlyStatusSendsFullFieldSet(t *testing.T) {
	saver := &fakeSaver{}
	e := New(saver, nil)
	p := existingPayment()
	_ = e.Open(&p)
	_ = e.SetStatus(core.StatusPaid)

	fields, err := e.Fields()
	if err != nil {
		t.Fatalf("fields: %v", err)
	}
	if fields[state.FieldStatus] != "paid" || fields[state.FieldItem] != "Wiring" || fields[state.FieldAmount] != 1500000.0 {
		t.Fatalf("unexpected fields %v", fields)
	}

	if _, err := e.Submit(context.Background()); err != nil {
		t.Fatalf("submit: %v", err)
	}
	want := p
	want.Status = core.StatusPaid
	if saver.saved[0] != want {
		t.Fatalf("saved %+v, want %+v", saver.saved[0], want)
	}
}

func TestSubmitFailureKeepsForm(t *testing.T) {
	boom := errors.New("permission denied")
	saver := &fakeSaver{err: boom}
	e := New(saver, nil)
	_ = e.Open(nil)
	_ = e.SetItem("Wiring")
	_ = e.SetAmount("500")

	if _, err := e.Submit(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected store error, got %v", err)
	}
	if e.State() != Failed || !errors.Is(e.Err(), boom) {
		t.Fatalf("expected Failed with error, got %v / %v", e.State(), e.Err())
	}
	if d := e.Draft(); d.Item != "Wiring" || d.AmountRaw != "500" {
		t.Fatalf("form lost after failure: %+v", d)
	}

	saver.err = nil
	if _, err := e.Submit(context.Background()); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if e.State() != Closed {
		t.Fatalf("retry should close the editor")
	}
}

func TestInvalidInputLeavesFormOpen(t *testing.T) {
	saver := &fakeSaver{}
	e := New(saver, nil)
	_ = e.Open(nil)

	if err := e.SetAmount("abc"); !errors.Is(err, core.ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	if _, err := e.Submit(context.Background()); !errors.Is(err, core.ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount on submit, got %v", err)
	}
	if e.State() != OpenCreate || len(saver.saved) != 0 {
		t.Fatalf("invalid input must not reach the store")
	}
	if err := e.SetExpectedDate("30/06/2024"); !errors.Is(err, core.ErrInvalidDate) {
		t.Fatalf("expected ErrInvalidDate, got %v", err)
	}
	if err := e.SetStatus("bogus"); !errors.Is(err, core.ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}
}

func TestDoubleSubmitGuard(t *testing.T) {
	saver := &fakeSaver{block: make(chan struct{}), entered: make(chan struct{}, 1)}
	e := New(saver, nil)
	_ = e.Open(nil)

	done := make(chan error, 1)
	go func() {
		_, err := e.Submit(context.Background())
		done <- err
	}()

	select {
	case <-saver.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("first submit never reached the saver")
	}
	if e.State() != Pending {
		t.Fatalf("expected Pending, got %v", e.State())
	}
	if _, err := e.Submit(context.Background()); !errors.Is(err, ErrSubmitInFlight) {
		t.Fatalf("expected ErrSubmitInFlight, got %v", err)
	}
	if err := e.SetItem("x"); !errors.Is(err, ErrSubmitInFlight) {
		t.Fatalf("edits while pending should be rejected, got %v", err)
	}
	e.Cancel()

	close(saver.block)
	if err := <-done; err != nil {
		t.Fatalf("first submit: %v", err)
	}
	if len(saver.saved) != 1 {
		t.Fatalf("expected exactly one save, got %d", len(saver.saved))
	}
}

func TestCancelDiscards(t *testing.T) {
	saver := &fakeSaver{}
	e := New(saver, nil)
	_ = e.Open(nil)
	_ = e.SetItem("Wiring")
	e.Cancel()
	if e.State() != Closed || e.Draft() != (Draft{}) || len(saver.saved) != 0 {
		t.Fatal("cancel must close and discard without saving")
	}
	if _, err := e.Submit(context.Background()); !errors.Is(err, ErrNotOpen) {
		t.Fatalf("expected ErrNotOpen, got %v", err)
	}
}

func TestDelete(t *testing.T) {
	saver := &fakeSaver{}
	e := New(saver, nil)

	_ = e.Open(nil)
	if err := e.Delete(context.Background(), true); !errors.Is(err, ErrNotEditing) {
		t.Fatalf("expected ErrNotEditing in create mode, got %v", err)
	}

	p := existingPayment()
	_ = e.Open(&p)
	if err := e.Delete(context.Background(), false); !errors.Is(err, ErrNotConfirmed) {
		t.Fatalf("expected ErrNotConfirmed, got %v", err)
	}
	if len(saver.deleted) != 0 {
		t.Fatal("unconfirmed delete must not reach the store")
	}
	if err := e.Delete(context.Background(), true); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if e.State() != Closed || len(saver.deleted) != 1 || saver.deleted[0] != "p1" {
		t.Fatalf("unexpected state after delete: %v %v", e.State(), saver.deleted)
	}
}
