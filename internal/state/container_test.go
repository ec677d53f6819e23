package state

import (
	"context"
	"errors"
	"testing"
	"time"

	"sitepay/internal/core"
	"sitepay/internal/docstore"
	"sitepay/internal/docstore/memory"
	"sitepay/internal/identity"
	"sitepay/internal/metrics"
)

const testApp = "site-test"

type fixture struct {
	store     *memory.Store
	provider  *identity.AnonymousProvider
	container *Container
}

func newFixture(t *testing.T, withSession bool) *fixture {
	t.Helper()
	store := memory.New()
	provider := identity.NewAnonymous(nil)
	if withSession {
		if _, err := provider.EstablishAnonymous(context.Background()); err != nil {
			t.Fatalf("establish session: %v", err)
		}
	}
	c := New(Config{Store: store, Provider: provider, AppID: testApp, Metrics: metrics.New()})
	c.Start(context.Background())
	t.Cleanup(func() {
		c.Close()
		store.Close()
	})
	return &fixture{store: store, provider: provider, container: c}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestEmptyCollectionsBecomeReady(t *testing.T) {
	f := newFixture(t, true)
	waitFor(t, "ready", f.container.Ready)

	if len(f.container.Projects()) != 0 || len(f.container.Vendors()) != 0 || len(f.container.Payments()) != 0 {
		t.Fatal("expected empty mirrors")
	}
	if errs := f.container.Errors(); len(errs) != 0 {
		t.Fatalf("unexpected errors %v", errs)
	}
	if got := f.store.ActiveSubscriptions(); got != 3 {
		t.Fatalf("active subscriptions = %d, want 3", got)
	}
}

func TestCreatePaymentRoundTrip(t *testing.T) {
	f := newFixture(t, true)
	c := f.container
	ctx := context.Background()
	waitFor(t, "ready", c.Ready)

	projectID, err := c.SaveProject(ctx, core.Project{Name: "Tower A"})
	if err != nil {
		t.Fatalf("save project: %v", err)
	}
	vendorID, err := c.SaveVendor(ctx, core.Vendor{Name: "Acme Electric", Type: core.VendorElectrical})
	if err != nil {
		t.Fatalf("save vendor: %v", err)
	}

	id, err := c.SavePayment(ctx, core.Payment{
		ProjectID:    projectID,
		ProjectName:  "Tower A",
		VendorID:     vendorID,
		VendorName:   "Acme Electric",
		Item:         "Wiring",
		Amount:       15000,
		ExpectedDate: "2024-06-30",
		Status:       core.StatusDraft,
	})
	if err != nil {
		t.Fatalf("save payment: %v", err)
	}

	waitFor(t, "payment mirrored", func() bool { _, ok := c.Payment(id); return ok })
	p, _ := c.Payment(id)
	if p.Item != "Wiring" || p.Amount != 15000 || p.Status != core.StatusDraft || p.VendorName != "Acme Electric" {
		t.Fatalf("unexpected payment %+v", p)
	}
	if p.CreatedAt.IsZero() || p.UpdatedAt.IsZero() {
		t.Fatalf("expected server timestamps, got %+v", p)
	}

	waitFor(t, "project mirrored", func() bool { return len(c.Projects()) == 1 })
	waitFor(t, "vendor mirrored", func() bool { return len(c.Vendors()) == 1 })
	if v, ok := c.Vendor(vendorID); !ok || v.Type != core.VendorElectrical {
		t.Fatalf("unexpected vendor %+v", v)
	}
}

func TestEditOnlyStatusKeepsOtherFields(t *testing.T) {
	f := newFixture(t, true)
	c := f.container
	ctx := context.Background()
	waitFor(t, "ready", c.Ready)

	id, err := c.SavePayment(ctx, core.Payment{
		ProjectID: "p1", ProjectName: "Tower A",
		VendorID: "v1", VendorName: "Acme",
		Item: "Wiring", Amount: 15000, ExpectedDate: "2024-06-30",
		Status: core.StatusIssue,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	waitFor(t, "created payment", func() bool { _, ok := c.Payment(id); return ok })

	before, _ := c.Payment(id)
	edited := before
	edited.Status = core.StatusPaid
	if _, err := c.SavePayment(ctx, edited); err != nil {
		t.Fatalf("update: %v", err)
	}

	waitFor(t, "status update", func() bool {
		p, _ := c.Payment(id)
		return p.Status == core.StatusPaid
	})
	after, _ := c.Payment(id)
	if after.Item != before.Item || after.Amount != before.Amount || after.ExpectedDate != before.ExpectedDate ||
		after.ProjectName != before.ProjectName || after.VendorName != before.VendorName {
		t.Fatalf("fields changed: before %+v after %+v", before, after)
	}
	if !after.CreatedAt.Equal(before.CreatedAt) {
		t.Fatalf("createdAt changed on update")
	}
	if len(c.Payments()) != 1 {
		t.Fatalf("update must not create a second payment")
	}
}

func TestPaymentsOrderedByExpectedDateDesc(t *testing.T) {
	f := newFixture(t, true)
	c := f.container
	ctx := context.Background()
	waitFor(t, "ready", c.Ready)

	for _, date := range []string{"2024-05-01", "2024-07-01", "2024-06-01"} {
		if _, err := c.SavePayment(ctx, core.Payment{Item: date, ExpectedDate: date, Status: core.StatusDraft}); err != nil {
			t.Fatalf("save: %v", err)
		}
	}
	waitFor(t, "three payments", func() bool { return len(c.Payments()) == 3 })

	got := c.Payments()
	want := []string{"2024-07-01", "2024-06-01", "2024-05-01"}
	for i := range want {
		if got[i].ExpectedDate != want[i] {
			t.Fatalf("payments[%d] = %s, want %s", i, got[i].ExpectedDate, want[i])
		}
	}
}

func TestCollectionFailureIsIsolated(t *testing.T) {
	f := newFixture(t, true)
	c := f.container
	waitFor(t, "ready", c.Ready)

	boom := errors.New("permission denied")
	f.store.FailCollection(docstore.Path(testApp, CollectionVendors), boom)
	waitFor(t, "subscription error", func() bool { return len(c.Errors()) == 1 })

	errs := c.Errors()
	if errs[0].Collection != CollectionVendors || !errors.Is(&errs[0], boom) {
		t.Fatalf("unexpected error %+v", errs[0])
	}

	if _, err := c.SaveProject(context.Background(), core.Project{Name: "Still works"}); err != nil {
		t.Fatalf("save project: %v", err)
	}
	waitFor(t, "projects keep streaming", func() bool { return len(c.Projects()) == 1 })
}

func TestFailedCollectionSettlesReadiness(t *testing.T) {
	tests := []struct {
		name           string
		failing        string
		paymentsLoaded bool
	}{
		{"vendors", CollectionVendors, true},
		{"payments", CollectionPayments, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := memory.New()
			boom := errors.New("permission denied")
			store.FailCollection(docstore.Path(testApp, tt.failing), boom)
			provider := identity.NewAnonymous(nil)
			if _, err := provider.EstablishAnonymous(context.Background()); err != nil {
				t.Fatalf("establish session: %v", err)
			}
			c := New(Config{Store: store, Provider: provider, AppID: testApp, Metrics: metrics.New()})
			c.Start(context.Background())
			t.Cleanup(func() {
				c.Close()
				store.Close()
			})

			waitFor(t, "ready despite a failed collection", c.Ready)
			if errs := c.Errors(); len(errs) != 1 || errs[0].Collection != tt.failing {
				t.Fatalf("unexpected errors %+v", errs)
			}
			if got := c.PaymentsLoaded(); got != tt.paymentsLoaded {
				t.Fatalf("PaymentsLoaded=%v, want %v", got, tt.paymentsLoaded)
			}
		})
	}
}

func TestWritesWithoutSessionAreNoops(t *testing.T) {
	f := newFixture(t, false)
	c := f.container
	ctx := context.Background()

	if c.Ready() {
		t.Fatal("container must not be ready without a session")
	}
	if _, err := c.SaveProject(ctx, core.Project{Name: "Tower A"}); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}
	if err := c.DeletePayment(ctx, "x"); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}
	if n := f.store.Count(docstore.Path(testApp, CollectionProjects)); n != 0 {
		t.Fatalf("store must be untouched, has %d projects", n)
	}
	if got := f.store.ActiveSubscriptions(); got != 0 {
		t.Fatalf("no subscriptions expected without session, got %d", got)
	}
}

func TestSessionChangeResubscribes(t *testing.T) {
	f := newFixture(t, false)
	c := f.container

	if _, err := f.provider.EstablishAnonymous(context.Background()); err != nil {
		t.Fatalf("establish: %v", err)
	}
	waitFor(t, "ready after sign in", c.Ready)
	if _, err := c.SaveProject(context.Background(), core.Project{Name: "Tower A"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	waitFor(t, "project", func() bool { return len(c.Projects()) == 1 })

	f.provider.SignOut()
	if c.Ready() || len(c.Projects()) != 0 {
		t.Fatal("sign out must clear mirrors")
	}
	if got := f.store.ActiveSubscriptions(); got != 0 {
		t.Fatalf("sign out must cancel subscriptions, %d left", got)
	}

	if _, err := f.provider.EstablishAnonymous(context.Background()); err != nil {
		t.Fatalf("re-establish: %v", err)
	}
	waitFor(t, "ready after second sign in", c.Ready)
	if got := f.store.ActiveSubscriptions(); got != 3 {
		t.Fatalf("active subscriptions = %d, want 3", got)
	}
	if len(c.Projects()) != 1 {
		t.Fatal("data should be mirrored again for the new session")
	}
}

func TestDeleteMissingReturnsWriteError(t *testing.T) {
	f := newFixture(t, true)
	c := f.container
	waitFor(t, "ready", c.Ready)

	err := c.DeleteVendor(context.Background(), "does-not-exist")
	var werr *WriteError
	if !errors.As(err, &werr) {
		t.Fatalf("expected WriteError, got %v", err)
	}
	if werr.Op != "delete" || werr.Collection != CollectionVendors || !errors.Is(err, docstore.ErrNotFound) {
		t.Fatalf("unexpected write error %+v", werr)
	}
}

func TestDeleteRemovesFromMirror(t *testing.T) {
	f := newFixture(t, true)
	c := f.container
	ctx := context.Background()
	waitFor(t, "ready", c.Ready)

	id, err := c.SaveVendor(ctx, core.Vendor{Name: "Acme"})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	waitFor(t, "vendor", func() bool { _, ok := c.Vendor(id); return ok })
	if v, _ := c.Vendor(id); v.Type != core.DefaultVendorType() {
		t.Fatalf("vendor type should default, got %q", v.Type)
	}

	if err := c.DeleteVendor(ctx, id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	waitFor(t, "vendor removed", func() bool { _, ok := c.Vendor(id); return !ok })
}

func TestSaveValidates(t *testing.T) {
	f := newFixture(t, true)
	c := f.container
	if _, err := c.SaveProject(context.Background(), core.Project{Name: "   "}); !errors.Is(err, core.ErrEmptyName) {
		t.Fatalf("expected ErrEmptyName, got %v", err)
	}
	if _, err := c.SavePayment(context.Background(), core.Payment{Status: "bogus"}); !errors.Is(err, core.ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}
}

func TestListenersAndVersion(t *testing.T) {
	f := newFixture(t, true)
	c := f.container
	waitFor(t, "ready", c.Ready)

	changed := make(chan struct{}, 16)
	cancel := c.Subscribe(func() {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	defer cancel()

	v0 := c.PaymentsVersion()
	if _, err := c.SavePayment(context.Background(), core.Payment{Item: "x", Status: core.StatusDraft}); err != nil {
		t.Fatalf("save: %v", err)
	}
	select {
	case <-changed:
	case <-time.After(3 * time.Second):
		t.Fatal("listener not called")
	}
	waitFor(t, "version bump", func() bool { return c.PaymentsVersion() > v0 })

	cancel()
	cancel()
}
