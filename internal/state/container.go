// Package state mirrors the projects, vendors and payments collections of a
// document store in memory and routes writes back to the store.
package state

import (
	"context"
	"sort"
	"sync"

	"sitepay/internal/core"
	"sitepay/internal/docstore"
	"sitepay/internal/identity"
	"sitepay/internal/log"
	"sitepay/internal/metrics"
)

type Config struct {
	Store    docstore.Store
	Provider identity.Provider
	AppID    string
	Logger   *log.Logger
	Metrics  *metrics.Metrics
}

// Container holds the in-memory mirrors. Each collection is replaced
// wholesale by its own subscription; a snapshot from a previous session is
// dropped by comparing generations.
type Container struct {
	store    docstore.Store
	provider identity.Provider
	appID    string
	logger   *log.Logger
	metrics  *metrics.Metrics

	mu              sync.RWMutex
	baseCtx         context.Context
	session         *identity.Session
	generation      uint64
	projects        []core.Project
	vendors         []core.Vendor
	payments        []core.Payment
	paymentsVersion uint64
	loaded          map[string]bool
	errs            map[string]*SubscriptionError
	unsubs          map[string]docstore.Unsubscribe
	stopSession     func()
	closed          bool

	listenersMu  sync.Mutex
	listeners    map[int]func()
	nextListener int
}

func New(cfg Config) *Container {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Discard()
	}
	return &Container{
		store:     cfg.Store,
		provider:  cfg.Provider,
		appID:     cfg.AppID,
		logger:    logger.WithComponent(log.ComponentState),
		metrics:   cfg.Metrics,
		baseCtx:   context.Background(),
		loaded:    make(map[string]bool),
		errs:      make(map[string]*SubscriptionError),
		unsubs:    make(map[string]docstore.Unsubscribe),
		listeners: make(map[int]func()),
	}
}

// Start follows the provider's session. The current session, if any, is
// applied before Start returns.
func (c *Container) Start(ctx context.Context) {
	c.mu.Lock()
	if c.closed || c.stopSession != nil {
		c.mu.Unlock()
		return
	}
	c.baseCtx = context.WithoutCancel(ctx)
	c.mu.Unlock()

	stop := c.provider.OnSessionChange(c.onSession)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		stop()
		return
	}
	c.stopSession = stop
	c.mu.Unlock()
}

func (c *Container) onSession(s *identity.Session) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	old := c.unsubs
	c.unsubs = make(map[string]docstore.Unsubscribe)
	c.generation++
	gen := c.generation
	c.session = s
	c.projects, c.vendors, c.payments = nil, nil, nil
	c.paymentsVersion++
	c.loaded = make(map[string]bool)
	c.errs = make(map[string]*SubscriptionError)
	base := c.baseCtx
	c.mu.Unlock()

	for _, unsub := range old {
		unsub()
	}
	c.metrics.SubscriptionsClosed(len(old))

	if s == nil {
		c.logger.Info("Session ended, mirrors cleared")
		c.notify()
		return
	}

	c.logger.Info("Session established, subscribing", log.FieldSessionID, s.ID)
	ctx := identity.WithSession(base, s)
	c.subscribe(ctx, gen, CollectionProjects, projectsQuery, c.applyProjects)
	c.subscribe(ctx, gen, CollectionVendors, vendorsQuery, c.applyVendors)
	c.subscribe(ctx, gen, CollectionPayments, paymentsQuery, c.applyPayments)
	c.notify()
}

func (c *Container) subscribe(ctx context.Context, gen uint64, name string, q docstore.Query, apply func([]docstore.Document)) {
	onSnapshot := func(docs []docstore.Document) {
		c.mu.Lock()
		if c.generation != gen {
			c.mu.Unlock()
			return
		}
		apply(docs)
		c.loaded[name] = true
		delete(c.errs, name)
		c.mu.Unlock()

		c.metrics.Snapshot(name)
		c.logger.Debug("Snapshot applied", log.FieldCollection, name, log.FieldCount, len(docs))
		c.notify()
	}
	onError := func(err error) {
		c.fail(gen, name, err)
	}

	unsub, err := c.store.Subscribe(ctx, docstore.Path(c.appID, name), q, onSnapshot, onError)
	if err != nil {
		c.fail(gen, name, err)
		return
	}

	c.mu.Lock()
	if c.generation != gen || c.closed {
		c.mu.Unlock()
		unsub()
		return
	}
	c.unsubs[name] = unsub
	c.mu.Unlock()
	c.metrics.SubscriptionsOpened(1)
}

func (c *Container) fail(gen uint64, name string, err error) {
	c.mu.Lock()
	if c.generation != gen {
		c.mu.Unlock()
		return
	}
	subErr := &SubscriptionError{Collection: name, Err: err}
	c.errs[name] = subErr
	_, wasOpen := c.unsubs[name]
	delete(c.unsubs, name)
	c.mu.Unlock()

	if wasOpen {
		c.metrics.SubscriptionsClosed(1)
	}
	c.metrics.SubscriptionError(name)
	c.logger.Error("Subscription failed",
		log.NewFields().WithOperation(log.OpSubscribe).WithDocument(name, "").WithError(err).ToSlice()...)
	c.notify()
}

// apply* run with c.mu held.

func (c *Container) applyProjects(docs []docstore.Document) {
	out := make([]core.Project, 0, len(docs))
	for _, d := range docs {
		out = append(out, projectFromDocument(d))
	}
	c.projects = out
}

func (c *Container) applyVendors(docs []docstore.Document) {
	out := make([]core.Vendor, 0, len(docs))
	for _, d := range docs {
		out = append(out, vendorFromDocument(d))
	}
	c.vendors = out
}

func (c *Container) applyPayments(docs []docstore.Document) {
	out := make([]core.Payment, 0, len(docs))
	for _, d := range docs {
		out = append(out, paymentFromDocument(d))
	}
	c.payments = out
	c.paymentsVersion++
}

// Ready reports whether every collection settled for the current session:
// it delivered a first snapshot or failed. A failed collection shows up in
// Errors and does not hold back the others.
func (c *Container) Ready() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.session == nil {
		return false
	}
	for _, name := range []string{CollectionProjects, CollectionVendors, CollectionPayments} {
		if !c.loaded[name] && c.errs[name] == nil {
			return false
		}
	}
	return true
}

// PaymentsLoaded reports whether the payments mirror holds a snapshot of the
// current session.
func (c *Container) PaymentsLoaded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session != nil && c.loaded[CollectionPayments]
}

// Session returns the session the mirrors belong to, or nil.
func (c *Container) Session() *identity.Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session
}

// Errors returns the failed subscriptions of the current session, ordered by
// collection name.
func (c *Container) Errors() []SubscriptionError {
	c.mu.RLock()
	out := make([]SubscriptionError, 0, len(c.errs))
	for _, e := range c.errs {
		out = append(out, *e)
	}
	c.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Collection < out[j].Collection })
	return out
}

func (c *Container) Projects() []core.Project {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]core.Project(nil), c.projects...)
}

func (c *Container) Vendors() []core.Vendor {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]core.Vendor(nil), c.vendors...)
}

func (c *Container) Payments() []core.Payment {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]core.Payment(nil), c.payments...)
}

// PaymentsWithVersion returns the payments mirror together with the version
// it belongs to.
func (c *Container) PaymentsWithVersion() ([]core.Payment, uint64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]core.Payment(nil), c.payments...), c.paymentsVersion
}

// PaymentsVersion changes whenever the payments mirror is replaced.
func (c *Container) PaymentsVersion() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.paymentsVersion
}

func (c *Container) Project(id string) (core.Project, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, p := range c.projects {
		if p.ID == id {
			return p, true
		}
	}
	return core.Project{}, false
}

func (c *Container) Vendor(id string) (core.Vendor, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, v := range c.vendors {
		if v.ID == id {
			return v, true
		}
	}
	return core.Vendor{}, false
}

func (c *Container) Payment(id string) (core.Payment, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, p := range c.payments {
		if p.ID == id {
			return p, true
		}
	}
	return core.Payment{}, false
}

// Subscribe registers fn to run after every applied snapshot, subscription
// failure or session change. fn runs on a store goroutine and must not block.
func (c *Container) Subscribe(fn func()) (cancel func()) {
	c.listenersMu.Lock()
	id := c.nextListener
	c.nextListener++
	c.listeners[id] = fn
	c.listenersMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.listenersMu.Lock()
			delete(c.listeners, id)
			c.listenersMu.Unlock()
		})
	}
}

func (c *Container) notify() {
	c.listenersMu.Lock()
	fns := make([]func(), 0, len(c.listeners))
	for _, fn := range c.listeners {
		fns = append(fns, fn)
	}
	c.listenersMu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// Close stops following the session and cancels every subscription.
func (c *Container) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.generation++
	stop := c.stopSession
	old := c.unsubs
	c.unsubs = make(map[string]docstore.Unsubscribe)
	c.mu.Unlock()

	if stop != nil {
		stop()
	}
	for _, unsub := range old {
		unsub()
	}
	c.metrics.SubscriptionsClosed(len(old))
}
