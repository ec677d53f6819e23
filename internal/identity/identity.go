// Package identity issues anonymous sessions and notifies listeners when the
// current session changes. Store operations require a session in their
// context.
package identity

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Session is an established identity used to authorize store operations.
type Session struct {
	ID        string
	Anonymous bool
	IssuedAt  time.Time
}

// AuthError reports that a session could not be established.
type AuthError struct {
	Err error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("establish session: %v", e.Err)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// Provider is the identity port used by the state container.
type Provider interface {
	// EstablishAnonymous returns the current session, creating an anonymous
	// one if none exists. Failures are *AuthError.
	EstablishAnonymous(ctx context.Context) (*Session, error)

	// OnSessionChange registers a handler that is called immediately with the
	// current session (possibly nil) and again on every change.
	OnSessionChange(handler func(*Session)) (cancel func())

	// Current returns the current session or nil.
	Current() *Session

	// SignOut drops the current session and notifies handlers with nil.
	SignOut()
}

// IssueFunc creates a new session. It is swappable for tests.
type IssueFunc func(ctx context.Context) (*Session, error)

// AnonymousProvider issues uuid-backed anonymous sessions in process.
type AnonymousProvider struct {
	mu       sync.Mutex
	current  *Session
	handlers map[int]func(*Session)
	nextID   int
	issue    IssueFunc
}

var _ Provider = (*AnonymousProvider)(nil)

// NewAnonymous returns a provider with no session. Pass nil to use the
// default uuid issuer.
func NewAnonymous(issue IssueFunc) *AnonymousProvider {
	if issue == nil {
		issue = issueUUID
	}
	return &AnonymousProvider{
		handlers: make(map[int]func(*Session)),
		issue:    issue,
	}
}

func issueUUID(ctx context.Context) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	id, err := uuid.NewRandom()
	if err != nil {
		return nil, err
	}
	return &Session{ID: id.String(), Anonymous: true, IssuedAt: time.Now().UTC()}, nil
}

func (p *AnonymousProvider) EstablishAnonymous(ctx context.Context) (*Session, error) {
	p.mu.Lock()
	if p.current != nil {
		s := p.current
		p.mu.Unlock()
		return s, nil
	}
	p.mu.Unlock()

	s, err := p.issue(ctx)
	if err != nil {
		return nil, &AuthError{Err: err}
	}
	if s == nil {
		return nil, &AuthError{Err: errors.New("issuer returned no session")}
	}

	p.mu.Lock()
	if p.current != nil {
		// lost a race with another caller; keep the first session
		existing := p.current
		p.mu.Unlock()
		return existing, nil
	}
	p.current = s
	handlers := p.snapshotHandlers()
	p.mu.Unlock()

	for _, h := range handlers {
		h(s)
	}
	return s, nil
}

func (p *AnonymousProvider) OnSessionChange(handler func(*Session)) func() {
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.handlers[id] = handler
	current := p.current
	p.mu.Unlock()

	handler(current)

	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			delete(p.handlers, id)
			p.mu.Unlock()
		})
	}
}

func (p *AnonymousProvider) Current() *Session {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

func (p *AnonymousProvider) SignOut() {
	p.mu.Lock()
	if p.current == nil {
		p.mu.Unlock()
		return
	}
	p.current = nil
	handlers := p.snapshotHandlers()
	p.mu.Unlock()

	for _, h := range handlers {
		h(nil)
	}
}

// snapshotHandlers must be called with p.mu held.
func (p *AnonymousProvider) snapshotHandlers() []func(*Session) {
	out := make([]func(*Session), 0, len(p.handlers))
	for _, h := range p.handlers {
		out = append(out, h)
	}
	return out
}

type sessionKey struct{}

// WithSession attaches a session to ctx.
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// FromContext returns the session attached to ctx, or nil.
func FromContext(ctx context.Context) *Session {
	s, _ := ctx.Value(sessionKey{}).(*Session)
	return s
}
