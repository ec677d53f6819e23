package state

import (
	"errors"
	"fmt"
)

// ErrNoSession is returned by writes attempted before a session exists.
// Nothing is sent to the store.
var ErrNoSession = errors.New("state: no session")

// SubscriptionError records a collection whose live subscription failed.
// The other collections keep streaming.
type SubscriptionError struct {
	Collection string
	Err        error
}

func (e *SubscriptionError) Error() string {
	return fmt.Sprintf("subscription %s: %v", e.Collection, e.Err)
}

func (e *SubscriptionError) Unwrap() error { return e.Err }

// WriteError wraps a failed store write.
type WriteError struct {
	Op         string
	Collection string
	ID         string
	Err        error
}

func (e *WriteError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Collection, e.Err)
	}
	return fmt.Sprintf("%s %s/%s: %v", e.Op, e.Collection, e.ID, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }
