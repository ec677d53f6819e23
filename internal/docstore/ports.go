// Package docstore defines the realtime document store the application
// mirrors its collections from. Backends live in the memory and sqlite
// subpackages.
package docstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"sitepay/internal/identity"
)

var (
	ErrUnauthenticated = errors.New("docstore: no session")
	ErrNotFound        = errors.New("docstore: document not found")
	ErrClosed          = errors.New("docstore: store closed")
)

type (
	// Fields holds document values: string, float64, bool, time.Time or nil.
	// ServerTimestamp may be used on writes.
	Fields map[string]any

	Document struct {
		ID     string
		Fields Fields
	}

	Direction int

	// Query orders a collection by one field.
	Query struct {
		OrderBy   string
		Direction Direction
	}

	// SnapshotFunc receives the full, ordered contents of a collection.
	SnapshotFunc func(docs []Document)

	// ErrorFunc is called once when a subscription fails. The subscription
	// delivers nothing afterwards.
	ErrorFunc func(err error)

	// Unsubscribe cancels a subscription. Calling it more than once is a no-op.
	Unsubscribe func()
)

const (
	Asc Direction = iota
	Desc
)

func (d Direction) String() string {
	if d == Desc {
		return "desc"
	}
	return "asc"
}

// Store is the document store port.
type Store interface {
	// Subscribe delivers a snapshot now and after every change to collection.
	Subscribe(ctx context.Context, collection string, q Query, onSnapshot SnapshotFunc, onError ErrorFunc) (Unsubscribe, error)

	// Insert creates a document and returns its store-assigned id.
	Insert(ctx context.Context, collection string, fields Fields) (string, error)

	// Update merges fields into an existing document. Fields not named are kept.
	Update(ctx context.Context, collection, id string, fields Fields) error

	// Delete removes a document. Missing documents return ErrNotFound.
	Delete(ctx context.Context, collection, id string) error

	Close() error
}

type serverTimestamp struct{}

// ServerTimestamp is replaced by the store's clock when a write is applied.
var ServerTimestamp = serverTimestamp{}

// Path addresses a collection under an application id.
func Path(appID, collection string) string {
	return fmt.Sprintf("apps/%s/%s", appID, collection)
}

// Authorize rejects contexts without a session.
func Authorize(ctx context.Context) error {
	if identity.FromContext(ctx) == nil {
		return ErrUnauthenticated
	}
	return nil
}

// ResolveTimestamps returns a copy of fields with ServerTimestamp replaced by now.
func ResolveTimestamps(fields Fields, now time.Time) Fields {
	out := make(Fields, len(fields))
	for k, v := range fields {
		if _, ok := v.(serverTimestamp); ok {
			out[k] = now
			continue
		}
		out[k] = v
	}
	return out
}

// Merge applies patch on top of base and returns a new map.
func Merge(base, patch Fields) Fields {
	out := make(Fields, len(base)+len(patch))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range patch {
		out[k] = v
	}
	return out
}

// Clone copies a document so callers cannot mutate store state.
func (d Document) Clone() Document {
	return Document{ID: d.ID, Fields: Merge(d.Fields, nil)}
}

// String returns a string field or "".
func (f Fields) String(key string) string {
	s, _ := f[key].(string)
	return s
}

// Time returns a time field or the zero time.
func (f Fields) Time(key string) time.Time {
	t, _ := f[key].(time.Time)
	return t
}
