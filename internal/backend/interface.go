package backend

import (
	"context"

	"sitepay/internal/docstore"
)

// BackendType represents the type of document store backend
type BackendType string

const (
	MemoryBackend BackendType = "memory"
	SQLiteBackend BackendType = "sqlite"
)

func (bt BackendType) IsValid() bool {
	return bt == MemoryBackend || bt == SQLiteBackend
}

func (bt BackendType) String() string {
	return string(bt)
}

// Config holds backend-specific configuration
type Config struct {
	Type         BackendType
	AppID        string
	SQLiteDBPath string
	AMQPURL      string
	AMQPExchange string
	Seed         bool
}

// Result is a ready store plus what the caller must run and release.
type Result struct {
	Store docstore.Store

	// Background runs until ctx ends; nil when there is nothing to run.
	Background func(ctx context.Context) error

	Cleanup func() error
}
