package backend

import (
	"context"
	"time"

	"smartexpense/internal/core"
	"smartexpense/internal/ports"
)

// Backend is everything the views and the JSON routes need from storage.
type Backend interface {
	ports.ExpenseStore
	ports.AnalyticsReader
}

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// ReadyFunc reports whether the backend can serve requests.
type ReadyFunc func(ctx context.Context) error

// BackendResult contains the backend instance and its lifecycle hooks.
// Cleanup and Ready may be nil.
type BackendResult struct {
	Backend Backend
	Cleanup CleanupFunc
	Ready   ReadyFunc
	// Remote reports whether failures come from the remote backend (HTTP 502)
	// rather than from a local store (HTTP 500).
	Remote bool
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// Remote API
	BackendURL     string
	BackendTimeout time.Duration
	CacheTTL       time.Duration

	// SQLite specific
	SQLiteDBPath string
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Memory specific
	SeedFile string

	// Local analytics
	Budget core.Budget
}

// BackendType represents the type of backend
type BackendType string

const (
	APIBackend    BackendType = "api"
	MemoryBackend BackendType = "memory"
	SQLiteBackend BackendType = "sqlite"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case APIBackend, MemoryBackend, SQLiteBackend:
		return true
	default:
		return false
	}
}

type composite struct {
	ports.ExpenseStore
	ports.AnalyticsReader
}
