package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/BaSui01/agentcouncil/types"
)

// Common errors
var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrStoreClosed   = errors.New("store is closed")
	ErrInvalidInput  = errors.New("invalid input")
)

// StoreType represents the type of storage backend
type StoreType string

const (
	StoreTypeMemory   StoreType = "memory"
	StoreTypeFile     StoreType = "file"
	StoreTypeRedis    StoreType = "redis"
	StoreTypeDatabase StoreType = "database"
)

// StoreConfig is the base configuration for all store implementations
type StoreConfig struct {
	// Type is the storage backend type
	Type StoreType `json:"type" yaml:"type" env:"TYPE"`

	// BaseDir is the base directory for file-based storage
	BaseDir string `json:"base_dir" yaml:"base_dir" env:"BASE_DIR"`

	// MaxLogs caps the number of retained logs; the oldest are evicted first.
	// Zero means unbounded.
	MaxLogs int `json:"max_logs" yaml:"max_logs" env:"MAX_LOGS"`

	// Redis configuration (only used when Type is "redis")
	Redis RedisStoreConfig `json:"redis" yaml:"redis"`

	// AutoMigrate creates the workflow_logs table through gorm when Type is
	// "database". Production deployments run `agentcouncil migrate up` instead.
	AutoMigrate bool `json:"auto_migrate" yaml:"auto_migrate" env:"AUTO_MIGRATE"`
}

// RedisStoreConfig contains Redis-specific configuration
type RedisStoreConfig struct {
	// Host is the Redis server host
	Host string `json:"host" yaml:"host"`

	// Port is the Redis server port
	Port int `json:"port" yaml:"port"`

	// Password is the Redis password (optional)
	Password string `json:"password" yaml:"password"`

	// DB is the Redis database number
	DB int `json:"db" yaml:"db"`

	// PoolSize is the connection pool size
	PoolSize int `json:"pool_size" yaml:"pool_size"`

	// KeyPrefix is the prefix for all Redis keys
	KeyPrefix string `json:"key_prefix" yaml:"key_prefix"`
}

// DefaultKeyPrefix is used when RedisStoreConfig.KeyPrefix is empty
const DefaultKeyPrefix = "agentcouncil:"

// DefaultStoreConfig returns the default store configuration
func DefaultStoreConfig() StoreConfig {
	return StoreConfig{
		Type:    StoreTypeMemory,
		BaseDir: "./data/persistence",
		MaxLogs: 500,
		Redis: RedisStoreConfig{
			Host:      "localhost",
			Port:      6379,
			DB:        0,
			PoolSize:  10,
			KeyPrefix: DefaultKeyPrefix,
		},
	}
}

// Store is the base interface for all persistent stores
type Store interface {
	// Close closes the store and releases resources
	Close() error

	// Ping checks if the store is healthy
	Ping(ctx context.Context) error
}

// ListOptions controls pagination for List. Results are always newest first.
type ListOptions struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// DefaultListLimit is applied when ListOptions.Limit is not positive
const DefaultListLimit = 50

func (o ListOptions) normalize() ListOptions {
	if o.Limit <= 0 {
		o.Limit = DefaultListLimit
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
	return o
}

// LogStore persists workflow run logs. Logs are immutable once appended.
type LogStore interface {
	Store

	// Append stores a new log. An empty ID is filled in; a duplicate ID
	// returns ErrAlreadyExists.
	Append(ctx context.Context, log *types.WorkflowLog) error

	// Get returns a copy of a stored log or ErrNotFound
	Get(ctx context.Context, id string) (*types.WorkflowLog, error)

	// List returns logs newest first
	List(ctx context.Context, opts ListOptions) ([]*types.WorkflowLog, error)

	// Count returns the number of stored logs
	Count(ctx context.Context) (int, error)

	// Delete removes one log or returns ErrNotFound
	Delete(ctx context.Context, id string) error

	// Clear removes every log and returns how many were removed
	Clear(ctx context.Context) (int, error)
}

// prepareLog validates a log before it is written and fills in ID and timestamp.
// The returned copy is what the backend stores.
func prepareLog(log *types.WorkflowLog) (*types.WorkflowLog, error) {
	if log == nil {
		return nil, fmt.Errorf("%w: nil log", ErrInvalidInput)
	}
	out := log.Clone()
	out.ID = strings.TrimSpace(out.ID)
	if out.ID == "" {
		out.ID = uuid.New().String()
	}
	if out.Timestamp.IsZero() {
		out.Timestamp = time.Now()
	}
	switch out.Status {
	case types.RunSuccess, types.RunFailed, types.RunPartial:
	default:
		return nil, fmt.Errorf("%w: unknown run status %q", ErrInvalidInput, out.Status)
	}
	log.ID, log.Timestamp = out.ID, out.Timestamp
	return out, nil
}

func validateID(id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidInput)
	}
	return nil
}
