package persistence

import (
	"fmt"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type factoryOptions struct {
	db          *gorm.DB
	redisClient redis.UniversalClient
}

// FactoryOption 为工厂提供外部持有的连接
type FactoryOption func(*factoryOptions)

// WithDB 提供 database 后端使用的 gorm 连接
func WithDB(db *gorm.DB) FactoryOption {
	return func(o *factoryOptions) { o.db = db }
}

// WithRedisClient 复用已有的 Redis 客户端
func WithRedisClient(c redis.UniversalClient) FactoryOption {
	return func(o *factoryOptions) { o.redisClient = c }
}

// NewLogStore creates a new LogStore based on the configuration
func NewLogStore(config StoreConfig, opts ...FactoryOption) (LogStore, error) {
	var o factoryOptions
	for _, opt := range opts {
		opt(&o)
	}

	switch config.Type {
	case StoreTypeMemory, "":
		return NewMemoryLogStore(config), nil
	case StoreTypeFile:
		return NewFileLogStore(config)
	case StoreTypeRedis:
		if o.redisClient != nil {
			return NewRedisLogStoreWithClient(o.redisClient, config), nil
		}
		return NewRedisLogStore(config)
	case StoreTypeDatabase:
		if o.db == nil {
			return nil, fmt.Errorf("%w: database store requires a connection", ErrInvalidInput)
		}
		return NewGormLogStore(o.db, config)
	default:
		return nil, fmt.Errorf("unsupported log store type: %s", config.Type)
	}
}

// MustNewLogStore creates a new LogStore or panics on error.
//
// WARNING: This function should ONLY be used during application initialization.
// For runtime store creation, use NewLogStore instead.
func MustNewLogStore(config StoreConfig, opts ...FactoryOption) LogStore {
	store, err := NewLogStore(config, opts...)
	if err != nil {
		panic(fmt.Sprintf("failed to create log store: %v", err))
	}
	return store
}
