package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/BaSui01/agentcouncil/types"
)

// Observer 接收存储操作的耗时，由 metrics.Collector 实现
type Observer interface {
	ObserveStoreOp(backend, op, status string, d time.Duration)
}

// InstrumentedLogStore 为 LogStore 增加观测
type InstrumentedLogStore struct {
	LogStore
	backend  string
	observer Observer
}

// Instrument 包装 store；observer 为 nil 时原样返回
func Instrument(store LogStore, backend StoreType, observer Observer) LogStore {
	if observer == nil {
		return store
	}
	return &InstrumentedLogStore{LogStore: store, backend: string(backend), observer: observer}
}

func (s *InstrumentedLogStore) observe(op string, start time.Time, err error) {
	status := "success"
	switch {
	case errors.Is(err, ErrNotFound):
		status = "not_found"
	case err != nil:
		status = "error"
	}
	s.observer.ObserveStoreOp(s.backend, op, status, time.Since(start))
}

func (s *InstrumentedLogStore) Append(ctx context.Context, log *types.WorkflowLog) error {
	start := time.Now()
	err := s.LogStore.Append(ctx, log)
	s.observe("append", start, err)
	return err
}

func (s *InstrumentedLogStore) Get(ctx context.Context, id string) (*types.WorkflowLog, error) {
	start := time.Now()
	l, err := s.LogStore.Get(ctx, id)
	s.observe("get", start, err)
	return l, err
}

func (s *InstrumentedLogStore) List(ctx context.Context, opts ListOptions) ([]*types.WorkflowLog, error) {
	start := time.Now()
	logs, err := s.LogStore.List(ctx, opts)
	s.observe("list", start, err)
	return logs, err
}

func (s *InstrumentedLogStore) Delete(ctx context.Context, id string) error {
	start := time.Now()
	err := s.LogStore.Delete(ctx, id)
	s.observe("delete", start, err)
	return err
}

func (s *InstrumentedLogStore) Clear(ctx context.Context) (int, error) {
	start := time.Now()
	n, err := s.LogStore.Clear(ctx)
	s.observe("clear", start, err)
	return n, err
}
