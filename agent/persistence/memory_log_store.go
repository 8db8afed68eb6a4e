package persistence

import (
	"context"
	"sort"
	"sync"

	"github.com/BaSui01/agentcouncil/types"
)

// MemoryLogStore is an in-memory LogStore.
// Suitable for development, testing and single-session desktop use.
type MemoryLogStore struct {
	logs    map[string]*types.WorkflowLog
	maxLogs int
	mu      sync.RWMutex
	closed  bool
}

// NewMemoryLogStore creates a new in-memory log store
func NewMemoryLogStore(config StoreConfig) *MemoryLogStore {
	return &MemoryLogStore{
		logs:    make(map[string]*types.WorkflowLog),
		maxLogs: config.MaxLogs,
	}
}

// Close closes the store
func (s *MemoryLogStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.logs = nil
	return nil
}

// Ping checks if the store is healthy
func (s *MemoryLogStore) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrStoreClosed
	}
	return nil
}

// Append stores a new log
func (s *MemoryLogStore) Append(ctx context.Context, log *types.WorkflowLog) error {
	stored, err := prepareLog(log)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	if _, exists := s.logs[stored.ID]; exists {
		return ErrAlreadyExists
	}
	s.logs[stored.ID] = stored
	s.evictLocked()
	return nil
}

// evictLocked drops the oldest logs beyond maxLogs
func (s *MemoryLogStore) evictLocked() {
	if s.maxLogs <= 0 || len(s.logs) <= s.maxLogs {
		return
	}
	sorted := newestFirst(s.logs)
	for _, l := range sorted[s.maxLogs:] {
		delete(s.logs, l.ID)
	}
}

// Get returns a stored log
func (s *MemoryLogStore) Get(ctx context.Context, id string) (*types.WorkflowLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}
	l, ok := s.logs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return l.Clone(), nil
}

// List returns logs newest first
func (s *MemoryLogStore) List(ctx context.Context, opts ListOptions) ([]*types.WorkflowLog, error) {
	opts = opts.normalize()
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}
	return page(newestFirst(s.logs), opts), nil
}

// Count returns the number of stored logs
func (s *MemoryLogStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, ErrStoreClosed
	}
	return len(s.logs), nil
}

// Delete removes a log
func (s *MemoryLogStore) Delete(ctx context.Context, id string) error {
	if err := validateID(id); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	if _, ok := s.logs[id]; !ok {
		return ErrNotFound
	}
	delete(s.logs, id)
	return nil
}

// Clear removes every log
func (s *MemoryLogStore) Clear(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrStoreClosed
	}
	n := len(s.logs)
	s.logs = make(map[string]*types.WorkflowLog)
	return n, nil
}

// newestFirst 按时间倒序，时间相同按 ID 排序保证稳定
func newestFirst(logs map[string]*types.WorkflowLog) []*types.WorkflowLog {
	out := make([]*types.WorkflowLog, 0, len(logs))
	for _, l := range logs {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].ID > out[j].ID
		}
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out
}

// page 截取分页并返回拷贝
func page(sorted []*types.WorkflowLog, opts ListOptions) []*types.WorkflowLog {
	if opts.Offset >= len(sorted) {
		return []*types.WorkflowLog{}
	}
	end := min(opts.Offset+opts.Limit, len(sorted))
	out := make([]*types.WorkflowLog, 0, end-opts.Offset)
	for _, l := range sorted[opts.Offset:end] {
		out = append(out, l.Clone())
	}
	return out
}
