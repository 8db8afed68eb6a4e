package council

import (
	"sort"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Factory 为新会话创建引擎
type Factory func(id string) *Engine

// Sessions 议会会话管理器，每个会话一个 Engine
type Sessions struct {
	factory Factory
	logger  *zap.Logger

	mu      sync.RWMutex
	engines map[string]*Engine
}

func NewSessions(factory Factory, logger *zap.Logger) *Sessions {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sessions{
		factory: factory,
		logger:  logger.With(zap.String("component", "council_sessions")),
		engines: make(map[string]*Engine),
	}
}

// Create 创建新会话
func (s *Sessions) Create() *Engine {
	id := uuid.NewString()
	e := s.factory(id)
	s.mu.Lock()
	s.engines[id] = e
	n := len(s.engines)
	s.mu.Unlock()
	s.logger.Debug("council session created", zap.String("session_id", id), zap.Int("active", n))
	return e
}

func (s *Sessions) Get(id string) (*Engine, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.engines[id]
	return e, ok
}

// Close 关闭并移除会话
func (s *Sessions) Close(id string) bool {
	s.mu.Lock()
	e, ok := s.engines[id]
	delete(s.engines, id)
	s.mu.Unlock()
	if ok {
		e.Close()
		s.logger.Debug("council session closed", zap.String("session_id", id))
	}
	return ok
}

// CloseAll 关闭全部会话，服务退出时调用
func (s *Sessions) CloseAll() {
	s.mu.Lock()
	engines := s.engines
	s.engines = make(map[string]*Engine)
	s.mu.Unlock()
	for _, e := range engines {
		e.Close()
	}
	if len(engines) > 0 {
		s.logger.Info("council sessions closed", zap.Int("count", len(engines)))
	}
}

func (s *Sessions) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.engines))
	for id := range s.engines {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (s *Sessions) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.engines)
}
