package workflow

import (
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/BaSui01/agentcouncil/llm"
)

// Boards 按会话 ID 管理画板
type Boards struct {
	invoker llm.Invoker
	roster  Roster
	logger  *zap.Logger
	opts    []BoardOption

	mu     sync.RWMutex
	boards map[string]*Board
}

// NewBoards 创建画板注册表，opts 应用于每个新画板
func NewBoards(invoker llm.Invoker, roster Roster, logger *zap.Logger, opts ...BoardOption) *Boards {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Boards{
		invoker: invoker,
		roster:  roster,
		logger:  logger,
		opts:    opts,
		boards:  make(map[string]*Board),
	}
}

// Get 查找画板
func (r *Boards) Get(id string) (*Board, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.boards[id]
	return b, ok
}

// GetOrCreate 查找或创建画板
func (r *Boards) GetOrCreate(id string) *Board {
	if b, ok := r.Get(id); ok {
		return b
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.boards[id]; ok {
		return b
	}
	b := NewBoard(id, r.invoker, r.roster, r.logger, r.opts...)
	r.boards[id] = b
	return b
}

// Remove 删除画板
func (r *Boards) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.boards, id)
}

// IDs 返回全部画板 ID
func (r *Boards) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.boards))
	for id := range r.boards {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
