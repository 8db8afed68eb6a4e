package persona

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/BaSui01/agentcouncil/types"
)

var (
	ErrDuplicatePersona = errors.New("persona already exists")
	ErrInvalidPersona   = errors.New("invalid persona")
)

// Roster 只追加的角色名册
type Roster struct {
	mu       sync.RWMutex
	personas []types.Persona
}

// NewRoster 以给定角色创建名册，未提供时使用默认名册
func NewRoster(personas ...types.Persona) *Roster {
	if len(personas) == 0 {
		personas = DefaultPersonas()
	}
	r := &Roster{}
	for _, p := range personas {
		_ = r.Add(p)
	}
	return r
}

// Add 追加角色，ID 或名称重复时返回 ErrDuplicatePersona
func (r *Roster) Add(p types.Persona) error {
	if strings.TrimSpace(p.ID) == "" || strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: id and name are required", ErrInvalidPersona)
	}
	if !p.Category.Valid() {
		return fmt.Errorf("%w: unknown category %q", ErrInvalidPersona, p.Category)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.personas {
		if existing.ID == p.ID || strings.EqualFold(existing.Name, p.Name) {
			return fmt.Errorf("%w: %s", ErrDuplicatePersona, p.Name)
		}
	}
	r.personas = append(r.personas, clonePersona(p))
	return nil
}

// All 返回全部角色的拷贝，按加入顺序
func (r *Roster) All() []types.Persona {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]types.Persona, len(r.personas))
	for i, p := range r.personas {
		out[i] = clonePersona(p)
	}
	return out
}

func (r *Roster) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.personas)
}

// Get 按 ID 查找
func (r *Roster) Get(id string) (types.Persona, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.personas {
		if p.ID == id {
			return clonePersona(p), true
		}
	}
	return types.Persona{}, false
}

// ByName 按名称查找，大小写不敏感
func (r *Roster) ByName(name string) (types.Persona, bool) {
	name = strings.TrimSpace(name)
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.personas {
		if strings.EqualFold(p.Name, name) {
			return clonePersona(p), true
		}
	}
	return types.Persona{}, false
}

// ByCategory 返回该类别的第一个角色
func (r *Roster) ByCategory(c types.Category) (types.Persona, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.personas {
		if p.Category == c {
			return clonePersona(p), true
		}
	}
	return types.Persona{}, false
}

// ForCategory 同 ByCategory，找不到时退回第一个角色
func (r *Roster) ForCategory(c types.Category) (types.Persona, bool) {
	if p, ok := r.ByCategory(c); ok {
		return p, true
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.personas) == 0 {
		return types.Persona{}, false
	}
	return clonePersona(r.personas[0]), true
}

// Experts 返回会话内召唤的专家
func (r *Roster) Experts() []types.Persona {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []types.Persona
	for _, p := range r.personas {
		if p.Expert {
			out = append(out, clonePersona(p))
		}
	}
	return out
}

func clonePersona(p types.Persona) types.Persona {
	p.Capabilities = append([]string(nil), p.Capabilities...)
	p.QuickCommands = append([]string(nil), p.QuickCommands...)
	return p
}
