package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BaSui01/agentcouncil/types"
)

// FileLogStore 基于文件的 LogStore，内存中保留全部记录，每次变更整体落盘。
// 适合单节点部署。
type FileLogStore struct {
	*MemoryLogStore
	path string
}

// NewFileLogStore 创建文件存储并加载已有记录
func NewFileLogStore(config StoreConfig) (*FileLogStore, error) {
	baseDir := filepath.Join(config.BaseDir, "logs")
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log store directory: %w", err)
	}

	store := &FileLogStore{
		MemoryLogStore: NewMemoryLogStore(config),
		path:           filepath.Join(baseDir, "index.json"),
	}
	if err := store.loadFromDisk(); err != nil {
		return nil, fmt.Errorf("failed to load logs from disk: %w", err)
	}
	return store, nil
}

func (s *FileLogStore) loadFromDisk() error {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}

	var logs []*types.WorkflowLog
	if err := json.Unmarshal(data, &logs); err != nil {
		return err
	}
	for _, l := range logs {
		if l != nil && l.ID != "" {
			s.logs[l.ID] = l
		}
	}
	s.evictLocked()
	return nil
}

// saveLocked 原子写: 写入临时文件后重命名
func (s *FileLogStore) saveLocked() error {
	data, err := json.MarshalIndent(newestFirst(s.logs), "", "  ")
	if err != nil {
		return err
	}
	tempPath := s.path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return err
	}
	return os.Rename(tempPath, s.path)
}

// Close 落盘后关闭
func (s *FileLogStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	err := s.saveLocked()
	s.closed = true
	s.logs = nil
	return err
}

// Append 追加并落盘，写盘失败时回滚内存
func (s *FileLogStore) Append(ctx context.Context, log *types.WorkflowLog) error {
	if err := s.MemoryLogStore.Append(ctx, log); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	if err := s.saveLocked(); err != nil {
		delete(s.logs, log.ID)
		return fmt.Errorf("failed to persist log: %w", err)
	}
	return nil
}

// Delete 删除并落盘
func (s *FileLogStore) Delete(ctx context.Context, id string) error {
	if err := s.MemoryLogStore.Delete(ctx, id); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	return s.saveLocked()
}

// Clear 清空并落盘
func (s *FileLogStore) Clear(ctx context.Context) (int, error) {
	n, err := s.MemoryLogStore.Clear(ctx)
	if err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrStoreClosed
	}
	return n, s.saveLocked()
}
