package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/BaSui01/agentcouncil/types"
)

// WorkflowLogRecord is the workflow_logs row. Steps and Output are stored as JSON text
// so the same schema works on postgres, mysql and sqlite.
type WorkflowLogRecord struct {
	ID        string    `gorm:"primaryKey;size:64"`
	Title     string    `gorm:"size:255;not null"`
	Seed      string    `gorm:"type:text"`
	Status    string    `gorm:"size:16;not null;index"`
	Steps     string    `gorm:"type:text"`
	Output    string    `gorm:"type:text"`
	Timestamp time.Time `gorm:"not null;index:idx_workflow_logs_timestamp"`
	CreatedAt time.Time
}

// TableName 与迁移文件中的表名一致
func (WorkflowLogRecord) TableName() string { return "workflow_logs" }

func toRecord(l *types.WorkflowLog) (*WorkflowLogRecord, error) {
	steps, err := json.Marshal(l.Steps)
	if err != nil {
		return nil, err
	}
	rec := &WorkflowLogRecord{
		ID:        l.ID,
		Title:     l.Title,
		Seed:      l.Seed,
		Status:    string(l.Status),
		Steps:     string(steps),
		Timestamp: l.Timestamp.UTC(),
	}
	if l.Output != nil {
		out, err := json.Marshal(l.Output)
		if err != nil {
			return nil, err
		}
		rec.Output = string(out)
	}
	return rec, nil
}

func (r *WorkflowLogRecord) toLog() (*types.WorkflowLog, error) {
	l := &types.WorkflowLog{
		ID:        r.ID,
		Title:     r.Title,
		Seed:      r.Seed,
		Status:    types.RunStatus(r.Status),
		Timestamp: r.Timestamp,
	}
	if r.Steps != "" {
		if err := json.Unmarshal([]byte(r.Steps), &l.Steps); err != nil {
			return nil, fmt.Errorf("decode steps of %s: %w", r.ID, err)
		}
	}
	if r.Output != "" {
		l.Output = &types.RunOutput{}
		if err := json.Unmarshal([]byte(r.Output), l.Output); err != nil {
			return nil, fmt.Errorf("decode output of %s: %w", r.ID, err)
		}
	}
	return l, nil
}

// GormLogStore 基于 gorm 的 LogStore，支持 postgres / mysql / sqlite
type GormLogStore struct {
	db      *gorm.DB
	maxLogs int
}

// NewGormLogStore 创建数据库存储；autoMigrate 为 true 时由 gorm 建表
func NewGormLogStore(db *gorm.DB, config StoreConfig) (*GormLogStore, error) {
	if db == nil {
		return nil, fmt.Errorf("%w: nil database", ErrInvalidInput)
	}
	if config.AutoMigrate {
		if err := db.AutoMigrate(&WorkflowLogRecord{}); err != nil {
			return nil, fmt.Errorf("failed to migrate workflow_logs: %w", err)
		}
	}
	return &GormLogStore{db: db, maxLogs: config.MaxLogs}, nil
}

// Close 连接池由 database.PoolManager 持有，这里不关闭
func (s *GormLogStore) Close() error { return nil }

// Ping checks if the store is healthy
func (s *GormLogStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Append stores a new log
func (s *GormLogStore) Append(ctx context.Context, log *types.WorkflowLog) error {
	stored, err := prepareLog(log)
	if err != nil {
		return err
	}
	rec, err := toRecord(stored)
	if err != nil {
		return fmt.Errorf("failed to encode log: %w", err)
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&WorkflowLogRecord{}).Where("id = ?", rec.ID).Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return ErrAlreadyExists
		}
		if err := tx.Create(rec).Error; err != nil {
			if isDuplicate(err) {
				return ErrAlreadyExists
			}
			return fmt.Errorf("failed to save log: %w", err)
		}
		return s.evict(tx)
	})
}

// evict drops the oldest rows beyond maxLogs
func (s *GormLogStore) evict(tx *gorm.DB) error {
	if s.maxLogs <= 0 {
		return nil
	}
	var stale []string
	err := tx.Model(&WorkflowLogRecord{}).
		Order("timestamp DESC").Order("id DESC").
		Offset(s.maxLogs).Limit(1000).
		Pluck("id", &stale).Error
	if err != nil || len(stale) == 0 {
		return err
	}
	return tx.Where("id IN ?", stale).Delete(&WorkflowLogRecord{}).Error
}

// Get returns a stored log
func (s *GormLogStore) Get(ctx context.Context, id string) (*types.WorkflowLog, error) {
	var rec WorkflowLogRecord
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get log: %w", err)
	}
	return rec.toLog()
}

// List returns logs newest first
func (s *GormLogStore) List(ctx context.Context, opts ListOptions) ([]*types.WorkflowLog, error) {
	opts = opts.normalize()
	var recs []WorkflowLogRecord
	err := s.db.WithContext(ctx).
		Order("timestamp DESC").Order("id DESC").
		Offset(opts.Offset).Limit(opts.Limit).
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list logs: %w", err)
	}
	logs := make([]*types.WorkflowLog, 0, len(recs))
	for i := range recs {
		l, err := recs[i].toLog()
		if err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	return logs, nil
}

// Count returns the number of stored logs
func (s *GormLogStore) Count(ctx context.Context) (int, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&WorkflowLogRecord{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("failed to count logs: %w", err)
	}
	return int(n), nil
}

// Delete removes a log
func (s *GormLogStore) Delete(ctx context.Context, id string) error {
	if err := validateID(id); err != nil {
		return err
	}
	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&WorkflowLogRecord{})
	if res.Error != nil {
		return fmt.Errorf("failed to delete log: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Clear removes every log
func (s *GormLogStore) Clear(ctx context.Context) (int, error) {
	res := s.db.WithContext(ctx).Where("1 = 1").Delete(&WorkflowLogRecord{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to clear logs: %w", res.Error)
	}
	return int(res.RowsAffected), nil
}

func isDuplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate") || strings.Contains(msg, "unique constraint")
}
