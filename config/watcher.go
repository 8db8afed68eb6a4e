// 配置文件变更监听。
//
// 轮询配置文件的修改时间，变化稳定后通过 Loader 重新加载并回调。
// 只有日志级别等可在运行时生效的字段会被使用方应用。
package config

import (
	"context"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ReloadFunc 在配置重载成功后调用
type ReloadFunc func(old, updated *Config)

// Watcher 监听配置文件并重载
type Watcher struct {
	mu sync.RWMutex

	loader        *Loader
	path          string
	interval      time.Duration
	debounceDelay time.Duration

	current   *Config
	lastMod   time.Time
	callbacks []ReloadFunc

	logger *zap.Logger
}

// WatcherOption configures the Watcher
type WatcherOption func(*Watcher)

// WithPollInterval 设置轮询间隔
func WithPollInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.interval = d
		}
	}
}

// WithDebounceDelay 设置变更稳定等待时间
func WithDebounceDelay(d time.Duration) WatcherOption {
	return func(w *Watcher) { w.debounceDelay = d }
}

// WithWatcherLogger sets the logger for the watcher
func WithWatcherLogger(logger *zap.Logger) WatcherOption {
	return func(w *Watcher) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// NewWatcher 创建监听器，current 为已加载的配置
func NewWatcher(loader *Loader, current *Config, opts ...WatcherOption) *Watcher {
	w := &Watcher{
		loader:        loader,
		path:          loader.configPath,
		interval:      2 * time.Second,
		debounceDelay: 100 * time.Millisecond,
		current:       current,
		logger:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.With(zap.String("component", "config_watcher"))
	if info, err := os.Stat(w.path); err == nil {
		w.lastMod = info.ModTime()
	}
	return w
}

// OnReload 注册重载回调
func (w *Watcher) OnReload(fn ReloadFunc) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, fn)
}

// Current 返回当前生效的配置
func (w *Watcher) Current() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// Run 阻塞轮询直到 ctx 结束；未指定配置文件时立即返回
func (w *Watcher) Run(ctx context.Context) {
	if w.path == "" {
		return
	}
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if w.changed() {
				w.settle(ctx)
				w.Reload()
			}
		}
	}
}

// changed 比较修改时间，文件被删除时保持当前配置
func (w *Watcher) changed() bool {
	info, err := os.Stat(w.path)
	if err != nil {
		return false
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if info.ModTime().Equal(w.lastMod) {
		return false
	}
	w.lastMod = info.ModTime()
	return true
}

// settle 等待编辑器写完
func (w *Watcher) settle(ctx context.Context) {
	if w.debounceDelay <= 0 {
		return
	}
	t := time.NewTimer(w.debounceDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// Reload 立即重新加载；失败时保留旧配置
func (w *Watcher) Reload() bool {
	updated, err := w.loader.Load()
	if err == nil {
		err = updated.Validate()
	}
	if err != nil {
		w.logger.Warn("config reload rejected", zap.String("path", w.path), zap.Error(err))
		return false
	}

	w.mu.Lock()
	old := w.current
	w.current = updated
	callbacks := make([]ReloadFunc, len(w.callbacks))
	copy(callbacks, w.callbacks)
	w.mu.Unlock()

	w.logger.Info("config reloaded", zap.String("path", w.path))
	for _, fn := range callbacks {
		fn(old, updated)
	}
	return true
}
