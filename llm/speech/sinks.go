package speech

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Clip 一个待播放的分段
type Clip struct {
	Index  int    `json:"index"`
	Total  int    `json:"total"`
	Text   string `json:"text"`
	Format string `json:"format"`
	Audio  []byte `json:"audio,omitempty"`
}

// AudioSink 播放一个分段，返回即表示该分段播放结束
type AudioSink interface {
	Play(ctx context.Context, clip *Clip) error
}

// DirSink 把每个分段写入目录（CLI narrate 使用）
type DirSink struct {
	Dir string
}

func (s *DirSink) Play(ctx context.Context, clip *Clip) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return err
	}
	name := filepath.Join(s.Dir, fmt.Sprintf("chunk-%03d.%s", clip.Index, clip.Format))
	return os.WriteFile(name, clip.Audio, 0o644)
}

// PublishFunc 把分段推送给客户端
type PublishFunc func(ctx context.Context, clip *Clip) error

// AckSink 推送分段后等待客户端回报播放结束（Ack），超时视为已播放。
type AckSink struct {
	publish PublishFunc
	timeout time.Duration

	mu      sync.Mutex
	waiting map[int]chan struct{}
}

// NewAckSink 创建 AckSink，timeout <= 0 时为 30s
func NewAckSink(publish PublishFunc, timeout time.Duration) *AckSink {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &AckSink{publish: publish, timeout: timeout, waiting: make(map[int]chan struct{})}
}

func (s *AckSink) Play(ctx context.Context, clip *Clip) error {
	ch := make(chan struct{})
	s.mu.Lock()
	s.waiting[clip.Index] = ch
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		if s.waiting[clip.Index] == ch {
			delete(s.waiting, clip.Index)
		}
		s.mu.Unlock()
	}()

	if err := s.publish(ctx, clip); err != nil {
		return err
	}

	timer := time.NewTimer(s.timeout)
	defer timer.Stop()
	select {
	case <-ch:
		return nil
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Ack 标记分段播放结束，没有等待者时返回 false
func (s *AckSink) Ack(index int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.waiting[index]
	if !ok {
		return false
	}
	close(ch)
	delete(s.waiting, index)
	return true
}
