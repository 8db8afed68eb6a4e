package speech

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// State 朗读状态
type State string

const (
	StateIdle     State = "idle"
	StateLoading  State = "loading"
	StateSpeaking State = "speaking"
)

// SpeakRequest 一次朗读请求
type SpeakRequest struct {
	Text    string
	APIKey  string
	Model   string
	Format  string
	Profile VoiceProfile
}

// Status 朗读器快照
type Status struct {
	State   State `json:"state"`
	Current int   `json:"current"`
	Total   int   `json:"total"`
	Cached  []int `json:"cached"`
	Local   bool  `json:"local"`
}

// NarratorOption 配置 Narrator
type NarratorOption func(*Narrator)

// WithLocalVoice 设置本地兜底朗读器
func WithLocalVoice(v LocalVoice) NarratorOption {
	return func(n *Narrator) { n.local = v }
}

// WithChunkLimit 设置分段上限
func WithChunkLimit(limit int) NarratorOption {
	return func(n *Narrator) { n.chunkLimit = limit }
}

// WithSynthesisObserver 设置合成观测
func WithSynthesisObserver(o Observer) NarratorOption {
	return func(n *Narrator) { n.observer = o }
}

// Narrator 分段朗读编排：按需合成第 i 段并预取第 i+1 段，播放完毕释放缓存。
// Speak 是开关语义，Stop 可在任意时刻调用且幂等。
type Narrator struct {
	tts        TTSProvider
	sink       AudioSink
	local      LocalVoice
	observer   Observer
	chunkLimit int
	logger     *zap.Logger

	group singleflight.Group
	wg    sync.WaitGroup

	mu      sync.Mutex
	state   State
	runID   uint64
	cancel  context.CancelFunc
	done    chan struct{}
	cache   map[int]*TTSResponse
	current int
	total   int
	isLocal bool
}

// NewNarrator 创建朗读器。tts 为 nil 时总是走本地朗读。
func NewNarrator(tts TTSProvider, sink AudioSink, logger *zap.Logger, opts ...NarratorOption) *Narrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	n := &Narrator{
		tts:        tts,
		sink:       sink,
		chunkLimit: DefaultChunkLimit,
		logger:     logger.With(zap.String("component", "narrator")),
		state:      StateIdle,
		cache:      make(map[int]*TTSResponse),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Speak 空闲时开始朗读并返回 true；正在加载或朗读时停止当前朗读并返回 false。
// 朗读在后台进行，不受 ctx 取消影响，只能通过 Stop 结束。
func (n *Narrator) Speak(ctx context.Context, req SpeakRequest) bool {
	n.mu.Lock()
	if n.state != StateIdle {
		n.mu.Unlock()
		n.Stop()
		return false
	}

	chunks := Chunk(StripMarkup(req.Text), n.chunkLimit)
	if len(chunks) == 0 {
		n.mu.Unlock()
		return false
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	n.runID++
	id := n.runID
	done := make(chan struct{})
	n.cancel = cancel
	n.done = done
	n.state = StateLoading
	n.cache = make(map[int]*TTSResponse)
	n.current = 0
	n.total = len(chunks)
	n.isLocal = n.tts == nil || n.sink == nil || req.APIKey == ""
	local := n.isLocal
	n.mu.Unlock()

	go func() {
		defer close(done)
		defer n.finish(id)
		if local {
			n.speakLocal(runCtx, id, strings.Join(chunks, " "), req.Profile)
			return
		}
		n.play(runCtx, id, chunks, req)
	}()
	return true
}

// Stop 中止进行中的合成与播放，清空队列和缓存并回到 idle。
func (n *Narrator) Stop() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.cancel != nil {
		n.cancel()
		n.cancel = nil
	}
	n.runID++
	n.reset()
}

// Wait 阻塞到当前朗读（含预取）结束
func (n *Narrator) Wait(ctx context.Context) error {
	n.mu.Lock()
	done := n.done
	n.mu.Unlock()
	if done != nil {
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	waited := make(chan struct{})
	go func() {
		n.wg.Wait()
		close(waited)
	}()
	select {
	case <-waited:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// State 返回当前状态
func (n *Narrator) State() State {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state
}

// Status 返回状态快照
func (n *Narrator) Status() Status {
	n.mu.Lock()
	defer n.mu.Unlock()
	return Status{
		State:   n.state,
		Current: n.current,
		Total:   n.total,
		Cached:  n.cachedLocked(),
		Local:   n.isLocal,
	}
}

// CachedChunks 返回已缓存音频的分段下标（升序）
func (n *Narrator) CachedChunks() []int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.cachedLocked()
}

func (n *Narrator) cachedLocked() []int {
	idx := make([]int, 0, len(n.cache))
	for i := range n.cache {
		idx = append(idx, i)
	}
	sort.Ints(idx)
	return idx
}

func (n *Narrator) play(ctx context.Context, id uint64, chunks []string, req SpeakRequest) {
	for i := range chunks {
		if ctx.Err() != nil {
			return
		}
		audio, err := n.fetch(ctx, id, i, chunks[i], req)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			n.logger.Warn("chunk synthesis failed, switching to local voice",
				zap.Int("chunk", i), zap.Error(err))
			n.mu.Lock()
			if n.runID == id {
				n.isLocal = true
			}
			n.mu.Unlock()
			n.speakLocal(ctx, id, strings.Join(chunks[i:], " "), req.Profile)
			return
		}

		if i+1 < len(chunks) {
			n.prefetch(ctx, id, i+1, chunks[i+1], req)
		}

		if !n.advance(id, i, StateSpeaking) {
			return
		}
		err = n.sink.Play(ctx, &Clip{
			Index:  i,
			Total:  len(chunks),
			Text:   chunks[i],
			Format: audio.Format,
			Audio:  audio.AudioData,
		})
		n.release(id, i)
		if err != nil {
			if ctx.Err() == nil {
				n.logger.Warn("playback failed", zap.Int("chunk", i), zap.Error(err))
			}
			return
		}
	}
}

// fetch 读取缓存，未命中时合成；同一段的并发请求（预取与播放）合并为一次。
func (n *Narrator) fetch(ctx context.Context, id uint64, idx int, text string, req SpeakRequest) (*TTSResponse, error) {
	n.mu.Lock()
	if n.runID != id {
		n.mu.Unlock()
		return nil, context.Canceled
	}
	if cached, ok := n.cache[idx]; ok {
		n.mu.Unlock()
		return cached, nil
	}
	n.mu.Unlock()

	v, err, _ := n.group.Do(fmt.Sprintf("%d:%d", id, idx), func() (any, error) {
		start := time.Now()
		resp, err := n.tts.Synthesize(ctx, &TTSRequest{
			APIKey:         req.APIKey,
			Text:           text,
			Model:          req.Model,
			Voice:          req.Profile.Voice,
			Speed:          req.Profile.Rate,
			ResponseFormat: req.Format,
		})
		n.observe(err, time.Since(start))
		if err != nil {
			return nil, err
		}
		if resp == nil || len(resp.AudioData) == 0 {
			return nil, errors.New("empty audio")
		}
		n.mu.Lock()
		if n.runID == id {
			n.cache[idx] = resp
		}
		n.mu.Unlock()
		return resp, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*TTSResponse), nil
}

func (n *Narrator) prefetch(ctx context.Context, id uint64, idx int, text string, req SpeakRequest) {
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		if _, err := n.fetch(ctx, id, idx, text, req); err != nil && ctx.Err() == nil {
			n.logger.Debug("prefetch failed", zap.Int("chunk", idx), zap.Error(err))
		}
	}()
}

func (n *Narrator) speakLocal(ctx context.Context, id uint64, text string, profile VoiceProfile) {
	if !n.advance(id, n.Status().Current, StateSpeaking) {
		return
	}
	if n.local == nil {
		n.logger.Warn("no local voice configured, narration skipped")
		return
	}
	if err := n.local.Speak(ctx, text, profile); err != nil && ctx.Err() == nil {
		n.logger.Warn("local narration failed", zap.Error(err))
	}
}

// advance 仅当仍是同一次朗读时更新状态
func (n *Narrator) advance(id uint64, idx int, state State) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.runID != id {
		return false
	}
	n.current = idx
	n.state = state
	return true
}

func (n *Narrator) release(id uint64, idx int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.runID == id {
		delete(n.cache, idx)
	}
}

func (n *Narrator) finish(id uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.runID != id {
		return
	}
	if n.cancel != nil {
		n.cancel()
		n.cancel = nil
	}
	n.reset()
}

func (n *Narrator) reset() {
	n.state = StateIdle
	n.cache = make(map[int]*TTSResponse)
	n.current = 0
	n.total = 0
	n.isLocal = false
}

func (n *Narrator) observe(err error, d time.Duration) {
	if n.observer == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	n.observer.ObserveSynthesis(n.tts.Name(), status, d)
}
