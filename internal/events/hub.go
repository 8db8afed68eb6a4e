package events

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// ErrHubClosed Hub 已关闭
var ErrHubClosed = errors.New("event hub is closed")

// DefaultBufferSize 每个会话保留的事件数
const DefaultBufferSize = 256

// Event 会话事件，Seq 在会话内单调递增，从 1 开始
type Event struct {
	Seq       uint64    `json:"seq"`
	SessionID string    `json:"session_id"`
	Type      string    `json:"type"`
	Payload   any       `json:"payload,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Gauge 订阅者数量指标
type Gauge interface {
	SetEventSubscribers(n int)
}

// Option 配置 Hub
type Option func(*Hub)

// WithBufferSize 设置回放缓冲大小
func WithBufferSize(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.bufferSize = n
		}
	}
}

// WithGauge 设置订阅者数量指标
func WithGauge(g Gauge) Option { return func(h *Hub) { h.gauge = g } }

// WithClock 替换时间源
func WithClock(now func() time.Time) Option { return func(h *Hub) { h.now = now } }

// Hub 按会话分发事件。发布不阻塞：订阅者的通道写满时会被断开，
// 客户端带上最后收到的 seq 重新订阅即可从回放缓冲补齐。
type Hub struct {
	bufferSize int
	gauge      Gauge
	now        func() time.Time
	logger     *zap.Logger

	mu      sync.Mutex
	streams map[string]*stream
	closed  bool

	subscribers atomic.Int64
	nextSubID   atomic.Uint64
}

// NewHub 创建事件中心
func NewHub(logger *zap.Logger, opts ...Option) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Hub{
		bufferSize: DefaultBufferSize,
		now:        time.Now,
		logger:     logger.With(zap.String("component", "event_hub")),
		streams:    make(map[string]*stream),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

type stream struct {
	mu   sync.Mutex
	seq  uint64
	ring []Event
	head int // 最旧事件的下标
	size int
	subs map[uint64]*Subscription
}

func (h *Hub) stream(sessionID string, create bool) (*stream, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, ErrHubClosed
	}
	s, ok := h.streams[sessionID]
	if !ok && create {
		s = &stream{
			ring: make([]Event, h.bufferSize),
			subs: make(map[uint64]*Subscription),
		}
		h.streams[sessionID] = s
	}
	return s, nil
}

// Publish 记录事件并推送给订阅者，返回分配的 seq
func (h *Hub) Publish(sessionID, eventType string, payload any) uint64 {
	s, err := h.stream(sessionID, true)
	if err != nil {
		return 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	ev := Event{
		Seq:       s.seq,
		SessionID: sessionID,
		Type:      eventType,
		Payload:   payload,
		Timestamp: h.now().UTC(),
	}
	s.push(ev)

	for id, sub := range s.subs {
		select {
		case sub.ch <- ev:
		default:
			h.logger.Warn("event subscriber lagged, disconnecting",
				zap.String("session_id", sessionID),
				zap.Uint64("subscription", id),
				zap.Uint64("seq", ev.Seq),
			)
			delete(s.subs, id)
			h.release(sub)
		}
	}
	return ev.Seq
}

// Emit 同 Publish，签名与议会、画板的事件回调一致
func (h *Hub) Emit(sessionID, eventType string, payload any) {
	h.Publish(sessionID, eventType, payload)
}

func (s *stream) push(ev Event) {
	n := len(s.ring)
	if s.size < n {
		s.ring[(s.head+s.size)%n] = ev
		s.size++
		return
	}
	s.ring[s.head] = ev
	s.head = (s.head + 1) % n
}

// since 返回 seq 大于 after 的缓冲事件
func (s *stream) since(after uint64) []Event {
	out := make([]Event, 0, s.size)
	for i := 0; i < s.size; i++ {
		ev := s.ring[(s.head+i)%len(s.ring)]
		if ev.Seq > after {
			out = append(out, ev)
		}
	}
	return out
}

// Subscribe 订阅会话事件。replay 为缓冲中 seq 大于 since 的事件，
// 之后的事件从 Subscription.Events 读取，两者之间没有遗漏也没有重复。
func (h *Hub) Subscribe(sessionID string, since uint64) (*Subscription, []Event, error) {
	s, err := h.stream(sessionID, true)
	if err != nil {
		return nil, nil, err
	}

	sub := &Subscription{
		ID:        h.nextSubID.Add(1),
		SessionID: sessionID,
		ch:        make(chan Event, h.bufferSize),
		hub:       h,
	}

	s.mu.Lock()
	replay := s.since(since)
	s.subs[sub.ID] = sub
	s.mu.Unlock()

	h.setGauge(h.subscribers.Add(1))
	return sub, replay, nil
}

// Unsubscribe 取消订阅，可重复调用
func (h *Hub) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	s, err := h.stream(sub.SessionID, false)
	if err != nil || s == nil {
		h.release(sub)
		return
	}
	s.mu.Lock()
	delete(s.subs, sub.ID)
	s.mu.Unlock()
	h.release(sub)
}

// LastSeq 返回会话最近一个事件的 seq
func (h *Hub) LastSeq(sessionID string) uint64 {
	s, err := h.stream(sessionID, false)
	if err != nil || s == nil {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seq
}

// Remove 丢弃会话的缓冲并断开其订阅者
func (h *Hub) Remove(sessionID string) {
	h.mu.Lock()
	s, ok := h.streams[sessionID]
	delete(h.streams, sessionID)
	h.mu.Unlock()
	if ok {
		h.drain(s)
	}
}

// Close 断开所有订阅者，之后的 Publish 被忽略
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	streams := h.streams
	h.streams = make(map[string]*stream)
	h.mu.Unlock()

	for _, s := range streams {
		h.drain(s)
	}
}

func (h *Hub) drain(s *stream) {
	s.mu.Lock()
	subs := s.subs
	s.subs = make(map[uint64]*Subscription)
	s.mu.Unlock()
	for _, sub := range subs {
		h.release(sub)
	}
}

// Subscribers 当前订阅者数量
func (h *Hub) Subscribers() int {
	return int(h.subscribers.Load())
}

func (h *Hub) release(sub *Subscription) {
	sub.once.Do(func() {
		close(sub.ch)
		h.setGauge(h.subscribers.Add(-1))
	})
}

func (h *Hub) setGauge(n int64) {
	if h.gauge != nil {
		h.gauge.SetEventSubscribers(int(n))
	}
}

// Subscription 一个会话订阅
type Subscription struct {
	ID        uint64
	SessionID string

	ch   chan Event
	hub  *Hub
	once sync.Once
}

// Events 事件通道；订阅被取消或落后太多时关闭
func (s *Subscription) Events() <-chan Event {
	return s.ch
}

// Close 等同于 Hub.Unsubscribe
func (s *Subscription) Close() {
	s.hub.Unsubscribe(s)
}
