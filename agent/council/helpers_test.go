package council

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/BaSui01/agentcouncil/llm"
	"github.com/BaSui01/agentcouncil/llm/tools"
)

// fakeScheduler 手动推进的时钟，到期的回调在 Advance 的调用方 goroutine 中执行
type fakeScheduler struct {
	mu     sync.Mutex
	now    time.Duration
	timers []*fakeTimer
}

type fakeTimer struct {
	s       *fakeScheduler
	at      time.Duration
	f       func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	active := !t.stopped && !t.fired
	t.stopped = true
	return active
}

func (s *fakeScheduler) AfterFunc(d time.Duration, f func()) Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &fakeTimer{s: s, at: s.now + d, f: f}
	s.timers = append(s.timers, t)
	return t
}

func (s *fakeScheduler) Advance(d time.Duration) {
	s.mu.Lock()
	s.now += d
	var due []*fakeTimer
	for _, t := range s.timers {
		if !t.stopped && !t.fired && t.at <= s.now {
			t.fired = true
			due = append(due, t)
		}
	}
	s.mu.Unlock()
	sort.Slice(due, func(i, j int) bool { return due[i].at < due[j].at })
	for _, t := range due {
		t.f()
	}
}

// active 未触发也未取消的计时器数量
func (s *fakeScheduler) active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

// scriptInvoker 按顺序返回预置回复，用完后重复最后一条
type scriptInvoker struct {
	mu      sync.Mutex
	replies []string
	errs    map[int]error
	calls   []llm.Invocation
}

func newScript(replies ...string) *scriptInvoker {
	return &scriptInvoker{replies: replies, errs: map[int]error{}}
}

func (s *scriptInvoker) failOn(n int, err error) *scriptInvoker {
	s.errs[n] = err
	return s
}

func (s *scriptInvoker) Invoke(_ context.Context, inv llm.Invocation) (*llm.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, inv)
	n := len(s.calls)
	if err, ok := s.errs[n]; ok {
		return nil, err
	}
	if len(s.replies) == 0 {
		return &llm.Result{Text: `{"replies":[]}`}, nil
	}
	i := min(n-1, len(s.replies)-1)
	return &llm.Result{Text: s.replies[i]}, nil
}

func (s *scriptInvoker) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func (s *scriptInvoker) prompt(n int) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[n-1].Prompt
}

type fakeSearcher struct {
	mu      sync.Mutex
	queries []string
	results []tools.WebSearchResult
}

func (f *fakeSearcher) Search(_ context.Context, query, _ string) []tools.WebSearchResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, query)
	return f.results
}

type recordingObserver struct {
	mu    sync.Mutex
	turns []string
	gate  []string
}

func (r *recordingObserver) ObserveCouncilTurn(kind, status string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.turns = append(r.turns, kind+":"+status)
}

func (r *recordingObserver) ObserveSearchGate(transition string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gate = append(r.gate, transition)
}

const (
	sparkyReply = `{"replies":[{"personaName":"Sparky","text":"Beep! On it."}]}`
	searchReply = `{"searchRequest":{"query":"ocean temperature 2026","personaName":"Nova","rationale":"Need fresh data."}}`
)
