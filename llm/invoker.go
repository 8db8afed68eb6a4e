package llm

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/BaSui01/agentcouncil/types"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Invocation 一次模型调用的全部输入
type Invocation struct {
	Config     types.AIConfig
	Prompt     string
	Attachment *Attachment
	JSONMode   bool
	WebSearch  bool
}

// Result 一次模型调用的输出
type Result struct {
	Text           string   `json:"text"`
	Sources        []Source `json:"sources,omitempty"`
	Provider       string   `json:"provider"`
	Model          string   `json:"model"`
	SearchFallback bool     `json:"search_fallback,omitempty"` // 联网搜索失败后以普通模式重试
}

// Invoker 是引擎依赖的唯一调用接口
type Invoker interface {
	Invoke(ctx context.Context, inv Invocation) (*Result, error)
}

// Observer 接收每次调用的结果，由 metrics.Collector 实现
type Observer interface {
	ObserveInvocation(provider, model, status string, duration time.Duration)
}

// Adapter 按 AIConfig 选择 Provider 并执行调用，自身无状态
type Adapter struct {
	providers       map[types.ProviderName]Provider
	defaultProvider types.ProviderName
	implicitKey     string
	observer        Observer
	tracer          trace.Tracer
	logger          *zap.Logger
}

// AdapterOption 配置 Adapter
type AdapterOption func(*Adapter)

// WithProvider 注册 Provider，以 Name() 作为键
func WithProvider(p Provider) AdapterOption {
	return func(a *Adapter) {
		a.providers[types.ProviderName(p.Name())] = p
	}
}

// WithImplicitKey 默认 Provider 在未提供密钥时使用的密钥
func WithImplicitKey(key string) AdapterOption {
	return func(a *Adapter) { a.implicitKey = key }
}

func WithObserver(o Observer) AdapterOption {
	return func(a *Adapter) { a.observer = o }
}

func WithTracer(t trace.Tracer) AdapterOption {
	return func(a *Adapter) { a.tracer = t }
}

// NewAdapter 创建调用适配器
func NewAdapter(logger *zap.Logger, opts ...AdapterOption) *Adapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &Adapter{
		providers:       make(map[types.ProviderName]Provider),
		defaultProvider: types.ProviderGemini,
		logger:          logger.With(zap.String("component", "llm_adapter")),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.tracer == nil {
		a.tracer = otel.Tracer("agentcouncil/llm")
	}
	return a
}

// Invoke 执行一次调用。
// 缺少密钥时在发起网络请求之前返回 ErrMissingCredential；
// 联网搜索失败时（配额与鉴权错误除外）以非搜索模式重试一次，结果不带引用。
func (a *Adapter) Invoke(ctx context.Context, inv Invocation) (*Result, error) {
	if strings.TrimSpace(inv.Prompt) == "" {
		return nil, &Error{Code: ErrInvalidRequest, Message: "prompt is required", HTTPStatus: 400}
	}

	name := inv.Config.ProviderOrDefault()
	p, ok := a.providers[name]
	if !ok {
		return nil, &Error{Code: ErrProviderUnavailable, Message: "unknown provider: " + string(name), HTTPStatus: 400, Provider: string(name)}
	}

	key := strings.TrimSpace(inv.Config.APIKey)
	if key == "" && name == a.defaultProvider {
		key = a.implicitKey
	}
	if key == "" {
		return nil, MissingCredential(string(name))
	}

	model := inv.Config.Model
	if model == "" {
		model = p.DefaultModel()
	}

	ctx, span := a.tracer.Start(ctx, "llm.invoke", trace.WithAttributes(
		attribute.String("llm.provider", string(name)),
		attribute.String("llm.model", model),
		attribute.Bool("llm.json_mode", inv.JSONMode),
		attribute.Bool("llm.web_search", inv.WebSearch),
	))
	defer span.End()

	req := &GenerateRequest{
		APIKey:     key,
		Model:      model,
		Prompt:     inv.Prompt,
		Attachment: inv.Attachment,
		JSONMode:   inv.JSONMode,
		WebSearch:  inv.WebSearch,
	}

	start := time.Now()
	resp, err := p.Generate(ctx, req)
	fallback := false
	if err != nil && req.WebSearch && shouldRetryWithoutSearch(err) {
		a.logger.Warn("web search call failed, retrying without search",
			zap.String("provider", string(name)),
			zap.String("model", model),
			zap.Error(err))
		span.AddEvent("search_fallback")
		req.WebSearch = false
		fallback = true
		resp, err = p.Generate(ctx, req)
	}

	status := "success"
	if err != nil {
		lerr := asError(err, string(name))
		status = strings.ToLower(string(lerr.Code))
		a.observe(string(name), model, status, time.Since(start))
		span.RecordError(lerr)
		span.SetStatus(codes.Error, lerr.Message)
		a.logger.Debug("invocation failed",
			zap.String("provider", string(name)),
			zap.String("code", string(lerr.Code)),
			zap.Error(lerr))
		return nil, lerr
	}
	if fallback {
		status = "search_fallback"
	}
	a.observe(string(name), model, status, time.Since(start))

	out := &Result{
		Text:           resp.Text,
		Sources:        resp.Sources,
		Provider:       string(name),
		Model:          model,
		SearchFallback: fallback,
	}
	if resp.Model != "" {
		out.Model = resp.Model
	}
	if fallback {
		out.Sources = nil
	}
	span.SetAttributes(attribute.Int("llm.sources", len(out.Sources)))
	return out, nil
}

func (a *Adapter) observe(provider, model, status string, d time.Duration) {
	if a.observer != nil {
		a.observer.ObserveInvocation(provider, model, status, d)
	}
}

func shouldRetryWithoutSearch(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	switch CodeOf(err) {
	case ErrQuotaExceeded, ErrRateLimited, ErrMissingCredential, ErrUnauthorized, ErrForbidden:
		return false
	}
	return true
}
