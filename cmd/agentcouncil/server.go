package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/BaSui01/agentcouncil/agent/council"
	"github.com/BaSui01/agentcouncil/agent/persistence"
	"github.com/BaSui01/agentcouncil/agent/persona"
	"github.com/BaSui01/agentcouncil/api/handlers"
	"github.com/BaSui01/agentcouncil/config"
	"github.com/BaSui01/agentcouncil/internal/cache"
	"github.com/BaSui01/agentcouncil/internal/database"
	"github.com/BaSui01/agentcouncil/internal/events"
	"github.com/BaSui01/agentcouncil/internal/metrics"
	"github.com/BaSui01/agentcouncil/internal/server"
	"github.com/BaSui01/agentcouncil/internal/telemetry"
	"github.com/BaSui01/agentcouncil/llm"
	"github.com/BaSui01/agentcouncil/llm/providers/gemini"
	"github.com/BaSui01/agentcouncil/llm/providers/openai"
	"github.com/BaSui01/agentcouncil/llm/speech"
	"github.com/BaSui01/agentcouncil/llm/tokenizer"
	"github.com/BaSui01/agentcouncil/llm/tools"
	"github.com/BaSui01/agentcouncil/types"
	"github.com/BaSui01/agentcouncil/workflow"
)

// =============================================================================
// 🖥️ 服务器
// =============================================================================

// Server 持有全部运行期组件：HTTP 与 Metrics 两个监听、会话工作区、
// 运行日志存储以及可选的数据库与 Redis 连接。
type Server struct {
	cfg        *config.Config
	configPath string
	level      zap.AtomicLevel
	logger     *zap.Logger

	collector *metrics.Collector
	otel      *telemetry.Providers
	cache     *cache.Manager
	db        *database.PoolManager
	store     persistence.LogStore
	hub       *events.Hub
	workspace *handlers.Workspace
	health    *handlers.HealthHandler
	handler   http.Handler

	httpManager    *server.Manager
	metricsManager *server.Manager

	// 后台任务（限流清理、配置监听）
	bgCtx    context.Context
	bgCancel context.CancelFunc
}

// ServerOption 配置 Server
type ServerOption func(*Server)

// WithCollector 使用外部创建的指标收集器（Prometheus 默认注册表不允许重复注册）
func WithCollector(c *metrics.Collector) ServerOption {
	return func(s *Server) { s.collector = c }
}

// NewServer 按配置装配组件。Redis 配置了地址就连接，连接失败只有在
// redis 日志后端下才是错误；数据库只在 database 后端下打开。
func NewServer(cfg *config.Config, configPath string, level zap.AtomicLevel, logger *zap.Logger, otelProviders *telemetry.Providers, opts ...ServerOption) (*Server, error) {
	s := &Server{
		cfg:        cfg,
		configPath: configPath,
		level:      level,
		logger:     logger,
		otel:       otelProviders,
		health:     handlers.NewHealthHandler(logger),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.collector == nil {
		s.collector = metrics.NewCollector("agentcouncil", logger)
	}
	s.bgCtx, s.bgCancel = context.WithCancel(context.Background())

	if err := s.initStorage(); err != nil {
		s.closeStorage()
		s.bgCancel()
		return nil, err
	}
	s.handler = s.middleware(s.routes())
	s.httpManager = server.NewManager(s.handler, server.Config{
		Name:            "api",
		Addr:            fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		IdleTimeout:     2 * time.Minute,
		MaxHeaderBytes:  1 << 20,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, logger)
	return s, nil
}

// =============================================================================
// 💾 存储
// =============================================================================

func (s *Server) initStorage() error {
	cfg := s.cfg
	storeType := persistence.StoreType(cfg.Store.Type)

	// Redis 同时服务搜索缓存与 redis 日志后端；未配置地址时跳过
	if cfg.Redis.Addr != "" {
		cm, err := cache.NewManager(cache.Config{
			Addr:                cfg.Redis.Addr,
			Password:            cfg.Redis.Password,
			DB:                  cfg.Redis.DB,
			PoolSize:            cfg.Redis.PoolSize,
			MinIdleConns:        cfg.Redis.MinIdleConns,
			KeyPrefix:           cfg.Store.KeyPrefix,
			DefaultTTL:          cfg.Search.Gateway.CacheTTL,
			HealthCheckInterval: 30 * time.Second,
		}, s.logger)
		switch {
		case err == nil:
			s.cache = cm
			s.health.RegisterCheck(handlers.NewPingCheck("redis", cm.Ping))
		case storeType == persistence.StoreTypeRedis:
			return fmt.Errorf("redis log store: %w", err)
		default:
			s.logger.Warn("redis unavailable, search cache disabled", zap.Error(err))
		}
	}

	var opts []persistence.FactoryOption
	if storeType == persistence.StoreTypeDatabase {
		pm, err := database.Open(cfg.Database, s.logger,
			database.WithName(cfg.Database.Driver),
			database.WithStatsRecorder(s.collector),
		)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		s.db = pm
		s.health.RegisterCheck(handlers.NewPingCheck("database", pm.Ping))
		opts = append(opts, persistence.WithDB(pm.DB()))
	}
	if s.cache != nil {
		opts = append(opts, persistence.WithRedisClient(s.cache.Client()))
	}

	storeCfg := persistence.DefaultStoreConfig()
	storeCfg.Type = storeType
	storeCfg.BaseDir = cfg.Store.BaseDir
	storeCfg.MaxLogs = cfg.Store.MaxLogs
	storeCfg.AutoMigrate = cfg.Store.AutoMigrate
	storeCfg.Redis.Host, storeCfg.Redis.Port = splitRedisAddr(cfg.Redis.Addr, storeCfg.Redis.Host, storeCfg.Redis.Port)
	storeCfg.Redis.Password = cfg.Redis.Password
	storeCfg.Redis.DB = cfg.Redis.DB
	if cfg.Store.KeyPrefix != "" {
		storeCfg.Redis.KeyPrefix = cfg.Store.KeyPrefix
	}

	store, err := persistence.NewLogStore(storeCfg, opts...)
	if err != nil {
		return fmt.Errorf("create log store: %w", err)
	}
	s.store = persistence.Instrument(store, storeType, s.collector)
	s.health.RegisterCheck(handlers.NewPingCheck("log_store", s.store.Ping))
	s.logger.Info("log store ready", zap.String("type", string(storeType)))
	return nil
}

// splitRedisAddr 拆分 host:port，解析失败时保留默认值
func splitRedisAddr(addr, defHost string, defPort int) (string, int) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return defHost, defPort
	}
	n, err := strconv.Atoi(port)
	if err != nil {
		return host, defPort
	}
	return host, n
}

func (s *Server) closeStorage() {
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			s.logger.Warn("close log store", zap.Error(err))
		}
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Warn("close database", zap.Error(err))
		}
	}
	if s.cache != nil {
		if err := s.cache.Close(); err != nil {
			s.logger.Warn("close redis", zap.Error(err))
		}
	}
}

// =============================================================================
// 🧩 领域组件与路由
// =============================================================================

// buildInvoker 注册 gemini 与 openai 两个 Provider
func (s *Server) buildInvoker() *llm.Adapter {
	return llm.NewAdapter(s.logger,
		llm.WithProvider(gemini.NewProvider(s.cfg.LLM.Gemini, s.logger)),
		llm.WithProvider(openai.NewProvider(s.cfg.LLM.OpenAI, s.logger)),
		llm.WithImplicitKey(s.cfg.LLM.ImplicitKey),
		llm.WithObserver(s.collector),
		llm.WithTracer(telemetry.Tracer()),
	)
}

// buildTTS 按 Speech.Provider 选择远程合成，为空时返回 nil（只用本地语音）
func buildTTS(cfg config.SpeechConfig) speech.TTSProvider {
	switch cfg.Provider {
	case "openai":
		c := speech.DefaultOpenAITTSConfig()
		if cfg.Model != "" {
			c.Model = cfg.Model
		}
		if cfg.Voice != "" {
			c.Voice = cfg.Voice
		}
		if cfg.Timeout > 0 {
			c.Timeout = cfg.Timeout
		}
		return speech.NewOpenAITTSProvider(c)
	case "gemini":
		c := speech.DefaultGeminiTTSConfig()
		if cfg.Model != "" {
			c.Model = cfg.Model
		}
		if cfg.Voice != "" {
			c.Voice = cfg.Voice
		}
		if cfg.Timeout > 0 {
			c.Timeout = cfg.Timeout
		}
		return speech.NewGeminiTTSProvider(c)
	default:
		return nil
	}
}

// baseRoster 读取配置的名册文件，失败时回退默认名册
func (s *Server) baseRoster() []types.Persona {
	if s.cfg.Council.RosterFile == "" {
		return persona.DefaultPersonas()
	}
	ps, err := persona.LoadFile(s.cfg.Council.RosterFile)
	if err != nil {
		s.logger.Warn("roster file rejected, using default roster",
			zap.String("path", s.cfg.Council.RosterFile), zap.Error(err))
		return persona.DefaultPersonas()
	}
	return ps
}

func councilConfig(c config.CouncilConfig) council.Config {
	out := council.DefaultConfig()
	if c.HistoryWindow > 0 {
		out.HistoryWindow = c.HistoryWindow
	}
	if c.BrainstormWindow > 0 {
		out.BrainstormWindow = c.BrainstormWindow
	}
	if c.TokenBudget > 0 {
		out.TokenBudget = c.TokenBudget
	}
	if c.BrainstormDelay > 0 {
		out.BrainstormDelay = c.BrainstormDelay
	}
	if c.FocusMinSpeakers > 0 && c.FocusMaxSpeakers >= c.FocusMinSpeakers {
		out.FocusSpeakers = council.SpeakerRange{Min: c.FocusMinSpeakers, Max: c.FocusMaxSpeakers}
	}
	if c.BrainstormMin > 0 && c.BrainstormMax >= c.BrainstormMin {
		out.BrainstormSpeakers = council.SpeakerRange{Min: c.BrainstormMin, Max: c.BrainstormMax}
	}
	if c.ExpertCandidates > 0 {
		out.ExpertCandidates = c.ExpertCandidates
	}
	return out
}

func (s *Server) routes() *http.ServeMux {
	cfg := s.cfg
	logger := s.logger

	invoker := s.buildInvoker()
	base := s.baseRoster()
	roster := persona.NewRoster(base...)

	gateway := tools.NewGateway(tools.NewSerperProvider(cfg.Search.Serper), cfg.Search.Gateway, s.collector, logger)
	if s.cache != nil {
		gateway = gateway.WithCache(s.cache)
	}

	var counter tokenizer.Counter = tokenizer.Estimator{}
	if cfg.LLM.TokenEncoding != "" {
		counter = tokenizer.NewTiktoken(cfg.LLM.TokenEncoding, logger)
	}

	s.hub = events.NewHub(logger,
		events.WithBufferSize(cfg.Council.EventBufferSize),
		events.WithGauge(s.collector),
	)

	ccfg := councilConfig(cfg.Council)
	sessions := council.NewSessions(func(id string) *council.Engine {
		return council.NewEngine(id, invoker, base, logger,
			council.WithConfig(ccfg),
			council.WithSearcher(gateway),
			council.WithCounter(counter),
			council.WithObserver(s.collector),
			council.WithEvents(s.hub.Emit),
		)
	}, logger)
	boards := workflow.NewBoards(invoker, roster, logger,
		workflow.WithEvents(s.hub.Emit),
		workflow.WithLogSink(s.store),
		workflow.WithObserver(s.collector),
		workflow.WithMaxHops(cfg.Workflow.MaxHops),
		workflow.WithDefaultSeed(cfg.Workflow.DefaultSeed),
	)

	tts := buildTTS(cfg.Speech)
	narrCfg := handlers.NarrationConfig{
		Provider:   types.ProviderName(cfg.Speech.Provider),
		APIKey:     cfg.Speech.APIKey,
		Model:      cfg.Speech.Model,
		Format:     cfg.Speech.Format,
		ChunkLimit: cfg.Speech.ChunkLimit,
		AckTimeout: cfg.Speech.AckTimeout,
	}
	s.workspace = handlers.NewWorkspace(sessions, boards, s.hub, logger,
		handlers.WithNarrations(handlers.NewNarrations(tts, s.hub, narrCfg, s.collector, logger)),
		handlers.WithDefaultAIConfig(types.AIConfig{
			Provider:     types.ProviderName(cfg.LLM.DefaultProvider),
			SearchAPIKey: cfg.Search.APIKey,
		}),
		handlers.WithMaxSessions(cfg.Council.MaxSessions),
		handlers.WithSessionGauge(s.collector),
	)

	sh := handlers.NewSessionHandler(s.workspace, cfg.Server.CORSAllowedOrigins, logger)
	ch := handlers.NewCouncilHandler(s.workspace, 0, logger)
	wh := handlers.NewWorkflowHandler(s.workspace, cfg.Workflow.RunTimeout, logger)
	lh := handlers.NewLogHandler(s.store, s.workspace, wh, logger)
	ph := handlers.NewPersonaHandler(s.workspace, roster, persona.NewCommander(invoker, nil, logger), 0, logger)
	sp := handlers.NewSpeechHandler(tts, narrCfg, logger)

	mux := http.NewServeMux()

	// 健康检查与版本
	mux.HandleFunc("GET /health", s.health.HandleHealth)
	mux.HandleFunc("GET /healthz", s.health.HandleHealth)
	mux.HandleFunc("GET /ready", s.health.HandleReady)
	mux.HandleFunc("GET /readyz", s.health.HandleReady)
	mux.HandleFunc("GET /version", s.health.HandleVersion(Version, BuildTime, GitCommit))

	// 会话
	mux.HandleFunc("POST /api/v1/sessions", sh.HandleCreate)
	mux.HandleFunc("GET /api/v1/sessions", sh.HandleList)
	mux.HandleFunc("GET /api/v1/sessions/{id}", sh.HandleGet)
	mux.HandleFunc("DELETE /api/v1/sessions/{id}", sh.HandleDelete)
	mux.HandleFunc("PUT /api/v1/sessions/{id}/settings", sh.HandleSettings)
	mux.HandleFunc("GET /api/v1/sessions/{id}/events", sh.HandleEvents)

	// 议会
	mux.HandleFunc("GET /api/v1/sessions/{id}/council", ch.HandleGet)
	mux.HandleFunc("POST /api/v1/sessions/{id}/council/messages", ch.HandleSend)
	mux.HandleFunc("POST /api/v1/sessions/{id}/council/continue", ch.HandleContinue)
	mux.HandleFunc("POST /api/v1/sessions/{id}/council/pivot", ch.HandlePivot)
	mux.HandleFunc("POST /api/v1/sessions/{id}/council/brainstorm", ch.HandleBrainstorm)
	mux.HandleFunc("POST /api/v1/sessions/{id}/council/search/approve", ch.HandleApproveSearch)
	mux.HandleFunc("POST /api/v1/sessions/{id}/council/search/deny", ch.HandleDenySearch)
	mux.HandleFunc("POST /api/v1/sessions/{id}/council/search/auto-approve", ch.HandleAutoApprove)
	mux.HandleFunc("POST /api/v1/sessions/{id}/council/experts/summon", ch.HandleSummonExperts)
	mux.HandleFunc("POST /api/v1/sessions/{id}/council/experts/confirm", ch.HandleConfirmExperts)
	mux.HandleFunc("POST /api/v1/sessions/{id}/council/report", ch.HandleDistillReport)
	mux.HandleFunc("GET /api/v1/sessions/{id}/council/report", ch.HandleGetReport)
	mux.HandleFunc("POST /api/v1/sessions/{id}/council/report/narrate", ch.HandleNarrateReport)
	mux.HandleFunc("GET /api/v1/sessions/{id}/council/narration", ch.HandleNarrationStatus)
	mux.HandleFunc("POST /api/v1/sessions/{id}/council/narration/ack", ch.HandleNarrationAck)

	// 工作流
	mux.HandleFunc("GET /api/v1/workflow/templates", wh.HandleTemplates)
	mux.HandleFunc("GET /api/v1/sessions/{id}/workflow", wh.HandleGet)
	mux.HandleFunc("POST /api/v1/sessions/{id}/workflow/generate", wh.HandleGenerate)
	mux.HandleFunc("POST /api/v1/sessions/{id}/workflow/templates/{template}", wh.HandleLoadTemplate)
	mux.HandleFunc("PUT /api/v1/sessions/{id}/workflow/nodes/{node}", wh.HandleUpdateNode)
	mux.HandleFunc("POST /api/v1/sessions/{id}/workflow/run", wh.HandleRun)

	// 运行日志
	mux.HandleFunc("GET /api/v1/logs", lh.HandleList)
	mux.HandleFunc("DELETE /api/v1/logs", lh.HandleClear)
	mux.HandleFunc("GET /api/v1/logs/{id}", lh.HandleGet)
	mux.HandleFunc("DELETE /api/v1/logs/{id}", lh.HandleDelete)
	mux.HandleFunc("POST /api/v1/logs/{id}/rerun", lh.HandleRerun)

	// 角色
	mux.HandleFunc("GET /api/v1/personas", ph.HandleList)
	mux.HandleFunc("POST /api/v1/personas/{id}/command", ph.HandleCommand)
	mux.HandleFunc("POST /api/v1/personas/{id}/special-action", ph.HandleSpecialAction)
	mux.HandleFunc("POST /api/v1/personas/{id}/status", ph.HandleStatus)
	mux.HandleFunc("POST /api/v1/personas/{id}/mission-log", ph.HandleMissionLog)

	// 朗读
	mux.HandleFunc("POST /api/v1/speech/chunks", sp.HandleChunks)
	mux.HandleFunc("POST /api/v1/speech/synthesize", sp.HandleSynthesize)

	logger.Info("routes registered",
		zap.Int("personas", roster.Len()),
		zap.String("default_provider", cfg.LLM.DefaultProvider),
		zap.Bool("tts", tts != nil),
		zap.String("token_counter", counter.Name()),
	)
	return mux
}

// skipAuthPaths 探针与版本不需要认证
var skipAuthPaths = []string{"/health", "/healthz", "/ready", "/readyz", "/version"}

func (s *Server) middleware(h http.Handler) http.Handler {
	cfg := s.cfg.Server
	chain := []Middleware{
		Recovery(s.logger),
		RequestID(),
		SecurityHeaders(),
		RequestLogger(s.logger),
		MetricsMiddleware(s.collector),
		OTelTracing(),
		CORS(cfg.CORSAllowedOrigins),
	}
	if cfg.RateLimitRPS > 0 {
		chain = append(chain, RateLimiter(s.bgCtx, cfg.RateLimitRPS, cfg.RateLimitBurst, s.logger))
	}
	switch {
	case s.cfg.JWT.Secret != "":
		chain = append(chain, JWTAuth(s.cfg.JWT, skipAuthPaths, s.logger))
	case len(cfg.APIKeys) > 0:
		chain = append(chain, APIKeyAuth(cfg.APIKeys, skipAuthPaths, true, s.logger))
	default:
		s.logger.Warn("API authentication disabled")
	}
	return Chain(h, chain...)
}

// =============================================================================
// 🚀 启停
// =============================================================================

// Start 启动 HTTP、Metrics 服务与配置监听（均为非阻塞）
func (s *Server) Start() error {
	if err := s.httpManager.Start(); err != nil {
		return fmt.Errorf("start http server: %w", err)
	}

	if s.cfg.Server.MetricsPort > 0 {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("GET /metrics", promhttp.Handler())
		s.metricsManager = server.NewManager(metricsMux, server.Config{
			Name:            "metrics",
			Addr:            fmt.Sprintf(":%d", s.cfg.Server.MetricsPort),
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			IdleTimeout:     time.Minute,
			MaxHeaderBytes:  1 << 20,
			ShutdownTimeout: 5 * time.Second,
		}, s.logger)
		if err := s.metricsManager.Start(); err != nil {
			return fmt.Errorf("start metrics server: %w", err)
		}
	}

	s.startWatcher()
	return nil
}

// startWatcher 监听配置文件，只热更新日志级别，其余字段需重启生效
func (s *Server) startWatcher() {
	if s.configPath == "" {
		return
	}
	loader := config.NewLoader().WithConfigPath(s.configPath)
	w := config.NewWatcher(loader, s.cfg, config.WithWatcherLogger(s.logger))
	w.OnReload(func(old, updated *config.Config) {
		if old.Log.Level != updated.Log.Level {
			s.level.SetLevel(parseLevel(updated.Log.Level))
			s.logger.Info("log level changed", zap.String("level", updated.Log.Level))
		}
	})
	go w.Run(s.bgCtx)
}

// WaitForShutdown 阻塞直到收到 SIGINT/SIGTERM 或 HTTP 服务异常退出
func (s *Server) WaitForShutdown() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case sig := <-quit:
		s.logger.Info("received signal", zap.String("signal", sig.String()))
	case err := <-s.httpManager.Errors():
		s.logger.Error("http server failed", zap.Error(err))
	}
	s.Shutdown()
}

// Shutdown 依次停止监听、关闭会话与事件流、释放存储
func (s *Server) Shutdown() {
	s.bgCancel()

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout+5*time.Second)
	defer cancel()

	var g errgroup.Group
	g.Go(func() error { return s.httpManager.Shutdown(ctx) })
	if s.metricsManager != nil {
		g.Go(func() error { return s.metricsManager.Shutdown(ctx) })
	}
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Error("server shutdown", zap.Error(err))
	}

	if s.workspace != nil {
		s.workspace.CloseAll()
	}
	if s.hub != nil {
		s.hub.Close()
	}
	s.closeStorage()

	if err := s.otel.Shutdown(ctx); err != nil {
		s.logger.Warn("telemetry shutdown", zap.Error(err))
	}
}
