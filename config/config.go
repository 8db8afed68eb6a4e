// =============================================================================
// 📦 AgentCouncil 配置结构
// =============================================================================
package config

import (
	"time"

	"github.com/BaSui01/agentcouncil/llm/providers"
	"github.com/BaSui01/agentcouncil/llm/tools"
)

// Config 是 AgentCouncil 的完整配置结构
type Config struct {
	// Server HTTP 服务配置
	Server ServerConfig `yaml:"server" env:"SERVER"`

	// LLM 模型提供方配置
	LLM LLMConfig `yaml:"llm" env:"LLM"`

	// Search 搜索网关配置
	Search SearchConfig `yaml:"search" env:"SEARCH"`

	// Speech 朗读配置
	Speech SpeechConfig `yaml:"speech" env:"SPEECH"`

	// Council 议会参数
	Council CouncilConfig `yaml:"council" env:"COUNCIL"`

	// Workflow 工作流参数
	Workflow WorkflowConfig `yaml:"workflow" env:"WORKFLOW"`

	// Store 运行日志存储
	Store StoreConfig `yaml:"store" env:"STORE"`

	// Database 数据库配置
	Database DatabaseConfig `yaml:"database" env:"DATABASE"`

	// Redis 配置
	Redis RedisConfig `yaml:"redis" env:"REDIS"`

	// Log 日志配置
	Log LogConfig `yaml:"log" env:"LOG"`

	// Telemetry 遥测配置
	Telemetry TelemetryConfig `yaml:"telemetry" env:"TELEMETRY"`

	// JWT 认证配置
	JWT JWTConfig `yaml:"jwt" env:"JWT"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	// HTTP 端口
	HTTPPort int `yaml:"http_port" env:"HTTP_PORT"`
	// Metrics 端口
	MetricsPort int `yaml:"metrics_port" env:"METRICS_PORT"`
	// 读取超时
	ReadTimeout time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
	// 写入超时，需覆盖最长的工作流运行
	WriteTimeout time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	// 优雅关闭超时
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
	// 每个 IP 的限流
	RateLimitRPS   float64 `yaml:"rate_limit_rps" env:"RATE_LIMIT_RPS"`
	RateLimitBurst int     `yaml:"rate_limit_burst" env:"RATE_LIMIT_BURST"`
	// 允许的跨域来源，为空时不设置 CORS 头
	CORSAllowedOrigins []string `yaml:"cors_allowed_origins" env:"CORS_ALLOWED_ORIGINS"`
	// API Key 认证，为空时不启用
	APIKeys []string `yaml:"api_keys" env:"API_KEYS"`
}

// LLMConfig 模型配置
type LLMConfig struct {
	// 默认 Provider: gemini, openai
	DefaultProvider string `yaml:"default_provider" env:"DEFAULT_PROVIDER"`
	// 隐式密钥，仅默认 Provider 在用户未填写密钥时使用
	ImplicitKey string `yaml:"implicit_key" env:"IMPLICIT_KEY"`
	// Gemini 配置
	Gemini providers.GeminiConfig `yaml:"gemini" env:"GEMINI"`
	// OpenAI 配置
	OpenAI providers.OpenAIConfig `yaml:"openai" env:"OPENAI"`
	// Token 计数编码，为空时按字符估算
	TokenEncoding string `yaml:"token_encoding" env:"TOKEN_ENCODING"`
}

// SearchConfig 搜索网关配置
type SearchConfig struct {
	// 服务端默认搜索密钥，用户配置优先
	APIKey  string              `yaml:"api_key" env:"API_KEY"`
	Serper  tools.SerperConfig  `yaml:"serper" env:"SERPER"`
	Gateway tools.GatewayConfig `yaml:"gateway" env:"GATEWAY"`
}

// SpeechConfig 朗读配置
type SpeechConfig struct {
	// Provider: openai, gemini；为空时只使用本地语音
	Provider string `yaml:"provider" env:"PROVIDER"`
	// 服务端默认 TTS 密钥
	APIKey string `yaml:"api_key" env:"API_KEY"`
	// 模型与默认音色，为空时使用 Provider 默认值
	Model string `yaml:"model" env:"MODEL"`
	Voice string `yaml:"voice" env:"VOICE"`
	// 音频格式
	Format string `yaml:"format" env:"FORMAT"`
	// 分段字符上限
	ChunkLimit int `yaml:"chunk_limit" env:"CHUNK_LIMIT"`
	// 等待客户端播放确认的超时
	AckTimeout time.Duration `yaml:"ack_timeout" env:"ACK_TIMEOUT"`
	// 合成超时
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
	// 本地语音命令，如 espeak-ng
	LocalBinary string `yaml:"local_binary" env:"LOCAL_BINARY"`
}

// CouncilConfig 议会参数
type CouncilConfig struct {
	HistoryWindow    int           `yaml:"history_window" env:"HISTORY_WINDOW"`
	BrainstormWindow int           `yaml:"brainstorm_window" env:"BRAINSTORM_WINDOW"`
	TokenBudget      int           `yaml:"token_budget" env:"TOKEN_BUDGET"`
	BrainstormDelay  time.Duration `yaml:"brainstorm_delay" env:"BRAINSTORM_DELAY"`
	FocusMinSpeakers int           `yaml:"focus_min_speakers" env:"FOCUS_MIN_SPEAKERS"`
	FocusMaxSpeakers int           `yaml:"focus_max_speakers" env:"FOCUS_MAX_SPEAKERS"`
	BrainstormMin    int           `yaml:"brainstorm_min_speakers" env:"BRAINSTORM_MIN_SPEAKERS"`
	BrainstormMax    int           `yaml:"brainstorm_max_speakers" env:"BRAINSTORM_MAX_SPEAKERS"`
	ExpertCandidates int           `yaml:"expert_candidates" env:"EXPERT_CANDIDATES"`
	MaxSessions      int           `yaml:"max_sessions" env:"MAX_SESSIONS"`
	EventBufferSize  int           `yaml:"event_buffer_size" env:"EVENT_BUFFER_SIZE"`
	RosterFile       string        `yaml:"roster_file" env:"ROSTER_FILE"` // 可选，YAML 角色列表
}

// WorkflowConfig 工作流参数
type WorkflowConfig struct {
	MaxHops     int           `yaml:"max_hops" env:"MAX_HOPS"`
	RunTimeout  time.Duration `yaml:"run_timeout" env:"RUN_TIMEOUT"`
	DefaultSeed string        `yaml:"default_seed" env:"DEFAULT_SEED"`
}

// StoreConfig 运行日志存储
type StoreConfig struct {
	// 类型: memory, file, redis, database
	Type        string `yaml:"type" env:"TYPE"`
	BaseDir     string `yaml:"base_dir" env:"BASE_DIR"`
	MaxLogs     int    `yaml:"max_logs" env:"MAX_LOGS"`
	KeyPrefix   string `yaml:"key_prefix" env:"KEY_PREFIX"`
	AutoMigrate bool   `yaml:"auto_migrate" env:"AUTO_MIGRATE"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	// 地址
	Addr string `yaml:"addr" env:"ADDR"`
	// 密码
	Password string `yaml:"password" env:"PASSWORD"`
	// 数据库编号
	DB int `yaml:"db" env:"DB"`
	// 连接池大小
	PoolSize int `yaml:"pool_size" env:"POOL_SIZE"`
	// 最小空闲连接
	MinIdleConns int `yaml:"min_idle_conns" env:"MIN_IDLE_CONNS"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	// 驱动类型: postgres, mysql, sqlite
	Driver string `yaml:"driver" env:"DRIVER"`
	// 主机
	Host string `yaml:"host" env:"HOST"`
	// 端口
	Port int `yaml:"port" env:"PORT"`
	// 用户名
	User string `yaml:"user" env:"USER"`
	// 密码
	Password string `yaml:"password" env:"PASSWORD"`
	// 数据库名，sqlite 时为文件路径
	Name string `yaml:"name" env:"NAME"`
	// SSL 模式
	SSLMode string `yaml:"ssl_mode" env:"SSL_MODE"`
	// 最大连接数
	MaxOpenConns int `yaml:"max_open_conns" env:"MAX_OPEN_CONNS"`
	// 最大空闲连接
	MaxIdleConns int `yaml:"max_idle_conns" env:"MAX_IDLE_CONNS"`
	// 连接最大生命周期
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env:"CONN_MAX_LIFETIME"`
}

// LogConfig 日志配置
type LogConfig struct {
	// 日志级别: debug, info, warn, error
	Level string `yaml:"level" env:"LEVEL"`
	// 输出格式: json, console
	Format string `yaml:"format" env:"FORMAT"`
	// 输出路径
	OutputPaths []string `yaml:"output_paths" env:"OUTPUT_PATHS"`
	// 是否启用调用者信息
	EnableCaller bool `yaml:"enable_caller" env:"ENABLE_CALLER"`
	// 是否启用堆栈跟踪
	EnableStacktrace bool `yaml:"enable_stacktrace" env:"ENABLE_STACKTRACE"`
}

// TelemetryConfig 遥测配置
type TelemetryConfig struct {
	// 是否启用
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// OTLP 端点
	OTLPEndpoint string `yaml:"otlp_endpoint" env:"OTLP_ENDPOINT"`
	// 服务名称
	ServiceName string `yaml:"service_name" env:"SERVICE_NAME"`
	// 采样率
	SampleRate float64 `yaml:"sample_rate" env:"SAMPLE_RATE"`
}

// JWTConfig JWT 认证，Secret 为空时不启用
type JWTConfig struct {
	Secret   string `yaml:"secret" env:"SECRET"`
	Issuer   string `yaml:"issuer" env:"ISSUER"`
	Audience string `yaml:"audience" env:"AUDIENCE"`
}
