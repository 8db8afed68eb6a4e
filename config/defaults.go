// =============================================================================
// 📦 AgentCouncil 默认配置
// =============================================================================
// 提供所有配置项的合理默认值
// =============================================================================
package config

import (
	"time"

	"github.com/BaSui01/agentcouncil/llm/providers"
	"github.com/BaSui01/agentcouncil/llm/tools"
)

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Server:    DefaultServerConfig(),
		LLM:       DefaultLLMConfig(),
		Search:    DefaultSearchConfig(),
		Speech:    DefaultSpeechConfig(),
		Council:   DefaultCouncilConfig(),
		Workflow:  DefaultWorkflowConfig(),
		Store:     DefaultStoreConfig(),
		Database:  DefaultDatabaseConfig(),
		Redis:     DefaultRedisConfig(),
		Log:       DefaultLogConfig(),
		Telemetry: DefaultTelemetryConfig(),
		JWT:       JWTConfig{Issuer: "agentcouncil"},
	}
}

// DefaultServerConfig 返回默认服务器配置
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPPort:        8080,
		MetricsPort:     9091,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    5 * time.Minute,
		ShutdownTimeout: 15 * time.Second,
		RateLimitRPS:    20,
		RateLimitBurst:  40,
	}
}

// DefaultLLMConfig 返回默认 LLM 配置
func DefaultLLMConfig() LLMConfig {
	return LLMConfig{
		DefaultProvider: "gemini",
		Gemini: providers.GeminiConfig{
			BaseProviderConfig: providers.BaseProviderConfig{
				BaseURL: "https://generativelanguage.googleapis.com",
				Model:   "gemini-3-flash-preview",
				Timeout: 90 * time.Second,
			},
		},
		OpenAI: providers.OpenAIConfig{
			BaseProviderConfig: providers.BaseProviderConfig{
				BaseURL: "https://api.openai.com",
				Model:   "gpt-4o",
				Timeout: 90 * time.Second,
			},
			SearchModel: "gpt-4o",
		},
		TokenEncoding: "cl100k_base",
	}
}

// DefaultSearchConfig 返回默认搜索配置
func DefaultSearchConfig() SearchConfig {
	return SearchConfig{
		Serper: tools.SerperConfig{
			BaseURL: "https://google.serper.dev/search",
			Timeout: 15 * time.Second,
		},
		Gateway: tools.DefaultGatewayConfig(),
	}
}

// DefaultSpeechConfig 返回默认朗读配置
func DefaultSpeechConfig() SpeechConfig {
	return SpeechConfig{
		Provider:    "openai",
		Format:      "mp3",
		ChunkLimit:  500,
		AckTimeout:  2 * time.Minute,
		Timeout:     60 * time.Second,
		LocalBinary: "espeak-ng",
	}
}

// DefaultCouncilConfig 返回默认议会参数
func DefaultCouncilConfig() CouncilConfig {
	return CouncilConfig{
		HistoryWindow:    8,
		BrainstormWindow: 20,
		TokenBudget:      3000,
		BrainstormDelay:  6 * time.Second,
		FocusMinSpeakers: 1,
		FocusMaxSpeakers: 2,
		BrainstormMin:    2,
		BrainstormMax:    4,
		ExpertCandidates: 4,
		MaxSessions:      100,
		EventBufferSize:  256,
	}
}

// DefaultWorkflowConfig 返回默认工作流参数
func DefaultWorkflowConfig() WorkflowConfig {
	return WorkflowConfig{
		MaxHops:     10,
		RunTimeout:  4 * time.Minute,
		DefaultSeed: "General Query",
	}
}

// DefaultStoreConfig 返回默认日志存储配置
func DefaultStoreConfig() StoreConfig {
	return StoreConfig{
		Type:      "memory",
		BaseDir:   "./data/persistence",
		MaxLogs:   500,
		KeyPrefix: "agentcouncil:",
	}
}

// DefaultRedisConfig 返回默认 Redis 配置
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:         "localhost:6379",
		Password:     "",
		DB:           0,
		PoolSize:     10,
		MinIdleConns: 2,
	}
}

// DefaultDatabaseConfig 返回默认数据库配置
func DefaultDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Driver:          "postgres",
		Host:            "localhost",
		Port:            5432,
		User:            "agentcouncil",
		Password:        "",
		Name:            "agentcouncil",
		SSLMode:         "disable",
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
	}
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "json",
		OutputPaths:      []string{"stdout"},
		EnableCaller:     true,
		EnableStacktrace: false,
	}
}

// DefaultTelemetryConfig 返回默认遥测配置
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "agentcouncil",
		SampleRate:   0.1,
	}
}
