// =============================================================================
// 📦 AgentCouncil 配置加载器
// =============================================================================
// 配置优先级: 默认值 → YAML 文件 → 环境变量 → 校验器
//
//	cfg, err := config.NewLoader().
//	    WithConfigPath("agentcouncil.yaml").
//	    WithValidator(func(c *config.Config) error { return c.Validate() }).
//	    Load()
//
// YAML 中可以写 ${GEMINI_API_KEY} 引用环境变量，密钥不必落盘。
// =============================================================================
package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultEnvPrefix 环境变量前缀，如 AGENTCOUNCIL_SERVER_HTTP_PORT
const DefaultEnvPrefix = "AGENTCOUNCIL"

var durationType = reflect.TypeOf(time.Duration(0))

// Loader 配置加载器
type Loader struct {
	configPath string
	envPrefix  string
	lookupEnv  func(string) (string, bool)
	validators []func(*Config) error
	applied    []string
}

// NewLoader 创建配置加载器
func NewLoader() *Loader {
	return &Loader{envPrefix: DefaultEnvPrefix, lookupEnv: os.LookupEnv}
}

// WithConfigPath 设置 YAML 路径，文件不存在时沿用默认值
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// WithEnvPrefix 设置环境变量前缀
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = strings.TrimSuffix(prefix, "_")
	return l
}

// WithValidator 添加校验器，按添加顺序执行
func (l *Loader) WithValidator(v func(*Config) error) *Loader {
	l.validators = append(l.validators, v)
	return l
}

// Overrides 最近一次 Load 中生效的环境变量名
func (l *Loader) Overrides() []string {
	return append([]string(nil), l.applied...)
}

// Load 加载配置
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()
	l.applied = l.applied[:0]

	if err := l.mergeFile(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from file: %w", err)
	}
	if err := l.bindEnv(reflect.ValueOf(cfg).Elem(), l.envPrefix); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}
	for _, v := range l.validators {
		if err := v(cfg); err != nil {
			return nil, fmt.Errorf("config validation failed: %w", err)
		}
	}
	return cfg, nil
}

func (l *Loader) mergeFile(cfg *Config) error {
	if l.configPath == "" {
		return nil
	}
	data, err := os.ReadFile(l.configPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	expanded := os.Expand(string(data), func(name string) string {
		v, _ := l.lookupEnv(name)
		return v
	})
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

// bindEnv 按 env tag 递归覆盖字段；内嵌结构体沿用当前前缀
func (l *Loader) bindEnv(v reflect.Value, prefix string) error {
	t := v.Type()
	for i := range t.NumField() {
		sf, field := t.Field(i), v.Field(i)
		if !field.CanSet() {
			continue
		}
		if sf.Anonymous && field.Kind() == reflect.Struct {
			if err := l.bindEnv(field, prefix); err != nil {
				return err
			}
			continue
		}

		tag := sf.Tag.Get("env")
		if tag == "" || tag == "-" {
			continue
		}
		key := prefix + "_" + tag
		if field.Kind() == reflect.Struct {
			if err := l.bindEnv(field, key); err != nil {
				return err
			}
			continue
		}

		raw, ok := l.lookupEnv(key)
		if !ok || raw == "" {
			continue
		}
		if err := assign(field, raw); err != nil {
			return fmt.Errorf("failed to set %s: %w", key, err)
		}
		l.applied = append(l.applied, key)
	}
	return nil
}

// assign 把字符串写入标量字段；[]string 用逗号分隔
func assign(field reflect.Value, raw string) error {
	if field.Type() == durationType {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return err
		}
		field.SetInt(int64(d))
		return nil
	}

	var err error
	switch field.Kind() {
	case reflect.String:
		field.SetString(raw)
	case reflect.Bool:
		var b bool
		if b, err = strconv.ParseBool(raw); err == nil {
			field.SetBool(b)
		}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		var n int64
		if n, err = strconv.ParseInt(raw, 10, field.Type().Bits()); err == nil {
			field.SetInt(n)
		}
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		var n uint64
		if n, err = strconv.ParseUint(raw, 10, field.Type().Bits()); err == nil {
			field.SetUint(n)
		}
	case reflect.Float32, reflect.Float64:
		var f float64
		if f, err = strconv.ParseFloat(raw, field.Type().Bits()); err == nil {
			field.SetFloat(f)
		}
	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice type %s", field.Type())
		}
		var parts []string
		for _, p := range strings.Split(raw, ",") {
			if p = strings.TrimSpace(p); p != "" {
				parts = append(parts, p)
			}
		}
		field.Set(reflect.ValueOf(parts))
	default:
		return fmt.Errorf("unsupported field kind %s", field.Kind())
	}
	return err
}

// MustLoad 加载配置，失败时 panic
func MustLoad(path string) *Config {
	cfg, err := NewLoader().WithConfigPath(path).Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg
}

// Validate 验证配置，返回所有错误
func (c *Config) Validate() error {
	var errs []error

	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		errs = append(errs, errors.New("invalid HTTP port"))
	}
	if c.Server.MetricsPort < 0 || c.Server.MetricsPort > 65535 {
		errs = append(errs, errors.New("invalid metrics port"))
	}

	switch c.LLM.DefaultProvider {
	case "gemini", "openai":
	default:
		errs = append(errs, fmt.Errorf("unknown default provider %q", c.LLM.DefaultProvider))
	}

	switch c.Speech.Provider {
	case "", "openai", "gemini":
	default:
		errs = append(errs, fmt.Errorf("unknown speech provider %q", c.Speech.Provider))
	}
	if c.Speech.ChunkLimit <= 0 {
		errs = append(errs, errors.New("speech chunk_limit must be positive"))
	}

	if c.Council.HistoryWindow <= 0 || c.Council.BrainstormWindow <= 0 {
		errs = append(errs, errors.New("council history windows must be positive"))
	}
	if c.Council.FocusMinSpeakers <= 0 || c.Council.FocusMinSpeakers > c.Council.FocusMaxSpeakers {
		errs = append(errs, errors.New("council focus speaker range is invalid"))
	}
	if c.Council.BrainstormMin <= 0 || c.Council.BrainstormMin > c.Council.BrainstormMax {
		errs = append(errs, errors.New("council brainstorm speaker range is invalid"))
	}
	if c.Council.BrainstormDelay <= 0 {
		errs = append(errs, errors.New("council brainstorm_delay must be positive"))
	}

	if c.Workflow.MaxHops <= 0 {
		errs = append(errs, errors.New("workflow max_hops must be positive"))
	}

	switch c.Store.Type {
	case "memory", "file", "redis":
	case "database":
		if c.Database.Driver == "" {
			errs = append(errs, errors.New("database store requires database.driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store type %q", c.Store.Type))
	}

	switch c.Database.Driver {
	case "", "postgres", "mysql", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("unsupported database driver %q", c.Database.Driver))
	}

	if c.Telemetry.SampleRate < 0 || c.Telemetry.SampleRate > 1 {
		errs = append(errs, errors.New("telemetry sample_rate must be between 0 and 1"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors: %w", errors.Join(errs...))
	}
	return nil
}

// DSN 返回数据库连接字符串
func (d *DatabaseConfig) DSN() string {
	switch d.Driver {
	case "postgres":
		return fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
		)
	case "mysql":
		return fmt.Sprintf(
			"%s:%s@tcp(%s:%d)/%s?parseTime=true",
			d.User, d.Password, d.Host, d.Port, d.Name,
		)
	case "sqlite":
		return d.Name
	default:
		return ""
	}
}
