package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config 应用程序配置
type Config struct {
	Optimizer OptimizerConfig `json:"optimizer"`
	Server    ServerConfig    `json:"server"`
	Cache     CacheConfig     `json:"cache"`
	Log       LogConfig       `json:"log"`
}

// OptimizerConfig 分析器配置
type OptimizerConfig struct {
	// EnableIndexSuggestions 是否生成索引建议
	EnableIndexSuggestions bool `json:"enable_index_suggestions"`
	// EnablePredicateReordering 是否生成谓词重排建议
	EnablePredicateReordering bool `json:"enable_predicate_reordering"`
	// EnableJoinReordering 是否生成连接重排建议
	EnableJoinReordering bool `json:"enable_join_reordering"`
	// IndexSelectivityThreshold 选择率高于该值的列不再建议索引
	IndexSelectivityThreshold float64 `json:"index_selectivity_threshold"`
	// PredicateReorderingThreshold 谓词重排收益下限
	PredicateReorderingThreshold float64 `json:"predicate_reordering_threshold"`
	// JoinReorderingThreshold 连接重排收益下限
	JoinReorderingThreshold float64 `json:"join_reordering_threshold"`
	// MaxAnalysisTimeMs 单次分析时长预算（毫秒），超出只告警不中断
	MaxAnalysisTimeMs int `json:"max_analysis_time_ms"`
	// MaxCompositeIndexColumns 复合索引最大列数
	MaxCompositeIndexColumns int `json:"max_composite_index_columns"`
	// TargetDatabase 建议 DDL 的目标数据库
	TargetDatabase string `json:"target_database"`
	// VerboseOutput 是否输出分析过程日志
	VerboseOutput bool `json:"verbose_output"`
}

// MaxAnalysisTime 返回时长预算
func (c *OptimizerConfig) MaxAnalysisTime() time.Duration {
	return time.Duration(c.MaxAnalysisTimeMs) * time.Millisecond
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Host       string `json:"host"`
	Port       int    `json:"port"`
	MCPEnabled bool   `json:"mcp_enabled"`
	// AuthToken 非空时对 MCP 接口启用 Bearer 认证
	AuthToken string `json:"auth_token"`
}

// CacheConfig 分析结果缓存配置
type CacheConfig struct {
	Enabled bool `json:"enabled"`
	// InMemory 为 true 时缓存不落盘，Dir 被忽略
	InMemory   bool   `json:"in_memory"`
	Dir        string `json:"dir"`
	MaxEntries int    `json:"max_entries"`
	TTLSeconds int    `json:"ttl_seconds"`
}

// TTL 返回缓存过期时间
func (c *CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"` // json or text
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Optimizer: DefaultOptimizerConfig(),
		Server: ServerConfig{
			Host:       "127.0.0.1",
			Port:       8080,
			MCPEnabled: true,
			AuthToken:  "",
		},
		Cache: CacheConfig{
			Enabled:    false,
			InMemory:   true,
			Dir:        "./data/cache",
			MaxEntries: 1024,
			TTLSeconds: 3600,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// DefaultOptimizerConfig 返回分析器默认配置
func DefaultOptimizerConfig() OptimizerConfig {
	return OptimizerConfig{
		EnableIndexSuggestions:       true,
		EnablePredicateReordering:    true,
		EnableJoinReordering:         true,
		IndexSelectivityThreshold:    1.0,
		PredicateReorderingThreshold: 0.1,
		JoinReorderingThreshold:      0.1,
		MaxAnalysisTimeMs:            5000,
		MaxCompositeIndexColumns:     3,
		TargetDatabase:               "mysql",
		VerboseOutput:                false,
	}
}

// LoadConfig 从文件加载配置
func LoadConfig(configPath string) (*Config, error) {
	// 如果没有指定配置文件，使用默认配置
	if configPath == "" {
		return DefaultConfig(), nil
	}

	// 检查配置文件是否存在
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("配置文件不存在: %s", configPath)
	}

	// 读取配置文件
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	// 解析配置，未出现的字段保留默认值
	config := DefaultConfig()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	// 验证配置
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// LoadConfigOrDefault 尝试从常见位置加载配置文件
func LoadConfigOrDefault() *Config {
	// 尝试的配置文件路径
	possiblePaths := []string{
		"config.json",
		"./config/config.json",
		"/etc/sqladvisor/config.json",
	}

	// 尝试从环境变量获取配置文件路径
	if envPath := os.Getenv("SQLADVISOR_CONFIG"); envPath != "" {
		if config, err := LoadConfig(envPath); err == nil {
			return config
		}
	}

	// 尝试从常见位置加载
	for _, path := range possiblePaths {
		if absPath, err := filepath.Abs(path); err == nil {
			if _, err := os.Stat(absPath); err == nil {
				if config, err := LoadConfig(absPath); err == nil {
					return config
				}
			}
		}
	}

	// 使用默认配置
	return DefaultConfig()
}

// ApplyOverrides 应用键值覆盖
// 键形如 optimizer.index_selectivity_threshold。
// 未识别的键忽略，值无法解析时返回 ConfigError。
func (c *Config) ApplyOverrides(overrides map[string]string) error {
	for key, value := range overrides {
		if err := c.applyOverride(key, value); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) applyOverride(key, value string) error {
	switch key {
	case "optimizer.enable_index_suggestions":
		return setBool(&c.Optimizer.EnableIndexSuggestions, key, value)
	case "optimizer.enable_predicate_reordering":
		return setBool(&c.Optimizer.EnablePredicateReordering, key, value)
	case "optimizer.enable_join_reordering":
		return setBool(&c.Optimizer.EnableJoinReordering, key, value)
	case "optimizer.index_selectivity_threshold":
		return setFloat(&c.Optimizer.IndexSelectivityThreshold, key, value)
	case "optimizer.predicate_reordering_threshold":
		return setFloat(&c.Optimizer.PredicateReorderingThreshold, key, value)
	case "optimizer.join_reordering_threshold":
		return setFloat(&c.Optimizer.JoinReorderingThreshold, key, value)
	case "optimizer.max_analysis_time_ms":
		return setInt(&c.Optimizer.MaxAnalysisTimeMs, key, value)
	case "optimizer.max_composite_index_columns":
		return setInt(&c.Optimizer.MaxCompositeIndexColumns, key, value)
	case "optimizer.target_database":
		c.Optimizer.TargetDatabase = value
	case "optimizer.verbose_output":
		return setBool(&c.Optimizer.VerboseOutput, key, value)
	case "server.host":
		c.Server.Host = value
	case "server.port":
		return setInt(&c.Server.Port, key, value)
	case "server.mcp_enabled":
		return setBool(&c.Server.MCPEnabled, key, value)
	case "server.auth_token":
		c.Server.AuthToken = value
	case "cache.enabled":
		return setBool(&c.Cache.Enabled, key, value)
	case "cache.in_memory":
		return setBool(&c.Cache.InMemory, key, value)
	case "cache.dir":
		c.Cache.Dir = value
	case "cache.max_entries":
		return setInt(&c.Cache.MaxEntries, key, value)
	case "cache.ttl_seconds":
		return setInt(&c.Cache.TTLSeconds, key, value)
	case "log.level":
		c.Log.Level = value
	case "log.format":
		c.Log.Format = value
	default:
		// 未识别的键忽略，保持前向兼容
	}
	return nil
}

func setBool(dst *bool, key, value string) error {
	b, err := strconv.ParseBool(value)
	if err != nil {
		return NewConfigError(key, fmt.Sprintf("invalid boolean value %q", value))
	}
	*dst = b
	return nil
}

func setFloat(dst *float64, key, value string) error {
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return NewConfigError(key, fmt.Sprintf("invalid numeric value %q", value))
	}
	*dst = f
	return nil
}

func setInt(dst *int, key, value string) error {
	n, err := strconv.Atoi(value)
	if err != nil {
		return NewConfigError(key, fmt.Sprintf("invalid integer value %q", value))
	}
	*dst = n
	return nil
}

// Validate 验证配置
func (c *Config) Validate() error {
	if err := c.Optimizer.Validate(); err != nil {
		return err
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return NewConfigError("server.port", fmt.Sprintf("invalid port: %d", c.Server.Port))
	}
	if c.Cache.MaxEntries < 0 {
		return NewConfigError("cache.max_entries", "max entries must not be negative")
	}
	if c.Cache.TTLSeconds < 0 {
		return NewConfigError("cache.ttl_seconds", "ttl must not be negative")
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return NewConfigError("log.level", fmt.Sprintf("unknown log level %q", c.Log.Level))
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return NewConfigError("log.format", fmt.Sprintf("unknown log format %q", c.Log.Format))
	}

	return nil
}

// Validate 验证分析器配置
func (c *OptimizerConfig) Validate() error {
	if c.IndexSelectivityThreshold < 0.0 || c.IndexSelectivityThreshold > 1.0 {
		return NewConfigError("optimizer.index_selectivity_threshold", "threshold must be between 0.0 and 1.0")
	}
	if c.PredicateReorderingThreshold < 0.0 || c.PredicateReorderingThreshold > 1.0 {
		return NewConfigError("optimizer.predicate_reordering_threshold", "threshold must be between 0.0 and 1.0")
	}
	if c.JoinReorderingThreshold < 0.0 || c.JoinReorderingThreshold > 1.0 {
		return NewConfigError("optimizer.join_reordering_threshold", "threshold must be between 0.0 and 1.0")
	}
	if c.MaxAnalysisTimeMs <= 0 {
		return NewConfigError("optimizer.max_analysis_time_ms", "analysis time budget must be positive")
	}
	if c.MaxCompositeIndexColumns < 2 {
		return NewConfigError("optimizer.max_composite_index_columns", "composite index needs at least 2 columns")
	}

	switch strings.ToLower(c.TargetDatabase) {
	case "mysql", "postgresql", "sqlite", "generic":
	default:
		return NewConfigError("optimizer.target_database", fmt.Sprintf("unsupported target database %q", c.TargetDatabase))
	}

	return nil
}

// GetListenAddress 返回监听地址
func (c *Config) GetListenAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
