// Package config loads the service configuration from a JSON file and the
// AZOM_* environment, with sane defaults for local development.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the support service.
type Config struct {
	General   GeneralConfig   `mapstructure:"general"`
	Server    ServerConfig    `mapstructure:"server"`
	LLM       LLMConfig       `mapstructure:"llm"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Knowledge KnowledgeConfig `mapstructure:"knowledge"`
	Retrieval RetrievalConfig `mapstructure:"retrieval"`
	Safety    SafetyConfig    `mapstructure:"safety"`
	Memory    MemoryConfig    `mapstructure:"memory"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// GeneralConfig contains general application settings.
type GeneralConfig struct {
	Debug    bool   `mapstructure:"debug"`
	LogLevel string `mapstructure:"log_level"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Address string `mapstructure:"address"`
}

// LLMConfig selects the chat backend and carries its credentials.
type LLMConfig struct {
	Backend           string `mapstructure:"backend"`
	OpenWebUIURL      string `mapstructure:"openwebui_url"`
	OpenWebUIAPIToken string `mapstructure:"openwebui_api_token"`
	GroqAPIKey        string `mapstructure:"groq_api_key"`
	GroqAPIURL        string `mapstructure:"groq_api_url"`
	OpenAIAPIKey      string `mapstructure:"openai_api_key"`
	OpenAIBaseURL     string `mapstructure:"openai_base_url"`
	TargetModel       string `mapstructure:"target_model"`
	EmbeddingModel    string `mapstructure:"embedding_model"`
}

func (l LLMConfig) Validate() error {
	switch strings.ToLower(strings.TrimSpace(l.Backend)) {
	case "", "openwebui", "openai", "groq":
		return nil
	}
	return fmt.Errorf("llm.backend must be one of openwebui, groq, openai")
}

// RateLimitConfig bounds per-client request rates.
type RateLimitConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	Requests      int  `mapstructure:"requests"`
	WindowSeconds int  `mapstructure:"window_seconds"`
}

func (r RateLimitConfig) Validate() error {
	if !r.Enabled {
		return nil
	}
	if r.Requests <= 0 {
		return fmt.Errorf("rate_limit.requests must be positive")
	}
	if r.WindowSeconds <= 0 {
		return fmt.Errorf("rate_limit.window_seconds must be positive")
	}
	return nil
}

// Window returns the configured window as a duration.
func (r RateLimitConfig) Window() time.Duration {
	return time.Duration(r.WindowSeconds) * time.Second
}

// KnowledgeConfig locates the product knowledge base on disk.
type KnowledgeConfig struct {
	DataDir     string `mapstructure:"data_dir"`
	RefreshCron string `mapstructure:"refresh_cron"`
}

func (k KnowledgeConfig) Validate() error {
	if strings.TrimSpace(k.DataDir) == "" {
		return fmt.Errorf("knowledge.data_dir required")
	}
	return nil
}

// RetrievalConfig tunes document retrieval.
type RetrievalConfig struct {
	TopK          int  `mapstructure:"top_k"`
	VectorEnabled bool `mapstructure:"vector_enabled"`
}

// SafetyConfig tunes input and output validation.
type SafetyConfig struct {
	PolicyFile        string `mapstructure:"policy_file"`
	MinInputChars     int    `mapstructure:"min_input_chars"`
	MaxInputChars     int    `mapstructure:"max_input_chars"`
	ModerationEnabled bool   `mapstructure:"moderation_enabled"`
}

// MemoryConfig selects the conversation history store.
type MemoryConfig struct {
	Backend    string        `mapstructure:"backend"` // inmemory or redis
	TTL        time.Duration `mapstructure:"ttl"`
	MaxHistory int           `mapstructure:"max_history"`
	Redis      RedisConfig   `mapstructure:"redis"`
}

func (m MemoryConfig) Validate() error {
	switch strings.ToLower(strings.TrimSpace(m.Backend)) {
	case "", "inmemory":
		return nil
	case "redis":
		return m.Redis.Validate()
	}
	return fmt.Errorf("memory.backend must be inmemory or redis")
}

// RedisConfig contains Redis connection settings.
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

func (r RedisConfig) Validate() error {
	if strings.TrimSpace(r.Host) == "" {
		return fmt.Errorf("memory.redis.host required")
	}
	if strings.TrimSpace(r.Port) == "" {
		return fmt.Errorf("memory.redis.port required")
	}
	return nil
}

// Addr returns host:port for the Redis client.
func (r RedisConfig) Addr() string {
	return r.Host + ":" + r.Port
}

// TelemetryConfig toggles the Prometheus endpoint.
type TelemetryConfig struct {
	MetricsEnabled bool `mapstructure:"metrics_enabled"`
}

// LoadConfig loads config from path, or from the default search paths when
// path is empty. A missing file is tolerated; an unreadable or invalid one
// panics.
func LoadConfig(path string) *Config {
	viper.SetConfigName("config")
	viper.SetConfigType("json")
	viper.SetDefault("server.address", ":8008")
	viper.SetDefault("llm.backend", "openwebui")
	viper.SetDefault("llm.openwebui_url", "http://localhost:3000/api")
	viper.SetDefault("rate_limit.enabled", true)
	viper.SetDefault("rate_limit.requests", 60)
	viper.SetDefault("rate_limit.window_seconds", 60)
	viper.SetDefault("knowledge.data_dir", "./data")
	viper.SetDefault("retrieval.top_k", 5)
	viper.SetDefault("retrieval.vector_enabled", true)
	viper.SetDefault("safety.min_input_chars", 3)
	viper.SetDefault("safety.max_input_chars", 500)
	viper.SetDefault("safety.moderation_enabled", true)
	viper.SetDefault("memory.backend", "inmemory")
	viper.SetDefault("memory.ttl", time.Hour)
	viper.SetDefault("memory.max_history", 20)
	viper.SetDefault("telemetry.metrics_enabled", true)

	if path == "" {
		viper.AddConfigPath("./config")
		viper.AddConfigPath(".")
	} else {
		viper.SetConfigFile(path)
	}

	viper.SetEnvPrefix("AZOM")
	replacer := strings.NewReplacer(".", "_")
	viper.SetEnvKeyReplacer(replacer)
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			panic(fmt.Errorf("fatal error config file: %w", err))
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		panic(fmt.Errorf("fatal error config file: %w", err))
	}

	if err := config.LLM.Validate(); err != nil {
		panic(err)
	}
	if err := config.RateLimit.Validate(); err != nil {
		panic(err)
	}
	if err := config.Knowledge.Validate(); err != nil {
		panic(err)
	}
	if err := config.Memory.Validate(); err != nil {
		panic(err)
	}
	return &config
}
