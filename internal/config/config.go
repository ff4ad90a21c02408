package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the full service configuration. Values come from an optional
// YAML file (CONFIG_PATH) with environment overrides prefixed RESEARCHBOT_.
type Config struct {
	Server ServerConfig `mapstructure:"server"`
	Redis  RedisConfig  `mapstructure:"redis"`
	LLM    LLMConfig    `mapstructure:"llm"`
	Search SearchConfig `mapstructure:"search"`
	News   NewsConfig   `mapstructure:"news"`
}

type ServerConfig struct {
	Port      int `mapstructure:"port"`
	AdminPort int `mapstructure:"admin_port"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// LLMConfig selects the models used by each pipeline stage. BaseURL allows
// pointing at any OpenAI-compatible endpoint.
type LLMConfig struct {
	APIKey         string  `mapstructure:"api_key"`
	BaseURL        string  `mapstructure:"base_url"`
	FastModel      string  `mapstructure:"fast_model"`
	SynthesisModel string  `mapstructure:"synthesis_model"`
	ChatModel      string  `mapstructure:"chat_model"`
	Temperature    float32 `mapstructure:"temperature"`
}

type SearchConfig struct {
	// APIKeys are cycled round-robin across calls to spread rate limits.
	APIKeys  []string `mapstructure:"api_keys"`
	Endpoint string   `mapstructure:"endpoint"`
}

type NewsConfig struct {
	APIKey   string `mapstructure:"api_key"`
	Endpoint string `mapstructure:"endpoint"`
	Country  string `mapstructure:"country"`
	Language string `mapstructure:"language"`
}

// CacheTTL is the default expiry applied to cached payloads.
const CacheTTL = time.Hour

// Load reads configuration from CONFIG_PATH (if set) and the environment.
// A missing config file is not an error; env vars and defaults apply.
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("server.port", 8000)
	v.SetDefault("server.admin_port", 8081)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.fast_model", "gpt-4o-mini")
	v.SetDefault("llm.synthesis_model", "gpt-4o")
	v.SetDefault("llm.chat_model", "gpt-4o-mini")
	v.SetDefault("llm.temperature", 0.7)
	v.SetDefault("search.endpoint", "https://google.serper.dev/search")
	v.SetDefault("news.endpoint", "https://serpapi.com/search.json")
	v.SetDefault("news.country", "in")
	v.SetDefault("news.language", "en")

	v.SetEnvPrefix("RESEARCHBOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgPath := os.Getenv("CONFIG_PATH"); cfgPath != "" {
		v.SetConfigFile(cfgPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// Single-key deployments set RESEARCHBOT_SEARCH_API_KEY; fold it into the list.
	if len(c.Search.APIKeys) == 0 {
		if key := v.GetString("search.api_key"); key != "" {
			c.Search.APIKeys = []string{key}
		}
	}

	return &c, nil
}
