package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the event-scout bot.
type Config struct {
	General   GeneralConfig   `mapstructure:"general"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Search    SearchConfig    `mapstructure:"search"`
	Fetch     FetchConfig     `mapstructure:"fetch"`
	Retrieval RetrievalConfig `mapstructure:"retrieval"`
	Clients   ClientsConfig   `mapstructure:"clients"`
	Dialogue  DialogueConfig  `mapstructure:"dialogue"`
	Server    ServerConfig    `mapstructure:"server"`
	Databases DatabasesConfig `mapstructure:"databases"`
}

// GeneralConfig contains general application settings.
type GeneralConfig struct {
	Debug    bool   `mapstructure:"debug"`
	LogLevel string `mapstructure:"log_level"`
}

// TelegramConfig contains the bot transport settings.
type TelegramConfig struct {
	Token string `mapstructure:"token"`
	// MessageLimit is the transport-imposed maximum length of one
	// outbound message.
	MessageLimit int `mapstructure:"message_limit"`
}

// LLMConfig selects and configures the LLM provider. Temperatures and
// token limits are keyed by purpose: the extraction call runs warmer
// than the NLU calls.
type LLMConfig struct {
	Type     string         `mapstructure:"type"` // gigachat, openai
	GigaChat GigaChatConfig `mapstructure:"gigachat"`
	OpenAI   OpenAIConfig   `mapstructure:"openai"`

	ExtractTemperature float64 `mapstructure:"extract_temperature"`
	ExtractMaxTokens   int     `mapstructure:"extract_max_tokens"`
	NLUTemperature     float64 `mapstructure:"nlu_temperature"`
	NLUMaxTokens       int     `mapstructure:"nlu_max_tokens"`
	Timeout            time.Duration `mapstructure:"timeout"`
}

// GigaChatConfig contains GigaChat API settings.
type GigaChatConfig struct {
	Credentials    string `mapstructure:"credentials"`
	Scope          string `mapstructure:"scope"`
	Model          string `mapstructure:"model"`
	EmbeddingModel string `mapstructure:"embedding_model"`
	VerifySSL      bool   `mapstructure:"verify_ssl"`
}

// OpenAIConfig contains settings for the OpenAI-compatible provider.
type OpenAIConfig struct {
	APIKey         string `mapstructure:"api_key"`
	BaseURL        string `mapstructure:"base_url"`
	Model          string `mapstructure:"model"`
	EmbeddingModel string `mapstructure:"embedding_model"`
}

// SearchConfig contains web search settings.
type SearchConfig struct {
	Provider      string   `mapstructure:"provider"` // serper, brave
	APIKey        string   `mapstructure:"api_key"`
	MaxPerQuery   int      `mapstructure:"max_per_query"`
	AggregatorSites []string `mapstructure:"aggregator_sites"`
}

// FetchConfig contains page scraping settings.
type FetchConfig struct {
	TimeoutMS int `mapstructure:"timeout_ms"`
	MaxChars  int `mapstructure:"max_chars"`
}

// RetrievalConfig contains chunking and vector retrieval settings.
type RetrievalConfig struct {
	ChunkSize    int    `mapstructure:"chunk_size"`
	ChunkOverlap int    `mapstructure:"chunk_overlap"`
	TopK         int    `mapstructure:"top_k"`
	Store        string `mapstructure:"store"` // inmemory, redis
	TTLHours     int    `mapstructure:"ttl_hours"`
}

// ClientsConfig selects the client lookup backend.
type ClientsConfig struct {
	Backend     string `mapstructure:"backend"` // csv, postgres
	CSVPath     string `mapstructure:"csv_path"`
	PostgresURL string `mapstructure:"postgres_url"`
}

// DialogueConfig bounds the in-memory conversation store.
type DialogueConfig struct {
	SessionTTL    time.Duration `mapstructure:"session_ttl"`
	SweepSchedule string        `mapstructure:"sweep_schedule"`
}

// ServerConfig contains the operator HTTP API settings.
type ServerConfig struct {
	Enabled           bool   `mapstructure:"enabled"`
	Address           string `mapstructure:"address"`
	JWTSecret         string `mapstructure:"jwt_secret"`
	AdminPasswordHash string `mapstructure:"admin_password_hash"`
}

// DatabasesConfig contains external store connection settings.
type DatabasesConfig struct {
	Redis RedisConfig `mapstructure:"redis"`
}

// RedisConfig contains redis connection settings.
type RedisConfig struct {
	Host string `mapstructure:"host"`
	Port string `mapstructure:"port"`
	Pass string `mapstructure:"pass"`
	DB   int    `mapstructure:"db"`
}

// LoadConfig reads configuration from file and environment. Env vars
// with the BELG_ prefix override file values (BELG_TELEGRAM_TOKEN and
// so on).
func LoadConfig(path string) (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("json")

	viper.SetDefault("general.log_level", "info")
	viper.SetDefault("telegram.message_limit", 4096)
	viper.SetDefault("llm.type", "gigachat")
	viper.SetDefault("llm.gigachat.scope", "GIGACHAT_API_PERS")
	viper.SetDefault("llm.gigachat.model", "GigaChat-Max")
	viper.SetDefault("llm.gigachat.embedding_model", "Embeddings")
	viper.SetDefault("llm.gigachat.verify_ssl", false)
	viper.SetDefault("llm.extract_temperature", 0.3)
	viper.SetDefault("llm.extract_max_tokens", 2100)
	viper.SetDefault("llm.nlu_temperature", 0.01)
	viper.SetDefault("llm.nlu_max_tokens", 2100)
	viper.SetDefault("llm.timeout", 90*time.Second)
	viper.SetDefault("search.provider", "serper")
	viper.SetDefault("search.max_per_query", 7)
	viper.SetDefault("search.aggregator_sites", []string{"expomap.ru", "expocentre.ru", "events.ved.gov.ru"})
	viper.SetDefault("fetch.timeout_ms", 45000)
	viper.SetDefault("fetch.max_chars", 20000)
	viper.SetDefault("retrieval.chunk_size", 1000)
	viper.SetDefault("retrieval.chunk_overlap", 250)
	viper.SetDefault("retrieval.top_k", 60)
	viper.SetDefault("retrieval.store", "inmemory")
	viper.SetDefault("retrieval.ttl_hours", 1)
	viper.SetDefault("clients.backend", "csv")
	viper.SetDefault("clients.csv_path", "data/client_database.csv")
	viper.SetDefault("dialogue.session_ttl", 24*time.Hour)
	viper.SetDefault("dialogue.sweep_schedule", "0 * * * *")
	viper.SetDefault("server.enabled", true)
	viper.SetDefault("server.address", ":10001")
	viper.SetDefault("databases.redis.host", "localhost")
	viper.SetDefault("databases.redis.port", "6379")

	if path == "" {
		viper.AddConfigPath("./config")
		viper.AddConfigPath(".")
		exe, _ := os.Executable()
		exeDir := filepath.Dir(exe)
		viper.AddConfigPath(exeDir)
		viper.AddConfigPath(filepath.Join(exeDir, "..", "config"))
	} else {
		viper.SetConfigFile(path)
	}

	viper.SetEnvPrefix("BELG")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		// A missing file is fine when everything comes from env.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Validate checks the settings without which the bot cannot start at
// all. Misconfigured collaborators are fatal at startup, not at first
// use.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Telegram.Token) == "" {
		return fmt.Errorf("telegram.token is not set")
	}
	switch c.LLM.Type {
	case "gigachat":
		if strings.TrimSpace(c.LLM.GigaChat.Credentials) == "" {
			return fmt.Errorf("llm.gigachat.credentials is not set")
		}
	case "openai":
		if strings.TrimSpace(c.LLM.OpenAI.APIKey) == "" {
			return fmt.Errorf("llm.openai.api_key is not set")
		}
	default:
		return fmt.Errorf("unsupported llm.type %q", c.LLM.Type)
	}
	if strings.TrimSpace(c.Search.APIKey) == "" {
		return fmt.Errorf("search.api_key is not set")
	}
	return nil
}
