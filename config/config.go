package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the research agent service
type Config struct {
	General   GeneralConfig   `mapstructure:"general"`
	Server    ServerConfig    `mapstructure:"server"`
	Knowledge KnowledgeConfig `mapstructure:"knowledge"`
	Extractor ExtractorConfig `mapstructure:"extractor"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Sources   SourcesConfig   `mapstructure:"sources"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Locks     LocksConfig     `mapstructure:"locks"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// GeneralConfig contains general application settings
type GeneralConfig struct {
	Debug    bool   `mapstructure:"debug"`
	LogLevel string `mapstructure:"log_level"`
}

// ServerConfig contains HTTP server and auth settings
type ServerConfig struct {
	Address     string   `mapstructure:"address"`
	JWTSecret   string   `mapstructure:"jwt_secret"`
	CORSOrigins []string `mapstructure:"cors_origins"`
}

// KnowledgeConfig controls the token budget of an agent's private knowledge.
type KnowledgeConfig struct {
	MaxTokens int    `mapstructure:"max_tokens"`
	Encoding  string `mapstructure:"encoding"`
	Tokenizer string `mapstructure:"tokenizer"` // tiktoken, estimate
}

// Normalize applies defaults for unset knowledge values.
func (k KnowledgeConfig) Normalize() KnowledgeConfig {
	if k.MaxTokens <= 0 {
		k.MaxTokens = DefaultMaxTokens
	}
	k.Encoding = strings.TrimSpace(k.Encoding)
	if k.Encoding == "" {
		k.Encoding = "cl100k_base"
	}
	k.Tokenizer = strings.ToLower(strings.TrimSpace(k.Tokenizer))
	if k.Tokenizer == "" {
		k.Tokenizer = "tiktoken"
	}
	return k
}

func (k KnowledgeConfig) Validate() error {
	switch k.Tokenizer {
	case "tiktoken", "estimate":
	default:
		return fmt.Errorf("knowledge.tokenizer must be tiktoken or estimate, got %q", k.Tokenizer)
	}
	return nil
}

// ExtractorConfig configures document and website text extraction.
type ExtractorConfig struct {
	TikaURL        string        `mapstructure:"tika_url"`
	MaxUploadBytes int64         `mapstructure:"max_upload_bytes"`
	Website        WebsiteConfig `mapstructure:"website"`
}

// WebsiteConfig configures how web pages are fetched.
type WebsiteConfig struct {
	Fetcher   string           `mapstructure:"fetcher"` // http, chromedp
	Timeout   time.Duration    `mapstructure:"timeout"`
	MaxChars  int              `mapstructure:"max_chars"`
	UserAgent string           `mapstructure:"user_agent"`
	Hosts     HostPolicyConfig `mapstructure:"hosts"`
}

// Normalize applies defaults for unset extractor values.
func (e ExtractorConfig) Normalize() ExtractorConfig {
	e.TikaURL = strings.TrimSpace(e.TikaURL)
	if e.MaxUploadBytes <= 0 {
		e.MaxUploadBytes = 50 << 20
	}
	e.Website.Fetcher = strings.ToLower(strings.TrimSpace(e.Website.Fetcher))
	if e.Website.Fetcher == "" {
		e.Website.Fetcher = "http"
	}
	if e.Website.Timeout <= 0 {
		e.Website.Timeout = 15 * time.Second
	}
	if e.Website.MaxChars <= 0 {
		e.Website.MaxChars = 20000
	}
	if strings.TrimSpace(e.Website.UserAgent) == "" {
		e.Website.UserAgent = "ResearchAgent/1.0 (+contact@example.com)"
	}
	e.Website.Hosts = e.Website.Hosts.Normalize()
	return e
}

func (e ExtractorConfig) Validate() error {
	switch e.Website.Fetcher {
	case "http", "chromedp":
	default:
		return fmt.Errorf("extractor.website.fetcher must be http or chromedp, got %q", e.Website.Fetcher)
	}
	return e.Website.Hosts.Validate()
}

// LLMConfig contains the answering model configuration
type LLMConfig struct {
	Provider    string        `mapstructure:"provider"` // openai
	APIKey      string        `mapstructure:"api_key"`
	BaseURL     string        `mapstructure:"base_url"`
	Model       string        `mapstructure:"model"`
	Temperature float64       `mapstructure:"temperature"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxSteps    int           `mapstructure:"max_steps"`
}

// Normalize applies defaults for unset LLM values.
func (l LLMConfig) Normalize() LLMConfig {
	l.Provider = strings.ToLower(strings.TrimSpace(l.Provider))
	if l.Provider == "" {
		l.Provider = "openai"
	}
	if l.APIKey == "" {
		l.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if l.BaseURL == "" {
		l.BaseURL = "https://api.openai.com/v1"
	}
	if l.Model == "" {
		l.Model = "gpt-4o-mini"
	}
	if l.Timeout <= 0 {
		l.Timeout = 60 * time.Second
	}
	if l.MaxSteps <= 0 {
		l.MaxSteps = 8
	}
	return l
}

func (l LLMConfig) Validate() error {
	if l.Provider != "openai" {
		return fmt.Errorf("unsupported llm.provider: %s", l.Provider)
	}
	if l.Temperature < 0 || l.Temperature > 2 {
		return fmt.Errorf("llm.temperature must be within [0, 2]")
	}
	return nil
}

// SourcesConfig contains search tool configurations
type SourcesConfig struct {
	Wikipedia WikipediaConfig `mapstructure:"wikipedia"`
	WebSearch WebSearchConfig `mapstructure:"web_search"`
	NewsAPI   NewsAPIConfig   `mapstructure:"newsapi"`
}

// WikipediaConfig contains Wikipedia API settings
type WikipediaConfig struct {
	Endpoint string `mapstructure:"endpoint"`
	Language string `mapstructure:"language"`
}

// WebSearchConfig contains web search settings
type WebSearchConfig struct {
	Provider     string        `mapstructure:"provider"` // brave, serper
	BraveAPIKey  string        `mapstructure:"brave_api_key"`
	SerperAPIKey string        `mapstructure:"serper_api_key"`
	MaxResults   int           `mapstructure:"max_results"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

// NewsAPIConfig contains NewsAPI settings
type NewsAPIConfig struct {
	APIKey     string `mapstructure:"api_key"`
	Endpoint   string `mapstructure:"endpoint"`
	MaxResults int    `mapstructure:"max_results"`
}

// Normalize applies defaults for unset source values.
func (s SourcesConfig) Normalize() SourcesConfig {
	if s.Wikipedia.Language == "" {
		s.Wikipedia.Language = "en"
	}
	if s.Wikipedia.Endpoint == "" {
		s.Wikipedia.Endpoint = fmt.Sprintf("https://%s.wikipedia.org", s.Wikipedia.Language)
	}
	s.WebSearch.Provider = strings.ToLower(strings.TrimSpace(s.WebSearch.Provider))
	if s.WebSearch.Provider == "" {
		switch {
		case s.WebSearch.BraveAPIKey != "":
			s.WebSearch.Provider = "brave"
		case s.WebSearch.SerperAPIKey != "":
			s.WebSearch.Provider = "serper"
		}
	}
	if s.WebSearch.MaxResults <= 0 {
		s.WebSearch.MaxResults = 5
	}
	if s.WebSearch.Timeout <= 0 {
		s.WebSearch.Timeout = 15 * time.Second
	}
	if s.NewsAPI.Endpoint == "" {
		s.NewsAPI.Endpoint = "https://newsapi.org/v2/everything"
	}
	if s.NewsAPI.MaxResults <= 0 {
		s.NewsAPI.MaxResults = 5
	}
	return s
}

// StorageConfig contains storage and persistence settings
type StorageConfig struct {
	Driver        string         `mapstructure:"driver"` // postgres, redis, memory
	MigrationsDir string         `mapstructure:"migrations_dir"`
	Postgres      PostgresConfig `mapstructure:"postgres"`
	Redis         RedisConfig    `mapstructure:"redis"`
}

func (s StorageConfig) Validate() error {
	switch s.Driver {
	case "memory":
		return nil
	case "postgres":
		return s.Postgres.Validate()
	case "redis":
		return s.Redis.Validate()
	default:
		return fmt.Errorf("storage.driver must be postgres, redis or memory, got %q", s.Driver)
	}
}

// PostgresConfig contains Postgres connection settings
type PostgresConfig struct {
	URL      string        `mapstructure:"url"`
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	User     string        `mapstructure:"user"`
	Password string        `mapstructure:"password"`
	DBName   string        `mapstructure:"dbname"`
	SSLMode  string        `mapstructure:"sslmode"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

func (p PostgresConfig) Validate() error {
	if strings.TrimSpace(p.URL) != "" {
		return nil
	}
	if strings.TrimSpace(p.Host) == "" {
		return fmt.Errorf("storage.postgres.host required when url is not provided")
	}
	if strings.TrimSpace(p.DBName) == "" {
		return fmt.Errorf("storage.postgres.dbname required when url is not provided")
	}
	return nil
}

// DSN builds a connection string, preferring an explicit url.
func (p PostgresConfig) DSN() string {
	if p.URL != "" {
		return p.URL
	}
	port := p.Port
	if port == "" {
		port = "5432"
	}
	ssl := p.SSLMode
	if ssl == "" {
		ssl = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", p.User, p.Password, p.Host, port, p.DBName, ssl)
}

// RedisConfig contains Redis connection settings
type RedisConfig struct {
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

func (r RedisConfig) Validate() error {
	if strings.TrimSpace(r.Host) == "" {
		return fmt.Errorf("storage.redis.host required")
	}
	if strings.TrimSpace(r.Port) == "" {
		return fmt.Errorf("storage.redis.port required")
	}
	return nil
}

// Addr returns host:port.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%s", r.Host, r.Port)
}

// LocksConfig selects how mutations of one agent are serialized.
type LocksConfig struct {
	Driver string        `mapstructure:"driver"` // local, redis
	TTL    time.Duration `mapstructure:"ttl"`
	Wait   time.Duration `mapstructure:"wait"`
}

// TelemetryConfig contains metrics settings
type TelemetryConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// DefaultMaxTokens is the knowledge ceiling applied when none is configured.
const DefaultMaxTokens = 120000

// LoadConfig loads config from file and environment
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("json")
	v.SetDefault("general.log_level", "info")
	v.SetDefault("server.address", ":8000")
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("knowledge.max_tokens", DefaultMaxTokens)
	v.SetDefault("knowledge.encoding", "cl100k_base")
	v.SetDefault("knowledge.tokenizer", "tiktoken")
	v.SetDefault("extractor.website.fetcher", "http")
	v.SetDefault("storage.driver", "memory")
	v.SetDefault("storage.migrations_dir", "file://migrations")
	v.SetDefault("storage.redis.port", "6379")
	v.SetDefault("locks.driver", "local")
	v.SetDefault("locks.ttl", "2m")
	v.SetDefault("locks.wait", "30s")
	v.SetDefault("telemetry.enabled", true)

	if path == "" {
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
		if exe, err := os.Executable(); err == nil {
			exeDir := filepath.Dir(exe)
			v.AddConfigPath(exeDir)
			v.AddConfigPath(filepath.Join(exeDir, "..", "config"))
		}
	} else {
		v.SetConfigFile(path)
	}

	v.SetEnvPrefix("RESEARCHER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// AutomaticEnv only resolves keys viper already knows about
	for _, key := range envOnlyKeys {
		_ = v.BindEnv(key)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		// an explicit path must exist; the search path may come up empty
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.Knowledge = cfg.Knowledge.Normalize()
	cfg.Extractor = cfg.Extractor.Normalize()
	cfg.LLM = cfg.LLM.Normalize()
	cfg.Sources = cfg.Sources.Normalize()
	cfg.Storage.Driver = strings.ToLower(strings.TrimSpace(cfg.Storage.Driver))

	for _, validate := range []func() error{
		cfg.Knowledge.Validate,
		cfg.Extractor.Validate,
		cfg.LLM.Validate,
		cfg.Storage.Validate,
		cfg.Locks.Validate,
	} {
		if err := validate(); err != nil {
			return nil, err
		}
	}
	return &cfg, nil
}

func (l LocksConfig) Validate() error {
	switch l.Driver {
	case "local", "redis":
		return nil
	default:
		return fmt.Errorf("locks.driver must be local or redis, got %q", l.Driver)
	}
}

var envOnlyKeys = []string{
	"general.debug",
	"server.jwt_secret",
	"extractor.tika_url",
	"extractor.max_upload_bytes",
	"extractor.website.timeout",
	"extractor.website.max_chars",
	"llm.api_key",
	"llm.base_url",
	"llm.model",
	"llm.temperature",
	"llm.max_steps",
	"sources.web_search.provider",
	"sources.web_search.brave_api_key",
	"sources.web_search.serper_api_key",
	"sources.newsapi.api_key",
	"storage.postgres.url",
	"storage.postgres.host",
	"storage.postgres.port",
	"storage.postgres.user",
	"storage.postgres.password",
	"storage.postgres.dbname",
	"storage.postgres.sslmode",
	"storage.redis.host",
	"storage.redis.password",
	"storage.redis.db",
}
