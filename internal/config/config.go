package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Rules      RulesConfig      `yaml:"rules" mapstructure:"rules"`
	Crawl      CrawlConfig      `yaml:"crawl" mapstructure:"crawl"`
	Extract    ExtractConfig    `yaml:"extract" mapstructure:"extract"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Sheets     SheetsConfig     `yaml:"sheets" mapstructure:"sheets"`
	FTP        FTPConfig        `yaml:"ftp" mapstructure:"ftp"`
	Salesforce SalesforceConfig `yaml:"salesforce" mapstructure:"salesforce"`
	Notion     NotionConfig     `yaml:"notion" mapstructure:"notion"`
	Quota      QuotaConfig      `yaml:"quota" mapstructure:"quota"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// RulesConfig points at an optional column-rules override file.
type RulesConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// CrawlConfig configures the site crawler.
type CrawlConfig struct {
	MaxPages       int     `yaml:"max_pages" mapstructure:"max_pages"`
	MaxDepth       int     `yaml:"max_depth" mapstructure:"max_depth"`
	MaxBodyKB      int     `yaml:"max_body_kb" mapstructure:"max_body_kb"`
	TimeoutSecs    int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RequestsPerSec float64 `yaml:"requests_per_sec" mapstructure:"requests_per_sec"`
	Workers        int     `yaml:"workers" mapstructure:"workers"`
	CacheTTLHours  int     `yaml:"cache_ttl_hours" mapstructure:"cache_ttl_hours"`
	UserAgent      string  `yaml:"user_agent" mapstructure:"user_agent"`
}

// ExtractConfig configures the field extraction phase.
type ExtractConfig struct {
	MaxRetries   int `yaml:"max_retries" mapstructure:"max_retries"`
	MaxTextChars int `yaml:"max_text_chars" mapstructure:"max_text_chars"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key       string `yaml:"key" mapstructure:"key"`
	Model     string `yaml:"model" mapstructure:"model"`
	MaxTokens int    `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// SheetsConfig holds Google Sheets export settings.
type SheetsConfig struct {
	Token         string `yaml:"token" mapstructure:"token"`
	BaseURL       string `yaml:"base_url" mapstructure:"base_url"`
	SpreadsheetID string `yaml:"spreadsheet_id" mapstructure:"spreadsheet_id"`
	SheetName     string `yaml:"sheet_name" mapstructure:"sheet_name"`
}

// FTPConfig holds FTP delivery settings.
type FTPConfig struct {
	Host     string `yaml:"host" mapstructure:"host"`
	User     string `yaml:"user" mapstructure:"user"`
	Password string `yaml:"password" mapstructure:"password"`
	Dir      string `yaml:"dir" mapstructure:"dir"`
}

// SalesforceConfig holds Salesforce JWT auth settings.
type SalesforceConfig struct {
	ClientID string `yaml:"client_id" mapstructure:"client_id"`
	Username string `yaml:"username" mapstructure:"username"`
	KeyPath  string `yaml:"key_path" mapstructure:"key_path"`
	LoginURL string `yaml:"login_url" mapstructure:"login_url"`
}

// NotionConfig holds Notion API credentials and the review database ID.
type NotionConfig struct {
	Token    string `yaml:"token" mapstructure:"token"`
	ReviewDB string `yaml:"review_db" mapstructure:"review_db"`
}

// QuotaConfig caps daily upstream usage.
type QuotaConfig struct {
	DailyCrawls      int `yaml:"daily_crawls" mapstructure:"daily_crawls"`
	DailyExtractions int `yaml:"daily_extractions" mapstructure:"daily_extractions"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("LEADMERGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "leadmerge.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("crawl.max_pages", 25)
	v.SetDefault("crawl.max_depth", 2)
	v.SetDefault("crawl.max_body_kb", 512)
	v.SetDefault("crawl.timeout_secs", 20)
	v.SetDefault("crawl.requests_per_sec", 2)
	v.SetDefault("crawl.workers", 5)
	v.SetDefault("crawl.cache_ttl_hours", 24)
	v.SetDefault("crawl.user_agent", "leadmerge-crawler/1.0")
	v.SetDefault("extract.max_retries", 3)
	v.SetDefault("extract.max_text_chars", 60000)
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.max_tokens", 2048)
	v.SetDefault("sheets.base_url", "https://sheets.googleapis.com/v4")
	v.SetDefault("sheets.sheet_name", "Leads")
	v.SetDefault("salesforce.login_url", "https://login.salesforce.com")
	v.SetDefault("quota.daily_crawls", 200)
	v.SetDefault("quota.daily_extractions", 500)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks that the fields a command depends on are set. Mode is
// the command name: "merge", "scrape", or "serve".
func (c *Config) Validate(mode string) error {
	var missing []string

	check := func(v, name string) {
		if v == "" {
			missing = append(missing, name+" is required")
		}
	}

	switch mode {
	case "merge":
		// merge runs fully offline; sink credentials are checked by the
		// sinks themselves when their flags are set.
	case "scrape":
		check(c.Anthropic.Key, "anthropic.key")
		if c.Crawl.Workers < 1 || c.Crawl.Workers > 50 {
			missing = append(missing, "crawl.workers must be between 1 and 50")
		}
		if c.Crawl.MaxDepth < 0 {
			missing = append(missing, "crawl.max_depth must be >= 0")
		}
		if c.Crawl.RequestsPerSec <= 0 {
			missing = append(missing, "crawl.requests_per_sec must be > 0")
		}
	case "serve":
		if c.Server.Port <= 0 {
			missing = append(missing, "server.port must be > 0")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if c.Store.Driver != "sqlite" && c.Store.Driver != "postgres" {
		missing = append(missing, "store.driver must be sqlite or postgres")
	}

	if len(missing) > 0 {
		return eris.Errorf("config: %s", strings.Join(missing, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
