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
	Store         StoreConfig         `yaml:"store" mapstructure:"store"`
	Questionnaire QuestionnaireConfig `yaml:"questionnaire" mapstructure:"questionnaire"`
	Redact        RedactConfig        `yaml:"redact" mapstructure:"redact"`
	Anthropic     AnthropicConfig     `yaml:"anthropic" mapstructure:"anthropic"`
	Notion        NotionConfig        `yaml:"notion" mapstructure:"notion"`
	Salesforce    SalesforceConfig    `yaml:"salesforce" mapstructure:"salesforce"`
	Inbox         InboxConfig         `yaml:"inbox" mapstructure:"inbox"`
	Batch         BatchConfig         `yaml:"batch" mapstructure:"batch"`
	Server        ServerConfig        `yaml:"server" mapstructure:"server"`
	Log           LogConfig           `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// QuestionnaireConfig locates the questionnaire document.
type QuestionnaireConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// RedactConfig configures transcript redaction.
type RedactConfig struct {
	Enabled   bool   `yaml:"enabled" mapstructure:"enabled"`
	RulesPath string `yaml:"rules_path" mapstructure:"rules_path"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key                 string `yaml:"key" mapstructure:"key"`
	Model               string `yaml:"model" mapstructure:"model"`
	MaxTokens           int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
	MaxBatchSize        int    `yaml:"max_batch_size" mapstructure:"max_batch_size"`
	NoBatch             bool   `yaml:"no_batch" mapstructure:"no_batch"`
	SmallBatchThreshold int    `yaml:"small_batch_threshold" mapstructure:"small_batch_threshold"`
}

// NotionConfig holds Notion API credentials and database IDs.
type NotionConfig struct {
	Token    string `yaml:"token" mapstructure:"token"`
	RunDB    string `yaml:"run_db" mapstructure:"run_db"`
	AnswerDB string `yaml:"answer_db" mapstructure:"answer_db"`
}

// SalesforceConfig holds Salesforce JWT auth settings.
type SalesforceConfig struct {
	ClientID     string `yaml:"client_id" mapstructure:"client_id"`
	Username     string `yaml:"username" mapstructure:"username"`
	KeyPath      string `yaml:"key_path" mapstructure:"key_path"`
	LoginURL     string `yaml:"login_url" mapstructure:"login_url"`
	AnswerObject string `yaml:"answer_object" mapstructure:"answer_object"`
}

// InboxConfig holds FTP settings for the transcript inbox.
type InboxConfig struct {
	Host        string `yaml:"host" mapstructure:"host"`
	User        string `yaml:"user" mapstructure:"user"`
	Password    string `yaml:"password" mapstructure:"password"`
	RemoteDir   string `yaml:"remote_dir" mapstructure:"remote_dir"`
	LocalDir    string `yaml:"local_dir" mapstructure:"local_dir"`
	Pattern     string `yaml:"pattern" mapstructure:"pattern"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// BatchConfig configures multi-transcript processing.
type BatchConfig struct {
	MaxConcurrentTranscripts int `yaml:"max_concurrent_transcripts" mapstructure:"max_concurrent_transcripts"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
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
	v.SetEnvPrefix("INTAKE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("questionnaire.path", "questionnaire.json")
	v.SetDefault("redact.enabled", true)
	v.SetDefault("anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.max_tokens", 8192)
	v.SetDefault("anthropic.max_batch_size", 100)
	v.SetDefault("anthropic.small_batch_threshold", 3)
	v.SetDefault("salesforce.login_url", "https://login.salesforce.com")
	v.SetDefault("salesforce.answer_object", "Intake_Answer__c")
	v.SetDefault("inbox.remote_dir", "/outbound")
	v.SetDefault("inbox.local_dir", "transcripts")
	v.SetDefault("inbox.pattern", "*.txt")
	v.SetDefault("inbox.timeout_secs", 30)
	v.SetDefault("batch.max_concurrent_transcripts", 5)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

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

// Validate checks that the configuration carries everything the given
// mode needs. Modes map to commands: "analyze", "batch", "serve",
// "notion", "salesforce", and "fetch".
func (c *Config) Validate(mode string) error {
	var problems []string

	switch mode {
	case "analyze":
		problems = c.analysisProblems()
	case "batch":
		problems = c.analysisProblems()
		if c.Batch.MaxConcurrentTranscripts < 1 || c.Batch.MaxConcurrentTranscripts > 50 {
			problems = append(problems, "batch.max_concurrent_transcripts must be between 1 and 50")
		}
		if c.Anthropic.MaxBatchSize < 1 {
			problems = append(problems, "anthropic.max_batch_size must be >= 1")
		}
		if c.Anthropic.SmallBatchThreshold < 0 {
			problems = append(problems, "anthropic.small_batch_threshold must be >= 0")
		}
	case "serve":
		problems = c.analysisProblems()
		if c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
	case "notion":
		if c.Notion.Token == "" {
			problems = append(problems, "notion.token is required")
		}
		if c.Notion.AnswerDB == "" {
			problems = append(problems, "notion.answer_db is required")
		}
	case "salesforce":
		if c.Salesforce.ClientID == "" {
			problems = append(problems, "salesforce.client_id is required")
		}
		if c.Salesforce.Username == "" {
			problems = append(problems, "salesforce.username is required")
		}
		if c.Salesforce.KeyPath == "" {
			problems = append(problems, "salesforce.key_path is required")
		}
	case "fetch":
		if c.Inbox.Host == "" {
			problems = append(problems, "inbox.host is required")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.New("invalid config: " + strings.Join(problems, "; "))
	}
	return nil
}

func (c *Config) analysisProblems() []string {
	var problems []string
	if c.Anthropic.Key == "" {
		problems = append(problems, "anthropic.key is required")
	}
	if c.Anthropic.MaxTokens < 1 {
		problems = append(problems, "anthropic.max_tokens must be >= 1")
	}
	if c.Questionnaire.Path == "" {
		problems = append(problems, "questionnaire.path is required")
	}
	if c.Store.Driver == "postgres" && c.Store.DatabaseURL == "" {
		problems = append(problems, "store.database_url is required")
	}
	return problems
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
