// Package config loads the run configuration with viper: defaults, an
// optional config file, then LEAKWATCH_* environment variables.
package config

import (
	"regexp"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/shanehull/leakwatch/internal/errors"
	"github.com/shanehull/leakwatch/internal/types"
)

const (
	EnvPrefix      = "LEAKWATCH"
	DefaultName    = "leakwatch"
	SchemaMaxBytes = 2000
)

type Config struct {
	Channel     ChannelConfig     `mapstructure:"channel"`
	Fetch       FetchConfig       `mapstructure:"fetch"`
	Retry       RetryConfig       `mapstructure:"retry"`
	Classifier  ClassifierConfig  `mapstructure:"classifier"`
	Extract     ExtractConfig     `mapstructure:"extract"`
	Dataset     DatasetConfig     `mapstructure:"dataset"`
	Backup      BackupConfig      `mapstructure:"backup"`
	FullHistory FullHistoryConfig `mapstructure:"full_history"`
	AI          AIConfig          `mapstructure:"ai"`
	Notify      NotifyConfig      `mapstructure:"notify"`
	Log         LogConfig         `mapstructure:"log"`
}

type ChannelConfig struct {
	Name       string        `mapstructure:"name"`
	Kind       string        `mapstructure:"kind"` // "web" or "export"
	BaseURL    string        `mapstructure:"base_url"`
	Cookie     string        `mapstructure:"cookie"`
	ExportPath string        `mapstructure:"export_path"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

type FetchConfig struct {
	MessageLimit int           `mapstructure:"message_limit"`
	BatchSize    int           `mapstructure:"batch_size"`
	Workers      int           `mapstructure:"workers"`
	PacingDelay  time.Duration `mapstructure:"pacing_delay"`
}

type RetryConfig struct {
	Attempts int           `mapstructure:"attempts"`
	Delay    time.Duration `mapstructure:"delay"`
	Backoff  float64       `mapstructure:"backoff"`
}

type ClassifierConfig struct {
	MinBreachScore   int      `mapstructure:"min_breach_score"`
	MaxSpamScore     int      `mapstructure:"max_spam_score"` // negative = unrestricted
	MinContentLength int      `mapstructure:"min_content_length"`
	MaxContentLength int      `mapstructure:"max_content_length"`
	BreachTerms      []string `mapstructure:"breach_terms"`
	SpamTerms        []string `mapstructure:"spam_terms"`
}

type ExtractConfig struct {
	Watermarks []string `mapstructure:"watermarks"`
}

type DatasetConfig struct {
	Path       string `mapstructure:"path"`
	MaxRecords int    `mapstructure:"max_records"`
	MaxBytes   int64  `mapstructure:"max_bytes"`
}

type BackupConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Dir             string        `mapstructure:"dir"`
	RetentionCount  int           `mapstructure:"retention_count"`
	RetentionMaxAge time.Duration `mapstructure:"retention_max_age"`
}

type FullHistoryConfig struct {
	Confirm      bool          `mapstructure:"confirm"`
	TimeBudget   time.Duration `mapstructure:"time_budget"`
	MaxSpamScore int           `mapstructure:"max_spam_score"`
}

type AIConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	APIKey     string `mapstructure:"api_key"`
	Model      string `mapstructure:"model"`
	MaxRecords int    `mapstructure:"max_records"`
}

type NotifyConfig struct {
	On         string `mapstructure:"on"` // failure, partial, always
	SMTPServer string `mapstructure:"smtp_server"`
	SMTPPort   int    `mapstructure:"smtp_port"`
	SMTPUser   string `mapstructure:"smtp_user"`
	SMTPPass   string `mapstructure:"smtp_pass"`
	From       string `mapstructure:"from"`
	To         string `mapstructure:"to"`
}

type LogConfig struct {
	JSON  bool   `mapstructure:"json"`
	Level string `mapstructure:"level"`
}

var channelNameRe = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// Load reads configuration from path, or from ./leakwatch.{yaml,toml,json}
// when path is empty. A missing default file is not an error.
func Load(path string) (*Config, error) {
	v := New()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Mark(errors.Wrapf(err, "read config file %s", path), errors.ErrInvalidConfig)
		}
	} else {
		v.SetConfigName(DefaultName)
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, errors.Mark(errors.Wrap(err, "read config file"), errors.ErrInvalidConfig)
			}
		}
	}

	return LoadWithViper(v)
}

// New returns a viper instance with defaults and environment binding.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindSensitiveEnvVars(v)
	SetDefaults(v)
	return v
}

func LoadWithViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Mark(errors.Wrap(err, "unmarshal config"), errors.ErrInvalidConfig)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// bindSensitiveEnvVars lets credentials come from their conventional
// variables as well as the prefixed ones.
func bindSensitiveEnvVars(v *viper.Viper) {
	_ = v.BindEnv("ai.api_key", EnvPrefix+"_AI_API_KEY", "GEMINI_API_KEY")
	_ = v.BindEnv("channel.cookie", EnvPrefix+"_CHANNEL_COOKIE")
	_ = v.BindEnv("notify.smtp_pass", EnvPrefix+"_NOTIFY_SMTP_PASS", "SMTP_PASS")
}

// Validate checks bounds that must hold before any channel I/O.
func (c *Config) Validate() error {
	switch {
	case !channelNameRe.MatchString(c.Channel.Name):
		return errors.InvalidConfig("channel.name %q must match %s", c.Channel.Name, channelNameRe)
	case c.Channel.Kind != "web" && c.Channel.Kind != "export":
		return errors.InvalidConfig("channel.kind must be web or export, got %q", c.Channel.Kind)
	case c.Channel.Kind == "export" && c.Channel.ExportPath == "":
		return errors.InvalidConfig("channel.export_path is required for channel.kind=export")
	case c.Fetch.MessageLimit <= 0:
		return errors.InvalidConfig("fetch.message_limit must be > 0")
	case c.Fetch.BatchSize <= 0:
		return errors.InvalidConfig("fetch.batch_size must be > 0")
	case c.Fetch.Workers <= 0:
		return errors.InvalidConfig("fetch.workers must be > 0")
	case c.Fetch.PacingDelay < 0:
		return errors.InvalidConfig("fetch.pacing_delay must not be negative")
	case c.Retry.Attempts < 1:
		return errors.InvalidConfig("retry.attempts must be >= 1")
	case c.Retry.Delay < 0:
		return errors.InvalidConfig("retry.delay must not be negative")
	case c.Retry.Backoff < 1:
		return errors.InvalidConfig("retry.backoff must be >= 1")
	case c.Classifier.MinBreachScore < 0:
		return errors.InvalidConfig("classifier.min_breach_score must not be negative")
	case c.Classifier.MinContentLength < 1:
		return errors.InvalidConfig("classifier.min_content_length must be >= 1")
	case c.Classifier.MaxContentLength < c.Classifier.MinContentLength || c.Classifier.MaxContentLength > SchemaMaxBytes:
		return errors.InvalidConfig("classifier.max_content_length must be within [min_content_length, %d]", SchemaMaxBytes)
	case len(c.Classifier.BreachTerms) == 0 && c.Classifier.MinBreachScore > 0:
		return errors.InvalidConfig("classifier.breach_terms is empty but min_breach_score is %d", c.Classifier.MinBreachScore)
	case c.Dataset.Path == "":
		return errors.InvalidConfig("dataset.path is required")
	case c.Dataset.MaxRecords <= 0:
		return errors.InvalidConfig("dataset.max_records must be > 0")
	case c.Dataset.MaxBytes <= 2:
		return errors.InvalidConfig("dataset.max_bytes must be > 2")
	case c.Backup.RetentionCount < 0:
		return errors.InvalidConfig("backup.retention_count must not be negative")
	case c.FullHistory.TimeBudget < 0:
		return errors.InvalidConfig("full_history.time_budget must not be negative")
	case c.AI.Enabled && c.AI.Model == "":
		return errors.InvalidConfig("ai.model is required when ai.enabled")
	}

	switch c.Notify.On {
	case "failure", "partial", "always":
	default:
		return errors.InvalidConfig("notify.on must be failure, partial or always, got %q", c.Notify.On)
	}
	return nil
}

// ValidateFor adds the mode-specific checks.
func (c *Config) ValidateFor(mode types.Mode) error {
	if err := c.Validate(); err != nil {
		return err
	}
	switch mode {
	case types.ModeIncremental:
		return nil
	case types.ModeFullHistory:
		if !c.FullHistory.Confirm {
			return errors.WithHint(
				errors.InvalidConfig("full-history mode requires explicit confirmation"),
				"pass --confirm or set full_history.confirm=true")
		}
		return nil
	default:
		return errors.InvalidConfig("unknown run mode %q", mode)
	}
}

// ClassifierFor returns the classifier settings in effect for mode.
func (c *Config) ClassifierFor(mode types.Mode) ClassifierConfig {
	cc := c.Classifier
	if mode == types.ModeFullHistory {
		cc.MaxSpamScore = c.FullHistory.MaxSpamScore
	}
	return cc
}
