package config

import (
	"time"

	"github.com/spf13/viper"

	"github.com/shanehull/leakwatch/internal/classify"
	"github.com/shanehull/leakwatch/internal/extract"
)

// SetDefaults configures default values for every key. Values follow the
// production fetcher: 5000 messages per incremental run, 3 attempts 60s
// apart, 10,000 records and 50 MiB on disk.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("channel.name", "breachdetector")
	v.SetDefault("channel.kind", "web")
	v.SetDefault("channel.base_url", "https://t.me")
	v.SetDefault("channel.cookie", "")
	v.SetDefault("channel.export_path", "")
	v.SetDefault("channel.timeout", 60*time.Second)

	v.SetDefault("fetch.message_limit", 5000)
	v.SetDefault("fetch.batch_size", 100)
	v.SetDefault("fetch.workers", 8)
	v.SetDefault("fetch.pacing_delay", time.Second)

	v.SetDefault("retry.attempts", 3)
	v.SetDefault("retry.delay", 60*time.Second)
	v.SetDefault("retry.backoff", 2.0)

	v.SetDefault("classifier.min_breach_score", 1)
	v.SetDefault("classifier.max_spam_score", -1)
	v.SetDefault("classifier.min_content_length", 10)
	v.SetDefault("classifier.max_content_length", SchemaMaxBytes)
	v.SetDefault("classifier.breach_terms", classify.DefaultBreachTerms)
	v.SetDefault("classifier.spam_terms", classify.DefaultSpamTerms)

	v.SetDefault("extract.watermarks", extract.DefaultWatermarks)

	v.SetDefault("dataset.path", "data.json")
	v.SetDefault("dataset.max_records", 10000)
	v.SetDefault("dataset.max_bytes", int64(50*1024*1024))

	v.SetDefault("backup.enabled", true)
	v.SetDefault("backup.dir", "backups")
	v.SetDefault("backup.retention_count", 5)
	v.SetDefault("backup.retention_max_age", time.Duration(0))

	v.SetDefault("full_history.confirm", false)
	v.SetDefault("full_history.time_budget", 5*time.Hour)
	v.SetDefault("full_history.max_spam_score", 2)

	v.SetDefault("ai.enabled", false)
	v.SetDefault("ai.api_key", "")
	v.SetDefault("ai.model", "gemini-2.5-flash")
	v.SetDefault("ai.max_records", 50)

	v.SetDefault("notify.on", "failure")
	v.SetDefault("notify.smtp_server", "")
	v.SetDefault("notify.smtp_port", 587)
	v.SetDefault("notify.smtp_user", "")
	v.SetDefault("notify.smtp_pass", "")
	v.SetDefault("notify.from", "")
	v.SetDefault("notify.to", "")

	v.SetDefault("log.json", false)
	v.SetDefault("log.level", "info")
}

// Default returns the configuration built from defaults only.
func Default() *Config {
	cfg, err := LoadWithViper(New())
	if err != nil {
		panic(err)
	}
	return cfg
}
