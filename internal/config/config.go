package config

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"golang.org/x/text/language"

	"github.com/MimeLyc/contextual-doc-translator/internal/errs"
	"github.com/MimeLyc/contextual-doc-translator/pkg/icron"
	"github.com/MimeLyc/contextual-doc-translator/pkg/log"
)

// Config holds all application configuration.
// Every key is read from (highest first) a bound command line flag, the
// environment, an optional config file, then the default below. Config file
// keys are the lower case environment names, e.g. "rate_limit: 2".
//
// Environment Variables:
// Translation:
// - PROVIDER: openai, gemini, deepl, grok, qwen, openrouter or mock (default: gemini)
// - MODEL: model name, provider default when empty
// - PROVIDER_BASE_URL: API endpoint override (optional)
// - PROVIDER_API_KEY: key for the active provider, overrides the per-provider keys below
// - OPENAI_API_KEY, GEMINI_API_KEY, DEEPL_API_KEY, XAI_API_KEY, DASHSCOPE_API_KEY, OPENROUTER_API_KEY
// - PROVIDER_TIMEOUT: request timeout in seconds (default: 120)
// - RATE_LIMIT: provider calls per second shared by all jobs, 0 disables (default: 1)
// - TARGET_LANGUAGE: BCP 47 tag (default: en)
// - SOURCE_LANGUAGE: BCP 47 tag used for glossary file names (default: und)
// - PROMPT: instructions sent with every translation (optional)
// - BREAKER_FAILURES: consecutive failures before a provider is paused (default: 5)
// - BREAKER_TIMEOUT: seconds a paused provider stays paused (default: 30)
//
// Library:
// - SOURCE_DIR: chapter directory (default: ./chapters)
// - OUTPUT_DIR: translation directory, next to the sources when empty
// - CHAPTER_EXTENSIONS: comma separated (default: .txt,.md)
// - PROJECT_ID: project metadata id (default: default)
//
// Storage:
// - DATA_DIR: data directory (default: ./data)
// - HISTORY_BACKEND: file, sqlite or memory (default: file)
// - SETTINGS_FILE: runtime settings file (default: $DATA_DIR/settings.json)
//
// Session and schedule:
// - DEBOUNCE_MS: edit debounce delay (default: 500)
// - HIGHLIGHT_UNIT: graphemes or runes (default: graphemes)
// - AUTOSAVE_CRON: history flush schedule (default: @every 30s)
// - AUTO_BATCH_CRON: untranslated chapter batch schedule, disabled when empty
// - WATCH_SOURCE: reload the open chapter and glossaries when their files change (default: false)
//
// System:
// - HTTP_ADDR: listen address (default: :8080)
// - UI_DIR: static web UI served at / (optional)
// - LOG_LEVEL: debug, info, warn or error (default: info)
// - LOG_FILE: also append logs to this file (optional)
type Config struct {
	Translate TranslateConfig `json:"translate"`
	Library   LibraryConfig   `json:"library"`
	Storage   StorageConfig   `json:"storage"`
	Session   SessionConfig   `json:"session"`
	Schedule  ScheduleConfig  `json:"schedule"`
	HTTP      HTTPConfig      `json:"http"`
	Log       LogConfig       `json:"log"`
}

type TranslateConfig struct {
	Provider        string            `json:"provider"`
	Model           string            `json:"model"`
	BaseURL         string            `json:"base_url"`
	APIKeys         map[string]string `json:"-"`
	Timeout         int               `json:"timeout"`
	RateLimit       float64           `json:"rate_limit"`
	TargetLanguage  language.Tag      `json:"target_language"`
	SourceLanguage  language.Tag      `json:"source_language"`
	Prompt          string            `json:"prompt"`
	BreakerFailures int               `json:"breaker_failures"`
	BreakerTimeout  int               `json:"breaker_timeout"`
}

type LibraryConfig struct {
	SourceDir  string   `json:"source_dir"`
	OutputDir  string   `json:"output_dir"`
	Extensions []string `json:"extensions"`
	ProjectID  string   `json:"project_id"`
}

type StorageConfig struct {
	DataDir        string `json:"data_dir"`
	HistoryBackend string `json:"history_backend"`
	SettingsFile   string `json:"settings_file"`
}

type SessionConfig struct {
	DebounceMS    int    `json:"debounce_ms"`
	HighlightUnit string `json:"highlight_unit"`
}

type ScheduleConfig struct {
	AutosaveCron  string `json:"autosave_cron"`
	AutoBatchCron string `json:"auto_batch_cron"`
	WatchSource   bool   `json:"watch_source"`
}

type HTTPConfig struct {
	Addr  string `json:"addr"`
	UIDir string `json:"ui_dir"`
}

type LogConfig struct {
	Level string `json:"level"`
	File  string `json:"file"`
}

const (
	HistoryBackendFile   = "file"
	HistoryBackendSQLite = "sqlite"
	// HistoryBackendMemory keeps revisions for the life of the process only.
	HistoryBackendMemory = "memory"
)

// apiKeyEnv maps provider names to the environment variable holding their key.
var apiKeyEnv = map[string]string{
	"openai":     "OPENAI_API_KEY",
	"gemini":     "GEMINI_API_KEY",
	"deepl":      "DEEPL_API_KEY",
	"grok":       "XAI_API_KEY",
	"qwen":       "DASHSCOPE_API_KEY",
	"openrouter": "OPENROUTER_API_KEY",
}

// Option is a function type for configuring Config
type Option func(*Config)

// LoadDotEnv loads .env files into the environment without overriding
// variables that are already set. Missing files are ignored.
func LoadDotEnv(paths ...string) {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err == nil {
			log.Debug("Loaded environment from %s", p)
		}
	}
}

// ReadFile reads a yaml, toml or json config file into v.
func ReadFile(v *viper.Viper, path string) error {
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return errs.Wrap(err, errs.ErrConfig, "read config file").WithContext("path", path)
	}
	return nil
}

// NewFromEnv builds a Config from the environment alone.
func NewFromEnv(opts ...Option) (*Config, error) {
	return Load(nil, opts...)
}

// Load builds a Config from v, which may carry a config file and bound flags.
// A nil v reads the environment only.
func Load(v *viper.Viper, opts ...Option) (*Config, error) {
	if v == nil {
		v = viper.New()
	}
	v.AutomaticEnv()
	l := loader{v: v}

	dataDir := l.getString("DATA_DIR", "./data")
	config := &Config{
		Translate: TranslateConfig{
			Provider:        strings.ToLower(l.getString("PROVIDER", "gemini")),
			Model:           l.getString("MODEL", ""),
			BaseURL:         l.getString("PROVIDER_BASE_URL", ""),
			APIKeys:         make(map[string]string),
			Timeout:         l.getInt("PROVIDER_TIMEOUT", 120),
			RateLimit:       l.getFloat("RATE_LIMIT", 1),
			TargetLanguage:  l.getLanguage("TARGET_LANGUAGE", language.English),
			SourceLanguage:  l.getLanguage("SOURCE_LANGUAGE", language.Und),
			Prompt:          l.getString("PROMPT", ""),
			BreakerFailures: l.getInt("BREAKER_FAILURES", 5),
			BreakerTimeout:  l.getInt("BREAKER_TIMEOUT", 30),
		},
		Library: LibraryConfig{
			SourceDir:  l.getString("SOURCE_DIR", "./chapters"),
			OutputDir:  l.getString("OUTPUT_DIR", ""),
			Extensions: l.getList("CHAPTER_EXTENSIONS", []string{".txt", ".md"}),
			ProjectID:  l.getString("PROJECT_ID", "default"),
		},
		Storage: StorageConfig{
			DataDir:        dataDir,
			HistoryBackend: strings.ToLower(l.getString("HISTORY_BACKEND", HistoryBackendFile)),
			SettingsFile:   l.getString("SETTINGS_FILE", filepath.Join(dataDir, "settings.json")),
		},
		Session: SessionConfig{
			DebounceMS:    l.getInt("DEBOUNCE_MS", 500),
			HighlightUnit: strings.ToLower(l.getString("HIGHLIGHT_UNIT", "graphemes")),
		},
		Schedule: ScheduleConfig{
			AutosaveCron:  l.getString("AUTOSAVE_CRON", "@every 30s"),
			AutoBatchCron: l.getString("AUTO_BATCH_CRON", ""),
			WatchSource:   l.getBool("WATCH_SOURCE", false),
		},
		HTTP: HTTPConfig{
			Addr:  l.getString("HTTP_ADDR", ":8080"),
			UIDir: l.getString("UI_DIR", ""),
		},
		Log: LogConfig{
			Level: l.getString("LOG_LEVEL", "info"),
			File:  l.getString("LOG_FILE", ""),
		},
	}
	for name, env := range apiKeyEnv {
		if key := l.getString(env, ""); key != "" {
			config.Translate.APIKeys[name] = key
		}
	}
	if key := l.getString("PROVIDER_API_KEY", ""); key != "" {
		config.Translate.APIKeys[config.Translate.Provider] = key
	}

	// Apply custom options
	for _, opt := range opts {
		opt(config)
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	log.Info("Config: provider=%s model=%q target=%s source_dir=%s history=%s addr=%s",
		config.Translate.Provider, config.Translate.Model, config.Translate.TargetLanguage,
		config.Library.SourceDir, config.Storage.HistoryBackend, config.HTTP.Addr)
	return config, nil
}

// validate checks if all required configuration is properly set
func (c *Config) validate() error {
	if strings.TrimSpace(c.Translate.Provider) == "" {
		return errs.New(errs.ErrConfig, "PROVIDER is required")
	}
	if c.Translate.RateLimit < 0 {
		return errs.Newf(errs.ErrConfig, "RATE_LIMIT must not be negative, got %v", c.Translate.RateLimit)
	}
	switch c.Storage.HistoryBackend {
	case HistoryBackendFile, HistoryBackendSQLite, HistoryBackendMemory:
	default:
		return errs.Newf(errs.ErrConfig, "unknown HISTORY_BACKEND %q", c.Storage.HistoryBackend)
	}
	switch c.Session.HighlightUnit {
	case "graphemes", "runes":
	default:
		return errs.Newf(errs.ErrConfig, "unknown HIGHLIGHT_UNIT %q", c.Session.HighlightUnit)
	}
	if c.Session.DebounceMS < 0 {
		return errs.New(errs.ErrConfig, "DEBOUNCE_MS must not be negative")
	}
	if expr := c.Schedule.AutosaveCron; expr != "" {
		if err := icron.Validate(expr); err != nil {
			return errs.Wrap(err, errs.ErrConfig, "invalid AUTOSAVE_CRON")
		}
	}
	if expr := c.Schedule.AutoBatchCron; expr != "" {
		if err := icron.Validate(expr); err != nil {
			return errs.Wrap(err, errs.ErrConfig, "invalid AUTO_BATCH_CRON")
		}
	}
	return nil
}

// APIKey returns the key configured for provider.
func (c *Config) APIKey(provider string) string {
	return c.Translate.APIKeys[strings.ToLower(provider)]
}

func (c *Config) Debounce() time.Duration {
	return time.Duration(c.Session.DebounceMS) * time.Millisecond
}

// TargetLanguageCode is the base language used in translation file names.
func (c *Config) TargetLanguageCode() string {
	base, _ := c.Translate.TargetLanguage.Base()
	return base.String()
}

func (c *Config) DBPath() string {
	return filepath.Join(c.Storage.DataDir, "ctxdoc.db")
}

func (c *Config) HistoryDir() string {
	return filepath.Join(c.Storage.DataDir, "history")
}

func (c *Config) GlossaryDir() string {
	return filepath.Join(c.Storage.DataDir, "glossaries")
}

func (c *Config) ProjectsDir() string {
	return filepath.Join(c.Storage.DataDir, "projects")
}

// WithDataDir relocates every derived storage path.
func WithDataDir(dir string) Option {
	return func(c *Config) {
		if c.Storage.SettingsFile == filepath.Join(c.Storage.DataDir, "settings.json") {
			c.Storage.SettingsFile = filepath.Join(dir, "settings.json")
		}
		c.Storage.DataDir = dir
	}
}

func WithProvider(name string) Option {
	return func(c *Config) {
		c.Translate.Provider = strings.ToLower(name)
	}
}
