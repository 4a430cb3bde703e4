package config

import (
	"encoding/json"
	"os"
	"strings"
	"sync"

	"golang.org/x/text/language"

	"github.com/MimeLyc/contextual-doc-translator/internal/errs"
	"github.com/MimeLyc/contextual-doc-translator/pkg/file"
	"github.com/MimeLyc/contextual-doc-translator/pkg/icron"
)

// RuntimeSettings are the settings editable while the service runs. They are
// persisted to the settings file and take precedence over the environment.
type RuntimeSettings struct {
	Provider       string  `json:"provider"`
	Model          string  `json:"model"`
	BaseURL        string  `json:"base_url,omitempty"`
	APIKey         string  `json:"api_key,omitempty"`
	Prompt         string  `json:"prompt"`
	TargetLanguage string  `json:"target_language"`
	RateLimit      float64 `json:"rate_limit"`
	AutosaveCron   string  `json:"autosave_cron"`
	AutoBatchCron  string  `json:"auto_batch_cron"`
}

func (s RuntimeSettings) Validate() error {
	if strings.TrimSpace(s.Provider) == "" {
		return errs.New(errs.ErrConfig, "provider is required")
	}
	if s.RateLimit < 0 {
		return errs.New(errs.ErrConfig, "rate_limit must not be negative")
	}
	if strings.TrimSpace(s.TargetLanguage) == "" {
		return errs.New(errs.ErrConfig, "target_language is required")
	}
	if _, err := language.Parse(s.TargetLanguage); err != nil {
		return errs.Wrap(err, errs.ErrConfig, "invalid target_language")
	}
	if s.AutosaveCron != "" {
		if err := icron.Validate(s.AutosaveCron); err != nil {
			return errs.Wrap(err, errs.ErrConfig, "invalid autosave_cron")
		}
	}
	if s.AutoBatchCron != "" {
		if err := icron.Validate(s.AutoBatchCron); err != nil {
			return errs.Wrap(err, errs.ErrConfig, "invalid auto_batch_cron")
		}
	}
	return nil
}

// Redacted hides the API key for API responses.
func (s RuntimeSettings) Redacted() RuntimeSettings {
	if s.APIKey != "" {
		s.APIKey = "********"
	}
	return s
}

func (c *Config) RuntimeSettings() RuntimeSettings {
	return RuntimeSettings{
		Provider:       c.Translate.Provider,
		Model:          c.Translate.Model,
		BaseURL:        c.Translate.BaseURL,
		Prompt:         c.Translate.Prompt,
		TargetLanguage: c.Translate.TargetLanguage.String(),
		RateLimit:      c.Translate.RateLimit,
		AutosaveCron:   c.Schedule.AutosaveCron,
		AutoBatchCron:  c.Schedule.AutoBatchCron,
	}
}

// WithRuntimeSettings overlays saved settings; empty fields keep the current value.
func WithRuntimeSettings(settings RuntimeSettings) Option {
	return func(c *Config) {
		if strings.TrimSpace(settings.Provider) != "" {
			c.Translate.Provider = strings.ToLower(settings.Provider)
		}
		if strings.TrimSpace(settings.Model) != "" {
			c.Translate.Model = settings.Model
		}
		if strings.TrimSpace(settings.BaseURL) != "" {
			c.Translate.BaseURL = settings.BaseURL
		}
		if strings.TrimSpace(settings.APIKey) != "" {
			c.Translate.APIKeys[c.Translate.Provider] = settings.APIKey
		}
		if strings.TrimSpace(settings.Prompt) != "" {
			c.Translate.Prompt = settings.Prompt
		}
		if tag, err := language.Parse(settings.TargetLanguage); err == nil {
			c.Translate.TargetLanguage = tag
		}
		if settings.RateLimit > 0 {
			c.Translate.RateLimit = settings.RateLimit
		}
		if strings.TrimSpace(settings.AutosaveCron) != "" {
			c.Schedule.AutosaveCron = settings.AutosaveCron
		}
		if strings.TrimSpace(settings.AutoBatchCron) != "" {
			c.Schedule.AutoBatchCron = settings.AutoBatchCron
		}
	}
}

func LoadRuntimeSettingsFile(path string) (RuntimeSettings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return RuntimeSettings{}, err
	}
	var settings RuntimeSettings
	if err := json.Unmarshal(data, &settings); err != nil {
		return RuntimeSettings{}, errs.Wrap(err, errs.ErrConfig, "invalid settings file").WithContext("path", path)
	}
	return settings, nil
}

func WriteRuntimeSettingsFile(path string, settings RuntimeSettings) error {
	if err := settings.Validate(); err != nil {
		return err
	}

	content, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return errs.Wrap(err, errs.ErrStorage, "encode settings")
	}
	content = append(content, '\n')

	if err := file.WriteAtomic(path, content, 0o600); err != nil {
		return errs.Wrap(err, errs.ErrStorage, "write settings file").WithContext("path", path)
	}
	return nil
}

// RuntimeSettingsStore serves the current runtime settings and persists updates.
type RuntimeSettingsStore struct {
	path string

	mu        sync.RWMutex
	current   RuntimeSettings
	listeners []func(RuntimeSettings)
}

func NewRuntimeSettingsStore(path string, initial RuntimeSettings) (*RuntimeSettingsStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errs.New(errs.ErrConfig, "settings file path is required")
	}
	if err := initial.Validate(); err != nil {
		return nil, err
	}
	return &RuntimeSettingsStore{
		path:    path,
		current: initial,
	}, nil
}

func (s *RuntimeSettingsStore) GetRuntimeSettings() RuntimeSettings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// OnChange registers fn to run after every successful update.
func (s *RuntimeSettingsStore) OnChange(fn func(RuntimeSettings)) {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

// UpdateRuntimeSettings validates and saves next. An empty API key keeps the
// stored one, so clients can send back a redacted document.
func (s *RuntimeSettingsStore) UpdateRuntimeSettings(next RuntimeSettings) (RuntimeSettings, error) {
	s.mu.Lock()
	if next.APIKey == "" || next.APIKey == "********" {
		next.APIKey = s.current.APIKey
	}
	if err := WriteRuntimeSettingsFile(s.path, next); err != nil {
		s.mu.Unlock()
		return RuntimeSettings{}, err
	}
	s.current = next
	listeners := append([]func(RuntimeSettings){}, s.listeners...)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(next)
	}
	return next, nil
}
