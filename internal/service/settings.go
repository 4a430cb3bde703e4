package service

import (
	"strings"
	"sync"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"github.com/MimeLyc/contextual-doc-translator/internal/config"
	"github.com/MimeLyc/contextual-doc-translator/internal/provider"
	"github.com/MimeLyc/contextual-doc-translator/internal/session"
	"github.com/MimeLyc/contextual-doc-translator/pkg/log"
)

// providerSettings resolves the translation provider from the current runtime
// settings. The built provider is reused until the settings change, so its
// circuit breaker keeps its state across requests.
type providerSettings struct {
	store    *config.RuntimeSettingsStore
	registry *provider.Registry
	cfg      *config.Config

	mu        sync.Mutex
	cached    provider.Provider
	cachedFor config.RuntimeSettings
}

var _ session.Settings = (*providerSettings)(nil)

func newProviderSettings(store *config.RuntimeSettingsStore, registry *provider.Registry, cfg *config.Config) *providerSettings {
	return &providerSettings{store: store, registry: registry, cfg: cfg}
}

func (p *providerSettings) Provider() (provider.Provider, error) {
	rs := p.store.GetRuntimeSettings()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cached != nil && p.cachedFor == rs {
		return p.cached, nil
	}

	key := rs.APIKey
	if key == "" {
		key = p.cfg.APIKey(rs.Provider)
	}
	prov, err := p.registry.Build(provider.Settings{
		Name:       rs.Provider,
		APIKey:     key,
		Model:      rs.Model,
		BaseURL:    rs.BaseURL,
		TargetLang: rs.TargetLanguage,
		Timeout:    time.Duration(p.cfg.Translate.Timeout) * time.Second,
	})
	if err != nil {
		return nil, err
	}
	log.Info("Using provider %s (model %q)", prov.Name(), rs.Model)
	p.cached = prov
	p.cachedFor = rs
	return prov, nil
}

func (p *providerSettings) Prompt() string {
	rs := p.store.GetRuntimeSettings()
	if strings.TrimSpace(rs.Prompt) != "" {
		return rs.Prompt
	}
	return DefaultPrompt(rs.TargetLanguage)
}

// DefaultPrompt is the instruction used when no prompt is configured.
func DefaultPrompt(targetLanguage string) string {
	return "Translate the following text into " + languageName(targetLanguage) + ". " +
		"Keep paragraph breaks and formatting. Reply with the translation only."
}

// languageName is the English name of tag, or tag itself when unknown.
func languageName(tag string) string {
	if t, err := language.Parse(tag); err == nil {
		if n := display.English.Tags().Name(t); n != "" {
			return n
		}
	}
	return tag
}
