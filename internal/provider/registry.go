package provider

import (
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/MimeLyc/contextual-doc-translator/internal/errs"
)

var (
	ErrUnknownProvider = errors.New("unknown provider")
	ErrMissingAPIKey   = errors.New("api key not provided")
)

// Settings carries what a factory needs to build one provider.
type Settings struct {
	Name       string
	APIKey     string
	Model      string
	BaseURL    string
	TargetLang string
	Timeout    time.Duration
}

type Factory func(Settings) (Provider, error)

// Registry resolves provider names case-insensitively.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	breaker   BreakerSettings
}

// NewRegistry returns a registry with every built-in backend registered.
func NewRegistry() *Registry {
	r := &Registry{
		factories: make(map[string]Factory),
		breaker:   DefaultBreakerSettings(),
	}
	r.Register("openai", NewOpenAI)
	r.Register("gemini", NewGemini)
	r.Register("deepl", NewDeepL)
	for name := range compatDefaults {
		r.Register(name, NewCompat)
	}
	r.Register("mock", func(Settings) (Provider, error) { return NewMock(), nil })
	return r
}

func (r *Registry) Register(name string, f Factory) {
	r.mu.Lock()
	r.factories[strings.ToLower(strings.TrimSpace(name))] = f
	r.mu.Unlock()
}

// SetBreaker changes the circuit breaker used for providers built afterwards.
func (r *Registry) SetBreaker(s BreakerSettings) {
	r.mu.Lock()
	r.breaker = s
	r.mu.Unlock()
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Build constructs the named provider wrapped in a circuit breaker. Unknown
// names and missing credentials are configuration errors.
func (r *Registry) Build(s Settings) (Provider, error) {
	name := strings.ToLower(strings.TrimSpace(s.Name))
	r.mu.RLock()
	factory, ok := r.factories[name]
	breaker := r.breaker
	r.mu.RUnlock()
	if !ok {
		return nil, errs.Wrap(ErrUnknownProvider, errs.ErrConfig, "resolve provider").
			WithContext("provider", s.Name)
	}

	s.Name = name
	p, err := factory(s)
	if err != nil {
		if errs.IsErrorType(err, errs.ErrConfig) {
			return nil, err
		}
		return nil, errs.Wrap(err, errs.ErrConfig, "build provider").WithContext("provider", name)
	}
	return WithBreaker(p, breaker), nil
}

func requireKey(s Settings) error {
	if strings.TrimSpace(s.APIKey) == "" {
		return errs.Wrap(ErrMissingAPIKey, errs.ErrConfig, "build provider").
			WithContext("provider", s.Name)
	}
	return nil
}
