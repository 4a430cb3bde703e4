package provider

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// Provider translates one block of text. Every backend is used through this
// shape; glossary maps source terms to their required translations.
type Provider interface {
	Name() string
	Translate(ctx context.Context, text, prompt string, glossary map[string]string) (string, error)
}

// ProviderError reports a network, auth or malformed-response failure.
type ProviderError struct {
	Provider string
	Message  string
	Cause    error
}

func (e *ProviderError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Provider, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

func (e *ProviderError) Unwrap() error {
	return e.Cause
}

func newError(provider string, cause error, format string, args ...any) *ProviderError {
	return &ProviderError{
		Provider: provider,
		Message:  fmt.Sprintf(format, args...),
		Cause:    cause,
	}
}

// SystemInstruction merges prompt and glossary into one instruction block.
// Glossary lines are sorted so identical inputs produce identical requests.
func SystemInstruction(prompt string, glossary map[string]string) string {
	parts := make([]string, 0, 2)
	if p := strings.TrimSpace(prompt); p != "" {
		parts = append(parts, p)
	}
	if len(glossary) > 0 {
		parts = append(parts, "Glossary:\n"+FormatGlossary(glossary))
	}
	return strings.Join(parts, "\n\n")
}

// FormatGlossary renders "source: target" lines in source order.
func FormatGlossary(glossary map[string]string) string {
	keys := make([]string, 0, len(glossary))
	for k := range glossary {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, k+": "+glossary[k])
	}
	return strings.Join(lines, "\n")
}
