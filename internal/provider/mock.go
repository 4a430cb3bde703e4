package provider

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// Call records one Translate invocation on a Mock.
type Call struct {
	Text     string
	Prompt   string
	Glossary map[string]string
}

// Mock is an offline provider. By default it prefixes the text with "MOCK: "
// after substituting glossary terms; Fn overrides the behaviour entirely.
type Mock struct {
	Prefix string
	Fn     func(ctx context.Context, text, prompt string, glossary map[string]string) (string, error)

	mu    sync.Mutex
	calls []Call
}

func NewMock() *Mock {
	return &Mock{Prefix: "MOCK"}
}

func (m *Mock) Name() string { return "mock" }

func (m *Mock) Translate(ctx context.Context, text, prompt string, glossary map[string]string) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, Call{Text: text, Prompt: prompt, Glossary: copyGlossary(glossary)})
	fn := m.Fn
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, text, prompt, glossary)
	}
	out := applyGlossary(text, glossary)
	if m.Prefix == "" {
		return out, nil
	}
	return m.Prefix + ": " + out, nil
}

func (m *Mock) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Call(nil), m.calls...)
}

// applyGlossary replaces longer terms first so overlapping entries resolve
// to the most specific one.
func applyGlossary(text string, glossary map[string]string) string {
	if len(glossary) == 0 {
		return text
	}
	terms := make([]string, 0, len(glossary))
	for k := range glossary {
		if k != "" {
			terms = append(terms, k)
		}
	}
	sort.Slice(terms, func(i, j int) bool {
		if len(terms[i]) != len(terms[j]) {
			return len(terms[i]) > len(terms[j])
		}
		return terms[i] < terms[j]
	})
	pairs := make([]string, 0, len(terms)*2)
	for _, t := range terms {
		pairs = append(pairs, t, glossary[t])
	}
	return strings.NewReplacer(pairs...).Replace(text)
}

func copyGlossary(g map[string]string) map[string]string {
	if g == nil {
		return nil
	}
	out := make(map[string]string, len(g))
	for k, v := range g {
		out[k] = v
	}
	return out
}
