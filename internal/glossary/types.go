package glossary

// Entries maps source terms to their required translations.
type Entries map[string]string

// Glossary is a named set of entries. Only glossaries with AutoToPrompt are
// sent along with translation jobs.
type Glossary struct {
	Name         string  `json:"name" yaml:"name" toml:"name"`
	AutoToPrompt bool    `json:"auto_to_prompt" yaml:"auto_to_prompt" toml:"auto_to_prompt"`
	Entries      Entries `json:"entries" yaml:"entries" toml:"entries"`

	path string
}

func New(name string) *Glossary {
	return &Glossary{Name: name, Entries: make(Entries)}
}

// Path is the file the glossary was loaded from or last saved to.
func (g *Glossary) Path() string { return g.path }

func (g *Glossary) Add(source, target string) {
	if g.Entries == nil {
		g.Entries = make(Entries)
	}
	g.Entries[source] = target
}

func (g *Glossary) Remove(source string) {
	delete(g.Entries, source)
}

func (g *Glossary) Get(source string) (string, bool) {
	v, ok := g.Entries[source]
	return v, ok
}
