package glossary

import "strings"

// Match keeps only the entries whose source term appears in one of texts.
// Matching is case-sensitive substring matching, which suits proper nouns.
func Match(entries Entries, texts ...string) Entries {
	matched := make(Entries)

	for source, target := range entries {
		if source == "" {
			continue
		}
		for _, text := range texts {
			if strings.Contains(text, source) {
				matched[source] = target
				break
			}
		}
	}

	return matched
}

// Merge combines the entries of every AutoToPrompt glossary. Later glossaries
// win on conflicting terms.
func Merge(glossaries ...*Glossary) Entries {
	merged := make(Entries)
	for _, g := range glossaries {
		if g == nil || !g.AutoToPrompt {
			continue
		}
		for k, v := range g.Entries {
			merged[k] = v
		}
	}
	return merged
}
