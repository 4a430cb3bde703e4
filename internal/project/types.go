package project

import "time"

// Chapter is the metadata collected from a translated chapter.
type Chapter struct {
	Name      string   `json:"name"`
	Names     []string `json:"names"`
	Locations []string `json:"locations"`
	Plot      string   `json:"plot"`
	Language  string   `json:"language,omitempty"`
}

// Project groups chapter metadata used as context for later translations.
type Project struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Chapters  []Chapter `json:"chapters"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Chapter returns the chapter with the given name.
func (p *Project) Chapter(name string) (Chapter, bool) {
	for _, ch := range p.Chapters {
		if ch.Name == name {
			return ch, true
		}
	}
	return Chapter{}, false
}
