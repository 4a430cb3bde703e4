package library

import "errors"

// ErrNoChapter is returned when a chapter ref does not resolve to a source file.
var ErrNoChapter = errors.New("chapter not found")

// Chapter is one source document of the library.
type Chapter struct {
	Ref        string `json:"ref"`
	Title      string `json:"title"`
	Path       string `json:"path"`
	OutputPath string `json:"output_path"`
	Translated bool   `json:"translated"`
	Size       int64  `json:"size"`
}
