package jobs

import (
	"time"

	"github.com/MimeLyc/contextual-doc-translator/internal/provider"
)

type Status string

const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// Job is one translation request. It is built per request and consumed once.
type Job struct {
	ID         string
	Ref        string
	SourceText string
	Prompt     string
	Glossary   map[string]string
	Provider   provider.Provider
}

// Result is delivered exactly once per Job: Err == nil means success.
type Result struct {
	JobID string
	Ref   string
	Text  string
	Err   error
}

func (r Result) OK() bool { return r.Err == nil }

// BatchItem is the persisted state of one ref in a batch run.
type BatchItem struct {
	ID        string    `json:"id"`
	Ref       string    `json:"ref"`
	Status    Status    `json:"status"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (i *BatchItem) active() bool {
	return i.Status == StatusPending || i.Status == StatusRunning
}

func cloneItem(item *BatchItem) *BatchItem {
	if item == nil {
		return nil
	}
	tmp := *item
	return &tmp
}
