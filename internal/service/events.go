package service

import (
	"github.com/MimeLyc/contextual-doc-translator/internal/highlight"
	"github.com/MimeLyc/contextual-doc-translator/internal/session"
	"github.com/MimeLyc/contextual-doc-translator/pkg/log"
)

// logEvents writes session notifications to the log.
type logEvents struct{}

var _ session.Events = logEvents{}

func (logEvents) OnHighlightRanges(ranges []highlight.ChangeRange) {
	log.Debug("Highlight: %d changed ranges", len(ranges))
}

func (logEvents) OnTranslationComplete(text string) {
	log.Info("Translation complete (%d bytes)", len(text))
}

func (logEvents) OnTranslationFailed(err error) {
	log.Error("Translation failed: %v", err)
}

func (logEvents) OnTranslationStored(ref string) {
	log.Info("Translation of %s stored in its history", ref)
}

func (logEvents) OnBatchItemComplete(ref, text string) {
	log.Info("Batch item %s translated (%d bytes)", ref, len(text))
}

func (logEvents) OnBatchItemFailed(ref string, err error) {
	log.Error("Batch item %s failed: %v", ref, err)
}
