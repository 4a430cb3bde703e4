package session

import (
	"github.com/MimeLyc/contextual-doc-translator/internal/highlight"
)

// Events receives the session's outbound notifications. Methods are called on
// the loop and must not call back into the Session synchronously.
type Events interface {
	OnHighlightRanges(ranges []highlight.ChangeRange)
	OnTranslationComplete(text string)
	OnTranslationFailed(err error)
	// OnTranslationStored reports a single translation that finished after
	// its chapter was closed. The text went to that chapter's history.
	OnTranslationStored(ref string)
	OnBatchItemComplete(ref, text string)
	OnBatchItemFailed(ref string, err error)
}

// NopEvents discards every notification.
type NopEvents struct{}

func (NopEvents) OnHighlightRanges([]highlight.ChangeRange) {}
func (NopEvents) OnTranslationComplete(string)              {}
func (NopEvents) OnTranslationFailed(error)                 {}
func (NopEvents) OnTranslationStored(string)                {}
func (NopEvents) OnBatchItemComplete(string, string)        {}
func (NopEvents) OnBatchItemFailed(string, error)           {}

type fanout []Events

// Fanout delivers every notification to each of events in order.
func Fanout(events ...Events) Events {
	out := make(fanout, 0, len(events))
	for _, e := range events {
		if e != nil {
			out = append(out, e)
		}
	}
	return out
}

func (f fanout) OnHighlightRanges(ranges []highlight.ChangeRange) {
	for _, e := range f {
		e.OnHighlightRanges(ranges)
	}
}

func (f fanout) OnTranslationComplete(text string) {
	for _, e := range f {
		e.OnTranslationComplete(text)
	}
}

func (f fanout) OnTranslationFailed(err error) {
	for _, e := range f {
		e.OnTranslationFailed(err)
	}
}

func (f fanout) OnTranslationStored(ref string) {
	for _, e := range f {
		e.OnTranslationStored(ref)
	}
}

func (f fanout) OnBatchItemComplete(ref, text string) {
	for _, e := range f {
		e.OnBatchItemComplete(ref, text)
	}
}

func (f fanout) OnBatchItemFailed(ref string, err error) {
	for _, e := range f {
		e.OnBatchItemFailed(ref, err)
	}
}
