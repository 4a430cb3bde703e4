package main

import (
	"context"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/MimeLyc/contextual-doc-translator/internal/jobs"
)

type batchSummary struct {
	done    int
	failed  int
	pending int
	bytes   int64
	elapsed time.Duration
}

func summarize(items []*jobs.BatchItem, sizes map[string]int64, elapsed time.Duration) batchSummary {
	s := batchSummary{elapsed: elapsed}
	for _, item := range items {
		switch item.Status {
		case jobs.StatusSuccess:
			s.done++
			s.bytes += sizes[item.Ref]
		case jobs.StatusFailed:
			s.failed++
		default:
			s.pending++
		}
	}
	return s
}

func (s batchSummary) String() string {
	msg := fmt.Sprintf("Translated %s chapters (%s of source) in %s",
		humanize.Comma(int64(s.done)), humanize.Bytes(uint64(s.bytes)), s.elapsed.Round(time.Millisecond))
	if s.failed > 0 {
		msg += fmt.Sprintf(", %s failed", humanize.Comma(int64(s.failed)))
	}
	if s.pending > 0 {
		msg += fmt.Sprintf(", %s left pending", humanize.Comma(int64(s.pending)))
	}
	return msg
}

// waitIdle polls state until the scheduler has drained.
func waitIdle(ctx context.Context, state func() jobs.State, every time.Duration) error {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for state().Draining {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}
