package jobs

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/MimeLyc/contextual-doc-translator/internal/provider"
)

// loopDispatcher runs posted closures on one goroutine.
type loopDispatcher struct {
	ch   chan func()
	stop chan struct{}
}

func newLoopDispatcher(t *testing.T) *loopDispatcher {
	d := &loopDispatcher{ch: make(chan func(), 64), stop: make(chan struct{})}
	go func() {
		for {
			select {
			case fn := <-d.ch:
				fn()
			case <-d.stop:
				return
			}
		}
	}()
	t.Cleanup(func() { close(d.stop) })
	return d
}

func (d *loopDispatcher) Post(fn func()) {
	select {
	case d.ch <- fn:
	case <-d.stop:
	}
}

func (d *loopDispatcher) Do(fn func()) {
	done := make(chan struct{})
	d.Post(func() {
		defer close(done)
		fn()
	})
	<-done
}

type recordingHandler struct {
	provider provider.Provider

	mu          sync.Mutex
	events      []string
	texts       map[string]string
	buildErrs   map[string]error
	storeErrs   map[string]error
	failedCause map[string]error
}

func newRecordingHandler(p provider.Provider) *recordingHandler {
	return &recordingHandler{
		provider:    p,
		texts:       make(map[string]string),
		buildErrs:   make(map[string]error),
		storeErrs:   make(map[string]error),
		failedCause: make(map[string]error),
	}
}

func (h *recordingHandler) Build(ref string) (Job, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.buildErrs[ref]; err != nil {
		return Job{}, err
	}
	return Job{Ref: ref, SourceText: "text-" + ref, Provider: h.provider}, nil
}

func (h *recordingHandler) Succeeded(ref string, res Result) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.storeErrs[ref]; err != nil {
		return err
	}
	h.texts[ref] = res.Text
	h.events = append(h.events, ref+":success")
	return nil
}

func (h *recordingHandler) Failed(ref string, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.failedCause[ref] = err
	h.events = append(h.events, ref+":failure")
}

func (h *recordingHandler) cause(ref string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.failedCause[ref]
}

func (h *recordingHandler) text(ref string) string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.texts[ref]
}

func (h *recordingHandler) Events() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.events...)
}

type memoryStore struct {
	mu    sync.Mutex
	items map[string]*BatchItem
}

func newMemoryStore() *memoryStore {
	return &memoryStore{items: make(map[string]*BatchItem)}
}

func (m *memoryStore) LoadBatchItems(_ context.Context) ([]*BatchItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ret := make([]*BatchItem, 0, len(m.items))
	for _, item := range m.items {
		ret = append(ret, cloneItem(item))
	}
	return ret, nil
}

func (m *memoryStore) UpsertBatchItem(_ context.Context, item *BatchItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[item.ID] = cloneItem(item)
	return nil
}

func (m *memoryStore) DeleteBatchItem(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, id)
	return nil
}

func (m *memoryStore) status(id string) Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	if item, ok := m.items[id]; ok {
		return item.Status
	}
	return Status(fmt.Sprintf("missing %s", id))
}
