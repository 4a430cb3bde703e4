package jobs

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/MimeLyc/contextual-doc-translator/pkg/log"
)

// Dispatcher runs fn on the interactive context, in posting order.
type Dispatcher interface {
	Post(fn func())
}

// Handler builds jobs for refs and consumes their results. All methods are
// called on the Dispatcher's context.
type Handler interface {
	Build(ref string) (Job, error)
	// Succeeded handles a translated ref; an error turns the item into a failure.
	Succeeded(ref string, res Result) error
	Failed(ref string, err error)
}

// State is a snapshot of the scheduler: Draining is false exactly when idle.
type State struct {
	Draining bool     `json:"draining"`
	Current  string   `json:"current,omitempty"`
	Queued   []string `json:"queued"`
}

type SchedulerOption func(*Scheduler)

// WithStore persists batch items for Resume.
func WithStore(store Store) SchedulerOption {
	return func(s *Scheduler) { s.store = store }
}

// WithOnIdle registers fn to run on the dispatcher each time the queue drains.
func WithOnIdle(fn func()) SchedulerOption {
	return func(s *Scheduler) { s.onIdle = fn }
}

// Scheduler drains a FIFO queue of refs one at a time. The next item starts
// only after the previous result has been handled, and a failed item never
// stops the batch.
type Scheduler struct {
	runner   *Runner
	handler  Handler
	dispatch Dispatcher
	store    Store
	onIdle   func()
	maxItems int

	mu        sync.RWMutex
	items     map[string]*BatchItem
	queue     []string
	current   string
	idCounter uint64
}

func NewScheduler(runner *Runner, handler Handler, dispatch Dispatcher, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		runner:   runner,
		handler:  handler,
		dispatch: dispatch,
		maxItems: 1000,
		items:    make(map[string]*BatchItem),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.hydrateFromStore(context.Background())
	return s
}

// Start enqueues refs and begins draining when idle. Refs already pending or
// running are skipped. Returns the items that were enqueued. Call it on the
// dispatcher's context.
func (s *Scheduler) Start(refs []string) []*BatchItem {
	now := time.Now()
	added := make([]*BatchItem, 0, len(refs))

	s.mu.Lock()
	for _, ref := range refs {
		ref = strings.TrimSpace(ref)
		if ref == "" || s.activeLocked(ref) {
			continue
		}
		s.idCounter++
		item := &BatchItem{
			ID:        fmt.Sprintf("batch-%d", s.idCounter),
			Ref:       ref,
			Status:    StatusPending,
			CreatedAt: now,
			UpdatedAt: now,
		}
		s.items[item.ID] = item
		s.queue = append(s.queue, item.ID)
		added = append(added, cloneItem(item))
	}
	batchQueueDepth.Set(float64(len(s.queue)))
	s.mu.Unlock()

	for _, item := range added {
		s.persist(item)
	}
	s.next()
	return added
}

// Resume re-enqueues items a previous process left pending, in creation order.
func (s *Scheduler) Resume() int {
	s.mu.Lock()
	queued := make(map[string]bool, len(s.queue))
	for _, id := range s.queue {
		queued[id] = true
	}
	pending := make([]*BatchItem, 0)
	for id, item := range s.items {
		if item.Status == StatusPending && !queued[id] && id != s.current {
			pending = append(pending, item)
		}
	}
	sort.Slice(pending, func(i, j int) bool {
		if !pending[i].CreatedAt.Equal(pending[j].CreatedAt) {
			return pending[i].CreatedAt.Before(pending[j].CreatedAt)
		}
		return itemSeq(pending[i].ID) < itemSeq(pending[j].ID)
	})
	for _, item := range pending {
		s.queue = append(s.queue, item.ID)
	}
	batchQueueDepth.Set(float64(len(s.queue)))
	s.mu.Unlock()

	if len(pending) > 0 {
		log.Info("Resuming %d batch item(s)", len(pending))
		s.next()
	}
	return len(pending)
}

func (s *Scheduler) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := State{
		Draining: s.drainingLocked(),
		Queued:   make([]string, 0, len(s.queue)),
	}
	if item, ok := s.items[s.current]; ok {
		st.Current = item.Ref
	}
	for _, id := range s.queue {
		if item, ok := s.items[id]; ok {
			st.Queued = append(st.Queued, item.Ref)
		}
	}
	return st
}

func (s *Scheduler) Idle() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.drainingLocked()
}

// drainingLocked stays true between one item finishing and the next one
// being popped.
func (s *Scheduler) drainingLocked() bool {
	return s.current != "" || len(s.queue) > 0
}

func (s *Scheduler) Get(id string) (*BatchItem, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.items[id]
	if !ok {
		return nil, false
	}
	return cloneItem(item), true
}

// List returns every known item, oldest first.
func (s *Scheduler) List() []*BatchItem {
	s.mu.RLock()
	ret := make([]*BatchItem, 0, len(s.items))
	for _, item := range s.items {
		ret = append(ret, cloneItem(item))
	}
	s.mu.RUnlock()

	sort.Slice(ret, func(i, j int) bool {
		return itemSeq(ret[i].ID) < itemSeq(ret[j].ID)
	})
	return ret
}

// next starts the head of the queue if nothing is in flight. Items whose job
// cannot be built fail immediately and draining moves on.
func (s *Scheduler) next() {
	for {
		s.mu.Lock()
		if s.current != "" {
			s.mu.Unlock()
			return
		}
		if len(s.queue) == 0 {
			s.mu.Unlock()
			if s.onIdle != nil {
				s.onIdle()
			}
			return
		}
		id := s.queue[0]
		s.queue = s.queue[1:]
		batchQueueDepth.Set(float64(len(s.queue)))
		item, ok := s.items[id]
		if !ok || item.Status != StatusPending {
			s.mu.Unlock()
			continue
		}
		item.Status = StatusRunning
		item.UpdatedAt = time.Now()
		s.current = id
		ref := item.Ref
		snapshot := cloneItem(item)
		s.mu.Unlock()

		s.persist(snapshot)

		job, err := s.handler.Build(ref)
		if err != nil {
			log.Warn("Batch item %s (%s) could not be built: %v", id, ref, err)
			s.finish(id, ref, err)
			continue
		}
		if job.ID == "" {
			job.ID = id
		}
		job.Ref = ref

		log.Info("Batch item %s (%s) started", id, ref)
		s.runner.Run(context.Background(), job, func(res Result) {
			s.dispatch.Post(func() { s.complete(id, ref, res) })
		})
		return
	}
}

func (s *Scheduler) complete(id, ref string, res Result) {
	err := res.Err
	if err == nil {
		err = s.handler.Succeeded(ref, res)
		if err != nil {
			log.Warn("Batch item %s (%s) result could not be stored: %v", id, ref, err)
		}
	}
	s.finish(id, ref, err)
	s.next()
}

// finish records the terminal status, reports failures to the handler and
// clears the in-flight slot.
func (s *Scheduler) finish(id, ref string, err error) {
	if err != nil {
		s.handler.Failed(ref, err)
	}

	s.mu.Lock()
	item, ok := s.items[id]
	if ok {
		if err != nil {
			item.Status = StatusFailed
			item.Error = err.Error()
		} else {
			item.Status = StatusSuccess
			item.Error = ""
		}
		item.UpdatedAt = time.Now()
		batchItemsTotal.WithLabelValues(string(item.Status)).Inc()
	}
	if s.current == id {
		s.current = ""
	}
	pruned := s.pruneTerminalItemsLocked()
	snapshot := cloneItem(item)
	s.mu.Unlock()

	if snapshot != nil {
		s.persist(snapshot)
		log.Info("Batch item %s (%s) %s", id, ref, snapshot.Status)
	}
	s.deleteFromStore(pruned)
}

func (s *Scheduler) activeLocked(ref string) bool {
	for _, item := range s.items {
		if item.Ref == ref && item.active() {
			return true
		}
	}
	return false
}

func (s *Scheduler) pruneTerminalItemsLocked() []string {
	if s.maxItems <= 0 || len(s.items) <= s.maxItems {
		return nil
	}

	terminal := make([]*BatchItem, 0, len(s.items))
	for _, item := range s.items {
		if !item.active() {
			terminal = append(terminal, item)
		}
	}
	sort.Slice(terminal, func(i, j int) bool {
		return terminal[i].UpdatedAt.Before(terminal[j].UpdatedAt)
	})

	toRemove := len(s.items) - s.maxItems
	if toRemove > len(terminal) {
		toRemove = len(terminal)
	}
	pruned := make([]string, 0, toRemove)
	for i := 0; i < toRemove; i++ {
		delete(s.items, terminal[i].ID)
		pruned = append(pruned, terminal[i].ID)
	}
	return pruned
}

func (s *Scheduler) deleteFromStore(ids []string) {
	if s.store == nil {
		return
	}
	for _, id := range ids {
		if err := s.store.DeleteBatchItem(context.Background(), id); err != nil {
			log.Error("Failed to delete pruned batch item %s: %v", id, err)
		}
	}
}

// hydrateFromStore restores items; anything left running by a crash is
// pending again.
func (s *Scheduler) hydrateFromStore(ctx context.Context) {
	if s.store == nil {
		return
	}
	loaded, err := s.store.LoadBatchItems(ctx)
	if err != nil {
		log.Error("Failed to load batch items from store: %v", err)
		return
	}

	now := time.Now()
	toPersist := make([]*BatchItem, 0)
	s.mu.Lock()
	for _, raw := range loaded {
		if raw == nil || raw.ID == "" {
			continue
		}
		item := cloneItem(raw)
		if item.Status == StatusRunning {
			item.Status = StatusPending
			item.UpdatedAt = now
			toPersist = append(toPersist, cloneItem(item))
		}
		s.items[item.ID] = item
		if n := itemSeq(item.ID); n > s.idCounter {
			s.idCounter = n
		}
	}
	s.mu.Unlock()

	for _, item := range toPersist {
		s.persist(item)
	}
}

func (s *Scheduler) persist(item *BatchItem) {
	if s.store == nil || item == nil {
		return
	}
	if err := s.store.UpsertBatchItem(context.Background(), item); err != nil {
		log.Error("Failed to persist batch item %s: %v", item.ID, err)
	}
}

func itemSeq(id string) uint64 {
	n, err := strconv.ParseUint(strings.TrimPrefix(id, "batch-"), 10, 64)
	if err != nil {
		return 0
	}
	return n
}
