// Package scheduler owns the worker pool and the two queues every callback in
// the client runs from: completed background tasks and pending events. Tick
// is driven by the host UI loop and is the only place application callbacks
// execute, so callbacks never race each other or UI code.
package scheduler

import (
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/ourchat/ourchat-client/internal/proto"
)

// Handler receives one dispatched event.
type Handler func(proto.Event)

// TaskFunc is the blocking part of a background task. It runs on a pool
// goroutine and must not touch UI state directly.
type TaskFunc func() (any, error)

// CompleteFunc receives a finished task's result on the tick goroutine.
type CompleteFunc func(result any, err error)

// Subscription is the opaque token Listen returns; Unlisten takes it back.
type Subscription struct {
	token uuid.UUID
	code  proto.Code
	fn    Handler
}

// Task is the handle for one submitted unit of work.
type Task struct {
	id         string
	run        TaskFunc
	onComplete CompleteFunc
}

func (t *Task) ID() string { return t.id }

type taskResult struct {
	task   *Task
	result any
	err    error
}

type Scheduler struct {
	log *zap.Logger

	mu        sync.Mutex
	subs      map[proto.Code][]*Subscription
	events    []proto.Event
	deferred  []func()
	completed []taskResult
	pending   map[string]*Task

	// closeMu serializes Submit's channel send against Close closing it.
	closeMu sync.RWMutex
	closed  bool

	work    chan *Task
	wg      sync.WaitGroup
	entropy *ulid.MonotonicEntropy
}

// New starts a pool of workers goroutines. Close must be called to stop them.
func New(workers int, log *zap.Logger) *Scheduler {
	if workers < 1 {
		workers = 2
	}
	s := &Scheduler{
		log:     log,
		subs:    map[proto.Code][]*Subscription{},
		pending: map[string]*Task{},
		work:    make(chan *Task, 128),
		entropy: ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0),
	}
	s.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go s.worker()
	}
	return s
}

func (s *Scheduler) worker() {
	defer s.wg.Done()
	for t := range s.work {
		result, err := runTask(t.run)
		s.mu.Lock()
		s.completed = append(s.completed, taskResult{task: t, result: result, err: err})
		s.mu.Unlock()
	}
}

func runTask(fn TaskFunc) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("task panicked: %v", r)
		}
	}()
	return fn()
}

// Submit enqueues work on the pool. onComplete may be nil; it is invoked
// exactly once, from Tick, never from a pool goroutine.
func (s *Scheduler) Submit(run TaskFunc, onComplete CompleteFunc) (*Task, error) {
	s.closeMu.RLock()
	defer s.closeMu.RUnlock()
	if s.closed {
		return nil, errors.New("scheduler is closed")
	}
	t := &Task{
		id:         ulid.MustNew(ulid.Timestamp(time.Now()), s.entropy).String(),
		run:        run,
		onComplete: onComplete,
	}
	s.mu.Lock()
	s.pending[t.id] = t
	s.mu.Unlock()

	s.work <- t
	return t, nil
}

// Listen registers fn for events of the given code. Subscribers for one code
// are invoked in subscription order.
func (s *Scheduler) Listen(code proto.Code, fn Handler) *Subscription {
	sub := &Subscription{token: uuid.New(), code: code, fn: fn}
	s.mu.Lock()
	s.subs[code] = append(s.subs[code], sub)
	s.mu.Unlock()
	return sub
}

// Unlisten removes a subscription. Removing one that is not registered is an
// error: it means entity lifecycle bookkeeping has gone wrong somewhere.
func (s *Scheduler) Unlisten(sub *Subscription) error {
	if sub == nil {
		return errors.New("nil subscription")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.subs[sub.code]
	for i, candidate := range list {
		if candidate.token == sub.token {
			s.subs[sub.code] = append(list[:i], list[i+1:]...)
			return nil
		}
	}
	return errors.Errorf("subscription %s not registered for code %d", sub.token, sub.code)
}

// Publish queues an event for the next tick. Publishing from inside a
// dispatched callback is safe; the event lands in the following drain, never
// the current one.
func (s *Scheduler) Publish(ev proto.Event) {
	s.mu.Lock()
	s.events = append(s.events, ev)
	s.mu.Unlock()
}

// DeferToMainThread queues fn to run on the next tick. Background workers use
// this for anything that must touch shared UI state.
func (s *Scheduler) DeferToMainThread(fn func()) {
	s.mu.Lock()
	s.deferred = append(s.deferred, fn)
	s.mu.Unlock()
}

// Tick drains completed tasks, queued events and deferred closures, in that
// order. Events drain in publish order (FIFO): the original client drained
// newest-first by accident of popping from the end of a list, but callers
// observably depend on same-code events arriving in order, so this
// implementation commits to FIFO instead.
func (s *Scheduler) Tick() {
	s.mu.Lock()
	completed := s.completed
	s.completed = nil
	for _, c := range completed {
		delete(s.pending, c.task.id)
	}
	s.mu.Unlock()

	for _, c := range completed {
		if c.err != nil {
			s.log.Warn("background task failed", zap.String("task", c.task.id), zap.Error(c.err))
		}
		if c.task.onComplete != nil {
			s.invoke(func() { c.task.onComplete(c.result, c.err) })
		}
	}

	s.mu.Lock()
	events := s.events
	s.events = nil
	s.mu.Unlock()

	for _, ev := range events {
		s.mu.Lock()
		subs := append([]*Subscription(nil), s.subs[ev.EventCode()]...)
		s.mu.Unlock()
		// no subscriber: drop silently
		for _, sub := range subs {
			fn := sub.fn
			s.invoke(func() { fn(ev) })
		}
	}

	s.mu.Lock()
	deferred := s.deferred
	s.deferred = nil
	s.mu.Unlock()

	for _, fn := range deferred {
		s.invoke(fn)
	}
}

// invoke shields the tick from a panicking callback; one bad subscriber must
// not stop the rest of the drain.
func (s *Scheduler) invoke(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("callback panicked", zap.Any("panic", r), zap.Stack("stack"))
		}
	}()
	fn()
}

// PendingTasks reports how many submitted tasks have not yet been observed as
// complete by Tick.
func (s *Scheduler) PendingTasks() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Close stops accepting work and waits up to timeout for in-flight tasks.
func (s *Scheduler) Close(timeout time.Duration) error {
	s.closeMu.Lock()
	if s.closed {
		s.closeMu.Unlock()
		return nil
	}
	s.closed = true
	close(s.work)
	s.closeMu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return errors.New("timed out waiting for worker pool to drain")
	}
}
