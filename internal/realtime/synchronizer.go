package realtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"procurement-workflow/internal/domain"
	"procurement-workflow/internal/storage"
)

type ConnectionState string

const (
	StateConnecting ConnectionState = "connecting"
	StateConnected  ConnectionState = "connected"
	StateError      ConnectionState = "error"
)

var (
	ErrConfigurationMissing = errors.New("backing store configuration missing")
	ErrAlreadyStarted       = errors.New("synchronizer already started")
	ErrSubscriptionFailure  = errors.New("subscription failure")
)

// Watcher streams the complete, ordered document set of a collection path.
type Watcher interface {
	Watch(ctx context.Context, path string, handler storage.WatchHandler) error
}

// Snapshot is an immutable view of the collection. Consumers must not modify
// Processes.
type Snapshot struct {
	State     ConnectionState
	Processes []domain.Process
	Err       error
}

// Synchronizer keeps an ordered in-memory copy of one collection current and
// publishes every change to its subscribers.
type Synchronizer struct {
	watcher Watcher
	path    string
	logger  *slog.Logger

	// deliver keeps listener invocations in notification order.
	deliver sync.Mutex

	mu        sync.Mutex
	current   Snapshot
	listeners map[uint64]func(Snapshot)
	nextID    uint64
	started   bool
	stopped   bool
	cancel    context.CancelFunc
	done      chan struct{}
}

func New(watcher Watcher, path string, logger *slog.Logger) *Synchronizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Synchronizer{
		watcher:   watcher,
		path:      path,
		logger:    logger.With("system", "realtime", "collection", path),
		current:   Snapshot{State: StateConnecting, Processes: []domain.Process{}},
		listeners: make(map[uint64]func(Snapshot)),
	}
}

// Start opens the one subscription this synchronizer owns. Without a watcher
// or collection path it moves straight to the error state.
func (s *Synchronizer) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started || s.stopped {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.started = true
	if s.watcher == nil || s.path == "" {
		s.mu.Unlock()
		s.publish(Snapshot{State: StateError, Processes: []domain.Process{}, Err: ErrConfigurationMissing})
		return ErrConfigurationMissing
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.mu.Unlock()

	go s.run(ctx)
	return nil
}

// Stop cancels the subscription and waits for it to end. No snapshot is
// published after Stop returns. Listeners must not call Stop.
func (s *Synchronizer) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

func (s *Synchronizer) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := s.current
	snap.Processes = append([]domain.Process(nil), snap.Processes...)
	return snap
}

// Subscribe registers listener and immediately hands it the current snapshot.
// The returned function removes the listener.
func (s *Synchronizer) Subscribe(listener func(Snapshot)) func() {
	s.deliver.Lock()
	defer s.deliver.Unlock()

	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = listener
	snap := s.current
	s.mu.Unlock()

	listener(snap)

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, id)
			s.mu.Unlock()
		})
	}
}

func (s *Synchronizer) run(ctx context.Context) {
	defer close(s.done)

	s.logger.Info("subscription opened")
	err := s.watcher.Watch(ctx, s.path, s.handle)
	if ctx.Err() != nil {
		s.logger.Info("subscription closed")
		return
	}
	if err == nil {
		err = errors.New("subscription ended unexpectedly")
	}
	s.logger.Error("subscription failed", "error", err)
	s.publish(Snapshot{
		State:     StateError,
		Processes: []domain.Process{},
		Err:       fmt.Errorf("%w: %w", ErrSubscriptionFailure, err),
	})
}

func (s *Synchronizer) handle(_ context.Context, docs []storage.Document) error {
	processes := make([]domain.Process, 0, len(docs))
	for _, doc := range docs {
		processes = append(processes, domain.Map(doc.Data, doc.ID))
	}
	sort.SliceStable(processes, func(i, j int) bool {
		return processes[i].ID > processes[j].ID
	})

	s.publish(Snapshot{State: StateConnected, Processes: processes})
	return nil
}

func (s *Synchronizer) publish(snap Snapshot) {
	s.deliver.Lock()
	defer s.deliver.Unlock()

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.current = snap
	listeners := make([]func(Snapshot), 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}
	s.mu.Unlock()

	for _, l := range listeners {
		l(snap)
	}
}
