package storage

import (
	"context"
	"fmt"
	"sync"

	"procurement-workflow/internal/domain"
)

const memoryWatchBuffer = 16

// MemoryStore is an in-process document store with the same contract as
// PostgresStore. It backs demo mode and tests.
type MemoryStore struct {
	// publish serializes mutations with their notifications so watchers
	// observe snapshots in write order.
	publish sync.Mutex

	mu          sync.Mutex
	collections map[string]map[string]map[string]any
	settings    map[string]string
	watchers    map[*memoryWatcher]struct{}
}

type memoryWatcher struct {
	path  string
	docs  chan []Document
	errs  chan error
	done  chan struct{}
	close sync.Once
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		collections: make(map[string]map[string]map[string]any),
		settings:    make(map[string]string),
		watchers:    make(map[*memoryWatcher]struct{}),
	}
}

func (m *MemoryStore) Ping(context.Context) error {
	return nil
}

func (m *MemoryStore) PutDocument(_ context.Context, path, id string, data map[string]any) error {
	return m.mutate(path, func(col map[string]map[string]any) error {
		doc, _ := copyValue(data).(map[string]any)
		if doc == nil {
			doc = make(map[string]any)
		}
		col[id] = doc
		return nil
	})
}

func (m *MemoryStore) DeleteDocument(_ context.Context, path, id string) error {
	return m.mutate(path, func(col map[string]map[string]any) error {
		if _, ok := col[id]; !ok {
			return ErrNotFound
		}
		delete(col, id)
		return nil
	})
}

func (m *MemoryStore) GetDocument(_ context.Context, path, id string) (Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.collections[path][id]
	if !ok {
		return Document{}, ErrNotFound
	}
	return Document{ID: id, Data: copyValue(doc).(map[string]any)}, nil
}

func (m *MemoryStore) ListDocuments(_ context.Context, path string) ([]Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked(path), nil
}

func (m *MemoryStore) UpdateFields(_ context.Context, path, id string, fields domain.Fields) error {
	if len(fields) == 0 {
		return nil
	}
	return m.mutate(path, func(col map[string]map[string]any) error {
		doc, ok := col[id]
		if !ok {
			return ErrNotFound
		}
		for k, v := range fields {
			setPath(doc, domain.SplitPath(k), v)
		}
		return nil
	})
}

// Watch follows the same contract as PostgresStore.Watch.
func (m *MemoryStore) Watch(ctx context.Context, path string, handler WatchHandler) error {
	w := &memoryWatcher{
		path: path,
		docs: make(chan []Document, memoryWatchBuffer),
		errs: make(chan error, 1),
		done: make(chan struct{}),
	}

	m.publish.Lock()
	m.mu.Lock()
	initial := m.snapshotLocked(path)
	m.watchers[w] = struct{}{}
	m.mu.Unlock()
	m.publish.Unlock()

	defer m.removeWatcher(w)

	if err := handler(ctx, initial); err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-w.errs:
			return err
		case docs := <-w.docs:
			if ctx.Err() != nil {
				return nil
			}
			if err := handler(ctx, docs); err != nil {
				return err
			}
		}
	}
}

// Interrupt fails every active watch on path with err, as a broken
// transport would.
func (m *MemoryStore) Interrupt(path string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for w := range m.watchers {
		if w.path != path {
			continue
		}
		select {
		case w.errs <- fmt.Errorf("memory watch interrupted: %w", err):
		default:
		}
	}
}

func (m *MemoryStore) GetSetting(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.settings[key]
	return v, ok, nil
}

func (m *MemoryStore) SetSetting(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings[key] = value
	return nil
}

func (m *MemoryStore) mutate(path string, fn func(col map[string]map[string]any) error) error {
	m.publish.Lock()
	defer m.publish.Unlock()

	m.mu.Lock()
	col, ok := m.collections[path]
	if !ok {
		col = make(map[string]map[string]any)
		m.collections[path] = col
	}
	if err := fn(col); err != nil {
		m.mu.Unlock()
		return err
	}
	targets := make([]*memoryWatcher, 0, len(m.watchers))
	for w := range m.watchers {
		if w.path == path {
			targets = append(targets, w)
		}
	}
	m.mu.Unlock()

	for _, w := range targets {
		m.mu.Lock()
		snap := m.snapshotLocked(path)
		m.mu.Unlock()
		select {
		case w.docs <- snap:
		case <-w.done:
		}
	}
	return nil
}

func (m *MemoryStore) removeWatcher(w *memoryWatcher) {
	w.close.Do(func() { close(w.done) })
	m.mu.Lock()
	delete(m.watchers, w)
	m.mu.Unlock()
}

func (m *MemoryStore) snapshotLocked(path string) []Document {
	col := m.collections[path]
	docs := make([]Document, 0, len(col))
	for id, data := range col {
		docs = append(docs, Document{ID: id, Data: copyValue(data).(map[string]any)})
	}
	sortDocuments(docs)
	return docs
}
