package upload

import (
	"sync"

	"procurement-workflow/internal/domain"
)

const sessionSlot = "*"

// InFlight tracks submissions that have not finished yet, keyed by
// (processId, stage). In serialized mode every key shares one slot, so only
// one submission runs at a time across the whole session.
type InFlight struct {
	mu        sync.Mutex
	held      map[string]struct{}
	serialize bool
}

func NewInFlight(serialize bool) *InFlight {
	return &InFlight{held: make(map[string]struct{}), serialize: serialize}
}

// Acquire claims the slot for key. The returned release is safe to call more
// than once.
func (f *InFlight) Acquire(processID string, stage domain.Stage) (func(), bool) {
	key := f.key(processID, stage)

	f.mu.Lock()
	defer f.mu.Unlock()
	if _, busy := f.held[key]; busy {
		return func() {}, false
	}
	f.held[key] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.held, key)
			f.mu.Unlock()
		})
	}, true
}

func (f *InFlight) Held(processID string, stage domain.Stage) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.held[f.key(processID, stage)]
	return ok
}

func (f *InFlight) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.held)
}

func (f *InFlight) key(processID string, stage domain.Stage) string {
	if f.serialize {
		return sessionSlot
	}
	return processID + "/" + string(stage)
}
