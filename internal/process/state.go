package process

import (
	"sort"
	"sync"
	"time"
)

// State represents the current state of a tracked process.
type State string

// Process states.
const (
	StateStarting State = "starting"
	StateRunning  State = "running"
	StateError    State = "error"
)

// Info describes a tracked process.
type Info struct {
	ID        string
	State     State
	PID       int
	StartedAt time.Time
	LastError error
}

// StateChangeCallback is called when a tracked process changes state.
type StateChangeCallback func(id string, oldState, newState State, err error)

// Registry tracks live subprocesses for status reporting.
type Registry struct {
	mu       sync.RWMutex
	entries  map[string]*Info
	onChange StateChangeCallback
}

// NewRegistry creates an empty registry. onChange may be nil.
func NewRegistry(onChange StateChangeCallback) *Registry {
	return &Registry{entries: make(map[string]*Info), onChange: onChange}
}

func (r *Registry) set(id string, state State, pid int, err error) {
	r.mu.Lock()
	info, ok := r.entries[id]
	if !ok {
		info = &Info{ID: id, StartedAt: time.Now()}
		r.entries[id] = info
	}
	old := info.State
	info.State = state
	if pid != 0 {
		info.PID = pid
	}
	if err != nil {
		info.LastError = err
	}
	cb := r.onChange
	r.mu.Unlock()

	if cb != nil && old != state {
		cb(id, old, state, err)
	}
}

func (r *Registry) remove(id string) {
	r.mu.Lock()
	delete(r.entries, id)
	r.mu.Unlock()
}

// Snapshot returns the tracked processes ordered by start time.
func (r *Registry) Snapshot() []Info {
	r.mu.RLock()
	out := make([]Info, 0, len(r.entries))
	for _, info := range r.entries {
		out = append(out, *info)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out
}

// Active returns the number of tracked processes.
func (r *Registry) Active() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
