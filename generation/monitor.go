package generation

import "sync"

// State is a step in the life of one generation request.
type State int

const (
	Started State = iota
	Retrieving
	EmbeddingDone
	Generating
	Completed
	Cancelled
	Failed
)

var stateNames = [...]string{
	Started:       "started",
	Retrieving:    "retrieving",
	EmbeddingDone: "embedding-done",
	Generating:    "generating",
	Completed:     "completed",
	Cancelled:     "cancelled",
	Failed:        "failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Terminal reports whether no further transition can follow s.
func (s State) Terminal() bool {
	return s == Completed || s == Cancelled || s == Failed
}

// Monitor observes state transitions of generation requests.
// Implementations must be safe for concurrent use; a streamed request
// reports its final transition from the consuming goroutine.
type Monitor interface {
	Transition(from, to State)
}

// noopMonitor is a no-op implementation of Monitor
type noopMonitor struct{}

var _ Monitor = (*noopMonitor)(nil)

func (n *noopMonitor) Transition(_, _ State) {}

// request tracks one call's state. Transitions out of a terminal state are
// dropped, so each request reports exactly one terminal state.
type request struct {
	monitor Monitor

	mu    sync.Mutex
	state State
}

func newRequest(monitor Monitor) *request {
	return &request{monitor: monitor, state: Started}
}

func (r *request) to(next State) {
	r.mu.Lock()
	prev := r.state
	if prev.Terminal() {
		r.mu.Unlock()
		return
	}
	r.state = next
	r.mu.Unlock()
	r.monitor.Transition(prev, next)
}

func (r *request) current() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// EmbeddingDone lets a request act as a retrieval.Monitor.
func (r *request) EmbeddingDone() {
	r.to(EmbeddingDone)
}
