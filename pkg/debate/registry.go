package debate

import (
	"context"
	"errors"
	"sync"
)

// ErrAlreadyRunning is returned when a second concurrent run is requested
// for a debate that already holds a handle in the registry.
var ErrAlreadyRunning = errors.New("debate is already running")

// injectQueueSize bounds how many human messages can wait between turns.
const injectQueueSize = 32

// Injected is the lightweight copy of a persisted human message pushed onto
// a running debate's pending queue.
type Injected struct {
	AgentName  string
	Content    string
	Type       string
	TurnNumber int
}

// Handle is the mutable control object for one running debate: a one-shot
// cooperative cancellation signal, a queue of pending human messages, and a
// done channel closed when the background run exits.
type Handle struct {
	debateID string
	ctx      context.Context
	cancel   context.CancelFunc
	injects  chan Injected
	done     chan struct{}

	mu       sync.Mutex
	stopping bool
}

// Context returns the run's cancellation context.
func (h *Handle) Context() context.Context { return h.ctx }

// Done is closed when the background run has fully exited.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Cancel sets the cancellation signal. Idempotent: setting twice is a no-op.
func (h *Handle) Cancel() {
	h.mu.Lock()
	h.stopping = true
	h.mu.Unlock()
	h.cancel()
}

// Stopping reports whether the cancellation signal has been set.
func (h *Handle) Stopping() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stopping
}

// Inject queues a human message for the run to drain at its next inter-turn
// checkpoint. Returns false if the run is stopping or the queue is full.
func (h *Handle) Inject(msg Injected) bool {
	if h.Stopping() {
		return false
	}
	select {
	case h.injects <- msg:
		return true
	default:
		return false
	}
}

// drainInjected returns all currently queued human messages without blocking.
func (h *Handle) drainInjected() []Injected {
	var out []Injected
	for {
		select {
		case msg := <-h.injects:
			out = append(out, msg)
		default:
			return out
		}
	}
}

// Registry tracks the running handle for each debate and enforces the
// at-most-one-concurrent-execution guarantee. It is the only process-wide
// mutable structure besides the gateway's connection sets; all methods are
// safe under concurrent start/pause/inject/disconnect traffic.
type Registry struct {
	mu      sync.Mutex
	handles map[string]*Handle
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{handles: make(map[string]*Handle)}
}

// Register creates and records a new handle for the debate. Fails with
// ErrAlreadyRunning if a handle already exists.
func (r *Registry) Register(debateID string) (*Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.handles[debateID]; exists {
		return nil, ErrAlreadyRunning
	}

	ctx, cancel := context.WithCancel(context.Background())
	h := &Handle{
		debateID: debateID,
		ctx:      ctx,
		cancel:   cancel,
		injects:  make(chan Injected, injectQueueSize),
		done:     make(chan struct{}),
	}
	r.handles[debateID] = h
	return h, nil
}

// Get returns the handle for a debate, if one is registered.
func (r *Registry) Get(debateID string) (*Handle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.handles[debateID]
	return h, ok
}

// Remove drops the handle from the registry, but only if it is still the
// registered one — a replacement run's handle is never clobbered.
func (r *Registry) Remove(debateID string, h *Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if current, ok := r.handles[debateID]; ok && current == h {
		delete(r.handles, debateID)
	}
}

// Len returns the number of currently running debates.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.handles)
}

// Shutdown cancels every running debate and waits for each to exit.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	handles := make([]*Handle, 0, len(r.handles))
	for _, h := range r.handles {
		handles = append(handles, h)
	}
	r.mu.Unlock()

	for _, h := range handles {
		h.Cancel()
	}
	for _, h := range handles {
		<-h.Done()
	}
}
