package gateway

import (
	"sync"

	"github.com/openagora/agora/internal/observability"
	"github.com/openagora/agora/pkg/debate"
	"github.com/rs/zerolog"
)

// Hub fans debate events out to the observers of each debate. It
// implements debate.Broadcaster; a write failure marks the connection
// dead and prunes it so one stalled observer cannot wedge the stream.
type Hub struct {
	mu      sync.RWMutex
	debates map[string]map[*Client]bool
	logger  zerolog.Logger

	// onEmpty fires after the last observer of a debate leaves. Called
	// outside the hub lock.
	onEmpty func(debateID string)
}

// NewHub creates an empty hub.
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		debates: make(map[string]map[*Client]bool),
		logger:  logger.With().Str("component", "hub").Logger(),
	}
}

// OnEmpty registers the callback fired when a debate loses its last
// observer. Must be set before connections arrive.
func (h *Hub) OnEmpty(fn func(debateID string)) {
	h.onEmpty = fn
}

// Join registers a client as an observer of its debate.
func (h *Hub) Join(client *Client) {
	h.mu.Lock()
	set, ok := h.debates[client.DebateID]
	if !ok {
		set = make(map[*Client]bool)
		h.debates[client.DebateID] = set
	}
	set[client] = true
	total := h.countLocked()
	h.mu.Unlock()

	observability.SetConnectedObservers(total)
	h.logger.Debug().Str("clientId", client.ID).Str("debate_id", client.DebateID).Msg("Observer joined")
}

// Leave removes a client. If it was the debate's last observer the
// onEmpty callback fires.
func (h *Hub) Leave(client *Client) {
	h.mu.Lock()
	empty := h.removeLocked(client)
	total := h.countLocked()
	h.mu.Unlock()

	observability.SetConnectedObservers(total)
	if empty && h.onEmpty != nil {
		h.onEmpty(client.DebateID)
	}
}

// removeLocked drops the client and reports whether its debate's
// observer set became empty. Caller holds the lock.
func (h *Hub) removeLocked(client *Client) bool {
	set, ok := h.debates[client.DebateID]
	if !ok || !set[client] {
		return false
	}
	delete(set, client)
	if len(set) == 0 {
		delete(h.debates, client.DebateID)
		return true
	}
	return false
}

func (h *Hub) countLocked() int {
	total := 0
	for _, set := range h.debates {
		total += len(set)
	}
	return total
}

// ObserverCount returns the number of observers for one debate.
func (h *Hub) ObserverCount(debateID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.debates[debateID])
}

// Broadcast delivers an event to every observer of a debate. A failed
// write disconnects that observer; delivery to the rest continues.
func (h *Hub) Broadcast(debateID string, event debate.Event) {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.debates[debateID]))
	for client := range h.debates[debateID] {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	if len(clients) == 0 {
		return
	}

	var dead []*Client
	for _, client := range clients {
		if err := client.Send(event); err != nil {
			h.logger.Warn().
				Err(err).
				Str("clientId", client.ID).
				Str("event", string(event.Type())).
				Msg("Failed to deliver event; dropping observer")
			dead = append(dead, client)
		}
	}

	for _, client := range dead {
		client.Close()
		h.Leave(client)
	}
}

// CloseAll closes every connection, used during shutdown.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	var all []*Client
	for _, set := range h.debates {
		for client := range set {
			all = append(all, client)
		}
	}
	h.debates = make(map[string]map[*Client]bool)
	h.mu.Unlock()

	for _, client := range all {
		client.Close()
	}
	observability.SetConnectedObservers(0)
}
