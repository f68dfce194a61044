package gateway

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Command actions accepted over a debate websocket.
const (
	ActionStartDebate  = "start_debate"
	ActionHumanMessage = "human_message"
	ActionPauseDebate  = "pause_debate"
	ActionPing         = "ping"
)

// Command is one client-initiated websocket message.
type Command struct {
	Action      string `json:"type"`
	Username    string `json:"username,omitempty"`
	Content     string `json:"content,omitempty"`
	MessageType string `json:"message_type,omitempty"`
}

// CreateDebateRequest is the REST payload for creating a debate.
type CreateDebateRequest struct {
	Topic       string            `json:"topic"`
	Description string            `json:"description,omitempty"`
	MaxTurns    int               `json:"max_turns,omitempty"`
	Agents      []CreateAgentSpec `json:"agents"`
}

// CreateAgentSpec describes one automated debater in a create request.
type CreateAgentSpec struct {
	Name        string  `json:"name"`
	Role        string  `json:"role"`
	Provider    string  `json:"provider"`
	Model       string  `json:"model"`
	Temperature float64 `json:"temperature,omitempty"`
}

// ErrorResponse is the REST error body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Client is one connected websocket observer of a single debate. Writes
// are serialized through the client's mutex because turn broadcasts and
// command replies arrive from different goroutines.
type Client struct {
	ID          string
	DebateID    string
	ConnectedAt time.Time
	IPAddress   string

	mu   sync.Mutex
	conn *websocket.Conn
}

// Send writes one JSON message to the client.
func (c *Client) Send(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(v)
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}
