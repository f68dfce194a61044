package debate

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound marks a lookup for a debate that does not exist.
var ErrNotFound = errors.New("debate not found")

// Status represents the lifecycle state of a debate.
type Status string

const (
	StatusPending   Status = "pending"
	StatusActive    Status = "active"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
)

// AllowedMessageTypes is the closed set of semantic tags a message may carry.
var AllowedMessageTypes = map[string]bool{
	"argument":   true,
	"counter":    true,
	"support":    true,
	"question":   true,
	"evidence":   true,
	"conclusion": true,
}

// DefaultMessageType is used when a human message carries no explicit tag.
const DefaultMessageType = "argument"

// Debate is the in-memory view of one debate instance. The authoritative
// record lives in the store; the runner holds this view for the duration of
// a run and writes status/turn changes back through the Store interface.
type Debate struct {
	ID          string     `json:"id"`
	Topic       string     `json:"topic"`
	Description string     `json:"description,omitempty"`
	Status      Status     `json:"status"`
	MaxTurns    int        `json:"max_turns"`
	CurrentTurn int        `json:"current_turn"`
	Summary     string     `json:"summary,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Agents      []Agent    `json:"agents,omitempty"`
}

// Agent is one automated debater bound to a generation provider/model.
type Agent struct {
	ID           string  `json:"id"`
	DebateID     string  `json:"debate_id"`
	Name         string  `json:"name"`
	Role         string  `json:"role"`
	SystemPrompt string  `json:"system_prompt,omitempty"`
	Provider     string  `json:"provider"`
	Model        string  `json:"model"`
	Temperature  float64 `json:"temperature"`
	OrderIndex   int     `json:"order_index"`
	Active       bool    `json:"active"`
}

// Message is one persisted utterance, human or automated. An empty AgentID
// marks a human message.
type Message struct {
	ID         string    `json:"id"`
	DebateID   string    `json:"debate_id"`
	AgentID    string    `json:"agent_id,omitempty"`
	AgentName  string    `json:"agent_name"`
	Content    string    `json:"content"`
	Type       string    `json:"message_type"`
	TurnNumber int       `json:"turn_number"`
	ModelUsed  string    `json:"model_used,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Human reports whether the message originated from a human participant.
func (m Message) Human() bool {
	return m.AgentID == ""
}

// Store is the persistence collaborator the core drives. Implementations
// must make AppendTurn atomic as a unit: turn number assignment, message
// insert, and the debate's current-turn advance happen in one transaction.
type Store interface {
	// GetDebate loads a debate with its agents. Returns ErrNotFound for an
	// unknown id, distinct from transient I/O failures.
	GetDebate(ctx context.Context, id string) (*Debate, error)

	// AppendTurn persists a new turn record, assigning the next turn number
	// for the debate and advancing its stored current-turn counter.
	AppendTurn(ctx context.Context, debateID string, msg Message) (*Message, error)

	// Messages returns the debate's messages ordered by turn number.
	Messages(ctx context.Context, debateID string, offset, limit int) ([]Message, error)

	// SetStatus updates the persisted debate status. Transitioning to
	// StatusCompleted also records the completion time.
	SetStatus(ctx context.Context, id string, status Status) error

	// SetSummary stores the consensus summary text on the debate record.
	SetSummary(ctx context.Context, id string, summary string) error
}

// Broadcaster delivers an event to every observer of a debate. The gateway
// hub implements this; tests substitute a recorder.
type Broadcaster interface {
	Broadcast(debateID string, event Event)
}

// ActiveAgents returns the debate's active agents in fixed turn order.
// Inactive agents are excluded from the cycle entirely.
func (d *Debate) ActiveAgents() []Agent {
	agents := make([]Agent, 0, len(d.Agents))
	for _, a := range d.Agents {
		if a.Active {
			agents = append(agents, a)
		}
	}
	for i := 0; i < len(agents)-1; i++ {
		for j := i + 1; j < len(agents); j++ {
			if agents[j].OrderIndex < agents[i].OrderIndex {
				agents[i], agents[j] = agents[j], agents[i]
			}
		}
	}
	return agents
}
