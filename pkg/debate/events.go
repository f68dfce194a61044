package debate

import "time"

// EventType tags one variant of the debate event stream.
type EventType string

const (
	EventConnected          EventType = "connected"
	EventAgentThinking      EventType = "agent_thinking"
	EventAgentToken         EventType = "agent_token"
	EventAgentSpoke         EventType = "agent_spoke"
	EventHumanSpoke         EventType = "human_spoke"
	EventHumanInjected      EventType = "human_injected"
	EventDebatePaused       EventType = "debate_paused"
	EventDebateCompleted    EventType = "debate_completed"
	EventConsensusStarted   EventType = "consensus_started"
	EventConsensusToken     EventType = "consensus_token"
	EventConsensusGenerated EventType = "consensus_generated"
	EventPauseAck           EventType = "pause_acknowledged"
	EventError              EventType = "error"
	EventPong               EventType = "pong"
)

// Event is the closed set of wire events for one debate. Every variant
// embeds an envelope carrying the event type, the debate id, and an
// RFC3339 timestamp; token events omit the timestamp for throughput.
type Event interface {
	Type() EventType
}

type envelope struct {
	Kind      EventType `json:"type"`
	DebateID  string    `json:"debate_id"`
	Timestamp string    `json:"timestamp,omitempty"`
}

func stamped(kind EventType, debateID string) envelope {
	return envelope{
		Kind:      kind,
		DebateID:  debateID,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

func unstamped(kind EventType, debateID string) envelope {
	return envelope{Kind: kind, DebateID: debateID}
}

// Connected confirms a new observer joined the stream.
type Connected struct {
	envelope
	Message string `json:"message"`
}

func (Connected) Type() EventType { return EventConnected }

func NewConnected(debateID string) Connected {
	return Connected{envelope: stamped(EventConnected, debateID), Message: "Connected to debate"}
}

// AgentThinking signals that generation started for one agent's turn.
type AgentThinking struct {
	envelope
	AgentID   string `json:"agent_id"`
	AgentName string `json:"agent_name"`
	AgentRole string `json:"agent_role"`
}

func (AgentThinking) Type() EventType { return EventAgentThinking }

func NewAgentThinking(debateID string, agent Agent) AgentThinking {
	return AgentThinking{
		envelope:  stamped(EventAgentThinking, debateID),
		AgentID:   agent.ID,
		AgentName: agent.Name,
		AgentRole: agent.Role,
	}
}

// AgentToken carries one streamed fragment of an agent's utterance.
type AgentToken struct {
	envelope
	AgentID   string `json:"agent_id"`
	AgentName string `json:"agent_name"`
	Token     string `json:"token"`
}

func (AgentToken) Type() EventType { return EventAgentToken }

func NewAgentToken(debateID string, agent Agent, token string) AgentToken {
	return AgentToken{
		envelope:  unstamped(EventAgentToken, debateID),
		AgentID:   agent.ID,
		AgentName: agent.Name,
		Token:     token,
	}
}

// AgentSpoke carries a completed, persisted automated turn.
type AgentSpoke struct {
	envelope
	MessageID  string `json:"message_id"`
	AgentID    string `json:"agent_id"`
	AgentName  string `json:"agent_name"`
	AgentRole  string `json:"agent_role"`
	Content    string `json:"content"`
	Kind       string `json:"message_type"`
	TurnNumber int    `json:"turn_number"`
}

func (AgentSpoke) Type() EventType { return EventAgentSpoke }

func NewAgentSpoke(debateID string, agent Agent, msg *Message) AgentSpoke {
	return AgentSpoke{
		envelope:   stamped(EventAgentSpoke, debateID),
		MessageID:  msg.ID,
		AgentID:    agent.ID,
		AgentName:  agent.Name,
		AgentRole:  agent.Role,
		Content:    msg.Content,
		Kind:       msg.Type,
		TurnNumber: msg.TurnNumber,
	}
}

// HumanSpoke carries a persisted human message, broadcast regardless of
// whether a run is active.
type HumanSpoke struct {
	envelope
	MessageID  string `json:"message_id"`
	Username   string `json:"username"`
	Content    string `json:"content"`
	Kind       string `json:"message_type"`
	TurnNumber int    `json:"turn_number"`
}

func (HumanSpoke) Type() EventType { return EventHumanSpoke }

func NewHumanSpoke(debateID string, msg *Message) HumanSpoke {
	return HumanSpoke{
		envelope:   stamped(EventHumanSpoke, debateID),
		MessageID:  msg.ID,
		Username:   msg.AgentName,
		Content:    msg.Content,
		Kind:       msg.Type,
		TurnNumber: msg.TurnNumber,
	}
}

// HumanInjected signals that a queued human message became visible to the
// running debate's history.
type HumanInjected struct {
	envelope
	Username   string `json:"username"`
	Content    string `json:"content"`
	TurnNumber int    `json:"turn_number"`
}

func (HumanInjected) Type() EventType { return EventHumanInjected }

func NewHumanInjected(debateID string, inj Injected) HumanInjected {
	return HumanInjected{
		envelope:   stamped(EventHumanInjected, debateID),
		Username:   inj.AgentName,
		Content:    inj.Content,
		TurnNumber: inj.TurnNumber,
	}
}

// DebatePaused reports a run that stopped at the inter-turn checkpoint.
type DebatePaused struct {
	envelope
	TotalTurns int `json:"total_turns"`
}

func (DebatePaused) Type() EventType { return EventDebatePaused }

func NewDebatePaused(debateID string, totalTurns int) DebatePaused {
	return DebatePaused{envelope: stamped(EventDebatePaused, debateID), TotalTurns: totalTurns}
}

// DebateCompleted reports a run that reached its configured turn maximum.
type DebateCompleted struct {
	envelope
	TotalTurns int `json:"total_turns"`
}

func (DebateCompleted) Type() EventType { return EventDebateCompleted }

func NewDebateCompleted(debateID string, totalTurns int) DebateCompleted {
	return DebateCompleted{envelope: stamped(EventDebateCompleted, debateID), TotalTurns: totalTurns}
}

// ConsensusStarted signals the beginning of the one-shot summary pass.
type ConsensusStarted struct {
	envelope
}

func (ConsensusStarted) Type() EventType { return EventConsensusStarted }

func NewConsensusStarted(debateID string) ConsensusStarted {
	return ConsensusStarted{envelope: stamped(EventConsensusStarted, debateID)}
}

// ConsensusToken carries one streamed fragment of the summary.
type ConsensusToken struct {
	envelope
	Token string `json:"token"`
}

func (ConsensusToken) Type() EventType { return EventConsensusToken }

func NewConsensusToken(debateID, token string) ConsensusToken {
	return ConsensusToken{envelope: unstamped(EventConsensusToken, debateID), Token: token}
}

// ConsensusGenerated carries the full persisted summary text.
type ConsensusGenerated struct {
	envelope
	Summary string `json:"summary"`
}

func (ConsensusGenerated) Type() EventType { return EventConsensusGenerated }

func NewConsensusGenerated(debateID, summary string) ConsensusGenerated {
	return ConsensusGenerated{envelope: stamped(EventConsensusGenerated, debateID), Summary: summary}
}

// PauseAck acknowledges a pause command to the requesting observer only.
type PauseAck struct {
	envelope
}

func (PauseAck) Type() EventType { return EventPauseAck }

func NewPauseAck(debateID string) PauseAck {
	return PauseAck{envelope: stamped(EventPauseAck, debateID)}
}

// ErrorEvent reports a failure to observers. Cancellation never produces one.
type ErrorEvent struct {
	envelope
	Error string `json:"error"`
}

func (ErrorEvent) Type() EventType { return EventError }

func NewErrorEvent(debateID, message string) ErrorEvent {
	return ErrorEvent{envelope: stamped(EventError, debateID), Error: message}
}

// Pong answers a ping command.
type Pong struct {
	envelope
}

func (Pong) Type() EventType { return EventPong }

func NewPong(debateID string) Pong {
	return Pong{envelope: stamped(EventPong, debateID)}
}
