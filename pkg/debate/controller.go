package debate

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openagora/agora/internal/observability"
	"github.com/rs/zerolog"
)

var (
	// ErrDebateCompleted is returned for commands against a debate that
	// has already finished.
	ErrDebateCompleted = errors.New("debate is already completed")

	// ErrNoActiveRun is returned for a pause against a debate with no
	// running loop.
	ErrNoActiveRun = errors.New("debate is not currently running")

	// ErrEmptyMessage rejects a human message with no content.
	ErrEmptyMessage = errors.New("message content must not be empty")
)

// Controller is the command surface between the gateway and the debate
// core: it owns run lifecycle (start, pause, disconnect release) and
// human message handling, leaving the turn loop itself to the Runner.
type Controller struct {
	registry *Registry
	runner   *Runner
	store    Store
	hub      Broadcaster
	logger   zerolog.Logger
}

// ControllerConfig holds controller dependencies.
type ControllerConfig struct {
	Registry *Registry
	Runner   *Runner
	Store    Store
	Hub      Broadcaster
	Logger   zerolog.Logger
}

// NewController creates a controller.
func NewController(cfg ControllerConfig) *Controller {
	return &Controller{
		registry: cfg.Registry,
		runner:   cfg.Runner,
		store:    cfg.Store,
		hub:      cfg.Hub,
		logger:   cfg.Logger.With().Str("component", "controller").Logger(),
	}
}

// Start launches the background run for a debate. Pending and paused
// debates start normally; a debate left in active status by an earlier
// failure may be restarted. Completed debates and debates that already
// hold a running handle are rejected.
func (c *Controller) Start(ctx context.Context, debateID string) error {
	d, err := c.store.GetDebate(ctx, debateID)
	if err != nil {
		return err
	}
	if d.Status == StatusCompleted {
		return ErrDebateCompleted
	}

	h, err := c.registry.Register(debateID)
	if err != nil {
		return err
	}

	if err := c.store.SetStatus(ctx, debateID, StatusActive); err != nil {
		h.Cancel()
		close(h.done)
		c.registry.Remove(debateID, h)
		return fmt.Errorf("failed to activate debate: %w", err)
	}
	d.Status = StatusActive

	observability.RecordDebateStarted()
	observability.SetActiveDebates(c.registry.Len())
	c.logger.Info().Str("debate_id", debateID).Msg("Debate run launched")

	go func() {
		defer func() {
			c.registry.Remove(debateID, h)
			close(h.done)
			observability.SetActiveDebates(c.registry.Len())
		}()
		c.runner.Run(h, d)
	}()

	return nil
}

// Pause requests a cooperative stop at the next inter-turn checkpoint.
// The persisted status is flipped immediately so REST readers see the
// intent; the run loop confirms it when it actually stops.
func (c *Controller) Pause(ctx context.Context, debateID string) error {
	h, ok := c.registry.Get(debateID)
	if !ok {
		return ErrNoActiveRun
	}
	h.Cancel()

	if err := c.store.SetStatus(ctx, debateID, StatusPaused); err != nil {
		c.logger.Warn().Err(err).Str("debate_id", debateID).Msg("Failed to flip status on pause request")
	}
	c.logger.Info().Str("debate_id", debateID).Msg("Pause requested")
	return nil
}

// Inject persists a human message, broadcasts it, and makes it visible
// to the running loop. A human message sent to a paused debate resumes
// the run automatically.
func (c *Controller) Inject(ctx context.Context, debateID, username, content, msgType string) (*Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyMessage
	}
	if username == "" {
		username = "Human"
	}
	if msgType == "" {
		msgType = DefaultMessageType
	}
	if !AllowedMessageTypes[msgType] {
		return nil, fmt.Errorf("invalid message type: %s", msgType)
	}

	d, err := c.store.GetDebate(ctx, debateID)
	if err != nil {
		return nil, err
	}
	if d.Status == StatusCompleted {
		return nil, ErrDebateCompleted
	}

	msg, err := c.store.AppendTurn(ctx, debateID, Message{
		AgentName: username,
		Content:   content,
		Type:      msgType,
	})
	if err != nil {
		return nil, err
	}

	observability.RecordHumanMessage()
	c.hub.Broadcast(debateID, NewHumanSpoke(debateID, msg))

	if h, ok := c.registry.Get(debateID); ok {
		if !h.Inject(Injected{
			AgentName:  msg.AgentName,
			Content:    msg.Content,
			Type:       msg.Type,
			TurnNumber: msg.TurnNumber,
		}) {
			c.logger.Warn().Str("debate_id", debateID).Msg("Human message persisted but not queued; run is stopping")
		}
		return msg, nil
	}

	// No running loop: the message is already persisted, so a resumed
	// run picks it up from history.
	if d.Status == StatusPaused {
		c.logger.Info().Str("debate_id", debateID).Msg("Human message resumes paused debate")
		if err := c.Start(ctx, debateID); err != nil && !errors.Is(err, ErrAlreadyRunning) {
			return msg, err
		}
	}
	return msg, nil
}

// ReleaseOnDisconnect is invoked by the gateway when a debate's last
// observer disconnects. A run without an audience pauses rather than
// burning provider budget into the void.
func (c *Controller) ReleaseOnDisconnect(debateID string) {
	h, ok := c.registry.Get(debateID)
	if !ok {
		return
	}
	c.logger.Info().Str("debate_id", debateID).Msg("Last observer disconnected; pausing run")
	h.Cancel()
}
