package debate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/openagora/agora/internal/observability"
	"github.com/openagora/agora/pkg/llm"
	"github.com/rs/zerolog"
)

const (
	// turnMaxTokens bounds one agent utterance.
	turnMaxTokens = 1024

	// consensusTemperature keeps the summary pass conservative regardless
	// of how the debating agents are tuned.
	consensusTemperature = 0.3
)

// Runner executes the turn loop for one debate. It owns the debate's
// in-memory history for the duration of the run; every persisted turn
// flows through the store before any observer hears about it.
type Runner struct {
	store    Store
	hub      Broadcaster
	opener   llm.Opener
	resolver llm.Resolver
	logger   zerolog.Logger
}

// RunnerConfig holds runner dependencies.
type RunnerConfig struct {
	Store    Store
	Hub      Broadcaster
	Opener   llm.Opener
	Resolver llm.Resolver
	Logger   zerolog.Logger
}

// NewRunner creates a runner.
func NewRunner(cfg RunnerConfig) *Runner {
	return &Runner{
		store:    cfg.Store,
		hub:      cfg.Hub,
		opener:   cfg.Opener,
		resolver: cfg.Resolver,
		logger:   cfg.Logger.With().Str("component", "runner").Logger(),
	}
}

// Run drives the debate until it pauses, completes, or fails. It is
// called in its own goroutine; the handle's done channel is closed and
// the registry entry released by the controller wrapper around it.
func (r *Runner) Run(h *Handle, d *Debate) {
	ctx := h.Context()
	log := r.logger.With().Str("debate_id", d.ID).Logger()

	agents := d.ActiveAgents()
	if len(agents) == 0 {
		log.Warn().Msg("Debate has no active agents")
		r.hub.Broadcast(d.ID, NewErrorEvent(d.ID, ErrNoActiveAgents.Error()))
		return
	}

	// Credential preflight: every provider the run will touch must
	// resolve before the first thinking event goes out. A debate that
	// cannot finish should not start.
	if err := r.preflight(agents); err != nil {
		log.Warn().Err(err).Msg("Credential preflight failed")
		r.hub.Broadcast(d.ID, NewErrorEvent(d.ID, err.Error()))
		return
	}

	history, err := r.store.Messages(ctx, d.ID, 0, 0)
	if err != nil {
		log.Error().Err(err).Msg("Failed to load debate history")
		r.hub.Broadcast(d.ID, NewErrorEvent(d.ID, "failed to load debate history"))
		return
	}

	// Only automated turns count toward the maximum; human messages get
	// turn numbers but never consume a slot.
	turnCount := 0
	for _, m := range history {
		if !m.Human() {
			turnCount++
		}
	}

	log.Info().Int("agents", len(agents)).Int("turns_taken", turnCount).Msg("Debate run started")

	for {
		// Inter-turn checkpoint: cancellation first, then pending
		// human messages become visible before the next speaker
		// prepares a response.
		select {
		case <-ctx.Done():
			r.finalizePause(d, turnCount, log)
			return
		default:
		}
		if h.Stopping() {
			r.finalizePause(d, turnCount, log)
			return
		}

		for _, inj := range h.drainInjected() {
			history = append(history, Message{
				DebateID:   d.ID,
				AgentName:  inj.AgentName,
				Content:    inj.Content,
				Type:       inj.Type,
				TurnNumber: inj.TurnNumber,
			})
			r.hub.Broadcast(d.ID, NewHumanInjected(d.ID, inj))
		}

		if turnCount >= d.MaxTurns {
			break
		}

		idx, err := NextSpeaker(agents, history)
		if err != nil {
			r.hub.Broadcast(d.ID, NewErrorEvent(d.ID, err.Error()))
			return
		}
		speaker := agents[idx]

		r.hub.Broadcast(d.ID, NewAgentThinking(d.ID, speaker))

		content, err := r.generateTurn(ctx, d, speaker, history)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				// A turn interrupted mid-stream is discarded; the
				// pause lands on the last persisted turn.
				r.finalizePause(d, turnCount, log)
				return
			}
			log.Error().Err(err).Str("agent", speaker.Name).Msg("Turn generation failed")
			observability.RecordDebateError()
			r.hub.Broadcast(d.ID, NewErrorEvent(d.ID, "failed to generate agent response"))
			return
		}

		// A fully generated turn persists even if a pause request
		// arrived while it was streaming; the pause lands after it.
		msg, err := r.store.AppendTurn(context.WithoutCancel(ctx), d.ID, Message{
			AgentID:   speaker.ID,
			AgentName: speaker.Name,
			Content:   content,
			Type:      DefaultMessageType,
			ModelUsed: speaker.Model,
		})
		if err != nil {
			log.Error().Err(err).Str("agent", speaker.Name).Msg("Failed to persist turn")
			observability.RecordDebateError()
			r.hub.Broadcast(d.ID, NewErrorEvent(d.ID, "failed to persist turn"))
			return
		}

		history = append(history, *msg)
		turnCount++
		observability.RecordDebateTurn(speaker.Provider)

		r.hub.Broadcast(d.ID, NewAgentSpoke(d.ID, speaker, msg))
		log.Debug().Str("agent", speaker.Name).Int("turn", msg.TurnNumber).Msg("Turn persisted")
	}

	if err := r.store.SetStatus(ctx, d.ID, StatusCompleted); err != nil {
		log.Error().Err(err).Msg("Failed to mark debate completed")
	}
	r.hub.Broadcast(d.ID, NewDebateCompleted(d.ID, turnCount))
	log.Info().Int("total_turns", turnCount).Msg("Debate completed")

	r.generateConsensus(ctx, d, agents[0], history, log)
}

// preflight resolves a credential for every provider the run will use.
func (r *Runner) preflight(agents []Agent) error {
	seen := make(map[string]bool, len(agents))
	for _, a := range agents {
		if seen[a.Provider] {
			continue
		}
		seen[a.Provider] = true
		if _, err := r.resolver.Resolve(a.Provider); err != nil {
			return err
		}
	}
	return nil
}

// generateTurn streams one agent utterance, relaying fragments to
// observers, and returns the assembled content.
func (r *Runner) generateTurn(ctx context.Context, d *Debate, speaker Agent, history []Message) (string, error) {
	apiKey, err := r.resolver.Resolve(speaker.Provider)
	if err != nil {
		return "", err
	}
	provider, err := r.opener.Open(speaker.Provider, apiKey)
	if err != nil {
		return "", err
	}

	entries := make([]llm.HistoryEntry, 0, len(history))
	for _, m := range history {
		entries = append(entries, llm.HistoryEntry{
			Speaker: m.AgentName,
			Content: m.Content,
			Self:    !m.Human() && m.AgentID == speaker.ID,
		})
	}

	req := llm.Request{
		Model:       speaker.Model,
		Temperature: speaker.Temperature,
		MaxTokens:   turnMaxTokens,
		System:      llm.SystemPrompt(speaker.Name, speaker.Role, d.Topic, d.Description),
		Messages:    llm.TurnMessages(d.Topic, entries),
	}

	started := time.Now()
	fragments, errs := provider.Stream(ctx, req)
	var sb strings.Builder
	for fragment := range fragments {
		sb.WriteString(fragment)
		observability.RecordTokenStreamed()
		r.hub.Broadcast(d.ID, NewAgentToken(d.ID, speaker, fragment))
	}
	if err := <-errs; err != nil {
		observability.RecordGeneration(speaker.Provider, time.Since(started), false)
		return "", err
	}
	observability.RecordGeneration(speaker.Provider, time.Since(started), true)
	if sb.Len() == 0 {
		return "", fmt.Errorf("provider %s returned an empty response", speaker.Provider)
	}
	return sb.String(), nil
}

// generateConsensus runs the one-shot summary pass after completion. It
// uses the first agent's provider with a fixed low temperature; failures
// here are reported but never undo the completed status.
func (r *Runner) generateConsensus(ctx context.Context, d *Debate, judge Agent, history []Message, log zerolog.Logger) {
	r.hub.Broadcast(d.ID, NewConsensusStarted(d.ID))

	apiKey, err := r.resolver.Resolve(judge.Provider)
	if err != nil {
		r.hub.Broadcast(d.ID, NewErrorEvent(d.ID, err.Error()))
		return
	}
	provider, err := r.opener.Open(judge.Provider, apiKey)
	if err != nil {
		r.hub.Broadcast(d.ID, NewErrorEvent(d.ID, err.Error()))
		return
	}

	lines := make([]string, 0, len(history))
	for _, m := range history {
		lines = append(lines, llm.TranscriptLine(m.AgentName, m.TurnNumber, m.Content))
	}

	req := llm.Request{
		Model:       judge.Model,
		Temperature: consensusTemperature,
		MaxTokens:   turnMaxTokens,
		Messages: []llm.Message{
			{Role: "user", Content: llm.ConsensusPrompt(d.Topic, lines)},
		},
	}

	fragments, errs := provider.Stream(ctx, req)
	var sb strings.Builder
	for fragment := range fragments {
		sb.WriteString(fragment)
		observability.RecordTokenStreamed()
		r.hub.Broadcast(d.ID, NewConsensusToken(d.ID, fragment))
	}
	if err := <-errs; err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		log.Error().Err(err).Msg("Consensus generation failed")
		observability.RecordDebateError()
		r.hub.Broadcast(d.ID, NewErrorEvent(d.ID, "failed to generate consensus summary"))
		return
	}

	summary := sb.String()
	if err := r.store.SetSummary(ctx, d.ID, summary); err != nil {
		log.Error().Err(err).Msg("Failed to persist consensus summary")
	}
	r.hub.Broadcast(d.ID, NewConsensusGenerated(d.ID, summary))
	log.Info().Msg("Consensus summary generated")
}

// finalizePause is the single place a run transitions to paused. The
// controller may have flipped the persisted status already as an
// immediate hint; this write is the authoritative one.
func (r *Runner) finalizePause(d *Debate, turnCount int, log zerolog.Logger) {
	// The run context is cancelled by now; the status write uses a
	// fresh one.
	if err := r.store.SetStatus(context.Background(), d.ID, StatusPaused); err != nil {
		log.Error().Err(err).Msg("Failed to mark debate paused")
	}
	r.hub.Broadcast(d.ID, NewDebatePaused(d.ID, turnCount))
	log.Info().Int("total_turns", turnCount).Msg("Debate paused")
}
