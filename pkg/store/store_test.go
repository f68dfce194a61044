package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/openagora/agora/pkg/debate"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(Config{
		Path:   filepath.Join(t.TempDir(), "agora.db"),
		Logger: zerolog.Nop(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleDebate() *debate.Debate {
	return &debate.Debate{
		Topic:       "Should remote work be the default?",
		Description: "a panel on work culture",
		MaxTurns:    6,
		Agents: []debate.Agent{
			{Name: "Skeptic", Role: "skeptic", Provider: "anthropic", Model: "claude-sonnet-4-5"},
			{Name: "Optimist", Role: "optimist", Provider: "openai", Model: "gpt-4o"},
		},
	}
}

func TestStore_CreateAndGetDebate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	created, err := s.CreateDebate(ctx, sampleDebate())
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)
	assert.Equal(t, debate.StatusPending, created.Status)
	assert.Equal(t, 0, created.CurrentTurn)

	got, err := s.GetDebate(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.Topic, got.Topic)
	require.Len(t, got.Agents, 2)

	// Agents come back in turn order with synthesized prompts.
	assert.Equal(t, 1, got.Agents[0].OrderIndex)
	assert.Equal(t, 2, got.Agents[1].OrderIndex)
	assert.Equal(t, "You are Skeptic, acting as a skeptic in this debate.", got.Agents[0].SystemPrompt)
	assert.True(t, got.Agents[0].Active)
	assert.InDelta(t, 0.7, got.Agents[0].Temperature, 1e-9)
}

func TestStore_CreateDebateRejectsDuplicateAgentNames(t *testing.T) {
	s := newTestStore(t)

	d := sampleDebate()
	d.Agents[1].Name = " skeptic "
	_, err := s.CreateDebate(context.Background(), d)
	assert.ErrorContains(t, err, "unique")
}

func TestStore_GetDebateNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetDebate(context.Background(), "nope")
	assert.ErrorIs(t, err, debate.ErrNotFound)
}

func TestStore_AppendTurnAssignsSequentialNumbers(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	created, err := s.CreateDebate(ctx, sampleDebate())
	require.NoError(t, err)

	first, err := s.AppendTurn(ctx, created.ID, debate.Message{
		AgentID:   created.Agents[0].ID,
		AgentName: "Skeptic",
		Content:   "opening",
		ModelUsed: "claude-sonnet-4-5",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, first.TurnNumber)
	assert.Equal(t, "argument", first.Type)

	// A human message gets the next number too.
	second, err := s.AppendTurn(ctx, created.ID, debate.Message{
		AgentName: "Alice",
		Content:   "a question",
		Type:      "question",
	})
	require.NoError(t, err)
	assert.Equal(t, 2, second.TurnNumber)
	assert.True(t, second.Human())

	got, err := s.GetDebate(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.CurrentTurn)

	msgs, err := s.Messages(ctx, created.ID, 0, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "opening", msgs[0].Content)
	assert.Equal(t, "a question", msgs[1].Content)
}

func TestStore_AppendTurnUnknownDebate(t *testing.T) {
	s := newTestStore(t)

	_, err := s.AppendTurn(context.Background(), "nope", debate.Message{AgentName: "x", Content: "y"})
	assert.ErrorIs(t, err, debate.ErrNotFound)
}

func TestStore_SetStatusRecordsCompletionTime(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	created, err := s.CreateDebate(ctx, sampleDebate())
	require.NoError(t, err)

	require.NoError(t, s.SetStatus(ctx, created.ID, debate.StatusActive))
	got, err := s.GetDebate(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, debate.StatusActive, got.Status)
	assert.Nil(t, got.CompletedAt)

	require.NoError(t, s.SetStatus(ctx, created.ID, debate.StatusCompleted))
	got, err = s.GetDebate(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, debate.StatusCompleted, got.Status)
	require.NotNil(t, got.CompletedAt)

	assert.ErrorIs(t, s.SetStatus(ctx, "nope", debate.StatusActive), debate.ErrNotFound)
}

func TestStore_SetSummary(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	created, err := s.CreateDebate(ctx, sampleDebate())
	require.NoError(t, err)

	require.NoError(t, s.SetSummary(ctx, created.ID, "they agreed to disagree"))
	got, err := s.GetDebate(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "they agreed to disagree", got.Summary)
}

func TestStore_ListAndDeleteDebates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first, err := s.CreateDebate(ctx, sampleDebate())
	require.NoError(t, err)
	second := sampleDebate()
	second.Topic = "Another topic"
	_, err = s.CreateDebate(ctx, second)
	require.NoError(t, err)

	debates, err := s.ListDebates(ctx, 0, 10)
	require.NoError(t, err)
	assert.Len(t, debates, 2)

	require.NoError(t, s.DeleteDebate(ctx, first.ID))
	assert.ErrorIs(t, s.DeleteDebate(ctx, first.ID), debate.ErrNotFound)

	// Cascade removes the debate's messages and agents.
	_, err = s.GetDebate(ctx, first.ID)
	assert.ErrorIs(t, err, debate.ErrNotFound)
	msgs, err := s.Messages(ctx, first.ID, 0, 0)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestStore_PurgeCompletedBefore(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	old, err := s.CreateDebate(ctx, sampleDebate())
	require.NoError(t, err)
	require.NoError(t, s.SetStatus(ctx, old.ID, debate.StatusCompleted))

	fresh := sampleDebate()
	fresh.Topic = "still warm"
	kept, err := s.CreateDebate(ctx, fresh)
	require.NoError(t, err)

	// Cutoff in the future captures the completed debate; the pending
	// one is untouchable regardless of age.
	purged, err := s.PurgeCompletedBefore(ctx, time.Now().UTC().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)

	_, err = s.GetDebate(ctx, old.ID)
	assert.ErrorIs(t, err, debate.ErrNotFound)
	_, err = s.GetDebate(ctx, kept.ID)
	assert.NoError(t, err)
}
