package observability

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsRegistrationIsIdempotent(t *testing.T) {
	EnsureRegistered()
	assert.NotPanics(t, EnsureRegistered)
}

func TestRecordersAndHandler(t *testing.T) {
	SetActiveDebates(2)
	SetConnectedObservers(3)
	RecordDebateStarted()
	RecordDebateTurn("anthropic")
	RecordDebateError()
	RecordHumanMessage()
	RecordTokenStreamed()
	RecordGeneration("anthropic", 120*time.Millisecond, true)
	RecordGeneration("openai", 80*time.Millisecond, false)
	RecordPurgedDebates(5)

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	MetricsHandler().ServeHTTP(rec, req)

	resp := rec.Result()
	defer resp.Body.Close()
	require.Equal(t, 200, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	text := string(body)

	for _, metric := range []string{
		"active_debates",
		"connected_observers",
		"debates_started_total",
		"debate_turns_total",
		"debate_errors_total",
		"human_messages_total",
		"tokens_streamed_total",
		"generation_duration_seconds",
		"generation_total",
		"store_purged_debates_total",
	} {
		assert.Contains(t, text, metric)
	}
}
