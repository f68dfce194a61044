package debate

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func marshalToMap(t *testing.T, e Event) map[string]interface{} {
	t.Helper()
	data, err := json.Marshal(e)
	require.NoError(t, err)
	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &m))
	return m
}

func TestEvents_EnvelopeCarriesTypeAndTimestamp(t *testing.T) {
	agent := Agent{ID: "a1", Name: "Skeptic", Role: "skeptic"}
	m := marshalToMap(t, NewAgentThinking("d1", agent))

	assert.Equal(t, "agent_thinking", m["type"])
	assert.Equal(t, "d1", m["debate_id"])
	assert.Equal(t, "Skeptic", m["agent_name"])
	assert.Equal(t, "skeptic", m["agent_role"])

	ts, ok := m["timestamp"].(string)
	require.True(t, ok, "timestamp should be present")
	_, err := time.Parse(time.RFC3339, ts)
	assert.NoError(t, err)
}

func TestEvents_TokenEventsOmitTimestamp(t *testing.T) {
	agent := Agent{ID: "a1", Name: "Skeptic"}

	m := marshalToMap(t, NewAgentToken("d1", agent, "frag"))
	assert.Equal(t, "agent_token", m["type"])
	assert.Equal(t, "frag", m["token"])
	_, present := m["timestamp"]
	assert.False(t, present)

	m = marshalToMap(t, NewConsensusToken("d1", "frag"))
	assert.Equal(t, "consensus_token", m["type"])
	_, present = m["timestamp"]
	assert.False(t, present)
}

func TestEvents_AgentSpokeShape(t *testing.T) {
	agent := Agent{ID: "a1", Name: "Skeptic", Role: "skeptic"}
	msg := &Message{ID: "m1", Content: "a claim", Type: "argument", TurnNumber: 4}

	m := marshalToMap(t, NewAgentSpoke("d1", agent, msg))
	assert.Equal(t, "agent_spoke", m["type"])
	assert.Equal(t, "m1", m["message_id"])
	assert.Equal(t, "a claim", m["content"])
	assert.Equal(t, "argument", m["message_type"])
	assert.Equal(t, float64(4), m["turn_number"])
}

func TestEvents_TerminalEventsCarryTotals(t *testing.T) {
	m := marshalToMap(t, NewDebatePaused("d1", 7))
	assert.Equal(t, "debate_paused", m["type"])
	assert.Equal(t, float64(7), m["total_turns"])

	m = marshalToMap(t, NewDebateCompleted("d1", 20))
	assert.Equal(t, "debate_completed", m["type"])
	assert.Equal(t, float64(20), m["total_turns"])

	m = marshalToMap(t, NewConsensusGenerated("d1", "the gist"))
	assert.Equal(t, "consensus_generated", m["type"])
	assert.Equal(t, "the gist", m["summary"])
}

func TestEvents_TypeAccessorsMatchWireTags(t *testing.T) {
	cases := map[EventType]Event{
		EventConnected:     NewConnected("d1"),
		EventHumanSpoke:    NewHumanSpoke("d1", &Message{AgentName: "Alice"}),
		EventHumanInjected: NewHumanInjected("d1", Injected{AgentName: "Alice"}),
		EventPauseAck:      NewPauseAck("d1"),
		EventError:         NewErrorEvent("d1", "boom"),
		EventPong:          NewPong("d1"),
	}
	for want, event := range cases {
		assert.Equal(t, want, event.Type())
		m := marshalToMap(t, event)
		assert.Equal(t, string(want), m["type"])
	}
}
