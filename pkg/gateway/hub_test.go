package gateway

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/openagora/agora/pkg/debate"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func websocketConnPair(t *testing.T) (*websocket.Conn, *websocket.Conn, func()) {
	t.Helper()

	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	serverConnCh := make(chan *websocket.Conn, 1)
	errCh := make(chan error, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			errCh <- err
			return
		}
		serverConnCh <- conn
	}))

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	clientConn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)

	var serverConn *websocket.Conn
	select {
	case serverConn = <-serverConnCh:
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for server websocket connection")
	}

	cleanup := func() {
		_ = clientConn.Close()
		_ = serverConn.Close()
		srv.Close()
	}

	return serverConn, clientConn, cleanup
}

func hubObserver(t *testing.T, debateID, clientID string) (*Client, *websocket.Conn, func()) {
	t.Helper()
	serverConn, clientConn, cleanup := websocketConnPair(t)
	client := &Client{
		ID:          clientID,
		DebateID:    debateID,
		ConnectedAt: time.Now(),
		conn:        serverConn,
	}
	return client, clientConn, cleanup
}

func readEvent(t *testing.T, conn *websocket.Conn) map[string]interface{} {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var payload map[string]interface{}
	require.NoError(t, conn.ReadJSON(&payload))
	return payload
}

func TestHub_BroadcastReachesOnlyDebateObservers(t *testing.T) {
	hub := NewHub(zerolog.Nop())

	watcher, watcherConn, cleanupWatcher := hubObserver(t, "debate-1", "client-1")
	defer cleanupWatcher()
	bystander, bystanderConn, cleanupBystander := hubObserver(t, "debate-2", "client-2")
	defer cleanupBystander()

	hub.Join(watcher)
	hub.Join(bystander)
	assert.Equal(t, 1, hub.ObserverCount("debate-1"))
	assert.Equal(t, 1, hub.ObserverCount("debate-2"))

	hub.Broadcast("debate-1", debate.NewAgentThinking("debate-1", debate.Agent{Name: "Skeptic"}))

	got := readEvent(t, watcherConn)
	assert.Equal(t, "agent_thinking", got["type"])
	assert.Equal(t, "debate-1", got["debate_id"])

	// The other debate's observer sees nothing.
	require.NoError(t, bystanderConn.SetReadDeadline(time.Now().Add(150*time.Millisecond)))
	var stray map[string]interface{}
	assert.Error(t, bystanderConn.ReadJSON(&stray))
}

func TestHub_BroadcastToEmptyDebateIsNoOp(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	hub.Broadcast("debate-1", debate.NewAgentThinking("debate-1", debate.Agent{Name: "Skeptic"}))
	assert.Equal(t, 0, hub.ObserverCount("debate-1"))
}

func TestHub_BroadcastPrunesDeadObservers(t *testing.T) {
	hub := NewHub(zerolog.Nop())

	dead, _, cleanupDead := hubObserver(t, "debate-1", "client-dead")
	defer cleanupDead()
	alive, aliveConn, cleanupAlive := hubObserver(t, "debate-1", "client-alive")
	defer cleanupAlive()

	hub.Join(dead)
	hub.Join(alive)
	require.NoError(t, dead.Close())

	hub.Broadcast("debate-1", debate.NewAgentThinking("debate-1", debate.Agent{Name: "Skeptic"}))

	// The healthy observer still receives the event and the dead one is
	// dropped from the debate.
	got := readEvent(t, aliveConn)
	assert.Equal(t, "agent_thinking", got["type"])
	assert.Equal(t, 1, hub.ObserverCount("debate-1"))
}

func TestHub_LeaveFiresOnEmptyForLastObserver(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	emptied := make(chan string, 2)
	hub.OnEmpty(func(debateID string) { emptied <- debateID })

	first, _, cleanupFirst := hubObserver(t, "debate-1", "client-1")
	defer cleanupFirst()
	second, _, cleanupSecond := hubObserver(t, "debate-1", "client-2")
	defer cleanupSecond()

	hub.Join(first)
	hub.Join(second)

	hub.Leave(first)
	select {
	case id := <-emptied:
		t.Fatalf("onEmpty fired with an observer remaining: %s", id)
	default:
	}

	hub.Leave(second)
	select {
	case id := <-emptied:
		assert.Equal(t, "debate-1", id)
	case <-time.After(time.Second):
		t.Fatal("onEmpty did not fire for the last observer")
	}

	// Leaving twice is harmless and does not re-fire the callback.
	hub.Leave(second)
	select {
	case <-emptied:
		t.Fatal("onEmpty fired for an already removed observer")
	default:
	}
}

func TestHub_CloseAllDisconnectsEveryObserver(t *testing.T) {
	hub := NewHub(zerolog.Nop())

	first, firstConn, cleanupFirst := hubObserver(t, "debate-1", "client-1")
	defer cleanupFirst()
	second, secondConn, cleanupSecond := hubObserver(t, "debate-2", "client-2")
	defer cleanupSecond()

	hub.Join(first)
	hub.Join(second)

	hub.CloseAll()

	assert.Equal(t, 0, hub.ObserverCount("debate-1"))
	assert.Equal(t, 0, hub.ObserverCount("debate-2"))

	for _, conn := range []*websocket.Conn{firstConn, secondConn} {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		_, _, err := conn.ReadMessage()
		assert.Error(t, err)
	}
}
