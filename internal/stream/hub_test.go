package stream

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vectorquant/internal/domain"
)

func dial(t *testing.T, h *Hub) *websocket.Conn {
	t.Helper()

	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.Eventually(t, func() bool { return h.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)
	return conn
}

func readEnvelope(t *testing.T, conn *websocket.Conn) Envelope {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var env Envelope
	require.NoError(t, json.Unmarshal(data, &env))
	return env
}

func TestHub_BroadcastsTick(t *testing.T) {
	h := NewHub(nil)
	conn := dial(t, h)

	st := domain.Initial()
	st.PnL = 12.345
	h.ObserveTick(domain.Snapshot{State: st, Taken: time.Unix(1700000000, 0)})

	env := readEnvelope(t, conn)
	assert.Equal(t, TypeMetrics, env.Type)

	var view domain.MetricsView
	require.NoError(t, json.Unmarshal(env.Data, &view))
	assert.Equal(t, 12.35, view.PnL)
	assert.Equal(t, domain.ModeShadow, view.Mode)
	assert.Equal(t, 1700000000.0, view.Timestamp)
}

func TestHub_ReplaysLastFrameOnConnect(t *testing.T) {
	h := NewHub(nil)

	st := domain.Initial()
	st.BTCPrice = 70000
	h.ObserveTick(domain.Snapshot{State: st, Taken: time.Unix(1700000000, 0)})

	conn := dial(t, h)
	env := readEnvelope(t, conn)
	require.Equal(t, TypeMetrics, env.Type)

	var view domain.MetricsView
	require.NoError(t, json.Unmarshal(env.Data, &view))
	assert.Equal(t, 70000.0, view.BTCPrice)
}

func TestHub_DropsStaleTicks(t *testing.T) {
	h := NewHub(nil)
	c := &client{send: make(chan []byte, 4)}
	h.clients[c] = struct{}{}

	newer := domain.Initial()
	newer.BTCPrice = 71000
	older := domain.Initial()
	older.BTCPrice = 69000

	// Tick 2 reaches the hub before tick 1.
	h.ObserveTick(domain.Snapshot{State: newer, Taken: time.Unix(1700000001, 0), Seq: 2})
	h.ObserveTick(domain.Snapshot{State: older, Taken: time.Unix(1700000000, 0), Seq: 1})
	require.Len(t, c.send, 1)

	delete(h.clients, c)
	conn := dial(t, h)
	env := readEnvelope(t, conn)

	var view domain.MetricsView
	require.NoError(t, json.Unmarshal(env.Data, &view))
	assert.Equal(t, 71000.0, view.BTCPrice)
}

func TestHub_BroadcastsAlerts(t *testing.T) {
	h := NewHub(nil)
	conn := dial(t, h)

	// Empty evaluations are not forwarded.
	h.ObserveAlerts(domain.Snapshot{}, nil)

	alerts := []domain.Alert{{
		Kind:      domain.AlertKindPerformance,
		Message:   "High latency detected: 31.0ms",
		Severity:  domain.SeverityMedium,
		Timestamp: time.Unix(1700000000, 0),
	}}
	h.ObserveAlerts(domain.Snapshot{}, alerts)

	env := readEnvelope(t, conn)
	assert.Equal(t, TypeAlerts, env.Type)

	var views []domain.AlertView
	require.NoError(t, json.Unmarshal(env.Data, &views))
	require.Len(t, views, 1)
	assert.Equal(t, domain.AlertKindPerformance, views[0].Type)
}

func TestHub_SlowClientDropsFrames(t *testing.T) {
	h := NewHub(nil)
	c := &client{send: make(chan []byte, 1)}
	h.clients[c] = struct{}{}

	snap := domain.Snapshot{State: domain.Initial(), Taken: time.Unix(1700000000, 0)}
	h.ObserveTick(snap)
	h.ObserveTick(snap) // buffer full, dropped without blocking

	assert.Len(t, c.send, 1)
}

func TestHub_Close(t *testing.T) {
	h := NewHub(nil)
	conn := dial(t, h)

	h.Close()
	assert.Equal(t, 0, h.Clients())

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
}
