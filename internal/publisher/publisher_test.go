package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vectorquant/internal/domain"
)

// fakeWriter implements the same methods as *kafka.Writer
type fakeWriter struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	err    error
	closed bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, m ...kafka.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, m...)
	return f.err
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func TestPublisher_ObserveTick(t *testing.T) {
	w := &fakeWriter{}
	p := New(w, Topics{}, nil)

	st := domain.Initial()
	st.PnL = 12.34567
	taken := time.Unix(1700000000, 0)
	p.ObserveTick(domain.Snapshot{State: st, Taken: taken})

	require.Len(t, w.msgs, 1)
	msg := w.msgs[0]
	assert.Equal(t, DefaultSnapshotTopic, msg.Topic)
	assert.Equal(t, taken, msg.Time)

	var view domain.MetricsView
	require.NoError(t, json.Unmarshal(msg.Value, &view))
	assert.Equal(t, 12.35, view.PnL)
	assert.Equal(t, domain.ModeShadow, view.Mode)
}

func TestPublisher_ObserveAlerts(t *testing.T) {
	w := &fakeWriter{}
	p := New(w, Topics{Alerts: "custom.alerts"}, nil)

	taken := time.Unix(1700000000, 0)
	alerts := []domain.Alert{
		{Kind: domain.AlertKindError, Message: "High error rate detected: 3.00%", Severity: domain.SeverityHigh, Timestamp: taken},
		{Kind: domain.AlertKindSystem, Message: "High CPU usage: 85.0%", Severity: domain.SeverityMedium, Timestamp: taken},
	}
	p.ObserveAlerts(domain.Snapshot{}, alerts)
	p.ObserveAlerts(domain.Snapshot{}, nil)

	require.Len(t, w.msgs, 2)
	assert.Equal(t, "custom.alerts", w.msgs[0].Topic)
	assert.Equal(t, []byte("error"), w.msgs[0].Key)
	assert.Equal(t, []byte("system"), w.msgs[1].Key)

	var view domain.AlertView
	require.NoError(t, json.Unmarshal(w.msgs[1].Value, &view))
	assert.Equal(t, "High CPU usage: 85.0%", view.Message)
	assert.Equal(t, domain.SeverityMedium, view.Severity)
}

func TestPublisher_WriteErrorIsSwallowed(t *testing.T) {
	w := &fakeWriter{err: errors.New("broker down")}
	p := New(w, Topics{}, nil)

	assert.NotPanics(t, func() {
		p.ObserveTick(domain.Snapshot{State: domain.Initial(), Taken: time.Now()})
	})
	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestNewKafkaWriter(t *testing.T) {
	w := NewKafkaWriter([]string{"localhost:9092"})
	assert.True(t, w.Async)
	assert.Empty(t, w.Topic)
}
