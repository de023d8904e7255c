package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gunturawaludins/mkbd-new/internal/pipeline"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type mockConn struct {
	mu      sync.Mutex
	written [][]byte
	closed  bool
	reads   chan error
}

func newMockConn() *mockConn { return &mockConn{reads: make(chan error)} }

func (m *mockConn) WriteMessage(t int, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return errors.New("closed")
	}
	if t == websocket.TextMessage {
		m.written = append(m.written, data)
	}
	return nil
}

func (m *mockConn) ReadMessage() (int, []byte, error) {
	err, ok := <-m.reads
	if !ok {
		return 0, nil, io.EOF
	}
	return websocket.TextMessage, []byte(`{"type":"heartbeat"}`), err
}

func (m *mockConn) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *mockConn) SetReadDeadline(time.Time) error   { return nil }
func (m *mockConn) SetWriteDeadline(time.Time) error  { return nil }
func (m *mockConn) SetReadLimit(int64)                {}
func (m *mockConn) SetPongHandler(func(string) error) {}

func (m *mockConn) messages() []Envelope {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Envelope, 0, len(m.written))
	for _, w := range m.written {
		var e Envelope
		if json.Unmarshal(w, &e) == nil {
			out = append(out, e)
		}
	}
	return out
}

func TestHub_StartStopIdempotent(t *testing.T) {
	h := NewHub(quietLogger())
	h.Start()
	h.Start()
	h.Stop()
	h.Stop()
	assert.Equal(t, 0, h.ClientCount())
}

func TestHub_PublishReachesClient(t *testing.T) {
	h := NewHub(quietLogger())
	h.Start()
	defer h.Stop()

	conn := newMockConn()
	c := NewClient(context.Background(), h, conn, "127.0.0.1:1", Timing{}, quietLogger())
	go c.Serve()
	require.Eventually(t, func() bool { return h.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	h.Publish(pipeline.ProgressEvent{RunID: "run-1", Pass: 2, Sheet: "VD510", Message: "VD510 Calc Done. Result: 740,000", Level: pipeline.LevelInfo})

	require.Eventually(t, func() bool { return len(conn.messages()) == 2 }, time.Second, 5*time.Millisecond)
	msgs := conn.messages()
	assert.Equal(t, TypeConnection, msgs[0].Type)
	assert.Equal(t, TypeProgress, msgs[1].Type)

	data, ok := msgs[1].Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "run-1", data["runId"])
	assert.Equal(t, "VD510", data["sheet"])

	close(conn.reads)
	require.Eventually(t, func() bool { return h.ClientCount() == 0 }, time.Second, 5*time.Millisecond)
}

func TestHub_BroadcastWithoutClientsDoesNotBlock(t *testing.T) {
	h := NewHub(quietLogger())
	// not started: the queue fills and further messages are dropped
	for i := 0; i < broadcastQueue+10; i++ {
		h.Broadcast(TypeJob, i)
	}
	assert.EqualValues(t, 10, h.Stats()["messages_dropped"])
}

func TestHub_StopClosesClients(t *testing.T) {
	h := NewHub(quietLogger())
	h.Start()

	conn := newMockConn()
	c := NewClient(context.Background(), h, conn, "", Timing{}, quietLogger())
	go c.Serve()
	require.Eventually(t, func() bool { return h.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	h.Stop()
	assert.Equal(t, 0, h.ClientCount())
	// the write pump sees the closed queue and closes the connection
	require.Eventually(t, func() bool {
		conn.mu.Lock()
		defer conn.mu.Unlock()
		return conn.closed
	}, time.Second, 5*time.Millisecond)
	close(conn.reads)
}
