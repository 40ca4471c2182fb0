package devicelink_test

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitalvault/vitalvault/internal/devicelink"
	"github.com/vitalvault/vitalvault/internal/events"
	"github.com/vitalvault/vitalvault/internal/models"
)

func testLogger() *events.Logger {
	var buf bytes.Buffer
	return events.NewTestLogger(events.DebugLevel, "json", &buf)
}

func TestListenerReceivesPushes(t *testing.T) {
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok-8842", r.Header.Get("Authorization"))

		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()

		msgs := []map[string]interface{}{
			{"op": "data-available", "day": "2026-04-12"},
			{"op": "device-status", "battery": 81},
			{"day": "2026-04-13"}, // no op, must be dropped
			{"op": "data-available", "day": "2026-04-13"},
		}
		for _, m := range msgs {
			require.NoError(t, conn.WriteJSON(m))
		}
	}))
	defer server.Close()

	// Long delay so the test sees exactly one connection.
	link := devicelink.NewListener(server.URL, "tok-8842", 5*time.Second, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runDone := make(chan error, 1)
	go func() { runDone <- link.Run(ctx) }()

	var pushes []devicelink.Push
	timeout := time.After(3 * time.Second)
	for len(pushes) < 3 {
		select {
		case p, ok := <-link.Pushes():
			require.True(t, ok, "push channel closed early")
			pushes = append(pushes, p)
		case <-timeout:
			t.Fatalf("timed out with %d pushes", len(pushes))
		}
	}

	assert.Equal(t, devicelink.PushDataAvailable, pushes[0].Op)
	assert.True(t, models.SameDay(pushes[0].Day, time.Date(2026, 4, 12, 0, 0, 0, 0, time.Local)))
	assert.NotEmpty(t, pushes[0].Raw)

	assert.Equal(t, devicelink.PushDeviceStatus, pushes[1].Op)
	assert.True(t, pushes[1].Day.IsZero(), "status push names no day")

	assert.Equal(t, devicelink.PushDataAvailable, pushes[2].Op)
	assert.Equal(t, "2026-04-13", models.DayLabel(pushes[2].Day))

	cancel()
	select {
	case err := <-runDone:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	_, ok := <-link.Pushes()
	assert.False(t, ok, "push channel should close when Run returns")
}

func TestListenerReconnectsAfterDrop(t *testing.T) {
	var conns int32

	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&conns, 1)
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)

		if n == 1 {
			// Drop the first connection before sending anything.
			conn.Close()
			return
		}

		_ = conn.WriteJSON(map[string]interface{}{"op": "data-available", "day": "2026-04-14"})
		conn.Close()
	}))
	defer server.Close()

	link := devicelink.NewListener(server.URL, "tok-8842", 20*time.Millisecond, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runDone := make(chan error, 1)
	go func() { runDone <- link.Run(ctx) }()

	select {
	case p := <-link.Pushes():
		assert.Equal(t, devicelink.PushDataAvailable, p.Op)
		assert.Equal(t, "2026-04-14", models.DayLabel(p.Day))
	case <-time.After(3 * time.Second):
		t.Fatal("no push after reconnect")
	}

	assert.GreaterOrEqual(t, atomic.LoadInt32(&conns), int32(2))

	cancel()
	select {
	case <-runDone:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestListenerCloseStopsRun(t *testing.T) {
	// Nothing listens here; the listener stays in its retry loop.
	link := devicelink.NewListener("ws://127.0.0.1:9", "tok", 10*time.Millisecond, testLogger())

	runDone := make(chan error, 1)
	go func() { runDone <- link.Run(context.Background()) }()

	require.NoError(t, link.Close())

	select {
	case err := <-runDone:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after Close")
	}

	assert.NoError(t, link.Close(), "closing twice is fine")
}
