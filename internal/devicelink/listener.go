// Package devicelink listens for push notifications from the paired
// device. The device announces fresh health data over a WebSocket so
// the daemon can export it without waiting for the next timer.
package devicelink

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vitalvault/vitalvault/internal/events"
	"github.com/vitalvault/vitalvault/internal/models"
)

// PushOp identifies a device notification type.
type PushOp string

const (
	// PushDataAvailable announces new or changed health data. The push
	// names the affected day when the device knows it.
	PushDataAvailable PushOp = "data-available"

	// PushDeviceStatus carries periodic device state (battery, lock).
	PushDeviceStatus PushOp = "device-status"
)

// Push is one decoded device notification.
type Push struct {
	Op  PushOp
	Day time.Time // local midnight of the announced day, zero when absent
	Raw json.RawMessage
}

const maxReconnectDelay = 5 * time.Minute

// Listener maintains the push connection to the device. It reconnects
// with backoff until closed, delivering decoded pushes on a channel.
type Listener struct {
	url    string
	token  string
	logger *events.Logger

	// Connection state
	mu      sync.Mutex
	conn    *websocket.Conn
	running bool
	closed  bool
	done    chan struct{}

	pushes chan Push

	// Heartbeat
	pingInterval   time.Duration
	pongTimeout    time.Duration
	reconnectDelay time.Duration
}

// NewListener creates a push listener. The URL may be given as http(s);
// it is converted to the WebSocket scheme.
func NewListener(wsURL, token string, reconnectDelay time.Duration, logger *events.Logger) *Listener {
	if len(wsURL) > 4 && wsURL[:4] == "http" {
		wsURL = "ws" + wsURL[4:]
	}

	if reconnectDelay <= 0 {
		reconnectDelay = 30 * time.Second
	}

	return &Listener{
		url:            wsURL,
		token:          token,
		logger:         logger.WithField("component", "device_link"),
		pushes:         make(chan Push, 100),
		done:           make(chan struct{}),
		pingInterval:   30 * time.Second,
		pongTimeout:    10 * time.Second,
		reconnectDelay: reconnectDelay,
	}
}

// Pushes returns the notification channel. It is closed when Run
// returns.
func (l *Listener) Pushes() <-chan Push {
	return l.pushes
}

// Run connects and consumes pushes until the context is cancelled or
// the listener is closed. Connection failures and dropped connections
// retry with doubling delay, reset after each successful dial.
func (l *Listener) Run(ctx context.Context) error {
	l.mu.Lock()
	if l.running {
		l.mu.Unlock()
		return fmt.Errorf("listener already running")
	}
	l.running = true
	l.mu.Unlock()

	defer close(l.pushes)

	delay := l.reconnectDelay
	for {
		conn, err := l.connect(ctx)
		if err != nil {
			l.logger.WithError(err).WithField("retry_in", delay).Warn("Device link connect failed")
		} else {
			delay = l.reconnectDelay
			l.consume(ctx, conn)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-l.done:
			return nil
		case <-time.After(delay):
			if next := delay * 2; next <= maxReconnectDelay {
				delay = next
			}
		}
	}
}

// Close shuts the listener down. Safe to call more than once.
func (l *Listener) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true
	close(l.done)

	if l.conn != nil {
		_ = l.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		err := l.conn.Close()
		l.conn = nil
		return err
	}

	return nil
}

// connect dials the push endpoint with the pairing token.
func (l *Listener) connect(ctx context.Context) (*websocket.Conn, error) {
	l.logger.WithField("url", l.url).Debug("Connecting device link")

	headers := http.Header{}
	headers.Set("Authorization", "Bearer "+l.token)

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, resp, err := dialer.DialContext(ctx, l.url, headers)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("device link connect failed (HTTP %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("device link connect failed: %w", err)
	}

	l.mu.Lock()
	l.conn = conn
	l.mu.Unlock()

	l.logger.Info("Device link connected")
	return conn, nil
}

// consume reads pushes from one connection until it fails. The
// connection is closed on return.
func (l *Listener) consume(ctx context.Context, conn *websocket.Conn) {
	stop := make(chan struct{})
	defer close(stop)

	go l.pingLoop(conn, stop)

	// A blocked read only unblocks when the connection closes under it.
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-l.done:
			_ = conn.Close()
		case <-stop:
		}
	}()

	defer func() {
		l.mu.Lock()
		if l.conn == conn {
			l.conn = nil
		}
		l.mu.Unlock()
		_ = conn.Close()
	}()

	for {
		_ = conn.SetReadDeadline(time.Now().Add(l.pongTimeout + l.pingInterval))
		conn.SetPongHandler(func(string) error {
			_ = conn.SetReadDeadline(time.Now().Add(l.pongTimeout + l.pingInterval))
			return nil
		})

		var raw map[string]interface{}
		if err := conn.ReadJSON(&raw); err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseNormalClosure) {
				l.logger.WithError(err).Warn("Device link read error")
			}
			return
		}

		push, ok := l.decode(raw)
		if !ok {
			continue
		}

		select {
		case l.pushes <- push:
		case <-l.done:
			return
		case <-ctx.Done():
			return
		}
	}
}

// decode turns a raw message into a Push. Unknown ops pass through so
// consumers can decide; messages without an op are dropped.
func (l *Listener) decode(raw map[string]interface{}) (Push, bool) {
	op := getString(raw, "op")
	if op == "" {
		l.logger.WithField("message", raw).Debug("Push without op, dropping")
		return Push{}, false
	}

	push := Push{Op: PushOp(op)}

	if label := getString(raw, "day"); label != "" {
		day, err := models.ParseDayLabel(label)
		if err != nil {
			l.logger.WithField("day", label).Warn("Push names unparseable day")
		} else {
			push.Day = day
		}
	}

	rawData, _ := json.Marshal(raw)
	push.Raw = rawData

	l.logger.WithFields(map[string]interface{}{
		"op":  op,
		"day": getString(raw, "day"),
	}).Debug("Push received")

	return push, true
}

func getString(m map[string]interface{}, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

// pingLoop keeps the connection alive until it or the listener goes
// away.
func (l *Listener) pingLoop(conn *websocket.Conn, stop chan struct{}) {
	ticker := time.NewTicker(l.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				l.logger.WithError(err).Debug("Ping failed")
				return
			}
		case <-stop:
			return
		case <-l.done:
			return
		}
	}
}
