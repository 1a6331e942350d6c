package controller

import (
	"context"
	"net/http"
	"runtime/debug"
	"sync"
	"time"

	"github.com/canopy-network/questview/pkg/viewstate"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	pingInterval = 30 * time.Second
	readDeadline = 60 * time.Second
	writeWait    = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 8192,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// ServerMessage represents messages sent to WebSocket clients.
type ServerMessage struct {
	Type    string      `json:"type"`    // "snapshot"
	Payload interface{} `json:"payload"` // Event-specific data
}

// HandleWebSocket upgrades the connection and streams every published snapshot,
// starting with the current one. Slow clients only ever see the latest snapshot.
//
// Server sends:
// - {"type": "snapshot", "payload": {...}}
// and WebSocket PING frames every 30s. Client messages are ignored.
func (c *Controller) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	// Subscribe before the handshake completes so no publish after it is missed.
	updates, unsubscribe := c.App.Aggregator.Subscribe()
	defer unsubscribe()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		c.App.Logger.Error("Failed to upgrade WebSocket connection", zap.Error(err))
		return
	}
	defer func(conn *websocket.Conn) {
		if err := conn.Close(); err != nil {
			c.App.Logger.Debug("Failed to close WebSocket connection", zap.Error(err))
		}
	}(conn)

	c.App.Logger.Info("WebSocket client connected", zap.String("remote_addr", r.RemoteAddr))

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Writes to conn happen only on the writer goroutine; pings use WriteControl, which is
	// safe to call concurrently.
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		defer c.recoverConn("snapshot writer", r, cancel)
		c.writeSnapshots(ctx, conn, updates, cancel)
	}()
	go func() {
		defer wg.Done()
		defer c.recoverConn("ping ticker", r, cancel)
		c.sendPings(ctx, conn)
	}()

	// Blocks until the client goes away.
	c.readUntilClosed(ctx, conn, cancel)
	wg.Wait()

	c.App.Logger.Info("WebSocket client disconnected", zap.String("remote_addr", r.RemoteAddr))
}

func (c *Controller) recoverConn(name string, r *http.Request, cancel context.CancelFunc) {
	if rec := recover(); rec != nil {
		c.App.Logger.Error("Panic in WebSocket "+name+" goroutine",
			zap.Any("panic", rec),
			zap.String("stack", string(debug.Stack())),
			zap.String("remote_addr", r.RemoteAddr))
		cancel()
	}
}

func (c *Controller) writeSnapshots(ctx context.Context, conn *websocket.Conn, updates <-chan *viewstate.Snapshot, cancel context.CancelFunc) {
	defer cancel()

	write := func(s *viewstate.Snapshot) bool {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(ServerMessage{Type: "snapshot", Payload: s}); err != nil {
			c.App.Logger.Debug("Failed to write WebSocket message", zap.Error(err))
			return false
		}
		return true
	}

	if !write(c.App.Aggregator.Snapshot()) {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case s := <-updates:
			if !write(s) {
				return
			}
		}
	}
}

func (c *Controller) sendPings(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(writeWait)); err != nil {
				c.App.Logger.Debug("Failed to send ping", zap.Error(err))
				return
			}
		}
	}
}

func (c *Controller) readUntilClosed(ctx context.Context, conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()

	_ = conn.SetReadDeadline(time.Now().Add(readDeadline))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readDeadline))
	})

	go func() {
		// unblock NextReader when the writer side gives up
		<-ctx.Done()
		_ = conn.SetReadDeadline(time.Now())
	}()

	for {
		if _, _, err := conn.NextReader(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.App.Logger.Debug("WebSocket read error", zap.Error(err))
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(readDeadline))
	}
}
