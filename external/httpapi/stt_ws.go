package httpapi

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vozlab/escriba/internal/gateway"
	"github.com/vozlab/escriba/internal/protocol"
)

const (
	// maxFrameBytes caps a single websocket frame. Audio clients send
	// chunks of a few KB; anything near this size is a misbehaving peer.
	maxFrameBytes = 1 << 20

	writeTimeout = 10 * time.Second
)

func newUpgrader(allowedOrigins []string) *websocket.Upgrader {
	allowAll := false
	origins := make(map[string]struct{}, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		origin = strings.TrimSpace(origin)
		if origin == "*" {
			allowAll = true
			continue
		}
		origins[origin] = struct{}{}
	}
	return &websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			if allowAll {
				return true
			}
			origin := r.Header.Get("Origin")
			if origin == "" {
				// Non-browser clients send no Origin header.
				return true
			}
			_, ok := origins[origin]
			return ok
		},
	}
}

// handleSTT upgrades the request and hands the connection to the
// gateway. It blocks until the session terminates.
func (s *Server) handleSTT(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade rejected", "error", err, "remote_addr", r.RemoteAddr)
		return
	}
	conn.SetReadLimit(maxFrameBytes)

	s.manager.HandleConnection(&wsConn{conn: conn})
}

// wsConn adapts a gorilla connection to the gateway transport. Writes
// are serialized because the session goroutine and StopAll can race on
// the closing error message.
type wsConn struct {
	conn   *websocket.Conn
	connMu sync.Mutex
}

func (c *wsConn) ReadFrame(idleTimeout time.Duration) ([]byte, error) {
	if idleTimeout > 0 {
		if err := c.conn.SetReadDeadline(time.Now().Add(idleTimeout)); err != nil {
			return nil, gateway.ErrClientGone
		}
	}

	msgType, data, err := c.conn.ReadMessage()
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return nil, gateway.ErrIdleTimeout
		}
		if isClientGone(err) {
			return nil, gateway.ErrClientGone
		}
		return nil, fmt.Errorf("websocket read failed: %w", err)
	}
	if msgType != websocket.BinaryMessage {
		return nil, gateway.ErrNonBinaryFrame
	}
	return data, nil
}

func (c *wsConn) WriteMessage(msg protocol.Message) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	return c.conn.WriteJSON(msg)
}

func (c *wsConn) Close() error {
	return c.conn.Close()
}

func (c *wsConn) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}

func isClientGone(err error) bool {
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, net.ErrClosed)
}
