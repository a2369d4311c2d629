package gateway

import (
	"errors"
	"time"

	"github.com/vozlab/escriba/internal/protocol"
)

// State is the lifecycle of one client session.
type State string

const (
	StateInit       State = "INIT"
	StateActive     State = "ACTIVE"
	StateClosing    State = "CLOSING"
	StateTerminated State = "TERMINATED"
)

// Read errors the transport must map to, so sessions can tell a silent
// disconnect from a protocol violation.
var (
	// ErrClientGone means the peer closed or the connection dropped.
	ErrClientGone = errors.New("client disconnected")
	// ErrIdleTimeout means no frame arrived within the idle window.
	ErrIdleTimeout = errors.New("session idle timeout")
	// ErrNonBinaryFrame means the client sent something other than a
	// binary audio frame.
	ErrNonBinaryFrame = errors.New("non-binary frame received")
)

// Conn is the transport underneath a session. Implementations serialize
// their own writes; sessions call WriteMessage from one goroutine only.
type Conn interface {
	// ReadFrame blocks for the next binary frame from the client,
	// waiting at most idleTimeout.
	ReadFrame(idleTimeout time.Duration) ([]byte, error)
	WriteMessage(msg protocol.Message) error
	Close() error
	RemoteAddr() string
}
