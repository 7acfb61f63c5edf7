package relay

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Peer is a duplex transport handle as seen by the relay. Exactly one
// goroutine calls ReadMessage; Send and Close may be called from any
// goroutine.
type Peer interface {
	// ReadMessage blocks for the next inbound frame.
	ReadMessage() ([]byte, error)

	// Send writes one frame.
	Send(data []byte) error

	// Close sends a close frame with the given code and closes the
	// transport. Safe to call more than once.
	Close(code int, reason string) error
}

// Close codes used on top of the standard WebSocket set.
const (
	CloseInvalidToken = 4001 // token missing, invalid, or expired
	CloseSuperseded   = 4002 // replaced by a newer registration for the same id
	CloseNotOwner     = 4003 // authenticated user does not own the connection id

	CloseGoingAway = websocket.CloseGoingAway
	CloseNormal    = websocket.CloseNormalClosure
)

// wsPeer wraps a gorilla connection with serialized, deadline-bounded writes.
type wsPeer struct {
	conn         *websocket.Conn
	writeTimeout time.Duration

	writeMu   sync.Mutex
	closeOnce sync.Once
}

// NewPeer wraps an upgraded WebSocket connection.
func NewPeer(conn *websocket.Conn, writeTimeout time.Duration, maxMessageBytes int64) Peer {
	if maxMessageBytes > 0 {
		conn.SetReadLimit(maxMessageBytes)
	}
	return &wsPeer{
		conn:         conn,
		writeTimeout: writeTimeout,
	}
}

func (p *wsPeer) ReadMessage() ([]byte, error) {
	_, data, err := p.conn.ReadMessage()
	return data, err
}

func (p *wsPeer) Send(data []byte) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	p.conn.SetWriteDeadline(time.Now().Add(p.writeTimeout))
	return p.conn.WriteMessage(websocket.TextMessage, data)
}

func (p *wsPeer) Close(code int, reason string) error {
	var err error
	p.closeOnce.Do(func() {
		p.writeMu.Lock()
		p.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(code, reason),
			time.Now().Add(time.Second),
		)
		p.writeMu.Unlock()
		err = p.conn.Close()
	})
	return err
}
