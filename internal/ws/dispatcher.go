package ws

import (
	"log"

	"github.com/silentcircle/backend/internal/protocol"
)

// Handler processes one parsed client message on a connection. The msg is
// the concrete protocol struct for the registered type.
type Handler func(conn *Connection, msg interface{})

// Dispatcher routes incoming frames to handlers by message type.
// Registration happens at startup before the server accepts connections,
// so the map is read without locking afterwards.
type Dispatcher struct {
	server   *Server
	handlers map[string]Handler
}

// NewDispatcher creates a dispatcher bound to the server. A built-in
// handler answers client pings.
func NewDispatcher(server *Server) *Dispatcher {
	d := &Dispatcher{
		server:   server,
		handlers: make(map[string]Handler),
	}

	d.Register(protocol.TypePing, d.handlePing)

	return d
}

// Register binds a handler to a client message type, replacing any
// previous handler for that type.
func (d *Dispatcher) Register(msgType string, h Handler) {
	d.handlers[msgType] = h
}

// Dispatch parses a raw frame and invokes the matching handler. Malformed
// frames and unknown types get an error message back instead of a
// disconnect.
func (d *Dispatcher) Dispatch(conn *Connection, data []byte) {
	msgType, msg, err := protocol.ParseClientMessage(data)
	if err != nil {
		d.SendError(conn, "bad_message", "could not parse message")
		return
	}

	h, ok := d.handlers[msgType]
	if !ok {
		log.Printf("[dispatch] unhandled type=%s user=%s", msgType, conn.UserID)
		d.SendError(conn, "unknown_type", "unsupported message type: "+msgType)
		return
	}

	h(conn, msg)
}

// Send marshals a server message and writes it to the connection.
func (d *Dispatcher) Send(conn *Connection, msgType string, payload any) {
	data, err := protocol.NewServerMessage(msgType, payload)
	if err != nil {
		log.Printf("[dispatch] encode %s failed: %v", msgType, err)
		return
	}
	if err := d.server.send(conn, data); err != nil {
		log.Printf("[dispatch] send %s to user=%s failed: %v", msgType, conn.UserID, err)
	}
}

// SendToUser routes a server message to a user's live connection. Returns
// false when the user is not connected to this gateway.
func (d *Dispatcher) SendToUser(userID string, msgType string, payload any) bool {
	conn := d.server.conns.GetByUser(userID)
	if conn == nil {
		return false
	}
	d.Send(conn, msgType, payload)
	return true
}

// SendError sends a typed error message to the client.
func (d *Dispatcher) SendError(conn *Connection, code, message string) {
	d.Send(conn, protocol.TypeError, protocol.ErrorMsg{Code: code, Message: message})
}

func (d *Dispatcher) handlePing(conn *Connection, _ interface{}) {
	d.Send(conn, protocol.TypePong, protocol.PongMsg{})
}
