package relay

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/tradedeck/relay/internal/protocol"
)

// HandleConnector runs the connector-side session: authenticate, verify
// ownership of the connection id, register, then pump inbound frames until
// the transport closes. Blocks for the life of the connection.
func (e *Engine) HandleConnector(ctx context.Context, peer Peer, token, connectionID, brokerName string) {
	logger := e.logger.With("endpoint", "connector", "connection_id", connectionID)

	identity, err := e.verifier.Verify(ctx, token)
	if err != nil {
		logger.Warn("connector rejected: bad token", "error", err)
		peer.Close(CloseInvalidToken, "invalid token")
		return
	}

	owns, err := e.ownership.Owns(ctx, identity.UserID, connectionID)
	if err != nil {
		logger.Error("ownership lookup failed", "user_id", identity.UserID, "error", err)
		peer.Close(CloseNotOwner, "ownership could not be verified")
		return
	}
	if !owns {
		logger.Warn("connector rejected: not owner", "user_id", identity.UserID)
		peer.Close(CloseNotOwner, "connection not owned by caller")
		return
	}

	sess := e.reg.RegisterConnector(connectionID, identity.UserID, peer, brokerName)
	logger.Info("connector online", "user_id", identity.UserID, "broker", brokerName)

	// The unregister path runs on every exit: transport close, protocol
	// error, or panic in a handler. A session evicted by a reconnect is
	// left alone (UnregisterConnector reports false) so the replacement
	// survives this cleanup.
	defer func() {
		if e.reg.UnregisterConnector(connectionID, sess) {
			logger.Info("connector offline")
			e.broadcastStatus(sess.OwnerUserID)
		}
		peer.Close(CloseNormal, "")
	}()

	e.broadcastStatus(identity.UserID)

	e.connectorReadLoop(sess, logger)
}

// connectorReadLoop processes inbound connector frames strictly in arrival
// order. A malformed frame gets an ERROR reply and the connection stays open.
func (e *Engine) connectorReadLoop(sess *ConnectorSession, logger *slog.Logger) {
	for {
		data, err := sess.peer.ReadMessage()
		if err != nil {
			logger.Debug("connector read loop ended", "error", err)
			return
		}
		e.reg.TouchConnector(sess)

		msgType, err := protocol.MessageType(data)
		if err != nil {
			e.sendError(sess.peer, "", "Malformed message")
			continue
		}

		switch msgType {
		case protocol.TypeStatus:
			var status protocol.StatusUpdate
			if err := json.Unmarshal(data, &status); err != nil {
				e.sendError(sess.peer, "", "Malformed message")
				continue
			}
			if e.reg.SetTerminalLink(sess, status.MT5Connected) {
				e.broadcastStatus(sess.OwnerUserID)
			}

		case protocol.TypeTradeResult:
			// Results go verbatim to every client tracking this user;
			// the CRUD layer listens on the same fan-out.
			e.forwardToClients(sess.OwnerUserID, data)

		case protocol.TypePing:
			if err := sess.peer.Send(protocol.Pong()); err != nil {
				logger.Debug("pong not delivered", "error", err)
			}

		default:
			e.sendError(sess.peer, "", "Unsupported message type")
		}
	}
}

// forwardToClients delivers a frame to every live client session of a user.
// Sends are independent: a dead client is torn down without affecting the
// rest, and without stalling the connector's read loop beyond the write
// deadline.
func (e *Engine) forwardToClients(userID string, data []byte) {
	for _, client := range e.reg.ClientsByOwner(userID) {
		if err := client.peer.Send(data); err != nil {
			e.logger.Warn("dropping client after failed send",
				"user_id", userID,
				"client_id", client.ClientID,
				"error", err,
			)
			e.reg.UnregisterClient(client)
			client.peer.Close(CloseNormal, "")
		}
	}
}
