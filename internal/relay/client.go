package relay

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/tradedeck/relay/internal/protocol"
)

// HandleClient runs a dashboard session: authenticate, register, send the
// initial status snapshot, then pump inbound frames until the transport
// closes. Blocks for the life of the connection.
func (e *Engine) HandleClient(ctx context.Context, peer Peer, token string) {
	logger := e.logger.With("endpoint", "client")

	identity, err := e.verifier.Verify(ctx, token)
	if err != nil {
		logger.Warn("client rejected: bad token", "error", err)
		peer.Close(CloseInvalidToken, "invalid token")
		return
	}

	sess := e.reg.RegisterClient(identity.UserID, peer)
	logger = logger.With("user_id", identity.UserID, "client_id", sess.ClientID)
	logger.Info("client online")

	defer func() {
		e.reg.UnregisterClient(sess)
		peer.Close(CloseNormal, "")
		logger.Info("client offline")
	}()

	// Immediate snapshot so the dashboard knows its connector states before
	// issuing anything.
	if err := peer.Send(e.snapshotFor(identity.UserID)); err != nil {
		logger.Warn("initial snapshot not delivered", "error", err)
		return
	}

	e.clientReadLoop(sess, logger)
}

// clientReadLoop processes inbound client frames strictly in arrival order.
// No inbound frame ever closes the connection; errors are replied in-band.
func (e *Engine) clientReadLoop(sess *ClientSession, logger *slog.Logger) {
	for {
		data, err := sess.peer.ReadMessage()
		if err != nil {
			logger.Debug("client read loop ended", "error", err)
			return
		}

		msgType, err := protocol.MessageType(data)
		if err != nil {
			e.sendError(sess.peer, "", "Malformed message")
			continue
		}

		switch msgType {
		case protocol.TypePing:
			if err := sess.peer.Send(protocol.Pong()); err != nil {
				logger.Debug("pong not delivered", "error", err)
			}

		case protocol.TypeTradeCommand:
			e.handleTradeCommand(sess, data, logger)

		default:
			e.sendError(sess.peer, "", "Unsupported message type")
		}
	}
}

// handleTradeCommand forwards a trade command to the addressed connector, or
// replies with a correlated ERROR. Ownership is re-checked against the
// registered session's owner on every command; a connection id the user does
// not own is reported the same way as an offline one.
func (e *Engine) handleTradeCommand(sess *ClientSession, data []byte, logger *slog.Logger) {
	var cmd protocol.TradeCommand
	if err := json.Unmarshal(data, &cmd); err != nil {
		e.sendError(sess.peer, "", "Malformed command")
		return
	}
	if cmd.ConnectionID == "" {
		e.sendError(sess.peer, cmd.CommandID, "Malformed command")
		return
	}

	forward, err := protocol.NormalizeTradeCommand(cmd)
	if err != nil {
		if errors.Is(err, protocol.ErrUnknownAction) {
			e.sendError(sess.peer, cmd.CommandID, "Unknown trade action")
		} else {
			e.sendError(sess.peer, cmd.CommandID, "Malformed command")
		}
		return
	}

	target, ok := e.reg.LookupConnector(cmd.ConnectionID)
	if !ok || target.OwnerUserID != sess.UserID {
		e.sendError(sess.peer, cmd.CommandID, "Connector not online")
		return
	}

	// The send happens outside any registry lock. If the connector vanished
	// between lookup and send this is best effort: log and move on, the
	// caller learns about it from the next status snapshot.
	if err := target.peer.Send(forward); err != nil {
		logger.Warn("command forward failed",
			"connection_id", cmd.ConnectionID,
			"command_id", cmd.CommandID,
			"error", err,
		)
	}
}
