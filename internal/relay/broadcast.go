package relay

import "github.com/tradedeck/relay/internal/protocol"

// snapshotFor renders the CONNECTIONS_STATUS frame for a user. Entries cover
// the user's currently registered connectors in registration order; presence
// in the registry is what "online" means.
func (e *Engine) snapshotFor(userID string) []byte {
	infos := e.reg.OwnerStatus(userID)
	entries := make([]protocol.ConnectionStatus, 0, len(infos))
	for _, info := range infos {
		entries = append(entries, protocol.ConnectionStatus{
			ConnectionID: info.ConnectionID,
			Online:       true,
			MT5Connected: info.MT5Connected,
			BrokerName:   info.BrokerName,
		})
	}
	return protocol.Snapshot(entries)
}

// broadcastStatus fans the user's current snapshot out to all of their client
// sessions. Each send is independent; a failed send tears down only that
// client.
func (e *Engine) broadcastStatus(userID string) {
	e.forwardToClients(userID, e.snapshotFor(userID))
}
