package relay

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// ConnectorSession is one live connector process, keyed by its stable
// connection id. ConnectionID, OwnerUserID and BrokerName are immutable after
// registration; the liveness fields are guarded by the registry lock.
type ConnectorSession struct {
	ConnectionID string
	OwnerUserID  string
	BrokerName   string

	peer Peer

	// guarded by Registry.mu
	mt5Connected bool
	lastSeen     time.Time
}

// Peer returns the session's transport handle.
func (s *ConnectorSession) Peer() Peer { return s.peer }

// ClientSession is one live dashboard connection. A user may hold many at
// once; each gets its own ClientID.
type ClientSession struct {
	ClientID string
	UserID   string

	peer Peer
}

// Peer returns the session's transport handle.
func (s *ClientSession) Peer() Peer { return s.peer }

// ConnectorInfo is a point-in-time copy of a connector session's status
// fields, taken under the registry lock.
type ConnectorInfo struct {
	ConnectionID string
	MT5Connected bool
	BrokerName   string
	LastSeen     time.Time
}

// Stats is a snapshot of registry occupancy.
type Stats struct {
	Connectors int
	Clients    int
	Users      int
}

// Registry is the single source of truth for which connectors and clients are
// online. All access goes through its methods; one mutex covers the whole
// structure so replace-if-present cannot race remove-if-present.
type Registry struct {
	mu         sync.Mutex
	connectors map[string]*ConnectorSession
	owners     map[string][]string // user id → connection ids, registration order
	clients    map[string]map[string]*ClientSession
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		connectors: make(map[string]*ConnectorSession),
		owners:     make(map[string][]string),
		clients:    make(map[string]map[string]*ClientSession),
	}
}

// RegisterConnector inserts or replaces the session for connectionID. A prior
// session is evicted and its channel closed: a connector reconnecting is the
// common case, and the last writer wins. Returns the new session.
func (r *Registry) RegisterConnector(connectionID, ownerUserID string, peer Peer, brokerName string) *ConnectorSession {
	sess := &ConnectorSession{
		ConnectionID: connectionID,
		OwnerUserID:  ownerUserID,
		BrokerName:   brokerName,
		peer:         peer,
		lastSeen:     time.Now(),
	}

	r.mu.Lock()
	prior := r.connectors[connectionID]
	r.connectors[connectionID] = sess
	if prior == nil {
		r.owners[ownerUserID] = append(r.owners[ownerUserID], connectionID)
	} else if prior.OwnerUserID != ownerUserID {
		r.removeOwnedLocked(prior.OwnerUserID, connectionID)
		r.owners[ownerUserID] = append(r.owners[ownerUserID], connectionID)
	}
	r.mu.Unlock()

	// Close the evicted channel outside the lock; the old read loop's
	// deferred unregister is a no-op because the map now holds sess.
	if prior != nil {
		prior.peer.Close(CloseSuperseded, "superseded by new registration")
	}

	return sess
}

// UnregisterConnector removes the session for connectionID, but only if it is
// still the registered one. Safe to call any number of times from any exit
// path; a stale session (already evicted by a reconnect) is left alone.
// Reports whether the registry changed.
func (r *Registry) UnregisterConnector(connectionID string, sess *ConnectorSession) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.connectors[connectionID]
	if !ok || current != sess {
		return false
	}
	delete(r.connectors, connectionID)
	r.removeOwnedLocked(sess.OwnerUserID, connectionID)
	return true
}

func (r *Registry) removeOwnedLocked(userID, connectionID string) {
	ids := r.owners[userID]
	for i, id := range ids {
		if id == connectionID {
			r.owners[userID] = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	if len(r.owners[userID]) == 0 {
		delete(r.owners, userID)
	}
}

// RegisterClient inserts a new client session with a fresh client id.
func (r *Registry) RegisterClient(userID string, peer Peer) *ClientSession {
	sess := &ClientSession{
		ClientID: uuid.NewString(),
		UserID:   userID,
		peer:     peer,
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	set := r.clients[userID]
	if set == nil {
		set = make(map[string]*ClientSession)
		r.clients[userID] = set
	}
	set[sess.ClientID] = sess
	return sess
}

// UnregisterClient removes the session from its user's set, dropping the user
// entry when the set empties. No-op if already removed.
func (r *Registry) UnregisterClient(sess *ClientSession) {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.clients[sess.UserID]
	if !ok {
		return
	}
	delete(set, sess.ClientID)
	if len(set) == 0 {
		delete(r.clients, sess.UserID)
	}
}

// LookupConnector returns the live session for connectionID, if any.
func (r *Registry) LookupConnector(connectionID string) (*ConnectorSession, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sess, ok := r.connectors[connectionID]
	return sess, ok
}

// IsOnline reports whether a connector session currently exists for
// connectionID. This is the registry's definition of online, independent of
// the finer-grained mt5_connected signal.
func (r *Registry) IsOnline(connectionID string) bool {
	_, ok := r.LookupConnector(connectionID)
	return ok
}

// TouchConnector bumps the session's last-seen timestamp.
func (r *Registry) TouchConnector(sess *ConnectorSession) {
	r.mu.Lock()
	sess.lastSeen = time.Now()
	r.mu.Unlock()
}

// SetTerminalLink records the connector's own report of its trading-terminal
// link. Reports whether the value changed.
func (r *Registry) SetTerminalLink(sess *ConnectorSession, connected bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if sess.mt5Connected == connected {
		return false
	}
	sess.mt5Connected = connected
	return true
}

// OwnerStatus returns status copies for the user's online connectors, in
// registration order.
func (r *Registry) OwnerStatus(userID string) []ConnectorInfo {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := r.owners[userID]
	infos := make([]ConnectorInfo, 0, len(ids))
	for _, id := range ids {
		sess, ok := r.connectors[id]
		if !ok {
			continue
		}
		infos = append(infos, ConnectorInfo{
			ConnectionID: sess.ConnectionID,
			MT5Connected: sess.mt5Connected,
			BrokerName:   sess.BrokerName,
			LastSeen:     sess.lastSeen,
		})
	}
	return infos
}

// ClientsByOwner returns a snapshot of the user's live client sessions.
func (r *Registry) ClientsByOwner(userID string) []*ClientSession {
	r.mu.Lock()
	defer r.mu.Unlock()

	set := r.clients[userID]
	sessions := make([]*ClientSession, 0, len(set))
	for _, sess := range set {
		sessions = append(sessions, sess)
	}
	return sessions
}

// Stats returns current occupancy counts.
func (r *Registry) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	clients := 0
	for _, set := range r.clients {
		clients += len(set)
	}
	return Stats{
		Connectors: len(r.connectors),
		Clients:    clients,
		Users:      len(r.clients),
	}
}

// CloseAll closes every registered channel. Used at shutdown; the sessions'
// read loops observe the closes and run their own unregister paths.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	peers := make([]Peer, 0, len(r.connectors))
	for _, sess := range r.connectors {
		peers = append(peers, sess.peer)
	}
	for _, set := range r.clients {
		for _, sess := range set {
			peers = append(peers, sess.peer)
		}
	}
	r.mu.Unlock()

	for _, p := range peers {
		p.Close(CloseGoingAway, "server shutting down")
	}
}
