package ws

import (
	"sync"

	"ringlink/internal/models"
	"ringlink/internal/presence"
	"ringlink/internal/rooms"
)

const sendBufferSize = 100

// connState tracks what the relay knows about one live connection: the
// user who announced themselves on it and the room it currently sits
// in. An empty roomID means the connection never joined or already
// left, which is what keeps the leave procedure from running twice.
type connState struct {
	send   chan models.ServerMessage
	userID string
	roomID string
}

// Relay owns the per-connection signaling state machine. Inbound
// events mutate the presence and room stores and forward payloads to
// the opposite party of a room.
type Relay struct {
	presence *presence.Store
	rooms    *rooms.Store

	conns map[string]*connState
	mu    sync.RWMutex
}

func NewRelay(p *presence.Store, r *rooms.Store) *Relay {
	relay := &Relay{
		presence: p,
		rooms:    r,
		conns:    make(map[string]*connState),
	}

	// Presence transitions are broadcast to every client, not targeted:
	// this is the only way remote clients learn who is reachable.
	p.OnChange(func(u presence.Update) {
		relay.Broadcast(models.ServerMessage{
			Type:     models.ServerMessageTypePresenceUpdate,
			UserID:   u.UserID,
			Online:   u.Online,
			LastSeen: u.LastSeen,
		})
	})

	return relay
}

// Register adds a connection and returns its outbound event channel.
func (r *Relay) Register(connID string) chan models.ServerMessage {
	r.mu.Lock()
	defer r.mu.Unlock()

	ch := make(chan models.ServerMessage, sendBufferSize)
	r.conns[connID] = &connState{send: ch}
	return ch
}

// Deregister runs the connection teardown: the implicit leave if the
// connection still sits in a room, then the guarded offline downgrade.
func (r *Relay) Deregister(connID string) {
	r.mu.Lock()
	state, ok := r.conns[connID]
	if !ok {
		r.mu.Unlock()
		return
	}
	userID := state.userID
	roomID := state.roomID
	state.roomID = ""
	delete(r.conns, connID)
	close(state.send)
	r.mu.Unlock()

	if roomID != "" {
		r.leaveRoom(connID, roomID)
	}

	if userID != "" {
		// No-op when a newer connection already took over; the store
		// broadcasts the presence change only if the downgrade applied.
		r.presence.MarkOfflineIfCurrent(userID, connID)
	}
}

// HandleEvent dispatches one inbound client event.
func (r *Relay) HandleEvent(connID string, msg models.ClientMessage) {
	switch msg.Type {
	case models.ClientMessageTypeUserOnline:
		r.handleUserOnline(connID, msg)
	case models.ClientMessageTypeJoin:
		r.handleJoin(connID, msg)
	case models.ClientMessageTypeOffer, models.ClientMessageTypeAnswer, models.ClientMessageTypeICECandidate:
		r.handleForward(connID, msg)
	case models.ClientMessageTypeCallDeclined:
		r.handleCallDeclined(connID, msg)
	case models.ClientMessageTypeLeave:
		r.handleLeave(connID, msg)
	}
}

func (r *Relay) handleUserOnline(connID string, msg models.ClientMessage) {
	if msg.UserID == "" {
		return
	}

	r.mu.Lock()
	if state, ok := r.conns[connID]; ok {
		state.userID = msg.UserID
	}
	r.mu.Unlock()

	r.presence.MarkOnline(msg.UserID, connID, msg.Name)
}

func (r *Relay) handleJoin(connID string, msg models.ClientMessage) {
	if msg.RoomID == "" {
		return
	}

	r.mu.Lock()
	if state, ok := r.conns[connID]; ok {
		state.roomID = msg.RoomID
		if msg.UserID != "" {
			state.userID = msg.UserID
		}
	}
	r.mu.Unlock()

	isInitiator := r.rooms.Join(msg.RoomID, connID)

	r.SendTo(connID, models.ServerMessage{
		Type:      models.ServerMessageTypeJoined,
		RoomID:    msg.RoomID,
		Initiator: isInitiator,
	})

	if !isInitiator {
		r.toPeers(connID, msg.RoomID, models.ServerMessage{
			Type:     models.ServerMessageTypePeerJoined,
			SocketID: connID,
		})
	}
}

// handleForward relays offer, answer and ice-candidate payloads
// verbatim to the other members of the room, tagged with the sender.
func (r *Relay) handleForward(connID string, msg models.ClientMessage) {
	if msg.RoomID == "" || len(msg.Payload) == 0 {
		return
	}

	r.toPeers(connID, msg.RoomID, models.ServerMessage{
		Type:    models.ServerMessageType(msg.Type),
		Payload: msg.Payload,
		From:    connID,
	})
}

func (r *Relay) handleCallDeclined(connID string, msg models.ClientMessage) {
	if msg.RoomID == "" {
		return
	}

	r.toPeers(connID, msg.RoomID, models.ServerMessage{
		Type: models.ServerMessageTypeCallDeclined,
	})
}

func (r *Relay) handleLeave(connID string, msg models.ClientMessage) {
	// Clear the room association first so the close handler does not
	// run the leave procedure a second time.
	r.mu.Lock()
	if state, ok := r.conns[connID]; ok {
		state.roomID = ""
	}
	r.mu.Unlock()

	r.leaveRoom(connID, msg.RoomID)
}

func (r *Relay) leaveRoom(connID, roomID string) {
	if roomID == "" {
		return
	}

	r.rooms.Leave(roomID, connID)

	r.toPeers(connID, roomID, models.ServerMessage{
		Type:     models.ServerMessageTypePeerLeft,
		SocketID: connID,
	})
}

func (r *Relay) toPeers(connID, roomID string, msg models.ServerMessage) {
	for _, peer := range r.rooms.PeersOf(roomID, connID) {
		r.SendTo(peer, msg)
	}
}

// SendTo queues an event for a single connection. Reports false when
// the connection is no longer registered. A full send buffer drops the
// event rather than blocking the relay.
func (r *Relay) SendTo(connID string, msg models.ServerMessage) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	state, ok := r.conns[connID]
	if !ok {
		return false
	}

	select {
	case state.send <- msg:
	default:
	}
	return true
}

// Broadcast queues an event for every registered connection.
func (r *Relay) Broadcast(msg models.ServerMessage) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, state := range r.conns {
		select {
		case state.send <- msg:
		default:
		}
	}
}
