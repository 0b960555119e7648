package ws

import (
	"encoding/json"
	"testing"

	"ringlink/internal/models"
	"ringlink/internal/presence"
	"ringlink/internal/rooms"
)

func newTestRelay() *Relay {
	return NewRelay(presence.NewStore(), rooms.NewStore())
}

func drain(ch chan models.ServerMessage) []models.ServerMessage {
	var msgs []models.ServerMessage
	for {
		select {
		case msg := <-ch:
			msgs = append(msgs, msg)
		default:
			return msgs
		}
	}
}

func TestRelay_JoinFlow(t *testing.T) {
	r := newTestRelay()
	chB := r.Register("conn-b")
	chA := r.Register("conn-a")

	// B joins first, then A: exactly one initiator.
	r.HandleEvent("conn-b", models.ClientMessage{Type: models.ClientMessageTypeJoin, RoomID: "r1", UserID: "b"})
	r.HandleEvent("conn-a", models.ClientMessage{Type: models.ClientMessageTypeJoin, RoomID: "r1", UserID: "a"})

	bMsgs := drain(chB)
	if len(bMsgs) != 2 {
		t.Fatalf("expected joined + peer-joined for B, got %v", bMsgs)
	}
	if bMsgs[0].Type != models.ServerMessageTypeJoined || !bMsgs[0].Initiator {
		t.Errorf("B's joined reply should carry initiator=true: %+v", bMsgs[0])
	}
	if bMsgs[1].Type != models.ServerMessageTypePeerJoined || bMsgs[1].SocketID != "conn-a" {
		t.Errorf("B should learn about A's handle: %+v", bMsgs[1])
	}

	aMsgs := drain(chA)
	if len(aMsgs) != 1 || aMsgs[0].Type != models.ServerMessageTypeJoined || aMsgs[0].Initiator {
		t.Errorf("A's joined reply should carry initiator=false: %v", aMsgs)
	}
}

func TestRelay_ForwardOffer(t *testing.T) {
	r := newTestRelay()
	chB := r.Register("conn-b")
	r.Register("conn-a")

	r.HandleEvent("conn-b", models.ClientMessage{Type: models.ClientMessageTypeJoin, RoomID: "r1"})
	r.HandleEvent("conn-a", models.ClientMessage{Type: models.ClientMessageTypeJoin, RoomID: "r1"})
	drain(chB)

	sdp := json.RawMessage(`{"sdp":"v=0...","type":"offer"}`)
	r.HandleEvent("conn-a", models.ClientMessage{Type: models.ClientMessageTypeOffer, RoomID: "r1", Payload: sdp})

	msgs := drain(chB)
	if len(msgs) != 1 {
		t.Fatalf("expected 1 forwarded offer, got %d", len(msgs))
	}
	if msgs[0].Type != models.ServerMessageTypeOffer || msgs[0].From != "conn-a" {
		t.Errorf("unexpected forward: %+v", msgs[0])
	}
	if string(msgs[0].Payload) != string(sdp) {
		t.Errorf("payload not forwarded verbatim: %s", msgs[0].Payload)
	}

	// Missing payload or room is dropped, not forwarded.
	r.HandleEvent("conn-a", models.ClientMessage{Type: models.ClientMessageTypeOffer, RoomID: "r1"})
	r.HandleEvent("conn-a", models.ClientMessage{Type: models.ClientMessageTypeAnswer, Payload: sdp})
	if msgs := drain(chB); len(msgs) != 0 {
		t.Errorf("invalid events were forwarded: %v", msgs)
	}
}

func TestRelay_CallDeclined(t *testing.T) {
	r := newTestRelay()
	chB := r.Register("conn-b")
	r.Register("conn-a")

	r.HandleEvent("conn-b", models.ClientMessage{Type: models.ClientMessageTypeJoin, RoomID: "r1"})
	r.HandleEvent("conn-a", models.ClientMessage{Type: models.ClientMessageTypeJoin, RoomID: "r1"})
	drain(chB)

	r.HandleEvent("conn-a", models.ClientMessage{Type: models.ClientMessageTypeCallDeclined, RoomID: "r1"})

	msgs := drain(chB)
	if len(msgs) != 1 || msgs[0].Type != models.ServerMessageTypeCallDeclined {
		t.Errorf("expected call-declined forward, got %v", msgs)
	}
}

func TestRelay_LeaveThenDisconnect_RunsOnce(t *testing.T) {
	store := rooms.NewStore()
	r := NewRelay(presence.NewStore(), store)
	chB := r.Register("conn-b")
	r.Register("conn-a")

	r.HandleEvent("conn-b", models.ClientMessage{Type: models.ClientMessageTypeJoin, RoomID: "r1"})
	r.HandleEvent("conn-a", models.ClientMessage{Type: models.ClientMessageTypeJoin, RoomID: "r1"})
	drain(chB)

	r.HandleEvent("conn-a", models.ClientMessage{Type: models.ClientMessageTypeLeave, RoomID: "r1"})
	r.Deregister("conn-a")

	var peerLeft int
	for _, msg := range drain(chB) {
		if msg.Type == models.ServerMessageTypePeerLeft && msg.SocketID == "conn-a" {
			peerLeft++
		}
	}
	if peerLeft != 1 {
		t.Errorf("leave procedure ran %d times, expected exactly once", peerLeft)
	}

	if got := store.PeersOf("r1", ""); len(got) != 1 || got[0] != "conn-b" {
		t.Errorf("unexpected room membership: %v", got)
	}
}

func TestRelay_DisconnectWithoutLeave_RunsImplicitLeave(t *testing.T) {
	store := rooms.NewStore()
	r := NewRelay(presence.NewStore(), store)
	chB := r.Register("conn-b")
	r.Register("conn-a")

	r.HandleEvent("conn-b", models.ClientMessage{Type: models.ClientMessageTypeJoin, RoomID: "r1"})
	r.HandleEvent("conn-a", models.ClientMessage{Type: models.ClientMessageTypeJoin, RoomID: "r1"})
	drain(chB)

	r.Deregister("conn-a")

	msgs := drain(chB)
	if len(msgs) != 1 || msgs[0].Type != models.ServerMessageTypePeerLeft || msgs[0].SocketID != "conn-a" {
		t.Errorf("expected one peer-left, got %v", msgs)
	}
}

func TestRelay_PresenceBroadcast(t *testing.T) {
	p := presence.NewStore()
	r := NewRelay(p, rooms.NewStore())
	chObserver := r.Register("conn-observer")
	r.Register("conn-a")

	r.HandleEvent("conn-a", models.ClientMessage{Type: models.ClientMessageTypeUserOnline, UserID: "alice", Name: "Alice"})

	msgs := drain(chObserver)
	if len(msgs) != 1 || msgs[0].Type != models.ServerMessageTypePresenceUpdate {
		t.Fatalf("expected presence-update broadcast, got %v", msgs)
	}
	if msgs[0].UserID != "alice" || !msgs[0].Online {
		t.Errorf("unexpected presence update: %+v", msgs[0])
	}

	r.Deregister("conn-a")
	msgs = drain(chObserver)
	if len(msgs) != 1 || msgs[0].Online {
		t.Fatalf("expected offline presence-update, got %v", msgs)
	}
	if msgs[0].LastSeen == 0 {
		t.Error("offline update missing lastSeen")
	}
}

func TestRelay_StaleDisconnect_NoBroadcast(t *testing.T) {
	p := presence.NewStore()
	r := NewRelay(p, rooms.NewStore())
	chObserver := r.Register("conn-observer")

	// Reconnect race: old connection announces, the new one takes over,
	// then the old one closes.
	r.Register("conn-old")
	r.Register("conn-new")
	r.HandleEvent("conn-old", models.ClientMessage{Type: models.ClientMessageTypeUserOnline, UserID: "alice"})
	r.HandleEvent("conn-new", models.ClientMessage{Type: models.ClientMessageTypeUserOnline, UserID: "alice"})
	drain(chObserver)

	r.Deregister("conn-old")

	if msgs := drain(chObserver); len(msgs) != 0 {
		t.Errorf("stale disconnect must not broadcast, got %v", msgs)
	}
	if rec, _ := p.Get("alice"); !rec.Online || rec.LiveAddress != "conn-new" {
		t.Errorf("stale disconnect downgraded presence: %+v", rec)
	}
}

func TestRelay_SendTo(t *testing.T) {
	r := newTestRelay()
	ch := r.Register("conn-a")

	if !r.SendTo("conn-a", models.ServerMessage{Type: models.ServerMessageTypeCallCancelled, RoomID: "r1"}) {
		t.Error("SendTo to registered connection reported failure")
	}
	if msgs := drain(ch); len(msgs) != 1 || msgs[0].RoomID != "r1" {
		t.Errorf("unexpected messages: %v", msgs)
	}

	if r.SendTo("conn-ghost", models.ServerMessage{}) {
		t.Error("SendTo to unknown connection reported success")
	}
}
