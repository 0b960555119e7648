package notify

import (
	"context"
	"errors"
	"testing"

	"ringlink/internal/models"
	"ringlink/internal/presence"
)

type fakeLiveSender struct {
	sent []models.ServerMessage
	to   []string
	ok   bool
}

func (f *fakeLiveSender) SendTo(connID string, msg models.ServerMessage) bool {
	f.to = append(f.to, connID)
	f.sent = append(f.sent, msg)
	return f.ok
}

type fakePusher struct {
	targets []string
	calls   []Call
	err     error
}

func (f *fakePusher) Push(_ context.Context, target string, call Call) error {
	f.targets = append(f.targets, target)
	f.calls = append(f.calls, call)
	return f.err
}

func TestCascade_AllChannels(t *testing.T) {
	p := presence.NewStore()
	p.UpsertProfile("bob", "Bob", presence.Tokens{FCMToken: "fcm-tok", PlayerID: "player-1"})
	p.MarkOnline("bob", "conn-1", "")

	live := &fakeLiveSender{ok: true}
	fcm := &fakePusher{}
	oneSignal := &fakePusher{}
	c := NewCascade(p, live, fcm, oneSignal)

	res := c.Ring(context.Background(), Call{
		CallerID: "alice", CallerName: "Alice", CalleeID: "bob", RoomID: "r1",
	})

	if !res.Socket || !res.FCM || !res.OneSignal {
		t.Errorf("expected all channels delivered, got %+v", res)
	}
	if len(live.to) != 1 || live.to[0] != "conn-1" {
		t.Errorf("live push targeted %v", live.to)
	}
	if live.sent[0].Type != models.ServerMessageTypeIncomingCall || live.sent[0].RoomID != "r1" {
		t.Errorf("unexpected live event: %+v", live.sent[0])
	}
	if len(fcm.targets) != 1 || fcm.targets[0] != "fcm-tok" {
		t.Errorf("fcm push targeted %v", fcm.targets)
	}
	if len(oneSignal.targets) != 1 || oneSignal.targets[0] != "player-1" {
		t.Errorf("onesignal push targeted %v", oneSignal.targets)
	}
}

func TestCascade_FallbackOnly(t *testing.T) {
	p := presence.NewStore()
	p.UpsertProfile("bob", "Bob", presence.Tokens{PlayerID: "player-1"})

	live := &fakeLiveSender{ok: true}
	oneSignal := &fakePusher{}
	c := NewCascade(p, live, &fakePusher{}, oneSignal)

	res := c.Ring(context.Background(), Call{CallerID: "alice", CalleeID: "bob", RoomID: "r1"})

	if res.Socket || res.FCM {
		t.Errorf("expected only fallback channel, got %+v", res)
	}
	if !res.OneSignal {
		t.Error("fallback channel should have delivered")
	}
	if len(live.sent) != 0 {
		t.Error("live push attempted without a live address")
	}
	// Caller name falls back to the caller ID.
	if oneSignal.calls[0].CallerName != "alice" {
		t.Errorf("expected caller name fallback, got %q", oneSignal.calls[0].CallerName)
	}
}

func TestCascade_ChannelFailureIsIndependent(t *testing.T) {
	p := presence.NewStore()
	p.UpsertProfile("bob", "Bob", presence.Tokens{FCMToken: "fcm-tok", PlayerID: "player-1"})

	fcm := &fakePusher{err: errors.New("credential expired")}
	oneSignal := &fakePusher{}
	c := NewCascade(p, &fakeLiveSender{}, fcm, oneSignal)

	res := c.Ring(context.Background(), Call{CallerID: "alice", CalleeID: "bob", RoomID: "r1"})

	if res.FCM {
		t.Error("failed channel recorded as delivered")
	}
	if !res.OneSignal {
		t.Error("fcm failure blocked the fallback channel")
	}
	if len(oneSignal.targets) != 1 {
		t.Error("fallback channel was not attempted")
	}
}

func TestCascade_UnknownCallee(t *testing.T) {
	c := NewCascade(presence.NewStore(), &fakeLiveSender{}, &fakePusher{}, &fakePusher{})

	res := c.Ring(context.Background(), Call{CallerID: "alice", CalleeID: "ghost", RoomID: "r1"})

	if res.Socket || res.FCM || res.OneSignal {
		t.Errorf("expected no deliveries for unknown callee, got %+v", res)
	}
}

func TestCascade_UnconfiguredChannels(t *testing.T) {
	p := presence.NewStore()
	p.UpsertProfile("bob", "Bob", presence.Tokens{FCMToken: "fcm-tok", PlayerID: "player-1"})

	c := NewCascade(p, &fakeLiveSender{}, nil, nil)

	res := c.Ring(context.Background(), Call{CallerID: "alice", CalleeID: "bob", RoomID: "r1"})
	if res.FCM || res.OneSignal {
		t.Errorf("unconfigured channels must record false, got %+v", res)
	}
}
