package models

import (
	"encoding/json"
	"errors"
)

var (
	ErrNotFound = errors.New("not found")
)

// UserSummary is the REST representation of a known user.
type UserSummary struct {
	UserID   string `json:"userId"`
	Name     string `json:"name"`
	Online   bool   `json:"online"`
	LastSeen int64  `json:"lastSeen,omitempty"`
}

// ClientMessage represents a signaling event sent from the client to the server.
type ClientMessage struct {
	Type   ClientMessageType `json:"type"`
	RoomID string            `json:"roomId,omitempty"`
	UserID string            `json:"userId,omitempty"`
	Name   string            `json:"name,omitempty"`
	// Payload carries the SDP or ICE body for offer/answer/ice-candidate.
	// It is forwarded verbatim and never inspected.
	Payload json.RawMessage `json:"payload,omitempty"`
}

// ServerMessage represents a signaling event sent to the client.
type ServerMessage struct {
	Type       ServerMessageType `json:"type"`
	RoomID     string            `json:"roomId,omitempty"`
	Initiator  bool              `json:"initiator,omitempty"`
	SocketID   string            `json:"socketId,omitempty"`
	From       string            `json:"from,omitempty"`
	Payload    json.RawMessage   `json:"payload,omitempty"`
	CallerID   string            `json:"callerId,omitempty"`
	CallerName string            `json:"callerName,omitempty"`
	UserID     string            `json:"userId,omitempty"`
	Online     bool              `json:"online"`
	LastSeen   int64             `json:"lastSeen,omitempty"`
}

type ClientMessageType string

const (
	ClientMessageTypeUserOnline   ClientMessageType = "user-online"
	ClientMessageTypeJoin         ClientMessageType = "join"
	ClientMessageTypeOffer        ClientMessageType = "offer"
	ClientMessageTypeAnswer       ClientMessageType = "answer"
	ClientMessageTypeICECandidate ClientMessageType = "ice-candidate"
	ClientMessageTypeCallDeclined ClientMessageType = "call-declined"
	ClientMessageTypeLeave        ClientMessageType = "leave"
)

type ServerMessageType string

const (
	ServerMessageTypeJoined         ServerMessageType = "joined"
	ServerMessageTypePeerJoined     ServerMessageType = "peer-joined"
	ServerMessageTypePeerLeft       ServerMessageType = "peer-left"
	ServerMessageTypeOffer          ServerMessageType = "offer"
	ServerMessageTypeAnswer         ServerMessageType = "answer"
	ServerMessageTypeICECandidate   ServerMessageType = "ice-candidate"
	ServerMessageTypeCallDeclined   ServerMessageType = "call-declined"
	ServerMessageTypeIncomingCall   ServerMessageType = "incoming-call"
	ServerMessageTypeCallCancelled  ServerMessageType = "call-cancelled"
	ServerMessageTypePresenceUpdate ServerMessageType = "presence-update"
)
