// Package rooms tracks which connections share a call session. A room
// exists only while it has members: it is created on first join and
// deleted the moment the last member leaves.
package rooms

import (
	"slices"
	"sync"
)

type Store struct {
	// Insertion order matters: the first member is the call initiator.
	rooms map[string][]string
	mu    sync.RWMutex
}

func NewStore() *Store {
	return &Store{
		rooms: make(map[string][]string),
	}
}

// Join adds connID to the room, creating it if absent. The caller is
// the initiator iff the room had no members before this call. A
// duplicate join from the same connection does not change membership
// but still reports the recomputed initiator flag.
func (s *Store) Join(roomID, connID string) (isInitiator bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	members := s.rooms[roomID]
	isInitiator = len(members) == 0

	if !slices.Contains(members, connID) {
		s.rooms[roomID] = append(members, connID)
	}

	return isInitiator
}

// Leave removes connID from the room and deletes the room when it
// becomes empty. Unknown room or member is a no-op.
func (s *Store) Leave(roomID, connID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	members, ok := s.rooms[roomID]
	if !ok {
		return
	}

	members = slices.DeleteFunc(members, func(id string) bool { return id == connID })
	if len(members) == 0 {
		delete(s.rooms, roomID)
		return
	}
	s.rooms[roomID] = members
}

// PeersOf returns the room members excluding the given connection.
func (s *Store) PeersOf(roomID, excludeConnID string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	members := s.rooms[roomID]
	peers := make([]string, 0, len(members))
	for _, id := range members {
		if id != excludeConnID {
			peers = append(peers, id)
		}
	}
	return peers
}

func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rooms)
}

// Snapshot returns a copy of all rooms and their members, used by the
// debug endpoint.
func (s *Store) Snapshot() map[string][]string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string][]string, len(s.rooms))
	for id, members := range s.rooms {
		out[id] = slices.Clone(members)
	}
	return out
}
