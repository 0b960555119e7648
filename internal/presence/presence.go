// Package presence tracks which users are reachable and over which
// delivery addresses: a live websocket connection, an FCM device token,
// or a OneSignal player ID.
package presence

import (
	"sort"
	"strings"
	"sync"
	"time"
)

// Record is the reachability state of a single user.
type Record struct {
	UserID      string
	DisplayName string

	// LiveAddress is the handle of the currently authoritative
	// connection, empty when the user has no live connection.
	LiveAddress string

	FCMToken  string
	PlayerID  string
	VoIPToken string

	Online   bool
	LastSeen int64 // unix seconds, set on transition to offline
}

// Tokens carries the optional push delivery addresses of a profile
// registration. Empty fields never clobber stored values.
type Tokens struct {
	FCMToken  string
	PlayerID  string
	VoIPToken string
}

// Update describes a presence transition and is broadcast to all
// connected clients.
type Update struct {
	UserID   string
	Online   bool
	LastSeen int64
}

type Store struct {
	records  map[string]*Record
	onChange func(Update)

	mu  sync.RWMutex
	now func() time.Time
}

func NewStore() *Store {
	return &Store{
		records: make(map[string]*Record),
		now:     time.Now,
	}
}

// OnChange registers the presence broadcast callback. The callback is
// invoked outside the store lock, once per applied transition.
func (s *Store) OnChange(fn func(Update)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = fn
}

// UpsertProfile creates or merges a profile record. It never replaces a
// stored token with an empty one and never touches the live connection
// state.
func (s *Store) UpsertProfile(userID, displayName string, tokens Tokens) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.records[userID]
	if !ok {
		r = &Record{UserID: userID}
		s.records[userID] = r
	}

	if displayName != "" {
		r.DisplayName = displayName
	}
	if tokens.FCMToken != "" {
		r.FCMToken = tokens.FCMToken
	}
	if tokens.PlayerID != "" {
		r.PlayerID = tokens.PlayerID
	}
	if tokens.VoIPToken != "" {
		r.VoIPToken = tokens.VoIPToken
	}
}

// MarkOnline registers connID as the authoritative live connection for
// userID, creating the record if the user never called register.
func (s *Store) MarkOnline(userID, connID, displayName string) {
	s.mu.Lock()

	r, ok := s.records[userID]
	if !ok {
		r = &Record{UserID: userID}
		s.records[userID] = r
	}

	if displayName != "" {
		r.DisplayName = displayName
	}
	if r.DisplayName == "" {
		r.DisplayName = userID
	}

	r.Online = true
	r.LiveAddress = connID

	fn := s.onChange
	s.mu.Unlock()

	if fn != nil {
		fn(Update{UserID: userID, Online: true})
	}
}

// MarkOfflineIfCurrent downgrades the user to offline only if connID is
// still the registered live connection. A close event from a connection
// that was already superseded by a reconnect is a no-op. Reports
// whether the mutation applied.
func (s *Store) MarkOfflineIfCurrent(userID, connID string) bool {
	s.mu.Lock()

	r, ok := s.records[userID]
	if !ok || r.LiveAddress != connID {
		s.mu.Unlock()
		return false
	}

	r.Online = false
	r.LiveAddress = ""
	r.LastSeen = s.now().Unix()

	update := Update{UserID: userID, Online: false, LastSeen: r.LastSeen}
	fn := s.onChange
	s.mu.Unlock()

	if fn != nil {
		fn(update)
	}
	return true
}

func (s *Store) Get(userID string) (Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.records[userID]
	if !ok {
		return Record{}, false
	}
	return *r, true
}

// ListOthers returns all records except the excluded user, online users
// first, then by display name ascending (case-insensitive).
func (s *Store) ListOthers(excludeUserID string) []Record {
	s.mu.RLock()
	result := make([]Record, 0, len(s.records))
	for id, r := range s.records {
		if id == excludeUserID {
			continue
		}
		result = append(result, *r)
	}
	s.mu.RUnlock()

	sort.SliceStable(result, func(i, j int) bool {
		if result[i].Online != result[j].Online {
			return result[i].Online
		}
		return strings.ToLower(result[i].DisplayName) < strings.ToLower(result[j].DisplayName)
	})

	return result
}

func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func (s *Store) CountOnline() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, r := range s.records {
		if r.Online {
			n++
		}
	}
	return n
}
