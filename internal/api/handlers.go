package api

import (
	"encoding/json"
	"log"
	"net/http"

	"ringlink/internal/models"
	"ringlink/internal/notify"
	"ringlink/internal/presence"
	"ringlink/internal/rooms"
	"ringlink/internal/storage"
)

type API struct {
	presence *presence.Store
	rooms    *rooms.Store
	cascade  *notify.Cascade
	live     notify.LiveSender
	storage  *storage.BboltStorage
	turn     *TurnMinter
}

func New(p *presence.Store, r *rooms.Store, cascade *notify.Cascade, live notify.LiveSender, store *storage.BboltStorage, turn *TurnMinter) *API {
	return &API{
		presence: p,
		rooms:    r,
		cascade:  cascade,
		live:     live,
		storage:  store,
		turn:     turn,
	}
}

// RegisterHandler upserts a profile with any device tokens the app
// sends on launch.
func (a *API) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID   string `json:"userId"`
		Name     string `json:"name"`
		PlayerID string `json:"playerId"`
		FCMToken string `json:"fcmToken"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserID == "" || req.Name == "" {
		writeError(w, http.StatusBadRequest, "userId and name required")
		return
	}

	a.upsertProfile(req.UserID, req.Name, presence.Tokens{
		FCMToken: req.FCMToken,
		PlayerID: req.PlayerID,
	})

	writeJSON(w, map[string]bool{"success": true})
}

func (a *API) RegisterFCMHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID   string `json:"userId"`
		FCMToken string `json:"fcmToken"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserID == "" || req.FCMToken == "" {
		writeError(w, http.StatusBadRequest, "userId and fcmToken required")
		return
	}

	a.upsertProfile(req.UserID, "", presence.Tokens{FCMToken: req.FCMToken})

	writeJSON(w, map[string]bool{"success": true})
}

func (a *API) RegisterPlayerHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID   string `json:"userId"`
		PlayerID string `json:"playerId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserID == "" || req.PlayerID == "" {
		writeError(w, http.StatusBadRequest, "userId and playerId required")
		return
	}

	a.upsertProfile(req.UserID, "", presence.Tokens{PlayerID: req.PlayerID})

	writeJSON(w, map[string]bool{"success": true})
}

func (a *API) RegisterVoIPHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID    string `json:"userId"`
		VoIPToken string `json:"voipToken"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserID == "" || req.VoIPToken == "" {
		writeError(w, http.StatusBadRequest, "userId and voipToken required")
		return
	}

	a.upsertProfile(req.UserID, "", presence.Tokens{VoIPToken: req.VoIPToken})

	writeJSON(w, map[string]bool{"success": true})
}

// UsersHandler lists everyone except the requesting user, online users
// first, then by name.
func (a *API) UsersHandler(w http.ResponseWriter, r *http.Request) {
	currentUserID := r.URL.Query().Get("currentUserId")

	records := a.presence.ListOthers(currentUserID)
	users := make([]models.UserSummary, 0, len(records))
	for _, rec := range records {
		users = append(users, models.UserSummary{
			UserID:   rec.UserID,
			Name:     rec.DisplayName,
			Online:   rec.Online,
			LastSeen: rec.LastSeen,
		})
	}

	writeJSON(w, map[string]any{"users": users})
}

// NotifyCallHandler runs the delivery cascade for an incoming call. It
// fails only on malformed input, never on channel failures.
func (a *API) NotifyCallHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CallerID   string `json:"callerId"`
		CallerName string `json:"callerName"`
		CalleeID   string `json:"calleeId"`
		RoomID     string `json:"roomId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.CallerID == "" || req.CalleeID == "" || req.RoomID == "" {
		writeError(w, http.StatusBadRequest, "callerId, calleeId and roomId required")
		return
	}

	results := a.cascade.Ring(r.Context(), notify.Call{
		CallerID:   req.CallerID,
		CallerName: req.CallerName,
		CalleeID:   req.CalleeID,
		RoomID:     req.RoomID,
	})

	writeJSON(w, map[string]any{"success": true, "results": results})
}

// CancelCallHandler retracts a ring by targeting the callee's live
// connection, if there is one.
func (a *API) CancelCallHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CalleeID string `json:"calleeId"`
		RoomID   string `json:"roomId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.CalleeID == "" {
		writeError(w, http.StatusBadRequest, "calleeId required")
		return
	}

	if rec, ok := a.presence.Get(req.CalleeID); ok && rec.LiveAddress != "" {
		a.live.SendTo(rec.LiveAddress, models.ServerMessage{
			Type:   models.ServerMessageTypeCallCancelled,
			RoomID: req.RoomID,
		})
	}

	writeJSON(w, map[string]bool{"success": true})
}

func (a *API) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"status": "ok",
		"rooms":  a.rooms.Count(),
		"users":  a.presence.Count(),
		"online": a.presence.CountOnline(),
	})
}

// RoomsHandler dumps current room membership, a debug aid.
func (a *API) RoomsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, a.rooms.Snapshot())
}

func (a *API) upsertProfile(userID, name string, tokens presence.Tokens) {
	a.presence.UpsertProfile(userID, name, tokens)

	err := a.storage.UpsertProfile(storage.DBProfile{
		UserID:    userID,
		Name:      name,
		FCMToken:  tokens.FCMToken,
		PlayerID:  tokens.PlayerID,
		VoIPToken: tokens.VoIPToken,
	})
	if err != nil {
		// The in-memory registry is already updated; losing the write
		// only costs reachability after a restart.
		log.Printf("failed to persist profile for %s: %v", userID, err)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(map[string]string{"error": msg}); err != nil {
		log.Printf("failed to encode error response: %v", err)
	}
}
