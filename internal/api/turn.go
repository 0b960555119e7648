package api

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"net/http"
	"strconv"
	"time"
)

// TurnMinter issues time-limited TURN REST credentials: the username is
// the unix expiry time and the credential is an HMAC-SHA1 over it,
// verified by the TURN server sharing the same secret.
type TurnMinter struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

type TurnCredentials struct {
	Username   int64  `json:"username"`
	Credential string `json:"credential"`
}

func NewTurnMinter(secret string) *TurnMinter {
	return &TurnMinter{
		secret: []byte(secret),
		ttl:    time.Hour,
		now:    time.Now,
	}
}

func (t *TurnMinter) Mint() TurnCredentials {
	username := t.now().Add(t.ttl).Unix()

	h := hmac.New(sha1.New, t.secret)
	h.Write([]byte(strconv.FormatInt(username, 10)))

	return TurnCredentials{
		Username:   username,
		Credential: base64.StdEncoding.EncodeToString(h.Sum(nil)),
	}
}

func (a *API) TurnCredentialsHandler(w http.ResponseWriter, r *http.Request) {
	if a.turn == nil {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, a.turn.Mint())
}
