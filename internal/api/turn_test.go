package api

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"
)

func TestTurnMinter_Mint(t *testing.T) {
	minter := NewTurnMinter("s3cret")
	minter.now = func() time.Time { return time.Unix(1_700_000_000, 0) }

	creds := minter.Mint()

	if creds.Username != 1_700_000_000+3600 {
		t.Errorf("unexpected username %d", creds.Username)
	}

	h := hmac.New(sha1.New, []byte("s3cret"))
	h.Write([]byte(strconv.FormatInt(creds.Username, 10)))
	want := base64.StdEncoding.EncodeToString(h.Sum(nil))
	if creds.Credential != want {
		t.Errorf("credential mismatch: got %s want %s", creds.Credential, want)
	}
}

func TestTurnCredentialsHandler(t *testing.T) {
	env := newTestEnv(t)
	env.api.turn = NewTurnMinter("s3cret")

	req := httptest.NewRequest(http.MethodGet, "/turn-credentials", nil)
	w := httptest.NewRecorder()
	env.api.TurnCredentialsHandler(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var creds TurnCredentials
	if err := json.NewDecoder(w.Body).Decode(&creds); err != nil {
		t.Fatal(err)
	}
	if creds.Credential == "" {
		t.Error("empty credential")
	}
}

func TestTurnCredentialsHandler_Disabled(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/turn-credentials", nil)
	w := httptest.NewRecorder()
	env.api.TurnCredentialsHandler(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 when no secret configured, got %d", w.Code)
	}
}
