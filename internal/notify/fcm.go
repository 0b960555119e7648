package notify

import (
	"bytes"
	"context"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/c-pro/geche"
	"github.com/golang-jwt/jwt/v5"
)

const (
	firebaseScope  = "https://www.googleapis.com/auth/firebase.messaging"
	jwtBearerGrant = "urn:ietf:params:oauth:grant-type:jwt-bearer"
	tokenCacheKey  = "access-token"
)

type serviceAccount struct {
	ClientEmail string `json:"client_email"`
	PrivateKey  string `json:"private_key"`
	TokenURI    string `json:"token_uri"`
}

type FCMConfig struct {
	ProjectID       string
	CredentialsFile string
	// TokenLifetime is the requested OAuth token lifetime, RefreshSkew
	// how long before expiry a cached token is considered stale.
	TokenLifetime time.Duration
	RefreshSkew   time.Duration
	// PushTTL bounds how long the provider may hold the message before
	// the ring signal goes stale.
	PushTTL time.Duration
}

// FCMClient sends incoming-call data pushes through the FCM HTTP v1
// API, authenticating with a service-account OAuth grant. Access tokens
// are cached and re-minted only when within RefreshSkew of expiry.
type FCMClient struct {
	projectID     string
	clientEmail   string
	key           *rsa.PrivateKey
	tokenLifetime time.Duration
	pushTTL       time.Duration

	endpoint string
	tokenURL string
	client   *http.Client
	tokens   geche.Geche[string, string]
	now      func() time.Time
}

func NewFCMClient(ctx context.Context, cfg FCMConfig) (*FCMClient, error) {
	raw, err := os.ReadFile(cfg.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read FCM credentials: %w", err)
	}

	var sa serviceAccount
	if err := json.Unmarshal(raw, &sa); err != nil {
		return nil, fmt.Errorf("failed to parse FCM credentials: %w", err)
	}
	if sa.ClientEmail == "" || sa.PrivateKey == "" || sa.TokenURI == "" {
		return nil, fmt.Errorf("FCM credentials missing client_email, private_key or token_uri")
	}

	key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(sa.PrivateKey))
	if err != nil {
		return nil, fmt.Errorf("invalid FCM private key: %w", err)
	}

	if cfg.TokenLifetime == 0 {
		cfg.TokenLifetime = time.Hour
	}
	if cfg.RefreshSkew == 0 {
		cfg.RefreshSkew = 5 * time.Minute
	}
	if cfg.PushTTL == 0 {
		cfg.PushTTL = time.Minute
	}

	return &FCMClient{
		projectID:     cfg.ProjectID,
		clientEmail:   sa.ClientEmail,
		key:           key,
		tokenLifetime: cfg.TokenLifetime,
		pushTTL:       cfg.PushTTL,
		endpoint:      fmt.Sprintf("https://fcm.googleapis.com/v1/projects/%s/messages:send", cfg.ProjectID),
		tokenURL:      sa.TokenURI,
		client:        &http.Client{Timeout: 10 * time.Second},
		tokens:        geche.NewMapTTLCache[string, string](ctx, cfg.TokenLifetime-cfg.RefreshSkew, time.Minute),
		now:           time.Now,
	}, nil
}

func (f *FCMClient) Push(ctx context.Context, deviceToken string, call Call) error {
	accessToken, err := f.accessToken(ctx)
	if err != nil {
		return fmt.Errorf("failed to obtain access token: %w", err)
	}

	msg := fcmSendRequest{
		Message: fcmMessage{
			Token: deviceToken,
			Notification: &fcmNotification{
				Title: ringTitle(call),
				Body:  ringBody,
			},
			Data: ringData(call),
			Android: &fcmAndroid{
				// High priority exempts the message from doze batching
				// so the device rings immediately.
				Priority:     "HIGH",
				TTL:          fmt.Sprintf("%ds", int(f.pushTTL.Seconds())),
				DirectBootOK: true,
			},
			APNS: &fcmAPNS{
				Headers: map[string]string{
					"apns-priority":   "10",
					"apns-expiration": fmt.Sprintf("%d", f.now().Add(f.pushTTL).Unix()),
				},
			},
		},
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("fcm send failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("fcm send returned %d: %s", resp.StatusCode, detail)
	}

	return nil
}

// accessToken returns the cached OAuth token, minting a fresh one via
// the signed JWT grant when the cache entry has expired.
func (f *FCMClient) accessToken(ctx context.Context) (string, error) {
	if token, err := f.tokens.Get(tokenCacheKey); err == nil {
		return token, nil
	}

	now := f.now()
	assertion, err := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
		"iss":   f.clientEmail,
		"scope": firebaseScope,
		"aud":   f.tokenURL,
		"iat":   now.Unix(),
		"exp":   now.Add(f.tokenLifetime).Unix(),
	}).SignedString(f.key)
	if err != nil {
		return "", fmt.Errorf("failed to sign assertion: %w", err)
	}

	form := url.Values{
		"grant_type": {jwtBearerGrant},
		"assertion":  {assertion},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("token exchange failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("token exchange returned %d: %s", resp.StatusCode, detail)
	}

	var tokenResp struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return "", fmt.Errorf("failed to decode token response: %w", err)
	}
	if tokenResp.AccessToken == "" {
		return "", fmt.Errorf("token response missing access_token")
	}

	f.tokens.Set(tokenCacheKey, tokenResp.AccessToken)

	return tokenResp.AccessToken, nil
}

type fcmSendRequest struct {
	Message fcmMessage `json:"message"`
}

type fcmMessage struct {
	Token        string            `json:"token"`
	Notification *fcmNotification  `json:"notification,omitempty"`
	Data         map[string]string `json:"data,omitempty"`
	Android      *fcmAndroid       `json:"android,omitempty"`
	APNS         *fcmAPNS          `json:"apns,omitempty"`
}

type fcmNotification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type fcmAndroid struct {
	Priority     string `json:"priority,omitempty"`
	TTL          string `json:"ttl,omitempty"`
	DirectBootOK bool   `json:"direct_boot_ok,omitempty"`
}

type fcmAPNS struct {
	Headers map[string]string `json:"headers,omitempty"`
}
