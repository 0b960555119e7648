package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const oneSignalEndpoint = "https://onesignal.com/api/v1/notifications"

type OneSignalConfig struct {
	AppID   string
	APIKey  string
	PushTTL time.Duration
}

// OneSignalClient is the fallback push channel for devices where the
// app process was killed or the platform throttles FCM delivery.
type OneSignalClient struct {
	appID   string
	apiKey  string
	pushTTL time.Duration

	endpoint string
	client   *http.Client
}

func NewOneSignalClient(cfg OneSignalConfig) *OneSignalClient {
	if cfg.PushTTL == 0 {
		cfg.PushTTL = time.Minute
	}
	return &OneSignalClient{
		appID:    cfg.AppID,
		apiKey:   cfg.APIKey,
		pushTTL:  cfg.PushTTL,
		endpoint: oneSignalEndpoint,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

func (o *OneSignalClient) Push(ctx context.Context, playerID string, call Call) error {
	payload := oneSignalNotification{
		AppID:            o.appID,
		IncludePlayerIDs: []string{playerID},
		Headings:         map[string]string{"en": ringTitle(call)},
		Contents:         map[string]string{"en": ringBody},
		Data:             ringData(call),
		AndroidChannelID: "incoming_call",
		Priority:         10,
		TTL:              int(o.pushTTL.Seconds()),
		// Surface over the lock screen and keep the device awake long
		// enough to ring.
		AndroidVisibility: 1,
		WakeLockTimeout:   15,
		IOSSound:          "default",
		ContentAvailable:  true,
		MutableContent:    true,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Basic "+o.apiKey)

	resp, err := o.client.Do(req)
	if err != nil {
		return fmt.Errorf("onesignal send failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("onesignal send returned %d: %s", resp.StatusCode, detail)
	}

	// OneSignal reports rejection inside a 200 response.
	var result struct {
		Errors json.RawMessage `json:"errors"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("failed to decode onesignal response: %w", err)
	}
	if errs := string(result.Errors); errs != "" && errs != "null" && errs != "[]" {
		return fmt.Errorf("onesignal rejected notification: %s", errs)
	}

	return nil
}

type oneSignalNotification struct {
	AppID             string            `json:"app_id"`
	IncludePlayerIDs  []string          `json:"include_player_ids"`
	Headings          map[string]string `json:"headings"`
	Contents          map[string]string `json:"contents"`
	Data              map[string]string `json:"data"`
	AndroidChannelID  string            `json:"android_channel_id"`
	Priority          int               `json:"priority"`
	TTL               int               `json:"ttl"`
	AndroidVisibility int               `json:"android_visibility"`
	WakeLockTimeout   int               `json:"wake_lock_timeout"`
	IOSSound          string            `json:"ios_sound"`
	ContentAvailable  bool              `json:"content_available"`
	MutableContent    bool              `json:"mutable_content"`
}
