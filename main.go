package main

import (
	"context"
	"errors"
	"log"
	oshttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"ringlink/internal/api"
	"ringlink/internal/config"
	"ringlink/internal/http"
	"ringlink/internal/notify"
	"ringlink/internal/presence"
	"ringlink/internal/rooms"
	"ringlink/internal/storage"
	"ringlink/internal/ws"
)

func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	bbStorage, err := storage.NewBboltStorage(cfg.DBFile)
	if err != nil {
		return err
	}
	defer func() { _ = bbStorage.Close() }()

	presenceStore := presence.NewStore()

	// Reload stored profiles so push reachability survives restarts.
	// Live connection and room state is rebuilt by reconnecting clients.
	profiles, err := bbStorage.ListProfiles()
	if err != nil {
		return err
	}
	for _, p := range profiles {
		presenceStore.UpsertProfile(p.UserID, p.Name, presence.Tokens{
			FCMToken:  p.FCMToken,
			PlayerID:  p.PlayerID,
			VoIPToken: p.VoIPToken,
		})
	}

	roomStore := rooms.NewStore()
	relay := ws.NewRelay(presenceStore, roomStore)

	var fcm notify.Pusher
	if cfg.FCMProjectID != "" {
		client, err := notify.NewFCMClient(ctx, notify.FCMConfig{
			ProjectID:       cfg.FCMProjectID,
			CredentialsFile: cfg.FCMCredentialsFile,
			TokenLifetime:   cfg.FCMTokenLifetime,
			RefreshSkew:     cfg.FCMTokenRefreshSkew,
			PushTTL:         cfg.PushTTL,
		})
		if err != nil {
			return err
		}
		fcm = client
	} else {
		log.Println("FCM_PROJECT_ID not set, FCM channel disabled")
	}

	var oneSignal notify.Pusher
	if cfg.OneSignalAppID != "" {
		oneSignal = notify.NewOneSignalClient(notify.OneSignalConfig{
			AppID:   cfg.OneSignalAppID,
			APIKey:  cfg.OneSignalAPIKey,
			PushTTL: cfg.PushTTL,
		})
	} else {
		log.Println("ONESIGNAL_APP_ID not set, OneSignal channel disabled")
	}

	cascade := notify.NewCascade(presenceStore, relay, fcm, oneSignal)

	var turn *api.TurnMinter
	if cfg.TurnSecret != "" {
		turn = api.NewTurnMinter(cfg.TurnSecret)
	}

	apiHandlers := api.New(presenceStore, roomStore, cascade, relay, bbStorage, turn)
	wsServer := ws.NewServer(relay)
	apiServer := http.NewAPIServer(apiHandlers, wsServer, cfg.APIAddr)

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := apiServer.Start()
		if err != nil && err != oshttp.ErrServerClosed {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		log.Println("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := apiServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
		return nil
	})

	return g.Wait()
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("Application error: %v", err)
	}
}
