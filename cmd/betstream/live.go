package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alejandrodnm/betstream/config"
	"github.com/alejandrodnm/betstream/internal/adapters/exchange"
	"github.com/alejandrodnm/betstream/internal/adapters/notify"
	"github.com/alejandrodnm/betstream/internal/feed"
	"github.com/alejandrodnm/betstream/internal/ports"
)

// runLive conecta la sesión de streaming y reporta el estado de los
// mercados por consola hasta que llegue la señal de parada.
func runLive(ctx context.Context, cfg *config.Config, table bool) error {
	if len(cfg.Stream.MarketIDs) == 0 {
		return fmt.Errorf("live: no market ids configured")
	}

	creds, err := buildCredentials(cfg)
	if err != nil {
		return err
	}

	store := feed.NewLatestValueStore()
	agg := feed.NewLiveAggregator(store)
	view := feed.NewLiveView(agg, cfg.StaleMaxAge())
	_ = view // expuesta a procesos de decisión; aquí solo reportamos

	session := exchange.NewSession(exchange.SessionConfig{
		Addr:               cfg.Stream.Addr,
		MarketIDs:          cfg.Stream.MarketIDs,
		Fields:             cfg.Stream.Fields,
		HeartbeatMs:        cfg.Stream.HeartbeatMs,
		ReadTimeout:        cfg.ReadTimeout(),
		BaseBackoff:        cfg.BackoffBase(),
		MaxBackoff:         cfg.BackoffMax(),
		DecodeFailureBurst: cfg.Stream.DecodeFailureBurst,
		AuthFailureLimit:   cfg.Stream.AuthFailureLimit,
	}, creds, agg)

	notifier := notify.NewConsole(table)

	errCh := make(chan error, 1)
	go func() { errCh <- session.Run(ctx) }()

	ticker := time.NewTicker(cfg.ReportInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			// Esperar a que el read loop cierre el socket y salga.
			<-errCh
			return nil
		case err := <-errCh:
			// Solo el fallo total de autenticación llega hasta aquí.
			return err
		case <-ticker.C:
			if err := notifier.Notify(ctx, agg.SnapshotAll()); err != nil {
				slog.Warn("notifier error", "err", err)
			}
			slog.Info("live status",
				"state", session.State().String(),
				"applied", store.Applied(),
				"stale_discards", store.Discarded(),
				"decode_failures", session.DecodeFailures(),
				"reconnects", session.Reconnects(),
			)
		}
	}
}

// buildCredentials elige el credential provider: token fijo del entorno si
// existe, si no el cliente del identity service.
func buildCredentials(cfg *config.Config) (ports.CredentialProvider, error) {
	if cfg.Auth.AppKey == "" {
		return nil, fmt.Errorf("live: BETSTREAM_APP_KEY not set")
	}
	if cfg.Auth.SessionToken != "" {
		return exchange.StaticCredentials{Key: cfg.Auth.AppKey, Token: cfg.Auth.SessionToken}, nil
	}
	if cfg.Auth.Username == "" || cfg.Auth.Password == "" {
		return nil, fmt.Errorf("live: set BETSTREAM_SESSION_TOKEN or BETSTREAM_USERNAME/BETSTREAM_PASSWORD")
	}
	return exchange.NewAuthClient(cfg.Auth.IdentityBase, cfg.Auth.AppKey, cfg.Auth.Username, cfg.Auth.Password), nil
}
