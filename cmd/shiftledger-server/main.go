package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BrandonDHaskell/shiftledger/internal/config"
	"github.com/BrandonDHaskell/shiftledger/internal/db"
	"github.com/BrandonDHaskell/shiftledger/internal/health"
	"github.com/BrandonDHaskell/shiftledger/internal/httpapi"
	"github.com/BrandonDHaskell/shiftledger/internal/ledger"
	"github.com/BrandonDHaskell/shiftledger/internal/ledger/service"
	"github.com/BrandonDHaskell/shiftledger/internal/ledger/types"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil)).With("app", "shiftledger-server")

	if err := run(logger); err != nil {
		logger.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	cfgPath := os.Getenv("SHIFTLEDGER_CONFIG_PATH")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	host, _ := os.Hostname()
	l, closeDB, err := ledger.Open(ctx, db.Config{Path: cfg.DBPath, Env: cfg.Env}, ledger.Options{
		Logger:   logger,
		Location: loc,
		Policy: service.AttendancePolicy{
			RequireLocation:           cfg.RequireLocation,
			RequireVerifiedCredential: cfg.RequireVerifiedCredential,
		},
		AuditContext: map[string]string{"host": host, "env": cfg.Env},
	})
	if err != nil {
		return err
	}
	defer closeDB()

	settings, err := l.Settings.Update(ctx, settingsPatch(cfg))
	if err != nil {
		return err
	}
	logger.Info("ledger ready",
		"db", cfg.DBPath,
		"timezone", loc.String(),
		"encryption", settings.EncryptionEnabled,
		"anomaly_detection", settings.AnomalyDetectionEnabled,
	)

	// gRPC health (optional)
	if cfg.GRPCAddr != "" {
		hs, err := health.New(cfg.GRPCAddr, logger)
		if err != nil {
			return err
		}
		l.Integrity.OnReport(hs.Observe)
		go func() {
			if err := hs.Start(); err != nil {
				logger.Error("grpc health error", "error", err)
				stop()
			}
		}()
		defer hs.Stop()
	}

	// Periodic tasks
	securityCheck := service.NewScheduler(func(ctx context.Context) error {
		_, anomalies, err := l.SecurityCheck(ctx)
		if len(anomalies) > 0 {
			logger.Warn("attendance anomalies detected", "count", len(anomalies))
		}
		return err
	}, service.ScheduleConfig{
		Name:     "security_check",
		Interval: time.Duration(settings.IntegrityCheckIntervalMs) * time.Millisecond,
	}, logger)
	securityCheck.Start(ctx)
	defer securityCheck.Stop()

	retention := service.NewScheduler(func(ctx context.Context) error {
		ran, res, err := l.Retention.RunIfDue(ctx)
		if ran && err == nil {
			logger.Info("retention cleanup finished",
				"removed_events", res.RemovedEvents,
				"removed_logs", res.RemovedLogs,
			)
		}
		return err
	}, service.ScheduleConfig{Name: "retention", Interval: cfg.RetentionPoll()}, logger)
	retention.Start(ctx)
	defer retention.Stop()

	// Security flags follow config edits while running.
	if err := config.Watch(cfgPath, logger, func(next *config.Config) {
		if _, err := l.Settings.Update(ctx, flagsPatch(next)); err != nil {
			logger.Error("apply reloaded settings", "error", err)
		}
	}); err != nil {
		logger.Warn("config watch disabled", "error", err)
	}

	// HTTP
	srv := httpapi.NewServer(httpapi.Dependencies{
		Logger: logger,
		Addr:   cfg.HTTPAddr,
		Ledger: l,
	})

	go func() {
		logger.Info("listening", "addr", cfg.HTTPAddr)
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// settingsPatch seeds the persisted settings from the configuration at
// startup.
func settingsPatch(cfg *config.Config) types.SettingsPatch {
	p := flagsPatch(cfg)
	if iv := cfg.IntegrityInterval(); iv > 0 {
		ms := iv.Milliseconds()
		p.IntegrityCheckIntervalMs = &ms
	}
	return p
}

func flagsPatch(cfg *config.Config) types.SettingsPatch {
	enc := cfg.Security.EncryptionEnabled
	anom := cfg.Security.AnomalyDetectionEnabled
	audit := cfg.Security.AuditLoggingEnabled
	return types.SettingsPatch{
		EncryptionEnabled:       &enc,
		AnomalyDetectionEnabled: &anom,
		AuditLoggingEnabled:     &audit,
	}
}
