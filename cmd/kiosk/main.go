package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"presence-kiosk-go/internal/camera"
	"presence-kiosk-go/internal/cleanup"
	"presence-kiosk-go/internal/config"
	"presence-kiosk-go/internal/core/session"
	"presence-kiosk-go/internal/feedback"
	"presence-kiosk-go/internal/gateway"
	"presence-kiosk-go/internal/geo"
	"presence-kiosk-go/internal/journal"
	"presence-kiosk-go/internal/logger"
	notifymqtt "presence-kiosk-go/internal/notify/mqtt"
	"presence-kiosk-go/internal/server/sse"
	"presence-kiosk-go/internal/server/web"
	"presence-kiosk-go/internal/vision/face"
	"presence-kiosk-go/internal/vision/gesture"

	log "github.com/sirupsen/logrus"
)

func main() {
	configPath := flag.String("config", "/config/config.yaml", "path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := logger.Init(cfg.Log); err != nil {
		log.Errorf("Failed to initialize logger completely: %v", err)
	}

	// Local journal of attempts and outcomes. The kiosk keeps running
	// without it, it just loses its activity view.
	jnl, err := journal.Open(cfg.DB, cfg.Server.SnapshotDir)
	if err != nil {
		log.WithError(err).Error("Failed to open journal, continuing without local records")
		jnl = nil
	}

	var cleanupService *cleanup.Service
	if jnl != nil {
		cleanupService = cleanup.NewService(jnl.DB(), cfg.Cleanup.RetentionDays, cfg.Server.SnapshotDir, 24*time.Hour)
		if cleanupService != nil {
			cleanupService.StartBackgroundCleanup()
		}
	}

	hub := sse.NewHub()
	go hub.Run()

	backend := gateway.NewClient(cfg.Backend)
	surface := feedback.NewSurface(hub, []string{"en"}, backend.RecentActivity)

	frames := camera.NewDeviceSource(cfg.Camera)
	faces := face.NewClient(cfg.Face)
	gestures := gesture.NewClient(cfg.Gesture)

	deps := session.Deps{
		Frames:   frames,
		Faces:    faces,
		Gestures: gestures,
		Gateway:  backend,
		Surface:  surface,
	}

	if locator := geo.NewStaticProvider(cfg.Geo); locator != nil {
		deps.Locator = locator
	}
	if jnl != nil {
		deps.Recorder = jnl
	}

	notifier := notifymqtt.NewNotifier(cfg.MQTT)
	if notifier != nil {
		if err := notifier.Start(); err != nil {
			log.Warnf("Failed to start MQTT notifier: %v. Continuing without MQTT.", err)
			notifier = nil
		} else {
			deps.Notifier = notifier
		}
	}

	orch := session.New(deps, session.Options{
		RecognitionCooldown:  time.Duration(cfg.Cooldowns.Recognition) * time.Second,
		AttendanceCooldown:   time.Duration(cfg.Cooldowns.Attendance) * time.Second,
		VoiceCooldown:        time.Duration(cfg.Cooldowns.VoicePrompt) * time.Second,
		RePromptDelay:        time.Duration(cfg.Cooldowns.RePrompt) * time.Second,
		GesturePromptTimeout: time.Duration(cfg.Cooldowns.GesturePrompt) * time.Second,
		NoFaceStreakLimit:    cfg.Cooldowns.NoFaceStreak,
		PresenceGesture:      cfg.Gesture.PresenceLabel,
		BreakGesture:         cfg.Gesture.BreakLabel,
		GestureConfidence:    cfg.Gesture.ConfidenceThreshold,
		EmotionThreshold:     cfg.Face.EmotionThreshold,
		GeoTimeout:           time.Duration(cfg.Geo.TimeoutSeconds) * time.Second,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := orch.Start(ctx); err != nil {
		log.Fatalf("Failed to start kiosk session: %v", err)
	}

	tickInterval := time.Second
	if cfg.Camera.FPS > 0 {
		tickInterval = time.Second / time.Duration(cfg.Camera.FPS)
	}
	ticks := session.NewIntervalSource(tickInterval)
	go orch.Run(ctx, ticks)

	server := web.NewServer(cfg, hub, jnl, frames, orch)
	go func() {
		if err := server.Run(); err != nil {
			log.Fatalf("Web server failed: %v", err)
		}
	}()

	// Block until shutdown is requested.
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("Shutting down...")

	cancel()
	ticks.Stop()
	orch.Stop()
	if notifier != nil {
		notifier.Stop()
	}
	if cleanupService != nil {
		cleanupService.StopBackgroundCleanup()
	}

	log.Info("Kiosk stopped.")
}
