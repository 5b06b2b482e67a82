package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"goezsp/internal/blp"
	"goezsp/internal/config"
	"goezsp/internal/dongle"
	"goezsp/internal/ezsp"
	"goezsp/internal/mqttbridge"
	"goezsp/internal/serialio"
	"goezsp/internal/statusweb"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

func main() {
	bootLogger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	cfgPath := "config.yaml"
	if len(os.Args) > 1 {
		cfgPath = os.Args[1]
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		bootLogger.Error("load config", "err", err)
		os.Exit(1)
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)
	logger.Info("ezsp-gateway starting", "version", version)

	loop := serialio.NewEventLoop(0)

	uart, err := serialio.OpenSerialUart(cfg.Serial.Port, cfg.Serial.Baud, loop, logger)
	if err != nil {
		logger.Error("open serial port", "err", err)
		os.Exit(1)
	}
	defer uart.Close()

	timerBuilder := serialio.NewSystemTimerBuilder(loop)

	d := dongle.New(uart, timerBuilder, logger,
		dongle.WithBootloaderOptions(
			blp.WithBannerSuffix(cfg.Bootloader.BannerSuffix),
			blp.WithMenuKeys(cfg.Bootloader.RunKey[0], cfg.Bootloader.UpgradeKey[0]),
		),
	)
	if cfg.Startup.ForceFirmwareUpgradeOnInitTimeout {
		d.ForceFirmwareUpgradeOnInitTimeout()
	}

	facade := ezsp.NewFacade(d, logger)
	facade.RegisterLibraryStateCallback(func(state string) {
		logger.Info("adapter state changed", "state", state)
	})

	var bridge *mqttbridge.Bridge
	if cfg.MQTT.Enabled {
		bridge, err = mqttbridge.NewBridge(d, mqttbridge.Config{
			Broker:      cfg.MQTT.Broker,
			Username:    cfg.MQTT.Username,
			Password:    cfg.MQTT.Password,
			ClientID:    cfg.MQTT.ClientID,
			TopicPrefix: cfg.MQTT.TopicPrefix,
		}, logger)
		if err != nil {
			logger.Error("create mqtt bridge", "err", err)
			os.Exit(1)
		}
		bridge.Start()
	}

	var httpServer *http.Server
	var webServer *statusweb.Server
	if cfg.Status.Enabled {
		var webOpts []statusweb.ServerOption
		if cfg.Status.APIKey != "" {
			webOpts = append(webOpts, statusweb.WithAPIKey(cfg.Status.APIKey))
		}
		webServer = statusweb.NewServer(d, logger, webOpts...)
		httpServer = &http.Server{
			Addr:         cfg.Status.Listen,
			Handler:      webServer,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  120 * time.Second,
		}
		go func() {
			logger.Info("status server starting", "addr", cfg.Status.Listen)
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("status http server", "err", err)
			}
		}()
	}

	loopCtx, loopCancel := context.WithCancel(context.Background())
	go loop.Run(loopCtx)

	loop.Post(facade.Start)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	signal.Stop(sigCh)
	logger.Info("shutting down", "signal", sig)

	if httpServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("status http server shutdown", "err", err)
		}
		shutdownCancel()
		webServer.Stop()
	}
	if bridge != nil {
		bridge.Stop()
	}
	loopCancel()

	logger.Info("goodbye")
}

func newLogger(cfg *config.Config) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.LogLevel()) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	switch cfg.LogFormat() {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, opts)
	default:
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}
