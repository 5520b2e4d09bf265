package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"boxguard/internal/api"
	"boxguard/internal/command"
	"boxguard/internal/config"
	"boxguard/internal/core"
	"boxguard/internal/device"
	"boxguard/internal/logging"
	"boxguard/internal/mailer"
	"boxguard/internal/outbox"
	"boxguard/internal/photos"
	"boxguard/internal/readings"
	"boxguard/internal/storage"
	"boxguard/internal/tasks"
	"boxguard/internal/telemetry"
	"boxguard/internal/work"
)

const version = "1.0.0"

func main() {
	configPath := flag.String("config", "boxguard.yaml", "path to configuration file")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("boxguard %s\n", version)
		return
	}

	path := config.ResolvePath(*configPath)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := config.Save(path, config.DefaultConfig()); err != nil {
			fmt.Fprintf(os.Stderr, "write default config: %v\n", err)
			os.Exit(1)
		}
	}
	manager, err := config.NewManager(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	cfg := manager.Get()

	logger := logging.NewLogger(cfg.LogLevel)
	logger.Info("starting boxguard", "version", version, "config", path)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The durable buffer is load-bearing: without it events would be lost
	// across restarts, so failure to open it is fatal.
	buffer, err := storage.OpenBuffer(cfg.Storage.LocalDSN)
	if err != nil {
		logger.Error("open local buffer failed", "err", err)
		os.Exit(1)
	}
	defer buffer.Close()
	if err := buffer.Init(ctx); err != nil {
		logger.Error("init local buffer failed", "err", err)
		os.Exit(1)
	}

	// The remote mirror is best-effort: the box keeps running offline and
	// the outbox catches up when the store comes back.
	var remote *storage.Remote
	if cfg.Storage.RemoteDSN != "" {
		remote, err = storage.OpenRemote(cfg.Storage.RemoteDSN)
		if err != nil {
			logger.Warn("remote store unavailable, running local-only", "err", err)
		} else {
			defer remote.Close()
			if err := remote.Init(ctx); err != nil {
				logger.Warn("remote schema init failed", "err", err)
			}
		}
	}

	devices := core.Devices{
		Motion: &device.SimMotion{},
		Env:    device.NewSimEnv(),
		Badge:  &device.SimBadge{},
		LED:    &device.SimLED{},
		Siren:  &device.SimSiren{},
		Lock:   device.NewSimLock(90, 0),
	}
	camera := &device.SimCamera{Dir: cfg.Camera.Dir, Logger: logging.Component(logger, "camera")}

	pool := work.NewPool(cfg.Pipeline.Workers, logging.Component(logger, "work"))
	queue := tasks.NewQueue(cfg.Pipeline.TaskBuffer, logging.Component(logger, "tasks"))
	readingStore := readings.NewStore(1000)
	imageStore := photos.NewStore(cfg.Camera.Dir)

	ctrl := core.NewController(cfg, devices, queue, buffer, readingStore, pool,
		logging.Component(logger, "core"))

	client := telemetry.NewClient(manager, logging.Component(logger, "telemetry"))
	defer client.Close()
	alerts := mailer.New(cfg.Email, logging.Component(logger, "mailer"))

	runner := tasks.NewRunner(queue, client, camera, devices.Siren, alerts, ctrl, imageStore.Path,
		logging.Component(logger, "tasks"))
	go runner.Run(ctx)

	dispatcher := command.NewDispatcher(ctrl, devices.LED, devices.Siren, devices.Lock, pool,
		logging.Component(logger, "command"))
	telemetry.StartSubscriber(ctx, manager, dispatcher, logging.Component(logger, "telemetry"))

	if remote != nil {
		engine := outbox.NewEngine(buffer, remote, cfg.Storage.SyncInterval, cfg.Storage.SyncBatch,
			cfg.Storage.Retention, logging.Component(logger, "outbox"))
		go engine.Run(ctx)
	}

	api.Start(ctx, manager, ctrl, dispatcher, client, imageStore, readingStore,
		logging.Component(logger, "api"), version)

	watchStop := make(chan struct{})
	go manager.Watch(3*time.Second,
		func(next *config.Config) {
			logger.Info("configuration reloaded")
			ctrl.UpdateConfig(next)
		},
		func(err error) {
			logger.Warn("configuration reload failed", "err", err)
		},
		watchStop)

	ctrl.Start(ctx)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("shutdown signal received", "signal", sig.String())

	close(watchStop)
	cancel()
	ctrl.Wait(2 * time.Second)
	ctrl.Shutdown()
	logger.Info("boxguard stopped")
}
