package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"azure-iot-serializer/agent/internal/command"
	"azure-iot-serializer/agent/internal/connection"
	"azure-iot-serializer/agent/internal/config"
	"azure-iot-serializer/agent/internal/db"
	"azure-iot-serializer/agent/internal/device"
	"azure-iot-serializer/agent/internal/inbox"
	"azure-iot-serializer/agent/internal/logger"
	"azure-iot-serializer/agent/internal/repo"
	"azure-iot-serializer/agent/internal/state"
	"azure-iot-serializer/agent/internal/thermostat"
	model "azure-iot-serializer/models/thermostat"
	"azure-iot-serializer/network"
	"azure-iot-serializer/network/auth"
)

func main() {
	var (
		cfgPath    = flag.String("config", "config/config.yaml", "Path to configuration file")
		maxRetries = flag.Int("max-retries", 10, "Maximum retry attempts for redis connection")
		retryDelay = flag.Duration("retry-delay", 1*time.Second, "Base delay between retry attempts")
		noRedis    = flag.Bool("no-redis", false, "Only serve the inbox directory")
	)
	flag.Parse()

	cfg, err := config.Init(*cfgPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Cannot load configuration:", err)
		os.Exit(1)
	}
	if err := logger.Init(cfg.LogPath, cfg.LogLevel); err != nil {
		fmt.Fprintln(os.Stderr, "Cannot open log file:", err)
		os.Exit(1)
	}

	if err := run(cfg, *maxRetries, *retryDelay, !*noRedis); err != nil {
		logger.Error("Agent stopped: ", err)
		os.Exit(1)
	}
}

func run(cfg config.AppConfig, maxRetries int, retryDelay time.Duration, useRedis bool) error {
	adb, err := db.Init(cfg.DB.Driver, cfg.DB.DSN)
	if err != nil {
		return fmt.Errorf("open %s database: %w", cfg.DB.Driver, err)
	}

	tm, err := model.NewModel(logger.With("thermostat"))
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var conn *connection.Manager
	ch := network.ChannelsFor(cfg.Redis.ChannelPrefix, cfg.DeviceID)
	if useRedis {
		conn = connection.New(network.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if err := conn.Connect(ctx, maxRetries, retryDelay); err != nil {
			return err
		}
		defer conn.Close()
	}

	var signer *auth.Signer
	if cfg.Auth.Secret != "" {
		signer = &auth.Signer{Secret: []byte(cfg.Auth.Secret), Issuer: cfg.Auth.Issuer, ExpMin: cfg.Auth.ExpMin}
	} else {
		logger.Warn("agent.auth.secret is empty, envelopes are not authenticated")
	}

	mgr := command.NewManager()
	dev, err := device.New(device.Options{
		ID:       cfg.DeviceID,
		Model:    tm,
		Instance: &model.Thermostat{},
		Manager:  mgr,
		Commands: repo.NewCommandRepository(adb),
		Desired:  repo.NewDesiredRepository(adb),
		Signer:   signer,
		Strict:   cfg.StrictDesired,
		Logger:   logger.With("device"),
		OnState: func(st []byte) error {
			if conn == nil {
				logger.Debugf("State: %s", st)
				return nil
			}
			return conn.Send(ctx, ch.Reported, map[string]any{"device_id": cfg.DeviceID, "state": json.RawMessage(st), "at": time.Now()})
		},
	})
	if err != nil {
		return err
	}
	defer dev.Close()
	thermostat.RegisterHandlers(mgr, dev)

	if err := dev.Restore(); err != nil {
		logger.Warnf("Restoring desired state: %v", err)
	}

	in, err := inbox.New(cfg.InboxPath, dev)
	if err != nil {
		return fmt.Errorf("inbox: %w", err)
	}
	defer in.Close()
	go func() {
		for rep := range in.Start() {
			if conn != nil {
				if err := conn.Send(ctx, ch.Results, rep); err != nil {
					logger.Warnf("Publishing inbox report: %v", err)
				}
			}
		}
	}()

	logger.Infof("Agent %s ready", state.GetDeviceID())
	if conn == nil {
		<-ctx.Done()
	} else if err := conn.Serve(ctx, ch, dev); err != nil {
		return err
	}

	cmds, desired := state.Counters()
	logger.Infof("Shutdown signal received, handled %d commands and %d desired documents", cmds, desired)
	return nil
}
