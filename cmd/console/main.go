package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"azure-iot-serializer/cmd/console/ui"
	model "azure-iot-serializer/models/thermostat"
	"azure-iot-serializer/network"
	"azure-iot-serializer/network/auth"
)

func main() {
	cfgPath := flag.String("config", "config/config.yaml", "Path to configuration file")
	device := flag.String("device", "", "Device id (overrides console.device_id)")
	flag.Parse()

	if err := run(*cfgPath, *device); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func run(cfgPath, device string) error {
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		return err
	}
	if device != "" {
		cfg.DeviceID = device
	}

	m, err := model.NewModel(zerolog.Nop())
	if err != nil {
		return err
	}
	defs, err := ui.Actions(m)
	if err != nil {
		return fmt.Errorf("list actions: %w", err)
	}
	defs = append(defs, ui.DesiredEntry)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	client, err := network.Dial(ctx, network.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
	cancel()
	if err != nil {
		return err
	}
	defer client.Close()

	var signer *auth.Signer
	if cfg.AuthSecret != "" {
		signer = &auth.Signer{Secret: []byte(cfg.AuthSecret), Issuer: cfg.AuthIssuer, ExpMin: cfg.AuthExpMin}
	}
	sess := ui.NewSession(client, cfg.DeviceID, cfg.ChannelPrefix, signer)
	defer sess.Close()

	ps, err := client.Subscribe(context.Background(), sess.Channels.Results, sess.Channels.Reported)
	if err != nil {
		return err
	}
	defer ps.Close()
	go sess.Listen(ps.Channel())

	_, err = tea.NewProgram(ui.NewRootModel(sess, defs), tea.WithAltScreen()).Run()
	return err
}
