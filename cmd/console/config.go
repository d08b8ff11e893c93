package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

type consoleConfig struct {
	DeviceID      string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	ChannelPrefix string
	AuthSecret    string
	AuthIssuer    string
	AuthExpMin    int
}

// loadConfig reads the console section of path, with IOTCONSOLE_* overrides.
func loadConfig(path string) (consoleConfig, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
	}
	v.SetEnvPrefix("IOTCONSOLE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("console.device_id", "thermostat-01")
	v.SetDefault("console.redis.addr", "127.0.0.1:6379")
	v.SetDefault("console.redis.db", 0)
	v.SetDefault("console.redis.channel_prefix", "iot")
	v.SetDefault("console.auth.issuer", "iot-console")
	v.SetDefault("console.auth.exp_min", 5)

	if path != "" {
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
				return consoleConfig{}, fmt.Errorf("read config: %w", err)
			}
		}
	}
	return consoleConfig{
		DeviceID:      v.GetString("console.device_id"),
		RedisAddr:     v.GetString("console.redis.addr"),
		RedisPassword: v.GetString("console.redis.password"),
		RedisDB:       v.GetInt("console.redis.db"),
		ChannelPrefix: v.GetString("console.redis.channel_prefix"),
		AuthSecret:    v.GetString("console.auth.secret"),
		AuthIssuer:    v.GetString("console.auth.issuer"),
		AuthExpMin:    v.GetInt("console.auth.exp_min"),
	}, nil
}
