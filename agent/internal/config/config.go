package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

type DB struct {
	Driver string // sqlite or mysql
	DSN    string
}

type Redis struct {
	Addr          string
	Password      string
	DB            int
	ChannelPrefix string
}

type Auth struct {
	Secret string
	Issuer string
	ExpMin int
}

type AppConfig struct {
	DeviceID      string
	LogPath       string
	LogLevel      string
	DB            DB
	Redis         Redis
	Auth          Auth
	InboxPath     string
	StrictDesired bool
}

var cfg AppConfig

// Init loads path (optional; a missing file keeps the defaults) and applies
// IOTAGENT_* environment overrides, e.g. IOTAGENT_AGENT_REDIS_ADDR.
func Init(path string) (AppConfig, error) {
	dataDir := filepath.Join(os.TempDir(), "iot-agent")

	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
	}
	v.SetEnvPrefix("IOTAGENT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// defaults
	v.SetDefault("agent.device_id", "thermostat-01")
	v.SetDefault("agent.log_level", "info")
	v.SetDefault("agent.db.driver", "sqlite")
	v.SetDefault("agent.db.dsn", filepath.Join(dataDir, "agent.db"))
	v.SetDefault("agent.redis.addr", "127.0.0.1:6379")
	v.SetDefault("agent.redis.db", 0)
	v.SetDefault("agent.redis.channel_prefix", "iot")
	v.SetDefault("agent.auth.issuer", "iot-console")
	v.SetDefault("agent.auth.exp_min", 5)
	v.SetDefault("agent.inbox.path", filepath.Join(dataDir, "inbox"))
	v.SetDefault("agent.decoder.strict_desired", false)

	if path != "" {
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
				return AppConfig{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	c := AppConfig{
		DeviceID: v.GetString("agent.device_id"),
		LogPath:  v.GetString("agent.log_path"),
		LogLevel: v.GetString("agent.log_level"),
		DB:       DB{Driver: v.GetString("agent.db.driver"), DSN: v.GetString("agent.db.dsn")},
		Redis: Redis{
			Addr:          v.GetString("agent.redis.addr"),
			Password:      v.GetString("agent.redis.password"),
			DB:            v.GetInt("agent.redis.db"),
			ChannelPrefix: v.GetString("agent.redis.channel_prefix"),
		},
		Auth: Auth{
			Secret: v.GetString("agent.auth.secret"),
			Issuer: v.GetString("agent.auth.issuer"),
			ExpMin: v.GetInt("agent.auth.exp_min"),
		},
		InboxPath:     v.GetString("agent.inbox.path"),
		StrictDesired: v.GetBool("agent.decoder.strict_desired"),
	}
	if c.DeviceID == "" {
		return AppConfig{}, errors.New("config: agent.device_id is empty")
	}
	switch c.DB.Driver {
	case "sqlite", "mysql":
	default:
		return AppConfig{}, fmt.Errorf("config: unsupported db driver %q", c.DB.Driver)
	}
	cfg = c
	return cfg, nil
}

func Get() AppConfig { return cfg }
