package config

import (
	"reflect"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// DefaultPublicKeyFile is the repo-relative fallback location of the
// platform verification key.
const DefaultPublicKeyFile = "keys/platform_public.pem"

type Config struct {
	Server        ServerConfig        `koanf:"server"`
	Platform      PlatformConfig      `koanf:"platform"`
	Database      DatabaseConfig      `koanf:"database"`
	Redis         RedisConfig         `koanf:"redis"`
	Notifications NotificationsConfig `koanf:"notifications"`
	Reminders     RemindersConfig     `koanf:"reminders"`
	Tasks         TasksConfig         `koanf:"tasks"`
	Dashboard     DashboardConfig     `koanf:"dashboard"`
	Log           LogConfig           `koanf:"log"`
	CORS          CORSConfig          `koanf:"cors"`
}

type ServerConfig struct {
	Host        string      `koanf:"host"`
	Port        int         `koanf:"port"`
	BaseURL     string      `koanf:"base_url"`
	Environment Environment `koanf:"environment"`
}

// PlatformConfig holds the app credentials issued by the booking platform.
type PlatformConfig struct {
	AppID         string `koanf:"app_id"`
	AppSecret     string `koanf:"app_secret"`
	PublicKey     string `koanf:"public_key"`
	PublicKeyFile string `koanf:"public_key_file"`
	APIBaseURL    string `koanf:"api_base_url"`
	TokenURL      string `koanf:"token_url"`
}

type DatabaseConfig struct {
	URL            string `koanf:"url"`
	MigrationsPath string `koanf:"migrations_path"`
	MaxConns       int    `koanf:"max_conns"`
}

type RedisConfig struct {
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
}

type NotificationsConfig struct {
	Email EmailConfig `koanf:"email"`
}

type EmailConfig struct {
	Enabled  bool   `koanf:"enabled"`
	Provider string `koanf:"provider"`
	APIKey   string `koanf:"api_key"`
	From     string `koanf:"from"`
	Endpoint string `koanf:"endpoint"`
}

type RemindersConfig struct {
	Enabled                bool   `koanf:"enabled"`
	AppointmentSchedule    string `koanf:"appointment_schedule"`
	EventSchedule          string `koanf:"event_schedule"`
	AppointmentWindowHours int    `koanf:"appointment_window_hours"`
	EventWindowDays        int    `koanf:"event_window_days"`
}

type TasksConfig struct {
	BufferSize     int `koanf:"buffer_size"`
	Workers        int `koanf:"workers"`
	TimeoutSeconds int `koanf:"timeout_seconds"`
}

// DashboardConfig lists token permissions every dashboard route requires.
// Empty means any authenticated caller.
type DashboardConfig struct {
	RequiredPermissions []string `koanf:"required_permissions"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

type CORSConfig struct {
	AllowedOrigins []string `koanf:"allowed_origins"`
}

// Load reads defaults, then each YAML file in configPaths that exists, then
// SALONBRIDGE_ environment variables. Variables name a key by its path with
// underscores, e.g. SALONBRIDGE_SERVER_BASE_URL for server.base_url; a
// double underscore forces a literal underscore for keys Load does not know.
func Load(configPaths ...string) (*Config, error) {
	k := koanf.New(".")

	// Defaults
	_ = k.Load(confmap.Provider(map[string]any{
		"server.port":                        3000,
		"server.host":                        "0.0.0.0",
		"server.base_url":                    "http://localhost:3000",
		"server.environment":                 string(EnvProduction),
		"platform.public_key_file":           DefaultPublicKeyFile,
		"platform.api_base_url":              "https://www.wixapis.com",
		"platform.token_url":                 "https://www.wixapis.com/oauth/access",
		"database.max_conns":                 10,
		"database.migrations_path":           "migrations",
		"notifications.email.enabled":        false,
		"notifications.email.provider":       "sendgrid",
		"notifications.email.from":           "noreply@salon.com",
		"notifications.email.endpoint":       "https://api.sendgrid.com/v3/mail/send",
		"reminders.enabled":                  true,
		"reminders.appointment_schedule":     "0 * * * *",
		"reminders.event_schedule":           "0 9 * * *",
		"reminders.appointment_window_hours": 24,
		"reminders.event_window_days":        7,
		"tasks.buffer_size":                  256,
		"tasks.workers":                      4,
		"tasks.timeout_seconds":              30,
		"log.level":                          "info",
		"log.format":                         "json",
	}, "."), nil)

	// YAML file (optional)
	for _, path := range configPaths {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			continue
		}
	}

	// Environment variables override everything.
	_ = k.Load(env.Provider(envPrefix, ".", envKey), nil)

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

const envPrefix = "SALONBRIDGE_"

// knownKeys maps each config key, flattened to underscores, to its dotted
// path.
var knownKeys = collectKeys(reflect.TypeFor[Config](), "", map[string]string{})

func collectKeys(t reflect.Type, prefix string, out map[string]string) map[string]string {
	for i := range t.NumField() {
		f := t.Field(i)
		tag := f.Tag.Get("koanf")
		if tag == "" {
			continue
		}
		key := prefix + tag
		if f.Type.Kind() == reflect.Struct {
			collectKeys(f.Type, key+".", out)
			continue
		}
		out[strings.ReplaceAll(key, ".", "_")] = key
	}
	return out
}

func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, envPrefix))
	if known, ok := knownKeys[strings.ReplaceAll(key, "__", "_")]; ok {
		return known
	}
	key = strings.ReplaceAll(key, "__", "\x00")
	key = strings.ReplaceAll(key, "_", ".")
	return strings.ReplaceAll(key, "\x00", "_")
}
