package config

import (
	"fmt"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// ConfigPathEnvVar overrides the YAML config file location.
const ConfigPathEnvVar = "CONFIG_PATH"

var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/eduadmin-sync/config.yaml",
}

type Config struct {
	EduAdmin EduAdminConfig `koanf:"eduadmin"`
	Import   ImportConfig   `koanf:"import"`
	Content  ContentConfig  `koanf:"content"`
	State    StateConfig    `koanf:"state"`
	HTTP     HTTPConfig     `koanf:"http"`
	Export   ExportConfig   `koanf:"export"`
	Log      LogConfig      `koanf:"log"`
}

type EduAdminConfig struct {
	BaseURL        string        `koanf:"base_url" validate:"required,url"`
	TokenURL       string        `koanf:"token_url" validate:"required,url"`
	Username       string        `koanf:"username"`
	Password       string        `koanf:"password"`
	Timezone       string        `koanf:"timezone" validate:"required"`
	TokenTimeout   time.Duration `koanf:"token_timeout" validate:"gt=0"`
	RequestTimeout time.Duration `koanf:"request_timeout" validate:"gt=0"`
	PastMonths     int           `koanf:"past_months" validate:"gte=0"`
	MaxAttempts    int           `koanf:"max_attempts" validate:"gte=1"`
}

type ImportConfig struct {
	RetentionMonths int           `koanf:"retention_months" validate:"gte=0"`
	ThrottleEvery   int           `koanf:"throttle_every" validate:"gte=0"`
	ThrottlePause   time.Duration `koanf:"throttle_pause" validate:"gte=0"`
	DurationFieldID int           `koanf:"duration_field_id"`
	LanguageFieldID int           `koanf:"language_field_id"`
	Interval        time.Duration `koanf:"interval" validate:"gt=0"`
	HistorySize     int           `koanf:"history_size" validate:"gt=0"`
	MediaDir        string        `koanf:"media_dir" validate:"required"`
}

type ContentConfig struct {
	DSN string `koanf:"dsn" validate:"required"`
}

type StateConfig struct {
	DSN string `koanf:"dsn" validate:"required"`
}

type HTTPConfig struct {
	Addr          string `koanf:"addr" validate:"required"`
	JWTSecret     string `koanf:"jwt_secret"`
	RequiredScope string `koanf:"required_scope"`
	TriggerRate   int    `koanf:"trigger_rate" validate:"gte=0"`
}

type ExportConfig struct {
	SFTP SFTPConfig `koanf:"sftp"`
}

type SFTPConfig struct {
	Host                  string `koanf:"host"`
	Port                  int    `koanf:"port"`
	User                  string `koanf:"user"`
	Pass                  string `koanf:"pass"`
	Dir                   string `koanf:"dir"`
	KnownHosts            string `koanf:"known_hosts"`
	InsecureIgnoreHostKey bool   `koanf:"insecure_ignore_host_key"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format" validate:"omitempty,oneof=json console"`
}

func defaultConfig() Config {
	return Config{
		EduAdmin: EduAdminConfig{
			BaseURL:        "https://api.eduadmin.se",
			TokenURL:       "https://api.eduadmin.se/token",
			Timezone:       "Europe/Oslo",
			TokenTimeout:   20 * time.Second,
			RequestTimeout: 60 * time.Second,
			PastMonths:     12,
			MaxAttempts:    1,
		},
		Import: ImportConfig{
			RetentionMonths: 6,
			ThrottleEvery:   50,
			ThrottlePause:   200 * time.Millisecond,
			DurationFieldID: 8110,
			LanguageFieldID: 8166,
			Interval:        6 * time.Hour,
			HistorySize:     50,
			MediaDir:        "data/media",
		},
		Content: ContentConfig{DSN: "sqlite://data/content.db"},
		State:   StateConfig{DSN: "file://data/state.json"},
		HTTP: HTTPConfig{
			Addr:          ":8080",
			RequiredScope: "manage_options",
			TriggerRate:   6,
		},
		Export: ExportConfig{
			SFTP: SFTPConfig{Port: 22, Dir: "/inbound", InsecureIgnoreHostKey: true},
		},
		Log: LogConfig{Level: "info", Format: "json"},
	}
}

// Load layers defaults, an optional YAML file and environment variables.
// path may be empty, in which case CONFIG_PATH and DefaultConfigPaths are searched.
func Load(path string) (Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return Config{}, fmt.Errorf("config: load defaults: %w", err)
	}

	if path == "" {
		path = findConfigFile()
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("config: load file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransform), nil); err != nil {
		return Config{}, fmt.Errorf("config: load env: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config: invalid: %w", err)
	}
	if _, err := time.LoadLocation(c.EduAdmin.Timezone); err != nil {
		return fmt.Errorf("config: invalid eduadmin.timezone %q: %w", c.EduAdmin.Timezone, err)
	}
	return nil
}

// HasCredentials reports whether the EduAdmin username and password are set.
func (c Config) HasCredentials() bool {
	return c.EduAdmin.Username != "" && c.EduAdmin.Password != ""
}

func findConfigFile() string {
	if p := getenv(ConfigPathEnvVar, ""); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

var envMappings = map[string]string{
	"eduadmin_base_url":        "eduadmin.base_url",
	"eduadmin_token_url":       "eduadmin.token_url",
	"eduadmin_username":        "eduadmin.username",
	"eduadmin_password":        "eduadmin.password",
	"eduadmin_timezone":        "eduadmin.timezone",
	"eduadmin_token_timeout":   "eduadmin.token_timeout",
	"eduadmin_request_timeout": "eduadmin.request_timeout",
	"eduadmin_past_months":     "eduadmin.past_months",
	"eduadmin_max_attempts":    "eduadmin.max_attempts",

	"import_retention_months":  "import.retention_months",
	"import_throttle_every":    "import.throttle_every",
	"import_throttle_pause":    "import.throttle_pause",
	"import_duration_field_id": "import.duration_field_id",
	"import_language_field_id": "import.language_field_id",
	"import_interval":          "import.interval",
	"import_history_size":      "import.history_size",
	"import_media_dir":         "import.media_dir",

	"content_dsn": "content.dsn",
	"state_dsn":   "state.dsn",

	"http_addr":           "http.addr",
	"http_jwt_secret":     "http.jwt_secret",
	"http_required_scope": "http.required_scope",
	"http_trigger_rate":   "http.trigger_rate",

	"sftp_host":                     "export.sftp.host",
	"sftp_port":                     "export.sftp.port",
	"sftp_user":                     "export.sftp.user",
	"sftp_pass":                     "export.sftp.pass",
	"sftp_dir":                      "export.sftp.dir",
	"sftp_known_hosts":              "export.sftp.known_hosts",
	"sftp_insecure_ignore_hostkey":  "export.sftp.insecure_ignore_host_key",
	"sftp_insecure_ignore_host_key": "export.sftp.insecure_ignore_host_key",

	"log_level":  "log.level",
	"log_format": "log.format",
}

// envTransform maps EDUADMIN_USERNAME style variables to koanf paths.
// Unknown variables map to "" and are ignored by the provider.
func envTransform(key string) string {
	return envMappings[strings.ToLower(key)]
}

func getenv(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}
