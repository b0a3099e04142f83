package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/loykin/landodeck/internal/logger"
)

// FileName is the default config file, kept in the user's home directory.
const FileName = ".landodeckrc.json"

// EnvPrefix prefixes environment overrides, e.g. LANDODECK_SERVER_LISTEN.
const EnvPrefix = "LANDODECK"

// ErrInvalid marks a config that failed validation.
var ErrInvalid = errors.New("invalid config")

// Config is the daemon configuration.
type Config struct {
	LandoPath      string        `mapstructure:"landoPath" json:"landoPath"`
	SitesDirectory string        `mapstructure:"sitesDirectory" json:"sitesDirectory"`
	WordPress      WordPress     `mapstructure:"wordpress" json:"wordpress"`
	SetupComplete  bool          `mapstructure:"setupComplete" json:"setupComplete"`
	Server         Server        `mapstructure:"server" json:"server"`
	Operations     Operations    `mapstructure:"operations" json:"operations"`
	Log            logger.Config `mapstructure:"log" json:"log"`
	History        History       `mapstructure:"history" json:"history"`
}

// WordPress holds the admin account used when installing WordPress sites.
type WordPress struct {
	AdminUser     string `mapstructure:"adminUser" json:"adminUser"`
	AdminPassword string `mapstructure:"adminPassword" json:"adminPassword"`
	AdminEmail    string `mapstructure:"adminEmail" json:"adminEmail"`
}

type Server struct {
	Listen   string `mapstructure:"listen" json:"listen"`
	BasePath string `mapstructure:"basePath" json:"basePath"`
}

// Operations tunes the operation registry and the command runner.
type Operations struct {
	Retention       time.Duration `mapstructure:"retention"`
	MaxRecords      int           `mapstructure:"maxRecords"`
	CleanupInterval time.Duration `mapstructure:"cleanupInterval"`
	CommandTimeout  time.Duration `mapstructure:"commandTimeout"`
	MaxOutputMB     int           `mapstructure:"maxOutputMB"`
}

// MarshalJSON writes durations in their string form so the file reads back through viper.
func (o Operations) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Retention       string `json:"retention"`
		MaxRecords      int    `json:"maxRecords"`
		CleanupInterval string `json:"cleanupInterval"`
		CommandTimeout  string `json:"commandTimeout"`
		MaxOutputMB     int    `json:"maxOutputMB"`
	}{o.Retention.String(), o.MaxRecords, o.CleanupInterval.String(), o.CommandTimeout.String(), o.MaxOutputMB})
}

// History configures the optional finished-operation export.
type History struct {
	DSN string `mapstructure:"dsn" json:"dsn"`
}

// DefaultPath returns ~/.landodeckrc.json, or FileName when the home directory is unknown.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return FileName
	}
	return filepath.Join(home, FileName)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("landoPath", "auto")
	v.SetDefault("sitesDirectory", "")
	v.SetDefault("wordpress.adminUser", "admin")
	v.SetDefault("wordpress.adminPassword", "admin")
	v.SetDefault("wordpress.adminEmail", "admin@example.com")
	v.SetDefault("setupComplete", false)

	v.SetDefault("server.listen", "127.0.0.1:3000")
	v.SetDefault("server.basePath", "/api")

	v.SetDefault("operations.retention", "30m")
	v.SetDefault("operations.maxRecords", 500)
	v.SetDefault("operations.cleanupInterval", "1m")
	v.SetDefault("operations.commandTimeout", "300s")
	v.SetDefault("operations.maxOutputMB", 10)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.file", "")
	v.SetDefault("log.maxSizeMB", logger.DefaultMaxSizeMB)
	v.SetDefault("log.maxBackups", logger.DefaultMaxBackups)
	v.SetDefault("log.maxAgeDays", logger.DefaultMaxAgeDays)
	v.SetDefault("log.compress", false)

	v.SetDefault("history.dsn", "")
}

func newViper(path string) *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("json")
	}
	return v
}

// Defaults returns the configuration used when no file exists.
func Defaults() Config {
	var c Config
	_ = newViper("").Unmarshal(&c)
	return c
}

// Load reads path. A missing file is not an error: defaults apply and the
// Lando executable is auto-detected.
func Load(path string) (Config, error) {
	v := newViper(path)
	found := true
	if err := v.ReadInConfig(); err != nil {
		var nf viper.ConfigFileNotFoundError
		if !errors.As(err, &nf) && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		found = false
	}
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("decode config %s: %w", path, err)
	}
	if !found && (c.LandoPath == "" || c.LandoPath == "auto") {
		c.LandoPath = DetectLandoPath()
	}
	c.normalize()
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c *Config) normalize() {
	c.SitesDirectory = expandHome(strings.TrimSpace(c.SitesDirectory))
	c.LandoPath = strings.TrimSpace(c.LandoPath)
	if c.Server.BasePath != "" && !strings.HasPrefix(c.Server.BasePath, "/") {
		c.Server.BasePath = "/" + c.Server.BasePath
	}
	c.Server.BasePath = strings.TrimRight(c.Server.BasePath, "/")
}

// Validate checks the values the daemon cannot run without.
func (c Config) Validate() error {
	var problems []string
	if c.Server.Listen == "" {
		problems = append(problems, "server.listen is required")
	}
	o := c.Operations
	if o.Retention <= 0 {
		problems = append(problems, "operations.retention must be positive")
	}
	if o.MaxRecords <= 0 {
		problems = append(problems, "operations.maxRecords must be positive")
	}
	if o.CleanupInterval <= 0 {
		problems = append(problems, "operations.cleanupInterval must be positive")
	}
	if o.CommandTimeout <= 0 {
		problems = append(problems, "operations.commandTimeout must be positive")
	}
	if o.MaxOutputMB <= 0 {
		problems = append(problems, "operations.maxOutputMB must be positive")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, "; "))
	}
	return nil
}

// MaxOutputBytes is the runner capture limit in bytes.
func (o Operations) MaxOutputBytes() int {
	return o.MaxOutputMB << 20
}

func expandHome(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~"))
}
