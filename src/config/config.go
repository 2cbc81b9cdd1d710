// Package config loads the rig-link ground station's runtime settings
// from a config file (YAML/JSON/TOML, whatever viper's config name
// resolves to on disk) layered under environment variable overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/spf13/viper"
)

// UDPLinkConfig describes one orientation/telemetry UDP session: either
// the ground station binds (server) or dials out to a rig (client).
type UDPLinkConfig struct {
	Server        bool    `mapstructure:"server"`
	Host          string  `mapstructure:"host"`
	Port          int     `mapstructure:"port"`
	NumInputs     uint16  `mapstructure:"num_inputs"`
	NumOutputs    uint16  `mapstructure:"num_outputs"`
	LocalMaxAge   float64 `mapstructure:"local_max_age"`
	SocketTimeout float64 `mapstructure:"socket_timeout"`
	DelayTracking bool    `mapstructure:"delay_tracking"`
}

// Config is the top-level runtime configuration for the ground station
// process: the command/auth TCP service, the management website, the
// persistent datastore, and the UDP links to each rig.
type Config struct {
	DBPath  string `mapstructure:"db_path"`
	HTMLDir string `mapstructure:"html_dir"`

	APIAddr string `mapstructure:"api_addr"`
	WebAddr string `mapstructure:"web_addr"`

	CleanupPort int `mapstructure:"cleanup_port"`

	// ArchiveDSN, if set, is a Postgres connection string telemetry is
	// mirrored to for long-term retention. Empty disables archiving.
	ArchiveDSN string `mapstructure:"archive_dsn"`

	ExcavatorLink UDPLinkConfig `mapstructure:"excavator_link"`
	MotionLink    UDPLinkConfig `mapstructure:"motion_link"`
}

func defaults() Config {
	return Config{
		DBPath:      "./data.db",
		HTMLDir:     "html",
		APIAddr:     ":8081",
		WebAddr:     ":8080",
		CleanupPort: 9090,
		ExcavatorLink: UDPLinkConfig{
			Server:        true,
			Port:          5005,
			NumInputs:     6,
			NumOutputs:    4,
			LocalMaxAge:   1.0,
			SocketTimeout: 0.5,
			DelayTracking: true,
		},
		MotionLink: UDPLinkConfig{
			Server:        true,
			Port:          5006,
			NumInputs:     4,
			NumOutputs:    6,
			LocalMaxAge:   1.0,
			SocketTimeout: 0.5,
			DelayTracking: true,
		},
	}
}

// Load reads configuration from the given file path (if it exists),
// falling back to built-in defaults, then applies RIGLINK_-prefixed
// environment variable overrides (e.g. RIGLINK_DB_PATH).
func Load(path string) (*Config, error) {
	v := viper.New()

	cfg := defaults()
	if err := v.MergeConfigMap(structToMap(cfg)); err != nil {
		return nil, fmt.Errorf("config: seeding defaults failed: %w", err)
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.MergeInConfig(); err != nil {
			_, notFound := err.(viper.ConfigFileNotFoundError)
			if !notFound && !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config: reading %s failed: %w", path, err)
			}
		}
	}

	v.SetEnvPrefix("riglink")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var out Config
	if err := v.Unmarshal(&out); err != nil {
		return nil, fmt.Errorf("config: unmarshal failed: %w", err)
	}
	return &out, nil
}

// structToMap flattens the default Config into the nested map shape
// viper expects for MergeConfigMap, keyed by mapstructure tag.
func structToMap(c Config) map[string]interface{} {
	return map[string]interface{}{
		"db_path":      c.DBPath,
		"html_dir":     c.HTMLDir,
		"api_addr":     c.APIAddr,
		"web_addr":     c.WebAddr,
		"cleanup_port": c.CleanupPort,
		"archive_dsn":  c.ArchiveDSN,
		"excavator_link": map[string]interface{}{
			"server":         c.ExcavatorLink.Server,
			"host":           c.ExcavatorLink.Host,
			"port":           c.ExcavatorLink.Port,
			"num_inputs":     c.ExcavatorLink.NumInputs,
			"num_outputs":    c.ExcavatorLink.NumOutputs,
			"local_max_age":  c.ExcavatorLink.LocalMaxAge,
			"socket_timeout": c.ExcavatorLink.SocketTimeout,
			"delay_tracking": c.ExcavatorLink.DelayTracking,
		},
		"motion_link": map[string]interface{}{
			"server":         c.MotionLink.Server,
			"host":           c.MotionLink.Host,
			"port":           c.MotionLink.Port,
			"num_inputs":     c.MotionLink.NumInputs,
			"num_outputs":    c.MotionLink.NumOutputs,
			"local_max_age":  c.MotionLink.LocalMaxAge,
			"socket_timeout": c.MotionLink.SocketTimeout,
			"delay_tracking": c.MotionLink.DelayTracking,
		},
	}
}
