// Package config loads rssc.cfg.json through viper and exposes typed views
// of the sections the core reads.
package config

import (
	"fmt"
	"os/user"
	"time"

	"github.com/spf13/viper"

	"github.com/rpa-review/sessioncore/internal/database"
	"github.com/rpa-review/sessioncore/internal/session"
)

// FileName is the config file looked up in the config directory.
const FileName = "rssc.cfg.json"

// Environment variables holding the id seeds.
const (
	EnvPlaylistSeed    = "PLAYLIST_UUID_SEED"
	EnvCCSeed          = "CC_UUID_SEED"
	EnvHTMLOverlaySeed = "HTML_OVERLAY_UUID_SEED"
	EnvSessionID       = "RPA_SESSION_ID"
)

// RenderConfig holds render bridge settings.
type RenderConfig struct {
	DebugMasks   bool `json:"debugMasks" mapstructure:"debugMasks"`
	MaskUnitBase int  `json:"maskUnitBase" mapstructure:"maskUnitBase"`
	SSBOBinding  int  `json:"ssboBinding" mapstructure:"ssboBinding"`
}

// LaserConfig holds laser pointer expiry settings.
type LaserConfig struct {
	PointDelay     time.Duration `json:"pointDelay" mapstructure:"pointDelay"`
	TrailDelay     time.Duration `json:"trailDelay" mapstructure:"trailDelay"`
	TrailMaxPoints int           `json:"trailMaxPoints" mapstructure:"trailMaxPoints"`
}

// ThumbnailConfig holds thumbnail loader settings.
type ThumbnailConfig struct {
	Timeout    time.Duration `json:"timeout" mapstructure:"timeout"`
	MaxPending int           `json:"maxPending" mapstructure:"maxPending"`
}

// TelemetryConfig holds the OTel log exporter settings.
type TelemetryConfig struct {
	Enabled      bool          `json:"enabled" mapstructure:"enabled"`
	ServiceName  string        `json:"serviceName" mapstructure:"serviceName"`
	BatchTimeout time.Duration `json:"batchTimeout" mapstructure:"batchTimeout"`
	Endpoint     string        `json:"endpoint" mapstructure:"endpoint"`
	Insecure     bool          `json:"insecure" mapstructure:"insecure"`
}

// InfluxConfig holds the replay metrics export settings.
type InfluxConfig struct {
	Enabled    bool   `json:"enabled" mapstructure:"enabled"`
	URL        string `json:"url" mapstructure:"url"`
	Token      string `json:"token" mapstructure:"token"`
	Org        string `json:"org" mapstructure:"org"`
	Bucket     string `json:"bucket" mapstructure:"bucket"`
	BackupPath string `json:"backupPath" mapstructure:"backupPath"`
}

// SetDefaults registers every default and binds the seed variables.
func SetDefaults() {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./rssclogs")
	viper.SetDefault("user", "")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")

	viper.SetDefault("render.debugMasks", false)
	viper.SetDefault("render.maskUnitBase", 16)
	viper.SetDefault("render.ssboBinding", 16)

	viper.SetDefault("laser.pointDelay", "1s")
	viper.SetDefault("laser.trailDelay", "50ms")
	viper.SetDefault("laser.trailMaxPoints", 1000)

	viper.SetDefault("thumbnail.timeout", "10s")
	viper.SetDefault("thumbnail.maxPending", 256)

	viper.SetDefault("displayMsg.duration", "2s")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "rssc")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", false)

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.url", "http://localhost:8086")
	viper.SetDefault("influx.token", "")
	viper.SetDefault("influx.org", "rpa")
	viper.SetDefault("influx.bucket", "review_sessions")
	viper.SetDefault("influx.backupPath", "./rssclogs/influx_backup.lp.gz")

	viper.SetDefault("archive.type", "sqlite")
	viper.SetDefault("archive.path", "./rssc.db")
	viper.SetDefault("archive.keep", 20)
	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.username", "postgres")
	viper.SetDefault("db.password", "postgres")
	viper.SetDefault("db.database", "rssc")

	_ = viper.BindEnv("seeds.playlist", EnvPlaylistSeed)
	_ = viper.BindEnv("seeds.cc", EnvCCSeed)
	_ = viper.BindEnv("seeds.htmlOverlay", EnvHTMLOverlaySeed)
	_ = viper.BindEnv("seeds.session", EnvSessionID)
}

// Load sets the defaults and reads the JSON config file from configDir.
func Load(configDir string) error {
	SetDefaults()

	viper.SetConfigName(FileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	if err := viper.ReadInConfig(); err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}
	return nil
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetDuration returns a duration config value.
func GetDuration(key string) time.Duration {
	return viper.GetDuration(key)
}

// GetSeeds returns the id seeds; unset seeds are empty.
func GetSeeds() session.Seeds {
	return session.Seeds{
		Playlist:    viper.GetString("seeds.playlist"),
		CC:          viper.GetString("seeds.cc"),
		HTMLOverlay: viper.GetString("seeds.htmlOverlay"),
		Session:     viper.GetString("seeds.session"),
	}
}

// GetUser returns the configured reviewer name, or the OS user.
func GetUser() string {
	if u := viper.GetString("user"); u != "" {
		return u
	}
	if u, err := user.Current(); err == nil {
		return u.Username
	}
	return "unknown"
}

// GetRenderConfig returns the render section.
func GetRenderConfig() RenderConfig {
	return RenderConfig{
		DebugMasks:   viper.GetBool("render.debugMasks"),
		MaskUnitBase: viper.GetInt("render.maskUnitBase"),
		SSBOBinding:  viper.GetInt("render.ssboBinding"),
	}
}

// GetLaserConfig returns the laser section.
func GetLaserConfig() LaserConfig {
	return LaserConfig{
		PointDelay:     viper.GetDuration("laser.pointDelay"),
		TrailDelay:     viper.GetDuration("laser.trailDelay"),
		TrailMaxPoints: viper.GetInt("laser.trailMaxPoints"),
	}
}

// GetThumbnailConfig returns the thumbnail section.
func GetThumbnailConfig() ThumbnailConfig {
	return ThumbnailConfig{
		Timeout:    viper.GetDuration("thumbnail.timeout"),
		MaxPending: viper.GetInt("thumbnail.maxPending"),
	}
}

// GetTelemetryConfig returns the otel section.
func GetTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      viper.GetBool("otel.enabled"),
		ServiceName:  viper.GetString("otel.serviceName"),
		BatchTimeout: viper.GetDuration("otel.batchTimeout"),
		Endpoint:     viper.GetString("otel.endpoint"),
		Insecure:     viper.GetBool("otel.insecure"),
	}
}

// GetInfluxConfig returns the influx section.
func GetInfluxConfig() InfluxConfig {
	return InfluxConfig{
		Enabled:    viper.GetBool("influx.enabled"),
		URL:        viper.GetString("influx.url"),
		Token:      viper.GetString("influx.token"),
		Org:        viper.GetString("influx.org"),
		Bucket:     viper.GetString("influx.bucket"),
		BackupPath: viper.GetString("influx.backupPath"),
	}
}

// GetArchiveConfig returns the database settings of the snapshot archive.
// The db section only applies to the postgres type.
func GetArchiveConfig() database.Config {
	return database.Config{
		Type:     viper.GetString("archive.type"),
		Path:     viper.GetString("archive.path"),
		Host:     viper.GetString("db.host"),
		Port:     viper.GetString("db.port"),
		Username: viper.GetString("db.username"),
		Password: viper.GetString("db.password"),
		Database: viper.GetString("db.database"),
	}
}
