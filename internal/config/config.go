package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Config is the top-level application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	DB        DBConfig        `mapstructure:"db"`
	Camera    CameraConfig    `mapstructure:"camera"`
	Face      FaceConfig      `mapstructure:"face"`
	Gesture   GestureConfig   `mapstructure:"gesture"`
	Backend   BackendConfig   `mapstructure:"backend"`
	Cooldowns CooldownConfig  `mapstructure:"cooldowns"`
	Geo       GeoConfig       `mapstructure:"geo"`
	MQTT      MQTTConfig      `mapstructure:"mqtt"`
	Cleanup   CleanupConfig   `mapstructure:"cleanup"`
}

// ServerConfig holds settings for the kiosk HTTP surface.
type ServerConfig struct {
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	DataDir     string `mapstructure:"data_dir"`
	SnapshotDir string `mapstructure:"snapshot_dir"`
	SnapshotURL string `mapstructure:"snapshot_url"`
	TemplateDir string `mapstructure:"template_dir"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

// DBConfig holds settings for the local journal database.
type DBConfig struct {
	File string `mapstructure:"file"` // SQLite file path
}

// CameraConfig holds settings for the frame source.
type CameraConfig struct {
	DeviceID int `mapstructure:"device_id"`
	Width    int `mapstructure:"width"`
	Height   int `mapstructure:"height"`
	FPS      int `mapstructure:"fps"` // tick rate of the recognition loop
}

// FaceConfig holds settings for the external face inference service.
type FaceConfig struct {
	URL              string  `mapstructure:"url"`
	APIKey           string  `mapstructure:"api_key"`
	DetProbThreshold float64 `mapstructure:"det_prob_threshold"`
	EmotionThreshold float64 `mapstructure:"emotion_threshold"`
	TimeoutSeconds   int     `mapstructure:"timeout_seconds"`
}

// GestureConfig holds settings for the external hand-gesture service.
type GestureConfig struct {
	URL                 string  `mapstructure:"url"`
	APIKey              string  `mapstructure:"api_key"`
	ConfidenceThreshold float64 `mapstructure:"confidence_threshold"`
	PresenceLabel       string  `mapstructure:"presence_label"`
	BreakLabel          string  `mapstructure:"break_label"`
	TimeoutSeconds      int     `mapstructure:"timeout_seconds"`
}

// BackendConfig holds settings for the attendance backend of record.
type BackendConfig struct {
	URL            string `mapstructure:"url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// CooldownConfig holds the monotonic time gates of the recognition loop.
// All values are in seconds unless stated otherwise.
type CooldownConfig struct {
	Recognition   int `mapstructure:"recognition"`    // between Phase 1 attempts
	Attendance    int `mapstructure:"attendance"`     // between Phase 2 commits
	VoicePrompt   int `mapstructure:"voice_prompt"`   // between spoken prompts
	RePrompt      int `mapstructure:"re_prompt"`      // delay before re-prompt after a commit
	GesturePrompt int `mapstructure:"gesture_prompt"` // timeout of the gesture-confirmation window
	NoFaceStreak  int `mapstructure:"no_face_streak"` // ticks before "no face" guidance
}

// GeoConfig holds settings for best-effort geolocation enrichment.
type GeoConfig struct {
	Enabled        bool    `mapstructure:"enabled"`
	Latitude       float64 `mapstructure:"latitude"`
	Longitude      float64 `mapstructure:"longitude"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds"`
}

// MQTTConfig holds settings for the optional MQTT outcome publisher.
type MQTTConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Broker   string `mapstructure:"broker"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	ClientID string `mapstructure:"client_id"`
	Topic    string `mapstructure:"topic"`
}

// CleanupConfig holds retention settings for the local journal.
type CleanupConfig struct {
	RetentionDays int `mapstructure:"retention_days"`
}

// Load reads configuration from file, environment variables and defaults.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			log.Warnf("Config file %s does not exist, using defaults", configPath)
		} else {
			v.SetConfigFile(configPath)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
			log.Infof("Config loaded from %s", configPath)
		}
	}

	v.AutomaticEnv()
	v.SetEnvPrefix("PRESENCE_KIOSK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := ensureDirectories(&cfg); err != nil {
		return nil, fmt.Errorf("failed to create required directories: %w", err)
	}

	return &cfg, nil
}

// setDefaults registers default values for every configuration key.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.data_dir", "/data")
	v.SetDefault("server.snapshot_dir", "/data/snapshots")
	v.SetDefault("server.snapshot_url", "/snapshots")
	v.SetDefault("server.template_dir", "./web/templates")

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "/data/logs/presence-kiosk.log")

	// DB defaults
	v.SetDefault("db.file", "/data/presence-kiosk.db")

	// Camera defaults
	v.SetDefault("camera.device_id", 0)
	v.SetDefault("camera.width", 1280)
	v.SetDefault("camera.height", 720)
	v.SetDefault("camera.fps", 15)

	// Face service defaults
	v.SetDefault("face.det_prob_threshold", 0.8)
	v.SetDefault("face.emotion_threshold", 0.5)
	v.SetDefault("face.timeout_seconds", 10)

	// Gesture service defaults
	v.SetDefault("gesture.confidence_threshold", 0.7)
	v.SetDefault("gesture.presence_label", "thumbs_up")
	v.SetDefault("gesture.break_label", "open_palm")
	v.SetDefault("gesture.timeout_seconds", 10)

	// Backend defaults
	v.SetDefault("backend.timeout_seconds", 15)

	// Cooldown defaults
	v.SetDefault("cooldowns.recognition", 5)
	v.SetDefault("cooldowns.attendance", 30)
	v.SetDefault("cooldowns.voice_prompt", 6)
	v.SetDefault("cooldowns.re_prompt", 10)
	v.SetDefault("cooldowns.gesture_prompt", 45)
	v.SetDefault("cooldowns.no_face_streak", 30)

	// Geo defaults
	v.SetDefault("geo.enabled", false)
	v.SetDefault("geo.timeout_seconds", 5)

	// MQTT defaults
	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.port", 1883)
	v.SetDefault("mqtt.client_id", "presence-kiosk")
	v.SetDefault("mqtt.topic", "presence-kiosk/attendance")

	// Cleanup defaults
	v.SetDefault("cleanup.retention_days", 30)
}

// ensureDirectories makes sure all required directories exist.
func ensureDirectories(cfg *Config) error {
	if cfg.Server.DataDir != "" {
		if err := os.MkdirAll(cfg.Server.DataDir, 0755); err != nil {
			return fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	if err := os.MkdirAll(cfg.Server.SnapshotDir, 0755); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	logDir := filepath.Dir(cfg.Log.File)
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	if cfg.DB.File != "" {
		dbDir := filepath.Dir(cfg.DB.File)
		if err := os.MkdirAll(dbDir, 0755); err != nil {
			return fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	return nil
}
