// Package config charge la configuration (fichier, env ANIMELOADER__*, flags)
// et construit le logger.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"
)

const envPrefix = "ANIMELOADER_"

type Config struct {
	HTTP        HTTPConfig        `mapstructure:"http"`
	DB          DBConfig          `mapstructure:"db"`
	Log         LogConfig         `mapstructure:"log"`
	Scheduler   SchedulerConfig   `mapstructure:"scheduler"`
	Fetch       FetchConfig       `mapstructure:"fetch"`
	Pipeline    PipelineConfig    `mapstructure:"pipeline"`
	Workers     WorkersConfig     `mapstructure:"workers"`
	QBittorrent QBittorrentConfig `mapstructure:"qbittorrent"`
}

type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

type DBConfig struct {
	Path string `mapstructure:"path"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	Path       string `mapstructure:"path"`
	MaxSizeMB  int    `mapstructure:"maxSizeMB"`
	MaxBackups int    `mapstructure:"maxBackups"`
}

type SchedulerConfig struct {
	DefaultInterval  time.Duration `mapstructure:"defaultInterval"`
	ReconcileOnStart bool          `mapstructure:"reconcileOnStart"`
	AutoStart        bool          `mapstructure:"autoStart"`
	ShutdownGrace    time.Duration `mapstructure:"shutdownGrace"`
}

type FetchConfig struct {
	Timeout   time.Duration `mapstructure:"timeout"`
	UserAgent string        `mapstructure:"userAgent"`
	MaxBytes  int64         `mapstructure:"maxBytes"`
}

type PipelineConfig struct {
	NormalizeConcurrency int `mapstructure:"normalizeConcurrency"`
}

type WorkersConfig struct {
	Count                  int `mapstructure:"count"`
	MaxConcurrentDownloads int `mapstructure:"maxConcurrentDownloads"`
}

type QBittorrentConfig struct {
	Host     string `mapstructure:"host"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	SavePath string `mapstructure:"savePath"`
	Category string `mapstructure:"category"`
}

func setDefaults(v *viper.Viper, version string) {
	v.SetDefault("http.addr", "127.0.0.1:8080")
	v.SetDefault("db.path", "animeloader.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.path", "")
	v.SetDefault("log.maxSizeMB", 50)
	v.SetDefault("log.maxBackups", 3)
	v.SetDefault("scheduler.defaultInterval", time.Hour)
	v.SetDefault("scheduler.reconcileOnStart", true)
	v.SetDefault("scheduler.autoStart", true)
	v.SetDefault("scheduler.shutdownGrace", 30*time.Second)
	v.SetDefault("fetch.timeout", 30*time.Second)
	v.SetDefault("fetch.userAgent", "animeloader/"+version)
	v.SetDefault("fetch.maxBytes", 10<<20)
	v.SetDefault("pipeline.normalizeConcurrency", 4)
	v.SetDefault("workers.count", 2)
	v.SetDefault("workers.maxConcurrentDownloads", 4)
	v.SetDefault("qbittorrent.host", "")
	v.SetDefault("qbittorrent.username", "")
	v.SetDefault("qbittorrent.password", "")
	v.SetDefault("qbittorrent.savePath", "")
	v.SetDefault("qbittorrent.category", "")
}

// Load lit, par priorité croissante : défauts, fichier, variables
// ANIMELOADER__SECTION_KEY, puis ce que bind attache (flags cobra).
// configFile vide : animeloader.{yaml,toml,json} dans . puis ~/.config/animeloader.
func Load(configFile, version string, bind ...func(*viper.Viper) error) (Config, error) {
	v := viper.New()
	setDefaults(v, version)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("animeloader")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "animeloader"))
		}
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for _, b := range bind {
		if err := b(v); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	return cfg, cfg.validate()
}

func (c Config) validate() error {
	if c.HTTP.Addr == "" {
		return errors.New("http.addr is required")
	}
	if c.DB.Path == "" {
		return errors.New("db.path is required")
	}
	if c.Scheduler.DefaultInterval < time.Second {
		return fmt.Errorf("scheduler.defaultInterval must be at least 1s, got %s", c.Scheduler.DefaultInterval)
	}
	if _, err := zerolog.ParseLevel(strings.ToLower(c.Log.Level)); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	return nil
}

// NewLogger construit le logger racine. Avec log.path, la sortie est dupliquée
// vers un fichier tourné par lumberjack ; le Closer le ferme.
func NewLogger(cfg LogConfig, stdout io.Writer, app string) (zerolog.Logger, io.Closer, error) {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		return zerolog.Nop(), nil, err
	}
	if level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	var (
		out    io.Writer = stdout
		closer io.Closer = nopCloser{}
	)
	if cfg.Path != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
			return zerolog.Nop(), nil, fmt.Errorf("create log dir: %w", err)
		}
		rotator := &lumberjack.Logger{
			Filename:   cfg.Path,
			MaxSize:    max(cfg.MaxSizeMB, 1),
			MaxBackups: max(cfg.MaxBackups, 0),
			Compress:   true,
		}
		out = zerolog.MultiLevelWriter(stdout, rotator)
		closer = rotator
	}

	logger := zerolog.New(out).Level(level).With().Timestamp().Str("app", app).Logger()
	return logger, closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
