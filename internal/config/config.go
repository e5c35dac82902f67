package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/michaelbrown/turtle/internal/render"
	"github.com/michaelbrown/turtle/internal/sandbox"
)

type ServerConfig struct {
	Port          int    `mapstructure:"port"`
	AdminToken    string `mapstructure:"admin_token"`
	JWTSecret     string `mapstructure:"jwt_secret"`
	SecureCookies bool   `mapstructure:"secure_cookies"`
}

type StorageConfig struct {
	DBPath string `mapstructure:"db_path"`
}

type SandboxConfig struct {
	Timeout        time.Duration `mapstructure:"timeout"`
	Isolation      string        `mapstructure:"isolation"`
	WorkerBinary   string        `mapstructure:"worker_binary"`
	MaxSourceBytes int           `mapstructure:"max_source_bytes"`
}

type CanvasConfig struct {
	Width  float64 `mapstructure:"width"`
	Height float64 `mapstructure:"height"`
	Scale  float64 `mapstructure:"scale"`
}

type AnimationConfig struct {
	Speed         float64       `mapstructure:"speed"` // units of travel per frame
	FrameInterval time.Duration `mapstructure:"frame_interval"`
}

type CacheConfig struct {
	RedisAddr string        `mapstructure:"redis_addr"` // empty selects the in-memory cache
	TTL       time.Duration `mapstructure:"ttl"`
	Prefix    string        `mapstructure:"prefix"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type ChallengesConfig struct {
	SeedFile string `mapstructure:"seed_file"`
}

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Sandbox    SandboxConfig    `mapstructure:"sandbox"`
	Canvas     CanvasConfig     `mapstructure:"canvas"`
	Animation  AnimationConfig  `mapstructure:"animation"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Log        LogConfig        `mapstructure:"log"`
	Challenges ChallengesConfig `mapstructure:"challenges"`
}

// Load reads turtle.yaml from the working directory or $HOME/.turtle, or
// the file at path when it is set. A missing search-path file is not an
// error; every key has a default and can be overridden by TURTLE_* variables
// (server.port -> TURTLE_SERVER_PORT).
func Load(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("turtle")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.turtle")
	}

	policy := sandbox.DefaultPolicy()
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.admin_token", "")
	v.SetDefault("server.jwt_secret", "")
	v.SetDefault("server.secure_cookies", false)
	v.SetDefault("storage.db_path", filepath.Join(os.Getenv("HOME"), ".turtle", "turtle.db"))
	v.SetDefault("sandbox.timeout", policy.Timeout)
	v.SetDefault("sandbox.isolation", string(policy.Isolation))
	v.SetDefault("sandbox.worker_binary", "")
	v.SetDefault("sandbox.max_source_bytes", policy.MaxSourceBytes)
	v.SetDefault("canvas.width", 200)
	v.SetDefault("canvas.height", 200)
	v.SetDefault("canvas.scale", 1)
	v.SetDefault("animation.speed", 5)
	v.SetDefault("animation.frame_interval", 33*time.Millisecond)
	v.SetDefault("cache.redis_addr", "")
	v.SetDefault("cache.ttl", 24*time.Hour)
	v.SetDefault("cache.prefix", "turtle:render:")
	v.SetDefault("log.level", "info")
	v.SetDefault("challenges.seed_file", "")

	v.SetEnvPrefix("TURTLE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	// Expand environment variables in secrets
	cfg.Server.AdminToken = expandEnv(cfg.Server.AdminToken)
	cfg.Server.JWTSecret = expandEnv(cfg.Server.JWTSecret)

	return &cfg, nil
}

func expandEnv(s string) string {
	if strings.HasPrefix(s, "${") && strings.HasSuffix(s, "}") {
		return os.Getenv(s[2 : len(s)-1])
	}
	return s
}

// Policy converts the sandbox section to an executor policy.
func (c SandboxConfig) Policy() sandbox.Policy {
	return sandbox.Policy{
		Timeout:        c.Timeout,
		Isolation:      sandbox.Isolation(c.Isolation),
		WorkerBinary:   c.WorkerBinary,
		MaxSourceBytes: c.MaxSourceBytes,
	}
}

// Render returns the renderer geometry for the canvas section.
func (c CanvasConfig) Render(drawTurtle bool) render.Config {
	return render.Config{
		Width:      c.Width,
		Height:     c.Height,
		Scale:      c.Scale,
		DrawTurtle: drawTurtle,
	}
}
