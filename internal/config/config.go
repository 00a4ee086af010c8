package config

import (
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

const (
	DefaultSocketPath    = "/tmp/lyrics_app.sock"
	DefaultStatusFile    = "/tmp/lyrics"
	DefaultCheckInterval = 5 * time.Second
	DefaultTickInterval  = 100 * time.Millisecond
	DefaultLookahead     = 100 * time.Millisecond
	DefaultRedisTTL      = 7 * 24 * time.Hour
	DefaultI3Signal      = 21
)

var DefaultProviders = []string{"lrclib", "netease"}

func getDefaultCacheDir() string {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, "lyrics")
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "lyrics_cache"
	}
	return filepath.Join(homeDir, ".cache", "lyrics")
}

// TomlConfig mirrors config.toml. Durations are strings like "5s".
type TomlConfig struct {
	App struct {
		SocketPath    string `toml:"socket_path"`
		CheckInterval string `toml:"check_interval"`
		TickInterval  string `toml:"tick_interval"`
		Lookahead     string `toml:"lookahead"`
		CacheDir      string `toml:"cache_dir"`
		MusicDir      string `toml:"music_dir"`
		StatusFile    string `toml:"status_file"`
	} `toml:"app"`

	AI struct {
		ModuleName string `toml:"module_name"`
		APIKey     string `toml:"api_key"`
		BaseURL    string `toml:"base_url"` // for OpenAI
	} `toml:"ai"`

	Redis struct {
		Enabled  bool   `toml:"enabled"`
		Addr     string `toml:"addr"`
		Password string `toml:"password"`
		DB       int    `toml:"db"`
		TTL      string `toml:"ttl"`
	} `toml:"redis"`

	Lyrics struct {
		Providers []string `toml:"providers"`
	} `toml:"lyrics"`

	I3Block struct {
		Enabled bool `toml:"enabled"`
		Signal  int  `toml:"signal"`
	} `toml:"i3block"`
}

type AppConfig struct {
	SocketPath    string
	CheckInterval time.Duration
	TickInterval  time.Duration
	Lookahead     time.Duration
	CacheDir      string
	MusicDir      string // empty disables the local library
	StatusFile    string // empty disables the status file
}

type AIConfig struct {
	ModuleName string
	APIKey     string
	BaseURL    string
}

type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

type LyricsConfig struct {
	Providers []string
}

// I3BlockConfig configures the status bar refresh. Signal is the i3blocks
// block signal; the process receives SIGRTMIN+Signal.
type I3BlockConfig struct {
	Enabled bool
	Signal  int
}

type Config struct {
	App     AppConfig
	AI      AIConfig
	Redis   RedisConfig
	Lyrics  LyricsConfig
	I3Block I3BlockConfig
}

func configDir() string {
	if configHome := os.Getenv("XDG_CONFIG_HOME"); configHome != "" {
		return filepath.Join(configHome, "lyrics")
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		log.Warn().Err(err).Msg("Cannot get user home directory")
		return "."
	}
	return filepath.Join(homeDir, ".config", "lyrics")
}

// Path returns where config.toml is read from.
func Path() string {
	return filepath.Join(configDir(), "config.toml")
}

func loadTomlConfig(path string) (*TomlConfig, error) {
	var cfg TomlConfig
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		log.Info().Str("path", path).Msg("Config file not found, using defaults")
		return &cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}
	log.Info().Str("path", path).Msg("Loaded config")
	return &cfg, nil
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		App: AppConfig{
			SocketPath:    DefaultSocketPath,
			CheckInterval: DefaultCheckInterval,
			TickInterval:  DefaultTickInterval,
			Lookahead:     DefaultLookahead,
			CacheDir:      getDefaultCacheDir(),
			StatusFile:    DefaultStatusFile,
		},
		AI: AIConfig{
			ModuleName: "gemini",
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
			TTL:  DefaultRedisTTL,
		},
		Lyrics: LyricsConfig{
			Providers: append([]string(nil), DefaultProviders...),
		},
		I3Block: I3BlockConfig{
			Signal: DefaultI3Signal,
		},
	}
}

// Load reads .env files and config.toml on top of the defaults. A broken
// config file is logged and ignored.
func Load() *Config {
	dir := configDir()
	// Missing .env files are fine; existing env vars win.
	_ = godotenv.Load(filepath.Join(dir, ".env"))
	_ = godotenv.Load()

	tomlConfig, err := loadTomlConfig(filepath.Join(dir, "config.toml"))
	if err != nil {
		log.Error().Err(err).Msg("Failed to load config file, using defaults")
		tomlConfig = &TomlConfig{}
	}

	cfg := Default()
	cfg.apply(tomlConfig)
	cfg.applyEnv()

	if cfg.AI.APIKey == "" {
		log.Warn().Str("path", Path()).Msg("No AI API key configured; titles without artist metadata are used as-is")
	}
	return cfg
}

func setDuration(dst *time.Duration, raw, name string) {
	if raw == "" {
		return
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		log.Warn().Str(name, raw).Msg("Invalid duration, using default")
		return
	}
	*dst = d
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func (c *Config) apply(t *TomlConfig) {
	setString(&c.App.SocketPath, t.App.SocketPath)
	setDuration(&c.App.CheckInterval, t.App.CheckInterval, "check_interval")
	setDuration(&c.App.TickInterval, t.App.TickInterval, "tick_interval")
	setString(&c.App.CacheDir, t.App.CacheDir)
	setString(&c.App.MusicDir, t.App.MusicDir)
	setString(&c.App.StatusFile, t.App.StatusFile)

	// Zero lookahead is a valid choice, so it is parsed separately.
	if t.App.Lookahead != "" {
		if d, err := time.ParseDuration(t.App.Lookahead); err == nil && d >= 0 {
			c.App.Lookahead = d
		} else {
			log.Warn().Str("lookahead", t.App.Lookahead).Msg("Invalid duration, using default")
		}
	}

	setString(&c.AI.ModuleName, t.AI.ModuleName)
	setString(&c.AI.APIKey, t.AI.APIKey)
	setString(&c.AI.BaseURL, t.AI.BaseURL)

	c.Redis.Enabled = t.Redis.Enabled
	setString(&c.Redis.Addr, t.Redis.Addr)
	setString(&c.Redis.Password, t.Redis.Password)
	if t.Redis.DB != 0 {
		c.Redis.DB = t.Redis.DB
	}
	setDuration(&c.Redis.TTL, t.Redis.TTL, "ttl")

	if len(t.Lyrics.Providers) > 0 {
		c.Lyrics.Providers = t.Lyrics.Providers
	}

	c.I3Block.Enabled = t.I3Block.Enabled
	if t.I3Block.Signal > 0 {
		c.I3Block.Signal = t.I3Block.Signal
	}
}

func (c *Config) applyEnv() {
	setString(&c.AI.APIKey, os.Getenv("LYRICS_AI_API_KEY"))
	setString(&c.Redis.Password, os.Getenv("LYRICS_REDIS_PASSWORD"))
}
