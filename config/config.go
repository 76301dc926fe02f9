package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

const (
	EnvAPIBase = "CRAWLCHAT_API_BASE"
	EnvDataDir = "CRAWLCHAT_DATA_DIR"
	EnvDebug   = "CRAWLCHAT_DEBUG"
)

type SystemConfig struct {
	DataDirectory string `toml:"data_directory"`
}

type BackendConfig struct {
	BaseURL string `toml:"base_url"`
}

type VoiceConfig struct {
	RecordCommand string `toml:"record_command"`
	PlayCommand   string `toml:"play_command"`
	FragmentMS    int    `toml:"fragment_ms"`
}

type UserConfig struct {
	Backend BackendConfig `toml:"backend"`
	Voice   VoiceConfig   `toml:"voice"`
}

type Config struct {
	DataDirectory string
	BaseURL       string
	RecordCommand string
	PlayCommand   string
	FragmentMS    int
	Keybindings   *KeyBindingsConfig
}

var Debug = false
var DebugLog *log.Logger

func (c *Config) BackendURL() string {
	return c.BaseURL
}

func (c *Config) DataDir() string {
	return ExpandPath(c.DataDirectory)
}

func (c *Config) applyEnvOverrides() {
	if base := os.Getenv(EnvAPIBase); base != "" {
		c.BaseURL = base
	}
	if dataDir := os.Getenv(EnvDataDir); dataDir != "" {
		c.DataDirectory = dataDir
	}
}

func (c *Config) applyUserConfig(userCfg *UserConfig) {
	if userCfg.Backend.BaseURL != "" {
		c.BaseURL = userCfg.Backend.BaseURL
	}
	if userCfg.Voice.RecordCommand != "" {
		c.RecordCommand = userCfg.Voice.RecordCommand
	}
	if userCfg.Voice.PlayCommand != "" {
		c.PlayCommand = userCfg.Voice.PlayCommand
	}
	if userCfg.Voice.FragmentMS > 0 {
		c.FragmentMS = userCfg.Voice.FragmentMS
	}
}

// LoadDotEnv loads a .env file from the working directory if one exists.
// Variables already present in the environment win.
func LoadDotEnv() {
	if !FileExists(".env") {
		return
	}
	if err := godotenv.Load(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not load .env: %v\n", err)
	}
}

func CheckDebug() bool {
	debug := os.Getenv(EnvDebug)
	return debug == "true" || debug == "1"
}

func InitDebugLog(dataDir string) {
	if !CheckDebug() {
		return
	}

	Debug = true
	logPath := filepath.Join(dataDir, "debug.log")

	// 0600: the log records questions and transcripts
	f, err := os.OpenFile(logPath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0600)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Could not open debug log at %s: %v\n", logPath, err)
		return
	}

	DebugLog = log.New(f, "", log.Ldate|log.Ltime|log.Lmicroseconds|log.Lshortfile)
	DebugLog.Printf("=== Debug logging started (%s=%s) ===", EnvDebug, os.Getenv(EnvDebug))
	DebugLog.Printf("Log path: %s", logPath)
}

func Load() (*Config, error) {
	def := DefaultUserConfig()
	cfg := &Config{
		DataDirectory: GetDefaultDataDir(),
		BaseURL:       def.Backend.BaseURL,
		RecordCommand: def.Voice.RecordCommand,
		PlayCommand:   def.Voice.PlayCommand,
		FragmentMS:    def.Voice.FragmentMS,
	}

	if os.Getenv(EnvDataDir) != "" {
		cfg.DataDirectory = os.Getenv(EnvDataDir)
	} else {
		systemCfg, err := LoadSystemConfig()
		if err != nil {
			return nil, fmt.Errorf("failed to load system config: %w", err)
		}
		cfg.DataDirectory = systemCfg.DataDirectory
	}

	dataDir := cfg.DataDir()
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	if err := EnsureDataDirPermissions(dataDir); err != nil {
		return nil, fmt.Errorf("failed to set data directory permissions: %w", err)
	}

	userCfg, err := LoadUserConfig(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load user config: %w", err)
	}
	cfg.applyUserConfig(userCfg)

	// Environment beats files
	cfg.applyEnvOverrides()

	kb, err := LoadKeybindings(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load keybindings: %w", err)
	}
	cfg.Keybindings = kb

	return cfg, nil
}
