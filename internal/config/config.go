// Package config persists the translation settings shared by the UI and the
// worker (config.json in the user data directory) and reads the optional
// launcher overrides from a .env file.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"pdf-translator/internal/logger"
	"pdf-translator/internal/types"
)

// FileName is the name of the settings file inside the user data directory.
// The worker reads the same file, so the name and layout are fixed.
const FileName = "config.json"

const indent = "    "

// ConfigManager loads and saves the translation settings.
type ConfigManager struct {
	configPath string

	mu      sync.Mutex
	current types.Config
}

// NewConfigManager returns a manager for <userDataDir>/config.json.
func NewConfigManager(userDataDir string) *ConfigManager {
	path := filepath.Join(userDataDir, FileName)
	logger.Debug("config manager initialized", logger.String("path", path))
	return &ConfigManager{
		configPath: path,
		current:    types.DefaultConfig(),
	}
}

// Path returns the location of config.json.
func (m *ConfigManager) Path() string {
	return m.configPath
}

// Current returns the last loaded or saved configuration.
func (m *ConfigManager) Current() types.Config {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Load reads config.json. A missing file is created with the defaults.
// Persisted values are merged key by key over the defaults, so settings added
// in later versions keep their default values.
//
// On error the defaults are returned together with a *types.Failure of kind
// ConfigLoadError.
func (m *ConfigManager) Load() (types.Config, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	defaults := types.DefaultConfig()

	data, err := os.ReadFile(m.configPath)
	if errors.Is(err, fs.ErrNotExist) {
		logger.Info("config file not found, writing defaults", logger.String("path", m.configPath))
		if err := m.write(defaults); err != nil {
			// The defaults are still usable for this session.
			logger.Warn("failed to write default config", logger.Err(err))
		}
		m.current = defaults
		return defaults, nil
	}
	if err != nil {
		logger.Error("failed to read config file", err, logger.String("path", m.configPath))
		return defaults, types.WrapFailure(types.ConfigLoadError, "failed to read config file", err)
	}

	cfg, err := mergeOverDefaults(defaults, data)
	if err != nil {
		logger.Warn("invalid config file, using defaults", logger.String("path", m.configPath), logger.Err(err))
		return defaults, types.WrapFailure(types.ConfigLoadError, "config file is not valid JSON", err)
	}

	cfg = Normalize(cfg)
	m.current = cfg
	logger.Info("configuration loaded",
		logger.String("path", m.configPath),
		logger.String("service", cfg.Service),
		logger.Int("thread", cfg.Thread))
	return cfg, nil
}

// Save replaces config.json with cfg. Failures are returned as a
// *types.Failure of kind ConfigSaveError.
func (m *ConfigManager) Save(cfg types.Config) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cfg = Normalize(cfg)
	if err := m.write(cfg); err != nil {
		logger.Error("failed to save config", err, logger.String("path", m.configPath))
		return types.WrapFailure(types.ConfigSaveError, "failed to write config file", err)
	}
	m.current = cfg
	logger.Info("configuration saved", logger.String("path", m.configPath), logger.String("service", cfg.Service))
	return nil
}

// write stores cfg through a temporary file so a crash never leaves a
// truncated config.json behind.
func (m *ConfigManager) write(cfg types.Config) error {
	dir := filepath.Dir(m.configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	data, err := Encode(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".config-*.json")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, m.configPath); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace config file: %w", err)
	}
	return nil
}

// Encode renders cfg the way it is stored on disk: UTF-8 JSON indented with
// four spaces.
func Encode(cfg types.Config) ([]byte, error) {
	data, err := json.MarshalIndent(cfg, "", indent)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// Normalize fills empty or out-of-range values with their defaults.
func Normalize(cfg types.Config) types.Config {
	def := types.DefaultConfig()

	cfg.Service = strings.ToLower(strings.TrimSpace(cfg.Service))
	if !types.IsKnownService(cfg.Service) {
		cfg.Service = def.Service
	}
	if cfg.Thread < 1 {
		cfg.Thread = def.Thread
	}
	cfg.LangIn = strings.TrimSpace(cfg.LangIn)
	if cfg.LangIn == "" {
		cfg.LangIn = def.LangIn
	}
	cfg.LangOut = strings.TrimSpace(cfg.LangOut)
	if cfg.LangOut == "" {
		cfg.LangOut = def.LangOut
	}
	cfg.Proxy = strings.TrimSpace(cfg.Proxy)
	return cfg
}
