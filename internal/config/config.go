/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package config holds the user-editable engine configuration: where scripts,
// assets and rendered frames live, the scene geometry, the save store and
// logging. The YAML file is optional; environment variables override it.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/zalando/go-keyring"
	"gopkg.in/yaml.v3"
)

type PathsConfig struct {
	// Root is the directory script and asset paths are resolved against.
	// Empty means the directory of the entry script.
	Root     string `yaml:"root"`
	Frames   string `yaml:"frames"`
	Cache    string `yaml:"cache"`
	MaxCache string `yaml:"max_cache"` // e.g. "200 MB"; empty disables pruning
}

// Rect is an inclusive-exclusive pixel rectangle.
type Rect struct {
	XMin int `yaml:"xmin"`
	XMax int `yaml:"xmax"`
	YMin int `yaml:"ymin"`
	YMax int `yaml:"ymax"`
}

type SceneConfig struct {
	Screen    Rect    `yaml:"screen"`
	Text      Rect    `yaml:"text"`
	Font      string  `yaml:"font"` // TTF/OTF file; empty uses the bundled font
	FontSize  float64 `yaml:"font_size"`
	MinFontPt float64 `yaml:"min_font_size"`
}

type StoreConfig struct {
	// DSN is a SQLite file path or a postgres:// URL. Empty falls back to the
	// keyring, then to DefaultStoreDSN.
	DSN string `yaml:"dsn"`
}

type PlayConfig struct {
	// MaxSkip bounds how many invisible events are skipped in one go.
	MaxSkip int `yaml:"max_skip"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Source bool   `yaml:"source"`
	File   string `yaml:"file"`
}

type AppConfig struct {
	ConfigVersion int           `yaml:"config_version"`
	Paths         PathsConfig   `yaml:"paths"`
	Scene         SceneConfig   `yaml:"scene"`
	Store         StoreConfig   `yaml:"store"`
	Play          PlayConfig    `yaml:"play"`
	Logging       LoggingConfig `yaml:"logging"`
}

// Defaults returns the application defaults.
func Defaults() AppConfig {
	return AppConfig{
		ConfigVersion: 1,
		Paths:         PathsConfig{Frames: "frames", Cache: ".vne-cache"},
		Scene: SceneConfig{
			Screen:    Rect{XMin: 0, XMax: 640, YMin: 0, YMax: 480},
			Text:      Rect{XMin: 20, XMax: 620, YMin: 340, YMax: 480},
			FontSize:  24,
			MinFontPt: 8,
		},
		Play:    PlayConfig{MaxSkip: 10000},
		Logging: LoggingConfig{Level: "info", Format: "console"},
	}
}

// Env var names used as overrides.
const (
	EnvConfig    = "VNE_CONFIG"
	EnvRoot      = "VNE_ROOT"
	EnvFrames    = "VNE_FRAMES"
	EnvCache     = "VNE_CACHE"
	EnvMaxCache  = "VNE_MAX_CACHE"
	EnvFont      = "VNE_FONT"
	EnvFontSize  = "VNE_FONT_SIZE"
	EnvStoreDSN  = "VNE_STORE_DSN"
	EnvMaxSkip   = "VNE_MAX_SKIP"
	EnvLogLevel  = "VNE_LOG_LEVEL"
	EnvLogFormat = "VNE_LOG_FORMAT"
	EnvLogSource = "VNE_LOG_SOURCE"
	EnvLogFile   = "VNE_LOG_FILE"
)

// overrides mirrors the overridable fields; nil means the variable is unset.
type overrides struct {
	Root      *string  `env:"VNE_ROOT"`
	Frames    *string  `env:"VNE_FRAMES"`
	Cache     *string  `env:"VNE_CACHE"`
	MaxCache  *string  `env:"VNE_MAX_CACHE"`
	Font      *string  `env:"VNE_FONT"`
	FontSize  *float64 `env:"VNE_FONT_SIZE"`
	StoreDSN  *string  `env:"VNE_STORE_DSN"`
	MaxSkip   *int     `env:"VNE_MAX_SKIP"`
	LogLevel  *string  `env:"VNE_LOG_LEVEL"`
	LogFormat *string  `env:"VNE_LOG_FORMAT"`
	LogSource *bool    `env:"VNE_LOG_SOURCE"`
	LogFile   *string  `env:"VNE_LOG_FILE"`
}

// Service/keys for OS keyring.
const (
	keyringService = "VNEngine"
	keyringDSN     = "store_dsn"
)

// SecretStore abstracts the keyring, so we can stub in tests.
type SecretStore interface {
	Get(service, key string) (string, error)
	Set(service, key, value string) error
	Delete(service, key string) error
}

// osKeyring implements SecretStore using github.com/zalando/go-keyring.
type osKeyring struct{}

func (osKeyring) Get(service, key string) (string, error) { return keyring.Get(service, key) }
func (osKeyring) Set(service, key, value string) error { return keyring.Set(service, key, value) }
func (osKeyring) Delete(service, key string) error { return keyring.Delete(service, key) }

var secrets SecretStore = osKeyring{}

// ConfigPath returns the per-user config file path.
func ConfigPath() (string, error) {
	var base string
	switch runtime.GOOS {
	case "windows":
		base = os.Getenv("AppData")
		if base == "" {
			base = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		base = filepath.Join(base, "VNEngine")
	case "darwin":
		base = filepath.Join(os.Getenv("HOME"), "Library", "Application Support", "VNEngine")
	default:
		base = filepath.Join(os.Getenv("HOME"), ".config", "vnengine")
	}
	if base == "" {
		return "", errors.New("cannot resolve config directory")
	}
	return filepath.Join(base, "config.yaml"), nil
}

// Resolve picks the config file: explicit path, then VNE_CONFIG, then the
// per-user location.
func Resolve(explicit string) (string, error) {
	if p := strings.TrimSpace(explicit); p != "" {
		return p, nil
	}
	if p := strings.TrimSpace(os.Getenv(EnvConfig)); p != "" {
		return p, nil
	}
	return ConfigPath()
}

// Load reads the config file at path if it exists, applies defaults and
// merges environment overrides. A missing file is not an error; a malformed
// one is.
func Load(path string) (AppConfig, error) {
	cfg := Defaults()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			var fileCfg AppConfig
			if err := yaml.Unmarshal(data, &fileCfg); err != nil {
				return cfg, fmt.Errorf("parse config %s: %w", path, err)
			}
			mergeInto(&cfg, &fileCfg)
		case !errors.Is(err, os.ErrNotExist):
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	if err := applyEnvOverrides(&cfg); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// Save writes cfg as YAML, creating the directory.
func Save(path string, cfg AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// Validate checks the scene geometry.
func (c AppConfig) Validate() error {
	s := c.Scene
	if s.Screen.XMax <= s.Screen.XMin || s.Screen.YMax <= s.Screen.YMin {
		return fmt.Errorf("scene.screen is empty: %+v", s.Screen)
	}
	if s.Text.XMax <= s.Text.XMin || s.Text.YMax <= s.Text.YMin {
		return fmt.Errorf("scene.text is empty: %+v", s.Text)
	}
	if s.FontSize <= 0 {
		return fmt.Errorf("scene.font_size must be positive, got %v", s.FontSize)
	}
	return nil
}

// DefaultStoreDSN is the SQLite file used when no DSN is configured anywhere.
const DefaultStoreDSN = "vne-saves.db"

// StoreDSN returns the configured save store DSN, falling back to the value
// kept in the OS keyring and then to DefaultStoreDSN.
func (c AppConfig) StoreDSN() string {
	if dsn := strings.TrimSpace(c.Store.DSN); dsn != "" {
		return dsn
	}
	if dsn, err := secrets.Get(keyringService, keyringDSN); err == nil && dsn != "" {
		return dsn
	}
	return DefaultStoreDSN
}

// RememberStoreDSN stores dsn in the OS keyring; an empty dsn removes it.
func RememberStoreDSN(dsn string) error {
	if dsn == "" {
		err := secrets.Delete(keyringService, keyringDSN)
		if errors.Is(err, keyring.ErrNotFound) {
			return nil
		}
		return err
	}
	return secrets.Set(keyringService, keyringDSN, dsn)
}

func mergeInto(dst *AppConfig, src *AppConfig) {
	if src.ConfigVersion != 0 {
		dst.ConfigVersion = src.ConfigVersion
	}
	setStr(&dst.Paths.Root, src.Paths.Root)
	setStr(&dst.Paths.Frames, src.Paths.Frames)
	setStr(&dst.Paths.Cache, src.Paths.Cache)
	setStr(&dst.Paths.MaxCache, src.Paths.MaxCache)
	if src.Scene.Screen != (Rect{}) {
		dst.Scene.Screen = src.Scene.Screen
	}
	if src.Scene.Text != (Rect{}) {
		dst.Scene.Text = src.Scene.Text
	}
	setStr(&dst.Scene.Font, src.Scene.Font)
	if src.Scene.FontSize > 0 {
		dst.Scene.FontSize = src.Scene.FontSize
	}
	if src.Scene.MinFontPt > 0 {
		dst.Scene.MinFontPt = src.Scene.MinFontPt
	}
	setStr(&dst.Store.DSN, src.Store.DSN)
	if src.Play.MaxSkip != 0 {
		dst.Play.MaxSkip = src.Play.MaxSkip
	}
	if strings.TrimSpace(src.Logging.Level) != "" {
		dst.Logging.Level = strings.ToLower(strings.TrimSpace(src.Logging.Level))
	}
	if strings.TrimSpace(src.Logging.Format) != "" {
		dst.Logging.Format = strings.ToLower(strings.TrimSpace(src.Logging.Format))
	}
	dst.Logging.Source = src.Logging.Source
	setStr(&dst.Logging.File, src.Logging.File)
}

func setStr(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}

func applyEnvOverrides(cfg *AppConfig) error {
	var o overrides
	if err := env.Parse(&o); err != nil {
		return fmt.Errorf("environment overrides: %w", err)
	}
	str := func(dst *string, v *string) {
		if v != nil && strings.TrimSpace(*v) != "" {
			*dst = strings.TrimSpace(*v)
		}
	}
	str(&cfg.Paths.Root, o.Root)
	str(&cfg.Paths.Frames, o.Frames)
	str(&cfg.Paths.Cache, o.Cache)
	str(&cfg.Paths.MaxCache, o.MaxCache)
	str(&cfg.Scene.Font, o.Font)
	str(&cfg.Store.DSN, o.StoreDSN)
	str(&cfg.Logging.File, o.LogFile)
	if o.FontSize != nil {
		cfg.Scene.FontSize = *o.FontSize
	}
	if o.MaxSkip != nil {
		cfg.Play.MaxSkip = *o.MaxSkip
	}
	if o.LogLevel != nil && *o.LogLevel != "" {
		cfg.Logging.Level = strings.ToLower(*o.LogLevel)
	}
	if o.LogFormat != nil && *o.LogFormat != "" {
		cfg.Logging.Format = strings.ToLower(*o.LogFormat)
	}
	if o.LogSource != nil {
		cfg.Logging.Source = *o.LogSource
	}
	return nil
}

// EnvOverrideFor returns the env var name if the field is overridden by environment variables.
func EnvOverrideFor(key string) (string, bool) {
	names := map[string]string{
		"paths.root":      EnvRoot,
		"paths.frames":    EnvFrames,
		"paths.cache":     EnvCache,
		"paths.max_cache": EnvMaxCache,
		"scene.font":      EnvFont,
		"scene.font_size": EnvFontSize,
		"store.dsn":       EnvStoreDSN,
		"play.max_skip":   EnvMaxSkip,
		"logging.level":   EnvLogLevel,
		"logging.format":  EnvLogFormat,
		"logging.source":  EnvLogSource,
		"logging.file":    EnvLogFile,
	}
	name, ok := names[key]
	if !ok || os.Getenv(name) == "" {
		return "", false
	}
	return name, true
}
