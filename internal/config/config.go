/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package config

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	applog "parsec/internal/log"
)

// AppConfig is the user-editable configuration persisted as YAML in the user scope.
// Environment variables are read-only overrides applied at load time.
// The session token never lives in the file; it is kept in the OS keychain.

type ServerConfig struct {
	URL              string `yaml:"url"`
	Workspace        string `yaml:"workspace"`
	DialTimeoutMs    int    `yaml:"dial_timeout_ms"`
	ReconnectMinMs   int    `yaml:"reconnect_min_ms"`
	ReconnectMaxMs   int    `yaml:"reconnect_max_ms"`
	WriteQueueLength int    `yaml:"write_queue_length"`
}

type EditorConfig struct {
	// SnapThresholdPx is in screen pixels; it is divided by zoom before use.
	SnapThresholdPx   float64 `yaml:"snap_threshold_px"`
	PenCloseRadiusPx  float64 `yaml:"pen_close_radius_px"`
	HandleRadiusPx    float64 `yaml:"handle_radius_px"`
	MinDrawSize       float64 `yaml:"min_draw_size"`
	NudgeStep         float64 `yaml:"nudge_step"`
	EphemeralInterval int     `yaml:"ephemeral_interval_ms"`
}

type CacheConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
	Keep    int    `yaml:"keep"`
}

type GeneralConfig struct {
	TelemetryOptIn bool `yaml:"telemetry_opt_in"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Source bool   `yaml:"source"`
	File   string `yaml:"file"`
}

type AppConfig struct {
	ConfigVersion int           `yaml:"config_version"`
	General       GeneralConfig `yaml:"general"`
	Server        ServerConfig  `yaml:"server"`
	Editor        EditorConfig  `yaml:"editor"`
	Cache         CacheConfig   `yaml:"cache"`
	Logging       LoggingConfig `yaml:"logging"`
}

// Defaults returns the application defaults.
func Defaults() AppConfig {
	return AppConfig{
		ConfigVersion: 1,
		Server: ServerConfig{
			URL:              "http://localhost:8000",
			Workspace:        "default",
			DialTimeoutMs:    5000,
			ReconnectMinMs:   250,
			ReconnectMaxMs:   10000,
			WriteQueueLength: 256,
		},
		Editor: EditorConfig{
			SnapThresholdPx:   6,
			PenCloseRadiusPx:  8,
			HandleRadiusPx:    6,
			MinDrawSize:       2,
			NudgeStep:         1,
			EphemeralInterval: 50,
		},
		Cache:   CacheConfig{Enabled: true, Keep: 5},
		Logging: LoggingConfig{Level: "info", Format: "console"},
	}
}

// Env var names used as overrides.
const (
	EnvServerURL      = "PARSEC_SERVER_URL"
	EnvWorkspace      = "PARSEC_WORKSPACE"
	EnvSnapThreshold  = "PARSEC_SNAP_THRESHOLD_PX"
	EnvCacheEnabled   = "PARSEC_CACHE"
	EnvCachePath      = "PARSEC_CACHE_PATH"
	EnvTelemetryOptIn = "PARSEC_TELEMETRY_OPT_IN"
	EnvLogLevel       = "PARSEC_LOG_LEVEL"
	EnvLogFormat      = "PARSEC_LOG_FORMAT"
	EnvLogSource      = "PARSEC_LOG_SOURCE"
	EnvLogFile        = "PARSEC_LOG_FILE"
)

// ConfigDir returns the per-user configuration directory.
func ConfigDir() (string, error) {
	var base string
	switch runtime.GOOS {
	case "windows":
		base = os.Getenv("AppData")
		if base == "" {
			base = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		base = filepath.Join(base, "Parsec")
	case "darwin":
		base = filepath.Join(os.Getenv("HOME"), "Library", "Application Support", "Parsec")
	default:
		if x := os.Getenv("XDG_CONFIG_HOME"); x != "" {
			base = filepath.Join(x, "parsec")
		} else {
			base = filepath.Join(os.Getenv("HOME"), ".config", "parsec")
		}
	}
	if strings.TrimSpace(base) == "" {
		return "", errors.New("cannot resolve config directory")
	}
	return base, nil
}

// ConfigPath returns the per-user config file path.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// CachePath returns the snapshot cache database path, honoring cfg.Cache.Path.
func (c AppConfig) CachePath() (string, error) {
	if p := strings.TrimSpace(c.Cache.Path); p != "" {
		return p, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "cache", "workspace.sqlite"), nil
}

// Load reads the config file (if present), merges it over defaults, applies env
// overrides and returns the session token from the keychain separately.
func Load() (AppConfig, string, error) {
	path, err := ConfigPath()
	if err != nil {
		return Defaults(), "", err
	}
	return LoadFrom(path)
}

// LoadFrom is Load with an explicit file path.
func LoadFrom(path string) (AppConfig, string, error) {
	cfg := Defaults()
	if data, err := os.ReadFile(path); err == nil {
		var fileCfg AppConfig
		if err := yaml.Unmarshal(data, &fileCfg); err != nil {
			return cfg, "", err
		}
		mergeInto(&cfg, &fileCfg)
	}
	applyEnvOverrides(&cfg)
	tok, _ := tokenStore.Get(keyringService, tokenKey(cfg.Server.URL))
	return cfg, tok, nil
}

// Save writes the YAML file and stores the token in the keychain when non-empty.
func Save(cfg AppConfig, token string) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return SaveTo(path, cfg, token)
}

// SaveTo is Save with an explicit file path.
func SaveTo(path string, cfg AppConfig, token string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return err
	}
	if token != "" {
		return tokenStore.Set(keyringService, tokenKey(cfg.Server.URL), token)
	}
	return nil
}

func mergeInto(dst, src *AppConfig) {
	if src.ConfigVersion != 0 {
		dst.ConfigVersion = src.ConfigVersion
	}
	dst.General.TelemetryOptIn = src.General.TelemetryOptIn

	if s := strings.TrimSpace(src.Server.URL); s != "" {
		dst.Server.URL = s
	}
	if s := strings.TrimSpace(src.Server.Workspace); s != "" {
		dst.Server.Workspace = s
	}
	setInt(&dst.Server.DialTimeoutMs, src.Server.DialTimeoutMs)
	setInt(&dst.Server.ReconnectMinMs, src.Server.ReconnectMinMs)
	setInt(&dst.Server.ReconnectMaxMs, src.Server.ReconnectMaxMs)
	setInt(&dst.Server.WriteQueueLength, src.Server.WriteQueueLength)

	setFloat(&dst.Editor.SnapThresholdPx, src.Editor.SnapThresholdPx)
	setFloat(&dst.Editor.PenCloseRadiusPx, src.Editor.PenCloseRadiusPx)
	setFloat(&dst.Editor.HandleRadiusPx, src.Editor.HandleRadiusPx)
	setFloat(&dst.Editor.MinDrawSize, src.Editor.MinDrawSize)
	setFloat(&dst.Editor.NudgeStep, src.Editor.NudgeStep)
	setInt(&dst.Editor.EphemeralInterval, src.Editor.EphemeralInterval)

	dst.Cache.Enabled = src.Cache.Enabled
	if s := strings.TrimSpace(src.Cache.Path); s != "" {
		dst.Cache.Path = s
	}
	setInt(&dst.Cache.Keep, src.Cache.Keep)

	if s := strings.TrimSpace(src.Logging.Level); s != "" {
		dst.Logging.Level = strings.ToLower(s)
	}
	if s := strings.TrimSpace(src.Logging.Format); s != "" {
		dst.Logging.Format = strings.ToLower(s)
	}
	dst.Logging.Source = src.Logging.Source
	if s := strings.TrimSpace(src.Logging.File); s != "" {
		dst.Logging.File = s
	}
}

// LogOptions maps the logging section onto logger options.
func (c AppConfig) LogOptions() applog.Options {
	return applog.Options{Level: c.Logging.Level, Format: c.Logging.Format, AddSource: c.Logging.Source, File: c.Logging.File}
}

func setInt(dst *int, v int) {
	if v > 0 {
		*dst = v
	}
}

func setFloat(dst *float64, v float64) {
	if v > 0 {
		*dst = v
	}
}

func applyEnvOverrides(cfg *AppConfig) {
	if v := strings.TrimSpace(os.Getenv(EnvServerURL)); v != "" {
		cfg.Server.URL = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvWorkspace)); v != "" {
		cfg.Server.Workspace = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvSnapThreshold)); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			cfg.Editor.SnapThresholdPx = f
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvCacheEnabled)); v != "" {
		cfg.Cache.Enabled = truthy(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvCachePath)); v != "" {
		cfg.Cache.Path = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvTelemetryOptIn)); v != "" {
		cfg.General.TelemetryOptIn = truthy(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFormat)); v != "" {
		cfg.Logging.Format = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogSource)); v != "" {
		cfg.Logging.Source = truthy(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFile)); v != "" {
		cfg.Logging.File = v
	}
}

func truthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "on", "yes":
		return true
	}
	return false
}

// Durations for the transport.
func (s ServerConfig) DialTimeout() time.Duration  { return ms(s.DialTimeoutMs, 5000) }
func (s ServerConfig) ReconnectMin() time.Duration { return ms(s.ReconnectMinMs, 250) }
func (s ServerConfig) ReconnectMax() time.Duration { return ms(s.ReconnectMaxMs, 10000) }

// EphemeralEvery is the minimum spacing between live updates of one element.
func (e EditorConfig) EphemeralEvery() time.Duration { return ms(e.EphemeralInterval, 50) }

func ms(v, def int) time.Duration {
	if v <= 0 {
		v = def
	}
	return time.Duration(v) * time.Millisecond
}
