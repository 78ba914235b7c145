// Package appconfig manages persisted rdpconnect settings and runtime file
// paths.
package appconfig

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/aws-rdp-connect/rdpconnect/internal/fault"
	"github.com/aws-rdp-connect/rdpconnect/internal/model"
	"github.com/aws-rdp-connect/rdpconnect/internal/util"
)

// Settings holds the persisted application configuration.
type Settings struct {
	// RDPClient is the remote-desktop client path (Windows/Linux) or
	// application name (macOS). Autodetected on first run.
	RDPClient      string                      `yaml:"rdp_client"`
	DefaultProfile string                      `yaml:"default_profile"`
	SavedInstances map[string][]model.Instance `yaml:"saved_instances"`
	LocalPortRange model.PortRange             `yaml:"local_port_range"`
}

// Default returns the default settings with a platform-autodetected
// remote-desktop client.
func Default() Settings {
	return Settings{
		RDPClient:      DetectClient(),
		SavedInstances: map[string][]model.Instance{},
		LocalPortRange: model.PortRange{Min: 9800, Max: 9900},
	}
}

// ConfigDir returns the application config directory path.
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config/rdpconnect.
func ConfigDir() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "rdpconnect"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home: %w", err)
	}
	return filepath.Join(home, ".config", "rdpconnect"), nil
}

func settingsPath() (string, error) {
	d, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(d, "config.yaml"), nil
}

// Load reads config.yaml from the config directory.
//
// A missing file is first-run: defaults are written and returned. A file
// that fails to parse is treated as corrupt configuration and replaced with
// defaults (the reset-to-defaults path) rather than aborting startup; the
// old content is lost but the event is logged.
func Load() (Settings, error) {
	path, err := settingsPath()
	if err != nil {
		return Settings{}, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return Settings{}, err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg := Default()
			if err := Save(cfg); err != nil {
				return cfg, err
			}
			return cfg, nil
		}
		return Settings{}, err
	}
	cfg := Default()
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		slog.Warn("settings file unreadable, rebuilding with defaults", "path", path, "error", err)
		cfg = Default()
		if err := Save(cfg); err != nil {
			return cfg, err
		}
		return cfg, nil
	}
	cfg.normalize()
	return cfg, nil
}

// Save writes settings to config.yaml.
func Save(cfg Settings) error {
	path, err := settingsPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	b, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o600)
}

// normalize repairs values a hand-edited file may have broken. The port
// range falls back to the default window rather than failing startup; full
// validation happens when the user edits settings.
func (s *Settings) normalize() {
	if s.SavedInstances == nil {
		s.SavedInstances = map[string][]model.Instance{}
	}
	if s.LocalPortRange.Min <= 0 || s.LocalPortRange.Max <= 0 || s.LocalPortRange.Min > s.LocalPortRange.Max {
		s.LocalPortRange = model.PortRange{Min: 9800, Max: 9900}
	}
}

// ValidateUpdate checks a settings edit before it is applied. The port
// range rule (both bounds in [1024,65535], min < max) is enforced here, at
// the point of change, not at allocation time. The client string is not
// checked for existence; that happens at connect time, where a missing
// binary is a tooling error rather than a settings error.
func ValidateUpdate(r model.PortRange) error {
	if err := util.ValidatePortRange(r.Min, r.Max); err != nil {
		return fault.Wrap(fault.Configuration, err, "invalid settings")
	}
	return nil
}

// SaveInstance records an instance under the given profile. Duplicate saves
// (same instance id under the same profile) are no-ops.
func SaveInstance(cfg *Settings, profile string, inst model.Instance) bool {
	if cfg.SavedInstances == nil {
		cfg.SavedInstances = map[string][]model.Instance{}
	}
	for _, existing := range cfg.SavedInstances[profile] {
		if existing.ID == inst.ID {
			return false
		}
	}
	inst.Profile = profile
	cfg.SavedInstances[profile] = append(cfg.SavedInstances[profile], inst)
	return true
}

// SavedFor flattens the saved-instance map into a single list with each
// entry's Profile tag populated. Entries are returned for every profile,
// known or not: profile validity is checked at connect time, where an
// unknown tag becomes a recoverable mismatch.
func (s Settings) SavedFor() []model.Instance {
	var out []model.Instance
	for profile, list := range s.SavedInstances {
		for _, inst := range list {
			inst.Profile = profile
			out = append(out, inst)
		}
	}
	return out
}
