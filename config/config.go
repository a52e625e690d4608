// Package config resolves the process-name selector and probe behavior
// knobs from an optional JSON file, layered underneath the environment
// variable override. It follows the load/save shape of a settings-store
// package: a missing file yields defaults, a corrupt file is an error,
// and keys absent from the file are defaulted individually rather than
// zeroing the whole document.
package config

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/afero"

	"github.com/user-none/flycast-inspect/probe"
)

// ProbeConfig holds the non-live-process knobs a consumer may persist
// across runs: an optional process-name override and hints for a
// consumer-driven retry loop. The core itself performs no retries or
// timeouts; these fields exist purely to be threaded through to
// whichever caller drives hook.
type ProbeConfig struct {
	ProcessName    string `json:"processName"`
	ProbeTimeoutMS int    `json:"probeTimeoutMS"`
	MaxHookRetries int    `json:"maxHookRetries"`
}

// DefaultProbeConfig returns the configuration used when no file is
// present.
func DefaultProbeConfig() *ProbeConfig {
	return &ProbeConfig{
		ProcessName:    "",
		ProbeTimeoutMS: 2000,
		MaxHookRetries: 0,
	}
}

// LoadProbeConfig reads path from fsys. A missing file yields
// DefaultProbeConfig with no error. A present but invalid JSON file is an
// error. JSON keys absent from the file are individually defaulted
// rather than left zero-valued.
func LoadProbeConfig(fsys afero.Fs, path string) (*ProbeConfig, error) {
	exists, err := afero.Exists(fsys, path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config: %w", err)
	}
	if !exists {
		return DefaultProbeConfig(), nil
	}

	raw, err := afero.ReadFile(fsys, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := &ProbeConfig{}
	if err := json.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigCorrupt, err)
	}

	applyMissingDefaults(cfg, detectPresentKeys(raw))
	return cfg, nil
}

// SaveProbeConfig writes cfg to path atomically: a temp file is written
// first and renamed over path, so readers never observe a partially
// written document.
func SaveProbeConfig(fsys afero.Fs, path string, cfg *ProbeConfig) error {
	jsonData, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	tempPath := path + ".tmp"
	if err := afero.WriteFile(fsys, tempPath, jsonData, 0644); err != nil {
		return fmt.Errorf("failed to write temp config: %w", err)
	}
	if err := fsys.Rename(tempPath, path); err != nil {
		_ = fsys.Remove(tempPath)
		return fmt.Errorf("failed to rename temp config: %w", err)
	}
	return nil
}

// ErrConfigCorrupt is returned by LoadProbeConfig when the file exists
// but is not valid JSON.
var ErrConfigCorrupt = errors.New("probe config file is corrupt")

// detectPresentKeys reports which top-level JSON keys actually appear in
// raw, so applyMissingDefaults can tell "explicitly zero" from "absent."
func detectPresentKeys(raw []byte) map[string]bool {
	present := make(map[string]bool)

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return present
	}
	for _, key := range []string{"processName", "probeTimeoutMS", "maxHookRetries"} {
		if _, ok := fields[key]; ok {
			present[key] = true
		}
	}
	return present
}

func applyMissingDefaults(cfg *ProbeConfig, present map[string]bool) {
	defaults := DefaultProbeConfig()

	if !present["processName"] {
		cfg.ProcessName = defaults.ProcessName
	}
	if !present["probeTimeoutMS"] {
		cfg.ProbeTimeoutMS = defaults.ProbeTimeoutMS
	}
	if !present["maxHookRetries"] {
		cfg.MaxHookRetries = defaults.MaxHookRetries
	}
}

// ResolveNames applies the three-tier precedence from the external
// interfaces: the FME_FLYCAST_PROCESS_NAME environment variable always
// wins when non-empty; otherwise cfg.ProcessName is used when non-empty;
// otherwise the platform default set applies. cfg may be nil, which is
// treated the same as an unset ProcessName.
func ResolveNames(cfg *ProbeConfig) []string {
	if override := probe.EnvOverride(); override != "" {
		return []string{override}
	}
	if cfg != nil && cfg.ProcessName != "" {
		return []string{cfg.ProcessName}
	}
	return probe.DefaultNames()
}
