// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/voterprotocol/shadowatlas/internal/errs"
)

const (
	defaultConfigDir  = ".atlas"
	defaultConfigFile = "atlas.yaml"
	configVersion     = "1"
)

// Config is the on-disk atlas.yaml configuration: where the registry's
// three NDJSON files live, where downloaded content is cached, and
// where batch/incremental run state (checkpoints, DLQ, events) is
// persisted between invocations.
//
// Grounded on cmd/cie/config.go's Config/DefaultConfig/LoadConfig
// load-validate cycle, narrowed from CIE's multi-section project.yaml
// to the handful of paths this CLI actually needs.
type Config struct {
	Version     string `yaml:"version"`
	RegistryDir string `yaml:"registry_dir"`
	CacheDir    string `yaml:"cache_dir"`
	StateFile   string `yaml:"state_file"`
}

// DefaultConfig returns a Config rooted at the current directory's
// .atlas/ subtree, matching cmd/cie's "everything under one dotdir"
// convention.
func DefaultConfig() *Config {
	return &Config{
		Version:     configVersion,
		RegistryDir: getEnv("ATLAS_REGISTRY_DIR", defaultConfigDir+"/registry"),
		CacheDir:    getEnv("ATLAS_CACHE_DIR", defaultConfigDir+"/cache"),
		StateFile:   getEnv("ATLAS_STATE_FILE", defaultConfigDir+"/state.json"),
	}
}

// LoadConfig loads atlas.yaml from configPath, or returns DefaultConfig
// if configPath is empty and no default-location file exists. A
// present-but-invalid file is always an error; a missing file at an
// explicit path is always an error (mirrors cmd/cie/config.go's
// distinction between "not configured" and "misconfigured").
func LoadConfig(configPath string) (*Config, error) {
	explicit := configPath != ""
	if configPath == "" {
		configPath = defaultConfigDir + "/" + defaultConfigFile
	}

	data, err := os.ReadFile(configPath) //nolint:gosec // G304: path comes from flag or fixed default
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			return DefaultConfig(), nil
		}
		return nil, errs.Wrap(errs.ConfigError, "read config file "+configPath, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errs.Wrap(errs.ConfigError, "parse config file "+configPath, err)
	}
	if cfg.Version != configVersion {
		return nil, errs.New(errs.ConfigError, fmt.Sprintf("unsupported config version %q (expected %q)", cfg.Version, configVersion))
	}
	return &cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
