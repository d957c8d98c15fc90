// SPDX-License-Identifier: GPL-2.0-or-later

package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"depthrec/pkg/framestore"

	"gopkg.in/yaml.v3"
)

// ConfigEnv stores system configuration.
type ConfigEnv struct {
	StorageDir string `yaml:"storageDir"`

	// MaxDiskUsage is the usage percent above which the oldest
	// session is purged.
	MaxDiskUsage int `yaml:"maxDiskUsage"`

	CompressionLevel int `yaml:"compressionLevel"`

	SensorWidth  uint32 `yaml:"sensorWidth"`
	SensorHeight uint32 `yaml:"sensorHeight"`

	ConfigDir string
}

// ErrPathNotAbsolute path is not absolute.
var ErrPathNotAbsolute = errors.New("path is not absolute")

// NewConfigEnv return new environment configuration.
func NewConfigEnv(envPath string, envYAML []byte) (*ConfigEnv, error) {
	var env ConfigEnv

	if err := yaml.Unmarshal(envYAML, &env); err != nil {
		return nil, fmt.Errorf("unmarshal env.yaml: %w", err)
	}

	env.ConfigDir = filepath.Dir(envPath)

	if env.StorageDir == "" {
		env.StorageDir = filepath.Join(env.ConfigDir, "storage")
	}
	if env.MaxDiskUsage == 0 {
		env.MaxDiskUsage = 95
	}
	if env.CompressionLevel == 0 {
		env.CompressionLevel = framestore.DefaultCompressionLevel
	}
	if env.SensorWidth == 0 {
		env.SensorWidth = 1280
	}
	if env.SensorHeight == 0 {
		env.SensorHeight = 720
	}

	if !filepath.IsAbs(env.StorageDir) {
		return nil, fmt.Errorf("storageDir: %v: %w", env.StorageDir, ErrPathNotAbsolute)
	}

	return &env, nil
}

// PrepareEnvironment creates the storage directories.
func (env ConfigEnv) PrepareEnvironment() error {
	sessionsDir := filepath.Join(env.StorageDir, "sessions")
	if err := os.MkdirAll(sessionsDir, 0o700); err != nil {
		return fmt.Errorf("create sessions directory: %v: %w", sessionsDir, err)
	}
	return nil
}
