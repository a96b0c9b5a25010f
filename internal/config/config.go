package config

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config represents the optional fasttransfer configuration file. Every
// field is a flag default; the CLI overrides whatever is set here, and
// Load never fails just because the file is absent.
type Config struct {
	Defaults DefaultsConfig `toml:"defaults"`
}

// DefaultsConfig holds persistent flag defaults for engine.Config.
type DefaultsConfig struct {
	WorkerCount        *int    `toml:"worker_count"`
	ChunkSizeLimitMB   *int64  `toml:"chunk_size_limit_mb"`
	ChunkFileLimit     *int    `toml:"chunk_file_limit"`
	SubprocessTimeoutS *int    `toml:"subprocess_timeout_s"`
	CopyOnly           *bool   `toml:"copy_only"`
	CreateSymlink      *bool   `toml:"create_symlink"`
	ResumeSession      *bool   `toml:"resume_session"`
	ArchiverBinPath    *string `toml:"archiver_bin_path"`
}

// Path returns the resolved path to the config file.
func Path() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "fasttransfer", "config.toml")
}

// Load reads the config file from the XDG path. Returns a zero Config
// (no error) if the file does not exist. Config is always optional.
func Load() (Config, error) {
	path := Path()
	if path == "" {
		return Config{}, nil
	}

	var cfg Config
	_, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Config{}, nil
		}
		return Config{}, err
	}
	return cfg, nil
}
