package config

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// EnvTmpDir names the environment variable consulted for the scratch
// directory when neither the flag nor the config file sets one.
const EnvTmpDir = "SCRATCH_TMPDIR"

// Config represents the optional scratch configuration file.
type Config struct {
	Defaults DefaultsConfig `toml:"defaults"`
}

// DefaultsConfig holds persistent flag defaults.
type DefaultsConfig struct {
	TmpDir   *string `toml:"tmp_dir"`
	Workers  *int    `toml:"workers"`
	BWLimit  *string `toml:"bwlimit"`
	Truncate *string `toml:"truncate"`
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
	return filepath.Join(dir, "scratch", "config.toml")
}

// Load reads the config file from the XDG path. Returns a zero Config
// (no error) if the file does not exist. Config is always optional.
func Load() (Config, error) {
	path := Path()
	if path == "" {
		return Config{}, nil
	}
	return LoadFile(path)
}

// LoadFile reads the config at path. A missing file yields a zero Config.
func LoadFile(path string) (Config, error) {
	var cfg Config
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Config{}, nil
		}
		return Config{}, err
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return cfg, &UnknownKeysError{Keys: undecoded}
	}
	return cfg, nil
}

// UnknownKeysError reports config keys that do not map to any setting. The
// accompanying Config is still usable.
type UnknownKeysError struct {
	Keys []toml.Key
}

func (e *UnknownKeysError) Error() string {
	msg := "unknown config keys:"
	for _, k := range e.Keys {
		msg += " " + k.String()
	}
	return msg
}

// TmpDir picks the scratch directory: an explicit flag value wins, then the
// config file, then $SCRATCH_TMPDIR. An empty result means the registry
// default.
func TmpDir(flag string, flagSet bool, cfg Config) string {
	if flagSet {
		return flag
	}
	if cfg.Defaults.TmpDir != nil {
		return *cfg.Defaults.TmpDir
	}
	return os.Getenv(EnvTmpDir)
}
