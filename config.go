package taskrt

import (
	"os"

	"github.com/BurntSushi/toml"
)

// LoadConfig reads a RuntimeConfig from a TOML file at path, starting
// from DefaultConfig so any field the file omits keeps its default.
func LoadConfig(path string) (RuntimeConfig, error) {
	cfg := DefaultConfig()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return RuntimeConfig{}, err
	}
	return cfg, nil
}

// SaveConfig writes cfg to path as TOML, creating or truncating it.
func SaveConfig(path string, cfg RuntimeConfig) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(cfg)
}
