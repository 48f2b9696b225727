package config

import (
	"log"
	"os"
	"path/filepath"
)

// FileName is the config file looked up when no path is given.
const FileName = "flametrace.yml"

// FindFile returns the first config file found: configArg, then FileName in the
// working directory, then next to the executable. It returns "" if none exists.
func FindFile(configArg string) string {
	if configArg != "" {
		if _, err := os.Stat(configArg); err == nil {
			return configArg
		}
		log.Printf("Warning: config file not found at %s, trying default locations", configArg)
	}

	if _, err := os.Stat(FileName); err == nil {
		return FileName
	}

	exePath, err := os.Executable()
	if err == nil {
		path := filepath.Join(filepath.Dir(exePath), FileName)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// LoadOrDefault loads the file FindFile picks, or the defaults when there is none.
// The returned path is empty in the latter case.
func LoadOrDefault(configArg string) (*Config, string, error) {
	path := FindFile(configArg)
	if path == "" {
		return Default(), "", nil
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, path, err
	}
	return cfg, path, nil
}
