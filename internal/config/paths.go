package config

import (
	"os"
	"path/filepath"
)

const (
	// EnvConfigPath is the environment variable for explicit config path
	EnvConfigPath = "BOOKSYS_CONFIG"
	// ConfigFileName is the default config file name
	ConfigFileName = "booksys.yaml"
	// ConfigDirName is the config directory name under XDG
	ConfigDirName = "booksys"
)

// searchPaths lists config locations from highest to lowest priority:
// $BOOKSYS_CONFIG, ./booksys.yaml, $XDG_CONFIG_HOME/booksys/config.yaml,
// ~/.config/booksys/config.yaml and /etc/booksys/config.yaml.
func searchPaths() []string {
	var paths []string
	if path := os.Getenv(EnvConfigPath); path != "" {
		paths = append(paths, path)
	}
	paths = append(paths, ConfigFileName)
	paths = append(paths, userConfigPaths()...)
	return append(paths, filepath.Join("/etc", ConfigDirName, "config.yaml"))
}

// userConfigPaths returns the per-user XDG locations that apply
func userConfigPaths() []string {
	var paths []string
	if xdgHome := os.Getenv("XDG_CONFIG_HOME"); xdgHome != "" {
		paths = append(paths, filepath.Join(xdgHome, ConfigDirName, "config.yaml"))
	}
	if home := os.Getenv("HOME"); home != "" {
		paths = append(paths, filepath.Join(home, ".config", ConfigDirName, "config.yaml"))
	}
	return paths
}

// FindConfigPath returns the first existing file from searchPaths, made
// absolute when it is relative. Returns empty string if none exists.
func FindConfigPath() string {
	for _, path := range searchPaths() {
		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			continue
		}
		if abs, err := filepath.Abs(path); err == nil {
			return abs
		}
		return path
	}
	return ""
}

// DefaultConfigPath returns where init-config writes a new file:
// $BOOKSYS_CONFIG when set, so a later Load finds it, then the XDG
// location, then the working directory.
func DefaultConfigPath() string {
	if path := os.Getenv(EnvConfigPath); path != "" {
		return path
	}
	if paths := userConfigPaths(); len(paths) > 0 {
		return paths[0]
	}
	return ConfigFileName
}
