package app

import (
	"fmt"
	"os"
	"path/filepath"
)

// GetDefaults returns application default paths, checking environment variables first.
// Environment variables:
//   - SIV_CONFIG_PATH: config file location (default: ~/.config/siv.toml)
//   - SIV_HOME: base directory for siv data (default: ~/.local/share/siv)
func GetDefaults() (map[string]string, error) {
	configPath, err := getConfigPath()
	if err != nil {
		return nil, err
	}

	baseDir, err := getBaseDir()
	if err != nil {
		return nil, err
	}

	return map[string]string{
		"config_path": configPath,
		"base_dir":    baseDir,
		"log_dir":     filepath.Join(baseDir, "log"),
	}, nil
}

// getConfigPath returns SIV_CONFIG_PATH, or ~/.config/siv.toml.
func getConfigPath() (string, error) {
	if path := os.Getenv("SIV_CONFIG_PATH"); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "siv.toml"), nil
}

// getBaseDir returns SIV_HOME, or the XDG default ~/.local/share/siv.
func getBaseDir() (string, error) {
	if path := os.Getenv("SIV_HOME"); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".local", "share", "siv"), nil
}
