package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// UserFrameworkDir returns the per-user framework directory
// (~/<frameworkDirName>).
func UserFrameworkDir(frameworkDirName string) (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, frameworkDirName), nil
}

// UserAgentsDir returns the user-tier agents directory
// (~/<frameworkDirName>/agents).
func UserAgentsDir(frameworkDirName string) (string, error) {
	dir, err := UserFrameworkDir(frameworkDirName)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "agents"), nil
}

// DefaultConfigPath returns the default configuration file path
// (~/<frameworkDirName>/config.yaml).
func DefaultConfigPath(frameworkDirName string) (string, error) {
	dir, err := UserFrameworkDir(frameworkDirName)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// ExpandPath expands a ~ prefix in path to the user home directory.
func ExpandPath(path string) (string, error) {
	if path == "" {
		return "", nil
	}

	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("get home dir: %w", err)
		}
		return filepath.Join(home, path[2:]), nil
	}

	if path == "~" {
		return os.UserHomeDir()
	}

	return path, nil
}
