// Package config provides configuration management for stockctl
package config

import (
	"os"
	"path/filepath"
)

const (
	// AppName is the application name
	AppName = "stockctl"

	// AppDirName is the directory name for app data
	AppDirName = ".stockctl"

	// EnvPrefix prefixes every environment override
	EnvPrefix = "STOCKCTL_"
)

// GetAppDir returns the application data directory (~/.stockctl)
func GetAppDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, AppDirName), nil
}

// GetConfigPath returns the global config file path
func GetConfigPath() (string, error) {
	appDir, err := GetAppDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(appDir, "config.yaml"), nil
}

// GetLogPath returns the default log file path
func GetLogPath() (string, error) {
	appDir, err := GetAppDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(appDir, "stockctl.log"), nil
}
