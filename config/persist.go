package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	"github.com/stratumdb/stratum/errors"
)

// createBackup creates rotating backups (.back1, .back2, .back3) before
// modifying a config file.
func createBackup(configPath string) error {
	// Check if file exists before backing up
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil // No file to backup
	}

	// Rotate backups: .back3 -> delete, .back2 -> .back3, .back1 -> .back2, current -> .back1
	back3 := configPath + ".back3"
	back2 := configPath + ".back2"
	back1 := configPath + ".back1"

	// Delete oldest backup if exists
	if err := os.Remove(back3); err != nil && !os.IsNotExist(err) {
		// Log deletion failures (but don't fail config save)
		fmt.Printf("⚠️  Failed to delete old backup %s: %v\n", back3, err)
	}

	// Rotate .back2 to .back3
	if _, err := os.Stat(back2); err == nil {
		if err := os.Rename(back2, back3); err != nil {
			return errors.Wrap(err, "failed to rotate .back2 to .back3")
		}
	}

	// Rotate .back1 to .back2
	if _, err := os.Stat(back1); err == nil {
		if err := os.Rename(back1, back2); err != nil {
			return errors.Wrap(err, "failed to rotate .back1 to .back2")
		}
	}

	// Copy current to .back1
	content, err := os.ReadFile(configPath)
	if err != nil {
		return errors.Wrap(err, "failed to read config for backup")
	}

	if err := os.WriteFile(back1, content, 0644); err != nil {
		return errors.Wrap(err, "failed to create .back1")
	}

	return nil
}

// GetUserConfigPath returns the path to the user config file in
// ~/.stratum/config.toml.
func GetUserConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".stratum", "config.toml")
}

// loadOrInitializeUserConfig loads the user config file, or creates an empty
// one if it doesn't exist.
func loadOrInitializeUserConfig() (map[string]interface{}, string, error) {
	configPath := GetUserConfigPath()
	if configPath == "" {
		return nil, "", errors.New("could not determine home directory")
	}

	// Ensure ~/.stratum directory exists
	stratumDir := filepath.Dir(configPath)
	if err := os.MkdirAll(stratumDir, DefaultDirPermissions); err != nil {
		return nil, "", errors.Wrap(err, "failed to create .stratum directory")
	}

	// Try to read existing config
	var config map[string]interface{}
	if data, err := os.ReadFile(configPath); err == nil {
		// File exists, parse it
		if err := toml.Unmarshal(data, &config); err != nil {
			return nil, "", errors.Wrap(err, "failed to parse user config")
		}
	} else {
		// File doesn't exist, create empty config
		config = make(map[string]interface{})
	}

	return config, configPath, nil
}

// Save writes the config map to configPath with backup rotation, marking
// the write as our own so the watcher does not trigger a reload loop.
func Save(config map[string]interface{}, configPath string) error {
	// Create backup
	if err := createBackup(configPath); err != nil {
		return errors.Wrap(err, "failed to create backup")
	}

	// Marshal to TOML
	data, err := toml.Marshal(config)
	if err != nil {
		return errors.Wrap(err, "failed to marshal config")
	}

	// Mark this as our own write to prevent reload loops
	globalWatcherMu.Lock()
	if globalWatcher != nil {
		globalWatcher.MarkOwnWrite()
	}
	globalWatcherMu.Unlock()

	// Write to file
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return errors.Wrap(err, "failed to write config")
	}

	return nil
}

// UpdateDatabasePath updates the database.path setting in the user config.
func UpdateDatabasePath(path string) error {
	return updateSection("database", "path", path)
}

// UpdateLogJSON updates the log.json setting in the user config.
func UpdateLogJSON(json bool) error {
	return updateSection("log", "json", json)
}

// UpdateFetcherEndpoint updates the fetcher.endpoint setting in the user
// config.
func UpdateFetcherEndpoint(endpoint string) error {
	return updateSection("fetcher", "endpoint", endpoint)
}

// updateSection sets one key in one TOML section of the user config and
// saves the file.
func updateSection(section, key string, value interface{}) error {
	config, configPath, err := loadOrInitializeUserConfig()
	if err != nil {
		return errors.Wrap(err, "failed to load user config")
	}

	var table map[string]interface{}
	if t, ok := config[section].(map[string]interface{}); ok {
		table = t
	} else {
		table = make(map[string]interface{})
	}

	table[key] = value
	config[section] = table

	return Save(config, configPath)
}
