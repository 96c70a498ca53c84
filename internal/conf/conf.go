// Package conf holds the runtime configuration surface: defaults, an
// optional config.yaml, and the values the CLI flags bind onto.
package conf

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// TimezoneSettings controls how naive export timestamps are interpreted.
type TimezoneSettings struct {
	Hint string `yaml:"hint"`
}

// OutputSettings controls where a run writes its package.
type OutputSettings struct {
	Dir string `yaml:"dir"`
}

// HistorySettings controls the local run-history database.
type HistorySettings struct {
	DB string `yaml:"db"`
}

// Settings is the full configuration of a conversion run.
type Settings struct {
	Timezone        TimezoneSettings `yaml:"timezone"`
	Output          OutputSettings   `yaml:"output"`
	History         HistorySettings  `yaml:"history"`
	Validate        bool             `yaml:"validate"`
	Zip             bool             `yaml:"zip"`
	Overwrite       bool             `yaml:"overwrite"`
	OpenFolderAfter bool             `yaml:"open_folder_after" mapstructure:"open_folder_after"`
}

// Load reads defaults and the optional configuration file into Settings.
func Load() (*Settings, error) {
	settings := &Settings{}

	if err := initViper(); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	return settings, nil
}

// initViper initializes viper with default values and reads the configuration file.
func initViper() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	for _, path := range configPaths() {
		viper.AddConfigPath(path)
	}

	setDefaultConfig()

	if err := viper.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			// No config file is fine, defaults plus flags apply
			return nil
		}
		return fmt.Errorf("fatal error reading config file: %w", err)
	}

	return nil
}

// configPaths returns the directories searched for config.yaml, most
// specific first.
func configPaths() []string {
	paths := []string{"."}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "camtrap"))
	}
	return paths
}

// Sets default values for the configuration.
func setDefaultConfig() {
	viper.SetDefault("timezone.hint", "UTC-05:00")
	viper.SetDefault("output.dir", ".")
	viper.SetDefault("history.db", "runs.db")
	viper.SetDefault("validate", true)
	viper.SetDefault("zip", true)
	viper.SetDefault("overwrite", false)
	viper.SetDefault("open_folder_after", false)
}
