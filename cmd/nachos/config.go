package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

const (
	envVarPrefix = "NACHOS"
	appName      = "nachos"
)

// Config locates the disk image and the FUSE mountpoint. Values come
// from an optional YAML file, overridden by NACHOS_* environment
// variables, overridden by command-line flags.
type Config struct {
	Image      string `envconfig:"NACHOS_IMAGE"      yaml:"image"`
	MountPoint string `envconfig:"NACHOS_MOUNTPOINT" yaml:"mountpoint"`
}

func LoadConfig() (*Config, error) {
	configFile := os.Getenv(envVarPrefix + "_CONFIG_FILE")
	if configFile == "" {
		home, err := os.UserHomeDir()
		if err == nil {
			configFile = filepath.Join(home, ".config", appName+".yaml")
		}
	}

	var c Config
	if configFile != "" {
		data, err := os.ReadFile(configFile)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("reading config file: %w", err)
			}
		} else if err := yaml.Unmarshal(data, &c); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := envconfig.Process(envVarPrefix, &c); err != nil {
		return nil, fmt.Errorf("processing environment: %w", err)
	}
	if c.Image == "" {
		c.Image = "nachos.img"
	}
	return &c, nil
}
