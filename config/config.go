package config

import (
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/bluwireless/blade/log"
	"github.com/bluwireless/blade/util"
	"gopkg.in/yaml.v3"
)

// Config holds user-level defaults for elaboration. Command line flags
// override anything set here.
type Config struct {
	// Strict turns field layout warnings into hard errors.
	Strict bool `yaml:"strict"`
	// MaxDepth truncates hierarchy expansion, zero means unlimited.
	MaxDepth int `yaml:"max_depth"`
	// Include lists directories searched for schema files on every run.
	Include []string `yaml:"include"`
}

var environment map[string]string
var config *Config

const configFileName string = "config.yaml"

func init() {
	environment = make(map[string]string)
	for _, v := range os.Environ() {
		parts := strings.Split(v, "=")
		if len(parts) == 2 {
			key := parts[0]
			value := parts[1]
			environment[key] = value
		}
	}
}

func getBladeConfigDir() (string, error) {
	if bladeConfigDir, ok := environment["BLADE_CONFIG_DIR"]; ok {
		return bladeConfigDir, nil
	}

	if xdgConfigHome, ok := environment["XDG_CONFIG_HOME"]; ok {
		return path.Join(xdgConfigHome, "blade"), nil
	}

	if homeDir, ok := environment["HOME"]; ok {
		return path.Join(path.Join(homeDir, ".config"), "blade"), nil
	}

	return "", fmt.Errorf("Unable to locate the configuration directory")
}

func loadConfiguration() Config {
	var config Config

	configDir, err := getBladeConfigDir()
	if err != nil {
		log.Debug("Unable to find blade config directory. Using default configuration\n")
		return config
	}

	configFilePath := path.Join(configDir, configFileName)
	if !util.FileExists(configFilePath) {
		log.Debug("No configuration file at `%s`. Using default configuration\n", configFilePath)
		return config
	}
	if err := yaml.Unmarshal(util.ReadFile(configFilePath), &config); err != nil {
		log.Debug("Error reading configuration file at `%s`: `%s`. Using default configuration\n", configFilePath, err)
		return config
	}

	log.Debug("Loaded configuration from `%s`\n", configFilePath)
	log.Debug("Running with configuration: %+v\n", config)
	return config
}

// GetConfig loads the user configuration once and caches it.
func GetConfig() Config {
	if config == nil {
		loadedConfig := loadConfiguration()
		config = &loadedConfig
	}

	return *config
}
