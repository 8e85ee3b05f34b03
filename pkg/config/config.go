package config

import (
	"fmt"
	"io/ioutil"
	"os"
	"os/user"
	"path"

	"gopkg.in/yaml.v2"
)

const (
	configDir  string = ".mscout"
	configFile string = "config.yml"
)

// Config defines all configuration options available to be set through the config file.
type Config struct {
	// Commands aliases.
	Aliases map[string][]string `yaml:"aliases"`

	// MaxCandidateDisplay is the maximum number of candidate addresses
	// that the list command prints before truncating the output.
	MaxCandidateDisplay *int `yaml:"max-candidate-display,omitempty"`

	// FreezeIntervalMS is the cadence, in milliseconds, at which the
	// freeze command re-writes a frozen value.
	FreezeIntervalMS *int `yaml:"freeze-interval-ms,omitempty"`

	// If ShowMatchPreview is true the list command reads and prints the
	// current value next to each candidate address.
	ShowMatchPreview *bool `yaml:"show-match-preview,omitempty"`
}

// MaxCandidateDisplayValue returns the configured display limit or its
// default.
func (c *Config) MaxCandidateDisplayValue() int {
	if c.MaxCandidateDisplay == nil {
		return 50
	}
	return *c.MaxCandidateDisplay
}

// FreezeIntervalMSValue returns the configured freeze cadence or its
// default.
func (c *Config) FreezeIntervalMSValue() int {
	if c.FreezeIntervalMS == nil {
		return 100
	}
	return *c.FreezeIntervalMS
}

// ShowMatchPreviewValue returns whether the list command should print
// current values, defaulting to true.
func (c *Config) ShowMatchPreviewValue() bool {
	if c.ShowMatchPreview == nil {
		return true
	}
	return *c.ShowMatchPreview
}

// LoadConfig attempts to populate a Config object from the config.yml file.
func LoadConfig() *Config {
	err := createConfigPath()
	if err != nil {
		fmt.Printf("Could not create config directory: %v.", err)
		return &Config{}
	}
	fullConfigFile, err := GetConfigFilePath(configFile)
	if err != nil {
		fmt.Printf("Unable to get config file path: %v.", err)
		return &Config{}
	}

	f, err := os.Open(fullConfigFile)
	if err != nil {
		f, err = createDefaultConfig(fullConfigFile)
		if err != nil {
			fmt.Printf("Error creating default config file: %v", err)
			return &Config{}
		}
	}
	defer func() {
		err := f.Close()
		if err != nil {
			fmt.Printf("Closing config file failed: %v.", err)
		}
	}()

	data, err := ioutil.ReadAll(f)
	if err != nil {
		fmt.Printf("Unable to read config data: %v.", err)
		return &Config{}
	}

	var c Config
	err = yaml.Unmarshal(data, &c)
	if err != nil {
		fmt.Printf("Unable to decode config file: %v.", err)
		return &Config{}
	}

	return &c
}

// SaveConfig will marshal and save the config struct
// to disk.
func SaveConfig(conf *Config) error {
	fullConfigFile, err := GetConfigFilePath(configFile)
	if err != nil {
		return err
	}

	out, err := yaml.Marshal(*conf)
	if err != nil {
		return err
	}

	f, err := os.Create(fullConfigFile)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = f.Write(out)
	return err
}

func createDefaultConfig(path string) (*os.File, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("unable to create config file: %v", err)
	}
	err = writeDefaultConfig(f)
	if err != nil {
		return nil, fmt.Errorf("unable to write default configuration: %v", err)
	}
	return f, nil
}

func writeDefaultConfig(f *os.File) error {
	_, err := f.WriteString(
		`# Configuration file for the mscout memory scanner.

# This is the default configuration file. Available options are provided, but disabled.
# Delete the leading hash mark to enable an item.

# Provided aliases will be added to the default aliases for a given command.
aliases:
  # command: ["alias1", "alias2"]

# Maximum number of candidate addresses printed by the list command.
# max-candidate-display: 50

# Interval, in milliseconds, between the writes of a freeze loop.
# freeze-interval-ms: 100

# Uncomment the following line to stop the list command from reading and
# printing the current value of every candidate.
# show-match-preview: false
`)
	return err
}

// createConfigPath creates the directory structure at which all config files are saved.
func createConfigPath() error {
	path, err := GetConfigFilePath("")
	if err != nil {
		return err
	}
	return os.MkdirAll(path, 0700)
}

// GetConfigFilePath gets the full path to the given config file name.
func GetConfigFilePath(file string) (string, error) {
	userHomeDir := "."
	usr, err := user.Current()
	if err == nil {
		userHomeDir = usr.HomeDir
	}
	return path.Join(userHomeDir, configDir, file), nil
}
