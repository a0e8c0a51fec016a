// Package config loads shapegen.json project files.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
)

// FileName is the project file searched for by LoadConfig.
const FileName = "shapegen.json"

// Defaults applied by LoadConfigFromPath.
const (
	DefaultModel   = "./model.shape.gql"
	DefaultRules   = "./rules.yaml"
	DefaultOutput  = "./gen"
	DefaultPackage = "model"
)

// ErrNoConfig is returned when no shapegen.json exists in the directory or
// any parent.
var ErrNoConfig = errors.New("no " + FileName + " found")

var validate = validator.New(validator.WithRequiredStructEnabled())

// Config represents the shapegen.json configuration file
type Config struct {
	Name string `json:"name" validate:"required"`

	// Module is the Go import path of the output directory.
	Module string `json:"module" validate:"required"`

	Model   string `json:"model"`
	Rules   string `json:"rules"`
	Output  string `json:"output" validate:"required"`
	Package string `json:"package" validate:"required,lowercase,alphanum"`

	PublicConstrainedTypes       bool `json:"publicConstrainedTypes"`
	IgnoreUnsupportedConstraints bool `json:"ignoreUnsupportedConstraints"`

	Watch WatchConfig `json:"watch"`

	// Inputs left at their defaults are skipped when the file is missing.
	defaultModel bool
	defaultRules bool
}

// WatchConfig contains watch mode configuration
type WatchConfig struct {
	Paths   []string `json:"paths" validate:"dive,required"`
	Exclude []string `json:"exclude" validate:"dive,required"`
}

// LoadConfig loads shapegen.json from the current directory or a parent
// directory and returns it with the directory it was found in.
func LoadConfig() (*Config, string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return nil, "", fmt.Errorf("failed to get current directory: %w", err)
	}

	return loadConfigFromDir(dir)
}

// LoadConfigFromPath loads a shapegen.json file, applies defaults and
// validates the result.
func LoadConfigFromPath(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.applyDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &config, nil
}

func (c *Config) applyDefaults() {
	if c.Model == "" {
		c.Model = DefaultModel
		c.defaultModel = true
	}
	if c.Rules == "" {
		c.Rules = DefaultRules
		c.defaultRules = true
	}
	if c.Output == "" {
		c.Output = DefaultOutput
	}
	if c.Package == "" {
		c.Package = DefaultPackage
	}
	if c.Module == "" {
		c.Module = c.Name
	}
	if len(c.Watch.Paths) == 0 {
		c.Watch.Paths = []string{c.Model, c.Rules}
	}
	if len(c.Watch.Exclude) == 0 {
		c.Watch.Exclude = []string{".git/", strings.TrimPrefix(c.Output, "./") + "/"}
	}
}

// Validate checks the configuration against its validation tags.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	var valErrs validator.ValidationErrors
	if !errors.As(err, &valErrs) {
		return err
	}
	messages := make([]string, 0, len(valErrs))
	for _, fe := range valErrs {
		messages = append(messages, fmt.Sprintf("%s fails the %q check", fe.Namespace(), fe.Tag()))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(messages, "; "))
}

// Inputs returns the model and rule set paths resolved against dir. An input
// left at its default is returned as "" when the file does not exist.
func (c *Config) Inputs(dir string) (model, rules string, err error) {
	resolve := func(p string, defaulted bool) (string, error) {
		if !filepath.IsAbs(p) {
			p = filepath.Join(dir, p)
		}
		if _, err := os.Stat(p); err != nil {
			if defaulted && errors.Is(err, os.ErrNotExist) {
				return "", nil
			}
			return "", fmt.Errorf("input %s: %w", p, err)
		}
		return p, nil
	}

	if model, err = resolve(c.Model, c.defaultModel); err != nil {
		return "", "", err
	}
	if rules, err = resolve(c.Rules, c.defaultRules); err != nil {
		return "", "", err
	}
	return model, rules, nil
}

// OutputDir returns the output directory resolved against dir.
func (c *Config) OutputDir(dir string) string {
	if filepath.IsAbs(c.Output) {
		return c.Output
	}
	return filepath.Join(dir, c.Output)
}

// loadConfigFromDir searches for shapegen.json in the given directory and its parents
func loadConfigFromDir(startDir string) (*Config, string, error) {
	dir := startDir
	for {
		configPath := filepath.Join(dir, FileName)
		if _, err := os.Stat(configPath); err == nil {
			config, err := LoadConfigFromPath(configPath)
			if err != nil {
				return nil, "", err
			}
			return config, dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root directory
			break
		}
		dir = parent
	}

	return nil, "", fmt.Errorf("%w in %s or any parent directory", ErrNoConfig, startDir)
}
