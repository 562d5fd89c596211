package hyperneat

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/ini.v1"
	"gopkg.in/yaml.v3"

	"github.com/baldhumanity/hyperneat-go/neat/nn"
)

// Config is the file form of Settings. It lives in the [HyperNEAT] section of
// an INI file or under the hyperneat key of a YAML file, next to the NEAT
// sections that configure the CPPN population.
type Config struct {
	Mode             string  `ini:"mode" yaml:"mode"`
	Inputs           int     `ini:"substrate_inputs" yaml:"substrate_inputs"`
	Hidden           []int   `ini:"substrate_hidden" delim:" " yaml:"substrate_hidden"`
	Outputs          int     `ini:"substrate_outputs" yaml:"substrate_outputs"`
	HiddenActivation string  `ini:"hidden_activation" yaml:"hidden_activation"`
	OutputActivation string  `ini:"output_activation" yaml:"output_activation"`
	LEOThreshold     float64 `ini:"leo_threshold" yaml:"leo_threshold"`
	MaxWeight        float64 `ini:"max_weight" yaml:"max_weight"`
	CPPNHidden       []int   `ini:"cppn_hidden" delim:" " yaml:"cppn_hidden"`
}

func defaultConfig() Config {
	return Config{
		Mode:             Sandwich.String(),
		HiddenActivation: nn.Sigmoid.String(),
		OutputActivation: nn.Sigmoid.String(),
		MaxWeight:        3,
	}
}

// LoadConfig reads the substrate configuration from an INI file, or from YAML
// when the extension is .yaml or .yml.
func LoadConfig(filePath string) (*Config, error) {
	cfg := defaultConfig()
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".yaml", ".yml":
		data, err := os.ReadFile(filePath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file '%s': %w", filePath, err)
		}
		wrapper := struct {
			HyperNEAT *Config `yaml:"hyperneat"`
		}{&cfg}
		if err := yaml.Unmarshal(data, &wrapper); err != nil {
			return nil, fmt.Errorf("failed to parse config file '%s': %w", filePath, err)
		}
	default:
		file, err := ini.LoadSources(ini.LoadOptions{IgnoreInlineComment: true}, filePath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file '%s': %w", filePath, err)
		}
		if !file.HasSection("HyperNEAT") {
			return nil, fmt.Errorf("config file '%s' has no [HyperNEAT] section", filePath)
		}
		if err := file.Section("HyperNEAT").MapTo(&cfg); err != nil {
			return nil, fmt.Errorf("failed to map [HyperNEAT] section: %w", err)
		}
	}
	if _, err := cfg.Settings(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Settings converts the file form into validated Settings.
func (c *Config) Settings() (Settings, error) {
	mode, err := ParseMode(stripComment(c.Mode))
	if err != nil {
		return Settings{}, fmt.Errorf("config error: %w", err)
	}
	hidden, err := nn.ParseActivation(stripComment(c.HiddenActivation))
	if err != nil {
		return Settings{}, fmt.Errorf("config error: hidden_activation: %w", err)
	}
	output, err := nn.ParseActivation(stripComment(c.OutputActivation))
	if err != nil {
		return Settings{}, fmt.Errorf("config error: output_activation: %w", err)
	}
	s := Settings{
		Mode:             mode,
		Shape:            Shape{Inputs: c.Inputs, Hidden: c.Hidden, Outputs: c.Outputs},
		HiddenActivation: hidden,
		OutputActivation: output,
		LEOThreshold:     c.LEOThreshold,
		MaxWeight:        c.MaxWeight,
	}
	if err := s.Validate(); err != nil {
		return Settings{}, fmt.Errorf("config error: %w", err)
	}
	return s, nil
}

func stripComment(s string) string {
	if idx := strings.IndexAny(s, "#;"); idx != -1 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}
