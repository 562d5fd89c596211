package neat

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/ini.v1"
	"gopkg.in/yaml.v3"

	"github.com/baldhumanity/hyperneat-go/neat/nn"
)

// Config stores the configuration parameters for the NEAT algorithm.
type Config struct {
	Neat      NeatConfig      `yaml:"neat"`
	Genome    GenomeConfig    `yaml:"genome"`
	Mutation  MutationConfig  `yaml:"mutation"`
	Species   SpeciesConfig   `yaml:"species"`
	Selection SelectionConfig `yaml:"selection"`
}

// NeatConfig holds parameters specific to the NEAT algorithm itself.
type NeatConfig struct {
	PopSize              int     `ini:"pop_size" yaml:"pop_size"`
	FitnessThreshold     float64 `ini:"fitness_threshold" yaml:"fitness_threshold"`
	NoFitnessTermination bool    `ini:"no_fitness_termination" yaml:"no_fitness_termination"`
	Seed                 int64   `ini:"seed" yaml:"seed"`
}

// GenomeConfig holds the initial topology of new genomes.
type GenomeConfig struct {
	NumInputs        int    `ini:"num_inputs" yaml:"num_inputs"`
	NumOutputs       int    `ini:"num_outputs" yaml:"num_outputs"`
	HiddenLayers     []int  `ini:"hidden_layers" delim:" " yaml:"hidden_layers"` // Space-separated sizes
	HiddenActivation string `ini:"hidden_activation" yaml:"hidden_activation"`
	OutputActivation string `ini:"output_activation" yaml:"output_activation"`
	FullyConnected   bool   `ini:"fully_connected" yaml:"fully_connected"`
	RecurrentAllowed bool   `ini:"recurrent_allowed" yaml:"recurrent_allowed"`
	CPPN             bool   `ini:"cppn" yaml:"cppn"`
}

// MutationConfig holds the per-kind probabilities used by Genome.Mutate.
type MutationConfig struct {
	NodeAddProb          float64  `ini:"node_add_prob" yaml:"node_add_prob"`
	ConnAddProb          float64  `ini:"conn_add_prob" yaml:"conn_add_prob"`
	EnableProb           float64  `ini:"enable_prob" yaml:"enable_prob"`
	DisableProb          float64  `ini:"disable_prob" yaml:"disable_prob"`
	WeightMutateProb     float64  `ini:"weight_mutate_prob" yaml:"weight_mutate_prob"`
	WeightMutatePower    float64  `ini:"weight_mutate_power" yaml:"weight_mutate_power"`
	WeightReplaceRate    float64  `ini:"weight_replace_rate" yaml:"weight_replace_rate"`
	BiasMutateProb       float64  `ini:"bias_mutate_prob" yaml:"bias_mutate_prob"`
	BiasMutatePower      float64  `ini:"bias_mutate_power" yaml:"bias_mutate_power"`
	ActivationMutateProb float64  `ini:"activation_mutate_prob" yaml:"activation_mutate_prob"`
	ActivationOptions    []string `ini:"activation_options" delim:" " yaml:"activation_options"` // Space-separated list
}

// SpeciesConfig holds parameters related to speciation and species aging.
type SpeciesConfig struct {
	CompatibilityThreshold float64 `ini:"compatibility_threshold" yaml:"compatibility_threshold"`
	ExcessCoefficient      float64 `ini:"excess_coefficient" yaml:"excess_coefficient"`
	DisjointCoefficient    float64 `ini:"disjoint_coefficient" yaml:"disjoint_coefficient"`
	WeightCoefficient      float64 `ini:"weight_coefficient" yaml:"weight_coefficient"`
	MaxAge                 int     `ini:"max_age" yaml:"max_age"`
}

// SelectionConfig chooses and tunes the selection algorithm.
type SelectionConfig struct {
	Algorithm        string  `ini:"algorithm" yaml:"algorithm"` // tournament, truncation or fps
	Ratio            float64 `ini:"ratio" yaml:"ratio"`
	TournamentRounds int     `ini:"tournament_rounds" yaml:"tournament_rounds"`
	InterSpecies     bool    `ini:"inter_species" yaml:"inter_species"`
	DisableProb      float64 `ini:"crossover_disable_prob" yaml:"crossover_disable_prob"`
}

// DefaultConfig returns the configuration used for keys a file leaves out.
func DefaultConfig() *Config {
	return &Config{
		Neat: NeatConfig{
			PopSize:          150,
			FitnessThreshold: 1,
			Seed:             1,
		},
		Genome: GenomeConfig{
			NumInputs:        1,
			NumOutputs:       1,
			HiddenActivation: nn.Sigmoid.String(),
			OutputActivation: nn.Sigmoid.String(),
			FullyConnected:   true,
		},
		Mutation: MutationConfig{
			NodeAddProb:          0.03,
			ConnAddProb:          0.05,
			EnableProb:           0.01,
			DisableProb:          0.01,
			WeightMutateProb:     0.8,
			WeightMutatePower:    0.5,
			WeightReplaceRate:    0.1,
			BiasMutateProb:       0.3,
			BiasMutatePower:      0.2,
			ActivationMutateProb: 0.1,
			ActivationOptions:    []string{"sigmoid", "tanh", "gaussian", "sine", "identity", "absolute"},
		},
		Species: SpeciesConfig{
			CompatibilityThreshold: 3.0,
			ExcessCoefficient:      1.0,
			DisjointCoefficient:    1.0,
			WeightCoefficient:      0.4,
			MaxAge:                 15,
		},
		Selection: SelectionConfig{
			Algorithm:        "tournament",
			Ratio:            0.3,
			TournamentRounds: 2,
			DisableProb:      0.75,
		},
	}
}

// LoadConfig loads configuration parameters from an INI file, or from YAML when
// the file extension is .yaml or .yml. Keys the file omits keep the values of
// DefaultConfig.
func LoadConfig(filePath string) (*Config, error) {
	config := DefaultConfig()

	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".yaml", ".yml":
		data, err := os.ReadFile(filePath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file '%s': %w", filePath, err)
		}
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file '%s': %w", filePath, err)
		}
	default:
		if err := loadINI(filePath, config); err != nil {
			return nil, err
		}
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func loadINI(filePath string, config *Config) error {
	cfg, err := ini.LoadSources(ini.LoadOptions{
		IgnoreInlineComment:         true, // Allow # comments starting with # or ;
		UnescapeValueCommentSymbols: true, // If # or ; appear in value, treat as value
	}, filePath)
	if err != nil {
		return fmt.Errorf("failed to load config file '%s': %w", filePath, err)
	}

	sections := []struct {
		name   string
		target any
	}{
		{"NEAT", &config.Neat},
		{"Genome", &config.Genome},
		{"Mutation", &config.Mutation},
		{"Species", &config.Species},
		{"Selection", &config.Selection},
	}
	for _, s := range sections {
		if !cfg.HasSection(s.name) {
			continue
		}
		if err := cfg.Section(s.name).MapTo(s.target); err != nil {
			return fmt.Errorf("failed to map [%s] section: %w", s.name, err)
		}
	}

	// --- Explicitly clean potentially problematic string values ---
	config.Genome.HiddenActivation = cleanIniString(config.Genome.HiddenActivation)
	config.Genome.OutputActivation = cleanIniString(config.Genome.OutputActivation)
	config.Selection.Algorithm = cleanIniString(config.Selection.Algorithm)
	for i, opt := range config.Mutation.ActivationOptions {
		config.Mutation.ActivationOptions[i] = strings.TrimSpace(opt)
	}
	return nil
}

// Validate checks value ranges and names.
func (c *Config) Validate() error {
	if c.Neat.PopSize <= 0 {
		return fmt.Errorf("config error: pop_size must be positive")
	}
	if c.Genome.NumInputs <= 0 {
		return fmt.Errorf("config error: num_inputs must be positive")
	}
	if c.Genome.NumOutputs <= 0 {
		return fmt.Errorf("config error: num_outputs must be positive")
	}
	for _, size := range c.Genome.HiddenLayers {
		if size <= 0 {
			return fmt.Errorf("config error: hidden_layers sizes must be positive")
		}
	}
	if _, err := nn.ParseActivation(c.Genome.HiddenActivation); err != nil {
		return fmt.Errorf("config error: hidden_activation: %w", err)
	}
	if _, err := nn.ParseActivation(c.Genome.OutputActivation); err != nil {
		return fmt.Errorf("config error: output_activation: %w", err)
	}
	for _, opt := range c.Mutation.ActivationOptions {
		if _, err := nn.ParseActivation(opt); err != nil {
			return fmt.Errorf("config error: activation_options: %w", err)
		}
	}

	probs := map[string]float64{
		"node_add_prob":          c.Mutation.NodeAddProb,
		"conn_add_prob":          c.Mutation.ConnAddProb,
		"enable_prob":            c.Mutation.EnableProb,
		"disable_prob":           c.Mutation.DisableProb,
		"weight_mutate_prob":     c.Mutation.WeightMutateProb,
		"weight_replace_rate":    c.Mutation.WeightReplaceRate,
		"bias_mutate_prob":       c.Mutation.BiasMutateProb,
		"activation_mutate_prob": c.Mutation.ActivationMutateProb,
		"crossover_disable_prob": c.Selection.DisableProb,
	}
	for name, p := range probs {
		if p < 0 || p > 1 {
			return fmt.Errorf("config error: %s must be between 0 and 1", name)
		}
	}
	if c.Mutation.WeightMutatePower < 0 || c.Mutation.BiasMutatePower < 0 {
		return fmt.Errorf("config error: mutate powers cannot be negative")
	}

	if c.Species.CompatibilityThreshold < 0 {
		return fmt.Errorf("config error: compatibility_threshold cannot be negative")
	}
	if c.Species.ExcessCoefficient < 0 || c.Species.DisjointCoefficient < 0 || c.Species.WeightCoefficient < 0 {
		return fmt.Errorf("config error: compatibility coefficients cannot be negative")
	}
	if c.Species.MaxAge <= 0 {
		return fmt.Errorf("config error: max_age must be positive")
	}

	if c.Selection.Ratio <= 0 || c.Selection.Ratio > 1 {
		return fmt.Errorf("config error: selection ratio must be in (0, 1]")
	}
	if _, err := c.NewSelection(); err != nil {
		return err
	}
	return nil
}

// Topology returns the initial genome topology described by the config.
func (c *Config) Topology() Topology {
	hidden, _ := nn.ParseActivation(c.Genome.HiddenActivation)
	output, _ := nn.ParseActivation(c.Genome.OutputActivation)
	return Topology{
		Inputs:           c.Genome.NumInputs,
		Outputs:          c.Genome.NumOutputs,
		Hidden:           c.Genome.HiddenLayers,
		HiddenActivation: hidden,
		OutputActivation: output,
		FullyConnected:   c.Genome.FullyConnected,
		RecurrentAllowed: c.Genome.RecurrentAllowed,
		CPPN:             c.Genome.CPPN,
	}
}

// NewSelection builds the configured selection algorithm.
func (c *Config) NewSelection() (SelectionAlgorithm, error) {
	switch strings.ToLower(c.Selection.Algorithm) {
	case "tournament", "":
		rounds := c.Selection.TournamentRounds
		if rounds < 2 {
			rounds = 2
		}
		return Tournament{Rounds: rounds, Ratio: c.Selection.Ratio}, nil
	case "truncation":
		return Truncation{Ratio: c.Selection.Ratio}, nil
	case "fps":
		return FPS{Ratio: c.Selection.Ratio}, nil
	}
	return nil, fmt.Errorf("config error: invalid selection algorithm '%s', must be one of 'tournament', 'truncation', 'fps'", c.Selection.Algorithm)
}

func (m MutationConfig) activations() []nn.ActivationType {
	out := make([]nn.ActivationType, 0, len(m.ActivationOptions))
	for _, name := range m.ActivationOptions {
		if a, err := nn.ParseActivation(name); err == nil {
			out = append(out, a)
		}
	}
	return out
}

// cleanIniString removes inline comments and trims whitespace from a string read from INI.
func cleanIniString(s string) string {
	// Remove comments starting with # or ;
	if idx := strings.IndexAny(s, "#;"); idx != -1 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}
