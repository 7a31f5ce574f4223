// Package config holds the run configuration shared by the CLI commands.
package config

import (
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config captures the knobs for a training run.
type Config struct {
	Data       string `yaml:"data"`        // IDX directory, or "synthetic"
	MaxSamples int    `yaml:"max_samples"` // 0 loads everything
	Synapse    string `yaml:"synapse"`     // checkpoint to resume from
	Base       string `yaml:"base"`        // checkpoint name prefix

	Log   string `yaml:"log"`   // optional log file
	Level string `yaml:"level"` // debug or info
	Plot  string `yaml:"plot"`  // optional training history chart (.svg/.png)

	LearnC   float64 `yaml:"learn_c"`  // convolutional learning rate
	LearnF   float64 `yaml:"learn_f"`  // fully-connected learning rate
	ContrF   float64 `yaml:"contr_f"`  // contraction rate of fully-connected encoders
	Momentum float64 `yaml:"momentum"` // momentum rate of every layer
	L1       float64 `yaml:"l1"`
	L2       float64 `yaml:"l2"`
	Dropout  bool    `yaml:"dropout"`

	Kernel int `yaml:"kernel"` // kernels per convolutional layer
	Neuron int `yaml:"neuron"` // hidden fully-connected units

	Epoch   int     `yaml:"epoch"`   // unsupervised epochs per layer
	Limit   int     `yaml:"limit"`   // supervised epochs between validation checks
	Stop    int     `yaml:"stop"`    // non-improving checks before stopping
	Holdout float64 `yaml:"holdout"` // validation fraction
	Batch   int     `yaml:"batch"`   // mini-batch size

	Seed       int64 `yaml:"seed"` // 0 seeds from the clock
	Velocities bool  `yaml:"velocities"`
}

// Default returns the standard LeNet-5 settings.
func Default() Config {
	return Config{
		Base:     "./leNet5",
		Level:    "info",
		LearnC:   0.0031,
		LearnF:   0.0015,
		Momentum: 0.3,
		Kernel:   6,
		Neuron:   120,
		Epoch:    15,
		Limit:    5,
		Stop:     5,
		Holdout:  0.05,
		Batch:    5,
	}
}

// Overrides captures CLI supplied values. Nil fields leave the config
// untouched.
type Overrides struct {
	Data       *string
	MaxSamples *int
	Synapse    *string
	Base       *string
	Log        *string
	Level      *string
	Plot       *string
	LearnC     *float64
	LearnF     *float64
	ContrF     *float64
	Momentum   *float64
	L1         *float64
	L2         *float64
	Dropout    *bool
	Kernel     *int
	Neuron     *int
	Epoch      *int
	Limit      *int
	Stop       *int
	Holdout    *float64
	Batch      *int
	Seed       *int64
	Velocities *bool
}

// Load reads a YAML file over the defaults. Unknown keys are rejected.
func Load(path string) (*Config, error) {
	//nolint:gosec // G304: config path comes from the command line
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open config")
	}
	defer f.Close()

	cfg, err := Parse(f)
	if err != nil {
		return nil, errors.Wrapf(err, "parse config %s", path)
	}
	return cfg, nil
}

// Parse decodes YAML over the defaults.
func Parse(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return &cfg, nil
}

// ApplyOverrides updates c with every non-nil override.
func (c *Config) ApplyOverrides(o Overrides) {
	set(&c.Data, o.Data)
	set(&c.MaxSamples, o.MaxSamples)
	set(&c.Synapse, o.Synapse)
	set(&c.Base, o.Base)
	set(&c.Log, o.Log)
	set(&c.Level, o.Level)
	set(&c.Plot, o.Plot)
	set(&c.LearnC, o.LearnC)
	set(&c.LearnF, o.LearnF)
	set(&c.ContrF, o.ContrF)
	set(&c.Momentum, o.Momentum)
	set(&c.L1, o.L1)
	set(&c.L2, o.L2)
	set(&c.Dropout, o.Dropout)
	set(&c.Kernel, o.Kernel)
	set(&c.Neuron, o.Neuron)
	set(&c.Epoch, o.Epoch)
	set(&c.Limit, o.Limit)
	set(&c.Stop, o.Stop)
	set(&c.Holdout, o.Holdout)
	set(&c.Batch, o.Batch)
	set(&c.Seed, o.Seed)
	set(&c.Velocities, o.Velocities)
}

func set[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

// Validate verifies the config is runnable.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	switch {
	case c.Data == "":
		return errors.New("data must be set")
	case c.Base == "":
		return errors.New("base must be set")
	case c.LearnC <= 0 || c.LearnF <= 0:
		return errors.Errorf("learning rates must be > 0 (got learn_c=%g learn_f=%g)", c.LearnC, c.LearnF)
	case c.Momentum < 0 || c.Momentum >= 1:
		return errors.Errorf("momentum must be in [0, 1) (got %g)", c.Momentum)
	case c.ContrF < 0 || c.L1 < 0 || c.L2 < 0:
		return errors.New("contraction and weight decay rates must be >= 0")
	case c.Kernel <= 0 || c.Neuron <= 0:
		return errors.Errorf("kernel and neuron must be > 0 (got %d, %d)", c.Kernel, c.Neuron)
	case c.Epoch < 0:
		return errors.Errorf("epoch must be >= 0 (got %d)", c.Epoch)
	case c.Limit <= 0:
		return errors.Errorf("limit must be > 0 (got %d)", c.Limit)
	case c.Stop < 0:
		return errors.Errorf("stop must be >= 0 (got %d)", c.Stop)
	case c.Holdout <= 0 || c.Holdout >= 1:
		return errors.Errorf("holdout must be in (0, 1) (got %g)", c.Holdout)
	case c.Batch <= 0:
		return errors.Errorf("batch must be > 0 (got %d)", c.Batch)
	}
	switch strings.ToLower(c.Level) {
	case "debug", "info":
	default:
		return errors.Errorf("level must be debug or info (got %q)", c.Level)
	}
	return nil
}

// Debug reports whether debug logging is enabled.
func (c *Config) Debug() bool {
	return strings.EqualFold(c.Level, "debug")
}
