package main

import (
	"flag"
	"io"
	"math/rand"
	"time"

	"github.com/born-ml/saenet/internal/config"
)

// flags binds the command line to a config.Config. Only flags given
// explicitly override the config file.
type flags struct {
	fs         *flag.FlagSet
	configPath string
	defaults   config.Config
	values     config.Config
	bind       map[string]func(*config.Overrides)
}

func newFlags(name string, stderr io.Writer) *flags {
	f := &flags{
		fs:       flag.NewFlagSet(name, flag.ContinueOnError),
		defaults: config.Default(),
		values:   config.Default(),
	}
	f.fs.SetOutput(stderr)
	v := &f.values

	f.fs.StringVar(&f.configPath, "config", "", "YAML config file")
	f.fs.StringVar(&v.Data, "data", v.Data, `IDX directory or "synthetic" (may also be given as the argument)`)
	f.fs.IntVar(&v.MaxSamples, "max", v.MaxSamples, "maximum samples to load, 0 for all")
	f.fs.StringVar(&v.Synapse, "syn", v.Synapse, "load from a previously saved network")
	f.fs.StringVar(&v.Base, "base", v.Base, "base name of the checkpoint files")
	f.fs.StringVar(&v.Log, "log", v.Log, "log output file")
	f.fs.StringVar(&v.Level, "level", v.Level, "log level (debug or info)")
	f.fs.StringVar(&v.Plot, "plot", v.Plot, "write the training history chart to this file")
	f.fs.Float64Var(&v.LearnC, "learnC", v.LearnC, "learning rate of convolutional layers")
	f.fs.Float64Var(&v.LearnF, "learnF", v.LearnF, "learning rate of fully-connected layers")
	f.fs.Float64Var(&v.ContrF, "contrF", v.ContrF, "contraction rate of fully-connected autoencoders")
	f.fs.Float64Var(&v.Momentum, "momentum", v.Momentum, "momentum rate of all layers")
	f.fs.Float64Var(&v.L1, "l1", v.L1, "L1 weight decay")
	f.fs.Float64Var(&v.L2, "l2", v.L2, "L2 weight decay")
	f.fs.BoolVar(&v.Dropout, "dropout", v.Dropout, "enable dropout throughout the network")
	f.fs.IntVar(&v.Kernel, "kernel", v.Kernel, "convolutional kernels in each layer")
	f.fs.IntVar(&v.Neuron, "neuron", v.Neuron, "neurons in the hidden layer")
	f.fs.IntVar(&v.Epoch, "epoch", v.Epoch, "epochs per layer during unsupervised pre-training")
	f.fs.IntVar(&v.Limit, "limit", v.Limit, "epochs between validation checks")
	f.fs.IntVar(&v.Stop, "stop", v.Stop, "inferior validation checks before stopping")
	f.fs.Float64Var(&v.Holdout, "holdout", v.Holdout, "fraction of the data held out for validation")
	f.fs.IntVar(&v.Batch, "batch", v.Batch, "mini-batch size")
	f.fs.Int64Var(&v.Seed, "seed", v.Seed, "random seed, 0 seeds from the clock")
	f.fs.BoolVar(&v.Velocities, "velocities", v.Velocities, "store momentum state in checkpoints")

	f.bind = map[string]func(*config.Overrides){
		"data":       func(o *config.Overrides) { o.Data = &v.Data },
		"max":        func(o *config.Overrides) { o.MaxSamples = &v.MaxSamples },
		"syn":        func(o *config.Overrides) { o.Synapse = &v.Synapse },
		"base":       func(o *config.Overrides) { o.Base = &v.Base },
		"log":        func(o *config.Overrides) { o.Log = &v.Log },
		"level":      func(o *config.Overrides) { o.Level = &v.Level },
		"plot":       func(o *config.Overrides) { o.Plot = &v.Plot },
		"learnC":     func(o *config.Overrides) { o.LearnC = &v.LearnC },
		"learnF":     func(o *config.Overrides) { o.LearnF = &v.LearnF },
		"contrF":     func(o *config.Overrides) { o.ContrF = &v.ContrF },
		"momentum":   func(o *config.Overrides) { o.Momentum = &v.Momentum },
		"l1":         func(o *config.Overrides) { o.L1 = &v.L1 },
		"l2":         func(o *config.Overrides) { o.L2 = &v.L2 },
		"dropout":    func(o *config.Overrides) { o.Dropout = &v.Dropout },
		"kernel":     func(o *config.Overrides) { o.Kernel = &v.Kernel },
		"neuron":     func(o *config.Overrides) { o.Neuron = &v.Neuron },
		"epoch":      func(o *config.Overrides) { o.Epoch = &v.Epoch },
		"limit":      func(o *config.Overrides) { o.Limit = &v.Limit },
		"stop":       func(o *config.Overrides) { o.Stop = &v.Stop },
		"holdout":    func(o *config.Overrides) { o.Holdout = &v.Holdout },
		"batch":      func(o *config.Overrides) { o.Batch = &v.Batch },
		"seed":       func(o *config.Overrides) { o.Seed = &v.Seed },
		"velocities": func(o *config.Overrides) { o.Velocities = &v.Velocities },
	}
	return f
}

// parse reads args, layers explicit flags over the config file (or the
// defaults) and validates the result.
func (f *flags) parse(args []string) (*config.Config, error) {
	if err := f.fs.Parse(args); err != nil {
		return nil, err
	}

	cfg := f.defaults
	if f.configPath != "" {
		loaded, err := config.Load(f.configPath)
		if err != nil {
			return nil, err
		}
		cfg = *loaded
	}

	var o config.Overrides
	f.fs.Visit(func(fl *flag.Flag) {
		if set, ok := f.bind[fl.Name]; ok {
			set(&o)
		}
	})
	if f.fs.NArg() > 0 {
		data := f.fs.Arg(0)
		o.Data = &data
	}
	cfg.ApplyOverrides(o)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func newRand(cfg *config.Config) *rand.Rand {
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	//nolint:gosec // G404: weight init and dropout do not need crypto/rand
	return rand.New(rand.NewSource(seed))
}
