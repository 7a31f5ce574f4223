package main

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"path/filepath"
	"time"

	"github.com/pkg/errors"

	"github.com/born-ml/saenet/internal/config"
	"github.com/born-ml/saenet/internal/dataset"
	"github.com/born-ml/saenet/internal/network"
	"github.com/born-ml/saenet/internal/report"
	"github.com/born-ml/saenet/internal/train"
)

func orchestrator(cfg *config.Config, l *logs) (*train.Orchestrator, error) {
	return train.New(train.Config{
		Epochs: cfg.Epoch,
		Limit:  cfg.Limit,
		Stop:   cfg.Stop,
		Naming: train.Naming{
			Base:     cfg.Base,
			Data:     cfg.Data,
			LearnC:   cfg.LearnC,
			LearnF:   cfg.LearnF,
			Momentum: cfg.Momentum,
			Kernel:   cfg.Kernel,
			Neuron:   cfg.Neuron,
		},
		Velocities: cfg.Velocities,
		Logger:     l.info,
	})
}

func plotHistory(cfg *config.Config, o *train.Orchestrator, l *logs) error {
	if cfg.Plot == "" {
		return nil
	}
	if err := report.Save(cfg.Plot, o.History()); err != nil {
		return err
	}
	l.info.Printf("history chart=%s", cfg.Plot)
	return nil
}

func setup(name string, args []string, stderr io.Writer) (*config.Config, *logs, *rand.Rand, error) {
	cfg, err := newFlags(name, stderr).parse(args)
	if err != nil {
		return nil, nil, nil, err
	}
	l, err := newLogs(name, cfg, stderr)
	if err != nil {
		return nil, nil, nil, err
	}
	l.debug.Printf("config=%+v", *cfg)
	return cfg, l, newRand(cfg), nil
}

// runSemiSupervised pre-trains c1, c2 and f3 as autoencoders, converts the
// best stack into a supervised network, adds the classifier and fine-tunes.
func runSemiSupervised(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	cfg, l, rng, err := setup("semisupervised", args, stderr)
	if err != nil {
		return err
	}
	defer l.Close()

	trainSet, validation, err := stage(cfg, rng, l.info)
	if err != nil {
		return err
	}

	var stack *network.StackedAENetwork
	if cfg.Synapse != "" {
		l.info.Printf("Loading network from %s...", cfg.Synapse)
		stack, err = network.LoadStacked(cfg.Synapse, trainSet, networkOptions(cfg, rng, l.info)...)
		if err != nil {
			return err
		}
	} else {
		l.info.Print("Initializing network...")
		stack, err = network.NewStacked(trainSet, networkOptions(cfg, rng, l.info)...)
		if err != nil {
			return err
		}
		if err := buildStack(cfg, stack, rng); err != nil {
			return errors.Wrap(err, "build stacked autoencoder")
		}
	}

	o, err := orchestrator(cfg, l)
	if err != nil {
		return err
	}
	pretrained, err := o.Unsupervised(ctx, stack)
	if err != nil {
		return err
	}

	trainer, err := network.LoadTrainer(pretrained, trainSet, validation, networkOptions(cfg, rng, l.info)...)
	if err != nil {
		return err
	}
	if err := addClassifier(trainer, cfg, trainSet.NumClasses(), rng); err != nil {
		return errors.Wrap(err, "add classifier")
	}

	res, err := o.Supervised(ctx, trainer)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "final=%s accuracy=%.4f epoch=%d\n", res.Final, res.BestAccuracy, res.BestEpoch)
	return plotHistory(cfg, o, l)
}

// runSupervised trains LeNet-5 from random weights, or resumes a saved
// network.
func runSupervised(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	cfg, l, rng, err := setup("supervised", args, stderr)
	if err != nil {
		return err
	}
	defer l.Close()

	trainSet, validation, err := stage(cfg, rng, l.info)
	if err != nil {
		return err
	}

	var trainer *network.TrainerNetwork
	if cfg.Synapse != "" {
		l.info.Printf("Loading network from %s...", cfg.Synapse)
		trainer, err = network.LoadTrainer(cfg.Synapse, trainSet, validation, networkOptions(cfg, rng, l.info)...)
	} else {
		l.info.Print("Initializing network...")
		var n *network.Network
		n, err = buildLeNet5(cfg, trainSet.BatchShape(), trainSet.NumClasses(), rng, l.info)
		if err != nil {
			return errors.Wrap(err, "build LeNet-5")
		}
		trainer, err = network.NewTrainer(n, trainSet, validation)
	}
	if err != nil {
		return err
	}

	o, err := orchestrator(cfg, l)
	if err != nil {
		return err
	}
	res, err := o.Supervised(ctx, trainer)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "final=%s accuracy=%.4f epoch=%d\n", res.Final, res.BestAccuracy, res.BestEpoch)
	return plotHistory(cfg, o, l)
}

// runClassify reports the accuracy of -syn on the test files of -data.
func runClassify(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	cfg, l, rng, err := setup("classify", args, stderr)
	if err != nil {
		return err
	}
	defer l.Close()
	if cfg.Synapse == "" {
		return errors.New("classify needs a network (-syn)")
	}

	n, err := network.Load(cfg.Synapse, networkOptions(cfg, rng, l.debug)...)
	if err != nil {
		return err
	}
	samples, err := loadSamples(cfg, false, rng)
	if err != nil {
		return err
	}
	set, err := dataset.Batches(samples, n.InputSize()[0])
	if err != nil {
		return err
	}

	counts := make([]struct{ correct, total int }, set.NumClasses())
	var correct int
	for _, b := range set.Batches() {
		if err := ctx.Err(); err != nil {
			return err
		}
		predicted, err := n.ClassifyLabels(b.Data)
		if err != nil {
			return err
		}
		for i, p := range predicted {
			label := b.Labels[i]
			counts[label].total++
			if p == label {
				counts[label].correct++
				correct++
			}
		}
	}

	fmt.Fprintf(stdout, "network=%s samples=%d accuracy=%.4f\n",
		filepath.Base(cfg.Synapse), set.NumSamples(), float64(correct)/float64(set.NumSamples()))
	for c, name := range set.Classes() {
		if counts[c].total > 0 {
			fmt.Fprintf(stdout, "  class=%s correct=%d total=%d\n", name, counts[c].correct, counts[c].total)
		}
	}
	return nil
}

// runBenchmark times inference and training of LeNet-5 on one mini-batch.
func runBenchmark(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	f := newFlags("benchmark", stderr)
	runs := f.fs.Int("runs", 1000, "iterations per measurement")
	f.defaults.Data = syntheticData
	cfg, err := f.parse(args)
	if err != nil {
		return err
	}
	if *runs <= 0 {
		return errors.Errorf("runs must be > 0 (got %d)", *runs)
	}
	l, err := newLogs("benchmark", cfg, stderr)
	if err != nil {
		return err
	}
	defer l.Close()
	rng := newRand(cfg)

	samples, err := loadSamples(cfg, true, rng)
	if err != nil {
		return err
	}
	set, err := dataset.Batches(samples, cfg.Batch)
	if err != nil {
		return err
	}
	batch := set.Batch(0)
	n, err := buildLeNet5(cfg, set.BatchShape(), set.NumClasses(), rng, l.debug)
	if err != nil {
		return err
	}

	fmt.Fprintln(stdout, "Classifying inputs...")
	start := time.Now()
	for i := 0; i < *runs; i++ {
		if _, err := n.Classify(batch.Data); err != nil {
			return err
		}
	}
	timing(stdout, time.Since(start), *runs*cfg.Batch)

	fmt.Fprintln(stdout, "Training network...")
	start = time.Now()
	for i := 0; i < *runs; i++ {
		if i%100 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		if _, err := n.Train(batch.Data, batch.Expected); err != nil {
			return err
		}
	}
	timing(stdout, time.Since(start), *runs*cfg.Batch)

	predicted, err := n.ClassifyLabels(batch.Data)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "predicted=%v expected=%v\n", predicted, batch.Labels)
	return nil
}

func timing(w io.Writer, total time.Duration, inputs int) {
	fmt.Fprintf(w, "total time: %s | per input: %s\n", total, total/time.Duration(inputs))
}
