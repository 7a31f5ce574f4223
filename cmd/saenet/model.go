package main

import (
	"log"
	"math/rand"

	"github.com/born-ml/saenet/internal/config"
	"github.com/born-ml/saenet/internal/network"
	"github.com/born-ml/saenet/internal/nn"
	"github.com/born-ml/saenet/internal/tensor"
)

// LeNet-5 geometry.
const (
	receptiveField = 5
	poolFactor     = 2
)

// Dropout keep probabilities when -dropout is set.
const (
	keepC1     = 0.8
	keepHidden = 0.5
)

func keep(cfg *config.Config, p float64) float64 {
	if !cfg.Dropout {
		return 0
	}
	return p
}

func layerOptions(cfg *config.Config, id string, lr, dropout float64, rng *rand.Rand) nn.Options {
	return nn.Options{
		ID:           id,
		LearningRate: lr,
		MomentumRate: cfg.Momentum,
		Dropout:      keep(cfg, dropout),
		Rand:         rng,
	}
}

func networkOptions(cfg *config.Config, rng *rand.Rand, logger *log.Logger) []network.Option {
	return []network.Option{
		network.WithLogger(logger),
		network.WithRand(rng),
		network.WithRegularization(network.Regularization{L1: cfg.L1, L2: cfg.L2}),
	}
}

// buildLeNet5 assembles c1, c2, f3 and the classifier f4. The c1 feature
// maps are split into single-channel images so c2 does not mix them.
func buildLeNet5(cfg *config.Config, input tensor.Shape, classes int, rng *rand.Rand, logger *log.Logger) (*network.Network, error) {
	n := network.New(networkOptions(cfg, rng, logger)...)

	c1, err := nn.NewConvolutionalLayer(nn.ConvolutionalConfig{
		Options:    layerOptions(cfg, "c1", cfg.LearnC, keepC1, rng),
		InputSize:  input,
		KernelSize: tensor.Shape{cfg.Kernel, input[1], receptiveField, receptiveField},
		Downsample: [2]int{poolFactor, poolFactor},
	})
	if err != nil {
		return nil, err
	}
	if err := n.AddLayer(c1); err != nil {
		return nil, err
	}
	if err := n.SplitKernels(); err != nil {
		return nil, err
	}

	c2, err := nn.NewConvolutionalLayer(nn.ConvolutionalConfig{
		Options:    layerOptions(cfg, "c2", cfg.LearnC, keepHidden, rng),
		InputSize:  n.OutputSize(),
		KernelSize: tensor.Shape{cfg.Kernel, 1, receptiveField, receptiveField},
		Downsample: [2]int{poolFactor, poolFactor},
	})
	if err != nil {
		return nil, err
	}
	if err := n.AddLayer(c2); err != nil {
		return nil, err
	}
	if err := n.FlattenOutput(); err != nil {
		return nil, err
	}

	f3, err := nn.NewContiguousLayer(nn.ContiguousConfig{
		Options:    layerOptions(cfg, "f3", cfg.LearnF, keepHidden, rng),
		InputSize:  n.OutputSize(),
		NumNeurons: cfg.Neuron,
	})
	if err != nil {
		return nil, err
	}
	if err := n.AddLayer(f3); err != nil {
		return nil, err
	}
	if err := addClassifier(n, cfg, classes, rng); err != nil {
		return nil, err
	}
	return n, nil
}

// buildStack assembles the pre-training stack: two convolutional
// autoencoders and a contractive autoencoder. The classifier is left out
// so it only ever learns from labels.
func buildStack(cfg *config.Config, n *network.StackedAENetwork, rng *rand.Rand) error {
	input := n.TrainSet().BatchShape()

	c1, err := nn.NewConvolutionalAutoEncoder(nn.ConvolutionalAEConfig{
		ConvolutionalConfig: nn.ConvolutionalConfig{
			Options:    layerOptions(cfg, "c1", cfg.LearnC, keepC1, rng),
			InputSize:  input,
			KernelSize: tensor.Shape{cfg.Kernel, input[1], receptiveField, receptiveField},
			Downsample: [2]int{poolFactor, poolFactor},
		},
	})
	if err != nil {
		return err
	}
	if err := n.AddLayer(c1); err != nil {
		return err
	}

	c2, err := nn.NewConvolutionalAutoEncoder(nn.ConvolutionalAEConfig{
		ConvolutionalConfig: nn.ConvolutionalConfig{
			Options:    layerOptions(cfg, "c2", cfg.LearnC, keepHidden, rng),
			InputSize:  n.OutputSize(),
			KernelSize: tensor.Shape{cfg.Kernel, cfg.Kernel, receptiveField, receptiveField},
			Downsample: [2]int{poolFactor, poolFactor},
		},
	})
	if err != nil {
		return err
	}
	if err := n.AddLayer(c2); err != nil {
		return err
	}
	if err := n.FlattenOutput(); err != nil {
		return err
	}

	f3, err := nn.NewContractiveAutoEncoder(nn.ContractiveConfig{
		ContiguousConfig: nn.ContiguousConfig{
			Options:    layerOptions(cfg, "f3", cfg.LearnF, keepHidden, rng),
			InputSize:  n.OutputSize(),
			NumNeurons: cfg.Neuron,
		},
		ContractionRate: cfg.ContrF,
	})
	if err != nil {
		return err
	}
	return n.AddLayer(f3)
}

// addClassifier appends the sigmoid output layer f4.
func addClassifier(n interface {
	AddLayer(nn.Layer) error
	OutputSize() tensor.Shape
}, cfg *config.Config, classes int, rng *rand.Rand) error {
	opts := layerOptions(cfg, "f4", cfg.LearnF, 0, rng)
	opts.Activation = nn.Sigmoid
	f4, err := nn.NewContiguousLayer(nn.ContiguousConfig{
		Options:    opts,
		InputSize:  n.OutputSize(),
		NumNeurons: classes,
	})
	if err != nil {
		return err
	}
	return n.AddLayer(f4)
}
