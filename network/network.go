// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package network

import (
	"github.com/born-ml/saenet/dataset"
	"github.com/born-ml/saenet/internal/network"
)

// Network is an ordered stack of plain layers.
type Network = network.Network

// StackedAENetwork is a stack of autoencoders trained layer by layer.
type StackedAENetwork = network.StackedAENetwork

// TrainerNetwork is a Network with training and validation sets.
type TrainerNetwork = network.TrainerNetwork

// Option configures a network.
type Option = network.Option

// Regularization configures L1/L2 weight decay.
type Regularization = network.Regularization

// ErrFrozen is returned when layers are added after training began.
var ErrFrozen = network.ErrFrozen

// Options

// WithLogger sets the logger used for progress messages.
var WithLogger = network.WithLogger

// WithRegularization adds weight decay to supervised training.
var WithRegularization = network.WithRegularization

// WithRand sets the random source for layers rebuilt on load.
var WithRand = network.WithRand

// New creates an empty supervised network.
func New(opts ...Option) *Network {
	return network.New(opts...)
}

// NewStacked creates an empty autoencoder stack trained on train.
func NewStacked(train *dataset.Set, opts ...Option) (*StackedAENetwork, error) {
	return network.NewStacked(train, opts...)
}

// NewTrainer attaches training and validation sets to n.
func NewTrainer(n *Network, train, validation *dataset.Set) (*TrainerNetwork, error) {
	return network.NewTrainer(n, train, validation)
}

// Load restores a network of plain layers.
func Load(path string, opts ...Option) (*Network, error) {
	return network.Load(path, opts...)
}

// LoadStacked restores an autoencoder stack.
func LoadStacked(path string, train *dataset.Set, opts ...Option) (*StackedAENetwork, error) {
	return network.LoadStacked(path, train, opts...)
}

// LoadTrainer restores any checkpoint as a supervised network, promoting
// autoencoders to plain layers.
func LoadTrainer(path string, train, validation *dataset.Set, opts ...Option) (*TrainerNetwork, error) {
	return network.LoadTrainer(path, train, validation, opts...)
}
