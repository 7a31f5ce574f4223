// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package network provides the layer stacks of saenet.
//
// # Overview
//
// Three stacks share one implementation:
//   - Network: plain layers trained with cross-entropy and momentum
//   - StackedAENetwork: autoencoders trained greedily, one layer at a time
//   - TrainerNetwork: a Network with training and validation sets attached
//
// Every stack saves to and loads from the .born checkpoint format. Loading
// a stacked checkpoint with LoadTrainer promotes each autoencoder to its
// plain layer so the pre-trained weights seed supervised fine-tuning.
//
// # Basic Usage
//
//	n := network.New(network.WithLogger(logger))
//	if err := n.AddLayer(c1); err != nil { ... }
//	if err := n.SplitKernels(); err != nil { ... }
//	...
//	cost, err := n.Train(batch.Data, batch.Expected)
//	labels, err := n.ClassifyLabels(batch.Data)
//	err = n.Save("leNet5.born", nil)
package network
