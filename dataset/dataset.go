// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package dataset stages labelled images into fixed-shape mini-batches.
//
// # Basic Usage
//
//	samples, err := dataset.LoadIDX("./mnist", true, 0)
//	train, validation, err := dataset.Stage(samples, 5, 0.05, rng)
package dataset

import (
	"math/rand"

	"github.com/born-ml/saenet/internal/dataset"
)

// Samples is a list of labelled images of one shape.
type Samples = dataset.Samples

// MiniBatch is one batch of images with labels and one-hot targets.
type MiniBatch = dataset.MiniBatch

// Set is an ordered list of equally shaped mini-batches.
type Set = dataset.Set

// SyntheticConfig describes a generated dataset.
type SyntheticConfig = dataset.SyntheticConfig

// LoadIDX loads an MNIST-style IDX file pair from dir.
func LoadIDX(dir string, train bool, maxSamples int) (*Samples, error) {
	return dataset.LoadIDX(dir, train, maxSamples)
}

// Synthetic generates a labelled dataset of class-dependent bands.
func Synthetic(cfg SyntheticConfig) (*Samples, error) {
	return dataset.Synthetic(cfg)
}

// Batches groups samples into mini-batches, dropping the remainder.
func Batches(s *Samples, batchSize int) (*Set, error) {
	return dataset.Batches(s, batchSize)
}

// Stage shuffles, holds out a validation fraction and batches both parts.
func Stage(s *Samples, batchSize int, holdout float64, rng *rand.Rand) (train, test *Set, err error) {
	return dataset.Stage(s, batchSize, holdout, rng)
}
