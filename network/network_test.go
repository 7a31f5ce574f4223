// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package network_test

import (
	"errors"
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/saenet/dataset"
	"github.com/born-ml/saenet/network"
	"github.com/born-ml/saenet/nn"
	"github.com/born-ml/saenet/tensor"
)

func TestFacadeSaveLoad(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	n := network.New()

	c1, err := nn.NewConvolutionalLayer(nn.ConvolutionalConfig{
		Options:    nn.Options{ID: "c1", LearningRate: 0.05, Rand: rng},
		InputSize:  tensor.Shape{2, 1, 8, 8},
		KernelSize: tensor.Shape{2, 1, 3, 3},
		Downsample: [2]int{2, 2},
	})
	require.NoError(t, err)
	require.NoError(t, n.AddLayer(c1))
	require.NoError(t, n.FlattenOutput())

	f2, err := nn.NewContiguousLayer(nn.ContiguousConfig{
		Options:    nn.Options{ID: "f2", LearningRate: 0.05, Activation: nn.Sigmoid, Rand: rng},
		InputSize:  n.OutputSize(),
		NumNeurons: 2,
	})
	require.NoError(t, err)
	require.NoError(t, n.AddLayer(f2))

	s, err := dataset.Synthetic(dataset.SyntheticConfig{Classes: 2, PerClass: 2, Rows: 8, Cols: 8, Seed: 1})
	require.NoError(t, err)
	set, err := dataset.Batches(s, 2)
	require.NoError(t, err)
	batch := set.Batch(0)

	_, err = n.Train(batch.Data, batch.Expected)
	require.NoError(t, err)
	assert.True(t, errors.Is(n.AddLayer(f2), network.ErrFrozen))

	path := filepath.Join(t.TempDir(), "net.born")
	require.NoError(t, n.Save(path, nil))
	loaded, err := network.Load(path)
	require.NoError(t, err)

	want, err := n.Classify(batch.Data)
	require.NoError(t, err)
	got, err := loaded.Classify(batch.Data)
	require.NoError(t, err)
	assert.True(t, want.Equal(got))
}
