// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package nn_test

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/saenet/nn"
	"github.com/born-ml/saenet/tensor"
)

// TestLayerInterface verifies that every concrete layer implements Layer and
// the autoencoders implement AutoEncoder.
func TestLayerInterface(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	conv := nn.ConvolutionalConfig{
		Options:    nn.Options{ID: "c1", Rand: rng},
		InputSize:  tensor.Shape{2, 1, 8, 8},
		KernelSize: tensor.Shape{2, 1, 3, 3},
		Downsample: [2]int{2, 2},
	}
	dense := nn.ContiguousConfig{
		Options:    nn.Options{ID: "f3", Rand: rng},
		InputSize:  tensor.Shape{2, 6},
		NumNeurons: 3,
	}

	c1, err := nn.NewConvolutionalLayer(conv)
	require.NoError(t, err)
	f3, err := nn.NewContiguousLayer(dense)
	require.NoError(t, err)
	cae, err := nn.NewConvolutionalAutoEncoder(nn.ConvolutionalAEConfig{ConvolutionalConfig: conv})
	require.NoError(t, err)
	ccae, err := nn.NewContractiveAutoEncoder(nn.ContractiveConfig{ContiguousConfig: dense, ContractionRate: 0.1})
	require.NoError(t, err)

	tests := []struct {
		name  string
		layer nn.Layer
		kind  nn.Kind
		out   tensor.Shape
	}{
		{"ConvolutionalLayer", c1, nn.KindConvolutional, tensor.Shape{2, 2, 3, 3}},
		{"ContiguousLayer", f3, nn.KindContiguous, tensor.Shape{2, 3}},
		{"ConvolutionalAutoEncoder", cae, nn.KindConvolutionalAE, tensor.Shape{2, 2, 3, 3}},
		{"ContractiveAutoEncoder", ccae, nn.KindContractiveAE, tensor.Shape{2, 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.kind, tt.layer.Kind())
			assert.Equal(t, tt.out, tt.layer.OutputSize())
			out := tt.layer.ForwardInference(tensor.Zeros(tt.layer.InputSize()))
			assert.Equal(t, tt.out, out.Shape())

			_, isAE := tt.layer.(nn.AutoEncoder)
			assert.Equal(t, tt.kind.IsAutoEncoder(), isAE)
		})
	}
}

func TestConstructorErrors(t *testing.T) {
	_, err := nn.NewConvolutionalLayer(nn.ConvolutionalConfig{
		Options:    nn.Options{ID: "c1"},
		InputSize:  tensor.Shape{2, 3, 8, 8},
		KernelSize: tensor.Shape{2, 1, 3, 3},
	})
	assert.True(t, errors.Is(err, nn.ErrShapeMismatch))
}
