// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package nn

import (
	"github.com/born-ml/saenet/internal/nn"
)

// Layer is the contract shared by every layer kind.
type Layer = nn.Layer

// AutoEncoder is a Layer with a decode path trained on its own input.
type AutoEncoder = nn.AutoEncoder

// Options are the settings shared by every layer kind.
type Options = nn.Options

// Kind tags a layer implementation.
type Kind = nn.Kind

// Layer kinds.
const (
	KindConvolutional   = nn.KindConvolutional
	KindContiguous      = nn.KindContiguous
	KindContractiveAE   = nn.KindContractiveAE
	KindConvolutionalAE = nn.KindConvolutionalAE
)

// Activation is an elementwise nonlinearity.
type Activation = nn.Activation

// Activations
const (
	Tanh     = nn.Tanh
	Sigmoid  = nn.Sigmoid
	Identity = nn.Identity
)

// Costs is the cost of one autoencoder training step.
type Costs = nn.Costs

// Errors matched with errors.Is.
var (
	ErrShapeMismatch   = nn.ErrShapeMismatch
	ErrTypeMismatch    = nn.ErrTypeMismatch
	ErrIndexOutOfRange = nn.ErrIndexOutOfRange
)

// Layers

// ConvolutionalLayer is a valid convolution followed by max pooling.
type ConvolutionalLayer = nn.ConvolutionalLayer

// ConvolutionalConfig configures a ConvolutionalLayer.
type ConvolutionalConfig = nn.ConvolutionalConfig

// NewConvolutionalLayer creates a convolutional layer.
func NewConvolutionalLayer(cfg ConvolutionalConfig) (*ConvolutionalLayer, error) {
	return nn.NewConvolutionalLayer(cfg)
}

// ContiguousLayer is a fully-connected layer.
type ContiguousLayer = nn.ContiguousLayer

// ContiguousConfig configures a ContiguousLayer.
type ContiguousConfig = nn.ContiguousConfig

// NewContiguousLayer creates a fully-connected layer.
func NewContiguousLayer(cfg ContiguousConfig) (*ContiguousLayer, error) {
	return nn.NewContiguousLayer(cfg)
}

// Autoencoders

// ConvolutionalAutoEncoder is a convolutional layer with a tied-kernel
// decode path.
type ConvolutionalAutoEncoder = nn.ConvolutionalAutoEncoder

// ConvolutionalAEConfig configures a ConvolutionalAutoEncoder.
type ConvolutionalAEConfig = nn.ConvolutionalAEConfig

// NewConvolutionalAutoEncoder creates a convolutional autoencoder.
func NewConvolutionalAutoEncoder(cfg ConvolutionalAEConfig) (*ConvolutionalAutoEncoder, error) {
	return nn.NewConvolutionalAutoEncoder(cfg)
}

// ContractiveAutoEncoder is a tied-weight fully-connected autoencoder with
// a Jacobian penalty.
type ContractiveAutoEncoder = nn.ContractiveAutoEncoder

// ContractiveConfig configures a ContractiveAutoEncoder.
type ContractiveConfig = nn.ContractiveConfig

// NewContractiveAutoEncoder creates a contractive autoencoder.
func NewContractiveAutoEncoder(cfg ContractiveConfig) (*ContractiveAutoEncoder, error) {
	return nn.NewContractiveAutoEncoder(cfg)
}
