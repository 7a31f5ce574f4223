package nn

import (
	"fmt"
	"math/rand"

	"github.com/born-ml/saenet/internal/backend/cpu"
	"github.com/born-ml/saenet/internal/cost"
	"github.com/born-ml/saenet/internal/tensor"
)

// Definition is the serialisable description of a layer: everything needed
// to rebuild it except the parameter tensors.
type Definition struct {
	Kind         Kind       `json:"kind"`
	ID           string     `json:"id"`
	InputSize    []int      `json:"input_size"`
	OutputSize   []int      `json:"output_size"`
	KernelSize   []int      `json:"kernel_size,omitempty"`
	Downsample   []int      `json:"downsample,omitempty"`
	Neurons      int        `json:"neurons,omitempty"`
	Activation   Activation `json:"activation"`
	LearningRate float64    `json:"learning_rate"`
	MomentumRate float64    `json:"momentum_rate"`
	Dropout      float64    `json:"dropout,omitempty"`

	ContractionRate    float64   `json:"contraction_rate,omitempty"`
	ReconstructionCost cost.Kind `json:"reconstruction_cost,omitempty"`
}

func (b *base) definition() Definition {
	return Definition{
		Kind:         b.kind,
		ID:           b.id,
		InputSize:    b.inputSize.Clone(),
		OutputSize:   b.outputSize.Clone(),
		Activation:   b.act,
		LearningRate: b.LearningRate(),
		MomentumRate: b.MomentumRate(),
		Dropout:      b.dropout,
	}
}

// Build reconstructs a layer from its definition and parameter tensors
// keyed by parameter name. Missing parameters are initialised as for a new
// layer.
func Build(def Definition, params map[string]*tensor.Tensor, rng *rand.Rand, be *cpu.CPUBackend) (Layer, error) {
	opts := Options{
		ID:                def.ID,
		LearningRate:      def.LearningRate,
		MomentumRate:      def.MomentumRate,
		Dropout:           def.Dropout,
		Activation:        def.Activation,
		InitialWeights:    params[ParamWeights],
		InitialThresholds: params[ParamThresholds],
		Rand:              rng,
		Backend:           be,
	}

	var (
		layer Layer
		err   error
	)
	switch def.Kind {
	case KindContiguous:
		layer, err = NewContiguousLayer(ContiguousConfig{
			Options: opts, InputSize: def.InputSize, NumNeurons: def.Neurons,
		})
	case KindConvolutional:
		layer, err = NewConvolutionalLayer(ConvolutionalConfig{
			Options: opts, InputSize: def.InputSize, KernelSize: def.KernelSize, Downsample: downsample(def),
		})
	case KindContractiveAE:
		layer, err = NewContractiveAutoEncoder(ContractiveConfig{
			ContiguousConfig:         ContiguousConfig{Options: opts, InputSize: def.InputSize, NumNeurons: def.Neurons},
			ContractionRate:          def.ContractionRate,
			ReconstructionCost:       def.ReconstructionCost,
			InitialVisibleThresholds: params[ParamVisibleThresholds],
		})
	case KindConvolutionalAE:
		layer, err = NewConvolutionalAutoEncoder(ConvolutionalAEConfig{
			ConvolutionalConfig: ConvolutionalConfig{
				Options: opts, InputSize: def.InputSize, KernelSize: def.KernelSize, Downsample: downsample(def),
			},
			ReconstructionCost:       def.ReconstructionCost,
			InitialVisibleThresholds: params[ParamVisibleThresholds],
		})
	default:
		return nil, fmt.Errorf("layer %s: unknown kind %q: %w", def.ID, def.Kind, ErrTypeMismatch)
	}
	if err != nil {
		return nil, err
	}

	if !layer.OutputSize().Equal(def.OutputSize) && len(def.OutputSize) > 0 {
		return nil, fmt.Errorf("layer %s: rebuilt output %v, recorded %v: %w",
			def.ID, layer.OutputSize(), tensor.Shape(def.OutputSize), ErrShapeMismatch)
	}
	return layer, nil
}

func downsample(def Definition) [2]int {
	if len(def.Downsample) != 2 {
		return [2]int{1, 1}
	}
	return [2]int{def.Downsample[0], def.Downsample[1]}
}
