// Package network composes layers into a strictly linear stack.
//
// Network is the supervised stack: plain layers only, Classify runs the
// inference path and Train performs one full backward pass followed by one
// GradientStep per layer. StackedAENetwork holds autoencoders and trains
// them greedily one layer at a time. TrainerNetwork is a Network rebuilt
// from a pre-trained stack, ready for supervised fine-tuning.
//
// Layers are validated and shape transitions recorded when added; once
// training starts the topology is frozen.
package network

import (
	"io"
	"log"
	"math/rand"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"

	"github.com/born-ml/saenet/internal/backend/cpu"
	"github.com/born-ml/saenet/internal/cost"
	"github.com/born-ml/saenet/internal/nn"
	"github.com/born-ml/saenet/internal/tensor"
)

// ErrFrozen is returned when the topology is changed after training began.
var ErrFrozen = errors.New("network topology is frozen once training starts")

// Model types recorded in checkpoints.
const (
	ModelNetwork   = "Network"
	ModelStackedAE = "StackedAENetwork"
	ModelTrainer   = "TrainerNetwork"
)

// Regularization configures weight penalties added to the supervised cost.
type Regularization struct {
	L1 float64
	L2 float64
}

// Option configures a network.
type Option func(*Network)

// WithLogger sets the logger used for progress messages.
func WithLogger(l *log.Logger) Option {
	return func(n *Network) {
		if l != nil {
			n.logger = l
		}
	}
}

// WithRegularization adds L1/L2 weight decay to Train.
func WithRegularization(r Regularization) Option {
	return func(n *Network) { n.reg = r }
}

// WithCost selects the supervised cost. Default: cross-entropy with crop.
func WithCost(k cost.Kind) Option {
	return func(n *Network) { n.primary = k }
}

// WithRand sets the random source for layers rebuilt on load.
func WithRand(rng *rand.Rand) Option {
	return func(n *Network) { n.rng = rng }
}

// WithBackend sets the backend for layers rebuilt on load.
func WithBackend(be *cpu.CPUBackend) Option {
	return func(n *Network) { n.be = be }
}

// Network is an ordered stack of plain layers.
type Network struct {
	layers    []nn.Layer
	inputSize tensor.Shape
	output    tensor.Shape
	accept    func(nn.Kind) bool
	modelType string
	frozen    bool

	primary cost.Kind
	reg     Regularization
	logger  *log.Logger
	rng     *rand.Rand
	be      *cpu.CPUBackend
}

// New creates an empty supervised network.
func New(opts ...Option) *Network {
	return newNetwork(ModelNetwork, func(k nn.Kind) bool { return k.Known() && !k.IsAutoEncoder() }, opts)
}

func newNetwork(modelType string, accept func(nn.Kind) bool, opts []Option) *Network {
	n := &Network{
		accept:    accept,
		modelType: modelType,
		primary:   cost.KindCrossEntropy,
		logger:    log.New(io.Discard, "", 0),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// AddLayer appends layer to the stack. It fails with nn.ErrTypeMismatch for
// a kind this network does not accept and with nn.ErrShapeMismatch when the
// layer's input size differs from the current output size. A nil layer is
// rejected with nn.ErrTypeMismatch; a typed nil pointer is a programmer
// error.
func (n *Network) AddLayer(layer nn.Layer) error {
	if layer == nil {
		return errors.Wrap(nn.ErrTypeMismatch, "add nil layer")
	}
	if n.frozen {
		return errors.Wrapf(ErrFrozen, "add layer %s", layer.ID())
	}
	if !n.accept(layer.Kind()) {
		return errors.Wrapf(nn.ErrTypeMismatch, "%s does not accept %s layer %s", n.modelType, layer.Kind(), layer.ID())
	}
	for _, l := range n.layers {
		if l.ID() == layer.ID() {
			return errors.Errorf("duplicate layer id %q", layer.ID())
		}
	}
	if len(n.layers) > 0 && !layer.InputSize().Equal(n.output) {
		return errors.Wrapf(nn.ErrShapeMismatch, "layer %s: input %v does not match network output %v",
			layer.ID(), layer.InputSize(), n.output)
	}

	if len(n.layers) == 0 {
		n.inputSize = layer.InputSize()
	}
	n.layers = append(n.layers, layer)
	n.output = layer.OutputSize()
	n.logger.Printf("added layer=%s kind=%s input=%v output=%v", layer.ID(), layer.Kind(), layer.InputSize(), n.output)
	return nil
}

// ReshapeOutput records an element-preserving view of the current output,
// e.g. (B, K, R, C) to (B*K, 1, R, C). The next layer must take this shape.
func (n *Network) ReshapeOutput(shape tensor.Shape) error {
	if n.frozen {
		return errors.Wrap(ErrFrozen, "reshape output")
	}
	if len(n.layers) == 0 {
		return errors.New("reshape output: network has no layers")
	}
	if err := shape.Validate(); err != nil {
		return errors.Wrapf(nn.ErrShapeMismatch, "reshape output to %v: %v", shape, err)
	}
	if shape.NumElements() != n.output.NumElements() {
		return errors.Wrapf(nn.ErrShapeMismatch, "reshape output %v to %v", n.output, shape)
	}
	n.output = shape.Clone()
	return nil
}

// FlattenOutput views the output as (batch, features) where batch is the
// network's input batch size.
func (n *Network) FlattenOutput() error {
	if len(n.layers) == 0 {
		return errors.New("flatten output: network has no layers")
	}
	batch := n.inputSize[0]
	total := n.output.NumElements()
	if total%batch != 0 {
		return errors.Wrapf(nn.ErrShapeMismatch, "flatten output %v over batch %d", n.output, batch)
	}
	return n.ReshapeOutput(tensor.Shape{batch, total / batch})
}

// SplitKernels views a (B, K, R, C) output as (B*K, 1, R, C) so the next
// convolution does not mix feature maps.
func (n *Network) SplitKernels() error {
	s, err := tensor.SplitKernels(n.output)
	if err != nil {
		return errors.Wrapf(nn.ErrShapeMismatch, "split kernels: %v", err)
	}
	return n.ReshapeOutput(s)
}

// InputSize returns the input shape of the first layer.
func (n *Network) InputSize() tensor.Shape { return n.inputSize.Clone() }

// OutputSize returns the shape the next layer must accept.
func (n *Network) OutputSize() tensor.Shape { return n.output.Clone() }

// NumLayers returns the number of layers.
func (n *Network) NumLayers() int { return len(n.layers) }

// Layers returns the layers in forward order.
func (n *Network) Layers() []nn.Layer {
	return append([]nn.Layer(nil), n.layers...)
}

// Layer returns layer i.
func (n *Network) Layer(i int) (nn.Layer, error) {
	if i < 0 || i >= len(n.layers) {
		return nil, errors.Wrapf(nn.ErrIndexOutOfRange, "layer %d of %d", i, len(n.layers))
	}
	return n.layers[i], nil
}

// ModelType returns the checkpoint model type of this network.
func (n *Network) ModelType() string { return n.modelType }

// Logger returns the progress logger.
func (n *Network) Logger() *log.Logger { return n.logger }

func (n *Network) checkInput(x *tensor.Tensor) error {
	if len(n.layers) == 0 {
		return errors.New("network has no layers")
	}
	if x.Len() != n.inputSize.NumElements() {
		return errors.Wrapf(nn.ErrShapeMismatch, "input %v does not fit network input %v", x.Shape(), n.inputSize)
	}
	return nil
}

// Classify runs the deterministic inference path and returns the last
// layer's activations viewed with OutputSize.
func (n *Network) Classify(x *tensor.Tensor) (*tensor.Tensor, error) {
	if err := n.checkInput(x); err != nil {
		return nil, err
	}
	y := x
	for _, l := range n.layers {
		y = l.ForwardInference(y)
	}
	return y.MustReshape(n.output), nil
}

// ClassifyLabels returns the index of the strongest output per sample.
func (n *Network) ClassifyLabels(x *tensor.Tensor) ([]int, error) {
	y, err := n.Classify(x)
	if err != nil {
		return nil, err
	}
	if y.Rank() != 2 {
		return nil, errors.Wrapf(nn.ErrShapeMismatch, "classify labels needs a (batch, classes) output, got %v", y.Shape())
	}
	return y.ArgmaxRows(), nil
}

// Train runs one supervised step on a mini-batch: the training forward
// path, the configured cost against expected plus weight penalties, the
// backward pass through every layer and then one GradientStep per layer.
// It returns the cost before the update.
func (n *Network) Train(x, expected *tensor.Tensor) (float64, error) {
	if err := n.checkInput(x); err != nil {
		return 0, err
	}
	if !expected.Shape().Equal(n.output) {
		return 0, errors.Wrapf(nn.ErrShapeMismatch, "expected %v, network output %v", expected.Shape(), n.output)
	}
	n.frozen = true

	traces := make([]*nn.Trace, len(n.layers))
	y := x
	for i, l := range n.layers {
		y, traces[i] = l.ForwardTraining(y)
	}
	c, grad := n.primary.Evaluate(expected, y.MustReshape(n.output))
	c += n.penalty()

	grads := make([][]*tensor.Tensor, len(n.layers))
	for i := len(n.layers) - 1; i >= 0; i-- {
		var paramGrads []*tensor.Tensor
		grad, paramGrads = n.layers[i].Backward(traces[i], grad)
		n.addPenaltyGrad(n.layers[i], paramGrads)
		grads[i] = paramGrads
	}
	for i, l := range n.layers {
		l.GradientStep(grads[i])
	}
	return c, nil
}

func weightsOf(l nn.Layer) *tensor.Tensor {
	return l.Parameters()[0].Tensor
}

func (n *Network) penalty() float64 {
	if n.reg.L1 == 0 && n.reg.L2 == 0 {
		return 0
	}
	batch := n.inputSize[0]
	weights := make([]*tensor.Tensor, len(n.layers))
	for i, l := range n.layers {
		weights[i] = weightsOf(l)
	}
	var p float64
	if n.reg.L1 != 0 {
		p += cost.LeastAbsoluteDeviation(weights, batch, n.reg.L1)
	}
	if n.reg.L2 != 0 {
		p += cost.LeastSquares(weights, batch, n.reg.L2)
	}
	return p
}

func (n *Network) addPenaltyGrad(l nn.Layer, grads []*tensor.Tensor) {
	batch := n.inputSize[0]
	g := grads[0].Data()
	if n.reg.L1 != 0 {
		floats.Add(g, cost.LeastAbsoluteDeviationGrad(weightsOf(l), batch, n.reg.L1).Data())
	}
	if n.reg.L2 != 0 {
		floats.Add(g, cost.LeastSquaresGrad(weightsOf(l), batch, n.reg.L2).Data())
	}
}
