package network

import (
	"github.com/pkg/errors"

	"github.com/born-ml/saenet/internal/dataset"
	"github.com/born-ml/saenet/internal/nn"
)

// StackedAENetwork stacks autoencoders so that the output of one becomes
// the input of the next and trains them greedily, layer by layer, against
// a pre-staged training set.
type StackedAENetwork struct {
	*Network
	train *dataset.Set
}

// NewStacked creates an empty stack trained on train.
func NewStacked(train *dataset.Set, opts ...Option) (*StackedAENetwork, error) {
	if train == nil || train.Len() == 0 {
		return nil, errors.New("stacked network needs a training set")
	}
	return &StackedAENetwork{
		Network: newNetwork(ModelStackedAE, nn.Kind.IsAutoEncoder, opts),
		train:   train,
	}, nil
}

// LoadStacked restores a stack saved with Save and attaches train.
func LoadStacked(path string, train *dataset.Set, opts ...Option) (*StackedAENetwork, error) {
	n, err := NewStacked(train, opts...)
	if err != nil {
		return nil, err
	}
	ck, err := n.readCheckpoint(path)
	if err != nil {
		return nil, err
	}
	for _, l := range ck.layers {
		if len(n.layers) > 0 && !l.InputSize().Equal(n.output) {
			if err := n.ReshapeOutput(l.InputSize()); err != nil {
				return nil, errors.Wrapf(err, "load %s: layer %s", path, l.ID())
			}
		}
		if err := n.AddLayer(l); err != nil {
			return nil, errors.Wrapf(err, "load %s", path)
		}
	}
	return n, nil
}

// AddLayer appends an autoencoder. The first encoder must consume the
// training batches.
func (n *StackedAENetwork) AddLayer(layer nn.Layer) error {
	if layer == nil {
		return errors.Wrap(nn.ErrTypeMismatch, "add nil layer")
	}
	if _, ok := layer.(nn.AutoEncoder); !ok {
		return errors.Wrapf(nn.ErrTypeMismatch, "%s expects an autoencoder, got %s layer %s", n.modelType, layer.Kind(), layer.ID())
	}
	if len(n.layers) == 0 {
		if want := n.train.BatchShape(); layer.InputSize().NumElements() != want.NumElements() {
			return errors.Wrapf(nn.ErrShapeMismatch, "layer %s: input %v does not fit training batches %v",
				layer.ID(), layer.InputSize(), want)
		}
	}
	return n.Network.AddLayer(layer)
}

// TrainSet returns the staged training set.
func (n *StackedAENetwork) TrainSet() *dataset.Set { return n.train }

// NumBatches returns the number of staged training batches.
func (n *StackedAENetwork) NumBatches() int { return n.train.Len() }

// Encoder returns layer i as an autoencoder.
func (n *StackedAENetwork) Encoder(i int) (nn.AutoEncoder, error) {
	l, err := n.Layer(i)
	if err != nil {
		return nil, err
	}
	return l.(nn.AutoEncoder), nil
}

// Train runs one update of layer layerIndex on staged batch batchIndex.
// Lower layers only run their inference path, so every other layer is left
// untouched.
func (n *StackedAENetwork) Train(layerIndex, batchIndex int) (nn.Costs, error) {
	enc, err := n.Encoder(layerIndex)
	if err != nil {
		return nn.Costs{}, err
	}
	if batchIndex < 0 || batchIndex >= n.train.Len() {
		return nn.Costs{}, errors.Wrapf(nn.ErrIndexOutOfRange, "batch %d of %d", batchIndex, n.train.Len())
	}
	n.frozen = true

	x := n.train.Batch(batchIndex).Data
	for _, l := range n.layers[:layerIndex] {
		x = l.ForwardInference(x)
	}
	return enc.Train(x), nil
}

// TrainEpoch trains layer layerIndex for numEpochs passes over every staged
// batch. It returns the next global epoch and the mean costs of each epoch.
func (n *StackedAENetwork) TrainEpoch(layerIndex, globalEpoch, numEpochs int) (int, []nn.Costs, error) {
	enc, err := n.Encoder(layerIndex)
	if err != nil {
		return globalEpoch, nil, err
	}
	costs := make([]nn.Costs, 0, numEpochs)
	for local := 0; local < numEpochs; local++ {
		var sum nn.Costs
		for b := 0; b < n.train.Len(); b++ {
			c, err := n.Train(layerIndex, b)
			if err != nil {
				return globalEpoch + local, costs, err
			}
			sum.Reconstruction += c.Reconstruction
			sum.Jacobian += c.Jacobian
		}
		mean := nn.Costs{
			Reconstruction: sum.Reconstruction / float64(n.train.Len()),
			Jacobian:       sum.Jacobian / float64(n.train.Len()),
		}
		n.logger.Printf("layer=%s epoch=%d cost=%.6f jacob=%.6f", enc.ID(), globalEpoch+local, mean.Reconstruction, mean.Jacobian)
		costs = append(costs, mean)
	}
	return globalEpoch + numEpochs, costs, nil
}

// TrainGreedyLayerwise trains every layer in order for numEpochs before
// moving to the next one.
func (n *StackedAENetwork) TrainGreedyLayerwise(numEpochs int) error {
	for i := range n.layers {
		if _, _, err := n.TrainEpoch(i, 0, numEpochs); err != nil {
			return err
		}
	}
	return nil
}
