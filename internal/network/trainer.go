package network

import (
	"github.com/pkg/errors"

	"github.com/born-ml/saenet/internal/dataset"
	"github.com/born-ml/saenet/internal/nn"
)

// TrainerNetwork is a supervised Network with its training and validation
// sets attached.
type TrainerNetwork struct {
	*Network
	train      *dataset.Set
	validation *dataset.Set
}

// NewTrainer wraps n for supervised training.
func NewTrainer(n *Network, train, validation *dataset.Set) (*TrainerNetwork, error) {
	if train == nil || train.Len() == 0 {
		return nil, errors.New("trainer network needs a training set")
	}
	if validation == nil || validation.Len() == 0 {
		return nil, errors.New("trainer network needs a validation set")
	}
	if n.NumLayers() > 0 && n.InputSize().NumElements() != train.BatchShape().NumElements() {
		return nil, errors.Wrapf(nn.ErrShapeMismatch, "network input %v does not fit training batches %v",
			n.InputSize(), train.BatchShape())
	}
	n.modelType = ModelTrainer
	return &TrainerNetwork{Network: n, train: train, validation: validation}, nil
}

// LoadTrainer rebuilds a checkpoint as a supervised network. Autoencoders
// are promoted to their plain layer so pre-trained weights seed the
// fine-tuning; plain layers are kept as they are.
func LoadTrainer(path string, train, validation *dataset.Set, opts ...Option) (*TrainerNetwork, error) {
	n := New(opts...)
	ck, err := n.readCheckpoint(path)
	if err != nil {
		return nil, err
	}
	layers := make([]nn.Layer, len(ck.layers))
	for i, l := range ck.layers {
		layers[i] = l
		if ae, ok := l.(nn.AutoEncoder); ok {
			if layers[i], err = ae.Promote(); err != nil {
				return nil, errors.Wrapf(err, "load %s: promote %s", path, l.ID())
			}
		}
	}
	if err := n.assemble(layers, ck.output); err != nil {
		return nil, errors.Wrapf(err, "load %s", path)
	}
	n.logger.Printf("loaded model=%s layers=%d from=%s", ck.file.Header().ModelType, len(layers), path)
	return NewTrainer(n, train, validation)
}

// TrainSet returns the training set.
func (t *TrainerNetwork) TrainSet() *dataset.Set { return t.train }

// ValidationSet returns the validation set.
func (t *TrainerNetwork) ValidationSet() *dataset.Set { return t.validation }

// TrainEpoch runs numEpochs passes of supervised training over every
// training batch. It returns the next global epoch and the mean cost per
// epoch.
func (t *TrainerNetwork) TrainEpoch(globalEpoch, numEpochs int) (int, []float64, error) {
	costs := make([]float64, 0, numEpochs)
	for local := 0; local < numEpochs; local++ {
		var sum float64
		for _, b := range t.train.Batches() {
			c, err := t.Train(b.Data, b.Expected)
			if err != nil {
				return globalEpoch + local, costs, err
			}
			sum += c
		}
		mean := sum / float64(t.train.Len())
		t.logger.Printf("epoch=%d cost=%.6f", globalEpoch+local, mean)
		costs = append(costs, mean)
	}
	return globalEpoch + numEpochs, costs, nil
}

// Accuracy returns the fraction of validation samples classified
// correctly.
func (t *TrainerNetwork) Accuracy() (float64, error) {
	var correct, total int
	for _, b := range t.validation.Batches() {
		labels, err := t.ClassifyLabels(b.Data)
		if err != nil {
			return 0, err
		}
		for i, l := range labels {
			if l == b.Labels[i] {
				correct++
			}
		}
		total += b.Size()
	}
	return float64(correct) / float64(total), nil
}
