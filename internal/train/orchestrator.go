// Package train drives the two training phases over a network: greedy
// unsupervised pre-training of a stacked autoencoder and validation-gated
// supervised training with early stopping.
//
// The orchestrator owns the State, writes checkpoints through the network's
// Save and checks the context only at epoch boundaries.
package train

import (
	"context"
	"io"
	"log"
	"os"
	"time"

	"github.com/pkg/errors"

	"github.com/born-ml/saenet/internal/nn"
	"github.com/born-ml/saenet/internal/serialization"
)

// Unsupervised is a greedily trained stack; *network.StackedAENetwork
// implements it.
type Unsupervised interface {
	NumLayers() int
	Layer(i int) (nn.Layer, error)
	TrainEpoch(layerIndex, globalEpoch, numEpochs int) (int, []nn.Costs, error)
	Save(path string, ckpt *serialization.CheckpointMeta) error
}

// Supervised is a network with attached training and validation sets;
// *network.TrainerNetwork implements it.
type Supervised interface {
	TrainEpoch(globalEpoch, numEpochs int) (int, []float64, error)
	Accuracy() (float64, error)
	Save(path string, ckpt *serialization.CheckpointMeta) error
}

// Config controls both phases.
type Config struct {
	// Epochs is the per-layer budget of the unsupervised phase.
	Epochs int
	// Limit is the number of supervised epochs between validation checks.
	Limit int
	// Stop is the number of consecutive non-improving checks that ends the
	// supervised phase.
	Stop int

	Naming Naming
	// Velocities stores momentum state in checkpoints.
	Velocities bool
	Logger     *log.Logger
}

// Validate checks the epoch budgets.
func (c Config) Validate() error {
	switch {
	case c.Epochs < 0:
		return errors.Errorf("epochs %d must be >= 0", c.Epochs)
	case c.Limit <= 0:
		return errors.Errorf("limit %d must be positive", c.Limit)
	case c.Stop < 0:
		return errors.Errorf("stop %d must be >= 0", c.Stop)
	case c.Naming.Base == "":
		return errors.New("checkpoint base name is empty")
	}
	return nil
}

// Orchestrator runs the training phases.
type Orchestrator struct {
	cfg     Config
	state   State
	history History
	logger  *log.Logger
}

// New creates an orchestrator.
func New(cfg Config) (*Orchestrator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Orchestrator{cfg: cfg, logger: logger}, nil
}

// State returns the bookkeeping of the current or last phase.
func (o *Orchestrator) State() State { return o.state }

// History returns every record produced so far.
func (o *Orchestrator) History() *History { return &o.history }

// Result describes a finished supervised phase.
type Result struct {
	Final        string // path of the renamed best checkpoint
	BestAccuracy float64
	BestEpoch    int
	Evaluations  int
}

func (o *Orchestrator) meta(phase Phase, epoch int, accuracy float64) *serialization.CheckpointMeta {
	return &serialization.CheckpointMeta{
		Phase:         string(phase),
		Epoch:         epoch,
		Accuracy:      accuracy,
		HasVelocities: o.cfg.Velocities,
	}
}

// Unsupervised trains every layer of net in order for the epoch budget,
// saves the stack and returns the checkpoint path.
func (o *Orchestrator) Unsupervised(ctx context.Context, net Unsupervised) (string, error) {
	o.state.Reset()
	for i := 0; i < net.NumLayers(); i++ {
		layer, err := net.Layer(i)
		if err != nil {
			return "", err
		}
		for e := 0; e < o.cfg.Epochs; e++ {
			if err := ctx.Err(); err != nil {
				return "", errors.Wrapf(err, "unsupervised layer %s epoch %d", layer.ID(), o.state.GlobalEpoch)
			}
			start := time.Now()
			next, costs, err := net.TrainEpoch(i, o.state.GlobalEpoch, 1)
			if err != nil {
				return "", errors.Wrapf(err, "unsupervised layer %s", layer.ID())
			}
			for _, c := range costs {
				o.history.Add(Record{
					Phase:    PhaseUnsupervised,
					Layer:    layer.ID(),
					Epoch:    o.state.GlobalEpoch,
					Cost:     c.Reconstruction,
					Jacobian: c.Jacobian,
					Elapsed:  time.Since(start),
				})
			}
			o.state.GlobalEpoch = next
		}
	}

	path := o.cfg.Naming.Checkpoint(o.state.GlobalEpoch)
	if err := net.Save(path, o.meta(PhaseUnsupervised, o.state.GlobalEpoch, 0)); err != nil {
		return "", err
	}
	o.state.BestCheckpoint = path
	o.state.BestEpoch = o.state.GlobalEpoch
	o.logger.Printf("phase=%s epochs=%d checkpoint=%s", PhaseUnsupervised, o.state.GlobalEpoch, path)
	return path, nil
}

// Supervised repeats {Limit epochs of training, one validation check}
// until Stop consecutive checks fail to improve, checkpointing every new
// best. The best checkpoint is then renamed to its final name.
func (o *Orchestrator) Supervised(ctx context.Context, net Supervised) (Result, error) {
	o.state.Reset()
	for {
		if err := ctx.Err(); err != nil {
			return Result{}, errors.Wrapf(err, "supervised epoch %d", o.state.GlobalEpoch)
		}
		start := time.Now()
		next, costs, err := net.TrainEpoch(o.state.GlobalEpoch, o.cfg.Limit)
		if err != nil {
			return Result{}, errors.Wrap(err, "supervised training")
		}
		for i, c := range costs {
			o.history.Add(Record{Phase: PhaseSupervised, Epoch: o.state.GlobalEpoch + i, Cost: c})
		}
		o.state.GlobalEpoch = next

		accuracy, err := net.Accuracy()
		if err != nil {
			return Result{}, errors.Wrap(err, "validation")
		}
		o.history.Add(Record{
			Phase:    PhaseSupervised,
			Epoch:    next,
			Accuracy: accuracy,
			Eval:     true,
			Elapsed:  time.Since(start),
		})

		improved, halt := o.state.Observe(accuracy, o.cfg.Stop)
		o.logger.Printf("phase=%s epoch=%d accuracy=%.4f best=%.4f degradation=%d",
			PhaseSupervised, next, accuracy, o.state.BestAccuracy, o.state.Degradation)
		if improved {
			path := o.cfg.Naming.Checkpoint(next)
			if err := net.Save(path, o.meta(PhaseSupervised, next, accuracy)); err != nil {
				return Result{}, err
			}
			o.state.BestCheckpoint = path
			o.state.BestEpoch = next
		}
		if halt {
			break
		}
	}

	final := o.cfg.Naming.Final(o.state.BestEpoch, o.state.BestAccuracy)
	if err := os.Rename(o.state.BestCheckpoint, final); err != nil {
		return Result{}, errors.Wrap(err, "finalise best checkpoint")
	}
	o.logger.Printf("phase=%s best_epoch=%d accuracy=%.4f final=%s",
		PhaseSupervised, o.state.BestEpoch, o.state.BestAccuracy, final)
	return Result{
		Final:        final,
		BestAccuracy: o.state.BestAccuracy,
		BestEpoch:    o.state.BestEpoch,
		Evaluations:  o.state.Evaluations,
	}, nil
}
