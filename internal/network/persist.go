package network

import (
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/born-ml/saenet/internal/nn"
	"github.com/born-ml/saenet/internal/optim"
	"github.com/born-ml/saenet/internal/serialization"
	"github.com/born-ml/saenet/internal/tensor"
)

const outputShapeKey = "output_shape"

// momentumState is implemented by every layer of package nn.
type momentumState interface {
	Optimizer() *optim.Momentum
}

func tensorName(layerID, param string) string {
	return layerID + "." + param
}

func velocityName(layerID, param string) string {
	return layerID + "." + param + ".velocity"
}

// Save writes the layer definitions and parameters to path atomically.
// When ckpt requests velocities the momentum state is stored as well so
// training resumes exactly.
func (n *Network) Save(path string, ckpt *serialization.CheckpointMeta) error {
	defs := make([]nn.Definition, len(n.layers))
	var tensors []serialization.NamedTensor
	for i, l := range n.layers {
		defs[i] = l.Definition()
		params := l.Parameters()
		for _, p := range params {
			tensors = append(tensors, serialization.NamedTensor{Name: tensorName(l.ID(), p.Name), Tensor: p.Tensor})
		}
		if ckpt == nil || !ckpt.HasVelocities {
			continue
		}
		ms, ok := l.(momentumState)
		if !ok {
			return errors.Errorf("layer %s does not expose its momentum state", l.ID())
		}
		for j, v := range ms.Optimizer().Velocities() {
			tensors = append(tensors, serialization.NamedTensor{Name: velocityName(l.ID(), params[j].Name), Tensor: v})
		}
	}

	layers, err := json.Marshal(defs)
	if err != nil {
		return errors.Wrap(err, "encode layer definitions")
	}
	output, err := json.Marshal([]int(n.output))
	if err != nil {
		return errors.Wrap(err, "encode output shape")
	}
	header := serialization.Header{
		ModelType:  n.modelType,
		Layers:     layers,
		Metadata:   map[string]string{outputShapeKey: string(output)},
		Checkpoint: ckpt,
	}
	if err := serialization.WriteFile(path, header, tensors); err != nil {
		return errors.Wrapf(err, "save %s", path)
	}
	n.logger.Printf("saved model=%s layers=%d path=%s", n.modelType, len(n.layers), path)
	return nil
}

// checkpoint is a decoded file with its layers rebuilt.
type checkpoint struct {
	file   *serialization.File
	layers []nn.Layer
	output tensor.Shape
}

// readCheckpoint decodes path and rebuilds every recorded layer.
func (n *Network) readCheckpoint(path string) (*checkpoint, error) {
	f, err := serialization.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "load")
	}
	h := f.Header()

	var defs []nn.Definition
	if err := json.Unmarshal(h.Layers, &defs); err != nil {
		return nil, errors.Wrapf(err, "load %s: layer definitions", path)
	}
	ck := &checkpoint{file: f}
	if raw, ok := h.Metadata[outputShapeKey]; ok {
		if err := json.Unmarshal([]byte(raw), &ck.output); err != nil {
			return nil, errors.Wrapf(err, "load %s: output shape", path)
		}
	}

	withVelocities := h.Checkpoint != nil && h.Checkpoint.HasVelocities
	for _, def := range defs {
		params := make(map[string]*tensor.Tensor)
		for _, name := range []string{nn.ParamWeights, nn.ParamThresholds, nn.ParamVisibleThresholds} {
			if !f.Has(tensorName(def.ID, name)) {
				continue
			}
			if params[name], err = f.Tensor(tensorName(def.ID, name)); err != nil {
				return nil, errors.Wrapf(err, "load %s", path)
			}
		}
		layer, err := nn.Build(def, params, n.rng, n.be)
		if err != nil {
			return nil, errors.Wrapf(err, "load %s", path)
		}
		if withVelocities {
			if err := loadVelocities(f, layer); err != nil {
				return nil, errors.Wrapf(err, "load %s", path)
			}
		}
		ck.layers = append(ck.layers, layer)
	}
	return ck, nil
}

func loadVelocities(f *serialization.File, layer nn.Layer) error {
	ms, ok := layer.(momentumState)
	if !ok {
		return errors.Errorf("layer %s does not expose its momentum state", layer.ID())
	}
	params := layer.Parameters()
	velocities := make([]*tensor.Tensor, len(params))
	for i, p := range params {
		v, err := f.Tensor(velocityName(layer.ID(), p.Name))
		if err != nil {
			return err
		}
		velocities[i] = v
	}
	return errors.Wrapf(ms.Optimizer().LoadVelocities(velocities), "layer %s", layer.ID())
}

// assemble adds layers in order, restoring the recorded views between them.
func (n *Network) assemble(layers []nn.Layer, output tensor.Shape) error {
	for _, l := range layers {
		if len(n.layers) > 0 && !l.InputSize().Equal(n.output) {
			if err := n.ReshapeOutput(l.InputSize()); err != nil {
				return errors.Wrapf(err, "layer %s", l.ID())
			}
		}
		if err := n.AddLayer(l); err != nil {
			return err
		}
	}
	if len(output) > 0 && !output.Equal(n.output) {
		return n.ReshapeOutput(output)
	}
	return nil
}

// Load restores a plain Network saved with Save.
func Load(path string, opts ...Option) (*Network, error) {
	n := New(opts...)
	ck, err := n.readCheckpoint(path)
	if err != nil {
		return nil, err
	}
	if err := n.assemble(ck.layers, ck.output); err != nil {
		return nil, errors.Wrapf(err, "load %s", path)
	}
	return n, nil
}
