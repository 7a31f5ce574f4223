package train

import (
	"bytes"
	"context"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/saenet/internal/dataset"
	"github.com/born-ml/saenet/internal/network"
	"github.com/born-ml/saenet/internal/nn"
	"github.com/born-ml/saenet/internal/serialization"
	"github.com/born-ml/saenet/internal/tensor"
)

// scripted replays a fixed validation accuracy sequence.
type scripted struct {
	accuracies []float64
	evals      int
	epochs     []int
	saved      []string
}

func (s *scripted) TrainEpoch(globalEpoch, numEpochs int) (int, []float64, error) {
	s.epochs = append(s.epochs, globalEpoch)
	costs := make([]float64, numEpochs)
	for i := range costs {
		costs[i] = 1 / float64(globalEpoch+i+1)
	}
	return globalEpoch + numEpochs, costs, nil
}

func (s *scripted) Accuracy() (float64, error) {
	acc := s.accuracies[s.evals]
	s.evals++
	return acc, nil
}

func (s *scripted) Save(path string, ckpt *serialization.CheckpointMeta) error {
	s.saved = append(s.saved, path)
	return os.WriteFile(path, []byte(ckpt.Phase), 0o600)
}

func testNaming(dir string) Naming {
	return Naming{
		Base: filepath.Join(dir, "leNet5"), Data: "/data/mnist.idx",
		LearnC: 0.0031, LearnF: 0.0015, Momentum: 0.3, Kernel: 6, Neuron: 120,
	}
}

func TestState_Observe(t *testing.T) {
	var s State
	steps := []struct {
		acc              float64
		improved, halted bool
	}{
		{0.70, true, false},
		{0.72, true, false},
		{0.71, false, false},
		{0.69, false, true},
	}
	for _, st := range steps {
		improved, halt := s.Observe(st.acc, 2)
		assert.Equal(t, st.improved, improved, "acc %g", st.acc)
		assert.Equal(t, st.halted, halt, "acc %g", st.acc)
	}
	assert.InDelta(t, 0.72, s.BestAccuracy, 0)
	assert.Equal(t, 2, s.Degradation)

	s.Reset()
	assert.Equal(t, State{}, s)

	// The first check always counts as an improvement.
	improved, _ := s.Observe(0, 1)
	assert.True(t, improved)
}

func TestNaming(t *testing.T) {
	n := testNaming("out")
	assert.Equal(t, filepath.Join("out", "leNet5")+"_learnC0.0031_learnF0.0015_momentum0.3_kernel6_neuron120_epoch4.born", n.Checkpoint(4))
	assert.Equal(t, filepath.Join("out", "leNet5")+"_FinalOnHoldOut_mnist_epoch2_acc0.72.born", n.Final(2, 0.72))

	n.Data = ""
	assert.Equal(t, filepath.Join("out", "leNet5")+"_FinalOnHoldOut_data_epoch1_acc0.5.born", n.Final(1, 0.5))
}

func TestConfig_Validate(t *testing.T) {
	good := Config{Epochs: 1, Limit: 1, Stop: 2, Naming: Naming{Base: "x"}}
	assert.NoError(t, good.Validate())

	for _, mutate := range []func(*Config){
		func(c *Config) { c.Epochs = -1 },
		func(c *Config) { c.Limit = 0 },
		func(c *Config) { c.Stop = -1 },
		func(c *Config) { c.Naming.Base = "" },
	} {
		c := good
		mutate(&c)
		_, err := New(c)
		assert.Error(t, err)
	}
}

func TestSupervised_EarlyStopping(t *testing.T) {
	dir := t.TempDir()
	var buf bytes.Buffer
	o, err := New(Config{Limit: 1, Stop: 2, Naming: testNaming(dir), Logger: log.New(&buf, "", 0)})
	require.NoError(t, err)

	net := &scripted{accuracies: []float64{0.70, 0.72, 0.71, 0.69, 0.68}}
	res, err := o.Supervised(context.Background(), net)
	require.NoError(t, err)

	assert.Equal(t, 4, net.evals, "halts after the second non-improving check")
	assert.Equal(t, []int{0, 1, 2, 3}, net.epochs)
	assert.Equal(t, []string{testNaming(dir).Checkpoint(1), testNaming(dir).Checkpoint(2)}, net.saved)

	assert.InDelta(t, 0.72, res.BestAccuracy, 0)
	assert.Equal(t, 2, res.BestEpoch)
	assert.Equal(t, 4, res.Evaluations)
	assert.Equal(t, testNaming(dir).Final(2, 0.72), res.Final)

	assert.FileExists(t, res.Final)
	assert.NoFileExists(t, testNaming(dir).Checkpoint(2))
	assert.FileExists(t, testNaming(dir).Checkpoint(1))

	evals := o.History().Filter(func(r Record) bool { return r.Eval })
	require.Len(t, evals, 4)
	assert.InDelta(t, 0.69, evals[3].Accuracy, 0)
	assert.Len(t, o.History().Filter(func(r Record) bool { return !r.Eval }), 4)
	assert.Contains(t, buf.String(), "accuracy=0.7200")
}

func TestSupervised_HonoursContext(t *testing.T) {
	o, err := New(Config{Limit: 1, Stop: 2, Naming: testNaming(t.TempDir())})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	net := &scripted{accuracies: []float64{0.5}}
	_, err = o.Supervised(ctx, net)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, net.evals)
}

func newStack(t *testing.T) *network.StackedAENetwork {
	t.Helper()
	s, err := dataset.Synthetic(dataset.SyntheticConfig{Classes: 2, PerClass: 2, Rows: 6, Cols: 6, Seed: 1})
	require.NoError(t, err)
	set, err := dataset.Batches(s, 2)
	require.NoError(t, err)

	n, err := network.NewStacked(set)
	require.NoError(t, err)
	for i, layer := range []struct {
		in      tensor.Shape
		neurons int
	}{{tensor.Shape{2, 36}, 5}, {tensor.Shape{2, 5}, 3}} {
		ae, err := nn.NewContractiveAutoEncoder(nn.ContractiveConfig{
			ContiguousConfig: nn.ContiguousConfig{
				Options:    nn.Options{ID: []string{"f1", "f2"}[i], LearningRate: 0.1, Rand: rand.New(rand.NewSource(int64(i)))},
				InputSize:  layer.in,
				NumNeurons: layer.neurons,
			},
			ContractionRate: 0.1,
		})
		require.NoError(t, err)
		require.NoError(t, n.AddLayer(ae))
	}
	return n
}

func TestUnsupervised_TrainsEveryLayerAndSaves(t *testing.T) {
	dir := t.TempDir()
	o, err := New(Config{Epochs: 3, Limit: 1, Naming: testNaming(dir)})
	require.NoError(t, err)

	path, err := o.Unsupervised(context.Background(), newStack(t))
	require.NoError(t, err)
	assert.Equal(t, testNaming(dir).Checkpoint(6), path)
	assert.FileExists(t, path)
	assert.Equal(t, 6, o.State().GlobalEpoch)

	records := o.History().Records
	require.Len(t, records, 6)
	assert.Equal(t, "f1", records[0].Layer)
	assert.Equal(t, "f2", records[5].Layer)
	assert.Equal(t, 5, records[5].Epoch)
	assert.Greater(t, records[0].Jacobian, 0.0)

	f, err := serialization.ReadFile(path)
	require.NoError(t, err)
	require.NotNil(t, f.Header().Checkpoint)
	assert.Equal(t, string(PhaseUnsupervised), f.Header().Checkpoint.Phase)
	assert.Equal(t, network.ModelStackedAE, f.Header().ModelType)
}

func TestUnsupervised_HonoursContext(t *testing.T) {
	o, err := New(Config{Epochs: 3, Limit: 1, Naming: testNaming(t.TempDir())})
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = o.Unsupervised(ctx, newStack(t))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, o.History().Records)
}
