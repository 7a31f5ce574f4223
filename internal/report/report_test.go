package report

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/saenet/internal/train"
)

func history() *train.History {
	h := &train.History{}
	h.Add(train.Record{Phase: train.PhaseUnsupervised, Layer: "c1", Epoch: 0, Cost: 0.9})
	h.Add(train.Record{Phase: train.PhaseUnsupervised, Layer: "c1", Epoch: 1, Cost: 0.7})
	h.Add(train.Record{Phase: train.PhaseUnsupervised, Layer: "f3", Epoch: 2, Cost: 0.5, Jacobian: 0.1})
	h.Add(train.Record{Phase: train.PhaseSupervised, Epoch: 3, Cost: 0.4})
	h.Add(train.Record{Phase: train.PhaseSupervised, Epoch: 4, Accuracy: 0.8, Eval: true})
	return h
}

func TestCollect(t *testing.T) {
	series := Collect(history())
	require.Len(t, series, 4)

	assert.Equal(t, "c1 cost", series[0].Name)
	assert.Len(t, series[0].Points, 2)
	assert.Equal(t, "f3 cost", series[1].Name)
	assert.InDelta(t, 0.6, series[1].Points[0].Y, 1e-12)
	assert.Equal(t, "supervised cost", series[2].Name)
	assert.Equal(t, "accuracy", series[3].Name)
	assert.InDelta(t, 4, series[3].Points[0].X, 0)

	assert.Empty(t, Collect(&train.History{}))
}

func TestSave(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"history.svg", "history.png"} {
		path := filepath.Join(dir, name)
		require.NoError(t, Save(path, history()))
		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Positive(t, info.Size())
	}

	assert.Error(t, Save(filepath.Join(dir, "empty.svg"), &train.History{}))
}
