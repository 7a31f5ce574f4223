// Package dataset stages labelled imagery into fixed-shape mini-batches.
//
// Producers (LoadIDX, Synthetic) return Samples; Stage shuffles, holds out a
// test fraction and cuts both parts into Sets of equally sized MiniBatches.
// Trailing samples that do not fill a batch are dropped so every batch has
// the shape the network was built for.
package dataset

import (
	"fmt"
	"math/rand"

	"github.com/born-ml/saenet/internal/tensor"
)

// Samples is an in-memory labelled image collection.
type Samples struct {
	Shape   tensor.Shape // per-sample (channels, rows, cols)
	Data    [][]float64  // one flattened image per sample
	Labels  []int        // class index per sample
	Classes []string     // class names; len(Classes) is the class count
}

// Len returns the number of samples.
func (s *Samples) Len() int {
	return len(s.Data)
}

// Validate checks that images, labels and classes agree.
func (s *Samples) Validate() error {
	if err := s.Shape.Validate(); err != nil {
		return fmt.Errorf("sample shape: %w", err)
	}
	if len(s.Data) != len(s.Labels) {
		return fmt.Errorf("image count (%d) != label count (%d)", len(s.Data), len(s.Labels))
	}
	if len(s.Classes) == 0 {
		return fmt.Errorf("no classes")
	}
	n := s.Shape.NumElements()
	for i, d := range s.Data {
		if len(d) != n {
			return fmt.Errorf("sample %d has %d values, want %d", i, len(d), n)
		}
		if s.Labels[i] < 0 || s.Labels[i] >= len(s.Classes) {
			return fmt.Errorf("sample %d: label %d out of range [0, %d)", i, s.Labels[i], len(s.Classes))
		}
	}
	return nil
}

// Shuffle permutes the samples in place.
func (s *Samples) Shuffle(rng *rand.Rand) {
	rng.Shuffle(len(s.Data), func(i, j int) {
		s.Data[i], s.Data[j] = s.Data[j], s.Data[i]
		s.Labels[i], s.Labels[j] = s.Labels[j], s.Labels[i]
	})
}

// Split returns the first (1-holdout) fraction as train and the rest as
// test. Both share the underlying sample slices.
func (s *Samples) Split(holdout float64) (train, test *Samples) {
	splitIdx := int(float64(s.Len()) * (1 - holdout))
	train = &Samples{Shape: s.Shape, Data: s.Data[:splitIdx], Labels: s.Labels[:splitIdx], Classes: s.Classes}
	test = &Samples{Shape: s.Shape, Data: s.Data[splitIdx:], Labels: s.Labels[splitIdx:], Classes: s.Classes}
	return train, test
}

// MiniBatch is one fixed-shape batch.
type MiniBatch struct {
	Data     *tensor.Tensor // (batch, channels, rows, cols)
	Labels   []int
	Expected *tensor.Tensor // one-hot (batch, classes)
}

// Size returns the number of samples in the batch.
func (b MiniBatch) Size() int {
	return len(b.Labels)
}

// Set is an ordered list of mini-batches of identical shape.
type Set struct {
	batches []MiniBatch
	classes []string
}

// NewSet groups batches into a Set. All batches must share one data shape.
func NewSet(batches []MiniBatch, classes []string) (*Set, error) {
	if len(batches) == 0 {
		return nil, fmt.Errorf("set needs at least one batch")
	}
	shape := batches[0].Data.Shape()
	for i, b := range batches {
		if !b.Data.Shape().Equal(shape) {
			return nil, fmt.Errorf("batch %d has shape %v, want %v", i, b.Data.Shape(), shape)
		}
		if b.Size() != shape[0] {
			return nil, fmt.Errorf("batch %d has %d labels for %d samples", i, b.Size(), shape[0])
		}
	}
	return &Set{batches: batches, classes: classes}, nil
}

// Len returns the number of batches.
func (s *Set) Len() int { return len(s.batches) }

// Batch returns batch i. It panics when i is out of range.
func (s *Set) Batch(i int) MiniBatch { return s.batches[i] }

// Batches returns all batches.
func (s *Set) Batches() []MiniBatch { return s.batches }

// BatchShape returns the data shape shared by every batch.
func (s *Set) BatchShape() tensor.Shape { return s.batches[0].Data.Shape() }

// BatchSize returns the number of samples per batch.
func (s *Set) BatchSize() int { return s.BatchShape()[0] }

// NumSamples returns the total number of samples.
func (s *Set) NumSamples() int { return s.Len() * s.BatchSize() }

// Classes returns the class names.
func (s *Set) Classes() []string { return s.classes }

// NumClasses returns the number of classes.
func (s *Set) NumClasses() int { return len(s.classes) }

// OneHot encodes labels as a (len(labels), classes) tensor.
func OneHot(labels []int, classes int) *tensor.Tensor {
	out := tensor.Zeros(tensor.Shape{len(labels), classes})
	for i, l := range labels {
		out.Set(1, i, l)
	}
	return out
}

// Batches cuts samples into consecutive batches of batchSize.
func Batches(s *Samples, batchSize int) (*Set, error) {
	if batchSize <= 0 {
		return nil, fmt.Errorf("batch size %d must be positive", batchSize)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	numBatches := s.Len() / batchSize
	if numBatches == 0 {
		return nil, fmt.Errorf("%d samples do not fill one batch of %d", s.Len(), batchSize)
	}

	perSample := s.Shape.NumElements()
	shape := append(tensor.Shape{batchSize}, s.Shape...)
	batches := make([]MiniBatch, numBatches)
	for b := range batches {
		data := make([]float64, batchSize*perSample)
		labels := make([]int, batchSize)
		for j := 0; j < batchSize; j++ {
			idx := b*batchSize + j
			copy(data[j*perSample:(j+1)*perSample], s.Data[idx])
			labels[j] = s.Labels[idx]
		}
		batches[b] = MiniBatch{
			Data:     tensor.MustFromSlice(data, shape),
			Labels:   labels,
			Expected: OneHot(labels, len(s.Classes)),
		}
	}
	return NewSet(batches, s.Classes)
}

// Stage shuffles samples (when rng is non-nil), holds out the given
// fraction for testing and batches both parts. With holdout 0 the test set
// is nil.
func Stage(s *Samples, batchSize int, holdout float64, rng *rand.Rand) (train, test *Set, err error) {
	if holdout < 0 || holdout >= 1 {
		return nil, nil, fmt.Errorf("holdout %g outside [0, 1)", holdout)
	}
	if rng != nil {
		s.Shuffle(rng)
	}
	trainSamples, testSamples := s.Split(holdout)

	train, err = Batches(trainSamples, batchSize)
	if err != nil {
		return nil, nil, fmt.Errorf("train set: %w", err)
	}
	if holdout == 0 {
		return train, nil, nil
	}
	test, err = Batches(testSamples, batchSize)
	if err != nil {
		return nil, nil, fmt.Errorf("test set: %w", err)
	}
	return train, test, nil
}
