package dataset

import (
	"fmt"
	"math/rand"
	"strconv"

	"github.com/born-ml/saenet/internal/tensor"
)

// SyntheticConfig describes a generated dataset.
type SyntheticConfig struct {
	Classes  int
	PerClass int
	Channels int // Default: 1
	Rows     int // Default: 28
	Cols     int // Default: 28
	// Noise is the amplitude of uniform noise added to every pixel.
	Noise float64
	Seed  int64
}

// Synthetic generates one bright horizontal band per class on a dark
// background, shifted down by class index, plus noise. It exists to
// exercise the pipeline without downloading a dataset.
func Synthetic(cfg SyntheticConfig) (*Samples, error) {
	if cfg.Channels == 0 {
		cfg.Channels = 1
	}
	if cfg.Rows == 0 {
		cfg.Rows = 28
	}
	if cfg.Cols == 0 {
		cfg.Cols = 28
	}
	if cfg.Classes <= 0 || cfg.PerClass <= 0 {
		return nil, fmt.Errorf("synthetic dataset needs classes and samples per class, got %d x %d", cfg.Classes, cfg.PerClass)
	}
	band := max(1, cfg.Rows/(cfg.Classes+1))
	if band*cfg.Classes > cfg.Rows {
		return nil, fmt.Errorf("%d rows cannot hold %d distinct bands", cfg.Rows, cfg.Classes)
	}

	rng := rand.New(rand.NewSource(cfg.Seed)) //nolint:gosec // G404: reproducible test data
	s := &Samples{
		Shape:   tensor.Shape{cfg.Channels, cfg.Rows, cfg.Cols},
		Classes: make([]string, cfg.Classes),
	}
	for c := range s.Classes {
		s.Classes[c] = strconv.Itoa(c)
	}

	plane := cfg.Rows * cfg.Cols
	for i := 0; i < cfg.Classes*cfg.PerClass; i++ {
		label := i % cfg.Classes
		img := make([]float64, cfg.Channels*plane)
		for ch := 0; ch < cfg.Channels; ch++ {
			for r := 0; r < cfg.Rows; r++ {
				on := r >= label*band && r < (label+1)*band
				for col := 0; col < cfg.Cols; col++ {
					v := 0.1
					if on {
						v = 0.8
					}
					v += cfg.Noise * (rng.Float64() - 0.5)
					img[ch*plane+r*cfg.Cols+col] = min(1, max(0, v))
				}
			}
		}
		s.Data = append(s.Data, img)
		s.Labels = append(s.Labels, label)
	}
	return s, nil
}
