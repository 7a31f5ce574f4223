package main

import (
	"log"
	"math/rand"

	"github.com/pkg/errors"

	"github.com/born-ml/saenet/internal/config"
	"github.com/born-ml/saenet/internal/dataset"
)

const (
	syntheticData     = "synthetic"
	syntheticClasses  = 10
	syntheticPerClass = 100
)

// loadSamples reads the configured dataset. train selects the training
// files of an IDX directory.
func loadSamples(cfg *config.Config, train bool, rng *rand.Rand) (*dataset.Samples, error) {
	if cfg.Data == syntheticData {
		perClass := syntheticPerClass
		if cfg.MaxSamples > 0 {
			perClass = max(1, cfg.MaxSamples/syntheticClasses)
		}
		return dataset.Synthetic(dataset.SyntheticConfig{
			Classes:  syntheticClasses,
			PerClass: perClass,
			Noise:    0.1,
			Seed:     rng.Int63(),
		})
	}
	s, err := dataset.LoadIDX(cfg.Data, train, cfg.MaxSamples)
	if err != nil {
		return nil, errors.Wrapf(err, "load %s", cfg.Data)
	}
	return s, nil
}

// stage loads the training data and splits off the validation set.
func stage(cfg *config.Config, rng *rand.Rand, logger *log.Logger) (train, validation *dataset.Set, err error) {
	logger.Printf("Ingesting imagery from %s...", cfg.Data)
	samples, err := loadSamples(cfg, true, rng)
	if err != nil {
		return nil, nil, err
	}
	train, validation, err = dataset.Stage(samples, cfg.Batch, cfg.Holdout, rng)
	if err != nil {
		return nil, nil, errors.Wrap(err, "stage dataset")
	}
	logger.Printf("samples=%d classes=%d train_batches=%d validation_batches=%d batch=%v",
		samples.Len(), train.NumClasses(), train.Len(), validation.Len(), train.BatchShape())
	return train, validation, nil
}
