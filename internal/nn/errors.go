package nn

import (
	"errors"
	"fmt"

	"github.com/born-ml/saenet/internal/tensor"
)

// Construction and wiring errors. Callers match them with errors.Is; the
// returned errors wrap them with the offending shapes or kinds.
var (
	// ErrShapeMismatch reports incompatible tensor shapes at layer
	// construction or when appending a layer to a network.
	ErrShapeMismatch = errors.New("shape mismatch")

	// ErrTypeMismatch reports an object of the wrong layer kind.
	ErrTypeMismatch = errors.New("type mismatch")

	// ErrIndexOutOfRange reports a layer or mini-batch index beyond what is
	// available.
	ErrIndexOutOfRange = errors.New("index out of range")
)

func shapeErr(id, what string, got, want tensor.Shape) error {
	return fmt.Errorf("layer %s: %s %v, want %v: %w", id, what, got, want, ErrShapeMismatch)
}
