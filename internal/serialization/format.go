package serialization

import (
	"encoding/json"
	"time"

	"github.com/born-ml/saenet/internal/tensor"
)

// Format constants.
const (
	MagicBytes      = "BORN"
	FormatVersion   = 2    // v2: fixed header with SHA-256 checksum
	HeaderAlignment = 64   // tensor data starts on a 64-byte boundary
	FixedHeaderSize = 64   // 0x40 bytes
	ChecksumSize    = 32   // SHA-256
	ChecksumOffset  = 0x20 // checksum position in the fixed header
)

// DTypeFloat64 is the only element type written by this package.
const DTypeFloat64 = "float64"

// Flags for the .born format.
const (
	FlagHasOptimizer uint32 = 1 << 1 // momentum velocities included
	FlagHasMetadata  uint32 = 1 << 2 // custom metadata included
)

// Header represents the JSON header in a .born file.
type Header struct {
	FormatVersion int               `json:"format_version"`
	Generator     string            `json:"generator"`  // producer name and version
	ModelType     string            `json:"model_type"` // e.g. "Network", "StackedAENetwork"
	RunID         string            `json:"run_id"`
	CreatedAt     time.Time         `json:"created_at"`
	Layers        json.RawMessage   `json:"layers,omitempty"` // ordered layer definitions
	Tensors       []TensorMeta      `json:"tensors"`
	Metadata      map[string]string `json:"metadata"`
	Checkpoint    *CheckpointMeta   `json:"checkpoint,omitempty"`
}

// CheckpointMeta contains training state information for checkpoints.
type CheckpointMeta struct {
	Phase         string         `json:"phase,omitempty"` // "unsupervised" or "supervised"
	Epoch         int            `json:"epoch"`
	Accuracy      float64        `json:"accuracy,omitempty"`
	Cost          float64        `json:"cost,omitempty"`
	HasVelocities bool           `json:"has_velocities"`
	TrainingMeta  map[string]any `json:"training_meta,omitempty"`
}

// TensorMeta describes a tensor in the .born file.
type TensorMeta struct {
	Name   string `json:"name"`   // e.g. "c1.weights"
	DType  string `json:"dtype"`  // always "float64"
	Shape  []int  `json:"shape"`  // tensor shape
	Offset int64  `json:"offset"` // bytes from the start of the data section
	Size   int64  `json:"size"`   // size in bytes
}

// NamedTensor pairs a tensor with its name in the file.
type NamedTensor struct {
	Name   string
	Tensor *tensor.Tensor
}

// dataOffset returns where tensor data starts for a JSON header of n bytes.
func dataOffset(n int64) int64 {
	pos := int64(FixedHeaderSize) + n
	return pos + (HeaderAlignment-pos%HeaderAlignment)%HeaderAlignment
}
