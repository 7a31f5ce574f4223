package serialization

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/born-ml/saenet/internal/tensor"
)

// Limits applied while reading a checkpoint.
const (
	MaxHeaderSize    = 16 << 20 // JSON header bytes
	MaxTensorCount   = 4096
	MaxTensorNameLen = 256
)

// ValidateTensorOffsets checks that every tensor region lies inside the
// data section and that no two regions share a byte.
func ValidateTensorOffsets(tensors []TensorMeta, dataSize int64) error {
	if len(tensors) > MaxTensorCount {
		return tooMany(len(tensors))
	}

	byOffset := slices.Clone(tensors)
	slices.SortFunc(byOffset, func(a, b TensorMeta) int { return cmp.Compare(a.Offset, b.Offset) })

	var prev *TensorMeta
	for i := range byOffset {
		t := &byOffset[i]
		switch {
		case t.Offset < 0 || t.Size < 0:
			return &ValidationError{Err: ErrNegativeOffset, Tensor: t.Name,
				Details: fmt.Sprintf("offset %d, size %d", t.Offset, t.Size)}
		case t.Offset > dataSize || t.Size > dataSize-t.Offset:
			return &ValidationError{Err: ErrOutOfBounds, Tensor: t.Name,
				Details: fmt.Sprintf("offset %d, size %d past data section of %d bytes", t.Offset, t.Size, dataSize)}
		case prev != nil && prev.Offset+prev.Size > t.Offset:
			return &ValidationError{Err: ErrOffsetOverlap, Tensor: prev.Name, Tensor2: t.Name,
				Details: fmt.Sprintf("[%d, %d) and [%d, %d)", prev.Offset, prev.Offset+prev.Size, t.Offset, t.Offset+t.Size)}
		}
		prev = t
	}
	return nil
}

func tooMany(n int) error {
	return &ValidationError{Err: ErrTooManyTensors, Details: fmt.Sprintf("%d tensors, limit %d", n, MaxTensorCount)}
}

// ValidateTensorName rejects empty, oversized and path-like names.
func ValidateTensorName(name string) error {
	invalid := func(details string) error {
		return &ValidationError{Err: ErrInvalidTensorName, Tensor: name, Details: details}
	}
	switch {
	case name == "":
		return invalid("empty name")
	case len(name) > MaxTensorNameLen:
		return invalid(fmt.Sprintf("length %d > max %d", len(name), MaxTensorNameLen))
	case strings.Contains(name, ".."):
		return invalid("contains '..'")
	case strings.ContainsAny(name, `/\`):
		return invalid("contains path separator")
	case strings.Contains(name, "\x00"):
		return invalid("contains null byte")
	}
	return nil
}

// ValidateHeader checks tensor names, dtypes, shapes and offsets against
// the data section size.
func ValidateHeader(h *Header, dataSize int64) error {
	if h.FormatVersion != FormatVersion {
		return fmt.Errorf("%w: %d", ErrUnsupportedVersion, h.FormatVersion)
	}
	if len(h.Tensors) > MaxTensorCount {
		return tooMany(len(h.Tensors))
	}

	seen := make(map[string]struct{}, len(h.Tensors))
	for _, t := range h.Tensors {
		if err := ValidateTensorName(t.Name); err != nil {
			return err
		}
		if _, dup := seen[t.Name]; dup {
			return &ValidationError{Err: ErrInvalidTensorName, Tensor: t.Name, Details: "duplicate name"}
		}
		seen[t.Name] = struct{}{}

		if t.DType != DTypeFloat64 {
			return &ValidationError{Err: ErrInvalidTensor, Tensor: t.Name, Details: fmt.Sprintf("unsupported dtype %q", t.DType)}
		}
		shape := tensor.Shape(t.Shape)
		if err := shape.Validate(); err != nil {
			return &ValidationError{Err: ErrInvalidTensor, Tensor: t.Name, Details: err.Error()}
		}
		elements, ok := elementsWithin(shape, dataSize/8)
		if !ok {
			return &ValidationError{Err: ErrOutOfBounds, Tensor: t.Name,
				Details: fmt.Sprintf("shape %v does not fit a data section of %d bytes", shape, dataSize)}
		}
		if want := 8 * elements; want != t.Size {
			return &ValidationError{
				Err:     ErrInvalidTensor,
				Tensor:  t.Name,
				Details: fmt.Sprintf("size %d does not match shape %v (%d bytes)", t.Size, shape, want),
			}
		}
	}

	return ValidateTensorOffsets(h.Tensors, dataSize)
}

// elementsWithin multiplies the dimensions of s, giving up as soon as the
// product passes limit. Dimensions must be positive.
func elementsWithin(s tensor.Shape, limit int64) (int64, bool) {
	n := int64(1)
	for _, dim := range s {
		if int64(dim) > limit/n {
			return 0, false
		}
		n *= int64(dim)
	}
	return n, true
}
