package serialization

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/born-ml/saenet/internal/tensor"
)

// File is a decoded .born file.
type File struct {
	header Header
	flags  uint32
	data   []byte
	index  map[string]int
}

// Read decodes a .born stream. The checksum and the tensor layout are
// verified before File is returned. The data section is read
// incrementally, so a data_size larger than the stream fails with an
// error instead of a large allocation.
func Read(r io.Reader) (*File, error) {
	return read(r, -1)
}

// read decodes a stream holding at most limit bytes; limit < 0 means
// unknown.
func read(r io.Reader, limit int64) (*File, error) {
	fixed := make([]byte, FixedHeaderSize)
	if _, err := io.ReadFull(r, fixed); err != nil {
		return nil, fmt.Errorf("failed to read fixed header: %w", err)
	}
	if string(fixed[0:4]) != MagicBytes {
		return nil, fmt.Errorf("%w: got %q, expected %q", ErrInvalidMagic, fixed[0:4], MagicBytes)
	}
	if version := binary.LittleEndian.Uint32(fixed[4:8]); version != FormatVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, version)
	}
	flags := binary.LittleEndian.Uint32(fixed[8:12])
	headerSize := binary.LittleEndian.Uint64(fixed[16:24])
	dataSize := binary.LittleEndian.Uint64(fixed[24:32])
	var recorded Checksum
	copy(recorded[:], fixed[ChecksumOffset:ChecksumOffset+ChecksumSize])

	if headerSize > MaxHeaderSize {
		return nil, ErrHeaderTooLarge
	}
	headerBytes := make([]byte, headerSize)
	if _, err := io.ReadFull(r, headerBytes); err != nil {
		return nil, fmt.Errorf("failed to read header JSON: %w", err)
	}
	f := &File{flags: flags}
	if err := json.Unmarshal(headerBytes, &f.header); err != nil {
		return nil, fmt.Errorf("failed to parse header JSON: %w", err)
	}

	//nolint:gosec // G115: headerSize is bounded by MaxHeaderSize
	offset := dataOffset(int64(headerSize))
	padding := offset - int64(FixedHeaderSize) - int64(headerSize) //nolint:gosec // G115: as above
	if _, err := io.CopyN(io.Discard, r, padding); err != nil {
		return nil, fmt.Errorf("failed to skip padding: %w", err)
	}
	//nolint:gosec // G115: offset is positive and small
	if dataSize > uint64(math.MaxInt64-offset) || (limit >= 0 && int64(dataSize) > limit-offset) {
		return nil, &ValidationError{Err: ErrOutOfBounds, Details: fmt.Sprintf("data_size %d exceeds the stream", dataSize)}
	}
	//nolint:gosec // G115: bounded above
	if err := ValidateHeader(&f.header, int64(dataSize)); err != nil {
		return nil, err
	}
	var want uint64
	for _, t := range f.header.Tensors {
		want += uint64(t.Size) //nolint:gosec // G115: sizes validated non-negative
	}
	if dataSize != want {
		return nil, &ValidationError{Err: ErrOutOfBounds, Details: fmt.Sprintf("data_size %d, tensors need %d", dataSize, want)}
	}

	var data bytes.Buffer
	//nolint:gosec // G115: bounded above
	if _, err := io.CopyN(&data, r, int64(dataSize)); err != nil {
		return nil, fmt.Errorf("failed to read tensor data: %w", err)
	}
	f.data = data.Bytes()
	if err := checksumOf(f.data).verify(recorded); err != nil {
		return nil, err
	}

	f.index = make(map[string]int, len(f.header.Tensors))
	for i, t := range f.header.Tensors {
		f.index[t.Name] = i
	}
	return f, nil
}

// ReadFile opens and decodes the .born file at path.
func ReadFile(path string) (*File, error) {
	//nolint:gosec // G304: loading a user-specified checkpoint is the point
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer fh.Close()
	info, err := fh.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	f, err := read(bufio.NewReader(fh), info.Size())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// Header returns the file header.
func (f *File) Header() Header {
	return f.header
}

// Flags returns the fixed-header flags.
func (f *File) Flags() uint32 {
	return f.flags
}

// TensorNames returns the tensor names in file order.
func (f *File) TensorNames() []string {
	names := make([]string, len(f.header.Tensors))
	for i, t := range f.header.Tensors {
		names[i] = t.Name
	}
	return names
}

// Has reports whether the file holds a tensor called name.
func (f *File) Has(name string) bool {
	_, ok := f.index[name]
	return ok
}

// Tensor decodes the named tensor into a fresh tensor.
func (f *File) Tensor(name string) (*tensor.Tensor, error) {
	i, ok := f.index[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTensorNotFound, name)
	}
	meta := f.header.Tensors[i]
	return tensor.FromBytes(f.data[meta.Offset:meta.Offset+meta.Size], meta.Shape)
}
