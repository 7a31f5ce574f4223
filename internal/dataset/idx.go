package dataset

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/born-ml/saenet/internal/tensor"
)

// IDX magic numbers.
const (
	idxImagesMagic = 2051
	idxLabelsMagic = 2049
)

// readIDXImages reads images in IDX format.
//
// IDX file format for images:
//
//	magic number: 0x00000803 (2051)
//	number of images: 4 bytes
//	number of rows: 4 bytes
//	number of cols: 4 bytes
//	pixel data: unsigned bytes (0-255)
func readIDXImages(r io.Reader) (images [][]byte, rows, cols int, err error) {
	var header [4]uint32
	if err := binary.Read(r, binary.BigEndian, &header); err != nil {
		return nil, 0, 0, fmt.Errorf("failed to read header: %w", err)
	}
	if header[0] != idxImagesMagic {
		return nil, 0, 0, fmt.Errorf("invalid magic number: got %d, want %d", header[0], idxImagesMagic)
	}
	numImages, numRows, numCols := int(header[1]), int(header[2]), int(header[3])

	images = make([][]byte, numImages)
	for i := range images {
		images[i] = make([]byte, numRows*numCols)
		if _, err := io.ReadFull(r, images[i]); err != nil {
			return nil, 0, 0, fmt.Errorf("failed to read image %d: %w", i, err)
		}
	}
	return images, numRows, numCols, nil
}

// readIDXLabels reads labels in IDX format.
//
// IDX file format for labels:
//
//	magic number: 0x00000801 (2049)
//	number of labels: 4 bytes
//	label data: unsigned bytes
func readIDXLabels(r io.Reader) ([]byte, error) {
	var header [2]uint32
	if err := binary.Read(r, binary.BigEndian, &header); err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	if header[0] != idxLabelsMagic {
		return nil, fmt.Errorf("invalid magic number: got %d, want %d", header[0], idxLabelsMagic)
	}
	labels := make([]byte, header[1])
	if _, err := io.ReadFull(r, labels); err != nil {
		return nil, fmt.Errorf("failed to read labels: %w", err)
	}
	return labels, nil
}

// ReadIDX decodes an IDX image stream and its label stream into
// single-channel samples normalised to [0, 1]. maxSamples <= 0 keeps all.
// Classes are named by their digit and sized by the largest label.
func ReadIDX(images, labels io.Reader, maxSamples int) (*Samples, error) {
	imagesRaw, rows, cols, err := readIDXImages(images)
	if err != nil {
		return nil, fmt.Errorf("failed to load images: %w", err)
	}
	labelsRaw, err := readIDXLabels(labels)
	if err != nil {
		return nil, fmt.Errorf("failed to load labels: %w", err)
	}
	if len(imagesRaw) != len(labelsRaw) {
		return nil, fmt.Errorf("image count (%d) != label count (%d)", len(imagesRaw), len(labelsRaw))
	}

	numSamples := len(imagesRaw)
	if maxSamples > 0 && numSamples > maxSamples {
		numSamples = maxSamples
	}
	s := &Samples{
		Shape:  tensor.Shape{1, rows, cols},
		Data:   make([][]float64, numSamples),
		Labels: make([]int, numSamples),
	}
	maxLabel := 0
	for i := 0; i < numSamples; i++ {
		s.Data[i] = make([]float64, rows*cols)
		for j, px := range imagesRaw[i] {
			s.Data[i][j] = float64(px) / 255.0
		}
		s.Labels[i] = int(labelsRaw[i])
		maxLabel = max(maxLabel, s.Labels[i])
	}
	s.Classes = make([]string, maxLabel+1)
	for i := range s.Classes {
		s.Classes[i] = strconv.Itoa(i)
	}
	return s, s.Validate()
}

// LoadIDX loads the MNIST-style file pair from dir:
// train-images-idx3-ubyte / train-labels-idx1-ubyte, or the t10k files
// when train is false.
func LoadIDX(dir string, train bool, maxSamples int) (*Samples, error) {
	prefix := "t10k"
	if train {
		prefix = "train"
	}
	imageFile := filepath.Join(dir, prefix+"-images-idx3-ubyte")
	labelFile := filepath.Join(dir, prefix+"-labels-idx1-ubyte")

	//nolint:gosec // G304: dataset location comes from the command line
	img, err := os.Open(imageFile)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer img.Close()
	//nolint:gosec // G304: dataset location comes from the command line
	lbl, err := os.Open(labelFile)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer lbl.Close()

	s, err := ReadIDX(bufio.NewReader(img), bufio.NewReader(lbl), maxSamples)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", dir, err)
	}
	return s, nil
}
