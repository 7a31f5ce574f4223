// Package cpu implements the CPU compute kernels used by the layers:
// dense matrix products, valid convolution with its two gradients,
// max pooling and nearest-neighbour upsampling.
//
// Kernels panic on shape misuse; shape validation belongs to layer
// construction.
package cpu

import (
	"github.com/born-ml/saenet/internal/parallel"
)

// CPUBackend runs kernels on the host, splitting per-sample work across
// goroutines according to its parallel configuration.
type CPUBackend struct {
	par parallel.Config
}

// New creates a CPU backend with the default parallel configuration.
func New() *CPUBackend {
	return &CPUBackend{par: parallel.DefaultConfig()}
}

// NewWithConfig creates a CPU backend with an explicit parallel configuration.
func NewWithConfig(cfg parallel.Config) *CPUBackend {
	return &CPUBackend{par: cfg}
}

// Name returns the backend name.
func (cpu *CPUBackend) Name() string {
	return "CPU"
}

// Parallel returns the parallel configuration in use.
func (cpu *CPUBackend) Parallel() parallel.Config {
	return cpu.par
}
