// Package serialization implements the .born checkpoint container used to
// persist networks.
//
//	Format Structure (v2):
//	  [0x00-0x03: Magic "BORN"]
//	  [0x04-0x07: Version (uint32 LE)]
//	  [0x08-0x0B: Flags (uint32 LE)]
//	  [0x0C-0x0F: Reserved]
//	  [0x10-0x17: Header Size (uint64 LE)]
//	  [0x18-0x1F: Data Size (uint64 LE)]
//	  [0x20-0x3F: SHA-256 of the tensor data]
//	  [Header: JSON metadata]
//	  [Tensor data: little-endian float64, 64-byte aligned]
//
// The container knows nothing about layers: the layer list travels as raw
// JSON in Header.Layers and tensors are stored by name in write order.
//
// Example usage:
//
//	err := serialization.WriteFile("net.born", header, tensors)
//	...
//	f, err := serialization.ReadFile("net.born")
//	w, err := f.Tensor("c1.weights")
package serialization
