package nn

// Kind tags a layer implementation. It is recorded in checkpoints and used
// by networks to decide which layers they accept.
type Kind string

// Recognised layer kinds.
const (
	KindConvolutional   Kind = "convolutional"
	KindContiguous      Kind = "contiguous"
	KindContractiveAE   Kind = "contractive_autoencoder"
	KindConvolutionalAE Kind = "convolutional_autoencoder"
)

// Known reports whether k is one of the recognised kinds.
func (k Kind) Known() bool {
	switch k {
	case KindConvolutional, KindContiguous, KindContractiveAE, KindConvolutionalAE:
		return true
	}
	return false
}

// IsAutoEncoder reports whether k carries a decode path.
func (k Kind) IsAutoEncoder() bool {
	return k == KindContractiveAE || k == KindConvolutionalAE
}
