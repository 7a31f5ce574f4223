package train

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// Phase names a training phase.
type Phase string

// Training phases.
const (
	PhaseUnsupervised Phase = "unsupervised"
	PhaseSupervised   Phase = "supervised"
)

// State is the early-stopping bookkeeping of one phase.
type State struct {
	GlobalEpoch    int
	BestAccuracy   float64
	BestEpoch      int
	BestCheckpoint string
	Degradation    int
	Evaluations    int
}

// Reset clears the state at the start of a phase.
func (s *State) Reset() {
	*s = State{}
}

// Observe records one validation accuracy. An accuracy above the best so
// far (or the first one) resets the degradation streak; anything else
// extends it. halt is true once the streak reaches stop.
func (s *State) Observe(accuracy float64, stop int) (improved, halt bool) {
	s.Evaluations++
	if s.Evaluations == 1 || accuracy > s.BestAccuracy {
		s.BestAccuracy = accuracy
		s.Degradation = 0
		return true, false
	}
	s.Degradation++
	return false, s.Degradation >= stop
}

// Record is one line of training history.
type Record struct {
	Phase    Phase
	Layer    string // trained layer, unsupervised only
	Epoch    int
	Cost     float64
	Jacobian float64
	Accuracy float64 // validation accuracy, set on evaluation records
	Eval     bool
	Elapsed  time.Duration
}

// History collects Records in the order they were produced.
type History struct {
	Records []Record
}

// Add appends r.
func (h *History) Add(r Record) {
	h.Records = append(h.Records, r)
}

// Filter returns the records matching keep.
func (h *History) Filter(keep func(Record) bool) []Record {
	var out []Record
	for _, r := range h.Records {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out
}

// Naming builds checkpoint file names from the run's hyperparameters.
type Naming struct {
	Base     string
	Data     string
	LearnC   float64
	LearnF   float64
	Momentum float64
	Kernel   int
	Neuron   int
}

// Extension of checkpoint files.
const Extension = ".born"

// Checkpoint returns the name of the checkpoint taken at epoch.
func (n Naming) Checkpoint(epoch int) string {
	return fmt.Sprintf("%s_learnC%g_learnF%g_momentum%g_kernel%d_neuron%d_epoch%d%s",
		n.Base, n.LearnC, n.LearnF, n.Momentum, n.Kernel, n.Neuron, epoch, Extension)
}

// Final returns the name the best supervised checkpoint is renamed to.
func (n Naming) Final(epoch int, accuracy float64) string {
	data := "data"
	if n.Data != "" {
		data = strings.TrimSuffix(filepath.Base(filepath.Clean(n.Data)), filepath.Ext(n.Data))
	}
	return fmt.Sprintf("%s_FinalOnHoldOut_%s_epoch%d_acc%g%s", n.Base, data, epoch, accuracy, Extension)
}
