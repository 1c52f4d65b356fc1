// Package notify turns recorder callbacks into user-facing progress: a
// console status line and optional MQTT state messages.
package notify

import (
	"fmt"
	"math"
	"sync"
)

const GeneratingText = "Generating animation"

// Result describes a finished export.
type Result struct {
	Output string
	Frames int
	Err    error
}

type Notifier interface {
	// Start is called once recording begins.
	Start()
	// Progress receives the export fraction in [0, 1].
	Progress(fraction float64)
	Complete(r Result)
}

// Percent converts an export fraction to a whole percentage in [0, 100].
func Percent(fraction float64) int {
	if math.IsNaN(fraction) {
		return 0
	}
	p := int(math.Round(fraction * 100))
	return min(max(p, 0), 100)
}

// FormatProgress renders the readout for an export fraction.
func FormatProgress(fraction float64) string {
	return fmt.Sprintf("Exporting animation %d%%", Percent(fraction))
}

// Readout tracks what the progress line shows. The percentage never goes
// backwards within one export.
type Readout struct {
	mu      sync.Mutex
	percent int
	started bool
}

// Update records a new fraction and reports whether the shown percentage
// changed.
func (r *Readout) Update(fraction float64) (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := Percent(fraction)
	if r.started && p <= r.percent {
		return r.percent, false
	}
	r.started = true
	r.percent = p
	return p, true
}

func (r *Readout) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started = false
	r.percent = 0
}

func (r *Readout) String() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.started {
		return GeneratingText
	}
	return fmt.Sprintf("Exporting animation %d%%", r.percent)
}

// Multi fans every call out to all notifiers in order.
type Multi []Notifier

func (m Multi) Start() {
	for _, n := range m {
		n.Start()
	}
}

func (m Multi) Progress(fraction float64) {
	for _, n := range m {
		n.Progress(fraction)
	}
}

func (m Multi) Complete(r Result) {
	for _, n := range m {
		n.Complete(r)
	}
}
