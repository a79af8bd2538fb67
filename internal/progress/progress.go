// Package progress renders load and transfer progress on the terminal, or
// forwards it to the event bus.
package progress

import (
	"fmt"
	"io"
	"math"
	"os"
	"sync"

	"github.com/schollz/progressbar/v3"

	"github.com/cs2interlink/cs2-int/internal/events"
)

// Func receives a progress message and a completion fraction in [0, 1].
type Func func(message string, fraction float64)

// Tee returns a Func calling every non-nil fn in order.
func Tee(fns ...Func) Func {
	return func(message string, fraction float64) {
		for _, fn := range fns {
			if fn != nil {
				fn(message, fraction)
			}
		}
	}
}

// Bus returns a Func publishing ProgressEvents for operation.
func Bus(bus *events.EventBus, operation string) Func {
	return func(message string, fraction float64) {
		bus.PublishProgress(operation, message, fraction)
	}
}

// Bar shows a batch transfer as a counted progress bar. Off a terminal it
// prints one line per update instead.
type Bar struct {
	mu       sync.Mutex
	bar      *progressbar.ProgressBar
	w        io.Writer
	total    int
	terminal bool
	last     string
}

// NewBar creates a bar for total items written to w.
func NewBar(w io.Writer, total int, description string) *Bar {
	b := &Bar{w: w, total: total}
	if f, ok := w.(*os.File); ok && IsTerminal(f) {
		EnableANSI(f)
		b.terminal = true
		b.bar = progressbar.NewOptions(total,
			progressbar.OptionSetDescription(description),
			progressbar.OptionSetWriter(w),
			progressbar.OptionSetWidth(40),
			progressbar.OptionShowCount(),
			progressbar.OptionSetPredictTime(true),
			progressbar.OptionThrottle(100),
			progressbar.OptionOnCompletion(func() {
				fmt.Fprint(w, "\n")
			}),
			progressbar.OptionSetRenderBlankState(true),
		)
		return b
	}
	fmt.Fprintln(w, description)
	return b
}

// Update implements Func.
func (b *Bar) Update(message string, fraction float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.terminal {
		if message != b.last {
			fmt.Fprintln(b.w, message)
			b.last = message
		}
		return
	}
	b.bar.Describe(message)
	_ = b.bar.Set(int(math.Round(fraction * float64(b.total))))
}

// Finish completes the bar.
func (b *Bar) Finish() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.terminal {
		_ = b.bar.Finish()
	}
}

// Abort leaves the bar where it stopped and prints err below it.
func (b *Bar) Abort(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.terminal {
		_ = b.bar.Exit()
		fmt.Fprint(b.w, "\n")
	}
	if err != nil {
		fmt.Fprintf(b.w, "Error: %v\n", err)
	}
}
