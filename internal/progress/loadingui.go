package progress

import (
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

const loadingScale = 1000

// LoadingUI shows inventory and storage unit loading. Off a terminal it
// prints each new message on its own line.
type LoadingUI struct {
	progress *mpb.Progress
	bar      *mpb.Bar
	out      io.Writer
	terminal bool
	message  atomic.Value // string

	mu   sync.Mutex
	last string
	done bool
}

// NewLoadingUI starts a loading display on f.
func NewLoadingUI(f *os.File, title string) *LoadingUI {
	u := &LoadingUI{out: f, terminal: IsTerminal(f)}
	u.message.Store(title)
	if !u.terminal {
		fmt.Fprintln(f, title)
		u.last = title
		return u
	}

	EnableANSI(f)
	u.progress = mpb.New(
		mpb.WithOutput(f),
		mpb.WithRefreshRate(150*time.Millisecond),
		mpb.WithWidth(40),
	)
	u.bar = u.progress.New(loadingScale,
		mpb.BarStyle().Lbound("[").Filler("█").Tip("█").Padding("░").Rbound("]"),
		mpb.PrependDecorators(
			decor.Any(func(decor.Statistics) string {
				return u.message.Load().(string)
			}, decor.WCSyncSpaceR),
		),
		mpb.AppendDecorators(
			decor.Percentage(decor.WCSyncSpace),
			decor.Name("  "),
			decor.Elapsed(decor.ET_STYLE_GO),
		),
		mpb.BarRemoveOnComplete(),
	)
	return u
}

// Update implements Func.
func (u *LoadingUI) Update(message string, fraction float64) {
	u.message.Store(message)
	if !u.terminal {
		u.mu.Lock()
		if message != u.last {
			fmt.Fprintln(u.out, message)
			u.last = message
		}
		u.mu.Unlock()
		return
	}
	u.bar.SetCurrent(int64(min(max(fraction, 0), 1) * loadingScale))
}

// Writer prints above the bar while it is shown.
func (u *LoadingUI) Writer() io.Writer {
	if u.terminal {
		return u.progress
	}
	return u.out
}

// Done removes the bar, or leaves it in place when err is set, and waits
// for the last render. Later calls do nothing.
func (u *LoadingUI) Done(err error) {
	u.mu.Lock()
	if u.done {
		u.mu.Unlock()
		return
	}
	u.done = true
	u.mu.Unlock()

	if !u.terminal {
		return
	}
	if err != nil {
		u.bar.Abort(false)
	} else {
		u.bar.SetTotal(-1, true)
	}
	u.progress.Wait()
}
