package monitor

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

// Display renders the wait between checks. It never affects scheduling.
type Display interface {
	Countdown(left time.Duration, w WindowSnapshot)
	Clear()
}

const countdownWidth = 100

// TerminalDisplay rewrites a single status line in place. It is silent
// when the output is not a terminal.
type TerminalDisplay struct {
	mu      sync.Mutex
	out     io.Writer
	enabled bool
	secs    *color.Color
	quota   *color.Color
}

func NewTerminalDisplay(f *os.File) *TerminalDisplay {
	tty := f != nil && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()))
	return newTerminalDisplay(f, tty)
}

func newTerminalDisplay(out io.Writer, enabled bool) *TerminalDisplay {
	return &TerminalDisplay{
		out:     out,
		enabled: enabled,
		secs:    color.New(color.FgCyan, color.Bold),
		quota:   color.New(color.FgYellow),
	}
}

func (d *TerminalDisplay) Countdown(left time.Duration, w WindowSnapshot) {
	if d == nil || !d.enabled {
		return
	}
	line := countdownLine(left, w, d.secs.Sprint, d.quota.Sprint)
	d.mu.Lock()
	defer d.mu.Unlock()
	_, _ = fmt.Fprint(d.out, "\r"+line)
}

func (d *TerminalDisplay) Clear() {
	if d == nil || !d.enabled {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	_, _ = fmt.Fprint(d.out, "\r"+strings.Repeat(" ", countdownWidth)+"\r")
}

func countdownLine(left time.Duration, w WindowSnapshot, secs, quota func(...any) string) string {
	s := fmt.Sprintf("⏳ Next check in %s | Rate limit: %s requests",
		secs(fmt.Sprintf("%ds", ceilSeconds(left))),
		quota(fmt.Sprintf("%d/%d", w.Count, w.Limit)))
	if w.Remaining > 0 {
		s += fmt.Sprintf(" (resets in %ds)", ceilSeconds(w.Remaining))
	}
	return s
}

func ceilSeconds(d time.Duration) int64 {
	if d <= 0 {
		return 0
	}
	return int64((d + time.Second - 1) / time.Second)
}
