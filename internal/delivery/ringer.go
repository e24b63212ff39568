package delivery

import (
	"context"
	"io"
	"sync"
	"time"
)

// DefaultPattern rings for half a second and pauses for half a second.
var DefaultPattern = []time.Duration{500 * time.Millisecond, 500 * time.Millisecond}

// BellRinger writes the terminal bell on every "on" step of Pattern, repeating
// the pattern until stopped. Pattern alternates on and off durations.
type BellRinger struct {
	Out     io.Writer
	Pattern []time.Duration

	mu sync.Mutex
}

func NewBellRinger(out io.Writer, pattern []time.Duration) *BellRinger {
	if len(pattern) == 0 {
		pattern = DefaultPattern
	}
	return &BellRinger{Out: out, Pattern: pattern}
}

func (b *BellRinger) Play(ctx context.Context) {
	if b.Out == nil || len(b.Pattern) == 0 {
		<-ctx.Done()
		return
	}

	timer := time.NewTimer(0)
	defer timer.Stop()
	<-timer.C

	for step := 0; ; step++ {
		d := b.Pattern[step%len(b.Pattern)]
		if step%2 == 0 {
			b.mu.Lock()
			_, _ = io.WriteString(b.Out, "\a")
			b.mu.Unlock()
		}
		if d <= 0 {
			d = time.Millisecond
		}
		timer.Reset(d)
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
	}
}
