package notify

import (
	"io"
	"sync"
	"time"
)

// Tone is a short audio cue.
type Tone struct {
	Frequency int
	Duration  time.Duration
}

// Tones maps each category to its cue.
var Tones = map[Category]Tone{
	Success:   {Frequency: 800, Duration: 200 * time.Millisecond},
	Error:     {Frequency: 400, Duration: 500 * time.Millisecond},
	Warning:   {Frequency: 600, Duration: 300 * time.Millisecond},
	Info:      {Frequency: 1000, Duration: 100 * time.Millisecond},
	Emergency: {Frequency: 300, Duration: 1000 * time.Millisecond},
}

// AudioOutput plays tones.
type AudioOutput interface {
	Play(t Tone) error
}

// Discard is an AudioOutput that plays nothing.
type Discard struct{}

// Play does nothing.
func (Discard) Play(Tone) error { return nil }

// Bell rings the terminal bell. A terminal cannot pitch the bell, so longer
// tones ring more times: once per started half second.
type Bell struct {
	w  io.Writer
	mu sync.Mutex
}

// NewBell returns a Bell writing to w.
func NewBell(w io.Writer) *Bell {
	return &Bell{w: w}
}

// Rings returns how many bell characters t produces.
func Rings(t Tone) int {
	n := int(t.Duration / (500 * time.Millisecond))
	if t.Duration%(500*time.Millisecond) != 0 || n == 0 {
		n++
	}
	return n
}

// Play writes the bell characters for t.
func (b *Bell) Play(t Tone) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	buf := make([]byte, Rings(t))
	for i := range buf {
		buf[i] = '\a'
	}
	_, err := b.w.Write(buf)
	return err
}
