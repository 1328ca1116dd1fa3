package animation

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/banshee-data/trackreview/internal/review"
	"github.com/banshee-data/trackreview/internal/timeutil"
)

const (
	// BaseFPS is the playback rate at speed 1.
	BaseFPS = 30
	// MinSpeed and MaxSpeed bound the playback multiplier.
	MinSpeed = 0.1
	MaxSpeed = 10.0
)

// State is the playback state of a Player.
type State int

const (
	Stopped State = iota
	Playing
	Paused
)

func (s State) String() string {
	switch s {
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	default:
		return "stopped"
	}
}

// Player moves a frame index over [0, total). It never touches frame data;
// callers map the index to a timestamp and filter themselves.
type Player struct {
	mu     sync.Mutex
	clock  timeutil.Clock
	total  int
	index  int
	speed  float64
	state  State
	halt   chan struct{}
	ticker timeutil.Ticker
}

// NewPlayer returns a stopped player at frame 0. A nil clock uses the
// real clock.
func NewPlayer(total int, clock timeutil.Clock) *Player {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	if total < 0 {
		total = 0
	}
	return &Player{clock: clock, total: total, speed: 1}
}

// Index returns the current frame.
func (p *Player) Index() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.index
}

// Total returns the frame count.
func (p *Player) Total() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.total
}

// State returns the playback state.
func (p *Player) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// SetTotal changes the frame count, e.g. after a selection change, and
// clamps the current index into range. An empty timeline stops playback.
func (p *Player) SetTotal(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if n < 0 {
		n = 0
	}
	p.total = n
	if n == 0 {
		p.haltLocked()
		p.state = Stopped
	}
	p.index = clamp(p.index, 0, max(n-1, 0))
}

// Seek moves to frame i, clamped to the timeline.
func (p *Player) Seek(i int) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.index = clamp(i, 0, max(p.total-1, 0))
	return p.index
}

// Step moves by delta frames, clamped to the timeline.
func (p *Player) Step(delta int) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.index = clamp(p.index+delta, 0, max(p.total-1, 0))
	return p.index
}

// Speed returns the playback multiplier.
func (p *Player) Speed() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.speed
}

// SetSpeed sets the playback multiplier, clamped to [MinSpeed, MaxSpeed].
// A running ticker picks up the new interval immediately.
func (p *Player) SetSpeed(s float64) error {
	if !(s > 0) || math.IsInf(s, 0) {
		return fmt.Errorf("speed must be positive, got %v", s)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.speed = math.Max(MinSpeed, math.Min(MaxSpeed, s))
	if p.ticker != nil {
		p.ticker.Reset(intervalFor(p.speed))
	}
	return nil
}

// Interval returns the time between frames at the current speed.
func (p *Player) Interval() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return intervalFor(p.speed)
}

func intervalFor(speed float64) time.Duration {
	return time.Duration(float64(time.Second) / (BaseFPS * speed))
}

// Stop halts playback and rewinds to frame 0.
func (p *Player) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.haltLocked()
	p.state = Stopped
	p.index = 0
}

// Pause halts playback and keeps the current frame.
func (p *Player) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != Playing {
		return
	}
	p.haltLocked()
	p.state = Paused
}

func (p *Player) haltLocked() {
	if p.halt != nil {
		close(p.halt)
		p.halt = nil
	}
	if p.ticker != nil {
		p.ticker.Stop()
		p.ticker = nil
	}
}

// Play advances one frame per tick, wrapping to frame 0 after the last,
// and emits each new index on the returned channel. The channel closes when
// playback is paused, stopped, restarted or ctx ends. With no frames the
// channel is already closed.
func (p *Player) Play(ctx context.Context) <-chan int {
	out := make(chan int)
	p.mu.Lock()
	p.haltLocked()
	if p.total == 0 {
		p.state = Stopped
		p.mu.Unlock()
		close(out)
		return out
	}
	halt := make(chan struct{})
	ticker := p.clock.NewTicker(intervalFor(p.speed))
	p.halt = halt
	p.ticker = ticker
	p.state = Playing
	p.mu.Unlock()

	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				p.mu.Lock()
				if p.halt == halt {
					p.haltLocked()
					p.state = Paused
				}
				p.mu.Unlock()
				return
			case <-halt:
				return
			case <-ticker.C():
				p.mu.Lock()
				if p.halt != halt || p.total == 0 {
					p.mu.Unlock()
					return
				}
				p.index = (p.index + 1) % p.total
				i := p.index
				p.mu.Unlock()
				review.Tracef("animation: frame %d", i)

				select {
				case out <- i:
				case <-halt:
					return
				case <-ctx.Done():
				}
			}
		}
	}()
	return out
}
