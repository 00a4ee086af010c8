package player

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// TimeSource pushes playback positions in milliseconds. Positions is valid
// before Start; it is closed once the context given to Start ends.
type TimeSource interface {
	Positions() <-chan int64
	Start(ctx context.Context)
}

// pump drives a TimeSource from a ticker. next returns false to skip a tick.
type pump struct {
	interval time.Duration
	c        chan int64
	once     sync.Once
}

func (p *pump) Positions() <-chan int64 {
	return p.c
}

func (p *pump) start(ctx context.Context, next func(ctx context.Context) (int64, bool)) {
	p.once.Do(func() {
		go func() {
			defer close(p.c)

			ticker := time.NewTicker(p.interval)
			defer ticker.Stop()

			for {
				if pos, ok := next(ctx); ok {
					select {
					case p.c <- pos:
					case <-ctx.Done():
						return
					}
				}
				select {
				case <-ticker.C:
				case <-ctx.Done():
					return
				}
			}
		}()
	})
}

// Clock is a simulated player: it counts up from zero in fixed steps and
// loops back to zero at Length.
type Clock struct {
	pump
	step   int64
	length int64
	now    int64
}

const (
	DefaultClockInterval = 50 * time.Millisecond
	DefaultClockLength   = int64(22500)
)

// NewClock creates a Clock that advances step ms every interval and loops
// at length ms. length <= 0 never loops.
func NewClock(interval time.Duration, step, length int64) *Clock {
	return &Clock{pump: pump{interval: interval, c: make(chan int64)}, step: step, length: length}
}

// Start begins emitting. Only the first call has an effect.
func (c *Clock) Start(ctx context.Context) {
	c.start(ctx, func(context.Context) (int64, bool) {
		pos := c.now
		c.now += c.step
		if c.length > 0 && c.now >= c.length {
			c.now = 0
		}
		return pos, true
	})
}

// Playerctl polls the MPRIS player position. Lookahead is added to every
// reading so lines show slightly before they are sung.
type Playerctl struct {
	pump
	lookahead time.Duration
	run       commandFunc
}

func NewPlayerctl(interval, lookahead time.Duration) *Playerctl {
	return &Playerctl{pump: pump{interval: interval, c: make(chan int64)}, lookahead: lookahead, run: playerctl}
}

func (p *Playerctl) Start(ctx context.Context) {
	p.start(ctx, p.read)
}

func (p *Playerctl) read(ctx context.Context) (int64, bool) {
	out, err := p.run(ctx, "position")
	if err != nil {
		if ctx.Err() == nil {
			log.Debug().Err(err).Msg("Failed to read player position")
		}
		return 0, false
	}
	ms, err := parsePosition(string(out))
	if err != nil {
		log.Warn().Err(err).Msg("Invalid player time")
		return 0, false
	}
	if ms < 0 {
		log.Warn().Int64("player_time", ms).Msg("Invalid player time")
		return 0, false
	}
	return ms + p.lookahead.Milliseconds(), true
}
