// Package synchronizer turns a playback-time stream and a lyric catalog into
// a live "active lyric" state.
package synchronizer

import (
	"context"
	"sync"

	"lyricsync/internal/lyrics"
	"lyricsync/internal/player"
	"lyricsync/pkg/latest"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// State is the per-tick output consumed by renderers.
//
// Line is sticky: when nothing is active it keeps the last line shown so it
// can fade out. TriggerTime is the playback time at which Line became
// active; nil while inactive. It changes only on a genuine transition.
type State struct {
	Line        lyrics.Line `json:"line"`
	Active      bool        `json:"active"`
	TriggerTime *int64      `json:"trigger_time"`
}

// Trigger returns TriggerTime and whether it is set.
func (s State) Trigger() (int64, bool) {
	if s.TriggerTime == nil {
		return 0, false
	}
	return *s.TriggerTime, true
}

// Equal reports whether two states would render the same.
func (s State) Equal(o State) bool {
	if s.Line != o.Line || s.Active != o.Active {
		return false
	}
	a, aok := s.Trigger()
	b, bok := o.Trigger()
	return aok == bok && a == b
}

// Synchronizer resolves the active line for one playback session. Create one
// per song and drop it when the song changes.
type Synchronizer struct {
	catalog *lyrics.Catalog
	source  player.TimeSource
	state   *latest.Value[State]
	logger  zerolog.Logger

	mu         sync.Mutex
	lastActive *lyrics.Line
}

// New creates a Synchronizer over catalog fed by source. A nil catalog is
// treated as empty.
func New(catalog *lyrics.Catalog, source player.TimeSource) *Synchronizer {
	if catalog == nil {
		catalog = lyrics.Empty()
	}
	session := uuid.NewString()
	return &Synchronizer{
		catalog: catalog,
		source:  source,
		state:   latest.New(State{}),
		logger: log.With().
			Str("component", "synchronizer").
			Str("session", session).
			Logger(),
	}
}

// Step resolves t against the catalog, publishes and returns the new state.
// Ticks are serialized; t may move backwards after a seek or loop.
func (s *Synchronizer) Step(t int64) State {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.state.Load()
	line, ok := s.catalog.Find(t)

	var next State
	switch {
	case !ok:
		next = State{Line: prev.Line}
		if s.lastActive != nil {
			s.logger.Debug().Int64("time", t).Msg("No active lyric")
		}
		s.lastActive = nil
	case s.lastActive != nil && *s.lastActive == line:
		next = State{Line: line, Active: true, TriggerTime: prev.TriggerTime}
	default:
		at := t
		next = State{Line: line, Active: true, TriggerTime: &at}
		s.lastActive = &line
		s.logger.Info().
			Int64("time", t).
			Int64("start", line.Start).
			Int64("end", line.End).
			Str("lyric", line.Text).
			Msg("Lyric transition")
	}

	s.state.Store(next)
	return next
}

// Run consumes positions from the source until ctx ends or the source
// closes. It does not start the source; see PlayMusic.
func (s *Synchronizer) Run(ctx context.Context) error {
	s.logger.Info().Int("lines_count", s.catalog.Len()).Msg("Synchronizer started")
	defer s.logger.Info().Msg("Synchronizer stopped")

	positions := s.source.Positions()
	for {
		select {
		case t, ok := <-positions:
			if !ok {
				return nil
			}
			s.Step(t)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// PlayMusic asks the time source to begin emitting.
func (s *Synchronizer) PlayMusic(ctx context.Context) {
	s.source.Start(ctx)
}

// State returns the most recent state.
func (s *Synchronizer) State() State {
	return s.state.Load()
}

// Subscribe returns a subscription primed with the current state.
func (s *Synchronizer) Subscribe() *latest.Subscription[State] {
	return s.state.Subscribe()
}

// Unsubscribe stops delivery to sub and closes its channel.
func (s *Synchronizer) Unsubscribe(sub *latest.Subscription[State]) {
	s.state.Unsubscribe(sub)
}

// Close ends every subscription. The session owner calls it when the song
// changes.
func (s *Synchronizer) Close() {
	s.state.Close()
}
