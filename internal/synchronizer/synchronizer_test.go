package synchronizer

import (
	"context"
	"testing"
	"time"

	"lyricsync/internal/lyrics"
)

var (
	lineA = lyrics.Line{Start: 0, End: 1000, Text: "one"}
	lineB = lyrics.Line{Start: 1200, End: 2300, Text: "two"}
)

// fakeSource is a TimeSource driven by the test.
type fakeSource struct {
	c       chan int64
	started int
}

func newFakeSource() *fakeSource {
	return &fakeSource{c: make(chan int64)}
}

func (f *fakeSource) Positions() <-chan int64 { return f.c }
func (f *fakeSource) Start(ctx context.Context) { f.started++ }

func mustCatalog(t *testing.T, lines ...lyrics.Line) *lyrics.Catalog {
	t.Helper()
	c, err := lyrics.NewCatalog(lines)
	if err != nil {
		t.Fatalf("NewCatalog: %v", err)
	}
	return c
}

func assertState(t *testing.T, got State, line lyrics.Line, active bool, trigger *int64) {
	t.Helper()
	if got.Line != line {
		t.Errorf("Line = %+v, want %+v", got.Line, line)
	}
	if got.Active != active {
		t.Errorf("Active = %v, want %v", got.Active, active)
	}
	gotT, gotOK := got.Trigger()
	switch {
	case trigger == nil && gotOK:
		t.Errorf("TriggerTime = %d, want none", gotT)
	case trigger != nil && !gotOK:
		t.Errorf("TriggerTime = none, want %d", *trigger)
	case trigger != nil && gotT != *trigger:
		t.Errorf("TriggerTime = %d, want %d", gotT, *trigger)
	}
}

func ms(v int64) *int64 { return &v }

func TestInitialState(t *testing.T) {
	s := New(mustCatalog(t, lineA), newFakeSource())
	assertState(t, s.State(), lyrics.Line{}, false, nil)
}

func TestScenario(t *testing.T) {
	s := New(mustCatalog(t, lineA, lineB), newFakeSource())

	assertState(t, s.Step(0), lineA, true, ms(0))
	assertState(t, s.Step(500), lineA, true, ms(0))
	assertState(t, s.Step(1000), lineA, false, nil)
	assertState(t, s.Step(1200), lineB, true, ms(1200))
	assertState(t, s.Step(2300), lineB, false, nil)
}

func TestBackwardSeek(t *testing.T) {
	s := New(mustCatalog(t, lineA, lineB), newFakeSource())

	s.Step(0)
	s.Step(1200)
	assertState(t, s.Step(100), lineA, true, ms(100))
	assertState(t, s.Step(150), lineA, true, ms(100))
}

func TestHalfOpenInterval(t *testing.T) {
	s := New(mustCatalog(t, lineA), newFakeSource())

	assertState(t, s.Step(999), lineA, true, ms(999))
	assertState(t, s.Step(1000), lineA, false, nil)
}

func TestAdjacentLinesTransitionAtBoundary(t *testing.T) {
	next := lyrics.Line{Start: 1000, End: 2000, Text: "next"}
	s := New(mustCatalog(t, lineA, next), newFakeSource())

	s.Step(10)
	assertState(t, s.Step(1000), next, true, ms(1000))
}

func TestSingleTransitionPerActivation(t *testing.T) {
	s := New(mustCatalog(t, lineA), newFakeSource())

	changes := 0
	var last *int64
	for tick := int64(0); tick < 1000; tick += 50 {
		st := s.Step(tick)
		if st.TriggerTime != last {
			changes++
			last = st.TriggerTime
		}
		if at, _ := st.Trigger(); at != 0 {
			t.Fatalf("tick %d: TriggerTime = %d, want 0", tick, at)
		}
	}
	if changes != 1 {
		t.Errorf("TriggerTime changed %d times, want 1", changes)
	}
}

func TestReentryAfterGapRetriggers(t *testing.T) {
	s := New(mustCatalog(t, lineA, lineB), newFakeSource())

	assertState(t, s.Step(100), lineA, true, ms(100))
	assertState(t, s.Step(1100), lineA, false, nil)
	assertState(t, s.Step(200), lineA, true, ms(200))
}

func TestRepeatedTimestamp(t *testing.T) {
	s := New(mustCatalog(t, lineA), newFakeSource())

	s.Step(300)
	assertState(t, s.Step(300), lineA, true, ms(300))
}

func TestOverlapLatestStartWins(t *testing.T) {
	a := lyrics.Line{Start: 0, End: 1000, Text: "A"}
	b := lyrics.Line{Start: 500, End: 1500, Text: "B"}
	s := New(mustCatalog(t, a, b), newFakeSource())

	assertState(t, s.Step(700), b, true, ms(700))
	assertState(t, s.Step(300), a, true, ms(300))
	assertState(t, s.Step(1200), b, true, ms(1200))
}

func TestEmptyCatalog(t *testing.T) {
	for _, c := range []*lyrics.Catalog{nil, lyrics.Empty(), mustCatalog(t)} {
		s := New(c, newFakeSource())
		for _, tick := range []int64{0, 1, 1000, 999999} {
			assertState(t, s.Step(tick), lyrics.Line{}, false, nil)
		}
	}
}

func TestBeforeFirstLine(t *testing.T) {
	late := lyrics.Line{Start: 5000, End: 6000, Text: "late"}
	s := New(mustCatalog(t, late), newFakeSource())

	assertState(t, s.Step(0), lyrics.Line{}, false, nil)
	assertState(t, s.Step(5000), late, true, ms(5000))
}

func TestInstrumentalMarkerIsALine(t *testing.T) {
	intro := lyrics.Line{Start: 0, End: 800, Text: ""}
	verse := lyrics.Line{Start: 800, End: 2000, Text: "verse"}
	s := New(mustCatalog(t, intro, verse), newFakeSource())

	assertState(t, s.Step(0), intro, true, ms(0))
	assertState(t, s.Step(900), verse, true, ms(900))
}

func TestRunConsumesSource(t *testing.T) {
	src := newFakeSource()
	s := New(mustCatalog(t, lineA, lineB), src)
	sub := s.Subscribe()
	<-sub.C // initial state

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	s.PlayMusic(ctx)
	if src.started != 1 {
		t.Errorf("source started %d times, want 1", src.started)
	}

	src.c <- 1300
	select {
	case st := <-sub.C:
		assertState(t, st, lineB, true, ms(1300))
	case <-time.After(time.Second):
		t.Fatal("Timeout waiting for state")
	}

	close(src.c)
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned %v, want nil on source close", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not return after source closed")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	s := New(mustCatalog(t, lineA), newFakeSource())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		if err != context.Canceled {
			t.Errorf("Run returned %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}

func TestLateSubscriberSeesLatest(t *testing.T) {
	s := New(mustCatalog(t, lineA, lineB), newFakeSource())
	s.Step(0)
	s.Step(1250)

	sub := s.Subscribe()
	defer s.Unsubscribe(sub)

	st := <-sub.C
	assertState(t, st, lineB, true, ms(1250))
	select {
	case extra := <-sub.C:
		t.Errorf("unexpected backlog state %+v", extra)
	default:
	}
}

func TestCloseEndsSubscriptions(t *testing.T) {
	s := New(mustCatalog(t, lineA), newFakeSource())
	sub := s.Subscribe()
	<-sub.C
	s.Close()
	if _, ok := <-sub.C; ok {
		t.Error("subscription open after Close")
	}
}

func TestStateEqual(t *testing.T) {
	s := New(mustCatalog(t, lineA), newFakeSource())
	first := s.Step(0)
	second := s.Step(100)
	if !first.Equal(second) {
		t.Errorf("continuation changed state: %+v vs %+v", first, second)
	}
	if first.Equal(State{Line: lineA, Active: true, TriggerTime: ms(50)}) {
		t.Error("different trigger compared equal")
	}
	if !(State{}).Equal(State{}) {
		t.Error("zero states differ")
	}
}
