package player

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestParseMetadata(t *testing.T) {
	song, err := parseMetadata("Jay Chou\t稻香\tMagic\tfile:///music/%E7%A8%BB%E9%A6%99.mp3\t223000000\n")
	if err != nil {
		t.Fatalf("parseMetadata: %v", err)
	}
	if song.Artist != "Jay Chou" || song.Title != "稻香" || song.Album != "Magic" {
		t.Errorf("unexpected song %+v", song)
	}
	if song.Length != 223000 {
		t.Errorf("Length = %d, want 223000", song.Length)
	}
	if got := song.Identifier(); got != "Jay Chou - 稻香" {
		t.Errorf("Identifier = %q", got)
	}
}

func TestParseMetadataMissingFields(t *testing.T) {
	song, err := parseMetadata("\tSome Video Title\n")
	if err != nil {
		t.Fatalf("parseMetadata: %v", err)
	}
	if song.Identifier() != "Some Video Title" {
		t.Errorf("Identifier = %q", song.Identifier())
	}
	if song.Length != 0 {
		t.Errorf("Length = %d, want 0", song.Length)
	}

	if _, err := parseMetadata("\t\t\t\t\n"); !errors.Is(err, ErrNoPlayer) {
		t.Errorf("empty metadata err = %v, want ErrNoPlayer", err)
	}
}

func TestDetectorNoPlayer(t *testing.T) {
	d := &Detector{run: func(ctx context.Context, args ...string) ([]byte, error) {
		return nil, errors.New("No players found")
	}}
	if _, err := d.Current(context.Background()); !errors.Is(err, ErrNoPlayer) {
		t.Errorf("err = %v, want ErrNoPlayer", err)
	}
}

func TestParsePosition(t *testing.T) {
	ms, err := parsePosition("12.345678\n")
	if err != nil {
		t.Fatalf("parsePosition: %v", err)
	}
	if ms != 12345 {
		t.Errorf("ms = %d, want 12345", ms)
	}
	if _, err := parsePosition("nope"); err == nil {
		t.Error("expected error for garbage input")
	}
}

func recv(t *testing.T, c <-chan int64) int64 {
	t.Helper()
	select {
	case v, ok := <-c:
		if !ok {
			t.Fatal("channel closed")
		}
		return v
	case <-time.After(time.Second):
		t.Fatal("Timeout waiting for position")
	}
	return 0
}

func TestClockLoops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := NewClock(time.Millisecond, 50, 150)
	c.Start(ctx)
	c.Start(ctx) // second call is a no-op

	want := []int64{0, 50, 100, 0, 50}
	for i, w := range want {
		if got := recv(t, c.Positions()); got != w {
			t.Errorf("tick %d = %d, want %d", i, got, w)
		}
	}
}

func TestClockClosesOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	c := NewClock(time.Millisecond, 50, 0)
	c.Start(ctx)
	recv(t, c.Positions())
	cancel()

	deadline := time.After(time.Second)
	for {
		select {
		case _, ok := <-c.Positions():
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("Positions not closed after cancel")
		}
	}
}

func TestPlayerctlLookaheadAndSkips(t *testing.T) {
	calls := 0
	p := NewPlayerctl(time.Millisecond, 100*time.Millisecond)
	p.run = func(ctx context.Context, args ...string) ([]byte, error) {
		calls++
		switch calls {
		case 1:
			return nil, errors.New("no player")
		case 2:
			return []byte("-1.0\n"), nil
		default:
			return []byte("1.5\n"), nil
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Start(ctx)

	if got := recv(t, p.Positions()); got != 1600 {
		t.Errorf("first position = %d, want 1600", got)
	}
}
