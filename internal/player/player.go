package player

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

var ErrNoPlayer = errors.New("no music playing")

// metadataFormat keeps fields tab separated so titles with " - " survive.
const metadataFormat = "{{artist}}\t{{title}}\t{{album}}\t{{xesam:url}}\t{{mpris:length}}"

// Song is what the media player reports about the current track.
type Song struct {
	Artist string
	Title  string
	Album  string
	URL    string
	Length int64 // ms, 0 when unknown
}

// Identifier is the "artist - title" key used for change detection and
// lookups.
func (s Song) Identifier() string {
	switch {
	case s.Artist == "":
		return s.Title
	case s.Title == "":
		return s.Artist
	}
	return s.Artist + " - " + s.Title
}

type commandFunc func(ctx context.Context, args ...string) ([]byte, error)

func playerctl(ctx context.Context, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, "playerctl", args...).Output()
}

// Detector reports the song the MPRIS player is on.
type Detector struct {
	run commandFunc
}

func NewDetector() *Detector {
	return &Detector{run: playerctl}
}

func (d *Detector) Current(ctx context.Context) (Song, error) {
	out, err := d.run(ctx, "metadata", "--format", metadataFormat)
	if err != nil {
		return Song{}, fmt.Errorf("%w: %v", ErrNoPlayer, err)
	}
	return parseMetadata(string(out))
}

func parseMetadata(out string) (Song, error) {
	fields := strings.Split(strings.TrimRight(out, "\r\n"), "\t")
	for len(fields) < 5 {
		fields = append(fields, "")
	}
	song := Song{
		Artist: strings.TrimSpace(fields[0]),
		Title:  strings.TrimSpace(fields[1]),
		Album:  strings.TrimSpace(fields[2]),
		URL:    strings.TrimSpace(fields[3]),
	}
	if us, err := strconv.ParseInt(strings.TrimSpace(fields[4]), 10, 64); err == nil && us > 0 {
		song.Length = us / 1000
	}
	if song.Identifier() == "" {
		return Song{}, ErrNoPlayer
	}
	return song, nil
}

// parsePosition converts `playerctl position` output (seconds) to ms.
func parsePosition(out string) (int64, error) {
	seconds, err := strconv.ParseFloat(strings.TrimSpace(out), 64)
	if err != nil {
		return 0, fmt.Errorf("parse position %q: %w", out, err)
	}
	return int64(seconds * 1000), nil
}
