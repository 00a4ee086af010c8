// Package library scans a local music directory for tracks that ship with a
// same-name .lrc file.
package library

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/bogem/id3v2"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

var musicExtensions = map[string]bool{
	".mp3":  true,
	".flac": true,
	".wav":  true,
	".ogg":  true,
}

const lyricExtension = ".lrc"

// Track is a music file and its lyric file, if any.
type Track struct {
	MusicPath string
	LyricPath string // empty when there is no matching .lrc
	Artist    string
	Title     string
}

// LyricPathFor returns the sibling .lrc of musicPath when it exists.
func LyricPathFor(musicPath string) (string, bool) {
	p := strings.TrimSuffix(musicPath, filepath.Ext(musicPath)) + lyricExtension
	info, err := os.Stat(p)
	if err != nil || !info.Mode().IsRegular() {
		return "", false
	}
	return p, true
}

// Scan lists music files directly inside dir (not recursive), pairs each
// with its .lrc and reads artist/title from ID3 tags, falling back to an
// "Artist - Title" file name.
func Scan(ctx context.Context, dir string) ([]Track, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", dir, err)
	}

	var (
		mu     sync.Mutex
		tracks []Track
	)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(8)

	for _, e := range entries {
		name := e.Name()
		if !e.Type().IsRegular() || strings.TrimSpace(name) == "" {
			continue
		}
		if !musicExtensions[strings.ToLower(filepath.Ext(name))] {
			continue
		}

		path := filepath.Join(dir, name)
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			t := readTrack(path)
			mu.Lock()
			tracks = append(tracks, t)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(tracks, func(i, j int) bool { return tracks[i].MusicPath < tracks[j].MusicPath })
	return tracks, nil
}

func readTrack(path string) Track {
	t := Track{MusicPath: path}
	t.LyricPath, _ = LyricPathFor(path)

	if strings.EqualFold(filepath.Ext(path), ".mp3") {
		tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
		if err != nil {
			log.Debug().Err(err).Str("path", path).Msg("Failed to read ID3 tag")
		} else {
			t.Artist = strings.TrimSpace(tag.Artist())
			t.Title = strings.TrimSpace(tag.Title())
			tag.Close()
		}
	}

	if t.Title == "" {
		base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		if artist, title, ok := strings.Cut(base, " - "); ok {
			t.Artist, t.Title = strings.TrimSpace(artist), strings.TrimSpace(title)
		} else {
			t.Title = base
		}
	}
	return t
}

// Index looks tracks with lyrics up by artist and title.
type Index struct {
	tracks map[string]Track
}

func NewIndex(tracks []Track) *Index {
	idx := &Index{tracks: make(map[string]Track)}
	for _, t := range tracks {
		if t.LyricPath == "" {
			continue
		}
		idx.tracks[key(t.Artist, t.Title)] = t
		if _, ok := idx.tracks[key("", t.Title)]; !ok {
			idx.tracks[key("", t.Title)] = t
		}
	}
	return idx
}

// Lookup matches artist+title first, then title alone.
func (idx *Index) Lookup(artist, title string) (Track, bool) {
	if idx == nil {
		return Track{}, false
	}
	if t, ok := idx.tracks[key(artist, title)]; ok {
		return t, true
	}
	t, ok := idx.tracks[key("", title)]
	return t, ok
}

func (idx *Index) Len() int {
	if idx == nil {
		return 0
	}
	return len(idx.tracks)
}

func key(artist, title string) string {
	return strings.ToLower(strings.TrimSpace(artist)) + "\x00" + strings.ToLower(strings.TrimSpace(title))
}
