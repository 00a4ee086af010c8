package lyrics

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"lyricsync/internal/library"
	"lyricsync/internal/player"
	"lyricsync/pkg/musiccache"
)

const sampleLRC = "[00:01.00]one\n[00:02.00]two\n"

type fakeModel struct {
	reply string
	err   error
	calls int
}

func (m *fakeModel) Name() string { return "fake" }

func (m *fakeModel) HandleText(ctx context.Context, msg string) (string, error) {
	m.calls++
	return m.reply, m.err
}

type fakeRemote struct {
	lyrics string
	err    error
	calls  int
	length time.Duration
}

func (r *fakeRemote) GetLyricsByInfo(ctx context.Context, title, artist string, length time.Duration) (string, error) {
	r.calls++
	r.length = length
	return r.lyrics, r.err
}

type fakeKV struct {
	m       map[string]string
	deleted []string
}

func newFakeKV() *fakeKV { return &fakeKV{m: map[string]string{}} }

func (k *fakeKV) Get(ctx context.Context, key string) (string, error) { return k.m[key], nil }

func (k *fakeKV) SetWithExpiration(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	k.m[key] = value.(string)
	return nil
}

func (k *fakeKV) Del(ctx context.Context, keys ...string) (int64, error) {
	for _, key := range keys {
		delete(k.m, key)
		k.deleted = append(k.deleted, key)
	}
	return int64(len(keys)), nil
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestProviderSiblingFile(t *testing.T) {
	dir := t.TempDir()
	music := filepath.Join(dir, "a song.mp3")
	writeFile(t, music, "x")
	writeFile(t, filepath.Join(dir, "a song.lrc"), sampleLRC)

	remote := &fakeRemote{}
	p := NewProvider(Options{CacheDir: t.TempDir(), Remote: remote})

	c, err := p.Load(context.Background(), player.Song{URL: "file://" + music, Length: 10000})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	lines := c.Lines()
	if len(lines) != 2 || lines[1].End != 10000 {
		t.Errorf("lines = %+v", lines)
	}
	if remote.calls != 0 {
		t.Error("remote should not be queried for local files")
	}
}

func TestProviderLibrary(t *testing.T) {
	dir := t.TempDir()
	lrc := filepath.Join(dir, "lib.lrc")
	writeFile(t, lrc, sampleLRC)
	idx := library.NewIndex([]library.Track{{LyricPath: lrc, Artist: "A", Title: "T"}})

	p := NewProvider(Options{CacheDir: t.TempDir(), Library: idx})
	c, err := p.Load(context.Background(), player.Song{Artist: "a", Title: "t"})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Len() != 2 {
		t.Errorf("Len = %d", c.Len())
	}
}

func TestProviderRemoteThenCache(t *testing.T) {
	cacheDir := t.TempDir()
	remote := &fakeRemote{lyrics: sampleLRC}
	kv := newFakeKV()
	p := NewProvider(Options{CacheDir: cacheDir, Remote: remote, Redis: kv, RedisTTL: time.Hour})
	song := player.Song{Artist: "Artist", Title: "Title/Mix", Length: 180000}

	if _, err := p.Load(context.Background(), song); err != nil {
		t.Fatalf("first Load: %v", err)
	}
	if remote.length != 3*time.Minute {
		t.Errorf("length passed to remote = %v", remote.length)
	}
	if _, err := os.Stat(filepath.Join(cacheDir, "Title-Mix-Artist.lrc")); err != nil {
		t.Errorf("cache file missing: %v", err)
	}
	if kv.m[redisKeyPrefix+"Title-Mix-Artist.lrc"] != sampleLRC {
		t.Error("redis entry missing")
	}

	if _, err := p.Load(context.Background(), song); err != nil {
		t.Fatalf("second Load: %v", err)
	}
	if remote.calls != 1 {
		t.Errorf("remote calls = %d, want 1", remote.calls)
	}
}

func TestProviderFileCacheWithoutRedis(t *testing.T) {
	cacheDir := t.TempDir()
	writeFile(t, filepath.Join(cacheDir, "T-A.lrc"), sampleLRC)
	remote := &fakeRemote{err: errors.New("offline")}

	p := NewProvider(Options{CacheDir: cacheDir, Remote: remote})
	if _, err := p.Load(context.Background(), player.Song{Artist: "A", Title: "T"}); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if remote.calls != 0 {
		t.Errorf("remote calls = %d", remote.calls)
	}
}

func TestProviderDropsBadRedisEntry(t *testing.T) {
	kv := newFakeKV()
	kv.m[redisKeyPrefix+"T-A.lrc"] = "plain text, no tags"
	remote := &fakeRemote{lyrics: sampleLRC}

	p := NewProvider(Options{CacheDir: t.TempDir(), Remote: remote, Redis: kv})
	if _, err := p.Load(context.Background(), player.Song{Artist: "A", Title: "T"}); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(kv.deleted) != 1 {
		t.Errorf("deleted = %v", kv.deleted)
	}
	if remote.calls != 1 {
		t.Errorf("remote calls = %d", remote.calls)
	}
}

func TestProviderErrors(t *testing.T) {
	t.Run("RemoteFails", func(t *testing.T) {
		p := NewProvider(Options{CacheDir: t.TempDir(), Remote: &fakeRemote{err: errors.New("boom")}})
		_, err := p.Load(context.Background(), player.Song{Artist: "A", Title: "T"})
		if !errors.Is(err, ErrNoLyrics) {
			t.Errorf("err = %v, want ErrNoLyrics", err)
		}
	})

	t.Run("UntimedLyrics", func(t *testing.T) {
		cacheDir := t.TempDir()
		p := NewProvider(Options{CacheDir: cacheDir, Remote: &fakeRemote{lyrics: "just words"}})
		_, err := p.Load(context.Background(), player.Song{Artist: "A", Title: "T"})
		if !errors.Is(err, ErrNoLyrics) {
			t.Errorf("err = %v, want ErrNoLyrics", err)
		}
		if _, err := os.Stat(filepath.Join(cacheDir, "T-A.lrc")); err == nil {
			t.Error("untimed lyrics should not be cached")
		}
	})

	t.Run("NoRemote", func(t *testing.T) {
		p := NewProvider(Options{CacheDir: t.TempDir()})
		if _, err := p.Load(context.Background(), player.Song{Artist: "A", Title: "T"}); !errors.Is(err, ErrNoLyrics) {
			t.Errorf("err = %v", err)
		}
	})
}

func TestProviderModelResolution(t *testing.T) {
	titles, err := musiccache.Open(filepath.Join(t.TempDir(), "music.cache"))
	if err != nil {
		t.Fatal(err)
	}
	model := &fakeModel{reply: "```json\n{\"is_song\": true, \"title\": \"稻香\", \"artist\": \"周杰伦\"}\n```"}
	remote := &fakeRemote{lyrics: sampleLRC}
	p := NewProvider(Options{CacheDir: t.TempDir(), Model: model, Titles: titles, Remote: remote})
	song := player.Song{Title: "周杰伦 稻香 官方MV"}

	for i := 0; i < 2; i++ {
		if _, err := p.Load(context.Background(), song); err != nil {
			t.Fatalf("Load: %v", err)
		}
	}
	if model.calls != 1 {
		t.Errorf("model calls = %d, want 1", model.calls)
	}
	if _, ok := titles.Get(song.Identifier()); !ok {
		t.Error("resolution not memoised")
	}
}

func TestProviderNotASong(t *testing.T) {
	model := &fakeModel{reply: `{"is_song": false}`}
	remote := &fakeRemote{lyrics: sampleLRC}
	p := NewProvider(Options{CacheDir: t.TempDir(), Model: model, Remote: remote})

	_, err := p.Load(context.Background(), player.Song{Title: "Podcast episode 12"})
	if !errors.Is(err, ErrNotASong) {
		t.Errorf("err = %v, want ErrNotASong", err)
	}
	if remote.calls != 0 {
		t.Error("remote queried for a non-song")
	}
}

func TestParseSongInfo(t *testing.T) {
	info, err := parseSongInfo(" {\"is_song\":true,\"title\":\"x\",\"artist\":\"y\"} ")
	if err != nil || info.Title != "x" || info.Artist != "y" || !info.IsSong {
		t.Errorf("got %+v, %v", info, err)
	}
	if _, err := parseSongInfo("not json"); err == nil {
		t.Error("expected error")
	}
}

func TestSanitizeFilename(t *testing.T) {
	if got := sanitizeFilename(`a/b:c*d?"e<f>g|h\i`); got != "a-b-c-d--e-f-g-h-i" {
		t.Errorf("got %q", got)
	}
}
