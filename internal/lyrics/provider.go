package lyrics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"lyricsync/internal/library"
	"lyricsync/internal/player"
	"lyricsync/pkg/ai"
	"lyricsync/pkg/fileutil"
	"lyricsync/pkg/music"
	"lyricsync/pkg/musiccache"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	ErrNoLyrics = errors.New("no lyrics found")
	ErrNotASong = errors.New("not a song")
)

const (
	redisKeyPrefix = "lyrics:"
	aiMaxRetries   = 3
)

// KV is the remote cache the provider needs; *redis.Client satisfies it.
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	SetWithExpiration(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Del(ctx context.Context, keys ...string) (int64, error)
}

// Options wires a Provider. Everything except CacheDir is optional.
type Options struct {
	CacheDir string
	Library  *library.Index
	Model    ai.Model
	Titles   *musiccache.Cache
	Remote   music.InfoLookup
	Redis    KV
	RedisTTL time.Duration
}

// SongInfo is what a raw media title resolves to.
type SongInfo struct {
	Title  string `json:"title"`
	Artist string `json:"artist"`
	IsSong bool   `json:"is_song"`
}

// Provider loads a Catalog for the song the player reports. It is the only
// place malformed timing is rejected; synchronizers only see valid catalogs.
type Provider struct {
	opts   Options
	logger zerolog.Logger
}

func NewProvider(opts Options) *Provider {
	return &Provider{
		opts:   opts,
		logger: log.With().Str("component", "lyrics-provider").Logger(),
	}
}

func formatQuerySong(title string) string {
	return fmt.Sprintf(`请精确地按照以下JSON格式提取歌曲信息: {"is_song": true, "title": "歌曲标题", "artist": "演唱者"}。  输入是一个媒体标题，如果标题中包含歌曲信息，请返回符合格式的JSON；否则，返回{"is_song": false}。 请注意，"title" 和 "artist" 必须准确，否则将被视为错误，切记不要任何markdown格式，并将繁体中文转换为简体。 媒体标题是：%s`, title)
}

// Load resolves song to a Catalog: sibling .lrc of a local file, the local
// library, redis, the file cache, then remote providers.
func (p *Provider) Load(ctx context.Context, song player.Song) (*Catalog, error) {
	l := p.logger.With().Str("song", song.Identifier()).Logger()

	if path, ok := localLyricPath(song.URL); ok {
		l.Info().Str("path", path).Msg("Using lyrics next to media file")
		return p.loadFile(path, song.Length)
	}

	info, err := p.resolve(ctx, song)
	if err != nil {
		return nil, err
	}

	if t, ok := p.opts.Library.Lookup(info.Artist, info.Title); ok {
		l.Info().Str("path", t.LyricPath).Msg("Using lyrics from library")
		return p.loadFile(t.LyricPath, song.Length)
	}

	cacheName := sanitizeFilename(info.Title+"-"+info.Artist) + ".lrc"

	if c := p.fromRedis(ctx, cacheName, song.Length); c != nil {
		l.Info().Msg("Redis cache HIT")
		return c, nil
	}

	cachePath := filepath.Join(p.opts.CacheDir, cacheName)
	if raw, err := os.ReadFile(cachePath); err == nil {
		if c, err := BuildCatalog(string(raw), song.Length); err == nil {
			l.Info().Str("path", cachePath).Msg("Cache HIT")
			p.toRedis(ctx, cacheName, string(raw))
			return c, nil
		}
		l.Warn().Str("path", cachePath).Msg("Ignoring unusable cache file")
	}
	l.Info().Msg("Cache MISS, fetching from API")

	if p.opts.Remote == nil {
		return nil, fmt.Errorf("%w for '%s - %s'", ErrNoLyrics, info.Title, info.Artist)
	}
	raw, err := p.opts.Remote.GetLyricsByInfo(ctx, info.Title, info.Artist, time.Duration(song.Length)*time.Millisecond)
	if err != nil {
		return nil, fmt.Errorf("%w for '%s - %s': %v", ErrNoLyrics, info.Title, info.Artist, err)
	}

	c, err := BuildCatalog(raw, song.Length)
	if err != nil {
		return nil, fmt.Errorf("lyrics for '%s - %s': %w", info.Title, info.Artist, err)
	}

	l.Info().Str("path", cachePath).Msg("Saving new lyrics to cache file")
	if err := fileutil.WriteFileAtomic(cachePath, []byte(raw), 0644); err != nil {
		l.Error().Err(err).Msg("Failed to write cache file")
	}
	p.toRedis(ctx, cacheName, raw)
	return c, nil
}

func (p *Provider) loadFile(path string, length int64) (*Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read lyrics %s: %w", path, err)
	}
	c, err := BuildCatalog(string(raw), length)
	if err != nil {
		return nil, fmt.Errorf("lyrics %s: %w", path, err)
	}
	return c, nil
}

// resolve works out title and artist. Player metadata wins; otherwise the
// raw title goes through the LLM, memoised in the title cache.
func (p *Provider) resolve(ctx context.Context, song player.Song) (SongInfo, error) {
	if song.Artist != "" && song.Title != "" {
		return SongInfo{Title: song.Title, Artist: song.Artist, IsSong: true}, nil
	}

	id := song.Identifier()
	if p.opts.Titles != nil {
		if cached, ok := p.opts.Titles.Get(id); ok {
			if info, err := parseSongInfo(cached); err == nil {
				return checkSong(info, id)
			}
		}
	}

	if p.opts.Model == nil {
		return SongInfo{Title: id, IsSong: true}, nil
	}

	var (
		raw string
		err error
	)
	for i := 0; i < aiMaxRetries; i++ {
		raw, err = p.opts.Model.HandleText(ctx, formatQuerySong(id))
		if err == nil {
			break
		}
		p.logger.Warn().Err(err).Int("attempt", i+1).Str("model", p.opts.Model.Name()).Msg("Failed to query model")
		select {
		case <-time.After(time.Second):
		case <-ctx.Done():
			return SongInfo{}, ctx.Err()
		}
	}
	if err != nil {
		return SongInfo{}, fmt.Errorf("failed to query %s after %d attempts: %w", p.opts.Model.Name(), aiMaxRetries, err)
	}

	info, err := parseSongInfo(raw)
	if err != nil {
		return SongInfo{}, err
	}
	p.logger.Info().Str("title", info.Title).Str("artist", info.Artist).Bool("is_song", info.IsSong).Msg("Model resolved title")

	if p.opts.Titles != nil {
		if encoded, err := json.Marshal(info); err == nil {
			if err := p.opts.Titles.Add(id, string(encoded)); err != nil {
				p.logger.Warn().Err(err).Msg("Failed to cache resolved title")
			}
		}
	}
	return checkSong(info, id)
}

func checkSong(info SongInfo, id string) (SongInfo, error) {
	if !info.IsSong || info.Title == "" {
		return SongInfo{}, fmt.Errorf("%w: '%s'", ErrNotASong, id)
	}
	return info, nil
}

func parseSongInfo(raw string) (SongInfo, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")

	var info SongInfo
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &info); err != nil {
		return SongInfo{}, fmt.Errorf("failed to parse model response: %w", err)
	}
	return info, nil
}

func (p *Provider) fromRedis(ctx context.Context, name string, length int64) *Catalog {
	if p.opts.Redis == nil {
		return nil
	}
	raw, err := p.opts.Redis.Get(ctx, redisKeyPrefix+name)
	if err != nil {
		p.logger.Warn().Err(err).Msg("Redis get failed")
		return nil
	}
	if raw == "" {
		return nil
	}
	c, err := BuildCatalog(raw, length)
	if err != nil {
		p.logger.Warn().Err(err).Str("key", redisKeyPrefix+name).Msg("Dropping unusable redis entry")
		if _, err := p.opts.Redis.Del(ctx, redisKeyPrefix+name); err != nil {
			p.logger.Warn().Err(err).Msg("Redis del failed")
		}
		return nil
	}
	return c
}

func (p *Provider) toRedis(ctx context.Context, name, raw string) {
	if p.opts.Redis == nil {
		return
	}
	if err := p.opts.Redis.SetWithExpiration(ctx, redisKeyPrefix+name, raw, p.opts.RedisTTL); err != nil {
		p.logger.Warn().Err(err).Msg("Redis set failed")
	}
}

// localLyricPath maps a file:// media URL to its sibling .lrc.
func localLyricPath(mediaURL string) (string, bool) {
	if !strings.HasPrefix(mediaURL, "file://") {
		return "", false
	}
	u, err := url.Parse(mediaURL)
	if err != nil {
		return "", false
	}
	return library.LyricPathFor(u.Path)
}

var unsafeFilename = regexp.MustCompile(`[\\/:*?"<>|]`)

func sanitizeFilename(name string) string {
	return unsafeFilename.ReplaceAllString(name, "-")
}
