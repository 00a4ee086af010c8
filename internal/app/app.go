package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"lyricsync/internal/config"
	"lyricsync/internal/i3block"
	"lyricsync/internal/ipc"
	"lyricsync/internal/library"
	"lyricsync/internal/lyrics"
	"lyricsync/internal/player"
	"lyricsync/internal/synchronizer"
	"lyricsync/pkg/ai"
	"lyricsync/pkg/ai/gemini"
	"lyricsync/pkg/ai/openai"
	"lyricsync/pkg/music"
	"lyricsync/pkg/musiccache"
	"lyricsync/pkg/redis"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const loadTimeout = 30 * time.Second

type SongDetector interface {
	Current(ctx context.Context) (player.Song, error)
}

type CatalogLoader interface {
	Load(ctx context.Context, song player.Song) (*lyrics.Catalog, error)
}

// Broadcaster receives every state change and status notice.
type Broadcaster interface {
	BroadcastState(st synchronizer.State)
	BroadcastNotice(text string)
}

type Notifier interface {
	Notify() error
}

type App struct {
	cfg       *config.Config
	server    *ipc.Server
	i3        *i3block.Controller
	detector  SongDetector
	loader    CatalogLoader
	out       Broadcaster
	notifier  Notifier
	newSource func() player.TimeSource
	closers   []io.Closer

	mu          sync.Mutex
	currentSong string
	idle        bool
	session     *session
}

// session is the synchronizer bound to one song.
type session struct {
	song    string
	sync    *synchronizer.Synchronizer
	cancel  context.CancelFunc
	runDone chan struct{}
	fwdDone chan struct{}
}

func New(cfg *config.Config) *App {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	a := &App{
		cfg:      cfg,
		server:   ipc.NewServer(cfg.App.SocketPath, cfg.App.StatusFile),
		detector: player.NewDetector(),
		newSource: func() player.TimeSource {
			return player.NewPlayerctl(cfg.App.TickInterval, cfg.App.Lookahead)
		},
	}
	a.out = a.server
	a.loader = lyrics.NewProvider(a.providerOptions())

	if cfg.I3Block.Enabled {
		a.i3 = i3block.NewController(cfg.I3Block.Signal)
		a.notifier = a.i3
	}
	return a
}

func (a *App) providerOptions() lyrics.Options {
	cfg := a.cfg
	opts := lyrics.Options{CacheDir: cfg.App.CacheDir, RedisTTL: cfg.Redis.TTL}

	if manager, err := music.CreateManager(cfg.Lyrics.Providers); err != nil {
		log.Error().Err(err).Msg("No lyrics providers, only local lyrics will be used")
	} else {
		log.Info().Strs("providers", manager.GetProviderNames()).Msg("Lyrics providers")
		opts.Remote = manager
	}

	if model, err := newModel(cfg.AI); err != nil {
		log.Error().Err(err).Msg("Failed to create AI client")
	} else if model != nil {
		opts.Model = model
		if c, ok := model.(io.Closer); ok {
			a.closers = append(a.closers, c)
		}
	}

	if titles, err := musiccache.Open(filepath.Join(cfg.App.CacheDir, "music.cache")); err != nil {
		log.Warn().Err(err).Msg("Title cache unavailable")
	} else {
		opts.Titles = titles
	}

	if cfg.Redis.Enabled {
		client, err := redis.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("Redis unavailable, using file cache only")
		} else {
			opts.Redis = client
			a.closers = append(a.closers, client)
		}
	}

	if cfg.App.MusicDir != "" {
		ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
		tracks, err := library.Scan(ctx, cfg.App.MusicDir)
		cancel()
		if err != nil {
			log.Warn().Err(err).Msg("Failed to scan music library")
		} else {
			opts.Library = library.NewIndex(tracks)
			log.Info().Int("tracks", len(tracks)).Int("with_lyrics", opts.Library.Len()).Msg("Music library scanned")
		}
	}
	return opts
}

// newModel returns nil without an API key. "gemini" selects Gemini; any
// other module name is an OpenAI compatible model name.
func newModel(cfg config.AIConfig) (ai.Model, error) {
	if cfg.APIKey == "" {
		return nil, nil
	}
	if cfg.ModuleName == "gemini" {
		g, err := gemini.NewGemini(context.Background(), cfg.APIKey, "")
		if err != nil {
			return nil, err
		}
		return g, nil
	}
	return openai.NewOpenAi(cfg.APIKey, cfg.ModuleName, cfg.BaseURL), nil
}

// Run serves until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	if err := os.MkdirAll(a.cfg.App.CacheDir, 0755); err != nil {
		return fmt.Errorf("create cache directory %s: %w", a.cfg.App.CacheDir, err)
	}
	log.Info().Str("cache_dir", a.cfg.App.CacheDir).Msg("Lyrics cache directory")

	if err := a.server.Start(); err != nil {
		return fmt.Errorf("start IPC server: %w", err)
	}
	defer a.server.Close()
	defer a.closeAll()

	if a.i3 != nil {
		a.i3.Start(ctx)
	}

	ticker := time.NewTicker(a.cfg.App.CheckInterval)
	defer ticker.Stop()

	log.Info().Msg("Starting player check loop...")
	for {
		a.check(ctx)
		select {
		case <-ticker.C:
		case <-ctx.Done():
			a.stopSession()
			log.Info().Msg("Shutting down")
			return nil
		}
	}
}

func (a *App) closeAll() {
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close client")
		}
	}
}

// check looks at the player once and replaces the session on song change.
func (a *App) check(ctx context.Context) {
	song, err := a.detector.Current(ctx)

	a.mu.Lock()
	defer a.mu.Unlock()

	if err != nil {
		if !a.idle {
			if !errors.Is(err, player.ErrNoPlayer) {
				log.Warn().Err(err).Msg("Failed to read player metadata")
			}
			a.stopSessionLocked()
			a.currentSong = ""
			a.idle = true
			a.out.BroadcastNotice("No music playing...")
		}
		return
	}

	id := song.Identifier()
	if id == a.currentSong {
		return
	}
	log.Info().Msg("-----------------------------------------------------")
	log.Info().Str("song", id).Int64("length_ms", song.Length).Msg("New song detected")

	a.stopSessionLocked()
	a.currentSong = id
	a.idle = false
	a.out.BroadcastNotice(fmt.Sprintf("... Searching for lyrics for %s ...", id))

	loadCtx, cancel := context.WithTimeout(ctx, loadTimeout)
	catalog, err := a.loader.Load(loadCtx, song)
	cancel()
	if err != nil {
		log.Error().Err(err).Str("song", id).Msg("Failed to get lyrics")
		a.out.BroadcastNotice(fmt.Sprintf("Error getting lyrics: %v", err))
		return
	}

	a.session = a.startSession(ctx, id, catalog)
}

func (a *App) startSession(ctx context.Context, song string, catalog *lyrics.Catalog) *session {
	sctx, cancel := context.WithCancel(ctx)
	s := &session{
		song:    song,
		sync:    synchronizer.New(catalog, a.newSource()),
		cancel:  cancel,
		runDone: make(chan struct{}),
		fwdDone: make(chan struct{}),
	}
	sub := s.sync.Subscribe()

	go func() {
		defer close(s.runDone)
		if err := s.sync.Run(sctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Str("song", song).Msg("Synchronizer failed")
		}
	}()
	go func() {
		defer close(s.fwdDone)
		a.forward(sub.C)
	}()
	s.sync.PlayMusic(sctx)
	return s
}

// forward passes distinct states on to clients and the status bar.
func (a *App) forward(states <-chan synchronizer.State) {
	var (
		last  synchronizer.State
		first = true
	)
	for st := range states {
		if !first && st.Equal(last) {
			continue
		}
		first = false
		last = st
		a.out.BroadcastState(st)
		if a.notifier != nil {
			if err := a.notifier.Notify(); err != nil {
				log.Debug().Err(err).Msg("Failed to notify i3blocks")
			}
		}
	}
}

func (a *App) stopSession() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stopSessionLocked()
}

func (a *App) stopSessionLocked() {
	s := a.session
	if s == nil {
		return
	}
	log.Info().Str("song", s.song).Msg("Stopping previous lyric session")
	s.cancel()
	<-s.runDone
	s.sync.Close()
	<-s.fwdDone
	a.session = nil
}
