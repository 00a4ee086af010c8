package music

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Provider 音乐提供商类型
type Provider string

const (
	ProviderLRCLib  Provider = "lrclib"
	ProviderNetEase Provider = "netease"
)

var errNoProviders = errors.New("no music providers available")

// Manager tries providers in order until one returns lyrics.
type Manager struct {
	providers []MusicAPI
	primary   MusicAPI
	logger    zerolog.Logger
}

func NewManager(providers []MusicAPI) *Manager {
	logger := log.With().Str("component", "music-manager").Logger()
	if len(providers) == 0 {
		logger.Warn().Msg("No music providers configured")
		return &Manager{logger: logger}
	}

	primary := providers[0]
	logger.Info().
		Int("provider_count", len(providers)).
		Str("primary_provider", primary.GetProviderName()).
		Msg("Music API Manager initialized")

	return &Manager{
		providers: providers,
		primary:   primary,
		logger:    logger,
	}
}

// SearchSong returns the first provider's hit.
func (m *Manager) SearchSong(ctx context.Context, title, artist string) (string, error) {
	if len(m.providers) == 0 {
		return "", errNoProviders
	}

	var lastErr error
	for _, provider := range m.providers {
		songID, err := provider.SearchSong(ctx, title, artist)
		if err == nil {
			return songID, nil
		}
		m.logger.Warn().Str("provider", provider.GetProviderName()).Err(err).Msg("Provider search failed")
		lastErr = err
	}
	return "", fmt.Errorf("all providers failed, last error: %w", lastErr)
}

// GetLyrics asks every provider for songID. IDs are provider specific, so
// this is mostly useful with a single provider.
func (m *Manager) GetLyrics(ctx context.Context, songID string) (string, error) {
	if len(m.providers) == 0 {
		return "", errNoProviders
	}

	var lastErr error
	for _, provider := range m.providers {
		lyrics, err := provider.GetLyrics(ctx, songID)
		if err == nil && lyrics != "" {
			return lyrics, nil
		}
		if err == nil {
			err = fmt.Errorf("%s returned empty lyrics", provider.GetProviderName())
		}
		m.logger.Warn().Str("provider", provider.GetProviderName()).Err(err).Msg("Provider failed")
		lastErr = err
	}
	return "", fmt.Errorf("all providers failed, last error: %w", lastErr)
}

// GetLyricsByInfo searches and fetches per provider, falling back to the
// next provider on any failure or empty result.
func (m *Manager) GetLyricsByInfo(ctx context.Context, title, artist string, length time.Duration) (string, error) {
	if len(m.providers) == 0 {
		return "", errNoProviders
	}

	var lastErr error
	for i, provider := range m.providers {
		l := m.logger.With().
			Str("title", title).
			Str("artist", artist).
			Str("provider", provider.GetProviderName()).
			Int("attempt", i+1).
			Int("total_providers", len(m.providers)).
			Logger()
		l.Info().Dur("length", length).Msg("Trying to get lyrics")

		lyrics, err := m.fetch(ctx, provider, title, artist, length)
		if err == nil && lyrics == "" {
			err = fmt.Errorf("%s returned empty lyrics", provider.GetProviderName())
		}
		if err != nil {
			l.Warn().Err(err).Msg("Provider failed")
			lastErr = err
			if ctx.Err() != nil {
				break
			}
			continue
		}

		l.Info().Msg("Successfully got lyrics")
		return lyrics, nil
	}

	return "", fmt.Errorf("all providers failed to get lyrics for '%s - %s', last error: %w", title, artist, lastErr)
}

func (m *Manager) fetch(ctx context.Context, provider MusicAPI, title, artist string, length time.Duration) (string, error) {
	if lookup, ok := provider.(InfoLookup); ok {
		return lookup.GetLyricsByInfo(ctx, title, artist, length)
	}
	songID, err := provider.SearchSong(ctx, title, artist)
	if err != nil {
		return "", fmt.Errorf("search: %w", err)
	}
	return provider.GetLyrics(ctx, songID)
}

func (m *Manager) GetProviderName() string {
	if m.primary != nil {
		return fmt.Sprintf("Manager[Primary: %s]", m.primary.GetProviderName())
	}
	return "Manager[No Providers]"
}

// GetProviderNames 获取所有提供商名称
func (m *Manager) GetProviderNames() []string {
	names := make([]string, len(m.providers))
	for i, provider := range m.providers {
		names[i] = provider.GetProviderName()
	}
	return names
}
