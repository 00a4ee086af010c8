package music

import (
	"context"
	"time"
)

// MusicAPI 音乐API通用接口
type MusicAPI interface {
	// SearchSong returns a provider specific song ID.
	SearchSong(ctx context.Context, title, artist string) (string, error)

	// GetLyrics returns raw LRC text for a song ID.
	GetLyrics(ctx context.Context, songID string) (string, error)

	GetProviderName() string
}

// InfoLookup is implemented by providers that can match on song length
// directly instead of search + fetch.
type InfoLookup interface {
	GetLyricsByInfo(ctx context.Context, title, artist string, length time.Duration) (string, error)
}

// MusicManager 音乐管理器接口（扩展接口，包含组合操作）
type MusicManager interface {
	MusicAPI
	InfoLookup
}
