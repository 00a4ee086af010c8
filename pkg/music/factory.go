package music

import (
	"fmt"
	"strings"

	"lyricsync/pkg/lrclib"
	"lyricsync/pkg/netease"

	"github.com/rs/zerolog/log"
)

// CreateProvider 创建音乐提供商客户端
func CreateProvider(provider Provider) (MusicAPI, error) {
	switch provider {
	case ProviderLRCLib:
		return lrclib.NewClient(), nil
	case ProviderNetEase:
		return netease.NewClient(), nil
	default:
		return nil, fmt.Errorf("unknown music provider: %s", provider)
	}
}

// CreateManager builds a Manager from provider names in priority order.
// Unknown names are skipped with a warning.
func CreateManager(names []string) (*Manager, error) {
	var providers []MusicAPI
	for _, name := range names {
		p, err := GetProviderByName(name)
		if err != nil {
			log.Warn().Err(err).Msg("Skipping provider")
			continue
		}
		api, err := CreateProvider(p)
		if err != nil {
			log.Warn().Err(err).Str("provider", name).Msg("Failed to create provider")
			continue
		}
		providers = append(providers, api)
	}

	if len(providers) == 0 {
		return nil, fmt.Errorf("no music providers available")
	}
	return NewManager(providers), nil
}

// GetProviderByName 根据名称获取提供商
func GetProviderByName(name string) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "lrclib":
		return ProviderLRCLib, nil
	case "netease", "网易云", "163":
		return ProviderNetEase, nil
	default:
		return "", fmt.Errorf("unknown provider name: %s", name)
	}
}
