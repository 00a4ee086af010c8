package netease

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const DefaultBaseURL = "https://music.163.com"

// SearchResponse 网易云搜索API响应
type SearchResponse struct {
	Result struct {
		Songs []struct {
			ID      int    `json:"id"`
			Name    string `json:"name"`
			Artists []struct {
				Name string `json:"name"`
			} `json:"artists"`
		} `json:"songs"`
	} `json:"result"`
}

// LyricResponse 网易云歌词API响应; the translated "tlyric" is not used.
type LyricResponse struct {
	Lrc struct {
		Lyric string `json:"lyric"`
	} `json:"lrc"`
}

// Client 网易云音乐客户端
type Client struct {
	httpClient     *http.Client
	baseURL        string
	cookie         string
	maxRetries     int
	requestTimeout time.Duration
	logger         zerolog.Logger
}

// NewClient reads the optional login cookie from NETEASE_COOKIE.
func NewClient() *Client {
	return NewClientWithURL(DefaultBaseURL)
}

func NewClientWithURL(baseURL string) *Client {
	return &Client{
		httpClient:     &http.Client{Timeout: 5 * time.Second},
		baseURL:        strings.TrimRight(baseURL, "/"),
		cookie:         os.Getenv("NETEASE_COOKIE"),
		maxRetries:     3,
		requestTimeout: 5 * time.Second,
		logger:         log.With().Str("component", "netease").Logger(),
	}
}

func (c *Client) GetProviderName() string {
	return "NetEase Cloud Music"
}

func (c *Client) SearchSong(ctx context.Context, title, artist string) (string, error) {
	searchURL := fmt.Sprintf("%s/api/search/get/web?s=%s&type=1&limit=100", c.baseURL, url.QueryEscape(title))
	c.logger.Info().Str("url", searchURL).Msg("Searching for song")

	var searchResp SearchResponse
	if err := c.getJSON(ctx, searchURL, &searchResp); err != nil {
		return "", fmt.Errorf("search: %w", err)
	}

	if len(searchResp.Result.Songs) == 0 {
		return "", fmt.Errorf("no songs found for '%s'", title)
	}

	songID := c.findBestMatch(searchResp, artist, title)
	if songID == 0 {
		return "", fmt.Errorf("no matching song found for '%s' by '%s'", title, artist)
	}
	return strconv.Itoa(songID), nil
}

func (c *Client) GetLyrics(ctx context.Context, songID string) (string, error) {
	lyricURL := fmt.Sprintf("%s/api/song/lyric?os=pc&id=%s&lv=-1&kv=-1&tv=-1", c.baseURL, url.QueryEscape(songID))
	c.logger.Info().Str("url", lyricURL).Msg("Fetching lyrics")

	var lyricResp LyricResponse
	if err := c.getJSON(ctx, lyricURL, &lyricResp); err != nil {
		return "", fmt.Errorf("lyric: %w", err)
	}
	if strings.TrimSpace(lyricResp.Lrc.Lyric) == "" {
		return "", fmt.Errorf("song %s has no lyrics", songID)
	}
	return lyricResp.Lrc.Lyric, nil
}

func (c *Client) getJSON(ctx context.Context, u string, v any) error {
	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if c.cookie != "" {
		req.Header.Set("Cookie", c.cookie)
	}

	resp, err := c.doRequestWithRetry(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// doRequestWithRetry retries on transport errors and 5xx, up to maxRetries
// attempts in total. The caller closes the body of the returned response.
func (c *Client) doRequestWithRetry(req *http.Request) (*http.Response, error) {
	attempts := max(c.maxRetries, 1)
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		resp, err := c.httpClient.Do(req)
		switch {
		case err != nil:
			lastErr = err
		case resp.StatusCode >= http.StatusInternalServerError:
			resp.Body.Close()
			lastErr = fmt.Errorf("status %d", resp.StatusCode)
		case resp.StatusCode != http.StatusOK:
			resp.Body.Close()
			return nil, fmt.Errorf("request failed with status %d", resp.StatusCode)
		default:
			return resp, nil
		}

		if req.Context().Err() != nil {
			break
		}
		c.logger.Warn().Err(lastErr).Int("attempt", attempt).Int("max_retries", attempts).Msg("Request failed")
	}
	return nil, fmt.Errorf("request failed after retries: %w", lastErr)
}

// findBestMatch takes the first song whose title and any artist match,
// else the first song if its title matches.
func (c *Client) findBestMatch(resp SearchResponse, targetArtist, targetTitle string) int {
	for _, song := range resp.Result.Songs {
		if !containsIgnoreCase(song.Name, targetTitle) {
			continue
		}
		for _, artist := range song.Artists {
			if containsIgnoreCase(artist.Name, targetArtist) {
				c.logger.Info().Str("song", song.Name).Int("id", song.ID).Msg("Found matching song")
				return song.ID
			}
		}
	}

	first := resp.Result.Songs[0]
	if containsIgnoreCase(first.Name, targetTitle) {
		c.logger.Info().Str("song", first.Name).Int("id", first.ID).Msg("Using first matching song")
		return first.ID
	}
	return 0
}

func normalizeString(s string) string {
	return strings.ReplaceAll(strings.ToLower(s), " ", "")
}

// containsIgnoreCase checks containment either way, ignoring case and spaces.
func containsIgnoreCase(s1, s2 string) bool {
	norm1, norm2 := normalizeString(s1), normalizeString(s2)
	return strings.Contains(norm1, norm2) || strings.Contains(norm2, norm1)
}
