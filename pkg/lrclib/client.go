package lrclib

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const DefaultBaseURL = "https://lrclib.net/api"

// Client LRCLib客户端
type Client struct {
	httpClient     *http.Client
	baseURL        string
	requestTimeout time.Duration
	maxRetries     int
	retryBackoff   time.Duration
	logger         zerolog.Logger
}

// Response is one LRCLib search hit.
type Response struct {
	ID           int     `json:"id"`
	Name         string  `json:"name"`
	TrackName    string  `json:"trackName"`
	ArtistName   string  `json:"artistName"`
	AlbumName    string  `json:"albumName"`
	Duration     float64 `json:"duration"` // seconds
	Instrumental bool    `json:"instrumental"`
	PlainLyrics  string  `json:"plainLyrics"`
	SyncedLyrics string  `json:"syncedLyrics"`
}

func NewClient() *Client {
	return NewClientWithURL(DefaultBaseURL)
}

func NewClientWithURL(baseURL string) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
		baseURL:        strings.TrimRight(baseURL, "/"),
		requestTimeout: 5 * time.Second,
		maxRetries:     3,
		retryBackoff:   500 * time.Millisecond,
		logger:         log.With().Str("component", "lrclib").Logger(),
	}
}

func (c *Client) GetProviderName() string {
	return "LRCLib"
}

// SearchSong has no separate search step on LRCLib; the "ID" is the query.
func (c *Client) SearchSong(ctx context.Context, title, artist string) (string, error) {
	return fmt.Sprintf("%s|%s", title, artist), nil
}

// GetLyrics takes an ID produced by SearchSong.
func (c *Client) GetLyrics(ctx context.Context, songID string) (string, error) {
	title, artist, ok := strings.Cut(songID, "|")
	if !ok {
		return "", fmt.Errorf("invalid song ID format: %s", songID)
	}
	return c.GetLyricsByInfo(ctx, title, artist, 0)
}

// GetLyricsByInfo searches by title and artist and prefers the hit whose
// duration is closest to length. Synced lyrics win over plain ones.
func (c *Client) GetLyricsByInfo(ctx context.Context, title, artist string, length time.Duration) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout*time.Duration(c.maxRetries+1))
	defer cancel()

	params := url.Values{}
	params.Set("track_name", title)
	params.Set("artist_name", artist)
	searchURL := fmt.Sprintf("%s/search?%s", c.baseURL, params.Encode())

	var results []Response
	if err := c.getJSON(ctx, searchURL, &results); err != nil {
		return "", err
	}

	c.logger.Info().Int("results", len(results)).Str("title", title).Str("artist", artist).Msg("Search finished")
	if len(results) == 0 {
		return "", fmt.Errorf("no lyrics found for '%s - %s'", title, artist)
	}

	best := findBestMatch(results, title, artist, int(length.Seconds()))

	if best.SyncedLyrics != "" {
		c.logger.Info().
			Str("track", best.TrackName).
			Str("artist", best.ArtistName).
			Float64("duration", best.Duration).
			Msg("Selected synced lyrics")
		return best.SyncedLyrics, nil
	}
	if best.PlainLyrics != "" {
		c.logger.Warn().Str("track", best.TrackName).Msg("Only plain lyrics available")
		return best.PlainLyrics, nil
	}
	return "", fmt.Errorf("selected result has no lyrics for '%s - %s'", title, artist)
}

func (c *Client) getJSON(ctx context.Context, u string, v any) error {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			c.logger.Info().Int("attempt", attempt).Int("max_retries", c.maxRetries).Msg("Retrying request")
			select {
			case <-time.After(time.Duration(attempt) * c.retryBackoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("User-Agent", "lyricsync/1.0")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			c.logger.Warn().Err(err).Int("attempt", attempt+1).Msg("Request failed")
			continue
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			lastErr = fmt.Errorf("status %d", resp.StatusCode)
			c.logger.Warn().Int("status", resp.StatusCode).Int("attempt", attempt+1).Msg("Request returned error status")
			continue
		}

		err = json.NewDecoder(resp.Body).Decode(v)
		resp.Body.Close()
		if err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
		return nil
	}
	return fmt.Errorf("request failed after %d attempts: %w", c.maxRetries+1, lastErr)
}

// findBestMatch prefers title+artist matches, then title matches, then
// anything; within that pool the closest duration wins, and a hit within
// three seconds is taken immediately.
func findBestMatch(responses []Response, targetTitle, targetArtist string, targetDuration int) *Response {
	var exactMatches, titleMatches []*Response
	for i := range responses {
		r := &responses[i]
		switch {
		case containsIgnoreCase(r.TrackName, targetTitle) && containsIgnoreCase(r.ArtistName, targetArtist):
			exactMatches = append(exactMatches, r)
		case containsIgnoreCase(r.TrackName, targetTitle):
			titleMatches = append(titleMatches, r)
		}
	}

	pool := exactMatches
	if len(pool) == 0 {
		pool = titleMatches
	}
	if len(pool) == 0 {
		pool = make([]*Response, len(responses))
		for i := range responses {
			pool[i] = &responses[i]
		}
	}

	if targetDuration <= 0 {
		return pool[0]
	}

	const maxDurationDiff = 3
	best := pool[0]
	minDiff := abs(int(best.Duration) - targetDuration)
	for _, m := range pool {
		diff := abs(int(m.Duration) - targetDuration)
		if diff <= maxDurationDiff {
			return m
		}
		if diff < minDiff {
			minDiff = diff
			best = m
		}
	}
	return best
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

func containsIgnoreCase(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
