package media

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"regexp"
	"time"

	"autopress/internal/logger"
)

// YouTube result pages carry video metadata in an inline JS blob.
var videoIDRe = regexp.MustCompile(`"videoId":"([^"]+)"`)

// VideoFinder looks up a related video to embed in the article.
type VideoFinder struct {
	client *http.Client
	log    *logger.Logger
}

func NewVideoFinder() *VideoFinder {
	return &VideoFinder{
		client: &http.Client{Timeout: 10 * time.Second},
		log:    logger.New("VideoFinder"),
	}
}

// Search returns the embed URL of the top search result for the keyword,
// or "" when no video was found.
func (f *VideoFinder) Search(ctx context.Context, keyword string) (string, error) {
	searchURL := fmt.Sprintf("https://www.youtube.com/results?search_query=%s", url.QueryEscape(keyword))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build video search request: %w", err)
	}
	req.Header.Set("User-Agent", userAgents[rand.Intn(len(userAgents))])
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("video search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("video search failed with status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read video search response: %w", err)
	}

	match := videoIDRe.FindSubmatch(body)
	if match == nil {
		f.log.LogDebugf("No video found for %q", keyword)
		return "", nil
	}

	embed := EmbedURL(string(match[1]))
	f.log.LogDebugf("Found video for %q: %s", keyword, embed)
	return embed, nil
}

// EmbedURL converts a video ID to its embeddable player URL.
func EmbedURL(videoID string) string {
	return "https://www.youtube.com/embed/" + videoID
}
