package media

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/url"
	"strings"
	"time"

	"autopress/internal/logger"

	"github.com/gocolly/colly"
)

var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36",
}

// fallbackImages covers searches that return nothing usable, keyed by the
// rough topic so articles still get a relevant featured image.
var fallbackImages = map[string][]string{
	"general": {
		"https://images.pexels.com/photos/3861969/pexels-photo-3861969.jpeg",
		"https://images.pexels.com/photos/7688336/pexels-photo-7688336.jpeg",
		"https://images.pexels.com/photos/590041/pexels-photo-590041.jpeg",
	},
	"technology": {
		"https://images.pexels.com/photos/1714208/pexels-photo-1714208.jpeg",
		"https://images.pexels.com/photos/2582937/pexels-photo-2582937.jpeg",
		"https://images.pexels.com/photos/1181244/pexels-photo-1181244.jpeg",
	},
	"health": {
		"https://images.pexels.com/photos/3771836/pexels-photo-3771836.jpeg",
		"https://images.pexels.com/photos/4498362/pexels-photo-4498362.jpeg",
		"https://images.pexels.com/photos/3759657/pexels-photo-3759657.jpeg",
	},
	"business": {
		"https://images.pexels.com/photos/3184325/pexels-photo-3184325.jpeg",
		"https://images.pexels.com/photos/3182826/pexels-photo-3182826.jpeg",
		"https://images.pexels.com/photos/327540/pexels-photo-327540.jpeg",
	},
	"travel": {
		"https://images.pexels.com/photos/2437291/pexels-photo-2437291.jpeg",
		"https://images.pexels.com/photos/2258536/pexels-photo-2258536.jpeg",
		"https://images.pexels.com/photos/2507025/pexels-photo-2507025.jpeg",
	},
}

// ImageFinder scrapes an image search for article illustrations. Bing's
// result markup carries the full-size URL in a JSON attribute, so no
// JavaScript rendering is needed.
type ImageFinder struct {
	log *logger.Logger
}

func NewImageFinder() *ImageFinder {
	return &ImageFinder{log: logger.New("ImageFinder")}
}

// Search returns up to maxImages direct image URLs for the keyword.
// An empty result set falls back to stock images for the topic.
func (f *ImageFinder) Search(ctx context.Context, keyword string, maxImages int) ([]string, error) {
	if maxImages <= 0 {
		maxImages = 3
	}

	urls, err := f.scrape(ctx, keyword, maxImages)
	if err != nil {
		return nil, err
	}
	if len(urls) == 0 {
		f.log.LogWarnf("No images found for %q, using fallback set", keyword)
		urls = Fallback(keyword, maxImages)
	}
	return urls, nil
}

func (f *ImageFinder) scrape(ctx context.Context, keyword string, maxImages int) ([]string, error) {
	c := colly.NewCollector(colly.UserAgent(userAgents[rand.Intn(len(userAgents))]))
	c.SetRequestTimeout(15 * time.Second)

	var urls []string
	var scrapeErr error

	c.OnRequest(func(r *colly.Request) {
		select {
		case <-ctx.Done():
			r.Abort()
		default:
		}
	})

	// Bing embeds result metadata as JSON in the m attribute; murl is the
	// full-resolution source.
	c.OnHTML("a.iusc", func(e *colly.HTMLElement) {
		if len(urls) >= maxImages {
			return
		}
		var meta struct {
			MURL string `json:"murl"`
		}
		if err := json.Unmarshal([]byte(e.Attr("m")), &meta); err != nil {
			return
		}
		if usableImageURL(meta.MURL) {
			urls = append(urls, meta.MURL)
		}
	})

	c.OnError(func(r *colly.Response, err error) {
		scrapeErr = fmt.Errorf("image search failed with status %d: %w", r.StatusCode, err)
	})

	searchURL := fmt.Sprintf("https://www.bing.com/images/search?q=%s&qft=+filterui:imagesize-large",
		url.QueryEscape(keyword))
	if err := c.Visit(searchURL); err != nil {
		return nil, fmt.Errorf("image search request failed: %w", err)
	}

	if scrapeErr != nil && len(urls) == 0 {
		return nil, scrapeErr
	}
	f.log.LogDebugf("Found %d images for %q", len(urls), keyword)
	return urls, nil
}

func usableImageURL(raw string) bool {
	if !strings.HasPrefix(raw, "https://") {
		return false
	}
	lower := strings.ToLower(raw)
	return strings.Contains(lower, ".jpg") || strings.Contains(lower, ".jpeg") ||
		strings.Contains(lower, ".png") || strings.Contains(lower, ".webp")
}

// Fallback returns stock image URLs matching the keyword's topic.
func Fallback(keyword string, maxImages int) []string {
	topic := "general"
	lower := strings.ToLower(keyword)
	for t := range fallbackImages {
		if t != "general" && strings.Contains(lower, t) {
			topic = t
			break
		}
	}
	urls := fallbackImages[topic]
	if len(urls) > maxImages {
		urls = urls[:maxImages]
	}
	return urls
}
