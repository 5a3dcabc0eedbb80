package publish

import (
	"context"
	"strings"
	"time"

	"autopress/internal/logger"
	rds "autopress/internal/platform/redis"
)

// Registry remembers which keywords already produced a post so duplicate
// keywords are skipped before any paid call.
type Registry struct {
	redis *rds.Service
	log   *logger.Logger
}

// PublishedPost is one registry record.
type PublishedPost struct {
	Keyword     string    `json:"keyword"`
	PostID      int       `json:"post_id"`
	Permalink   string    `json:"permalink"`
	PublishedAt time.Time `json:"published_at"`
}

func NewRegistry(redis *rds.Service) *Registry {
	return &Registry{redis: redis, log: logger.New("PublishRegistry")}
}

func registryKey(keyword string) string {
	return "published:" + strings.ToLower(strings.TrimSpace(keyword))
}

// Record stores a published post against its keyword. Registry entries do
// not expire; a keyword stays published.
func (r *Registry) Record(ctx context.Context, keyword string, postID int, permalink string) error {
	if r.redis == nil {
		return nil
	}
	entry := PublishedPost{
		Keyword:     keyword,
		PostID:      postID,
		Permalink:   permalink,
		PublishedAt: time.Now().UTC(),
	}
	if err := r.redis.CacheSet(ctx, registryKey(keyword), entry, 0); err != nil {
		r.log.LogWarnf("Failed to record published post for %q: %v", keyword, err)
		return err
	}
	return nil
}

// Lookup returns the registry record for a keyword, or nil when absent.
func (r *Registry) Lookup(ctx context.Context, keyword string) *PublishedPost {
	if r.redis == nil {
		return nil
	}
	var entry PublishedPost
	if err := r.redis.CacheGet(ctx, registryKey(keyword), &entry); err != nil {
		return nil
	}
	return &entry
}
