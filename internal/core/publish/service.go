package publish

import (
	"context"
	"fmt"

	"autopress/internal/core/job"
	"autopress/internal/logger"
)

// Yoast SEO meta fields attached to posts when the plugin is enabled.
const (
	yoastTitleField    = "_yoast_wpseo_title"
	yoastMetaDescField = "_yoast_wpseo_metadesc"
	yoastFocusKwField  = "_yoast_wpseo_focuskw"
)

// Result is the outcome of a successful publish.
type Result struct {
	PostID    int    `json:"post_id"`
	Permalink string `json:"permalink"`
}

// Service publishes assembled articles. Post creation is a single remote
// call, so a failed publish leaves no partial post behind; a failed featured
// image only degrades the post.
type Service struct {
	client   *Client
	registry *Registry
	log      *logger.Logger
}

func NewService(client *Client, registry *Registry) *Service {
	return &Service{client: client, registry: registry, log: logger.New("PublishService")}
}

// Client exposes the underlying REST client for connection checks and
// term resolution.
func (s *Service) Client() *Client { return s.client }

// Exists reports whether the keyword already has a published post, checking
// the local registry first and the remote slug as a fallback.
func (s *Service) Exists(ctx context.Context, keyword, slug string) bool {
	if s.registry != nil && s.registry.Lookup(ctx, keyword) != nil {
		return true
	}
	if slug == "" {
		return false
	}
	exists, err := s.client.FindPostBySlug(ctx, slug)
	if err != nil {
		s.log.LogWarnf("Remote duplicate check failed for %q: %v", slug, err)
		return false
	}
	return exists
}

// Publish uploads the featured image, creates the post, and records the
// keyword in the registry.
func (s *Service) Publish(ctx context.Context, keyword string, art job.Article) (*Result, error) {
	if art.Title == "" || art.Body == "" {
		return nil, fmt.Errorf("article for %q is incomplete", keyword)
	}

	featuredMedia := 0
	for _, imageURL := range art.ImageURLs {
		id, err := s.client.UploadMedia(ctx, imageURL, art.Title)
		if err != nil {
			s.log.LogWarnf("Featured image upload failed for %q, trying next candidate: %v", keyword, err)
			continue
		}
		featuredMedia = id
		break
	}
	if featuredMedia == 0 && len(art.ImageURLs) > 0 {
		s.log.LogWarnf("No image candidate uploaded for %q, publishing without featured media", keyword)
	}

	req := PostRequest{
		Title:         art.Title,
		Content:       art.Body,
		Status:        "publish",
		Slug:          art.Slug,
		Excerpt:       art.Excerpt,
		Categories:    art.CategoryIDs,
		Tags:          art.TagIDs,
		FeaturedMedia: featuredMedia,
	}
	if s.client.UseYoast() {
		req.Meta = map[string]string{
			yoastTitleField:    art.MetaTitle,
			yoastMetaDescField: art.MetaDescription,
			yoastFocusKwField:  art.FocusKeyword,
		}
	}

	post, err := s.client.CreatePost(ctx, req)
	if err != nil {
		return nil, err
	}

	if s.registry != nil {
		// Best effort: a registry miss later means one redundant remote check.
		_ = s.registry.Record(ctx, keyword, post.ID, post.Link)
	}

	s.log.LogSuccessf("Published %q as post %d (%s)", keyword, post.ID, post.Link)
	return &Result{PostID: post.ID, Permalink: post.Link}, nil
}
