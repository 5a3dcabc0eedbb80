package seo

import (
	"context"
	"strings"

	"autopress/internal/core/research"
	"autopress/internal/logger"

	md "github.com/JohannesKaufmann/html-to-markdown"
)

// TermResolver maps category and tag names to remote term IDs, creating
// missing terms. Implemented by the publish client.
type TermResolver interface {
	GetOrCreateCategory(ctx context.Context, name string) (int, error)
	GetOrCreateTag(ctx context.Context, name string) (int, error)
}

// Metadata is the optimize stage output attached to the article.
type Metadata struct {
	Slug            string   `json:"slug"`
	MetaTitle       string   `json:"meta_title"`
	MetaDescription string   `json:"meta_description"`
	FocusKeyword    string   `json:"focus_keyword"`
	Excerpt         string   `json:"excerpt"`
	CategoryIDs     []int    `json:"category_ids"`
	TagIDs          []int    `json:"tag_ids"`
	CategoryNames   []string `json:"category_names"`
	TagNames        []string `json:"tag_names"`
}

// Service assembles SEO metadata for an article.
type Service struct {
	resolver        TermResolver
	defaultCategory string
	converter       *md.Converter
	log             *logger.Logger
}

func NewService(resolver TermResolver, defaultCategory string) *Service {
	return &Service{
		resolver:        resolver,
		defaultCategory: defaultCategory,
		converter:       md.NewConverter("", true, nil),
		log:             logger.New("SEOService"),
	}
}

// Prepare builds the full metadata set for an article. Term resolution
// failures degrade to fewer terms rather than failing the stage; the remote
// platform falls back to its default category for an empty list.
func (s *Service) Prepare(ctx context.Context, keyword, title, bodyHTML string, data research.Data) (*Metadata, error) {
	meta := &Metadata{
		Slug:            Slug(keyword, title),
		MetaTitle:       MetaTitle(keyword, data),
		MetaDescription: MetaDescription(keyword, data),
		FocusKeyword:    keyword,
	}

	meta.Excerpt = s.excerpt(bodyHTML)
	if meta.Excerpt == "" {
		meta.Excerpt = meta.MetaDescription
	}

	mainCategory := DetectCategory(keyword, data, s.defaultCategory)
	meta.CategoryNames = append(meta.CategoryNames, mainCategory)
	if sub := strings.TrimSpace(data.TopicType); sub != "" && !strings.EqualFold(sub, mainCategory) {
		meta.CategoryNames = append(meta.CategoryNames, titleCaser.String(sub))
	}
	meta.TagNames = ExtractTags(keyword, data)

	if s.resolver != nil {
		for _, name := range meta.CategoryNames {
			id, err := s.resolver.GetOrCreateCategory(ctx, name)
			if err != nil {
				s.log.LogWarnf("Skipping category %q: %v", name, err)
				continue
			}
			meta.CategoryIDs = append(meta.CategoryIDs, id)
		}
		for _, name := range meta.TagNames {
			id, err := s.resolver.GetOrCreateTag(ctx, name)
			if err != nil {
				s.log.LogWarnf("Skipping tag %q: %v", name, err)
				continue
			}
			meta.TagIDs = append(meta.TagIDs, id)
		}
	}

	s.log.LogDebugf("Prepared SEO metadata for %q: slug=%s, %d categories, %d tags",
		keyword, meta.Slug, len(meta.CategoryIDs), len(meta.TagIDs))
	return meta, nil
}

// excerpt derives a plain-text excerpt from the article body. The HTML is
// converted to markdown first so block structure survives as line breaks,
// then the intro text is trimmed to meta-description length.
func (s *Service) excerpt(bodyHTML string) string {
	if strings.TrimSpace(bodyHTML) == "" {
		return ""
	}
	markdown, err := s.converter.ConvertString(bodyHTML)
	if err != nil {
		return ""
	}

	for _, line := range strings.Split(markdown, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "-") || strings.HasPrefix(line, "*") {
			continue
		}
		line = strings.NewReplacer("**", "", "__", "", "`", "").Replace(line)
		return truncate(line, maxMetaDescLength)
	}
	return ""
}
