package generate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"autopress/internal/core/research"
	"autopress/internal/logger"
	"autopress/internal/platform/llm"
	"autopress/prompts"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Service turns research output into WordPress-ready HTML. When the article
// markdown did not arrive with the research it runs a content-only model call.
type Service struct {
	llm      *llm.Service
	prompts  *prompts.SystemPrompts
	markdown goldmark.Markdown
	log      *logger.Logger
}

func NewService(llmSvc *llm.Service, sp *prompts.SystemPrompts) *Service {
	return &Service{
		llm:     llmSvc,
		prompts: sp,
		markdown: goldmark.New(
			goldmark.WithExtensions(extension.GFM, extension.Table),
		),
		log: logger.New("GenerateService"),
	}
}

// Generate runs the content-only prompt against existing research data and
// returns the article markdown.
func (s *Service) Generate(ctx context.Context, secret, keyword string, data research.Data) (string, error) {
	researchJSON, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode research data: %w", err)
	}

	text, err := s.llm.Generate(ctx, secret, s.prompts.ContentFromResearch, map[string]any{
		"keyword":  keyword,
		"research": string(researchJSON),
	})
	if err != nil {
		return "", err
	}

	res, err := research.ParseResponse(text, keyword)
	if err != nil {
		return "", err
	}
	if res.Markdown == "" {
		return "", fmt.Errorf("content response is missing the article section")
	}
	return res.Markdown, nil
}

// Render converts article markdown to HTML and applies the WordPress
// enhancement pass.
func (s *Service) Render(keyword string, data research.Data, markdown string) (string, error) {
	markdown = strings.TrimSpace(markdown)
	if markdown == "" {
		return "", fmt.Errorf("article markdown is empty")
	}

	var buf bytes.Buffer
	if err := s.markdown.Convert([]byte(markdown), &buf); err != nil {
		return "", fmt.Errorf("markdown rendering failed: %w", err)
	}

	title := data.SuggestedTitle
	if title == "" {
		title = fmt.Sprintf("%s: Complete Guide and Review", cases.Title(language.English).String(keyword))
	}

	html, err := EnhanceHTML(buf.String(), title, keyword)
	if err != nil {
		return "", err
	}
	s.log.LogDebugf("Rendered article for %q (%d bytes)", keyword, len(html))
	return html, nil
}
