package research

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"autopress/internal/logger"
	"autopress/internal/platform/llm"
	"autopress/prompts"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// FAQ is one question/answer pair from keyword research.
type FAQ struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// Data is the structured keyword research payload.
type Data struct {
	TopicType           string          `json:"topic_type"`
	UserIntent          string          `json:"user_intent"`
	SuggestedTitle      string          `json:"suggested_title"`
	MetaDescription     string          `json:"meta_description"`
	Subtopics           []string        `json:"subtopics"`
	RelatedKeywords     []string        `json:"related_keywords"`
	SuggestedHeadings   json.RawMessage `json:"suggested_headings,omitempty"`
	FAQQuestions        []FAQ           `json:"faq_questions"`
	TargetAudience      string          `json:"target_audience,omitempty"`
	CategorySuggestions []string        `json:"wordpress_category_suggestions"`
	TagSuggestions      []string        `json:"wordpress_tag_suggestions"`
}

// Result bundles research data with the article markdown produced in the
// same model round trip. Markdown may be empty when only research came back.
type Result struct {
	Data     Data   `json:"data"`
	Markdown string `json:"markdown,omitempty"`
}

// Service runs the combined research + article model call.
type Service struct {
	llm     *llm.Service
	prompts *prompts.SystemPrompts
	log     *logger.Logger
}

func NewService(llmSvc *llm.Service, sp *prompts.SystemPrompts) *Service {
	return &Service{llm: llmSvc, prompts: sp, log: logger.New("ResearchService")}
}

// Research asks the model for research data and the article in one call.
func (s *Service) Research(ctx context.Context, secret, keyword string) (*Result, error) {
	text, err := s.llm.Generate(ctx, secret, s.prompts.ResearchAndContent, map[string]any{
		"keyword": keyword,
	})
	if err != nil {
		return nil, err
	}

	res, err := ParseResponse(text, keyword)
	if err != nil {
		return nil, err
	}
	s.log.LogDebugf("Research complete for %q: title=%q, %d subtopics", keyword, res.Data.SuggestedTitle, len(res.Data.Subtopics))
	return res, nil
}

var jsonBlockRe = regexp.MustCompile(`(?s)\{.*\}`)

// ParseResponse splits a delimited model response into research data and
// article markdown. A response missing both sections is a validation failure.
func ParseResponse(text, keyword string) (*Result, error) {
	res := &Result{}

	raw, hasResearch := extractSection(text, prompts.ResearchStart, prompts.ResearchEnd)
	if hasResearch {
		payload := stripCodeFence(raw)
		if err := json.Unmarshal([]byte(payload), &res.Data); err != nil {
			// Models occasionally wrap JSON in prose. Pull out the outermost object.
			if block := jsonBlockRe.FindString(payload); block == "" || json.Unmarshal([]byte(block), &res.Data) != nil {
				hasResearch = false
			}
		}
	}

	if md, ok := extractSection(text, prompts.ContentStart, prompts.ContentEnd); ok {
		res.Markdown = stripCodeFence(md)
	}

	if !hasResearch && res.Markdown == "" {
		// Maybe the model returned bare JSON with no delimiters at all.
		if err := json.Unmarshal([]byte(stripCodeFence(text)), &res.Data); err != nil {
			return nil, fmt.Errorf("response has neither research nor content sections")
		}
		return res, nil
	}

	if !hasResearch {
		res.Data = FallbackData(keyword)
	}
	return res, nil
}

// FallbackData builds minimal research data when the model returned content
// without a usable research section.
func FallbackData(keyword string) Data {
	title := cases.Title(language.English).String(keyword)
	return Data{
		TopicType:           "informational",
		UserIntent:          "informational",
		SuggestedTitle:      fmt.Sprintf("%s: Complete Guide", title),
		MetaDescription:     fmt.Sprintf("Learn everything about %s in this comprehensive guide.", keyword),
		CategorySuggestions: []string{"General"},
		TagSuggestions:      []string{keyword},
	}
}

func extractSection(text, start, end string) (string, bool) {
	i := strings.Index(text, start)
	if i < 0 {
		return "", false
	}
	rest := text[i+len(start):]
	if j := strings.Index(rest, end); j >= 0 {
		rest = rest[:j]
	}
	out := strings.TrimSpace(rest)
	return out, out != ""
}

// stripCodeFence removes a surrounding ``` fence, tolerating a language tag
// on the opening line.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") && !strings.HasPrefix(s, "~~~") {
		return s
	}
	if nl := strings.Index(s, "\n"); nl >= 0 {
		s = s[nl+1:]
	} else {
		return strings.TrimSpace(strings.TrimLeft(s, "`~"))
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	s = strings.TrimSuffix(s, "~~~")
	return strings.TrimSpace(s)
}
