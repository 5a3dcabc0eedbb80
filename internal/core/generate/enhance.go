package generate

import (
	"encoding/json"
	"fmt"
	"html"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

type faqQuestion struct {
	Type           string    `json:"@type"`
	Name           string    `json:"name"`
	AcceptedAnswer faqAnswer `json:"acceptedAnswer"`
}

type faqAnswer struct {
	Type string `json:"@type"`
	Text string `json:"text"`
}

type faqPage struct {
	Context    string        `json:"@context"`
	Type       string        `json:"@type"`
	MainEntity []faqQuestion `json:"mainEntity"`
}

var (
	headingIDRe  = regexp.MustCompile(`[^\w\s-]`)
	spacesRe     = regexp.MustCompile(`\s+`)
	faqHeadingRe = regexp.MustCompile(`(?i)\bfaq\b|frequently asked questions`)
	conclusionRe = regexp.MustCompile(`(?i)conclusion|summary|final thoughts|final`)
)

// EnhanceHTML rewrites rendered article HTML into the shape the publish
// target renders best: a single H1, block classes and stable heading IDs,
// a table of contents, an FAQ block with FAQPage structured data, and a
// closing conclusion section.
func EnhanceHTML(htmlContent, title, keyword string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return "", fmt.Errorf("failed to parse article HTML: %w", err)
	}
	body := doc.Find("body")

	if body.Find("h1").Length() == 0 {
		body.PrependHtml(fmt.Sprintf("<h1>%s</h1>", html.EscapeString(title)))
	}

	body.Find("h2, h3").Each(func(i int, h *goquery.Selection) {
		if _, ok := h.Attr("id"); !ok {
			h.SetAttr("id", fmt.Sprintf("section-%s-%d", headingID(h.Text()), i))
		}
		h.AddClass("wp-block-heading")
	})

	insertTableOfContents(body)

	if schema := buildFAQSchema(body); schema != "" {
		body.AppendHtml(fmt.Sprintf(`<script type="application/ld+json">%s</script>`, schema))
	}

	body.Find("p").AddClass("wp-block-paragraph")
	body.Find("ul, ol").AddClass("wp-block-list")

	ensureConclusion(body, keyword)

	out, err := body.Html()
	if err != nil {
		return "", fmt.Errorf("failed to serialize article HTML: %w", err)
	}
	return strings.TrimSpace(out), nil
}

func headingID(text string) string {
	id := headingIDRe.ReplaceAllString(strings.TrimSpace(text), "")
	id = spacesRe.ReplaceAllString(strings.ToLower(id), "-")
	return strings.Trim(id, "-")
}

// insertTableOfContents links the H2 sections after the intro paragraph.
// Articles with fewer than three H2s are too short to need one.
func insertTableOfContents(body *goquery.Selection) {
	h2s := body.Find("h2")
	if h2s.Length() < 3 {
		return
	}

	var b strings.Builder
	b.WriteString(`<div class="wp-block-table-of-contents"><h3 class="wp-block-heading">Table of Contents</h3><ul>`)
	h2s.Each(func(_ int, h *goquery.Selection) {
		id, ok := h.Attr("id")
		if !ok {
			return
		}
		b.WriteString(fmt.Sprintf(`<li><a href="#%s">%s</a></li>`, id, html.EscapeString(strings.TrimSpace(h.Text()))))
	})
	b.WriteString("</ul></div>")

	if first := body.Find("p").First(); first.Length() > 0 {
		first.AfterHtml(b.String())
	}
}

// buildFAQSchema wraps the FAQ section in a block div and returns FAQPage
// JSON-LD for it, or "" when the article has no FAQ section. Questions are
// H3 headings (or bolded paragraph leads) under the FAQ heading, answers are
// the paragraphs that follow each question.
func buildFAQSchema(body *goquery.Selection) string {
	var faqHeading *goquery.Selection
	body.Find("h2, h3").EachWithBreak(func(_ int, h *goquery.Selection) bool {
		if faqHeadingRe.MatchString(h.Text()) {
			faqHeading = h
			return false
		}
		return true
	})
	if faqHeading == nil {
		return ""
	}

	section := faqHeading.NextUntil("h2")

	var entries []faqQuestion
	var question string
	var answers []string
	flush := func() {
		if question != "" && len(answers) > 0 {
			entries = append(entries, faqQuestion{
				Type: "Question",
				Name: question,
				AcceptedAnswer: faqAnswer{
					Type: "Answer",
					Text: strings.Join(answers, " "),
				},
			})
		}
		question = ""
		answers = nil
	}

	section.Each(func(_ int, el *goquery.Selection) {
		switch goquery.NodeName(el) {
		case "h3":
			flush()
			question = strings.TrimSpace(el.Text())
		case "p":
			if bold := el.Find("strong").First(); bold.Length() > 0 && strings.TrimSpace(bold.Text()) == strings.TrimSpace(el.Text()) {
				flush()
				question = strings.TrimSpace(bold.Text())
				return
			}
			if question != "" {
				answers = append(answers, strings.TrimSpace(el.Text()))
			}
		}
	})
	flush()

	faqHeading.AddSelection(section).WrapAllHtml(`<div class="wp-block-faq"></div>`)

	if len(entries) == 0 {
		return ""
	}
	payload, err := json.MarshalIndent(faqPage{
		Context:    "https://schema.org",
		Type:       "FAQPage",
		MainEntity: entries,
	}, "", "  ")
	if err != nil {
		return ""
	}
	return string(payload)
}

// ensureConclusion appends a closing section when the article lacks one.
func ensureConclusion(body *goquery.Selection, keyword string) {
	h2s := body.Find("h2")
	if h2s.Length() == 0 {
		return
	}
	found := false
	h2s.Each(func(_ int, h *goquery.Selection) {
		if conclusionRe.MatchString(h.Text()) {
			found = true
		}
	})
	if found {
		return
	}

	body.AppendHtml(`<h2 class="wp-block-heading" id="section-conclusion">Conclusion</h2>`)
	body.AppendHtml(fmt.Sprintf(
		`<p class="wp-block-paragraph">In conclusion, understanding %s is essential for making informed decisions. This guide has covered the key aspects you need to know. If you have any questions, feel free to leave them in the comments below.</p>`,
		html.EscapeString(keyword)))
}
