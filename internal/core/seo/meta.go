package seo

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"
	"unicode"

	"autopress/internal/core/research"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	maxSlugLength      = 60
	maxMetaTitleLength = 60
	maxMetaDescLength  = 160
	maxTags            = 10
)

// categoryMap scores keywords against the site's main categories.
var categoryMap = map[string][]string{
	"Fashion":       {"Fashion", "Style", "Clothing", "Outfits", "Accessories"},
	"Technology":    {"Technology", "Tech", "Digital", "Gadgets", "Electronics"},
	"Health":        {"Health", "Wellness", "Fitness", "Medical", "Nutrition"},
	"Travel":        {"Travel", "Tourism", "Vacation", "Trip", "Adventure"},
	"Food":          {"Food", "Cooking", "Recipe", "Culinary", "Dining"},
	"Business":      {"Business", "Finance", "Money", "Investment", "Entrepreneurship"},
	"Education":     {"Education", "Learning", "Study", "School", "Training"},
	"Entertainment": {"Entertainment", "Movies", "TV", "Music", "Games"},
	"Sports":        {"Sports", "Fitness", "Athletics", "Exercise", "Games"},
	"Lifestyle":     {"Lifestyle", "Life", "Living", "Family", "Home"},
	"Automotive":    {"Automotive", "Cars", "Vehicles", "Driving", "Auto"},
	"Beauty":        {"Beauty", "Makeup", "Skincare", "Cosmetics", "Hair"},
}

var (
	slugInvalidRe = regexp.MustCompile(`[^a-z0-9\s-]`)
	slugSpacesRe  = regexp.MustCompile(`\s+`)
	slugDashesRe  = regexp.MustCompile(`-+`)

	titleCaser  = cases.Title(language.English)
	asciiFolder = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
)

// Slug derives a URL slug from the title, falling back to the keyword.
// Diacritics are folded to ASCII and length is capped at 60.
func Slug(keyword, title string) string {
	text := title
	if text == "" {
		text = keyword
	}

	if folded, _, err := transform.String(asciiFolder, strings.ToLower(text)); err == nil {
		text = folded
	} else {
		text = strings.ToLower(text)
	}

	slug := slugInvalidRe.ReplaceAllString(text, "")
	slug = slugSpacesRe.ReplaceAllString(slug, "-")
	slug = slugDashesRe.ReplaceAllString(slug, "-")
	if len(slug) > maxSlugLength {
		slug = strings.TrimRight(slug[:maxSlugLength], "-")
	}
	return strings.Trim(slug, "-")
}

// MetaTitle prefers the researched title, capped at 60 characters.
func MetaTitle(keyword string, data research.Data) string {
	title := data.SuggestedTitle
	if title == "" {
		title = fmt.Sprintf("%s: Complete Guide & Tips [%d]", titleCaser.String(keyword), time.Now().Year())
	}
	return truncate(title, maxMetaTitleLength)
}

// MetaDescription prefers the researched description, capped at 160 characters.
func MetaDescription(keyword string, data research.Data) string {
	desc := data.MetaDescription
	if desc == "" {
		desc = fmt.Sprintf("Looking for information about %s? Our comprehensive guide covers everything you need to know about %s including tips, examples, and expert advice.", keyword, keyword)
	}
	return truncate(desc, maxMetaDescLength)
}

// DetectCategory scores the keyword and research hints against the category
// map and returns the best match, or fallback when nothing scores.
func DetectCategory(keyword string, data research.Data, fallback string) string {
	keywordLower := strings.ToLower(keyword)
	scores := make(map[string]int, len(categoryMap))

	for category, kws := range categoryMap {
		for _, kw := range kws {
			kwLower := strings.ToLower(kw)
			switch {
			case kwLower == keywordLower:
				scores[category] += 10
			case strings.Contains(keywordLower, kwLower):
				scores[category] += 5
			case strings.Contains(kwLower, keywordLower):
				scores[category] += 3
			}
		}
	}

	topicType := strings.ToLower(data.TopicType)
	for category, kws := range categoryMap {
		for _, kw := range kws {
			if topicType != "" && strings.Contains(topicType, strings.ToLower(kw)) {
				scores[category] += 5
			}
			for _, related := range data.RelatedKeywords {
				if strings.Contains(strings.ToLower(related), strings.ToLower(kw)) {
					scores[category] += 2
				}
			}
		}
	}
	for _, suggested := range data.CategorySuggestions {
		for category := range categoryMap {
			if strings.EqualFold(category, suggested) {
				scores[category] += 10
			}
		}
	}

	// Sorted iteration keeps ties deterministic.
	names := make([]string, 0, len(scores))
	for name := range scores {
		names = append(names, name)
	}
	sort.Strings(names)

	best, bestScore := "", 0
	for _, name := range names {
		if scores[name] > bestScore {
			best, bestScore = name, scores[name]
		}
	}
	if bestScore > 0 {
		return best
	}
	if fallback == "" {
		fallback = "General"
	}
	return fallback
}

// ExtractTags builds up to 10 tags: the keyword itself, researched related
// keywords and tag suggestions, and common search variants.
func ExtractTags(keyword string, data research.Data) []string {
	var tags []string
	seen := make(map[string]bool)
	add := func(tag string) {
		tag = strings.TrimSpace(tag)
		if tag == "" || seen[strings.ToLower(tag)] {
			return
		}
		seen[strings.ToLower(tag)] = true
		tags = append(tags, titleCaser.String(tag))
	}

	add(keyword)
	related := data.RelatedKeywords
	if len(related) > 5 {
		related = related[:5]
	}
	for _, r := range related {
		if !strings.EqualFold(r, keyword) {
			add(r)
		}
	}
	for _, t := range data.TagSuggestions {
		add(t)
	}
	add(keyword + " guide")
	add(keyword + " tips")
	add("best " + keyword)

	if len(tags) > maxTags {
		tags = tags[:maxTags]
	}
	return tags
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return strings.TrimSpace(string(r[:max-3])) + "..."
}
