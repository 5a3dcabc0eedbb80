package seo

import (
	"strings"
	"testing"

	"autopress/internal/core/research"

	"github.com/stretchr/testify/assert"
)

func TestSlugPrefersTitle(t *testing.T) {
	got := Slug("coffee makers", "The 10 Best Coffee Makers of 2025")
	assert.Equal(t, "the-10-best-coffee-makers-of-2025", got)
}

func TestSlugFallsBackToKeyword(t *testing.T) {
	assert.Equal(t, "best-coffee-makers", Slug("best coffee makers", ""))
}

func TestSlugFoldsDiacritics(t *testing.T) {
	assert.Equal(t, "cafe-creme-a-paris", Slug("", "Café Crème à Paris"))
}

func TestSlugStripsPunctuationAndCollapsesDashes(t *testing.T) {
	got := Slug("", "Hello,  World! -- What's   up?")
	assert.Equal(t, "hello-world-whats-up", got)
}

func TestSlugCappedAtSixtyCharacters(t *testing.T) {
	long := strings.Repeat("keyword ", 20)
	got := Slug("", long)
	assert.LessOrEqual(t, len(got), 60)
	assert.False(t, strings.HasSuffix(got, "-"))
}

func TestMetaTitleUsesSuggestedTitle(t *testing.T) {
	data := research.Data{SuggestedTitle: "Best Coffee Makers Reviewed"}
	assert.Equal(t, "Best Coffee Makers Reviewed", MetaTitle("best coffee makers", data))
}

func TestMetaTitleTruncatedWithEllipsis(t *testing.T) {
	data := research.Data{SuggestedTitle: strings.Repeat("Very Long Title ", 10)}
	got := MetaTitle("kw", data)
	assert.LessOrEqual(t, len([]rune(got)), 60)
	assert.True(t, strings.HasSuffix(got, "..."))
}

func TestMetaDescriptionFallbackMentionsKeyword(t *testing.T) {
	got := MetaDescription("espresso machines", research.Data{})
	assert.Contains(t, got, "espresso machines")
	assert.LessOrEqual(t, len([]rune(got)), 160)
}

func TestMetaDescriptionTruncated(t *testing.T) {
	data := research.Data{MetaDescription: strings.Repeat("description ", 30)}
	got := MetaDescription("kw", data)
	assert.LessOrEqual(t, len([]rune(got)), 160)
	assert.True(t, strings.HasSuffix(got, "..."))
}

func TestDetectCategoryMatchesKeyword(t *testing.T) {
	got := DetectCategory("best tech gadgets 2025", research.Data{}, "General")
	assert.Equal(t, "Technology", got)
}

func TestDetectCategoryUsesResearchHints(t *testing.T) {
	data := research.Data{
		TopicType:           "travel guide",
		RelatedKeywords:     []string{"vacation packing list", "tourism tips"},
		CategorySuggestions: []string{"Travel"},
	}
	got := DetectCategory("what to pack", data, "General")
	assert.Equal(t, "Travel", got)
}

func TestDetectCategoryFallsBack(t *testing.T) {
	assert.Equal(t, "General", DetectCategory("zxqw flibber", research.Data{}, ""))
	assert.Equal(t, "Misc", DetectCategory("zxqw flibber", research.Data{}, "Misc"))
}

func TestExtractTagsIncludesKeywordAndVariants(t *testing.T) {
	tags := ExtractTags("coffee makers", research.Data{})

	assert.Equal(t, "Coffee Makers", tags[0])
	assert.Contains(t, tags, "Coffee Makers Guide")
	assert.Contains(t, tags, "Coffee Makers Tips")
	assert.Contains(t, tags, "Best Coffee Makers")
}

func TestExtractTagsDeduplicatesAndCaps(t *testing.T) {
	data := research.Data{
		RelatedKeywords: []string{"coffee makers", "drip coffee", "french press", "espresso", "pour over", "cold brew"},
		TagSuggestions:  []string{"Drip Coffee", "kitchen appliances", "barista", "home brewing", "grinders", "filters"},
	}
	tags := ExtractTags("coffee makers", data)

	assert.LessOrEqual(t, len(tags), 10)
	lower := map[string]int{}
	for _, tag := range tags {
		lower[strings.ToLower(tag)]++
	}
	for tag, n := range lower {
		assert.Equal(t, 1, n, tag)
	}
}

func TestTruncateRuneSafe(t *testing.T) {
	s := strings.Repeat("é", 70)
	got := truncate(s, 60)
	assert.LessOrEqual(t, len([]rune(got)), 60)
	assert.True(t, strings.HasSuffix(got, "..."))
}
