package research

import (
	"testing"

	"autopress/prompts"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const researchJSON = `{
  "topic_type": "product review",
  "user_intent": "commercial",
  "suggested_title": "The 10 Best Coffee Makers of 2025",
  "meta_description": "Our hands-on review of this year's best coffee makers.",
  "subtopics": ["drip machines", "espresso machines"],
  "related_keywords": ["drip coffee maker", "espresso machine"],
  "faq_questions": [{"question": "How often should I descale?", "answer": "Monthly."}],
  "wordpress_category_suggestions": ["Food"],
  "wordpress_tag_suggestions": ["coffee", "kitchen"]
}`

func delimited(research, content string) string {
	out := ""
	if research != "" {
		out += prompts.ResearchStart + "\n" + research + "\n" + prompts.ResearchEnd + "\n"
	}
	if content != "" {
		out += prompts.ContentStart + "\n" + content + "\n" + prompts.ContentEnd + "\n"
	}
	return out
}

func TestParseFullDelimitedResponse(t *testing.T) {
	text := delimited(researchJSON, "## Introduction\n\nCoffee matters.")

	res, err := ParseResponse(text, "best coffee makers")
	require.NoError(t, err)

	assert.Equal(t, "The 10 Best Coffee Makers of 2025", res.Data.SuggestedTitle)
	assert.Equal(t, []string{"Food"}, res.Data.CategorySuggestions)
	require.Len(t, res.Data.FAQQuestions, 1)
	assert.Equal(t, "How often should I descale?", res.Data.FAQQuestions[0].Question)
	assert.Equal(t, "## Introduction\n\nCoffee matters.", res.Markdown)
}

func TestParseResearchWrappedInCodeFence(t *testing.T) {
	text := delimited("```json\n"+researchJSON+"\n```", "## Body")

	res, err := ParseResponse(text, "best coffee makers")
	require.NoError(t, err)
	assert.Equal(t, "The 10 Best Coffee Makers of 2025", res.Data.SuggestedTitle)
}

func TestParseResearchBuriedInProse(t *testing.T) {
	text := delimited("Here is the research you asked for:\n"+researchJSON+"\nHope that helps!", "## Body")

	res, err := ParseResponse(text, "best coffee makers")
	require.NoError(t, err)
	assert.Equal(t, "commercial", res.Data.UserIntent)
}

func TestParseContentOnlyFallsBackToDerivedResearch(t *testing.T) {
	text := delimited("", "## Introduction\n\nCoffee matters.")

	res, err := ParseResponse(text, "best coffee makers")
	require.NoError(t, err)

	assert.Equal(t, "## Introduction\n\nCoffee matters.", res.Markdown)
	assert.Equal(t, "Best Coffee Makers: Complete Guide", res.Data.SuggestedTitle)
	assert.Equal(t, []string{"General"}, res.Data.CategorySuggestions)
}

func TestParseBareJSONWithoutDelimiters(t *testing.T) {
	res, err := ParseResponse(researchJSON, "best coffee makers")
	require.NoError(t, err)

	assert.Equal(t, "The 10 Best Coffee Makers of 2025", res.Data.SuggestedTitle)
	assert.Empty(t, res.Markdown)
}

func TestParseUnusableResponseFails(t *testing.T) {
	_, err := ParseResponse("I'm sorry, I cannot help with that.", "best coffee makers")
	assert.Error(t, err)
}

func TestFallbackData(t *testing.T) {
	data := FallbackData("espresso machines")

	assert.Equal(t, "Espresso Machines: Complete Guide", data.SuggestedTitle)
	assert.Equal(t, "informational", data.TopicType)
	assert.Contains(t, data.MetaDescription, "espresso machines")
	assert.Equal(t, []string{"espresso machines"}, data.TagSuggestions)
}

func TestStripCodeFenceVariants(t *testing.T) {
	assert.Equal(t, `{"a":1}`, stripCodeFence("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripCodeFence("```\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripCodeFence(`{"a":1}`))
}
