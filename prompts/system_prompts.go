package prompts

import (
	"github.com/cloudwego/eino/components/prompt"
)

// Delimiters the model is instructed to emit so research and article
// sections can be split apart reliably.
const (
	ResearchStart = "===RESEARCH_START==="
	ResearchEnd   = "===RESEARCH_END==="
	ContentStart  = "===CONTENT_START==="
	ContentEnd    = "===CONTENT_END==="
)

// SystemPrompts contains all the prompt templates organized by use case
type SystemPrompts struct {
	// Combined keyword research + article writing in one round trip
	ResearchAndContent prompt.ChatTemplate

	// Article writing from an existing research payload
	ContentFromResearch prompt.ChatTemplate
}

// NewSystemPrompts creates and initializes all prompt templates
func NewSystemPrompts() *SystemPrompts {
	sp := &SystemPrompts{}
	sp.initializePrompts()
	return sp
}

// initializePrompts sets up all the prompt templates
func (sp *SystemPrompts) initializePrompts() {
	sp.ResearchAndContent = sp.createResearchAndContentTemplate()
	sp.ContentFromResearch = sp.createContentFromResearchTemplate()
}
