package prompts

import (
	"fmt"
	"strings"
)

// AnalystSystemPrompt is the system instruction for research synthesis.
const AnalystSystemPrompt = `You are a market research analyst specializing in men's home decor and interior design trends. Your job is to analyze search results and synthesize actionable trend insights.

When given search results, you:
- Identify the top emerging trends in masculine home decor
- Note specific products, materials, colors, and styles gaining popularity
- Highlight price points and budget tiers when available
- Call out regional or seasonal differences
- Provide confidence levels for each trend (strong, moderate, emerging)

Format your analysis as structured, scannable content with clear sections.`

// ResearchTopicPrompt is the single-shot prompt sent to a research-capable
// model or CLI tool for one topic.
func ResearchTopicPrompt(topic string) string {
	return fmt.Sprintf("You are a market research analyst specializing in men's home decor. "+
		"Search the web for current trends related to: '%s'. "+
		"Find specific products, brands, price ranges, trending styles, and materials. "+
		"Provide a structured analysis with sections for: "+
		"Top Trends, Recommended Products, Price Ranges, and Style Notes. "+
		"Be specific and actionable: include real brand names and prices.", topic)
}

// TopicSearchQueries returns the web search queries run for a topic.
func TopicSearchQueries(topic string) []string {
	topic = strings.TrimSpace(topic)
	return []string{
		fmt.Sprintf("men's home decor %s trends ideas", topic),
		fmt.Sprintf("%s popular products prices", topic),
	}
}

// SearchSynthesisPrompt asks the model to analyze concatenated search
// results about a topic.
func SearchSynthesisPrompt(topic, searchContext string) string {
	return fmt.Sprintf("Analyze these search results about '%s' and provide trend "+
		"insights for men's home decor:\n\n%s", topic, searchContext)
}

// KnowledgeFallbackPrompt is used when web search produced nothing.
func KnowledgeFallbackPrompt(topic string) string {
	return fmt.Sprintf("Based on your knowledge, what are the current trends and best "+
		"recommendations for men's home decor regarding: %s", topic)
}
