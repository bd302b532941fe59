package prompts

import (
	"fmt"
	"time"
)

// TrendReportPrompt is the broad, topic-free report request.
const TrendReportPrompt = `You are a market research analyst specializing in men's home decor and interior design. Search the web for the latest trends in masculine home decor for the coming year. Cover these areas:
1. Living room and lounge trends
2. Home office design for men
3. Bedroom and bachelor pad trends
4. Popular materials and color palettes
5. Trending furniture brands and products with price ranges
6. Emerging styles (industrial, mid-century modern, minimalist, etc.)

For each area, rate the trend strength (strong/moderate/emerging) and include specific product recommendations with prices. Format as a clean, structured report with markdown headers.`

// ReportSearchQueries are the web searches behind a search-backed report.
var ReportSearchQueries = []string{
	"men's home decor trends",
	"masculine interior design trending",
	"bachelor pad decor ideas popular",
	"men's apartment design trends",
	"modern masculine living room trends",
	"home office design men",
}

// ReportSynthesisPrompt asks for a full report from concatenated results.
func ReportSynthesisPrompt(searchContext string) string {
	return "Analyze these search results and produce a comprehensive trend report " +
		"on current men's home decor trends:\n\n" + searchContext
}

// ReportKnowledgeFallbackPrompt is used when no report search returned
// anything.
const ReportKnowledgeFallbackPrompt = `Based on your knowledge, produce a comprehensive trend report on current men's home decor trends covering living rooms, home offices, bedrooms, materials and color palettes, furniture brands with price ranges, and emerging styles. Rate each trend as strong, moderate, or emerging.`

// ReportTitle is the first line written to a persisted report.
func ReportTitle(generated time.Time) string {
	return "# Home Decor Trend Report: " + generated.Format("January 2, 2006")
}

// ReportContextMessage is the synthetic user message that carries the
// latest report into a conversation.
func ReportContextMessage(report string) string {
	return fmt.Sprintf("[CONTEXT: Latest trend research for your reference, use if relevant]\n\n%s", report)
}

// ReportAcknowledgment is the synthetic advisor reply that follows
// ReportContextMessage.
const ReportAcknowledgment = "Got it, I have the latest trend data available. I'll reference it when relevant."
