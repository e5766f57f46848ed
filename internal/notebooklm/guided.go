package notebooklm

import (
	"fmt"
	"strings"

	"github.com/lakshman81-ai/NotebooklmCrawler-sub000/internal/chunker"
	"github.com/lakshman81-ai/NotebooklmCrawler-sub000/internal/discovery"
)

// GuidedPayload is everything a user needs to run the NotebookLM flow by
// hand when automation is off but NotebookLM itself is wanted. The pipeline
// surfaces it instead of driving the browser.
type GuidedPayload struct {
	// Prompt is the text the user pastes into NotebookLM.
	Prompt string
	// Sources holds the per-source paste bodies, in discovery order.
	// Empty for a pure discovery run.
	Sources []GuidedSource
	// Steps are numbered human instructions.
	Steps []string
}

// GuidedSource is one copy-paste source document.
type GuidedSource struct {
	URL  string
	Text string
}

// GuidedDiscovery builds the manual instructions for a NotebookLM-method run
// with no chunks: the user drives the discover-sources flow themselves.
func GuidedDiscovery(req discovery.Request) GuidedPayload {
	return GuidedPayload{
		Prompt: discoverQuery(req),
		Steps: []string{
			"Open " + notebookLMURL + " and sign in.",
			"Create a new notebook.",
			`Choose "Discover sources" and paste the prompt above.`,
			"Import the suggested sources into the notebook.",
			"In the notebook chat, ask: " + reportPrompt(req),
			"Copy the response back into the run as the final report.",
		},
	}
}

// GuidedUpload builds the manual instructions for pasting collected chunks
// into NotebookLM and extracting an evidence digest.
func GuidedUpload(req discovery.Request, chunks []chunker.Chunk) GuidedPayload {
	groups := groupBySource(chunks)
	sources := make([]GuidedSource, 0, len(groups))
	for _, g := range groups {
		sources = append(sources, GuidedSource{URL: g.url, Text: g.text})
	}

	steps := []string{
		"Open " + notebookLMURL + " and sign in.",
		"Create a new notebook.",
		fmt.Sprintf(`Add each of the %d source texts below via "Add source" > "Copied text".`, len(sources)),
		"In the notebook chat, ask: " + evidencePrompt,
		"Copy the evidence digest back into the run to continue synthesis.",
	}
	return GuidedPayload{
		Prompt:  evidencePrompt,
		Sources: sources,
		Steps:   steps,
	}
}

// Render formats the payload as readable text for logs and the CLI.
func (p GuidedPayload) Render() string {
	var sb strings.Builder
	sb.WriteString("Manual NotebookLM steps required:\n")
	for i, step := range p.Steps {
		fmt.Fprintf(&sb, "  %d. %s\n", i+1, step)
	}
	sb.WriteString("\nPrompt:\n")
	sb.WriteString(p.Prompt)
	sb.WriteString("\n")
	for _, src := range p.Sources {
		fmt.Fprintf(&sb, "\n--- Source: %s ---\n%s\n", src.URL, src.Text)
	}
	return sb.String()
}
