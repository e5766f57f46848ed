// Package chunker splits cleaned documents into bounded-size content chunks
// tagged with provenance. Chunking is deterministic: the same input with the
// same strategy and budget yields byte-identical output.
package chunker

import (
	"fmt"
	"strings"

	"github.com/lakshman81-ai/NotebooklmCrawler-sub000/internal/collector"
	"github.com/lakshman81-ai/NotebooklmCrawler-sub000/internal/logging"
)

// Chunk is one bounded piece of a source document.
// Ordinal is stable per source and strictly increasing; a consumer sorting a
// source's chunks by ordinal recovers the original reading order.
type Chunk struct {
	SourceURL    string
	Ordinal      int
	Text         string
	ApproxTokens int
	// HardSplit marks a piece cut inside a sentence because the sentence
	// alone exceeded the token budget. Content is never dropped: the pieces
	// concatenate back to the original text.
	HardSplit bool
}

// Strategy selects the split algorithm.
type Strategy int

const (
	// SectionAware splits at structural boundaries first, then merges and
	// splits to respect the budget.
	SectionAware Strategy = iota
	// FixedSize ignores structure and slices by approximate token count.
	FixedSize
)

// ParseStrategy converts a config string into a Strategy.
func ParseStrategy(s string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "section_aware", "":
		return SectionAware, nil
	case "fixed", "fixed_size":
		return FixedSize, nil
	default:
		return SectionAware, fmt.Errorf("unknown chunking strategy %q", s)
	}
}

// Chunker splits documents under a token budget.
type Chunker struct {
	strategy  Strategy
	maxTokens int
	tc        *TokenCounter
}

// New builds a chunker. maxTokens must be positive.
func New(strategy Strategy, maxTokens int) *Chunker {
	if maxTokens <= 0 {
		maxTokens = 2000
	}
	return &Chunker{strategy: strategy, maxTokens: maxTokens, tc: NewTokenCounter()}
}

// Split chunks every document, assigning per-source ordinals starting at 0.
// Sources keep their input order.
func (c *Chunker) Split(docs []collector.Document) []Chunk {
	var out []Chunk
	for _, doc := range docs {
		var pieces []Chunk
		switch c.strategy {
		case FixedSize:
			pieces = c.splitFixed(doc)
		default:
			pieces = c.splitSectionAware(doc)
		}
		out = append(out, pieces...)
	}
	logging.Chunker("produced %d chunks from %d documents (budget %d tokens)", len(out), len(docs), c.maxTokens)
	return out
}

// splitSectionAware splits at paragraph boundaries, merging small paragraphs
// into one chunk and breaking oversized paragraphs at sentence boundaries.
// A paragraph is only cut mid-sentence when a single sentence exceeds the
// budget on its own.
func (c *Chunker) splitSectionAware(doc collector.Document) []Chunk {
	paragraphs := strings.Split(doc.Text, "\n\n")

	var chunks []Chunk
	ordinal := 0
	// Oversized-paragraph pieces are emitted verbatim: trimming them would
	// drop the whitespace between consecutive pieces and break lossless
	// reconstruction. Only merged chunks get trimmed, at the flush site.
	emit := func(text string, hardSplit bool) {
		if text == "" {
			return
		}
		chunks = append(chunks, Chunk{
			SourceURL:    doc.URL,
			Ordinal:      ordinal,
			Text:         text,
			ApproxTokens: c.tc.Count(text),
			HardSplit:    hardSplit,
		})
		ordinal++
	}

	var current strings.Builder
	currentTokens := 0
	flush := func() {
		if current.Len() > 0 {
			emit(strings.TrimSpace(current.String()), false)
			current.Reset()
			currentTokens = 0
		}
	}

	for _, para := range paragraphs {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		paraTokens := c.tc.Count(para)

		if paraTokens > c.maxTokens {
			// Oversized paragraph: close the running chunk, then split the
			// paragraph on its own.
			flush()
			for _, piece := range c.splitOversized(para) {
				emit(piece.text, piece.hard)
			}
			continue
		}

		if currentTokens+paraTokens > c.maxTokens {
			flush()
		}
		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(para)
		currentTokens += paraTokens
	}
	flush()
	return chunks
}

type piece struct {
	text string
	hard bool
}

// splitOversized breaks a paragraph that exceeds the budget. Sentences are
// packed greedily; a sentence that alone exceeds the budget is hard-split by
// rune count so no content is dropped.
func (c *Chunker) splitOversized(para string) []piece {
	var pieces []piece
	var current strings.Builder
	currentTokens := 0

	flush := func() {
		if current.Len() > 0 {
			pieces = append(pieces, piece{text: current.String()})
			current.Reset()
			currentTokens = 0
		}
	}

	for _, sentence := range splitSentences(para) {
		tokens := c.tc.Count(sentence)

		if tokens > c.maxTokens {
			flush()
			for _, part := range c.hardSplit(sentence) {
				pieces = append(pieces, piece{text: part, hard: true})
			}
			continue
		}

		if currentTokens+tokens > c.maxTokens {
			flush()
		}
		current.WriteString(sentence)
		currentTokens += tokens
	}
	flush()
	return pieces
}

// hardSplit cuts text into budget-sized rune windows. The pieces concatenate
// back to the input exactly.
func (c *Chunker) hardSplit(text string) []string {
	limit := c.tc.RunesForTokens(c.maxTokens)
	if limit < 1 {
		limit = 1
	}

	runes := []rune(text)
	var parts []string
	for start := 0; start < len(runes); start += limit {
		end := start + limit
		if end > len(runes) {
			end = len(runes)
		}
		parts = append(parts, string(runes[start:end]))
	}
	return parts
}

// splitFixed slices the whole document text into approximate token windows,
// preferring to cut at a space near the boundary.
func (c *Chunker) splitFixed(doc collector.Document) []Chunk {
	text := strings.TrimSpace(doc.Text)
	if text == "" {
		return nil
	}

	limit := c.tc.RunesForTokens(c.maxTokens)
	if limit < 1 {
		limit = 1
	}
	runes := []rune(text)

	var chunks []Chunk
	ordinal := 0
	for start := 0; start < len(runes); {
		end := start + limit
		if end >= len(runes) {
			end = len(runes)
		} else {
			// Back up to the nearest space so words stay whole, but never
			// shrink the window below half or progress stalls.
			cut := end
			for cut > start+limit/2 && runes[cut-1] != ' ' && runes[cut-1] != '\n' {
				cut--
			}
			if cut > start+limit/2 {
				end = cut
			}
		}

		chunkText := strings.TrimSpace(string(runes[start:end]))
		if chunkText != "" {
			chunks = append(chunks, Chunk{
				SourceURL:    doc.URL,
				Ordinal:      ordinal,
				Text:         chunkText,
				ApproxTokens: c.tc.Count(chunkText),
			})
			ordinal++
		}
		start = end
	}
	return chunks
}

// splitSentences splits text at sentence enders, keeping the terminator and
// trailing space with the sentence so concatenation is lossless.
func splitSentences(text string) []string {
	var sentences []string
	runes := []rune(text)
	start := 0
	for i := 0; i < len(runes); i++ {
		switch runes[i] {
		case '.', '!', '?':
			// Consume the run of terminators and following spaces.
			j := i + 1
			for j < len(runes) && (runes[j] == '.' || runes[j] == '!' || runes[j] == '?') {
				j++
			}
			for j < len(runes) && runes[j] == ' ' {
				j++
			}
			sentences = append(sentences, string(runes[start:j]))
			start = j
			i = j - 1
		}
	}
	if start < len(runes) {
		sentences = append(sentences, string(runes[start:]))
	}
	return sentences
}
