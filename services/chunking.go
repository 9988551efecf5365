package services

import (
	"regexp"
	"strings"
)

// Chunker splits long documents into passages small enough to embed,
// preferring paragraph boundaries and carrying a sentence-aligned overlap
// between neighbours so answers spanning a boundary stay retrievable.
type Chunker struct {
	maxChunkSize   int
	overlap        int
	minChunkSize   int
	sentenceRegex  *regexp.Regexp
	paragraphRegex *regexp.Regexp
}

func NewChunker(maxChunkSize, overlap, minChunkSize int) *Chunker {
	if maxChunkSize <= 0 {
		maxChunkSize = 2000
	}
	if overlap < 0 || overlap >= maxChunkSize {
		overlap = 0
	}
	return &Chunker{
		maxChunkSize:   maxChunkSize,
		overlap:        overlap,
		minChunkSize:   minChunkSize,
		sentenceRegex:  regexp.MustCompile(`[.!?]+\s+`),
		paragraphRegex: regexp.MustCompile(`\n\s*\n+`),
	}
}

// Chunk returns the passages in document order.
func (c *Chunker) Chunk(text string) []string {
	paragraphs := filterEmpty(c.paragraphRegex.Split(text, -1))
	if len(paragraphs) == 0 {
		return []string{}
	}

	var chunks []string
	current := new(strings.Builder)

	flush := func() {
		if s := strings.TrimSpace(current.String()); s != "" {
			chunks = append(chunks, s)
		}
		current.Reset()
	}

	for _, paragraph := range paragraphs {
		for _, piece := range c.splitOversized(strings.TrimSpace(paragraph)) {
			if current.Len() > 0 && current.Len()+len(piece)+2 > c.maxChunkSize && current.Len() >= c.minChunkSize {
				flush()
				if len(chunks) > 0 && c.overlap > 0 {
					if tail := c.overlapText(chunks[len(chunks)-1]); len(tail)+len(piece)+2 <= c.maxChunkSize {
						current.WriteString(tail)
					}
				}
			}
			if current.Len() > 0 {
				current.WriteString("\n\n")
			}
			current.WriteString(piece)
		}
	}
	flush()
	return chunks
}

// splitOversized breaks a paragraph longer than the limit at sentence ends,
// falling back to whitespace for run-on text.
func (c *Chunker) splitOversized(paragraph string) []string {
	if len(paragraph) <= c.maxChunkSize {
		return []string{paragraph}
	}

	var pieces []string
	current := new(strings.Builder)
	for _, sentence := range c.sentences(paragraph) {
		for len(sentence) > c.maxChunkSize {
			cut := strings.LastIndexAny(sentence[:c.maxChunkSize], " \t\n")
			if cut <= 0 {
				cut = c.maxChunkSize
			}
			if current.Len() > 0 {
				pieces = append(pieces, current.String())
				current.Reset()
			}
			pieces = append(pieces, strings.TrimSpace(sentence[:cut]))
			sentence = strings.TrimSpace(sentence[cut:])
		}
		if current.Len() > 0 && current.Len()+len(sentence)+1 > c.maxChunkSize {
			pieces = append(pieces, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(sentence)
	}
	if current.Len() > 0 {
		pieces = append(pieces, current.String())
	}
	return pieces
}

// sentences splits text after terminal punctuation, keeping the punctuation.
func (c *Chunker) sentences(text string) []string {
	var out []string
	last := 0
	for _, loc := range c.sentenceRegex.FindAllStringIndex(text, -1) {
		if s := strings.TrimSpace(text[last:loc[1]]); s != "" {
			out = append(out, s)
		}
		last = loc[1]
	}
	if s := strings.TrimSpace(text[last:]); s != "" {
		out = append(out, s)
	}
	return out
}

// overlapText returns the trailing whole sentences of text that fit in the
// overlap budget, or the raw tail when no sentence fits.
func (c *Chunker) overlapText(text string) string {
	if len(text) <= c.overlap {
		return text
	}
	sentences := c.sentences(text)
	var picked []string
	size := 0
	for i := len(sentences) - 1; i >= 0; i-- {
		if size+len(sentences[i])+1 > c.overlap {
			break
		}
		picked = append([]string{sentences[i]}, picked...)
		size += len(sentences[i]) + 1
	}
	if len(picked) == 0 {
		tail := text[len(text)-c.overlap:]
		if i := strings.IndexAny(tail, " \t\n"); i >= 0 {
			tail = tail[i+1:]
		}
		return tail
	}
	return strings.Join(picked, " ")
}

// filterEmpty removes empty strings from slice
func filterEmpty(slice []string) []string {
	result := make([]string, 0, len(slice))
	for _, s := range slice {
		if len(strings.TrimSpace(s)) > 0 {
			result = append(result, s)
		}
	}
	return result
}
