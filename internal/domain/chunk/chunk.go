package chunk

import (
	"fmt"
	"strings"
)

// Chunk is one non-empty paragraph of the ingested document (immutable value object).
// Identity is the paragraph's position among the kept paragraphs.
type Chunk struct {
	index  int
	text   string
	source string
}

// ID returns the record id the chunk is stored under.
func (c Chunk) ID() string { return IDFor(c.index) }

// IDFor returns the record id of the chunk at index.
func IDFor(index int) string { return fmt.Sprintf("id_%d", index) }

// Index returns the chunk's sequential position.
func (c Chunk) Index() int { return c.index }

// Text returns the trimmed paragraph text.
func (c Chunk) Text() string { return c.text }

// SourceTag returns the provenance tag stored as record metadata.
func (c Chunk) SourceTag() string { return c.source }

// Metadata returns the record metadata for the chunk.
func (c Chunk) Metadata() map[string]string {
	return map[string]string{"source": c.source}
}

// ExtractChunks trims each paragraph and drops the ones left empty, keeping order.
func ExtractChunks(paragraphs []string) []string {
	out := make([]string, 0, len(paragraphs))
	for _, p := range paragraphs {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// FromParagraphs builds sequentially numbered chunks from raw paragraphs.
func FromParagraphs(paragraphs []string) []Chunk {
	texts := ExtractChunks(paragraphs)
	chunks := make([]Chunk, len(texts))
	for i, t := range texts {
		chunks[i] = Chunk{index: i, text: t, source: fmt.Sprintf("doc_%d", i)}
	}
	return chunks
}
