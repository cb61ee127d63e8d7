package chunker

import (
	"strings"

	"github.com/dgallion1/casegest/internal/doctree"
)

// Config controls chunking behavior.
type Config struct {
	ChunkSize    int // Target chunk size in tokens.
	ChunkOverlap int // Overlap between consecutive chunks in tokens.
}

// DefaultConfig returns sensible defaults for event extraction prompts.
func DefaultConfig() Config {
	return Config{
		ChunkSize:    3000,
		ChunkOverlap: 200,
	}
}

// ChunkText splits document text into prompt-sized chunks. Text that fits in
// one chunk is returned whole. Long text is packed paragraph by paragraph;
// paragraphs larger than a chunk are packed sentence by sentence. Each chunk
// after the first starts with the tail of its predecessor.
func ChunkText(text string, cfg Config) []doctree.Chunk {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultConfig().ChunkSize
	}
	if cfg.ChunkOverlap < 0 || cfg.ChunkOverlap >= cfg.ChunkSize {
		cfg.ChunkOverlap = 0
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	var parts []string
	if EstimateTokens(text) <= cfg.ChunkSize {
		parts = []string{text}
	} else {
		parts = splitText(text, cfg.ChunkSize, cfg.ChunkOverlap)
	}

	chunks := make([]doctree.Chunk, 0, len(parts))
	for i, p := range parts {
		chunks = append(chunks, doctree.Chunk{Text: p, Index: i})
	}
	return chunks
}

// splitText packs paragraphs into chunks of approximately targetTokens.
func splitText(text string, targetTokens, overlapTokens int) []string {
	var result []string
	var pending []string

	flush := func() {
		if len(pending) > 0 {
			result = append(result, pack(pending, "\n\n", targetTokens, overlapTokens)...)
			pending = nil
		}
	}

	for _, para := range splitByParagraphs(text) {
		if EstimateTokens(para) > targetTokens {
			flush()
			result = append(result, pack(splitSentences(para), " ", targetTokens, overlapTokens)...)
			continue
		}
		pending = append(pending, para)
	}
	flush()
	return result
}

// pack greedily joins units with sep until the next unit would exceed the
// target, carrying an overlap tail into the following chunk.
func pack(units []string, sep string, targetTokens, overlapTokens int) []string {
	var result []string
	var current strings.Builder
	currentTokens := 0
	fresh := 0 // units added since the last emitted chunk

	for _, u := range units {
		uTokens := EstimateTokens(u)
		if currentTokens+uTokens > targetTokens && fresh > 0 {
			result = append(result, current.String())
			overlap := overlapTail(current.String(), overlapTokens)
			current.Reset()
			currentTokens = 0
			fresh = 0
			if overlap != "" {
				current.WriteString(overlap)
				currentTokens = EstimateTokens(overlap)
			}
		}
		if current.Len() > 0 {
			current.WriteString(sep)
		}
		current.WriteString(u)
		currentTokens += uTokens
		fresh++
	}
	if fresh > 0 {
		result = append(result, current.String())
	}
	return result
}

// splitByParagraphs splits on blank lines.
func splitByParagraphs(text string) []string {
	var result []string
	for _, p := range strings.Split(text, "\n\n") {
		if p = strings.TrimSpace(p); p != "" {
			result = append(result, p)
		}
	}
	return result
}

// splitSentences splits after '.', '!' or '?' followed by whitespace.
func splitSentences(text string) []string {
	var sentences []string
	start := 0
	for i := 0; i < len(text)-1; i++ {
		switch text[i] {
		case '.', '!', '?':
			if next := text[i+1]; next == ' ' || next == '\n' || next == '\t' {
				if s := strings.TrimSpace(text[start : i+1]); s != "" {
					sentences = append(sentences, s)
				}
				start = i + 1
			}
		}
	}
	if s := strings.TrimSpace(text[start:]); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}

// overlapTail returns roughly the last targetTokens worth of words.
func overlapTail(text string, targetTokens int) string {
	words := strings.Fields(text)
	targetWords := int(float64(targetTokens) / tokensPerWord)
	if targetWords <= 0 || len(words) <= targetWords {
		return ""
	}
	return strings.Join(words[len(words)-targetWords:], " ")
}
