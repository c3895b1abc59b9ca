package parser

import (
	"fmt"

	"pdf-form-rag/internal/models"
)

// Splitter cuts a corpus into overlapping character windows.
type Splitter struct {
	ChunkSize    int
	ChunkOverlap int
	Separator    string
}

func NewSplitter(chunkSize, chunkOverlap int, separator string) *Splitter {
	return &Splitter{
		ChunkSize:    chunkSize,
		ChunkOverlap: chunkOverlap,
		Separator:    separator,
	}
}

// SplitText returns windows starting every ChunkSize-ChunkOverlap characters.
// A window that does not reach the end of the corpus is shortened to end right
// after the last separator inside its overlap region, so the following window
// always starts inside it. Without such a separator the cut is hard at ChunkSize.
// An empty corpus yields no chunks.
func (s *Splitter) SplitText(corpus string) ([]models.TextChunk, error) {
	if s.ChunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", s.ChunkSize)
	}
	if s.ChunkOverlap < 0 || s.ChunkOverlap >= s.ChunkSize {
		return nil, fmt.Errorf("chunk overlap must be in [0, %d), got %d", s.ChunkSize, s.ChunkOverlap)
	}

	runes := []rune(corpus)
	n := len(runes)
	if n == 0 {
		return nil, nil
	}
	sep := []rune(s.Separator)
	step := s.ChunkSize - s.ChunkOverlap

	var chunks []models.TextChunk
	for start := 0; ; start += step {
		end := min(start+s.ChunkSize, n)
		if end < n {
			end = breakPoint(runes, start+step, end, sep)
		}
		chunks = append(chunks, models.TextChunk{
			Content:      string(runes[start:end]),
			SourceOffset: start,
			SourceLength: end - start,
			Index:        len(chunks),
		})
		if end >= n {
			break
		}
	}
	return chunks, nil
}

// breakPoint returns the position just past the last separator that starts at
// or after from and ends by end, or end when there is none.
func breakPoint(runes []rune, from, end int, sep []rune) int {
	if len(sep) == 0 {
		return end
	}
	for i := end - len(sep); i >= from; i-- {
		if hasRunesAt(runes, i, sep) {
			return i + len(sep)
		}
	}
	return end
}

func hasRunesAt(runes []rune, at int, sep []rune) bool {
	for j, r := range sep {
		if runes[at+j] != r {
			return false
		}
	}
	return true
}
