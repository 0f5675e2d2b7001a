// Package chunk turns extracted fragments into the units submitted for
// embedding. Two modes exist: page-aware chunking for chat ingestion and
// fixed-size sliding windows for quiz generation.
package chunk

import "github.com/minhle/quizrag/internal/extract"

const (
	// DefaultWindowSize is the character length of a fixed-window chunk.
	DefaultWindowSize = 5012

	// DefaultWindowOverlap is the number of characters shared between
	// consecutive fixed-window chunks.
	DefaultWindowOverlap = 200
)

// Chunk is a unit of text submitted for embedding. PageNumber is 0 for
// fixed-window chunks, which carry no page affinity.
type Chunk struct {
	Text       string
	PageNumber int
}

// ByPage groups fragments into page-bounded chunks. A new chunk starts
// whenever the page number changes from the previous fragment; within a chunk
// fragment texts are joined by a single newline in encountered order. The
// final in-progress chunk is always flushed. Empty input yields nil.
func ByPage(fragments []extract.Fragment) []Chunk {
	if len(fragments) == 0 {
		return nil
	}

	var chunks []Chunk
	current := Chunk{PageNumber: fragments[0].PageNumber}

	for _, frag := range fragments {
		if frag.PageNumber != current.PageNumber {
			chunks = append(chunks, current)
			current = Chunk{PageNumber: frag.PageNumber, Text: frag.Text}
			continue
		}
		if current.Text == "" {
			current.Text = frag.Text
		} else {
			current.Text += "\n" + frag.Text
		}
	}

	return append(chunks, current)
}

// ByWindow splits text into overlapping fixed-size windows. size and overlap
// are in runes so multi-byte characters are never split; non-positive values
// fall back to the defaults. Empty text yields nil.
func ByWindow(text string, size, overlap int) []Chunk {
	if size <= 0 {
		size = DefaultWindowSize
	}
	if overlap < 0 || overlap >= size {
		overlap = DefaultWindowOverlap
	}
	// The default overlap may itself exceed a small window; the step below
	// must stay positive.
	if overlap >= size {
		overlap = size - 1
	}

	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	var chunks []Chunk
	step := size - overlap
	for start := 0; start < len(runes); start += step {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, Chunk{Text: string(runes[start:end])})
		if end == len(runes) {
			break
		}
	}

	return chunks
}
