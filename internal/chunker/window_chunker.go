package chunker

import (
	"fmt"
	"strings"

	"ragqa/internal/domain"
)

const (
	DefaultChunkSize = 1000
	DefaultOverlap   = 200
)

// ErrOverlap is returned when the window would never advance.
var ErrOverlap = domain.Invalid("chunkSize must be greater than overlap")

// ChunkText splits text into overlapping fixed-size windows measured in runes.
// Each window is trimmed and dropped when blank. The next window starts
// overlap runes before the untrimmed end of the previous one.
func ChunkText(text string, chunkSize, overlap int) ([]string, error) {
	if chunkSize <= overlap {
		return nil, ErrOverlap
	}
	runes := []rune(text)
	n := len(runes)
	var chunks []string
	start := 0
	for start < n {
		end := min(start+chunkSize, n)
		if part := strings.TrimSpace(string(runes[start:end])); part != "" {
			chunks = append(chunks, part)
		}
		if end == n {
			break
		}
		start = end - overlap
	}
	return chunks, nil
}

// WindowChunker turns documents into indexed chunks using ChunkText.
type WindowChunker struct {
	chunkSize int
	overlap   int
}

func NewWindowChunker(chunkSize, overlap int) (*WindowChunker, error) {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = 0
	}
	if chunkSize <= overlap {
		return nil, ErrOverlap
	}
	return &WindowChunker{chunkSize: chunkSize, overlap: overlap}, nil
}

// Chunk splits document content; chunk indexes start at 1.
func (c *WindowChunker) Chunk(document domain.Document) ([]domain.Chunk, error) {
	parts, err := ChunkText(document.Content, c.chunkSize, c.overlap)
	if err != nil {
		return nil, err
	}
	chunks := make([]domain.Chunk, 0, len(parts))
	for i, text := range parts {
		idx := i + 1
		chunks = append(chunks, domain.Chunk{
			DocumentID: document.ID,
			ChunkID:    ChunkID(document.ID, idx),
			Text:       text,
			Index:      idx,
		})
	}
	return chunks, nil
}

// ChunkID renders the record id of a chunk.
func ChunkID(docID string, index int) string {
	return fmt.Sprintf("%s#chunk-%d", docID, index)
}
