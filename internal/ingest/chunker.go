package ingest

import (
	"github.com/tmc/langchaingo/textsplitter"
)

// NewSplitterChunker returns a Chunker backed by a recursive character
// splitter, producing bounded-length fragments with the given overlap.
func NewSplitterChunker(chunkSize, chunkOverlap int) Chunker {
	if chunkSize <= 0 {
		chunkSize = 1000
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		chunkOverlap = chunkSize / 10
	}

	splitter := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(chunkSize),
		textsplitter.WithChunkOverlap(chunkOverlap),
	)

	return func(text string) ([]string, error) {
		if text == "" {
			return nil, nil
		}
		return splitter.SplitText(text)
	}
}
