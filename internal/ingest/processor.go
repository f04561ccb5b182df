package ingest

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"docchat/internal/domain"
)

// Extractor is the external text-extraction service. It receives one slice
// of the source file and its declared media type and returns plain text.
type Extractor interface {
	Extract(ctx context.Context, data []byte, mediaType string) (string, error)
}

// Chunker splits extracted text into bounded-length pieces.
type Chunker func(text string) ([]string, error)

// ProgressObserver receives ingestion progress as it happens. All methods
// are called from the processing goroutine, in order.
type ProgressObserver interface {
	OnSlice(index int, offset int64)
	OnFragments(count int)
	OnSliceError(index int, offset int64, err error)
}

// Input is one file to ingest.
type Input struct {
	Data      []byte
	MediaType string
	FileName  string
	SessionID string
}

// SliceError records one failed slice. The unit of failure is a slice, not
// the file: a corrupt region does not abort ingestion of the rest.
type SliceError struct {
	Index  int
	Offset int64
	Err    error
}

// Result is the outcome of processing one file. Fragments are ordered by
// ordinal; SliceErrors lists the regions that were skipped.
type Result struct {
	Fragments   []domain.Fragment
	SliceErrors []SliceError
}

// Processor turns a raw file payload into an ordered sequence of fragments
// without holding more than one slice's working set at a time. Files
// larger than the slice size are processed slice by slice, yielding to the
// scheduler between slices so concurrent sessions are not starved.
type Processor struct {
	extractor Extractor
	chunker   Chunker
	sliceSize int64
	maxBytes  int64
	logger    *zap.Logger
}

// NewProcessor creates a processor. sliceSize and maxBytes of zero select
// the defaults (1 MiB, 100 MiB).
func NewProcessor(extractor Extractor, chunker Chunker, sliceSize, maxBytes int64, logger *zap.Logger) *Processor {
	if sliceSize <= 0 {
		sliceSize = 1 << 20
	}
	if maxBytes <= 0 {
		maxBytes = 100 << 20
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{
		extractor: extractor,
		chunker:   chunker,
		sliceSize: sliceSize,
		maxBytes:  maxBytes,
		logger:    logger,
	}
}

// Process ingests one file. The fragment ordinal is monotonically
// increasing across the whole file; the page estimate for a fragment is
// offset/sliceSize. obs may be nil.
func (p *Processor) Process(ctx context.Context, in Input, obs ProgressObserver) (*Result, error) {
	size := int64(len(in.Data))
	if size > p.maxBytes {
		return nil, fmt.Errorf("%w: file %s is %d bytes, maximum is %d",
			domain.ErrTooLarge, in.FileName, size, p.maxBytes)
	}

	result := &Result{}
	ordinal := 0

	for offset := int64(0); offset < size || offset == 0 && size == 0; offset += p.sliceSize {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		index := int(offset / p.sliceSize)
		end := offset + p.sliceSize
		if end > size {
			end = size
		}
		if obs != nil {
			obs.OnSlice(index, offset)
		}

		fragments, err := p.processSlice(ctx, in, in.Data[offset:end], offset, index, &ordinal)
		if err != nil {
			// One corrupt region is logged and skipped; the rest of the
			// file still gets ingested.
			p.logger.Warn("slice extraction failed",
				zap.String("file", in.FileName),
				zap.Int("slice", index),
				zap.Int64("offset", offset),
				zap.Error(err),
			)
			result.SliceErrors = append(result.SliceErrors, SliceError{Index: index, Offset: offset, Err: err})
			if obs != nil {
				obs.OnSliceError(index, offset, err)
			}
		} else {
			result.Fragments = append(result.Fragments, fragments...)
			if obs != nil {
				obs.OnFragments(len(fragments))
			}
		}

		if size == 0 {
			break
		}
		// Suspension point between slices.
		runtime.Gosched()
	}

	return result, nil
}

func (p *Processor) processSlice(ctx context.Context, in Input, slice []byte, offset int64, index int, ordinal *int) ([]domain.Fragment, error) {
	text, err := p.extractor.Extract(ctx, slice, in.MediaType)
	if err != nil {
		return nil, fmt.Errorf("extract slice %d: %w", index, err)
	}

	chunks, err := p.chunker(text)
	if err != nil {
		return nil, fmt.Errorf("chunk slice %d: %w", index, err)
	}

	now := time.Now()
	fragments := make([]domain.Fragment, 0, len(chunks))
	for _, chunk := range chunks {
		if chunk == "" {
			continue
		}
		fragments = append(fragments, domain.Fragment{
			ID:         uuid.New().String(),
			SessionID:  in.SessionID,
			FileName:   in.FileName,
			Ordinal:    *ordinal,
			FileOffset: offset,
			Page:       index,
			Text:       chunk,
			CreatedAt:  now,
		})
		*ordinal++
	}
	return fragments, nil
}
