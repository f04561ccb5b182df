package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingExtractor records the byte ranges it was asked to extract and
// can fail selected slices.
type recordingExtractor struct {
	calls      int
	sliceSizes []int
	failSlices map[int]bool
}

func (e *recordingExtractor) Extract(_ context.Context, data []byte, _ string) (string, error) {
	index := e.calls
	e.calls++
	e.sliceSizes = append(e.sliceSizes, len(data))
	if e.failSlices[index] {
		return "", errors.New("corrupt region")
	}
	return string(data), nil
}

// lineChunker splits on newlines; each line becomes one fragment.
func lineChunker(text string) ([]string, error) {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		if line != "" {
			out = append(out, line)
		}
	}
	return out, nil
}

func testInput(data []byte) Input {
	return Input{Data: data, MediaType: "text/plain", FileName: "doc.txt", SessionID: "sess-1"}
}

func TestProcess_SingleSlice(t *testing.T) {
	ex := &recordingExtractor{}
	p := NewProcessor(ex, lineChunker, 1<<20, 0, nil)

	result, err := p.Process(context.Background(), testInput([]byte("alpha\nbeta\n")), nil)
	require.NoError(t, err)

	assert.Equal(t, 1, ex.calls)
	require.Len(t, result.Fragments, 2)
	assert.Equal(t, "alpha", result.Fragments[0].Text)
	assert.Equal(t, "beta", result.Fragments[1].Text)
	assert.Equal(t, 0, result.Fragments[0].Ordinal)
	assert.Equal(t, 1, result.Fragments[1].Ordinal)
	assert.Equal(t, int64(0), result.Fragments[0].FileOffset)
}

func TestProcess_ThreeSlices(t *testing.T) {
	// A 3 MiB file with 1 MiB slices: three extraction calls, offsets at
	// slice boundaries, ordinals strictly increasing across the file.
	const mib = 1 << 20
	data := bytes.Repeat([]byte("content\n"), 3*mib/8)
	require.Equal(t, 3*mib, len(data))

	ex := &recordingExtractor{}
	p := NewProcessor(ex, func(s string) ([]string, error) { return []string{s}, nil }, mib, 0, nil)

	result, err := p.Process(context.Background(), testInput(data), nil)
	require.NoError(t, err)

	assert.Equal(t, 3, ex.calls)
	assert.Equal(t, []int{mib, mib, mib}, ex.sliceSizes)
	assert.Empty(t, result.SliceErrors)

	require.Len(t, result.Fragments, 3)
	for i, frag := range result.Fragments {
		assert.Equal(t, i, frag.Ordinal, "ordinals must be contiguous")
		assert.Equal(t, int64(i*mib), frag.FileOffset)
		assert.Equal(t, "sess-1", frag.SessionID)
		assert.Equal(t, "doc.txt", frag.FileName)
		assert.NotEmpty(t, frag.ID)
	}
}

func TestProcess_PageEstimate(t *testing.T) {
	data := bytes.Repeat([]byte("x"), 2500)
	ex := &recordingExtractor{}
	p := NewProcessor(ex, func(s string) ([]string, error) { return []string{s}, nil }, 1000, 0, nil)

	result, err := p.Process(context.Background(), testInput(data), nil)
	require.NoError(t, err)

	require.Len(t, result.Fragments, 3)
	assert.Equal(t, 0, result.Fragments[0].Page)
	assert.Equal(t, 1, result.Fragments[1].Page)
	assert.Equal(t, 2, result.Fragments[2].Page)
}

func TestProcess_SliceFailureContinues(t *testing.T) {
	data := bytes.Repeat([]byte("y"), 3000)
	ex := &recordingExtractor{failSlices: map[int]bool{1: true}}
	p := NewProcessor(ex, func(s string) ([]string, error) { return []string{s}, nil }, 1000, 0, nil)

	result, err := p.Process(context.Background(), testInput(data), nil)
	require.NoError(t, err)

	// The corrupt middle slice is skipped; its neighbors still land.
	require.Len(t, result.Fragments, 2)
	require.Len(t, result.SliceErrors, 1)
	assert.Equal(t, 1, result.SliceErrors[0].Index)
	assert.Equal(t, int64(1000), result.SliceErrors[0].Offset)

	// Ordinals remain strictly increasing even with a gap in content.
	assert.Equal(t, 0, result.Fragments[0].Ordinal)
	assert.Equal(t, 1, result.Fragments[1].Ordinal)
}

func TestProcess_PreflightSizeCheck(t *testing.T) {
	ex := &recordingExtractor{}
	p := NewProcessor(ex, lineChunker, 1000, 2000, nil)

	_, err := p.Process(context.Background(), testInput(bytes.Repeat([]byte("z"), 3000)), nil)
	require.Error(t, err)
	assert.Equal(t, 0, ex.calls, "no work before the size check")
}

func TestProcess_Cancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ex := &recordingExtractor{}
	p := NewProcessor(ex, lineChunker, 1000, 0, nil)

	_, err := p.Process(ctx, testInput(bytes.Repeat([]byte("z"), 3000)), nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, ex.calls)
}

func TestProcess_FreshIDsAcrossRetries(t *testing.T) {
	ex := &recordingExtractor{}
	p := NewProcessor(ex, lineChunker, 1<<20, 0, nil)

	in := testInput([]byte("one\ntwo\n"))
	first, err := p.Process(context.Background(), in, nil)
	require.NoError(t, err)
	second, err := p.Process(context.Background(), in, nil)
	require.NoError(t, err)

	seen := map[string]bool{}
	for _, frag := range append(first.Fragments, second.Fragments...) {
		assert.False(t, seen[frag.ID], "fragment id %s reused", frag.ID)
		seen[frag.ID] = true
	}
}

type countingObserver struct {
	slices    int
	fragments int
	errors    int
}

func (o *countingObserver) OnSlice(int, int64)             { o.slices++ }
func (o *countingObserver) OnFragments(n int)              { o.fragments += n }
func (o *countingObserver) OnSliceError(int, int64, error) { o.errors++ }

func TestProcess_Observer(t *testing.T) {
	data := bytes.Repeat([]byte("w"), 2000)
	ex := &recordingExtractor{failSlices: map[int]bool{0: true}}
	p := NewProcessor(ex, func(s string) ([]string, error) { return []string{s}, nil }, 1000, 0, nil)

	obs := &countingObserver{}
	_, err := p.Process(context.Background(), testInput(data), obs)
	require.NoError(t, err)

	assert.Equal(t, 2, obs.slices)
	assert.Equal(t, 1, obs.fragments)
	assert.Equal(t, 1, obs.errors)
}

func TestEstimateMemory(t *testing.T) {
	small := EstimateMemory(10<<20, 0)
	assert.Equal(t, int64(30<<20), small.Estimated)
	assert.False(t, small.Streaming)

	big := EstimateMemory(60<<20, 0)
	assert.Equal(t, int64(180<<20), big.Estimated)
	assert.True(t, big.Streaming)

	custom := EstimateMemory(5, 4)
	assert.True(t, custom.Streaming)
}

func TestSplitterChunker_Bounds(t *testing.T) {
	chunker := NewSplitterChunker(100, 10)

	text := strings.Repeat("some words in a sentence. ", 50)
	chunks, err := chunker(text)
	require.NoError(t, err)
	require.NotEmpty(t, chunks)
	for i, chunk := range chunks {
		assert.LessOrEqual(t, len(chunk), 100, fmt.Sprintf("chunk %d over size", i))
	}

	empty, err := chunker("")
	require.NoError(t, err)
	assert.Empty(t, empty)
}
