package ingest

// DefaultStreamingThreshold is the file size above which streaming mode is
// recommended.
const DefaultStreamingThreshold = 50 << 20 // 50 MiB

// MemoryEstimate is an admission-control heuristic, not a hard limit: the
// working set of ingesting a file is roughly three times its size (raw
// bytes, extracted text, chunked copies).
type MemoryEstimate struct {
	Estimated int64 `json:"estimated"`
	Streaming bool  `json:"streaming"`
}

// EstimateMemory computes the expected ingestion working set for a file of
// the given size and recommends streaming mode above the threshold.
// A threshold of zero selects the default.
func EstimateMemory(size, threshold int64) MemoryEstimate {
	if threshold <= 0 {
		threshold = DefaultStreamingThreshold
	}
	return MemoryEstimate{
		Estimated: size * 3,
		Streaming: size > threshold,
	}
}
