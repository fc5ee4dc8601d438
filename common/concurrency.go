package common

import (
	"log"
	"os"
	"strconv"
)

// DefaultMaxConcurrentChunks is the work queue's default pool size.
const DefaultMaxConcurrentChunks = 4

// ComputeConcurrencyValue returns the desired number of concurrent chunk
// workers. An explicit override via BLOBXFER_CONCURRENCY_VALUE always wins;
// otherwise DefaultMaxConcurrentChunks is used. Kept as a function (rather
// than a bare constant) so embedding applications can still probe the
// environment for an override at startup.
func ComputeConcurrencyValue() int {
	if override := os.Getenv("BLOBXFER_CONCURRENCY_VALUE"); override != "" {
		val, err := strconv.Atoi(override)
		if err != nil {
			log.Fatalf("error parsing BLOBXFER_CONCURRENCY_VALUE %q: %v", override, err)
		}
		return val
	}
	return DefaultMaxConcurrentChunks
}

// ByteRange is a half-open [Start, End) byte range, shared by BlockTransfer
// persistence and the chunked transfer protocols.
type ByteRange struct {
	Start int64
	End   int64
}

func (r ByteRange) Len() int64 { return r.End - r.Start }

// SplitIntoBlocks divides [0, size) into contiguous half-open ranges of at
// most blockSize bytes each. A zero-length blob decomposes to zero blocks:
// the finalize unit still runs, committing an empty block list / creating an
// empty destination file.
func SplitIntoBlocks(size int64, blockSize int64) []ByteRange {
	if size <= 0 {
		return nil
	}
	var ranges []ByteRange
	for start := int64(0); start < size; start += blockSize {
		end := start + blockSize
		if end > size {
			end = size
		}
		ranges = append(ranges, ByteRange{Start: start, End: end})
	}
	return ranges
}
