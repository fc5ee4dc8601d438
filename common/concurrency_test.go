package common_test

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/blobxfer/blobxfer/common"
)

func TestSplitIntoBlocks(t *testing.T) {
	a := assert.New(t)

	tests := []struct {
		name      string
		size      int64
		blockSize int64
		want      []common.ByteRange
	}{
		{
			name:      "zero size",
			size:      0,
			blockSize: 4,
			want:      nil,
		},
		{
			name:      "exact multiple",
			size:      8,
			blockSize: 4,
			want:      []common.ByteRange{{Start: 0, End: 4}, {Start: 4, End: 8}},
		},
		{
			name:      "trailing partial block",
			size:      10,
			blockSize: 4,
			want:      []common.ByteRange{{Start: 0, End: 4}, {Start: 4, End: 8}, {Start: 8, End: 10}},
		},
		{
			name:      "single block larger than size",
			size:      3,
			blockSize: 10,
			want:      []common.ByteRange{{Start: 0, End: 3}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := common.SplitIntoBlocks(tt.size, tt.blockSize)
			a.Equal(tt.want, got)
		})
	}
}

func TestByteRangeLen(t *testing.T) {
	a := assert.New(t)
	a.EqualValues(4, common.ByteRange{Start: 0, End: 4}.Len())
	a.EqualValues(0, common.ByteRange{Start: 6, End: 6}.Len())
}

func TestComputeConcurrencyValueDefault(t *testing.T) {
	a := assert.New(t)
	os.Unsetenv("BLOBXFER_CONCURRENCY_VALUE")
	a.Equal(common.DefaultMaxConcurrentChunks, common.ComputeConcurrencyValue())
}

func TestComputeConcurrencyValueOverride(t *testing.T) {
	a := assert.New(t)
	t.Setenv("BLOBXFER_CONCURRENCY_VALUE", "7")
	a.Equal(7, common.ComputeConcurrencyValue())
}
