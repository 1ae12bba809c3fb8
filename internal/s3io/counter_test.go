package s3io_test

import (
	"bytes"
	"compress/gzip"
	"io"

	"github.com/stretchr/testify/require"
	"testing"

	"github.com/studio1767/pgdelta/internal/s3io"
)

func TestWriteCounterCountsChunkBytes(t *testing.T) {
	var chunk bytes.Buffer
	wc := s3io.NewWriteCounter(&chunk)

	require.Equal(t, 0, wc.TotalWrites())
	require.Equal(t, int64(0), wc.TotalBytes())

	data := bytes.Repeat([]byte("pgdelta"), 64)
	for i := 0; i < 4; i++ {
		n, err := wc.Write(data)
		require.NoError(t, err)
		require.Equal(t, len(data), n)
	}
	require.NoError(t, wc.Close())

	require.Equal(t, 4, wc.TotalWrites())
	require.Equal(t, int64(4*len(data)), wc.TotalBytes())
	require.Equal(t, int64(chunk.Len()), wc.TotalBytes())
}

func TestWriteCounterMeasuresStoredSize(t *testing.T) {
	// the delta engine sits a counter under the codec to learn the stored
	// size of a chunk, so the count must be post-compression bytes, not
	// the raw input size
	var chunk bytes.Buffer
	wc := s3io.NewWriteCounter(&chunk)

	data := bytes.Repeat([]byte("pgdelta"), 4096)

	gz := gzip.NewWriter(wc)
	_, err := gz.Write(data)
	require.NoError(t, err)
	require.NoError(t, gz.Close())

	require.Equal(t, int64(chunk.Len()), wc.TotalBytes())
	require.Less(t, wc.TotalBytes(), int64(len(data)))
}

func TestReadCounterMeasuresUploadedBytes(t *testing.T) {
	// the upload path counts what actually moves to the bucket after the
	// pipe chain, draining the counter with io.Copy as the uploader does
	payload := bytes.Repeat([]byte("pgdelta"), 256)
	rc := s3io.NewReadCounter(bytes.NewReader(payload))

	require.Equal(t, 0, rc.TotalReads())
	require.Equal(t, int64(0), rc.TotalBytes())

	sent, err := io.Copy(io.Discard, rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())

	require.Equal(t, int64(len(payload)), sent)
	require.Equal(t, sent, rc.TotalBytes())
	require.Greater(t, rc.TotalReads(), 0)
}
