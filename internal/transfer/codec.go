package transfer

import (
	"compress/gzip"
	"io"

	"filippo.io/age"
	"github.com/golang/snappy"
	"github.com/pkg/errors"
)

// CompressionData selects the algorithm a chunk is compressed with before
// encryption. Level only applies to gzip.
type CompressionData struct {
	Algorithm string `yaml:"algorithm"`
	Level     int    `yaml:"level"`
}

// EncryptionData carries the key id recorded in backup metadata and the
// recipients chunks are encrypted to.
type EncryptionData struct {
	KeyID      string
	Recipients []age.Recipient
}

// chunkWriter chains compressor -> encrypter -> destination and closes the
// stages in that order.
type chunkWriter struct {
	io.Writer
	closers []io.Closer
}

func (cw *chunkWriter) Close() error {
	for _, c := range cw.closers {
		if err := c.Close(); err != nil {
			return err
		}
	}
	return nil
}

// NewChunkWriter returns a writer that compresses and encrypts everything
// written through it into dst. Writes reach dst in stored (wire) form, so
// wrapping dst in a counter measures the stored size of the chunk.
func NewChunkWriter(dst io.Writer, comp CompressionData, enc EncryptionData) (io.WriteCloser, error) {
	cw := chunkWriter{Writer: dst}

	if len(enc.Recipients) > 0 {
		ew, err := age.Encrypt(cw.Writer, enc.Recipients...)
		if err != nil {
			return nil, errors.Wrap(err, "creating encrypter")
		}
		cw.Writer = ew
		cw.closers = append(cw.closers, ew)
	}

	switch comp.Algorithm {
	case "snappy":
		sw := snappy.NewBufferedWriter(cw.Writer)
		cw.Writer = sw
		cw.closers = append([]io.Closer{sw}, cw.closers...)
	case "gzip":
		level := comp.Level
		if level == 0 {
			level = gzip.DefaultCompression
		}
		gw, err := gzip.NewWriterLevel(cw.Writer, level)
		if err != nil {
			return nil, errors.Wrap(err, "creating compressor")
		}
		cw.Writer = gw
		cw.closers = append([]io.Closer{gw}, cw.closers...)
	case "", "none":
		// stored as-is
	default:
		return nil, errors.Errorf("unknown compression algorithm: %s", comp.Algorithm)
	}

	return &cw, nil
}
