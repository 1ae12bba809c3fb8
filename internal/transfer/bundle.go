package transfer

import (
	"archive/tar"
	"io"
	"os"

	"github.com/pkg/errors"
)

// BundleMember is one small file grouped into a shared chunk.
type BundleMember struct {
	RelativePath string
	LocalPath    string
	MissingOK    bool
}

// BundleChunk is an ordered group of small files uploaded as one object.
type BundleChunk []BundleMember

// WriteBundle tars the chunk members into dst, returning the raw input
// size. Members flagged MissingOK that have vanished since the snapshot
// are skipped; anything else missing is an error.
func WriteBundle(dst io.Writer, chunk BundleChunk) (int64, error) {
	tw := tar.NewWriter(dst)

	var inputSize int64
	for _, member := range chunk {
		f, err := os.Open(member.LocalPath)
		if err != nil {
			if os.IsNotExist(err) && member.MissingOK {
				continue
			}
			return inputSize, errors.Wrapf(err, "bundling %s", member.RelativePath)
		}

		info, err := f.Stat()
		if err != nil {
			f.Close()
			return inputSize, errors.Wrapf(err, "bundling %s", member.RelativePath)
		}

		hdr, err := tar.FileInfoHeader(info, "")
		if err != nil {
			f.Close()
			return inputSize, errors.Wrapf(err, "bundling %s", member.RelativePath)
		}
		hdr.Name = member.RelativePath

		if err := tw.WriteHeader(hdr); err != nil {
			f.Close()
			return inputSize, errors.Wrapf(err, "bundling %s", member.RelativePath)
		}

		n, err := io.Copy(tw, f)
		f.Close()
		if err != nil {
			return inputSize, errors.Wrapf(err, "bundling %s", member.RelativePath)
		}
		inputSize += n
	}

	return inputSize, tw.Close()
}
