package transfer_test

import (
	"archive/tar"
	"bytes"
	"io"
	"os"
	"path/filepath"

	"github.com/stretchr/testify/require"
	"testing"

	"github.com/studio1767/pgdelta/internal/transfer"
)

func TestWriteBundle(t *testing.T) {
	dir := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "one"), []byte("first file"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "two"), []byte("second"), 0644))

	chunk := transfer.BundleChunk{
		{RelativePath: "base/1/one", LocalPath: filepath.Join(dir, "one")},
		{RelativePath: "base/1/two", LocalPath: filepath.Join(dir, "two")},
	}

	var buffer bytes.Buffer
	inputSize, err := transfer.WriteBundle(&buffer, chunk)
	require.NoError(t, err)
	require.Equal(t, int64(len("first file")+len("second")), inputSize)

	tr := tar.NewReader(&buffer)

	hdr, err := tr.Next()
	require.NoError(t, err)
	require.Equal(t, "base/1/one", hdr.Name)
	data, err := io.ReadAll(tr)
	require.NoError(t, err)
	require.Equal(t, "first file", string(data))

	hdr, err = tr.Next()
	require.NoError(t, err)
	require.Equal(t, "base/1/two", hdr.Name)

	_, err = tr.Next()
	require.Equal(t, io.EOF, err)
}

func TestWriteBundleMissingFiles(t *testing.T) {
	dir := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "kept"), []byte("kept"), 0644))

	// a vanished member with missing_ok is skipped
	chunk := transfer.BundleChunk{
		{RelativePath: "kept", LocalPath: filepath.Join(dir, "kept")},
		{RelativePath: "gone", LocalPath: filepath.Join(dir, "gone"), MissingOK: true},
	}

	var buffer bytes.Buffer
	_, err := transfer.WriteBundle(&buffer, chunk)
	require.NoError(t, err)

	tr := tar.NewReader(&buffer)
	hdr, err := tr.Next()
	require.NoError(t, err)
	require.Equal(t, "kept", hdr.Name)
	_, err = tr.Next()
	require.Equal(t, io.EOF, err)

	// without missing_ok the vanished member fails the bundle
	chunk[1].MissingOK = false
	_, err = transfer.WriteBundle(&buffer, chunk)
	require.Error(t, err)
}
