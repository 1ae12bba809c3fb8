package snapshot_test

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"os"
	"path/filepath"

	"github.com/stretchr/testify/require"
	"testing"

	"github.com/studio1767/pgdelta/internal/snapshot"
)

func writeFile(t *testing.T, root, rpath string, data []byte) {
	t.Helper()
	fpath := filepath.Join(root, rpath)
	require.NoError(t, os.MkdirAll(filepath.Dir(fpath), 0755))
	require.NoError(t, os.WriteFile(fpath, data, 0644))
}

func TestSnapshotClassifiesFiles(t *testing.T) {
	root := t.TempDir()

	tiny := []byte("tiny")
	small := make([]byte, 512)
	big := make([]byte, 8192)

	writeFile(t, root, "global/pg_control", big)
	writeFile(t, root, "base/1/small", small)
	writeFile(t, root, "PG_VERSION", tiny)

	snapshotter := snapshot.New(root, snapshot.Options{
		EmbedMaxSize:  100,
		BundleMaxSize: 1024,
	})

	snapshotter.Lock()
	defer snapshotter.Unlock()

	result, err := snapshotter.Snapshot()
	require.NoError(t, err)
	require.Len(t, result.State.Files, 3)

	byPath := make(map[string]*snapshot.File)
	for _, f := range result.State.Files {
		byPath[f.RelativePath] = f
	}

	// tiny file is embedded inline
	embedded := byPath["PG_VERSION"]
	require.Empty(t, embedded.Hexdigest)
	require.False(t, embedded.ShouldBeBundled)
	require.Equal(t, base64.StdEncoding.EncodeToString(tiny), embedded.ContentB64)

	// small file is marked for bundling and carries no hash
	bundled := byPath["base/1/small"]
	require.True(t, bundled.ShouldBeBundled)
	require.Empty(t, bundled.Hexdigest)

	// large file is content addressed
	sum := sha256.Sum256(big)
	hashed := byPath["global/pg_control"]
	require.Equal(t, hex.EncodeToString(sum[:]), hashed.Hexdigest)
	require.Empty(t, hashed.ContentB64)
	require.False(t, hashed.ShouldBeBundled)

	require.Equal(t, []*snapshot.File{hashed}, snapshotter.FilesForDigest(hashed.Hexdigest))
}

func TestSnapshotSkipsDirsAndRecordsEmptyOnes(t *testing.T) {
	root := t.TempDir()

	writeFile(t, root, "base/1/data", make([]byte, 4096))
	writeFile(t, root, "pg_wal/000000010000000000000001", make([]byte, 4096))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "pg_tblspc"), 0755))

	snapshotter := snapshot.New(root, snapshot.Options{
		SkipDirs: []string{"pg_wal"},
	})

	snapshotter.Lock()
	defer snapshotter.Unlock()

	result, err := snapshotter.Snapshot()
	require.NoError(t, err)
	require.Len(t, result.State.Files, 1)
	require.Equal(t, "base/1/data", result.State.Files[0].RelativePath)
	require.Equal(t, []string{"pg_tblspc"}, result.State.EmptyDirs)
}

func TestSnapshotRootMatchingSkipDirIsWalked(t *testing.T) {
	// a data directory whose basename collides with a skip entry must
	// still be walked; only subdirectories are skippable
	root := filepath.Join(t.TempDir(), "pg_wal")
	writeFile(t, root, "base/1/data", make([]byte, 4096))

	snapshotter := snapshot.New(root, snapshot.Options{
		SkipDirs: []string{"pg_wal"},
	})

	snapshotter.Lock()
	defer snapshotter.Unlock()

	result, err := snapshotter.Snapshot()
	require.NoError(t, err)
	require.Len(t, result.State.Files, 1)
	require.Equal(t, "base/1/data", result.State.Files[0].RelativePath)
}

func TestSnapshotEmptyRootRecordsNothing(t *testing.T) {
	snapshotter := snapshot.New(t.TempDir(), snapshot.Options{})

	snapshotter.Lock()
	defer snapshotter.Unlock()

	result, err := snapshotter.Snapshot()
	require.NoError(t, err)
	require.Empty(t, result.State.Files)
	require.Empty(t, result.State.EmptyDirs)
}

func TestSnapshotReusesDigestForUnchangedFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "base/1/data", make([]byte, 4096))

	snapshotter := snapshot.New(root, snapshot.Options{})

	snapshotter.Lock()
	defer snapshotter.Unlock()

	first, err := snapshotter.Snapshot()
	require.NoError(t, err)
	digest := first.State.Files[0].Hexdigest
	require.NotEmpty(t, digest)

	// record the stored size as the upload path would
	require.NoError(t, snapshotter.UpdateFileData("base/1/data", 4096, 123, digest))

	second, err := snapshotter.Snapshot()
	require.NoError(t, err)
	require.Equal(t, digest, second.State.Files[0].Hexdigest)
	require.Equal(t, int64(123), second.State.Files[0].StoredFileSize)
}

func TestUpdateFileDataUnknownPath(t *testing.T) {
	snapshotter := snapshot.New(t.TempDir(), snapshot.Options{})

	snapshotter.Lock()
	defer snapshotter.Unlock()

	_, err := snapshotter.Snapshot()
	require.NoError(t, err)

	err = snapshotter.UpdateFileData("no/such/file", 1, 1, "abc")
	require.Error(t, err)
}

func TestMissingOKPatterns(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "postmaster.opts", make([]byte, 2048))
	writeFile(t, root, "base/1/data", make([]byte, 2048))

	snapshotter := snapshot.New(root, snapshot.Options{
		MissingOK: []string{"postmaster.*"},
	})

	snapshotter.Lock()
	defer snapshotter.Unlock()

	result, err := snapshotter.Snapshot()
	require.NoError(t, err)

	for _, f := range result.State.Files {
		if f.RelativePath == "postmaster.opts" {
			require.True(t, f.MissingOK)
		} else {
			require.False(t, f.MissingOK)
		}
	}
}
