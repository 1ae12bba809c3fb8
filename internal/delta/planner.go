package delta

import (
	"path/filepath"

	"github.com/studio1767/pgdelta/internal/snapshot"
	"github.com/studio1767/pgdelta/internal/transfer"
)

// SplitFilesForUpload partitions the snapshot into upload units: ordered
// bundle chunks of small files, and the set of distinct content hashes that
// need individual upload. Bundling takes precedence: a bundled file's hash
// is never scheduled separately. Hashes in skip are already durable
// remotely and are left out.
//
// Chunks are packed in snapshot order and flushed at chunkSize members; a
// chunkSize of zero or one yields one chunk per file.
func SplitFilesForUpload(result *snapshot.Result, snapshotDir string, chunkSize int, skip map[string]struct{}) ([]transfer.BundleChunk, map[string]struct{}) {

	var chunks []transfer.BundleChunk
	var chunk transfer.BundleChunk
	hexdigests := make(map[string]struct{})

	for _, file := range result.State.Files {
		if file.ShouldBeBundled {
			chunk = append(chunk, transfer.BundleMember{
				RelativePath: file.RelativePath,
				LocalPath:    filepath.Join(snapshotDir, file.RelativePath),
				MissingOK:    file.MissingOK,
			})
			if len(chunk) >= chunkSize {
				chunks = append(chunks, chunk)
				chunk = nil
			}
			continue
		}

		if file.Hexdigest == "" {
			// inline content or nothing to transfer
			continue
		}
		if _, ok := skip[file.Hexdigest]; ok {
			continue
		}
		hexdigests[file.Hexdigest] = struct{}{}
	}

	if len(chunk) > 0 {
		chunks = append(chunks, chunk)
	}

	return chunks, hexdigests
}
