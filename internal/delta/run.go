package delta

import (
	"os"

	pkgerrors "github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/studio1767/pgdelta/internal/manifest"
	"github.com/studio1767/pgdelta/internal/s3io"
	"github.com/studio1767/pgdelta/internal/transfer"
)

// RunResult summarises a completed delta base backup run.
type RunResult struct {
	Manifest *manifest.Manifest

	// UploadMetric covers content actually transferred this run.
	UploadMetric UploadedFilesMetric

	// DigestMetric and EmbedMetric are the accounting buckets over the
	// whole snapshot, including carried-forward content.
	DigestMetric UploadedFilesMetric
	EmbedMetric  UploadedFilesMetric

	BundleChunks int
	BundleInput  int64
	BundleStored int64
}

// Run performs one delta base backup named name: snapshot the data
// directory, index prior backups, plan the upload, move the missing
// content, and account sizes. The returned manifest still needs to be
// stored by the caller.
func (bb *BaseBackup) Run(name string, snap Snapshotter) (*RunResult, error) {
	snap.Lock()
	defer snap.Unlock()

	result, err := snap.Snapshot()
	if err != nil {
		return nil, pkgerrors.Wrap(err, "snapshotting data directory")
	}

	tracked, err := BuildRemoteIndex(bb.cfg.Prefix, bb.cfg.ListBackups, bb.cfg.FetchManifest)
	if err != nil {
		return nil, err
	}

	skip := make(map[string]struct{}, len(tracked))
	for hexdigest := range tracked {
		skip[hexdigest] = struct{}{}
	}

	chunks, todo := SplitFilesForUpload(result, snap.Root(), bb.cfg.ChunkSize, skip)

	log.WithFields(log.Fields{
		"site":    bb.cfg.Site,
		"name":    name,
		"files":   len(result.State.Files),
		"bundles": len(chunks),
		"hashes":  len(todo),
		"reused":  len(skip),
	}).Info("delta backup planned")

	run := RunResult{
		BundleChunks: len(chunks),
	}

	for index, chunk := range chunks {
		input, stored, err := bb.uploadBundleChunk(chunk, bb.chunkKey(name, index))
		if err != nil {
			return nil, pkgerrors.Wrapf(err, "uploading bundle chunk %d", index)
		}
		run.BundleInput += input
		run.BundleStored += stored
	}

	run.UploadMetric, err = bb.UploadDeltaFiles(snap, todo)
	if err != nil {
		return nil, err
	}

	run.DigestMetric, run.EmbedMetric = ReadDeltaSizes(result, tracked)

	run.Manifest = &manifest.Manifest{
		Site:           bb.cfg.Site,
		SnapshotResult: result,
	}

	return &run, nil
}

// uploadBundleChunk tars the chunk members through the codec into a local
// chunk file, then hands it to a transfer agent and waits for completion.
func (bb *BaseBackup) uploadBundleChunk(chunk transfer.BundleChunk, key string) (inputSize, storedSize int64, err error) {
	tmp, err := os.CreateTemp(bb.cfg.TempDir, "bundle-chunk-*")
	if err != nil {
		return 0, 0, err
	}
	defer func() {
		if err != nil {
			os.Remove(tmp.Name())
		}
	}()

	counter := s3io.NewWriteCounter(tmp)
	cw, err := transfer.NewChunkWriter(counter, bb.cfg.Compression, bb.cfg.Encryption)
	if err != nil {
		tmp.Close()
		return 0, 0, err
	}

	inputSize, err = transfer.WriteBundle(cw, chunk)
	if err != nil {
		cw.Close()
		tmp.Close()
		return 0, 0, err
	}
	if err = cw.Close(); err != nil {
		tmp.Close()
		return 0, 0, err
	}
	if err = tmp.Close(); err != nil {
		return 0, 0, err
	}

	storedSize = counter.TotalBytes()

	cbq := transfer.NewCallbackQueue()
	bb.cfg.Transfer <- &transfer.Operation{
		LocalPath:   tmp.Name(),
		Key:         key,
		RemoveAfter: true,
		Callback:    cbq,
	}

	ev, ok := cbq.WaitUntil(bb.cfg.IsRunning, bb.cfg.QueueStep)
	if !ok {
		return inputSize, storedSize, pkgerrors.New("backup run stopped while waiting for transfer")
	}
	if !ev.Success {
		if ev.Err != nil {
			return inputSize, storedSize, ev.Err
		}
		return inputSize, storedSize, pkgerrors.New("bundle chunk transfer failed")
	}

	return inputSize, storedSize, nil
}
