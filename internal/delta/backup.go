package delta

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	pkgerrors "github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/studio1767/pgdelta/internal/s3io"
	"github.com/studio1767/pgdelta/internal/snapshot"
	"github.com/studio1767/pgdelta/internal/transfer"
)

// Storage is the slice of the object store the engine needs directly:
// compensating deletes after a failed batch. DeleteKey reports a missing
// key as *s3io.ErrNoSuchObject, which is tolerated during compensation.
type Storage interface {
	DeleteKey(key string) error
}

// Snapshotter is the engine's view of the filesystem snapshot collaborator.
// The engine holds the lock around the whole upload phase so metadata
// writebacks never interleave with a re-scan.
type Snapshotter interface {
	sync.Locker
	Root() string
	Snapshot() (*snapshot.Result, error)
	FilesForDigest(hexdigest string) []*snapshot.File
	UpdateFileData(relativePath string, fileSize, storedFileSize int64, hexdigest string) error
}

// Config carries everything a BaseBackup needs. Zero values get sensible
// defaults from New.
type Config struct {
	Storage     Storage
	Site        string
	Prefix      string
	Transfer    transfer.Queue
	Compression transfer.CompressionData
	Encryption  transfer.EncryptionData

	// Parallel bounds the worker pool for individual hash uploads.
	Parallel int

	// ChunkSize is the number of files per bundle chunk.
	ChunkSize int

	// TempDir holds chunk files between codec and transfer.
	TempDir string

	// IsRunning is polled while waiting on transfer completions; when it
	// reports false, in-flight waits abandon instead of hanging.
	IsRunning func() bool

	// QueueStep is how long one completion wait lasts before the
	// IsRunning predicate is re-checked.
	QueueStep time.Duration

	ListBackups   BackupLister
	FetchManifest ManifestFetcher
}

// BaseBackup drives one delta base backup run: index, plan, upload,
// account.
type BaseBackup struct {
	cfg       Config
	submitted *hashSet
}

func New(cfg Config) *BaseBackup {
	if cfg.Parallel < 1 {
		cfg.Parallel = 1
	}
	if cfg.QueueStep <= 0 {
		cfg.QueueStep = 3 * time.Second
	}
	if cfg.IsRunning == nil {
		cfg.IsRunning = func() bool { return true }
	}
	if cfg.TempDir == "" {
		cfg.TempDir = os.TempDir()
	}

	return &BaseBackup{
		cfg:       cfg,
		submitted: newHashSet(),
	}
}

func (bb *BaseBackup) deltaKey(hexdigest string) string {
	return fmt.Sprintf("%s/basebackup_delta/%s", bb.cfg.Prefix, hexdigest)
}

func (bb *BaseBackup) chunkKey(name string, index int) string {
	return fmt.Sprintf("%s/basebackup_delta_chunk/%s/%08d", bb.cfg.Prefix, name, index)
}

// uploadOutcome is the explicit result of one per-hash upload. Expected
// failures (vanished file, transfer error) are a false ok, never a panic.
type uploadOutcome struct {
	ok     bool
	metric UploadedFilesMetric
}

// uploadChunk streams src through hashing, compression and encryption into
// a chunk file, then hands the chunk to a transfer agent and waits for its
// completion token. When the resulting digest was already submitted during
// this run the chunk is discarded and skipped is true: the content is
// already on its way under the same key.
func (bb *BaseBackup) uploadChunk(src io.Reader, cbq *transfer.CallbackQueue, relativePath string) (inputSize, storedSize int64, hexdigest string, skipped bool, err error) {

	tmp, err := os.CreateTemp(bb.cfg.TempDir, "delta-chunk-*")
	if err != nil {
		return 0, 0, "", false, err
	}
	defer func() {
		if err != nil || skipped {
			os.Remove(tmp.Name())
		}
	}()

	counter := s3io.NewWriteCounter(tmp)
	cw, err := transfer.NewChunkWriter(counter, bb.cfg.Compression, bb.cfg.Encryption)
	if err != nil {
		tmp.Close()
		return 0, 0, "", false, err
	}

	h := sha256.New()
	inputSize, err = io.Copy(cw, io.TeeReader(src, h))
	if err != nil {
		cw.Close()
		tmp.Close()
		return 0, 0, "", false, pkgerrors.Wrapf(err, "writing chunk for %s", relativePath)
	}
	if err = cw.Close(); err != nil {
		tmp.Close()
		return 0, 0, "", false, err
	}
	if err = tmp.Close(); err != nil {
		return 0, 0, "", false, err
	}

	storedSize = counter.TotalBytes()
	hexdigest = hex.EncodeToString(h.Sum(nil))

	if bb.submitted.Insert(hexdigest) {
		skipped = true
		return inputSize, storedSize, hexdigest, true, nil
	}

	bb.cfg.Transfer <- &transfer.Operation{
		LocalPath:   tmp.Name(),
		Key:         bb.deltaKey(hexdigest),
		RemoveAfter: true,
		Callback:    cbq,
	}

	ev, ok := cbq.WaitUntil(bb.cfg.IsRunning, bb.cfg.QueueStep)
	if !ok {
		return inputSize, storedSize, hexdigest, false, pkgerrors.New("backup run stopped while waiting for transfer")
	}
	if !ev.Success {
		if ev.Err != nil {
			return inputSize, storedSize, hexdigest, false, ev.Err
		}
		return inputSize, storedSize, hexdigest, false, pkgerrors.New("chunk transfer failed")
	}

	return inputSize, storedSize, hexdigest, false, nil
}

// uploadHexdigest re-resolves the hash against the snapshotter's current
// file listing and uploads it. Every error is contained here: workers
// report an outcome, the batch driver decides fatality.
func (bb *BaseBackup) uploadHexdigest(snap Snapshotter, cbq *transfer.CallbackQueue, hexdigest string) uploadOutcome {
	files := snap.FilesForDigest(hexdigest)
	if len(files) == 0 {
		log.WithFields(log.Fields{
			"hexdigest": hexdigest,
		}).Error("hash not present in current snapshot")
		return uploadOutcome{}
	}

	var metric UploadedFilesMetric
	for _, file := range files {
		fpath := filepath.Join(snap.Root(), file.RelativePath)

		f, err := os.Open(fpath)
		if err != nil {
			if os.IsNotExist(err) && file.MissingOK {
				continue
			}
			log.WithFields(log.Fields{
				"path": file.RelativePath,
			}).WithError(err).Error("snapshot file disappeared before upload")
			return uploadOutcome{}
		}

		inputSize, storedSize, newDigest, skipped, err := bb.uploadChunk(f, cbq, file.RelativePath)
		f.Close()
		if err != nil {
			log.WithFields(log.Fields{
				"path": file.RelativePath,
			}).WithError(err).Error("hash upload failed")
			uploadFailuresTotal.Inc()
			return uploadOutcome{}
		}

		if newDigest != hexdigest {
			// the file changed between snapshot and upload; the chunk went
			// up under the content it actually has now
			log.WithFields(log.Fields{
				"path": file.RelativePath,
				"old":  hexdigest,
				"new":  newDigest,
			}).Warning("file content changed during backup")
		}

		if err := snap.UpdateFileData(file.RelativePath, inputSize, storedSize, newDigest); err != nil {
			log.WithFields(log.Fields{
				"path": file.RelativePath,
			}).WithError(err).Error("failed to record upload result")
			return uploadOutcome{}
		}

		// a skipped transfer moved no additional bytes
		if skipped {
			storedSize = 0
		} else {
			uploadedFilesTotal.Inc()
			uploadedBytesTotal.Add(float64(inputSize))
			storedBytesTotal.Add(float64(storedSize))
		}

		metric.Add(UploadedFilesMetric{
			InputSize:  inputSize,
			StoredSize: storedSize,
			Count:      1,
		})
	}

	return uploadOutcome{ok: true, metric: metric}
}

// UploadDeltaFiles uploads the planned set of content hashes across a
// bounded worker pool. The first observed per-hash failure fails the whole
// batch: remaining hashes are drained without starting, in-flight workers
// are joined, a compensating delete is issued for the failed hash's key,
// and a *BackupFailure is returned. A "not found" outcome from the delete
// is expected when the transfer never completed and is swallowed.
func (bb *BaseBackup) UploadDeltaFiles(snap Snapshotter, todo map[string]struct{}) (UploadedFilesMetric, error) {

	digests := make(chan string)

	var mu sync.Mutex
	var metric UploadedFilesMetric
	failed := ""

	var wg sync.WaitGroup
	for i := 0; i < bb.cfg.Parallel; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for hexdigest := range digests {
				mu.Lock()
				abort := failed != ""
				mu.Unlock()
				if abort {
					continue
				}

				outcome := bb.uploadHexdigest(snap, transfer.NewCallbackQueue(), hexdigest)

				mu.Lock()
				if outcome.ok {
					metric.Add(outcome.metric)
				} else if failed == "" {
					failed = hexdigest
				}
				mu.Unlock()
			}
		}()
	}

	for hexdigest := range todo {
		digests <- hexdigest
	}
	close(digests)
	wg.Wait()

	if failed != "" {
		key := bb.deltaKey(failed)

		var deleteErr error
		if err := bb.cfg.Storage.DeleteKey(key); err != nil {
			var nosuch *s3io.ErrNoSuchObject
			if errors.As(err, &nosuch) {
				// the transfer never completed; nothing to clean up
			} else {
				deleteErr = err
			}
		}
		compensationDeletesTotal.Inc()

		log.WithFields(log.Fields{
			"hexdigest": failed,
			"key":       key,
		}).Error("delta upload batch failed")

		return metric, &BackupFailure{Hexdigest: failed, DeleteErr: deleteErr}
	}

	return metric, nil
}

// ReadDeltaSizes aggregates the snapshot into the two reporting buckets.
// A hash found in the remote index was not uploaded this run, so its
// previously recorded stored size is the accurate contribution.
func ReadDeltaSizes(result *snapshot.Result, tracked map[string]*snapshot.File) (digestMetric, embedMetric UploadedFilesMetric) {
	for _, file := range result.State.Files {
		if file.ShouldBeBundled {
			// bundled files are measured where bundle chunks are uploaded
			continue
		}

		if file.Hexdigest != "" {
			stored := file.StoredFileSize
			if previous, ok := tracked[file.Hexdigest]; ok {
				stored = previous.StoredFileSize
			}
			digestMetric.Add(UploadedFilesMetric{
				InputSize:  file.FileSize,
				StoredSize: stored,
				Count:      1,
			})
		} else if file.ContentB64 != "" {
			embedMetric.Add(UploadedFilesMetric{
				InputSize:  file.FileSize,
				StoredSize: file.FileSize,
				Count:      1,
			})
		}
	}

	return digestMetric, embedMetric
}
