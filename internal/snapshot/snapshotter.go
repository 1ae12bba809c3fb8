package snapshot

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Options control how the data directory is inventoried.
type Options struct {
	// Globs are recorded in the snapshot state as the patterns the walk
	// covers. They are informational; the walk visits everything that is
	// not skipped.
	Globs []string

	// SkipDirs are directory names that are never descended into,
	// e.g. pg_wal which is archived separately.
	SkipDirs []string

	// MissingOK are path.Match patterns for files that may legitimately
	// vanish between snapshot and upload.
	MissingOK []string

	// Files at or below EmbedMaxSize bytes are carried inline in the
	// manifest instead of being uploaded. Zero disables embedding.
	EmbedMaxSize int64

	// Files at or below BundleMaxSize bytes (and above EmbedMaxSize) are
	// grouped into shared bundle chunks instead of being content-addressed
	// individually. Zero disables bundling.
	BundleMaxSize int64
}

// Snapshotter walks a data directory and keeps the resulting file inventory
// current across a backup run. The embedded lock serializes a re-scan
// against the delta engine's post-upload metadata writebacks; the engine
// holds it for the duration of the upload phase.
type Snapshotter struct {
	mu   sync.Mutex
	root string
	opts Options

	// wmu serializes writebacks from concurrent upload workers while the
	// main lock is held by the run itself.
	wmu       sync.Mutex
	files     []*File
	byPath    map[string]*File
	byDigest  map[string][]*File
	emptyDirs []string
}

func New(root string, opts Options) *Snapshotter {
	if !strings.HasSuffix(root, "/") {
		root += "/"
	}
	if len(opts.Globs) == 0 {
		opts.Globs = []string{"**/*"}
	}

	return &Snapshotter{
		root:     root,
		opts:     opts,
		byPath:   make(map[string]*File),
		byDigest: make(map[string][]*File),
	}
}

func (s *Snapshotter) Lock()   { s.mu.Lock() }
func (s *Snapshotter) Unlock() { s.mu.Unlock() }

func (s *Snapshotter) Root() string {
	return s.root
}

// Snapshot walks the directory and rebuilds the inventory. The caller must
// hold the lock. Files unchanged since the previous pass (same size and
// mtime) keep their previously computed hexdigest instead of being re-read.
func (s *Snapshotter) Snapshot() (*Result, error) {
	start := time.Now()

	skip := make(map[string]bool)
	for _, dir := range s.opts.SkipDirs {
		skip[dir] = true
	}

	prev := s.byPath

	var files []*File
	var emptyDirs []string
	byPath := make(map[string]*File)
	byDigest := make(map[string][]*File)

	// WalkDir hands back the root without the trailing slash the prefix
	// trim relies on, so detect it by path: the root itself is never
	// skipped or recorded as an empty dir
	root := strings.TrimSuffix(s.root, "/")

	err := filepath.WalkDir(root, func(fpath string, entry fs.DirEntry, werr error) error {
		if werr != nil {
			// entries vanishing mid-walk are expected on a live data
			// directory
			if errors.Is(werr, fs.ErrNotExist) {
				return nil
			}
			return werr
		}
		if fpath == root {
			return nil
		}

		rpath := strings.TrimPrefix(fpath, s.root)

		if entry.IsDir() {
			if skip[entry.Name()] {
				return filepath.SkipDir
			}
			empty, err := isEmptyDir(fpath)
			if err == nil && empty {
				emptyDirs = append(emptyDirs, rpath)
			}
			return nil
		}
		if !entry.Type().IsRegular() {
			return nil
		}

		info, err := entry.Info()
		if err != nil {
			return nil
		}

		file := &File{
			RelativePath: rpath,
			FileSize:     info.Size(),
			MtimeNS:      info.ModTime().UnixNano(),
			MissingOK:    s.missingOK(rpath),
		}

		if err := s.classify(file, prev[rpath]); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return errors.Wrapf(err, "snapshotting %s", rpath)
		}

		files = append(files, file)
		byPath[rpath] = file
		if file.Hexdigest != "" {
			byDigest[file.Hexdigest] = append(byDigest[file.Hexdigest], file)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.files = files
	s.byPath = byPath
	s.byDigest = byDigest
	s.emptyDirs = emptyDirs

	log.WithFields(log.Fields{
		"files":      len(files),
		"empty_dirs": len(emptyDirs),
	}).Info("snapshot complete")

	return &Result{
		Start: start,
		End:   time.Now(),
		State: &State{
			RootGlobs: s.opts.Globs,
			Files:     files,
			EmptyDirs: emptyDirs,
		},
	}, nil
}

// classify decides the upload path for the file: inline content, bundling,
// or an individual content hash.
func (s *Snapshotter) classify(file *File, previous *File) error {
	if s.opts.EmbedMaxSize > 0 && file.FileSize <= s.opts.EmbedMaxSize {
		data, err := os.ReadFile(filepath.Join(s.root, file.RelativePath))
		if err != nil {
			return err
		}
		file.ContentB64 = base64.StdEncoding.EncodeToString(data)
		file.StoredFileSize = file.FileSize
		return nil
	}

	if s.opts.BundleMaxSize > 0 && file.FileSize <= s.opts.BundleMaxSize {
		file.ShouldBeBundled = true
		return nil
	}

	// unchanged since the last pass: keep the known digest and stored size
	if previous != nil && previous.Hexdigest != "" &&
		previous.FileSize == file.FileSize && previous.MtimeNS == file.MtimeNS {
		file.Hexdigest = previous.Hexdigest
		file.StoredFileSize = previous.StoredFileSize
		return nil
	}

	digest, err := hashFile(filepath.Join(s.root, file.RelativePath))
	if err != nil {
		return err
	}
	file.Hexdigest = digest
	return nil
}

func (s *Snapshotter) missingOK(rpath string) bool {
	for _, pattern := range s.opts.MissingOK {
		if ok, _ := path.Match(pattern, rpath); ok {
			return true
		}
	}
	return false
}

// FilesForDigest returns the current files known to carry the content hash.
func (s *Snapshotter) FilesForDigest(hexdigest string) []*File {
	s.wmu.Lock()
	defer s.wmu.Unlock()

	return s.byDigest[hexdigest]
}

// UpdateFileData writes post-upload metadata back onto the file record.
// The snapshotter lock must be held by the backup run around the whole
// upload phase; concurrent workers may call this for distinct paths.
func (s *Snapshotter) UpdateFileData(relativePath string, fileSize, storedFileSize int64, hexdigest string) error {
	s.wmu.Lock()
	defer s.wmu.Unlock()

	file, ok := s.byPath[relativePath]
	if !ok {
		return errors.Errorf("no such file in snapshot: %s", relativePath)
	}

	file.FileSize = fileSize
	file.StoredFileSize = storedFileSize

	if hexdigest != file.Hexdigest {
		file.Hexdigest = hexdigest
		s.byDigest[hexdigest] = append(s.byDigest[hexdigest], file)
	}

	return nil
}

func hashFile(fpath string) (string, error) {
	in, err := os.Open(fpath)
	if err != nil {
		return "", err
	}
	defer in.Close()

	h := sha256.New()
	if _, err := io.Copy(h, in); err != nil {
		return "", err
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

func isEmptyDir(fpath string) (bool, error) {
	f, err := os.Open(fpath)
	if err != nil {
		return false, err
	}
	defer f.Close()

	_, err = f.ReadDir(1)
	if err == io.EOF {
		return true, nil
	}
	return false, err
}
