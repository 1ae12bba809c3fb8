package snapshot

import "time"

// File is one inventoried entry of the data directory. Exactly one upload
// path applies to it: content-addressed by Hexdigest, embedded inline via
// ContentB64, or grouped into a bundle chunk when ShouldBeBundled is set.
type File struct {
	RelativePath    string `json:"relative_path"`
	FileSize        int64  `json:"file_size"`
	StoredFileSize  int64  `json:"stored_file_size"`
	MtimeNS         int64  `json:"mtime_ns"`
	Hexdigest       string `json:"hexdigest"`
	ContentB64      string `json:"content_b64,omitempty"`
	ShouldBeBundled bool   `json:"should_be_bundled,omitempty"`
	MissingOK       bool   `json:"missing_ok,omitempty"`
}

// State is the full inventory produced by one snapshot pass. Files keeps
// the walk order: bundle chunk membership depends on it.
type State struct {
	RootGlobs []string `json:"root_globs"`
	Files     []*File  `json:"files"`
	EmptyDirs []string `json:"empty_dirs,omitempty"`
}

// Result is the immutable view of a completed snapshot pass handed to the
// delta engine.
type Result struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	State *State    `json:"state"`
}
