package delta

import (
	"fmt"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/studio1767/pgdelta/internal/manifest"
	"github.com/studio1767/pgdelta/internal/snapshot"
)

// BackupInfo is one previously completed backup as the remote listing
// reports it: a name under the site's basebackup prefix plus the format
// tag from its object metadata.
type BackupInfo struct {
	Name      string
	FormatTag string
}

// BackupLister enumerates the previously completed backups for a site.
type BackupLister func() ([]BackupInfo, error)

// ManifestFetcher fetches and parses the manifest stored at a backup path.
type ManifestFetcher func(path string) (*manifest.Manifest, []byte, error)

// BuildRemoteIndex scans prior delta backups and maps every content hash
// they carry to its file record. Non-delta and unrecognised formats are
// skipped: they are not candidates for dedup reuse. When the same hash
// appears in several backups the later one wins; content under a shared
// hash is identical by definition of content addressing.
func BuildRemoteIndex(prefix string, list BackupLister, fetch ManifestFetcher) (map[string]*snapshot.File, error) {
	backups, err := list()
	if err != nil {
		return nil, errors.Wrap(err, "listing remote backups")
	}

	index := make(map[string]*snapshot.File)
	for _, backup := range backups {
		if !ParseFormat(backup.FormatTag).IsDelta() {
			continue
		}

		path := fmt.Sprintf("%s/basebackup/%s", prefix, backup.Name)
		m, _, err := fetch(path)
		if err != nil {
			return nil, errors.Wrapf(err, "fetching manifest for %s", backup.Name)
		}

		for _, file := range m.SnapshotResult.State.Files {
			if file.Hexdigest == "" {
				continue
			}
			index[file.Hexdigest] = file
		}
	}

	log.WithFields(log.Fields{
		"backups": len(backups),
		"hashes":  len(index),
	}).Info("built remote dedup index")

	return index, nil
}
