package manifest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	pkgerrors "github.com/pkg/errors"

	"github.com/studio1767/pgdelta/internal/s3io"
	"github.com/studio1767/pgdelta/internal/snapshot"
)

type ErrNoSuchManifest struct {
	msg string
}

func (e *ErrNoSuchManifest) Error() string {
	return e.msg
}

// Manifest records everything needed to restore or deduplicate against a
// completed delta base backup.
type Manifest struct {
	Site           string           `json:"site,omitempty"`
	SnapshotResult *snapshot.Result `json:"snapshot_result"`
}

// envelope is the wire shape: the manifest nests under a "manifest" key so
// other backup metadata can ride alongside it.
type envelope struct {
	Manifest *Manifest `json:"manifest"`
}

// Download fetches and parses the manifest stored at the backup's path,
// returning the parsed manifest plus the raw payload bytes.
func Download(client s3io.Client, path string) (*Manifest, []byte, error) {
	data := bytes.NewBuffer(nil)

	_, err := client.Download(path, data)
	if err != nil {
		var nosuch *s3io.ErrNoSuchObject
		if errors.As(err, &nosuch) {
			return nil, nil, &ErrNoSuchManifest{
				msg: fmt.Sprintf("No manifest found at: %s", path),
			}
		}
		return nil, nil, err
	}

	var env envelope
	if err := json.Unmarshal(data.Bytes(), &env); err != nil {
		return nil, nil, pkgerrors.Wrapf(err, "parsing manifest at %s", path)
	}
	if env.Manifest == nil {
		return nil, nil, pkgerrors.Errorf("manifest missing from metadata at %s", path)
	}

	return env.Manifest, data.Bytes(), nil
}

// Upload serializes the manifest and stores it compressed and encrypted at
// the key, tagging the object with the backup format so the remote listing
// can recognise delta backups without fetching them.
func Upload(client s3io.Client, m *Manifest, key string, format string) error {
	raw, err := json.Marshal(envelope{Manifest: m})
	if err != nil {
		return err
	}

	meta := map[string]string{
		"format": format,
	}

	_, err = client.UploadWithMetadata(key, bytes.NewReader(raw), true, meta)
	return err
}
