package content

import (
	"encoding/json"
	"io/fs"
	"time"

	"github.com/clarus-app/clarus-web/internal/xerrors"
)

// ManifestPath is where the publisher writes the bundle manifest inside the
// archive.
const ManifestPath = "manifest.json"

// Manifest is the publisher-side description of a bundle: what release it
// is, what it contains, and the digest of the canonical file list.
type Manifest struct {
	Schema      string          `json:"schema"`
	Version     string          `json:"version"`
	ContentHash string          `json:"content_hash"`
	CreatedAt   time.Time       `json:"created_at"`
	Summary     ManifestSummary `json:"summary"`
	Files       []ManifestFile  `json:"files,omitempty"`
}

type ManifestSummary struct {
	TotalFiles int   `json:"total_files"`
	TotalSize  int64 `json:"total_size"`
}

type ManifestFile struct {
	Path   string `json:"path"`
	SHA256 string `json:"sha256"`
	Size   int64  `json:"size"`
}

// LoadManifest reads and parses manifest.json from an extracted bundle.
func LoadManifest(fsys fs.FS) (*Manifest, error) {
	data, err := fs.ReadFile(fsys, ManifestPath)
	if err != nil {
		return nil, xerrors.Wrapf(err, "read %s", ManifestPath)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, xerrors.Wrapf(err, "parse %s", ManifestPath)
	}
	return &m, nil
}
