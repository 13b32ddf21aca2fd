package content

import (
	"io/fs"
	"time"
)

// Snapshot is one immutable view of the site: a read-only filesystem plus
// the metadata describing where it came from.
type Snapshot struct {
	FS       fs.FS
	Meta     Meta
	Manifest *Manifest
	LoadedAt time.Time
}
