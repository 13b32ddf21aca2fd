package sitehandler

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/clarus-app/clarus-web/internal/content"
	"github.com/clarus-app/clarus-web/internal/log"
)

var ErrInvalidOptions = errors.New("sitehandler: invalid options")

// SnapshotProvider is the slice of content.Manager the handler reads.
type SnapshotProvider interface {
	Get() (*content.Snapshot, bool)
}

type Options struct {
	Logger log.Logger

	// Content supplies the active snapshot on every request.
	Content SnapshotProvider

	// FallbackFS carries the maintenance page and the fallback 404.
	FallbackFS fs.FS

	// File names inside their FS roots. MaintenanceFile and
	// Fallback404File live in FallbackFS; Site404File is looked up in the
	// active snapshot first so a themed 404 wins.
	MaintenanceFile string // default "maintenance.html"
	Fallback404File string // default "404.html"
	Site404File     string // default "404.html"

	// Cache-Control by file class. Hashed assets are immutable; HTML
	// revalidates so a bundle swap shows up immediately.
	HTMLCacheControl  string // default "no-cache"
	AssetCacheControl string // default "public, max-age=31536000, immutable"
	OtherCacheControl string // default "public, max-age=3600"
}

func (o *Options) setDefaults() {
	if o.Logger == nil {
		o.Logger = log.Nop()
	}
	if o.MaintenanceFile == "" {
		o.MaintenanceFile = "maintenance.html"
	}
	if o.Fallback404File == "" {
		o.Fallback404File = "404.html"
	}
	if o.Site404File == "" {
		o.Site404File = "404.html"
	}
	if o.HTMLCacheControl == "" {
		o.HTMLCacheControl = "no-cache"
	}
	if o.AssetCacheControl == "" {
		o.AssetCacheControl = "public, max-age=31536000, immutable"
	}
	if o.OtherCacheControl == "" {
		o.OtherCacheControl = "public, max-age=3600"
	}
}

func (o *Options) validate() error {
	if o.Content == nil {
		return fmt.Errorf("%w: Content is nil", ErrInvalidOptions)
	}
	if o.FallbackFS == nil {
		return fmt.Errorf("%w: FallbackFS is nil", ErrInvalidOptions)
	}
	// a missing maintenance page is a packaging bug; fail at boot
	if _, err := fs.Stat(o.FallbackFS, o.MaintenanceFile); err != nil {
		return fmt.Errorf("%w: missing %q in fallback FS: %v", ErrInvalidOptions, o.MaintenanceFile, err)
	}
	// the fallback 404 is optional; plain text is the last resort
	return nil
}
