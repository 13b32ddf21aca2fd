package content

import (
	"io/fs"

	"github.com/clarus-app/clarus-web/internal/xerrors"
)

// ValidationOptions controls the checks a bundle must pass before the
// watcher will serve it.
type ValidationOptions struct {
	// MinFiles rejects bundles with fewer files; 0 disables the check.
	MinFiles int

	// RequireManifest fails bundles whose manifest.json is missing or
	// unparseable.
	RequireManifest bool
}

// DefaultValidationOptions is what production runs with.
func DefaultValidationOptions() ValidationOptions {
	return ValidationOptions{
		MinFiles:        10,
		RequireManifest: true,
	}
}

// ValidateSnapshot sanity-checks a loaded bundle so a broken publish can
// never replace working content. Returns the first failure.
func ValidateSnapshot(snap *Snapshot, opts ValidationOptions) error {
	if snap == nil {
		return xerrors.New("validate: snapshot is nil")
	}
	if snap.FS == nil {
		return xerrors.New("validate: snapshot has nil filesystem")
	}

	if err := checkIndexHTML(snap.FS); err != nil {
		return err
	}

	if opts.MinFiles > 0 {
		count, err := countFiles(snap.FS)
		if err != nil {
			return xerrors.Wrap(err, "validate: counting files")
		}
		if count < opts.MinFiles {
			return xerrors.Newf("validate: bundle has %d files, minimum is %d", count, opts.MinFiles)
		}
	}

	if opts.RequireManifest && snap.Manifest == nil {
		return xerrors.New("validate: manifest.json is required but missing")
	}

	return nil
}

// checkIndexHTML requires a non-empty index.html; a site without a landing
// page is never worth swapping to.
func checkIndexHTML(fsys fs.FS) error {
	f, err := fsys.Open("index.html")
	if err != nil {
		return xerrors.Wrap(err, "validate: index.html not found")
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return xerrors.Wrap(err, "validate: cannot stat index.html")
	}
	if info.Size() == 0 {
		return xerrors.New("validate: index.html is empty")
	}
	return nil
}

func countFiles(fsys fs.FS) (int, error) {
	count := 0
	err := fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			count++
		}
		return nil
	})
	return count, err
}
