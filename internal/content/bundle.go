package content

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"io/fs"
	"path"
	"strings"
	"testing/fstest"

	"github.com/clarus-app/clarus-web/internal/xerrors"
)

const (
	// maxBundleBytes caps the compressed bundle download.
	maxBundleBytes int64 = 50 << 20

	// maxFileBytes caps one extracted file; decompression-bomb guard.
	maxFileBytes int64 = 10 << 20

	// maxExtractBytes caps the whole extracted tree.
	maxExtractBytes int64 = 100 << 20
)

// readWithHash reads r fully (up to limit) while computing the SHA-256
// digest of what it read.
func readWithHash(r io.Reader, limit int64) ([]byte, string, error) {
	h := sha256.New()
	data, err := io.ReadAll(io.TeeReader(io.LimitReader(r, limit+1), h))
	if err != nil {
		return nil, "", xerrors.Wrap(err, "read bundle")
	}
	if int64(len(data)) > limit {
		return nil, "", xerrors.Newf("bundle exceeds %d bytes", limit)
	}
	return data, hex.EncodeToString(h.Sum(nil)), nil
}

// extractBundle unpacks a tar.gz into an in-memory filesystem. Only regular
// files and directories are allowed; any path that could land outside the
// bundle root aborts the whole extraction.
func extractBundle(data []byte) (fs.FS, error) {
	gr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, xerrors.Wrap(err, "open gzip")
	}
	defer gr.Close()

	mfs := make(fstest.MapFS)
	tr := tar.NewReader(gr)

	var total int64
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, xerrors.Wrap(err, "read tar header")
		}

		name := path.Clean(hdr.Name)
		if name == "." || name == "" {
			continue
		}
		if path.IsAbs(name) || strings.HasPrefix(name, "/") {
			return nil, xerrors.Newf("absolute path in archive: %s", hdr.Name)
		}
		if name == ".." || strings.HasPrefix(name, "../") || strings.Contains(name, "/../") {
			return nil, xerrors.Newf("path traversal in archive: %s", hdr.Name)
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			// MapFS infers directories

		case tar.TypeReg:
			if hdr.Size > maxFileBytes {
				return nil, xerrors.Newf("file %s exceeds %d bytes", name, maxFileBytes)
			}
			body, err := io.ReadAll(io.LimitReader(tr, maxFileBytes+1))
			if err != nil {
				return nil, xerrors.Wrapf(err, "read %s", name)
			}
			if int64(len(body)) > maxFileBytes {
				return nil, xerrors.Newf("file %s exceeds %d bytes", name, maxFileBytes)
			}

			total += int64(len(body))
			if total > maxExtractBytes {
				return nil, xerrors.Newf("extracted size exceeds %d bytes", maxExtractBytes)
			}

			mfs[name] = &fstest.MapFile{
				Data: body,
				Mode: hdr.FileInfo().Mode().Perm(),
			}

		default:
			// symlinks, devices, fifos: nothing a static site needs
			return nil, xerrors.Newf("unsupported entry type %d in archive: %s", hdr.Typeflag, name)
		}
	}

	return mfs, nil
}
