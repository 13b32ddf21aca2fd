package sitehandler

import (
	"io/fs"
	"path"
	"strings"

	"github.com/clarus-app/clarus-web/internal/pathutil"
)

// resolvePath maps a URL path to a file inside the snapshot FS.
//
// file is the relative path to serve; redirectTo, when non-empty, is the
// canonical URL the caller should 308 to; ok is false when nothing matches.
func resolvePath(urlPath string, fsys fs.FS) (file string, redirectTo string, ok bool) {
	p := urlPath
	if p == "" {
		p = "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}

	// reject anything ambiguous before touching the filesystem
	if strings.Contains(p, "\x00") || strings.Contains(p, "\\") || strings.Contains(p, "..") {
		return "", "", false
	}
	if pathutil.HasDotSegments(p) {
		return "", "", false
	}

	trailingSlash := strings.HasSuffix(p, "/")

	clean := path.Clean(p)
	if trailingSlash && clean != "/" {
		clean += "/"
	}

	// root serves index.html
	if clean == "/" {
		if existsFile(fsys, "index.html") {
			return "index.html", "", true
		}
		return "", "", false
	}

	// directory URL serves <dir>/index.html
	if strings.HasSuffix(clean, "/") {
		name := strings.TrimPrefix(clean, "/") + "index.html"
		if existsFile(fsys, name) {
			return name, "", true
		}
		return "", "", false
	}

	// an extension means a concrete file
	if path.Ext(clean) != "" {
		name := strings.TrimPrefix(clean, "/")
		if existsFile(fsys, name) {
			return name, "", true
		}
		return "", "", false
	}

	// pretty URL: /blog -> /blog/ when /blog/index.html exists
	if existsFile(fsys, strings.TrimPrefix(clean, "/")+"/index.html") {
		return "", clean + "/", true
	}

	return "", "", false
}

func existsFile(fsys fs.FS, name string) bool {
	if name == "" || !fs.ValidPath(name) {
		return false
	}
	info, err := fs.Stat(fsys, name)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
