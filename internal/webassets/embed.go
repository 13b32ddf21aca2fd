// Package webassets embeds the two built-in content trees: a minimal seed
// site served until the first verified bundle arrives, and the fallback pages
// (maintenance, 404) the site handler uses when nothing else can be served.
package webassets

import (
	"embed"
	"fmt"
	"io/fs"
)

//go:embed fallback seed
var embedded embed.FS

func FallbackFS() fs.FS {
	sub, err := fs.Sub(embedded, "fallback")
	if err != nil {
		// embed guarantees the directory exists at compile time
		panic(fmt.Errorf("webassets: fallback subfs: %w", err))
	}
	return sub
}

// SeedSiteFS returns the embedded seed site, or false when the seed tree is
// a placeholder without an index.html.
func SeedSiteFS() (fs.FS, bool) {
	sub, err := fs.Sub(embedded, "seed")
	if err != nil {
		return nil, false
	}
	if _, err := fs.Stat(sub, "index.html"); err != nil {
		return nil, false
	}
	return sub, true
}
