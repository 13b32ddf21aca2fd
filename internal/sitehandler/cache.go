package sitehandler

import (
	"path"
	"strings"
)

// cacheControlForFile picks the Cache-Control policy by extension. Extension-
// less paths get the HTML policy since they render pages.
func cacheControlForFile(name string, o Options) string {
	switch ext := strings.ToLower(path.Ext(name)); ext {
	case ".html":
		return o.HTMLCacheControl

	case ".css", ".js", ".mjs",
		".png", ".jpg", ".jpeg", ".webp", ".gif", ".svg", ".ico",
		".woff", ".woff2", ".ttf", ".eot",
		".map":
		return o.AssetCacheControl

	case "":
		return o.HTMLCacheControl

	default:
		return o.OtherCacheControl
	}
}
