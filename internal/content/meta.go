package content

import "time"

// Source says where the active snapshot came from.
type Source string

const (
	SourceUnknown Source = "unknown"
	SourceSeed    Source = "seed"   // compiled-in fallback site
	SourceBundle  Source = "bundle" // verified S3 bundle
)

type Meta struct {
	Version    string    `json:"version,omitempty"`
	SHA256     string    `json:"sha256,omitempty"`
	BuiltAt    time.Time `json:"built_at,omitempty"`
	VerifiedAt time.Time `json:"verified_at,omitempty"`
	Signed     bool      `json:"signed,omitempty"`
	Source     Source    `json:"source,omitempty"`
}
