// Package contenthttp exposes a read-only status endpoint describing the
// content bundle currently being served: its version, hash, origin, and
// manifest summary. The frontend footer and deploy tooling both read it to
// confirm which bundle is live.
package contenthttp

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/clarus-app/clarus-web/internal/content"
	"github.com/clarus-app/clarus-web/internal/log"
)

// SnapshotProvider yields the snapshot currently being served.
type SnapshotProvider interface {
	Get() (*content.Snapshot, bool)
}

type API struct {
	content SnapshotProvider
	logger  log.Logger
}

func NewAPI(provider SnapshotProvider, logger log.Logger) *API {
	if logger == nil {
		logger = log.Nop()
	}
	return &API{content: provider, logger: logger}
}

// RegisterRoutes attaches the content status endpoint. Paths are relative so
// the caller decides the mount point (the public server mounts under /api).
func (api *API) RegisterRoutes(r chi.Router) {
	r.Get("/content/status", api.handleStatus)
}

// StatusResponse describes the live content bundle.
type StatusResponse struct {
	Version     string         `json:"version,omitempty"`
	ContentHash string         `json:"content_hash,omitempty"`
	Source      content.Source `json:"source"`
	Signed      bool           `json:"signed"`
	LoadedAt    time.Time      `json:"loaded_at"`
	ServerTime  time.Time      `json:"server_time"`

	// from the bundle manifest, when one shipped with the bundle
	CreatedAt  *time.Time `json:"created_at,omitempty"`
	TotalFiles int        `json:"total_files,omitempty"`
	TotalSize  int64      `json:"total_size,omitempty"`
}

func (api *API) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	snap, ok := api.content.Get()
	if !ok {
		api.writeJSON(ctx, w, http.StatusServiceUnavailable,
			map[string]string{"error": "no content loaded"})
		return
	}

	resp := StatusResponse{
		Version:     snap.Meta.Version,
		ContentHash: snap.Meta.SHA256,
		Source:      snap.Meta.Source,
		Signed:      snap.Meta.Signed,
		LoadedAt:    snap.LoadedAt.UTC().Truncate(time.Second),
		ServerTime:  time.Now().UTC().Truncate(time.Second),
	}

	if m := snap.Manifest; m != nil {
		if m.Version != "" {
			resp.Version = m.Version
		}
		if m.ContentHash != "" {
			resp.ContentHash = m.ContentHash
		}
		if !m.CreatedAt.IsZero() {
			t := m.CreatedAt.UTC()
			resp.CreatedAt = &t
		}
		resp.TotalFiles = m.Summary.TotalFiles
		resp.TotalSize = m.Summary.TotalSize
	}

	api.logger.Debug(ctx, "served content status",
		"version", resp.Version,
		"hash", resp.ContentHash,
	)

	api.writeJSON(ctx, w, http.StatusOK, resp)
}

func (api *API) writeJSON(ctx context.Context, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		api.logger.Warn(ctx, "failed to encode content status", "error", err)
	}
}
