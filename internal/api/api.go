// Package api mounts the rate-limited JSON routes under /api. Each route has
// its own per-endpoint quota keyed by client IP, so a burst against one
// endpoint never starves the others.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/clarus-app/clarus-web/internal/analysis"
	"github.com/clarus-app/clarus-web/internal/billing"
	"github.com/clarus-app/clarus-web/internal/httpmw"
	"github.com/clarus-app/clarus-web/internal/log"
	"github.com/clarus-app/clarus-web/internal/ratelimit"
	"github.com/clarus-app/clarus-web/internal/scrape"
	"github.com/clarus-app/clarus-web/internal/store"
)

// Per-endpoint quotas. Scraping and portal creation hit external systems, so
// they get the tightest budgets.
var (
	scrapeQuota       = ratelimit.Config{MaxRequests: 10, Window: time.Minute}
	usernameQuota     = ratelimit.Config{MaxRequests: 30, Window: time.Minute}
	subscriptionQuota = ratelimit.Config{MaxRequests: 60, Window: time.Minute}
	billingQuota      = ratelimit.Config{MaxRequests: 10, Window: time.Minute}
	videosQuota       = ratelimit.Config{MaxRequests: 60, Window: time.Minute}
)

const maxVideosPerPage = 100

// Store is the slice of the database layer the API reads.
type Store interface {
	UsernameTaken(ctx context.Context, username string) (bool, error)
	GetSubscription(ctx context.Context, userID string) (store.Subscription, error)
	ListVideos(ctx context.Context, page, perPage int) ([]store.Video, int, error)
}

// TitleScraper fetches a page title.
type TitleScraper interface {
	Title(ctx context.Context, rawURL string) (string, error)
}

type Options struct {
	Logger  log.Logger
	Limiter *ratelimit.Limiter
	Store   Store
	Scraper TitleScraper
	Billing billing.PortalClient

	CORS httpmw.CORSOptions

	// DisableRateLimits skips the per-endpoint quotas, for local dev.
	DisableRateLimits bool
}

type Handler struct {
	opts Options
}

func New(opts Options) *Handler {
	if opts.Logger == nil {
		opts.Logger = log.Nop()
	}
	return &Handler{opts: opts}
}

// Routes registers the API endpoints; it matches the router-group signature
// the public server expects.
func (h *Handler) Routes(r chi.Router) {
	if len(h.opts.CORS.AllowedOrigins) > 0 {
		r.Use(httpmw.CORS(h.opts.CORS))
	}

	r.With(h.limit("scrape-title", scrapeQuota)).
		Post("/scrape-title", h.scrapeTitle)
	r.With(h.limit("username-available", usernameQuota)).
		Get("/username-available", h.usernameAvailable)
	r.With(h.limit("subscription-status", subscriptionQuota)).
		Get("/subscription-status", h.subscriptionStatus)
	r.With(h.limit("billing-portal", billingQuota)).
		Post("/billing-portal", h.billingPortal)
	r.With(h.limit("videos", videosQuota)).
		Get("/videos", h.listVideos)
	r.Get("/languages", h.languages)
}

func (h *Handler) limit(endpoint string, cfg ratelimit.Config) func(http.Handler) http.Handler {
	if h.opts.DisableRateLimits || h.opts.Limiter == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return h.opts.Limiter.Middleware(endpoint, cfg)
}

type scrapeRequest struct {
	URL string `json:"url"`
}

func (h *Handler) scrapeTitle(w http.ResponseWriter, r *http.Request) {
	var req scrapeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.URL) == "" {
		writeError(w, http.StatusBadRequest, "body must be json with a url field")
		return
	}

	title, err := h.opts.Scraper.Title(r.Context(), req.URL)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]string{"title": title})
	case errors.Is(err, scrape.ErrInvalidURL):
		writeError(w, http.StatusBadRequest, "invalid url")
	case errors.Is(err, scrape.ErrNoTitle):
		writeError(w, http.StatusUnprocessableEntity, "no title found")
	default:
		h.opts.Logger.Warn(r.Context(), "title scrape failed", "url", req.URL, "error", err)
		writeError(w, http.StatusBadGateway, "could not fetch page")
	}
}

func (h *Handler) usernameAvailable(w http.ResponseWriter, r *http.Request) {
	username := store.NormalizeUsername(r.URL.Query().Get("username"))
	if username == "" {
		writeError(w, http.StatusBadRequest, "username query parameter is required")
		return
	}

	taken, err := h.opts.Store.UsernameTaken(r.Context(), username)
	if err != nil {
		h.opts.Logger.Error(r.Context(), err, "username lookup failed")
		writeError(w, http.StatusInternalServerError, "lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"username":  username,
		"available": !taken,
	})
}

type subscriptionResponse struct {
	Status           string `json:"status"`
	Plan             string `json:"plan"`
	CurrentPeriodEnd string `json:"current_period_end,omitempty"`
}

func (h *Handler) subscriptionStatus(w http.ResponseWriter, r *http.Request) {
	userID := userIDFrom(r)
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "missing user identity")
		return
	}

	sub, err := h.opts.Store.GetSubscription(r.Context(), userID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		// no row means free tier, not an error
		writeJSON(w, http.StatusOK, subscriptionResponse{Status: "none"})
	case err != nil:
		h.opts.Logger.Error(r.Context(), err, "subscription lookup failed")
		writeError(w, http.StatusInternalServerError, "lookup failed")
	default:
		writeJSON(w, http.StatusOK, subscriptionResponse{
			Status:           sub.Status,
			Plan:             sub.Plan,
			CurrentPeriodEnd: sub.CurrentPeriodEnd.UTC().Format(time.RFC3339),
		})
	}
}

type billingPortalRequest struct {
	ReturnURL string `json:"return_url"`
}

func (h *Handler) billingPortal(w http.ResponseWriter, r *http.Request) {
	userID := userIDFrom(r)
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "missing user identity")
		return
	}

	// body is optional; an empty return_url falls back to the provider default
	var req billingPortalRequest
	if r.Body != nil {
		json.NewDecoder(r.Body).Decode(&req)
	}

	sessionURL, err := h.opts.Billing.CreatePortalSession(r.Context(), userID, req.ReturnURL)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]string{"url": sessionURL})
	case errors.Is(err, billing.ErrNotConfigured):
		writeError(w, http.StatusServiceUnavailable, "billing is not available")
	default:
		h.opts.Logger.Error(r.Context(), err, "portal session failed", "user_id", userID)
		writeError(w, http.StatusBadGateway, "billing provider error")
	}
}

type videoJSON struct {
	Slug            string `json:"slug"`
	Title           string `json:"title"`
	Description     string `json:"description,omitempty"`
	ThumbnailURL    string `json:"thumbnail_url,omitempty"`
	DurationSeconds int    `json:"duration_seconds,omitempty"`
	PublishedAt     string `json:"published_at"`
}

type videosResponse struct {
	Videos  []videoJSON `json:"videos"`
	Page    int         `json:"page"`
	PerPage int         `json:"per_page"`
	Total   int         `json:"total"`
}

func (h *Handler) listVideos(w http.ResponseWriter, r *http.Request) {
	page := queryInt(r, "page", 1)
	perPage := queryInt(r, "per_page", 20)
	if page < 1 {
		writeError(w, http.StatusBadRequest, "page must be >= 1")
		return
	}
	if perPage < 1 || perPage > maxVideosPerPage {
		writeError(w, http.StatusBadRequest, "per_page must be between 1 and 100")
		return
	}

	videos, total, err := h.opts.Store.ListVideos(r.Context(), page, perPage)
	if err != nil {
		h.opts.Logger.Error(r.Context(), err, "video listing failed")
		writeError(w, http.StatusInternalServerError, "listing failed")
		return
	}

	resp := videosResponse{
		Videos:  make([]videoJSON, 0, len(videos)),
		Page:    page,
		PerPage: perPage,
		Total:   total,
	}
	for _, v := range videos {
		resp.Videos = append(resp.Videos, videoJSON{
			Slug:            v.Slug,
			Title:           v.Title,
			Description:     v.Description,
			ThumbnailURL:    v.ThumbnailURL,
			DurationSeconds: v.DurationSeconds,
			PublishedAt:     v.PublishedAt.UTC().Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) languages(w http.ResponseWriter, r *http.Request) {
	// static config, so let intermediaries hold on to it
	w.Header().Set("Cache-Control", "public, max-age=3600")
	writeJSON(w, http.StatusOK, map[string]any{"languages": analysis.Languages()})
}

// userIDFrom reads the identity the auth proxy injects. The header is
// stripped at the edge, so inside the mesh its presence is trusted.
func userIDFrom(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get("X-User-Id"))
}

func queryInt(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return -1
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
