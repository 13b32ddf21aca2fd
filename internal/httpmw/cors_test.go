package httpmw

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func corsRequest(h http.Handler, method, origin string) *httptest.ResponseRecorder {
	r := httptest.NewRequest(method, "/api/videos", nil)
	if origin != "" {
		r.Header.Set("Origin", origin)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	return rec
}

func newCORSHandler(origins ...string) http.Handler {
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return CORS(CORSOptions{AllowedOrigins: origins})(inner)
}

func TestCORS_NoOriginHeaderPassesThrough(t *testing.T) {
	rec := corsRequest(newCORSHandler("https://app.clarus.dev"), http.MethodGet, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Fatal("same-origin request must not get CORS headers")
	}
}

func TestCORS_AllowedOrigin(t *testing.T) {
	rec := corsRequest(newCORSHandler("https://app.clarus.dev"), http.MethodGet, "https://app.clarus.dev")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://app.clarus.dev" {
		t.Fatalf("Allow-Origin = %q", got)
	}
	if rec.Header().Get("Vary") != "Origin" {
		t.Fatal("Vary: Origin missing")
	}
	if rec.Header().Get("Access-Control-Expose-Headers") == "" {
		t.Fatal("rate-limit headers must be exposed to scripts")
	}
}

func TestCORS_DisallowedOriginGetsNoHeaders(t *testing.T) {
	rec := corsRequest(newCORSHandler("https://app.clarus.dev"), http.MethodGet, "https://evil.example")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d (non-preflight still serves, browser blocks the read)", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Fatal("disallowed origin must not get Allow-Origin")
	}
}

func TestCORS_PreflightAllowed(t *testing.T) {
	rec := corsRequest(newCORSHandler("https://app.clarus.dev"), http.MethodOptions, "https://app.clarus.dev")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Methods") == "" {
		t.Fatal("preflight must list allowed methods")
	}
	if rec.Header().Get("Access-Control-Max-Age") != "600" {
		t.Fatalf("Max-Age = %q", rec.Header().Get("Access-Control-Max-Age"))
	}
}

func TestCORS_PreflightDisallowed(t *testing.T) {
	rec := corsRequest(newCORSHandler("https://app.clarus.dev"), http.MethodOptions, "https://evil.example")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
}

func TestCORS_EmptyAllowlistMeansSameOriginOnly(t *testing.T) {
	rec := corsRequest(newCORSHandler(), http.MethodGet, "https://app.clarus.dev")
	if rec.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Fatal("empty allowlist must never emit CORS headers")
	}
}
