package httpmw

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func resolveIP(t *testing.T, remoteAddr, xff string, hops int) (ip string, xffAfter string) {
	t.Helper()

	var got string
	var hdr string
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = ClientIPFromContext(r.Context())
		hdr = r.Header.Get("X-Forwarded-For")
	})

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = remoteAddr
	if xff != "" {
		r.Header.Set("X-Forwarded-For", xff)
	}

	ClientIPWithOptions(ClientIPOptions{TrustedHops: hops})(inner).
		ServeHTTP(httptest.NewRecorder(), r)
	return got, hdr
}

func TestClientIP_DirectConnection(t *testing.T) {
	ip, _ := resolveIP(t, "203.0.113.7:54321", "", 0)
	if ip != "203.0.113.7" {
		t.Fatalf("ip = %q, want 203.0.113.7", ip)
	}
}

func TestClientIP_PublicPeerIgnoresForwardedFor(t *testing.T) {
	ip, xff := resolveIP(t, "203.0.113.7:54321", "198.51.100.9", 1)
	if ip != "203.0.113.7" {
		t.Fatalf("ip = %q, want the direct peer (header spoofable)", ip)
	}
	if xff != "" {
		t.Fatal("X-Forwarded-For should be stripped on the distrust path")
	}
}

func TestClientIP_ZeroHopsIgnoresForwardedFor(t *testing.T) {
	ip, xff := resolveIP(t, "10.0.0.5:443", "198.51.100.9", 0)
	if ip != "10.0.0.5" {
		t.Fatalf("ip = %q, want 10.0.0.5", ip)
	}
	if xff != "" {
		t.Fatal("X-Forwarded-For should be stripped when no proxies are trusted")
	}
}

func TestClientIP_SingleTrustedProxy(t *testing.T) {
	ip, _ := resolveIP(t, "10.0.0.5:443", "198.51.100.9", 1)
	if ip != "198.51.100.9" {
		t.Fatalf("ip = %q, want the rightmost XFF entry", ip)
	}
}

func TestClientIP_TwoTrustedProxies(t *testing.T) {
	// client, CDN-seen address, then the LB appended nothing extra
	ip, _ := resolveIP(t, "10.0.0.5:443", "198.51.100.9, 192.0.2.44", 2)
	if ip != "198.51.100.9" {
		t.Fatalf("ip = %q, want the second-from-end entry", ip)
	}
}

func TestClientIP_FewerEntriesThanHopsFailsClosed(t *testing.T) {
	ip, xff := resolveIP(t, "10.0.0.5:443", "198.51.100.9", 3)
	if ip != "10.0.0.5" {
		t.Fatalf("ip = %q, want the direct peer on short XFF chains", ip)
	}
	if xff != "" {
		t.Fatal("X-Forwarded-For should be stripped when the chain is short")
	}
}

func TestClientIP_GarbageForwardedForEntry(t *testing.T) {
	ip, _ := resolveIP(t, "10.0.0.5:443", "not-an-ip", 1)
	if ip != "10.0.0.5" {
		t.Fatalf("ip = %q, want fallback to peer on unparseable entry", ip)
	}
}

func TestClientIP_MalformedRemoteAddr(t *testing.T) {
	ip, _ := resolveIP(t, "garbage", "", 0)
	if ip != "garbage" {
		t.Fatalf("ip = %q, want raw RemoteAddr when it has no port", ip)
	}
}

func TestClientIP_ContextRoundTrip(t *testing.T) {
	ctx := WithClientIP(t.Context(), "192.0.2.1")
	if got := ClientIPFromContext(ctx); got != "192.0.2.1" {
		t.Fatalf("got %q", got)
	}
	if got := ClientIPFromContext(t.Context()); got != "" {
		t.Fatalf("empty context should yield empty IP, got %q", got)
	}
	// empty IP is not stored
	ctx = WithClientIP(t.Context(), "")
	if got := ClientIPFromContext(ctx); got != "" {
		t.Fatalf("got %q", got)
	}
}
