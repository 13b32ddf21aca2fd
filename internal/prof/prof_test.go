package prof

import (
	"strings"
	"testing"

	"github.com/clarus-app/clarus-web/internal/log"
)

func TestStart_Disabled(t *testing.T) {
	stop, err := Start(t.Context(), Options{Enabled: false})
	if err != nil {
		t.Fatalf("disabled start must not error: %v", err)
	}
	if stop == nil {
		t.Fatal("stop func is nil")
	}
	// idempotent no-op
	stop()
	stop()
}

func TestStart_DisabledIgnoresOptions(t *testing.T) {
	stop, err := Start(t.Context(), Options{
		Enabled:              false,
		AuthToken:            "secret",
		TenantID:             "tenant",
		Tags:                 map[string]string{"env": "test"},
		ProfileMutexFraction: 999,
		BlockProfileRate:     999,
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	stop()
}

func TestStart_EmptyServerAddress(t *testing.T) {
	stop, err := Start(t.Context(), Options{Enabled: true, AppName: "clarus-web"})
	if err == nil {
		t.Fatal("empty server address must fail")
	}
	if !strings.Contains(err.Error(), "invalid server address") {
		t.Fatalf("err = %q", err)
	}
	// stop is usable even on error
	if stop == nil {
		t.Fatal("stop func is nil on error")
	}
	stop()
	stop()
}

func TestStart_WithContextLogger(t *testing.T) {
	ctx := log.WithContext(t.Context(), log.Nop())
	stop, err := Start(ctx, Options{Enabled: false})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	stop()
}
