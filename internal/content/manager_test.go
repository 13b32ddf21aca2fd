package content

import (
	"sync"
	"testing"
	"testing/fstest"
	"time"
)

func snapshotWithFS(hash, version string) Snapshot {
	return Snapshot{
		FS:   fstest.MapFS{"index.html": &fstest.MapFile{Data: []byte("x")}},
		Meta: Meta{SHA256: hash, Version: version, Source: SourceBundle},
	}
}

func TestManager_EmptyUntilSet(t *testing.T) {
	m := NewManager()

	if _, ok := m.Get(); ok {
		t.Fatal("fresh manager must report no snapshot")
	}
	if m.ContentVersion() != "" || m.ContentHash() != "" {
		t.Fatal("fresh manager must report empty identifiers")
	}
	if m.Source() != SourceUnknown {
		t.Fatalf("Source = %q", m.Source())
	}
	if !m.LoadedAt().IsZero() {
		t.Fatal("LoadedAt must be zero before first Set")
	}
	if m.ReadyErr() == nil {
		t.Fatal("ReadyErr must fail with no snapshot")
	}
}

func TestManager_SetAndGet(t *testing.T) {
	m := NewManager()
	m.Set(snapshotWithFS("hash-1", "v1"))

	snap, ok := m.Get()
	if !ok {
		t.Fatal("Get after Set")
	}
	if snap.Meta.SHA256 != "hash-1" {
		t.Fatalf("hash = %q", snap.Meta.SHA256)
	}
	if m.LoadedAt().IsZero() {
		t.Fatal("Set must stamp LoadedAt")
	}
	if m.ReadyErr() != nil {
		t.Fatalf("ReadyErr = %v", m.ReadyErr())
	}
}

func TestManager_NilFSNotReady(t *testing.T) {
	m := NewManager()
	m.Set(Snapshot{Meta: Meta{SHA256: "h"}})

	if _, ok := m.Get(); ok {
		t.Fatal("snapshot without FS must not count as active")
	}
}

func TestManager_ManifestVersionWins(t *testing.T) {
	m := NewManager()
	snap := snapshotWithFS("h", "meta-version")
	snap.Manifest = &Manifest{Version: "manifest-version"}
	m.Set(snap)

	if got := m.ContentVersion(); got != "manifest-version" {
		t.Fatalf("ContentVersion = %q", got)
	}
}

func TestManager_PreservesExplicitLoadedAt(t *testing.T) {
	m := NewManager()
	at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	snap := snapshotWithFS("h", "v")
	snap.LoadedAt = at
	m.Set(snap)

	if !m.LoadedAt().Equal(at) {
		t.Fatalf("LoadedAt = %v", m.LoadedAt())
	}
}

func TestManager_ConcurrentSwapAndRead(t *testing.T) {
	m := NewManager()
	m.Set(snapshotWithFS("initial", "v0"))

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 500; j++ {
				m.Set(snapshotWithFS("swap", "v1"))
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 500; j++ {
				if snap, ok := m.Get(); ok && snap.Meta.SHA256 == "" {
					t.Error("observed torn snapshot")
					return
				}
			}
		}()
	}
	wg.Wait()
}
