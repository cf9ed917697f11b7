package workspace

import (
	"path/filepath"
	"testing"
	"time"
)

func TestWatcherCachedListing(t *testing.T) {
	ws := New(filepath.Join(t.TempDir(), "ws"))
	if err := ws.Init(); err != nil {
		t.Fatal(err)
	}
	watcher, err := ws.StartWatcher()
	if err != nil {
		t.Skipf("watcher unavailable on this platform: %v", err)
	}
	defer watcher.Stop()

	first, err := ws.List("")
	if err != nil {
		t.Fatal(err)
	}
	if len(first) == 0 {
		t.Fatal("expected template entries")
	}

	// A new file must eventually appear in the listing once the change
	// event invalidates the cache.
	if err := ws.Write("cache/new_page.md", "body", false); err != nil {
		t.Fatal(err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for {
		entries, err := ws.List("")
		if err != nil {
			t.Fatal(err)
		}
		found := false
		for _, e := range entries {
			if e.Path == "cache/new_page.md" {
				found = true
			}
		}
		if found {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("new file never appeared in cached listing")
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestWatcherStopDetaches(t *testing.T) {
	ws := New(filepath.Join(t.TempDir(), "ws"))
	if err := ws.Init(); err != nil {
		t.Fatal(err)
	}
	watcher, err := ws.StartWatcher()
	if err != nil {
		t.Skipf("watcher unavailable on this platform: %v", err)
	}
	watcher.Stop()
	if ws.activeWatcher() != nil {
		t.Error("watcher still attached after Stop")
	}
	// Listing falls back to a direct walk.
	if _, err := ws.List(""); err != nil {
		t.Fatal(err)
	}
}
