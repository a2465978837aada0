package lifecycle

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/mittelgard/clientforge/internal/config"
	"github.com/mittelgard/clientforge/internal/integrity"
	"github.com/mittelgard/clientforge/internal/patch"
	"github.com/mittelgard/clientforge/internal/process"
	"github.com/mittelgard/clientforge/internal/testutil"
)

type fakeLauncher struct {
	mu       sync.Mutex
	launched int
	stopped  int
}

func (f *fakeLauncher) Launch(ctx context.Context, ds *config.Dataset) (*process.Handle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.launched++
	return process.NewHandle(fmt.Sprintf("instance-%d", f.launched), int32(1000+f.launched), func(ctx context.Context) error {
		f.mu.Lock()
		f.stopped++
		f.mu.Unlock()
		return nil
	}), nil
}

func clientImage() []byte {
	img := make([]byte, 64)
	for i := range img {
		img[i] = byte(i)
	}
	return img
}

func setup(t *testing.T) (*Orchestrator, *config.Dataset, *fakeLauncher) {
	t.Helper()

	cfg := &config.Config{DistDir: t.TempDir(), Wine: "wine"}
	ds := testutil.NewDataset(t, "midgard", clientImage())
	ds.Build = "B1"
	ds.Patches = []string{"core"}

	catalog, err := patch.NewCatalog(map[string][]patch.Category{
		"B1": {{Name: "core", Edits: []patch.Edit{{Address: 16, Values: []byte{0xAB, 0xCD}}}}},
	})
	if err != nil {
		t.Fatalf("NewCatalog() error: %v", err)
	}

	engine := patch.NewEngine(patch.Options{
		Catalog:     catalog,
		ModulePath:  cfg.ExtensionModulePath(),
		CleanDigest: integrity.Digest(clientImage()),
	})

	launcher := &fakeLauncher{}
	orch := NewWith(cfg, engine, process.NewRegistry(launcher))
	return orch, ds, launcher
}

func TestStartup(t *testing.T) {
	orch, ds, launcher := setup(t)

	// An add-on in the distribution tree and a stale cache.
	addonFile := filepath.Join(orch.cfg.AddonDistDir(), "QuestHelper", "QuestHelper.toc")
	if err := os.MkdirAll(filepath.Dir(addonFile), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(addonFile, []byte("## Title: QuestHelper"), 0644); err != nil {
		t.Fatalf("write addon: %v", err)
	}
	if err := os.MkdirAll(ds.CacheDir(), 0755); err != nil {
		t.Fatalf("mkdir cache: %v", err)
	}

	// A client from a previous run.
	if err := orch.Registry().Start(context.Background(), ds, 1); err != nil {
		t.Fatalf("pre-start error: %v", err)
	}

	if err := orch.Startup(context.Background(), ds, 2, "203.0.113.7"); err != nil {
		t.Fatalf("Startup() error: %v", err)
	}

	if launcher.stopped != 1 {
		t.Errorf("stopped = %d, want 1 (the pre-existing client)", launcher.stopped)
	}
	if orch.Registry().Count(ds.Name) != 2 {
		t.Errorf("tracked clients = %d, want 2", orch.Registry().Count(ds.Name))
	}

	patched, err := os.ReadFile(ds.ExePath())
	if err != nil {
		t.Fatalf("read executable: %v", err)
	}
	if patched[16] != 0xAB || patched[17] != 0xCD {
		t.Error("executable not patched during startup")
	}

	installed := filepath.Join(ds.AddonDir(), "QuestHelper", "QuestHelper.toc")
	if _, err := os.Stat(installed); err != nil {
		t.Errorf("addon not installed: %v", err)
	}
	if _, err := os.Stat(ds.CacheDir()); !os.IsNotExist(err) {
		t.Error("cache not cleared")
	}

	realmlist, err := os.ReadFile(ds.RealmlistPath())
	if err != nil {
		t.Fatalf("read realmlist: %v", err)
	}
	if string(realmlist) != "set realmlist 203.0.113.7\n" {
		t.Errorf("realmlist = %q", realmlist)
	}
}

func TestStartupFailFast(t *testing.T) {
	orch, ds, launcher := setup(t)

	// Extension enabled but no module in the distribution tree: the patch
	// step fails and nothing after it runs.
	ds.Extension = true

	if err := orch.Startup(context.Background(), ds, 2, "203.0.113.7"); err == nil {
		t.Fatal("expected startup to fail")
	}
	if launcher.launched != 0 {
		t.Errorf("launched = %d, want 0 after aborted startup", launcher.launched)
	}
	if _, err := os.Stat(ds.RealmlistPath()); !os.IsNotExist(err) {
		t.Error("realmlist written although an earlier step failed")
	}
}
