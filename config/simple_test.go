package simple

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/openercot/pinion/internal/manifest"
	"github.com/openercot/pinion/internal/setup"
	"github.com/openercot/pinion/platform"
)

func TestResolveUsesEmbeddedManifests(t *testing.T) {
	lock, err := Resolve(setup.Config{}, "", platform.X86_64Linux, nil)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if lock.Revision == "" {
		t.Error("expected a revision id in the lockfile")
	}
	if len(lock.Packages) == 0 {
		t.Error("expected resolved packages")
	}
}

func TestResolveRejectsUnknownPlatform(t *testing.T) {
	if _, err := Resolve(setup.Config{}, "", platform.Platform("riscv64-linux"), nil); err == nil {
		t.Fatal("expected error for unsupported platform")
	}
}

func TestListRevisionsReturnsAllSnapshots(t *testing.T) {
	revisions, err := ListRevisions(setup.Config{}, nil)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(revisions) != 4 {
		t.Fatalf("expected 4 embedded revisions, got %d", len(revisions))
	}
	for i := 1; i < len(revisions); i++ {
		if revisions[i-1].ID >= revisions[i].ID {
			t.Errorf("revisions not ordered: %s before %s", revisions[i-1].ID, revisions[i].ID)
		}
	}
}

func TestFormatUsesConfiguredCommand(t *testing.T) {
	restore := FormatCommand
	FormatCommand = "tr a-z A-Z <"
	t.Cleanup(func() { FormatCommand = restore })

	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "main.py"), []byte("import pypsa\n"), 0644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	result, err := Format(context.Background(), setup.Config{}, root, false, nil)
	if err != nil {
		t.Fatalf("format failed: %v", err)
	}
	if result.Changed != 1 {
		t.Errorf("expected one changed file, got %d", result.Changed)
	}

	again, err := Format(context.Background(), setup.Config{}, root, true, nil)
	if err != nil {
		t.Fatalf("expected clean check after formatting, got: %v", err)
	}
	if again.Changed != 0 {
		t.Errorf("expected no changes on second pass, got %d", again.Changed)
	}
}

func TestFormatRunsInsideFmtEnvironment(t *testing.T) {
	restore := FormatCommand
	// Emit the active profile instead of formatting, so the rewritten file
	// records which environment the command saw.
	FormatCommand = `printf '%s\n' "$PINION_PROFILE" # `
	t.Cleanup(func() { FormatCommand = restore })

	envDir := t.TempDir()
	record := "profile: fmt\nrevision: \"2024.11\"\nplatform: x86_64-linux\npackages: []\n"
	fmtDir := filepath.Join(envDir, manifest.ProfileFmt)
	if err := os.MkdirAll(fmtDir, 0755); err != nil {
		t.Fatalf("create environment dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(fmtDir, "env.yaml"), []byte(record), 0644); err != nil {
		t.Fatalf("write environment record: %v", err)
	}

	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "main.py"), []byte("import pypsa\n"), 0644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	cfg := setup.Config{EnvDir: envDir}
	if _, err := Format(context.Background(), cfg, root, false, nil); err != nil {
		t.Fatalf("format failed: %v", err)
	}

	got, err := os.ReadFile(filepath.Join(root, "main.py"))
	if err != nil {
		t.Fatalf("read formatted file: %v", err)
	}
	if string(got) != "fmt\n" {
		t.Errorf("formatter did not run inside the fmt environment: %q", got)
	}
}
