package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/openercot/pinion/internal/manifest"
	"github.com/openercot/pinion/internal/store"
	"github.com/openercot/pinion/platform"
)

// stubRepository serves a single fixed revision.
type stubRepository struct {
	rev *manifest.Revision
}

func (r *stubRepository) Get(id string) (*manifest.Revision, error) {
	if r.rev != nil && r.rev.ID == id {
		return r.rev, nil
	}
	return nil, fmt.Errorf("revision %s: %w", id, manifest.ErrRevisionNotFound)
}

func (r *stubRepository) Latest() (*manifest.Revision, error) {
	if r.rev == nil {
		return nil, manifest.ErrRevisionNotFound
	}
	return r.rev, nil
}

func (r *stubRepository) ListAll() ([]*manifest.Revision, error) {
	if r.rev == nil {
		return nil, nil
	}
	return []*manifest.Revision{r.rev}, nil
}

// localRevision rewrites every source in the embedded revision to a local
// file so nothing touches the network.
func localRevision(t *testing.T) *manifest.Revision {
	t.Helper()

	rev, err := manifest.NewEmbeddedRepository().Latest()
	if err != nil {
		t.Fatalf("load embedded revision: %v", err)
	}

	srcDir := t.TempDir()
	materialize := func(name, version, discriminator string) (string, manifest.Hash) {
		content := []byte(name + "-" + version + "-" + discriminator)
		path := filepath.Join(srcDir, fmt.Sprintf("%s-%s-%s", name, version, discriminator))
		if err := os.WriteFile(path, content, 0o644); err != nil {
			t.Fatalf("write artifact: %v", err)
		}
		return "file://" + path, manifest.HashBytes(content)
	}

	for i := range rev.Packages {
		pkg := &rev.Packages[i]
		if pkg.PlatformSplit() {
			for p, variant := range pkg.Variants {
				variant.URL, variant.Hash = materialize(pkg.Name, pkg.Version, p.String())
				pkg.Variants[p] = variant
			}
			continue
		}
		pkg.URL, pkg.Hash = materialize(pkg.Name, pkg.Version, "any")
	}
	return rev
}

func newEnvironmentService(t *testing.T, rev *manifest.Revision) *EnvironmentService {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "store"), nil)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	return &EnvironmentService{
		Manifests: &stubRepository{rev: rev},
		Store:     s,
		EnvDir:    filepath.Join(t.TempDir(), "envs"),
	}
}

func TestEnvironmentServiceBuild(t *testing.T) {
	rev := localRevision(t)
	svc := newEnvironmentService(t, rev)

	environment, err := svc.Build(context.Background(), "", platform.X86_64Linux, manifest.ProfileDefault)
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if environment.Revision != rev.ID {
		t.Errorf("expected revision %s, got %s", rev.ID, environment.Revision)
	}
	if len(environment.Packages) == 0 {
		t.Fatal("expected packages in the composed environment")
	}
	for _, pkg := range environment.Packages {
		if _, err := os.Stat(pkg.StorePath); err != nil {
			t.Errorf("store path missing for %s: %v", pkg.Name, err)
		}
	}

	violations, err := svc.Verify(context.Background())
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if len(violations) != 0 {
		t.Errorf("expected clean store, got %d violations", len(violations))
	}
}

func TestEnvironmentServiceResolveUnknownRevision(t *testing.T) {
	svc := newEnvironmentService(t, localRevision(t))
	if _, err := svc.Resolve("1999.01", platform.X86_64Linux); err == nil {
		t.Fatal("expected error for unknown revision")
	}
}

func TestWorkflowServiceRunsTarget(t *testing.T) {
	dir := t.TempDir()
	wf := `
targets:
  - name: greet
    output: out/greeting.txt
    command: 'printf "hello %s\n" "$PINION_TEST_NAME" > out/greeting.txt'
`
	wfPath := filepath.Join(dir, "workflow.yaml")
	if err := os.WriteFile(wfPath, []byte(wf), 0644); err != nil {
		t.Fatalf("write workflow: %v", err)
	}

	svc := &WorkflowService{
		WorkflowFile: wfPath,
		WorkDir:      dir,
		Secrets:      map[string]string{"PINION_TEST_NAME": "ercot"},
	}

	result, err := svc.Run(context.Background(), "greet")
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if got := result.State("greet"); got != "completed" {
		t.Errorf("expected completed state, got %s", got)
	}

	content, err := os.ReadFile(filepath.Join(dir, "out", "greeting.txt"))
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if strings.TrimSpace(string(content)) != "hello ercot" {
		t.Errorf("unexpected output: %q", content)
	}
}

func TestWorkflowServiceMissingSecrets(t *testing.T) {
	svc := &WorkflowService{Secrets: map[string]string{"EIA_API_KEY": "x"}}
	missing := svc.MissingSecrets("EIA_API_KEY", "PINION_TEST_ABSENT_KEY")
	if len(missing) != 1 || missing[0] != "PINION_TEST_ABSENT_KEY" {
		t.Errorf("unexpected missing set: %v", missing)
	}
}
