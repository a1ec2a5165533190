package manifest

import (
	"strings"
	"testing"

	"github.com/openercot/pinion/platform"
)

const testRevisionYAML = `
id: "2025.01"
description: test snapshot
packages:
  - name: python
    version: "3.11.9"
    url: https://example.org/python-3.11.9.tar.xz
    hash: sha256:aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa
  - name: numpy
    version: "1.26.4"
    url: https://example.org/numpy-1.26.4.tar.gz
    hash: sha256:bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb
    depends: [python]
  - name: highspy
    version: "1.7.2"
    variants:
      x86_64-linux:
        url: https://example.org/highspy-x86_64-linux.whl
        hash: sha256:cccccccccccccccccccccccccccccccccccccccccccccccccccccccccccccc11
      aarch64-linux:
        url: https://example.org/highspy-aarch64-linux.whl
        hash: sha256:cccccccccccccccccccccccccccccccccccccccccccccccccccccccccccccc22
      x86_64-darwin:
        url: https://example.org/highspy-x86_64-darwin.whl
        hash: sha256:cccccccccccccccccccccccccccccccccccccccccccccccccccccccccccccc33
      aarch64-darwin:
        url: https://example.org/highspy-aarch64-darwin.whl
        hash: sha256:cccccccccccccccccccccccccccccccccccccccccccccccccccccccccccccc44
    depends: [python]
    propagates: [numpy]
profiles:
  default:
    packages: [highspy]
  fmt:
    packages: [numpy]
`

func TestDecodeValidRevision(t *testing.T) {
	rev, err := DecodeBytes([]byte(testRevisionYAML))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if rev.ID != "2025.01" {
		t.Errorf("got ID %s, want 2025.01", rev.ID)
	}
	if len(rev.Packages) != 3 {
		t.Errorf("got %d packages, want 3", len(rev.Packages))
	}

	highspy, ok := rev.Package("highspy")
	if !ok {
		t.Fatal("highspy not found")
	}
	if !highspy.PlatformSplit() {
		t.Error("highspy should be platform-split")
	}
	if len(highspy.Variants) != len(platform.Supported()) {
		t.Errorf("got %d variants, want %d", len(highspy.Variants), len(platform.Supported()))
	}
}

func TestDecodeRejectsUnknownFields(t *testing.T) {
	mutated := strings.Replace(testRevisionYAML, "description:", "descriptor:", 1)
	if _, err := DecodeBytes([]byte(mutated)); err == nil {
		t.Fatal("decode accepted unknown field")
	}
}

func TestValidateRejectsMissingVariant(t *testing.T) {
	mutated := strings.Replace(testRevisionYAML, `      aarch64-darwin:
        url: https://example.org/highspy-aarch64-darwin.whl
        hash: sha256:cccccccccccccccccccccccccccccccccccccccccccccccccccccccccccccc44
`, "", 1)
	_, err := DecodeBytes([]byte(mutated))
	if err == nil {
		t.Fatal("decode accepted incomplete variant map")
	}
	if !strings.Contains(err.Error(), "aarch64-darwin") {
		t.Errorf("error does not name the missing platform: %v", err)
	}
}

func TestValidateRejectsUnknownDependency(t *testing.T) {
	mutated := strings.Replace(testRevisionYAML, "depends: [python]\n    propagates: [numpy]", "depends: [fortran]", 1)
	if _, err := DecodeBytes([]byte(mutated)); err == nil {
		t.Fatal("decode accepted unknown dependency")
	}
}

func TestDecodeCanonicalizesUppercaseHash(t *testing.T) {
	lower := "sha256:bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
	mutated := strings.Replace(testRevisionYAML, lower, strings.ToUpper(lower), 1)

	rev, err := DecodeBytes([]byte(mutated))
	if err != nil {
		t.Fatalf("decode rejected uppercase digest: %v", err)
	}
	numpy, ok := rev.Package("numpy")
	if !ok {
		t.Fatal("numpy not found")
	}
	if string(numpy.Hash) != lower {
		t.Errorf("digest not canonicalized: %s", numpy.Hash)
	}
}

func TestValidateRejectsMalformedHash(t *testing.T) {
	mutated := strings.Replace(testRevisionYAML,
		"sha256:bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb",
		"sha256:deadbeef", 1)
	if _, err := DecodeBytes([]byte(mutated)); err == nil {
		t.Fatal("decode accepted truncated hash")
	}
}

func TestValidateRequiresDefaultProfile(t *testing.T) {
	mutated := strings.Replace(testRevisionYAML, "  default:\n    packages: [highspy]\n", "", 1)
	if _, err := DecodeBytes([]byte(mutated)); err == nil {
		t.Fatal("decode accepted manifest without default profile")
	}
}
