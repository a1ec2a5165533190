package platform

import (
	"errors"
	"testing"
)

func TestParseSupportedPlatforms(t *testing.T) {
	for _, p := range Supported() {
		parsed, err := Parse(p.String())
		if err != nil {
			t.Errorf("Parse(%q) returned error: %v", p, err)
		}
		if parsed != p {
			t.Errorf("Parse(%q) = %q, want %q", p, parsed, p)
		}
	}
}

func TestParseNormalizesAliases(t *testing.T) {
	cases := map[string]Platform{
		"amd64-linux":    X86_64Linux,
		"arm64-darwin":   AArch64Darwin,
		"X86_64-Linux":   X86_64Linux,
		"aarch64-macos":  AArch64Darwin,
		" x86_64-darwin": X86_64Darwin,
	}
	for value, want := range cases {
		got, err := Parse(value)
		if err != nil {
			t.Errorf("Parse(%q) returned error: %v", value, err)
			continue
		}
		if got != want {
			t.Errorf("Parse(%q) = %q, want %q", value, got, want)
		}
	}
}

func TestParseRejectsUnsupported(t *testing.T) {
	for _, value := range []string{"", "riscv64-linux", "x86_64-windows", "linux", "x86_64"} {
		_, err := Parse(value)
		if err == nil {
			t.Errorf("Parse(%q) succeeded, want UnsupportedError", value)
			continue
		}
		var unsupported *UnsupportedError
		if !errors.As(err, &unsupported) {
			t.Errorf("Parse(%q) error %v, want UnsupportedError", value, err)
		}
	}
}

func TestArchAndOS(t *testing.T) {
	if got := AArch64Linux.Arch(); got != "aarch64" {
		t.Errorf("Arch() = %q, want aarch64", got)
	}
	if got := X86_64Darwin.OS(); got != "darwin" {
		t.Errorf("OS() = %q, want darwin", got)
	}
}
