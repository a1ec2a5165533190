package platform

import (
	"fmt"
	"runtime"
	"sort"
	"strings"
)

// Platform identifies a CPU-architecture/OS-family combination for which
// platform-specific artifacts exist.
type Platform string

const (
	X86_64Linux   Platform = "x86_64-linux"
	AArch64Linux  Platform = "aarch64-linux"
	X86_64Darwin  Platform = "x86_64-darwin"
	AArch64Darwin Platform = "aarch64-darwin"
)

// UnsupportedError is returned when an identifier matches no supported platform.
type UnsupportedError struct {
	Value string
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("unsupported platform %q (supported: %s)", e.Value, strings.Join(supportedStrings(), ", "))
}

// Supported returns the full list of supported platforms.
func Supported() []Platform {
	return []Platform{
		X86_64Linux,
		AArch64Linux,
		X86_64Darwin,
		AArch64Darwin,
	}
}

// IsValid reports whether p matches a supported platform value.
func (p Platform) IsValid() bool {
	switch p {
	case X86_64Linux, AArch64Linux, X86_64Darwin, AArch64Darwin:
		return true
	default:
		return false
	}
}

// String returns the platform as string.
func (p Platform) String() string {
	return string(p)
}

// Arch returns the CPU-architecture half of the identifier.
func (p Platform) Arch() string {
	value, _, _ := strings.Cut(string(p), "-")
	return value
}

// OS returns the OS-family half of the identifier.
func (p Platform) OS() string {
	_, value, _ := strings.Cut(string(p), "-")
	return value
}

// Parse returns the canonical Platform for the provided string or an
// UnsupportedError. There is no fallback: callers must fail closed.
func Parse(value string) (Platform, error) {
	if p := Normalize(value); p != "" {
		return p, nil
	}
	return "", &UnsupportedError{Value: value}
}

// MustParse is like Parse but panics on error.
func MustParse(value string) Platform {
	p, err := Parse(value)
	if err != nil {
		panic(err)
	}
	return p
}

// Normalize maps a possibly ambiguous string into a canonical Platform.
// Returns "" when the string cannot be normalized.
func Normalize(value string) Platform {
	normalized := strings.ToLower(strings.TrimSpace(value))
	normalized = strings.ReplaceAll(normalized, "_", "-")
	normalized = strings.ReplaceAll(normalized, "x86-64", "x86_64")

	arch, os, ok := strings.Cut(normalized, "-")
	if !ok {
		return ""
	}

	switch arch {
	case "x86_64", "amd64":
		arch = "x86_64"
	case "aarch64", "arm64":
		arch = "aarch64"
	default:
		return ""
	}

	switch os {
	case "linux":
		os = "linux"
	case "darwin", "macos", "osx":
		os = "darwin"
	default:
		return ""
	}

	p := Platform(arch + "-" + os)
	if !p.IsValid() {
		return ""
	}
	return p
}

// Current returns the platform of the running process, or an UnsupportedError
// when the host is not one of the four supported combinations.
func Current() (Platform, error) {
	return Parse(runtime.GOARCH + "-" + runtime.GOOS)
}

func supportedStrings() []string {
	all := Supported()
	out := make([]string, 0, len(all))
	for _, p := range all {
		out = append(out, p.String())
	}
	sort.Strings(out)
	return out
}
