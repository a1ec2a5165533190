package manifest

import (
	"github.com/openercot/pinion/platform"
)

// Variant locates the platform-specific artifact for a platform-split package.
type Variant struct {
	URL  string `yaml:"url"`
	Hash Hash   `yaml:"hash"`
}

// PackageDescriptor pins one installable package. Version and hash jointly
// identify exactly one immutable artifact.
//
// A descriptor either carries a single URL+Hash or a Variants map with one
// entry per supported platform; never both.
type PackageDescriptor struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	URL  string `yaml:"url,omitempty"`
	Hash Hash   `yaml:"hash,omitempty"`

	Variants map[platform.Platform]Variant `yaml:"variants,omitempty"`

	// Depends lists direct dependencies by package name.
	Depends []string `yaml:"depends,omitempty"`

	// Propagates lists dependencies that are additionally propagated to any
	// package depending on this one (the shared base list of the custom
	// packages travels to the top-level modeling package this way).
	Propagates []string `yaml:"propagates,omitempty"`
}

// PlatformSplit reports whether the package resolves through per-platform variants.
func (d PackageDescriptor) PlatformSplit() bool {
	return len(d.Variants) > 0
}

// Profile names a subset of the revision's packages exposed as one
// environment surface.
type Profile struct {
	Packages []string `yaml:"packages"`
}

// Well-known profile names.
const (
	ProfileDefault = "default"
	ProfileDev     = "dev"
	ProfileFmt     = "fmt"
)

// Revision is one fully independent, self-consistent manifest snapshot.
// Revisions are never merged; each one stands alone.
type Revision struct {
	ID          string `yaml:"id"`
	Description string `yaml:"description,omitempty"`

	Packages []PackageDescriptor `yaml:"packages"`
	Profiles map[string]Profile  `yaml:"profiles"`
}

// Package returns the descriptor with the given name.
func (r *Revision) Package(name string) (PackageDescriptor, bool) {
	for _, pkg := range r.Packages {
		if pkg.Name == name {
			return pkg, true
		}
	}
	return PackageDescriptor{}, false
}

// Profile returns the named profile.
func (r *Revision) Profile(name string) (Profile, bool) {
	p, ok := r.Profiles[name]
	return p, ok
}
