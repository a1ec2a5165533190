package manifest

import (
	"bytes"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/openercot/pinion/platform"
)

// Decode reads a revision from YAML and validates it. Unknown fields are
// rejected so a typo in a pin never passes silently.
func Decode(r io.Reader) (*Revision, error) {
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)

	var rev Revision
	if err := decoder.Decode(&rev); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	if err := rev.Validate(); err != nil {
		return nil, err
	}
	return &rev, nil
}

// DecodeBytes is Decode over a byte slice.
func DecodeBytes(data []byte) (*Revision, error) {
	return Decode(bytes.NewReader(data))
}

// Encode writes the revision as YAML.
func Encode(w io.Writer, rev *Revision) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(rev); err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	return encoder.Close()
}

// Validate checks the revision's internal consistency.
func (r *Revision) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("manifest revision id is required")
	}
	if len(r.Packages) == 0 {
		return fmt.Errorf("manifest revision %s declares no packages", r.ID)
	}

	names := make(map[string]struct{}, len(r.Packages))
	for _, pkg := range r.Packages {
		if pkg.Name == "" {
			return fmt.Errorf("manifest revision %s: package name is required", r.ID)
		}
		if _, dup := names[pkg.Name]; dup {
			return fmt.Errorf("manifest revision %s: duplicate package %q", r.ID, pkg.Name)
		}
		names[pkg.Name] = struct{}{}

		if err := pkg.validate(); err != nil {
			return fmt.Errorf("manifest revision %s: package %q: %w", r.ID, pkg.Name, err)
		}
	}

	for _, pkg := range r.Packages {
		for _, dep := range pkg.Depends {
			if _, ok := names[dep]; !ok {
				return fmt.Errorf("manifest revision %s: package %q depends on unknown package %q", r.ID, pkg.Name, dep)
			}
		}
		for _, dep := range pkg.Propagates {
			if _, ok := names[dep]; !ok {
				return fmt.Errorf("manifest revision %s: package %q propagates unknown package %q", r.ID, pkg.Name, dep)
			}
		}
	}

	if _, ok := r.Profiles[ProfileDefault]; !ok {
		return fmt.Errorf("manifest revision %s: profile %q is required", r.ID, ProfileDefault)
	}
	for name, profile := range r.Profiles {
		if len(profile.Packages) == 0 {
			return fmt.Errorf("manifest revision %s: profile %q is empty", r.ID, name)
		}
		for _, pkg := range profile.Packages {
			if _, ok := names[pkg]; !ok {
				return fmt.Errorf("manifest revision %s: profile %q references unknown package %q", r.ID, name, pkg)
			}
		}
	}

	return nil
}

func (d PackageDescriptor) validate() error {
	if d.Version == "" {
		return fmt.Errorf("version is required")
	}

	if d.PlatformSplit() {
		if d.URL != "" || d.Hash != "" {
			return fmt.Errorf("declares both a direct source and platform variants")
		}
		for _, p := range platform.Supported() {
			variant, ok := d.Variants[p]
			if !ok {
				return fmt.Errorf("missing variant for platform %s", p)
			}
			if variant.URL == "" {
				return fmt.Errorf("variant for platform %s has no url", p)
			}
			if err := variant.Hash.Validate(); err != nil {
				return fmt.Errorf("variant for platform %s: %w", p, err)
			}
		}
		for p := range d.Variants {
			if !p.IsValid() {
				return &platform.UnsupportedError{Value: p.String()}
			}
		}
		return nil
	}

	if d.URL == "" {
		return fmt.Errorf("source url is required")
	}
	if err := d.Hash.Validate(); err != nil {
		return err
	}
	return nil
}
