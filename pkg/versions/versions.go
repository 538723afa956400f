// Package versions turns user version strings into canonical
// ResolvedVersion records.
package versions

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/bobvm/bob/pkg/errors"
	"github.com/bobvm/bob/pkg/github"
)

// Kind discriminates the five version variants. Pipeline branches
// switch exhaustively on it; adding a variant must fail loudly at
// every switch.
type Kind int

const (
	// Tagged is a semver release like v0.9.5
	Tagged Kind = iota
	// Stable is the latest release, resolved to a specific tag upstream
	Stable
	// Nightly is the rolling pre-release channel
	Nightly
	// Hash is a commit built from source
	Hash
	// NightlyRollback is a snapshotted previous nightly (nightly-<7hex>)
	NightlyRollback
)

func (k Kind) String() string {
	switch k {
	case Tagged:
		return "tagged"
	case Stable:
		return "stable"
	case Nightly:
		return "nightly"
	case Hash:
		return "hash"
	case NightlyRollback:
		return "nightly-rollback"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Semver is a parsed (major, minor, patch) triple.
type Semver struct {
	Major int
	Minor int
	Patch int
}

func (s Semver) String() string {
	return fmt.Sprintf("%d.%d.%d", s.Major, s.Minor, s.Patch)
}

// Compare returns -1, 0 or 1 ordering s against o.
func (s Semver) Compare(o Semver) int {
	a := [3]int{s.Major, s.Minor, s.Patch}
	b := [3]int{o.Major, o.Minor, o.Patch}
	for i := range a {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}

// LessOrEqual reports s <= o.
func (s Semver) LessOrEqual(o Semver) bool { return s.Compare(o) <= 0 }

// GreaterThan reports s > o.
func (s Semver) GreaterThan(o Semver) bool { return s.Compare(o) > 0 }

// ResolvedVersion is the canonical form of a user version string.
type ResolvedVersion struct {
	// Tag is the canonical identifier: a vX.Y.Z tag, "nightly",
	// a hex hash, or nightly-<7hex>.
	Tag string
	// Kind is the variant discriminator.
	Kind Kind
	// Raw is the original user input, preserved for error messages.
	Raw string
	// Semver is set for Tagged and Stable.
	Semver *Semver
}

// NonInstallable floor: releases at or below this predate the
// release-asset layout bob understands.
var NonInstallable = Semver{Major: 0, Minor: 2, Patch: 2}

var (
	semverPattern   = regexp.MustCompile(`^v?[0-9]+(\.[0-9]+){0,2}$`)
	hashPattern     = regexp.MustCompile(`^[0-9a-f]{5,40}$`)
	rollbackPattern = regexp.MustCompile(`^nightly-[0-9a-f]{7}$`)
)

// ReleaseLister is the slice of the upstream client the resolver needs.
type ReleaseLister interface {
	Releases(ctx context.Context, perPage int) ([]github.Release, error)
}

// Resolve applies the resolution rules in order. Only the stable/latest
// rule reaches the network.
func Resolve(ctx context.Context, lister ReleaseLister, input string) (*ResolvedVersion, error) {
	raw := strings.TrimSpace(input)

	switch raw {
	case "nightly":
		return &ResolvedVersion{Tag: "nightly", Kind: Nightly, Raw: raw}, nil
	case "stable", "latest":
		return resolveStable(ctx, lister, raw)
	}

	if semverPattern.MatchString(raw) {
		sv, err := ParseSemver(raw)
		if err == nil {
			tag := raw
			if !strings.HasPrefix(tag, "v") {
				tag = "v" + tag
			}
			return &ResolvedVersion{Tag: tag, Kind: Tagged, Raw: raw, Semver: &sv}, nil
		}
	}

	if hashPattern.MatchString(raw) {
		return &ResolvedVersion{Tag: raw, Kind: Hash, Raw: raw}, nil
	}

	if rollbackPattern.MatchString(raw) {
		return &ResolvedVersion{Tag: raw, Kind: NightlyRollback, Raw: raw}, nil
	}

	return nil, errors.Newf(errors.ErrInvalidVersion, "provide a proper version string, %q is not one", raw)
}

// resolveStable queries the two most recent releases and takes the
// second: index 0 can be the still-publishing nightly.
func resolveStable(ctx context.Context, lister ReleaseLister, raw string) (*ResolvedVersion, error) {
	releases, err := lister.Releases(ctx, 2)
	if err != nil {
		return nil, err
	}
	if len(releases) < 2 {
		return nil, errors.New(errors.ErrNetwork, "upstream returned fewer than two releases")
	}
	tag := releases[1].TagName
	sv, err := ParseSemver(tag)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrNetwork, "upstream stable tag %q is not a version", tag)
	}
	return &ResolvedVersion{Tag: tag, Kind: Stable, Raw: raw, Semver: &sv}, nil
}

// ParseSemver parses strings like v0.9.5, 0.9 or 10 into a Semver.
func ParseSemver(s string) (Semver, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "v")
	parts := strings.Split(s, ".")
	if len(parts) == 0 || len(parts) > 3 {
		return Semver{}, fmt.Errorf("invalid version %q", s)
	}
	nums := [3]int{}
	for i, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 {
			return Semver{}, fmt.Errorf("invalid version component %q", part)
		}
		nums[i] = n
	}
	return Semver{Major: nums[0], Minor: nums[1], Patch: nums[2]}, nil
}

// RollbackHash extracts the 7-char hash from a nightly-<7hex> tag.
func RollbackHash(tag string) string {
	return strings.TrimPrefix(tag, "nightly-")
}
