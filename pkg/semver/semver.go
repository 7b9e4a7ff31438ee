// Package semver implements the strict MAJOR.MINOR.PATCH subset of semantic
// versioning used by plugin manifests: parsing, formatting, and
// single-component bumps. Pre-release and build metadata are not supported;
// a version that carries them is rejected rather than silently stripped.
package semver

import (
	"fmt"
	"strconv"
	"strings"
)

// Magnitude represents how far a version should be bumped.
type Magnitude string

// Bump magnitudes, ordered from smallest to largest.
const (
	Patch Magnitude = "patch"
	Minor Magnitude = "minor"
	Major Magnitude = "major"
)

// ParseMagnitude converts a string into a Magnitude. The input is trimmed and
// lowercased first so that answers coming back from an LLM ("Minor\n") still
// match.
func ParseMagnitude(s string) (Magnitude, bool) {
	switch Magnitude(strings.ToLower(strings.TrimSpace(s))) {
	case Patch:
		return Patch, true
	case Minor:
		return Minor, true
	case Major:
		return Major, true
	}
	return "", false
}

// FormatError indicates that a version string does not parse as exactly three
// dot-separated non-negative integers. A malformed recorded version is a
// data-integrity problem, so callers treat this as fatal rather than guessing.
type FormatError struct {
	Input string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("invalid semantic version %q: expected MAJOR.MINOR.PATCH", e.Input)
}

// Version is a parsed MAJOR.MINOR.PATCH version.
type Version struct {
	Major int
	Minor int
	Patch int
}

// Parse parses a strict three-component semantic version. It returns a
// *FormatError for anything else, including negative components, empty
// components, and pre-release or build suffixes.
func Parse(s string) (Version, error) {
	parts := strings.Split(s, ".")
	if len(parts) != 3 {
		return Version{}, &FormatError{Input: s}
	}

	nums := make([]int, 3)
	for i, part := range parts {
		if part == "" || !isDigits(part) {
			return Version{}, &FormatError{Input: s}
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return Version{}, &FormatError{Input: s}
		}
		nums[i] = n
	}

	return Version{Major: nums[0], Minor: nums[1], Patch: nums[2]}, nil
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Bump returns the version incremented by the given magnitude, zeroing all
// lower-order components.
func (v Version) Bump(m Magnitude) Version {
	switch m {
	case Major:
		return Version{Major: v.Major + 1}
	case Minor:
		return Version{Major: v.Major, Minor: v.Minor + 1}
	default:
		return Version{Major: v.Major, Minor: v.Minor, Patch: v.Patch + 1}
	}
}

// String formats the version as MAJOR.MINOR.PATCH.
func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}
