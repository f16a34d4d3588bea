package semver

import (
	"fmt"
	"sort"

	masterminds "github.com/Masterminds/semver/v3"
)

const resolverLogPrefix = "semver:resolver"

// ValidateVersion checks that v is a strict SemVer version (e.g. "1.2.0").
func ValidateVersion(v string) error {
	if _, err := masterminds.StrictNewVersion(v); err != nil {
		return fmt.Errorf("%s - invalid version %q: %w", resolverLogPrefix, v, err)
	}
	return nil
}

// ResolveVersion picks the best version out of versions for rangeStr.
//
//   - empty range: the highest stable version, or the highest prerelease if no stable exists
//   - major-only ("1"): the highest version with that major
//   - anything else: a Masterminds constraint; if it does not parse, an exact match
//
// Returns "" when nothing matches. Unparseable entries in versions are skipped.
func ResolveVersion(versions []string, rangeStr string) string {
	parsed := parseAll(versions)
	if len(parsed) == 0 {
		return ""
	}
	sortDesc(parsed)

	if rangeStr == "" {
		for _, v := range parsed {
			if v.Prerelease() == "" {
				return v.Original()
			}
		}
		return parsed[0].Original()
	}

	if IsMajorOnly(rangeStr) {
		var major uint64
		fmt.Sscanf(rangeStr, "%d", &major)
		for _, v := range parsed {
			if v.Major() == major && v.Prerelease() == "" {
				return v.Original()
			}
		}
		return ""
	}

	constraint, err := masterminds.NewConstraint(rangeStr)
	if err != nil {
		return findExact(parsed, rangeStr)
	}
	for _, v := range parsed {
		if constraint.Check(v) {
			return v.Original()
		}
	}
	return ""
}

func findExact(versions []*masterminds.Version, want string) string {
	target, err := masterminds.NewVersion(want)
	if err != nil {
		return ""
	}
	for _, v := range versions {
		if v.Equal(target) {
			return v.Original()
		}
	}
	return ""
}

func parseAll(versions []string) []*masterminds.Version {
	out := make([]*masterminds.Version, 0, len(versions))
	for _, s := range versions {
		v, err := masterminds.NewVersion(s)
		if err != nil {
			continue
		}
		out = append(out, v)
	}
	return out
}

func sortDesc(versions []*masterminds.Version) {
	sort.Slice(versions, func(i, j int) bool {
		return versions[i].GreaterThan(versions[j])
	})
}
