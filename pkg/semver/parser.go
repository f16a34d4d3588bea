// Package semver provides provider reference parsing and SemVer resolution logic.
package semver

import (
	"fmt"
	"regexp"
	"strings"
)

const logPrefix = "semver:parser"

// ParsedProviderRef holds the parsed components of a provider reference string.
type ParsedProviderRef struct {
	// Provider name (e.g., "storage")
	Name string
	// Version range if specified (e.g., "^1.2.0", "1", ""); empty string means no version
	Range string
	// Raw input string
	Raw string
}

var (
	providerNameRegex = regexp.MustCompile(`^[a-z][a-z0-9_-]*$`)
	majorOnlyRegex    = regexp.MustCompile(`^\d+$`)
	exactVersionRegex = regexp.MustCompile(`^\d+\.\d+\.\d+(-[\w.]+)?(\+[\w.]+)?$`)
)

// ParseProviderRef parses a provider reference string.
//
// Supported formats:
//   - storage            (no version)
//   - storage@1          (major only)
//   - storage@1.2.1      (exact version)
//   - storage@^1.2.0     (caret range)
//   - storage@~1.2.0     (tilde range)
//   - storage@>=1.0.0    (comparison range)
func ParseProviderRef(input string) (*ParsedProviderRef, error) {
	raw := strings.TrimSpace(input)

	name := raw
	rangeStr := ""
	if atIndex := strings.Index(raw, "@"); atIndex != -1 {
		name = raw[:atIndex]
		rangeStr = strings.TrimSpace(raw[atIndex+1:])
		if rangeStr == "" {
			return nil, fmt.Errorf("%s - empty version range: %s", logPrefix, raw)
		}
	}

	if !ValidateProviderName(name) {
		return nil, fmt.Errorf("%s - invalid provider name: %q", logPrefix, raw)
	}

	return &ParsedProviderRef{Name: name, Range: rangeStr, Raw: raw}, nil
}

// IsMajorOnly checks if a range is a major-only specifier (e.g., "3").
func IsMajorOnly(rangeStr string) bool {
	return majorOnlyRegex.MatchString(rangeStr)
}

// IsExactVersion checks if a range is an exact version (e.g., "3.2.1").
func IsExactVersion(rangeStr string) bool {
	return exactVersionRegex.MatchString(rangeStr)
}

// BuildProviderRef builds "name@version", or just name when version is empty.
func BuildProviderRef(name, version string) string {
	if version != "" {
		return name + "@" + version
	}
	return name
}

// ValidateProviderName validates a provider name (lowercase letter first, then letters, digits, '-', '_').
func ValidateProviderName(name string) bool {
	return providerNameRegex.MatchString(name)
}
