package exttest

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	// fullVersionPattern strips a leading label such as "Version: ". The
	// payload must start with the release number.
	fullVersionPattern = regexp.MustCompile(`^[a-zA-Z: ]*([0-9].*)$`)

	// shortVersionPattern matches the release number in front of the
	// prerelease or build metadata, e.g. "0.8.24" in "0.8.24+commit.e11b9ed9".
	shortVersionPattern = regexp.MustCompile(`^([0-9.]+)(?:[+-]|$)`)
)

// ParseVersion extracts the version payload from the version line reported
// by a compiler binary.
func ParseVersion(s string) (string, error) {
	m := fullVersionPattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return "", fmt.Errorf("%w: compiler version could not be found in: %q", ErrVersionParse, s)
	}
	return m[1], nil
}

// ShortVersion returns the release number of a full version string.
func ShortVersion(full string) (string, error) {
	m := shortVersionPattern.FindStringSubmatch(full)
	if m == nil {
		return "", fmt.Errorf("%w: error extracting short version string from: %q", ErrVersionParse, full)
	}
	return m[1], nil
}

// VersionLine returns the "Version:" line of a multi-line version report,
// or the last non-empty line if there is none.
func VersionLine(output string) string {
	var last string
	for line := range strings.Lines(output) {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "Version:") {
			return line
		}
		last = line
	}
	return last
}
