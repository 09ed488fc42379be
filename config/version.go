package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// CompareVersions compares two semver version strings. It returns -1, 0 or 1
// as v1 is older, equal or newer than v2.
func CompareVersions(v1, v2 string) (int, error) {
	a, err := semVer(v1)
	if err != nil {
		return 0, fmt.Errorf("invalid version '%s': %w", v1, err)
	}
	b, err := semVer(v2)
	if err != nil {
		return 0, fmt.Errorf("invalid version '%s': %w", v2, err)
	}

	for i := range a {
		switch {
		case a[i] > b[i]:
			return 1, nil
		case a[i] < b[i]:
			return -1, nil
		}
	}
	return 0, nil
}

func semVer(version string) ([3]int, error) {
	major, minor, patch, err := parseSemVer(version)
	return [3]int{major, minor, patch}, err
}

// parseSemVer parses "major.minor.patch" with an optional v prefix
func parseSemVer(version string) (int, int, int, error) {
	if version == "" {
		return 0, 0, 0, errors.New("version cannot be empty")
	}

	parts := strings.Split(strings.TrimPrefix(version, "v"), ".")
	if len(parts) != 3 {
		return 0, 0, 0, fmt.Errorf("version must be in format 'major.minor.patch', got '%s'", version)
	}

	var nums [3]int
	for i, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 {
			return 0, 0, 0, fmt.Errorf("invalid version component '%s'", part)
		}
		nums[i] = n
	}

	return nums[0], nums[1], nums[2], nil
}
