package dump

import (
	"fmt"
	"strconv"
	"strings"
)

// Version is a dotted tool version as a tuple of integers. Comparison
// is field-wise numeric, so 3.10.0 sorts after 3.2.0.
type Version []int

// ParseVersion parses strings like "3.4.1", "r4.2.0" or "v100.9.4".
func ParseVersion(s string) (Version, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimLeft(s, "rv")
	// Ignore prerelease/build suffixes like 4.2.0-rc1.
	if i := strings.IndexAny(s, "-+"); i >= 0 {
		s = s[:i]
	}
	if s == "" {
		return nil, fmt.Errorf("empty version string")
	}
	parts := strings.Split(s, ".")
	v := make(Version, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("bad version field %q in %q", p, s)
		}
		v = append(v, n)
	}
	return v, nil
}

// Compare returns -1, 0, or 1. Missing trailing fields compare as zero,
// so 3.2 equals 3.2.0.
func (v Version) Compare(other Version) int {
	n := len(v)
	if len(other) > n {
		n = len(other)
	}
	for i := 0; i < n; i++ {
		a, b := 0, 0
		if i < len(v) {
			a = v[i]
		}
		if i < len(other) {
			b = other[i]
		}
		if a != b {
			if a < b {
				return -1
			}
			return 1
		}
	}
	return 0
}

// AtLeast reports whether v >= other.
func (v Version) AtLeast(other Version) bool {
	return v.Compare(other) >= 0
}

func (v Version) String() string {
	parts := make([]string, len(v))
	for i, n := range v {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ".")
}
