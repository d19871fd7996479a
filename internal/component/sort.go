package component

import (
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// versionOf parses the part of an identifier after its last "-",
// "dxvk-1.10" gives 1.10.0.
func versionOf(name string) (*semver.Version, error) {
	v := name
	if i := strings.LastIndex(name, "-"); i >= 0 {
		v = name[i+1:]
	}
	return semver.NewVersion(strings.TrimPrefix(v, "v"))
}

// SortVersions orders names newest first. When any name has no parseable
// version the whole list is sorted in descending lexicographic order.
func SortVersions(names []string) []string {
	out := append([]string(nil), names...)

	versions := make(map[string]*semver.Version, len(out))
	for _, n := range out {
		v, err := versionOf(n)
		if err != nil {
			sort.Sort(sort.Reverse(sort.StringSlice(out)))
			return out
		}
		versions[n] = v
	}

	sort.SliceStable(out, func(i, j int) bool {
		vi, vj := versions[out[i]], versions[out[j]]
		if c := vi.Compare(vj); c != 0 {
			return c > 0
		}
		return out[i] > out[j]
	})
	return out
}

// newerSegment compares the second "-" separated field of two runner
// names, by version when both parse.
func newerSegment(a, b string) bool {
	sa, sb := segment(a), segment(b)
	va, erra := semver.NewVersion(sa)
	vb, errb := semver.NewVersion(sb)
	if erra == nil && errb == nil && !va.Equal(vb) {
		return va.GreaterThan(vb)
	}
	if sa != sb {
		return sa > sb
	}
	return a > b
}

func segment(name string) string {
	parts := strings.SplitN(name, "-", 3)
	if len(parts) < 2 {
		return ""
	}
	return parts[1]
}
