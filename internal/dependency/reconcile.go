package dependency

// Missing returns the elements of desired that are not in installed,
// in desired order and without duplicates.
func Missing(desired, installed []string) []string {
	have := toSet(installed)
	var out []string
	for _, d := range desired {
		if have[d] {
			continue
		}
		have[d] = true
		out = append(out, d)
	}
	return out
}

// Without returns ss with every occurrence of s removed.
func Without(ss []string, s string) []string {
	out := make([]string, 0, len(ss))
	for _, v := range ss {
		if v != s {
			out = append(out, v)
		}
	}
	return out
}

func toSet(ss []string) map[string]bool {
	m := make(map[string]bool, len(ss))
	for _, s := range ss {
		m[s] = true
	}
	return m
}

func contains(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}
