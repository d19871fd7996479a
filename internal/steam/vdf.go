package steam

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/andygrunwald/vdf"
)

// readVDF parses a text VDF file.
func readVDF(path string) (map[string]interface{}, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	m, err := vdf.NewParser(f).Parse()
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return m, nil
}

var vdfEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

// writeVDF encodes m as text VDF. Keys are written sorted.
func writeVDF(w io.Writer, m map[string]interface{}) error {
	bw := bufio.NewWriter(w)
	if err := writeVDFMap(bw, m, 0); err != nil {
		return err
	}
	return bw.Flush()
}

func writeVDFMap(w *bufio.Writer, m map[string]interface{}, depth int) error {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	indent := strings.Repeat("\t", depth)
	for _, k := range keys {
		switch v := m[k].(type) {
		case map[string]interface{}:
			fmt.Fprintf(w, "%s\"%s\"\n%s{\n", indent, vdfEscaper.Replace(k), indent)
			if err := writeVDFMap(w, v, depth+1); err != nil {
				return err
			}
			fmt.Fprintf(w, "%s}\n", indent)
		case string:
			fmt.Fprintf(w, "%s\"%s\"\t\t\"%s\"\n", indent, vdfEscaper.Replace(k), vdfEscaper.Replace(v))
		default:
			return fmt.Errorf("vdf: unsupported value %T for key %q", v, k)
		}
	}
	return nil
}

// child walks m along keys, returning nil when a level is missing.
func child(m map[string]interface{}, keys ...string) map[string]interface{} {
	for _, k := range keys {
		next, ok := m[k].(map[string]interface{})
		if !ok {
			return nil
		}
		m = next
	}
	return m
}

func str(m map[string]interface{}, key string) string {
	s, _ := m[key].(string)
	return s
}
