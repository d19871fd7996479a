package bottle

import (
	"strings"

	"github.com/kballard/go-shellquote"
)

// ParseEnvString parses a legacy "K=V K2='v 2'" string with shell quoting
// rules. Everything after the first "=" is the value. Entries without "="
// are ignored.
func ParseEnvString(s string) (map[string]string, error) {
	words, err := shellquote.Split(s)
	if err != nil {
		return nil, err
	}

	env := make(map[string]string, len(words))
	for _, w := range words {
		k, v, ok := strings.Cut(w, "=")
		if !ok {
			continue
		}
		env[k] = v
	}
	return env, nil
}
