package steam

import (
	"strings"

	"github.com/kballard/go-shellquote"
)

// CommandMarker separates launcher flags from game arguments.
const CommandMarker = "%command%"

// EnvVar is one KEY=VALUE assignment of a launch command.
type EnvVar struct {
	Key   string
	Value string
}

// EnvList is an ordered set of environment variables.
type EnvList []EnvVar

// Get returns the value of key.
func (l EnvList) Get(key string) (string, bool) {
	for _, e := range l {
		if e.Key == key {
			return e.Value, true
		}
	}
	return "", false
}

// Set updates key in place or appends it.
func (l *EnvList) Set(key, value string) {
	for i := range *l {
		if (*l)[i].Key == key {
			(*l)[i].Value = value
			return
		}
	}
	*l = append(*l, EnvVar{Key: key, Value: value})
}

// Delete removes key.
func (l *EnvList) Delete(key string) {
	out := (*l)[:0]
	for _, e := range *l {
		if e.Key != key {
			out = append(out, e)
		}
	}
	*l = out
}

// Map returns the variables as a map.
func (l EnvList) Map() map[string]string {
	m := make(map[string]string, len(l))
	for _, e := range l {
		m[e.Key] = e.Value
	}
	return m
}

// LaunchOptions is the parsed form of a Steam launch options string:
// "K=V K2=V2 command %command% args".
type LaunchOptions struct {
	Env     EnvList
	Command string
	Args    string
}

// ParseLaunchOptions splits s on %command%. Tokens of the part before it
// that contain "=" are environment variables, the others form the
// command. Without a marker the whole string is taken as arguments.
func ParseLaunchOptions(s string) (LaunchOptions, error) {
	var o LaunchOptions
	before, after, found := strings.Cut(s, CommandMarker)
	if !found {
		o.Args = strings.TrimSpace(s)
		return o, nil
	}
	o.Args = strings.TrimSpace(after)

	words, err := shellquote.Split(strings.TrimSpace(before))
	if err != nil {
		return o, err
	}
	var command []string
	for _, w := range words {
		if k, v, ok := strings.Cut(w, "="); ok {
			o.Env.Set(k, v)
			continue
		}
		command = append(command, w)
	}
	o.Command = strings.Join(command, " ")
	return o, nil
}

// String serializes o, quoting values that contain whitespace.
func (o LaunchOptions) String() string {
	var parts []string
	for _, e := range o.Env {
		v := e.Value
		if strings.ContainsAny(v, " \t") {
			v = shellquote.Join(v)
		}
		parts = append(parts, e.Key+"="+v)
	}
	if c := strings.TrimSpace(o.Command); c != "" {
		parts = append(parts, c)
	}
	parts = append(parts, CommandMarker)
	if a := strings.TrimSpace(o.Args); a != "" {
		parts = append(parts, a)
	}
	return strings.Join(parts, " ")
}

// Merge sets every variable of env on o and replaces the command.
func (o *LaunchOptions) Merge(command string, env EnvList) {
	for _, e := range env {
		o.Env.Set(e.Key, e.Value)
	}
	o.Command = strings.TrimSpace(command)
}

// RemoveCommand deletes every occurrence of key from the command and
// collapses the whitespace left behind.
func (o *LaunchOptions) RemoveCommand(key string) {
	if key == "" {
		return
	}
	o.Command = strings.Join(strings.Fields(strings.ReplaceAll(o.Command, key, "")), " ")
}
