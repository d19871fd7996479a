// Package recipe holds environment recipes: the parameters and
// dependencies a new bottle of a given environment starts with.
package recipe

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/flo-mic/bottlectl/internal/bottle"
	"github.com/mohae/deepcopy"
	"gopkg.in/yaml.v3"
)

// Recipe is the environment-specific part of a new bottle.
type Recipe struct {
	Runner                string                 `yaml:"Runner,omitempty" toml:"Runner"`
	Parameters            map[string]interface{} `yaml:"Parameters,omitempty" toml:"Parameters"`
	InstalledDependencies []string               `yaml:"Installed_Dependencies,omitempty" toml:"Installed_Dependencies"`
}

// preset is a built-in recipe together with what the creation wizard shows.
type preset struct {
	label       string
	description string
	recipe      Recipe
}

// presets are keyed by the lowercased environment name. Custom and
// Layered have no preset.
var presets = map[string]preset{
	"gaming": {
		label:       "Gaming",
		description: "DXVK and VKD3D enabled, fsync, discrete GPU",
		recipe: Recipe{
			Runner: "wine",
			Parameters: map[string]interface{}{
				"dxvk":               true,
				"vkd3d":              true,
				"sync":               "fsync",
				"fsr":                false,
				"discrete_gpu":       true,
				"pulseaudio_latency": true,
			},
		},
	},
	"application": {
		label:       "Application",
		description: "core fonts, .NET (mono) and gecko for productivity software",
		recipe: Recipe{
			Runner: "wine",
			Parameters: map[string]interface{}{
				"dxvk":  true,
				"vkd3d": true,
			},
			InstalledDependencies: []string{"arial32", "times32", "courie32", "mono", "gecko"},
		},
	},
}

// Builtin returns a copy of the preset for env.
func Builtin(env bottle.Environment) (*Recipe, bool) {
	p, ok := presets[strings.ToLower(string(env))]
	if !ok {
		return nil, false
	}
	r := deepcopy.Copy(p.recipe).(Recipe)
	return &r, true
}

// Describe returns the wizard label and description for env.
func Describe(env bottle.Environment) (label, description string) {
	p, ok := presets[strings.ToLower(string(env))]
	if !ok {
		return string(env), ""
	}
	return p.label, p.description
}

// Names lists the environments that have a preset, sorted.
func Names() []string {
	names := make([]string, 0, len(presets))
	for k := range presets {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Load reads a recipe from a YAML file, or TOML when path ends in .toml.
func Load(path string) (*Recipe, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading recipe: %w", err)
	}

	var r Recipe
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if err := toml.Unmarshal(data, &r); err != nil {
			return nil, fmt.Errorf("parsing recipe %s: %w", path, err)
		}
	} else if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parsing recipe %s: %w", path, err)
	}
	return &r, nil
}

// Apply copies the recipe parameters whose key already exists in params.
// It returns the keys it set, sorted.
func (r *Recipe) Apply(params bottle.Parameters) []string {
	if r == nil {
		return nil
	}
	var set []string
	for k, v := range r.Parameters {
		if !params.Has(k) {
			continue
		}
		params[k] = normalize(v)
		set = append(set, k)
	}
	sort.Strings(set)
	return set
}

// normalize converts TOML integers to int so that the value encodes the
// same way as the defaults.
func normalize(v interface{}) interface{} {
	if n, ok := v.(int64); ok {
		return int(n)
	}
	return v
}
