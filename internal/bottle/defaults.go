package bottle

import (
	"github.com/mohae/deepcopy"
	"gopkg.in/yaml.v3"
)

// defaultParameters is the default table for Parameters.
var defaultParameters = Parameters{
	"dxvk":                   false,
	"dxvk_hud":               false,
	"dxvk_nvapi":             false,
	"vkd3d":                  false,
	"latencyflex":            false,
	"mangohud":               false,
	"obsvkc":                 false,
	"vkbasalt":               false,
	"gamemode":               false,
	"gamescope":              false,
	"sync":                   "wine",
	"fsr":                    false,
	"fsr_level":              5,
	"discrete_gpu":           false,
	"virtual_desktop":        false,
	"virtual_desktop_res":    "1280x720",
	"pulseaudio_latency":     false,
	"fixme_logs":             false,
	"use_runtime":            false,
	"use_eac_runtime":        true,
	"use_be_runtime":         true,
	"sandbox":                false,
	"versioning_compression": false,
	"vmtouch":                false,
}

// Default returns a new configuration holding every default value.
// The returned value shares no maps with other callers.
func Default() *Config {
	return &Config{
		Arch:                  "win64",
		Windows:               "win10",
		Parameters:            deepcopy.Copy(defaultParameters).(Parameters),
		Sandbox:               map[string]bool{"share_net": false, "share_sound": false},
		EnvironmentVariables:  map[string]string{},
		InstalledDependencies: []string{},
		DLLOverrides:          map[string]string{},
		ExternalPrograms:      map[string]Program{},
		Uninstallers:          map[string]string{},
		LatestExecutables:     []Executable{},
	}
}

var sampleDoc Document

func init() {
	var err error
	sampleDoc, err = toDocument(Default())
	if err != nil {
		panic("bottle: default config does not encode: " + err.Error())
	}
}

// Sample returns the default configuration as a raw document. Its key set
// is the canonical schema every migrated config is a superset of.
func Sample() Document {
	return deepcopy.Copy(sampleDoc).(Document)
}

// Document is a bottle.yml decoded without a schema.
type Document map[string]interface{}

// Parameters returns the nested Parameters mapping, nil when absent or not a mapping.
func (d Document) Parameters() map[string]interface{} {
	p, _ := Mapping(d["Parameters"])
	return p
}

// Mapping returns v as a mapping when it is one.
func Mapping(v interface{}) (map[string]interface{}, bool) {
	switch m := v.(type) {
	case map[string]interface{}:
		return m, m != nil
	case Document:
		return m, m != nil
	}
	return nil, false
}

// parseDocument decodes data into a Document whose nested mappings are
// plain map[string]interface{}. yaml.v3 reuses the target map type for
// nested mappings, so decoding straight into a Document would nest
// Documents.
func parseDocument(data []byte) (Document, error) {
	var raw map[string]interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	return Document(raw), nil
}

func toDocument(c *Config) (Document, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, err
	}
	return parseDocument(data)
}
