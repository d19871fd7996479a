// Package bottle defines the persisted bottle configuration, its default
// table and the migration path that upgrades older bottle.yml files.
package bottle

import (
	"strings"
	"time"
)

const (
	// ConfigFile is the configuration file inside every bottle directory.
	ConfigFile = "bottle.yml"
	// PlaceholderFile redirects a bottle stored at a custom path.
	PlaceholderFile = "placeholder.yml"

	dateLayout = "2006-01-02 15:04:05.000000"
)

// Environment is the kind of environment a bottle was created for.
type Environment string

const (
	Application Environment = "Application"
	Gaming      Environment = "Gaming"
	Layered     Environment = "Layered"
	Custom      Environment = "Custom"
	Steam       Environment = "Steam"

	// legacySoftware was renamed to Application.
	legacySoftware Environment = "Software"
)

// Environments lists the environments a user can create.
var Environments = []Environment{Application, Gaming, Layered, Custom}

// ParseEnvironment matches s case-insensitively against the known
// environments, accepting the legacy "Software" label.
func ParseEnvironment(s string) (Environment, bool) {
	for _, e := range []Environment{Application, Gaming, Layered, Custom, Steam} {
		if strings.EqualFold(s, string(e)) {
			return e, true
		}
	}
	if strings.EqualFold(s, string(legacySoftware)) {
		return Application, true
	}
	return "", false
}

// Config is the content of bottle.yml. YAML key names are the on-disk
// format shared with existing bottles and must not change.
type Config struct {
	Name                  string             `yaml:"Name"`
	Arch                  string             `yaml:"Arch"`
	Windows               string             `yaml:"Windows"`
	Runner                string             `yaml:"Runner"`
	WorkingDir            string             `yaml:"WorkingDir"`
	DXVK                  string             `yaml:"DXVK"`
	NVAPI                 string             `yaml:"NVAPI"`
	VKD3D                 string             `yaml:"VKD3D"`
	LatencyFleX           string             `yaml:"LatencyFleX"`
	Path                  string             `yaml:"Path"`
	CustomPath            bool               `yaml:"Custom_Path"`
	Environment           Environment        `yaml:"Environment"`
	CreationDate          string             `yaml:"Creation_Date"`
	UpdateDate            string             `yaml:"Update_Date"`
	Versioning            bool               `yaml:"Versioning"`
	State                 int                `yaml:"State"`
	Parameters            Parameters         `yaml:"Parameters"`
	Sandbox               map[string]bool    `yaml:"Sandbox"`
	EnvironmentVariables  map[string]string  `yaml:"Environment_Variables"`
	InstalledDependencies []string           `yaml:"Installed_Dependencies"`
	DLLOverrides          map[string]string  `yaml:"DLL_Overrides"`
	ExternalPrograms      map[string]Program `yaml:"External_Programs"`
	Uninstallers          map[string]string  `yaml:"Uninstallers"`
	LatestExecutables     []Executable       `yaml:"Latest_Executables"`

	// Only set for bottles mirrored from Steam.
	CompatData string `yaml:"CompatData,omitempty"`
	RunnerPath string `yaml:"RunnerPath,omitempty"`

	// Only set for Layered bottles; an empty non-nil map is persisted as {}.
	Layers *LayerSet `yaml:"Layers,omitempty"`

	// Keys this version does not know about survive a rewrite.
	Extra map[string]interface{} `yaml:",inline"`
}

// LayerSet maps a layer name to its mount description.
type LayerSet map[string]interface{}

// Program is a user-added executable shown in the programs list.
type Program struct {
	ID         string `yaml:"id,omitempty"`
	Name       string `yaml:"name"`
	Executable string `yaml:"executable"`
	Path       string `yaml:"path"`
	Arguments  string `yaml:"arguments,omitempty"`
	Script     string `yaml:"script,omitempty"`
	Removed    bool   `yaml:"removed,omitempty"`
}

// Executable is an entry of the recently launched executables list.
type Executable struct {
	Name string `yaml:"name"`
	File string `yaml:"file"`
	Args string `yaml:"args,omitempty"`
}

// Parameters holds the feature toggles of a bottle. Values are bools,
// strings or numbers depending on the key.
type Parameters map[string]interface{}

// Bool returns the boolean value of key, false when unset or not a bool.
func (p Parameters) Bool(key string) bool {
	b, _ := p[key].(bool)
	return b
}

// String returns the string value of key.
func (p Parameters) String(key string) string {
	s, _ := p[key].(string)
	return s
}

// Has reports whether key is present.
func (p Parameters) Has(key string) bool {
	_, ok := p[key]
	return ok
}

// DirName returns the directory name for a bottle display name.
func DirName(name string) string {
	return strings.ReplaceAll(name, " ", "-")
}

// Now formats the current time the way Creation_Date and Update_Date are stored.
func Now() string {
	return time.Now().Format(dateLayout)
}

// FormatTime formats t like Now.
func FormatTime(t time.Time) string {
	return t.Format(dateLayout)
}
