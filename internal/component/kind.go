// Package component keeps track of the runtime components bottles are built
// from: runners, the DXVK/VKD3D/NVAPI/LatencyFleX translation layers, the
// runtime and WineBridge. It discovers what is installed locally, resolves
// what to install from the remote catalog and installs or removes it.
package component

import (
	"fmt"
	"strings"

	"github.com/flo-mic/bottlectl/internal/config"
)

// Kind is a component family.
type Kind int

const (
	Runner Kind = iota
	DXVK
	VKD3D
	NVAPI
	LatencyFleX
	Runtime
	WineBridge
)

var kindNames = [...]string{
	Runner:      "runner",
	DXVK:        "dxvk",
	VKD3D:       "vkd3d",
	NVAPI:       "nvapi",
	LatencyFleX: "latencyflex",
	Runtime:     "runtime",
	WineBridge:  "winebridge",
}

// Kinds returns every kind in check order.
func Kinds() []Kind {
	return []Kind{DXVK, VKD3D, NVAPI, LatencyFleX, Runtime, WineBridge, Runner}
}

// Essential are the kinds a bottle cannot be created without.
func Essential() []Kind {
	return []Kind{Runner, DXVK, VKD3D, NVAPI, LatencyFleX}
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("kind(%d)", int(k))
	}
	return kindNames[k]
}

// ParseKind parses a kind name as typed on the command line.
func ParseKind(s string) (Kind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "runners", "wine", "proton":
		return Runner, nil
	case "runtimes":
		return Runtime, nil
	}
	for k, name := range kindNames {
		if name == s {
			return Kind(k), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// Dir returns the directory holding installed components of kind k.
func (k Kind) Dir(p config.Paths) string {
	switch k {
	case Runner:
		return p.Runners
	case DXVK:
		return p.DXVK
	case VKD3D:
		return p.VKD3D
	case NVAPI:
		return p.NVAPI
	case LatencyFleX:
		return p.LatencyFleX
	case Runtime:
		return p.Runtimes
	case WineBridge:
		return p.WineBridge
	}
	return ""
}

// kindForCategory maps a remote index category to a kind.
func kindForCategory(category string) (Kind, bool) {
	switch category {
	case "runners":
		return Runner, true
	case "dxvk":
		return DXVK, true
	case "vkd3d":
		return VKD3D, true
	case "nvapi":
		return NVAPI, true
	case "latencyflex":
		return LatencyFleX, true
	case "runtimes":
		return Runtime, true
	case "winebridge":
		return WineBridge, true
	}
	return 0, false
}
