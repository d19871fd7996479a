package component

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// DLL is one library of an installed translation layer and the system
// directory of a prefix it goes to.
type DLL struct {
	Name   string // without extension, as used for DLL overrides
	Src    string
	Target string // relative to drive_c/windows
}

// PlanDLLs lists the libraries below dir (an installed DXVK, VKD3D, NVAPI
// or LatencyFleX version) and where they belong in a prefix of arch.
// 64 bit libraries live in x64, 32 bit ones in x32 or x86.
func PlanDLLs(dir, arch string) ([]DLL, error) {
	targets := map[string]string{"x64": "system32", "x32": "syswow64", "x86": "syswow64"}
	if arch == "win32" {
		targets = map[string]string{"x32": "system32", "x86": "system32"}
	}

	var plan []DLL
	for sub, target := range targets {
		entries, err := os.ReadDir(filepath.Join(dir, sub))
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			name := e.Name()
			if e.IsDir() || !strings.EqualFold(filepath.Ext(name), ".dll") {
				continue
			}
			plan = append(plan, DLL{
				Name:   strings.TrimSuffix(name, filepath.Ext(name)),
				Src:    filepath.Join(dir, sub, name),
				Target: filepath.Join(target, name),
			})
		}
	}
	sort.Slice(plan, func(i, j int) bool { return plan[i].Target < plan[j].Target })
	return plan, nil
}
