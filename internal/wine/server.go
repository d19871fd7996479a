package wine

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/shirou/gopsutil/process"
)

// Wineserver implements Server.
type Wineserver struct{ x *Executor }

// IsAlive reports whether a wineserver process serving the prefix exists.
func (s *Wineserver) IsAlive(ctx context.Context, p Prefix) (bool, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return false, err
	}
	want := filepath.Clean(p.Path)
	for _, proc := range procs {
		name, err := proc.NameWithContext(ctx)
		if err != nil || !strings.HasPrefix(name, "wineserver") {
			continue
		}
		env, err := proc.EnvironWithContext(ctx)
		if err != nil {
			continue
		}
		for _, kv := range env {
			if v, ok := strings.CutPrefix(kv, "WINEPREFIX="); ok && filepath.Clean(v) == want {
				return true, nil
			}
		}
	}
	return false, nil
}

// Kill terminates the wineserver of the prefix and everything it runs.
func (s *Wineserver) Kill(ctx context.Context, p Prefix) error {
	return s.x.run(ctx, p, "wineserver", "-k")
}
