// Package wine runs the prefix bookkeeping commands bottlectl needs:
// wineboot, reg and wineserver, against a runner and a prefix.
package wine

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-hclog"
	"github.com/kballard/go-shellquote"
)

// Prefix is a wine prefix together with the runner that manages it.
type Prefix struct {
	Path   string
	Runner string // runner directory name, "sys-*" for the system wine
	Arch   string // win64 or win32
	Env    map[string]string
}

// Boot drives wineboot.
type Boot interface {
	Init(ctx context.Context, p Prefix) error
	Update(ctx context.Context, p Prefix) error
	Kill(ctx context.Context, p Prefix) error
	Force(ctx context.Context, p Prefix) error
}

// Registry edits the prefix registry.
type Registry interface {
	Add(ctx context.Context, p Prefix, e RegEntry) error
	Delete(ctx context.Context, p Prefix, key, value string) error
}

// RegKeys applies groups of registry settings.
type RegKeys interface {
	SetWindows(ctx context.Context, p Prefix, version string) error
	ApplyCMDSettings(ctx context.Context, p Prefix) error
}

// Server controls the wineserver of a prefix.
type Server interface {
	IsAlive(ctx context.Context, p Prefix) (bool, error)
	Kill(ctx context.Context, p Prefix) error
}

// Uninstaller removes programs registered in the prefix.
type Uninstaller interface {
	Remove(ctx context.Context, p Prefix, program string) error
}

// Executor runs commands from runners installed below a runners
// directory. The system wine is looked up on PATH.
type Executor struct {
	runners string
	log     hclog.Logger
}

// NewExecutor returns an executor for runners below runnersDir.
func NewExecutor(runnersDir string, log hclog.Logger) *Executor {
	return &Executor{runners: runnersDir, log: log.Named("wine")}
}

// Wineboot returns the Boot implementation.
func (x *Executor) Wineboot() *Wineboot { return &Wineboot{x: x} }

// Reg returns the Registry implementation.
func (x *Executor) Reg() *Reg { return &Reg{x: x} }

// Keys returns the RegKeys implementation.
func (x *Executor) Keys() *Keys { return &Keys{reg: x.Reg()} }

// Uninstaller returns the Uninstaller implementation.
func (x *Executor) Uninstaller() *ProgramUninstaller { return &ProgramUninstaller{x: x} }

// Wineserver returns the Server implementation.
func (x *Executor) Wineserver() *Wineserver { return &Wineserver{x: x} }

var binDirs = []string{"bin", "files/bin", "dist/bin"}

// binary locates name (wine, wineserver) for runner.
func (x *Executor) binary(runner, name string) (string, error) {
	if runner == "" || strings.HasPrefix(runner, "sys-") {
		return exec.LookPath(name)
	}
	for _, dir := range binDirs {
		p := filepath.Join(x.runners, runner, dir, name)
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p, nil
		}
	}
	return "", fmt.Errorf("%s not found in runner %s", name, runner)
}

func (p Prefix) environ() []string {
	env := os.Environ()
	for k, v := range p.Env {
		env = append(env, k+"="+v)
	}
	env = append(env, "WINEPREFIX="+p.Path, "WINEDEBUG=-all")
	if p.Arch != "" {
		env = append(env, "WINEARCH="+p.Arch)
	}
	return env
}

func (x *Executor) command(ctx context.Context, p Prefix, name string, args ...string) (*exec.Cmd, error) {
	bin, err := x.binary(p.Runner, name)
	if err != nil {
		return nil, err
	}
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Env = p.environ()
	cmd.Dir = p.Path
	x.log.Debug("running", "prefix", p.Path, "cmd", shellquote.Join(append([]string{name}, args...)...))
	return cmd, nil
}

// run executes binary name of the prefix runner with args. Output goes to
// the debug log.
func (x *Executor) run(ctx context.Context, p Prefix, name string, args ...string) error {
	cmd, err := x.command(ctx, p, name, args...)
	if err != nil {
		return err
	}
	out := x.log.StandardWriter(&hclog.StandardLoggerOptions{ForceLevel: hclog.Debug})
	cmd.Stdout = out
	cmd.Stderr = out
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s %s failed: %w", name, strings.Join(args, " "), err)
	}
	return nil
}

// output is like run but returns stdout.
func (x *Executor) output(ctx context.Context, p Prefix, name string, args ...string) (string, error) {
	cmd, err := x.command(ctx, p, name, args...)
	if err != nil {
		return "", err
	}
	cmd.Stderr = x.log.StandardWriter(&hclog.StandardLoggerOptions{ForceLevel: hclog.Debug})
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("%s %s failed: %w", name, strings.Join(args, " "), err)
	}
	return string(out), nil
}

// Wineboot implements Boot.
type Wineboot struct{ x *Executor }

func (b *Wineboot) boot(ctx context.Context, p Prefix, flag string) error {
	return b.x.run(ctx, p, "wine", "wineboot", flag)
}

func (b *Wineboot) Init(ctx context.Context, p Prefix) error   { return b.boot(ctx, p, "--init") }
func (b *Wineboot) Update(ctx context.Context, p Prefix) error { return b.boot(ctx, p, "-u") }
func (b *Wineboot) Kill(ctx context.Context, p Prefix) error   { return b.boot(ctx, p, "-k") }
func (b *Wineboot) Force(ctx context.Context, p Prefix) error  { return b.boot(ctx, p, "-f") }

// ProgramUninstaller implements Uninstaller with the wine uninstaller.
type ProgramUninstaller struct{ x *Executor }

// Remove looks program up in "uninstaller --list" and removes it by id.
func (u *ProgramUninstaller) Remove(ctx context.Context, p Prefix, program string) error {
	list, err := u.x.output(ctx, p, "wine", "uninstaller", "--list")
	if err != nil {
		return err
	}
	for _, line := range strings.Split(list, "\n") {
		id, name, ok := strings.Cut(strings.TrimSpace(line), "|||")
		if ok && name == program {
			return u.x.run(ctx, p, "wine", "uninstaller", "--remove", id)
		}
	}
	return fmt.Errorf("program %q not registered in prefix", program)
}
