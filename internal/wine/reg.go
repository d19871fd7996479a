package wine

import (
	"context"
)

// RegEntry is one value written with "reg add".
type RegEntry struct {
	Key   string
	Value string
	Data  string
	Type  string // REG_SZ when empty
}

// Reg implements Registry through the reg builtin of the runner.
type Reg struct{ x *Executor }

func (r *Reg) Add(ctx context.Context, p Prefix, e RegEntry) error {
	typ := e.Type
	if typ == "" {
		typ = "REG_SZ"
	}
	return r.x.run(ctx, p, "wine", "reg", "add", e.Key, "/v", e.Value, "/t", typ, "/d", e.Data, "/f")
}

func (r *Reg) Delete(ctx context.Context, p Prefix, key, value string) error {
	return r.x.run(ctx, p, "wine", "reg", "delete", key, "/v", value, "/f")
}

const (
	currentVersionKey = `HKEY_LOCAL_MACHINE\Software\Microsoft\Windows NT\CurrentVersion`
	productOptionsKey = `HKEY_LOCAL_MACHINE\System\CurrentControlSet\Control\ProductOptions`
	cmdConsoleKey     = `HKEY_CURRENT_USER\Console\C:_windows_system32_cmd.exe`

	// DLLOverridesKey holds per-dll load order overrides.
	DLLOverridesKey = `HKEY_CURRENT_USER\Software\Wine\DllOverrides`
)

type windowsVersion struct {
	productName string
	csdVersion  string
	build       string
	version     string
	productType string
}

var windowsVersions = map[string]windowsVersion{
	"win10": {"Microsoft Windows 10", "", "19043", "10.0", "WinNT"},
	"win81": {"Microsoft Windows 8.1", "", "9600", "6.3", "WinNT"},
	"win8":  {"Microsoft Windows 8", "", "9200", "6.2", "WinNT"},
	"win7":  {"Microsoft Windows 7", "Service Pack 1", "7601", "6.1", "WinNT"},
	"winxp": {"Microsoft Windows XP", "Service Pack 3", "2600", "5.1", "WinNT"},
}

// WindowsVersions lists the versions SetWindows knows.
func WindowsVersions() []string {
	return []string{"win10", "win81", "win8", "win7", "winxp"}
}

var cmdSettings = []RegEntry{
	{cmdConsoleKey, "CursorSize", "25", "REG_DWORD"},
	{cmdConsoleKey, "FaceName", "Monospace", "REG_SZ"},
	{cmdConsoleKey, "FontFamily", "1", "REG_DWORD"},
	{cmdConsoleKey, "FontSize", "1245184", "REG_DWORD"},
	{cmdConsoleKey, "FontWeight", "400", "REG_DWORD"},
	{cmdConsoleKey, "HistoryBufferSize", "50", "REG_DWORD"},
	{cmdConsoleKey, "QuickEdit", "1", "REG_DWORD"},
	{cmdConsoleKey, "ScreenBufferSize", "19660880", "REG_DWORD"},
	{cmdConsoleKey, "WindowSize", "1638480", "REG_DWORD"},
}

// Keys implements RegKeys on top of a Registry.
type Keys struct{ reg Registry }

// NewKeys returns RegKeys writing through reg.
func NewKeys(reg Registry) *Keys { return &Keys{reg: reg} }

// SetWindows makes the prefix report the given Windows version.
func (k *Keys) SetWindows(ctx context.Context, p Prefix, version string) error {
	v, ok := windowsVersions[version]
	if !ok {
		return &UnknownWindowsError{Version: version}
	}
	entries := []RegEntry{
		{currentVersionKey, "ProductName", v.productName, "REG_SZ"},
		{currentVersionKey, "CSDVersion", v.csdVersion, "REG_SZ"},
		{currentVersionKey, "CurrentBuild", v.build, "REG_SZ"},
		{currentVersionKey, "CurrentBuildNumber", v.build, "REG_SZ"},
		{currentVersionKey, "CurrentVersion", v.version, "REG_SZ"},
		{productOptionsKey, "ProductType", v.productType, "REG_SZ"},
	}
	return k.apply(ctx, p, entries)
}

// ApplyCMDSettings sets the cmd.exe console defaults.
func (k *Keys) ApplyCMDSettings(ctx context.Context, p Prefix) error {
	return k.apply(ctx, p, cmdSettings)
}

func (k *Keys) apply(ctx context.Context, p Prefix, entries []RegEntry) error {
	for _, e := range entries {
		if err := k.reg.Add(ctx, p, e); err != nil {
			return err
		}
	}
	return nil
}

// UnknownWindowsError is returned for a version SetWindows does not know.
type UnknownWindowsError struct{ Version string }

func (e *UnknownWindowsError) Error() string {
	return "unknown windows version " + e.Version
}
