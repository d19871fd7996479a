package steam

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseLaunchOptions(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want LaunchOptions
	}{
		{
			name: "full",
			in:   "DXVK_HUD=1 PROTON_LOG=1 gamemoderun mangohud %command% -novid",
			want: LaunchOptions{
				Env:     EnvList{{"DXVK_HUD", "1"}, {"PROTON_LOG", "1"}},
				Command: "gamemoderun mangohud",
				Args:    "-novid",
			},
		},
		{
			name: "quoted value",
			in:   "FOO='a b' %command%",
			want: LaunchOptions{Env: EnvList{{"FOO", "a b"}}},
		},
		{
			name: "no marker",
			in:   " -novid -high ",
			want: LaunchOptions{Args: "-novid -high"},
		},
		{
			name: "empty",
			in:   "",
			want: LaunchOptions{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseLaunchOptions(tt.in)
			if err != nil {
				t.Fatalf("ParseLaunchOptions: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseLaunchOptionsUnclosedQuote(t *testing.T) {
	if _, err := ParseLaunchOptions("FOO='a %command%"); err == nil {
		t.Fatal("expected error for unclosed quote")
	}
}

func TestLaunchOptionsString(t *testing.T) {
	o := LaunchOptions{
		Env:     EnvList{{"DXVK_HUD", "1"}},
		Command: "gamemode mangohud",
		Args:    "-high",
	}
	if got, want := o.String(), "DXVK_HUD=1 gamemode mangohud %command% -high"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}

	spaced := LaunchOptions{Env: EnvList{{"FOO", "a b"}}}
	if got, want := spaced.String(), "FOO='a b' %command%"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestLaunchOptionsRoundTrip(t *testing.T) {
	for _, in := range []string{
		"DXVK_HUD=1 gamemode mangohud %command% -high",
		"A=1 B='x y' %command%",
		"%command% -novid",
		"mangohud %command%",
	} {
		o, err := ParseLaunchOptions(in)
		if err != nil {
			t.Fatalf("ParseLaunchOptions(%q): %v", in, err)
		}
		if got := o.String(); got != in {
			t.Errorf("round trip of %q = %q", in, got)
		}
	}
}

func TestEnvList(t *testing.T) {
	var l EnvList
	l.Set("A", "1")
	l.Set("B", "2")
	l.Set("A", "3")
	if diff := cmp.Diff(EnvList{{"A", "3"}, {"B", "2"}}, l); diff != "" {
		t.Errorf("Set mismatch (-want +got):\n%s", diff)
	}
	if v, ok := l.Get("B"); !ok || v != "2" {
		t.Errorf("Get(B) = %q, %v", v, ok)
	}
	l.Delete("A")
	if diff := cmp.Diff(map[string]string{"B": "2"}, l.Map()); diff != "" {
		t.Errorf("Delete mismatch (-want +got):\n%s", diff)
	}
}

func TestMergeReplacesCommand(t *testing.T) {
	o := LaunchOptions{Env: EnvList{{"A", "1"}}, Command: "mangohud", Args: "-x"}
	o.Merge("", EnvList{{"B", "2"}, {"A", "9"}})
	want := LaunchOptions{Env: EnvList{{"A", "9"}, {"B", "2"}}, Args: "-x"}
	if diff := cmp.Diff(want, o); diff != "" {
		t.Errorf("Merge mismatch (-want +got):\n%s", diff)
	}
}

func TestRemoveCommand(t *testing.T) {
	tests := []struct {
		command, key, want string
	}{
		{"gamemoderun mangohud", "mangohud", "gamemoderun"},
		{"gamemoderun mangohud", "gamemoderun", "mangohud"},
		{"mangohud", "mangohud", ""},
		{"gamemoderun", "mangohud", "gamemoderun"},
		{"gamemoderun", "", "gamemoderun"},
	}
	for _, tt := range tests {
		o := LaunchOptions{Command: tt.command}
		o.RemoveCommand(tt.key)
		if o.Command != tt.want {
			t.Errorf("RemoveCommand(%q) on %q = %q, want %q", tt.key, tt.command, o.Command, tt.want)
		}
	}
}
