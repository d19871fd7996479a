package component

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestSortVersions(t *testing.T) {
	cases := []struct {
		name string
		in   []string
		want []string
	}{
		{
			name: "semver",
			in:   []string{"dxvk-1.10", "dxvk-2.0", "dxvk-1.9"},
			want: []string{"dxvk-2.0", "dxvk-1.10", "dxvk-1.9"},
		},
		{
			name: "v prefix",
			in:   []string{"vkd3d-proton-v2.6", "vkd3d-proton-v2.10"},
			want: []string{"vkd3d-proton-v2.10", "vkd3d-proton-v2.6"},
		},
		{
			name: "lexicographic fallback",
			in:   []string{"caffe-7.20", "custom", "caffe-7.9"},
			want: []string{"custom", "caffe-7.9", "caffe-7.20"},
		},
		{
			name: "empty",
			in:   nil,
			want: nil,
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := SortVersions(c.in)
			if diff := cmp.Diff(c.want, got); diff != "" {
				t.Errorf("SortVersions mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestSortVersions_DoesNotModifyInput(t *testing.T) {
	in := []string{"dxvk-1.9", "dxvk-2.0"}
	SortVersions(in)
	if in[0] != "dxvk-1.9" {
		t.Errorf("input modified: %v", in)
	}
}

func TestParseKind(t *testing.T) {
	cases := map[string]Kind{
		"runner":      Runner,
		"runners":     Runner,
		"DXVK":        DXVK,
		"vkd3d":       VKD3D,
		"nvapi":       NVAPI,
		"latencyflex": LatencyFleX,
		"runtime":     Runtime,
		"winebridge":  WineBridge,
	}
	for in, want := range cases {
		got, err := ParseKind(in)
		if err != nil || got != want {
			t.Errorf("ParseKind(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseKind("gallium"); err == nil {
		t.Error("expected error for unknown kind")
	}
}
