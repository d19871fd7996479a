package component

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

const testIndex = `
caffe-7.20:
  Category: runners
  Sub-category: wine
  Channel: stable
caffe-8.0-rc1:
  Category: runners
  Sub-category: wine
  Channel: rc
proton-ge-8-25:
  Category: runners
  Sub-category: proton
  Channel: stable
dxvk-2.3:
  Category: dxvk
  Channel: stable
dxvk-1.10.3:
  Category: dxvk
  Channel: stable
some-installer:
  Category: installers
  Channel: stable
`

func names(es []Entry) []string {
	var out []string
	for _, e := range es {
		out = append(out, e.Name)
	}
	return out
}

func TestParseIndex_KeepsDeclarationOrder(t *testing.T) {
	c, err := ParseIndex([]byte(testIndex))
	if err != nil {
		t.Fatal(err)
	}

	if diff := cmp.Diff([]string{"caffe-7.20", "caffe-8.0-rc1", "proton-ge-8-25"}, names(c.Entries(Runner))); diff != "" {
		t.Errorf("runner order mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"dxvk-2.3", "dxvk-1.10.3"}, names(c.Entries(DXVK))); diff != "" {
		t.Errorf("dxvk order mismatch (-want +got):\n%s", diff)
	}
	if c.Len() != 5 {
		t.Errorf("Len = %d, want 5 (installers are not components)", c.Len())
	}

	e, ok := c.Lookup(Runner, "caffe-8.0-rc1")
	if !ok {
		t.Fatal("caffe-8.0-rc1 not found")
	}
	if !e.Prerelease() || e.SubCategory != "wine" {
		t.Errorf("unexpected entry %+v", e)
	}
	if e.manifestPath() != "runners/wine/caffe-8.0-rc1.yml" {
		t.Errorf("manifestPath = %q", e.manifestPath())
	}
	if d, _ := c.Lookup(DXVK, "dxvk-2.3"); d.manifestPath() != "dxvk/dxvk-2.3.yml" {
		t.Errorf("manifestPath = %q", d.manifestPath())
	}
}

func TestParseIndex_Errors(t *testing.T) {
	if _, err := ParseIndex([]byte("- a\n- b\n")); err == nil {
		t.Error("expected error for non-mapping index")
	}
	c, err := ParseIndex(nil)
	if err != nil {
		t.Fatal(err)
	}
	if c.Len() != 0 {
		t.Errorf("empty index should yield empty catalog")
	}
}
