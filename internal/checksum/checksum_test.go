package checksum

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestFile(t *testing.T) {
	path := writeTemp(t, "hello bottles")
	sum, err := File(path)
	if err != nil {
		t.Fatalf("File failed: %v", err)
	}
	if !strings.HasPrefix(sum, "sha256:") {
		t.Errorf("expected sha256: prefix, got %q", sum)
	}
	sum2, _ := File(path)
	if sum != sum2 {
		t.Errorf("hashes differ for same file: %q vs %q", sum, sum2)
	}
}

func TestFile_Missing(t *testing.T) {
	if _, err := File("/nonexistent/path/file.txt"); err == nil {
		t.Error("expected error for missing file, got nil")
	}
}

func TestVerify(t *testing.T) {
	// md5("abc") and sha256("abc")
	path := writeTemp(t, "abc")
	const md5abc = "900150983cd24fb0d6963f7d28e17f72"
	const sha256abc = "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"

	cases := []struct {
		name    string
		want    string
		wantErr bool
	}{
		{"empty", "", false},
		{"prefixed sha256", "sha256:" + sha256abc, false},
		{"bare sha256", sha256abc, false},
		{"bare md5", md5abc, false},
		{"prefixed md5 upper", "MD5:" + strings.ToUpper(md5abc), false},
		{"mismatch", "sha256:" + strings.Repeat("0", 64), true},
		{"unknown algo", "crc32:abcd", true},
	}
	for _, c := range cases {
		err := Verify(path, c.want)
		if (err != nil) != c.wantErr {
			t.Errorf("%s: Verify err = %v, wantErr %v", c.name, err, c.wantErr)
		}
	}
}
