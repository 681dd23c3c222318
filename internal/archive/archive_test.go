package archive

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestParseKey(t *testing.T) {
	tests := []struct {
		key    string
		prefix string
		number int
		ok     bool
	}{
		{"IM_123.html", "IM", 123, true},
		{"TWIG_05.html", "TWIG", 5, true},
		{"SN_951.html", "SN", 951, true},
		{"AAA_0.html", "AAA", 0, true},
		{"sn_951.html", "", 0, false},
		{"IM_951.html.bak", "", 0, false},
		{"IM_.html", "", 0, false},
		{"readme.md", "", 0, false},
		{"IM-123.html", "", 0, false},
	}
	for _, tt := range tests {
		prefix, number, ok := ParseKey(tt.key)
		if prefix != tt.prefix || number != tt.number || ok != tt.ok {
			t.Errorf("ParseKey(%q) = (%q, %d, %v), want (%q, %d, %v)",
				tt.key, prefix, number, ok, tt.prefix, tt.number, tt.ok)
		}
	}
}

func TestScan(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"IM_2.html", "IM_10.html", "TWIG_5.html", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("<html></html>"), 0o644); err != nil {
			t.Fatalf("write fixture: %v", err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "IM_3.html"), 0o755); err != nil {
		t.Fatalf("mkdir fixture: %v", err)
	}

	idx, err := New(dir).Scan()
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if got, want := idx.Prefixes(), []string{"IM", "TWIG"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("prefixes = %v, want %v", got, want)
	}
	if idx.Documents() != 3 {
		t.Errorf("got %d documents, want 3", idx.Documents())
	}

	im := idx["IM"]
	if len(im) != 2 {
		t.Fatalf("got %d IM documents, want 2", len(im))
	}
	// Numeric order, not lexicographic: 2 before 10.
	if im[0].Number != 2 || im[1].Number != 10 {
		t.Errorf("IM numbers = %d, %d, want 2, 10", im[0].Number, im[1].Number)
	}
	doc := im[1]
	if doc.Key != "IM_10.html" || doc.Prefix != "IM" {
		t.Errorf("document = %+v, want key IM_10.html prefix IM", doc)
	}
	if doc.Path != filepath.Join(dir, "IM_10.html") {
		t.Errorf("path = %q, want it under the archive dir", doc.Path)
	}
	if doc.Size != int64(len("<html></html>")) {
		t.Errorf("size = %d, want %d", doc.Size, len("<html></html>"))
	}
}

func TestScan_emptyDir(t *testing.T) {
	idx, err := New(t.TempDir()).Scan()
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if len(idx.Prefixes()) != 0 || idx.Documents() != 0 {
		t.Errorf("got %v, want an empty index", idx)
	}
}

func TestScan_missingDir(t *testing.T) {
	if _, err := New(filepath.Join(t.TempDir(), "nope")).Scan(); err == nil {
		t.Fatal("expected an error for a missing archive directory")
	}
}
