package render

import (
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goitalic"
)

func TestSplitFontName(t *testing.T) {
	tests := map[string][2]string{
		"Inter-Bold":     {"inter", "bold"},
		"inter_medium":   {"inter", "medium"},
		"Open Sans Bold": {"open sans", "bold"},
		"Roboto":         {"roboto", "regular"},
	}
	for in, want := range tests {
		family, weight := splitFontName(in)
		if family != want[0] || weight != want[1] {
			t.Errorf("splitFontName(%q) = %q, %q, want %q, %q", in, family, weight, want[0], want[1])
		}
	}
}

func TestFontSet_PickFallsBackToDefault(t *testing.T) {
	fs, err := NewFontSet()
	if err != nil {
		t.Fatalf("NewFontSet() failed: %v", err)
	}

	if fs.pick("Comic Sans", 400) != fs.families["go"].regular {
		t.Error("Unknown family should fall back to the default regular face")
	}
	if fs.pick("Go", 700) != fs.families["go"].bold {
		t.Error("Weight 700 should select bold")
	}
	if fs.pick("go mono", 500) != fs.families["go mono"].regular {
		t.Error("Missing medium should fall back to regular")
	}
}

func TestFontSet_LoadDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "Brand.ttf"), goitalic.TTF, 0o644); err != nil {
		t.Fatalf("WriteFile() failed: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "Brand-Bold.ttf"), gobold.TTF, 0o644); err != nil {
		t.Fatalf("WriteFile() failed: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("skip"), 0o644); err != nil {
		t.Fatalf("WriteFile() failed: %v", err)
	}

	fs, err := NewFontSet()
	if err != nil {
		t.Fatalf("NewFontSet() failed: %v", err)
	}
	if err := fs.LoadDir(dir); err != nil {
		t.Fatalf("LoadDir() failed: %v", err)
	}

	fam, ok := fs.families["brand"]
	if !ok || fam.regular == nil || fam.bold == nil {
		t.Fatalf("Brand family not fully registered: %+v", fam)
	}
	face, err := fs.Face("Brand", 800, 24)
	if err != nil {
		t.Fatalf("Face() failed: %v", err)
	}
	defer face.Close()
	if face.Metrics().Height <= 0 {
		t.Error("Face has no height")
	}
}
