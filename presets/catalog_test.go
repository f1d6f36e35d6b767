package presets

import (
	"errors"
	"reflect"
	"testing"

	"storecanvas/core"
)

func TestList_All(t *testing.T) {
	c := NewCatalog()

	all := c.List("", "")
	if len(all) != 11 {
		t.Fatalf("List() returned %d presets, want 11", len(all))
	}
	for _, p := range all {
		if p.ID == "" || p.Code == "" || p.Label == "" {
			t.Errorf("Preset %+v is missing identity fields", p)
		}
		if p.AspectRatio != float64(p.Width)/float64(p.Height) {
			t.Errorf("Preset %s aspect ratio mismatch", p.Code)
		}
	}
}

func TestList_Idempotent(t *testing.T) {
	c := NewCatalog()

	first := c.List("", "")
	first[0].Width = 1
	first[1].Code = "mutated"

	second := c.List("", "")
	third := c.List("", "")
	if !reflect.DeepEqual(second, third) {
		t.Error("List() returned different content on repeated calls")
	}
	if second[0].Width == 1 || second[1].Code == "mutated" {
		t.Error("Mutating a List() result changed the catalog")
	}
}

func TestList_Filters(t *testing.T) {
	c := NewCatalog()

	apple := c.List(core.StoreAppleAppStore, "")
	if len(apple) != 8 {
		t.Errorf("Apple presets: got %d, want 8", len(apple))
	}
	for _, p := range apple {
		if p.Store != core.StoreAppleAppStore || p.Format != core.FormatPNG {
			t.Errorf("Unexpected Apple preset %+v", p)
		}
	}

	features := c.List(core.StoreGooglePlay, core.CategoryFeatureGraphic)
	if len(features) != 1 || features[0].Code != "google_play_feature_graphic" {
		t.Fatalf("Feature graphic filter mismatch: %+v", features)
	}
	if features[0].Format != core.FormatJPEG || features[0].Width != 1024 || features[0].Height != 500 {
		t.Errorf("Feature graphic preset mismatch: %+v", features[0])
	}

	if got := c.List("", core.CategoryTVBanner); len(got) != 0 {
		t.Errorf("TV banner filter should be empty, got %d", len(got))
	}
}

func TestByCodes_Order(t *testing.T) {
	c := NewCatalog()

	got, err := c.ByCodes([]string{"google_play_icon", "apple_iphone_6_7_portrait", "google_play_icon"})
	if err != nil {
		t.Fatalf("ByCodes() failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("ByCodes() returned %d presets, want 3", len(got))
	}
	if got[0].Code != "google_play_icon" || got[1].Code != "apple_iphone_6_7_portrait" || got[2].Code != "google_play_icon" {
		t.Errorf("ByCodes() order mismatch: %v, %v, %v", got[0].Code, got[1].Code, got[2].Code)
	}
	if got[1].ID != "apple-iphone-6-7-portrait" || got[1].Width != 1290 || got[1].Height != 2796 {
		t.Errorf("Preset mismatch: %+v", got[1])
	}
}

func TestByCodes_UnknownFailsFast(t *testing.T) {
	c := NewCatalog()

	got, err := c.ByCodes([]string{"apple_iphone_6_7_portrait", "nonexistent_code"})
	if !errors.Is(err, core.ErrUnknownPreset) {
		t.Fatalf("Expected ErrUnknownPreset, got %v", err)
	}
	if got != nil {
		t.Errorf("ByCodes() should not return partial results, got %d", len(got))
	}
}

func TestValidateExport_AppleBaseTooSmall(t *testing.T) {
	c := NewCatalog()
	p, _ := c.Get("apple_iphone_6_7_portrait")

	err := ValidateExport(p, 1200, 1200, core.FormatPNG)
	if !errors.Is(err, core.ErrBaseTooSmall) {
		t.Errorf("Expected ErrBaseTooSmall, got %v", err)
	}

	if err := ValidateExport(p, 1290, 2796, core.FormatPNG); err != nil {
		t.Errorf("Exact base size should pass, got %v", err)
	}
	if err := ValidateExport(p, 1290, 2795, core.FormatJPEG); !errors.Is(err, core.ErrBaseTooSmall) {
		t.Errorf("Short base height should fail, got %v", err)
	}
}

func TestValidateExport_GooglePolicy(t *testing.T) {
	tests := []struct {
		name string
		w, h int
		ok   bool
	}{
		{"4:1 ratio", 4000, 1000, false},
		{"wide but within 2:1", 1920, 1080, true},
		{"exactly 2:1", 1080, 2160, true},
		{"short edge too small", 300, 400, false},
		{"long edge too large", 3000, 3900, false},
		{"square icon", 512, 512, true},
		{"feature graphic just over 2:1", 1024, 500, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newPreset("custom", "Custom", core.StoreGooglePlay, tt.w, tt.h, core.FormatPNG, core.CategoryScreenshot)
			err := ValidateExport(p, 100, 100, core.FormatPNG)
			if tt.ok && err != nil {
				t.Errorf("ValidateExport() failed: %v", err)
			}
			if !tt.ok && !errors.Is(err, core.ErrAspectOrSizeOutOfRange) {
				t.Errorf("Expected ErrAspectOrSizeOutOfRange, got %v", err)
			}
		})
	}
}

func TestValidateExport_Format(t *testing.T) {
	p, _ := NewCatalog().Get("google_play_icon")

	for _, f := range []core.Format{"", "gif", "jpg", "PNG"} {
		if err := ValidateExport(p, 4096, 4096, f); !errors.Is(err, core.ErrInvalidFormat) {
			t.Errorf("Format %q: expected ErrInvalidFormat, got %v", f, err)
		}
	}
}
