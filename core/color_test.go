package core

import (
	"image/color"
	"testing"
)

func TestParseColor(t *testing.T) {
	tests := []struct {
		in   string
		want color.NRGBA
	}{
		{"#fff", color.NRGBA{255, 255, 255, 255}},
		{"#FF0000", color.NRGBA{255, 0, 0, 255}},
		{"#00ff0080", color.NRGBA{0, 255, 0, 128}},
		{"#0008", color.NRGBA{0, 0, 0, 136}},
		{"rgb(1, 2, 3)", color.NRGBA{1, 2, 3, 255}},
		{"rgba(10,20,30,0.5)", color.NRGBA{10, 20, 30, 128}},
		{" White ", color.NRGBA{255, 255, 255, 255}},
		{"transparent", color.NRGBA{}},
	}

	for _, tt := range tests {
		got, err := ParseColor(tt.in)
		if err != nil {
			t.Errorf("ParseColor(%q) failed: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseColor(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestParseColor_Invalid(t *testing.T) {
	for _, in := range []string{"", "#12", "#ggg", "rgb(1,2)", "rgb(300,0,0)", "rgba(0,0,0,2)", "hsl(0,0%,0%)", "bluish"} {
		if _, err := ParseColor(in); err == nil {
			t.Errorf("ParseColor(%q) should fail", in)
		}
	}
}
