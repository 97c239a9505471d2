package units

import (
	"math"
	"testing"
)

func TestIsValid(t *testing.T) {
	for _, u := range ValidUnits {
		if !IsValid(u) {
			t.Errorf("IsValid(%s) = false, want true", u)
		}
	}
	for _, u := range []string{"", "ft", "px", "MM"} {
		if IsValid(u) {
			t.Errorf("IsValid(%s) = true, want false", u)
		}
	}
}

func TestConvertLength(t *testing.T) {
	tests := []struct {
		name  string
		mm    float64
		units string
		want  float64
	}{
		{"mm passthrough", 150, MM, 150},
		{"mm to cm", 150, CM, 15},
		{"mm to m", 1500, M, 1.5},
		{"mm to in", 25.4, IN, 1},
		{"unknown unit falls back to mm", 42, "furlong", 42},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ConvertLength(tt.mm, tt.units)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("ConvertLength(%v, %s) = %v, want %v", tt.mm, tt.units, got, tt.want)
			}
		})
	}
}

func TestLabel(t *testing.T) {
	if Label("cm") != "cm" {
		t.Errorf("Label(cm) = %s", Label("cm"))
	}
	if Label("bogus") != MM {
		t.Errorf("Label(bogus) = %s, want mm", Label("bogus"))
	}
}
