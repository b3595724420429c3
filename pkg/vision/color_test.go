package vision

import (
	"image/color"
	"math"
	"testing"
)

func TestRGBToHSVPrimaries(t *testing.T) {
	tests := []struct {
		name    string
		r, g, b uint8
		wantH   int
	}{
		{"red", 255, 0, 0, 0},
		{"green", 0, 255, 0, 120},
		{"blue", 0, 0, 255, 240},
		{"yellow", 255, 255, 0, 60},
		{"cyan", 0, 255, 255, 180},
		{"magenta", 255, 0, 255, 300},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hsv := RGBToHSV(tt.r, tt.g, tt.b)
			if hsv.H != tt.wantH {
				t.Errorf("Expected hue %d, got %d", tt.wantH, hsv.H)
			}
			if hsv.S != 1.0 {
				t.Errorf("Expected saturation 1.0, got %f", hsv.S)
			}
			if hsv.V != 1.0 {
				t.Errorf("Expected value 1.0, got %f", hsv.V)
			}
		})
	}
}

func TestRGBToHSVAchromatic(t *testing.T) {
	black := RGBToHSV(0, 0, 0)
	if black.H != 0 || black.S != 0 || black.V != 0 {
		t.Errorf("Expected black to be (0,0,0), got %+v", black)
	}

	grey := RGBToHSV(128, 128, 128)
	if grey.H != 0 || grey.S != 0 {
		t.Errorf("Expected grey to have zero hue and saturation, got %+v", grey)
	}
	if math.Abs(grey.V-128.0/255.0) > 1e-12 {
		t.Errorf("Expected grey value %f, got %f", 128.0/255.0, grey.V)
	}
}

func TestRGBToHSVHueWrapsBelow360(t *testing.T) {
	// raw hue is ~359.76 which rounds to 360 and must wrap to 0
	hsv := RGBToHSV(255, 0, 1)
	if hsv.H != 0 {
		t.Errorf("Expected hue to wrap to 0, got %d", hsv.H)
	}
}

func TestRGBToHSVRanges(t *testing.T) {
	for r := 0; r < 256; r += 15 {
		for g := 0; g < 256; g += 15 {
			for b := 0; b < 256; b += 15 {
				hsv := RGBToHSV(uint8(r), uint8(g), uint8(b))
				if hsv.H < 0 || hsv.H >= 360 {
					t.Fatalf("Hue out of range for (%d,%d,%d): %d", r, g, b, hsv.H)
				}
				if hsv.S < 0 || hsv.S > 1 || hsv.V < 0 || hsv.V > 1 {
					t.Fatalf("S/V out of range for (%d,%d,%d): %+v", r, g, b, hsv)
				}
			}
		}
	}
}

func TestColorToHSVIgnoresAlpha(t *testing.T) {
	opaque := ColorToHSV(color.NRGBA{R: 255, G: 200, B: 0, A: 255})
	translucent := ColorToHSV(color.NRGBA{R: 255, G: 200, B: 0, A: 40})
	if opaque != translucent {
		t.Errorf("Expected alpha to be ignored: %+v vs %+v", opaque, translucent)
	}
}

func BenchmarkRGBToHSV(b *testing.B) {
	for i := 0; i < b.N; i++ {
		RGBToHSV(uint8(i), uint8(i>>8), uint8(i>>16))
	}
}
