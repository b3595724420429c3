package vision

import (
	"testing"

	"github.com/menta2k/banana-grader/pkg/types"
)

func TestClassifyBoundaries(t *testing.T) {
	tests := []struct {
		name string
		hsv  types.HSV
		want types.RipenessLevel
	}{
		{"value exactly 0.30 falls through", types.HSV{H: 45, S: 0.8, V: 0.30}, types.Level7},
		{"value just below 0.30 is dark", types.HSV{H: 45, S: 0.8, V: 0.299999}, types.Level9},
		{"dark ignores hue", types.HSV{H: 100, S: 1, V: 0.1}, types.Level9},

		{"hue 30 is yellow band", types.HSV{H: 30, S: 0.9, V: 0.9}, types.Level7},
		{"hue 29 vivid red", types.HSV{H: 29, S: 0.61, V: 0.9}, types.Level7},
		{"hue 29 saturation 0.6 is not above", types.HSV{H: 29, S: 0.6, V: 0.9}, types.Level8},
		{"hue 0 grey", types.HSV{H: 0, S: 0, V: 0.5}, types.Level8},

		{"hue 60 is yellow band", types.HSV{H: 60, S: 0.9, V: 0.9}, types.Level5},
		{"hue 61 saturation 0.5 is not above", types.HSV{H: 61, S: 0.5, V: 0.9}, types.Level2},
		{"hue 61 saturated green", types.HSV{H: 61, S: 0.51, V: 0.9}, types.Level3},
		{"hue 119 saturated green", types.HSV{H: 119, S: 0.6, V: 0.9}, types.Level3},
		{"hue 120 outside green band", types.HSV{H: 120, S: 0.6, V: 0.9}, types.Level9},
		{"blue", types.HSV{H: 240, S: 1, V: 1}, types.Level9},
		{"purple", types.HSV{H: 300, S: 1, V: 1}, types.Level9},

		{"vivid tips lower edge", types.HSV{H: 48, S: 0.5, V: 0.6}, types.Level5},
		{"vivid full yellow", types.HSV{H: 47, S: 0.9, V: 0.9}, types.Level6},
		{"vivid full yellow lower edge", types.HSV{H: 38, S: 0.9, V: 0.9}, types.Level6},
		{"vivid orange edge", types.HSV{H: 37, S: 0.9, V: 0.9}, types.Level7},
		{"saturation just below vivid", types.HSV{H: 45, S: 0.49, V: 0.9}, types.Level7},
		{"value just below vivid", types.HSV{H: 55, S: 0.9, V: 0.59}, types.Level4},

		{"dull greenish side", types.HSV{H: 51, S: 0.3, V: 0.8}, types.Level4},
		{"dull hue 50", types.HSV{H: 50, S: 0.3, V: 0.8}, types.Level7},
		{"dull hue 40", types.HSV{H: 40, S: 0.3, V: 0.8}, types.Level7},
		{"dull hue 39", types.HSV{H: 39, S: 0.3, V: 0.8}, types.Level8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.hsv); got != tt.want {
				t.Errorf("Classify(%+v): expected level %d, got %d", tt.hsv, tt.want, got)
			}
		})
	}
}

func TestClassifyRGB(t *testing.T) {
	tests := []struct {
		name    string
		r, g, b uint8
		want    types.RipenessLevel
	}{
		{"yellow", 255, 255, 0, types.Level5},
		{"golden", 255, 200, 0, types.Level6},
		{"orange", 255, 100, 0, types.Level7},
		{"brown", 150, 100, 80, types.Level8},
		{"leaf green", 100, 200, 50, types.Level3},
		{"pale green", 150, 180, 130, types.Level2},
		{"black", 0, 0, 0, types.Level9},
		{"dark olive", 70, 70, 0, types.Level9},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyRGB(tt.r, tt.g, tt.b); got != tt.want {
				t.Errorf("Expected level %d, got %d (hsv %+v)", tt.want, got, RGBToHSV(tt.r, tt.g, tt.b))
			}
		})
	}
}

func TestClassifyTotalAndDeterministic(t *testing.T) {
	for r := 0; r < 256; r += 5 {
		for g := 0; g < 256; g += 5 {
			for b := 0; b < 256; b += 5 {
				hsv := RGBToHSV(uint8(r), uint8(g), uint8(b))
				first := Classify(hsv)
				if !first.Valid() {
					t.Fatalf("Level %d out of range for (%d,%d,%d)", first, r, g, b)
				}
				if again := Classify(hsv); again != first {
					t.Fatalf("Non-deterministic classification for (%d,%d,%d)", r, g, b)
				}
			}
		}
	}
}

func BenchmarkClassifyRGB(b *testing.B) {
	for i := 0; i < b.N; i++ {
		ClassifyRGB(uint8(i), uint8(i>>8), uint8(i>>16))
	}
}
