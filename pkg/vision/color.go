// Package vision converts pixels to HSV and classifies them into ripeness levels.
package vision

import (
	"image/color"
	"math"

	"github.com/menta2k/banana-grader/pkg/types"
)

// RGBToHSV converts an 8-bit RGB triple to HSV with hue rounded to whole degrees
func RGBToHSV(r, g, b uint8) types.HSV {
	rf := float64(r) / 255.0
	gf := float64(g) / 255.0
	bf := float64(b) / 255.0

	maxC := math.Max(rf, math.Max(gf, bf))
	minC := math.Min(rf, math.Min(gf, bf))
	diff := maxC - minC

	var h float64
	switch {
	case diff == 0:
		h = 0
	case maxC == rf:
		h = 60 * math.Mod((gf-bf)/diff, 6)
	case maxC == gf:
		h = 60 * ((bf-rf)/diff + 2)
	default:
		h = 60 * ((rf-gf)/diff + 4)
	}
	if h < 0 {
		h += 360
	}

	hue := int(math.Round(h))
	if hue >= 360 {
		hue -= 360
	}

	var s float64
	if maxC != 0 {
		s = diff / maxC
	}

	return types.HSV{H: hue, S: s, V: maxC}
}

// ColorToHSV converts any color.Color, ignoring alpha
func ColorToHSV(c color.Color) types.HSV {
	n := color.NRGBAModel.Convert(c).(color.NRGBA)
	return RGBToHSV(n.R, n.G, n.B)
}
