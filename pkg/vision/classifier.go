package vision

import "github.com/menta2k/banana-grader/pkg/types"

// Classification thresholds. Rules are evaluated in order and the first match wins.
const (
	DarkValueThreshold = 0.30

	YellowHueMin = 30
	YellowHueMax = 60
	GreenHueMax  = 120

	RedSaturationThreshold   = 0.6
	GreenSaturationThreshold = 0.5

	// yellow band sub-rules
	YellowVividSaturation = 0.5
	YellowVividValue      = 0.6
	YellowTipsHue         = 48
	YellowFullHue         = 38
	YellowGreenishHue     = 50
	YellowFleckHue        = 40
)

// Classify maps an HSV triple to a ripeness level. It is total over its input domain.
func Classify(hsv types.HSV) types.RipenessLevel {
	switch {
	case hsv.V < DarkValueThreshold:
		return types.Level9
	case hsv.H >= YellowHueMin && hsv.H <= YellowHueMax:
		return classifyYellow(hsv)
	case hsv.H < YellowHueMin:
		if hsv.S > RedSaturationThreshold {
			return types.Level7
		}
		return types.Level8
	case hsv.H > YellowHueMax && hsv.H < GreenHueMax:
		if hsv.S > GreenSaturationThreshold {
			return types.Level3
		}
		return types.Level2
	default:
		return types.Level9
	}
}

// classifyYellow splits the [30,60] hue band. Vivid pixels land on 5/6 (7 at the
// orange edge); dull pixels go to 4 on the green side and 7/8 on the orange side.
func classifyYellow(hsv types.HSV) types.RipenessLevel {
	if hsv.S >= YellowVividSaturation && hsv.V >= YellowVividValue {
		switch {
		case hsv.H >= YellowTipsHue:
			return types.Level5
		case hsv.H >= YellowFullHue:
			return types.Level6
		default:
			return types.Level7
		}
	}

	switch {
	case hsv.H > YellowGreenishHue:
		return types.Level4
	case hsv.H >= YellowFleckHue:
		return types.Level7
	default:
		return types.Level8
	}
}

// ClassifyRGB converts and classifies in one step
func ClassifyRGB(r, g, b uint8) types.RipenessLevel {
	return Classify(RGBToHSV(r, g, b))
}
