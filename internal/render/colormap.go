package render

import (
	"image/color"
	"math"
)

// turbo maps t in [0, 1] to the Turbo rainbow colormap using the published
// degree-5 polynomial fit. Values outside the range are clamped.
func turbo(t float64, alpha uint8) color.NRGBA {
	t = clamp01(t)
	r := 0.13572138 + t*(4.61539260+t*(-42.66032258+t*(132.13108234+t*(-152.94239396+t*59.28637943))))
	g := 0.09140261 + t*(2.19418839+t*(4.84296658+t*(-14.18503333+t*(4.27729857+t*2.82956604))))
	b := 0.10667330 + t*(12.64194608+t*(-60.58204836+t*(110.36276771+t*(-89.90310912+t*27.34824973))))
	return color.NRGBA{R: channel(r), G: channel(g), B: channel(b), A: alpha}
}

func channel(v float64) uint8 {
	return uint8(math.Round(clamp01(v) * 255))
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

// logNorm maps count c into [0, 1] on a log scale between lo and hi. A flat
// grid (lo == hi) maps every occupied cell to the top of the scale.
func logNorm(c, lo, hi float64) float64 {
	if hi <= lo {
		return 1
	}
	return (math.Log(c) - math.Log(lo)) / (math.Log(hi) - math.Log(lo))
}
