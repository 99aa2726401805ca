package sensor

import (
	colorful "github.com/lucasb-eyer/go-colorful"
)

var white = colorful.Color{R: 1, G: 1, B: 1}

var baseColors = map[string]colorful.Color{
	"cpu":     rgb(220, 30, 30),
	"gpu":     rgb(30, 160, 220),
	"ram":     rgb(20, 180, 90),
	"vram":    rgb(150, 60, 180),
	"ssd":     rgb(200, 160, 30),
	"wifi":    rgb(64, 180, 180),
	"eth":     rgb(200, 110, 0),
	"chipset": rgb(150, 60, 180),
}

var fallbackColor = rgb(160, 160, 160)

func rgb(r, g, b uint8) colorful.Color {
	return colorful.Color{R: float64(r) / 255, G: float64(g) / 255, B: float64(b) / 255}
}

// BaseColor returns the theme color of a group key.
func BaseColor(key string) colorful.Color {
	if c, ok := baseColors[key]; ok {
		return c
	}
	return fallbackColor
}

// Tint returns the i-th shade of a group's base color: the base blended
// toward white by 0.15 + 0.12*(i mod 6).
func Tint(key string, i int) colorful.Color {
	t := 0.15 + 0.12*float64(i%6)
	return BaseColor(key).BlendRgb(white, t).Clamped()
}

// Palette returns n shades of a group's base color.
func Palette(key string, n int) []colorful.Color {
	out := make([]colorful.Color, n)
	for i := range out {
		out[i] = Tint(key, i)
	}
	return out
}
