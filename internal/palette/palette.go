// Package palette parses the hex colors stored on strokes and layout rules.
package palette

import (
	"image/color"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
)

// Ink is used for colors that cannot be parsed.
var Ink = color.RGBA{A: 0xff}

// Paper 페이지 배경색
var Paper = color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}

// Parse returns the opaque color for a "#rgb" or "#rrggbb" string. Anything
// else renders as black ink.
func Parse(hex string) color.RGBA {
	r, g, b, ok := RGB(hex)
	if !ok {
		return Ink
	}
	return color.RGBA{R: r, G: g, B: b, A: 0xff}
}

// RGB returns the 8-bit channels of hex and whether it parsed.
func RGB(hex string) (r, g, b uint8, ok bool) {
	hex = strings.TrimSpace(hex)
	if hex == "" {
		return 0, 0, 0, false
	}
	if !strings.HasPrefix(hex, "#") {
		hex = "#" + hex
	}
	if len(hex) != 4 && len(hex) != 7 {
		return 0, 0, 0, false
	}
	c, err := colorful.Hex(strings.ToLower(hex))
	if err != nil {
		return 0, 0, 0, false
	}
	r, g, b = c.RGB255()
	return r, g, b, true
}
