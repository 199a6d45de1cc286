package palette

import (
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in   string
		want color.RGBA
	}{
		{"#000000", color.RGBA{A: 0xff}},
		{"#ff0000", color.RGBA{R: 0xff, A: 0xff}},
		{"#1E40AF", color.RGBA{R: 0x1e, G: 0x40, B: 0xaf, A: 0xff}},
		{"#fff", Paper},
		{"00ff00", color.RGBA{G: 0xff, A: 0xff}},
		{"", Ink},
		{"blue", Ink},
		{"#12345", Ink},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Parse(tt.in))
		})
	}
}
