// Package raster paints outline polygons and layout geometry onto RGBA
// images. It is the bitmap side of the canvas; internal/export holds the
// vector side.
package raster

import (
	"image"
	"image/color"
	"image/draw"
	"io"

	"github.com/fogleman/gg"
	"golang.org/x/image/font"

	"canvas-backend/internal/outline"
)

// Painter draws into an RGBA image.
type Painter struct {
	img     *image.RGBA
	dc      *gg.Context
	scratch *gg.Context
}

// New 투명한 w×h 캔버스 생성
func New(w, h int) *Painter {
	return NewPainter(image.NewRGBA(image.Rect(0, 0, w, h)))
}

// NewPainter paints onto an existing image.
func NewPainter(img *image.RGBA) *Painter {
	return &Painter{img: img, dc: gg.NewContextForRGBA(img)}
}

// Image returns the backing image.
func (p *Painter) Image() *image.RGBA { return p.img }

// Clear resets every pixel to transparent.
func (p *Painter) Clear() {
	p.dc.SetColor(color.Transparent)
	p.dc.Clear()
}

// FillPolygon paints poly with c, smoothing the outline through the
// midpoints of consecutive vertices. Fewer than two vertices draw nothing.
func (p *Painter) FillPolygon(poly []outline.Vec, c color.Color) {
	if !tracePath(p.dc, poly) {
		return
	}
	p.dc.SetColor(c)
	p.dc.Fill()
}

// ErasePolygon removes the pixels under poly (destination-out), including
// anything painted before it such as the template layer.
func (p *Painter) ErasePolygon(poly []outline.Vec) {
	if len(poly) < 2 {
		return
	}
	if p.scratch == nil {
		b := p.img.Bounds()
		p.scratch = gg.NewContext(b.Dx(), b.Dy())
	}
	p.scratch.SetColor(color.Transparent)
	p.scratch.Clear()
	tracePath(p.scratch, poly)
	p.scratch.SetColor(color.Black)
	p.scratch.Fill()

	mask := p.scratch.AsMask()
	b := p.img.Bounds()
	draw.DrawMask(p.img, b, image.Transparent, image.Point{}, mask, image.Point{}, draw.Src)
}

// Line strokes a straight segment with butt caps.
func (p *Painter) Line(x1, y1, x2, y2, width float64, c color.Color) {
	p.dc.SetColor(c)
	p.dc.SetLineWidth(width)
	p.dc.SetLineCapButt()
	p.dc.DrawLine(x1, y1, x2, y2)
	p.dc.Stroke()
}

// Text draws s with its baseline at y.
func (p *Painter) Text(face font.Face, s string, x, y float64, c color.Color) {
	if face == nil || s == "" {
		return
	}
	p.dc.SetFontFace(face)
	p.dc.SetColor(c)
	p.dc.DrawString(s, x, y)
}

func tracePath(dc *gg.Context, poly []outline.Vec) bool {
	dc.ClearPath()
	n := len(poly)
	if n < 2 {
		return false
	}
	dc.MoveTo(poly[0].X, poly[0].Y)
	for i := 0; i < n; i++ {
		m := outline.Mid(poly[i], poly[(i+1)%n])
		dc.QuadraticTo(poly[i].X, poly[i].Y, m.X, m.Y)
	}
	dc.ClosePath()
	return true
}

// Flatten composites img over an opaque background and returns a new image.
func Flatten(img *image.RGBA, bg color.Color) *image.RGBA {
	b := img.Bounds()
	out := image.NewRGBA(b)
	draw.Draw(out, b, image.NewUniform(bg), image.Point{}, draw.Src)
	draw.Draw(out, b, img, b.Min, draw.Over)
	return out
}

// EncodePNG writes img as PNG.
func EncodePNG(w io.Writer, img *image.RGBA) error {
	return gg.NewContextForRGBA(img).EncodePNG(w)
}
