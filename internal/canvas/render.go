package canvas

import (
	"golang.org/x/image/font"

	"canvas-backend/internal/layout"
	"canvas-backend/internal/model"
	"canvas-backend/internal/outline"
	"canvas-backend/internal/palette"
	"canvas-backend/internal/raster"
)

// DrawLayout paints the template rules and labels.
func DrawLayout(p *raster.Painter, l layout.Layout, face font.Face) {
	for _, r := range l.Rules {
		st := layout.StyleOf(r.Kind)
		p.Line(r.X1, r.Y1, r.X2, r.Y2, st.Width, palette.Parse(st.Color))
	}
	labelColor := palette.Parse(layout.LabelColor)
	for _, lb := range l.Labels {
		p.Text(face, lb.Text, lb.X, lb.Y, labelColor)
	}
}

// DrawStroke fills the outline of s, or cuts it out of everything drawn so
// far when s is an eraser stroke.
func DrawStroke(p *raster.Painter, s model.Stroke) {
	poly := outline.ForStroke(s)
	if poly == nil {
		return
	}
	if s.IsEraser {
		p.ErasePolygon(poly)
		return
	}
	p.FillPolygon(poly, palette.Parse(s.Color))
}

// RenderPage draws one frame bottom to top: clear, template layer, then
// strokes in draw order.
func RenderPage(p *raster.Painter, l layout.Layout, strokes []model.Stroke, face font.Face) {
	p.Clear()
	DrawLayout(p, l, face)
	for _, s := range strokes {
		DrawStroke(p, s)
	}
}
