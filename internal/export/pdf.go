package export

import (
	"fmt"
	"io"
	"sort"

	"codeberg.org/go-pdf/fpdf"
	"golang.org/x/image/font/gofont/goregular"

	"canvas-backend/internal/layout"
	"canvas-backend/internal/model"
	"canvas-backend/internal/outline"
	"canvas-backend/internal/palette"
)

// VectorPage is a print page addressed in PDF user space: origin at the
// bottom-left corner, y growing upwards.
type VectorPage interface {
	Line(x1, y1, x2, y2, width float64, c RGB)
	Text(s string, x, y, size float64, c RGB)
}

// RGB 8비트 색상
type RGB struct{ R, G, B uint8 }

func rgbOf(hex string) RGB {
	r, g, b, ok := palette.RGB(hex)
	if !ok {
		return RGB{}
	}
	return RGB{r, g, b}
}

// renderVectorPage draws the template layer and the page's ink onto vp,
// flipping every canvas y to pdf_y = height - canvas_y. Eraser strokes are
// left out: erased ink never reaches print.
func renderVectorPage(vp VectorPage, l layout.Layout, page model.Page) {
	h := l.Size.Height
	for _, r := range l.Rules {
		st := layout.StyleOf(r.Kind)
		vp.Line(r.X1, h-r.Y1, r.X2, h-r.Y2, st.Width, rgbOf(st.Color))
	}
	labelColor := rgbOf(layout.LabelColor)
	for _, lb := range l.Labels {
		vp.Text(lb.Text, lb.X, h-lb.Y, lb.Size, labelColor)
	}

	for _, s := range page.Strokes {
		if s.IsEraser || !s.Drawable() {
			continue
		}
		poly := outline.ForStroke(s)
		if poly == nil {
			continue
		}
		c := rgbOf(s.Color)
		width := s.Size / 2
		for i := range poly {
			a, b := poly[i], poly[(i+1)%len(poly)]
			vp.Line(a.X, h-a.Y, b.X, h-b.Y, width, c)
		}
	}
}

// labelFont 라벨용 UTF-8 폰트 (canvas 라벨과 같은 Go Regular)
const labelFont = "goregular"

// fpdfPage adapts fpdf, which addresses pages from the top-left, to
// VectorPage.
type fpdfPage struct {
	pdf    *fpdf.Fpdf
	height float64
}

func (p *fpdfPage) Line(x1, y1, x2, y2, width float64, c RGB) {
	p.pdf.SetDrawColor(int(c.R), int(c.G), int(c.B))
	p.pdf.SetLineWidth(width)
	p.pdf.Line(x1, p.height-y1, x2, p.height-y2)
}

func (p *fpdfPage) Text(s string, x, y, size float64, c RGB) {
	p.pdf.SetFont(labelFont, "", size)
	p.pdf.SetTextColor(int(c.R), int(c.G), int(c.B))
	p.pdf.Text(x, p.height-y, s)
}

// PDF writes one print page per canvas page, in page order, each with the
// template layer built from fields. Panics inside the PDF library are
// returned as errors.
func PDF(w io.Writer, pages []model.Page, fields []model.TemplateField, size layout.Size) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("export pdf: %v", r)
		}
	}()

	l := layout.Generate(fields, size, nil)
	size = l.Size

	pdf := fpdf.NewCustom(&fpdf.InitType{
		UnitStr: "pt",
		Size:    fpdf.SizeType{Wd: size.Width, Ht: size.Height},
	})
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetCreator("canvas-backend", false)
	pdf.SetLineCapStyle("round")
	pdf.SetLineJoinStyle("round")

	pdf.AddUTF8FontFromBytes(labelFont, "", goregular.TTF)

	vp := &fpdfPage{pdf: pdf, height: size.Height}

	ordered := append([]model.Page(nil), pages...)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Order < ordered[j].Order })

	for _, p := range ordered {
		pdf.AddPage()
		renderVectorPage(vp, l, p)
		if pdf.Err() {
			break
		}
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("export pdf: %w", err)
	}
	return nil
}
