// Package layout computes the background writing lines and field labels of a
// canvas page. The result is plain geometry so the raster canvas and the PDF
// export draw the lines in the same place.
package layout

import (
	"strings"

	"canvas-backend/internal/model"
)

// 페이지 및 레이아웃 상수 (캔버스 단위)
const (
	PageWidth  = 794
	PageHeight = 1123

	LineHeight    = 32
	TopPadding    = 40
	SidePadding   = 24
	LabelWidth    = 200
	LabelPadding  = 12
	DividerX      = SidePadding + LabelWidth
	FieldSpacing  = 16
	TextareaLines = 5

	LabelSize        = 14
	LabelLineSpacing = 18

	// MarginX is the accent margin line of the fallback grid.
	MarginX = 64

	// RequiredMarker is appended to the labels of required fields.
	RequiredMarker = " *"
)

// Size 페이지 크기
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// A4 기본 페이지 크기
var A4 = Size{Width: PageWidth, Height: PageHeight}

// RuleKind 배경 선 종류
type RuleKind int

const (
	RuleField RuleKind = iota
	RuleDivider
	RuleGrid
	RuleMargin
)

func (k RuleKind) String() string {
	switch k {
	case RuleField:
		return "field"
	case RuleDivider:
		return "divider"
	case RuleGrid:
		return "grid"
	case RuleMargin:
		return "margin"
	default:
		return "unknown"
	}
}

// Style 선 색상과 두께
type Style struct {
	Color string
	Width float64
}

var styles = map[RuleKind]Style{
	RuleField:   {Color: "#94a3b8", Width: 1},
	RuleDivider: {Color: "#cbd5e1", Width: 1},
	RuleGrid:    {Color: "#dbeafe", Width: 0.5},
	RuleMargin:  {Color: "#f87171", Width: 1.5},
}

// LabelColor is the text color of field labels on both targets.
const LabelColor = "#334155"

// StyleOf returns the stroke style shared by every render target for kind.
func StyleOf(kind RuleKind) Style {
	if s, ok := styles[kind]; ok {
		return s
	}
	return styles[RuleField]
}

// Rule 가로/세로 배경 선 (캔버스 좌표, y는 아래 방향)
type Rule struct {
	X1, Y1, X2, Y2 float64
	Kind           RuleKind
}

// Label 필드 라벨 한 줄 (Y는 베이스라인)
type Label struct {
	Text string
	X, Y float64
	Size float64
}

// FieldBox 필드 하나에 할당된 영역
type FieldBox struct {
	Label      string
	Type       model.FieldType
	Top        float64
	Height     float64
	Lines      int
	LabelLines []string
}

// Layout 페이지 배경 전체
type Layout struct {
	Size     Size
	Fallback bool
	Fields   []FieldBox
	Rules    []Rule
	Labels   []Label
}

// Measurer reports the rendered width of a label string.
type Measurer interface {
	Measure(s string) float64
}

// MeasureFunc adapts a function to Measurer.
type MeasureFunc func(s string) float64

func (f MeasureFunc) Measure(s string) float64 { return f(s) }

// LineCount 필드 타입별 필기 줄 수 (알 수 없는 타입은 1줄)
func LineCount(t model.FieldType) int {
	if t.Multiline() {
		return TextareaLines
	}
	return 1
}

// LabelText 필수 필드 표시가 붙은 라벨
func LabelText(f model.TemplateField) string {
	if f.IsRequired {
		return f.FieldLabel + RequiredMarker
	}
	return f.FieldLabel
}

// Generate lays out fields top to bottom. With no fields it returns the
// fallback grid. A nil measurer uses the default label font.
func Generate(fields []model.TemplateField, size Size, m Measurer) Layout {
	if size.Width <= 0 || size.Height <= 0 {
		size = A4
	}
	if m == nil {
		m = DefaultMeasurer()
	}
	if len(fields) == 0 {
		return fallback(size)
	}

	l := Layout{Size: size}
	usable := float64(LabelWidth - LabelPadding)
	right := size.Width - SidePadding
	cursor := float64(TopPadding)

	for _, f := range fields {
		lines := LineCount(f.FieldType)
		height := float64(lines * LineHeight)
		text := LabelText(f)
		wrapped := Wrap(text, usable, m)

		l.Fields = append(l.Fields, FieldBox{
			Label:      text,
			Type:       f.FieldType,
			Top:        cursor,
			Height:     height,
			Lines:      lines,
			LabelLines: wrapped,
		})

		for i, line := range wrapped {
			l.Labels = append(l.Labels, Label{
				Text: line,
				X:    SidePadding,
				Y:    cursor + LabelSize + float64(i*LabelLineSpacing),
				Size: LabelSize,
			})
		}

		l.Rules = append(l.Rules, Rule{X1: DividerX, Y1: cursor, X2: DividerX, Y2: cursor + height, Kind: RuleDivider})
		for k := 1; k <= lines; k++ {
			y := cursor + float64(k*LineHeight)
			l.Rules = append(l.Rules, Rule{X1: DividerX, Y1: y, X2: right, Y2: y, Kind: RuleField})
		}

		cursor += height + FieldSpacing
	}
	return l
}

func fallback(size Size) Layout {
	l := Layout{Size: size, Fallback: true}
	for y := float64(LineHeight); y < size.Height; y += LineHeight {
		l.Rules = append(l.Rules, Rule{X1: 0, Y1: y, X2: size.Width, Y2: y, Kind: RuleGrid})
	}
	l.Rules = append(l.Rules, Rule{X1: MarginX, Y1: 0, X2: MarginX, Y2: size.Height, Kind: RuleMargin})
	return l
}

// Wrap breaks text into lines no wider than maxWidth. A word stays on the
// current line unless it would overflow a non-empty line; a single word wider
// than maxWidth gets a line of its own.
func Wrap(text string, maxWidth float64, m Measurer) []string {
	var (
		lines []string
		cur   string
	)
	for _, word := range strings.Fields(text) {
		candidate := word
		if cur != "" {
			candidate = cur + " " + word
		}
		if cur != "" && m.Measure(candidate) > maxWidth {
			lines = append(lines, cur)
			cur = word
			continue
		}
		cur = candidate
	}
	if cur != "" {
		lines = append(lines, cur)
	}
	return lines
}
