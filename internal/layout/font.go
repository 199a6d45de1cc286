package layout

import (
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
)

var labelFont = sync.OnceValues(func() (*opentype.Font, error) {
	return opentype.Parse(goregular.TTF)
})

// NewLabelFace 라벨용 Go Regular 폰트 페이스 생성
func NewLabelFace(size float64) (font.Face, error) {
	f, err := labelFont()
	if err != nil {
		return nil, err
	}
	return opentype.NewFace(f, &opentype.FaceOptions{Size: size, DPI: 72, Hinting: font.HintingNone})
}

// faceMeasurer measures with a font.Face. Faces keep glyph caches and are
// not safe for concurrent use.
type faceMeasurer struct {
	mu   sync.Mutex
	face font.Face
}

func (m *faceMeasurer) Measure(s string) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return float64(font.MeasureString(m.face, s)) / 64
}

// approxMeasurer is used when the embedded font cannot be parsed.
type approxMeasurer struct{}

func (approxMeasurer) Measure(s string) float64 {
	return float64(len([]rune(s))) * LabelSize * 0.55
}

var defaultMeasurer = sync.OnceValue(func() Measurer {
	face, err := NewLabelFace(LabelSize)
	if err != nil {
		return approxMeasurer{}
	}
	return &faceMeasurer{face: face}
})

// DefaultMeasurer measures label text in Go Regular at LabelSize.
func DefaultMeasurer() Measurer {
	return defaultMeasurer()
}
