// Package canvas is the live drawing surface of a page: it turns pointer
// events into strokes and renders frames from the page's committed strokes.
package canvas

import (
	"bytes"
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/image/font"

	"canvas-backend/internal/layout"
	"canvas-backend/internal/model"
	"canvas-backend/internal/palette"
	"canvas-backend/internal/raster"
	"canvas-backend/internal/session"
)

// State 페이지 입력 상태
type State int

const (
	StateIdle      State = iota // 입력 없음
	StateCapturing              // 획 입력 중
)

// String 상태를 문자열로 반환
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCapturing:
		return "capturing"
	default:
		return "unknown"
	}
}

// DefaultSize 기본 펜 두께
const DefaultSize = 3

// ToolSettings 현재 도구 설정
type ToolSettings struct {
	Tool  model.Tool `json:"tool"`
	Color string     `json:"color"`
	Size  float64    `json:"size"`
}

// DefaultTool 검은 펜
func DefaultTool() ToolSettings {
	return ToolSettings{Tool: model.ToolPen, Color: model.ColorInk, Size: DefaultSize}
}

// newStroke starts a stroke with the brush attributes of t. The eraser
// always paints the background color.
func (t ToolSettings) newStroke() model.Stroke {
	s := model.Stroke{Color: t.Color, Size: t.Size}
	if s.Size <= 0 {
		s.Size = DefaultSize
	}
	if s.Color == "" {
		s.Color = model.ColorInk
	}
	if t.Tool == model.ToolEraser {
		s.Color = model.ColorBackground
		s.IsEraser = true
	}
	return s
}

// StrokeSource is the page data a surface renders and commits to.
type StrokeSource interface {
	Strokes(pageID string) []model.Stroke
	SaveStroke(ctx context.Context, pageID string, stroke model.Stroke) error
}

// Subscriber delivers session events.
type Subscriber interface {
	Subscribe(h session.Handler) func()
}

// Surface 페이지 하나의 입력/렌더링 상태 (Thread-Safe)
type Surface struct {
	pageID string
	src    StrokeSource
	log    *zap.Logger

	mu      sync.Mutex
	layout  layout.Layout
	tool    ToolSettings
	state   State
	current *model.Stroke
	dirty   bool
	face    font.Face
}

// NewSurface creates an idle surface for pageID.
func NewSurface(pageID string, src StrokeSource, l layout.Layout, log *zap.Logger) *Surface {
	if log == nil {
		log = zap.NewNop()
	}
	return &Surface{
		pageID: pageID,
		src:    src,
		log:    log.Named("canvas"),
		layout: l,
		tool:   DefaultTool(),
		dirty:  true,
	}
}

// PageID 대상 페이지 ID
func (s *Surface) PageID() string { return s.pageID }

// State 현재 입력 상태
func (s *Surface) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// SetTool 도구 설정 변경 (진행 중인 획에는 적용되지 않음)
func (s *Surface) SetTool(t ToolSettings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tool = t
}

// Tool 현재 도구 설정
func (s *Surface) Tool() ToolSettings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tool
}

// SetLayout 배경 레이아웃 교체
func (s *Surface) SetLayout(l layout.Layout) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.layout = l
	s.dirty = true
}

// PointerDown starts a stroke. A second down while capturing is ignored.
func (s *Surface) PointerDown(x, y float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateCapturing {
		return
	}
	st := s.tool.newStroke()
	st.Points = append(st.Points, model.Point{X: x, Y: y, Pressure: model.DefaultPressure})
	s.current = &st
	s.state = StateCapturing
	s.dirty = true
}

// PointerMove extends the stroke in progress.
func (s *Surface) PointerMove(x, y float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateCapturing {
		return
	}
	s.current.Points = append(s.current.Points, model.Point{X: x, Y: y, Pressure: model.DefaultPressure})
	s.dirty = true
}

// PointerUp ends the stroke and commits it when it has at least two points.
func (s *Surface) PointerUp(ctx context.Context) error {
	return s.finish(ctx)
}

// PointerLeave ends the stroke like PointerUp.
func (s *Surface) PointerLeave(ctx context.Context) error {
	return s.finish(ctx)
}

func (s *Surface) finish(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateCapturing {
		s.mu.Unlock()
		return nil
	}
	st := *s.current
	s.current = nil
	s.state = StateIdle
	s.dirty = true
	s.mu.Unlock()

	if !st.Drawable() {
		return nil
	}
	if err := s.src.SaveStroke(ctx, s.pageID, st); err != nil {
		s.log.Warn("commit stroke failed", zap.String("page_id", s.pageID), zap.Error(err))
		return err
	}
	return nil
}

// Current returns a copy of the stroke in progress.
func (s *Surface) Current() (model.Stroke, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		return model.Stroke{}, false
	}
	return s.current.Clone(), true
}

// Dirty reports whether a redraw is due.
func (s *Surface) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty
}

// Watch marks the surface dirty whenever the session changes this page or
// reloads. The returned function stops watching.
func (s *Surface) Watch(sub Subscriber) func() {
	return sub.Subscribe(func(ev session.Event) {
		switch ev.Type {
		case session.EventStrokeAdded, session.EventPageDeleted:
			if ev.PageID != s.pageID {
				return
			}
		case session.EventPagesLoaded, session.EventCleared:
		default:
			return
		}
		s.mu.Lock()
		s.dirty = true
		s.mu.Unlock()
	})
}

// Render draws a full frame: template, committed strokes, then the stroke
// in progress.
func (s *Surface) Render(p *raster.Painter) {
	strokes := s.src.Strokes(s.pageID)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.face == nil && len(s.layout.Labels) > 0 {
		face, err := layout.NewLabelFace(layout.LabelSize)
		if err != nil {
			s.log.Warn("label font unavailable", zap.Error(err))
		}
		s.face = face
	}

	RenderPage(p, s.layout, strokes, s.face)
	if s.current != nil {
		DrawStroke(p, *s.current)
	}
	s.dirty = false
}

// Frame renders a full frame on paper and encodes it as PNG.
func (s *Surface) Frame() ([]byte, error) {
	s.mu.Lock()
	w, h := int(s.layout.Size.Width), int(s.layout.Size.Height)
	s.mu.Unlock()

	p := raster.New(w, h)
	s.Render(p)

	var buf bytes.Buffer
	if err := raster.EncodePNG(&buf, raster.Flatten(p.Image(), palette.Paper)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
