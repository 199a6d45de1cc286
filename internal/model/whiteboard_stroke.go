package model

import (
	"encoding/json"
)

// DefaultPressure 압력 정보가 없는 입력 장치의 기본 필압
const DefaultPressure = 0.5

// Point 필압이 포함된 입력 좌표 (캡처 후 불변)
type Point struct {
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Pressure float64 `json:"pressure"`
}

// UnmarshalJSON pressure 필드가 없으면 DefaultPressure 로 채운다
func (p *Point) UnmarshalJSON(data []byte) error {
	var raw struct {
		X        float64  `json:"x"`
		Y        float64  `json:"y"`
		Pressure *float64 `json:"pressure"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	p.X, p.Y = raw.X, raw.Y
	p.Pressure = DefaultPressure
	if raw.Pressure != nil {
		p.Pressure = *raw.Pressure
	}
	return nil
}

// Stroke 한 번의 펜 제스처 (페이지에 커밋된 이후에는 변경되지 않음)
type Stroke struct {
	Points   []Point `json:"points"`
	Color    string  `json:"color"`
	Size     float64 `json:"size"`
	IsEraser bool    `json:"isEraser"`
}

// MinStrokePoints 저장 가능한 획의 최소 포인트 수
const MinStrokePoints = 2

// Drawable 저장/렌더링할 의미가 있는 획인지 여부
func (s Stroke) Drawable() bool {
	return len(s.Points) >= MinStrokePoints
}

// Clone 포인트 슬라이스까지 복사한 획 반환
func (s Stroke) Clone() Stroke {
	c := s
	c.Points = append([]Point(nil), s.Points...)
	return c
}
