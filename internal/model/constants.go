package model

// FieldType 템플릿 필드 타입
type FieldType string

const (
	FieldTypeTextarea FieldType = "textarea"
	FieldTypeText     FieldType = "text"
	FieldTypeNumber   FieldType = "number"
	FieldTypeDate     FieldType = "date"
	FieldTypeSelect   FieldType = "select"
	FieldTypeCheckbox FieldType = "checkbox"
)

// Tool 캔버스 도구
type Tool string

const (
	ToolPen    Tool = "pen"
	ToolEraser Tool = "eraser"
)

// 색상 상수
const (
	ColorBackground = "#ffffff" // 지우개 획 색상 (배경과 동일)
	ColorInk        = "#000000"
)

func (f FieldType) String() string {
	return string(f)
}

func (t Tool) String() string {
	return string(t)
}

// Multiline 여러 줄 입력 필드 여부
func (f FieldType) Multiline() bool {
	return f == FieldTypeTextarea
}
