package model

import (
	"time"

	"gorm.io/datatypes"
)

// Document 진료(visit) 또는 템플릿 응답 하나에 대응하는 캔버스 노트
type Document struct {
	ID         string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	VisitID    int64     `gorm:"not null;index:idx_canvas_documents_response_visit,priority:2" json:"visitId"`
	ResponseID int64     `gorm:"not null;uniqueIndex:idx_canvas_documents_response_id;index:idx_canvas_documents_response_visit,priority:1" json:"responseId"`
	Name       string    `gorm:"type:varchar(255)" json:"name"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updatedAt"`

	// Relations
	Pages []Page `gorm:"foreignKey:DocumentID" json:"-"`
}

func (Document) TableName() string {
	return "canvas_documents"
}

// Page 문서 안의 한 장 (strokes 는 append-only, 삽입 순서 = 그리기 순서)
type Page struct {
	ID         string                      `gorm:"type:varchar(36);primaryKey" json:"id"`
	DocumentID string                      `gorm:"type:varchar(36);not null;index" json:"documentId"`
	Order      int                         `gorm:"column:page_order;not null" json:"order"`
	Strokes    datatypes.JSONSlice[Stroke] `gorm:"not null" json:"strokes"`
	CreatedAt  time.Time                   `gorm:"autoCreateTime" json:"-"`
}

func (Page) TableName() string {
	return "canvas_pages"
}

// Clone 획 목록까지 복사한 페이지 반환
func (p Page) Clone() Page {
	c := p
	c.Strokes = make(datatypes.JSONSlice[Stroke], len(p.Strokes))
	for i, s := range p.Strokes {
		c.Strokes[i] = s.Clone()
	}
	return c
}

// TemplateField 외부에서 전달되는 양식 필드 (읽기 전용, 저장하지 않음)
type TemplateField struct {
	FieldLabel string    `json:"field_label"`
	FieldType  FieldType `json:"field_type"`
	IsRequired bool      `json:"is_required"`
}
