// Package export turns a document's pages into the files a user downloads:
// a verbatim JSON snapshot and a multi-page vector PDF.
package export

import (
	"encoding/json"
	"fmt"
	"time"

	"canvas-backend/internal/model"
)

// Snapshot JSON 내보내기 파일 구조
type Snapshot struct {
	Document   model.Document `json:"document"`
	Pages      []model.Page   `json:"pages"`
	ExportedAt string         `json:"exportedAt"`
}

// JSON serializes the document and its pages with two-space indentation.
// Stroke data is written as stored.
func JSON(doc model.Document, pages []model.Page, now time.Time) ([]byte, error) {
	snap := Snapshot{
		Document:   doc,
		Pages:      make([]model.Page, 0, len(pages)),
		ExportedAt: now.UTC().Format(time.RFC3339Nano),
	}
	for _, p := range pages {
		if p.Strokes == nil {
			p.Strokes = []model.Stroke{}
		}
		snap.Pages = append(snap.Pages, p)
	}

	out, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("export json: %w", err)
	}
	return out, nil
}

// ParseJSON reads a file produced by JSON.
func ParseJSON(data []byte) (*Snapshot, error) {
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("parse export: %w", err)
	}
	return &snap, nil
}

// FileName 다운로드 파일명 (canvas-visit-<visitId>.<ext>)
func FileName(visitID int64, ext string) string {
	return fmt.Sprintf("canvas-visit-%d.%s", visitID, ext)
}
