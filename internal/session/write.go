package session

import (
	"time"

	"canvas-backend/internal/model"
)

// WriteStatus 낙관적 획 저장 상태
type WriteStatus int

const (
	WritePending   WriteStatus = iota // 저장 대기
	WriteConfirmed                    // 저장 완료
	WriteFailed                       // 저장 실패 (재시도 대기)
	WriteDropped                      // 페이지 삭제로 폐기
)

// String 상태를 문자열로 반환
func (s WriteStatus) String() string {
	switch s {
	case WritePending:
		return "pending"
	case WriteConfirmed:
		return "confirmed"
	case WriteFailed:
		return "failed"
	case WriteDropped:
		return "dropped"
	default:
		return "unknown"
	}
}

// MarshalText 상태를 JSON 문자열로 직렬화
func (s WriteStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Write is one stroke that has been applied in memory and queued for the
// store.
type Write struct {
	ID         string       `json:"id"`
	DocumentID string       `json:"documentId"`
	PageID     string       `json:"pageId"`
	Stroke     model.Stroke `json:"stroke"`
	Status     WriteStatus  `json:"status"`
	Attempts   int          `json:"attempts"`
	Error      string       `json:"error,omitempty"`
	QueuedAt   time.Time    `json:"queuedAt"`
}

// queued reports whether w still waits for the store.
func (w *Write) queued() bool {
	return w.Status == WritePending || w.Status == WriteFailed
}
