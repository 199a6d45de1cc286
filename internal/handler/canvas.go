package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"canvas-backend/internal/cache"
	"canvas-backend/internal/layout"
	"canvas-backend/internal/model"
	"canvas-backend/internal/session"
	"canvas-backend/internal/store"
)

// CanvasHandler 캔버스 문서 API 핸들러
type CanvasHandler struct {
	sessions   *session.Manager
	cache      *cache.ExportCache
	pageSize   layout.Size
	allowReset bool
	log        *zap.Logger
}

// NewCanvasHandler CanvasHandler 생성. exportCache 가 nil 이면 캐시 없이 동작
func NewCanvasHandler(sessions *session.Manager, exportCache *cache.ExportCache, pageSize layout.Size, allowReset bool, log *zap.Logger) *CanvasHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &CanvasHandler{
		sessions:   sessions,
		cache:      exportCache,
		pageSize:   pageSize,
		allowReset: allowReset,
		log:        log.Named("canvas_handler"),
	}
}

// OpenDocumentRequest 문서 열기 요청
type OpenDocumentRequest struct {
	VisitID    int64  `json:"visitId"`
	ResponseID int64  `json:"responseId"`
	Name       string `json:"name"`
}

// DocumentResponse 문서와 페이지 목록
type DocumentResponse struct {
	Document *model.Document `json:"document"`
	Pages    []model.Page    `json:"pages"`
	Pending  []session.Write `json:"pending"`
}

func documentResponse(s *session.Session) DocumentResponse {
	return DocumentResponse{
		Document: s.Document(),
		Pages:    s.Pages(),
		Pending:  s.Pending(),
	}
}

// OpenDocument 응답 ID 로 문서를 찾거나 생성 (find-or-create)
func (h *CanvasHandler) OpenDocument(c *fiber.Ctx) error {
	var req OpenDocumentRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if req.VisitID <= 0 || req.ResponseID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "visitId and responseId are required"})
	}

	s, err := h.sessions.OpenByResponse(c.UserContext(), req.VisitID, req.ResponseID, req.Name)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(documentResponse(s))
}

// GetDocument 문서와 페이지 조회
func (h *CanvasHandler) GetDocument(c *fiber.Ctx) error {
	s, err := h.sessions.Open(c.UserContext(), c.Params("id"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(documentResponse(s))
}

// DeleteDocument 문서와 모든 페이지 삭제
func (h *CanvasHandler) DeleteDocument(c *fiber.Ctx) error {
	id := c.Params("id")
	s, err := h.sessions.Open(c.UserContext(), id)
	if err != nil {
		return h.fail(c, err)
	}

	if err := s.DeleteDocument(c.UserContext()); err != nil {
		return h.fail(c, err)
	}
	h.sessions.Forget(id)
	return c.SendStatus(fiber.StatusNoContent)
}

// AddPage 페이지 추가
func (h *CanvasHandler) AddPage(c *fiber.Ctx) error {
	s, err := h.sessions.Open(c.UserContext(), c.Params("id"))
	if err != nil {
		return h.fail(c, err)
	}

	pageID, err := s.AddPage(c.UserContext())
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"pageId": pageID,
		"pages":  s.Pages(),
	})
}

// DeletePage 페이지 삭제 (마지막 페이지는 삭제되지 않음)
func (h *CanvasHandler) DeletePage(c *fiber.Ctx) error {
	s, err := h.sessions.Open(c.UserContext(), c.Params("id"))
	if err != nil {
		return h.fail(c, err)
	}

	if err := s.DeletePage(c.UserContext(), c.Params("pageId")); err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"pages": s.Pages()})
}

// SaveStroke 획 저장. 저장 실패 시 202 와 함께 재시도 대기열을 반환
func (h *CanvasHandler) SaveStroke(c *fiber.Ctx) error {
	var stroke model.Stroke
	if err := c.BodyParser(&stroke); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid stroke"})
	}

	s, err := h.sessions.Open(c.UserContext(), c.Params("id"))
	if err != nil {
		return h.fail(c, err)
	}

	pageID := c.Params("pageId")
	if !stroke.Drawable() {
		return c.JSON(fiber.Map{"status": "discarded", "strokes": len(s.Strokes(pageID))})
	}

	err = s.SaveStroke(c.UserContext(), pageID, stroke)
	switch {
	case errors.Is(err, session.ErrWriteFailed):
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
			"status":  session.WriteFailed.String(),
			"error":   err.Error(),
			"pending": s.Pending(),
		})
	case err != nil:
		return h.fail(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"status":  session.WriteConfirmed.String(),
		"strokes": len(s.Strokes(pageID)),
	})
}

// Retry 실패한 획 저장 재시도
func (h *CanvasHandler) Retry(c *fiber.Ctx) error {
	s, err := h.sessions.Open(c.UserContext(), c.Params("id"))
	if err != nil {
		return h.fail(c, err)
	}

	n, err := s.Retry(c.UserContext())
	if err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error":   err.Error(),
			"retried": n,
			"pending": s.Pending(),
		})
	}
	return c.JSON(fiber.Map{"retried": n, "pending": s.Pending()})
}

// ClearAllData 모든 문서/페이지 삭제 (CANVAS_ALLOW_RESET=true 일 때만)
func (h *CanvasHandler) ClearAllData(c *fiber.Ctx) error {
	if !h.allowReset {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "reset is disabled"})
	}

	if err := h.sessions.ClearAll(c.UserContext()); err != nil {
		return h.fail(c, err)
	}
	if _, err := h.cache.Flush(c.UserContext()); err != nil {
		h.log.Warn("export cache flush failed", zap.Error(err))
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// fail 에러를 HTTP 상태 코드로 변환
func (h *CanvasHandler) fail(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not found"})
	case errors.Is(err, session.ErrUnknownPage):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "page not found"})
	case errors.Is(err, session.ErrNoDocument):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "document is not loaded"})
	default:
		h.log.Error("canvas request failed",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error"})
	}
}
