package handler

import (
	"bytes"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"canvas-backend/internal/cache"
	"canvas-backend/internal/canvas"
	"canvas-backend/internal/export"
	"canvas-backend/internal/layout"
	"canvas-backend/internal/model"
)

// TemplateRequest 템플릿 필드 목록 (선택)
type TemplateRequest struct {
	Fields []model.TemplateField `json:"fields"`
}

func parseTemplate(c *fiber.Ctx) ([]model.TemplateField, error) {
	if len(c.Body()) == 0 {
		return nil, nil
	}
	var req TemplateRequest
	if err := c.BodyParser(&req); err != nil {
		return nil, err
	}
	return req.Fields, nil
}

// ExportJSON 문서 JSON 다운로드
func (h *CanvasHandler) ExportJSON(c *fiber.Ctx) error {
	s, err := h.sessions.Open(c.UserContext(), c.Params("id"))
	if err != nil {
		return h.fail(c, err)
	}

	data, err := s.ExportJSON()
	if err != nil {
		h.log.Error("json export failed", zap.String("document_id", c.Params("id")), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "JSON export failed"})
	}

	c.Attachment(export.FileName(s.Document().VisitID, "json"))
	return c.Send(data)
}

// ExportPDF 문서 PDF 다운로드
func (h *CanvasHandler) ExportPDF(c *fiber.Ctx) error {
	fields, err := parseTemplate(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid template fields"})
	}

	s, err := h.sessions.Open(c.UserContext(), c.Params("id"))
	if err != nil {
		return h.fail(c, err)
	}
	v, err := s.Snapshot()
	if err != nil {
		return h.fail(c, err)
	}
	doc := v.Document

	// 저장 대기 중인 획이 있으면 updated_at 이 내용과 맞지 않으므로 캐시 사용 안 함
	key := cache.Key(doc.ID, "pdf", doc.UpdatedAt, fields)
	var data []byte
	hit := false
	if v.Durable {
		data, hit = h.cached(c, key)
	}
	if !hit {
		var buf bytes.Buffer
		if err := export.PDF(&buf, v.Pages, fields, h.pageSize); err != nil {
			h.log.Error("pdf export failed", zap.String("document_id", doc.ID), zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "PDF export failed"})
		}
		data = buf.Bytes()
		if v.Durable {
			h.store(c, key, data)
		}
	}

	c.Attachment(export.FileName(doc.VisitID, "pdf"))
	return c.Send(data)
}

// Preview 페이지 PNG 렌더링
func (h *CanvasHandler) Preview(c *fiber.Ctx) error {
	fields, err := parseTemplate(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid template fields"})
	}

	s, err := h.sessions.Open(c.UserContext(), c.Params("id"))
	if err != nil {
		return h.fail(c, err)
	}
	v, err := s.Snapshot()
	if err != nil {
		return h.fail(c, err)
	}
	pageID := c.Params("pageId")
	if !hasPage(v.Pages, pageID) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "page not found"})
	}

	key := cache.Key(pageID, "png", v.Document.UpdatedAt, fields)
	var data []byte
	hit := false
	if v.Durable {
		data, hit = h.cached(c, key)
	}
	if !hit {
		surface := canvas.NewSurface(pageID, s, layout.Generate(fields, h.pageSize, nil), h.log)
		data, err = surface.Frame()
		if err != nil {
			h.log.Error("preview render failed", zap.String("page_id", pageID), zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "preview failed"})
		}
		if v.Durable {
			h.store(c, key, data)
		}
	}

	c.Set(fiber.HeaderContentType, "image/png")
	return c.Send(data)
}

func hasPage(pages []model.Page, id string) bool {
	for _, p := range pages {
		if p.ID == id {
			return true
		}
	}
	return false
}

func (h *CanvasHandler) cached(c *fiber.Ctx, key string) ([]byte, bool) {
	data, ok, err := h.cache.Get(c.UserContext(), key)
	if err != nil {
		h.log.Warn("export cache read failed", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	return data, ok
}

func (h *CanvasHandler) store(c *fiber.Ctx, key string, data []byte) {
	if err := h.cache.Put(c.UserContext(), key, data); err != nil {
		h.log.Warn("export cache write failed", zap.String("key", key), zap.Error(err))
	}
}
