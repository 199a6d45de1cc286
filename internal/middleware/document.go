package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// getIDParam URL 파라미터에서 UUID 추출
func getIDParam(c *fiber.Ctx, name string) (string, error) {
	raw := c.Params(name)
	if raw == "" {
		return "", fiber.NewError(fiber.StatusBadRequest, name+" is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// RequireDocumentID :id 가 문서 UUID 인지 확인하고 컨텍스트에 저장
func RequireDocumentID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := getIDParam(c, "id")
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid document ID",
			})
		}

		c.Locals("documentID", id)
		return c.Next()
	}
}

// RequirePageID :pageId 가 페이지 UUID 인지 확인
func RequirePageID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := getIDParam(c, "pageId")
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid page ID",
			})
		}

		c.Locals("pageID", id)
		return c.Next()
	}
}
