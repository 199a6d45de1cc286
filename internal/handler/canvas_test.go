package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"canvas-backend/internal/cache"
	"canvas-backend/internal/database"
	"canvas-backend/internal/layout"
	"canvas-backend/internal/model"
	"canvas-backend/internal/session"
	"canvas-backend/internal/store"
)

type testEnv struct {
	app      *fiber.App
	sessions *session.Manager
	store    *store.DocumentStore
	writes   *outageStore
	redis    *miniredis.Miniredis
}

// outageStore fails stroke appends while down is set.
type outageStore struct {
	*store.DocumentStore
	down atomic.Bool
}

func (o *outageStore) AppendStroke(ctx context.Context, pageID string, s model.Stroke) error {
	if o.down.Load() {
		return errors.New("database unavailable")
	}
	return o.DocumentStore.AppendStroke(ctx, pageID, s)
}

func setupTestApp(t *testing.T, allowReset bool) *testEnv {
	t.Helper()

	db := database.OpenTest(t)
	st := store.NewDocumentStore(db)
	writes := &outageStore{DocumentStore: st}
	sessions := session.NewManager(writes, zap.NewNop())

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	exportCache := cache.NewExportCache(client, time.Minute, zap.NewNop())

	h := NewCanvasHandler(sessions, exportCache, layout.Size{Width: 300, Height: 400}, allowReset, zap.NewNop())
	health := NewHealthHandler(db, exportCache)

	app := fiber.New()
	app.Get("/health", health.Check)
	app.Get("/health/ready", health.Readiness)
	g := app.Group("/api/canvas")
	g.Post("/documents", h.OpenDocument)
	g.Get("/documents/:id", h.GetDocument)
	g.Delete("/documents/:id", h.DeleteDocument)
	g.Post("/documents/:id/pages", h.AddPage)
	g.Delete("/documents/:id/pages/:pageId", h.DeletePage)
	g.Post("/documents/:id/pages/:pageId/strokes", h.SaveStroke)
	g.Post("/documents/:id/retry", h.Retry)
	g.Get("/documents/:id/export.json", h.ExportJSON)
	g.Post("/documents/:id/export.pdf", h.ExportPDF)
	g.Post("/documents/:id/pages/:pageId/preview.png", h.Preview)
	g.Delete("/data", h.ClearAllData)

	return &testEnv{app: app, sessions: sessions, store: st, writes: writes, redis: mr}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()

	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()

	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func (e *testEnv) open(t *testing.T, visitID, responseID int64) DocumentResponse {
	t.Helper()

	resp := e.do(t, http.MethodPost, "/api/canvas/documents", OpenDocumentRequest{VisitID: visitID, ResponseID: responseID})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	return decode[DocumentResponse](t, resp)
}

var line = map[string]any{
	"points": []map[string]float64{
		{"x": 10, "y": 10, "pressure": 0.5},
		{"x": 60, "y": 40, "pressure": 0.5},
		{"x": 120, "y": 40, "pressure": 0.5},
	},
	"color": "#000000",
	"size":  3,
}

func TestOpenDocument(t *testing.T) {
	env := setupTestApp(t, false)

	first := env.open(t, 7, 42)
	require.NotNil(t, first.Document)
	assert.Equal(t, int64(7), first.Document.VisitID)
	assert.Equal(t, "Visit 7 canvas", first.Document.Name)
	require.Len(t, first.Pages, 1)
	assert.Equal(t, 0, first.Pages[0].Order)

	again := env.open(t, 7, 42)
	assert.Equal(t, first.Document.ID, again.Document.ID)
	assert.Len(t, again.Pages, 1)
}

func TestOpenDocument_BadRequest(t *testing.T) {
	env := setupTestApp(t, false)

	tests := []struct {
		name string
		body any
	}{
		{"missing visit", OpenDocumentRequest{ResponseID: 1}},
		{"missing response", OpenDocumentRequest{VisitID: 1}},
		{"negative", OpenDocumentRequest{VisitID: -1, ResponseID: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := env.do(t, http.MethodPost, "/api/canvas/documents", tt.body)
			assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
		})
	}
}

func TestGetDocument_NotFound(t *testing.T) {
	env := setupTestApp(t, false)

	resp := env.do(t, http.MethodGet, "/api/canvas/documents/does-not-exist", nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestDeleteDocument(t *testing.T) {
	env := setupTestApp(t, false)
	doc := env.open(t, 1, 1)
	base := "/api/canvas/documents/" + doc.Document.ID

	resp := env.do(t, http.MethodDelete, base, nil)
	require.Equal(t, fiber.StatusNoContent, resp.StatusCode)
	_, ok := env.sessions.Get(doc.Document.ID)
	assert.False(t, ok)

	documents, pages, err := env.store.Stats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, documents)
	assert.Zero(t, pages)

	resp = env.do(t, http.MethodGet, base, nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	resp = env.do(t, http.MethodDelete, base, nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestGetDocument_SeesOtherWriters(t *testing.T) {
	env := setupTestApp(t, false)
	doc := env.open(t, 1, 1)
	base := "/api/canvas/documents/" + doc.Document.ID

	// 다른 프로세스가 직접 저장한 획
	require.NoError(t, env.store.AppendStroke(context.Background(), doc.Pages[0].ID, model.Stroke{
		Color:  "#000000",
		Size:   3,
		Points: []model.Point{{X: 1, Y: 1, Pressure: 0.5}, {X: 9, Y: 9, Pressure: 0.5}},
	}))

	got := decode[DocumentResponse](t, env.do(t, http.MethodGet, base, nil))
	require.Len(t, got.Pages, 1)
	assert.Len(t, got.Pages[0].Strokes, 1)

	require.NoError(t, env.store.DeleteDocument(context.Background(), doc.Document.ID))
	resp := env.do(t, http.MethodGet, base, nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	assert.Zero(t, env.sessions.Count())
}

func TestPages_AddAndDelete(t *testing.T) {
	env := setupTestApp(t, false)
	doc := env.open(t, 1, 1)
	base := "/api/canvas/documents/" + doc.Document.ID

	resp := env.do(t, http.MethodPost, base+"/pages", nil)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	added := decode[struct {
		PageID string `json:"pageId"`
	}](t, resp)
	require.NotEmpty(t, added.PageID)

	got := decode[DocumentResponse](t, env.do(t, http.MethodGet, base, nil))
	require.Len(t, got.Pages, 2)
	assert.Equal(t, added.PageID, got.Pages[1].ID)
	assert.Equal(t, 1, got.Pages[1].Order)

	// 첫 페이지 삭제 후 남은 페이지는 0번으로 재정렬
	resp = env.do(t, http.MethodDelete, base+"/pages/"+got.Pages[0].ID, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	got = decode[DocumentResponse](t, env.do(t, http.MethodGet, base, nil))
	require.Len(t, got.Pages, 1)
	assert.Equal(t, added.PageID, got.Pages[0].ID)
	assert.Equal(t, 0, got.Pages[0].Order)

	// 마지막 페이지는 남는다
	resp = env.do(t, http.MethodDelete, base+"/pages/"+added.PageID, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	got = decode[DocumentResponse](t, env.do(t, http.MethodGet, base, nil))
	assert.Len(t, got.Pages, 1)
}

func TestSaveStroke(t *testing.T) {
	env := setupTestApp(t, false)
	doc := env.open(t, 1, 1)
	pageID := doc.Pages[0].ID
	path := "/api/canvas/documents/" + doc.Document.ID + "/pages/" + pageID + "/strokes"

	resp := env.do(t, http.MethodPost, path, line)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	body := decode[map[string]any](t, resp)
	assert.Equal(t, "confirmed", body["status"])
	assert.EqualValues(t, 1, body["strokes"])

	pages, err := env.store.ListPages(context.Background(), doc.Document.ID)
	require.NoError(t, err)
	require.Len(t, pages[0].Strokes, 1)
	assert.Len(t, pages[0].Strokes[0].Points, 3)
}

func TestSaveStroke_Tap(t *testing.T) {
	env := setupTestApp(t, false)
	doc := env.open(t, 1, 1)
	path := "/api/canvas/documents/" + doc.Document.ID + "/pages/" + doc.Pages[0].ID + "/strokes"

	tap := map[string]any{
		"points": []map[string]float64{{"x": 10, "y": 10}},
		"color":  "#000000",
		"size":   3,
	}
	resp := env.do(t, http.MethodPost, path, tap)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	body := decode[map[string]any](t, resp)
	assert.Equal(t, "discarded", body["status"])
	assert.EqualValues(t, 0, body["strokes"])
}

func TestSaveStroke_UnknownPage(t *testing.T) {
	env := setupTestApp(t, false)
	doc := env.open(t, 1, 1)

	resp := env.do(t, http.MethodPost, "/api/canvas/documents/"+doc.Document.ID+"/pages/nope/strokes", line)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestRetry_NothingPending(t *testing.T) {
	env := setupTestApp(t, false)
	doc := env.open(t, 1, 1)

	resp := env.do(t, http.MethodPost, "/api/canvas/documents/"+doc.Document.ID+"/retry", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	body := decode[map[string]any](t, resp)
	assert.EqualValues(t, 0, body["retried"])
}

func TestExportJSON(t *testing.T) {
	env := setupTestApp(t, false)
	doc := env.open(t, 9, 3)
	env.do(t, http.MethodPost, "/api/canvas/documents/"+doc.Document.ID+"/pages/"+doc.Pages[0].ID+"/strokes", line)

	resp := env.do(t, http.MethodGet, "/api/canvas/documents/"+doc.Document.ID+"/export.json", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get(fiber.HeaderContentDisposition), "canvas-visit-9.json")

	snap := decode[map[string]any](t, resp)
	assert.Contains(t, snap, "document")
	assert.Contains(t, snap, "exportedAt")
	pages, ok := snap["pages"].([]any)
	require.True(t, ok)
	assert.Len(t, pages, 1)
}

func TestExportPDF_Cached(t *testing.T) {
	env := setupTestApp(t, false)
	doc := env.open(t, 9, 3)
	path := "/api/canvas/documents/" + doc.Document.ID + "/export.pdf"

	resp := env.do(t, http.MethodPost, path, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get(fiber.HeaderContentDisposition), "canvas-visit-9.pdf")
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF-")))

	assert.Len(t, env.redis.Keys(), 1)

	// 두 번째 요청은 캐시에서
	resp = env.do(t, http.MethodPost, path, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	again, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, data, again)
}

func TestExportPDF_BadTemplate(t *testing.T) {
	env := setupTestApp(t, false)
	doc := env.open(t, 1, 1)

	req := httptest.NewRequest(http.MethodPost, "/api/canvas/documents/"+doc.Document.ID+"/export.pdf", bytes.NewBufferString("{not json"))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	resp, err := env.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestPreview(t *testing.T) {
	env := setupTestApp(t, false)
	doc := env.open(t, 1, 1)
	base := "/api/canvas/documents/" + doc.Document.ID + "/pages/" + doc.Pages[0].ID
	env.do(t, http.MethodPost, base+"/strokes", line)

	resp := env.do(t, http.MethodPost, base+"/preview.png", TemplateRequest{})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get(fiber.HeaderContentType))
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("\x89PNG")))

	resp = env.do(t, http.MethodPost, "/api/canvas/documents/"+doc.Document.ID+"/pages/nope/preview.png", nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestSaveStroke_DeletedPageDoesNotBlockLaterStrokes(t *testing.T) {
	env := setupTestApp(t, false)
	doc := env.open(t, 1, 1)
	base := "/api/canvas/documents/" + doc.Document.ID

	resp := env.do(t, http.MethodPost, base+"/pages", nil)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	added := decode[struct {
		PageID string `json:"pageId"`
	}](t, resp)

	// 실패한 획이 대기열에 남은 상태에서 다른 프로세스가 페이지를 삭제
	env.writes.down.Store(true)
	resp = env.do(t, http.MethodPost, base+"/pages/"+added.PageID+"/strokes", line)
	require.Equal(t, fiber.StatusAccepted, resp.StatusCode)
	require.NoError(t, env.store.DeletePage(context.Background(), doc.Document.ID, added.PageID))
	env.writes.down.Store(false)

	resp = env.do(t, http.MethodPost, base+"/pages/"+doc.Pages[0].ID+"/strokes", line)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	got := decode[DocumentResponse](t, env.do(t, http.MethodGet, base, nil))
	assert.Empty(t, got.Pending)
	require.Len(t, got.Pages, 1)
	assert.Len(t, got.Pages[0].Strokes, 1)
}

func TestExport_NotCachedWhileStrokesQueued(t *testing.T) {
	env := setupTestApp(t, false)
	doc := env.open(t, 1, 1)
	base := "/api/canvas/documents/" + doc.Document.ID + "/pages/" + doc.Pages[0].ID

	inkAt := func(x, y int) bool {
		t.Helper()
		resp := env.do(t, http.MethodPost, base+"/preview.png", nil)
		require.Equal(t, fiber.StatusOK, resp.StatusCode)
		defer resp.Body.Close()
		img, err := png.Decode(resp.Body)
		require.NoError(t, err)
		r, _, _, _ := img.At(x, y).RGBA()
		return r < 0x4000
	}

	require.False(t, inkAt(90, 40))
	require.Len(t, env.redis.Keys(), 1)

	env.writes.down.Store(true)
	resp := env.do(t, http.MethodPost, base+"/strokes", line)
	require.Equal(t, fiber.StatusAccepted, resp.StatusCode)

	// updated_at 은 그대로지만 대기 중인 획이 보여야 한다
	assert.True(t, inkAt(90, 40))
	resp = env.do(t, http.MethodPost, "/api/canvas/documents/"+doc.Document.ID+"/export.pdf", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Len(t, env.redis.Keys(), 1, "nothing cached while strokes are queued")

	env.writes.down.Store(false)
	resp = env.do(t, http.MethodPost, "/api/canvas/documents/"+doc.Document.ID+"/retry", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	assert.True(t, inkAt(90, 40))
	assert.Len(t, env.redis.Keys(), 2)
}

func TestClearAllData(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		env := setupTestApp(t, false)
		env.open(t, 1, 1)

		resp := env.do(t, http.MethodDelete, "/api/canvas/data", nil)
		assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

		documents, _, err := env.store.Stats(context.Background())
		require.NoError(t, err)
		assert.Equal(t, int64(1), documents)
	})

	t.Run("enabled", func(t *testing.T) {
		env := setupTestApp(t, true)
		doc := env.open(t, 1, 1)
		env.do(t, http.MethodPost, "/api/canvas/documents/"+doc.Document.ID+"/export.pdf", nil)
		require.NotEmpty(t, env.redis.Keys())

		resp := env.do(t, http.MethodDelete, "/api/canvas/data", nil)
		assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)

		documents, pages, err := env.store.Stats(context.Background())
		require.NoError(t, err)
		assert.Zero(t, documents)
		assert.Zero(t, pages)
		assert.Empty(t, env.redis.Keys())
		assert.Zero(t, env.sessions.Count())
	})
}

func TestHealth(t *testing.T) {
	env := setupTestApp(t, false)

	resp := env.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	body := decode[HealthResponse](t, resp)
	assert.Equal(t, "healthy", body.Status)
	assert.Equal(t, "healthy", body.Checks["database"].Status)
	assert.Equal(t, "healthy", body.Checks["redis"].Status)

	env.redis.Close()
	body = decode[HealthResponse](t, env.do(t, http.MethodGet, "/health", nil))
	assert.Equal(t, "healthy", body.Status)
	assert.Equal(t, "degraded", body.Checks["redis"].Status)

	resp = env.do(t, http.MethodGet, "/health/ready", nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}
