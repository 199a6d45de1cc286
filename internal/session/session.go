// Package session holds the active document of one canvas view: the page
// working set the surface renders from, the optimistic stroke writes still
// on their way to the store, and the subscribers that redraw on change.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"canvas-backend/internal/export"
	"canvas-backend/internal/model"
	"canvas-backend/internal/store"
)

var (
	ErrNoDocument  = errors.New("session: no active document")
	ErrUnknownPage = errors.New("session: page is not part of the active document")
	// ErrWriteFailed means the stroke is visible in memory but not yet
	// durable; it stays queued for Retry.
	ErrWriteFailed = errors.New("session: stroke write failed")
)

// Store is the persistence the session works against.
type Store interface {
	CreateDocument(ctx context.Context, visitID, responseID int64, name string) (*model.Document, error)
	GetDocument(ctx context.Context, id string) (*model.Document, error)
	FindDocumentByResponse(ctx context.Context, responseID int64) (*model.Document, error)
	ListPages(ctx context.Context, documentID string) ([]model.Page, error)
	CreatePage(ctx context.Context, documentID string, order int) (*model.Page, error)
	AppendStroke(ctx context.Context, pageID string, stroke model.Stroke) error
	DeletePage(ctx context.Context, documentID, pageID string) error
	DeleteDocument(ctx context.Context, id string) error
	ClearAll(ctx context.Context) error
}

// View is the working set read in one step.
type View struct {
	Document model.Document
	Pages    []model.Page
	// Durable is false while a stroke in Pages is still queued for the store.
	Durable bool
}

// Session 활성 문서 컨텍스트 (Thread-Safe)
type Session struct {
	store Store
	log   *zap.Logger
	now   func() time.Time

	// opMu serializes store operations so writes reach the store in the
	// order they were issued.
	opMu sync.Mutex

	mu     sync.RWMutex
	doc    *model.Document
	pages  []model.Page
	writes []*Write

	subMu   sync.RWMutex
	subs    map[int]Handler
	nextSub int
}

// New 빈 세션 생성
func New(st Store, log *zap.Logger) *Session {
	if log == nil {
		log = zap.NewNop()
	}
	return &Session{
		store: st,
		log:   log.Named("session"),
		now:   time.Now,
		subs:  make(map[int]Handler),
	}
}

// DefaultName 이름 없이 생성되는 문서의 기본 이름
func DefaultName(visitID int64) string {
	return fmt.Sprintf("Visit %d canvas", visitID)
}

// Subscribe registers h and returns a function that removes it.
func (s *Session) Subscribe(h Handler) func() {
	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = h
	s.subMu.Unlock()

	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

func (s *Session) emit(ev Event) {
	s.subMu.RLock()
	handlers := make([]Handler, 0, len(s.subs))
	for _, h := range s.subs {
		handlers = append(handlers, h)
	}
	s.subMu.RUnlock()

	for _, h := range handlers {
		h(ev)
	}
}

// CreateDocument creates a document with its first page and makes it active.
func (s *Session) CreateDocument(ctx context.Context, visitID, responseID int64, name string) (string, error) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	doc, err := s.store.CreateDocument(ctx, visitID, responseID, name)
	if err != nil {
		return "", err
	}
	s.log.Info("document created",
		zap.String("document_id", doc.ID),
		zap.Int64("visit_id", visitID),
		zap.Int64("response_id", responseID))

	s.activate(ctx, doc)
	return doc.ID, nil
}

// LoadDocument makes the document active and loads its pages ordered by
// page order.
func (s *Session) LoadDocument(ctx context.Context, id string) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	doc, err := s.store.GetDocument(ctx, id)
	if err != nil {
		return fmt.Errorf("load document %s: %w", id, err)
	}
	s.activate(ctx, doc)
	return nil
}

// LoadOrCreateDocumentByResponse loads the document for responseID, creating
// it when none exists.
func (s *Session) LoadOrCreateDocumentByResponse(ctx context.Context, visitID, responseID int64) (string, error) {
	return s.LoadOrCreateNamed(ctx, visitID, responseID, DefaultName(visitID))
}

// LoadOrCreateNamed is LoadOrCreateDocumentByResponse with an explicit name
// for a newly created document. When a concurrent creator wins the unique
// response index, the winner's document is loaded instead.
func (s *Session) LoadOrCreateNamed(ctx context.Context, visitID, responseID int64, name string) (string, error) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	doc, err := s.store.FindDocumentByResponse(ctx, responseID)
	if err == nil {
		s.activate(ctx, doc)
		return doc.ID, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return "", fmt.Errorf("find document by response %d: %w", responseID, err)
	}

	if name == "" {
		name = DefaultName(visitID)
	}
	doc, err = s.store.CreateDocument(ctx, visitID, responseID, name)
	if err != nil {
		existing, findErr := s.store.FindDocumentByResponse(ctx, responseID)
		if findErr != nil {
			return "", err
		}
		s.log.Info("document created concurrently, loading existing",
			zap.String("document_id", existing.ID),
			zap.Int64("response_id", responseID))
		doc = existing
	} else {
		s.log.Info("document created",
			zap.String("document_id", doc.ID),
			zap.Int64("visit_id", visitID),
			zap.Int64("response_id", responseID))
	}

	s.activate(ctx, doc)
	return doc.ID, nil
}

// activate swaps in doc and reloads its pages. Caller holds opMu.
func (s *Session) activate(ctx context.Context, doc *model.Document) {
	s.mu.Lock()
	s.doc = doc
	s.mu.Unlock()
	s.reload(ctx)
}

// reload refreshes the page working set from the store. A failed read
// degrades to an empty page list. Caller holds opMu.
func (s *Session) reload(ctx context.Context) {
	s.mu.Lock()
	if s.doc == nil {
		s.mu.Unlock()
		return
	}
	docID := s.doc.ID
	s.mu.Unlock()

	pages, err := s.store.ListPages(ctx, docID)
	if err != nil {
		s.log.Warn("list pages failed, showing an empty document",
			zap.String("document_id", docID), zap.Error(err))
		pages = nil
	}
	if doc, err := s.store.GetDocument(ctx, docID); err == nil {
		s.mu.Lock()
		s.doc = doc
		s.mu.Unlock()
	}

	s.mu.Lock()
	s.pages = pages
	s.overlayQueued()
	s.mu.Unlock()

	s.emit(Event{Type: EventPagesLoaded, DocumentID: docID})
}

// overlayQueued re-applies strokes that are not yet durable so a reload does
// not hide them. Caller holds mu.
func (s *Session) overlayQueued() {
	for _, w := range s.writes {
		if !w.queued() || s.doc == nil || w.DocumentID != s.doc.ID {
			continue
		}
		if p := s.pageLocked(w.PageID); p != nil {
			p.Strokes = append(p.Strokes, w.Stroke.Clone())
		}
	}
}

func (s *Session) pageLocked(id string) *model.Page {
	for i := range s.pages {
		if s.pages[i].ID == id {
			return &s.pages[i]
		}
	}
	return nil
}

// AddPage appends an empty page after the last one and reloads.
func (s *Session) AddPage(ctx context.Context) (string, error) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.RLock()
	if s.doc == nil {
		s.mu.RUnlock()
		return "", ErrNoDocument
	}
	docID, order := s.doc.ID, len(s.pages)
	s.mu.RUnlock()

	page, err := s.store.CreatePage(ctx, docID, order)
	if err != nil {
		return "", err
	}
	s.reload(ctx)
	s.emit(Event{Type: EventPageAdded, DocumentID: docID, PageID: page.ID})
	return page.ID, nil
}

// SaveStroke appends stroke to the page. Strokes with fewer than two points
// are dropped without error. The stroke is visible to Strokes and Pages
// before the store write completes; a failed write returns ErrWriteFailed
// and stays queued for Retry. A page deleted behind the session's back
// returns ErrUnknownPage and the stroke is discarded.
func (s *Session) SaveStroke(ctx context.Context, pageID string, stroke model.Stroke) error {
	if !stroke.Drawable() {
		s.log.Debug("discarding stroke below minimum length",
			zap.String("page_id", pageID), zap.Int("points", len(stroke.Points)))
		return nil
	}

	// page lookup and apply happen under opMu so DeletePage cannot run in between
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.Lock()
	if s.doc == nil {
		s.mu.Unlock()
		return ErrNoDocument
	}
	page := s.pageLocked(pageID)
	if page == nil {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownPage, pageID)
	}
	w := &Write{
		ID:         uuid.NewString(),
		DocumentID: s.doc.ID,
		PageID:     pageID,
		Stroke:     stroke.Clone(),
		Status:     WritePending,
		QueuedAt:   s.now(),
	}
	page.Strokes = append(page.Strokes, stroke.Clone())
	s.writes = append(s.writes, w)
	docID := s.doc.ID
	s.mu.Unlock()

	added := w.Stroke.Clone()
	s.emit(Event{Type: EventStrokeAdded, DocumentID: docID, PageID: pageID, WriteID: w.ID, Stroke: &added})

	err := s.flush(ctx)
	switch s.statusOf(w) {
	case WriteConfirmed:
		return nil
	case WriteDropped:
		return fmt.Errorf("%w: %s was deleted", ErrUnknownPage, pageID)
	}
	return fmt.Errorf("%w: %v", ErrWriteFailed, err)
}

// Retry re-issues queued writes in the order they were made. It stops at the
// first failure so the store never sees strokes out of order.
func (s *Session) Retry(ctx context.Context) (int, error) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	before := len(s.Pending())
	err := s.flush(ctx)
	after := len(s.Pending())
	return before - after, err
}

// flush drains the write queue. A write whose page no longer exists is
// dropped so it cannot block the writes behind it. Caller holds opMu.
func (s *Session) flush(ctx context.Context) error {
	dropped := false
	defer func() {
		if dropped {
			s.reload(ctx)
		}
	}()

	for {
		s.mu.Lock()
		var w *Write
		for _, q := range s.writes {
			if q.queued() {
				w = q
				break
			}
		}
		if w == nil {
			s.writes = nil
			s.mu.Unlock()
			return nil
		}
		w.Attempts++
		pageID, stroke := w.PageID, w.Stroke
		s.mu.Unlock()

		err := s.store.AppendStroke(ctx, pageID, stroke)
		gone := errors.Is(err, store.ErrNotFound)

		s.mu.Lock()
		switch {
		case gone:
			w.Status = WriteDropped
			w.Error = err.Error()
			s.writes = settle(s.writes)
		case err != nil:
			w.Status = WriteFailed
			w.Error = err.Error()
		default:
			w.Status = WriteConfirmed
			w.Error = ""
			s.writes = settle(s.writes)
			if s.doc != nil && s.doc.ID == w.DocumentID {
				s.doc.UpdatedAt = s.now()
			}
		}
		s.mu.Unlock()

		switch {
		case gone:
			dropped = true
			s.log.Warn("page no longer exists, dropping stroke write",
				zap.String("write_id", w.ID),
				zap.String("page_id", pageID))
			s.emit(Event{Type: EventStrokeFailed, DocumentID: w.DocumentID, PageID: pageID, WriteID: w.ID, Error: err.Error()})
			continue
		case err != nil:
			s.log.Warn("stroke write failed",
				zap.String("write_id", w.ID),
				zap.String("page_id", pageID),
				zap.Int("attempts", w.Attempts),
				zap.Error(err))
			s.emit(Event{Type: EventStrokeFailed, DocumentID: w.DocumentID, PageID: pageID, WriteID: w.ID, Error: err.Error()})
			return err
		}
		s.emit(Event{Type: EventStrokeConfirmed, DocumentID: w.DocumentID, PageID: pageID, WriteID: w.ID})
	}
}

// settle keeps only the writes still waiting for the store.
func settle(writes []*Write) []*Write {
	out := writes[:0]
	for _, w := range writes {
		if w.queued() {
			out = append(out, w)
		}
	}
	return out
}

func (s *Session) statusOf(w *Write) WriteStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return w.Status
}

// HasPending reports whether any stroke is still waiting for the store.
func (s *Session) HasPending() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hasPendingLocked()
}

func (s *Session) hasPendingLocked() bool {
	for _, w := range s.writes {
		if w.queued() {
			return true
		}
	}
	return false
}

// Pending returns copies of the writes that are not yet durable.
func (s *Session) Pending() []Write {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Write, 0, len(s.writes))
	for _, w := range s.writes {
		if w.queued() {
			c := *w
			c.Stroke = w.Stroke.Clone()
			out = append(out, c)
		}
	}
	return out
}

// DeletePage removes a page and renumbers the rest. Deleting the only page
// is a no-op.
func (s *Session) DeletePage(ctx context.Context, pageID string) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.RLock()
	if s.doc == nil {
		s.mu.RUnlock()
		return ErrNoDocument
	}
	docID, count := s.doc.ID, len(s.pages)
	s.mu.RUnlock()

	if count <= 1 {
		s.log.Debug("refusing to delete the last page", zap.String("document_id", docID))
		return nil
	}

	err := s.store.DeletePage(ctx, docID, pageID)
	if errors.Is(err, store.ErrLastPage) {
		return nil
	}
	if err != nil {
		return err
	}

	s.mu.Lock()
	out := s.writes[:0]
	for _, w := range s.writes {
		if w.PageID != pageID {
			out = append(out, w)
		}
	}
	s.writes = out
	s.mu.Unlock()

	s.reload(ctx)
	s.emit(Event{Type: EventPageDeleted, DocumentID: docID, PageID: pageID})
	return nil
}

// Refresh re-reads the active document and its pages, keeping queued
// strokes on top. When another writer deleted the document the session is
// reset and store.ErrNotFound returned.
func (s *Session) Refresh(ctx context.Context) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.RLock()
	if s.doc == nil {
		s.mu.RUnlock()
		return ErrNoDocument
	}
	docID := s.doc.ID
	s.mu.RUnlock()

	if _, err := s.store.GetDocument(ctx, docID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.log.Info("document removed by another writer", zap.String("document_id", docID))
			s.Reset()
		}
		return err
	}
	s.reload(ctx)
	return nil
}

// DeleteDocument removes the active document and its pages from the store
// and resets the session.
func (s *Session) DeleteDocument(ctx context.Context) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.RLock()
	if s.doc == nil {
		s.mu.RUnlock()
		return ErrNoDocument
	}
	docID := s.doc.ID
	s.mu.RUnlock()

	if err := s.store.DeleteDocument(ctx, docID); err != nil {
		return err
	}
	s.Reset()
	s.log.Info("document deleted", zap.String("document_id", docID))
	return nil
}

// ExportJSON serializes the active document and all of its pages.
func (s *Session) ExportJSON() ([]byte, error) {
	v, err := s.Snapshot()
	if err != nil {
		return nil, err
	}
	return export.JSON(v.Document, v.Pages, s.now())
}

// ClearAllData wipes every document and page in the store, not just the
// active one, and resets the session.
func (s *Session) ClearAllData(ctx context.Context) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	if err := s.store.ClearAll(ctx); err != nil {
		return err
	}
	s.Reset()
	s.log.Warn("all canvas data cleared")
	return nil
}

// Reset drops the active document and queued writes without touching the
// store.
func (s *Session) Reset() {
	s.mu.Lock()
	s.doc = nil
	s.pages = nil
	s.writes = nil
	s.mu.Unlock()

	s.emit(Event{Type: EventCleared})
}

// Document returns a copy of the active document, or nil.
func (s *Session) Document() *model.Document {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.doc == nil {
		return nil
	}
	d := *s.doc
	return &d
}

// Pages returns copies of the working set ordered by page order.
func (s *Session) Pages() []model.Page {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Page, len(s.pages))
	for i, p := range s.pages {
		out[i] = p.Clone()
	}
	return out
}

// Page returns a copy of one page of the working set.
func (s *Session) Page(pageID string) (model.Page, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if p := s.pageLocked(pageID); p != nil {
		return p.Clone(), true
	}
	return model.Page{}, false
}

// Strokes returns the page's strokes in draw order.
func (s *Session) Strokes(pageID string) []model.Stroke {
	p, ok := s.Page(pageID)
	if !ok {
		return nil
	}
	return p.Strokes
}

// Snapshot returns the active document and its pages read together.
func (s *Session) Snapshot() (View, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.doc == nil {
		return View{}, ErrNoDocument
	}
	pages := make([]model.Page, len(s.pages))
	for i, p := range s.pages {
		pages[i] = p.Clone()
	}
	return View{Document: *s.doc, Pages: pages, Durable: !s.hasPendingLocked()}, nil
}
