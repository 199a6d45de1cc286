// Package store is the durable home of canvas documents and their pages.
// It holds no per-document state; the active document lives in a session.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"canvas-backend/internal/model"
)

var (
	ErrNotFound = errors.New("record not found")
	ErrLastPage = errors.New("cannot delete the last page of a document")
)

// DocumentStore gorm 기반 문서/페이지 저장소
type DocumentStore struct {
	db *gorm.DB
}

// NewDocumentStore DocumentStore 생성
func NewDocumentStore(db *gorm.DB) *DocumentStore {
	return &DocumentStore{db: db}
}

// CreateDocument 문서와 첫 페이지(order=0)를 한 트랜잭션으로 생성
func (s *DocumentStore) CreateDocument(ctx context.Context, visitID, responseID int64, name string) (*model.Document, error) {
	doc := model.Document{
		ID:         uuid.NewString(),
		VisitID:    visitID,
		ResponseID: responseID,
		Name:       name,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&doc).Error; err != nil {
			return err
		}
		first := newPage(doc.ID, 0)
		return tx.Create(&first).Error
	})
	if err != nil {
		return nil, fmt.Errorf("create document: %w", err)
	}
	return &doc, nil
}

// GetDocument ID 로 문서 조회
func (s *DocumentStore) GetDocument(ctx context.Context, id string) (*model.Document, error) {
	var doc model.Document
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&doc).Error; err != nil {
		return nil, translate(err)
	}
	return &doc, nil
}

// FindDocumentByResponse response_id 로 문서 조회 (find-or-create 의 자연 키)
func (s *DocumentStore) FindDocumentByResponse(ctx context.Context, responseID int64) (*model.Document, error) {
	var doc model.Document
	err := s.db.WithContext(ctx).
		Where("response_id = ?", responseID).
		Order("created_at ASC").
		First(&doc).Error
	if err != nil {
		return nil, translate(err)
	}
	return &doc, nil
}

// ListPages 문서의 페이지를 order 오름차순으로 조회
func (s *DocumentStore) ListPages(ctx context.Context, documentID string) ([]model.Page, error) {
	var pages []model.Page
	err := s.db.WithContext(ctx).
		Where("document_id = ?", documentID).
		Order("page_order ASC").
		Find(&pages).Error
	if err != nil {
		return nil, fmt.Errorf("list pages: %w", err)
	}
	for i := range pages {
		if pages[i].Strokes == nil {
			pages[i].Strokes = datatypes.JSONSlice[model.Stroke]{}
		}
	}
	return pages, nil
}

// CreatePage 지정한 order 로 빈 페이지 추가
func (s *DocumentStore) CreatePage(ctx context.Context, documentID string, order int) (*model.Page, error) {
	page := newPage(documentID, order)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&page).Error; err != nil {
			return err
		}
		return touch(tx, documentID)
	})
	if err != nil {
		return nil, fmt.Errorf("create page: %w", err)
	}
	return &page, nil
}

// AppendStroke 페이지 획 목록 끝에 획을 추가하고 문서 updated_at 갱신
func (s *DocumentStore) AppendStroke(ctx context.Context, pageID string, stroke model.Stroke) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var page model.Page
		if err := tx.Where("id = ?", pageID).First(&page).Error; err != nil {
			return translate(err)
		}

		strokes := append(page.Strokes, stroke)
		if err := tx.Model(&model.Page{}).
			Where("id = ?", pageID).
			Update("strokes", strokes).Error; err != nil {
			return fmt.Errorf("append stroke: %w", err)
		}
		return touch(tx, page.DocumentID)
	})
}

// DeletePage 페이지 삭제 후 남은 페이지의 order 를 0..N-1 로 재정렬
func (s *DocumentStore) DeletePage(ctx context.Context, documentID, pageID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&model.Page{}).Where("document_id = ?", documentID).Count(&count).Error; err != nil {
			return err
		}
		if count <= 1 {
			return ErrLastPage
		}

		res := tx.Where("id = ? AND document_id = ?", pageID, documentID).Delete(&model.Page{})
		if res.Error != nil {
			return fmt.Errorf("delete page: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}

		var remaining []model.Page
		if err := tx.Select("id", "page_order").
			Where("document_id = ?", documentID).
			Order("page_order ASC").
			Find(&remaining).Error; err != nil {
			return err
		}
		for i, p := range remaining {
			if p.Order == i {
				continue
			}
			if err := tx.Model(&model.Page{}).Where("id = ?", p.ID).Update("page_order", i).Error; err != nil {
				return fmt.Errorf("renumber pages: %w", err)
			}
		}
		return touch(tx, documentID)
	})
}

// DeleteDocument 문서와 소속 페이지 전체 삭제 (cascade)
func (s *DocumentStore) DeleteDocument(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("document_id = ?", id).Delete(&model.Page{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&model.Document{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// ClearAll 모든 문서와 페이지 삭제 (개발/초기화 전용)
func (s *DocumentStore) ClearAll(ctx context.Context) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&model.Page{}).Error; err != nil {
			return fmt.Errorf("clear pages: %w", err)
		}
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&model.Document{}).Error; err != nil {
			return fmt.Errorf("clear documents: %w", err)
		}
		return nil
	})
}

// Stats 테이블별 행 수
func (s *DocumentStore) Stats(ctx context.Context) (documents, pages int64, err error) {
	db := s.db.WithContext(ctx)
	if err = db.Model(&model.Document{}).Count(&documents).Error; err != nil {
		return 0, 0, err
	}
	if err = db.Model(&model.Page{}).Count(&pages).Error; err != nil {
		return 0, 0, err
	}
	return documents, pages, nil
}

func newPage(documentID string, order int) model.Page {
	return model.Page{
		ID:         uuid.NewString(),
		DocumentID: documentID,
		Order:      order,
		Strokes:    datatypes.JSONSlice[model.Stroke]{},
	}
}

func touch(tx *gorm.DB, documentID string) error {
	return tx.Model(&model.Document{}).
		Where("id = ?", documentID).
		Update("updated_at", time.Now()).Error
}

func translate(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
