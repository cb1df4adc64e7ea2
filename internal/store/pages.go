package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"positioning-analyzer/internal/models"
)

// ListPages returns a session's pages in submission order.
func (s *Store) ListPages(ctx context.Context, sessionID string) ([]*models.Page, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, url, page_type, raw_markdown, annotation, status, error_message, created_at, updated_at
		 FROM session_pages WHERE session_id = $1 ORDER BY position`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("list pages: %w", err)
	}
	defer rows.Close()

	var pages []*models.Page
	for rows.Next() {
		page, err := scanPage(rows)
		if err != nil {
			return nil, err
		}
		pages = append(pages, page)
	}
	return pages, rows.Err()
}

func scanPage(rows *sql.Rows) (*models.Page, error) {
	var (
		page       models.Page
		markdown   sql.NullString
		annotation []byte
	)
	err := rows.Scan(&page.ID, &page.SessionID, &page.URL, &page.PageType,
		&markdown, &annotation, &page.Status, &page.ErrorMessage,
		&page.CreatedAt, &page.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("scan page: %w", err)
	}
	page.RawMarkdown = markdown.String
	if len(annotation) > 0 {
		var a models.PageAnnotation
		if err := json.Unmarshal(annotation, &a); err != nil {
			return nil, fmt.Errorf("decode annotation for page %s: %w", page.ID, err)
		}
		page.Annotation = &a
	}
	return &page, nil
}

// SetPageStatus records a lifecycle step for one page.
func (s *Store) SetPageStatus(ctx context.Context, pageID string, status models.PageStatus) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE session_pages SET status = $1, updated_at = $2 WHERE id = $3`,
		status, time.Now().UTC(), pageID,
	)
	if err != nil {
		return fmt.Errorf("set page status: %w", err)
	}
	return nil
}

// SavePageContent stores the fetched markdown and advances the page to
// extracting.
func (s *Store) SavePageContent(ctx context.Context, pageID, markdown string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE session_pages SET raw_markdown = $1, status = $2, updated_at = $3 WHERE id = $4`,
		markdown, models.PageExtracting, time.Now().UTC(), pageID,
	)
	if err != nil {
		return fmt.Errorf("save page content: %w", err)
	}
	return nil
}

// SavePageAnnotation stores the structured annotation and marks the page
// complete.
func (s *Store) SavePageAnnotation(ctx context.Context, pageID string, annotation *models.PageAnnotation) error {
	data, err := json.Marshal(annotation)
	if err != nil {
		return fmt.Errorf("encode annotation: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE session_pages SET annotation = $1, status = $2, updated_at = $3 WHERE id = $4`,
		data, models.PageComplete, time.Now().UTC(), pageID,
	)
	if err != nil {
		return fmt.Errorf("save page annotation: %w", err)
	}
	return nil
}

// FailPage marks the page failed with the terminal error message.
func (s *Store) FailPage(ctx context.Context, pageID, message string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE session_pages SET status = $1, error_message = $2, updated_at = $3 WHERE id = $4`,
		models.PageFailed, message, time.Now().UTC(), pageID,
	)
	if err != nil {
		return fmt.Errorf("fail page: %w", err)
	}
	return nil
}
