// Package website lists the websites a user owns.
package website

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/website-analytics/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/website-analytics/pkg/postgres"
)

// Website is a tracked site owned by a user.
type Website struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Name      string    `json:"name"`
	Domain    string    `json:"domain"`
	CreatedAt time.Time `json:"createdAt"`
}

// Pagination selects one page of a listing. Page is 1-based.
type Pagination struct {
	Page     int
	PageSize int
}

// Offset is the number of rows skipped before the page.
func (p Pagination) Offset() int {
	if p.Page < 1 {
		return 0
	}
	return (p.Page - 1) * p.PageSize
}

// Page is one page of websites plus the total count across all pages.
type Page struct {
	Data     []Website `json:"data"`
	Count    int       `json:"count"`
	Page     int       `json:"page"`
	PageSize int       `json:"pageSize"`
}

// Store reads the website table:
//
//	CREATE TABLE website (
//	    website_id UUID PRIMARY KEY,
//	    user_id    UUID NOT NULL REFERENCES users(id),
//	    name       TEXT NOT NULL,
//	    domain     TEXT,
//	    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
//	    deleted_at TIMESTAMPTZ
//	);
type Store struct {
	db          *postgres.Client
	maxPageSize int
	logger      *slog.Logger
}

// NewStore creates a Store that never returns more than maxPageSize rows.
func NewStore(db *postgres.Client, maxPageSize int) *Store {
	return &Store{
		db:          db,
		maxPageSize: maxPageSize,
		logger:      logger.WithComponent("website-store"),
	}
}

// UserWebsites returns one page of the user's live websites ordered by name.
func (s *Store) UserWebsites(ctx context.Context, userID string, p Pagination) (*Page, error) {
	p = s.clamp(p)

	var count int
	err := s.db.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM website WHERE user_id = $1 AND deleted_at IS NULL`,
		userID,
	).Scan(&count)
	if err != nil {
		return nil, fmt.Errorf("counting websites: %w", err)
	}

	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT website_id, user_id, name, COALESCE(domain, ''), created_at
		 FROM website
		 WHERE user_id = $1 AND deleted_at IS NULL
		 ORDER BY name, website_id
		 LIMIT $2 OFFSET $3`,
		userID, p.PageSize, p.Offset(),
	)
	if err != nil {
		return nil, fmt.Errorf("listing websites: %w", err)
	}
	defer rows.Close()

	page := &Page{Data: make([]Website, 0, p.PageSize), Count: count, Page: p.Page, PageSize: p.PageSize}
	for rows.Next() {
		var w Website
		if err := rows.Scan(&w.ID, &w.UserID, &w.Name, &w.Domain, &w.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning website row: %w", err)
		}
		page.Data = append(page.Data, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating website rows: %w", err)
	}

	s.logger.Debug("listed websites", "user_id", userID, "page", p.Page, "returned", len(page.Data), "total", count)
	return page, nil
}

// clamp normalizes page and pageSize to at least 1 and caps pageSize at
// maxPageSize without reporting it.
func (s *Store) clamp(p Pagination) Pagination {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 {
		p.PageSize = 1
	}
	if s.maxPageSize > 0 && p.PageSize > s.maxPageSize {
		p.PageSize = s.maxPageSize
	}
	return p
}
