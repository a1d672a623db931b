package favorites

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"sync"
)

type SQLRepository struct {
	db *sql.DB
}

func NewSQLRepository(db *sql.DB) *SQLRepository { return &SQLRepository{db: db} }

func (r *SQLRepository) Create(ctx context.Context, f *Favorite) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO favorites (id, session_id, destination, departure_date, return_date, pdf, pages, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		f.ID, f.SessionID, f.Destination, f.DepartureDate, f.ReturnDate, f.PDF, f.Pages, f.CreatedAt)
	if err != nil {
		return fmt.Errorf("create favorite: %w", err)
	}
	return nil
}

func (r *SQLRepository) List(ctx context.Context, sessionID string) ([]Favorite, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, session_id, destination, departure_date, return_date, pages, created_at FROM favorites WHERE session_id = ? ORDER BY created_at DESC, id DESC`,
		sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := make([]Favorite, 0)
	for rows.Next() {
		var f Favorite
		if err := rows.Scan(&f.ID, &f.SessionID, &f.Destination, &f.DepartureDate, &f.ReturnDate, &f.Pages, &f.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, f)
	}
	return list, rows.Err()
}

func (r *SQLRepository) Get(ctx context.Context, sessionID, id string) (*Favorite, error) {
	var f Favorite
	err := r.db.QueryRowContext(ctx,
		`SELECT id, session_id, destination, departure_date, return_date, pdf, pages, created_at FROM favorites WHERE id = ? AND session_id = ?`,
		id, sessionID).Scan(&f.ID, &f.SessionID, &f.Destination, &f.DepartureDate, &f.ReturnDate, &f.PDF, &f.Pages, &f.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func (r *SQLRepository) Delete(ctx context.Context, sessionID, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM favorites WHERE id = ? AND session_id = ?`, id, sessionID)
	if err != nil {
		return fmt.Errorf("delete favorite: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// MemoryRepository keeps favorites in process memory.
type MemoryRepository struct {
	mu    sync.RWMutex
	items map[string]Favorite
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{items: make(map[string]Favorite)}
}

func (m *MemoryRepository) Create(ctx context.Context, f *Favorite) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *f
	cp.PDF = append([]byte(nil), f.PDF...)
	m.items[f.ID] = cp
	return nil
}

func (m *MemoryRepository) List(ctx context.Context, sessionID string) ([]Favorite, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	list := make([]Favorite, 0)
	for _, f := range m.items {
		if f.SessionID == sessionID {
			f.PDF = nil
			list = append(list, f)
		}
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].ID > list[j].ID
		}
		return list[i].CreatedAt.After(list[j].CreatedAt)
	})
	return list, nil
}

func (m *MemoryRepository) Get(ctx context.Context, sessionID, id string) (*Favorite, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	f, ok := m.items[id]
	if !ok || f.SessionID != sessionID {
		return nil, ErrNotFound
	}
	f.PDF = append([]byte(nil), f.PDF...)
	return &f, nil
}

func (m *MemoryRepository) Delete(ctx context.Context, sessionID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.items[id]
	if !ok || f.SessionID != sessionID {
		return ErrNotFound
	}
	delete(m.items, id)
	return nil
}
