// Package favorites stores itineraries a session chose to keep, PDF included.
package favorites

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("Favorito no encontrado")

// MaxPDFBytes bounds a stored itinerary.
const MaxPDFBytes = 10 << 20

type Favorite struct {
	ID            string    `json:"id"`
	SessionID     string    `json:"session_id"`
	Destination   string    `json:"destination"`
	DepartureDate string    `json:"departure_date"`
	ReturnDate    string    `json:"return_date"`
	Pages         int       `json:"pages"`
	CreatedAt     time.Time `json:"created_at"`
	PDFBase64     string    `json:"pdf_base64,omitempty"`

	PDF []byte `json:"-"`
}

// Repository persists favorites. List omits the PDF payload; Get includes it.
// Get and Delete only see favorites of the given session.
type Repository interface {
	Create(ctx context.Context, f *Favorite) error
	List(ctx context.Context, sessionID string) ([]Favorite, error)
	Get(ctx context.Context, sessionID, id string) (*Favorite, error)
	Delete(ctx context.Context, sessionID, id string) error
}
