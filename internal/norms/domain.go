package norms

import (
	"time"

	"github.com/google/uuid"
)

// Kind classifies the legal instrument a norm comes from.
type Kind string

const (
	KindLei       Kind = "lei"
	KindDecreto   Kind = "decreto"
	KindPortaria  Kind = "portaria"
	KindResolucao Kind = "resolucao"
)

// Valid reports whether the kind is a known instrument.
func (k Kind) Valid() bool {
	switch k {
	case KindLei, KindDecreto, KindPortaria, KindResolucao:
		return true
	}
	return false
}

// Norm is an external legal or regulatory instrument whose obligations the
// organisation must track.
type Norm struct {
	ID          uuid.UUID `json:"id"`
	Code        string    `json:"code"`
	Kind        Kind      `json:"kind"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	PublishedAt time.Time `json:"published_at,omitempty"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
