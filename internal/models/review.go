package models

import (
	"time"

	"github.com/google/uuid"
)

// Review bounds.
const (
	MinStars         = 1
	MaxStars         = 5
	MaxReviewTextLen = 200
)

// Review is a rating one player leaves for another.
type Review struct {
	ID        uuid.UUID `json:"id"`
	AuthorID  uuid.UUID `json:"author_id"`
	UserID    uuid.UUID `json:"user_id"`
	Text      string    `json:"text"`
	Stars     int       `json:"stars"`
	CreatedAt time.Time `json:"time_created"`
}
