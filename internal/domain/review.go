package domain

import "time"

const (
	// MinReviewRating and MaxReviewRating bound the integer review scale.
	MinReviewRating = 1
	MaxReviewRating = 5
	// MaxReviewLength caps the free-text body.
	MaxReviewLength = 1000
)

// Review is a single user's rating and comment for a movie.
type Review struct {
	ID        string
	MovieID   string
	UserID    string
	Username  string
	Rating    int
	Body      string
	IsDeleted bool
	CreatedAt time.Time
	UpdatedAt time.Time
}
