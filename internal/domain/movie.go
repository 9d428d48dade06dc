package domain

import "time"

// PersonRef is the minimal actor/director view attached to a movie.
type PersonRef struct {
	ID    string
	Name  string
	Photo *string
	Bio   string
}

// Movie represents the canonical movie entity in the database/service.
type Movie struct {
	ID             string
	Title          string
	Description    string
	Genres         []string
	ReleaseDate    time.Time
	Poster         *string
	Gallery        []string
	TrailerURL     *string
	DirectorID     *string
	ActorIDs       []string
	Views          int64
	Likes          int64
	Rating         float64 // 0-10 display scale, derived from reviews
	SearchKeywords []string
	CreatedAt      time.Time
	UpdatedAt      time.Time

	Director *PersonRef
	Actors   []PersonRef
}

// ReleaseYear returns the calendar year of the release date.
func (m Movie) ReleaseYear() int {
	return m.ReleaseDate.Year()
}

// MovieSummary carries the per-request derived values used for rendering and ordering.
// AverageRating is on the 1-5 review scale; TrendingScore is in [0, 1].
type MovieSummary struct {
	Movie
	ReviewsCount  int64
	AverageRating float64
	TrendingScore float64
}

// MovieRef is the short movie view listed on actor and director pages.
type MovieRef struct {
	ID          string
	Title       string
	Poster      *string
	ReleaseDate time.Time
}
