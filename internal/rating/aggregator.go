// Package rating computes the derived review values shown next to movies: the average
// rating over live reviews, its 10-point display form, and the trending score used for
// ordering. All functions here are pure; persistence of the display rating lives in
// Recalculator.
package rating

import (
	"math"
	"sort"

	"github.com/Clark-Hu/movie-catalog/internal/domain"
)

const (
	viewsWeight   = 0.3
	reviewsWeight = 0.4
	ratingWeight  = 0.3

	viewsCeiling   = 10000.0
	reviewsCeiling = 100.0

	reviewScale  = 5.0
	displayScale = 10.0
)

// Summary is the count and mean of the non-deleted reviews of one movie.
type Summary struct {
	Count   int64
	Average float64
}

// Summarize counts the live reviews and averages their ratings. Soft-deleted reviews are
// skipped. An empty live set yields a zero Summary.
func Summarize(reviews []domain.Review) Summary {
	var (
		count int64
		sum   int64
	)
	for _, r := range reviews {
		if r.IsDeleted {
			continue
		}
		count++
		sum += int64(r.Rating)
	}
	if count == 0 {
		return Summary{}
	}
	return Summary{Count: count, Average: float64(sum) / float64(count)}
}

// AverageRating returns the arithmetic mean of the non-deleted ratings on the 1-5 scale,
// or 0 when there are none. No rounding is applied.
func AverageRating(reviews []domain.Review) float64 {
	return Summarize(reviews).Average
}

// DisplayRating rescales a 1-5 average to the 0-10 scale stored on the movie.
func DisplayRating(average float64) float64 {
	return (average / reviewScale) * displayScale
}

// Signals are the inputs of TrendingScore. AverageRating must be on the 1-5 review scale,
// not the stored 10-point movie rating.
type Signals struct {
	Views         int64
	ReviewsCount  int64
	AverageRating float64
}

// TrendingScore combines normalized views, review count and rating into a value in [0, 1]
// for non-negative inputs with AverageRating <= 5.
func TrendingScore(s Signals) float64 {
	normalizedViews := math.Min(float64(s.Views)/viewsCeiling, 1)
	normalizedReviews := math.Min(float64(s.ReviewsCount)/reviewsCeiling, 1)
	normalizedRating := s.AverageRating / reviewScale

	return normalizedViews*viewsWeight +
		normalizedReviews*reviewsWeight +
		normalizedRating*ratingWeight
}

// Apply fills the derived fields of a movie summary from the movie's reviews.
func Apply(movie domain.Movie, reviews []domain.Review) domain.MovieSummary {
	summary := Summarize(reviews)
	return domain.MovieSummary{
		Movie:         movie,
		ReviewsCount:  summary.Count,
		AverageRating: summary.Average,
		TrendingScore: TrendingScore(Signals{
			Views:         movie.Views,
			ReviewsCount:  summary.Count,
			AverageRating: summary.Average,
		}),
	}
}

// ApplyAll builds summaries for every movie, looking reviews up by movie ID. The input
// order is preserved.
func ApplyAll(movies []domain.Movie, reviewsByMovie map[string][]domain.Review) []domain.MovieSummary {
	out := make([]domain.MovieSummary, 0, len(movies))
	for _, m := range movies {
		out = append(out, Apply(m, reviewsByMovie[m.ID]))
	}
	return out
}

// SortByTrending orders summaries by descending trending score. Equal scores keep their
// incoming order.
func SortByTrending(movies []domain.MovieSummary) {
	sort.SliceStable(movies, func(i, j int) bool {
		return movies[i].TrendingScore > movies[j].TrendingScore
	})
}

// TopTrending sorts a copy of movies by trending score and returns at most limit entries.
func TopTrending(movies []domain.MovieSummary, limit int) []domain.MovieSummary {
	ranked := make([]domain.MovieSummary, len(movies))
	copy(ranked, movies)
	SortByTrending(ranked)
	if limit >= 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}
