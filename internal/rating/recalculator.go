package rating

import (
	"context"
	"fmt"
	"log"

	"github.com/Clark-Hu/movie-catalog/internal/domain"
)

// Store is the persistence the recalculator needs: every review of a movie, including
// soft-deleted ones, and a writer for the movie's cached display rating.
type Store interface {
	ListByMovie(ctx context.Context, movieID string) ([]domain.Review, error)
	UpdateRating(ctx context.Context, movieID string, rating10 float64) error
}

// Recalculator keeps a movie's stored rating in line with its live reviews.
type Recalculator struct {
	store  Store
	logger *log.Logger
}

// NewRecalculator constructs a Recalculator.
func NewRecalculator(store Store, logger *log.Logger) *Recalculator {
	if logger == nil {
		logger = log.Default()
	}
	return &Recalculator{store: store, logger: logger}
}

// Recompute averages the movie's live reviews, writes the 10-point form to the movie and
// returns the stored value.
func (r *Recalculator) Recompute(ctx context.Context, movieID string) (float64, error) {
	reviews, err := r.store.ListByMovie(ctx, movieID)
	if err != nil {
		return 0, fmt.Errorf("load reviews for %s: %w", movieID, err)
	}
	rating10 := DisplayRating(AverageRating(reviews))
	if err := r.store.UpdateRating(ctx, movieID, rating10); err != nil {
		return 0, fmt.Errorf("update rating for %s: %w", movieID, err)
	}
	return rating10, nil
}

// Refresh runs Recompute and logs failures instead of returning them. The stored rating
// may stay stale until the next successful refresh; the review change that triggered it
// stands either way.
func (r *Recalculator) Refresh(ctx context.Context, movieID string) {
	if _, err := r.Recompute(ctx, movieID); err != nil {
		r.logger.Printf("rating: refresh failed: %v", err)
	}
}
