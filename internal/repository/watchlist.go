package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Clark-Hu/movie-catalog/internal/domain"
)

// WatchlistRepository stores the per-user saved movies.
type WatchlistRepository struct {
	pool *pgxpool.Pool
}

// Toggle adds the movie when absent and removes it when present. It reports whether the
// movie is on the list afterwards.
func (r *WatchlistRepository) Toggle(ctx context.Context, userID, movieID string) (bool, error) {
	var inWatchlist bool
	err := withTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM watchlist WHERE user_id = $1 AND movie_id = $2`, userID, movieID)
		if err != nil {
			return translate(err)
		}
		if tag.RowsAffected() > 0 {
			inWatchlist = false
			return nil
		}
		if _, err := tx.Exec(ctx, `
            INSERT INTO watchlist (user_id, movie_id) VALUES ($1,$2)
            ON CONFLICT DO NOTHING
        `, userID, movieID); err != nil {
			return translate(err)
		}
		inWatchlist = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return inWatchlist, nil
}

// Contains reports whether the movie is on the user's list.
func (r *WatchlistRepository) Contains(ctx context.Context, userID, movieID string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
        SELECT EXISTS (SELECT 1 FROM watchlist WHERE user_id = $1 AND movie_id = $2)
    `, userID, movieID).Scan(&exists)
	if err != nil {
		return false, translate(err)
	}
	return exists, nil
}

// Movies returns the user's saved movies, most recently added first, with cast attached.
func (r *WatchlistRepository) Movies(ctx context.Context, userID string) ([]domain.Movie, error) {
	query := fmt.Sprintf(`
        SELECT %s FROM watchlist w
        JOIN movies m ON m.id = w.movie_id
        WHERE w.user_id = $1
        ORDER BY w.created_at DESC, m.id
    `, movieColumns)
	movies, err := queryMovies(ctx, r.pool, query, userID)
	if err != nil {
		return nil, translate(err)
	}
	if err := attachCast(ctx, r.pool, movies); err != nil {
		return nil, err
	}
	return movies, nil
}
