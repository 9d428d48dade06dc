package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Clark-Hu/movie-catalog/internal/domain"
)

// StatsRepository answers the aggregate queries of the admin dashboard.
type StatsRepository struct {
	pool *pgxpool.Pool
}

// Totals counts users, movies, live reviews, actors and directors.
func (r *StatsRepository) Totals(ctx context.Context) (domain.DashboardTotals, error) {
	const query = `
        SELECT (SELECT COUNT(*) FROM users),
               (SELECT COUNT(*) FROM movies),
               (SELECT COUNT(*) FROM reviews WHERE NOT is_deleted),
               (SELECT COUNT(*) FROM actors),
               (SELECT COUNT(*) FROM directors)
    `
	var totals domain.DashboardTotals
	err := r.pool.QueryRow(ctx, query).Scan(
		&totals.Users,
		&totals.Movies,
		&totals.Reviews,
		&totals.Actors,
		&totals.Directors,
	)
	if err != nil {
		return domain.DashboardTotals{}, fmt.Errorf("dashboard totals: %w", err)
	}
	return totals, nil
}

// LiveRatings returns every live review rating, for the catalog-wide average.
func (r *StatsRepository) LiveRatings(ctx context.Context) ([]domain.Review, error) {
	rows, err := r.pool.Query(ctx, `SELECT rating FROM reviews WHERE NOT is_deleted`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Review, error) {
		var review domain.Review
		err := row.Scan(&review.Rating)
		return review, err
	})
}

// MostReviewed returns the movies with the most live reviews.
func (r *StatsRepository) MostReviewed(ctx context.Context, limit int) ([]domain.ReviewedMovie, error) {
	query := fmt.Sprintf(`
        SELECT %s, c.review_count
        FROM (
            SELECT movie_id, COUNT(*) AS review_count
            FROM reviews
            WHERE NOT is_deleted
            GROUP BY movie_id
        ) c
        JOIN movies m ON m.id = c.movie_id
        ORDER BY c.review_count DESC, m.title
        LIMIT $1
    `, movieColumns)
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.ReviewedMovie, 0)
	for rows.Next() {
		var item domain.ReviewedMovie
		m := &item.Movie
		err := rows.Scan(
			&m.ID, &m.Title, &m.Description, &m.Genres, &m.ReleaseDate, &m.Poster, &m.Gallery,
			&m.TrailerURL, &m.DirectorID, &m.Views, &m.Likes, &m.Rating, &m.SearchKeywords,
			&m.CreatedAt, &m.UpdatedAt, &item.ReviewCount,
		)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// MoviesPerMonth buckets movies by the month they were added, oldest first.
func (r *StatsRepository) MoviesPerMonth(ctx context.Context) ([]domain.MonthlyCount, error) {
	return r.perMonth(ctx, `
        SELECT to_char(created_at, 'YYYY-MM') AS month, COUNT(*)
        FROM movies
        GROUP BY month
        ORDER BY month
    `)
}

// ReviewsPerMonth buckets live reviews by the month they were written, oldest first.
func (r *StatsRepository) ReviewsPerMonth(ctx context.Context) ([]domain.MonthlyCount, error) {
	return r.perMonth(ctx, `
        SELECT to_char(created_at, 'YYYY-MM') AS month, COUNT(*)
        FROM reviews
        WHERE NOT is_deleted
        GROUP BY month
        ORDER BY month
    `)
}

func (r *StatsRepository) perMonth(ctx context.Context, query string) ([]domain.MonthlyCount, error) {
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.MonthlyCount, error) {
		var bucket domain.MonthlyCount
		err := row.Scan(&bucket.Month, &bucket.Count)
		return bucket, err
	})
}
