package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Clark-Hu/movie-catalog/internal/domain"
)

// ReviewsRepository provides helpers for movie reviews.
type ReviewsRepository struct {
	pool *pgxpool.Pool
}

const reviewColumns = `
    r.id,
    r.movie_id,
    r.user_id,
    COALESCE(u.username, ''),
    r.rating,
    r.body,
    r.is_deleted,
    r.created_at,
    r.updated_at
`

// ReviewUpsertParams captures the payload required to upsert a review.
type ReviewUpsertParams struct {
	MovieID string
	UserID  string
	Rating  int
	Body    string
}

// Upsert inserts or overwrites the user's review of a movie and indicates whether it was
// newly created. Overwriting a soft-deleted review brings it back.
func (r *ReviewsRepository) Upsert(ctx context.Context, params ReviewUpsertParams) (domain.Review, bool, error) {
	query := fmt.Sprintf(`
        WITH r AS (
            INSERT INTO reviews (movie_id, user_id, rating, body)
            VALUES ($1,$2,$3,$4)
            ON CONFLICT (movie_id, user_id)
            DO UPDATE SET rating = EXCLUDED.rating,
                          body = EXCLUDED.body,
                          is_deleted = false,
                          updated_at = now()
            RETURNING *, (xmax = 0) AS inserted
        )
        SELECT %s, r.inserted
        FROM r
        LEFT JOIN users u ON u.id = r.user_id
    `, reviewColumns)

	var review domain.Review
	var inserted bool
	err := r.pool.QueryRow(ctx, query, params.MovieID, params.UserID, params.Rating, params.Body).Scan(
		&review.ID,
		&review.MovieID,
		&review.UserID,
		&review.Username,
		&review.Rating,
		&review.Body,
		&review.IsDeleted,
		&review.CreatedAt,
		&review.UpdatedAt,
		&inserted,
	)
	if err != nil {
		return domain.Review{}, false, translate(err)
	}
	return review, inserted, nil
}

// ListByMovie returns every review of a movie, soft-deleted ones included.
func (r *ReviewsRepository) ListByMovie(ctx context.Context, movieID string) ([]domain.Review, error) {
	query := fmt.Sprintf(`
        SELECT %s FROM reviews r
        LEFT JOIN users u ON u.id = r.user_id
        WHERE r.movie_id = $1
        ORDER BY r.created_at DESC, r.id DESC
    `, reviewColumns)
	reviews, err := queryReviews(ctx, r.pool, query, movieID)
	if err != nil {
		return nil, translate(err)
	}
	return reviews, nil
}

// ListActive returns the live reviews of a movie, newest first.
func (r *ReviewsRepository) ListActive(ctx context.Context, movieID string) ([]domain.Review, error) {
	query := fmt.Sprintf(`
        SELECT %s FROM reviews r
        LEFT JOIN users u ON u.id = r.user_id
        WHERE r.movie_id = $1 AND NOT r.is_deleted
        ORDER BY r.created_at DESC, r.id DESC
    `, reviewColumns)
	reviews, err := queryReviews(ctx, r.pool, query, movieID)
	if err != nil {
		return nil, translate(err)
	}
	return reviews, nil
}

// ForMovies returns the live reviews of each listed movie keyed by movie ID.
func (r *ReviewsRepository) ForMovies(ctx context.Context, movieIDs []string) (map[string][]domain.Review, error) {
	out := make(map[string][]domain.Review, len(movieIDs))
	if len(movieIDs) == 0 {
		return out, nil
	}
	query := fmt.Sprintf(`
        SELECT %s FROM reviews r
        LEFT JOIN users u ON u.id = r.user_id
        WHERE r.movie_id = ANY(CAST($1::text[] AS uuid[])) AND NOT r.is_deleted
        ORDER BY r.created_at DESC, r.id DESC
    `, reviewColumns)
	reviews, err := queryReviews(ctx, r.pool, query, movieIDs)
	if err != nil {
		return nil, translate(err)
	}
	for _, rv := range reviews {
		out[rv.MovieID] = append(out[rv.MovieID], rv)
	}
	return out, nil
}

// GetByUser retrieves the user's live review of a movie.
func (r *ReviewsRepository) GetByUser(ctx context.Context, movieID, userID string) (domain.Review, error) {
	query := fmt.Sprintf(`
        SELECT %s FROM reviews r
        LEFT JOIN users u ON u.id = r.user_id
        WHERE r.movie_id = $1 AND r.user_id = $2 AND NOT r.is_deleted
    `, reviewColumns)
	review, err := scanReview(r.pool.QueryRow(ctx, query, movieID, userID))
	if err != nil {
		return domain.Review{}, translate(err)
	}
	return review, nil
}

// GetByID retrieves a review regardless of its deletion flag.
func (r *ReviewsRepository) GetByID(ctx context.Context, id string) (domain.Review, error) {
	query := fmt.Sprintf(`
        SELECT %s FROM reviews r
        LEFT JOIN users u ON u.id = r.user_id
        WHERE r.id = $1
    `, reviewColumns)
	review, err := scanReview(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return domain.Review{}, translate(err)
	}
	return review, nil
}

// SoftDelete flags a review as deleted and returns it. The row is kept.
func (r *ReviewsRepository) SoftDelete(ctx context.Context, id string) (domain.Review, error) {
	query := fmt.Sprintf(`
        WITH r AS (
            UPDATE reviews SET is_deleted = true, updated_at = now()
            WHERE id = $1
            RETURNING *
        )
        SELECT %s FROM r
        LEFT JOIN users u ON u.id = r.user_id
    `, reviewColumns)
	review, err := scanReview(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return domain.Review{}, translate(err)
	}
	return review, nil
}

func queryReviews(ctx context.Context, q querier, query string, args ...any) ([]domain.Review, error) {
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	reviews := make([]domain.Review, 0)
	for rows.Next() {
		review, err := scanReview(rows)
		if err != nil {
			return nil, err
		}
		reviews = append(reviews, review)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return reviews, nil
}

func scanReview(row pgx.Row) (domain.Review, error) {
	var review domain.Review
	err := row.Scan(
		&review.ID,
		&review.MovieID,
		&review.UserID,
		&review.Username,
		&review.Rating,
		&review.Body,
		&review.IsDeleted,
		&review.CreatedAt,
		&review.UpdatedAt,
	)
	if err != nil {
		return domain.Review{}, err
	}
	return review, nil
}
