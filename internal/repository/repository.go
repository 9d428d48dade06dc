package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Clark-Hu/movie-catalog/internal/domain"
	"github.com/Clark-Hu/movie-catalog/internal/store"
)

var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("repository: not found")
	// ErrConflict indicates a uniqueness constraint rejected the write.
	ErrConflict = errors.New("repository: conflict")
)

// Repository aggregates all domain-specific repositories.
type Repository struct {
	Movies    *MoviesRepository
	Reviews   *ReviewsRepository
	Actors    *PeopleRepository
	Directors *PeopleRepository
	Users     *UsersRepository
	Watchlist *WatchlistRepository
	Stats     *StatsRepository
}

// New constructs a Repository backed by the provided store.
func New(st *store.Store) *Repository {
	return NewWithPool(st.Pool())
}

// NewWithPool allows constructing repositories directly from a pgx pool.
func NewWithPool(pool *pgxpool.Pool) *Repository {
	return &Repository{
		Movies:    &MoviesRepository{pool: pool},
		Reviews:   &ReviewsRepository{pool: pool},
		Actors:    &PeopleRepository{pool: pool, kind: domain.KindActor},
		Directors: &PeopleRepository{pool: pool, kind: domain.KindDirector},
		Users:     &UsersRepository{pool: pool},
		Watchlist: &WatchlistRepository{pool: pool},
		Stats:     &StatsRepository{pool: pool},
	}
}

// ListByMovie returns every review of a movie, soft-deleted ones included.
func (r *Repository) ListByMovie(ctx context.Context, movieID string) ([]domain.Review, error) {
	return r.Reviews.ListByMovie(ctx, movieID)
}

// UpdateRating stores the 10-point display rating on a movie.
func (r *Repository) UpdateRating(ctx context.Context, movieID string, rating10 float64) error {
	return r.Movies.UpdateRating(ctx, movieID, rating10)
}

// querier is satisfied by both the pool and a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func withTx(ctx context.Context, pool *pgxpool.Pool, fn func(tx pgx.Tx) error) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// translate maps driver errors onto the package sentinels. Malformed identifiers and
// dangling references both read as "not found" to callers.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "22P02", "23503":
			return ErrNotFound
		case "23505":
			return ErrConflict
		}
	}
	return err
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
