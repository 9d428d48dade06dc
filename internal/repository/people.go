package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Clark-Hu/movie-catalog/internal/domain"
)

// PeopleRepository stores actors or directors; both tables share one shape.
type PeopleRepository struct {
	pool *pgxpool.Pool
	kind domain.PersonKind
}

const personColumns = `id, name, age, photo, bio, created_at, updated_at`

// PersonParams bundles the writable fields of an actor or director.
type PersonParams struct {
	Name  string
	Age   *int
	Photo *string
	Bio   string
}

// Kind reports which table the repository writes to.
func (r *PeopleRepository) Kind() domain.PersonKind {
	return r.kind
}

func (r *PeopleRepository) table() string {
	return r.kind.Plural()
}

// Create inserts a person and returns the stored row.
func (r *PeopleRepository) Create(ctx context.Context, params PersonParams) (domain.Person, error) {
	query := fmt.Sprintf(`
        INSERT INTO %s (name, age, photo, bio)
        VALUES ($1,$2,$3,$4)
        RETURNING %s
    `, r.table(), personColumns)
	person, err := r.scanPerson(r.pool.QueryRow(ctx, query, params.Name, params.Age, params.Photo, params.Bio))
	if err != nil {
		return domain.Person{}, translate(err)
	}
	person.Movies = []domain.MovieRef{}
	return person, nil
}

// GetByID fetches a person along with the movies they worked on, newest release first.
func (r *PeopleRepository) GetByID(ctx context.Context, id string) (domain.Person, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, personColumns, r.table())
	person, err := r.scanPerson(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return domain.Person{}, translate(err)
	}

	var moviesQuery string
	if r.kind == domain.KindDirector {
		moviesQuery = `
            SELECT m.id, m.title, m.poster, m.release_date
            FROM movies m
            WHERE m.director_id = $1
            ORDER BY m.release_date DESC, m.id`
	} else {
		moviesQuery = `
            SELECT m.id, m.title, m.poster, m.release_date
            FROM movie_actors ma
            JOIN movies m ON m.id = ma.movie_id
            WHERE ma.actor_id = $1
            ORDER BY m.release_date DESC, m.id`
	}
	rows, err := r.pool.Query(ctx, moviesQuery, id)
	if err != nil {
		return domain.Person{}, fmt.Errorf("load %s movies: %w", r.kind, err)
	}
	person.Movies, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.MovieRef, error) {
		var ref domain.MovieRef
		err := row.Scan(&ref.ID, &ref.Title, &ref.Poster, &ref.ReleaseDate)
		return ref, err
	})
	if err != nil {
		return domain.Person{}, err
	}
	return person, nil
}

// List returns every person of this kind sorted by name.
func (r *PeopleRepository) List(ctx context.Context) ([]domain.Person, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s ORDER BY lower(name), id`, personColumns, r.table())
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	people := make([]domain.Person, 0)
	for rows.Next() {
		person, err := r.scanPerson(rows)
		if err != nil {
			return nil, err
		}
		people = append(people, person)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return people, nil
}

func (r *PeopleRepository) scanPerson(row pgx.Row) (domain.Person, error) {
	person := domain.Person{Kind: r.kind}
	err := row.Scan(
		&person.ID,
		&person.Name,
		&person.Age,
		&person.Photo,
		&person.Bio,
		&person.CreatedAt,
		&person.UpdatedAt,
	)
	if err != nil {
		return domain.Person{}, err
	}
	return person, nil
}
