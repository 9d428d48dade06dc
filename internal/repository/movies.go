package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Clark-Hu/movie-catalog/internal/domain"
)

// MoviesRepository provides persistence helpers for movie entities.
type MoviesRepository struct {
	pool *pgxpool.Pool
}

const movieColumns = `
    m.id,
    m.title,
    m.description,
    m.genres,
    m.release_date,
    m.poster,
    m.gallery,
    m.trailer_url,
    m.director_id,
    m.views,
    m.likes,
    m.rating,
    m.search_keywords,
    m.created_at,
    m.updated_at
`

// MovieParams bundles the writable fields of a movie.
type MovieParams struct {
	Title       string
	Description string
	Genres      []string
	ReleaseDate time.Time
	Poster      *string
	Gallery     []string
	TrailerURL  *string
	DirectorID  *string
	ActorIDs    []string
}

// MovieListFilters encapsulates the catalog search options. Zero values disable a filter.
type MovieListFilters struct {
	Search    string
	Genre     string
	Year      *int
	MinRating *float64
	Limit     int
}

// SearchKeywords derives the lower-cased terms a movie is searchable by.
func SearchKeywords(title string, genres []string) []string {
	keywords := make([]string, 0, len(genres)+1)
	if t := strings.ToLower(strings.TrimSpace(title)); t != "" {
		keywords = append(keywords, t)
	}
	for _, g := range genres {
		if g = strings.ToLower(strings.TrimSpace(g)); g != "" {
			keywords = append(keywords, g)
		}
	}
	return keywords
}

// Create inserts a new movie with its cast links and returns the stored entity.
func (r *MoviesRepository) Create(ctx context.Context, params MovieParams) (domain.Movie, error) {
	query := fmt.Sprintf(`
        INSERT INTO movies AS m (title, description, genres, release_date, poster, gallery, trailer_url, director_id, search_keywords)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
        RETURNING %s
    `, movieColumns)

	var movie domain.Movie
	err := withTx(ctx, r.pool, func(tx pgx.Tx) error {
		var err error
		row := tx.QueryRow(ctx, query,
			params.Title,
			params.Description,
			nonNil(params.Genres),
			params.ReleaseDate,
			params.Poster,
			nonNil(params.Gallery),
			params.TrailerURL,
			params.DirectorID,
			SearchKeywords(params.Title, params.Genres),
		)
		if movie, err = scanMovie(row); err != nil {
			return translate(err)
		}
		if err := replaceCast(ctx, tx, movie.ID, params.ActorIDs); err != nil {
			return err
		}
		movie.ActorIDs = nonNil(params.ActorIDs)
		return nil
	})
	if err != nil {
		return domain.Movie{}, err
	}
	return movie, nil
}

// Update overwrites every writable field of a movie and replaces its cast.
func (r *MoviesRepository) Update(ctx context.Context, id string, params MovieParams) (domain.Movie, error) {
	query := fmt.Sprintf(`
        UPDATE movies AS m
        SET title = $2,
            description = $3,
            genres = $4,
            release_date = $5,
            poster = $6,
            gallery = $7,
            trailer_url = $8,
            director_id = $9,
            search_keywords = $10,
            updated_at = now()
        WHERE m.id = $1
        RETURNING %s
    `, movieColumns)

	var movie domain.Movie
	err := withTx(ctx, r.pool, func(tx pgx.Tx) error {
		var err error
		row := tx.QueryRow(ctx, query,
			id,
			params.Title,
			params.Description,
			nonNil(params.Genres),
			params.ReleaseDate,
			params.Poster,
			nonNil(params.Gallery),
			params.TrailerURL,
			params.DirectorID,
			SearchKeywords(params.Title, params.Genres),
		)
		if movie, err = scanMovie(row); err != nil {
			return translate(err)
		}
		if err := replaceCast(ctx, tx, id, params.ActorIDs); err != nil {
			return err
		}
		movie.ActorIDs = nonNil(params.ActorIDs)
		return nil
	})
	if err != nil {
		return domain.Movie{}, err
	}
	return movie, nil
}

// Delete removes a movie and returns the deleted row so callers can clean up its files.
// Reviews, watchlist entries and cast links go with it.
func (r *MoviesRepository) Delete(ctx context.Context, id string) (domain.Movie, error) {
	query := fmt.Sprintf(`DELETE FROM movies AS m WHERE m.id = $1 RETURNING %s`, movieColumns)
	movie, err := scanMovie(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return domain.Movie{}, translate(err)
	}
	return movie, nil
}

// GetByID fetches a movie by its identifier, with director and actors attached.
func (r *MoviesRepository) GetByID(ctx context.Context, id string) (domain.Movie, error) {
	query := fmt.Sprintf(`SELECT %s FROM movies AS m WHERE m.id = $1`, movieColumns)
	movie, err := scanMovie(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return domain.Movie{}, translate(err)
	}
	movies := []domain.Movie{movie}
	if err := attachCast(ctx, r.pool, movies); err != nil {
		return domain.Movie{}, err
	}
	return movies[0], nil
}

// List returns movies that match the provided filters, newest first.
func (r *MoviesRepository) List(ctx context.Context, filters MovieListFilters) ([]domain.Movie, error) {
	where := make([]string, 0)
	args := make([]interface{}, 0)
	arg := func(value interface{}) string {
		args = append(args, value)
		return fmt.Sprintf("$%d", len(args))
	}

	if q := strings.TrimSpace(filters.Search); q != "" {
		pattern := "%" + escapeLike(strings.ToLower(q)) + "%"
		p := arg(pattern)
		where = append(where, fmt.Sprintf(
			"(lower(m.title) LIKE %s OR EXISTS (SELECT 1 FROM unnest(m.search_keywords) AS k WHERE k LIKE %s))", p, p))
	}
	if g := strings.TrimSpace(filters.Genre); g != "" && !strings.EqualFold(g, "all") {
		where = append(where, fmt.Sprintf("%s = ANY(m.genres)", arg(g)))
	}
	if filters.Year != nil {
		where = append(where, fmt.Sprintf("EXTRACT(YEAR FROM m.release_date)::int = %s", arg(*filters.Year)))
	}
	if filters.MinRating != nil {
		where = append(where, fmt.Sprintf("m.rating >= %s", arg(*filters.MinRating)))
	}

	queryBuilder := strings.Builder{}
	queryBuilder.WriteString("SELECT ")
	queryBuilder.WriteString(movieColumns)
	queryBuilder.WriteString(" FROM movies AS m")

	if len(where) > 0 {
		queryBuilder.WriteString(" WHERE ")
		queryBuilder.WriteString(strings.Join(where, " AND "))
	}

	queryBuilder.WriteString(" ORDER BY m.created_at DESC, m.id DESC")
	if filters.Limit > 0 {
		queryBuilder.WriteString(fmt.Sprintf(" LIMIT %d", filters.Limit))
	}

	return queryMovies(ctx, r.pool, queryBuilder.String(), args...)
}

// All returns every movie, newest first.
func (r *MoviesRepository) All(ctx context.Context) ([]domain.Movie, error) {
	return r.List(ctx, MovieListFilters{})
}

// Recent returns the most recently added movies.
func (r *MoviesRepository) Recent(ctx context.Context, limit int) ([]domain.Movie, error) {
	return r.List(ctx, MovieListFilters{Limit: limit})
}

// Related returns other movies sharing at least one genre with the given ones.
func (r *MoviesRepository) Related(ctx context.Context, movieID string, genres []string, limit int) ([]domain.Movie, error) {
	if len(genres) == 0 || limit <= 0 {
		return []domain.Movie{}, nil
	}
	query := fmt.Sprintf(`
        SELECT %s FROM movies AS m
        WHERE m.id <> $1 AND m.genres && $2::text[]
        ORDER BY m.created_at DESC, m.id DESC
        LIMIT %d
    `, movieColumns, limit)
	movies, err := queryMovies(ctx, r.pool, query, movieID, genres)
	if err != nil {
		return nil, translate(err)
	}
	return movies, nil
}

// AttachCast loads director and actor names onto already fetched movies.
func (r *MoviesRepository) AttachCast(ctx context.Context, movies []domain.Movie) error {
	return attachCast(ctx, r.pool, movies)
}

// IncrementViews bumps the view counter by exactly one.
func (r *MoviesRepository) IncrementViews(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE movies SET views = views + 1 WHERE id = $1`, id)
	if err != nil {
		return translate(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateRating stores the derived 10-point display rating.
func (r *MoviesRepository) UpdateRating(ctx context.Context, id string, rating10 float64) error {
	tag, err := r.pool.Exec(ctx, `UPDATE movies SET rating = $2 WHERE id = $1`, id, rating10)
	if err != nil {
		return translate(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DistinctGenres lists every genre in use, alphabetically.
func (r *MoviesRepository) DistinctGenres(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT DISTINCT unnest(genres) AS g FROM movies ORDER BY g`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

// DistinctYears lists every release year in use, newest first.
func (r *MoviesRepository) DistinctYears(ctx context.Context) ([]int, error) {
	rows, err := r.pool.Query(ctx, `SELECT DISTINCT EXTRACT(YEAR FROM release_date)::int AS y FROM movies ORDER BY y DESC`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[int])
}

func replaceCast(ctx context.Context, q querier, movieID string, actorIDs []string) error {
	if _, err := q.Exec(ctx, `DELETE FROM movie_actors WHERE movie_id = $1`, movieID); err != nil {
		return translate(err)
	}
	if len(actorIDs) == 0 {
		return nil
	}
	const insert = `
        INSERT INTO movie_actors (movie_id, actor_id, position)
        SELECT $1, a.id::uuid, a.ord - 1
        FROM unnest($2::text[]) WITH ORDINALITY AS a(id, ord)
        ON CONFLICT DO NOTHING
    `
	if _, err := q.Exec(ctx, insert, movieID, actorIDs); err != nil {
		return translate(err)
	}
	return nil
}

// attachCast fills Director, Actors and ActorIDs on each movie in place.
func attachCast(ctx context.Context, q querier, movies []domain.Movie) error {
	if len(movies) == 0 {
		return nil
	}
	index := make(map[string]int, len(movies))
	movieIDs := make([]string, 0, len(movies))
	directorIDs := make([]string, 0)
	for i, m := range movies {
		index[m.ID] = i
		movieIDs = append(movieIDs, m.ID)
		movies[i].Actors = []domain.PersonRef{}
		movies[i].ActorIDs = []string{}
		if m.DirectorID != nil {
			directorIDs = append(directorIDs, *m.DirectorID)
		}
	}

	rows, err := q.Query(ctx, `
        SELECT ma.movie_id, a.id, a.name, a.photo, a.bio
        FROM movie_actors ma
        JOIN actors a ON a.id = ma.actor_id
        WHERE ma.movie_id = ANY(CAST($1::text[] AS uuid[]))
        ORDER BY ma.movie_id, ma.position
    `, movieIDs)
	if err != nil {
		return fmt.Errorf("load actors: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var movieID string
		var ref domain.PersonRef
		if err := rows.Scan(&movieID, &ref.ID, &ref.Name, &ref.Photo, &ref.Bio); err != nil {
			return err
		}
		if i, ok := index[movieID]; ok {
			movies[i].Actors = append(movies[i].Actors, ref)
			movies[i].ActorIDs = append(movies[i].ActorIDs, ref.ID)
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	if len(directorIDs) == 0 {
		return nil
	}
	directors := make(map[string]domain.PersonRef, len(directorIDs))
	dirRows, err := q.Query(ctx, `
        SELECT id, name, photo, bio FROM directors
        WHERE id = ANY(CAST($1::text[] AS uuid[]))
    `, directorIDs)
	if err != nil {
		return fmt.Errorf("load directors: %w", err)
	}
	defer dirRows.Close()
	for dirRows.Next() {
		var ref domain.PersonRef
		if err := dirRows.Scan(&ref.ID, &ref.Name, &ref.Photo, &ref.Bio); err != nil {
			return err
		}
		directors[ref.ID] = ref
	}
	if err := dirRows.Err(); err != nil {
		return err
	}
	for i, m := range movies {
		if m.DirectorID == nil {
			continue
		}
		if ref, ok := directors[*m.DirectorID]; ok {
			movies[i].Director = &ref
		}
	}
	return nil
}

func queryMovies(ctx context.Context, q querier, query string, args ...any) ([]domain.Movie, error) {
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.Movie, 0)
	for rows.Next() {
		movie, err := scanMovie(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, movie)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func scanMovie(row pgx.Row) (domain.Movie, error) {
	var movie domain.Movie
	err := row.Scan(
		&movie.ID,
		&movie.Title,
		&movie.Description,
		&movie.Genres,
		&movie.ReleaseDate,
		&movie.Poster,
		&movie.Gallery,
		&movie.TrailerURL,
		&movie.DirectorID,
		&movie.Views,
		&movie.Likes,
		&movie.Rating,
		&movie.SearchKeywords,
		&movie.CreatedAt,
		&movie.UpdatedAt,
	)
	if err != nil {
		return domain.Movie{}, err
	}
	return movie, nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
