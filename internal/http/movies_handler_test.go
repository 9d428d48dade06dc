package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/Clark-Hu/movie-catalog/internal/domain"
	"github.com/Clark-Hu/movie-catalog/internal/repository"
)

var pngBytes = []byte("\x89PNG\r\n\x1a\nfake image payload")

func movieFields(title string) map[string][]string {
	return map[string][]string{
		"title":       {title},
		"description": {"A test movie"},
		"releaseDate": {"2021-06-01"},
		"genre":       {"Action, Drama"},
	}
}

func TestHandleListMovies(t *testing.T) {
	srv := buildTestServer(t)
	_, cookie := signIn(t, srv, "lena", domain.RoleUser)
	createMovie(t, srv, "The Matrix", "Sci-Fi")
	createMovie(t, srv, "Amelie", "Romance")

	rec := serve(srv, httptest.NewRequest(http.MethodGet, "/movies?search=matrix&genre=all", nil), cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "The Matrix") || strings.Contains(body, "<h2>Amelie</h2>") {
		t.Fatalf("search did not filter the list")
	}
	if !strings.Contains(body, `<option value="Romance"`) {
		t.Fatalf("genre options missing")
	}

	rec = serve(srv, httptest.NewRequest(http.MethodGet, "/movies?year=abc", nil), cookie)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("invalid year = %d, want 400", rec.Code)
	}
}

func TestHandleMovieDetail_CountsViews(t *testing.T) {
	srv := buildTestServer(t)
	ctx := context.Background()
	_, cookie := signIn(t, srv, "mia", domain.RoleUser)
	movie := createMovie(t, srv, "Memento", "Thriller")
	createMovie(t, srv, "Insomnia", "Thriller")

	for i := 0; i < 2; i++ {
		rec := serve(srv, httptest.NewRequest(http.MethodGet, "/movies/"+movie.ID, nil), cookie)
		if rec.Code != http.StatusOK {
			t.Fatalf("detail = %d", rec.Code)
		}
		body := rec.Body.String()
		if !strings.Contains(body, "Memento") || !strings.Contains(body, "Insomnia") {
			t.Fatalf("detail page missing movie or related movie")
		}
	}
	got, err := srv.repo.Movies.GetByID(ctx, movie.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Views != 2 {
		t.Fatalf("views = %d, want 2", got.Views)
	}

	rec := serve(srv, httptest.NewRequest(http.MethodGet, "/movies/"+uuid.NewString(), nil), cookie)
	if rec.Code != http.StatusFound || rec.Header().Get("Location") != "/movies" {
		t.Fatalf("unknown movie = %d %s", rec.Code, rec.Header().Get("Location"))
	}
}

func TestHandleTrendingMovies(t *testing.T) {
	srv := buildTestServer(t)
	ctx := context.Background()
	_, cookie := signIn(t, srv, "nina", domain.RoleUser)
	quiet := createMovie(t, srv, "Quiet", "Drama")
	popular := createMovie(t, srv, "Popular", "Drama")
	for i := 0; i < 3; i++ {
		if err := srv.repo.Movies.IncrementViews(ctx, popular.ID); err != nil {
			t.Fatalf("IncrementViews: %v", err)
		}
	}
	serve(srv, jsonRequest(http.MethodPost, "/api/reviews", `{"movieId":"`+popular.ID+`","rating":5}`), cookie)

	rec := serve(srv, httptest.NewRequest(http.MethodGet, "/api/movies/trending", nil), cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var movies []movieSummaryResponse
	if err := json.NewDecoder(rec.Body).Decode(&movies); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(movies) != 2 || movies[0].ID != popular.ID || movies[1].ID != quiet.ID {
		t.Fatalf("order = %+v", movies)
	}
	if movies[0].ReviewsCount != 1 || movies[0].AverageRating != 5 || movies[0].Views != 3 {
		t.Fatalf("popular summary = %+v", movies[0])
	}
	if movies[0].TrendingScore <= movies[1].TrendingScore {
		t.Fatalf("scores not descending: %v <= %v", movies[0].TrendingScore, movies[1].TrendingScore)
	}
}

func TestHandleCreateMovie_Multipart(t *testing.T) {
	srv := buildTestServer(t)
	ctx := context.Background()
	_, cookie := signIn(t, srv, "otto", domain.RoleUser)
	director, err := srv.repo.Directors.Create(ctx, repository.PersonParams{Name: "Ridley Scott"})
	if err != nil {
		t.Fatalf("create director: %v", err)
	}
	actor, err := srv.repo.Actors.Create(ctx, repository.PersonParams{Name: "Sigourney Weaver"})
	if err != nil {
		t.Fatalf("create actor: %v", err)
	}

	fields := movieFields("Upload Test")
	fields["trailerUrl"] = []string{"https://www.youtube.com/watch?v=abc123&t=10"}
	fields["director"] = []string{director.ID}
	fields["actors"] = []string{actor.ID}
	req := multipartRequest(t, "/movies/add", fields,
		formFile{"poster", "poster.png", "image/png", pngBytes},
		formFile{"gallery", "one.jpg", "image/jpeg", pngBytes},
		formFile{"gallery", "two.webp", "image/webp", pngBytes},
	)
	rec := serve(srv, req, cookie)
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("create = %d: %s", rec.Code, rec.Body.String())
	}

	movies, err := srv.repo.Movies.List(ctx, repository.MovieListFilters{Search: "Upload Test"})
	if err != nil || len(movies) != 1 {
		t.Fatalf("list = %d, %v", len(movies), err)
	}
	movie, err := srv.repo.Movies.GetByID(ctx, movies[0].ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if movie.Poster == nil || !fileExists(uploadedFile(srv, *movie.Poster)) {
		t.Fatalf("poster not stored: %v", movie.Poster)
	}
	if len(movie.Gallery) != 2 {
		t.Fatalf("gallery = %v", movie.Gallery)
	}
	for _, p := range movie.Gallery {
		if !strings.HasPrefix(p, "/uploads/movies/") || !fileExists(uploadedFile(srv, p)) {
			t.Fatalf("gallery file missing: %s", p)
		}
	}
	if movie.TrailerURL == nil || *movie.TrailerURL != "https://www.youtube.com/embed/abc123" {
		t.Fatalf("trailer = %v", movie.TrailerURL)
	}
	if movie.Director == nil || movie.Director.Name != "Ridley Scott" || len(movie.Actors) != 1 {
		t.Fatalf("cast = %+v %+v", movie.Director, movie.Actors)
	}
	if len(movie.Genres) != 2 || movie.Genres[0] != "Action" {
		t.Fatalf("genres = %v", movie.Genres)
	}
}

func TestHandleCreateMovie_Rejects(t *testing.T) {
	srv := buildTestServer(t)
	_, cookie := signIn(t, srv, "pia", domain.RoleUser)

	invalidTrailer := movieFields("Bad Trailer")
	invalidTrailer["trailerUrl"] = []string{"https://vimeo.com/123"}
	unknownDirector := movieFields("Ghost Director")
	unknownDirector["director"] = []string{uuid.NewString()}

	cases := []struct {
		name   string
		fields map[string][]string
		files  []formFile
		want   string
	}{
		{"invalid trailer", invalidTrailer, []formFile{{"poster", "p.png", "image/png", pngBytes}}, "Invalid YouTube URL"},
		{"not an image", movieFields("Text Poster"), []formFile{{"poster", "notes.txt", "text/plain", []byte("hi")}}, "Only image files are allowed"},
		{"too large", movieFields("Huge Poster"), []formFile{{"poster", "big.png", "image/png", make([]byte, (1<<20)+1)}}, "File size too large"},
		{"missing fields", map[string][]string{"title": {"Only Title"}}, nil, "required"},
		{"unknown director", unknownDirector, []formFile{{"gallery", "g.png", "image/png", pngBytes}}, "no longer exist"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := serve(srv, multipartRequest(t, "/movies/add", tc.fields, tc.files...), cookie)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
			if !strings.Contains(rec.Body.String(), tc.want) {
				t.Fatalf("body missing %q", tc.want)
			}
		})
	}

	entries, _ := os.ReadDir(filepath.Join(srv.cfg.PublicDir, "uploads", "movies"))
	if len(entries) != 0 {
		t.Fatalf("rejected uploads left %d files behind", len(entries))
	}
}

func TestHandleUpdateMovie(t *testing.T) {
	srv := buildTestServer(t)
	ctx := context.Background()
	_, cookie := signIn(t, srv, "quinn", domain.RoleUser)

	dir := filepath.Join(srv.cfg.PublicDir, "uploads", "movies")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	oldPoster := "/uploads/movies/old.png"
	keep := "/uploads/movies/keep.png"
	drop := "/uploads/movies/drop.png"
	for _, p := range []string{oldPoster, keep, drop} {
		if err := os.WriteFile(uploadedFile(srv, p), pngBytes, 0o644); err != nil {
			t.Fatalf("write fixture: %v", err)
		}
	}
	trailerURL := "https://www.youtube.com/embed/old"
	movie, err := srv.repo.Movies.Create(ctx, repository.MovieParams{
		Title:       "Before",
		Description: "d",
		Genres:      []string{"Drama"},
		ReleaseDate: time.Date(2001, 1, 1, 0, 0, 0, 0, time.UTC),
		Poster:      &oldPoster,
		Gallery:     []string{keep, drop},
		TrailerURL:  &trailerURL,
	})
	if err != nil {
		t.Fatalf("create movie: %v", err)
	}

	fields := movieFields("After")
	fields["trailerUrl"] = []string{""}
	fields["removeGallery"] = []string{drop}
	req := multipartRequest(t, "/movies/edit/"+movie.ID, fields, formFile{"poster", "new.png", "image/png", pngBytes})
	rec := serve(srv, req, cookie)
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("update = %d: %s", rec.Code, rec.Body.String())
	}

	got, err := srv.repo.Movies.GetByID(ctx, movie.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Title != "After" || got.TrailerURL != nil {
		t.Fatalf("movie = %q trailer=%v", got.Title, got.TrailerURL)
	}
	if got.Poster == nil || *got.Poster == oldPoster || !fileExists(uploadedFile(srv, *got.Poster)) {
		t.Fatalf("poster not replaced: %v", got.Poster)
	}
	if fileExists(uploadedFile(srv, oldPoster)) || fileExists(uploadedFile(srv, drop)) {
		t.Fatalf("replaced files still on disk")
	}
	if len(got.Gallery) != 1 || got.Gallery[0] != keep || !fileExists(uploadedFile(srv, keep)) {
		t.Fatalf("gallery = %v", got.Gallery)
	}

	// Omitting the trailer field keeps the stored value.
	if _, err := srv.repo.Movies.Update(ctx, movie.ID, repository.MovieParams{
		Title: "After", Description: "d", ReleaseDate: got.ReleaseDate, Poster: got.Poster, Gallery: got.Gallery, TrailerURL: &trailerURL,
	}); err != nil {
		t.Fatalf("reset trailer: %v", err)
	}
	rec = serve(srv, multipartRequest(t, "/movies/edit/"+movie.ID, movieFields("Again")), cookie)
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("second update = %d", rec.Code)
	}
	got, _ = srv.repo.Movies.GetByID(ctx, movie.ID)
	if got.TrailerURL == nil || *got.TrailerURL != trailerURL || len(got.Gallery) != 1 {
		t.Fatalf("trailer or gallery lost: %v %v", got.TrailerURL, got.Gallery)
	}
}

func TestHandleDeleteMovie(t *testing.T) {
	srv := buildTestServer(t)
	ctx := context.Background()
	_, cookie := signIn(t, srv, "ray", domain.RoleUser)

	rec := serve(srv, multipartRequest(t, "/movies/add", movieFields("Doomed"), formFile{"poster", "p.png", "image/png", pngBytes}), cookie)
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("create = %d", rec.Code)
	}
	movies, _ := srv.repo.Movies.List(ctx, repository.MovieListFilters{Search: "Doomed"})
	if len(movies) != 1 || movies[0].Poster == nil {
		t.Fatalf("movie not created")
	}
	poster := uploadedFile(srv, *movies[0].Poster)

	rec = serve(srv, httptest.NewRequest(http.MethodGet, "/movies/delete/"+movies[0].ID, nil), cookie)
	if rec.Code != http.StatusFound || rec.Header().Get("Location") != "/movies" {
		t.Fatalf("delete = %d", rec.Code)
	}
	if _, err := srv.repo.Movies.GetByID(ctx, movies[0].ID); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("GetByID after delete err = %v", err)
	}
	if fileExists(poster) {
		t.Fatalf("poster file not removed")
	}
}

func TestHandleMovieForms(t *testing.T) {
	srv := buildTestServer(t)
	_, cookie := signIn(t, srv, "sara", domain.RoleUser)
	movie := createMovie(t, srv, "Editable", "Drama")

	rec := serve(srv, httptest.NewRequest(http.MethodGet, "/movies/add", nil), cookie)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `action="/movies/add"`) {
		t.Fatalf("add form = %d", rec.Code)
	}
	rec = serve(srv, httptest.NewRequest(http.MethodGet, "/movies/edit/"+movie.ID, nil), cookie)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "Editable") {
		t.Fatalf("edit form = %d", rec.Code)
	}
	rec = serve(srv, httptest.NewRequest(http.MethodGet, "/movies/edit/"+uuid.NewString(), nil), cookie)
	if rec.Code != http.StatusFound {
		t.Fatalf("edit unknown = %d", rec.Code)
	}
}

func TestWatchlistToggle(t *testing.T) {
	srv := buildTestServer(t)
	_, cookie := signIn(t, srv, "tina", domain.RoleUser)
	movie := createMovie(t, srv, "Saved Movie", "Drama")

	toggle := func(body string) (int, toggleWatchlistResponse) {
		rec := serve(srv, jsonRequest(http.MethodPost, "/api/watchlist/toggle", body), cookie)
		var resp toggleWatchlistResponse
		_ = json.NewDecoder(rec.Body).Decode(&resp)
		return rec.Code, resp
	}

	if code, resp := toggle(`{"movieId":"` + movie.ID + `"}`); code != http.StatusOK || !resp.Success || !resp.InWatchlist {
		t.Fatalf("add = %d %+v", code, resp)
	}
	rec := serve(srv, httptest.NewRequest(http.MethodGet, "/my-watchlist", nil), cookie)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "Saved Movie") {
		t.Fatalf("watchlist page = %d", rec.Code)
	}
	if code, resp := toggle(`{"movieId":"` + movie.ID + `"}`); code != http.StatusOK || resp.InWatchlist {
		t.Fatalf("remove = %d %+v", code, resp)
	}
	if code, _ := toggle(`{}`); code != http.StatusBadRequest {
		t.Fatalf("missing id = %d", code)
	}
	if code, _ := toggle(`{"movieId":"` + uuid.NewString() + `"}`); code != http.StatusNotFound {
		t.Fatalf("unknown movie = %d", code)
	}
}
