package httpserver

import (
	"context"
	"errors"
	"fmt"
	"math"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Clark-Hu/movie-catalog/internal/domain"
	"github.com/Clark-Hu/movie-catalog/internal/rating"
	"github.com/Clark-Hu/movie-catalog/internal/repository"
	"github.com/Clark-Hu/movie-catalog/internal/trailer"
	"github.com/Clark-Hu/movie-catalog/internal/upload"
)

const (
	maxGalleryUploads   = 9
	relatedMoviesLimit  = 6
	trendingMoviesLimit = 10
	multipartMemory     = 32 << 20
)

type movieFilterForm struct {
	Search    string
	Genre     string
	Year      string
	MinRating string
	Trending  bool
}

type movieQuery struct {
	Filters  repository.MovieListFilters
	Trending bool
	Form     movieFilterForm
}

type movieListPage struct {
	viewBase
	Movies  []domain.MovieSummary
	Filters movieFilterForm
	Genres  []string
	Years   []int
}

type movieDetailPage struct {
	viewBase
	Movie       domain.Movie
	Reviews     []domain.Review
	AvgRating   float64
	UserReview  *domain.Review
	InWatchlist bool
	Related     []domain.MovieSummary
	RatingScale []int
}

type movieFormValues struct {
	ID          string
	Title       string
	Description string
	Genre       string
	ReleaseDate string
	TrailerURL  string
	DirectorID  *string
	ActorIDs    []string
	Poster      *string
	Gallery     []string
}

type movieFormPage struct {
	viewBase
	IsEdit    bool
	Movie     movieFormValues
	Actors    []domain.Person
	Directors []domain.Person
}

type movieSummaryResponse struct {
	ID            string   `json:"id"`
	Title         string   `json:"title"`
	Poster        *string  `json:"poster"`
	Genres        []string `json:"genres"`
	ReleaseDate   string   `json:"releaseDate"`
	Views         int64    `json:"views"`
	Rating        float64  `json:"rating"`
	AverageRating float64  `json:"averageRating"`
	ReviewsCount  int64    `json:"reviewsCount"`
	TrendingScore float64  `json:"trendingScore"`
}

// movieInput is a validated add/edit form.
type movieInput struct {
	values        movieFormValues
	releaseDate   time.Time
	genres        []string
	trailer       *string
	trailerSet    bool
	removeGallery []string
	poster        *multipart.FileHeader
	gallery       []*multipart.FileHeader
}

type formError string

func (e formError) Error() string { return string(e) }

func (s *Server) handleListMovies(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	q, err := parseMovieFilters(r.URL.Query())
	if err != nil {
		s.renderError(w, user, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}

	page := movieListPage{viewBase: viewBase{User: user}, Filters: q.Form}
	movies, err := s.repo.Movies.List(r.Context(), q.Filters)
	if err == nil {
		err = s.repo.Movies.AttachCast(r.Context(), movies)
	}
	if err == nil {
		page.Movies, err = s.summarize(r.Context(), movies)
	}
	if err == nil {
		page.Genres, err = s.repo.Movies.DistinctGenres(r.Context())
	}
	if err == nil {
		page.Years, err = s.repo.Movies.DistinctYears(r.Context())
	}
	if err != nil {
		s.logger.Printf("list movies error: %v", err)
		page.Movies = nil
		page.Error = "Error fetching movies"
		s.render(w, http.StatusInternalServerError, "movies_list", page)
		return
	}

	if q.Trending {
		rating.SortByTrending(page.Movies)
	}
	s.render(w, http.StatusOK, "movies_list", page)
}

// parseMovieFilters reads the catalog query string. "all" disables the genre and year filters.
func parseMovieFilters(query url.Values) (movieQuery, error) {
	q := movieQuery{
		Form: movieFilterForm{
			Search:    strings.TrimSpace(query.Get("search")),
			Genre:     strings.TrimSpace(query.Get("genre")),
			Year:      strings.TrimSpace(query.Get("year")),
			MinRating: strings.TrimSpace(query.Get("minRating")),
			Trending:  query.Get("trending") == "true",
		},
	}
	q.Trending = q.Form.Trending
	q.Filters.Search = q.Form.Search
	if q.Form.Genre != "" && !strings.EqualFold(q.Form.Genre, "all") {
		q.Filters.Genre = q.Form.Genre
	}
	if q.Form.Year != "" && !strings.EqualFold(q.Form.Year, "all") {
		year, err := strconv.Atoi(q.Form.Year)
		if err != nil {
			return q, fmt.Errorf("invalid year value")
		}
		q.Filters.Year = &year
	}
	if q.Form.MinRating != "" {
		minRating, err := strconv.ParseFloat(q.Form.MinRating, 64)
		if err != nil || math.IsNaN(minRating) || math.IsInf(minRating, 0) {
			return q, fmt.Errorf("invalid minRating value")
		}
		q.Filters.MinRating = &minRating
	}
	return q, nil
}

// summarize attaches live review counts, averages and trending scores.
func (s *Server) summarize(ctx context.Context, movies []domain.Movie) ([]domain.MovieSummary, error) {
	ids := make([]string, 0, len(movies))
	for _, m := range movies {
		ids = append(ids, m.ID)
	}
	reviews, err := s.repo.Reviews.ForMovies(ctx, ids)
	if err != nil {
		return nil, err
	}
	return rating.ApplyAll(movies, reviews), nil
}

// handleMovieDetail counts every access as a view, including reloads.
func (s *Server) handleMovieDetail(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	id := chi.URLParam(r, "id")
	ctx := r.Context()

	if err := s.repo.Movies.IncrementViews(ctx, id); err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			s.logger.Printf("increment views error: %v", err)
		}
		http.Redirect(w, r, "/movies", http.StatusFound)
		return
	}

	movie, err := s.repo.Movies.GetByID(ctx, id)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			s.logger.Printf("fetch movie detail error: %v", err)
		}
		http.Redirect(w, r, "/movies", http.StatusFound)
		return
	}

	page := movieDetailPage{viewBase: viewBase{User: user}, Movie: movie, RatingScale: ratingScale()}
	page.Reviews, err = s.repo.Reviews.ListActive(ctx, id)
	if err != nil {
		s.logger.Printf("fetch reviews error: %v", err)
		http.Redirect(w, r, "/movies", http.StatusFound)
		return
	}
	page.AvgRating = rating.AverageRating(page.Reviews)

	own, err := s.repo.Reviews.GetByUser(ctx, id, user.ID)
	switch {
	case err == nil:
		page.UserReview = &own
	case !errors.Is(err, repository.ErrNotFound):
		s.logger.Printf("fetch own review error: %v", err)
	}

	if page.InWatchlist, err = s.repo.Watchlist.Contains(ctx, user.ID, id); err != nil {
		s.logger.Printf("watchlist lookup error: %v", err)
	}

	related, err := s.repo.Movies.Related(ctx, id, movie.Genres, relatedMoviesLimit)
	if err == nil {
		err = s.repo.Movies.AttachCast(ctx, related)
	}
	if err == nil {
		page.Related, err = s.summarize(ctx, related)
	}
	if err != nil {
		s.logger.Printf("related movies error: %v", err)
		page.Related = nil
	}

	s.render(w, http.StatusOK, "movies_detail", page)
}

func (s *Server) handleTrendingMovies(w http.ResponseWriter, r *http.Request) {
	movies, err := s.repo.Movies.All(r.Context())
	if err != nil {
		s.logger.Printf("trending movies error: %v", err)
		s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Error fetching trending movies")
		return
	}
	summaries, err := s.summarize(r.Context(), movies)
	if err != nil {
		s.logger.Printf("trending summaries error: %v", err)
		s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Error fetching trending movies")
		return
	}

	top := rating.TopTrending(summaries, trendingMoviesLimit)
	resp := make([]movieSummaryResponse, 0, len(top))
	for _, m := range top {
		resp = append(resp, toMovieSummaryResponse(m))
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func ratingScale() []int {
	scale := make([]int, 0, domain.MaxReviewRating-domain.MinReviewRating+1)
	for v := domain.MinReviewRating; v <= domain.MaxReviewRating; v++ {
		scale = append(scale, v)
	}
	return scale
}

func toMovieSummaryResponse(m domain.MovieSummary) movieSummaryResponse {
	return movieSummaryResponse{
		ID:            m.ID,
		Title:         m.Title,
		Poster:        m.Poster,
		Genres:        m.Genres,
		ReleaseDate:   m.ReleaseDate.Format("2006-01-02"),
		Views:         m.Views,
		Rating:        m.Rating,
		AverageRating: m.AverageRating,
		ReviewsCount:  m.ReviewsCount,
		TrendingScore: m.TrendingScore,
	}
}

func (s *Server) handleAddMovieForm(w http.ResponseWriter, r *http.Request) {
	s.renderMovieForm(w, r, http.StatusOK, false, movieFormValues{}, "")
}

func (s *Server) handleEditMovieForm(w http.ResponseWriter, r *http.Request) {
	movie, err := s.repo.Movies.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			s.logger.Printf("fetch movie for edit error: %v", err)
		}
		http.Redirect(w, r, "/movies", http.StatusFound)
		return
	}
	s.renderMovieForm(w, r, http.StatusOK, true, formValuesFromMovie(movie), "")
}

func (s *Server) renderMovieForm(w http.ResponseWriter, r *http.Request, status int, isEdit bool, values movieFormValues, message string) {
	page := movieFormPage{
		viewBase: viewBase{User: currentUser(r), Error: message},
		IsEdit:   isEdit,
		Movie:    values,
	}
	var err error
	if page.Actors, err = s.repo.Actors.List(r.Context()); err != nil {
		s.logger.Printf("load actors for form error: %v", err)
	}
	if page.Directors, err = s.repo.Directors.List(r.Context()); err != nil {
		s.logger.Printf("load directors for form error: %v", err)
	}
	s.render(w, status, "movies_form", page)
}

func (s *Server) handleCreateMovie(w http.ResponseWriter, r *http.Request) {
	form, err := s.parseUploadForm(w, r)
	if err != nil {
		s.renderMovieForm(w, r, http.StatusBadRequest, false, movieFormValues{}, s.uploadErrorMessage(err))
		return
	}
	in, err := buildMovieInput(form)
	if err != nil {
		s.renderMovieForm(w, r, http.StatusBadRequest, false, in.values, err.Error())
		return
	}

	poster, gallery, err := s.saveMovieImages(in)
	if err != nil {
		s.renderMovieForm(w, r, http.StatusBadRequest, false, in.values, s.uploadErrorMessage(err))
		return
	}

	_, err = s.repo.Movies.Create(r.Context(), repository.MovieParams{
		Title:       in.values.Title,
		Description: in.values.Description,
		Genres:      in.genres,
		ReleaseDate: in.releaseDate,
		Poster:      poster,
		Gallery:     gallery,
		TrailerURL:  in.trailer,
		DirectorID:  in.values.DirectorID,
		ActorIDs:    in.values.ActorIDs,
	})
	if err != nil {
		s.uploads.RemoveAll(append(gallery, derefAll(poster)...))
		if errors.Is(err, repository.ErrNotFound) {
			s.renderMovieForm(w, r, http.StatusBadRequest, false, in.values, "The selected director or actors no longer exist")
			return
		}
		s.logger.Printf("create movie error: %v", err)
		s.renderMovieForm(w, r, http.StatusInternalServerError, false, in.values, "Error creating movie. Please try again.")
		return
	}
	http.Redirect(w, r, "/movies", http.StatusSeeOther)
}

func (s *Server) handleUpdateMovie(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	existing, err := s.repo.Movies.GetByID(r.Context(), id)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			s.logger.Printf("fetch movie for update error: %v", err)
		}
		http.Redirect(w, r, "/movies", http.StatusFound)
		return
	}

	form, err := s.parseUploadForm(w, r)
	if err != nil {
		s.renderMovieForm(w, r, http.StatusBadRequest, true, formValuesFromMovie(existing), s.uploadErrorMessage(err))
		return
	}
	in, err := buildMovieInput(form)
	in.values.ID = id
	in.values.Poster = existing.Poster
	in.values.Gallery = existing.Gallery
	if err != nil {
		s.renderMovieForm(w, r, http.StatusBadRequest, true, in.values, err.Error())
		return
	}

	trailerURL := existing.TrailerURL
	if in.trailerSet {
		trailerURL = in.trailer
	}

	newPoster, newGallery, err := s.saveMovieImages(in)
	if err != nil {
		s.renderMovieForm(w, r, http.StatusBadRequest, true, in.values, s.uploadErrorMessage(err))
		return
	}

	poster := existing.Poster
	if newPoster != nil {
		poster = newPoster
	}
	kept, removed := splitGallery(existing.Gallery, in.removeGallery)

	_, err = s.repo.Movies.Update(r.Context(), id, repository.MovieParams{
		Title:       in.values.Title,
		Description: in.values.Description,
		Genres:      in.genres,
		ReleaseDate: in.releaseDate,
		Poster:      poster,
		Gallery:     append(kept, newGallery...),
		TrailerURL:  trailerURL,
		DirectorID:  in.values.DirectorID,
		ActorIDs:    in.values.ActorIDs,
	})
	if err != nil {
		s.uploads.RemoveAll(append(newGallery, derefAll(newPoster)...))
		if errors.Is(err, repository.ErrNotFound) {
			s.renderMovieForm(w, r, http.StatusBadRequest, true, in.values, "The movie, director or actors no longer exist")
			return
		}
		s.logger.Printf("update movie error: %v", err)
		s.renderMovieForm(w, r, http.StatusInternalServerError, true, in.values, "Error updating movie. Please try again.")
		return
	}

	if newPoster != nil && existing.Poster != nil {
		s.removeFile(*existing.Poster)
	}
	for _, p := range removed {
		s.removeFile(p)
	}
	http.Redirect(w, r, "/movies", http.StatusSeeOther)
}

func (s *Server) handleDeleteMovie(w http.ResponseWriter, r *http.Request) {
	movie, err := s.repo.Movies.Delete(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			s.logger.Printf("delete movie error: %v", err)
		}
		http.Redirect(w, r, "/movies", http.StatusFound)
		return
	}
	if movie.Poster != nil {
		s.removeFile(*movie.Poster)
	}
	for _, p := range movie.Gallery {
		s.removeFile(p)
	}
	http.Redirect(w, r, "/movies", http.StatusFound)
}

// buildMovieInput validates an add/edit form. The returned values are always filled so
// the form can be re-rendered with what the user typed.
func buildMovieInput(form *multipart.Form) (movieInput, error) {
	get := func(key string) string {
		if vals := form.Value[key]; len(vals) > 0 {
			return strings.TrimSpace(vals[0])
		}
		return ""
	}

	in := movieInput{
		values: movieFormValues{
			Title:       get("title"),
			Description: get("description"),
			ReleaseDate: get("releaseDate"),
			TrailerURL:  get("trailerUrl"),
			ActorIDs:    uniqueNonEmpty(form.Value["actors"]),
		},
		genres:        splitGenres(form.Value["genre"]),
		removeGallery: uniqueNonEmpty(form.Value["removeGallery"]),
	}
	in.values.Genre = strings.Join(in.genres, ", ")
	if director := get("director"); director != "" {
		in.values.DirectorID = &director
	}
	_, in.trailerSet = form.Value["trailerUrl"]

	if in.values.Title == "" || in.values.Description == "" || in.values.ReleaseDate == "" {
		return in, formError("Title, description, and release date are required")
	}
	releaseDate, err := time.Parse("2006-01-02", in.values.ReleaseDate)
	if err != nil {
		return in, formError("Release date must follow YYYY-MM-DD format")
	}
	in.releaseDate = releaseDate

	if in.values.TrailerURL != "" {
		embed, err := trailer.EmbedURL(in.values.TrailerURL)
		if err != nil {
			return in, formError("Invalid YouTube URL")
		}
		in.trailer = &embed
	}

	if files := form.File["poster"]; len(files) > 0 {
		if len(files) > 1 {
			return in, formError("Only one poster image can be uploaded")
		}
		in.poster = files[0]
	}
	in.gallery = form.File["gallery"]
	if len(in.gallery) > maxGalleryUploads {
		return in, formError(fmt.Sprintf("At most %d gallery images can be uploaded at once", maxGalleryUploads))
	}
	return in, nil
}

// splitGenres accepts repeated genre fields and comma separated lists.
func splitGenres(values []string) []string {
	parts := make([]string, 0)
	for _, v := range values {
		parts = append(parts, strings.Split(v, ",")...)
	}
	return uniqueNonEmpty(parts)
}

func uniqueNonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// splitGallery partitions the current gallery into the images to keep and the ones the
// user asked to remove. Paths not in the gallery are ignored.
func splitGallery(current, remove []string) (kept, removed []string) {
	drop := make(map[string]struct{}, len(remove))
	for _, p := range remove {
		drop[p] = struct{}{}
	}
	kept = make([]string, 0, len(current))
	for _, p := range current {
		if _, ok := drop[p]; ok {
			removed = append(removed, p)
			continue
		}
		kept = append(kept, p)
	}
	return kept, removed
}

func formValuesFromMovie(m domain.Movie) movieFormValues {
	values := movieFormValues{
		ID:          m.ID,
		Title:       m.Title,
		Description: m.Description,
		Genre:       strings.Join(m.Genres, ", "),
		ReleaseDate: m.ReleaseDate.Format("2006-01-02"),
		DirectorID:  m.DirectorID,
		ActorIDs:    m.ActorIDs,
		Poster:      m.Poster,
		Gallery:     m.Gallery,
	}
	if m.TrailerURL != nil {
		values.TrailerURL = *m.TrailerURL
	}
	return values
}

// parseUploadForm reads multipart forms and falls back to urlencoded bodies without files.
func (s *Server) parseUploadForm(w http.ResponseWriter, r *http.Request) (*multipart.Form, error) {
	limit := s.uploads.MaxBytes()*(maxGalleryUploads+1) + maxRequestBody
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	err := r.ParseMultipartForm(multipartMemory)
	if errors.Is(err, http.ErrNotMultipart) {
		if err := r.ParseForm(); err != nil {
			return nil, err
		}
		return &multipart.Form{Value: r.PostForm, File: map[string][]*multipart.FileHeader{}}, nil
	}
	if err != nil {
		return nil, err
	}
	return r.MultipartForm, nil
}

func (s *Server) saveMovieImages(in movieInput) (*string, []string, error) {
	var poster *string
	if in.poster != nil {
		p, err := s.uploads.Save(upload.Movies, in.poster)
		if err != nil {
			return nil, nil, err
		}
		poster = &p
	}
	gallery, err := s.uploads.SaveAll(upload.Movies, in.gallery)
	if err != nil {
		s.uploads.RemoveAll(derefAll(poster))
		return nil, nil, err
	}
	return poster, gallery, nil
}

func (s *Server) uploadErrorMessage(err error) string {
	var maxBytesError *http.MaxBytesError
	switch {
	case errors.Is(err, upload.ErrTooLarge), errors.As(err, &maxBytesError), errors.Is(err, multipart.ErrMessageTooLarge):
		return fmt.Sprintf("File size too large. Maximum size is %dMB.", s.uploads.MaxBytes()>>20)
	case errors.Is(err, upload.ErrUnsupportedType):
		return "Only image files are allowed (jpeg, jpg, png, gif, webp)"
	default:
		s.logger.Printf("upload error: %v", err)
		return "Error uploading file. Please try again."
	}
}

func (s *Server) removeFile(publicPath string) {
	if err := s.uploads.Remove(publicPath); err != nil {
		s.logger.Printf("remove upload %s: %v", publicPath, err)
	}
}

func derefAll(p *string) []string {
	if p == nil {
		return nil
	}
	return []string{*p}
}
