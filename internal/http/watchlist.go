package httpserver

import (
	"errors"
	"net/http"
	"strings"

	"github.com/Clark-Hu/movie-catalog/internal/domain"
	"github.com/Clark-Hu/movie-catalog/internal/repository"
)

type toggleWatchlistRequest struct {
	MovieID string `json:"movieId"`
}

type toggleWatchlistResponse struct {
	Success     bool `json:"success"`
	InWatchlist bool `json:"inWatchlist"`
}

type watchlistPage struct {
	viewBase
	Movies []domain.MovieSummary
}

func (s *Server) handleToggleWatchlist(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	var req toggleWatchlistRequest
	if isJSONRequest(r) {
		if err := decodeJSONBody(w, r, &req); err != nil {
			s.respondDecodeError(w, err)
			return
		}
	} else {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
		if err := r.ParseForm(); err != nil {
			s.respondDecodeError(w, err)
			return
		}
		req.MovieID = r.PostForm.Get("movieId")
	}

	movieID := strings.TrimSpace(req.MovieID)
	if movieID == "" {
		s.respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Movie ID is required")
		return
	}

	inWatchlist, err := s.repo.Watchlist.Toggle(r.Context(), user.ID, movieID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "NOT_FOUND", "Movie not found")
			return
		}
		s.logger.Printf("toggle watchlist error: %v", err)
		s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Error updating watchlist")
		return
	}
	s.respondJSON(w, http.StatusOK, toggleWatchlistResponse{Success: true, InWatchlist: inWatchlist})
}

func (s *Server) handleWatchlist(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	page := watchlistPage{viewBase: viewBase{User: user}}

	movies, err := s.repo.Watchlist.Movies(r.Context(), user.ID)
	if err == nil {
		page.Movies, err = s.summarize(r.Context(), movies)
	}
	if err != nil {
		s.logger.Printf("watchlist error: %v", err)
		s.renderError(w, user, http.StatusInternalServerError, "Error", "Error fetching your watchlist")
		return
	}
	s.render(w, http.StatusOK, "watchlist", page)
}
