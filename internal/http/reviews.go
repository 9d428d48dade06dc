package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"

	"github.com/Clark-Hu/movie-catalog/internal/domain"
	"github.com/Clark-Hu/movie-catalog/internal/events"
	"github.com/Clark-Hu/movie-catalog/internal/repository"
)

type submitReviewRequest struct {
	MovieID string      `json:"movieId"`
	Rating  json.Number `json:"rating"`
	Review  string      `json:"review"`
}

type reviewResponse struct {
	ID        string    `json:"id"`
	MovieID   string    `json:"movieId"`
	UserID    string    `json:"userId"`
	Username  string    `json:"username"`
	Rating    int       `json:"rating"`
	Review    string    `json:"review"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type submitReviewResponse struct {
	Success bool           `json:"success"`
	Review  reviewResponse `json:"review"`
}

func toReviewResponse(r domain.Review) reviewResponse {
	return reviewResponse{
		ID:        r.ID,
		MovieID:   r.MovieID,
		UserID:    r.UserID,
		Username:  r.Username,
		Rating:    r.Rating,
		Review:    r.Body,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

// parseReviewRating accepts whole numbers on the review scale only.
func parseReviewRating(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, formError("Movie ID and rating are required")
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < domain.MinReviewRating || value > domain.MaxReviewRating {
		return 0, formError(fmt.Sprintf("Rating must be a whole number between %d and %d", domain.MinReviewRating, domain.MaxReviewRating))
	}
	return value, nil
}

// readSubmitReview accepts the review as JSON or as an urlencoded form.
func (s *Server) readSubmitReview(w http.ResponseWriter, r *http.Request) (submitReviewRequest, bool) {
	var req submitReviewRequest
	if isJSONRequest(r) {
		if err := decodeJSONBody(w, r, &req); err != nil {
			s.respondDecodeError(w, err)
			return req, false
		}
		return req, true
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := r.ParseForm(); err != nil {
		s.respondDecodeError(w, err)
		return req, false
	}
	req.MovieID = r.PostForm.Get("movieId")
	req.Rating = json.Number(r.PostForm.Get("rating"))
	req.Review = r.PostForm.Get("review")
	return req, true
}

func (s *Server) handleSubmitReview(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	req, ok := s.readSubmitReview(w, r)
	if !ok {
		return
	}

	movieID := strings.TrimSpace(req.MovieID)
	if movieID == "" {
		s.respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Movie ID and rating are required")
		return
	}
	value, err := parseReviewRating(req.Rating.String())
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}
	body := strings.TrimSpace(req.Review)
	if utf8.RuneCountInString(body) > domain.MaxReviewLength {
		s.respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", fmt.Sprintf("Review cannot exceed %d characters", domain.MaxReviewLength))
		return
	}

	review, inserted, err := s.repo.Reviews.Upsert(r.Context(), repository.ReviewUpsertParams{
		MovieID: movieID,
		UserID:  user.ID,
		Rating:  value,
		Body:    body,
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "NOT_FOUND", "Movie not found")
			return
		}
		s.logger.Printf("submit review error: %v", err)
		s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Error submitting review")
		return
	}

	s.recalc.Refresh(r.Context(), movieID)
	_ = s.events.Publish(r.Context(), events.NewReviewEvent(events.ReviewUpserted, review))

	status := http.StatusOK
	if inserted {
		status = http.StatusCreated
	}
	s.respondJSON(w, status, submitReviewResponse{Success: true, Review: toReviewResponse(review)})
}

func (s *Server) handleListReviews(w http.ResponseWriter, r *http.Request) {
	reviews, err := s.repo.Reviews.ListActive(r.Context(), chi.URLParam(r, "movieId"))
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		s.logger.Printf("list reviews error: %v", err)
		s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Error fetching reviews")
		return
	}
	resp := make([]reviewResponse, 0, len(reviews))
	for _, review := range reviews {
		resp = append(resp, toReviewResponse(review))
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDeleteReview(w http.ResponseWriter, r *http.Request) {
	review, err := s.repo.Reviews.SoftDelete(r.Context(), chi.URLParam(r, "reviewId"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "NOT_FOUND", "Review not found")
			return
		}
		s.logger.Printf("delete review error: %v", err)
		s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Error deleting review")
		return
	}

	s.recalc.Refresh(r.Context(), review.MovieID)
	_ = s.events.Publish(r.Context(), events.NewReviewEvent(events.ReviewDeleted, review))
	s.respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}
