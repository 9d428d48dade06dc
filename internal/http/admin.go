package httpserver

import (
	"context"
	"fmt"
	"net/http"

	"github.com/Clark-Hu/movie-catalog/internal/domain"
	"github.com/Clark-Hu/movie-catalog/internal/rating"
)

const (
	dashboardMostReviewed = 5
	dashboardTrending     = 10
	dashboardRecent       = 10
)

type dashboardPage struct {
	viewBase
	Totals          domain.DashboardTotals
	AverageRating   float64
	MostReviewed    []domain.ReviewedMovie
	Trending        []domain.MovieSummary
	Recent          []domain.MovieSummary
	MoviesPerMonth  []domain.MonthlyCount
	ReviewsPerMonth []domain.MonthlyCount
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	page, err := s.loadDashboard(r.Context())
	if err != nil {
		s.logger.Printf("dashboard error: %v", err)
		s.renderError(w, user, http.StatusInternalServerError, "Error", "Error loading dashboard")
		return
	}
	page.User = user
	s.render(w, http.StatusOK, "admin_dashboard", page)
}

func (s *Server) loadDashboard(ctx context.Context) (dashboardPage, error) {
	var (
		page dashboardPage
		err  error
	)
	if page.Totals, err = s.repo.Stats.Totals(ctx); err != nil {
		return page, err
	}

	ratings, err := s.repo.Stats.LiveRatings(ctx)
	if err != nil {
		return page, fmt.Errorf("live ratings: %w", err)
	}
	page.AverageRating = rating.AverageRating(ratings)

	if page.MostReviewed, err = s.repo.Stats.MostReviewed(ctx, dashboardMostReviewed); err != nil {
		return page, fmt.Errorf("most reviewed: %w", err)
	}

	movies, err := s.repo.Movies.All(ctx)
	if err != nil {
		return page, fmt.Errorf("all movies: %w", err)
	}
	summaries, err := s.summarize(ctx, movies)
	if err != nil {
		return page, fmt.Errorf("movie summaries: %w", err)
	}
	page.Trending = rating.TopTrending(summaries, dashboardTrending)

	recent, err := s.repo.Movies.Recent(ctx, dashboardRecent)
	if err != nil {
		return page, fmt.Errorf("recent movies: %w", err)
	}
	if page.Recent, err = s.summarize(ctx, recent); err != nil {
		return page, fmt.Errorf("recent summaries: %w", err)
	}

	if page.MoviesPerMonth, err = s.repo.Stats.MoviesPerMonth(ctx); err != nil {
		return page, fmt.Errorf("movies per month: %w", err)
	}
	if page.ReviewsPerMonth, err = s.repo.Stats.ReviewsPerMonth(ctx); err != nil {
		return page, fmt.Errorf("reviews per month: %w", err)
	}
	return page, nil
}
