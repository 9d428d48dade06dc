package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/Clark-Hu/movie-catalog/internal/domain"
	"github.com/Clark-Hu/movie-catalog/internal/events"
)

func TestHandleSubmitReview_Validation(t *testing.T) {
	srv := buildTestServer(t)
	_, cookie := signIn(t, srv, "rita", domain.RoleUser)
	movie := createMovie(t, srv, "Alien", "Horror")

	cases := []struct {
		name string
		body string
		want int
	}{
		{"fractional rating", `{"movieId":"` + movie.ID + `","rating":4.5}`, http.StatusBadRequest},
		{"rating too high", `{"movieId":"` + movie.ID + `","rating":6}`, http.StatusBadRequest},
		{"rating too low", `{"movieId":"` + movie.ID + `","rating":"0"}`, http.StatusBadRequest},
		{"missing movie", `{"rating":4}`, http.StatusBadRequest},
		{"missing rating", `{"movieId":"` + movie.ID + `"}`, http.StatusBadRequest},
		{"malformed json", `{"movieId":`, http.StatusBadRequest},
		{"too long", `{"movieId":"` + movie.ID + `","rating":4,"review":"` + strings.Repeat("é", domain.MaxReviewLength+1) + `"}`, http.StatusBadRequest},
		{"unknown movie", `{"movieId":"` + uuid.NewString() + `","rating":4}`, http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := serve(srv, jsonRequest(http.MethodPost, "/api/reviews", tc.body), cookie)
			if rec.Code != tc.want {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tc.want, rec.Body.String())
			}
		})
	}
}

func TestHandleSubmitReview_UpsertRefreshesRating(t *testing.T) {
	srv := buildTestServer(t)
	ctx := context.Background()
	user, cookie := signIn(t, srv, "sam", domain.RoleUser)
	_, other := signIn(t, srv, "tess", domain.RoleUser)
	movie := createMovie(t, srv, "Arrival", "Sci-Fi")

	rec := serve(srv, jsonRequest(http.MethodPost, "/api/reviews", `{"movieId":"`+movie.ID+`","rating":5,"review":"Great"}`), cookie)
	if rec.Code != http.StatusCreated {
		t.Fatalf("first submit = %d: %s", rec.Code, rec.Body.String())
	}
	var resp submitReviewResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Success || resp.Review.UserID != user.ID || resp.Review.Username != "sam" || resp.Review.Rating != 5 {
		t.Fatalf("response = %+v", resp)
	}
	if got, _ := srv.repo.Movies.GetByID(ctx, movie.ID); got.Rating != 10 {
		t.Fatalf("rating after first review = %v, want 10", got.Rating)
	}

	rec = serve(srv, jsonRequest(http.MethodPost, "/api/reviews", `{"movieId":"`+movie.ID+`","rating":"3","review":"Second look"}`), cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("overwrite = %d", rec.Code)
	}
	if got, _ := srv.repo.Movies.GetByID(ctx, movie.ID); got.Rating != 6 {
		t.Fatalf("rating after overwrite = %v, want 6", got.Rating)
	}

	form := url.Values{"movieId": {movie.ID}, "rating": {"4"}}
	rec = serve(srv, formRequest(http.MethodPost, "/api/reviews", form), other)
	if rec.Code != http.StatusCreated {
		t.Fatalf("form submit = %d", rec.Code)
	}
	if got, _ := srv.repo.Movies.GetByID(ctx, movie.ID); got.Rating != 7 {
		t.Fatalf("rating after second reviewer = %v, want 7", got.Rating)
	}

	reviews, err := srv.repo.Reviews.ListActive(ctx, movie.ID)
	if err != nil || len(reviews) != 2 {
		t.Fatalf("active reviews = %d, %v", len(reviews), err)
	}

	recorded := srv.events.(*events.Recorder).Events()
	if len(recorded) != 3 {
		t.Fatalf("events = %d, want 3", len(recorded))
	}
	for _, e := range recorded {
		if e.Type != events.ReviewUpserted || e.MovieID != movie.ID {
			t.Fatalf("event = %+v", e)
		}
	}
}

func TestHandleListReviews(t *testing.T) {
	srv := buildTestServer(t)
	_, cookie := signIn(t, srv, "uma", domain.RoleUser)
	movie := createMovie(t, srv, "Brazil", "Comedy")
	serve(srv, jsonRequest(http.MethodPost, "/api/reviews", `{"movieId":"`+movie.ID+`","rating":4,"review":"Odd"}`), cookie)

	rec := serve(srv, httptest.NewRequest(http.MethodGet, "/api/reviews/"+movie.ID, nil), cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var reviews []reviewResponse
	if err := json.NewDecoder(rec.Body).Decode(&reviews); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(reviews) != 1 || reviews[0].Username != "uma" || reviews[0].Review != "Odd" {
		t.Fatalf("reviews = %+v", reviews)
	}

	rec = serve(srv, httptest.NewRequest(http.MethodGet, "/api/reviews/not-a-uuid", nil), cookie)
	if rec.Code != http.StatusOK || strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Fatalf("unknown movie = %d %s", rec.Code, rec.Body.String())
	}
}

func TestHandleDeleteReview(t *testing.T) {
	srv := buildTestServer(t)
	ctx := context.Background()
	_, userCookie := signIn(t, srv, "vic", domain.RoleUser)
	_, otherCookie := signIn(t, srv, "wes", domain.RoleUser)
	_, adminCookie := signIn(t, srv, "admin", domain.RoleAdmin)
	movie := createMovie(t, srv, "Casablanca", "Drama")

	serve(srv, jsonRequest(http.MethodPost, "/api/reviews", `{"movieId":"`+movie.ID+`","rating":5}`), userCookie)
	rec := serve(srv, jsonRequest(http.MethodPost, "/api/reviews", `{"movieId":"`+movie.ID+`","rating":1}`), otherCookie)
	var resp submitReviewResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got, _ := srv.repo.Movies.GetByID(ctx, movie.ID); got.Rating != 6 {
		t.Fatalf("rating = %v, want 6", got.Rating)
	}

	rec = serve(srv, httptest.NewRequest(http.MethodDelete, "/api/reviews/"+resp.Review.ID, nil), userCookie)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("non-admin delete = %d, want 403", rec.Code)
	}

	rec = serve(srv, httptest.NewRequest(http.MethodDelete, "/api/reviews/"+resp.Review.ID, nil), adminCookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("admin delete = %d", rec.Code)
	}
	if got, _ := srv.repo.Movies.GetByID(ctx, movie.ID); got.Rating != 10 {
		t.Fatalf("rating after delete = %v, want 10", got.Rating)
	}

	rec = serve(srv, httptest.NewRequest(http.MethodDelete, "/api/reviews/"+uuid.NewString(), nil), adminCookie)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown review = %d, want 404", rec.Code)
	}

	recorded := srv.events.(*events.Recorder).Events()
	last := recorded[len(recorded)-1]
	if last.Type != events.ReviewDeleted || last.ReviewID != resp.Review.ID {
		t.Fatalf("last event = %+v", last)
	}

	// Re-submitting revives the deleted review.
	rec = serve(srv, jsonRequest(http.MethodPost, "/api/reviews", `{"movieId":"`+movie.ID+`","rating":2}`), otherCookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("revive = %d", rec.Code)
	}
	if got, _ := srv.repo.Movies.GetByID(ctx, movie.ID); got.Rating != 7 {
		t.Fatalf("rating after revive = %v, want 7", got.Rating)
	}
}
