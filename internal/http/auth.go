package httpserver

import (
	"errors"
	"net/http"
	"strings"

	"github.com/Clark-Hu/movie-catalog/internal/auth"
	"github.com/Clark-Hu/movie-catalog/internal/domain"
	"github.com/Clark-Hu/movie-catalog/internal/repository"
)

type loginPage struct {
	viewBase
	Email string
}

type signupPage struct {
	viewBase
	Username string
	Email    string
}

type profilePage struct {
	viewBase
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.loadSession(r); ok {
		http.Redirect(w, r, "/movies", http.StatusFound)
		return
	}
	s.render(w, http.StatusOK, "index", viewBase{})
}

func (s *Server) handleLoginForm(w http.ResponseWriter, r *http.Request) {
	s.render(w, http.StatusOK, "login", loginPage{})
}

func (s *Server) handleSignupForm(w http.ResponseWriter, r *http.Request) {
	s.render(w, http.StatusOK, "signup", signupPage{})
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := r.ParseForm(); err != nil {
		s.render(w, http.StatusBadRequest, "signup", signupPage{viewBase: viewBase{Error: "Unable to read the form"}})
		return
	}
	page := signupPage{
		Username: strings.TrimSpace(r.PostForm.Get("username")),
		Email:    strings.TrimSpace(r.PostForm.Get("email")),
	}
	password := r.PostForm.Get("password")

	if page.Username == "" || page.Email == "" || password == "" {
		page.Error = "All fields are required"
		s.render(w, http.StatusBadRequest, "signup", page)
		return
	}
	if len(password) < auth.MinPasswordLength {
		page.Error = "Password must be at least 6 characters long"
		s.render(w, http.StatusBadRequest, "signup", page)
		return
	}

	hash, err := auth.HashPassword(password, s.cfg.BcryptCost)
	if err != nil {
		s.logger.Printf("signup hash error: %v", err)
		page.Error = "An error occurred during signup. Please try again."
		s.render(w, http.StatusInternalServerError, "signup", page)
		return
	}
	user, err := s.repo.Users.Create(r.Context(), repository.UserCreateParams{
		Username:     page.Username,
		Email:        page.Email,
		PasswordHash: hash,
		Role:         domain.RoleUser,
	})
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			page.Error = "User with this email or username already exists"
			s.render(w, http.StatusBadRequest, "signup", page)
			return
		}
		s.logger.Printf("signup create user error: %v", err)
		page.Error = "An error occurred during signup. Please try again."
		s.render(w, http.StatusInternalServerError, "signup", page)
		return
	}

	if !s.startSession(w, user) {
		page.Error = "An error occurred during signup. Please try again."
		s.render(w, http.StatusInternalServerError, "signup", page)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := r.ParseForm(); err != nil {
		s.render(w, http.StatusBadRequest, "login", loginPage{viewBase: viewBase{Error: "Unable to read the form"}})
		return
	}
	page := loginPage{Email: strings.TrimSpace(r.PostForm.Get("email"))}
	password := r.PostForm.Get("password")

	if page.Email == "" || password == "" {
		page.Error = "Email and password are required"
		s.render(w, http.StatusBadRequest, "login", page)
		return
	}

	user, err := s.repo.Users.GetByEmail(r.Context(), page.Email)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		s.logger.Printf("login lookup error: %v", err)
		page.Error = "An error occurred during login. Please try again."
		s.render(w, http.StatusInternalServerError, "login", page)
		return
	}
	if err != nil || !auth.CheckPassword(user.PasswordHash, password) {
		page.Error = "Invalid email or password"
		s.render(w, http.StatusUnauthorized, "login", page)
		return
	}

	if !s.startSession(w, user) {
		page.Error = "An error occurred during login. Please try again."
		s.render(w, http.StatusInternalServerError, "login", page)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) startSession(w http.ResponseWriter, user domain.User) bool {
	token, err := s.issuer.Issue(user)
	if err != nil {
		s.logger.Printf("issue session token error: %v", err)
		return false
	}
	s.setSessionCookie(w, token)
	return true
}

// handleLogout revokes the presented token, if any, before clearing the cookie.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(sessionCookie); err == nil && cookie.Value != "" {
		if claims, err := s.issuer.Parse(cookie.Value); err == nil && claims.ExpiresAt != nil {
			if err := s.revocations.Revoke(r.Context(), claims.ID, claims.ExpiresAt.Time); err != nil {
				s.logger.Printf("logout revoke error: %v", err)
			}
		}
	}
	s.clearSessionCookie(w)
	http.Redirect(w, r, "/login", http.StatusFound)
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	s.render(w, http.StatusOK, "profile", profilePage{viewBase: viewBase{User: currentUser(r)}})
}
