package httpserver

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/Clark-Hu/movie-catalog/internal/auth"
	"github.com/Clark-Hu/movie-catalog/internal/domain"
	"github.com/Clark-Hu/movie-catalog/internal/repository"
)

const sessionCookie = "token"

type sessionKey struct{}

type session struct {
	User   domain.User
	Claims *auth.Claims
}

func sessionFrom(ctx context.Context) (session, bool) {
	sess, ok := ctx.Value(sessionKey{}).(session)
	return sess, ok
}

// currentUser returns the signed-in user or nil outside authenticated routes.
func currentUser(r *http.Request) *domain.User {
	sess, ok := sessionFrom(r.Context())
	if !ok {
		return nil
	}
	user := sess.User
	return &user
}

// loadSession resolves the session cookie to a live user. Revocation lookups that fail
// are logged and treated as not revoked.
func (s *Server) loadSession(r *http.Request) (session, bool) {
	cookie, err := r.Cookie(sessionCookie)
	if err != nil || cookie.Value == "" {
		return session{}, false
	}
	claims, err := s.issuer.Parse(cookie.Value)
	if err != nil {
		return session{}, false
	}
	revoked, err := s.revocations.IsRevoked(r.Context(), claims.ID)
	if err != nil {
		s.logger.Printf("session: revocation check failed: %v", err)
	}
	if revoked {
		return session{}, false
	}
	user, err := s.repo.Users.GetByID(r.Context(), claims.Subject)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			s.logger.Printf("session: load user failed: %v", err)
		}
		return session{}, false
	}
	return session{User: user, Claims: claims}, true
}

func (s *Server) setSessionCookie(w http.ResponseWriter, token auth.Token) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    token.Raw,
		Path:     "/",
		MaxAge:   int(s.issuer.TTL().Seconds()),
		Expires:  token.ExpiresAt,
		HttpOnly: true,
		Secure:   s.cfg.CookieSecure,
		SameSite: http.SameSiteStrictMode,
	})
}

func (s *Server) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.cfg.CookieSecure,
		SameSite: http.SameSiteStrictMode,
	})
}

func isAPIRequest(r *http.Request) bool {
	return strings.HasPrefix(r.URL.Path, "/api/")
}

// authenticate requires a valid session. Pages redirect to /login; API calls get 401.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, ok := s.loadSession(r)
		if !ok {
			s.clearSessionCookie(w)
			if isAPIRequest(r) {
				s.respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Missing or invalid authentication information")
				return
			}
			http.Redirect(w, r, "/login", http.StatusFound)
			return
		}
		ctx := context.WithValue(r.Context(), sessionKey{}, sess)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireAdmin must run after authenticate.
func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := currentUser(r)
		if user == nil {
			http.Redirect(w, r, "/login", http.StatusFound)
			return
		}
		if !user.IsAdmin() {
			if isAPIRequest(r) {
				s.respondError(w, http.StatusForbidden, "FORBIDDEN", "Admin access required")
				return
			}
			s.renderError(w, user, http.StatusForbidden, "Access Denied", "You do not have permission to access this page.")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// redirectIfAuthenticated sends signed-in users away from the login and signup pages.
func (s *Server) redirectIfAuthenticated(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := s.loadSession(r); ok {
			http.Redirect(w, r, "/movies", http.StatusFound)
			return
		}
		next.ServeHTTP(w, r)
	})
}
