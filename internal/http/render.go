package httpserver

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Clark-Hu/movie-catalog/internal/domain"
)

const maxRequestBody = 1 << 20 // 1 MiB

//go:embed templates/*.html
var templateFS embed.FS

var pageNames = []string{
	"index",
	"login",
	"signup",
	"profile",
	"error",
	"movies_list",
	"movies_detail",
	"movies_form",
	"watchlist",
	"people_list",
	"people_detail",
	"people_form",
	"admin_dashboard",
}

var templateFuncs = template.FuncMap{
	"add": func(a, b int) int { return a + b },
	"isoDate": func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return t.Format("2006-01-02")
	},
	"longDate": func(t time.Time) string { return t.Format("Jan 2, 2006") },
	"year":     func(t time.Time) int { return t.Year() },
	"fixed1":   func(v float64) string { return fmt.Sprintf("%.1f", v) },
	"fixed2":   func(v float64) string { return fmt.Sprintf("%.2f", v) },
	"join":     strings.Join,
	"deref": func(p *string) string {
		if p == nil {
			return ""
		}
		return *p
	},
	"isSelected": func(p *string, id string) bool { return p != nil && *p == id },
	"contains": func(values []string, v string) bool {
		for _, item := range values {
			if item == v {
				return true
			}
		}
		return false
	},
}

var pages = mustParsePages()

func mustParsePages() map[string]*template.Template {
	out := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		tmpl, err := template.New("").Funcs(templateFuncs).ParseFS(templateFS, "templates/base.html", "templates/"+name+".html")
		if err != nil {
			panic(fmt.Sprintf("parse template %s: %v", name, err))
		}
		out[name] = tmpl
	}
	return out
}

// viewBase is embedded in every page model.
type viewBase struct {
	User  *domain.User
	Error string
}

type errorPage struct {
	viewBase
	Title   string
	Message string
}

// render executes a page into a buffer first so template failures never emit a half page.
func (s *Server) render(w http.ResponseWriter, status int, page string, data interface{}) {
	tmpl, ok := pages[page]
	if !ok {
		s.logger.Printf("render: unknown page %s", page)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "base", data); err != nil {
		s.logger.Printf("render %s: %v", page, err)
		if page != "error" {
			s.renderError(w, nil, http.StatusInternalServerError, "Error", "Something went wrong while displaying the page.")
			return
		}
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func (s *Server) renderError(w http.ResponseWriter, user *domain.User, status int, title, message string) {
	s.render(w, status, "error", errorPage{
		viewBase: viewBase{User: user},
		Title:    title,
		Message:  message,
	})
}

type errorResponse struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	return nil
}

func isJSONRequest(r *http.Request) bool {
	return strings.HasPrefix(strings.ToLower(r.Header.Get("Content-Type")), "application/json")
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			s.logger.Printf("failed to encode response: %v", err)
		}
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, code, message string) {
	s.respondJSON(w, status, errorResponse{
		Code:    code,
		Message: message,
	})
}

func (s *Server) respondDecodeError(w http.ResponseWriter, err error) {
	var syntaxError *json.SyntaxError
	var typeError *json.UnmarshalTypeError
	var maxBytesError *http.MaxBytesError
	switch {
	case errors.As(err, &syntaxError):
		s.respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Malformed JSON payload")
	case errors.As(err, &typeError):
		s.respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", fmt.Sprintf("Invalid value for field %s", typeError.Field))
	case errors.As(err, &maxBytesError):
		s.respondError(w, http.StatusRequestEntityTooLarge, "VALIDATION_ERROR", "Request body too large")
	case errors.Is(err, io.EOF):
		s.respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Request body cannot be empty")
	default:
		s.respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Unable to parse request body")
	}
}
