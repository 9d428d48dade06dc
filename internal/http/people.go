package httpserver

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/Clark-Hu/movie-catalog/internal/domain"
	"github.com/Clark-Hu/movie-catalog/internal/repository"
	"github.com/Clark-Hu/movie-catalog/internal/upload"
)

// peopleLabels carries the wording shared by the actor and director pages.
type peopleLabels struct {
	Kind     domain.PersonKind
	Singular string
	Plural   string
	Path     string
}

func labelsFor(kind domain.PersonKind) peopleLabels {
	if kind == domain.KindDirector {
		return peopleLabels{Kind: kind, Singular: "Director", Plural: "Directors", Path: "/directors"}
	}
	return peopleLabels{Kind: kind, Singular: "Actor", Plural: "Actors", Path: "/actors"}
}

type peopleListPage struct {
	viewBase
	Labels peopleLabels
	People []domain.Person
}

type personDetailPage struct {
	viewBase
	Labels peopleLabels
	Person domain.Person
}

type personFormPage struct {
	viewBase
	Labels peopleLabels
	Name   string
	Age    string
	Bio    string
}

func (s *Server) handleListPeople(people *repository.PeopleRepository) http.HandlerFunc {
	labels := labelsFor(people.Kind())
	return func(w http.ResponseWriter, r *http.Request) {
		user := currentUser(r)
		list, err := people.List(r.Context())
		if err != nil {
			s.logger.Printf("list %s error: %v", people.Kind().Plural(), err)
			s.renderError(w, user, http.StatusInternalServerError, "Error", "Error fetching "+strings.ToLower(labels.Plural))
			return
		}
		s.render(w, http.StatusOK, "people_list", peopleListPage{
			viewBase: viewBase{User: user},
			Labels:   labels,
			People:   list,
		})
	}
}

func (s *Server) handlePersonDetail(people *repository.PeopleRepository) http.HandlerFunc {
	labels := labelsFor(people.Kind())
	return func(w http.ResponseWriter, r *http.Request) {
		user := currentUser(r)
		person, err := people.GetByID(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				s.renderError(w, user, http.StatusNotFound, labels.Singular+" Not Found", "The "+strings.ToLower(labels.Singular)+" you are looking for does not exist.")
				return
			}
			s.logger.Printf("fetch %s error: %v", people.Kind(), err)
			s.renderError(w, user, http.StatusInternalServerError, "Error", "Error fetching "+strings.ToLower(labels.Singular)+" details")
			return
		}
		s.render(w, http.StatusOK, "people_detail", personDetailPage{
			viewBase: viewBase{User: user},
			Labels:   labels,
			Person:   person,
		})
	}
}

func (s *Server) handleAddPersonForm(people *repository.PeopleRepository) http.HandlerFunc {
	labels := labelsFor(people.Kind())
	return func(w http.ResponseWriter, r *http.Request) {
		s.render(w, http.StatusOK, "people_form", personFormPage{
			viewBase: viewBase{User: currentUser(r)},
			Labels:   labels,
		})
	}
}

func (s *Server) handleCreatePerson(people *repository.PeopleRepository) http.HandlerFunc {
	labels := labelsFor(people.Kind())
	category := upload.Category(people.Kind().Plural())
	return func(w http.ResponseWriter, r *http.Request) {
		page := personFormPage{viewBase: viewBase{User: currentUser(r)}, Labels: labels}
		fail := func(status int, message string) {
			page.Error = message
			s.render(w, status, "people_form", page)
		}

		form, err := s.parseUploadForm(w, r)
		if err != nil {
			fail(http.StatusBadRequest, s.uploadErrorMessage(err))
			return
		}
		value := func(key string) string {
			if vals := form.Value[key]; len(vals) > 0 {
				return strings.TrimSpace(vals[0])
			}
			return ""
		}
		page.Name, page.Age, page.Bio = value("name"), value("age"), value("bio")

		if page.Name == "" {
			fail(http.StatusBadRequest, "Name is required")
			return
		}
		age, err := parseAge(page.Age)
		if err != nil {
			fail(http.StatusBadRequest, err.Error())
			return
		}

		var photo *string
		if files := form.File["photo"]; len(files) > 0 {
			saved, err := s.uploads.Save(category, files[0])
			if err != nil {
				fail(http.StatusBadRequest, s.uploadErrorMessage(err))
				return
			}
			photo = &saved
		}

		if _, err := people.Create(r.Context(), repository.PersonParams{
			Name:  page.Name,
			Age:   age,
			Photo: photo,
			Bio:   page.Bio,
		}); err != nil {
			s.uploads.RemoveAll(derefAll(photo))
			s.logger.Printf("create %s error: %v", people.Kind(), err)
			fail(http.StatusInternalServerError, "Error creating "+strings.ToLower(labels.Singular)+". Please try again.")
			return
		}
		http.Redirect(w, r, labels.Path, http.StatusSeeOther)
	}
}

// parseAge reads an optional non-negative whole number.
func parseAge(raw string) (*int, error) {
	if raw == "" {
		return nil, nil
	}
	age, err := strconv.Atoi(raw)
	if err != nil || age < 0 {
		return nil, formError("Age must be a non-negative whole number")
	}
	return &age, nil
}
