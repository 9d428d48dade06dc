package domain

import "time"

// PersonKind distinguishes the two cast tables.
type PersonKind string

const (
	KindActor    PersonKind = "actor"
	KindDirector PersonKind = "director"
)

// Plural returns the collection name used in routes, tables and upload folders.
func (k PersonKind) Plural() string {
	if k == KindDirector {
		return "directors"
	}
	return "actors"
}

// Person is an actor or director.
type Person struct {
	ID        string
	Kind      PersonKind
	Name      string
	Age       *int
	Photo     *string
	Bio       string
	Movies    []MovieRef
	CreatedAt time.Time
	UpdatedAt time.Time
}
