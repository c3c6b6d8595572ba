package movie

import (
	"context"
	"fmt"
	"net/url"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested movie does not exist.
var ErrNotFound = errors.New("movie not found")

// Field limits for movie input.
const (
	MaxTitleLen         = 80
	MinYear             = 1888
	MaxYear             = 2077
	MaxDescriptionLen   = 300
	MinDuration         = 1
	MaxDuration         = 300
	MaxContentRatingLen = 5
	MaxTags             = 50
)

// Movie is a catalog entry.
type Movie struct {
	ID            string
	Title         string
	Year          int
	Cover         string
	Description   string
	Duration      int
	ContentRating string
	Source        string
	Tags          []string
	Rating        decimal.Decimal
}

// Field names a movie attribute as it appears in requests.
type Field string

// Patchable fields.
const (
	FieldTitle         Field = "title"
	FieldYear          Field = "year"
	FieldCover         Field = "cover"
	FieldDescription   Field = "description"
	FieldDuration      Field = "duration"
	FieldContentRating Field = "contentRating"
	FieldSource        Field = "source"
	FieldTags          Field = "tags"
	FieldRating        Field = "rating"
)

// Patch is a partial update. Only the fields in Set are applied, so a field
// can be set to its zero value.
type Patch struct {
	Movie
	Set map[Field]bool
}

// Repository defines persistence operations for the catalog.
type Repository interface {
	// List returns movies having any of tags, or every movie when tags is
	// empty.
	List(ctx context.Context, tags []string) ([]Movie, error)
	GetByID(ctx context.Context, id string) (*Movie, error)
	Create(ctx context.Context, m *Movie) error
	// Update returns ErrNotFound when no movie has m.ID.
	Update(ctx context.Context, m *Movie) error
	// Delete returns ErrNotFound when no movie has id.
	Delete(ctx context.Context, id string) error
}

// ValidationError reports an invalid movie field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// Validate checks m against the catalog field limits. Every field except
// tags and rating is required.
func (m *Movie) Validate() error {
	if m.Title == "" {
		return &ValidationError{Field: "title", Reason: "is required"}
	}
	if len(m.Title) > MaxTitleLen {
		return &ValidationError{Field: "title", Reason: fmt.Sprintf("must be at most %d characters", MaxTitleLen)}
	}
	if m.Year < MinYear || m.Year > MaxYear {
		return &ValidationError{Field: "year", Reason: fmt.Sprintf("must be between %d and %d", MinYear, MaxYear)}
	}
	if err := validateURL("cover", m.Cover); err != nil {
		return err
	}
	if m.Description == "" {
		return &ValidationError{Field: "description", Reason: "is required"}
	}
	if len(m.Description) > MaxDescriptionLen {
		return &ValidationError{Field: "description", Reason: fmt.Sprintf("must be at most %d characters", MaxDescriptionLen)}
	}
	if m.Duration < MinDuration || m.Duration > MaxDuration {
		return &ValidationError{Field: "duration", Reason: fmt.Sprintf("must be between %d and %d", MinDuration, MaxDuration)}
	}
	if m.ContentRating == "" {
		return &ValidationError{Field: "contentRating", Reason: "is required"}
	}
	if len(m.ContentRating) > MaxContentRatingLen {
		return &ValidationError{Field: "contentRating", Reason: fmt.Sprintf("must be at most %d characters", MaxContentRatingLen)}
	}
	if err := validateURL("source", m.Source); err != nil {
		return err
	}
	if len(m.Tags) > MaxTags {
		return &ValidationError{Field: "tags", Reason: fmt.Sprintf("must have at most %d entries", MaxTags)}
	}
	if m.Rating.IsNegative() || m.Rating.GreaterThan(decimal.NewFromInt(10)) {
		return &ValidationError{Field: "rating", Reason: "must be between 0 and 10"}
	}
	return nil
}

func validateURL(field, value string) error {
	if value == "" {
		return &ValidationError{Field: field, Reason: "is required"}
	}
	u, err := url.Parse(value)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return &ValidationError{Field: field, Reason: "must be an absolute URL"}
	}
	return nil
}

// Merge returns current with the fields set in p applied.
func Merge(current Movie, p Patch) Movie {
	for f := range p.Set {
		switch f {
		case FieldTitle:
			current.Title = p.Title
		case FieldYear:
			current.Year = p.Year
		case FieldCover:
			current.Cover = p.Cover
		case FieldDescription:
			current.Description = p.Description
		case FieldDuration:
			current.Duration = p.Duration
		case FieldContentRating:
			current.ContentRating = p.ContentRating
		case FieldSource:
			current.Source = p.Source
		case FieldTags:
			current.Tags = p.Tags
		case FieldRating:
			current.Rating = p.Rating
		}
	}
	return current
}
