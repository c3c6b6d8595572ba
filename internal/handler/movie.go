package handler

import (
	"net/http"
	"strings"

	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/movies-api/internal/domain/movie"
)

func encodeMovie(e *jx.Encoder, m *movie.Movie) {
	e.ObjStart()
	e.Field("id", func(e *jx.Encoder) { e.Str(m.ID) })
	e.Field("title", func(e *jx.Encoder) { e.Str(m.Title) })
	e.Field("year", func(e *jx.Encoder) { e.Int(m.Year) })
	e.Field("cover", func(e *jx.Encoder) { e.Str(m.Cover) })
	e.Field("description", func(e *jx.Encoder) { e.Str(m.Description) })
	e.Field("duration", func(e *jx.Encoder) { e.Int(m.Duration) })
	e.Field("contentRating", func(e *jx.Encoder) { e.Str(m.ContentRating) })
	e.Field("source", func(e *jx.Encoder) { e.Str(m.Source) })
	e.Field("tags", func(e *jx.Encoder) {
		e.ArrStart()
		for _, t := range m.Tags {
			e.Str(t)
		}
		e.ArrEnd()
	})
	e.Field("rating", func(e *jx.Encoder) { e.RawStr(m.Rating.String()) })
	e.ObjEnd()
}

// decodeMovie decodes the movie fields of body and records which of them
// were present. Unknown fields are skipped.
func decodeMovie(body []byte) (movie.Patch, error) {
	p := movie.Patch{Set: make(map[movie.Field]bool)}
	m := &p.Movie
	err := decodeObject(body, func(d *jx.Decoder, key string) error {
		var err error
		switch movie.Field(key) {
		case movie.FieldTitle:
			m.Title, err = d.Str()
		case movie.FieldYear:
			m.Year, err = d.Int()
		case movie.FieldCover:
			m.Cover, err = d.Str()
		case movie.FieldDescription:
			m.Description, err = d.Str()
		case movie.FieldDuration:
			m.Duration, err = d.Int()
		case movie.FieldContentRating:
			m.ContentRating, err = d.Str()
		case movie.FieldSource:
			m.Source, err = d.Str()
		case movie.FieldTags:
			m.Tags = []string{}
			err = d.Arr(func(d *jx.Decoder) error {
				tag, err := d.Str()
				m.Tags = append(m.Tags, tag)
				return err
			})
		case movie.FieldRating:
			m.Rating, err = decodeDecimal(d)
		default:
			return d.Skip()
		}
		if err == nil {
			p.Set[movie.Field(key)] = true
		}
		return err
	})
	return p, err
}

// decodeDecimal accepts a JSON number or a numeric string.
func decodeDecimal(d *jx.Decoder) (decimal.Decimal, error) {
	if d.Next() == jx.String {
		s, err := d.Str()
		if err != nil {
			return decimal.Decimal{}, err
		}
		return decimal.NewFromString(s)
	}
	n, err := d.Num()
	if err != nil {
		return decimal.Decimal{}, err
	}
	return decimal.NewFromString(string(n))
}

// tagsParam reads ?tags=a&tags=b and ?tags=a,b.
func tagsParam(r *http.Request) []string {
	var tags []string
	for _, v := range r.URL.Query()["tags"] {
		for _, t := range strings.Split(v, ",") {
			if t = strings.TrimSpace(t); t != "" {
				tags = append(tags, t)
			}
		}
	}
	return tags
}

func (h *Handler) listMovies(w http.ResponseWriter, r *http.Request) {
	h.setCache(w, listMaxAge)

	movies, err := h.movies.List(r.Context(), tagsParam(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, message("movie", "list"), func(e *jx.Encoder) {
		e.ArrStart()
		for i := range movies {
			encodeMovie(e, &movies[i])
		}
		e.ArrEnd()
	})
}

func (h *Handler) getMovie(w http.ResponseWriter, r *http.Request) {
	h.setCache(w, getMaxAge)

	m, err := h.movies.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, message("movie", "retrieve"), func(e *jx.Encoder) {
		encodeMovie(e, m)
	})
}

func (h *Handler) createMovie(w http.ResponseWriter, r *http.Request) {
	p, ok := h.readMovie(w, r)
	if !ok {
		return
	}
	id, err := h.movies.Create(r.Context(), p.Movie)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, message("movie", "create"), func(e *jx.Encoder) { e.Str(id) })
}

func (h *Handler) updateMovie(w http.ResponseWriter, r *http.Request) {
	patch, ok := h.readMovie(w, r)
	if !ok {
		return
	}
	id, err := h.movies.Update(r.Context(), r.PathValue("id"), patch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, message("movie", "update"), func(e *jx.Encoder) { e.Str(id) })
}

func (h *Handler) deleteMovie(w http.ResponseWriter, r *http.Request) {
	id, err := h.movies.Delete(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, message("movie", "delete"), func(e *jx.Encoder) { e.Str(id) })
}

func (h *Handler) readMovie(w http.ResponseWriter, r *http.Request) (movie.Patch, bool) {
	body, empty, err := readBody(w, r)
	if err == nil && empty {
		err = badRequest("request body is required")
	}
	if err != nil {
		writeError(w, r, err)
		return movie.Patch{}, false
	}
	p, err := decodeMovie(body)
	if err != nil {
		writeError(w, r, err)
		return movie.Patch{}, false
	}
	return p, true
}
