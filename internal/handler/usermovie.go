package handler

import (
	"net/http"

	"github.com/go-faster/jx"
	"github.com/google/uuid"

	"github.com/xenking/movies-api/internal/domain/auth"
	"github.com/xenking/movies-api/internal/domain/usermovie"
)

func encodeUserMovie(e *jx.Encoder, um *usermovie.UserMovie) {
	e.ObjStart()
	e.Field("id", func(e *jx.Encoder) { e.Str(um.ID) })
	e.Field("userId", func(e *jx.Encoder) { e.Str(um.UserID) })
	e.Field("movieId", func(e *jx.Encoder) { e.Str(um.MovieID) })
	e.ObjEnd()
}

// principal returns the authenticated caller set by RequireScopes.
func principal(r *http.Request) (*auth.Principal, error) {
	p, ok := auth.PrincipalFrom(r.Context())
	if !ok {
		return nil, auth.Unauthorized("authentication required")
	}
	return p, nil
}

// ownUserID resolves the user a request acts on. A userId given explicitly
// must be the caller's own id.
func ownUserID(p *auth.Principal, requested string) (string, error) {
	if requested == "" || requested == p.Identity.ID {
		return p.Identity.ID, nil
	}
	if _, err := uuid.Parse(requested); err != nil {
		return "", badRequest("userId: must be a UUID")
	}
	return "", auth.Forbidden("cannot access movies of another user")
}

func (h *Handler) listUserMovies(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	userID, err := ownUserID(p, r.URL.Query().Get("userId"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	items, err := h.userMovies.List(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, message("user movie", "list"), func(e *jx.Encoder) {
		e.ArrStart()
		for i := range items {
			encodeUserMovie(e, &items[i])
		}
		e.ArrEnd()
	})
}

func (h *Handler) createUserMovie(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	body, empty, err := readBody(w, r)
	if err == nil && empty {
		err = badRequest("request body is required")
	}
	if err != nil {
		writeError(w, r, err)
		return
	}

	var userID, movieID string
	err = decodeObject(body, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "userId":
			userID, err = d.Str()
		case "movieId":
			movieID, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	if userID, err = ownUserID(p, userID); err != nil {
		writeError(w, r, err)
		return
	}

	id, err := h.userMovies.Add(r.Context(), userID, movieID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, message("user movie", "create"), func(e *jx.Encoder) { e.Str(id) })
}

func (h *Handler) deleteUserMovie(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	id, err := h.userMovies.Remove(r.Context(), p.Identity.ID, r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, message("user movie", "delete"), func(e *jx.Encoder) { e.Str(id) })
}
