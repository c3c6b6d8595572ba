package handler

import (
	"bytes"
	"io"
	"net/http"
	"net/mail"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/movies-api/internal/domain/auth"
	"github.com/xenking/movies-api/pkg/httpmiddleware"
)

const (
	maxBodyBytes    = 1 << 20
	maxNameLen      = 100
	minPasswordLen  = 8
	maxPasswordLen  = 72
	basicChallenge  = `Basic realm="movies-api"`
	bearerChallenge = `Bearer realm="movies-api"`
)

// RequireScopes authenticates the request with strategy and rejects it
// unless the principal holds every scope. The principal is stored in the
// request context for next.
func RequireScopes(strategy auth.Strategy, scopes ...string) httpmiddleware.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, err := strategy.Authenticate(r.Context(), &auth.Request{Header: r.Header})
			if err != nil {
				writeError(w, r, err)
				return
			}
			if err := auth.Authorize(scopes, p.Scopes); err != nil {
				zctx.From(r.Context()).Info("Scope check failed",
					zap.String("user_id", p.Identity.ID),
					zap.Strings("required", scopes),
				)
				writeError(w, r, err)
				return
			}

			ctx := auth.WithPrincipal(r.Context(), p)
			ctx = zctx.With(ctx, zap.String("user_id", p.Identity.ID))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// readBody reads a bounded request body. Empty reports a blank body.
func readBody(w http.ResponseWriter, r *http.Request) (body []byte, empty bool, err error) {
	body, err = io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return nil, false, badRequest("request body too large or unreadable")
	}
	return body, len(bytes.TrimSpace(body)) == 0, nil
}

// decodeObject decodes a JSON object body, calling fn for each field.
func decodeObject(body []byte, fn func(d *jx.Decoder, key string) error) error {
	if err := jx.DecodeBytes(body).Obj(fn); err != nil {
		return badRequest("invalid JSON body: " + err.Error())
	}
	return nil
}

func (h *Handler) signIn(w http.ResponseWriter, r *http.Request) {
	body, empty, err := readBody(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var apiKeyToken string
	if !empty {
		err := decodeObject(body, func(d *jx.Decoder, key string) error {
			if key != "apiKeyToken" {
				return d.Skip()
			}
			if d.Next() == jx.Null {
				return d.Null()
			}
			v, err := d.Str()
			apiKeyToken = v
			return err
		})
		if err != nil {
			writeError(w, r, err)
			return
		}
	}

	res, err := h.auth.SignIn(r.Context(), &auth.Request{Header: r.Header}, apiKeyToken)
	if err != nil {
		if errors.Is(err, auth.ErrUnauthorized) {
			w.Header().Set("WWW-Authenticate", basicChallenge)
		}
		writeError(w, r, err)
		return
	}

	var e jx.Encoder
	e.ObjStart()
	e.Field("token", func(e *jx.Encoder) { e.Str(res.Token) })
	e.Field("user", func(e *jx.Encoder) { encodeIdentity(e, res.User) })
	e.ObjEnd()
	writeJSON(w, http.StatusOK, &e)
}

func encodeIdentity(e *jx.Encoder, id auth.Identity) {
	e.ObjStart()
	e.Field("id", func(e *jx.Encoder) { e.Str(id.ID) })
	e.Field("name", func(e *jx.Encoder) { e.Str(id.Name) })
	e.Field("email", func(e *jx.Encoder) { e.Str(id.Email) })
	e.ObjEnd()
}

func (h *Handler) signUp(w http.ResponseWriter, r *http.Request) {
	body, empty, err := readBody(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if empty {
		writeError(w, r, badRequest("request body is required"))
		return
	}

	var u auth.NewUser
	err = decodeObject(body, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "name":
			u.Name, err = d.Str()
		case "email":
			u.Email, err = d.Str()
		case "password":
			u.Password, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := validateNewUser(&u); err != nil {
		writeError(w, r, err)
		return
	}

	res, err := h.auth.SignUp(r.Context(), u)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !res.Created {
		writeData(w, http.StatusOK, "user already exists", nil)
		return
	}
	writeData(w, http.StatusCreated, message("user", "create"), func(e *jx.Encoder) {
		e.Str(res.ID)
	})
}

// validateNewUser trims the name and checks the sign-up fields.
func validateNewUser(u *auth.NewUser) error {
	u.Name = strings.TrimSpace(u.Name)
	switch {
	case u.Name == "":
		return auth.Invalid("name is required")
	case len(u.Name) > maxNameLen:
		return auth.Invalid("name is too long")
	case u.Email == "":
		return auth.Invalid("email is required")
	case !validEmail(u.Email):
		return auth.Invalid("email is invalid")
	case len(u.Password) < minPasswordLen:
		return auth.Invalid("password must be at least 8 characters")
	case len(u.Password) > maxPasswordLen:
		return auth.Invalid("password must be at most 72 bytes")
	}
	return nil
}

// validEmail accepts a bare address such as "a@b.c", without display name.
func validEmail(s string) bool {
	addr, err := mail.ParseAddress(s)
	return err == nil && addr.Address == s
}
