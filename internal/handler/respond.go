package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/movies-api/internal/domain/auth"
	"github.com/xenking/movies-api/internal/domain/movie"
	"github.com/xenking/movies-api/internal/domain/usermovie"
)

var errNotFound = errors.New("not found")

// requestError reports malformed input such as an undecodable body.
type requestError struct {
	msg string
}

func (e *requestError) Error() string {
	return e.msg
}

func badRequest(msg string) error {
	return &requestError{msg: msg}
}

// message builds the response message for an action on entity, e.g.
// "movie created". Lists use the plural entity: "movies listed".
func message(entity, action string) string {
	if action == "list" {
		entity += "s"
	}
	past := action + "ed"
	if strings.HasSuffix(action, "e") {
		past = action + "d"
	}
	return entity + " " + past
}

// writeJSON writes status and the encoded body.
func writeJSON(w http.ResponseWriter, status int, e *jx.Encoder) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

// writeData writes the {data, msg} envelope. A nil data writes null.
func writeData(w http.ResponseWriter, status int, msg string, data func(e *jx.Encoder)) {
	var e jx.Encoder
	e.ObjStart()
	e.Field("data", func(e *jx.Encoder) {
		if data == nil {
			e.Null()
			return
		}
		data(e)
	})
	e.Field("msg", func(e *jx.Encoder) { e.Str(msg) })
	e.ObjEnd()
	writeJSON(w, status, &e)
}

// setCache marks a catalog read cacheable for maxAge seconds outside dev
// mode.
func (h *Handler) setCache(w http.ResponseWriter, maxAge int) {
	if h.dev {
		return
	}
	w.Header().Set("Cache-Control", "public, max-age="+strconv.Itoa(maxAge))
}

// statusOf maps an error to its HTTP status and caller-facing message.
func statusOf(err error) (int, string) {
	var (
		authErr  *auth.Error
		movieErr *movie.ValidationError
		reqErr   *requestError
	)
	switch {
	case errors.As(err, &authErr) && authErr.Kind == auth.ErrUnauthorized:
		return http.StatusUnauthorized, messageOr(authErr.Message, "unauthorized")
	case errors.As(err, &authErr) && authErr.Kind == auth.ErrForbidden:
		return http.StatusForbidden, messageOr(authErr.Message, "forbidden")
	case errors.As(err, &authErr) && authErr.Kind == auth.ErrValidation:
		return http.StatusBadRequest, messageOr(authErr.Message, "validation failed")
	case errors.As(err, &movieErr):
		return http.StatusBadRequest, movieErr.Error()
	case errors.As(err, &reqErr):
		return http.StatusBadRequest, reqErr.msg
	case errors.Is(err, movie.ErrNotFound),
		errors.Is(err, usermovie.ErrNotFound),
		errors.Is(err, errNotFound):
		return http.StatusNotFound, rootMessage(err)
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

func messageOr(msg, fallback string) string {
	if msg == "" {
		return fallback
	}
	return msg
}

// rootMessage returns the message of the innermost error.
func rootMessage(err error) string {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err.Error()
		}
		err = next
	}
}

// writeError writes the {code, message} error body. Unauthorized responses
// carry a WWW-Authenticate challenge; server errors are logged.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := statusOf(err)

	switch {
	case status == http.StatusUnauthorized:
		if w.Header().Get("WWW-Authenticate") == "" {
			w.Header().Set("WWW-Authenticate", bearerChallenge)
		}
	case status >= http.StatusInternalServerError:
		zctx.From(r.Context()).Error("Request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}

	var e jx.Encoder
	e.ObjStart()
	e.Field("code", func(e *jx.Encoder) { e.Int(status) })
	e.Field("message", func(e *jx.Encoder) { e.Str(msg) })
	e.ObjEnd()
	writeJSON(w, status, &e)
}
