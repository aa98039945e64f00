package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/MrSnakeDoc/dash/internal/auth"
	"github.com/MrSnakeDoc/dash/internal/connector"
	"github.com/MrSnakeDoc/dash/internal/connector/httpx"
	"github.com/MrSnakeDoc/dash/internal/domain"
	"github.com/MrSnakeDoc/dash/internal/httpserver/deps"
	"github.com/MrSnakeDoc/dash/internal/logger"
)

const maxBodyBytes = 1 << 20

type errorResponse struct {
	Error string `json:"error"`
}

// NotConnectedError is returned when a route needs a service the user has
// not connected, or whose credential was disconnected.
type NotConnectedError struct {
	Service domain.ServiceType
}

func (e *NotConnectedError) Error() string {
	return fmt.Sprintf("%s is not connected", e.Service)
}

var (
	// errNoTargetList means no list could be found for an email-derived task.
	errNoTargetList = errors.New("no task list available: pass listId or set defaultListId on the task-board integration")
	// errUpstreamFailed covers create operations that report absence instead of an error.
	errUpstreamFailed = errors.New("upstream service did not complete the request")
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps err onto a status code. Unexpected errors are logged and
// reported without detail.
func writeError(w http.ResponseWriter, r *http.Request, d deps.Deps, err error) {
	status := statusFor(err)
	msg := err.Error()

	switch {
	case status >= 500 && status != http.StatusBadGateway:
		d.Logger.Error("request failed",
			logger.String("method", r.Method),
			logger.String("path", r.URL.Path),
			logger.String("request_id", middleware.GetReqID(r.Context())),
			logger.Error(err))
		msg = "internal error"
	case status == http.StatusBadGateway:
		d.Logger.Warn("upstream call failed",
			logger.String("path", r.URL.Path),
			logger.Error(err))
	}

	writeJSON(w, status, errorResponse{Error: msg})
}

func statusFor(err error) int {
	var (
		verr    *domain.ValidationError
		mperr   *domain.MissingParameterError
		unsup   *connector.UnsupportedServiceTypeError
		notConn *NotConnectedError
		syntax  *json.SyntaxError
		typeErr *json.UnmarshalTypeError
	)

	switch {
	case errors.As(err, &verr), errors.As(err, &mperr), errors.As(err, &unsup),
		errors.As(err, &syntax), errors.As(err, &typeErr):
		return http.StatusBadRequest
	case errors.Is(err, auth.ErrInvalidCredentials), errors.Is(err, auth.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrConflict), errors.As(err, &notConn):
		return http.StatusConflict
	case errors.Is(err, errNoTargetList):
		return http.StatusUnprocessableEntity
	case errors.Is(err, errUpstreamFailed), errors.Is(err, domain.ErrMissingToken):
		return http.StatusBadGateway
	}

	if _, ok := httpx.AsAPIError(err); ok {
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// decodeJSON reads a JSON body into v. An empty body leaves v untouched.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		var syntax *json.SyntaxError
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &syntax) || errors.As(err, &typeErr) {
			return err
		}
		return &domain.ValidationError{Field: "body", Reason: err.Error()}
	}
	return nil
}

// currentUser returns the session user set by mw.RequireSession.
func currentUser(r *http.Request) *domain.User {
	u, _ := auth.UserFromContext(r.Context())
	return u
}

func pathID(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, &domain.ValidationError{Field: name, Reason: fmt.Sprintf("%q is not a valid id", raw)}
	}
	return id, nil
}

func pathParam(r *http.Request, name string) (string, error) {
	v := strings.TrimSpace(chi.URLParam(r, name))
	if v == "" {
		return "", &domain.MissingParameterError{Name: name}
	}
	return v, nil
}

// queryInt parses a non-negative integer query parameter, def when absent.
func queryInt(r *http.Request, key string, def int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, &domain.ValidationError{Field: key, Reason: fmt.Sprintf("%q is not a non-negative integer", raw)}
	}
	return n, nil
}

// queryLimit is queryInt for list sizes, capped at ceiling.
func queryLimit(r *http.Request, def, ceiling int) (int, error) {
	n, err := queryInt(r, "limit", def)
	if err != nil {
		return 0, err
	}
	return min(n, ceiling), nil
}
