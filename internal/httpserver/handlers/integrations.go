package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/dash/internal/connector"
	"github.com/MrSnakeDoc/dash/internal/domain"
	"github.com/MrSnakeDoc/dash/internal/httpserver/deps"
	"github.com/MrSnakeDoc/dash/internal/logger"
)

// integrationView is one service's connection state. Tokens are never echoed.
type integrationView struct {
	Service      domain.ServiceType `json:"service"`
	Connected    bool               `json:"connected"`
	HasToken     bool               `json:"hasToken"`
	ExpiresAt    *time.Time         `json:"expiresAt,omitempty"`
	LastSyncedAt *time.Time         `json:"lastSyncedAt,omitempty"`
	Config       map[string]string  `json:"config,omitempty"`
}

type integrationRequest struct {
	Token     *string           `json:"token"`
	Config    map[string]string `json:"config"`
	ExpiresAt *time.Time        `json:"expiresAt"`
}

type integrationTestResponse struct {
	Service domain.ServiceType `json:"service"`
	OK      bool               `json:"ok"`
	Error   string             `json:"error,omitempty"`
}

func viewOf(st domain.ServiceType, c *domain.Credential) integrationView {
	if c == nil {
		return integrationView{Service: st}
	}
	return integrationView{
		Service:      st,
		Connected:    c.Connected,
		HasToken:     c.HasToken(),
		ExpiresAt:    c.ExpiresAt,
		LastSyncedAt: c.LastSyncedAt,
		Config:       c.Config,
	}
}

func serviceParam(r *http.Request) (domain.ServiceType, error) {
	tag := chi.URLParam(r, "service")
	st, ok := domain.ParseServiceType(tag)
	if !ok {
		return "", &connector.UnsupportedServiceTypeError{Tag: tag}
	}
	return st, nil
}

// ListIntegrations reports every supported service, connected or not.
func ListIntegrations(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := currentUser(r)

		creds, err := d.Store.ListCredentials(r.Context(), user.ID)
		if err != nil {
			writeError(w, r, d, err)
			return
		}

		byService := make(map[domain.ServiceType]*domain.Credential, len(creds))
		for _, c := range creds {
			byService[c.Service] = c
		}

		out := make([]integrationView, 0, len(domain.AllServiceTypes()))
		for _, st := range domain.AllServiceTypes() {
			out = append(out, viewOf(st, byService[st]))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// PutIntegration connects a service or updates its settings. Omitting the
// token keeps the stored one.
func PutIntegration(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := currentUser(r)
		st, err := serviceParam(r)
		if err != nil {
			writeError(w, r, d, err)
			return
		}

		var req integrationRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, d, err)
			return
		}

		cred, err := d.Store.GetCredential(r.Context(), user.ID, st)
		switch {
		case errors.Is(err, domain.ErrNotFound):
			cred = &domain.Credential{UserID: user.ID, Service: st}
		case err != nil:
			writeError(w, r, d, err)
			return
		}

		if req.Token != nil {
			cred.Token = strings.TrimSpace(*req.Token)
		}
		if !cred.HasToken() {
			writeError(w, r, d, &domain.MissingParameterError{Name: "token"})
			return
		}
		if req.Config != nil {
			cred.Config = req.Config
		}
		cred.ExpiresAt = req.ExpiresAt
		cred.Connected = !cred.Expired(d.Now())

		if err := d.Store.UpsertCredential(r.Context(), cred); err != nil {
			writeError(w, r, d, err)
			return
		}

		d.Logger.Info("integration saved",
			logger.Int64("user_id", user.ID),
			logger.String("service", string(st)),
			logger.Bool("connected", cred.Connected))
		writeJSON(w, http.StatusOK, viewOf(st, cred))
	}
}

func DeleteIntegration(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := currentUser(r)
		st, err := serviceParam(r)
		if err != nil {
			writeError(w, r, d, err)
			return
		}

		if err := d.Store.DeleteCredential(r.Context(), user.ID, st); err != nil {
			writeError(w, r, d, err)
			return
		}

		d.Logger.Info("integration removed",
			logger.Int64("user_id", user.ID),
			logger.String("service", string(st)))
		w.WriteHeader(http.StatusNoContent)
	}
}

// TestIntegration pings the upstream with the stored token. An upstream
// rejection is reported in the body, not as an HTTP error.
func TestIntegration(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := currentUser(r)
		st, err := serviceParam(r)
		if err != nil {
			writeError(w, r, d, err)
			return
		}

		c, cred, err := userConnector(r.Context(), d, user.ID, st)
		if err != nil {
			writeError(w, r, d, err)
			return
		}

		if err := c.Ping(r.Context()); err != nil {
			writeJSON(w, http.StatusOK, integrationTestResponse{Service: st, Error: err.Error()})
			return
		}

		now := d.Now()
		cred.LastSyncedAt = &now
		if err := d.Store.UpsertCredential(r.Context(), cred); err != nil {
			d.Logger.Warn("failed to record sync time",
				logger.String("service", string(st)),
				logger.Error(err))
		}

		writeJSON(w, http.StatusOK, integrationTestResponse{Service: st, OK: true})
	}
}
