package handlers

import (
	"context"
	"net/http"

	"github.com/MrSnakeDoc/dash/internal/httpserver/deps"
)

type componentStatus struct {
	OK        bool   `json:"ok"`
	Backend   string `json:"backend,omitempty"`
	Templates *int   `json:"templates,omitempty"`
	LastRun   string `json:"last_run,omitempty"`
	Impact    string `json:"impact,omitempty"`
	Error     string `json:"error,omitempty"`
}

type infraResponse struct {
	Mode       string                     `json:"mode"`
	Components map[string]componentStatus `json:"components"`
	Upstreams  map[string]bool            `json:"upstreams"`
}

// Infra reports the state of the store, the widget catalog, the sweeper
// and which upstream settings are configured.
func Infra(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		components := map[string]componentStatus{
			"store":   checkStore(r.Context(), d),
			"layout":  checkCatalog(d),
			"sweeper": checkSweeper(d),
		}

		upstreams := d.Upstreams
		if upstreams == nil {
			upstreams = map[string]bool{}
		}

		writeJSON(w, http.StatusOK, infraResponse{
			Mode:       determineMode(components),
			Components: components,
			Upstreams:  upstreams,
		})
	}
}

func determineMode(components map[string]componentStatus) string {
	// No store means no sessions: nothing works.
	if s, ok := components["store"]; ok && !s.OK {
		return "critical"
	}

	for _, c := range components {
		if !c.OK {
			return "degraded"
		}
	}
	return "operational"
}

func checkStore(ctx context.Context, d deps.Deps) componentStatus {
	if d.Store == nil {
		return componentStatus{Error: "store not initialized"}
	}

	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := d.Store.Ping(ctx); err != nil {
		return componentStatus{Backend: d.Store.Name(), Error: err.Error()}
	}
	return componentStatus{OK: true, Backend: d.Store.Name()}
}

func checkCatalog(d deps.Deps) componentStatus {
	if d.Catalog == nil {
		return componentStatus{Impact: "no-default-widgets", Error: "catalog not loaded"}
	}
	n := d.Catalog.Len()
	return componentStatus{OK: true, Templates: &n}
}

func checkSweeper(d deps.Deps) componentStatus {
	if d.Sweeper == nil {
		return componentStatus{Impact: "expired-credentials-stay-connected", Error: "sweeper disabled"}
	}
	last := d.Sweeper.LastRun()
	if last.IsZero() {
		return componentStatus{OK: true, LastRun: "never"}
	}
	return componentStatus{OK: true, LastRun: last.Format("2006-01-02 15:04:05")}
}
