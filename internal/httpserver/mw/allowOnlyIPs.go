package mw

import (
	"net/http"

	"github.com/MrSnakeDoc/dash/internal/logger"
	"github.com/MrSnakeDoc/dash/internal/utils"
)

// AllowOnlyCIDRS rejects clients outside allowed with a JSON 403. An empty
// list lets every request through. Set trustProxy only behind a reverse
// proxy that owns X-Forwarded-For.
func AllowOnlyCIDRS(allowed []string, trustProxy bool, log logger.Logger) func(http.Handler) http.Handler {
	m := utils.NewIPMatcher(allowed)
	if m.IsEmpty() {
		return func(next http.Handler) http.Handler { return next }
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := utils.ClientIP(r, trustProxy)
			if !m.Allow(ip) {
				log.Warn("client outside allowed networks",
					logger.String("client_ip", ip),
					logger.String("path", r.URL.Path),
					logger.Bool("trust_proxy", trustProxy))
				writeJSONError(w, http.StatusForbidden, "forbidden")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
