package mw

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/MrSnakeDoc/dash/internal/logger"
	"github.com/MrSnakeDoc/dash/internal/utils"
)

type accessKey struct{}

// accessEntry collects request facts learned by inner middlewares.
type accessEntry struct {
	userID int64
}

// noteUser records the authenticated user on the access log entry, if any.
func noteUser(ctx context.Context, userID int64) {
	if e, ok := ctx.Value(accessKey{}).(*accessEntry); ok {
		e.userID = userID
	}
}

// healthPaths are logged at debug so health checks do not flood the logs.
var healthPaths = map[string]bool{
	"/healthz": true,
	"/readyz":  true,
}

// Log writes one line per request. 5xx responses log at error, 4xx at warn.
func Log(log logger.Logger, trustProxy bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			entry := &accessEntry{}
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r.WithContext(context.WithValue(r.Context(), accessKey{}, entry)))

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			fields := []logger.Field{
				logger.String("method", r.Method),
				logger.String("path", r.URL.Path),
				logger.Int("status", status),
				logger.Int("bytes", ww.BytesWritten()),
				logger.Duration("duration", time.Since(start)),
				logger.String("client_ip", utils.ClientIP(r, trustProxy)),
				logger.String("request_id", middleware.GetReqID(r.Context())),
			}
			if entry.userID != 0 {
				fields = append(fields, logger.Int64("user_id", entry.userID))
			}

			switch {
			case status >= http.StatusInternalServerError:
				log.Error("http_request", fields...)
			case status >= http.StatusBadRequest:
				log.Warn("http_request", fields...)
			case healthPaths[r.URL.Path]:
				log.Debug("http_request", fields...)
			default:
				log.Info("http_request", append(fields, logger.String("user_agent", r.UserAgent()))...)
			}
		})
	}
}
