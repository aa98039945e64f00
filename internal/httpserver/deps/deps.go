package deps

import (
	"time"

	"github.com/MrSnakeDoc/dash/internal/auth"
	"github.com/MrSnakeDoc/dash/internal/connector"
	"github.com/MrSnakeDoc/dash/internal/logger"
	"github.com/MrSnakeDoc/dash/internal/scheduler"
	"github.com/MrSnakeDoc/dash/internal/sources/layout"
	"github.com/MrSnakeDoc/dash/internal/store"
)

type Deps struct {
	Logger         logger.Logger
	StartTime      time.Time
	Version        string
	Commit         string
	BuildDate      string
	GoVersion      string
	TimeNow        func() time.Time             // for testing, defaults to time.Now
	AllowedCIDRS   []string                     // IPs allowed to access healthz/readyz/infra/sweep
	TrustProxy     bool                         // true if running behind a trusted reverse proxy (e.g., cloudflared)
	RateBurst      int                          // per-IP burst on /api
	RatePerMin     int                          // per-IP refill on /api
	RequestTimeout time.Duration                // per-request deadline, 0 disables
	CookieSecure   bool                         // set Secure on the session cookie
	Store          store.Repository             // users, credentials, widgets, sessions
	Auth           *auth.Manager                // registration, login, session lookup
	Connectors     connector.Builder            // builds a service connector from a stored token
	Catalog        *layout.Catalog              // default widget templates
	Sweeper        *scheduler.CredentialSweeper // nil disables /sweep
	Upstreams      map[string]bool              // upstream settings that are configured, for /infra
}

// Now returns d.TimeNow() or time.Now().
func (d Deps) Now() time.Time {
	if d.TimeNow != nil {
		return d.TimeNow()
	}
	return time.Now()
}
