package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// Store backends.
const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
	StoreSQLite = "sqlite"
)

type Config struct {
	ListenPort      string        // ex: ":8080"
	ShutdownTimeout time.Duration // ex: 5s
	RequestTimeout  time.Duration // per-request deadline, covers upstream fan-out

	LogLevel  string // "debug" | "info" | "warn" | "error"
	PrettyLog bool   // true => zap dev (color), false => zap prod (JSON)

	// Storage
	Store      string // "memory" | "redis" | "sqlite"
	SQLitePath string // database file for the sqlite backend

	// Redis (only when Store == "redis")
	RedisAddr           string        // ex: "localhost:6379"
	RedisUser           string        // optional
	RedisPassword       string        // optional
	RedisDB             int           // Redis DB number
	RedisTLS            bool          // dial with TLS
	RedisDT             time.Duration // Redis dial timeout (ex: 5s)
	RedisRT             time.Duration // Redis read timeout (ex: 3s)
	RedisWT             time.Duration // Redis write timeout (ex: 3s)
	RedisMaxWait        time.Duration // max wait between retries (ex: 10s)
	RedisPingTimeout    time.Duration // timeout for each ping attempt (ex: 5s)
	RedisPoolSize       int           // Redis connection pool size
	RedisConnectTimeout time.Duration // Total time to retry connecting (ex: 30s)
	RedisRetryInterval  time.Duration // Initial wait between retries (ex: 2s, grows exponentially)
	RedisWarnThreshold  int           // warn after this many attempts

	// Upstream services
	TrelloAPIKey     string        // application key sent alongside each user token
	TrelloBaseURL    string        // ex: https://api.trello.com/1
	NotionBaseURL    string        // ex: https://api.notion.com/v1
	NotionVersion    string        // Notion-Version header
	GmailBaseURL     string        // empty => library default endpoint
	ConnectorTimeout time.Duration // per upstream call
	ConnectorRate    float64       // requests per second per connector
	ConnectorBurst   int           // limiter burst
	ConnectorRetries int           // retries on 429/5xx (0 = none)

	// Dashboard behavior
	WidgetTemplates string        // path to default widget templates (empty = built-in)
	SessionTTL      time.Duration // session cookie lifetime
	CookieSecure    bool          // set Secure on the session cookie
	SweepInterval   time.Duration // credential expiry sweep interval

	// Access restrictions
	AllowedCIDRS []string // optional, restrict healthz/readyz/infra to specific IPs
	TrustProxy   bool     // true => trust X-Forwarded-For headers (e.g. cloudflared)
	RateBurst    int      // per-IP burst on /api
	RatePerMin   int      // per-IP refill on /api
}

func Load() *Config {
	cfg := &Config{
		// Server settings
		ListenPort:      getenv("DASH_LISTEN_PORT", ":8080"),
		ShutdownTimeout: mustDuration("DASH_SHUTDOWN_TIMEOUT", 5*time.Second),
		RequestTimeout:  mustDuration("DASH_REQUEST_TIMEOUT", 20*time.Second),

		// Logging
		LogLevel:  getenv("DASH_LOG_LEVEL", "info"),
		PrettyLog: mustBool("DASH_PRETTY_LOG", true),

		// Storage
		Store:      strings.ToLower(getenv("DASH_STORE", StoreMemory)),
		SQLitePath: getenv("DASH_SQLITE_PATH", "dash.db"),

		// Redis settings
		RedisUser:           getenv("DASH_REDIS_USERNAME", "default"),
		RedisPassword:       getenv("DASH_REDIS_PASSWORD", ""),
		RedisDB:             getenvInt("DASH_REDIS_DB", 0),
		RedisTLS:            mustBool("DASH_REDIS_TLS", false),
		RedisDT:             mustDuration("DASH_REDIS_DIAL_TIMEOUT", 5*time.Second),
		RedisRT:             mustDuration("DASH_REDIS_READ_TIMEOUT", 3*time.Second),
		RedisWT:             mustDuration("DASH_REDIS_WRITE_TIMEOUT", 3*time.Second),
		RedisMaxWait:        mustDuration("DASH_REDIS_MAX_WAIT", 10*time.Second),
		RedisPingTimeout:    mustDuration("DASH_REDIS_PING_TIMEOUT", 5*time.Second),
		RedisPoolSize:       getenvInt("DASH_REDIS_POOL_SIZE", 10),
		RedisConnectTimeout: mustDuration("DASH_REDIS_CONNECT_TIMEOUT", 30*time.Second),
		RedisRetryInterval:  mustDuration("DASH_REDIS_RETRY_INTERVAL", 2*time.Second),
		RedisWarnThreshold:  getenvInt("DASH_REDIS_WARN_THRESHOLD", 3),

		// Upstream services
		TrelloAPIKey:     getenv("DASH_TRELLO_API_KEY", ""),
		TrelloBaseURL:    getenv("DASH_TRELLO_BASE_URL", "https://api.trello.com/1"),
		NotionBaseURL:    getenv("DASH_NOTION_BASE_URL", "https://api.notion.com/v1"),
		NotionVersion:    getenv("DASH_NOTION_VERSION", "2022-06-28"),
		GmailBaseURL:     getenv("DASH_GMAIL_BASE_URL", ""),
		ConnectorTimeout: mustDuration("DASH_CONNECTOR_TIMEOUT", 15*time.Second),
		ConnectorRate:    getenvFloat("DASH_CONNECTOR_RATE", 10),
		ConnectorBurst:   getenvInt("DASH_CONNECTOR_BURST", 5),
		ConnectorRetries: getenvInt("DASH_CONNECTOR_RETRIES", 0),

		// Dashboard behavior
		WidgetTemplates: getenv("DASH_WIDGET_TEMPLATES", ""),
		SessionTTL:      mustDuration("DASH_SESSION_TTL", 7*24*time.Hour),
		CookieSecure:    mustBool("DASH_COOKIE_SECURE", false),
		SweepInterval:   mustDuration("DASH_SWEEP_INTERVAL", time.Hour),

		// Access restrictions
		AllowedCIDRS: parseAllowedIPs(getenv("DASH_ALLOWED_CIDRS", "")),
		TrustProxy:   mustBool("DASH_TRUST_PROXY", false),
		RateBurst:    getenvInt("DASH_RATE_BURST", 60),
		RatePerMin:   getenvInt("DASH_RATE_PER_MIN", 120),
	}

	switch cfg.Store {
	case StoreMemory, StoreSQLite:
	case StoreRedis:
		cfg.RedisAddr = requireEnv("DASH_REDIS_ADDR")
	default:
		panic(fmt.Sprintf("❌ FATAL: unsupported DASH_STORE %q (memory, redis, sqlite)", cfg.Store))
	}

	// Log config only in debug mode with redacted sensitive fields
	if cfg.LogLevel == "debug" {
		cfgCopy := *cfg
		cfgCopy.RedisPassword = "***REDACTED***"
		if cfg.TrelloAPIKey != "" {
			cfgCopy.TrelloAPIKey = "***REDACTED***"
		}
		log.Printf("[DEBUG] cfg: %+v\n", cfgCopy)
	}

	return cfg
}

// helpers
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func requireEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		panic(fmt.Sprintf("❌ FATAL: Required environment variable %s is not set", key))
	}
	return v
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getenvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			return f
		}
	}
	return def
}

func mustBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func mustDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func parseAllowedIPs(allowed string) []string {
	if allowed == "" {
		return nil
	}
	ips := make([]string, 0, 4)
	for _, ip := range splitAndTrim(allowed) {
		if ip != "" {
			ips = append(ips, ip)
		}
	}
	return ips
}

func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	raw := strings.Split(s, ",")
	parts := make([]string, 0, len(raw))
	for _, part := range raw {
		trimmed := strings.TrimSpace(part)
		// Remove surrounding quotes if present
		trimmed = strings.Trim(trimmed, `"'`)
		if trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}
