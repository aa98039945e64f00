package mw

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/MrSnakeDoc/dash/internal/logger"
)

type logLine struct {
	level  string
	msg    string
	fields map[string]logger.Field
}

// recordingLogger keeps every structured line it receives.
type recordingLogger struct {
	mu    *sync.Mutex
	lines *[]logLine
}

func newRecordingLogger() recordingLogger {
	return recordingLogger{mu: &sync.Mutex{}, lines: &[]logLine{}}
}

func (l recordingLogger) add(level, msg string, fields []logger.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	byKey := make(map[string]logger.Field, len(fields))
	for _, f := range fields {
		byKey[f.Key] = f
	}
	*l.lines = append(*l.lines, logLine{level: level, msg: msg, fields: byKey})
}

func (l recordingLogger) all() []logLine {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]logLine(nil), *l.lines...)
}

func (l recordingLogger) Debug(msg string, f ...logger.Field) { l.add("debug", msg, f) }
func (l recordingLogger) Info(msg string, f ...logger.Field)  { l.add("info", msg, f) }
func (l recordingLogger) Warn(msg string, f ...logger.Field)  { l.add("warn", msg, f) }
func (l recordingLogger) Error(msg string, f ...logger.Field) { l.add("error", msg, f) }
func (l recordingLogger) Fatal(msg string, f ...logger.Field) { l.add("fatal", msg, f) }

func (l recordingLogger) Debugf(string, ...interface{}) {}
func (l recordingLogger) Infof(string, ...interface{})  {}
func (l recordingLogger) Warnf(string, ...interface{})  {}
func (l recordingLogger) Errorf(string, ...interface{}) {}
func (l recordingLogger) Fatalf(string, ...interface{}) {}

func (l recordingLogger) With(...logger.Field) logger.Logger { return l }
func (l recordingLogger) Named(string) logger.Logger         { return l }
func (l recordingLogger) Sync() error                        { return nil }

func TestLogLevelByStatus(t *testing.T) {
	tests := []struct {
		name      string
		path      string
		status    int
		wantLevel string
	}{
		{name: "ok", path: "/api/widgets", status: http.StatusOK, wantLevel: "info"},
		{name: "implicit ok", path: "/api/widgets", status: 0, wantLevel: "info"},
		{name: "health check", path: "/healthz", status: http.StatusOK, wantLevel: "debug"},
		{name: "client error", path: "/api/widgets/9", status: http.StatusNotFound, wantLevel: "warn"},
		{name: "failing health check", path: "/readyz", status: http.StatusServiceUnavailable, wantLevel: "error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := newRecordingLogger()
			h := Log(rec, false)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if tt.status != 0 {
					w.WriteHeader(tt.status)
				}
				_, _ = w.Write([]byte("body"))
			}))

			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			req.RemoteAddr = "10.1.2.3:5555"
			h.ServeHTTP(httptest.NewRecorder(), req)

			lines := rec.all()
			if len(lines) != 1 {
				t.Fatalf("got %d lines, want 1", len(lines))
			}
			got := lines[0]
			if got.level != tt.wantLevel {
				t.Errorf("level = %s, want %s", got.level, tt.wantLevel)
			}
			wantStatus := tt.status
			if wantStatus == 0 {
				wantStatus = http.StatusOK
			}
			if got.fields["status"].Integer != int64(wantStatus) {
				t.Errorf("status field = %d, want %d", got.fields["status"].Integer, wantStatus)
			}
			if got.fields["bytes"].Integer != 4 {
				t.Errorf("bytes field = %d, want 4", got.fields["bytes"].Integer)
			}
			if got.fields["client_ip"].String != "10.1.2.3" {
				t.Errorf("client_ip = %q", got.fields["client_ip"].String)
			}
		})
	}
}

func TestLogCarriesNotedUser(t *testing.T) {
	rec := newRecordingLogger()
	h := Log(rec, false)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		noteUser(r.Context(), 42)
		w.WriteHeader(http.StatusNoContent)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/auth/me", nil))

	lines := rec.all()
	if len(lines) != 1 {
		t.Fatalf("got %d lines, want 1", len(lines))
	}
	if f, ok := lines[0].fields["user_id"]; !ok || f.Integer != 42 {
		t.Errorf("user_id field = %+v, ok=%v", f, ok)
	}
}

func TestNoteUserWithoutLogIsNoop(t *testing.T) {
	noteUser(httptest.NewRequest(http.MethodGet, "/", nil).Context(), 7)
}
