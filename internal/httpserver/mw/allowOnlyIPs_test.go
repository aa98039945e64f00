package mw

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/MrSnakeDoc/dash/internal/logger"
)

func TestAllowOnlyCIDRS(t *testing.T) {
	tests := []struct {
		name       string
		allowed    []string
		trustProxy bool
		remote     string
		xff        string
		wantStatus int
	}{
		{name: "empty list passes", allowed: nil, remote: "8.8.8.8:1", wantStatus: http.StatusOK},
		{name: "inside cidr", allowed: []string{"10.0.0.0/8"}, remote: "10.4.4.4:1", wantStatus: http.StatusOK},
		{name: "single ip", allowed: []string{"192.168.1.10"}, remote: "192.168.1.10:1", wantStatus: http.StatusOK},
		{name: "outside cidr", allowed: []string{"10.0.0.0/8"}, remote: "8.8.8.8:1", wantStatus: http.StatusForbidden},
		{name: "xff ignored without trust", allowed: []string{"10.0.0.0/8"}, remote: "8.8.8.8:1", xff: "10.0.0.1", wantStatus: http.StatusForbidden},
		{name: "xff honored behind proxy", allowed: []string{"10.0.0.0/8"}, trustProxy: true, remote: "172.17.0.1:1", xff: "10.0.0.1, 172.17.0.1", wantStatus: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := AllowOnlyCIDRS(tt.allowed, tt.trustProxy, logger.New("error", false))(
				http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }))

			req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
			req.RemoteAddr = tt.remote
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)

			if rr.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rr.Code, tt.wantStatus)
			}
			if rr.Code == http.StatusForbidden {
				var body map[string]string
				if err := json.NewDecoder(rr.Body).Decode(&body); err != nil || body["error"] != "forbidden" {
					t.Errorf("body = %v, err = %v", body, err)
				}
			}
		})
	}
}
