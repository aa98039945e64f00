package httpx

import "net/http"

// Auth attaches credentials to an outgoing request.
type Auth interface {
	Apply(req *http.Request)
}

// NoAuth leaves the request untouched.
type NoAuth struct{}

func (NoAuth) Apply(*http.Request) {}

// BearerToken sets "Authorization: Bearer <token>".
type BearerToken struct {
	Token string
}

func (a BearerToken) Apply(req *http.Request) {
	if a.Token == "" {
		return
	}
	req.Header.Set("Authorization", "Bearer "+a.Token)
}

// QueryParams appends credentials as query parameters, the way the
// task-board API expects "key" and "token".
type QueryParams map[string]string

func (a QueryParams) Apply(req *http.Request) {
	if len(a) == 0 {
		return
	}
	q := req.URL.Query()
	for k, v := range a {
		if v != "" {
			q.Set(k, v)
		}
	}
	req.URL.RawQuery = q.Encode()
}
