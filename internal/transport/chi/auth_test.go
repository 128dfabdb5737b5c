package chi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthMiddleware_Disabled(t *testing.T) {
	for _, keys := range [][]string{nil, {"", ""}} {
		handler := BearerAuthMiddleware(keys)(okHandler())
		req := httptest.NewRequest("POST", "/reindex/1/2", http.NoBody)
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Errorf("keys %q: got %d, want %d", keys, rr.Code, http.StatusOK)
		}
	}
}

func TestAuthMiddleware(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		header string
		want   int
	}{
		{"missing header", "/reindex/1/2", "", http.StatusUnauthorized},
		{"basic scheme", "/reindex/1/2", "Basic dXNlcjpwYXNz", http.StatusUnauthorized},
		{"empty token", "/reindex/1/2", "Bearer ", http.StatusUnauthorized},
		{"wrong key", "/reindex/1/2", "Bearer nope", http.StatusUnauthorized},
		{"valid key", "/reindex/1/2", "Bearer secret", http.StatusOK},
		{"second key", "/schema", "Bearer other", http.StatusOK},
		{"healthz exempt", "/healthz", "", http.StatusOK},
		{"metrics exempt", "/metrics", "", http.StatusOK},
	}

	handler := BearerAuthMiddleware([]string{"secret", "other"})(okHandler())
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", tc.path, http.NoBody)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			if rr.Code != tc.want {
				t.Fatalf("got %d, want %d", rr.Code, tc.want)
			}
			if tc.want != http.StatusUnauthorized {
				return
			}
			var errResp ErrorResponse
			if err := json.NewDecoder(rr.Body).Decode(&errResp); err != nil {
				t.Fatalf("decode error response: %v", err)
			}
			if errResp.Code != CodeUnauthorized {
				t.Errorf("code = %q", errResp.Code)
			}
		})
	}
}
