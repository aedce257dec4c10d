package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestAPIError_Error(t *testing.T) {
	tests := []struct {
		err  APIError
		want string
	}{
		{APIError{Status: 401, Message: "invalid username or password"}, "invalid username or password"},
		{APIError{Status: 401, Message: "login required"}, "not logged in or session expired (run: mydiary login)"},
		{APIError{Status: 401}, "not logged in or session expired (run: mydiary login)"},
		{APIError{Status: 404, Message: "diary not found"}, "API error (404): diary not found"},
		{APIError{Status: 502}, "API error: status 502"},
	}
	for _, tc := range tests {
		if got := tc.err.Error(); got != tc.want {
			t.Errorf("%+v: got %q, want %q", tc.err, got, tc.want)
		}
	}
}

func TestDoJSON_WrongPasswordShowsServerMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"success":false,"message":"invalid username or password"}`))
	}))
	defer srv.Close()

	c := &Client{BaseURL: srv.URL, HTTP: srv.Client()}
	err := c.DoJSON(context.Background(), http.MethodPost, "/api/users/token", map[string]string{"username": "a"}, nil)

	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusUnauthorized {
		t.Fatalf("expected 401 APIError, got %v", err)
	}
	if err.Error() != "invalid username or password" {
		t.Errorf("message: got %q", err.Error())
	}
}
