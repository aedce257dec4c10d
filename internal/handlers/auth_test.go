package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/samber/oops"

	"github.com/crucial707/mydiary/internal/auth"
	"github.com/crucial707/mydiary/internal/middleware"
	"github.com/crucial707/mydiary/internal/models"
	"github.com/crucial707/mydiary/internal/session"
)

var testSecret = []byte("handler-test-secret")

func newAuthHandler(acc *fakeAccounts) (*AuthHandler, *session.MemoryStore) {
	store := session.NewMemoryStore(time.Hour)
	return &AuthHandler{
		Accounts:   acc,
		Sessions:   store,
		Secret:     testSecret,
		TokenTTL:   30 * time.Minute,
		SessionTTL: time.Hour,
	}, store
}

func validLogin(username, password string) (*models.User, error) {
	if username != "diarist" {
		return nil, oops.Code(auth.CodeUserNotFound).Errorf("user not found")
	}
	if password != "secret123" {
		return nil, oops.Code(auth.CodeInvalidCredentials).Errorf("invalid credentials")
	}
	return &models.User{ID: 7, Username: "diarist", Email: "d@example.com"}, nil
}

func sessionCookie(rr *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rr.Result().Cookies() {
		if c.Name == middleware.SessionCookie {
			return c
		}
	}
	return nil
}

func TestAuthHandler_Signup(t *testing.T) {
	var got auth.RegisterInput
	h, _ := newAuthHandler(&fakeAccounts{register: func(in auth.RegisterInput) (*models.User, error) {
		got = in
		return &models.User{ID: 1, Username: in.Username}, nil
	}})

	req := httptest.NewRequest("POST", "/api/users/signup", jsonBody(t, map[string]string{
		"username":  "diarist",
		"email":     "d@example.com",
		"password":  "secret123",
		"name":      "Dee",
		"birthDate": "1990-04-02",
	}))
	rr := httptest.NewRecorder()
	h.Signup(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("Signup status: got %d, want 200 (%s)", rr.Code, rr.Body.String())
	}
	out := decodeResponse(t, rr)
	if out["success"] != true {
		t.Errorf("success: got %v", out["success"])
	}
	if got.Username != "diarist" || got.Profile.Name != "Dee" {
		t.Errorf("unexpected register input: %+v", got)
	}
	if got.Profile.BirthDate == nil || got.Profile.BirthDate.Format("2006-01-02") != "1990-04-02" {
		t.Errorf("birth date not parsed: %v", got.Profile.BirthDate)
	}
}

func TestAuthHandler_Signup_Validation(t *testing.T) {
	h, _ := newAuthHandler(&fakeAccounts{})

	req := httptest.NewRequest("POST", "/api/users/signup", jsonBody(t, map[string]string{
		"username": "diarist",
		"email":    "not-an-email",
		"password": "secret123",
	}))
	rr := httptest.NewRecorder()
	h.Signup(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("Signup status: got %d, want 400", rr.Code)
	}
	out := decodeResponse(t, rr)
	fields, _ := out["fields"].(map[string]interface{})
	if fields["email"] != "email" {
		t.Errorf("fields: got %v, want email rule", out["fields"])
	}
}

func TestAuthHandler_Signup_ServiceErrors(t *testing.T) {
	cases := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{"duplicate username", oops.Code(auth.CodeDuplicateUsername).Errorf("username is already taken"), http.StatusConflict, "username is already taken"},
		{"password policy", oops.Code(auth.CodePasswordPolicy).Errorf("password must be 8 to 20 characters"), http.StatusBadRequest, "password must be 8 to 20 characters"},
		{"internal", oops.Code(auth.CodeInternal).Wrap(errors.New("connection reset")), http.StatusInternalServerError, ErrMessageInternal},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h, _ := newAuthHandler(&fakeAccounts{register: func(auth.RegisterInput) (*models.User, error) {
				return nil, tc.err
			}})
			req := httptest.NewRequest("POST", "/api/users/signup", jsonBody(t, map[string]string{
				"username": "diarist", "email": "d@example.com", "password": "x",
			}))
			rr := httptest.NewRecorder()
			h.Signup(rr, req)

			if rr.Code != tc.status {
				t.Fatalf("status: got %d, want %d", rr.Code, tc.status)
			}
			out := decodeResponse(t, rr)
			if out["success"] != false || out["message"] != tc.message {
				t.Errorf("body: got %v", out)
			}
		})
	}
}

func TestAuthHandler_Login_SetsSessionCookie(t *testing.T) {
	h, store := newAuthHandler(&fakeAccounts{authenticate: validLogin})

	req := httptest.NewRequest("POST", "/api/users/login", jsonBody(t, credentials{Username: "diarist", Password: "secret123"}))
	rr := httptest.NewRecorder()
	h.Login(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("Login status: got %d, want 200", rr.Code)
	}
	c := sessionCookie(rr)
	if c == nil || c.Value == "" {
		t.Fatal("expected session cookie")
	}
	if !c.HttpOnly || c.SameSite != http.SameSiteLaxMode {
		t.Errorf("cookie flags: %+v", c)
	}
	id, err := store.Get(context.Background(), c.Value)
	if err != nil || id != 7 {
		t.Errorf("session lookup: got (%d, %v), want (7, nil)", id, err)
	}
	out := decodeResponse(t, rr)
	data, _ := out["data"].(map[string]interface{})
	if data["username"] != "diarist" {
		t.Errorf("data: got %v", out["data"])
	}
	if _, leaked := data["password_hash"]; leaked {
		t.Error("password hash must not be serialized")
	}
}

func TestAuthHandler_Login_ReplacesExistingSession(t *testing.T) {
	h, store := newAuthHandler(&fakeAccounts{authenticate: validLogin})
	old, err := store.Create(context.Background(), 7)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	req := httptest.NewRequest("POST", "/api/users/login", jsonBody(t, credentials{Username: "diarist", Password: "secret123"}))
	req.AddCookie(&http.Cookie{Name: middleware.SessionCookie, Value: old})
	rr := httptest.NewRecorder()
	h.Login(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("Login status: got %d, want 200", rr.Code)
	}
	if _, err := store.Get(context.Background(), old); !errors.Is(err, session.ErrNotFound) {
		t.Errorf("old session: got %v, want ErrNotFound", err)
	}
	if store.Len() != 1 {
		t.Errorf("sessions: got %d, want 1", store.Len())
	}
}

func TestAuthHandler_Login_Unauthorized(t *testing.T) {
	for _, in := range []credentials{
		{Username: "nobody", Password: "secret123"},
		{Username: "diarist", Password: "wrong-pass"},
	} {
		h, store := newAuthHandler(&fakeAccounts{authenticate: validLogin})
		req := httptest.NewRequest("POST", "/api/users/login", jsonBody(t, in))
		rr := httptest.NewRecorder()
		h.Login(rr, req)

		if rr.Code != http.StatusUnauthorized {
			t.Errorf("%s: status got %d, want 401", in.Username, rr.Code)
		}
		out := decodeResponse(t, rr)
		if out["message"] != "invalid username or password" {
			t.Errorf("%s: message got %v", in.Username, out["message"])
		}
		if store.Len() != 0 || sessionCookie(rr) != nil {
			t.Errorf("%s: no session expected", in.Username)
		}
	}
}

func TestAuthHandler_Login_BadJSON(t *testing.T) {
	h, _ := newAuthHandler(&fakeAccounts{authenticate: validLogin})
	req := httptest.NewRequest("POST", "/api/users/login", jsonBody(t, "nope"))
	rr := httptest.NewRecorder()
	h.Login(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400", rr.Code)
	}
}

func TestAuthHandler_Token(t *testing.T) {
	h, store := newAuthHandler(&fakeAccounts{authenticate: validLogin})

	req := httptest.NewRequest("POST", "/api/users/token", jsonBody(t, credentials{Username: "diarist", Password: "secret123"}))
	rr := httptest.NewRecorder()
	h.Token(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("Token status: got %d, want 200", rr.Code)
	}
	out := decodeResponse(t, rr)
	token, _ := out["token"].(string)
	id, err := middleware.ParseToken(testSecret, token)
	if err != nil || id != 7 {
		t.Errorf("ParseToken: got (%d, %v), want (7, nil)", id, err)
	}
	if out["expires_at"] == "" {
		t.Error("expected expires_at")
	}
	if store.Len() != 0 {
		t.Error("Token must not start a cookie session")
	}
}

func TestAuthHandler_Me(t *testing.T) {
	h, _ := newAuthHandler(&fakeAccounts{currentUser: func(id int64) (*models.User, error) {
		if id != 7 {
			return nil, oops.Code(auth.CodeUserNotFound).Errorf("user not found")
		}
		return &models.User{ID: 7, Username: "diarist"}, nil
	}})

	req := httptest.NewRequest("GET", "/api/users/me", nil)
	req = req.WithContext(middleware.WithUserID(req.Context(), 7))
	rr := httptest.NewRecorder()
	h.Me(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("Me status: got %d, want 200", rr.Code)
	}

	// A session that outlived its account.
	req = httptest.NewRequest("GET", "/api/users/me", nil)
	req = req.WithContext(middleware.WithUserID(req.Context(), 99))
	rr = httptest.NewRecorder()
	h.Me(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("Me for deleted user: got %d, want 401", rr.Code)
	}
}

func TestAuthHandler_Logout(t *testing.T) {
	h, store := newAuthHandler(&fakeAccounts{})
	token, err := store.Create(context.Background(), 7)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	req := httptest.NewRequest("POST", "/api/users/logout", nil)
	req.AddCookie(&http.Cookie{Name: middleware.SessionCookie, Value: token})
	rr := httptest.NewRecorder()
	h.Logout(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("Logout status: got %d, want 200", rr.Code)
	}
	if _, err := store.Get(context.Background(), token); !errors.Is(err, session.ErrNotFound) {
		t.Errorf("session after logout: got %v, want ErrNotFound", err)
	}
	c := sessionCookie(rr)
	if c == nil || c.MaxAge >= 0 {
		t.Errorf("expected cleared cookie, got %+v", c)
	}

	// Without a cookie logout still succeeds.
	rr = httptest.NewRecorder()
	h.Logout(rr, httptest.NewRequest("POST", "/api/users/logout", nil))
	if rr.Code != http.StatusOK {
		t.Errorf("anonymous Logout: got %d, want 200", rr.Code)
	}
}
