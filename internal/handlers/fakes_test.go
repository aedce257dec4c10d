package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/crucial707/mydiary/internal/auth"
	"github.com/crucial707/mydiary/internal/models"
)

var errNotStubbed = errors.New("not stubbed")

// fakeAccounts lets each test stub only the calls it exercises.
type fakeAccounts struct {
	register          func(auth.RegisterInput) (*models.User, error)
	authenticate      func(username, password string) (*models.User, error)
	currentUser       func(id int64) (*models.User, error)
	requestReset      func(username, email string) error
	resetPassword     func(token, password string) error
	findUsername      func(email string) (string, error)
	usernameAvailable func(username string) (bool, error)
	emailAvailable    func(email string) (bool, error)
}

func (f *fakeAccounts) Register(_ context.Context, in auth.RegisterInput) (*models.User, error) {
	if f.register == nil {
		return nil, errNotStubbed
	}
	return f.register(in)
}

func (f *fakeAccounts) Authenticate(_ context.Context, username, password string) (*models.User, error) {
	if f.authenticate == nil {
		return nil, errNotStubbed
	}
	return f.authenticate(username, password)
}

func (f *fakeAccounts) CurrentUser(_ context.Context, id int64) (*models.User, error) {
	if f.currentUser == nil {
		return nil, errNotStubbed
	}
	return f.currentUser(id)
}

func (f *fakeAccounts) RequestPasswordReset(_ context.Context, username, email string) error {
	if f.requestReset == nil {
		return errNotStubbed
	}
	return f.requestReset(username, email)
}

func (f *fakeAccounts) ResetPassword(_ context.Context, token, password string) error {
	if f.resetPassword == nil {
		return errNotStubbed
	}
	return f.resetPassword(token, password)
}

func (f *fakeAccounts) FindUsername(_ context.Context, email string) (string, error) {
	if f.findUsername == nil {
		return "", errNotStubbed
	}
	return f.findUsername(email)
}

func (f *fakeAccounts) UsernameAvailable(_ context.Context, username string) (bool, error) {
	if f.usernameAvailable == nil {
		return false, errNotStubbed
	}
	return f.usernameAvailable(username)
}

func (f *fakeAccounts) EmailAvailable(_ context.Context, email string) (bool, error) {
	if f.emailAvailable == nil {
		return false, errNotStubbed
	}
	return f.emailAvailable(email)
}

func jsonBody(t *testing.T, v interface{}) *bytes.Reader {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	return bytes.NewReader(b)
}

func decodeResponse(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, rr.Body.String())
	}
	return out
}
