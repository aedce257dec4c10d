package auth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/crucial707/mydiary/internal/mail"
	"github.com/crucial707/mydiary/internal/models"
	"github.com/crucial707/mydiary/internal/repo"
)

// assertErrorCode asserts that err is an oops error with the given code.
func assertErrorCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	oopsErr, ok := oops.AsOops(err)
	require.True(t, ok, "expected oops error, got %T", err)
	assert.Equal(t, code, oopsErr.Code())
}

// ==========================
// In-memory stores
// ==========================

type memData struct {
	mu      sync.Mutex
	nextID  int64
	users   map[int64]*models.User
	tokens  map[string]*models.PasswordResetToken
	failGet error
}

func newMemData() *memData {
	return &memData{users: map[int64]*models.User{}, tokens: map[string]*models.PasswordResetToken{}}
}

type memUsers struct{ d *memData }

func (m memUsers) Create(_ context.Context, u *models.User) (*models.User, error) {
	m.d.mu.Lock()
	defer m.d.mu.Unlock()
	for _, x := range m.d.users {
		if x.Username == u.Username {
			return nil, &repo.DuplicateError{Constraint: repo.ConstraintUsername}
		}
		if x.Email == u.Email {
			return nil, &repo.DuplicateError{Constraint: repo.ConstraintEmail}
		}
	}
	m.d.nextID++
	c := *u
	c.ID = m.d.nextID
	c.CreatedAt = time.Now()
	m.d.users[c.ID] = &c
	out := c
	return &out, nil
}

func (m memUsers) find(match func(*models.User) bool) (*models.User, error) {
	m.d.mu.Lock()
	defer m.d.mu.Unlock()
	if m.d.failGet != nil {
		return nil, m.d.failGet
	}
	for _, u := range m.d.users {
		if match(u) {
			c := *u
			return &c, nil
		}
	}
	return nil, repo.ErrNotFound
}

func (m memUsers) GetByID(_ context.Context, id int64) (*models.User, error) {
	return m.find(func(u *models.User) bool { return u.ID == id })
}

func (m memUsers) GetByUsername(_ context.Context, username string) (*models.User, error) {
	return m.find(func(u *models.User) bool { return u.Username == username })
}

func (m memUsers) GetByEmail(_ context.Context, email string) (*models.User, error) {
	return m.find(func(u *models.User) bool { return u.Email == email })
}

func (m memUsers) GetByUsernameAndEmail(_ context.Context, username, email string) (*models.User, error) {
	return m.find(func(u *models.User) bool { return u.Username == username && u.Email == email })
}

func (m memUsers) UsernameExists(ctx context.Context, username string) (bool, error) {
	_, err := m.GetByUsername(ctx, username)
	if errors.Is(err, repo.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (m memUsers) EmailExists(ctx context.Context, email string) (bool, error) {
	_, err := m.GetByEmail(ctx, email)
	if errors.Is(err, repo.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (m memUsers) UpdatePassword(_ context.Context, id int64, hash string) error {
	m.d.mu.Lock()
	defer m.d.mu.Unlock()
	u, ok := m.d.users[id]
	if !ok {
		return repo.ErrNotFound
	}
	u.PasswordHash = hash
	return nil
}

type memTokens struct{ d *memData }

func (m memTokens) Create(_ context.Context, t *models.PasswordResetToken) (*models.PasswordResetToken, error) {
	m.d.mu.Lock()
	defer m.d.mu.Unlock()
	m.d.nextID++
	c := *t
	c.ID = m.d.nextID
	m.d.tokens[c.Token] = &c
	out := c
	return &out, nil
}

func (m memTokens) GetByToken(_ context.Context, token string) (*models.PasswordResetToken, error) {
	m.d.mu.Lock()
	defer m.d.mu.Unlock()
	t, ok := m.d.tokens[token]
	if !ok {
		return nil, repo.ErrNotFound
	}
	c := *t
	return &c, nil
}

func (m memTokens) GetByTokenForUpdate(ctx context.Context, token string) (*models.PasswordResetToken, error) {
	return m.GetByToken(ctx, token)
}

func (m memTokens) MarkUsed(_ context.Context, id int64) error {
	m.d.mu.Lock()
	defer m.d.mu.Unlock()
	for _, t := range m.d.tokens {
		if t.ID == id && !t.Used {
			t.Used = true
			return nil
		}
	}
	return repo.ErrNotFound
}

func (m memTokens) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	m.d.mu.Lock()
	defer m.d.mu.Unlock()
	var n int64
	for k, t := range m.d.tokens {
		if t.ExpiresAt.Before(now) {
			delete(m.d.tokens, k)
			n++
		}
	}
	return n, nil
}

// memTx serializes transactions, standing in for the row lock.
type memTx struct {
	mu sync.Mutex
	d  *memData
}

func (m *memTx) WithinTx(ctx context.Context, fn TxFunc) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(ctx, memUsers{m.d}, memTokens{m.d})
}

// ==========================
// Mailer
// ==========================

type recordingMailer struct {
	mu   sync.Mutex
	sent []mail.Message
	err  error
}

func (m *recordingMailer) Send(_ context.Context, msg mail.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

func (m *recordingMailer) messages() []mail.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]mail.Message(nil), m.sent...)
}

// ==========================
// Fixture
// ==========================

type fixture struct {
	svc    *Service
	data   *memData
	mailer *recordingMailer
	now    time.Time
	events []string
	evMu   sync.Mutex
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		data:   newMemData(),
		mailer: &recordingMailer{},
		now:    time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	svc, err := NewService(
		memUsers{f.data}, memTokens{f.data}, &memTx{d: f.data},
		NewBcryptHasher(bcrypt.MinCost), f.mailer,
		Options{
			ResetTokenTTL: 30 * time.Minute,
			ResetBaseURL:  "https://diary.example.com/",
			Now:           func() time.Time { return f.now },
			Delay:         func(context.Context) {},
			Observe: func(ev string) {
				f.evMu.Lock()
				f.events = append(f.events, ev)
				f.evMu.Unlock()
			},
		},
	)
	require.NoError(t, err)
	f.svc = svc
	return f
}

func (f *fixture) register(t *testing.T, username, email, password string) *models.User {
	t.Helper()
	u, err := f.svc.Register(context.Background(), RegisterInput{Username: username, Email: email, Password: password})
	require.NoError(t, err)
	return u
}

func (f *fixture) eventList() []string {
	f.evMu.Lock()
	defer f.evMu.Unlock()
	return append([]string(nil), f.events...)
}
