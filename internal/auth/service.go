// Package auth implements account registration, login and password recovery.
package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/samber/oops"

	"github.com/crucial707/mydiary/internal/logging"
	"github.com/crucial707/mydiary/internal/mail"
	"github.com/crucial707/mydiary/internal/models"
	"github.com/crucial707/mydiary/internal/repo"
)

// Password bounds, counted in characters after trimming surrounding spaces.
const (
	MinPasswordLen = 8
	MaxPasswordLen = 20
	// MaxPasswordBytes is bcrypt's input limit; multi-byte characters can hit it before MaxPasswordLen.
	MaxPasswordBytes = 72
)

// Lookup bounds for availability probes.
const (
	MinUsernameLen = 4
	MinEmailLen    = 5
)

// DefaultResetTokenTTL applies when Options.ResetTokenTTL is zero.
const DefaultResetTokenTTL = 30 * time.Minute

const mailTimeout = 30 * time.Second

// Options tunes a Service. Zero values pick the defaults.
type Options struct {
	ResetTokenTTL time.Duration
	// ResetBaseURL prefixes the emailed link: <base>/reset_password.html?token=...
	ResetBaseURL string
	Now          func() time.Time
	Logger       *slog.Logger
	// Audit, when set, records completed password resets.
	Audit AuditLog
	// Delay runs on every reset request to blur timing. Defaults to a
	// random 20-40ms sleep.
	Delay func(ctx context.Context)
	// Observe, when set, is told how each reset request and email ended.
	Observe func(event string)
}

// Observe events.
const (
	EventResetIssued   = "issued"
	EventResetNoMatch  = "no_match"
	EventMailSent      = "mail_sent"
	EventMailFailed    = "mail_failed"
	EventResetComplete = "reset_complete"
)

// RegisterInput is a signup request.
type RegisterInput struct {
	Username string
	Email    string
	Password string
	Profile  models.Profile
}

// Service is the account service. It is safe for concurrent use.
type Service struct {
	users  UserStore
	tokens TokenStore
	tx     Transactor
	hasher PasswordHasher
	mailer mail.Mailer
	opts   Options

	// dummyHash is verified against on lookup misses so both paths pay for bcrypt.
	dummyHash string

	mailWG sync.WaitGroup
}

func NewService(users UserStore, tokens TokenStore, tx Transactor, hasher PasswordHasher, mailer mail.Mailer, opts Options) (*Service, error) {
	if opts.ResetTokenTTL <= 0 {
		opts.ResetTokenTTL = DefaultResetTokenTTL
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Delay == nil {
		opts.Delay = enumerationDelay
	}
	if opts.Observe == nil {
		opts.Observe = func(string) {}
	}
	opts.ResetBaseURL = strings.TrimRight(opts.ResetBaseURL, "/")

	dummy, err := hasher.Hash("mydiary-timing-placeholder")
	if err != nil {
		return nil, fmt.Errorf("prepare dummy hash: %w", err)
	}

	return &Service{
		users:     users,
		tokens:    tokens,
		tx:        tx,
		hasher:    hasher,
		mailer:    mailer,
		opts:      opts,
		dummyHash: dummy,
	}, nil
}

// ==========================
// Register
// ==========================
func (s *Service) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	username := strings.TrimSpace(in.Username)
	email := strings.TrimSpace(in.Email)
	if username == "" || email == "" {
		return nil, oops.Code(CodeValidation).Errorf("username and email are required")
	}
	if err := checkPassword(in.Password); err != nil {
		return nil, err
	}

	taken, err := s.users.UsernameExists(ctx, username)
	if err != nil {
		return nil, internal("UsernameExists", err)
	}
	if taken {
		return nil, oops.Code(CodeDuplicateUsername).With("username", username).Errorf("username is already taken")
	}
	taken, err = s.users.EmailExists(ctx, email)
	if err != nil {
		return nil, internal("EmailExists", err)
	}
	if taken {
		return nil, oops.Code(CodeDuplicateEmail).Errorf("email is already registered")
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, internal("Hash", err)
	}

	user, err := s.users.Create(ctx, &models.User{
		Username:     username,
		PasswordHash: hash,
		Email:        email,
		Name:         strings.TrimSpace(in.Profile.Name),
		BirthDate:    in.Profile.BirthDate,
		Gender:       strings.TrimSpace(in.Profile.Gender),
		Phone:        strings.TrimSpace(in.Profile.Phone),
	})
	if err != nil {
		// A concurrent signup can win between the checks and the insert.
		var dup *repo.DuplicateError
		if errors.As(err, &dup) {
			if dup.Constraint == repo.ConstraintEmail {
				return nil, oops.Code(CodeDuplicateEmail).Errorf("email is already registered")
			}
			return nil, oops.Code(CodeDuplicateUsername).With("username", username).Errorf("username is already taken")
		}
		return nil, internal("CreateUser", err)
	}

	s.opts.Logger.InfoContext(ctx, "user registered", "user_id", user.ID)
	return user, nil
}

// ==========================
// Authenticate
// ==========================
func (s *Service) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, oops.Code(CodeValidation).Errorf("username and password are required")
	}

	user, err := s.users.GetByUsername(ctx, username)
	if errors.Is(err, repo.ErrNotFound) {
		_, _ = s.hasher.Verify(password, s.dummyHash)
		return nil, oops.Code(CodeUserNotFound).Errorf("user not found")
	}
	if err != nil {
		return nil, internal("GetByUsername", err)
	}

	ok, err := s.hasher.Verify(password, user.PasswordHash)
	if err != nil {
		return nil, internal("Verify", err)
	}
	if !ok {
		return nil, oops.Code(CodeInvalidCredentials).With("user_id", user.ID).Errorf("invalid credentials")
	}
	return user, nil
}

// CurrentUser resolves a session's user id.
func (s *Service) CurrentUser(ctx context.Context, userID int64) (*models.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, oops.Code(CodeUserNotFound).With("user_id", userID).Errorf("user not found")
	}
	if err != nil {
		return nil, internal("GetByID", err)
	}
	return user, nil
}

// ==========================
// Password reset
// ==========================

// RequestPasswordReset issues and emails a reset token when username and
// email belong to the same account. The result is nil whether or not they
// do; only missing input or a store failure is reported.
func (s *Service) RequestPasswordReset(ctx context.Context, username, email string) error {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)
	if username == "" || email == "" {
		return oops.Code(CodeValidation).Errorf("username and email are required")
	}

	defer s.opts.Delay(ctx)

	user, err := s.users.GetByUsernameAndEmail(ctx, username, email)
	if errors.Is(err, repo.ErrNotFound) {
		_, _ = s.hasher.Verify(username, s.dummyHash)
		s.opts.Observe(EventResetNoMatch)
		return nil
	}
	if err != nil {
		return internal("GetByUsernameAndEmail", err)
	}
	// Keep the match path paying the same bcrypt cost as the miss path.
	_, _ = s.hasher.Verify(username, s.dummyHash)

	token, hash, err := GenerateResetToken()
	if err != nil {
		return internal("GenerateResetToken", err)
	}
	expiresAt := s.opts.Now().Add(s.opts.ResetTokenTTL)
	if _, err := s.tokens.Create(ctx, &models.PasswordResetToken{
		Token:     hash,
		UserID:    user.ID,
		ExpiresAt: expiresAt,
	}); err != nil {
		return internal("CreateResetToken", err)
	}
	s.opts.Observe(EventResetIssued)

	s.sendAsync(ctx, user.ID, s.resetMessage(user.Email, token))
	return nil
}

// sendAsync delivers msg off the request path so a slow relay does not
// reveal that the account exists. Failures are logged and not retried.
func (s *Service) sendAsync(ctx context.Context, userID int64, msg mail.Message) {
	s.mailWG.Add(1)
	go func() {
		defer s.mailWG.Done()
		sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), mailTimeout)
		defer cancel()

		if err := s.mailer.Send(sendCtx, msg); err != nil {
			s.opts.Observe(EventMailFailed)
			logging.LogError(sendCtx, s.opts.Logger, "password reset email failed",
				oops.Code(CodeInternal).With("operation", "SendMail", "user_id", userID).Wrap(err))
			return
		}
		s.opts.Observe(EventMailSent)
		s.opts.Logger.InfoContext(sendCtx, "password reset email sent", "user_id", userID)
	}()
}

// Wait blocks until queued reset emails have been handed to the mailer.
func (s *Service) Wait() {
	s.mailWG.Wait()
}

func (s *Service) resetMessage(to, token string) mail.Message {
	minutes := int(s.opts.ResetTokenTTL / time.Minute)
	link := s.opts.ResetBaseURL + "/reset_password.html?token=" + token
	body := fmt.Sprintf(
		"A password reset was requested for your MyDiary account.\n\n"+
			"Open the link below to choose a new password:\n%s\n\n"+
			"The link expires in %d minutes and can be used once.\n"+
			"If you did not request this, you can ignore this email.\n",
		link, minutes,
	)
	return mail.Message{To: to, Subject: "MyDiary password reset", Body: body}
}

// ResetPassword consumes token and sets newPassword. The password change and
// the token's used flag are committed in one transaction.
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return oops.Code(CodeResetTokenInvalid).Errorf("invalid reset token")
	}
	hash := HashResetToken(token)

	t, err := s.tokens.GetByToken(ctx, hash)
	if errors.Is(err, repo.ErrNotFound) {
		return oops.Code(CodeResetTokenInvalid).Errorf("invalid reset token")
	}
	if err != nil {
		return internal("GetByToken", err)
	}
	if err := s.checkToken(t); err != nil {
		return err
	}
	if err := checkPassword(newPassword); err != nil {
		return err
	}

	pwHash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return internal("Hash", err)
	}

	var userID int64
	err = s.tx.WithinTx(ctx, func(ctx context.Context, users UserStore, tokens TokenStore) error {
		// Re-read under lock; another reset may have consumed it meanwhile.
		locked, err := tokens.GetByTokenForUpdate(ctx, hash)
		if errors.Is(err, repo.ErrNotFound) {
			return oops.Code(CodeResetTokenInvalid).Errorf("invalid reset token")
		}
		if err != nil {
			return internal("GetByTokenForUpdate", err)
		}
		if err := s.checkToken(locked); err != nil {
			return err
		}
		if err := users.UpdatePassword(ctx, locked.UserID, pwHash); err != nil {
			return internal("UpdatePassword", err)
		}
		if err := tokens.MarkUsed(ctx, locked.ID); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return oops.Code(CodeResetTokenUsed).Errorf("reset token has already been used")
			}
			return internal("MarkUsed", err)
		}
		userID = locked.UserID
		return nil
	})
	if err != nil {
		if ErrorCode(err) != "" {
			return err
		}
		return internal("ResetPasswordTx", err)
	}

	s.opts.Observe(EventResetComplete)
	s.opts.Logger.InfoContext(ctx, "password reset completed", "user_id", userID)
	if s.opts.Audit != nil {
		if err := s.opts.Audit.Log(ctx, userID, repo.ActionPasswordReset, repo.ResourceUser, userID, ""); err != nil {
			logging.LogError(ctx, s.opts.Logger, "audit log failed", err)
		}
	}
	return nil
}

// checkToken applies expiry before the used flag: an expired token reports
// expired whatever its used state.
func (s *Service) checkToken(t *models.PasswordResetToken) error {
	if t.Expired(s.opts.Now()) {
		return oops.Code(CodeResetTokenExpired).With("token_id", t.ID).Errorf("reset token has expired")
	}
	if t.Used {
		return oops.Code(CodeResetTokenUsed).With("token_id", t.ID).Errorf("reset token has already been used")
	}
	return nil
}

// PurgeExpiredTokens deletes reset tokens past their expiry.
func (s *Service) PurgeExpiredTokens(ctx context.Context) (int64, error) {
	n, err := s.tokens.DeleteExpired(ctx, s.opts.Now())
	if err != nil {
		return 0, internal("DeleteExpired", err)
	}
	return n, nil
}

// ==========================
// Lookups
// ==========================

// FindUsername returns the masked username registered to email.
func (s *Service) FindUsername(ctx context.Context, email string) (string, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return "", oops.Code(CodeValidation).Errorf("email is required")
	}
	user, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, repo.ErrNotFound) {
		return "", oops.Code(CodeUserNotFound).Errorf("no account is registered with that email")
	}
	if err != nil {
		return "", internal("GetByEmail", err)
	}
	return MaskUsername(user.Username), nil
}

// UsernameAvailable reports whether username is free to register.
func (s *Service) UsernameAvailable(ctx context.Context, username string) (bool, error) {
	username = strings.TrimSpace(username)
	if utf8.RuneCountInString(username) < MinUsernameLen {
		return false, oops.Code(CodeValidation).Errorf("username must be at least %d characters", MinUsernameLen)
	}
	exists, err := s.users.UsernameExists(ctx, username)
	if err != nil {
		return false, internal("UsernameExists", err)
	}
	return !exists, nil
}

// EmailAvailable reports whether email is free to register.
func (s *Service) EmailAvailable(ctx context.Context, email string) (bool, error) {
	email = strings.TrimSpace(email)
	if !strings.Contains(email, "@") || utf8.RuneCountInString(email) < MinEmailLen {
		return false, oops.Code(CodeValidation).Errorf("invalid email address")
	}
	exists, err := s.users.EmailExists(ctx, email)
	if err != nil {
		return false, internal("EmailExists", err)
	}
	return !exists, nil
}

func checkPassword(pw string) error {
	n := utf8.RuneCountInString(strings.TrimSpace(pw))
	if n < MinPasswordLen || n > MaxPasswordLen {
		return oops.Code(CodePasswordPolicy).
			Errorf("password must be %d to %d characters", MinPasswordLen, MaxPasswordLen)
	}
	if len(pw) > MaxPasswordBytes {
		return oops.Code(CodePasswordPolicy).
			Errorf("password must be at most %d bytes", MaxPasswordBytes)
	}
	return nil
}

func enumerationDelay(ctx context.Context) {
	const minMs, maxMs = 20, 40
	n, err := rand.Int(rand.Reader, big.NewInt(maxMs-minMs+1))
	if err != nil {
		return
	}
	timer := time.NewTimer(time.Duration(minMs+n.Int64()) * time.Millisecond)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}
