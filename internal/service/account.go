package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/iliyamo/civic-incident-reporting/internal/apperr"
	"github.com/iliyamo/civic-incident-reporting/internal/auth"
	"github.com/iliyamo/civic-incident-reporting/internal/metrics"
	"github.com/iliyamo/civic-incident-reporting/internal/model"
)

// ErrAdminExists is returned by SeedAdmin once any admin account exists.
var ErrAdminExists = errors.New("an admin account already exists")

// Session is what a successful login hands back.
type Session struct {
	AccessToken  auth.IssuedToken `json:"access_token"`
	RefreshToken auth.IssuedToken `json:"refresh_token"`
	User         model.User       `json:"user"`
}

// AccountService covers signup, login, token exchange and password resets.
type AccountService struct {
	users    UserStore
	creds    *auth.Credentials
	tokens   *auth.TokenService
	notifier Notifier
	baseURL  string
	log      *zap.SugaredLogger
}

func NewAccountService(users UserStore, creds *auth.Credentials, tokens *auth.TokenService, notifier Notifier, baseURL string, log *zap.SugaredLogger) *AccountService {
	if users == nil || creds == nil || tokens == nil || notifier == nil {
		panic("nil dependency passed to NewAccountService")
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &AccountService{
		users:    users,
		creds:    creds,
		tokens:   tokens,
		notifier: notifier,
		baseURL:  strings.TrimRight(baseURL, "/"),
		log:      log,
	}
}

// Signup registers a regular user.
func (s *AccountService) Signup(ctx context.Context, in SignupInput) (model.User, error) {
	return s.register(ctx, in, model.RoleUser)
}

// SeedAdmin creates the first admin account and refuses once one exists.
func (s *AccountService) SeedAdmin(ctx context.Context, in SignupInput) (model.User, error) {
	exists, err := s.users.HasAdmin(ctx)
	if err != nil {
		return model.User{}, err
	}
	if exists {
		return model.User{}, ErrAdminExists
	}
	return s.register(ctx, in, model.RoleAdmin)
}

func (s *AccountService) register(ctx context.Context, in SignupInput, role model.Role) (model.User, error) {
	in.normalize()
	if err := validate(in); err != nil {
		return model.User{}, err
	}
	if err := s.checkFree(ctx, "email", s.users.GetByEmail, in.Email); err != nil {
		return model.User{}, err
	}
	if err := s.checkFree(ctx, "phone", s.users.GetByPhone, in.Phone); err != nil {
		return model.User{}, err
	}
	u := model.User{Name: in.Name, Email: in.Email, Phone: in.Phone, Role: role}
	if err := s.creds.SetPassword(&u, in.Password); err != nil {
		return model.User{}, err
	}
	// the unique keys still decide races between concurrent signups
	if err := s.users.Create(ctx, &u); err != nil {
		return model.User{}, err
	}
	s.log.Infow("user registered", "user_id", u.ID, "role", u.Role)
	return u, nil
}

func (s *AccountService) checkFree(ctx context.Context, field string, lookup func(context.Context, string) (model.User, error), value string) error {
	_, err := lookup(ctx, value)
	switch {
	case err == nil:
		return &apperr.DuplicateError{Field: field}
	case errors.Is(err, apperr.ErrNotFound):
		return nil
	default:
		return err
	}
}

// Login checks the password and issues an access and a refresh token. An
// unknown email and a wrong password are indistinguishable to the caller.
func (s *AccountService) Login(ctx context.Context, in LoginInput) (Session, error) {
	if err := validate(in); err != nil {
		return Session{}, err
	}
	u, err := s.users.GetByEmail(ctx, in.Email)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return Session{}, apperr.ErrInvalidCredentials
		}
		return Session{}, err
	}
	if !s.creds.VerifyPassword(u, in.Password) {
		s.log.Debugw("login rejected", "user_id", u.ID)
		return Session{}, apperr.ErrInvalidCredentials
	}
	access, err := s.tokens.IssueAccess(u.ID)
	if err != nil {
		return Session{}, err
	}
	refresh, err := s.tokens.IssueRefresh(u.ID)
	if err != nil {
		return Session{}, err
	}
	return Session{AccessToken: access, RefreshToken: refresh, User: u}, nil
}

// Authenticate turns a raw access token into a Caller. The subject is looked
// up again so role changes and removed accounts take effect immediately.
func (s *AccountService) Authenticate(ctx context.Context, raw string) (*auth.Caller, error) {
	u, err := s.userFromToken(ctx, raw, auth.KindAccess)
	if err != nil {
		return nil, err
	}
	return auth.CallerFromUser(u), nil
}

// Refresh exchanges a refresh token for a new access token.
func (s *AccountService) Refresh(ctx context.Context, raw string) (auth.IssuedToken, error) {
	u, err := s.userFromToken(ctx, raw, auth.KindRefresh)
	if err != nil {
		return auth.IssuedToken{}, err
	}
	return s.tokens.IssueAccess(u.ID)
}

func (s *AccountService) userFromToken(ctx context.Context, raw string, kind auth.TokenKind) (model.User, error) {
	claims, err := s.tokens.Validate(raw, kind)
	if err != nil {
		return model.User{}, err
	}
	id, err := claims.UserID()
	if err != nil {
		return model.User{}, err
	}
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return model.User{}, fmt.Errorf("%w: account no longer exists", apperr.ErrUnauthenticated)
		}
		return model.User{}, err
	}
	return u, nil
}

// Me returns the caller's own account.
func (s *AccountService) Me(ctx context.Context, caller *auth.Caller) (model.User, error) {
	if err := auth.Authorize(caller, auth.ActionViewAccount, auth.Resource{}).Err(); err != nil {
		return model.User{}, err
	}
	return s.users.GetByID(ctx, caller.ID)
}

// RequestPasswordReset mails a reset link to a registered address. Unknown
// addresses fail with apperr.ErrNotFound. A delivery failure is logged and
// does not fail the request.
func (s *AccountService) RequestPasswordReset(ctx context.Context, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return apperr.Invalid("email", "cannot be blank")
	}
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	tok, err := s.tokens.IssueReset(u.Email)
	if err != nil {
		return err
	}
	link := s.baseURL + "/api/v1/auth/password-reset/" + url.PathEscape(tok.Token)
	n := model.Notification{
		Kind:           model.NotifyPasswordReset,
		RecipientEmail: u.Email,
		Subject:        "Password Reset Request",
		Body:           fmt.Sprintf("Hi %s,\n\nTo reset your password, visit the following link:\n%s\n\nThe link expires at %s.\n", u.Name, link, tok.Expires.Format("2006-01-02 15:04 MST")),
	}
	deliver(ctx, s.notifier, s.log, n)
	return nil
}

// ResetPassword sets a new password for the address bound to a reset token.
func (s *AccountService) ResetPassword(ctx context.Context, raw, password string) error {
	claims, err := s.tokens.Validate(raw, auth.KindReset)
	if err != nil {
		return err
	}
	u, err := s.users.GetByEmail(ctx, claims.Subject)
	if err != nil {
		return err
	}
	hash, err := s.creds.Hash(password)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePasswordHash(ctx, u.ID, hash); err != nil {
		return err
	}
	s.log.Infow("password reset", "user_id", u.ID)
	return nil
}

// deliver hands n to the notifier, logging and counting the outcome.
func deliver(ctx context.Context, notifier Notifier, log *zap.SugaredLogger, n model.Notification) {
	if err := notifier.Notify(ctx, n); err != nil {
		metrics.Notification(string(n.Kind), "failed")
		log.Warnw("notification not delivered", "kind", n.Kind, "recipient", n.RecipientEmail, "error", err)
		return
	}
	metrics.Notification(string(n.Kind), "queued")
}
