package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	auditdomain "account-service/internal/audit/domain"
	"account-service/internal/mailer"
	"account-service/internal/otp"
	otpdomain "account-service/internal/otp/domain"
	"account-service/internal/security"
	userdomain "account-service/internal/user/domain"
)

// Sentinel errors for the account service; the handler maps them to HTTP statuses.
var (
	ErrEmailInUse          = errors.New("email already in use")
	ErrUserNotFound        = errors.New("user not found")
	ErrAlreadyActive       = errors.New("user already active")
	ErrAccountDeleted      = errors.New("this account is deleted")
	ErrNotActive           = errors.New("user is not active")
	ErrInvalidCredentials  = errors.New("no user matching the credentials")
	ErrTwoFactorDisabled   = errors.New("two-factor authentication is disabled")
	ErrAlreadyDeleted      = errors.New("user already deleted")
	ErrInvalidRefreshToken = errors.New("invalid or expired refresh token")
)

// ErrInvalidInput wraps request validation failures so the handler can map
// them to a 400 without enumerating each message.
var ErrInvalidInput = errors.New("invalid input")

// TokenPair holds a freshly minted access/refresh token pair.
type TokenPair struct {
	AccessToken     string
	RefreshToken    string
	AccessExpiresAt time.Time
}

// UserEcho is the client-facing identity payload returned alongside tokens.
// It is a superset of the signed subject claim: the token stays minimal while
// the client gets richer display data.
type UserEcho struct {
	ID          string
	Email       string
	FirstName   string
	LastName    string
	IsSuperuser bool
}

// LoginResult is the outcome of Login or VerifyTwoFactor: either a two-factor
// challenge (no tokens) or a token pair with the user echo.
type LoginResult struct {
	TwoFactorRequired bool
	Tokens            *TokenPair
	User              *UserEcho
}

// UserRepo is the minimal user repository needed by the account service.
type UserRepo interface {
	GetByID(ctx context.Context, id string) (*userdomain.User, error)
	GetByEmail(ctx context.Context, email string) (*userdomain.User, error)
	Create(ctx context.Context, u *userdomain.User) error
	Update(ctx context.Context, u *userdomain.User) error
}

// Mailer enqueues outbound mail for asynchronous delivery.
type Mailer interface {
	Enqueue(m mailer.Message)
}

// AuditLogger records account events, best-effort.
type AuditLogger interface {
	LogEvent(ctx context.Context, userID, action, metadata string)
}

// Service implements registration, activation, login with an optional
// two-factor gate, password resets, profile access, soft deletion, and token
// refresh. Login gates run in a fixed order and short-circuit on the first
// failure; the order limits what a caller can learn about an account.
type Service struct {
	userRepo UserRepo
	otps     *otp.Engine
	hasher   *security.Hasher
	tokens   *security.TokenProvider
	mail     Mailer
	audit    AuditLogger

	activationWindow time.Duration
	shortWindow      time.Duration

	nowF func() time.Time

	tracer        trace.Tracer
	loginAttempts metric.Int64Counter
	otpIssued     metric.Int64Counter
}

// NewService returns a Service with the given dependencies.
// audit may be nil; events are then not recorded.
func NewService(
	userRepo UserRepo,
	otps *otp.Engine,
	hasher *security.Hasher,
	tokens *security.TokenProvider,
	mail Mailer,
	audit AuditLogger,
	activationWindow, shortWindow time.Duration,
) *Service {
	meter := otel.Meter("account-service/account")
	loginAttempts, _ := meter.Int64Counter("account.login.attempts",
		metric.WithDescription("Login attempts by outcome"))
	otpIssued, _ := meter.Int64Counter("account.otp.issued",
		metric.WithDescription("One-time codes issued by purpose"))
	return &Service{
		userRepo:         userRepo,
		otps:             otps,
		hasher:           hasher,
		tokens:           tokens,
		mail:             mail,
		audit:            audit,
		activationWindow: activationWindow,
		shortWindow:      shortWindow,
		nowF:             func() time.Time { return time.Now().UTC() },
		tracer:           otel.Tracer("account-service/account"),
		loginAttempts:    loginAttempts,
		otpIssued:        otpIssued,
	}
}

// WithNow overrides the service clock. For tests.
func (s *Service) WithNow(nowF func() time.Time) *Service {
	s.nowF = nowF
	return s
}

// Register creates an inactive user, issues an activation code, and queues
// the activation email. Soft-deleted accounts keep their email reserved, so
// a matching row of any lifecycle state means conflict.
func (s *Service) Register(ctx context.Context, email, password, firstName, lastName string) (*userdomain.User, error) {
	ctx, span := s.tracer.Start(ctx, "account.Register")
	defer span.End()

	email = strings.TrimSpace(email)
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if err := validatePassword(password); err != nil {
		return nil, err
	}
	if strings.TrimSpace(firstName) == "" {
		return nil, fmt.Errorf("%w: first name is required", ErrInvalidInput)
	}
	existing, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrEmailInUse
	}
	hashed, err := s.hasher.Hash([]byte(password))
	if err != nil {
		return nil, err
	}
	user := &userdomain.User{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: hashed,
		FirstName:    strings.TrimSpace(firstName),
		LastName:     strings.TrimSpace(lastName),
		DateJoined:   s.nowF(),
	}
	if err := user.Validate(); err != nil {
		return nil, err
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}
	if err := s.issueAndMail(ctx, user, otpdomain.PurposeActivation); err != nil {
		return nil, err
	}
	s.logEvent(ctx, user.ID, auditdomain.ActionRegister, "")
	return user, nil
}

// ResendActivation re-issues the activation code for an inactive account,
// superseding any outstanding one, and queues the email.
func (s *Service) ResendActivation(ctx context.Context, email string) error {
	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrUserNotFound
	}
	if user.IsActive {
		return ErrAlreadyActive
	}
	return s.issueAndMail(ctx, user, otpdomain.PurposeActivation)
}

// Activate consumes the activation code and marks the account active.
// A second attempt with the same code fails: consumption deleted it.
func (s *Service) Activate(ctx context.Context, email string, code int) error {
	ctx, span := s.tracer.Start(ctx, "account.Activate")
	defer span.End()

	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrUserNotFound
	}
	if user.IsActive {
		return ErrAlreadyActive
	}
	if err := s.otps.Verify(ctx, user.ID, otpdomain.PurposeActivation, code, s.activationWindow); err != nil {
		return err
	}
	user.IsActive = true
	if err := s.userRepo.Update(ctx, user); err != nil {
		return err
	}
	s.logEvent(ctx, user.ID, auditdomain.ActionActivate, "")
	return nil
}

// Login runs the gate sequence: lookup, deleted, active, password, two-factor.
// On a two-factor account it issues a fresh login code and returns a
// challenge result with no tokens; otherwise it updates last_login and mints
// a token pair. Unknown email and wrong password return the same error.
func (s *Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	ctx, span := s.tracer.Start(ctx, "account.Login")
	defer span.End()

	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		s.countLogin(ctx, "no_user")
		s.logEvent(ctx, "", auditdomain.ActionLoginFailure, "unknown email")
		return nil, ErrInvalidCredentials
	}
	if user.Deleted {
		s.countLogin(ctx, "deleted")
		s.logEvent(ctx, user.ID, auditdomain.ActionLoginFailure, "account deleted")
		return nil, ErrAccountDeleted
	}
	if !user.IsActive {
		s.countLogin(ctx, "inactive")
		s.logEvent(ctx, user.ID, auditdomain.ActionLoginFailure, "not active")
		return nil, ErrNotActive
	}
	if err := s.hasher.Compare(user.PasswordHash, []byte(password)); err != nil {
		s.countLogin(ctx, "bad_password")
		s.logEvent(ctx, user.ID, auditdomain.ActionLoginFailure, "bad password")
		return nil, ErrInvalidCredentials
	}
	if user.TwoFactorEnabled {
		if err := s.issueAndMail(ctx, user, otpdomain.PurposeTwoFactor); err != nil {
			return nil, err
		}
		s.countLogin(ctx, "challenge")
		s.logEvent(ctx, user.ID, auditdomain.ActionLoginChallenge, "")
		return &LoginResult{TwoFactorRequired: true}, nil
	}
	result, err := s.completeLogin(ctx, user)
	if err != nil {
		return nil, err
	}
	s.countLogin(ctx, "success")
	s.logEvent(ctx, user.ID, auditdomain.ActionLoginSuccess, "")
	return result, nil
}

// VerifyTwoFactor consumes the two-factor code and completes the login that
// was answered with a challenge.
func (s *Service) VerifyTwoFactor(ctx context.Context, email string, code int) (*LoginResult, error) {
	ctx, span := s.tracer.Start(ctx, "account.VerifyTwoFactor")
	defer span.End()

	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	if err := s.otps.Verify(ctx, user.ID, otpdomain.PurposeTwoFactor, code, s.shortWindow); err != nil {
		s.logEvent(ctx, user.ID, auditdomain.ActionTwoFactorFailure, "")
		return nil, err
	}
	result, err := s.completeLogin(ctx, user)
	if err != nil {
		return nil, err
	}
	s.logEvent(ctx, user.ID, auditdomain.ActionTwoFactorSuccess, "")
	return result, nil
}

// ResendTwoFactor re-issues the two-factor login code for an account that has
// two-factor enabled.
func (s *Service) ResendTwoFactor(ctx context.Context, email string) error {
	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrUserNotFound
	}
	if !user.TwoFactorEnabled {
		return ErrTwoFactorDisabled
	}
	return s.issueAndMail(ctx, user, otpdomain.PurposeTwoFactor)
}

// RequestPasswordReset issues a forgot-password code and queues the email.
// Deliberately unauthenticated: possession of the emailed code is the proof.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrUserNotFound
	}
	return s.issueAndMail(ctx, user, otpdomain.PurposeForgotPassword)
}

// ResetForgottenPassword consumes the forgot-password code and sets the new password.
func (s *Service) ResetForgottenPassword(ctx context.Context, email string, code int, newPassword string) error {
	ctx, span := s.tracer.Start(ctx, "account.ResetForgottenPassword")
	defer span.End()

	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrUserNotFound
	}
	if err := validatePassword(newPassword); err != nil {
		return err
	}
	if err := s.otps.Verify(ctx, user.ID, otpdomain.PurposeForgotPassword, code, s.shortWindow); err != nil {
		return err
	}
	hashed, err := s.hasher.Hash([]byte(newPassword))
	if err != nil {
		return err
	}
	user.PasswordHash = hashed
	if err := s.userRepo.Update(ctx, user); err != nil {
		return err
	}
	s.logEvent(ctx, user.ID, auditdomain.ActionPasswordReset, "via otp")
	return nil
}

// ResetPassword sets a new password for an authenticated user. No code is
// required; the caller already holds a valid access token.
func (s *Service) ResetPassword(ctx context.Context, userID, newPassword string) error {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrUserNotFound
	}
	if err := validatePassword(newPassword); err != nil {
		return err
	}
	hashed, err := s.hasher.Hash([]byte(newPassword))
	if err != nil {
		return err
	}
	user.PasswordHash = hashed
	if err := s.userRepo.Update(ctx, user); err != nil {
		return err
	}
	s.logEvent(ctx, user.ID, auditdomain.ActionPasswordReset, "authenticated")
	return nil
}

// ToggleTwoFactor flips the two-factor flag and returns the new value.
func (s *Service) ToggleTwoFactor(ctx context.Context, userID string) (bool, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return false, err
	}
	if user == nil {
		return false, ErrUserNotFound
	}
	user.TwoFactorEnabled = !user.TwoFactorEnabled
	if err := s.userRepo.Update(ctx, user); err != nil {
		return false, err
	}
	s.logEvent(ctx, user.ID, auditdomain.ActionTwoFactorToggle, fmt.Sprintf("enabled=%t", user.TwoFactorEnabled))
	return user.TwoFactorEnabled, nil
}

// Profile returns the account record for the authenticated user.
func (s *Service) Profile(ctx context.Context, userID string) (*userdomain.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// Delete soft-deletes the account: the row stays, the email stays reserved,
// and the account can never be reactivated.
func (s *Service) Delete(ctx context.Context, userID string) error {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrUserNotFound
	}
	if user.Deleted {
		return ErrAlreadyDeleted
	}
	user.SoftDelete(s.nowF())
	if err := s.userRepo.Update(ctx, user); err != nil {
		return err
	}
	s.logEvent(ctx, user.ID, auditdomain.ActionAccountDeleted, "")
	return nil
}

// Refresh validates the refresh token, re-checks the account against the
// store (a deleted or deactivated account cannot refresh), and mints a new
// pair carrying the stored identity.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	sub, err := s.tokens.ValidateRefresh(refreshToken)
	if err != nil {
		return nil, ErrInvalidRefreshToken
	}
	user, err := s.userRepo.GetByID(ctx, sub.ID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrInvalidRefreshToken
	}
	if user.Deleted {
		return nil, ErrAccountDeleted
	}
	if !user.IsActive {
		return nil, ErrNotActive
	}
	pair, err := s.mintPair(user)
	if err != nil {
		return nil, err
	}
	s.logEvent(ctx, user.ID, auditdomain.ActionTokenRefresh, "")
	return pair, nil
}

// completeLogin updates last_login and mints the token pair with the echo.
func (s *Service) completeLogin(ctx context.Context, user *userdomain.User) (*LoginResult, error) {
	now := s.nowF()
	user.LastLogin = &now
	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}
	pair, err := s.mintPair(user)
	if err != nil {
		return nil, err
	}
	return &LoginResult{
		Tokens: pair,
		User: &UserEcho{
			ID:          user.ID,
			Email:       user.Email,
			FirstName:   user.FirstName,
			LastName:    user.LastName,
			IsSuperuser: user.IsSuperuser,
		},
	}, nil
}

func (s *Service) mintPair(user *userdomain.User) (*TokenPair, error) {
	sub := security.Subject{ID: user.ID, FirstName: user.FirstName, LastName: user.LastName}
	access, accessExp, err := s.tokens.IssueAccess(sub)
	if err != nil {
		return nil, err
	}
	refresh, _, err := s.tokens.IssueRefresh(sub)
	if err != nil {
		return nil, err
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh, AccessExpiresAt: accessExp}, nil
}

// issueAndMail issues a fresh code for the purpose and queues the matching
// email. The store write is synchronous; delivery is fire-and-forget, so a
// transport failure never invalidates the already-issued code.
func (s *Service) issueAndMail(ctx context.Context, user *userdomain.User, purpose otpdomain.Purpose) error {
	code, err := s.otps.Issue(ctx, user.ID, purpose)
	if err != nil {
		return err
	}
	if s.otpIssued != nil {
		s.otpIssued.Add(ctx, 1, metric.WithAttributes(attribute.String("purpose", string(purpose))))
	}
	if s.mail != nil {
		switch purpose {
		case otpdomain.PurposeActivation:
			s.mail.Enqueue(mailer.ActivationMessage(user.Email, code))
		case otpdomain.PurposeTwoFactor:
			s.mail.Enqueue(mailer.TwoFactorMessage(user.Email, code))
		case otpdomain.PurposeForgotPassword:
			s.mail.Enqueue(mailer.PasswordResetMessage(user.Email, code))
		}
	}
	return nil
}

func (s *Service) countLogin(ctx context.Context, outcome string) {
	if s.loginAttempts != nil {
		s.loginAttempts.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	}
}

func (s *Service) logEvent(ctx context.Context, userID, action, metadata string) {
	if s.audit != nil {
		s.audit.LogEvent(ctx, userID, action, metadata)
	}
}

func validateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("%w: email is required", ErrInvalidInput)
	}
	const simpleEmail = `^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`
	ok, _ := regexp.MatchString(simpleEmail, email)
	if !ok {
		return fmt.Errorf("%w: invalid email format", ErrInvalidInput)
	}
	return nil
}

func validatePassword(password string) error {
	if len(password) < 8 {
		return fmt.Errorf("%w: password must be at least 8 characters", ErrInvalidInput)
	}
	if len(password) > 50 {
		return fmt.Errorf("%w: password must be at most 50 characters", ErrInvalidInput)
	}
	return nil
}
