package service

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/blogsphere/blogapi/internal/auth"
	"github.com/blogsphere/blogapi/internal/db"
	"github.com/blogsphere/blogapi/internal/mail"
	"github.com/blogsphere/blogapi/internal/models"
	"github.com/blogsphere/blogapi/pkg/config"
	"github.com/blogsphere/blogapi/pkg/logging"
	"github.com/blogsphere/blogapi/pkg/telemetry"
)

const (
	minPassword = 6
	maxName     = 50
	maxBio      = 500
)

var (
	usernamePattern = regexp.MustCompile(`^[A-Za-z0-9]{3,30}$`)
	emailPattern    = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
)

// RegisterInput is a sign-up request
type RegisterInput struct {
	Username  string
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// PreferencesInput changes some preferences
type PreferencesInput struct {
	Theme              *string
	EmailNotifications *bool
	PushNotifications  *bool
}

// ProfileInput lists the profile fields to change
type ProfileInput struct {
	FirstName   *string
	LastName    *string
	Bio         *string
	Avatar      *string
	SocialLinks *models.SocialLinks
	Preferences *PreferencesInput
}

// Session is a signed-in user and their access token
type Session struct {
	User  *models.User
	Token string
}

// AuthService implements registration, login and the email token flows
type AuthService struct {
	store           db.Store
	tokens          *auth.TokenManager
	hasher          *auth.Hasher
	mailer          mail.Mailer
	denylist        TokenDenylist
	metrics         *telemetry.Metrics
	logger          *zap.Logger
	verificationTTL time.Duration
	resetTTL        time.Duration
	now             func() time.Time
}

// NewAuthService creates an auth service. denylist and metrics may be nil.
func NewAuthService(store db.Store, tokens *auth.TokenManager, hasher *auth.Hasher, mailer mail.Mailer,
	denylist TokenDenylist, metrics *telemetry.Metrics, cfg *config.AuthConfig) *AuthService {
	return &AuthService{
		store:           store,
		tokens:          tokens,
		hasher:          hasher,
		mailer:          mailer,
		denylist:        denylist,
		metrics:         metrics,
		logger:          logging.WithComponent("auth"),
		verificationTTL: cfg.VerificationTTL,
		resetTTL:        cfg.ResetTTL,
		now:             time.Now,
	}
}

// Register creates an account, mails a verification link and signs the
// user in
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*Session, error) {
	ctx, span := telemetry.StartSpan(ctx, "auth.register")
	defer span.End()

	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)

	switch {
	case !usernamePattern.MatchString(in.Username):
		return nil, Validation("Username must be 3 to 30 letters or digits")
	case !emailPattern.MatchString(in.Email):
		return nil, Validation("A valid email is required")
	case in.FirstName == "" || in.LastName == "":
		return nil, Validation("First and last name are required")
	case utf8.RuneCountInString(in.FirstName) > maxName || utf8.RuneCountInString(in.LastName) > maxName:
		return nil, Validation("Names must be at most 50 characters")
	}
	if err := validatePassword(in.Password); err != nil {
		return nil, err
	}

	existing, err := s.store.Users().GetByEmail(ctx, in.Email)
	if err != nil {
		return nil, Internal("lookup email", err)
	}
	if existing != nil {
		return nil, Conflict("User with this email already exists")
	}
	existing, err = s.store.Users().GetByUsername(ctx, in.Username)
	if err != nil {
		return nil, Internal("lookup username", err)
	}
	if existing != nil {
		return nil, Conflict("Username is already taken")
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, Internal("hash password", err)
	}
	plain, tokenHash, err := auth.NewOpaqueToken()
	if err != nil {
		return nil, Internal("verification token", err)
	}
	expires := s.now().Add(s.verificationTTL).UTC()

	user := &models.User{
		Username:                 in.Username,
		Email:                    in.Email,
		Password:                 hash,
		FirstName:                in.FirstName,
		LastName:                 in.LastName,
		Role:                     models.RoleUser,
		Preferences:              models.DefaultPreferences(),
		EmailVerificationToken:   &tokenHash,
		EmailVerificationExpires: &expires,
	}
	if err := s.store.Users().Create(ctx, user); err != nil {
		return nil, storeError("create user", err, "User with this email or username already exists")
	}

	if err := s.mailer.SendVerification(ctx, user.Email, plain); err != nil {
		s.logger.Warn("Sending verification email failed", zap.String("user_id", user.ID.String()), zap.Error(err))
	}
	return s.session(user)
}

// Login checks credentials and issues a token
func (s *AuthService) Login(ctx context.Context, email, password string) (*Session, error) {
	ctx, span := telemetry.StartSpan(ctx, "auth.login")
	defer span.End()

	user, err := s.store.Users().GetByEmail(ctx, email)
	if err != nil {
		return nil, Internal("lookup user", err)
	}
	if user == nil {
		s.metrics.Login(ctx, false)
		return nil, Unauthorized("Invalid email or password")
	}
	ok, err := s.hasher.Compare(user.Password, password)
	if err != nil {
		return nil, Internal("compare password", err)
	}
	if !ok {
		s.metrics.Login(ctx, false)
		return nil, Unauthorized("Invalid email or password")
	}

	now := s.now().UTC()
	user.LastLogin = &now
	if err := s.store.Users().Update(ctx, user); err != nil {
		s.logger.Warn("Recording last login failed", zap.String("user_id", user.ID.String()), zap.Error(err))
	}
	s.metrics.Login(ctx, true)
	return s.session(user)
}

// VerifyEmail consumes a verification token
func (s *AuthService) VerifyEmail(ctx context.Context, token string) (*models.User, error) {
	if token == "" {
		return nil, Validation("Verification token is required")
	}
	user, err := s.store.Users().GetByVerificationToken(ctx, auth.HashOpaqueToken(token), s.now())
	if err != nil {
		return nil, Internal("lookup verification token", err)
	}
	if user == nil {
		return nil, Validation("Invalid or expired verification token")
	}
	user.IsEmailVerified = true
	user.EmailVerificationToken = nil
	user.EmailVerificationExpires = nil
	if err := s.store.Users().Update(ctx, user); err != nil {
		return nil, Internal("verify email", err)
	}
	if err := s.mailer.SendWelcome(ctx, user.Email, user.FirstName); err != nil {
		s.logger.Warn("Sending welcome email failed", zap.String("user_id", user.ID.String()), zap.Error(err))
	}
	return user, nil
}

// ForgotPassword mails a password reset link
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	user, err := s.store.Users().GetByEmail(ctx, email)
	if err != nil {
		return Internal("lookup user", err)
	}
	if user == nil {
		return NotFound("No user found with this email address")
	}
	plain, tokenHash, err := auth.NewOpaqueToken()
	if err != nil {
		return Internal("reset token", err)
	}
	expires := s.now().Add(s.resetTTL).UTC()
	user.PasswordResetToken = &tokenHash
	user.PasswordResetExpires = &expires
	if err := s.store.Users().Update(ctx, user); err != nil {
		return Internal("store reset token", err)
	}
	if err := s.mailer.SendPasswordReset(ctx, user.Email, plain); err != nil {
		s.logger.Warn("Sending password reset email failed", zap.String("user_id", user.ID.String()), zap.Error(err))
	}
	return nil
}

// ResetPassword consumes a reset token and sets a new password
func (s *AuthService) ResetPassword(ctx context.Context, token, password string) error {
	if err := validatePassword(password); err != nil {
		return err
	}
	user, err := s.store.Users().GetByResetToken(ctx, auth.HashOpaqueToken(token), s.now())
	if err != nil {
		return Internal("lookup reset token", err)
	}
	if user == nil {
		return Validation("Invalid or expired reset token")
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return Internal("hash password", err)
	}
	user.Password = hash
	user.PasswordResetToken = nil
	user.PasswordResetExpires = nil
	if err := s.store.Users().Update(ctx, user); err != nil {
		return Internal("reset password", err)
	}
	return nil
}

// ChangePassword replaces the caller's password after checking the current one
func (s *AuthService) ChangePassword(ctx context.Context, actor Actor, current, next string) error {
	user, err := s.currentUser(ctx, actor)
	if err != nil {
		return err
	}
	if err := validatePassword(next); err != nil {
		return err
	}
	ok, err := s.hasher.Compare(user.Password, current)
	if err != nil {
		return Internal("compare password", err)
	}
	if !ok {
		return Validation("Current password is incorrect")
	}
	hash, err := s.hasher.Hash(next)
	if err != nil {
		return Internal("hash password", err)
	}
	user.Password = hash
	if err := s.store.Users().Update(ctx, user); err != nil {
		return Internal("change password", err)
	}
	return nil
}

// RefreshToken issues a fresh token for the caller
func (s *AuthService) RefreshToken(ctx context.Context, actor Actor) (string, error) {
	user, err := s.currentUser(ctx, actor)
	if err != nil {
		return "", err
	}
	session, err := s.session(user)
	if err != nil {
		return "", err
	}
	return session.Token, nil
}

// Logout revokes the presented token until it expires. Without a denylist
// the token simply stays valid until expiry.
func (s *AuthService) Logout(ctx context.Context, claims *auth.Claims) error {
	if claims == nil || claims.ID == "" || s.denylist == nil {
		return nil
	}
	logCacheError(s.logger, "revoke token", s.denylist.RevokeToken(ctx, claims.ID, claims.Expiry()))
	return nil
}

// Authenticate resolves a bearer token to the caller. Revoked tokens and
// tokens of deleted users are rejected.
func (s *AuthService) Authenticate(ctx context.Context, raw string) (Actor, *auth.Claims, error) {
	claims, err := s.tokens.Parse(raw)
	if err != nil {
		return Anonymous, nil, Unauthorized("Invalid token")
	}
	if s.denylist != nil {
		revoked, err := s.denylist.IsTokenRevoked(ctx, claims.ID)
		logCacheError(s.logger, "check revoked token", err)
		if err == nil && revoked {
			return Anonymous, nil, Unauthorized("Token has been revoked")
		}
	}
	userID, _ := claims.UserID()
	user, err := s.store.Users().GetByID(ctx, userID)
	if err != nil {
		return Anonymous, nil, Internal("load user", err)
	}
	if user == nil {
		return Anonymous, nil, Unauthorized("User not found")
	}
	return Actor{ID: user.ID, Role: user.Role}, claims, nil
}

// Profile returns the caller's account
func (s *AuthService) Profile(ctx context.Context, actor Actor) (*models.User, error) {
	return s.currentUser(ctx, actor)
}

// UpdateProfile changes the caller's profile fields
func (s *AuthService) UpdateProfile(ctx context.Context, actor Actor, in ProfileInput) (*models.User, error) {
	user, err := s.currentUser(ctx, actor)
	if err != nil {
		return nil, err
	}

	if in.FirstName != nil {
		v := strings.TrimSpace(*in.FirstName)
		if v == "" || utf8.RuneCountInString(v) > maxName {
			return nil, Validation("First name must be 1 to 50 characters")
		}
		user.FirstName = v
	}
	if in.LastName != nil {
		v := strings.TrimSpace(*in.LastName)
		if v == "" || utf8.RuneCountInString(v) > maxName {
			return nil, Validation("Last name must be 1 to 50 characters")
		}
		user.LastName = v
	}
	if in.Bio != nil {
		if utf8.RuneCountInString(*in.Bio) > maxBio {
			return nil, Validation("Bio must be at most 500 characters")
		}
		user.Bio = *in.Bio
	}
	if in.Avatar != nil {
		user.Avatar = strings.TrimSpace(*in.Avatar)
	}
	if in.SocialLinks != nil {
		user.SocialLinks = *in.SocialLinks
	}
	if p := in.Preferences; p != nil {
		if p.Theme != nil {
			if *p.Theme != "light" && *p.Theme != "dark" {
				return nil, Validation("Theme must be light or dark")
			}
			user.Preferences.Theme = *p.Theme
		}
		if p.EmailNotifications != nil {
			user.Preferences.EmailNotifications = *p.EmailNotifications
		}
		if p.PushNotifications != nil {
			user.Preferences.PushNotifications = *p.PushNotifications
		}
	}

	if err := s.store.Users().Update(ctx, user); err != nil {
		return nil, storeError("update profile", err, "Profile conflicts with another account")
	}
	return user, nil
}

func (s *AuthService) currentUser(ctx context.Context, actor Actor) (*models.User, error) {
	if !actor.Authenticated() {
		return nil, Unauthorized("Authentication required")
	}
	user, err := s.store.Users().GetByID(ctx, actor.ID)
	if err != nil {
		return nil, Internal("load user", err)
	}
	if user == nil {
		return nil, NotFound("User not found")
	}
	return user, nil
}

func (s *AuthService) session(user *models.User) (*Session, error) {
	token, _, err := s.tokens.Issue(user.ID, user.Role)
	if err != nil {
		return nil, Internal("issue token", err)
	}
	return &Session{User: user, Token: token}, nil
}

func validatePassword(password string) error {
	if utf8.RuneCountInString(password) < minPassword {
		return Validation("Password must be at least 6 characters")
	}
	return nil
}

// IsUnauthorized reports whether err is an authentication failure
func IsUnauthorized(err error) bool {
	var se *Error
	return errors.As(err, &se) && se.Kind == KindUnauthorized
}
