package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"media_tracker/internal/lib/jwt"
	sl "media_tracker/internal/lib/logger/sl"
	"media_tracker/internal/lib/verification"
	"media_tracker/internal/models"
	"media_tracker/internal/storage"
)

var (
	ErrDuplicateEmail        = errors.New("email already registered")
	ErrInvalidOrExpiredToken = errors.New("invalid or expired token")
	ErrNotFound              = errors.New("user not found")
	ErrInvalidCredentials    = errors.New("invalid email or password")
	ErrEmailNotVerified      = errors.New("email not verified")
	ErrUserNotFound          = errors.New("session user not found")
	ErrResendTooSoon         = errors.New("verification email was sent recently")
	ErrTokenExpired          = jwt.ErrTokenExpired
	ErrInvalidToken          = jwt.ErrInvalidToken
	ErrInvalidTokenPayload   = jwt.ErrInvalidTokenPayload
)

type UserSaver interface {
	SaveUser(ctx context.Context, u models.User) error
	SetEmailVerified(ctx context.Context, token string) (models.User, error)
	UpdateVerificationToken(ctx context.Context, email, token string) error
}

type UserProvider interface {
	User(ctx context.Context, email string) (models.User, error)
	UserByID(ctx context.Context, id string) (models.User, error)
}

type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, hash string) bool
}

type TokenManager interface {
	NewToken(userID, email string) (string, error)
	ParseToken(token string) (*jwt.Claims, error)
}

// Notifier delivers verification emails. It must not block on delivery.
type Notifier interface {
	SendVerification(email, token, name string)
}

// ResendLimiter throttles verification resends per email.
type ResendLimiter interface {
	AcquireResendSlot(ctx context.Context, email string, ttl time.Duration) (bool, error)
}

type Auth struct {
	log         *slog.Logger
	usrSaver    UserSaver
	usrProvider UserProvider
	hasher      PasswordHasher
	tokens      TokenManager
	notifier    Notifier

	limiter        ResendLimiter
	resendCooldown time.Duration

	now func() time.Time

	// dummyHash is checked on unknown emails so both login failures cost one bcrypt comparison.
	dummyHash string
}

type LoginResult struct {
	AccessToken string
	User        models.User
}

func New(
	log *slog.Logger,
	userSaver UserSaver,
	userProvider UserProvider,
	hasher PasswordHasher,
	tokens TokenManager,
	notifier Notifier,
) *Auth {
	dummyHash, err := hasher.Hash(uuid.NewString())
	if err != nil {
		log.Error("failed to prepare dummy hash", sl.Err(err))
	}

	return &Auth{
		log:         log,
		usrSaver:    userSaver,
		usrProvider: userProvider,
		hasher:      hasher,
		tokens:      tokens,
		notifier:    notifier,
		now:         time.Now,
		dummyHash:   dummyHash,
	}
}

// WithResendLimiter enables the per-email resend cooldown.
func (a *Auth) WithResendLimiter(l ResendLimiter, cooldown time.Duration) *Auth {
	a.limiter = l
	a.resendCooldown = cooldown
	return a
}

// Signup persists a new unverified user and dispatches the verification email in the background.
func (a *Auth) Signup(ctx context.Context, email, password, name string) (models.User, error) {
	const op = "auth.Signup"

	log := a.log.With(slog.String("op", op))

	log.Info("registering new user")

	_, err := a.usrProvider.User(ctx, email)
	switch {
	case err == nil:
		log.Warn("user already exists")
		return models.User{}, fmt.Errorf("%s: %w", op, ErrDuplicateEmail)
	case !errors.Is(err, storage.ErrUserNotFound):
		log.Error("failed to look up user", sl.Err(err))
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	token, err := verification.NewToken()
	if err != nil {
		log.Error("failed to generate verification token", sl.Err(err))
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	passHash, err := a.hasher.Hash(password)
	if err != nil {
		log.Error("failed to generate password hash", sl.Err(err))
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	user := models.User{
		ID:                uuid.NewString(),
		Email:             email,
		Name:              name,
		PassHash:          passHash,
		IsVerified:        false,
		VerificationToken: &token,
		CreatedAt:         a.now().UTC(),
	}

	if err := a.usrSaver.SaveUser(ctx, user); err != nil {
		if errors.Is(err, storage.ErrUserExists) {
			log.Warn("user already exists")
			return models.User{}, fmt.Errorf("%s: %w", op, ErrDuplicateEmail)
		}

		log.Error("failed to save user", sl.Err(err))
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	a.notifier.SendVerification(user.Email, token, user.Name)

	log.Info("user registered", slog.String("uid", user.ID))

	return user, nil
}

// VerifyEmail consumes a verification token. A token can succeed at most once.
func (a *Auth) VerifyEmail(ctx context.Context, token string) (models.User, error) {
	const op = "auth.VerifyEmail"

	log := a.log.With(slog.String("op", op))

	user, err := a.usrSaver.SetEmailVerified(ctx, token)
	if err != nil {
		if errors.Is(err, storage.ErrTokenNotFound) {
			log.Info("unknown or consumed verification token")
			return models.User{}, fmt.Errorf("%s: %w", op, ErrInvalidOrExpiredToken)
		}

		log.Error("failed to update verification status", sl.Err(err))
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("email verified", slog.String("uid", user.ID))

	return user, nil
}

// ResendVerification issues a fresh token, invalidating the previous link, and re-sends it.
// alreadyVerified is true when there was nothing to resend.
func (a *Auth) ResendVerification(ctx context.Context, email string) (alreadyVerified bool, err error) {
	const op = "auth.ResendVerification"

	log := a.log.With(slog.String("op", op))

	user, err := a.usrProvider.User(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			log.Info("user not found")
			return false, fmt.Errorf("%s: %w", op, ErrNotFound)
		}

		log.Error("failed to look up user", sl.Err(err))
		return false, fmt.Errorf("%s: %w", op, err)
	}

	if user.IsVerified {
		return true, nil
	}

	if a.limiter != nil {
		ok, err := a.limiter.AcquireResendSlot(ctx, email, a.resendCooldown)
		switch {
		case err != nil:
			log.Warn("resend limiter unavailable", sl.Err(err))
		case !ok:
			log.Info("resend requested within cooldown")
			return false, fmt.Errorf("%s: %w", op, ErrResendTooSoon)
		}
	}

	token, err := verification.NewToken()
	if err != nil {
		log.Error("failed to generate verification token", sl.Err(err))
		return false, fmt.Errorf("%s: %w", op, err)
	}

	if err := a.usrSaver.UpdateVerificationToken(ctx, email, token); err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			// verified or removed since the lookup above
			current, lookupErr := a.usrProvider.User(ctx, email)
			if lookupErr == nil && current.IsVerified {
				return true, nil
			}
			return false, fmt.Errorf("%s: %w", op, ErrNotFound)
		}

		log.Error("failed to store verification token", sl.Err(err))
		return false, fmt.Errorf("%s: %w", op, err)
	}

	a.notifier.SendVerification(user.Email, token, user.Name)

	log.Info("verification email resent", slog.String("uid", user.ID))

	return false, nil
}

// Login checks credentials and issues a session token. Unknown email and wrong password
// produce the same error; the verification check runs only after the password matched.
func (a *Auth) Login(ctx context.Context, email, password string) (LoginResult, error) {
	const op = "auth.Login"

	log := a.log.With(slog.String("op", op))

	user, err := a.usrProvider.User(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			a.hasher.Verify(password, a.dummyHash)
			log.Info("invalid credentials")
			return LoginResult{}, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
		}

		log.Error("failed to get user", sl.Err(err))
		return LoginResult{}, fmt.Errorf("%s: %w", op, err)
	}

	if !a.hasher.Verify(password, user.PassHash) {
		log.Info("invalid credentials")
		return LoginResult{}, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	if !user.IsVerified {
		log.Info("email not verified", slog.String("uid", user.ID))
		return LoginResult{}, fmt.Errorf("%s: %w", op, ErrEmailNotVerified)
	}

	accessToken, err := a.tokens.NewToken(user.ID, user.Email)
	if err != nil {
		log.Error("failed to generate access token", sl.Err(err))
		return LoginResult{}, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("user logged in successfully", slog.String("uid", user.ID))

	return LoginResult{AccessToken: accessToken, User: user}, nil
}

// ResolveSession authenticates a bearer token and returns the live user record.
func (a *Auth) ResolveSession(ctx context.Context, token string) (models.User, error) {
	const op = "auth.ResolveSession"

	log := a.log.With(slog.String("op", op))

	claims, err := a.tokens.ParseToken(token)
	if err != nil {
		log.Debug("rejected session token", sl.Err(err))
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	user, err := a.usrProvider.UserByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			log.Info("session user no longer exists", slog.String("uid", claims.Subject))
			return models.User{}, fmt.Errorf("%s: %w", op, ErrUserNotFound)
		}

		log.Error("failed to load session user", sl.Err(err))
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	return user, nil
}
