package auth

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sweetcrumb/storefront/internal/users"
	pkgAuth "github.com/sweetcrumb/storefront/pkg/auth"
	"github.com/sweetcrumb/storefront/pkg/auth/session"
	"github.com/sweetcrumb/storefront/pkg/config"
	"github.com/sweetcrumb/storefront/pkg/db"
	"github.com/sweetcrumb/storefront/pkg/db/models"
	"github.com/sweetcrumb/storefront/pkg/enums"
	pkgerrors "github.com/sweetcrumb/storefront/pkg/errors"
	"github.com/sweetcrumb/storefront/pkg/security"
)

const invalidCredentialsMessage = "invalid credentials"

type userRepository interface {
	Create(ctx context.Context, dto users.CreateUserDTO) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error
}

type profileSeeder interface {
	Ensure(ctx context.Context, userID uuid.UUID, fullName string) (*models.Profile, error)
}

type sessionManager interface {
	Generate(ctx context.Context, accessID string) (string, error)
	Rotate(ctx context.Context, oldAccessID, provided string) (string, string, error)
	Revoke(ctx context.Context, accessID string) error
	HasSession(ctx context.Context, accessID string) (bool, error)
}

// ServiceParams bundles the dependencies required to build an auth service.
type ServiceParams struct {
	UserRepo       userRepository
	Profiles       profileSeeder
	SessionManager sessionManager
	JWTConfig      config.JWTConfig
	PasswordConfig config.PasswordConfig
}

// Service is the server side of the identity provider: account creation,
// credential checks and JWT sessions backed by Redis refresh tokens.
type Service struct {
	users    userRepository
	profiles profileSeeder
	session  sessionManager
	jwtCfg   config.JWTConfig
	pwCfg    config.PasswordConfig
	changes  *notifier
	now      func() time.Time

	decoyOnce sync.Once
	decoy     string
}

func NewService(params ServiceParams) (*Service, error) {
	if params.UserRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "user repository is required")
	}
	if params.Profiles == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "profile store is required")
	}
	if params.SessionManager == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "session manager is required")
	}
	return &Service{
		users:    params.UserRepo,
		profiles: params.Profiles,
		session:  params.SessionManager,
		jwtCfg:   params.JWTConfig,
		pwCfg:    params.PasswordConfig,
		changes:  newNotifier(),
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

// OnSessionChange registers fn for every sign-in, sign-out and refresh.
// The returned func unsubscribes and is safe to call more than once.
func (s *Service) OnSessionChange(fn func(SessionChange)) func() {
	return s.changes.subscribe(fn)
}

func (s *Service) SignUp(ctx context.Context, req SignUpRequest) (*Session, error) {
	email := users.NormalizeEmail(req.Email)
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email is required")
	}
	if err := security.CheckPasswordStrength(req.Password); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, err.Error())
	}

	hash, err := security.HashPassword(req.Password, s.pwCfg)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}

	user, err := s.users.Create(ctx, users.CreateUserDTO{
		Email:        email,
		PasswordHash: hash,
		FullName:     req.FullName,
	})
	if err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "email already registered")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "create user")
	}

	if _, err := s.profiles.Ensure(ctx, user.ID, user.FullName); err != nil {
		return nil, err
	}

	now, err := s.recordLogin(ctx, user)
	if err != nil {
		return nil, err
	}
	return s.issue(ctx, user, now, enums.SessionEventSignedIn)
}

func (s *Service) SignIn(ctx context.Context, req SignInRequest) (*Session, error) {
	user, err := s.authenticate(ctx, req.Email, req.Password)
	if err != nil {
		return nil, err
	}
	now, err := s.recordLogin(ctx, user)
	if err != nil {
		return nil, err
	}
	return s.issue(ctx, user, now, enums.SessionEventSignedIn)
}

// SignOut revokes the refresh session; the access token stops passing
// CurrentSession immediately.
func (s *Service) SignOut(ctx context.Context, identity *Identity) error {
	if identity == nil || identity.SessionID == "" {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	if err := s.session.Revoke(ctx, identity.SessionID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "revoke session")
	}
	s.changes.publish(SessionChange{Event: enums.SessionEventSignedOut, UserID: identity.UserID, SessionID: identity.SessionID})
	return nil
}

// CurrentSession resolves the identity behind an access token. A token whose
// session was revoked is rejected even before it expires.
func (s *Service) CurrentSession(ctx context.Context, accessToken string) (*Identity, error) {
	claims, err := pkgAuth.ParseAccessToken(s.jwtCfg, strings.TrimSpace(accessToken))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid access token")
	}
	active, err := s.session.HasSession(ctx, claims.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check session")
	}
	if !active {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "session expired")
	}
	identity := &Identity{
		UserID:    claims.UserID,
		Email:     claims.Email,
		SessionID: claims.ID,
	}
	if claims.ExpiresAt != nil {
		identity.ExpiresAt = claims.ExpiresAt.Time
	}
	return identity, nil
}

// Refresh exchanges a refresh token for a new pair. The access token may be
// expired but must carry a valid signature.
func (s *Service) Refresh(ctx context.Context, accessToken, refreshToken string) (*Session, error) {
	claims, err := pkgAuth.ParseAccessTokenAllowExpired(s.jwtCfg, strings.TrimSpace(accessToken))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid access token")
	}
	newAccessID, newRefresh, err := s.session.Rotate(ctx, claims.ID, refreshToken)
	if err != nil {
		if errors.Is(err, session.ErrInvalidRefreshToken) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid refresh token")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rotate session")
	}

	user, err := s.users.FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "load user")
	}

	return s.build(user, newAccessID, newRefresh, s.now(), enums.SessionEventRefreshed)
}

// issue opens a fresh refresh session for user and signs its access token.
func (s *Service) issue(ctx context.Context, user *models.User, now time.Time, event enums.SessionEvent) (*Session, error) {
	accessID := session.NewAccessID()
	refresh, err := s.session.Generate(ctx, accessID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store refresh token")
	}
	return s.build(user, accessID, refresh, now, event)
}

// build signs the access token for accessID and announces event.
func (s *Service) build(user *models.User, accessID, refresh string, now time.Time, event enums.SessionEvent) (*Session, error) {
	access, err := pkgAuth.MintAccessToken(s.jwtCfg, now, pkgAuth.AccessTokenPayload{
		UserID: user.ID,
		Email:  user.Email,
		JTI:    accessID,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint jwt")
	}
	s.changes.publish(SessionChange{Event: event, UserID: user.ID, SessionID: accessID})
	return &Session{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    now.Add(time.Duration(s.jwtCfg.ExpirationMinutes) * time.Minute),
		User:         users.FromModel(user),
	}, nil
}

func (s *Service) authenticate(ctx context.Context, email, password string) (*models.User, error) {
	input := users.NormalizeEmail(email)
	if input == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}
	user, err := s.users.FindByEmail(ctx, input)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		// Spend the same hashing time as a real check so response timing
		// does not reveal which emails are registered.
		_, _ = security.VerifyPassword(password, s.decoyHash())
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "lookup user")
	}

	valid, err := security.VerifyPassword(password, user.PasswordHash)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verify password")
	}
	if !valid || !user.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}
	return user, nil
}

// decoyHash is a hash of a random password built with the configured cost.
func (s *Service) decoyHash() string {
	s.decoyOnce.Do(func() {
		s.decoy, _ = security.HashPassword(uuid.NewString(), s.pwCfg)
	})
	return s.decoy
}

func (s *Service) recordLogin(ctx context.Context, user *models.User) (time.Time, error) {
	now := s.now()
	if err := s.users.UpdateLastLogin(ctx, user.ID, now); err != nil {
		return time.Time{}, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "update last login")
	}
	user.LastLoginAt = &now
	return now, nil
}
