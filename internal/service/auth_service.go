package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"poststream/internal/cache"
	"poststream/internal/middleware"
	"poststream/internal/models"
	"poststream/internal/repository"
	"poststream/internal/validation"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

type AuthConfig struct {
	Secret   string
	Issuer   string
	Audience string
	TTL      time.Duration
}

// Session is what register and login hand back to the client.
type Session struct {
	Token     string          `json:"token"`
	ExpiresAt time.Time       `json:"expires_at"`
	Profile   *models.Profile `json:"profile"`
}

// Claims is the verified content of a session token.
type Claims struct {
	AccountID uint
	Username  string
	TokenID   string
	ExpiresAt time.Time
}

// AuthService registers accounts and issues and verifies session tokens.
type AuthService struct {
	accounts repository.AccountRepository
	profiles repository.ProfileRepository
	cfg      AuthConfig
	cost     int
}

func NewAuthService(accounts repository.AccountRepository, profiles repository.ProfileRepository, cfg AuthConfig) *AuthService {
	return &AuthService{accounts: accounts, profiles: profiles, cfg: cfg, cost: bcrypt.DefaultCost}
}

// WithHashCost overrides the bcrypt cost, used by tests and seeding.
func (s *AuthService) WithHashCost(cost int) *AuthService {
	s.cost = cost
	return s
}

type RegisterInput struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// Register creates an account with its profile and signs the caller in.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*Session, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if in.Username == "" || in.Email == "" || in.Password == "" {
		return nil, models.NewValidationError("Username, email, and password are required")
	}
	if err := validation.ValidateUsername(in.Username); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidateEmail(in.Email); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidatePassword(in.Password); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	first, last := strings.TrimSpace(in.FirstName), strings.TrimSpace(in.LastName)
	if err := validation.ValidateProfileUpdate(models.ProfileUpdate{FirstName: &first, LastName: &last}); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	account := &models.Account{Username: in.Username, Email: in.Email, Password: string(hashed)}
	profile := &models.Profile{FirstName: first, LastName: last}
	if err := s.accounts.CreateWithProfile(ctx, account, profile); err != nil {
		return nil, err
	}
	return s.session(account, profile)
}

// Login checks credentials. Unknown usernames and wrong passwords get the
// same answer.
func (s *AuthService) Login(ctx context.Context, username, password string) (*Session, error) {
	invalid := models.NewUnauthorizedError("Invalid username or password")

	account, err := s.accounts.GetByUsername(ctx, strings.TrimSpace(username))
	if models.IsNotFound(err) {
		return nil, invalid
	}
	if err != nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(account.Password), []byte(password)); err != nil {
		return nil, invalid
	}

	profile, err := s.profiles.GetByUserID(ctx, account.ID)
	if err != nil {
		return nil, err
	}
	return s.session(account, profile)
}

// Logout revokes the token for the rest of its lifetime and forgets the
// cached viewer. Without Redis the token stays valid until it expires.
func (s *AuthService) Logout(ctx context.Context, claims *Claims) error {
	err := cache.Revoke(ctx, claims.TokenID, time.Until(claims.ExpiresAt))
	switch {
	case errors.Is(err, cache.ErrUnavailable):
		middleware.Logger.WarnContext(ctx, "token revocation unavailable, token remains valid until expiry",
			"account_id", claims.AccountID, "expires_at", claims.ExpiresAt)
	case err != nil:
		return err
	}
	cache.InvalidateViewer(ctx, claims.AccountID)
	return nil
}

func (s *AuthService) session(account *models.Account, profile *models.Profile) (*Session, error) {
	token, exp, err := s.issue(account.ID, account.Username)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return &Session{Token: token, ExpiresAt: exp, Profile: profile}, nil
}

func (s *AuthService) issue(accountID uint, username string) (string, time.Time, error) {
	if s.cfg.Secret == "" {
		return "", time.Time{}, fmt.Errorf("JWT secret not configured")
	}
	now := time.Now()
	exp := now.Add(s.cfg.TTL)
	claims := jwt.MapClaims{
		"sub":      strconv.FormatUint(uint64(accountID), 10),
		"username": username,
		"iss":      s.cfg.Issuer,
		"aud":      s.cfg.Audience,
		"exp":      exp.Unix(),
		"iat":      now.Unix(),
		"nbf":      now.Unix(),
		"jti":      uuid.NewString(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.Secret))
	return token, time.Unix(exp.Unix(), 0), err
}

// Authenticate verifies a session token and returns its claims.
func (s *AuthService) Authenticate(ctx context.Context, tokenString string) (*Claims, error) {
	invalid := models.NewUnauthorizedError("Invalid or expired token")

	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(s.cfg.Secret), nil
	}, jwt.WithIssuer(s.cfg.Issuer), jwt.WithAudience(s.cfg.Audience), jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return nil, invalid
	}

	mc, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, invalid
	}
	sub, err := mc.GetSubject()
	if err != nil || sub == "" {
		return nil, invalid
	}
	id, err := strconv.ParseUint(sub, 10, 32)
	if err != nil {
		return nil, invalid
	}
	exp, err := mc.GetExpirationTime()
	if err != nil || exp == nil {
		return nil, invalid
	}
	jti, _ := mc["jti"].(string)
	username, _ := mc["username"].(string)

	if jti != "" {
		revoked, err := cache.IsRevoked(ctx, jti)
		if err != nil {
			return nil, models.NewInternalError(err)
		}
		if revoked {
			return nil, models.NewUnauthorizedError("Token has been revoked")
		}
	}

	return &Claims{AccountID: uint(id), Username: username, TokenID: jti, ExpiresAt: exp.Time}, nil
}

// ViewerProfileID resolves the profile an account acts as.
func (s *AuthService) ViewerProfileID(ctx context.Context, accountID uint) (uint, error) {
	var profileID uint
	err := cache.Aside(ctx, cache.ViewerKey(accountID), &profileID, cache.ViewerTTL, func() error {
		profile, err := s.profiles.GetByUserID(ctx, accountID)
		if err != nil {
			return err
		}
		profileID = profile.ID
		return nil
	})
	return profileID, err
}

// CurrentIdentity describes the signed-in caller.
func (s *AuthService) CurrentIdentity(ctx context.Context, accountID uint) (*models.Identity, *models.Profile, error) {
	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return nil, nil, err
	}
	profile, err := s.profiles.GetByUserID(ctx, accountID)
	if err != nil {
		return nil, nil, err
	}
	return &models.Identity{
		AccountID: account.ID,
		ProfileID: profile.ID,
		Username:  account.Username,
		Email:     account.Email,
	}, profile, nil
}
