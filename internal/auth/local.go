package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"lorebook/internal/logging"
	"lorebook/internal/lore"
)

const (
	localIssuer     = "lorebook-local"
	refreshTokenTTL = 30 * 24 * time.Hour
	tokenUseAccess  = "access"
	tokenUseRefresh = "refresh"
)

// UserModel is the local `users` table.
type UserModel struct {
	ID           string `gorm:"primaryKey;size:36"`
	Email        string `gorm:"uniqueIndex;size:320;not null"`
	PasswordHash string `gorm:"not null"`
	CreatedAt    time.Time
}

// TableName pins the table name.
func (UserModel) TableName() string { return "users" }

type localClaims struct {
	Email string `json:"email"`
	Use   string `json:"use"`
	jwt.RegisteredClaims
}

// LocalProvider authenticates against a users table in the local SQLite
// database and signs its own HS256 tokens.
type LocalProvider struct {
	db     *gorm.DB
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewLocalProvider migrates the users table. The signing key is read from
// secretPath, or generated there on first use.
func NewLocalProvider(db *gorm.DB, secretPath string, ttl time.Duration) (*LocalProvider, error) {
	if err := db.AutoMigrate(&UserModel{}); err != nil {
		return nil, fmt.Errorf("%w: migrate users: %w", lore.ErrStoreUnavailable, err)
	}
	secret, err := loadOrCreateSecret(secretPath)
	if err != nil {
		return nil, err
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &LocalProvider{db: db, secret: secret, ttl: ttl, now: time.Now}, nil
}

func loadOrCreateSecret(path string) ([]byte, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: local signing key path is empty", lore.ErrMissingCredential)
	}
	if data, err := os.ReadFile(path); err == nil && len(data) >= 32 {
		return data, nil
	}
	secret := make([]byte, 64)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("generate signing key: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("create key dir: %w", err)
	}
	if err := os.WriteFile(path, secret, 0600); err != nil {
		return nil, fmt.Errorf("write signing key: %w", err)
	}
	logging.Session("generated local signing key at %s", path)
	return secret, nil
}

// SignIn verifies the password hash and issues tokens.
func (p *LocalProvider) SignIn(ctx context.Context, email, password string) (*Session, error) {
	var u UserModel
	err := p.db.WithContext(ctx).Where("email = ?", normalizeEmail(email)).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: Invalid login credentials", lore.ErrUnauthenticated)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: look up user: %w", lore.ErrStoreUnavailable, err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, fmt.Errorf("%w: Invalid login credentials", lore.ErrUnauthenticated)
	}
	return p.issue(u)
}

// SignUp creates the user and signs them in; there is no email
// confirmation locally.
func (p *LocalProvider) SignUp(ctx context.Context, email, password string) (*SignUpResult, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", lore.ErrValidation, err)
	}
	u := UserModel{
		ID:           uuid.NewString(),
		Email:        normalizeEmail(email),
		PasswordHash: string(hash),
		CreatedAt:    p.now().UTC(),
	}

	var count int64
	if err := p.db.WithContext(ctx).Model(&UserModel{}).Where("email = ?", u.Email).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("%w: look up user: %w", lore.ErrStoreUnavailable, err)
	}
	if count > 0 {
		return nil, fmt.Errorf("%w: User already registered", lore.ErrValidation)
	}
	if err := p.db.WithContext(ctx).Create(&u).Error; err != nil {
		return nil, fmt.Errorf("%w: create user: %w", lore.ErrQuery, err)
	}

	s, err := p.issue(u)
	if err != nil {
		return nil, err
	}
	return &SignUpResult{Session: s, UserID: u.ID, Message: "Account created."}, nil
}

// SignOut has nothing to revoke locally; tokens simply expire.
func (p *LocalProvider) SignOut(context.Context, *Session) error { return nil }

// Refresh validates the refresh token and issues a new pair.
func (p *LocalProvider) Refresh(ctx context.Context, s *Session) (*Session, error) {
	claims, err := p.parse(s.RefreshToken, tokenUseRefresh)
	if err != nil {
		return nil, err
	}
	var u UserModel
	if err := p.db.WithContext(ctx).Where("id = ?", claims.Subject).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: user no longer exists", lore.ErrUnauthenticated)
		}
		return nil, fmt.Errorf("%w: look up user: %w", lore.ErrStoreUnavailable, err)
	}
	return p.issue(u)
}

// Verify checks an access token and returns the user id in its subject.
func (p *LocalProvider) Verify(token string) (string, error) {
	claims, err := p.parse(token, tokenUseAccess)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

func (p *LocalProvider) issue(u UserModel) (*Session, error) {
	now := p.now()
	expires := now.Add(p.ttl)

	access, err := p.sign(u, tokenUseAccess, now, expires)
	if err != nil {
		return nil, err
	}
	refresh, err := p.sign(u, tokenUseRefresh, now, now.Add(refreshTokenTTL))
	if err != nil {
		return nil, err
	}
	return &Session{
		UserID:       u.ID,
		Email:        u.Email,
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    expires.Truncate(time.Second),
	}, nil
}

func (p *LocalProvider) sign(u UserModel, use string, now, expires time.Time) (string, error) {
	claims := localClaims{
		Email: u.Email,
		Use:   use,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			Issuer:    localIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func (p *LocalProvider) parse(token, use string) (*localClaims, error) {
	claims := &localClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return p.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(localIssuer),
		jwt.WithTimeFunc(p.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", lore.ErrUnauthenticated, err)
	}
	if claims.Use != use {
		return nil, fmt.Errorf("%w: wrong token type %q", lore.ErrUnauthenticated, claims.Use)
	}
	return claims, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

var _ Verifier = (*LocalProvider)(nil)
