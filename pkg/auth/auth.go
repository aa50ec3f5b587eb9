package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"golang.org/x/crypto/bcrypt"

	"github.com/kindnest/kindnest-api/pkg/apperr"
	"github.com/kindnest/kindnest-api/pkg/database"
	"github.com/kindnest/kindnest-api/pkg/models"
)

var jwtAlgorithm = jwt.SigningMethodHS256

// HashCost is the bcrypt cost used for new password hashes.
var HashCost = 12

// Claims represents the JWT claims. Subject is a user ID for donors and
// admins and a volunteer ID for volunteers.
type Claims struct {
	Role string `json:"role"`
	Name string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// HashPassword hashes a password using bcrypt
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), HashCost)
	return string(bytes), err
}

// CheckPasswordHash compares a password with its hash
func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// Authenticator issues and checks session tokens and service keys.
type Authenticator struct {
	jwtSecret     []byte
	serviceSecret []byte
	ttl           time.Duration
	now           func() time.Time
}

func New(jwtSecret, serviceSecret string, ttl time.Duration) *Authenticator {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Authenticator{
		jwtSecret:     []byte(jwtSecret),
		serviceSecret: []byte(serviceSecret),
		ttl:           ttl,
		now:           time.Now,
	}
}

// CreateToken creates a signed session token.
func (a *Authenticator) CreateToken(subject, role, name string) (string, error) {
	now := a.now()
	claims := &Claims{
		Role: role,
		Name: name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwtAlgorithm, claims)
	return token.SignedString(a.jwtSecret)
}

// VerifyToken verifies a JWT token
func (a *Authenticator) VerifyToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwtAlgorithm {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return a.jwtSecret, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid || claims.Subject == "" {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

func (a *Authenticator) sign(name string) string {
	h := hmac.New(sha256.New, a.serviceSecret)
	h.Write([]byte(name))
	return hex.EncodeToString(h.Sum(nil))
}

// GenerateServiceKey creates a signed key for an internal caller such as the
// stale-schedule cron job.
func (a *Authenticator) GenerateServiceKey(name string) (string, error) {
	if len(a.serviceSecret) == 0 {
		return "", errors.New("service secret not configured")
	}
	if name == "" {
		return "", errors.New("service name required")
	}
	return name + "." + a.sign(name), nil
}

// VerifyServiceKey validates a key and returns the service name it was
// issued to.
func (a *Authenticator) VerifyServiceKey(key string) (string, error) {
	if len(a.serviceSecret) == 0 {
		return "", errors.New("service keys disabled")
	}
	i := strings.LastIndex(key, ".")
	if i <= 0 || i == len(key)-1 {
		return "", errors.New("invalid key format")
	}
	name, provided := key[:i], key[i+1:]

	// Use constant-time comparison to prevent timing attacks
	if !hmac.Equal([]byte(provided), []byte(a.sign(name))) {
		return "", errors.New("invalid signature")
	}
	return name, nil
}

// EnsureAdminExists creates the bootstrap admin account when no admin exists
// and credentials are configured.
func EnsureAdminExists(ctx context.Context, store *database.Store, email, password string) error {
	n, err := store.CountAdmins(ctx)
	if err != nil {
		return fmt.Errorf("count admins: %w", err)
	}
	if n > 0 {
		return nil
	}
	if email == "" || password == "" {
		slog.Warn("no admin account exists and ADMIN_EMAIL/ADMIN_PASSWORD are not set")
		return nil
	}

	hash, err := HashPassword(password)
	if err != nil {
		return err
	}
	u := &models.User{
		Name:         "Admin",
		Email:        strings.ToLower(strings.TrimSpace(email)),
		PasswordHash: hash,
		Role:         models.RoleAdmin,
	}
	if err := store.CreateUser(ctx, u); err != nil {
		if errors.Is(err, apperr.ErrConflict) {
			return fmt.Errorf("bootstrap admin %s: email already registered to a non-admin", u.Email)
		}
		return err
	}
	slog.Info("default admin user created", "email", u.Email)
	return nil
}
