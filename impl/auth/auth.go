package auth

import (
	"context"
	"errors"
	"fmt"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
	"invisifeed/entity"
	"time"
)

type Database interface {
	GetOwner(ctx context.Context, username string) (*entity.Owner, error)
}

// Auth hashes passwords and issues HS256 session tokens whose subject is the owner username
type Auth struct {
	db     Database
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func New(db Database, secret string, ttl time.Duration) *Auth {
	return &Auth{
		db:     db,
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

func (a *Auth) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

func (a *Auth) CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

func (a *Auth) IssueToken(username string, now time.Time) (string, time.Time, error) {
	expiresAt := now.Add(a.ttl)
	claims := jwt.RegisteredClaims{
		Subject:   username,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return token, expiresAt, nil
}

// ParseToken validates the signature and expiry and returns the subject
func (a *Auth) ParseToken(token string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return a.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(a.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", fmt.Errorf("%w: token expired", entity.ErrUnauthorized)
		}
		return "", fmt.Errorf("%w: invalid token", entity.ErrUnauthorized)
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("%w: token without subject", entity.ErrUnauthorized)
	}
	return claims.Subject, nil
}

// OwnerByToken resolves the token to an existing owner
func (a *Auth) OwnerByToken(ctx context.Context, token string) (*entity.Owner, error) {
	if a.db == nil {
		return nil, fmt.Errorf("database not connected")
	}
	username, err := a.ParseToken(token)
	if err != nil {
		return nil, err
	}
	owner, err := a.db.GetOwner(ctx, username)
	if err != nil {
		return nil, entity.Transient("get owner", err)
	}
	if owner == nil {
		return nil, fmt.Errorf("%w: owner %s no longer exists", entity.ErrUnauthorized, username)
	}
	return owner, nil
}
