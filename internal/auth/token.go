// Package auth issues and verifies the bearer tokens of the three
// identity classes (user, doctor, admin) and hashes account passwords.
package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type Role string

const (
	RoleUser   Role = "user"
	RoleDoctor Role = "doctor"
	RoleAdmin  Role = "admin"
)

var (
	// ErrUnauthenticated covers every token failure: missing, malformed,
	// bad signature, expired or issued for another role.
	ErrUnauthenticated = errors.New("not authenticated")
	// ErrUnauthorized is returned for a valid token that lacks admin rights.
	ErrUnauthorized       = errors.New("not authorized")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Claims is the signed payload. ID is empty for admin tokens.
type Claims struct {
	ID      string `json:"id,omitempty"`
	Role    Role   `json:"role"`
	IsAdmin bool   `json:"isAdmin,omitempty"`
	jwt.RegisteredClaims
}

// Principal is the verified identity attached to a request.
type Principal struct {
	ID      string
	Role    Role
	IsAdmin bool
}

type Issuer struct {
	secret        []byte
	ttl           time.Duration
	adminEmail    string
	adminPassword string
	now           func() time.Time
}

func NewIssuer(secret string, ttl time.Duration, adminEmail, adminPassword string) *Issuer {
	return &Issuer{
		secret:        []byte(secret),
		ttl:           ttl,
		adminEmail:    adminEmail,
		adminPassword: adminPassword,
		now:           time.Now,
	}
}

func (i *Issuer) IssueUser(id string) (string, error) {
	return i.sign(Claims{ID: id, Role: RoleUser})
}

func (i *Issuer) IssueDoctor(id string) (string, error) {
	return i.sign(Claims{ID: id, Role: RoleDoctor})
}

// IssueAdmin checks the configured admin credentials and returns an admin token.
func (i *Issuer) IssueAdmin(email, password string) (string, error) {
	if i.adminEmail == "" || i.adminPassword == "" {
		return "", ErrInvalidCredentials
	}
	emailOK := subtle.ConstantTimeCompare([]byte(email), []byte(i.adminEmail)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(i.adminPassword)) == 1
	if !emailOK || !passOK {
		return "", ErrInvalidCredentials
	}
	return i.sign(Claims{Role: RoleAdmin, IsAdmin: true})
}

func (i *Issuer) sign(c Claims) (string, error) {
	now := i.now()
	c.IssuedAt = jwt.NewNumericDate(now)
	if i.ttl > 0 {
		c.ExpiresAt = jwt.NewNumericDate(now.Add(i.ttl))
	}
	if c.ID != "" {
		c.Subject = c.ID
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	s, err := token.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return s, nil
}

// Verify parses the token and checks it was issued for role.
func (i *Issuer) Verify(tokenStr string, role Role) (Principal, error) {
	if tokenStr == "" {
		return Principal{}, ErrUnauthenticated
	}

	var claims Claims
	_, err := jwt.ParseWithClaims(tokenStr, &claims, func(t *jwt.Token) (interface{}, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return Principal{}, ErrUnauthenticated
	}

	if role == RoleAdmin {
		if claims.Role != RoleAdmin || !claims.IsAdmin {
			return Principal{}, ErrUnauthorized
		}
		return Principal{Role: RoleAdmin, IsAdmin: true}, nil
	}

	if claims.Role != role || claims.ID == "" {
		return Principal{}, ErrUnauthenticated
	}
	return Principal{ID: claims.ID, Role: claims.Role}, nil
}
