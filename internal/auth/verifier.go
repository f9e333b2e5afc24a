// Package auth verifies bearer tokens minted by the external identity
// provider and resolves them into request principals. Users and admins are
// separate token domains signed with separate secrets; the service never
// issues tokens itself.
package auth

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/golang-jwt/jwt/v5"

	"github.com/nubianresearch/research-repository-service/internal/config"
	"github.com/nubianresearch/research-repository-service/internal/domain"
)

// Claims are the token claims the identity provider includes in sessions.
// Subject carries the numeric identity id of the principal's own table
// (users or admins, depending on Role).
type Claims struct {
	jwt.RegisteredClaims

	// Role selects the token domain: "user" or "admin".
	Role string `json:"role"`

	// Name is the principal's display name.
	Name string `json:"name"`

	// Email is the principal's email address.
	Email string `json:"email"`
}

// Verifier validates session tokens and produces principals.
type Verifier struct {
	issuer      string
	userSecret  []byte
	adminSecret []byte
}

// NewVerifier creates a Verifier from auth configuration.
func NewVerifier(cfg *config.AuthConfig) *Verifier {
	return &Verifier{
		issuer:      cfg.Issuer,
		userSecret:  []byte(cfg.UserSecret),
		adminSecret: []byte(cfg.AdminSecret),
	}
}

// Verify validates a bearer token and returns the principal it carries.
// Returns domain.ErrUnauthorized for malformed, expired, mis-issued or
// mis-signed tokens.
func (v *Verifier) Verify(tokenString string) (domain.Principal, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(tokenString, &claims, v.keyFor,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(v.issuer),
	)
	if err != nil {
		return domain.Anonymous(), fmt.Errorf("%w: %v", domain.ErrUnauthorized, err)
	}

	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return domain.Anonymous(), fmt.Errorf("%w: malformed subject", domain.ErrUnauthorized)
	}

	principal := domain.Principal{
		ID:    id,
		Name:  claims.Name,
		Email: claims.Email,
	}
	switch claims.Role {
	case "admin":
		principal.Role = domain.RoleAdmin
	case "user":
		principal.Role = domain.RoleUser
	default:
		return domain.Anonymous(), fmt.Errorf("%w: unknown role", domain.ErrUnauthorized)
	}

	return principal, nil
}

// keyFor selects the signing secret for the token's role claim. The role is
// read before signature verification, so a forged role only ever selects a
// secret the signature must still match.
func (v *Verifier) keyFor(token *jwt.Token) (interface{}, error) {
	claims, ok := token.Claims.(*Claims)
	if !ok {
		return nil, errors.New("unexpected claims type")
	}

	switch claims.Role {
	case "admin":
		return v.adminSecret, nil
	case "user":
		return v.userSecret, nil
	default:
		return nil, fmt.Errorf("unknown role %q", claims.Role)
	}
}
