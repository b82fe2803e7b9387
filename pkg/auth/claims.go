package auth

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Role is the back-office role carried in admin tokens.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleOperator Role = "operator"
)

func (r Role) IsValid() bool {
	return r == RoleAdmin || r == RoleOperator
}

// AccessTokenPayload is the caller-supplied part of a minted token.
type AccessTokenPayload struct {
	UserID uuid.UUID
	Role   Role
	JTI    string
}

// AccessTokenClaims is the token body shared with the identity service.
type AccessTokenClaims struct {
	UserID uuid.UUID `json:"user_id"`
	Role   Role      `json:"role"`
	jwt.RegisteredClaims
}

// Validate runs after the registered claims pass; the jwt parser calls it.
func (c AccessTokenClaims) Validate() error {
	if c.UserID == uuid.Nil {
		return errors.New("token has no user_id")
	}
	if !c.Role.IsValid() {
		return fmt.Errorf("invalid role %q", c.Role)
	}
	if c.Subject != "" && c.Subject != c.UserID.String() {
		return errors.New("subject does not match user_id")
	}
	return nil
}
