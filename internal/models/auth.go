package models

import "github.com/golang-jwt/jwt/v5"

// UserRole labels the actor's role as supplied by the auth collaborator.
type UserRole string

const (
	RoleAdmin  UserRole = "admin"
	RoleClient UserRole = "client"
	RoleExpert UserRole = "expert"
)

// JWTClaims represents the JWT payload for access tokens. The pipeline
// trusts this identity verbatim for addedBy/changedBy audit fields.
type JWTClaims struct {
	UserID string   `json:"user_id"`
	Name   string   `json:"name"`
	Email  string   `json:"email"`
	Role   UserRole `json:"role"`
	jwt.RegisteredClaims
}
