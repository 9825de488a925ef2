package models

import "github.com/golang-jwt/jwt/v5"

// JWTClaims represents the JWT payload of access tokens issued by the host application.
// EvaluatorID links an EVALUATOR account to its row in the evaluator directory.
type JWTClaims struct {
	UserID      string   `json:"user_id"`
	Role        UserRole `json:"role"`
	Email       string   `json:"email"`
	FullName    string   `json:"full_name"`
	EvaluatorID string   `json:"evaluator_id,omitempty"`
	jwt.RegisteredClaims
}
