package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/defense-jury-api/internal/middleware"
	"github.com/noah-isme/defense-jury-api/internal/models"
	appErrors "github.com/noah-isme/defense-jury-api/pkg/errors"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	claims, ok := middleware.ClaimsFromContext(c)
	if !ok {
		return nil
	}
	return claims
}

func actorID(c *gin.Context) string {
	if claims := claimsFromContext(c); claims != nil {
		return claims.UserID
	}
	return ""
}

// evaluatorFromContext resolves the evaluator acting on a verdict. Only EVALUATOR tokens
// carrying an evaluator id may sign.
func evaluatorFromContext(c *gin.Context) (string, error) {
	claims := claimsFromContext(c)
	if claims == nil {
		return "", appErrors.ErrUnauthorized
	}
	if claims.EvaluatorID == "" {
		return "", appErrors.Clone(appErrors.ErrRoleNotPermitted, "token is not linked to an evaluator")
	}
	return claims.EvaluatorID, nil
}
