package httptransport

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"beatrice-server-go/internal/domain/auth"
)

// SubjectKey is the gin context key holding the verified token subject.
const SubjectKey = "auth.subject"

// AuthMiddleware requires a valid "Authorization: Bearer <jwt>" header.
func AuthMiddleware(issuer *auth.TokenIssuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			RespondError(c, http.StatusUnauthorized, "missing bearer token", nil)
			return
		}
		subject, err := issuer.Verify(strings.TrimSpace(token))
		if err != nil {
			RespondError(c, http.StatusUnauthorized, "invalid token", nil)
			return
		}
		c.Set(SubjectKey, subject)
		c.Next()
	}
}
