package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"support-router/internal/transport"
)

const clientIDKey = "client_id"

// ClientTokenMiddleware valida el resume token (Authorization: Bearer) y exige que su
// clientId coincida con el parametro :clientId de la ruta.
func ClientTokenMiddleware(tokens *transport.TokenIssuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		if tokens == nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "client tokens not configured"})
			c.Abort()
			return
		}

		token, ok := bearerToken(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			c.Abort()
			return
		}

		clientID, err := tokens.Verify(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			c.Abort()
			return
		}
		if param := c.Param("clientId"); param != "" && param != clientID {
			c.JSON(http.StatusForbidden, gin.H{"error": "token does not match client"})
			c.Abort()
			return
		}

		c.Set(clientIDKey, clientID)
		c.Next()
	}
}

// bearerToken extrae el token de Authorization: Bearer.
func bearerToken(c *gin.Context) (string, bool) {
	header := strings.TrimSpace(c.GetHeader("Authorization"))
	if len(header) < len("Bearer ") || !strings.EqualFold(header[:len("Bearer ")], "bearer ") {
		return "", false
	}
	token := strings.TrimSpace(header[len("Bearer "):])
	return token, token != ""
}
