package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"go.uber.org/zap"
)

// RoleAdmin is the token role allowed to manage templates
const RoleAdmin = "admin"

// Claims is what the service reads from an access token
type Claims struct {
	UserID int
	Role   string
}

// ParseToken validates an HMAC signed access token and extracts its claims
func ParseToken(tokenString, secret string) (*Claims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}

	if !token.Valid {
		return nil, errors.New("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("invalid claims")
	}

	tokenType, ok := claims["type"].(string)
	if !ok || tokenType != "access" {
		return nil, errors.New("invalid token type")
	}

	userIDFloat, ok := claims["sub"].(float64)
	if !ok || userIDFloat <= 0 {
		return nil, errors.New("invalid user ID in token")
	}

	role, _ := claims["role"].(string)

	return &Claims{UserID: int(userIDFloat), Role: role}, nil
}

// AuthMiddleware authenticates requests with a bearer access token
func AuthMiddleware(secret string, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			c.Abort()
			return
		}

		token := strings.TrimPrefix(authHeader, "Bearer ")
		if token == authHeader {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization format"})
			c.Abort()
			return
		}

		claims, err := ParseToken(token, secret)
		if err != nil {
			logger.Debug("Invalid token", zap.Error(err))
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			c.Abort()
			return
		}

		c.Set("userID", claims.UserID)
		c.Set("role", claims.Role)
		c.Next()
	}
}

// RequireAdmin rejects authenticated users without the admin role
func RequireAdmin(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, _ := c.Get("role")
		if role != RoleAdmin {
			userID, _ := c.Get("userID")
			logger.Warn("Template management denied", zap.Any("userID", userID))
			c.JSON(http.StatusForbidden, gin.H{"error": "Admin role required"})
			c.Abort()
			return
		}
		c.Next()
	}
}

// UserID returns the authenticated user id stored by AuthMiddleware
func UserID(c *gin.Context) int {
	if v, ok := c.Get("userID"); ok {
		if id, ok := v.(int); ok {
			return id
		}
	}
	return 0
}
