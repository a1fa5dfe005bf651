package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"shop-service/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const principalKey = "principal"

var errTokenMissing = errors.New("token missing")

// Claims identify the caller: sub carries the user id, role is "user" or "admin"
type Claims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

// ParseToken validates tokenString and returns the principal it names
func ParseToken(tokenString string, key []byte) (models.Principal, error) {
	claims := new(Claims)
	_, err := jwt.ParseWithClaims(tokenString, claims, func(_ *jwt.Token) (any, error) {
		return key, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return models.Principal{}, fmt.Errorf("parsing jwt token: %w", err)
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return models.Principal{}, fmt.Errorf("subject is not a user id: %w", err)
	}

	role := claims.Role
	switch role {
	case models.RoleAdmin, models.RoleUser:
	case "":
		role = models.RoleUser
	default:
		return models.Principal{}, fmt.Errorf("unknown role %q", claims.Role)
	}
	return models.Principal{UserID: userID, Role: role}, nil
}

func bearerToken(c *gin.Context) (string, error) {
	header := c.GetHeader("Authorization")
	const bearer = "Bearer "
	if !strings.HasPrefix(header, bearer) {
		return "", errTokenMissing
	}
	return strings.TrimSpace(header[len(bearer):]), nil
}

// authRequired stores the caller's principal in the context or aborts with 401
func authRequired(key []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := bearerToken(c)
		if err == nil {
			var p models.Principal
			if p, err = ParseToken(token, key); err == nil {
				c.Set(principalKey, p)
				c.Next()
				return
			}
		}

		if !errors.Is(err, errTokenMissing) {
			_ = c.Error(err).SetType(gin.ErrorTypePrivate)
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
	}
}

// adminOnly must run after authRequired
func adminOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !principal(c).IsAdmin() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden", "message": "admin role required"})
			return
		}
		c.Next()
	}
}

func principal(c *gin.Context) models.Principal {
	p, _ := c.MustGet(principalKey).(models.Principal)
	return p
}
