package middleware

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/golang-jwt/jwt/v5"

	"github.com/ManuelReschke/PrepVault/internal/pkg/usercontext"
)

// UserContextMiddleware resolves the caller from an HS256 bearer token and
// stores it in the request locals. Requests without a valid token continue as
// anonymous; RequireAuth decides whether that is acceptable.
func UserContextMiddleware(secret []byte) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenString := bearerToken(c)
		if tokenString == "" || len(secret) == 0 {
			usercontext.Set(c, usercontext.UserContext{})
			return c.Next()
		}

		userCtx, err := parseToken(tokenString, secret)
		if err != nil {
			log.Debugf("Rejected bearer token: %v", err)
			usercontext.Set(c, usercontext.UserContext{})
			return c.Next()
		}
		usercontext.Set(c, userCtx)
		return c.Next()
	}
}

func bearerToken(c *fiber.Ctx) string {
	auth := strings.TrimSpace(c.Get(fiber.HeaderAuthorization))
	if len(auth) > 7 && strings.EqualFold(auth[:7], "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}

func parseToken(tokenString string, secret []byte) (usercontext.UserContext, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return usercontext.UserContext{}, err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return usercontext.UserContext{}, fmt.Errorf("invalid token claims")
	}
	userID, ok := claims["user_id"].(float64)
	if !ok || userID < 1 {
		return usercontext.UserContext{}, fmt.Errorf("token has no user_id")
	}
	role, _ := claims["role"].(string)

	return usercontext.UserContext{
		UserID:     uint(userID),
		Role:       role,
		IsLoggedIn: true,
	}, nil
}
